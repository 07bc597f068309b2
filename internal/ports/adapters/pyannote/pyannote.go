// Package pyannote talks to a pyannote speaker-diarization inference server
// over gRPC.
package pyannote

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/forPelevin/minutes/internal/audio"
	apperr "github.com/forPelevin/minutes/internal/errors"
	"github.com/forPelevin/minutes/internal/types"
)

// DiarizeMethod is the unary RPC served by the inference server. Request and
// response are google.protobuf.Struct so no generated stubs are needed.
const DiarizeMethod = "/minutes.inference.v1.Diarization/Diarize"

const (
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second
)

type Options struct {
	Addr  string
	Token string
	// NumSpeakers pins the speaker count; 0 lets the model decide.
	NumSpeakers int
	// DialOptions are appended after the defaults (tests use a bufconn dialer).
	DialOptions []grpc.DialOption
}

type Client struct {
	conn        *grpc.ClientConn
	numSpeakers int
}

// New validates the credential before touching the network: pyannote weights
// are gated, so without a token every call would fail anyway.
func New(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, apperr.New(apperr.ModelUnavailable, "diarization requires HF_TOKEN")
	}
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, apperr.New(apperr.ModelUnavailable, "diarization requires DIARIZATION_ADDR")
	}

	dial := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
		grpc.WithUnaryInterceptor(bearerInterceptor(token)),
	}
	dial = append(dial, opts.DialOptions...)

	conn, err := grpc.NewClient(opts.Addr, dial...)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.ModelUnavailable, "diarization client for %q", opts.Addr)
	}
	return &Client{conn: conn, numSpeakers: opts.NumSpeakers}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Diarize(ctx context.Context, clip types.AudioClip) ([]types.DiarizationSegment, error) {
	if len(clip.Samples) == 0 {
		return []types.DiarizationSegment{}, nil
	}
	wav, err := audio.EncodeBytes(clip)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InferenceError, "encode diarization audio")
	}

	req, err := structpb.NewStruct(map[string]any{
		"audio_wav_b64": base64.StdEncoding.EncodeToString(wav),
		"sample_rate":   clip.SampleRate,
		"num_speakers":  c.numSpeakers,
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.Internal, "build diarization request")
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, DiarizeMethod, req, resp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperr.FromGRPCError(err, "diarization call failed")
	}
	return parseSegments(resp)
}

// UnknownSpeaker labels segments the server returned without a speaker.
const UnknownSpeaker = "unknown"

func parseSegments(resp *structpb.Struct) ([]types.DiarizationSegment, error) {
	raw, ok := resp.GetFields()["segments"]
	if !ok {
		return []types.DiarizationSegment{}, nil
	}
	list := raw.GetListValue()
	if list == nil {
		return nil, apperr.New(apperr.InferenceError, "diarization response: segments is not a list")
	}

	out := make([]types.DiarizationSegment, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		f := v.GetStructValue().GetFields()
		if f == nil {
			return nil, apperr.Newf(apperr.InferenceError, "diarization response: segment %d is not an object", i)
		}
		speaker := strings.TrimSpace(f["speaker"].GetStringValue())
		if speaker == "" {
			speaker = UnknownSpeaker
		}
		out = append(out, types.DiarizationSegment{
			Speaker: speaker,
			Start:   f["start"].GetNumberValue(),
			End:     f["end"].GetNumberValue(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

func bearerInterceptor(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
