package openaiasr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/forPelevin/minutes/internal/audio"
	apperr "github.com/forPelevin/minutes/internal/errors"
	"github.com/forPelevin/minutes/internal/ports/adapters/endpoint"
	"github.com/forPelevin/minutes/internal/types"
)

const (
	defaultModel   = "whisper-1"
	requestTimeout = 2 * time.Minute
)

// BaseURLPolicy guards where the OpenAI key may be sent.
var BaseURLPolicy = endpoint.Policy{
	Env:          "OPENAI_BASE_URL",
	AllowedEnv:   "OPENAI_ALLOWED_HOSTS",
	Default:      "https://api.openai.com",
	DefaultHosts: []string{"api.openai.com"},
}

func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	return BaseURLPolicy.Validate(baseURL, allowedHosts)
}

// Adapter uploads each slice to an OpenAI-compatible
// /v1/audio/transcriptions endpoint.
type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
}

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = defaultModel
	}
	baseURL = BaseURLPolicy.Normalize(baseURL)
	return &Adapter{key: apiKey, model: model, baseURL: baseURL, client: &http.Client{Timeout: 5 * time.Minute}}
}

func (a *Adapter) ID() string { return "openai:" + a.model }

func (a *Adapter) Transcribe(ctx context.Context, clip types.AudioClip) (string, error) {
	if strings.TrimSpace(a.key) == "" {
		return "", apperr.New(apperr.ModelUnavailable, "openai transcription requires OPENAI_API_KEY")
	}
	if len(clip.Samples) == 0 || clip.SampleRate <= 0 {
		return "", apperr.New(apperr.InferenceError, "empty audio slice")
	}

	wav, err := audio.EncodeBytes(clip)
	if err != nil {
		return "", apperr.Wrap(err, apperr.InferenceError, "encode slice wav")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", a.model); err != nil {
		return "", err
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", "slice.wav")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(wav); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", apperr.Newf(apperr.ModelUnavailable, "openai transcription timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return "", apperr.Wrap(err, apperr.ModelUnavailable, "openai transcription request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", statusError(resp.StatusCode, redact(string(rb), a.key))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Wrap(err, apperr.InferenceError, "decode openai transcription")
	}
	return strings.TrimSpace(out.Text), nil
}

// statusError maps HTTP failures: auth, missing model and server faults make
// the backend unusable; other client errors are specific to this slice.
func statusError(code int, body string) error {
	msg := fmt.Sprintf("openai transcription status %d: %s", code, truncate(body, 400))
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusNotFound,
		code == http.StatusTooManyRequests, code >= 500:
		return apperr.New(apperr.ModelUnavailable, msg).WithMetadata("status", fmt.Sprint(code))
	default:
		return apperr.New(apperr.InferenceError, msg).WithMetadata("status", fmt.Sprint(code))
	}
}

func redact(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "[REDACTED]")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
