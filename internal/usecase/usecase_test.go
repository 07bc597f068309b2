package usecase

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/forPelevin/minutes/internal/domain/export"
	"github.com/forPelevin/minutes/internal/domain/minutes"
	apperr "github.com/forPelevin/minutes/internal/errors"
	"github.com/forPelevin/minutes/internal/ports/adapters/singlespeaker"
	"github.com/forPelevin/minutes/internal/summarize"
	"github.com/forPelevin/minutes/internal/types"
)

type fakeDiarizer struct {
	segs []types.DiarizationSegment
	err  error
}

func (f fakeDiarizer) Diarize(context.Context, types.AudioClip) ([]types.DiarizationSegment, error) {
	return f.segs, f.err
}

// fakeTranscriber answers by slice length in whole seconds at rate 10.
type fakeTranscriber struct {
	byLen map[int]string
	err   error
}

func (f fakeTranscriber) Transcribe(_ context.Context, clip types.AudioClip) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.byLen[len(clip.Samples)/clip.SampleRate], nil
}

type fakeSummarizer struct {
	m   types.Minutes
	err error
}

func (f fakeSummarizer) Summarize(context.Context, types.Transcript) (types.Minutes, error) {
	return f.m, f.err
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func clip(seconds int) types.AudioClip {
	return types.AudioClip{SampleRate: 10, Samples: make([]float32, seconds*10)}
}

func newUsecase(d fakeDiarizer, tr fakeTranscriber, gen *fakeSummarizer) Usecase {
	var g *summarize.Chain
	if gen != nil {
		g = summarize.New(gen, minutes.NewExtractive(), nil, quiet())
	} else {
		g = summarize.New(nil, minutes.NewExtractive(), nil, quiet())
	}
	return New(Deps{
		Diarizer:         d,
		FallbackDiarizer: singlespeaker.New(""),
		Transcriber:      tr,
		Summarizer:       g,
		Logger:           quiet(),
	})
}

func TestRun_TwoSpeakersWithGenerativeOutage(t *testing.T) {
	t.Parallel()

	uc := newUsecase(
		fakeDiarizer{segs: []types.DiarizationSegment{{Speaker: "A", Start: 0, End: 5}, {Speaker: "B", Start: 5, End: 9}}},
		fakeTranscriber{byLen: map[int]string{5: "hello", 4: ""}},
		&fakeSummarizer{err: apperr.New(apperr.ModelUnavailable, "no key")},
	)

	res, err := uc.Run(context.Background(), Input{Clip: clip(9), Concurrency: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := export.Text(res.Transcript); got != "[A]: hello\n[B]: " {
		t.Fatalf("export = %q", got)
	}
	if res.Outcome.Provenance != types.ProvenanceExtractive {
		t.Fatalf("expected extractive provenance, got %s", res.Outcome.Provenance)
	}
	if len(res.Minutes.KeyPoints) == 0 {
		t.Fatalf("fallback must produce key points")
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a warning about the summarizer outage")
	}
}

func TestRun_EmptyDiarization(t *testing.T) {
	t.Parallel()

	uc := newUsecase(fakeDiarizer{segs: []types.DiarizationSegment{}}, fakeTranscriber{}, &fakeSummarizer{})
	res, err := uc.Run(context.Background(), Input{Clip: clip(3)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Transcript.Segments) != 0 {
		t.Fatalf("expected empty transcript")
	}
	if !reflect.DeepEqual(res.Minutes, types.EmptyMinutes()) {
		t.Fatalf("expected all-empty minutes, got %+v", res.Minutes)
	}
}

func TestRun_DiarizationPolicy(t *testing.T) {
	t.Parallel()

	unavailable := fakeDiarizer{err: apperr.New(apperr.ModelUnavailable, "diarization requires HF_TOKEN")}
	tr := fakeTranscriber{byLen: map[int]string{4: "solo talk"}}

	cases := []struct {
		name          string
		singleSpeaker bool
		wantErr       bool
	}{
		{name: "strict", singleSpeaker: false, wantErr: true},
		{name: "single-speaker", singleSpeaker: true, wantErr: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res, err := newUsecase(unavailable, tr, nil).Run(context.Background(), Input{
				Clip:                       clip(4),
				SingleSpeakerOnUnavailable: tc.singleSpeaker,
			})
			if tc.wantErr {
				if !apperr.IsCode(err, apperr.ModelUnavailable) {
					t.Fatalf("expected ModelUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if got := export.Text(res.Transcript); got != "[Speaker]: solo talk" {
				t.Fatalf("export = %q", got)
			}
			if len(res.Warnings) == 0 {
				t.Fatalf("fallback must be reported")
			}
		})
	}
}

func TestRun_InferenceErrorFromDiarizerIsFatalEvenWithPolicy(t *testing.T) {
	t.Parallel()

	uc := newUsecase(fakeDiarizer{err: apperr.New(apperr.InferenceError, "bad audio")}, fakeTranscriber{}, nil)
	_, err := uc.Run(context.Background(), Input{Clip: clip(2), SingleSpeakerOnUnavailable: true})
	if !apperr.IsCode(err, apperr.InferenceError) {
		t.Fatalf("expected InferenceError, got %v", err)
	}
}

func TestRun_TranscriberUnavailableAborts(t *testing.T) {
	t.Parallel()

	uc := newUsecase(
		fakeDiarizer{segs: []types.DiarizationSegment{{Speaker: "A", Start: 0, End: 1}}},
		fakeTranscriber{err: apperr.New(apperr.ModelUnavailable, "weights missing")},
		nil,
	)
	_, err := uc.Run(context.Background(), Input{Clip: clip(1)})
	if !apperr.IsCode(err, apperr.ModelUnavailable) {
		t.Fatalf("expected ModelUnavailable, got %v", err)
	}
}

func TestRun_MalformedSegmentWarns(t *testing.T) {
	t.Parallel()

	uc := newUsecase(
		fakeDiarizer{segs: []types.DiarizationSegment{{Speaker: "A", Start: 0, End: 2}, {Speaker: "B", Start: 5, End: 3}}},
		fakeTranscriber{byLen: map[int]string{2: "ok"}},
		nil,
	)
	res, err := uc.Run(context.Background(), Input{Clip: clip(6)})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Transcript.Segments) != 1 || len(res.Transcript.Skipped) != 1 || res.Diarized != 2 {
		t.Fatalf("unexpected transcript %+v", res.Transcript)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("expected one warning, got %q", res.Warnings)
	}
}
