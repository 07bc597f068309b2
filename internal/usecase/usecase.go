package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forPelevin/minutes/internal/domain/merge"
	apperr "github.com/forPelevin/minutes/internal/errors"
	"github.com/forPelevin/minutes/internal/ports"
	"github.com/forPelevin/minutes/internal/summarize"
	"github.com/forPelevin/minutes/internal/types"
)

type Deps struct {
	Diarizer ports.Diarizer
	// FallbackDiarizer replaces Diarizer when it reports ModelUnavailable and
	// the input allows it. Nil means diarization failures are always fatal.
	FallbackDiarizer ports.Diarizer
	Transcriber      ports.Transcriber
	Summarizer       *summarize.Chain
	Logger           *slog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return Usecase{d: d}
}

type Input struct {
	Clip        types.AudioClip
	Concurrency int
	// SingleSpeakerOnUnavailable attributes the whole clip to one speaker when
	// the diarizer cannot run, instead of failing.
	SingleSpeakerOnUnavailable bool
}

type Result struct {
	Diarized   int
	Transcript types.Transcript
	Minutes    types.Minutes
	Outcome    summarize.Outcome
	Warnings   []string
}

// Run executes diarize, merge and summarize in order. Diarization and
// transcription ModelUnavailable errors end the run; summarization always
// produces minutes unless ctx is cancelled.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Logger
	var res Result

	log.Info("diarizing", "duration_sec", in.Clip.Duration())
	segs, err := u.d.Diarizer.Diarize(ctx, in.Clip)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		if !in.SingleSpeakerOnUnavailable || u.d.FallbackDiarizer == nil || !apperr.IsCode(err, apperr.ModelUnavailable) {
			return Result{}, fmt.Errorf("diarize: %w", err)
		}
		log.Warn("diarization unavailable, attributing audio to a single speaker", "error", err)
		res.Warnings = append(res.Warnings, fmt.Sprintf("diarization unavailable (%v); single-speaker fallback used", err))
		segs, err = u.d.FallbackDiarizer.Diarize(ctx, in.Clip)
		if err != nil {
			return Result{}, fmt.Errorf("diarize fallback: %w", err)
		}
	}
	res.Diarized = len(segs)
	log.Info("diarized", "segments", len(segs))

	m := merge.Merger{Transcriber: u.d.Transcriber, Concurrency: in.Concurrency, Logger: log}
	tr, err := m.Merge(ctx, in.Clip, segs)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("transcribe: %w", err)
	}
	res.Transcript = tr

	if n := len(tr.Skipped); n > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d malformed diarization segment(s) rejected", n))
	}
	flagged := 0
	for _, s := range tr.Segments {
		if s.Flag == types.FlagInferenceError {
			flagged++
		}
	}
	if flagged > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d segment(s) failed transcription", flagged))
	}
	log.Info("transcribed", "segments", len(tr.Segments), "skipped", len(tr.Skipped), "flagged", flagged)

	minutes, outcome, err := u.d.Summarizer.Run(ctx, tr)
	if err != nil {
		return Result{}, fmt.Errorf("summarize: %w", err)
	}
	if outcome.Final == summarize.FellBackToExtractive && outcome.Cause != nil {
		res.Warnings = append(res.Warnings, "generative summarizer unavailable: "+outcome.Reason)
	}
	log.Info("summarized", "provenance", outcome.Provenance, "key_points", len(minutes.KeyPoints))

	res.Minutes = minutes
	res.Outcome = outcome
	return res, nil
}
