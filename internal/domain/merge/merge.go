// Package merge turns diarization segments into a speaker-labeled transcript,
// one transcription call per segment.
package merge

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	apperr "github.com/forPelevin/minutes/internal/errors"
	"github.com/forPelevin/minutes/internal/ports"
	"github.com/forPelevin/minutes/internal/types"
)

const DefaultConcurrency = 4

// boundsTolerance absorbs float rounding between the diarizer's timestamps and
// the decoded clip length.
const boundsTolerance = 0.001

type Merger struct {
	Transcriber ports.Transcriber
	// Concurrency bounds in-flight transcription calls; <= 0 means DefaultConcurrency.
	Concurrency int
	Logger      *slog.Logger
}

// Merge validates segs against clip, transcribes every valid segment and
// returns them ordered by start.
//
// Invalid segments are left out of Segments and listed in Skipped. A segment
// whose transcription fails with anything but ModelUnavailable keeps its slot
// with empty text and FlagInferenceError. ModelUnavailable aborts the merge.
// On cancellation no new calls are started, in-flight calls are awaited and
// the context error is returned without a transcript.
func (m *Merger) Merge(ctx context.Context, clip types.AudioClip, segs []types.DiarizationSegment) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, err
	}
	log := m.logger()

	valid, skipped := Validate(segs, clip.Duration())
	for _, s := range skipped {
		log.Warn("skipping diarization segment",
			"index", s.Index, "speaker", s.Segment.Speaker,
			"start", s.Segment.Start, "end", s.Segment.End, "reason", s.Reason)
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Start < valid[j].Start })

	out := make([]types.TranscribedSegment, len(valid))
	if len(valid) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.concurrency())

	dispatch:
		for i, seg := range valid {
			select {
			case <-gctx.Done():
				break dispatch
			default:
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				ts, err := m.transcribe(gctx, clip, seg)
				if err != nil {
					return err
				}
				out[i] = ts
				return nil
			})
		}

		err := g.Wait()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Transcript{}, ctxErr
		}
		if err != nil {
			return types.Transcript{}, err
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	flagged := 0
	for _, s := range out {
		if s.Flag != "" {
			flagged++
		}
	}
	log.Debug("merged transcript", "segments", len(out), "skipped", len(skipped), "flagged", flagged)

	return types.Transcript{Segments: out, Skipped: skipped}, nil
}

func (m *Merger) transcribe(ctx context.Context, clip types.AudioClip, seg types.DiarizationSegment) (types.TranscribedSegment, error) {
	text, err := m.Transcriber.Transcribe(ctx, clip.Slice(seg.Start, seg.End))
	if err == nil {
		return types.TranscribedSegment{DiarizationSegment: seg, Text: text}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return types.TranscribedSegment{}, ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.TranscribedSegment{}, err
	}
	if apperr.IsCode(err, apperr.ModelUnavailable) {
		return types.TranscribedSegment{}, err
	}

	m.logger().Warn("segment transcription failed",
		"speaker", seg.Speaker, "start", seg.Start, "end", seg.End, "error", err)
	return types.TranscribedSegment{
		DiarizationSegment: seg,
		Flag:               types.FlagInferenceError,
		Err:                err.Error(),
	}, nil
}

// Validate splits segs into usable segments and rejected ones. A segment is
// usable when both bounds are finite and 0 <= start < end <= duration.
func Validate(segs []types.DiarizationSegment, duration float64) ([]types.DiarizationSegment, []types.SkippedSegment) {
	valid := make([]types.DiarizationSegment, 0, len(segs))
	var skipped []types.SkippedSegment
	for i, s := range segs {
		if err := check(s, duration); err != nil {
			skipped = append(skipped, types.SkippedSegment{Index: i, Segment: s, Reason: err.Message})
			continue
		}
		valid = append(valid, s)
	}
	return valid, skipped
}

func check(s types.DiarizationSegment, duration float64) *apperr.AppError {
	switch {
	case !finite(s.Start) || !finite(s.End):
		return apperr.New(apperr.MalformedSegment, "non-finite bounds")
	case s.Start < 0:
		return apperr.Newf(apperr.MalformedSegment, "negative start %.3f", s.Start)
	case s.End <= s.Start:
		return apperr.Newf(apperr.MalformedSegment, "end %.3f not after start %.3f", s.End, s.Start)
	case s.End > duration+boundsTolerance:
		return apperr.Newf(apperr.MalformedSegment, "end %.3f beyond clip duration %.3f", s.End, duration)
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func (m *Merger) concurrency() int {
	if m.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return m.Concurrency
}

func (m *Merger) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}
