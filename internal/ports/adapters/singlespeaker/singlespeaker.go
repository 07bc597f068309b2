// Package singlespeaker attributes the whole recording to one speaker. It is
// the diarizer used when diarization is disabled, and the substitute when the
// real diarizer is unavailable under the single-speaker policy.
package singlespeaker

import (
	"context"

	"github.com/forPelevin/minutes/internal/types"
)

const DefaultLabel = "Speaker"

type Diarizer struct {
	Label string
}

func New(label string) *Diarizer {
	if label == "" {
		label = DefaultLabel
	}
	return &Diarizer{Label: label}
}

func (d *Diarizer) Diarize(ctx context.Context, clip types.AudioClip) ([]types.DiarizationSegment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Segments(d.Label, clip), nil
}

// Segments returns one segment spanning the clip, or none for an empty clip.
func Segments(label string, clip types.AudioClip) []types.DiarizationSegment {
	dur := clip.Duration()
	if dur <= 0 {
		return []types.DiarizationSegment{}
	}
	if label == "" {
		label = DefaultLabel
	}
	return []types.DiarizationSegment{{Speaker: label, Start: 0, End: dur}}
}
