package ports

import (
	"context"

	"github.com/forPelevin/minutes/internal/types"
)

type AudioTool interface {
	ExtractAudioMono16k(ctx context.Context, in, outWav string) error
}

// Diarizer returns speaker segments ordered by start. An empty result means
// no speech was detected.
type Diarizer interface {
	Diarize(ctx context.Context, clip types.AudioClip) ([]types.DiarizationSegment, error)
}

// Transcriber returns the text spoken in clip; "" is a valid answer.
type Transcriber interface {
	Transcribe(ctx context.Context, clip types.AudioClip) (string, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, tr types.Transcript) (types.Minutes, error)
}

type SegmentCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, text string) error
}

type MeetingStore interface {
	SaveMeeting(ctx context.Context, rep types.Report) error
}
