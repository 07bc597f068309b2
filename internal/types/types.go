package types

import (
	"strings"
	"time"
)

// AudioClip is decoded mono audio. Samples are normalized to [-1, 1].
type AudioClip struct {
	Samples    []float32
	SampleRate int
}

func (c AudioClip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Slice returns the samples covering [start, end) seconds. The receiver is
// left untouched; the returned clip owns a copy of its samples.
func (c AudioClip) Slice(start, end float64) AudioClip {
	if c.SampleRate <= 0 || end <= start {
		return AudioClip{SampleRate: c.SampleRate}
	}
	lo := int(start * float64(c.SampleRate))
	hi := int(end * float64(c.SampleRate))
	if lo < 0 {
		lo = 0
	}
	if hi > len(c.Samples) {
		hi = len(c.Samples)
	}
	if lo >= hi {
		return AudioClip{SampleRate: c.SampleRate}
	}
	out := make([]float32, hi-lo)
	copy(out, c.Samples[lo:hi])
	return AudioClip{Samples: out, SampleRate: c.SampleRate}
}

type DiarizationSegment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

func (s DiarizationSegment) Duration() float64 { return s.End - s.Start }

const FlagInferenceError = "inference_error"

type TranscribedSegment struct {
	DiarizationSegment
	Text string `json:"text"`
	Flag string `json:"flag,omitempty"`
	Err  string `json:"error,omitempty"`
}

// SkippedSegment records a diarization segment that was rejected before
// transcription, so the gap stays visible in every output.
type SkippedSegment struct {
	Index   int                `json:"index"`
	Segment DiarizationSegment `json:"segment"`
	Reason  string             `json:"reason"`
}

type Transcript struct {
	Segments []TranscribedSegment `json:"segments"`
	Skipped  []SkippedSegment     `json:"skipped,omitempty"`
}

// HasText reports whether at least one segment carries non-blank text.
func (t Transcript) HasText() bool {
	for _, s := range t.Segments {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

// Turn is a run of consecutive segments from the same speaker.
type Turn struct {
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// Turns coalesces consecutive same-speaker segments. Segments with blank text
// still extend the turn's time range but add no text.
func (t Transcript) Turns() []Turn {
	var out []Turn
	for _, s := range t.Segments {
		text := strings.TrimSpace(s.Text)
		if n := len(out); n > 0 && out[n-1].Speaker == s.Speaker {
			last := &out[n-1]
			if text != "" {
				if last.Text != "" {
					last.Text += " "
				}
				last.Text += text
			}
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, Turn{Speaker: s.Speaker, Text: text, Start: s.Start, End: s.End})
	}
	return out
}

type Minutes struct {
	KeyPoints   []string `json:"key_points"`
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
	RawSummary  string   `json:"raw_summary"`
}

// EmptyMinutes returns the all-empty document with non-nil lists.
func EmptyMinutes() Minutes {
	return Minutes{KeyPoints: []string{}, Decisions: []string{}, ActionItems: []string{}}
}

func (m Minutes) IsEmpty() bool {
	return len(m.KeyPoints) == 0 && len(m.Decisions) == 0 && len(m.ActionItems) == 0 &&
		strings.TrimSpace(m.RawSummary) == ""
}

// Normalized trims entries, drops blanks and guarantees non-nil lists.
func (m Minutes) Normalized() Minutes {
	return Minutes{
		KeyPoints:   cleanList(m.KeyPoints),
		Decisions:   cleanList(m.Decisions),
		ActionItems: cleanList(m.ActionItems),
		RawSummary:  strings.TrimSpace(m.RawSummary),
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type Provenance string

const (
	ProvenanceGenerative Provenance = "generative"
	ProvenanceExtractive Provenance = "extractive"
)

type Report struct {
	ID         string        `json:"id"`
	Input      string        `json:"input"`
	Duration   float64       `json:"duration_sec"`
	Provenance Provenance    `json:"provenance"`
	Fallback   string        `json:"fallback_reason,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
	Transcript Transcript    `json:"transcript"`
	Minutes    Minutes       `json:"minutes"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}
