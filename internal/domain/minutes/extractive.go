// Package minutes builds meeting minutes without a language model by picking
// sentences straight from the transcript.
package minutes

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/forPelevin/minutes/internal/types"
)

const (
	DefaultMaxKeyPoints = 5
	DefaultMaxRunes     = 240
)

// Extractive is a deterministic ports.Summarizer. It never fails: a
// transcript with any text yields at least one key point, and one without
// text yields the empty document.
type Extractive struct {
	MaxKeyPoints int
	MaxRunes     int
}

func NewExtractive() *Extractive {
	return &Extractive{MaxKeyPoints: DefaultMaxKeyPoints, MaxRunes: DefaultMaxRunes}
}

func (e *Extractive) Summarize(_ context.Context, tr types.Transcript) (types.Minutes, error) {
	return e.Extract(tr), nil
}

type sentence struct {
	speaker string
	text    string
	order   int
	score   float64
}

func (e *Extractive) Extract(tr types.Transcript) types.Minutes {
	sents := splitTranscript(tr)
	if len(sents) == 0 {
		return types.EmptyMinutes()
	}
	maxPoints := e.MaxKeyPoints
	if maxPoints <= 0 {
		maxPoints = DefaultMaxKeyPoints
	}
	maxRunes := e.MaxRunes
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}

	ranked := make([]sentence, len(sents))
	copy(ranked, sents)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	seen := map[string]struct{}{}
	picked := make([]sentence, 0, maxPoints)
	for _, s := range ranked {
		if len(picked) >= maxPoints {
			break
		}
		k := dedupeKey(s.text)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		picked = append(picked, s)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].order < picked[j].order })

	m := types.EmptyMinutes()
	for _, s := range picked {
		m.KeyPoints = append(m.KeyPoints, truncateRunes(s.text, maxRunes))
	}

	decided := map[string]struct{}{}
	acted := map[string]struct{}{}
	for _, s := range sents {
		lower := strings.ToLower(s.text)
		k := dedupeKey(s.text)
		if isDecision(lower) {
			if _, dup := decided[k]; !dup {
				decided[k] = struct{}{}
				m.Decisions = append(m.Decisions, truncateRunes(s.text, maxRunes))
			}
			continue
		}
		if isAction(lower) {
			if _, dup := acted[k]; !dup {
				acted[k] = struct{}{}
				m.ActionItems = append(m.ActionItems, truncateRunes(s.speaker+": "+s.text, maxRunes))
			}
		}
	}

	m.RawSummary = strings.Join(m.KeyPoints, " ")
	return m
}

var reSentence = regexp.MustCompile(`[^.!?]+[.!?]*`)

func splitTranscript(tr types.Transcript) []sentence {
	var out []sentence
	for _, seg := range tr.Segments {
		text := strings.Join(strings.Fields(seg.Text), " ")
		if text == "" {
			continue
		}
		parts := reSentence.FindAllString(text, -1)
		added := false
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if strings.Trim(p, ".!? ") == "" {
				continue
			}
			out = append(out, sentence{speaker: seg.Speaker, text: p, order: len(out), score: Salience(p)})
			added = true
		}
		if !added {
			out = append(out, sentence{speaker: seg.Speaker, text: text, order: len(out), score: Salience(text)})
		}
	}
	return out
}

func dedupeKey(s string) string {
	return strings.Trim(strings.ToLower(s), ".!? ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	cut := string(r[:n-1])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
