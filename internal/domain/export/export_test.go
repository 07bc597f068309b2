package export

import (
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/minutes/internal/types"
)

func seg(speaker string, start, end float64, text string) types.TranscribedSegment {
	return types.TranscribedSegment{DiarizationSegment: types.DiarizationSegment{Speaker: speaker, Start: start, End: end}, Text: text}
}

func TestText(t *testing.T) {
	tests := []struct {
		name string
		tr   types.Transcript
		want string
	}{
		{
			name: "two speakers with silent segment",
			tr:   types.Transcript{Segments: []types.TranscribedSegment{seg("A", 0, 5, "hello"), seg("B", 5, 9, "")}},
			want: "[A]: hello\n[B]: ",
		},
		{
			name: "empty transcript",
			tr:   types.Transcript{},
			want: "",
		},
		{
			name: "newlines flattened",
			tr:   types.Transcript{Segments: []types.TranscribedSegment{seg("A", 0, 1, "one\ntwo\r\nthree")}},
			want: "[A]: one two three",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.tr); got != tt.want {
				t.Fatalf("Text = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseText_RoundTrip(t *testing.T) {
	tr := types.Transcript{Segments: []types.TranscribedSegment{
		seg("SPEAKER_00", 0, 2, "we should ship: today"),
		seg("SPEAKER_01", 2, 3, ""),
		seg("Speaker [2]", 3, 4, "  padded  "),
		seg("SPEAKER_00", 4, 5, "[bracketed] text"),
	}}

	lines, err := ParseText(Text(tr))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(lines) != len(tr.Segments) {
		t.Fatalf("got %d lines, want %d", len(lines), len(tr.Segments))
	}
	for i, s := range tr.Segments {
		if lines[i].Speaker != s.Speaker || lines[i].Text != s.Text {
			t.Fatalf("line %d = %+v, want (%q, %q)", i, lines[i], s.Speaker, s.Text)
		}
	}
}

func TestParseText_Errors(t *testing.T) {
	for _, in := range []string{"no label", "[A] missing colon", "[A]: ok\nbroken"} {
		if _, err := ParseText(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
	lines, err := ParseText("")
	if err != nil || len(lines) != 0 {
		t.Fatalf("empty export should parse to no lines, got %v, %v", lines, err)
	}
}

func TestMarkdown_ListsGapsAndProvenance(t *testing.T) {
	tr := types.Transcript{
		Segments: []types.TranscribedSegment{
			seg("A", 0, 5, "We will ship on Friday."),
			{DiarizationSegment: types.DiarizationSegment{Speaker: "B", Start: 5, End: 9}, Flag: types.FlagInferenceError, Err: "boom"},
		},
		Skipped: []types.SkippedSegment{{Index: 2, Segment: types.DiarizationSegment{Speaker: "C", Start: 5, End: 3}, Reason: "end 3.000 not after start 5.000"}},
	}
	m := types.Minutes{KeyPoints: []string{"Ship Friday"}, Decisions: []string{}, ActionItems: []string{}, RawSummary: "Ship Friday"}

	md := Markdown(Metadata{Source: "sync.m4a", Provenance: types.ProvenanceExtractive, Fallback: "no generative backend", Duration: 9 * time.Second}, tr, m)
	for _, want := range []string{
		"# Meeting Minutes",
		"- Source: `sync.m4a`",
		"- Summary: extractive",
		"- Fallback reason: no generative backend",
		"## Key Points\n\n- Ship Friday",
		"## Decisions\n\n_None._",
		"rejected segment #2 C",
		"[00:05-00:09] B: transcription failed",
		"[00:00-00:05] **A**: We will ship on Friday.",
		"**B**: _(inference_error)_",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMarkdown_EmptyTranscript(t *testing.T) {
	md := Markdown(Metadata{}, types.Transcript{}, types.EmptyMinutes())
	if !strings.Contains(md, "_No speech detected._") || strings.Contains(md, "## Gaps") {
		t.Fatalf("unexpected markdown:\n%s", md)
	}
}
