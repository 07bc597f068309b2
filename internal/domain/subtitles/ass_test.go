package subtitles

import (
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/minutes/internal/types"
)

func seg(speaker string, start, end float64, text string) types.TranscribedSegment {
	return types.TranscribedSegment{DiarizationSegment: types.DiarizationSegment{Speaker: speaker, Start: start, End: end}, Text: text}
}

func TestRenderASS_SpeakerInNameColumn(t *testing.T) {
	tr := types.Transcript{Segments: []types.TranscribedSegment{
		seg("Alice, PM", 1.5, 4, "Hello {team}"),
		seg("Bob", 4, 6, ""),
	}}
	ass := RenderASS(tr)

	want := "Dialogue: 0,0:00:01.50,0:00:04.00,Meeting,Alice  PM,0,0,0,,{\\b1}Alice, PM:{\\b0} Hello (team)\n"
	if !strings.Contains(ass, want) {
		t.Fatalf("missing dialogue line %q in:\n%s", want, ass)
	}
	if strings.Count(ass, "Dialogue:") != 1 {
		t.Fatalf("silent segment must not produce an event:\n%s", ass)
	}
}

func TestPackSegment_SplitsLongTextAcrossSegment(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("word ", 40))
	lines := packSegment(seg("A", 10, 20, text))
	if len(lines) < 2 {
		t.Fatalf("expected long text to split, got %d lines", len(lines))
	}
	if lines[0].Start != 10*time.Second || lines[len(lines)-1].End != 20*time.Second {
		t.Fatalf("lines must cover the segment: %+v", lines)
	}
	for i := 1; i < len(lines); i++ {
		if lines[i].Start != lines[i-1].End {
			t.Fatalf("lines must be contiguous: %+v", lines)
		}
	}
	for _, ln := range lines {
		if len(strings.Fields(ln.Text)) > wordBudget || len([]rune(ln.Text)) > charBudget {
			t.Fatalf("line over budget: %q", ln.Text)
		}
	}
}

func TestAssTime_Format(t *testing.T) {
	got := assTime(61*time.Second + 234*time.Millisecond)
	if got != "0:01:01.23" {
		t.Fatalf("unexpected assTime: %s", got)
	}
}
