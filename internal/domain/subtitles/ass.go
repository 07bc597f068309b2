package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/minutes/internal/types"
)

// RenderASS renders the transcript as an ASS caption track on the meeting's
// own timeline, with the speaker label in the Name column and prefixed to the
// text. Long segments are split into caption-sized events whose timing is
// spread over the segment in proportion to their length. Segments without
// text produce no event.
func RenderASS(tr types.Transcript) string {
	var b strings.Builder
	b.WriteString(assHeader())
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, s := range tr.Segments {
		speaker := sanitizeName(s.Speaker)
		for _, ln := range packSegment(s) {
			b.WriteString("Dialogue: 0,")
			b.WriteString(assTime(ln.Start))
			b.WriteString(",")
			b.WriteString(assTime(ln.End))
			b.WriteString(",Meeting,")
			b.WriteString(speaker)
			b.WriteString(",0,0,0,,")
			b.WriteString("{\\b1}" + sanitizeASS(s.Speaker) + ":{\\b0} ")
			b.WriteString(ln.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

type line struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Budgets keep one caption to about two rendered rows at the default size.
const (
	charBudget = 84
	wordBudget = 16
)

func packSegment(s types.TranscribedSegment) []line {
	words := strings.Fields(sanitizeASS(s.Text))
	if len(words) == 0 {
		return nil
	}
	start, end := dur(s.Start), dur(s.End)
	if end <= start {
		return nil
	}

	var chunks [][]string
	var cur []string
	curLen := 0
	for _, w := range words {
		wl := len([]rune(w))
		nextLen := curLen + wl
		if curLen > 0 {
			nextLen++
		}
		if len(cur) > 0 && (len(cur) >= wordBudget || nextLen > charBudget) {
			chunks = append(chunks, cur)
			cur, curLen = nil, 0
			nextLen = wl
		}
		cur = append(cur, w)
		curLen = nextLen
	}
	chunks = append(chunks, cur)

	total := 0
	for _, c := range chunks {
		total += len([]rune(strings.Join(c, " ")))
	}
	span := end - start
	out := make([]line, 0, len(chunks))
	at, used := start, 0
	for i, c := range chunks {
		text := strings.Join(c, " ")
		used += len([]rune(text))
		next := start + time.Duration(float64(span)*float64(used)/float64(total))
		if i == len(chunks)-1 {
			next = end
		}
		out = append(out, line{Start: at, End: next, Text: text})
		at = next
	}
	return out
}

func assHeader() string {
	return strings.TrimSpace(`
[Script Info]
ScriptType: v4.00+
PlayResX: 1920
PlayResY: 1080
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Meeting, Inter, 54, &H00FFFFFF, &H00FFD200, &H00000000, &H64000000, 0,0,0,0,100,100,0,0,1,3,1,2, 120,120,60,1
`)
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(s)
}

// sanitizeName keeps the Name field from breaking the comma-separated row.
func sanitizeName(s string) string {
	return strings.ReplaceAll(sanitizeASS(s), ",", " ")
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
