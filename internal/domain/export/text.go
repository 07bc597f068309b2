// Package export renders transcripts and minutes for people and tools.
package export

import (
	"fmt"
	"strings"

	"github.com/forPelevin/minutes/internal/types"
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Text renders one "[speaker]: text" line per segment in transcript order,
// joined by "\n" with no trailing newline. Line breaks inside text or labels
// become spaces so every segment stays on exactly one line.
func Text(tr types.Transcript) string {
	lines := make([]string, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		lines = append(lines, "["+lineBreaks.Replace(s.Speaker)+"]: "+lineBreaks.Replace(s.Text))
	}
	return strings.Join(lines, "\n")
}

// Line is one parsed entry of the text export.
type Line struct {
	Speaker string
	Text    string
}

// ParseText reverses Text. The speaker label ends at the first "]: ", so
// labels must not contain that sequence.
func ParseText(s string) ([]Line, error) {
	if s == "" {
		return []Line{}, nil
	}
	raw := strings.Split(s, "\n")
	out := make([]Line, 0, len(raw))
	for i, ln := range raw {
		if !strings.HasPrefix(ln, "[") {
			return nil, fmt.Errorf("line %d: missing speaker label", i+1)
		}
		end := strings.Index(ln, "]: ")
		if end < 0 {
			return nil, fmt.Errorf("line %d: unterminated speaker label", i+1)
		}
		out = append(out, Line{Speaker: ln[1:end], Text: ln[end+3:]})
	}
	return out, nil
}
