package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/minutes/internal/types"
)

type Metadata struct {
	Title      string
	Source     string
	ASR        string
	Summarizer string
	Provenance types.Provenance
	Fallback   string
	Generated  string
	Duration   time.Duration
}

// Markdown renders the minutes followed by the timestamped transcript.
// Rejected and failed segments are listed so gaps in the transcript are
// visible to the reader.
func Markdown(meta Metadata, tr types.Transcript, m types.Minutes) string {
	var b strings.Builder
	if meta.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", meta.Title)
	} else {
		b.WriteString("# Meeting Minutes\n\n")
	}
	if meta.Source != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", meta.Source)
	}
	if meta.Duration > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", meta.Duration.Truncate(time.Second))
	}
	if meta.ASR != "" {
		fmt.Fprintf(&b, "- Transcription: `%s`\n", meta.ASR)
	}
	if meta.Provenance != "" {
		fmt.Fprintf(&b, "- Summary: %s", meta.Provenance)
		if meta.Summarizer != "" && meta.Provenance == types.ProvenanceGenerative {
			fmt.Fprintf(&b, " (`%s`)", meta.Summarizer)
		}
		b.WriteString("\n")
	}
	if meta.Fallback != "" {
		fmt.Fprintf(&b, "- Fallback reason: %s\n", meta.Fallback)
	}
	if meta.Generated != "" {
		fmt.Fprintf(&b, "- Generated: %s\n", meta.Generated)
	}
	b.WriteString("\n")

	if m.RawSummary != "" {
		b.WriteString("## Summary\n\n")
		b.WriteString(m.RawSummary)
		b.WriteString("\n\n")
	}
	writeList(&b, "Key Points", m.KeyPoints)
	writeList(&b, "Decisions", m.Decisions)
	writeList(&b, "Action Items", m.ActionItems)

	var failed []types.TranscribedSegment
	for _, s := range tr.Segments {
		if s.Flag != "" {
			failed = append(failed, s)
		}
	}
	if len(tr.Skipped) > 0 || len(failed) > 0 {
		b.WriteString("## Gaps\n\n")
		for _, s := range tr.Skipped {
			fmt.Fprintf(&b, "- rejected segment #%d %s (%.2f-%.2fs): %s\n",
				s.Index, s.Segment.Speaker, s.Segment.Start, s.Segment.End, s.Reason)
		}
		for _, s := range failed {
			fmt.Fprintf(&b, "- [%s-%s] %s: transcription failed\n", secToTS(s.Start), secToTS(s.End), s.Speaker)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n## Transcript\n\n")
	if len(tr.Segments) == 0 {
		b.WriteString("_No speech detected._\n")
		return b.String()
	}
	for _, s := range tr.Segments {
		text := strings.TrimSpace(lineBreaks.Replace(s.Text))
		if s.Flag != "" {
			text = "_(" + s.Flag + ")_"
		}
		fmt.Fprintf(&b, "[%s-%s] **%s**: %s\n\n", secToTS(s.Start), secToTS(s.End), s.Speaker, text)
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(items) == 0 {
		b.WriteString("_None._\n\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func secToTS(sec float64) string {
	d := time.Duration(sec*1000) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
