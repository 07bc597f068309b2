package minutes

import (
	"regexp"
	"strings"
)

var (
	reNum      = regexp.MustCompile(`\b\d+(?:[\.,]\d+)?\b`)
	reSalient  = regexp.MustCompile(`(?i)\b(important|key|priority|deadline|budget|risk|issue|problem|goal|plan|launch|release|customer|decid\w*|agree\w*|must|need)\b`)
	reDecision = regexp.MustCompile(`(?i)\b(we\s+(?:have\s+)?(?:decided|agreed)|decision\s+is|let'?s\s+go\s+with|we(?:'ll|\s+will)\s+go\s+with|approved|settled\s+on|agreed\s+to|final\s+answer)\b`)
	reAction   = regexp.MustCompile(`(?i)\b(i'?ll|i\s+will|i\s+can\s+take|can\s+you|could\s+you|please|action\s+item|to-?do|follow\s+up|needs?\s+to|by\s+(?:monday|tuesday|wednesday|thursday|friday|tomorrow|next\s+week|end\s+of))\b`)
	reFiller   = regexp.MustCompile(`(?i)^(?:um+|uh+|yeah|okay|ok|right|so|hmm+|mhm)[\s,.!?]*$`)
)

// Salience scores a sentence for key-point selection. Higher is better; the
// value is only meaningful relative to other sentences.
func Salience(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" || reFiller.MatchString(t) {
		return -10
	}
	lower := strings.ToLower(t)
	words := len(strings.Fields(t))

	score := float64(len(reNum.FindAllStringIndex(t, -1))) * 0.4
	score += float64(len(reSalient.FindAllStringIndex(lower, -1))) * 0.9
	if reDecision.MatchString(lower) {
		score += 1.2
	}
	if reAction.MatchString(lower) {
		score += 0.6
	}

	// Favor complete thoughts over fragments and monologues.
	switch {
	case words < 4:
		score -= 1.0
	case words <= 40:
		score += 1.0 + 0.02*float64(words)
	default:
		score += 0.5
	}
	score -= 0.3 * float64(strings.Count(t, "?"))
	return clamp(score, -10, 10)
}

func isDecision(s string) bool { return reDecision.MatchString(s) }

func isAction(s string) bool { return reAction.MatchString(s) }

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
