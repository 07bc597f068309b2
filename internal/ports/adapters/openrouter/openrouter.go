package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	apperr "github.com/forPelevin/minutes/internal/errors"
	"github.com/forPelevin/minutes/internal/types"
)

type Adapter struct {
	key     string
	model   string
	baseURL string
	client  *http.Client
}

const (
	requestTimeout = 90 * time.Second
	// Long meetings are cut to keep the request inside typical context windows.
	maxPromptRunes = 120_000
)

func New(apiKey, model, baseURL string) *Adapter {
	if model == "" {
		model = "anthropic/claude-3.5-sonnet"
	}
	baseURL = normalizeBaseURL(baseURL)
	return &Adapter{key: apiKey, model: model, baseURL: baseURL, client: &http.Client{Timeout: 5 * time.Minute}}
}

func (a *Adapter) Model() string { return a.model }

// Summarize asks the model for minutes under a strict JSON schema. Backend
// problems are ModelUnavailable, unusable answers are InferenceError; the
// caller falls back on either.
func (a *Adapter) Summarize(ctx context.Context, tr types.Transcript) (types.Minutes, error) {
	if strings.TrimSpace(a.key) == "" {
		return types.Minutes{}, apperr.New(apperr.ModelUnavailable, "generative summarizer requires OPENROUTER_API_KEY")
	}

	transcript := buildTranscript(tr.Turns(), maxPromptRunes)
	if transcript == "" {
		return types.EmptyMinutes(), nil
	}

	payload := map[string]any{
		"model":  a.model,
		"stream": false,
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": "Transcript:\n" + transcript},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "meeting_minutes",
				"strict": true,
				"schema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"key_points":   stringArray,
						"decisions":    stringArray,
						"action_items": stringArray,
						"summary":      map[string]any{"type": "string"},
					},
					"required":             []string{"key_points", "decisions", "action_items", "summary"},
					"additionalProperties": false,
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return types.Minutes{}, fmt.Errorf("marshal request: %w", err)
	}
	url := a.baseURL + "/api/v1/chat/completions"

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return types.Minutes{}, err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Minutes{}, ctxErr
		}
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return types.Minutes{}, apperr.Newf(apperr.ModelUnavailable, "openrouter timeout after %s (model=%s)", requestTimeout, a.model)
		}
		return types.Minutes{}, apperr.Wrap(errors.New(redactSecrets(err.Error(), a.key)), apperr.ModelUnavailable, "openrouter request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, readErr := io.ReadAll(io.LimitReader(resp.Body, 8192))
		if readErr != nil {
			return types.Minutes{}, statusError(resp.StatusCode, fmt.Sprintf("read body failed: %v", readErr))
		}
		return types.Minutes{}, statusError(resp.StatusCode, truncate(redactSecrets(string(rb), a.key), 400))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return types.Minutes{}, apperr.Wrap(err, apperr.InferenceError, "decode openrouter response")
	}
	if len(raw.Choices) == 0 {
		return types.Minutes{}, apperr.New(apperr.InferenceError, "openrouter returned no choices")
	}

	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return types.Minutes{}, apperr.Wrap(err, apperr.InferenceError, "openrouter content")
	}
	return parseMinutes(content)
}

var stringArray = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

const systemPrompt = "You write meeting minutes from a speaker-labeled transcript. " +
	"Return strictly valid JSON (no markdown, no code fences) matching the provided schema. " +
	"key_points: the most important points discussed, in the order they came up. " +
	"decisions: what the participants agreed on; empty if nothing was decided. " +
	"action_items: concrete follow-ups, each starting with the responsible speaker's label followed by a colon. " +
	"summary: a short prose summary of the meeting. " +
	"Use only information present in the transcript."

// buildTranscript renders coalesced turns as "speaker: text" lines, dropping
// the tail once limit runes are reached.
func buildTranscript(turns []types.Turn, limit int) string {
	var b strings.Builder
	used := 0
	for _, t := range turns {
		if t.Text == "" {
			continue
		}
		line := t.Speaker + ": " + t.Text + "\n"
		n := len([]rune(line))
		if limit > 0 && used+n > limit {
			// Keep what fits of the turn so an oversized first turn still reaches the model.
			if rem := limit - used; rem > 0 {
				b.WriteString(strings.TrimSpace(string([]rune(line)[:rem])) + "\n")
			}
			b.WriteString("[transcript truncated]\n")
			break
		}
		b.WriteString(line)
		used += n
	}
	return strings.TrimSpace(b.String())
}

func parseMinutes(content string) (types.Minutes, error) {
	clean, err := extractJSONObject(content)
	if err != nil {
		return types.Minutes{}, apperr.Wrap(err, apperr.InferenceError, "openrouter content")
	}

	var out struct {
		KeyPoints   []string `json:"key_points"`
		Decisions   []string `json:"decisions"`
		ActionItems []string `json:"action_items"`
		Summary     string   `json:"summary"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return types.Minutes{}, apperr.Wrap(err, apperr.InferenceError, "parse minutes json")
	}

	raw := out.Summary
	if strings.TrimSpace(raw) == "" {
		raw = content
	}
	m := types.Minutes{
		KeyPoints:   out.KeyPoints,
		Decisions:   out.Decisions,
		ActionItems: out.ActionItems,
		RawSummary:  raw,
	}.Normalized()
	if len(m.KeyPoints) == 0 && len(m.Decisions) == 0 && len(m.ActionItems) == 0 {
		return types.Minutes{}, apperr.New(apperr.InferenceError, "openrouter returned empty minutes for a non-empty transcript")
	}
	return m, nil
}

func statusError(code int, body string) error {
	msg := fmt.Sprintf("openrouter status %d: %s", code, body)
	switch {
	case code == http.StatusUnauthorized, code == http.StatusPaymentRequired, code == http.StatusForbidden,
		code == http.StatusNotFound, code == http.StatusTooManyRequests, code >= 500:
		return apperr.New(apperr.ModelUnavailable, msg).WithMetadata("status", fmt.Sprint(code))
	default:
		return apperr.New(apperr.InferenceError, msg).WithMetadata("status", fmt.Sprint(code))
	}
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

func extractJSONObject(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", errors.New("openrouter: empty content")
	}

	// Strip markdown code fences.
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}

	// Best-effort: take the first JSON object found.
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start >= 0 && end > start {
		return t[start : end+1], nil
	}

	return "", fmt.Errorf("openrouter: could not locate JSON object in: %q", truncate(t, 200))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
