// Package summarize picks between the generative summarizer and the
// extractive fallback for one transcript.
package summarize

import (
	"context"
	"errors"
	"log/slog"

	apperr "github.com/forPelevin/minutes/internal/errors"
	"github.com/forPelevin/minutes/internal/ports"
	"github.com/forPelevin/minutes/internal/resilience"
	"github.com/forPelevin/minutes/internal/types"
)

type State int

const (
	NotStarted State = iota
	AttemptedGenerative
	Succeeded
	FellBackToExtractive
	Done
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case AttemptedGenerative:
		return "attempted_generative"
	case Succeeded:
		return "succeeded"
	case FellBackToExtractive:
		return "fell_back_to_extractive"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Outcome reports which variant produced the minutes. Final is Succeeded or
// FellBackToExtractive; Trace lists every state visited, ending in Done.
type Outcome struct {
	Provenance types.Provenance
	Final      State
	Trace      []State
	// Reason is set on fallback; Cause holds the generative error, if any.
	Reason string
	Cause  error
}

// Chain implements ports.Summarizer over an optional generative backend and a
// total extractive one. Both are chosen when the chain is built.
type Chain struct {
	generative ports.Summarizer
	extractive ports.Summarizer
	breaker    *resilience.Breaker
	log        *slog.Logger
}

// New builds a chain. generative and breaker may be nil; extractive must not
// fail on any transcript.
func New(generative, extractive ports.Summarizer, breaker *resilience.Breaker, log *slog.Logger) *Chain {
	if log == nil {
		log = slog.Default()
	}
	return &Chain{generative: generative, extractive: extractive, breaker: breaker, log: log}
}

func (c *Chain) HasGenerative() bool { return c.generative != nil }

func (c *Chain) Summarize(ctx context.Context, tr types.Transcript) (types.Minutes, error) {
	m, _, err := c.Run(ctx, tr)
	return m, err
}

// Run summarizes tr. Generative failures of any kind fall back to the
// extractive variant; cancellation of ctx is returned as an error instead.
func (c *Chain) Run(ctx context.Context, tr types.Transcript) (types.Minutes, Outcome, error) {
	out := Outcome{Trace: []State{NotStarted}}
	if err := ctx.Err(); err != nil {
		return types.Minutes{}, out, err
	}

	switch {
	case !tr.HasText():
		return c.fallback(ctx, tr, out, "transcript has no text", nil)
	case c.generative == nil:
		return c.fallback(ctx, tr, out, "no generative summarizer configured", nil)
	}

	out.Trace = append(out.Trace, AttemptedGenerative)
	m, err := c.callGenerative(ctx, tr)
	if err == nil {
		m = m.Normalized()
		if m.IsEmpty() {
			err = apperr.New(apperr.InferenceError, "generative summarizer returned empty minutes")
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Minutes{}, out, ctxErr
		}
		reason := apperr.CodeOf(err).String()
		if errors.Is(err, resilience.ErrOpen) {
			reason = "generative summarizer circuit open"
		}
		c.log.Warn("generative summarization failed, using extractive fallback", "reason", reason, "error", err)
		return c.fallback(ctx, tr, out, reason, err)
	}

	out.Provenance = types.ProvenanceGenerative
	out.Final = Succeeded
	out.Trace = append(out.Trace, Succeeded, Done)
	return m, out, nil
}

func (c *Chain) callGenerative(ctx context.Context, tr types.Transcript) (types.Minutes, error) {
	call := func() (types.Minutes, error) { return c.generative.Summarize(ctx, tr) }
	if c.breaker == nil {
		return call()
	}
	counts := func(err error) bool {
		return ctx.Err() == nil && apperr.IsCode(err, apperr.ModelUnavailable)
	}
	return resilience.ExecuteWithResult(c.breaker, counts, call)
}

func (c *Chain) fallback(ctx context.Context, tr types.Transcript, out Outcome, reason string, cause error) (types.Minutes, Outcome, error) {
	m, err := c.extractive.Summarize(ctx, tr)
	if err != nil {
		return types.Minutes{}, out, apperr.Wrap(err, apperr.Internal, "extractive summarizer failed")
	}
	out.Provenance = types.ProvenanceExtractive
	out.Final = FellBackToExtractive
	out.Reason = reason
	out.Cause = cause
	out.Trace = append(out.Trace, FellBackToExtractive, Done)
	return m.Normalized(), out, nil
}
