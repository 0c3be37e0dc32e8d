// Package responder decides whether a chat message deserves a reply.
//
// The two response modes (direct answer and tool command) live entirely in the
// model instruction. Locally the only decision is the sentinel check.
package responder

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"qualibot/internal/domain"
	"qualibot/internal/metrics"
)

// FallbackReply is posted when the model call fails for any reason.
const FallbackReply = "Sorry, I encountered an error while processing your request."

// Responder maps message text to an optional reply using one model call.
// It keeps no state between calls and is safe for concurrent use.
type Responder struct {
	model        domain.Model
	systemPrompt string
	logger       *slog.Logger
}

// Config configures a Responder.
type Config struct {
	Model         domain.Model
	SystemPrompt  string // overrides the built-in instruction when non-empty
	AssistantName string
	Logger        *slog.Logger
}

// New creates a Responder.
func New(cfg Config) *Responder {
	prompt := cfg.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = SystemPrompt(cfg.AssistantName)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		model:        cfg.Model,
		systemPrompt: prompt,
		logger:       logger,
	}
}

// Decide asks the model about message and returns the reply to post.
// ok is false when the model chose not to respond. Model failures never
// surface: the fallback notice is returned instead.
func (r *Responder) Decide(ctx context.Context, message string) (reply string, ok bool) {
	r.logger.Info("invoking model", "text_len", len(message))

	start := time.Now()
	out, err := r.model.Complete(ctx, r.systemPrompt, message)
	metrics.ModelLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelErrors.Inc()
		r.logger.Error("model invocation failed", "err", err)
		return FallbackReply, true
	}
	r.logger.Debug("model raw response", "response", out)

	// Substring match: any output mentioning the sentinel is treated as silence.
	if strings.Contains(out, Sentinel) {
		return "", false
	}
	return out, true
}
