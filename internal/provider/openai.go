package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"qualibot/internal/domain"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
	DefaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel       = "gemini-2.0-flash"
	DefaultTemperature = 0.7
	DefaultMaxRetries  = 2
)

// OpenAI implements domain.Model for any OpenAI-compatible chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	maxRetries  int
	timeout     time.Duration
	backoffBase time.Duration
	logger      *slog.Logger
}

// OpenAIConfig configures the OpenAI-compatible model client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int           // 0 = provider default
	MaxRetries  int           // extra attempts on transient failures
	Timeout     time.Duration // per attempt; 0 = unbounded
	Logger      *slog.Logger

	backoffBase time.Duration
}

// NewOpenAI creates a model client. Zero Model and BaseURL select the
// Gemini defaults.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.backoffBase <= 0 {
		cfg.backoffBase = defaultBackoffBase
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = NewHTTPClient(cfg.Timeout)

	return &OpenAI{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		timeout:     cfg.Timeout,
		backoffBase: cfg.backoffBase,
		logger:      cfg.Logger,
	}
}

func (o *OpenAI) Name() string  { return "openai-compatible" }
func (o *OpenAI) Model() string { return o.model }

// Complete sends one system instruction and one user turn and returns the
// first choice's content. Failures are reported as *domain.ModelError.
func (o *OpenAI) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	}
	// go-openai omits a zero temperature; the smallest float32 is sent instead.
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, o.maxRetries, o.backoffBase, o.logger, func(ctx context.Context) error {
		if o.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}
		var err error
		resp, err = o.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return "", &domain.ModelError{Op: "request", StatusCode: statusCode(err), Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &domain.ModelError{Op: "decode", Err: errors.New("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// Healthy verifies the endpoint and credential by listing models.
func (o *OpenAI) Healthy(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		if code := statusCode(err); code == 401 || code == 403 {
			return fmt.Errorf("model API: invalid API key: %w", err)
		}
		return fmt.Errorf("model API not reachable: %w", err)
	}
	return nil
}
