package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rshade/greenreport/internal/logging"
)

// Anthropic Messages API defaults.
const (
	DefaultBaseURL    = "https://api.anthropic.com"
	DefaultModel      = "claude-3-haiku-20240307"
	DefaultAPIVersion = "2023-06-01"
	DefaultTimeout    = 60 * time.Second

	messagesPath  = "/v1/messages"
	pingMaxTokens = 10
)

// AnthropicConfig configures an AnthropicClient.
type AnthropicConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	APIVersion string
	Timeout    time.Duration
}

// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	http  *resty.Client
	model string
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

type apiError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicClient builds a client from cfg, applying defaults for empty
// fields. It returns ErrMissingAPIKey when cfg.APIKey is empty.
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", cfg.APIVersion).
		SetHeader("content-type", "application/json")

	return &AnthropicClient{http: client, model: cfg.Model}, nil
}

// Model returns the model name sent with every request.
func (c *AnthropicClient) Model() string {
	return c.model
}

// Complete sends req as a single user message and returns the concatenated
// text blocks of the reply. Transport errors, non-2xx statuses and replies
// without text are reported as ErrExternalCall.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Response, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	var result messagesResponse
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(messagesRequest{
			Model:       c.model,
			MaxTokens:   req.MaxTokens,
			System:      req.System,
			Temperature: req.Temperature,
			Messages:    []message{{Role: "user", Content: req.Prompt}},
		}).
		SetResult(&result).
		SetError(&failure).
		Post(messagesPath)

	if err != nil {
		log.Error().Ctx(ctx).Str("component", "llm").Err(err).Msg("model request failed")
		return nil, fmt.Errorf("%w: %w", ErrExternalCall, err)
	}
	if resp.IsError() {
		detail := failure.Error.Message
		if detail == "" {
			detail = strings.TrimSpace(string(resp.Body()))
		}
		log.Error().Ctx(ctx).
			Str("component", "llm").
			Int("status", resp.StatusCode()).
			Str("error_type", failure.Error.Type).
			Msg("model returned an error status")
		return nil, fmt.Errorf("%w: status %d: %s", ErrExternalCall, resp.StatusCode(), detail)
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("%w: reply contained no text", ErrExternalCall)
	}

	log.Debug().Ctx(ctx).
		Str("component", "llm").
		Str("model", result.Model).
		Int("input_tokens", result.Usage.InputTokens).
		Int("output_tokens", result.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("model call completed")

	model := result.Model
	if model == "" {
		model = c.model
	}
	return &Response{
		Text:       text.String(),
		Model:      model,
		StopReason: result.StopReason,
		Usage:      result.Usage,
	}, nil
}

// Ping sends a minimal prompt to check connectivity and credentials.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	_, err := c.Complete(ctx, Request{Prompt: "Test", MaxTokens: pingMaxTokens})
	return err
}
