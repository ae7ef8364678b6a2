// Package llm provides the text generation gateway: synchronous and
// streaming chat against any OpenAI-compatible provider, with per-call
// timeouts and request pacing.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// ErrTimeout marks a generation call that exceeded its per-call timeout.
// Surfaced as a distinct kind so callers can treat timeouts differently
// from provider failures.
var ErrTimeout = errors.New("generation timed out")

// GenerationError marks a failure of the generation provider. The core
// never retries these; retry policy belongs to the caller.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// Service is the generation service interface.
type Service interface {
	// Chat performs a synchronous completion.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatStream performs a streaming completion. The content channel is
	// closed when the stream ends; a terminal failure is delivered on the
	// error channel. Abandoning the stream cancels the underlying call via
	// ctx without leaking the provider connection.
	ChatStream(ctx context.Context, messages []Message) (<-chan string, <-chan error)

	// Model returns the configured model identifier.
	Model() string
}

// Config represents generation service configuration.
type Config struct {
	Provider    string // openai, deepseek, siliconflow, ollama, or any compatible endpoint
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 2048
	Temperature float32 // default: 0.7
	Timeout     int     // per-call timeout in seconds (default: 120)

	// RequestsPerMinute paces calls to the provider; 0 disables pacing.
	RequestsPerMinute int
}

type service struct {
	client      *openai.Client
	limiter     *rate.Limiter
	model       string
	provider    string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewService creates a new generation Service.
func NewService(cfg *Config) (Service, error) {
	if cfg.Model == "" {
		return nil, errors.New("generation model required")
	}

	baseURL := cfg.BaseURL
	switch cfg.Provider {
	case "deepseek":
		if baseURL == "" {
			baseURL = "https://api.deepseek.com"
		}
	case "siliconflow":
		if baseURL == "" {
			baseURL = "https://api.siliconflow.cn/v1"
		}
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
	case "openai", "":
		// default endpoint
	default:
		slog.Info("using generic OpenAI-compatible provider", "provider", cfg.Provider)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &service{
		client:      openai.NewClientWithConfig(clientConfig),
		limiter:     limiter,
		model:       cfg.Model,
		provider:    cfg.Provider,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
	}, nil
}

func (s *service) Model() string {
	return s.model
}

func (s *service) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", &GenerationError{Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	slog.Debug("llm chat request",
		"model", s.model,
		"messages", len(messages),
		"max_tokens", s.maxTokens,
	)
	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Messages:    convertMessages(messages),
	}

	resp, err := s.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			slog.Error("llm chat timed out", "model", s.model, "timeout", s.timeout)
			return "", &GenerationError{Err: ErrTimeout}
		}
		slog.Error("llm chat failed", "error", err)
		return "", &GenerationError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &GenerationError{Err: errors.New("empty response")}
	}

	slog.Debug("llm chat response",
		"content_length", len(resp.Choices[0].Message.Content),
		"total_tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return resp.Choices[0].Message.Content, nil
}

func (s *service) ChatStream(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	contentChan := make(chan string, 10)
	errChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errChan)

		if err := s.limiter.Wait(ctx); err != nil {
			errChan <- &GenerationError{Err: err}
			return
		}

		streamCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		// Maps the stream deadline to ErrTimeout the same way Chat does,
		// leaving consumer cancellation silent.
		streamErr := func(err error) error {
			if streamCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				slog.Error("llm stream timed out", "model", s.model, "timeout", s.timeout)
				return &GenerationError{Err: ErrTimeout}
			}
			return &GenerationError{Err: err}
		}

		req := openai.ChatCompletionRequest{
			Model:       s.model,
			MaxTokens:   s.maxTokens,
			Temperature: s.temperature,
			Messages:    convertMessages(messages),
		}

		slog.Debug("llm stream starting", "model", s.model, "messages", len(messages))
		stream, err := s.client.CreateChatCompletionStream(streamCtx, req)
		if err != nil {
			slog.Error("llm stream failed to start", "error", err)
			errChan <- streamErr(err)
			return
		}
		defer func() { _ = stream.Close() }() //nolint:errcheck // cleanup

		chunks := 0
		start := time.Now()
		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				if isEOF(err) {
					slog.Debug("llm stream completed",
						"chunks", chunks,
						"duration_ms", time.Since(start).Milliseconds(),
					)
					return
				}
				slog.Error("llm stream receive error", "error", err, "chunks_so_far", chunks)
				errChan <- streamErr(err)
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			if delta := response.Choices[0].Delta.Content; delta != "" {
				chunks++
				select {
				case contentChan <- delta:
				case <-ctx.Done():
					slog.Warn("llm stream abandoned by consumer", "chunks", chunks)
					return
				}
			}

			if response.Choices[0].FinishReason != "" {
				slog.Debug("llm stream finished",
					"reason", response.Choices[0].FinishReason,
					"chunks", chunks,
					"duration_ms", time.Since(start).Milliseconds(),
				)
				return
			}
		}
	}()

	return contentChan, errChan
}

// isEOF matches the end-of-stream error from the SSE transport, which is
// not a wrapped io.EOF in all go-openai versions.
func isEOF(err error) bool {
	return err != nil && strings.Contains(err.Error(), "EOF")
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := m.Role
		switch role {
		case "system", "user", "assistant":
		default:
			role = openai.ChatMessageRoleUser
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 0, // per-call timeouts come from context
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
