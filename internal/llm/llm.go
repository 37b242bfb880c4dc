// Package llm wraps the Gemini API behind a small text-generation interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizplan/internal/logger"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the Gemini model used for section generation.
	DefaultModel = "gemini-2.5-pro"
	// DefaultTopP is the nucleus sampling cutoff sent with every request.
	DefaultTopP = float32(0.95)
	// DefaultTopK is the top-k sampling cutoff sent with every request.
	DefaultTopK = float32(40)
	// DefaultTimeout bounds a single generation call.
	DefaultTimeout = 120 * time.Second
)

var (
	// ErrMissingAPIKey is returned when the client is built without a key.
	ErrMissingAPIKey = errors.New("gemini API key is required")
	// ErrEmptyPrompt is returned for blank prompts.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("empty response from LLM")
)

// TextGenerationOptions contains options for text generation
type TextGenerationOptions struct {
	MaxTokens   int32   // Maximum number of tokens to generate
	Temperature float32 // Temperature for randomness (0.0 to 1.0)
	TopP        float32 // Zero uses the client's value
	TopK        float32 // Zero uses the client's value
}

// TextModel is what the generator needs from a language model.
type TextModel interface {
	GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error)
	ModelName() string
}

// Client represents a client for interacting with Gemini.
type Client struct {
	modelName string
	timeout   time.Duration
	topP      float32
	topK      float32
	gClient   *genai.Client
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides DefaultModel.
func WithModel(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.modelName = name
		}
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSampling overrides the default top-p and top-k.
func WithSampling(topP, topK float32) Option {
	return func(c *Client) {
		if topP > 0 {
			c.topP = topP
		}
		if topK > 0 {
			c.topK = topK
		}
	}
}

// NewClient creates a Gemini client. The key is resolved by the caller.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY or ai.gemini.api_key in the config file", ErrMissingAPIKey)
	}

	c := &Client{
		modelName: DefaultModel,
		timeout:   DefaultTimeout,
		topP:      DefaultTopP,
		topK:      DefaultTopK,
	}
	for _, opt := range opts {
		opt(c)
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	c.gClient = gClient

	logger.Debug("Gemini client configured", "model", c.modelName, "timeout", c.timeout.String())
	return c, nil
}

// ModelName returns the configured model.
func (c *Client) ModelName() string {
	return c.modelName
}

// GenerateText sends a single-turn prompt and returns the response text.
func (c *Client) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, c.buildConfig(options))
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) buildConfig(options TextGenerationOptions) *genai.GenerateContentConfig {
	topP, topK := c.topP, c.topK
	if options.TopP > 0 {
		topP = options.TopP
	}
	if options.TopK > 0 {
		topK = options.TopK
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(options.Temperature),
		TopP:        genai.Ptr(topP),
		TopK:        genai.Ptr(topK),
	}
	if options.MaxTokens > 0 {
		config.MaxOutputTokens = options.MaxTokens
	}
	return config
}
