// Package generator turns prompts into text through a language model, with
// an in-memory result cache, a length instruction and research blending.
package generator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"bizplan/internal/cache"
	"bizplan/internal/core"
	"bizplan/internal/llm"
	"bizplan/internal/logger"
)

// TokensPerWord is the ratio used to estimate consumed tokens from output words.
const TokensPerWord = 1.3

// ErrGeneration wraps every failure of the underlying model call.
var ErrGeneration = errors.New("generation failed")

// Request is a single generation call. DesiredWordCount zero means no length
// instruction.
type Request struct {
	Prompt           string
	Temperature      float32
	MaxTokens        int
	DesiredWordCount int
}

// Result is the outcome of Generate. Exactly one of Text and Error is set.
type Result struct {
	Text           string    `json:"text,omitempty"`
	Error          string    `json:"error,omitempty"`
	ModelName      string    `json:"model"`
	Timestamp      time.Time `json:"timestamp"`
	PromptLength   int       `json:"prompt_length,omitempty"`
	ResponseLength int       `json:"response_length,omitempty"`
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool { return r.Error != "" }

// Content returns the generated text, or the error message on failure.
func (r Result) Content() string {
	if r.Failed() {
		return r.Error
	}
	return r.Text
}

// Metrics are the usage counters of one Generator.
type Metrics struct {
	mu       sync.Mutex
	requests int
	tokens   float64
	errors   int
}

func (m *Metrics) request() {
	m.mu.Lock()
	m.requests++
	m.mu.Unlock()
}

func (m *Metrics) success(output string) {
	m.mu.Lock()
	m.tokens += float64(len(strings.Fields(output))) * TokensPerWord
	m.mu.Unlock()
}

func (m *Metrics) failure() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

// Counts returns requests, estimated tokens and errors.
func (m *Metrics) Counts() (requests int, tokens float64, errs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests, m.tokens, m.errors
}

// Stats is a snapshot of a Generator's usage.
type Stats struct {
	RequestCount int    `json:"request_count"`
	TokenCount   int    `json:"token_count"`
	ErrorCount   int    `json:"error_count"`
	CacheSize    int    `json:"cache_size"`
	ModelName    string `json:"model"`
}

// Generator wraps a TextModel. Safe for concurrent use.
type Generator struct {
	model     llm.TextModel
	cache     *cache.MemoryCache[Result]
	metrics   *Metrics
	maxTokens int
	now       func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithCacheTTL overrides cache.DefaultMemoryTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(g *Generator) { g.cache = cache.NewMemoryCache[Result](ttl) }
}

// WithClock injects the time source for result timestamps and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithMaxTokens sets the token limit used by GenerateWithResearch and by
// requests that leave MaxTokens zero.
func WithMaxTokens(maxTokens int) Option {
	return func(g *Generator) {
		if maxTokens > 0 {
			g.maxTokens = maxTokens
		}
	}
}

// New creates a Generator around model.
func New(model llm.TextModel, opts ...Option) *Generator {
	g := &Generator{
		model:     model,
		cache:     cache.NewMemoryCache[Result](cache.DefaultMemoryTTL),
		metrics:   &Metrics{},
		maxTokens: core.DefaultMaxTokens,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.cache.SetClock(g.now)
	return g
}

type callOptions struct {
	useCache bool
}

// CallOption tunes a single Generate call.
type CallOption func(*callOptions)

// WithoutCache bypasses both cache lookup and cache store.
func WithoutCache() CallOption {
	return func(o *callOptions) { o.useCache = false }
}

// CacheKey hashes every field that distinguishes a request.
func CacheKey(req Request) string {
	raw := strings.Join([]string{
		req.Prompt,
		strconv.FormatFloat(float64(req.Temperature), 'f', -1, 32),
		strconv.Itoa(req.MaxTokens),
		strconv.Itoa(req.DesiredWordCount),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LengthInstruction is appended to prompts that ask for a word count.
func LengthInstruction(words int) string {
	return fmt.Sprintf("\n\nLa risposta deve essere di circa %d parole.", words)
}

// Generate runs req through the model. It never returns an error value:
// failures are reported in Result.Error and counted in Metrics.
func (g *Generator) Generate(ctx context.Context, req Request, opts ...CallOption) Result {
	co := callOptions{useCache: true}
	for _, opt := range opts {
		opt(&co)
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = g.maxTokens
	}

	key := CacheKey(req)
	if co.useCache {
		if cached, ok := g.cache.Get(key); ok {
			logger.Debug("Generation cache hit", "model", cached.ModelName)
			return cached
		}
	}

	prompt := req.Prompt
	if req.DesiredWordCount > 0 {
		prompt += LengthInstruction(req.DesiredWordCount)
	}

	g.metrics.request()
	text, err := g.model.GenerateText(ctx, prompt, llm.TextGenerationOptions{
		MaxTokens:   int32(req.MaxTokens),
		Temperature: req.Temperature,
	})
	if err != nil {
		g.metrics.failure()
		logger.Error("Generation failed", err, "model", g.model.ModelName())
		return Result{
			Error:     fmt.Errorf("%w: %v", ErrGeneration, err).Error(),
			ModelName: g.model.ModelName(),
			Timestamp: g.now(),
		}
	}
	g.metrics.success(text)

	result := Result{
		Text:           text,
		ModelName:      g.model.ModelName(),
		Timestamp:      g.now(),
		PromptLength:   len(prompt),
		ResponseLength: len(text),
	}
	if co.useCache {
		g.cache.Set(key, result)
	}
	logger.Info("Generation completed",
		"model", result.ModelName,
		"prompt_length", result.PromptLength,
		"response_words", len(strings.Fields(text)))
	return result
}

// ClearCache drops every cached result.
func (g *Generator) ClearCache() {
	g.cache.Clear()
	logger.Info("Generation cache cleared")
}

// Metrics returns the generator's live counters.
func (g *Generator) Metrics() *Metrics {
	return g.metrics
}

// UsageStats returns a snapshot of the counters and cache size.
func (g *Generator) UsageStats() Stats {
	requests, tokens, errs := g.metrics.Counts()
	return Stats{
		RequestCount: requests,
		TokenCount:   int(tokens),
		ErrorCount:   errs,
		CacheSize:    g.cache.Len(),
		ModelName:    g.model.ModelName(),
	}
}
