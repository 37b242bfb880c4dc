// Package section generates business-plan sections: it resolves the target
// length, builds the prompt, decides whether to blend market research and
// always answers with an assistant message envelope.
package section

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"bizplan/internal/config"
	"bizplan/internal/core"
	"bizplan/internal/credentials"
	"bizplan/internal/generator"
	"bizplan/internal/llm"
	"bizplan/internal/logger"
)

// ErrLimitReached is reported when the session has used its allowance.
var ErrLimitReached = errors.New("generation limit reached for this session")

// TextGenerator is the generation surface a section needs.
// *generator.Generator satisfies it.
type TextGenerator interface {
	Generate(ctx context.Context, req generator.Request, opts ...generator.CallOption) generator.Result
	GenerateWithResearch(ctx context.Context, prompt string, bundle *core.ResearchBundle, temperature float32) generator.Result
}

// GeneratorFactory builds a TextGenerator once a credential is resolved.
type GeneratorFactory func(ctx context.Context, apiKey string) (TextGenerator, error)

// ResearchBuilder fetches a research bundle for a profile.
type ResearchBuilder interface {
	Build(ctx context.Context, profile core.BusinessProfile) (*core.ResearchBundle, error)
}

// UsageRecorder tracks generations per session.
type UsageRecorder interface {
	RecordGeneration(sessionID string, tokens int) error
	LimitReached(sessionID string) (bool, error)
}

// Config holds the knobs a section generator reads.
type Config struct {
	Model         string
	Timeout       time.Duration
	TopP          float32
	TopK          float32
	MaxTokens     int
	Temperature   *float32 // used when the state sets none; nil means core.DefaultTemperature
	GenerationTTL time.Duration
	LengthType    string // used when neither the call nor the state sets one
	AutoResearch  bool
}

// ConfigFrom maps the application configuration.
func ConfigFrom(c *config.Config) Config {
	temperature := c.AI.Gemini.Temperature
	return Config{
		Temperature:   &temperature,
		Model:         c.AI.Gemini.Model,
		Timeout:       c.AI.Gemini.TimeoutDuration(),
		TopP:          c.AI.Gemini.TopP,
		TopK:          c.AI.Gemini.TopK,
		MaxTokens:     c.AI.Gemini.MaxTokens,
		GenerationTTL: c.Cache.GenerationTTLDuration(),
		LengthType:    c.Section.LengthType,
		AutoResearch:  c.Section.AutoResearch,
	}
}

// CredentialsFrom builds the Gemini credential chain: environment, then the
// config file, then the secrets file.
func CredentialsFrom(c *config.Config) *credentials.Chain {
	return credentials.NewChain(
		credentials.NewEnvProvider(config.GeminiEnvKeys...),
		credentials.NewConfigProvider("ai.gemini.api_key", nil),
		credentials.NewSecretsFileProvider(c.Secrets.File, config.GeminiEnvKeys...),
	).WithValidator(config.IsValidAPIKey)
}

// Options tunes one GenerateSection call. Zero WordCount and empty
// LengthType fall back to the state.
type Options struct {
	WordCount       int
	LengthType      string
	IncludeResearch bool
}

// DefaultOptions includes research.
func DefaultOptions() Options {
	return Options{IncludeResearch: true}
}

// Generator produces sections. The text generator is created lazily on the
// first call that resolves a credential and reused afterwards.
type Generator struct {
	cfg         Config
	credentials *credentials.Chain
	factory     GeneratorFactory
	research    ResearchBuilder
	usage       UsageRecorder

	mu     sync.Mutex
	text   TextGenerator
	apiKey string
}

// Option configures a Generator.
type Option func(*Generator)

// WithCredentials replaces the default env-only credential chain.
func WithCredentials(chain *credentials.Chain) Option {
	return func(g *Generator) { g.credentials = chain }
}

// WithGeneratorFactory replaces the Gemini-backed factory.
func WithGeneratorFactory(f GeneratorFactory) Option {
	return func(g *Generator) { g.factory = f }
}

// WithResearchBuilder enables automatic research when Config.AutoResearch is set.
func WithResearchBuilder(b ResearchBuilder) Option {
	return func(g *Generator) { g.research = b }
}

// WithUsageRecorder enables per-session usage tracking and limits.
func WithUsageRecorder(u UsageRecorder) Option {
	return func(g *Generator) { g.usage = u }
}

// New creates a section Generator.
func New(cfg Config, opts ...Option) *Generator {
	g := &Generator{cfg: cfg}
	g.credentials = credentials.NewChain(credentials.NewEnvProvider(config.GeminiEnvKeys...))
	g.factory = g.geminiFactory
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) geminiFactory(ctx context.Context, apiKey string) (TextGenerator, error) {
	client, err := llm.NewClient(ctx, apiKey,
		llm.WithModel(g.cfg.Model),
		llm.WithTimeout(g.cfg.Timeout),
		llm.WithSampling(g.cfg.TopP, g.cfg.TopK),
	)
	if err != nil {
		return nil, err
	}
	return generator.New(client,
		generator.WithCacheTTL(g.cfg.GenerationTTL),
		generator.WithMaxTokens(g.cfg.MaxTokens),
	), nil
}

// textGenerator resolves the credential and returns the shared TextGenerator,
// rebuilding it when the resolved key changed.
func (g *Generator) textGenerator(ctx context.Context) (TextGenerator, error) {
	apiKey, source, err := g.credentials.Resolve()
	if err != nil {
		return nil, fmt.Errorf("chiave API Gemini non trovata: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.text != nil && g.apiKey == apiKey {
		return g.text, nil
	}

	text, err := g.factory(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}
	logger.Debug("Text generator initialized", "credential_source", source)
	g.text, g.apiKey = text, apiKey
	return text, nil
}

// GenerateSection writes one section. It always returns a single assistant
// message: failures, including panics, become a message describing the error.
func (g *Generator) GenerateSection(ctx context.Context, sectionName string, state core.SectionState, opts Options) (resp core.SectionResponse) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Section generation panicked", fmt.Errorf("%v", r),
				"section", sectionName, "stack", string(debug.Stack()))
			resp = errorResponse(sectionName, fmt.Errorf("panic: %v", r))
		}
	}()

	content, err := g.generate(ctx, sectionName, state, opts)
	if err != nil {
		logger.Error("Section generation failed", err, "section", sectionName)
		return errorResponse(sectionName, err)
	}
	return core.NewAssistantResponse(content)
}

func (g *Generator) generate(ctx context.Context, sectionName string, state core.SectionState, opts Options) (string, error) {
	state.ApplyDefaults()

	lengthType := firstNonEmpty(opts.LengthType, state.LengthType, g.cfg.LengthType)
	wordCount := ResolveWordCount(opts.WordCount, lengthType)
	prompt := BuildPrompt(sectionName, state)
	category := Classify(sectionName)
	temperature := state.TemperatureOr(g.defaultTemperature())

	if err := g.checkLimit(state.SessionID); err != nil {
		return "", err
	}

	text, err := g.textGenerator(ctx)
	if err != nil {
		return "", err
	}

	logger.Info("Generating section",
		"section", sectionName,
		"category", category.String(),
		"word_count", wordCount,
		"temperature", temperature,
		"prompt_length", len(prompt),
		"include_research", opts.IncludeResearch)

	var result generator.Result
	if bundle := g.researchFor(ctx, category, state, opts); bundle != nil {
		logger.Debug("Using research data", "section", sectionName)
		result = text.GenerateWithResearch(ctx, prompt, bundle, temperature)
	} else {
		req := generator.Request{
			Prompt:      prompt,
			Temperature: temperature,
			MaxTokens:   state.MaxTokens,
		}
		if opts.WordCount > 0 || state.IsLengthAuto() {
			req.DesiredWordCount = wordCount
		}
		result = text.Generate(ctx, req)
	}

	if result.Failed() {
		return "", errors.New(result.Error)
	}
	g.recordUsage(state.SessionID, result.Text)
	return result.Text, nil
}

// researchFor returns the bundle to blend, or nil for the plain path.
func (g *Generator) researchFor(ctx context.Context, category Category, state core.SectionState, opts Options) *core.ResearchBundle {
	if !opts.IncludeResearch || !category.ResearchRelevant() {
		return nil
	}
	if !state.PerplexityResults.IsEmpty() {
		return state.PerplexityResults
	}
	if !g.cfg.AutoResearch || g.research == nil {
		return nil
	}

	bundle, err := g.research.Build(ctx, state.BusinessProfile)
	if err != nil {
		logger.Warn("Automatic research failed, generating without it", "error", err.Error())
		return nil
	}
	if bundle.IsEmpty() {
		return nil
	}
	return bundle
}

func (g *Generator) defaultTemperature() float32 {
	if g.cfg.Temperature == nil {
		return core.DefaultTemperature
	}
	return *g.cfg.Temperature
}

func (g *Generator) checkLimit(sessionID string) error {
	if g.usage == nil || sessionID == "" {
		return nil
	}
	reached, err := g.usage.LimitReached(sessionID)
	if err != nil {
		logger.Warn("Usage limit check failed", "session_id", sessionID, "error", err.Error())
		return nil
	}
	if reached {
		return ErrLimitReached
	}
	return nil
}

func (g *Generator) recordUsage(sessionID, output string) {
	if g.usage == nil || sessionID == "" {
		return
	}
	tokens := int(float64(WordCount(output)) * generator.TokensPerWord)
	if err := g.usage.RecordGeneration(sessionID, tokens); err != nil {
		logger.Warn("Failed to record usage", "session_id", sessionID, "error", err.Error())
	}
}

func errorResponse(sectionName string, err error) core.SectionResponse {
	return core.NewAssistantResponse(fmt.Sprintf(
		"Si è verificato un errore durante la generazione del contenuto. Dettagli: Errore nella generazione della sezione %s: %v",
		sectionName, err))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
