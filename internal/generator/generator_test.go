package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"bizplan/internal/core"
	"bizplan/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct {
	reply   string
	err     error
	prompts []string
	options []llm.TextGenerationOptions
}

func (s *stubModel) GenerateText(_ context.Context, prompt string, options llm.TextGenerationOptions) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.options = append(s.options, options)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *stubModel) ModelName() string { return "stub-model" }

// wordsModel answers with exactly the number of words the length instruction asks for.
type wordsModel struct{ stubModel }

func (w *wordsModel) GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error) {
	var n int
	if i := strings.LastIndex(prompt, "circa "); i >= 0 {
		_, _ = fmt.Sscanf(prompt[i:], "circa %d parole", &n)
	}
	_, _ = w.stubModel.GenerateText(ctx, prompt, options)
	return strings.TrimSpace(strings.Repeat("parola ", n)), nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestGenerateAppendsLengthInstruction(t *testing.T) {
	model := &stubModel{reply: "testo generato"}
	g := New(model)

	res := g.Generate(context.Background(), Request{Prompt: "Scrivi", Temperature: 0.2, MaxTokens: 100, DesiredWordCount: 300})
	require.False(t, res.Failed())
	assert.Equal(t, "testo generato", res.Content())
	assert.Equal(t, "stub-model", res.ModelName)

	require.Len(t, model.prompts, 1)
	assert.Equal(t, "Scrivi\n\nLa risposta deve essere di circa 300 parole.", model.prompts[0])
	assert.Equal(t, int32(100), model.options[0].MaxTokens)
	assert.Equal(t, float32(0.2), model.options[0].Temperature)
	assert.Equal(t, len(model.prompts[0]), res.PromptLength)
}

func TestGenerateWithoutWordCountSendsPromptVerbatim(t *testing.T) {
	model := &stubModel{reply: "ok"}
	New(model).Generate(context.Background(), Request{Prompt: "Scrivi"})

	require.Len(t, model.prompts, 1)
	assert.Equal(t, "Scrivi", model.prompts[0])
	assert.Equal(t, int32(core.DefaultMaxTokens), model.options[0].MaxTokens, "zero max tokens takes the default")
}

func TestGenerateCachesResults(t *testing.T) {
	model := &stubModel{reply: "uno due tre quattro cinque sei sette otto nove dieci"}
	g := New(model)
	req := Request{Prompt: "p", Temperature: 0.2, MaxTokens: 100}

	first := g.Generate(context.Background(), req)
	second := g.Generate(context.Background(), req)

	assert.Len(t, model.prompts, 1)
	assert.Equal(t, first, second)

	stats := g.UsageStats()
	assert.Equal(t, 1, stats.RequestCount, "cache hits do not count as requests")
	assert.Equal(t, 13, stats.TokenCount)
	assert.Equal(t, 1, stats.CacheSize)
	assert.Equal(t, "stub-model", stats.ModelName)

	g.Generate(context.Background(), req, WithoutCache())
	assert.Len(t, model.prompts, 2)

	g.Generate(context.Background(), Request{Prompt: "p", Temperature: 0.3, MaxTokens: 100})
	assert.Len(t, model.prompts, 3, "temperature is part of the key")
}

func TestGenerateCacheExpires(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	model := &stubModel{reply: "ok"}
	g := New(model, WithClock(clock.Now))
	req := Request{Prompt: "p"}

	g.Generate(context.Background(), req)
	clock.Advance(time.Hour - time.Second)
	g.Generate(context.Background(), req)
	assert.Len(t, model.prompts, 1)

	clock.Advance(2 * time.Second)
	g.Generate(context.Background(), req)
	assert.Len(t, model.prompts, 2)
}

func TestGenerateFailureIsCountedNotCached(t *testing.T) {
	model := &stubModel{err: errors.New("quota exhausted")}
	g := New(model)

	res := g.Generate(context.Background(), Request{Prompt: "p"})
	assert.True(t, res.Failed())
	assert.Empty(t, res.Text)
	assert.Contains(t, res.Error, "quota exhausted")
	assert.Contains(t, res.Content(), "generation failed")
	assert.False(t, res.Timestamp.IsZero())

	g.Generate(context.Background(), Request{Prompt: "p"})
	stats := g.UsageStats()
	assert.Equal(t, 2, stats.RequestCount)
	assert.Equal(t, 2, stats.ErrorCount)
	assert.Equal(t, 0, stats.CacheSize)
	assert.Equal(t, 0, stats.TokenCount)
}

func TestClearCache(t *testing.T) {
	model := &stubModel{reply: "ok"}
	g := New(model)
	g.Generate(context.Background(), Request{Prompt: "p"})
	require.Equal(t, 1, g.UsageStats().CacheSize)

	g.ClearCache()
	assert.Equal(t, 0, g.UsageStats().CacheSize)
	g.Generate(context.Background(), Request{Prompt: "p"})
	assert.Len(t, model.prompts, 2)
}

func TestCacheKey(t *testing.T) {
	base := Request{Prompt: "p", Temperature: 0.2, MaxTokens: 100, DesiredWordCount: 300}
	assert.Equal(t, CacheKey(base), CacheKey(base))
	assert.Len(t, CacheKey(base), 64)

	other := base
	other.DesiredWordCount = 800
	assert.NotEqual(t, CacheKey(base), CacheKey(other))

	other = base
	other.MaxTokens = 200
	assert.NotEqual(t, CacheKey(base), CacheKey(other))
}

func TestLengthWithinTolerance(t *testing.T) {
	model := &wordsModel{}
	g := New(model)

	for _, want := range []int{300, 800, 2000} {
		res := g.Generate(context.Background(), Request{Prompt: "Scrivi", DesiredWordCount: want})
		got := len(strings.Fields(res.Text))
		ratio := float64(got-want) / float64(want)
		assert.LessOrEqual(t, ratio, 0.10)
		assert.GreaterOrEqual(t, ratio, -0.10)
	}
}

func TestBlendResearchLimitsAndFallbacks(t *testing.T) {
	bundle := &core.ResearchBundle{MarketSize: core.MarketSize{Description: "4,2 miliardi di euro"}}
	for i := 0; i < 8; i++ {
		bundle.Trends = append(bundle.Trends, core.Trend{Description: fmt.Sprintf("trend-%d", i)})
		bundle.Competitors = append(bundle.Competitors, core.Competitor{Name: fmt.Sprintf("comp-%d", i), Description: "desc"})
		bundle.Opportunities = append(bundle.Opportunities, core.Opportunity{Description: fmt.Sprintf("opp-%d", i)})
	}

	out := BlendResearch("Base", bundle)
	assert.True(t, strings.HasPrefix(out, "Base\n\n"))
	assert.Contains(t, out, "Dimensione del mercato: 4,2 miliardi di euro")
	assert.Contains(t, out, "- trend-4\n")
	assert.NotContains(t, out, "trend-5")
	assert.Contains(t, out, "- comp-4: desc\n")
	assert.NotContains(t, out, "comp-5")
	assert.Contains(t, out, "- opp-2\n")
	assert.NotContains(t, out, "opp-3")
	assert.Contains(t, out, "secondo la ricerca")

	empty := BlendResearch("Base", &core.ResearchBundle{})
	assert.Equal(t, 3, strings.Count(empty, dataNotAvailable))
	assert.NotContains(t, empty, "Dimensione del mercato")
	assert.Equal(t, empty, BlendResearch("Base", nil))
}

func TestGenerateWithResearch(t *testing.T) {
	model := &stubModel{reply: "analisi"}
	g := New(model, WithMaxTokens(3000))
	bundle := &core.ResearchBundle{Trends: []core.Trend{{Description: "digitalizzazione"}}}

	res := g.GenerateWithResearch(context.Background(), "Analisi di mercato", bundle, 0.4)
	require.False(t, res.Failed())
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "- digitalizzazione")
	assert.NotContains(t, model.prompts[0], "circa", "research path sends no length instruction")
	assert.Equal(t, int32(3000), model.options[0].MaxTokens)
	assert.Equal(t, float32(0.4), model.options[0].Temperature)
}
