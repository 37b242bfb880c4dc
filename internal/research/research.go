// Package research assembles a ResearchBundle for a business profile from
// the four canned market lookups.
package research

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bizplan/internal/core"
	"bizplan/internal/logger"
	"bizplan/internal/search"

	"github.com/PuerkitoBio/goquery"
)

// ErrAllLookupsFailed is returned when no lookup produced a response.
var ErrAllLookupsFailed = errors.New("all research lookups failed")

// Searcher runs the canned market lookups. *search.BraveClient and
// *search.ProviderLookups satisfy it.
type Searcher interface {
	MarketAnalysis(ctx context.Context, industry, targetMarket, region string) search.Lookup
	CompetitorAnalysis(ctx context.Context, industry, targetMarket string) search.Lookup
	TrendLookup(ctx context.Context, industry, targetMarket, year string) search.Lookup
	OpportunityLookup(ctx context.Context, industry, targetMarket string) search.Lookup
}

var (
	figurePattern = regexp.MustCompile(`(?i)(€|\beuro\b|\beur\b|miliard[io]|milion[ie]|\d+(?:[.,]\d+)?\s?%|\bcagr\b)`)
	valuePattern  = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?\s*(?:miliard[io]|milion[ie]|mila|billion|million))`)
	cagrPattern   = regexp.MustCompile(`(?i)cagr\s*(?:del|di|of)?\s*(?:circa\s*)?(\d+(?:[.,]\d+)?\s?%)`)
)

// Builder turns lookups into a ResearchBundle.
type Builder struct {
	searcher Searcher
	region   string
	now      func() time.Time
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRegion sets the market region used when a profile has no area.
func WithRegion(region string) BuilderOption {
	return func(b *Builder) { b.region = region }
}

// NewBuilder creates a Builder over searcher.
func NewBuilder(searcher Searcher, opts ...BuilderOption) *Builder {
	b := &Builder{searcher: searcher, region: search.DefaultRegion, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs market, competitor, trend and opportunity lookups in that
// order. A failed lookup leaves its part of the bundle empty; Build fails
// only when every lookup failed.
func (b *Builder) Build(ctx context.Context, profile core.BusinessProfile) (*core.ResearchBundle, error) {
	industry, target := profile.BusinessSector, profile.TargetMarket
	region := profile.Area
	if strings.TrimSpace(region) == "" {
		region = b.region
	}

	lookups := []search.Lookup{
		b.searcher.MarketAnalysis(ctx, industry, target, region),
		b.searcher.CompetitorAnalysis(ctx, industry, target),
		b.searcher.TrendLookup(ctx, industry, target, ""),
		b.searcher.OpportunityLookup(ctx, industry, target),
	}

	var errs []error
	for _, l := range lookups {
		if l.Failed() {
			logger.Warn("Research lookup failed", "query", l.Query, "error", l.Error)
			errs = append(errs, fmt.Errorf("%s: %s", l.Query, l.Error))
		}
	}
	if len(errs) == len(lookups) {
		return nil, fmt.Errorf("%w: %w", ErrAllLookupsFailed, errors.Join(errs...))
	}

	market, competitors, trends, opportunities := lookups[0], lookups[1], lookups[2], lookups[3]
	seen := make(map[string]bool)

	bundle := &core.ResearchBundle{
		MarketSize:  extractMarketSize(market.Results),
		GeneratedAt: b.now(),
	}
	for _, r := range unique(competitors.Results, seen) {
		bundle.Competitors = append(bundle.Competitors, core.Competitor{
			Name:        StripHTML(r.Title),
			Description: StripHTML(r.Description),
		})
	}
	for _, r := range unique(trends.Results, seen) {
		bundle.Trends = append(bundle.Trends, core.Trend{Description: StripHTML(r.Description)})
	}
	for _, r := range unique(opportunities.Results, seen) {
		bundle.Opportunities = append(bundle.Opportunities, core.Opportunity{Description: StripHTML(r.Description)})
	}

	logger.Info("Research bundle built",
		"sector", industry,
		"trends", len(bundle.Trends),
		"competitors", len(bundle.Competitors),
		"opportunities", len(bundle.Opportunities),
		"market_size", bundle.MarketSize.Description != "")
	return bundle, nil
}

// unique drops results without a description and results whose URL was
// already used by an earlier part of the bundle.
func unique(results []search.WebResult, seen map[string]bool) []search.WebResult {
	var out []search.WebResult
	for _, r := range results {
		if strings.TrimSpace(r.Description) == "" {
			continue
		}
		if r.URL != "" && seen[r.URL] {
			continue
		}
		if r.URL != "" {
			seen[r.URL] = true
		}
		out = append(out, r)
	}
	return out
}

func extractMarketSize(results []search.WebResult) core.MarketSize {
	for _, r := range results {
		text := StripHTML(r.Description)
		if !figurePattern.MatchString(text) {
			continue
		}
		ms := core.MarketSize{Description: text}
		if m := valuePattern.FindStringSubmatch(text); m != nil {
			ms.Value = m[1]
		}
		if m := cagrPattern.FindStringSubmatch(text); m != nil {
			ms.CAGR = m[1]
		}
		return ms
	}
	return core.MarketSize{}
}

// StripHTML removes the highlight markup Brave puts in titles and snippets.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
