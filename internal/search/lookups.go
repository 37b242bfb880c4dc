package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultRegion is used by market lookups when no region is given.
const DefaultRegion = "Italia"

// Lookup is the outcome of a convenience query. Error is empty on success.
type Lookup struct {
	Query   string      `json:"query"`
	Results []WebResult `json:"results"`
	Error   string      `json:"error,omitempty"`
}

// Failed reports whether the lookup returned an error payload.
func (l Lookup) Failed() bool { return l.Error != "" }

func newLookup(query string, results []WebResult, errMsg string) Lookup {
	if len(results) > LookupResultCount {
		results = results[:LookupResultCount]
	}
	if results == nil {
		results = []WebResult{}
	}
	return Lookup{Query: query, Results: results, Error: errMsg}
}

// MarketQuery builds the market statistics query.
func MarketQuery(industry, targetMarket, region string) string {
	if strings.TrimSpace(region) == "" {
		region = DefaultRegion
	}
	return fmt.Sprintf("analisi mercato %s %s %s statistiche recenti", industry, targetMarket, region)
}

// CompetitorQuery builds the competitor landscape query.
func CompetitorQuery(industry, targetMarket string) string {
	return fmt.Sprintf("concorrenti aziende %s %s analisi SWOT", industry, targetMarket)
}

// TrendQuery builds the yearly trend query. An empty year means the current one.
func TrendQuery(industry, targetMarket, year string) string {
	if strings.TrimSpace(year) == "" {
		year = strconv.Itoa(time.Now().Year())
	}
	return fmt.Sprintf("tendenze mercato %s %s %s trend principali", industry, targetMarket, year)
}

// OpportunityQuery builds the market gap query.
func OpportunityQuery(industry, targetMarket string) string {
	return fmt.Sprintf("opportunità di mercato %s %s gap di mercato", industry, targetMarket)
}

// ProviderLookups runs the convenience lookups against any Provider, so
// research can be assembled offline from the mock provider.
type ProviderLookups struct {
	provider Provider
	config   Config
}

// NewProviderLookups wraps p. Zero MaxResults asks for LookupResultCount.
func NewProviderLookups(p Provider, config Config) *ProviderLookups {
	if config.MaxResults <= 0 {
		config.MaxResults = LookupResultCount
	}
	return &ProviderLookups{provider: p, config: config}
}

func (l *ProviderLookups) lookup(ctx context.Context, query string) Lookup {
	results, err := l.provider.Search(ctx, query, l.config)
	if err != nil {
		return newLookup(query, nil, err.Error())
	}
	web := make([]WebResult, 0, len(results))
	for _, r := range results {
		web = append(web, WebResult{Title: r.Title, URL: r.URL, Description: r.Snippet})
	}
	return newLookup(query, web, "")
}

// MarketAnalysis searches market statistics.
func (l *ProviderLookups) MarketAnalysis(ctx context.Context, industry, targetMarket, region string) Lookup {
	return l.lookup(ctx, MarketQuery(industry, targetMarket, region))
}

// CompetitorAnalysis searches competitors.
func (l *ProviderLookups) CompetitorAnalysis(ctx context.Context, industry, targetMarket string) Lookup {
	return l.lookup(ctx, CompetitorQuery(industry, targetMarket))
}

// TrendLookup searches trends.
func (l *ProviderLookups) TrendLookup(ctx context.Context, industry, targetMarket, year string) Lookup {
	return l.lookup(ctx, TrendQuery(industry, targetMarket, year))
}

// OpportunityLookup searches market gaps.
func (l *ProviderLookups) OpportunityLookup(ctx context.Context, industry, targetMarket string) Lookup {
	return l.lookup(ctx, OpportunityQuery(industry, targetMarket))
}
