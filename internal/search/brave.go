package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bizplan/internal/logger"
)

const (
	// DefaultBraveBaseURL is the Brave Search API root.
	DefaultBraveBaseURL = "https://api.search.brave.com/res/v1"
	// DefaultMaxRetries is the total number of attempts made while rate limited.
	DefaultMaxRetries = 4
	// DefaultTimeout bounds every HTTP request.
	DefaultTimeout = 30 * time.Second
	// LookupResultCount is how many results each convenience lookup asks for.
	LookupResultCount = 15
)

const (
	msgUnauthorized  = "401 Unauthorized - invalid or disabled API key"
	msgUnprocessable = "422 Unprocessable Entity - invalid query parameters"
	msgRetryExceeded = "429 Too Many Requests - retry limit exceeded"
)

// Options tunes a single Brave search request. Zero fields take the
// client's defaults.
type Options struct {
	Count        int
	Lang         string
	Country      string
	SafeSearch   string // off, moderate, strict
	Freshness    string // pd, pw, pm, py or a YYYY-MM-DDtoYYYY-MM-DD range
	ResultFilter string // e.g. "web,news"
	Summary      *bool
}

// DefaultOptions mirrors the Italian market focus of the generator.
func DefaultOptions() Options {
	return Options{
		Count:      10,
		Lang:       "it",
		Country:    "IT",
		SafeSearch: "moderate",
	}
}

func (o Options) withDefaults(d Options) Options {
	if o.Count <= 0 {
		o.Count = d.Count
	}
	if o.Lang == "" {
		o.Lang = d.Lang
	}
	if o.Country == "" {
		o.Country = d.Country
	}
	if o.SafeSearch == "" {
		o.SafeSearch = d.SafeSearch
	}
	return o
}

// CacheKey builds the composite key for query and every tuning parameter,
// so distinct parameter combinations never collide.
func CacheKey(query string, o Options) string {
	summary := "None"
	if o.Summary != nil {
		summary = strconv.FormatBool(*o.Summary)
	}
	freshness, filter := o.Freshness, o.ResultFilter
	if freshness == "" {
		freshness = "None"
	}
	if filter == "" {
		filter = "None"
	}
	return strings.Join([]string{
		query, strconv.Itoa(o.Count), o.Lang, o.Country, o.SafeSearch, freshness, filter, summary,
	}, "|")
}

// WebResult is one entry of web.results.
type WebResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Description   string   `json:"description"`
	Age           string   `json:"age,omitempty"`
	PageAge       string   `json:"page_age,omitempty"`
	Language      string   `json:"language,omitempty"`
	ExtraSnippets []string `json:"extra_snippets,omitempty"`
}

// WebResults is the web section of a Brave response.
type WebResults struct {
	Type    string      `json:"type,omitempty"`
	Results []WebResult `json:"results"`
}

// QueryInfo echoes how Brave interpreted the query.
type QueryInfo struct {
	Original string `json:"original"`
	Altered  string `json:"altered,omitempty"`
}

// Response is the parsed search payload. On failure Error is set, Results
// is an empty list and Web is empty.
type Response struct {
	Type    string      `json:"type,omitempty"`
	Query   *QueryInfo  `json:"query,omitempty"`
	Web     WebResults  `json:"web"`
	Error   string      `json:"error,omitempty"`
	Results []WebResult `json:"results,omitempty"`

	err error
}

// Err returns the failure as an error wrapping one of the package sentinels,
// or nil on success.
func (r Response) Err() error {
	if r.Error == "" {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return fmt.Errorf("%w: %s", ErrTransport, r.Error)
}

// WebResults returns web.results, or nil when the response is an error.
func (r Response) WebResults() []WebResult {
	return r.Web.Results
}

func errorResponse(kind error, msg string) Response {
	return Response{
		Error:   msg,
		Results: []WebResult{},
		err:     fmt.Errorf("%w: %s", kind, msg),
	}
}

// ResultCache is the persistence the client needs; *cache.FileCache satisfies it.
type ResultCache interface {
	GetInto(key string, dst any) bool
	Set(key string, value any) error
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// BraveClient queries the Brave web search API with caching and backoff.
type BraveClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      ResultCache
	maxRetries int
	sleep      Sleeper
	defaults   Options
}

// BraveOption configures a BraveClient.
type BraveOption func(*BraveClient)

// WithBaseURL points the client at another API root (tests use httptest).
func WithBaseURL(u string) BraveOption {
	return func(c *BraveClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) BraveOption {
	return func(c *BraveClient) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) BraveOption {
	return func(c *BraveClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithCache enables result caching.
func WithCache(rc ResultCache) BraveOption {
	return func(c *BraveClient) { c.cache = rc }
}

// WithMaxRetries sets the total number of attempts while rate limited.
func WithMaxRetries(n int) BraveOption {
	return func(c *BraveClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(s Sleeper) BraveOption {
	return func(c *BraveClient) { c.sleep = s }
}

// WithDefaults sets the options applied to zero request fields.
func WithDefaults(o Options) BraveOption {
	return func(c *BraveClient) { c.defaults = o.withDefaults(DefaultOptions()) }
}

// NewBraveClient creates a client; an empty API key is rejected.
func NewBraveClient(apiKey string, opts ...BraveOption) (*BraveClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("brave search: %w (set BRAVE_SEARCH_API_KEY)", ErrMissingAPIKey)
	}
	c := &BraveClient{
		apiKey:     apiKey,
		baseURL:    DefaultBraveBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		sleep:      sleepContext,
		defaults:   DefaultOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search runs query against Brave. It never returns an error value: failures
// are reported in Response.Error with an empty result list.
func (c *BraveClient) Search(ctx context.Context, query string, opts Options) Response {
	opts = opts.withDefaults(c.defaults)
	key := CacheKey(query, opts)

	if c.cache != nil {
		var cached Response
		if c.cache.GetInto(key, &cached) {
			logger.Debug("Brave search cache hit", "query", query)
			return cached
		}
	}

	endpoint := c.baseURL + "/web/search?" + buildParams(query, opts).Encode()

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		status, body, err := c.get(ctx, endpoint)
		if err != nil {
			logger.Error("Brave search request failed", err, "query", query)
			return errorResponse(ErrTransport, err.Error())
		}

		switch {
		case status >= 200 && status < 300:
			var parsed Response
			if err := json.Unmarshal(body, &parsed); err != nil {
				logger.Error("Brave search returned an undecodable body", err, "query", query)
				return errorResponse(ErrTransport, fmt.Sprintf("invalid response body: %v", err))
			}
			if c.cache != nil {
				if err := c.cache.Set(key, json.RawMessage(body)); err != nil {
					logger.Warn("Failed to persist search result", "query", query, "error", err.Error())
				}
			}
			logger.Info("Brave search completed", "query", query, "results_found", len(parsed.Web.Results))
			return parsed

		case status == http.StatusUnauthorized:
			logger.Warn("Brave search rejected credentials", "status", status)
			return errorResponse(ErrAuthentication, msgUnauthorized)

		case status == http.StatusUnprocessableEntity:
			logger.Warn("Brave search rejected query parameters", "status", status, "query", query)
			return errorResponse(ErrValidation, msgUnprocessable)

		case status == http.StatusTooManyRequests:
			if attempt == c.maxRetries-1 {
				continue
			}
			delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			logger.Warn("Brave search rate limited, backing off", "attempt", attempt+1, "delay", delay.String())
			if err := c.sleep(ctx, delay); err != nil {
				return errorResponse(ErrTransport, err.Error())
			}

		default:
			msg := fmt.Sprintf("%d %s", status, http.StatusText(status))
			logger.Warn("Brave search failed", "status", status, "query", query)
			return errorResponse(ErrTransport, msg)
		}
	}

	logger.Warn("Brave search retry limit exceeded", "query", query, "attempts", c.maxRetries)
	return errorResponse(ErrRateLimited, msgRetryExceeded)
}

func (c *BraveClient) get(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create Brave request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute Brave request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read Brave response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func buildParams(query string, o Options) url.Values {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(o.Count))
	params.Set("search_lang", o.Lang)
	params.Set("country", o.Country)
	params.Set("safesearch", o.SafeSearch)
	if o.Freshness != "" {
		params.Set("freshness", o.Freshness)
	}
	if o.ResultFilter != "" {
		params.Set("result_filter", o.ResultFilter)
	}
	if o.Summary != nil {
		params.Set("summary", strconv.FormatBool(*o.Summary))
	}
	return params
}

func (c *BraveClient) lookup(ctx context.Context, query string) Lookup {
	resp := c.Search(ctx, query, Options{Count: LookupResultCount})
	return newLookup(query, resp.Web.Results, resp.Error)
}

// MarketAnalysis searches market statistics for an industry and target market.
func (c *BraveClient) MarketAnalysis(ctx context.Context, industry, targetMarket, region string) Lookup {
	return c.lookup(ctx, MarketQuery(industry, targetMarket, region))
}

// CompetitorAnalysis searches competitors active in an industry.
func (c *BraveClient) CompetitorAnalysis(ctx context.Context, industry, targetMarket string) Lookup {
	return c.lookup(ctx, CompetitorQuery(industry, targetMarket))
}

// TrendLookup searches market trends for a year (current year when empty).
func (c *BraveClient) TrendLookup(ctx context.Context, industry, targetMarket, year string) Lookup {
	return c.lookup(ctx, TrendQuery(industry, targetMarket, year))
}

// OpportunityLookup searches market gaps and opportunities.
func (c *BraveClient) OpportunityLookup(ctx context.Context, industry, targetMarket string) Lookup {
	return c.lookup(ctx, OpportunityQuery(industry, targetMarket))
}

// BraveProvider adapts BraveClient to Provider.
type BraveProvider struct {
	client *BraveClient
}

// NewBraveProvider wraps client.
func NewBraveProvider(client *BraveClient) *BraveProvider {
	return &BraveProvider{client: client}
}

// GetName returns the name of this provider
func (p *BraveProvider) GetName() string { return "Brave Search" }

// Search performs a search and converts the results.
func (p *BraveProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	resp := p.client.Search(ctx, query, Options{
		Count:     config.MaxResults,
		Lang:      config.Language,
		Country:   config.Country,
		Freshness: freshnessFor(config.SinceTime),
	})
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if len(resp.Web.Results) == 0 {
		return nil, ErrNoResults
	}

	results := make([]Result, 0, len(resp.Web.Results))
	for i, r := range resp.Web.Results {
		results = append(results, Result{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Description,
			Domain:  extractDomain(r.URL),
			Source:  "Brave",
			Rank:    i + 1,
		})
	}
	return results, nil
}

// freshnessFor maps a look-back window onto Brave's freshness buckets.
func freshnessFor(since time.Duration) string {
	if since <= 0 {
		return ""
	}
	days := int(since.Hours() / 24)
	switch {
	case days <= 1:
		return "pd"
	case days <= 7:
		return "pw"
	case days <= 31:
		return "pm"
	default:
		return "py"
	}
}

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransport)
}
