package search

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider implements Provider for testing and offline dry runs.
// It is safe for concurrent use.
type MockProvider struct {
	mu      sync.Mutex
	name    string
	results []Result
	err     error
	calls   []string
}

// NewMockProvider creates a new mock search provider
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name: "Mock",
		results: []Result{
			{
				URL:     "https://example.com/mercato-software-pmi",
				Title:   "Mercato del software per PMI",
				Snippet: "Il mercato italiano del software per PMI vale 4,2 miliardi di euro con un CAGR del 7%.",
				Domain:  "example.com",
				Source:  "Mock",
				Rank:    1,
			},
			{
				URL:     "https://test.org/tendenze-ai",
				Title:   "Tendenze AI 2025",
				Snippet: "Automazione dei processi e assistenti generativi guidano la domanda.",
				Domain:  "test.org",
				Source:  "Mock",
				Rank:    2,
			},
			{
				URL:     "https://demo.net/concorrenti",
				Title:   "Concorrenti principali",
				Snippet: "Tre operatori nazionali coprono il 40% del segmento.",
				Domain:  "demo.net",
				Source:  "Mock",
				Rank:    3,
			},
		},
	}
}

// GetName returns the name of this provider
func (m *MockProvider) GetName() string {
	return m.name
}

// Search returns mock search results
func (m *MockProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, query)
	if m.err != nil {
		return nil, m.err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if len(m.results) == 0 {
		return nil, ErrNoResults
	}

	maxResults := config.MaxResults
	if maxResults <= 0 || maxResults > len(m.results) {
		maxResults = len(m.results)
	}

	results := make([]Result, maxResults)
	copy(results, m.results[:maxResults])
	return results, nil
}

// SetResults replaces the canned results; an empty slice makes Search
// report ErrNoResults.
func (m *MockProvider) SetResults(results []Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = results
}

// SetError makes every subsequent Search fail with err
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the queries received so far
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
