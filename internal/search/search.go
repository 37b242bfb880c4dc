package search

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Provider defines the unified interface for search providers
type Provider interface {
	// Search performs a search with configuration
	Search(ctx context.Context, query string, config Config) ([]Result, error)

	// GetName returns the name of the search provider
	GetName() string
}

// Config holds configuration for search requests
type Config struct {
	MaxResults int           // Maximum number of results to return
	SinceTime  time.Duration // Only return results newer than this duration
	Language   string        // Language preference (e.g., "it", "en")
	Country    string        // Country preference (e.g., "IT")
}

// Result represents a unified search result
type Result struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Snippet     string    `json:"snippet"`
	Domain      string    `json:"domain"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Source      string    `json:"source"` // Provider-specific source identifier
	Rank        int       `json:"rank"`   // Position in search results
}

// ProviderType represents the type of search provider
type ProviderType string

const (
	ProviderTypeBrave ProviderType = "brave"
	ProviderTypeMock  ProviderType = "mock"
)

// ProviderFactory creates search providers based on type and configuration
type ProviderFactory struct {
	braveOptions []BraveOption
}

// NewProviderFactory creates a new provider factory. Options are applied to
// every Brave client it creates.
func NewProviderFactory(opts ...BraveOption) *ProviderFactory {
	return &ProviderFactory{braveOptions: opts}
}

// CreateProvider creates a search provider of the specified type
func (f *ProviderFactory) CreateProvider(providerType ProviderType, config map[string]string) (Provider, error) {
	switch providerType {
	case ProviderTypeBrave:
		apiKey, exists := config["api_key"]
		if !exists || apiKey == "" {
			return nil, ErrMissingAPIKey
		}
		client, err := NewBraveClient(apiKey, f.braveOptions...)
		if err != nil {
			return nil, err
		}
		return NewBraveProvider(client), nil
	case ProviderTypeMock:
		return NewMockProvider(), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}

// GetAvailableProviders returns a list of available provider types
func (f *ProviderFactory) GetAvailableProviders() []ProviderType {
	return []ProviderType{
		ProviderTypeBrave,
		ProviderTypeMock,
	}
}

// extractDomain extracts the domain name from a URL
func extractDomain(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
