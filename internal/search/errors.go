package search

import "errors"

var (
	// ErrMissingAPIKey is returned when a required API key is not provided
	ErrMissingAPIKey = errors.New("API key is required")

	// ErrUnsupportedProvider is returned when an unsupported provider type is specified
	ErrUnsupportedProvider = errors.New("unsupported search provider")

	// ErrNoResults is returned when a search returns no results
	ErrNoResults = errors.New("no search results found")

	// ErrAuthentication is returned for rejected credentials (HTTP 401). Never retried.
	ErrAuthentication = errors.New("authentication failed")

	// ErrValidation is returned for malformed requests (HTTP 422). Never retried.
	ErrValidation = errors.New("invalid request")

	// ErrRateLimited is returned when rate limits are exceeded after all retries
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTransport covers network failures, timeouts, unexpected statuses and undecodable bodies
	ErrTransport = errors.New("search transport error")
)
