package handlers

import (
	"fmt"

	"bizplan/internal/cache"
	"bizplan/internal/config"
	"bizplan/internal/credentials"
	"bizplan/internal/logger"
	"bizplan/internal/research"
	"bizplan/internal/search"
	"bizplan/internal/section"
	"bizplan/internal/states"
	"bizplan/internal/store"
)

// searchCache opens the persistent Brave result cache.
func searchCache(cfg *config.Config) *cache.FileCache {
	return cache.NewFileCache(cfg.Cache.SearchCachePath(),
		cache.WithFileTTL(cfg.Cache.SearchTTLDuration()))
}

// braveCredentials resolves the Brave key from the environment, the config
// file, then the secrets file.
func braveCredentials(cfg *config.Config) *credentials.Chain {
	return credentials.NewChain(
		credentials.NewEnvProvider(config.BraveEnvKeys...),
		credentials.NewConfigProvider("search.brave.api_key", nil),
		credentials.NewSecretsFileProvider(cfg.Secrets.File, config.BraveEnvKeys...),
	).WithValidator(config.IsValidAPIKey)
}

func braveDefaults(cfg *config.Config) search.Options {
	opts := search.DefaultOptions()
	b := cfg.Search.Brave
	opts.Lang = firstNonEmpty(b.Language, opts.Lang)
	opts.Country = firstNonEmpty(b.Country, opts.Country)
	opts.SafeSearch = firstNonEmpty(b.SafeSearch, opts.SafeSearch)
	return opts
}

func braveOptions(cfg *config.Config) []search.BraveOption {
	opts := []search.BraveOption{
		search.WithTimeout(cfg.Search.Brave.TimeoutDuration()),
		search.WithMaxRetries(cfg.Search.Brave.MaxRetries),
		search.WithDefaults(braveDefaults(cfg)),
		search.WithCache(searchCache(cfg)),
	}
	if cfg.Search.Brave.BaseURL != "" {
		opts = append(opts, search.WithBaseURL(cfg.Search.Brave.BaseURL))
	}
	return opts
}

func resolveBraveKey(cfg *config.Config) (string, error) {
	apiKey, source, err := braveCredentials(cfg).Resolve()
	if err != nil {
		return "", fmt.Errorf("%w: %v", search.ErrMissingAPIKey, err)
	}
	logger.Debug("Brave API key resolved", "source", source)
	return apiKey, nil
}

// newBraveClient builds a cached Brave client from configuration.
func newBraveClient(cfg *config.Config) (*search.BraveClient, error) {
	apiKey, err := resolveBraveKey(cfg)
	if err != nil {
		return nil, err
	}
	return search.NewBraveClient(apiKey, braveOptions(cfg)...)
}

// newProvider creates a search provider through the provider factory.
func newProvider(cfg *config.Config, providerType search.ProviderType) (search.Provider, error) {
	params := map[string]string{}
	if providerType == search.ProviderTypeBrave {
		apiKey, err := resolveBraveKey(cfg)
		if err != nil {
			return nil, err
		}
		params["api_key"] = apiKey
	}
	return search.NewProviderFactory(braveOptions(cfg)...).CreateProvider(providerType, params)
}

// newSearcher returns the lookups research is built from. Mock mode works
// offline from canned results.
func newSearcher(cfg *config.Config, mock bool) (research.Searcher, error) {
	if mock {
		provider, err := newProvider(cfg, search.ProviderTypeMock)
		if err != nil {
			return nil, err
		}
		return search.NewProviderLookups(provider, search.Config{
			Language: cfg.Search.Brave.Language,
			Country:  cfg.Search.Brave.Country,
		}), nil
	}
	return newBraveClient(cfg)
}

// newUsageStore opens the usage database, or returns nil when tracking is off.
func newUsageStore(cfg *config.Config) (*store.Store, error) {
	if !cfg.Usage.Enabled {
		return nil, nil
	}
	return store.NewStore(cfg.Usage.DatabasePath(cfg.App.DataDir), cfg.Usage.MaxGenerationsPerSession)
}

// stateStore opens the saved-state directory.
func stateStore(cfg *config.Config) *states.Store {
	return states.NewStore(cfg.States.Path(cfg.App.DataDir))
}

type generatorSetup struct {
	apiKey string
	mock   bool
}

// newSectionGenerator wires a section generator. Research is only built when
// auto research is on, and a missing Brave key then only disables it.
func newSectionGenerator(cfg *config.Config, setup generatorSetup, usage *store.Store) *section.Generator {
	chain := section.CredentialsFrom(cfg)
	if setup.apiKey != "" {
		chain = chain.Prepend(credentials.StaticProvider{Label: "flag(--api-key)", Value: setup.apiKey})
	}

	opts := []section.Option{section.WithCredentials(chain)}
	if builder := researchBuilder(cfg, setup.mock); builder != nil {
		opts = append(opts, section.WithResearchBuilder(builder))
	}
	if usage != nil {
		opts = append(opts, section.WithUsageRecorder(usage))
	}
	return section.New(section.ConfigFrom(cfg), opts...)
}

// researchBuilder returns the auto research builder, or nil when auto
// research is off or no searcher can be built.
func researchBuilder(cfg *config.Config, mock bool) section.ResearchBuilder {
	if !cfg.Section.AutoResearch {
		return nil
	}
	searcher, err := newSearcher(cfg, mock)
	if err != nil {
		logger.Warn("Market research unavailable", "error", err.Error())
		return nil
	}
	return research.NewBuilder(searcher, research.WithRegion(cfg.Search.Brave.Region))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
