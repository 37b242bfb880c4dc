package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"bizplan/internal/config"
	"bizplan/internal/search"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	var (
		provider string
		count    int
		since    time.Duration
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a web search",
		Long: `Run a single web search. Brave responses are cached on disk for the
configured TTL, so repeating a query does not spend API quota.

Examples:
  bizplan search "mercato software gestionale PMI"
  bizplan search "startup fintech Milano" --count 5 --since 720h
  bizplan search "ristorazione Bologna" --provider mock`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			cfg := config.Get()

			p, err := newProvider(cfg, search.ProviderType(provider))
			if err != nil {
				return err
			}

			results, err := p.Search(cmd.Context(), query, search.Config{
				MaxResults: count,
				SinceTime:  since,
				Language:   cfg.Search.Brave.Language,
				Country:    cfg.Search.Brave.Country,
			})
			switch {
			case errors.Is(err, search.ErrNoResults):
				results = nil
			case search.IsRetryable(err):
				return fmt.Errorf("search failed, try again later: %w", err)
			case err != nil:
				return fmt.Errorf("search failed: %w", err)
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(results)
			}
			printResults(p.GetName(), query, results)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", string(search.ProviderTypeBrave),
		fmt.Sprintf("search provider %v", search.NewProviderFactory().GetAvailableProviders()))
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of results (max 20)")
	cmd.Flags().DurationVar(&since, "since", 0, "only results newer than this (e.g. 24h, 168h, 720h)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print results as JSON")

	return cmd
}

func printResults(providerName, query string, results []search.Result) {
	fmt.Printf("🔍 %s  %s\n", color.CyanString(query),
		color.HiBlackString("(%s, %d risultati)", providerName, len(results)))
	if len(results) == 0 {
		color.Yellow("Nessun risultato.")
		return
	}
	for _, r := range results {
		fmt.Printf("\n%d. %s  %s\n", r.Rank, color.New(color.Bold).Sprint(r.Title), color.HiBlackString("%s", r.Domain))
		fmt.Printf("   %s\n", color.BlueString(r.URL))
		if r.Snippet != "" {
			fmt.Printf("   %s\n", r.Snippet)
		}
	}
}
