package handlers

import (
	"fmt"
	"os"

	"bizplan/internal/config"
	"bizplan/internal/core"
	"bizplan/internal/logger"
	"bizplan/internal/research"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewResearchCmd creates the research command
func NewResearchCmd() *cobra.Command {
	var (
		output string
		attach bool
		mock   bool
	)

	cmd := &cobra.Command{
		Use:   "research <profile.yaml>",
		Short: "Collect market research for a company profile",
		Long: `Run the market, competitor, trend and opportunity lookups for the
profile's sector and target market and print the assembled research as YAML.

With --attach the research is stored in the profile under perplexity_results,
so later generate runs blend it without searching again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			state, err := core.LoadState(args[0])
			if err != nil {
				return err
			}

			searcher, err := newSearcher(cfg, mock)
			if err != nil {
				return err
			}
			bundle, err := research.NewBuilder(searcher, research.WithRegion(cfg.Search.Brave.Region)).Build(cmd.Context(), state.BusinessProfile)
			if err != nil {
				return fmt.Errorf("research failed: %w", err)
			}
			logger.Info("Research collected",
				"trends", len(bundle.Trends),
				"competitors", len(bundle.Competitors),
				"opportunities", len(bundle.Opportunities))

			if attach {
				state.PerplexityResults = bundle
				if err := writeYAML(args[0], state); err != nil {
					return err
				}
				color.Green("✓ Ricerca salvata in %s", args[0])
				return nil
			}

			if output != "" {
				if err := writeYAML(output, bundle); err != nil {
					return err
				}
				color.Green("✓ Ricerca salvata in %s", output)
				return nil
			}

			return printYAML(bundle)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the research YAML to a file")
	cmd.Flags().BoolVar(&attach, "attach", false, "store the research in the profile file")
	cmd.Flags().BoolVar(&mock, "mock", false, "use canned offline results instead of Brave")

	return cmd
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
