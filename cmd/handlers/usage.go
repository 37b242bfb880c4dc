package handlers

import (
	"errors"
	"fmt"
	"sort"

	"bizplan/internal/config"
	"bizplan/internal/logger"
	"bizplan/internal/store"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewUsageCmd creates the usage command
func NewUsageCmd() *cobra.Command {
	var (
		all   bool
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "usage [session-id]",
		Short: "Show or reset per-session generation usage",
		Long: `Show how many sections a session has generated against the configured
limit. With --all every tracked session is listed; with --reset the session's
counters are cleared.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("a session ID is required unless --all is set")
			}

			cfg := config.Get()
			usage, err := newUsageStore(cfg)
			if err != nil {
				return fmt.Errorf("failed to open usage database: %w", err)
			}
			if usage == nil {
				color.Yellow("Usage tracking is disabled (usage.enabled=false).")
				return nil
			}
			defer func() {
				if err := usage.Close(); err != nil {
					logger.Error("Failed to close usage database", err)
				}
			}()

			if all {
				return printAllUsage(usage)
			}

			sessionID := args[0]
			if reset {
				if err := usage.Reset(sessionID); err != nil {
					return err
				}
				color.Green("✓ Usage reset for %s", sessionID)
				return nil
			}

			stats, err := usage.Stats(sessionID)
			if err != nil {
				return err
			}
			printUsage(stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "list every tracked session")
	cmd.Flags().BoolVar(&reset, "reset", false, "reset the session's counters")

	return cmd
}

func printUsage(s *store.UsageStats) {
	fmt.Printf("Session:     %s\n", color.CyanString(s.SessionID))
	fmt.Printf("Generations: %d\n", s.TotalGenerations)
	fmt.Printf("Tokens:      ~%d\n", s.EstimatedTokens)
	fmt.Printf("First seen:  %s\n", s.FirstAccess.Format("2006-01-02 15:04"))
	fmt.Printf("Last seen:   %s\n", s.LastAccess.Format("2006-01-02 15:04"))
	printUsageLine(s)
}

func printUsageLine(s *store.UsageStats) {
	if s.Limit <= 0 {
		fmt.Printf("Usage: %d generations (no limit)\n", s.TotalGenerations)
		return
	}
	line := fmt.Sprintf("Usage: %d/%d generations (%.0f%%), %d remaining",
		s.TotalGenerations, s.Limit, s.PercentageUsed, s.Remaining)
	switch {
	case s.Remaining == 0:
		color.Red("%s", line)
	case s.PercentageUsed >= 80:
		color.Yellow("%s", line)
	default:
		fmt.Println(line)
	}
}

func printAllUsage(usage *store.Store) error {
	sessions, err := usage.All()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions tracked yet.")
		return nil
	}

	fmt.Printf("%-38s %6s %10s  %s\n", "SESSION", "GEN", "TOKENS", "LAST ACCESS")
	for _, s := range sessions {
		fmt.Printf("%-38s %6d %10d  %s\n", s.SessionID, s.GenerationsCount, s.EstimatedTokens,
			s.LastAccess.Format("2006-01-02 15:04"))
		dates := make([]string, 0, len(s.GenerationsByDate))
		for d := range s.GenerationsByDate {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		for _, d := range dates {
			fmt.Printf("  %s %s\n", color.HiBlackString(d), color.HiBlackString("%d", s.GenerationsByDate[d]))
		}
	}
	return nil
}
