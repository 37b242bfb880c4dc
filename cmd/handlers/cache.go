package handlers

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"bizplan/internal/config"
	"bizplan/internal/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache management command
func NewCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the search result cache",
		Long:  `Inspect and clear the on-disk cache of Brave Search responses.`,
	}

	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheClearCmd())

	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics and storage information",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runCacheStats(); err != nil {
				logger.Error("Failed to get cache stats", err)
				os.Exit(1)
			}
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the cache (removes all cached search responses)",
		Run: func(cmd *cobra.Command, args []string) {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if err := runCacheClear(confirm); err != nil {
				logger.Error("Failed to clear cache", err)
				os.Exit(1)
			}
		},
	}

	clearCmd.Flags().Bool("confirm", false, "Skip confirmation prompt")
	return clearCmd
}

func runCacheStats() error {
	c := searchCache(config.Get())

	fmt.Println("📊 Cache Statistics")
	fmt.Println("==================")
	fmt.Printf("File:    %s\n", c.Path())
	fmt.Printf("Entries: %d\n", c.Len())
	fmt.Printf("Size:    %s\n", formatBytes(c.Size()))
	fmt.Printf("TTL:     %s\n", c.TTL())
	return nil
}

func runCacheClear(confirm bool) error {
	c := searchCache(config.Get())

	if !confirm {
		fmt.Printf("This will remove %d cached search responses from %s.\n", c.Len(), c.Path())
		fmt.Print("Continue? [y/N]: ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("Cache clear cancelled.")
			return nil
		}
	}

	if err := c.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	color.Green("✓ Cache cleared")
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
