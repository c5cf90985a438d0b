package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Teamial/devtrack/internal/journal"
)

var flagStatusCount int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration and recent commit history",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Configuration:")
		fmt.Printf("  Commit interval:     %dm\n", cfg.CommitFrequencyMinutes)
		fmt.Printf("  Adaptive scheduling: %t\n", cfg.EnableAdaptiveScheduling)
		fmt.Printf("  Min active time:     %ds\n", cfg.MinActiveTimeSeconds)
		fmt.Printf("  Idle pause after:    %ds\n", cfg.MaxIdleTimeSeconds)
		fmt.Printf("  Debounce window:     %dms\n", cfg.DebounceMs)
		fmt.Printf("  Privacy level:       %s\n", cfg.PrivacyLevel)
		if len(cfg.ExcludePatterns) > 0 {
			fmt.Printf("  Exclude patterns:    %s\n", strings.Join(cfg.ExcludePatterns, ", "))
		}
		if cfg.RemoteURL != "" {
			fmt.Printf("  Remote:              %s\n", cfg.RemoteURL)
		}

		jrnl, err := journal.Open()
		if err != nil {
			return err
		}
		entries, err := jrnl.Tail(flagStatusCount)
		if err != nil {
			if errors.Is(err, journal.ErrNoJournal) {
				fmt.Println("\nNo commits recorded yet.")
				return nil
			}
			return err
		}

		fmt.Printf("\nRecent commits (%d):\n", len(entries))
		for _, e := range entries {
			active := time.Duration(e.Activity.ActiveTimeSeconds * float64(time.Second)).Round(time.Second)
			fmt.Printf("  %s  %-7s  %3d file(s)  %s active\n",
				e.Timestamp.Format("2006-01-02 15:04"),
				e.ChangeType,
				e.Files.TotalChangedFiles,
				active,
			)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVarP(&flagStatusCount, "count", "n", 10, "Number of journal entries to show")
	rootCmd.AddCommand(statusCmd)
}
