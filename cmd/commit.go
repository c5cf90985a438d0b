package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/Teamial/devtrack/internal/gitops"
	"github.com/Teamial/devtrack/internal/journal"
	"github.com/Teamial/devtrack/internal/summary"
	"github.com/Teamial/devtrack/internal/tracker"
)

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit the workspace's current changes immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		defer func() { _ = log.Close() }()

		workDir, err := os.Getwd()
		if err != nil {
			return err
		}

		git := gitops.NewService(workDir, cfg.Branch, log)
		if err := git.EnsureRepoReady(cfg.RemoteURL); err != nil {
			return fmt.Errorf("preparing repository: %w", err)
		}

		changes, err := git.StatusChanges()
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			log.InfoToUser("Nothing to commit.")
			return nil
		}

		gen := summary.NewGenerator(workDir, cfg)
		metrics := tracker.Metrics{FileChangeEvents: len(changes)}
		message := gen.GenerateSummary(changes, metrics)

		if cfg.RequireConfirmation && term.IsTerminal(os.Stdin.Fd()) {
			c := &terminalConfirmer{log: log}
			if !c.Confirm(message) {
				log.InfoToUser("Commit cancelled.")
				return nil
			}
		}

		if err := git.CommitAndPush(message); err != nil {
			return err
		}

		if jrnl, jerr := journal.Open(); jerr == nil {
			if aerr := jrnl.Append(gen.BuildEntry(changes, metrics)); aerr != nil {
				log.Warning("Failed to record journal entry: %v", aerr)
			}
		}

		log.Success("Committed %d file(s)", len(changes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commitCmd)
}
