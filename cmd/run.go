package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/Teamial/devtrack/internal/gitops"
	"github.com/Teamial/devtrack/internal/journal"
	"github.com/Teamial/devtrack/internal/logger"
	"github.com/Teamial/devtrack/internal/scheduler"
	"github.com/Teamial/devtrack/internal/summary"
	"github.com/Teamial/devtrack/internal/tracker"
	"github.com/Teamial/devtrack/internal/tui"
)

var flagNoUI bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the workspace and commit on the adaptive schedule",
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

		jrnl, err := journal.Open()
		if err != nil {
			log.Warning("Commit journal unavailable: %v", err)
		}

		trk := tracker.New(workDir, cfg, log)
		gen := summary.NewGenerator(workDir, cfg)

		interactive := term.IsTerminal(os.Stdin.Fd()) && !flagNoUI

		deps := scheduler.Deps{
			Tracker: trk,
			Git:     git,
			Summary: gen,
			Logger:  log,
		}
		if jrnl != nil {
			deps.Journal = jrnl
		}

		if interactive {
			return runWithUI(workDir, trk, deps, log)
		}
		return runHeadless(trk, deps, log)
	},
}

// runWithUI drives the scheduler under the live status view; the view is
// also the scheduler's display sink and the commit-now trigger.
func runWithUI(workDir string, trk *tracker.Tracker, deps scheduler.Deps, log logger.Logger) error {
	var sched *scheduler.Scheduler

	model := tui.NewModel(workDir, trk, func() {
		if sched != nil {
			_ = sched.CommitNow()
		}
	})
	p := tea.NewProgram(model)
	deps.Display = tui.NewSink(p)

	if cfg.RequireConfirmation {
		// The status view owns the terminal; confirmation falls back to
		// auto-approve with a visible flash instead of a prompt.
		log.Info("Confirmation prompts are disabled while the status view is active")
	}

	sched = scheduler.New(scheduler.OptionsFromConfig(cfg), deps)
	trk.Start()
	sched.Start(trk.Snapshots())

	_, err := p.Run()

	sched.Stop()
	trk.Stop()
	return err
}

// runHeadless drives the scheduler with log output only, until SIGINT or
// SIGTERM.
func runHeadless(trk *tracker.Tracker, deps scheduler.Deps, log logger.Logger) error {
	if cfg.RequireConfirmation && term.IsTerminal(os.Stdin.Fd()) {
		deps.Confirm = &terminalConfirmer{log: log}
	}
	deps.Display = &logSink{log: log}

	sched := scheduler.New(scheduler.OptionsFromConfig(cfg), deps)
	trk.Start()
	sched.Start(trk.Snapshots())

	log.StatusMessage("devtrack running (interval: %dm). Press Ctrl+C to stop.", cfg.CommitFrequencyMinutes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.StatusMessage("Shutting down...")
	sched.Stop()
	trk.Stop()
	return nil
}

// logSink is the headless display sink: state changes and flashes go to
// the log, countdown ticks are dropped.
type logSink struct {
	log logger.Logger
}

func (s *logSink) UpdateCountdown(time.Duration) {}

func (s *logSink) SetPaused(paused bool) {
	if paused {
		s.log.StatusMessage("Paused (idle). Commit countdown will resume on activity.")
	} else {
		s.log.StatusMessage("Activity detected, countdown resumed.")
	}
}

func (s *logSink) Flash(message string) {
	s.log.StatusMessage("%s", message)
}

// terminalConfirmer asks a yes/no question on the controlling terminal.
type terminalConfirmer struct {
	log logger.Logger
}

func (c *terminalConfirmer) Confirm(message string) bool {
	fmt.Printf("%s\nCommit now? [Y/n] ", message)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y" || answer == "yes"
}

func init() {
	runCmd.Flags().BoolVar(&flagNoUI, "no-ui", false, "Disable the live status view")
	rootCmd.AddCommand(runCmd)
}
