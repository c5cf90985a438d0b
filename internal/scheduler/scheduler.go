// Package scheduler decides when accumulated changes become a commit.
// It owns the countdown to the next scheduled commit, reacts to activity
// snapshots for adaptive early commits and idle-pause, and runs the
// commit pipeline with at-most-one-in-flight semantics.
package scheduler

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Teamial/devtrack/internal/config"
	"github.com/Teamial/devtrack/internal/journal"
	"github.com/Teamial/devtrack/internal/logger"
	"github.com/Teamial/devtrack/internal/tracker"
)

const (
	// countdownTick drives the display refresh.
	countdownTick = time.Second

	// pauseGrace is how long the scheduler waits after detecting
	// prolonged inactivity before actually pausing.
	pauseGrace = 60 * time.Second

	// recentActivityWindow: a snapshot whose last activity is newer than
	// this cancels a pending or active pause.
	recentActivityWindow = 60 * time.Second

	// defaultRetryDelay spaces out a queued retry commit so further
	// debounce coalescing can settle first.
	defaultRetryDelay = 5 * time.Second

	// Triviality ceilings: a commit is skipped as too trivial only when
	// active time is under the configured minimum AND less than an hour
	// has passed AND fewer than this many files changed.
	trivialElapsedCeiling = time.Hour
	trivialFileCeiling    = 3

	// confirmMessageLimit truncates the confirmation prompt.
	confirmMessageLimit = 120
)

// Tracker is the scheduler's view of the activity tracker.
type Tracker interface {
	GetChangedFiles() []tracker.Change
	ClearChanges()
	GetActivityMetrics() tracker.Metrics
	ResetMetrics()
}

// GitService commits and pushes the workspace.
type GitService interface {
	CommitAndPush(message string) error
}

// Summarizer builds the commit message and the structured journal entry.
type Summarizer interface {
	GenerateSummary(changes []tracker.Change, m tracker.Metrics) string
	BuildEntry(changes []tracker.Change, m tracker.Metrics) journal.Entry
}

// JournalWriter persists one record per successful commit.
type JournalWriter interface {
	Append(e journal.Entry) error
}

// Confirmer asks the user to approve a commit. Cancel skips the cycle
// without clearing any state.
type Confirmer interface {
	Confirm(message string) bool
}

// DisplaySink receives countdown and state updates for whatever surface
// is showing them. All implementations must be non-blocking.
type DisplaySink interface {
	UpdateCountdown(remaining time.Duration)
	SetPaused(paused bool)
	Flash(message string)
}

// Options configure the scheduler.
type Options struct {
	CommitFrequency          time.Duration
	MinChangesForCommit      int
	MinActiveTime            time.Duration
	MaxIdleBeforePause       time.Duration
	EnableAdaptive           bool
	AdaptiveEarlyFraction    float64
	AdaptiveMinDistinctFiles int
	AdaptiveMinKeystrokes    int
	RetryDelay               time.Duration
}

// OptionsFromConfig maps the effective configuration onto Options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		CommitFrequency:          time.Duration(cfg.CommitFrequencyMinutes) * time.Minute,
		MinChangesForCommit:      cfg.MinChangesForCommit,
		MinActiveTime:            time.Duration(cfg.MinActiveTimeSeconds) * time.Second,
		MaxIdleBeforePause:       time.Duration(cfg.MaxIdleTimeSeconds) * time.Second,
		EnableAdaptive:           cfg.EnableAdaptiveScheduling,
		AdaptiveEarlyFraction:    cfg.AdaptiveEarlyCommitFraction,
		AdaptiveMinDistinctFiles: cfg.AdaptiveMinDistinctFiles,
		AdaptiveMinKeystrokes:    cfg.AdaptiveMinKeystrokes,
		RetryDelay:               defaultRetryDelay,
	}
}

// Deps are the scheduler's collaborators. Confirmer, Journal, and
// Display may be nil.
type Deps struct {
	Tracker Tracker
	Git     GitService
	Summary Summarizer
	Journal JournalWriter
	Confirm Confirmer
	Display DisplaySink
	Logger  logger.Logger
}

// Status is a snapshot of scheduler state for UI surfaces.
type Status struct {
	Running    bool
	Paused     bool
	Committing bool
	Remaining  time.Duration
	LastCommit time.Time
}

// Scheduler is the adaptive commit scheduler. One commit pipeline
// execution may be in flight at a time; a trigger arriving during one
// sets a single pending retry instead of executing concurrently.
type Scheduler struct {
	mu   sync.Mutex
	opts Options
	deps Deps
	log  logger.Logger
	now  func() time.Time

	running          bool
	committing       bool
	pendingRetry     bool
	paused           bool
	lastCommit       time.Time
	lastActivitySeen time.Time
	deadlineTarget   time.Time

	// Named timer handles. Stop is the single cancellation path for all
	// of them.
	deadlineTimer *time.Timer
	retryTimer    *time.Timer
	pauseTimer    *time.Timer
	tickStop      chan struct{}
}

// New creates a Scheduler. Call Start to arm the countdown.
func New(opts Options, deps Deps) *Scheduler {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	return &Scheduler{
		opts: opts,
		deps: deps,
		log:  deps.Logger,
		now:  time.Now,
	}
}

// Start arms the commit deadline and countdown tick and, when snapshots
// is non-nil, subscribes to the activity stream. The consumer goroutine
// exits when the snapshot channel closes.
func (s *Scheduler) Start(snapshots <-chan tracker.Snapshot) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.paused = false
	s.lastCommit = s.now()
	s.armDeadlineLocked(s.opts.CommitFrequency)
	s.startTickLocked()
	s.mu.Unlock()

	if snapshots != nil {
		go func() {
			for snap := range snapshots {
				s.HandleSnapshot(snap)
			}
		}()
	}
}

// Stop halts the scheduler and cancels every live timer: deadline,
// countdown tick, pause grace, and retry.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.paused = false
	s.pendingRetry = false
	if s.deadlineTimer != nil {
		s.deadlineTimer.Stop()
		s.deadlineTimer = nil
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	if s.pauseTimer != nil {
		s.pauseTimer.Stop()
		s.pauseTimer = nil
	}
	s.stopTickLocked()
	s.deadlineTarget = time.Time{}
}

// HandleSnapshot reacts to one activity snapshot: resume from pause,
// arm or cancel the idle-pause grace timer, and evaluate the adaptive
// early-commit conditions.
func (s *Scheduler) HandleSnapshot(snap tracker.Snapshot) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	now := s.now()
	if !snap.LastActive.IsZero() {
		s.lastActivitySeen = snap.LastActive
	}
	recentlyActive := !snap.LastActive.IsZero() && now.Sub(snap.LastActive) < recentActivityWindow

	var resumed bool
	if s.paused {
		if recentlyActive {
			// Resume with a full fresh interval; the deadline was
			// suspended while paused.
			s.paused = false
			s.armDeadlineLocked(s.opts.CommitFrequency)
			s.startTickLocked()
			resumed = true
		}
	} else {
		idleFor := now.Sub(snap.LastActive)
		switch {
		case snap.LastActive.IsZero():
			// No activity recorded yet; nothing to pause over.
		case idleFor > s.opts.MaxIdleBeforePause && s.pauseTimer == nil:
			s.pauseTimer = time.AfterFunc(pauseGrace, s.onPauseGrace)
		case snap.Idle && s.pauseTimer == nil:
			// The idle transition is the monitor's last snapshot; nothing
			// more arrives while the user stays away, so the pause check
			// must be scheduled for when the idle budget runs out.
			s.pauseTimer = time.AfterFunc(s.opts.MaxIdleBeforePause-idleFor+pauseGrace, s.onPauseGrace)
		case recentlyActive && s.pauseTimer != nil:
			s.pauseTimer.Stop()
			s.pauseTimer = nil
		}
	}

	trigger := s.adaptiveTriggerLocked(snap, now)
	s.mu.Unlock()

	if resumed {
		s.setPaused(false)
	}
	if trigger {
		s.commitChanges("adaptive")
	}
}

// adaptiveTriggerLocked evaluates the early-commit conditions. A nonzero
// keystroke count below the threshold is treated as noise (e.g.
// formatter-driven saves); a zero count is not penalized since keystroke
// tracking may be off.
func (s *Scheduler) adaptiveTriggerLocked(snap tracker.Snapshot, now time.Time) bool {
	if !s.opts.EnableAdaptive || s.committing || s.paused {
		return false
	}
	elapsed := now.Sub(s.lastCommit)
	threshold := time.Duration(float64(s.opts.CommitFrequency) * s.opts.AdaptiveEarlyFraction)
	if elapsed <= threshold {
		return false
	}
	if len(s.deps.Tracker.GetChangedFiles()) < s.opts.AdaptiveMinDistinctFiles {
		return false
	}
	if snap.ActiveTimeSeconds <= s.opts.MinActiveTime.Seconds() {
		return false
	}
	if snap.Keystrokes > 0 && snap.Keystrokes < s.opts.AdaptiveMinKeystrokes {
		return false
	}
	return true
}

// onPauseGrace fires after the grace period; if the workspace is still
// idle it enters paused-for-inactivity, suspending the deadline timer
// and countdown until activity resumes.
func (s *Scheduler) onPauseGrace() {
	s.mu.Lock()
	s.pauseTimer = nil
	if !s.running || s.paused {
		s.mu.Unlock()
		return
	}

	stillIdle := s.lastActivitySeen.IsZero() ||
		s.now().Sub(s.lastActivitySeen) > s.opts.MaxIdleBeforePause
	if !stillIdle {
		s.mu.Unlock()
		return
	}

	s.paused = true
	if s.deadlineTimer != nil {
		s.deadlineTimer.Stop()
		s.deadlineTimer = nil
	}
	s.deadlineTarget = time.Time{}
	s.stopTickLocked()
	s.mu.Unlock()

	s.log.Info("Pausing commit countdown due to inactivity")
	s.setPaused(true)
}

// onDeadline fires when the commit interval elapses.
func (s *Scheduler) onDeadline() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}
	s.commitChanges("scheduled")
}

// CommitNow triggers a manual commit. It cancels the pending deadline
// first but still goes through the same mutual-exclusion and triviality
// checks as a scheduled commit.
func (s *Scheduler) CommitNow() error {
	s.mu.Lock()
	if s.deadlineTimer != nil {
		s.deadlineTimer.Stop()
	}
	s.mu.Unlock()
	return s.commitChanges("manual")
}

// UpdateFrequency changes the commit interval. When running, the
// deadline restarts with the full new interval.
func (s *Scheduler) UpdateFrequency(minutes int) {
	if minutes < 1 {
		minutes = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.CommitFrequency = time.Duration(minutes) * time.Minute
	if s.running && !s.paused {
		s.armDeadlineLocked(s.opts.CommitFrequency)
	}
}

// Status returns the current scheduler state for display surfaces.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:    s.running,
		Paused:     s.paused,
		Committing: s.committing,
		LastCommit: s.lastCommit,
	}
	if !s.deadlineTarget.IsZero() {
		if r := s.deadlineTarget.Sub(s.now()); r > 0 {
			st.Remaining = r
		}
	}
	return st
}

// commitChanges runs one commit pipeline cycle. It is mutually exclusive
// via the committing flag: a trigger arriving mid-flight records a
// single pending retry that fires after RetryDelay.
func (s *Scheduler) commitChanges(trigger string) error {
	s.mu.Lock()
	if s.committing {
		s.pendingRetry = true
		s.mu.Unlock()
		s.log.Info("Commit already in flight; queued retry (%s)", trigger)
		return nil
	}
	s.committing = true
	lastCommit := s.lastCommit
	s.mu.Unlock()

	commitErr := s.runPipeline(trigger, lastCommit)

	// Finalize: always re-arm the deadline and drain at most one retry.
	s.mu.Lock()
	s.committing = false
	if s.running && !s.paused {
		s.armDeadlineLocked(s.opts.CommitFrequency)
	}
	retry := s.pendingRetry
	s.pendingRetry = false
	if retry {
		if s.retryTimer != nil {
			s.retryTimer.Stop()
		}
		s.retryTimer = time.AfterFunc(s.opts.RetryDelay, func() {
			_ = s.commitChanges("retry")
		})
	}
	s.mu.Unlock()

	return commitErr
}

// runPipeline performs the actual commit work. On failure or user
// cancel, buffer and metrics are preserved so the next cycle retries
// with the accumulated change-set.
func (s *Scheduler) runPipeline(trigger string, lastCommit time.Time) error {
	changes := s.deps.Tracker.GetChangedFiles()
	if len(changes) == 0 {
		s.log.Info("No changes to commit (%s)", trigger)
		return nil
	}
	if len(changes) < s.opts.MinChangesForCommit {
		s.log.Info("Only %d change(s), below minimum of %d; skipping", len(changes), s.opts.MinChangesForCommit)
		return nil
	}

	metrics := s.deps.Tracker.GetActivityMetrics()
	elapsed := s.now().Sub(lastCommit)
	if metrics.ActiveTimeSeconds < s.opts.MinActiveTime.Seconds() &&
		elapsed < trivialElapsedCeiling &&
		len(changes) < trivialFileCeiling {
		s.log.Info("Skipping trivial cycle: %.0fs active, %d file(s), %s since last commit",
			metrics.ActiveTimeSeconds, len(changes), elapsed.Round(time.Second))
		return nil
	}

	message := s.deps.Summary.GenerateSummary(changes, metrics)

	if s.deps.Confirm != nil && !s.deps.Confirm.Confirm(condense(message)) {
		// User cancel: skip the cycle, keep buffer and metrics.
		s.log.Info("Commit cancelled by user")
		s.flash("Commit skipped")
		return nil
	}

	entry := s.deps.Summary.BuildEntry(changes, metrics)

	if err := s.deps.Git.CommitAndPush(message); err != nil {
		s.log.Error("Commit failed (%s): %v", trigger, err)
		s.flash("Commit failed: " + err.Error())
		return err
	}

	if s.deps.Journal != nil {
		if err := s.deps.Journal.Append(entry); err != nil {
			s.log.Warning("Failed to record journal entry: %v", err)
		}
	}

	s.deps.Tracker.ClearChanges()
	s.deps.Tracker.ResetMetrics()

	s.mu.Lock()
	s.lastCommit = s.now()
	s.mu.Unlock()

	s.log.Success("Committed %d file(s) (%s)", len(changes), trigger)
	s.flash("Committed " + condense(message))
	return nil
}

// armDeadlineLocked (re)starts the hard commit deadline.
func (s *Scheduler) armDeadlineLocked(d time.Duration) {
	s.deadlineTarget = s.now().Add(d)
	if s.deadlineTimer != nil {
		s.deadlineTimer.Stop()
	}
	s.deadlineTimer = time.AfterFunc(d, s.onDeadline)
}

// startTickLocked runs the 1-second countdown display tick.
func (s *Scheduler) startTickLocked() {
	if s.tickStop != nil || s.deps.Display == nil {
		return
	}
	stop := make(chan struct{})
	s.tickStop = stop

	go func() {
		ticker := time.NewTicker(countdownTick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				target := s.deadlineTarget
				now := s.now()
				s.mu.Unlock()
				if target.IsZero() {
					continue
				}
				remaining := target.Sub(now)
				if remaining < 0 {
					remaining = 0
				}
				s.deps.Display.UpdateCountdown(remaining)
			}
		}
	}()
}

func (s *Scheduler) stopTickLocked() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
}

func (s *Scheduler) flash(message string) {
	if s.deps.Display != nil {
		s.deps.Display.Flash(message)
	}
}

func (s *Scheduler) setPaused(paused bool) {
	if s.deps.Display != nil {
		s.deps.Display.SetPaused(paused)
	}
}

// condense reduces a commit message to a single truncated line for
// prompts and flashes. Truncation happens on rune boundaries.
func condense(message string) string {
	line := message
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if utf8.RuneCountInString(line) > confirmMessageLimit {
		line = string([]rune(line)[:confirmMessageLimit-1]) + "…"
	}
	return line
}
