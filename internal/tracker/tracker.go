// Package tracker watches a workspace and accumulates the change-set and
// activity state the scheduler commits from. It pairs a debounced Change
// Buffer over fsnotify with an Activity Monitor whose snapshots are
// fanned out through a Broker.
package tracker

import (
	"time"

	"github.com/Teamial/devtrack/internal/config"
	"github.com/Teamial/devtrack/internal/logger"
)

// Tracker owns one workspace's Change Buffer and Activity Monitor.
type Tracker struct {
	workDir string
	log     logger.Logger
	buffer  *Buffer
	monitor *Monitor
	broker  *Broker
}

// New creates a Tracker for workDir from the effective configuration.
// Call Start to begin watching.
func New(workDir string, cfg config.Config, log logger.Logger) *Tracker {
	t := &Tracker{
		workDir: workDir,
		log:     log,
		broker:  NewBroker(),
	}

	t.buffer = NewBuffer(workDir, BufferSettings{
		DebounceMs:        cfg.DebounceMs,
		ExcludePatterns:   cfg.ExcludePatterns,
		FileExtensions:    cfg.FileExtensions,
		UseDefaultIgnores: cfg.UseDefaultIgnores,
	}, log)

	t.monitor = NewMonitor(MonitorSettings{
		IdleTimeoutSeconds: cfg.IdleTimeoutSeconds,
		TrackKeystrokes:    cfg.TrackKeystrokes,
	}, log)

	// Debounced file changes count as activity and feed the event counter.
	t.buffer.SetOnChange(func(Change) { t.monitor.NoteFileChange() })
	t.monitor.SetEmit(t.broker.Publish)

	return t
}

// Start enables activity tracking and initializes the watcher. A watcher
// failure is logged, not fatal: the buffer retries lazily on the next
// event fed to it.
func (t *Tracker) Start() {
	t.monitor.StartTracking()
	if err := t.buffer.Init(); err != nil {
		t.log.Warning("File watcher unavailable, will retry on demand: %v", err)
	}
}

// Stop tears down the watcher, debounce timers, idle timer, and the
// snapshot broker.
func (t *Tracker) Stop() {
	t.buffer.Stop()
	t.monitor.Stop()
	t.broker.Close()
}

// Snapshots returns a subscription to the activity snapshot stream.
func (t *Tracker) Snapshots() <-chan Snapshot {
	return t.broker.Subscribe()
}

// GetChangedFiles returns the buffered change-set, oldest first.
func (t *Tracker) GetChangedFiles() []Change {
	return t.buffer.GetChangedFiles()
}

// ClearChanges empties the change buffer after a successful commit.
func (t *Tracker) ClearChanges() {
	t.buffer.ClearChanges()
}

// GetActivityMetrics returns the current activity metrics.
func (t *Tracker) GetActivityMetrics() Metrics {
	return t.monitor.GetActivityMetrics()
}

// ResetMetrics zeroes the activity metrics after a successful commit.
func (t *Tracker) ResetMetrics() {
	t.monitor.ResetMetrics()
}

// RecordActivity forwards an external user-activity signal (editor
// focus, selection, TUI interaction) to the monitor.
func (t *Tracker) RecordActivity() {
	t.monitor.RecordActivity()
}

// RecordKeystroke forwards a keystroke signal to the monitor. The live
// status view calls this for every keypress; external integrations may
// call it directly.
func (t *Tracker) RecordKeystroke() {
	t.monitor.RecordKeystroke()
}

// UpdateExcludePatterns replaces the buffer's exclusion globs.
func (t *Tracker) UpdateExcludePatterns(patterns []string) {
	t.buffer.UpdateExcludePatterns(patterns)
}

// ApplySettings pushes updated tracking configuration to the buffer.
func (t *Tracker) ApplySettings(cfg config.Config) {
	t.buffer.ApplySettings(BufferSettings{
		DebounceMs:        cfg.DebounceMs,
		ExcludePatterns:   cfg.ExcludePatterns,
		FileExtensions:    cfg.FileExtensions,
		UseDefaultIgnores: cfg.UseDefaultIgnores,
	})
}

// WorkDir returns the tracked workspace root.
func (t *Tracker) WorkDir() string {
	return t.workDir
}

// HandleEvent injects a raw change event, bypassing fsnotify. Used by
// integrations that already know about a change.
func (t *Tracker) HandleEvent(path string, kind ChangeKind, ts time.Time) {
	t.buffer.HandleEvent(path, kind, ts)
}
