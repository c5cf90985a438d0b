package tracker

import (
	"sync"
	"time"

	"github.com/Teamial/devtrack/internal/logger"
)

// snapshotThrottle is the minimum spacing between snapshots emitted for
// sustained activity. The idle transition always emits regardless.
const snapshotThrottle = 30 * time.Second

// Metrics is a point-in-time readout of accumulated activity.
type Metrics struct {
	ActiveTimeSeconds float64
	FileChangeEvents  int
	Keystrokes        int
	LastActive        time.Time
}

// Snapshot is an activity reading published to subscribers. Idle is true
// when the snapshot marks the transition into the idle state.
type Snapshot struct {
	Metrics
	Idle bool
	Time time.Time
}

// MonitorSettings are the recognized Activity Monitor options.
type MonitorSettings struct {
	IdleTimeoutSeconds int
	TrackKeystrokes    bool
}

// Monitor accumulates active time and activity counters independent of
// raw file events. The active clock runs only while an interval is open;
// the idle timeout closes the interval and folds it into the accumulator.
type Monitor struct {
	mu              sync.Mutex
	log             logger.Logger
	now             func() time.Time
	idleTimeout     time.Duration
	trackKeystrokes bool

	tracking      bool
	accumulated   float64   // seconds from closed active intervals
	intervalStart time.Time // zero when no interval is open
	keystrokes    int
	fileEvents    int
	lastActive    time.Time

	idleTimer *time.Timer
	lastEmit  time.Time
	emit      func(Snapshot)
}

// NewMonitor creates a Monitor. Call StartTracking to enable it.
func NewMonitor(settings MonitorSettings, log logger.Logger) *Monitor {
	secs := settings.IdleTimeoutSeconds
	if secs < 60 {
		secs = 60
	}
	if secs > 86400 {
		secs = 86400
	}
	return &Monitor{
		log:             log,
		now:             time.Now,
		idleTimeout:     time.Duration(secs) * time.Second,
		trackKeystrokes: settings.TrackKeystrokes,
	}
}

// SetEmit registers the snapshot callback. Must be set before tracking
// starts; the callback runs outside the monitor lock.
func (m *Monitor) SetEmit(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit = fn
}

// StartTracking enables activity accumulation.
func (m *Monitor) StartTracking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracking = true
}

// StopTracking disables accumulation, folding any open interval and
// cancelling the idle timer.
func (m *Monitor) StopTracking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.foldIntervalLocked(m.now())
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	m.tracking = false
}

// RecordActivity registers a qualifying user activity signal: a text
// edit, focus change, selection change, or similar.
func (m *Monitor) RecordActivity() {
	m.touch(0, false)
}

// RecordKeystroke registers a keystroke. When keystroke tracking is
// disabled the counter stays at zero but the signal still counts as
// activity.
func (m *Monitor) RecordKeystroke() {
	m.touch(1, false)
}

// NoteFileChange registers a debounced file change landing in the
// buffer. It increments the file-change counter and counts as activity.
func (m *Monitor) NoteFileChange() {
	m.touch(0, true)
}

// touch is the shared path for all qualifying activity: it opens the
// active interval if needed, postpones the idle timeout, and emits a
// throttled snapshot.
func (m *Monitor) touch(keystrokes int, fileEvent bool) {
	m.mu.Lock()
	if !m.tracking {
		m.mu.Unlock()
		return
	}

	now := m.now()
	m.lastActive = now
	if fileEvent {
		m.fileEvents++
	}
	if keystrokes > 0 && m.trackKeystrokes {
		m.keystrokes += keystrokes
	}

	// Opening while already open is a no-op; only the idle timeout moves.
	if m.intervalStart.IsZero() {
		m.intervalStart = now
	}
	if m.idleTimer == nil {
		m.idleTimer = time.AfterFunc(m.idleTimeout, m.onIdleTimeout)
	} else {
		m.idleTimer.Reset(m.idleTimeout)
	}

	var snap *Snapshot
	if m.emit != nil && now.Sub(m.lastEmit) >= snapshotThrottle {
		m.lastEmit = now
		s := m.snapshotLocked(now, false)
		snap = &s
	}
	emit := m.emit
	m.mu.Unlock()

	if snap != nil && emit != nil {
		emit(*snap)
	}
}

// onIdleTimeout stops the active clock and publishes the idle transition.
func (m *Monitor) onIdleTimeout() {
	m.mu.Lock()
	if !m.tracking || m.intervalStart.IsZero() {
		m.mu.Unlock()
		return
	}

	now := m.now()
	m.foldIntervalLocked(now)

	var snap *Snapshot
	if m.emit != nil {
		m.lastEmit = now
		s := m.snapshotLocked(now, true)
		snap = &s
	}
	emit := m.emit
	m.mu.Unlock()

	if snap != nil && emit != nil {
		emit(*snap)
	}
}

// foldIntervalLocked closes the open interval into the accumulator.
func (m *Monitor) foldIntervalLocked(now time.Time) {
	if m.intervalStart.IsZero() {
		return
	}
	m.accumulated += now.Sub(m.intervalStart).Seconds()
	m.intervalStart = time.Time{}
}

// GetActivityMetrics returns the current metrics including any
// in-progress active interval. It does not mutate state.
func (m *Monitor) GetActivityMetrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(m.now(), false).Metrics
}

func (m *Monitor) snapshotLocked(now time.Time, idle bool) Snapshot {
	active := m.accumulated
	if !m.intervalStart.IsZero() {
		active += now.Sub(m.intervalStart).Seconds()
	}
	return Snapshot{
		Metrics: Metrics{
			ActiveTimeSeconds: active,
			FileChangeEvents:  m.fileEvents,
			Keystrokes:        m.keystrokes,
			LastActive:        m.lastActive,
		},
		Idle: idle,
		Time: now,
	}
}

// ResetMetrics zeroes the accumulator and counters. Called only after a
// successful commit. An in-progress interval restarts from now.
func (m *Monitor) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accumulated = 0
	m.keystrokes = 0
	m.fileEvents = 0
	if !m.intervalStart.IsZero() {
		m.intervalStart = m.now()
	}
}

// Stop cancels the idle timer. The monitor is unusable afterwards.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}
	m.tracking = false
}
