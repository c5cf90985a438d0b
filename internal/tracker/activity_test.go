package tracker

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests advance monitor time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMonitor(t *testing.T, settings MonitorSettings) (*Monitor, *fakeClock) {
	t.Helper()
	m := NewMonitor(settings, testLogger())
	clock := newFakeClock()
	m.now = clock.Now
	m.StartTracking()
	t.Cleanup(m.Stop)
	return m, clock
}

func TestMetricsIdempotentReads(t *testing.T) {
	m, clock := newTestMonitor(t, MonitorSettings{IdleTimeoutSeconds: 900})

	m.RecordActivity()
	clock.Advance(45 * time.Second)

	first := m.GetActivityMetrics()
	second := m.GetActivityMetrics()

	if first.ActiveTimeSeconds != 45 {
		t.Errorf("ActiveTimeSeconds = %v, want 45", first.ActiveTimeSeconds)
	}
	if first != second {
		t.Errorf("consecutive reads differ: %+v vs %+v", first, second)
	}
}

func TestNoDoubleCountingOnRepeatedActivity(t *testing.T) {
	m, clock := newTestMonitor(t, MonitorSettings{IdleTimeoutSeconds: 900})

	// Flapping activity signals must not open overlapping intervals.
	m.RecordActivity()
	clock.Advance(10 * time.Second)
	m.RecordActivity()
	m.RecordActivity()
	clock.Advance(10 * time.Second)

	got := m.GetActivityMetrics().ActiveTimeSeconds
	if got != 20 {
		t.Errorf("ActiveTimeSeconds = %v, want 20", got)
	}
}

func TestResetMetricsZeroesEverything(t *testing.T) {
	m, clock := newTestMonitor(t, MonitorSettings{IdleTimeoutSeconds: 900, TrackKeystrokes: true})

	m.RecordKeystroke()
	m.NoteFileChange()
	clock.Advance(30 * time.Second)

	m.ResetMetrics()
	got := m.GetActivityMetrics()

	if got.ActiveTimeSeconds != 0 {
		t.Errorf("ActiveTimeSeconds = %v, want 0", got.ActiveTimeSeconds)
	}
	if got.Keystrokes != 0 {
		t.Errorf("Keystrokes = %d, want 0", got.Keystrokes)
	}
	if got.FileChangeEvents != 0 {
		t.Errorf("FileChangeEvents = %d, want 0", got.FileChangeEvents)
	}
}

func TestResetKeepsOpenIntervalRunning(t *testing.T) {
	m, clock := newTestMonitor(t, MonitorSettings{IdleTimeoutSeconds: 900})

	m.RecordActivity()
	clock.Advance(100 * time.Second)
	m.ResetMetrics()
	clock.Advance(15 * time.Second)

	got := m.GetActivityMetrics().ActiveTimeSeconds
	if got != 15 {
		t.Errorf("ActiveTimeSeconds after reset = %v, want 15", got)
	}
}

func TestKeystrokesStayZeroWhenDisabled(t *testing.T) {
	m, _ := newTestMonitor(t, MonitorSettings{IdleTimeoutSeconds: 900, TrackKeystrokes: false})

	m.RecordKeystroke()
	m.RecordKeystroke()

	if got := m.GetActivityMetrics().Keystrokes; got != 0 {
		t.Errorf("Keystrokes = %d, want 0 with tracking disabled", got)
	}
}

func TestIdleTimeoutFoldsAndEmits(t *testing.T) {
	m, clock := newTestMonitor(t, MonitorSettings{IdleTimeoutSeconds: 900})

	var snaps []Snapshot
	var mu sync.Mutex
	m.SetEmit(func(s Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	})

	m.RecordActivity()
	clock.Advance(5 * time.Minute)

	// Drive the idle transition directly rather than waiting out the timer.
	m.onIdleTimeout()

	mu.Lock()
	defer mu.Unlock()
	if len(snaps) == 0 {
		t.Fatal("no snapshot emitted on idle transition")
	}
	last := snaps[len(snaps)-1]
	if !last.Idle {
		t.Error("idle transition snapshot not marked Idle")
	}
	if last.ActiveTimeSeconds != 300 {
		t.Errorf("folded ActiveTimeSeconds = %v, want 300", last.ActiveTimeSeconds)
	}

	// The clock is frozen while idle.
	clock.Advance(10 * time.Minute)
	if got := m.GetActivityMetrics().ActiveTimeSeconds; got != 300 {
		t.Errorf("ActiveTimeSeconds grew while idle: %v", got)
	}
}

func TestActivityResumesAfterIdle(t *testing.T) {
	m, clock := newTestMonitor(t, MonitorSettings{IdleTimeoutSeconds: 900})

	m.RecordActivity()
	clock.Advance(2 * time.Minute)
	m.onIdleTimeout()

	clock.Advance(30 * time.Minute)
	m.RecordActivity()
	clock.Advance(1 * time.Minute)

	if got := m.GetActivityMetrics().ActiveTimeSeconds; got != 180 {
		t.Errorf("ActiveTimeSeconds = %v, want 180 (2m before idle + 1m after)", got)
	}
}

func TestSnapshotThrottle(t *testing.T) {
	m, clock := newTestMonitor(t, MonitorSettings{IdleTimeoutSeconds: 900})

	var count int
	var mu sync.Mutex
	m.SetEmit(func(Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	m.RecordActivity() // first emit (throttle window starts open)
	clock.Advance(10 * time.Second)
	m.RecordActivity() // inside throttle window, suppressed
	clock.Advance(25 * time.Second)
	m.RecordActivity() // 35s since last emit, allowed

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("emitted %d snapshot(s), want 2", count)
	}
}

func TestStopTrackingFreezesClock(t *testing.T) {
	m, clock := newTestMonitor(t, MonitorSettings{IdleTimeoutSeconds: 900})

	m.RecordActivity()
	clock.Advance(50 * time.Second)
	m.StopTracking()
	clock.Advance(50 * time.Second)

	if got := m.GetActivityMetrics().ActiveTimeSeconds; got != 50 {
		t.Errorf("ActiveTimeSeconds = %v, want 50 after StopTracking", got)
	}

	// Activity while disabled is ignored entirely.
	m.RecordActivity()
	clock.Advance(10 * time.Second)
	if got := m.GetActivityMetrics().ActiveTimeSeconds; got != 50 {
		t.Errorf("ActiveTimeSeconds = %v, want 50 while tracking disabled", got)
	}
}
