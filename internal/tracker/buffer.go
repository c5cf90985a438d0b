package tracker

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"

	"github.com/Teamial/devtrack/internal/logger"
)

// internalDataDir is devtrack's own tracking directory. Events under it
// are always dropped, regardless of other filter settings.
const internalDataDir = ".devtrack"

// defaultIgnoredSegments are directory names excluded when
// UseDefaultIgnores is on: dependency and build output trees that churn
// without representing developer work.
var defaultIgnoredSegments = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	"dist":         {},
	"build":        {},
	"out":          {},
	"target":       {},
	"__pycache__":  {},
	".next":        {},
	"coverage":     {},
}

// BufferSettings are the recognized Change Buffer options.
type BufferSettings struct {
	DebounceMs        int
	ExcludePatterns   []string
	FileExtensions    []string // allow-list; empty disables extension filtering
	UseDefaultIgnores bool
}

// pendingChange is a coalesced event waiting out its debounce window.
type pendingChange struct {
	kind      ChangeKind
	timestamp time.Time
	timer     *time.Timer
}

// Buffer maintains the deduplicated, filtered, debounced set of changes
// since the last commit. Raw fsnotify events for the same path within the
// debounce window are coalesced into one record via the merge policy.
type Buffer struct {
	mu          sync.Mutex
	workDir     string
	log         logger.Logger
	settings    BufferSettings
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	initialized bool
	stopped     bool
	changes     map[string]Change
	pending     map[string]*pendingChange

	// onChange fires after a debounced change lands in the buffer.
	onChange func(Change)
}

// NewBuffer creates a Buffer for workDir. Call Init to start watching.
func NewBuffer(workDir string, settings BufferSettings, log logger.Logger) *Buffer {
	b := &Buffer{
		workDir: workDir,
		log:     log,
		changes: make(map[string]Change),
		pending: make(map[string]*pendingChange),
	}
	b.applySettingsLocked(settings)
	return b
}

// SetOnChange registers the debounced-change callback. Must be called
// before Init.
func (b *Buffer) SetOnChange(fn func(Change)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Init starts the recursive filesystem watcher. On failure the buffer is
// marked uninitialized; the next incoming event retries lazily.
func (b *Buffer) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initLocked()
}

func (b *Buffer) initLocked() error {
	if b.initialized || b.stopped {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		b.log.Error("Failed to create filesystem watcher: %v", err)
		return err
	}

	// Walk the tree and watch every non-ignored directory. New
	// subdirectories are added as Create events arrive.
	walkErr := filepath.WalkDir(b.workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		if path != b.workDir && b.skipDirLocked(d.Name()) {
			return fs.SkipDir
		}
		return watcher.Add(path)
	})
	if walkErr != nil {
		b.log.Error("Failed to watch %s: %v", b.workDir, walkErr)
		_ = watcher.Close()
		return walkErr
	}

	b.watcher = watcher
	b.initialized = true
	go b.eventLoop(watcher)
	return nil
}

// eventLoop drains watcher events until the watcher is closed.
func (b *Buffer) eventLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			b.handleFsEvent(watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Watcher errors are non-fatal; log and keep watching.
			b.log.Warning("Watcher error: %v", err)
		}
	}
}

func (b *Buffer) handleFsEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	now := time.Now()

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !b.dirExcluded(event.Name) {
				_ = watcher.Add(event.Name)
			}
			return
		}
		b.HandleEvent(event.Name, KindAdded, now)

	case event.Has(fsnotify.Write):
		b.HandleEvent(event.Name, KindChanged, now)

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		b.HandleEvent(event.Name, KindDeleted, now)
	}
}

// HandleEvent feeds one raw change event into the debounce stage. Events
// arriving while the watcher is uninitialized trigger a lazy
// re-initialization attempt and are themselves dropped.
func (b *Buffer) HandleEvent(path string, kind ChangeKind, ts time.Time) {
	b.mu.Lock()

	if b.stopped {
		b.mu.Unlock()
		return
	}
	if !b.initialized {
		if err := b.initLocked(); err != nil {
			b.log.Warning("Watcher re-initialization failed: %v", err)
		}
		b.mu.Unlock()
		return
	}
	if b.excludedLocked(path) {
		b.mu.Unlock()
		return
	}

	if p, ok := b.pending[path]; ok {
		p.kind = mergeKinds(p.kind, kind)
		p.timestamp = ts
		p.timer.Reset(b.debounce)
		b.mu.Unlock()
		return
	}

	p := &pendingChange{kind: kind, timestamp: ts}
	p.timer = time.AfterFunc(b.debounce, func() { b.flush(path) })
	b.pending[path] = p
	b.mu.Unlock()
}

// flush moves a debounced pending change into the buffer, computing
// best-effort file metrics and firing the change notification.
func (b *Buffer) flush(path string) {
	b.mu.Lock()

	p, ok := b.pending[path]
	delete(b.pending, path)
	if !ok || b.stopped {
		b.mu.Unlock()
		return
	}

	kind := p.kind
	if existing, ok := b.changes[path]; ok {
		kind = mergeKinds(existing.Kind, p.kind)
	}

	change := Change{
		Path:      path,
		Kind:      kind,
		Timestamp: p.timestamp,
	}
	if kind != KindDeleted {
		change.LineCount, change.CharCount = fileMetrics(path)
	}
	b.changes[path] = change

	cb := b.onChange
	b.mu.Unlock()

	if cb != nil {
		cb(change)
	}
}

// fileMetrics returns best-effort line and character counts for path.
// Unreadable files yield zeros, not an error.
func fileMetrics(path string) (lines, chars int) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0
	}
	chars = utf8.RuneCount(data)
	lines = bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		lines++
	}
	return lines, chars
}

// GetChangedFiles returns a snapshot of the buffered changes ordered by
// event time. The buffer is not cleared.
func (b *Buffer) GetChangedFiles() []Change {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Change, 0, len(b.changes))
	for _, c := range b.changes {
		out = append(out, c)
	}
	sortChanges(out)
	return out
}

// ClearChanges empties the buffer. Called after a successful commit.
func (b *Buffer) ClearChanges() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = make(map[string]Change)
}

// UpdateExcludePatterns replaces the exclusion glob patterns.
func (b *Buffer) UpdateExcludePatterns(patterns []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings.ExcludePatterns = append([]string(nil), patterns...)
}

// ApplySettings replaces the buffer configuration. Pending debounce
// windows keep their previously armed duration.
func (b *Buffer) ApplySettings(settings BufferSettings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applySettingsLocked(settings)
}

func (b *Buffer) applySettingsLocked(settings BufferSettings) {
	ms := settings.DebounceMs
	if ms < 0 {
		ms = 0
	}
	if ms > 10000 {
		ms = 10000
	}
	settings.DebounceMs = ms
	b.settings = settings
	b.debounce = time.Duration(ms) * time.Millisecond
}

// Stop cancels every pending debounce timer and closes the watcher.
func (b *Buffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	for path, p := range b.pending {
		p.timer.Stop()
		delete(b.pending, path)
	}
	if b.watcher != nil {
		_ = b.watcher.Close()
		b.watcher = nil
	}
	b.initialized = false
}

// excludedLocked applies the full filter chain to an event path.
func (b *Buffer) excludedLocked(path string) bool {
	rel := path
	if r, err := filepath.Rel(b.workDir, path); err == nil {
		rel = r
	}

	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg == internalDataDir {
			return true
		}
		if b.settings.UseDefaultIgnores {
			if _, ok := defaultIgnoredSegments[seg]; ok {
				return true
			}
		}
	}

	base := filepath.Base(path)
	for _, pattern := range b.settings.ExcludePatterns {
		// Malformed patterns simply never match.
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
	}

	if len(b.settings.FileExtensions) > 0 {
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		allowed := false
		for _, e := range b.settings.FileExtensions {
			if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
				allowed = true
				break
			}
		}
		if !allowed {
			return true
		}
	}

	return false
}

// dirExcluded reports whether a directory should not be watched.
func (b *Buffer) dirExcluded(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.skipDirLocked(filepath.Base(path))
}

func (b *Buffer) skipDirLocked(name string) bool {
	if name == internalDataDir {
		return true
	}
	if !b.settings.UseDefaultIgnores {
		return false
	}
	_, ok := defaultIgnoredSegments[name]
	return ok
}

// sortChanges orders by timestamp, breaking ties by path.
func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Timestamp.Equal(changes[j].Timestamp) {
			return changes[i].Path < changes[j].Path
		}
		return changes[i].Timestamp.Before(changes[j].Timestamp)
	})
}
