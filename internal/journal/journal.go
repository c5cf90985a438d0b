// Package journal persists one structured JSON record per successful
// commit, appended to a JSON-lines file in the XDG data directory.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoJournal is returned by readers when no journal file exists yet.
var ErrNoJournal = errors.New("no commit journal")

// Entry is the record appended for each successful commit.
type Entry struct {
	Version    int       `json:"version"`
	ID         string    `json:"id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	ChangeType string    `json:"changeType"`
	Activity   Activity  `json:"activity"`
	Files      FileStats `json:"files"`
}

// Activity is the metrics block of an Entry. Keystrokes is omitted when
// keystroke tracking is disabled.
type Activity struct {
	ActiveTimeSeconds float64 `json:"activeTimeSeconds"`
	FileChangeEvents  int     `json:"fileChangeEvents"`
	Keystrokes        *int    `json:"keystrokes,omitempty"`
}

// FileStats is the file detail block of an Entry. Extensions and
// RelativePaths are present only at sufficient privacy levels.
type FileStats struct {
	TotalChangedFiles int      `json:"totalChangedFiles"`
	Extensions        []string `json:"extensions,omitempty"`
	RelativePaths     []string `json:"relativePaths,omitempty"`
}

// Journal is an append-only commit log on disk.
type Journal struct {
	path string
}

// Open returns the Journal in the XDG data directory, creating the
// directory if needed. Path: $XDG_DATA_HOME/devtrack/journal.jsonl or
// ~/.local/share/devtrack/journal.jsonl.
func Open() (*Journal, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Journal{path: filepath.Join(dir, "journal.jsonl")}, nil
}

// OpenAt returns a Journal backed by an explicit file path.
func OpenAt(path string) *Journal {
	return &Journal{path: path}
}

func dataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "devtrack"), nil
}

// Append writes one entry as a single JSON line. Records are immutable
// once written, so O_APPEND suffices; no rewrite-and-rename needed.
func (j *Journal) Append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// ReadAll returns every entry in the journal, oldest first. Lines that
// fail to parse are skipped rather than failing the read.
func (j *Journal) ReadAll() ([]Entry, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoJournal
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

// Tail returns the most recent n entries, oldest first.
func (j *Journal) Tail(n int) ([]Entry, error) {
	entries, err := j.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	return j.path
}
