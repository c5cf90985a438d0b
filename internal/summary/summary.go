// Package summary turns a change-set and activity metrics into a
// human-readable commit message and a structured journal entry.
package summary

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Teamial/devtrack/internal/config"
	"github.com/Teamial/devtrack/internal/journal"
	"github.com/Teamial/devtrack/internal/tracker"
)

// maxListedFiles bounds the file list in the commit message body.
const maxListedFiles = 10

// Generator builds summaries and journal entries according to the
// configured privacy settings.
type Generator struct {
	WorkDir         string
	Privacy         config.PrivacyLevel
	TrackKeystrokes bool

	now func() time.Time
}

// NewGenerator creates a Generator for workDir.
func NewGenerator(workDir string, cfg config.Config) *Generator {
	return &Generator{
		WorkDir:         workDir,
		Privacy:         cfg.PrivacyLevel,
		TrackKeystrokes: cfg.TrackKeystrokes,
		now:             time.Now,
	}
}

// GenerateSummary renders the commit message: a one-line subject with
// per-kind counts and active time, followed by a short file list.
func (g *Generator) GenerateSummary(changes []tracker.Change, m tracker.Metrics) string {
	added, changed, deleted := kindCounts(changes)

	var parts []string
	if added > 0 {
		parts = append(parts, fmt.Sprintf("%d added", added))
	}
	if changed > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", changed))
	}
	if deleted > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", deleted))
	}
	detail := strings.Join(parts, ", ")
	if detail == "" {
		detail = "no file changes"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "DevTrack: %s (%s)\n", pluralFiles(len(changes)), detail)
	fmt.Fprintf(&sb, "\nActive time: %s\n", formatActive(m.ActiveTimeSeconds))

	listed := changes
	if len(listed) > maxListedFiles {
		listed = listed[:maxListedFiles]
	}
	if len(listed) > 0 {
		sb.WriteString("\n")
		for _, c := range listed {
			fmt.Fprintf(&sb, "- %s %s\n", verbFor(c.Kind), g.relPath(c.Path))
		}
		if extra := len(changes) - len(listed); extra > 0 {
			fmt.Fprintf(&sb, "- and %d more\n", extra)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// BuildEntry constructs the structured journal record for a commit.
// Privacy levels gate the file detail: "off" keeps totals only,
// "minimal" adds extensions, "standard" and above add relative paths.
func (g *Generator) BuildEntry(changes []tracker.Change, m tracker.Metrics) journal.Entry {
	e := journal.Entry{
		Version:    1,
		ID:         uuid.New().String(),
		Timestamp:  g.now(),
		ChangeType: dominantKind(changes),
		Activity: journal.Activity{
			ActiveTimeSeconds: m.ActiveTimeSeconds,
			FileChangeEvents:  m.FileChangeEvents,
		},
		Files: journal.FileStats{
			TotalChangedFiles: len(changes),
		},
	}

	if g.TrackKeystrokes {
		k := m.Keystrokes
		e.Activity.Keystrokes = &k
	}

	if g.Privacy == config.PrivacyMinimal || g.Privacy == config.PrivacyStandard || g.Privacy == config.PrivacyDetailed {
		e.Files.Extensions = extensionsOf(changes)
	}
	if g.Privacy == config.PrivacyStandard || g.Privacy == config.PrivacyDetailed {
		paths := make([]string, 0, len(changes))
		for _, c := range changes {
			paths = append(paths, g.relPath(c.Path))
		}
		e.Files.RelativePaths = paths
	}

	return e
}

func (g *Generator) relPath(path string) string {
	if g.WorkDir == "" {
		return path
	}
	if rel, err := filepath.Rel(g.WorkDir, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func kindCounts(changes []tracker.Change) (added, changed, deleted int) {
	for _, c := range changes {
		switch c.Kind {
		case tracker.KindAdded:
			added++
		case tracker.KindChanged:
			changed++
		case tracker.KindDeleted:
			deleted++
		}
	}
	return added, changed, deleted
}

// dominantKind picks the change type for the journal record: the kind
// with the most files, with changed winning ties.
func dominantKind(changes []tracker.Change) string {
	if len(changes) == 0 {
		return string(tracker.KindChanged)
	}
	added, changed, deleted := kindCounts(changes)
	switch {
	case added > changed && added >= deleted:
		return string(tracker.KindAdded)
	case deleted > changed && deleted > added:
		return string(tracker.KindDeleted)
	default:
		return string(tracker.KindChanged)
	}
}

func extensionsOf(changes []tracker.Change) []string {
	seen := make(map[string]struct{})
	for _, c := range changes {
		ext := strings.TrimPrefix(filepath.Ext(c.Path), ".")
		if ext == "" {
			continue
		}
		seen[ext] = struct{}{}
	}
	exts := make([]string, 0, len(seen))
	for ext := range seen {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func verbFor(kind tracker.ChangeKind) string {
	switch kind {
	case tracker.KindAdded:
		return "add"
	case tracker.KindDeleted:
		return "remove"
	default:
		return "update"
	}
}

func formatActive(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	h := int(d.Hours())
	min := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, min)
	}
	return fmt.Sprintf("%dm", min)
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file updated"
	}
	return fmt.Sprintf("%d files updated", n)
}
