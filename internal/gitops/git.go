// Package gitops is the commit collaborator: it stages, commits, and
// pushes the workspace through the git CLI.
package gitops

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Teamial/devtrack/internal/logger"
	"github.com/Teamial/devtrack/internal/tracker"
)

// Runner executes one git command in workDir and returns its combined
// stdout. Injectable so tests never touch a real repository.
type Runner func(workDir string, args ...string) (string, error)

// defaultRunner shells out to the real git binary.
func defaultRunner(workDir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = workDir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Service performs git operations for one workspace.
type Service struct {
	workDir string
	branch  string
	log     logger.Logger
	runner  Runner
}

// NewService creates a Service for workDir. branch may be empty to use
// whatever branch is checked out.
func NewService(workDir, branch string, log logger.Logger) *Service {
	return &Service{
		workDir: workDir,
		branch:  branch,
		log:     log,
		runner:  defaultRunner,
	}
}

// NewServiceWithRunner creates a Service with an injected runner.
func NewServiceWithRunner(workDir, branch string, log logger.Logger, runner Runner) *Service {
	s := NewService(workDir, branch, log)
	s.runner = runner
	return s
}

// IsRepository reports whether path is inside a git work tree.
func IsRepository(path string) bool {
	_, err := defaultRunner(path, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// EnsureRepoReady makes the workspace committable: initializes a
// repository if none exists, checks out the configured branch, and wires
// the remote when one is configured.
func (s *Service) EnsureRepoReady(remoteURL string) error {
	if _, err := s.runner(s.workDir, "rev-parse", "--is-inside-work-tree"); err != nil {
		if !isExitCode128(err) {
			return fmt.Errorf("checking repository: %w", err)
		}
		if _, err := s.runner(s.workDir, "init"); err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}
		s.log.InfoToUser("Initialized git repository in %s", s.workDir)
	}

	if s.branch != "" {
		current, err := s.currentBranch()
		if err == nil && current != s.branch {
			if _, err := s.runner(s.workDir, "checkout", "-B", s.branch); err != nil {
				return fmt.Errorf("switching to branch %s: %w", s.branch, err)
			}
			s.log.Info("Switched to branch %s", s.branch)
		}
	}

	if remoteURL != "" && !s.hasRemote() {
		if _, err := s.runner(s.workDir, "remote", "add", "origin", remoteURL); err != nil {
			return fmt.Errorf("adding remote: %w", err)
		}
	}

	return nil
}

// CommitAndPush stages everything, commits with the given message, and
// pushes when a remote is configured. Nothing staged is not an error.
func (s *Service) CommitAndPush(message string) error {
	if _, err := s.runner(s.workDir, "add", "-A"); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}

	status, err := s.runner(s.workDir, "status", "--porcelain")
	if err != nil {
		return fmt.Errorf("checking status: %w", err)
	}
	if strings.TrimSpace(status) == "" {
		s.log.Info("Nothing staged; skipping commit")
		return nil
	}

	if out, err := s.runner(s.workDir, "commit", "-m", message); err != nil {
		return fmt.Errorf("creating commit: %w: %s", err, strings.TrimSpace(out))
	}

	if s.hasRemote() {
		branch := s.branch
		if branch == "" {
			if branch, err = s.currentBranch(); err != nil {
				return fmt.Errorf("resolving branch for push: %w", err)
			}
		}
		if out, err := s.runner(s.workDir, "push", "-u", "origin", branch); err != nil {
			return fmt.Errorf("pushing to origin/%s: %w: %s", branch, err, strings.TrimSpace(out))
		}
	}

	return nil
}

// HasChanges reports whether the work tree differs from HEAD.
func (s *Service) HasChanges() (bool, error) {
	status, err := s.runner(s.workDir, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("checking status: %w", err)
	}
	return strings.TrimSpace(status) != "", nil
}

func (s *Service) currentBranch() (string, error) {
	out, err := s.runner(s.workDir, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (s *Service) hasRemote() bool {
	out, err := s.runner(s.workDir, "remote")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) != ""
}

// StatusChanges parses `git status --porcelain` into change records.
// Used by one-shot manual commits, where no watcher has been running.
func (s *Service) StatusChanges() ([]tracker.Change, error) {
	out, err := s.runner(s.workDir, "status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("checking status: %w", err)
	}

	now := time.Now()
	var changes []tracker.Change
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := strings.TrimSpace(line[3:])
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		path = strings.Trim(path, `"`)

		var kind tracker.ChangeKind
		switch {
		case code == "??" || strings.ContainsRune(code, 'A'):
			kind = tracker.KindAdded
		case strings.ContainsRune(code, 'D'):
			kind = tracker.KindDeleted
		default:
			kind = tracker.KindChanged
		}

		changes = append(changes, tracker.Change{
			Path:      filepath.Join(s.workDir, path),
			Kind:      kind,
			Timestamp: now,
		})
	}
	return changes, nil
}

// isExitCode128 reports whether err is git's "not a repository" exit.
func isExitCode128(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 128
	}
	return false
}
