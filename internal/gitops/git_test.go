package gitops

import (
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Teamial/devtrack/internal/logger"
	"github.com/Teamial/devtrack/internal/tracker"
)

func testLogger() logger.Logger {
	return logger.NewWithOutput(false, "", false, io.Discard, io.Discard)
}

// exitCode128Error produces a real *exec.ExitError with code 128, the
// way git reports "not a repository".
func exitCode128Error(t *testing.T) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit 128").Run()
	if err == nil {
		t.Fatal("expected sh to exit nonzero")
	}
	return err
}

// scriptedRunner returns canned output per space-joined git arg string
// and records every invocation.
type scriptedRunner struct {
	out   map[string]string
	errs  map[string]error
	calls []string
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{
		out:  make(map[string]string),
		errs: make(map[string]error),
	}
}

func (r *scriptedRunner) run(workDir string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	r.calls = append(r.calls, key)
	return r.out[key], r.errs[key]
}

func (r *scriptedRunner) called(prefix string) bool {
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func newTestService(branch string, runner *scriptedRunner) *Service {
	return NewServiceWithRunner("/work", branch, testLogger(), runner.run)
}

func TestEnsureRepoReadyInitializesMissingRepo(t *testing.T) {
	runner := newScriptedRunner()
	runner.errs["rev-parse --is-inside-work-tree"] = exitCode128Error(t)
	svc := newTestService("devtrack", runner)

	if err := svc.EnsureRepoReady(""); err != nil {
		t.Fatalf("EnsureRepoReady: %v", err)
	}
	if !runner.called("init") {
		t.Errorf("git init never ran; calls: %v", runner.calls)
	}
}

func TestEnsureRepoReadyPropagatesOtherErrors(t *testing.T) {
	runner := newScriptedRunner()
	runner.errs["rev-parse --is-inside-work-tree"] = errors.New("git not installed")
	svc := newTestService("", runner)

	if err := svc.EnsureRepoReady(""); err == nil {
		t.Fatal("expected non-128 error to propagate")
	}
	if runner.called("init") {
		t.Error("git init ran despite a non-128 failure")
	}
}

func TestEnsureRepoReadySwitchesBranch(t *testing.T) {
	runner := newScriptedRunner()
	runner.out["branch --show-current"] = "main\n"
	svc := newTestService("devtrack", runner)

	if err := svc.EnsureRepoReady(""); err != nil {
		t.Fatalf("EnsureRepoReady: %v", err)
	}
	if !runner.called("checkout -B devtrack") {
		t.Errorf("branch switch missing; calls: %v", runner.calls)
	}
}

func TestEnsureRepoReadySkipsCheckoutWhenAlreadyThere(t *testing.T) {
	runner := newScriptedRunner()
	runner.out["branch --show-current"] = "devtrack\n"
	svc := newTestService("devtrack", runner)

	if err := svc.EnsureRepoReady(""); err != nil {
		t.Fatalf("EnsureRepoReady: %v", err)
	}
	if runner.called("checkout") {
		t.Errorf("needless checkout; calls: %v", runner.calls)
	}
}

func TestEnsureRepoReadyAddsRemoteOnce(t *testing.T) {
	runner := newScriptedRunner()
	svc := newTestService("", runner)

	if err := svc.EnsureRepoReady("git@example.com:me/repo.git"); err != nil {
		t.Fatalf("EnsureRepoReady: %v", err)
	}
	if !runner.called("remote add origin git@example.com:me/repo.git") {
		t.Errorf("remote add missing; calls: %v", runner.calls)
	}

	// A configured remote is left alone.
	runner2 := newScriptedRunner()
	runner2.out["remote"] = "origin\n"
	svc2 := newTestService("", runner2)
	if err := svc2.EnsureRepoReady("git@example.com:me/repo.git"); err != nil {
		t.Fatalf("EnsureRepoReady: %v", err)
	}
	if runner2.called("remote add") {
		t.Errorf("remote re-added; calls: %v", runner2.calls)
	}
}

func TestCommitAndPushFullSequence(t *testing.T) {
	runner := newScriptedRunner()
	runner.out["status --porcelain"] = " M main.go\n"
	runner.out["remote"] = "origin\n"
	svc := newTestService("devtrack", runner)

	if err := svc.CommitAndPush("DevTrack: 1 file updated"); err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}

	want := []string{
		"add -A",
		"status --porcelain",
		"commit -m DevTrack: 1 file updated",
		"remote",
		"push -u origin devtrack",
	}
	if got := strings.Join(runner.calls, "|"); got != strings.Join(want, "|") {
		t.Errorf("call sequence:\n got %v\nwant %v", runner.calls, want)
	}
}

func TestCommitAndPushNothingStagedIsNoOp(t *testing.T) {
	runner := newScriptedRunner()
	runner.out["status --porcelain"] = "\n"
	svc := newTestService("devtrack", runner)

	if err := svc.CommitAndPush("msg"); err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}
	if runner.called("commit") || runner.called("push") {
		t.Errorf("committed with nothing staged; calls: %v", runner.calls)
	}
}

func TestCommitAndPushSkipsPushWithoutRemote(t *testing.T) {
	runner := newScriptedRunner()
	runner.out["status --porcelain"] = " M main.go\n"
	svc := newTestService("devtrack", runner)

	if err := svc.CommitAndPush("msg"); err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}
	if runner.called("push") {
		t.Errorf("pushed without a remote; calls: %v", runner.calls)
	}
}

func TestCommitAndPushResolvesBranchForPush(t *testing.T) {
	runner := newScriptedRunner()
	runner.out["status --porcelain"] = " M main.go\n"
	runner.out["remote"] = "origin\n"
	runner.out["branch --show-current"] = "feature\n"
	svc := newTestService("", runner)

	if err := svc.CommitAndPush("msg"); err != nil {
		t.Fatalf("CommitAndPush: %v", err)
	}
	if !runner.called("push -u origin feature") {
		t.Errorf("push used wrong branch; calls: %v", runner.calls)
	}
}

func TestCommitAndPushSurfacesCommitFailure(t *testing.T) {
	runner := newScriptedRunner()
	runner.out["status --porcelain"] = " M main.go\n"
	runner.out["commit -m msg"] = "gpg failed to sign the data\n"
	runner.errs["commit -m msg"] = errors.New("exit status 1")
	svc := newTestService("devtrack", runner)

	err := svc.CommitAndPush("msg")
	if err == nil {
		t.Fatal("expected commit failure to surface")
	}
	if !strings.Contains(err.Error(), "gpg failed") {
		t.Errorf("error lost git output: %v", err)
	}
}

func TestHasChanges(t *testing.T) {
	runner := newScriptedRunner()
	runner.out["status --porcelain"] = " M main.go\n"
	svc := newTestService("", runner)

	dirty, err := svc.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if !dirty {
		t.Error("dirty tree reported clean")
	}

	runner.out["status --porcelain"] = "  \n"
	dirty, err = svc.HasChanges()
	if err != nil {
		t.Fatalf("HasChanges: %v", err)
	}
	if dirty {
		t.Error("clean tree reported dirty")
	}
}

func TestStatusChangesParsesPorcelain(t *testing.T) {
	runner := newScriptedRunner()
	runner.out["status --porcelain"] = strings.Join([]string{
		"?? new.go",
		"A  staged.go",
		" M edited.go",
		" D gone.go",
		`R  old.go -> renamed.go`,
		"",
	}, "\n")
	svc := newTestService("", runner)

	changes, err := svc.StatusChanges()
	if err != nil {
		t.Fatalf("StatusChanges: %v", err)
	}
	if len(changes) != 5 {
		t.Fatalf("got %d changes, want 5: %+v", len(changes), changes)
	}

	byPath := make(map[string]tracker.ChangeKind)
	for _, c := range changes {
		byPath[filepath.Base(c.Path)] = c.Kind
	}
	expect := map[string]tracker.ChangeKind{
		"new.go":     tracker.KindAdded,
		"staged.go":  tracker.KindAdded,
		"edited.go":  tracker.KindChanged,
		"gone.go":    tracker.KindDeleted,
		"renamed.go": tracker.KindChanged, // rename keeps the new path
	}
	for path, want := range expect {
		got, ok := byPath[path]
		if !ok {
			t.Errorf("missing change for %s: %+v", path, changes)
			continue
		}
		if got != want {
			t.Errorf("%s kind = %v, want %v", path, got, want)
		}
	}
	for _, c := range changes {
		if !strings.HasPrefix(c.Path, "/work/") {
			t.Errorf("path not joined to workDir: %q", c.Path)
		}
	}
}

func TestIsExitCode128(t *testing.T) {
	if !isExitCode128(exitCode128Error(t)) {
		t.Error("real 128 exit not recognized")
	}
	if isExitCode128(errors.New("plain error")) {
		t.Error("plain error misclassified as 128")
	}
}
