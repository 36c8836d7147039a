// Package reposync implements the Repo State Machine: for one RepoSpec it
// decides and performs the correct git operation and returns a typed
// model.SyncOutcome. The machine never loops; every terminal state produces
// exactly one outcome.
package reposync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/reposentry/reposentry/internal/config"
	"github.com/reposentry/reposentry/internal/gitx"
	"github.com/reposentry/reposentry/internal/model"
)

// Options carries the per-run policy consumed by the decision procedure.
// These mirror config.Sync / config.Advanced plus config.GitHub's exclude
// patterns; the CLI layer (syncOptionsFrom in cmd/reposentry) resolves
// configuration into this plain struct so the state
// machine has no config package dependency of its own beyond the strategy
// enum.
type Options struct {
	Strategy           config.SyncStrategy
	ExcludePatterns    []string // branch names excluded from most-recent-branch selection
	FastForwardOnly    bool
	AutoStash          bool
	PreserveTimestamps bool
	VerifyClone        bool
	CleanupOnError     bool
}

// Machine executes the decision procedure against one Executor.
type Machine struct {
	Executor *gitx.Executor
}

// New returns a Machine using a default Executor shelling out to git.
func New() *Machine {
	return &Machine{Executor: gitx.NewExecutor()}
}

// Decide runs the full S0 -> terminal decision procedure for one RepoSpec
// and returns exactly one SyncOutcome.
func (m *Machine) Decide(ctx context.Context, spec model.RepoSpec, opts Options) model.SyncOutcome {
	if _, err := os.Stat(spec.LocalPath); os.IsNotExist(err) {
		return m.clone(ctx, spec, opts)
	}
	return m.safety(ctx, spec, opts)
}

// Analyze runs only the read-only S_Analyze portion of the procedure and
// returns the observed RepoState, for the orchestrator's dry-run path. It
// does not mutate the working tree beyond the best-effort fetch, which the
// caller may suppress via quiet.
func (m *Machine) Analyze(ctx context.Context, spec model.RepoSpec, quiet bool) model.RepoState {
	if _, err := os.Stat(spec.LocalPath); os.IsNotExist(err) {
		return model.RepoState{Path: spec.LocalPath, Exists: false}
	}
	state := model.RepoState{Path: spec.LocalPath, Exists: true}

	porcelain, _ := m.Executor.StatusPorcelain(ctx, spec.LocalPath)
	untracked, _ := m.Executor.LsFilesUntracked(ctx, spec.LocalPath)
	state.HasUncommittedChanges = strings.TrimSpace(porcelain) != ""
	state.HasUntrackedFiles = strings.TrimSpace(untracked) != ""

	state.RemoteURL, _ = m.Executor.RemoteURL(ctx, spec.LocalPath, "origin")
	state.CurrentBranch, _ = m.Executor.CurrentBranch(ctx, spec.LocalPath)

	if !quiet {
		_ = m.Executor.Fetch(ctx, spec.LocalPath)
	}
	ahead, _ := m.Executor.RevListCount(ctx, spec.LocalPath, "origin/HEAD..HEAD")
	behind, _ := m.Executor.RevListCount(ctx, spec.LocalPath, "HEAD..origin/HEAD")
	state.IsAheadOfRemote = ahead > 0
	state.IsBehindRemote = behind > 0

	diff, _ := m.Executor.DiffUnmerged(ctx, spec.LocalPath)
	state.HasConflicts = strings.TrimSpace(diff) != ""

	return state
}

// S_Safety: the Dropbox rule. The engine never touches a dirty working tree
// and never stashes implicitly.
func (m *Machine) safety(ctx context.Context, spec model.RepoSpec, opts Options) model.SyncOutcome {
	porcelain, err := m.Executor.StatusPorcelain(ctx, spec.LocalPath)
	if err == nil && strings.TrimSpace(porcelain) != "" {
		return model.Skipped(spec.LocalPath, model.ReasonLocalChanges, spec.FullName())
	}
	return m.analyzeAndBranch(ctx, spec, opts)
}

// S_Analyze, then dispatch to S_Branch.
func (m *Machine) analyzeAndBranch(ctx context.Context, spec model.RepoSpec, opts Options) model.SyncOutcome {
	remoteURL, _ := m.Executor.RemoteURL(ctx, spec.LocalPath, "origin")
	currentBranch, _ := m.Executor.CurrentBranch(ctx, spec.LocalPath)

	if remoteURL != "" && spec.CloneURL != "" && gitx.NormalizeRemote(remoteURL) != gitx.NormalizeRemote(spec.CloneURL) {
		return model.Skipped(spec.LocalPath, model.ReasonRemoteMismatch, spec.FullName())
	}

	// Best-effort: a fetch failure logs a warning but does not abort, since
	// stale refs may still be useful.
	if err := m.Executor.Fetch(ctx, spec.LocalPath); err != nil {
		slog.Warn("fetch failed; continuing with possibly stale refs", "path", spec.LocalPath, "error", err)
	}

	ahead, _ := m.Executor.RevListCount(ctx, spec.LocalPath, "origin/HEAD..HEAD")
	behind, _ := m.Executor.RevListCount(ctx, spec.LocalPath, "HEAD..origin/HEAD")
	isAhead := ahead > 0
	isBehind := behind > 0

	diff, _ := m.Executor.DiffUnmerged(ctx, spec.LocalPath)
	hasConflicts := strings.TrimSpace(diff) != ""

	return m.branch(ctx, spec, opts, currentBranch, isAhead, isBehind, hasConflicts)
}

// S_Branch.
func (m *Machine) branch(ctx context.Context, spec model.RepoSpec, opts Options, currentBranch string, isAhead, isBehind, hasConflicts bool) model.SyncOutcome {
	if hasConflicts {
		return model.FetchedOnly(spec.LocalPath, model.ReasonConflicts, spec.FullName())
	}
	if opts.Strategy == config.StrategyFetchOnly {
		return model.FetchedOnly(spec.LocalPath, model.ReasonFetchOnly, spec.FullName())
	}
	if opts.Strategy == config.StrategyMostRecentBranch {
		return m.mostRecent(ctx, spec, opts, currentBranch, isAhead, isBehind)
	}
	// "interactive" silently falls back to safe-pull (spec §9 open question).
	return m.pull(ctx, spec, opts, currentBranch, isAhead, isBehind)
}

// S_MostRecent.
func (m *Machine) mostRecent(ctx context.Context, spec model.RepoSpec, opts Options, currentBranch string, isAhead, isBehind bool) model.SyncOutcome {
	_ = m.Executor.FetchAllPrune(ctx, spec.LocalPath)

	branches, _ := m.Executor.BranchesByRecency(ctx, spec.LocalPath)
	exclusions := compileExclusions(opts.ExcludePatterns)
	target := ""
	for _, b := range branches {
		if matchesAnyExclusion(b, exclusions) {
			continue
		}
		target = b
		break
	}
	if target == "" || target == currentBranch {
		return m.pull(ctx, spec, opts, currentBranch, isAhead, isBehind)
	}

	if err := m.Executor.Checkout(ctx, spec.LocalPath, target); err != nil {
		return model.Failed(spec.LocalPath, err.Error(), gitx.ClassifyError(err), spec.FullName())
	}
	out, err := m.runPull(ctx, spec.LocalPath, opts.FastForwardOnly)
	if err != nil {
		return model.Failed(spec.LocalPath, err.Error(), gitx.ClassifyError(err), spec.FullName())
	}
	n := classifyPullOutput(out)
	return model.BranchSwitched(spec.LocalPath, currentBranch, target, n, spec.FullName())
}

// S_Pull.
func (m *Machine) pull(ctx context.Context, spec model.RepoSpec, opts Options, currentBranch string, isAhead, isBehind bool) model.SyncOutcome {
	if isAhead && !isBehind {
		return model.FetchedOnly(spec.LocalPath, model.ReasonAheadOfRemote, spec.FullName())
	}
	if !isBehind {
		return model.UpToDate(spec.LocalPath, currentBranch, spec.FullName())
	}

	if opts.AutoStash {
		_ = m.Executor.StashPush(ctx, spec.LocalPath, "RepoSentry auto-stash")
	}
	out, err := m.runPull(ctx, spec.LocalPath, opts.FastForwardOnly)
	if err != nil {
		return model.Failed(spec.LocalPath, err.Error(), gitx.ClassifyError(err), spec.FullName())
	}
	n := classifyPullOutput(out)
	return model.Pulled(spec.LocalPath, currentBranch, n, spec.FullName())
}

func (m *Machine) runPull(ctx context.Context, dir string, ffOnly bool) (string, error) {
	if ffOnly {
		return m.Executor.PullFFOnly(ctx, dir)
	}
	return m.Executor.Pull(ctx, dir)
}

// S_Clone.
func (m *Machine) clone(ctx context.Context, spec model.RepoSpec, opts Options) model.SyncOutcome {
	if err := os.MkdirAll(filepath.Dir(spec.LocalPath), 0o755); err != nil {
		return model.Failed(spec.LocalPath, err.Error(), gitx.ClassifyError(err), spec.FullName())
	}
	if err := m.Executor.Clone(ctx, spec.CloneURL, spec.LocalPath); err != nil {
		if opts.CleanupOnError {
			_ = os.RemoveAll(spec.LocalPath)
		}
		return model.Failed(spec.LocalPath, err.Error(), gitx.ClassifyError(err), spec.FullName())
	}

	if opts.VerifyClone {
		if err := m.Executor.Fsck(ctx, spec.LocalPath); err != nil {
			if opts.CleanupOnError {
				_ = os.RemoveAll(spec.LocalPath)
			}
			return model.Failed(spec.LocalPath, fmt.Sprintf("clone integrity check failed: %v", err), gitx.ClassifyError(err), spec.FullName())
		}
	}

	if opts.PreserveTimestamps {
		if commitTime, err := m.Executor.LatestCommitUnix(ctx, spec.LocalPath); err == nil {
			mtime := time.Unix(commitTime, 0)
			_ = os.Chtimes(spec.LocalPath, mtime, mtime)
		}
	}

	branch, _ := m.Executor.CurrentBranch(ctx, spec.LocalPath)
	if opts.Strategy == config.StrategyMostRecentBranch {
		branches, _ := m.Executor.BranchesByRecency(ctx, spec.LocalPath)
		exclusions := compileExclusions(opts.ExcludePatterns)
		for _, b := range branches {
			if matchesAnyExclusion(b, exclusions) {
				continue
			}
			if err := m.Executor.Checkout(ctx, spec.LocalPath, b); err == nil {
				_, _ = m.runPull(ctx, spec.LocalPath, opts.FastForwardOnly)
				branch = b
			}
			break
		}
	}

	return model.Cloned(spec.LocalPath, branch, spec.FullName())
}

// classifyPullOutput implements the §4.5 sentinel commit counter: output
// containing "Updating" -> 1; "Already up to date" -> 0; otherwise -> 1.
// This is intentionally not a real commit count (spec §9 open question).
func classifyPullOutput(output string) int {
	switch {
	case strings.Contains(output, "Already up to date"):
		return 0
	case strings.Contains(output, "Updating"):
		return 1
	default:
		return 1
	}
}

// matchesAnyExclusion checks branch against patterns already compiled by
// compileExclusions, reusing the discovery package's simplistic glob rule
// (`*` -> `.*`, anchored full match; no bracket/charclass support) for
// branch-name exclusion during most-recent selection.
func matchesAnyExclusion(branch string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(branch) {
			return true
		}
	}
	return false
}

// compileExclusions compiles each exclude pattern once per call site rather
// than once per (pattern, branch) pair, since it's invoked once per branch
// in the candidate list.
func compileExclusions(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = branchGlobToRegexp(p)
	}
	return compiled
}

func branchGlobToRegexp(pattern string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	return regexp.MustCompile("^" + escaped + "$")
}
