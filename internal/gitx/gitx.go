// Package gitx is the Git Executor: a thin typed wrapper over the system
// git binary. Every operation takes a working directory and returns a
// typed result; stderr is captured for diagnostics. There are no hidden
// retries.
package gitx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/reposentry/reposentry/internal/model"
)

// Runner executes git commands in a given repo directory. Mockable in tests.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// GitRunner is the default Runner implementation that shells out to git.
type GitRunner struct {
	// GitBin is the path to the git binary. Defaults to "git".
	GitBin string
}

func (g *GitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := g.GitBin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// CommandError carries (command, stderr, exit status) for any git
// invocation that exits non-zero.
type CommandError struct {
	Command  string
	Args     []string
	Stderr   string
	ExitCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Command, strings.Join(e.Args, " "), e.Stderr)
}

func newCommandError(args []string, output string, err error) *CommandError {
	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	cmd := "git"
	if len(args) > 0 {
		cmd = "git " + args[0]
	}
	return &CommandError{Command: cmd, Args: args, Stderr: output, ExitCode: exitCode}
}

// Executor exposes the typed git operations named in spec §4.1.
type Executor struct {
	Runner Runner
}

// NewExecutor returns an Executor shelling out to the system git binary.
func NewExecutor() *Executor {
	return &Executor{Runner: &GitRunner{}}
}

func (e *Executor) run(ctx context.Context, dir string, args ...string) (string, error) {
	out, err := e.Runner.Run(ctx, dir, args...)
	if err != nil {
		return out, newCommandError(args, out, err)
	}
	return out, nil
}

// Clone creates dest and clones url into it. Fails if dest exists and is
// non-empty (the caller is responsible for that pre-check; git itself
// refuses to clone into a non-empty directory).
func (e *Executor) Clone(ctx context.Context, url, dest string) error {
	_, err := e.run(ctx, "", "clone", url, dest)
	return err
}

// Fetch runs `git fetch origin` in dir.
func (e *Executor) Fetch(ctx context.Context, dir string) error {
	_, err := e.run(ctx, dir, "fetch", "origin")
	return err
}

// FetchAllPrune runs `git fetch --all --prune` in dir.
func (e *Executor) FetchAllPrune(ctx context.Context, dir string) error {
	_, err := e.run(ctx, dir, "fetch", "--all", "--prune")
	return err
}

// PullFFOnly runs `git pull origin --ff-only` in dir.
func (e *Executor) PullFFOnly(ctx context.Context, dir string) (string, error) {
	return e.run(ctx, dir, "pull", "origin", "--ff-only")
}

// Pull runs `git pull origin` in dir.
func (e *Executor) Pull(ctx context.Context, dir string) (string, error) {
	return e.run(ctx, dir, "pull", "origin")
}

// Checkout tries a local checkout of branch; on failure it creates a
// tracking branch from origin/<branch>.
func (e *Executor) Checkout(ctx context.Context, dir, branch string) error {
	if _, err := e.run(ctx, dir, "checkout", branch); err == nil {
		return nil
	}
	_, err := e.run(ctx, dir, "checkout", "-b", branch, "origin/"+branch)
	return err
}

// StatusPorcelain returns non-empty iff any tracked file is modified or
// staged (`git status --porcelain`).
func (e *Executor) StatusPorcelain(ctx context.Context, dir string) (string, error) {
	return e.run(ctx, dir, "status", "--porcelain")
}

// LsFilesUntracked returns non-empty iff any untracked, non-ignored files
// exist (`git ls-files --others --exclude-standard`).
func (e *Executor) LsFilesUntracked(ctx context.Context, dir string) (string, error) {
	return e.run(ctx, dir, "ls-files", "--others", "--exclude-standard")
}

// RevListCount returns the numeric count for `git rev-list --count <range>`,
// used for ahead/behind counts against origin/HEAD.
func (e *Executor) RevListCount(ctx context.Context, dir, rangeSpec string) (int, error) {
	out, err := e.run(ctx, dir, "rev-list", "--count", rangeSpec)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(out))
	if convErr != nil {
		return 0, nil
	}
	return n, nil
}

// DiffUnmerged returns non-empty iff merge conflicts exist
// (`git diff --name-only --diff-filter=U`).
func (e *Executor) DiffUnmerged(ctx context.Context, dir string) (string, error) {
	return e.run(ctx, dir, "diff", "--name-only", "--diff-filter=U")
}

// CurrentBranch runs `git branch --show-current`; empty on detached HEAD.
func (e *Executor) CurrentBranch(ctx context.Context, dir string) (string, error) {
	out, err := e.run(ctx, dir, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// RemoteURL runs `git remote get-url <name>`.
func (e *Executor) RemoteURL(ctx context.Context, dir, name string) (string, error) {
	out, err := e.run(ctx, dir, "remote", "get-url", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// BranchesByRecency runs
// `git for-each-ref --sort=-committerdate --format=%(refname:short) refs/remotes/origin/`
// and returns an ordered list with the HEAD alias filtered out.
func (e *Executor) BranchesByRecency(ctx context.Context, dir string) ([]string, error) {
	out, err := e.run(ctx, dir, "for-each-ref", "--sort=-committerdate", "--format=%(refname:short)", "refs/remotes/origin/")
	if err != nil {
		return nil, err
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name := strings.TrimPrefix(line, "origin/")
		if name == "HEAD" {
			continue
		}
		branches = append(branches, name)
	}
	return branches, nil
}

// Fsck runs a post-clone integrity check (`git fsck`).
func (e *Executor) Fsck(ctx context.Context, dir string) error {
	_, err := e.run(ctx, dir, "fsck")
	return err
}

// minValidUnixTime / maxValidUnixTime bound LatestCommitUnix's accepted
// range (2005-01-01 .. 2050-01-01), per spec §4.1.
const (
	minValidUnixTime = 1104537600 // 2005-01-01T00:00:00Z
	maxValidUnixTime = 2524608000 // 2050-01-01T00:00:00Z
)

// LatestCommitUnix runs `git log -1 --format=%ct`. The result must satisfy
// 2005-01-01 <= t <= 2050-01-01 or it is rejected.
func (e *Executor) LatestCommitUnix(ctx context.Context, dir string) (int64, error) {
	out, err := e.run(ctx, dir, "log", "-1", "--format=%ct")
	if err != nil {
		return 0, err
	}
	t, convErr := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if convErr != nil {
		return 0, fmt.Errorf("latest_commit_unix: %w", convErr)
	}
	if t < minValidUnixTime || t > maxValidUnixTime {
		return 0, fmt.Errorf("latest_commit_unix: timestamp %d out of accepted range", t)
	}
	return t, nil
}

// StashPush runs `git stash push -m <message>`. Used only in the dedicated
// auto-stash mode; the state machine never stashes implicitly.
func (e *Executor) StashPush(ctx context.Context, dir, message string) error {
	_, err := e.run(ctx, dir, "stash", "push", "-m", message)
	return err
}

// IsRepo checks whether the given path is inside a git working tree.
func (e *Executor) IsRepo(ctx context.Context, dir string) bool {
	out, err := e.Runner.Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// IsBare checks whether the given path is a bare git repository.
func (e *Executor) IsBare(ctx context.Context, dir string) bool {
	out, err := e.Runner.Run(ctx, dir, "rev-parse", "--is-bare-repository")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

// Remotes returns all configured remotes for the repo.
func (e *Executor) Remotes(ctx context.Context, dir string) ([]model.Remote, error) {
	out, err := e.run(ctx, dir, "remote")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	var remotes []model.Remote
	for _, name := range strings.Split(strings.TrimSpace(out), "\n") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		url, err := e.RemoteURL(ctx, dir, name)
		if err != nil {
			continue
		}
		remotes = append(remotes, model.Remote{Name: name, URL: url})
	}
	return remotes, nil
}
