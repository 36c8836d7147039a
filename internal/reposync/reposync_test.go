package reposync_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reposentry/reposentry/internal/config"
	"github.com/reposentry/reposentry/internal/gitx"
	"github.com/reposentry/reposentry/internal/model"
	"github.com/reposentry/reposentry/internal/reposync"
)

type scriptedRunner struct {
	responses map[string]scriptedResponse
}

type scriptedResponse struct {
	output string
	err    error
}

func (r *scriptedRunner) Run(_ context.Context, dir string, args ...string) (string, error) {
	key := dir + ":" + strings.Join(args, " ")
	if resp, ok := r.responses[key]; ok {
		return resp.output, resp.err
	}
	return "", nil
}

func machineWith(responses map[string]scriptedResponse) *reposync.Machine {
	return &reposync.Machine{Executor: &gitx.Executor{Runner: &scriptedRunner{responses: responses}}}
}

func safePullOpts() reposync.Options {
	return reposync.Options{Strategy: config.StrategySafePull, FastForwardOnly: true}
}

// Scenario 1: dirty skip.
func TestDecideDirtySkip(t *testing.T) {
	dir := t.TempDir()
	m := machineWith(map[string]scriptedResponse{
		dir + ":status --porcelain": {output: " M README.md"},
	})
	spec := model.RepoSpec{Owner: "o", Name: "r", LocalPath: dir, CloneURL: "https://example.com/o/r.git"}
	outcome := m.Decide(context.Background(), spec, safePullOpts())
	if outcome.Kind != model.OutcomeSkipped {
		t.Fatalf("expected Skipped, got %v", outcome.Kind)
	}
	if outcome.Reason != model.ReasonLocalChanges {
		t.Fatalf("expected local-changes reason, got %q", outcome.Reason)
	}
}

// Scenario 2: clean fast-forward.
func TestDecideCleanFastForward(t *testing.T) {
	dir := t.TempDir()
	m := machineWith(map[string]scriptedResponse{
		dir + ":status --porcelain":                      {output: ""},
		dir + ":remote get-url origin":                    {output: "https://example.com/o/r.git"},
		dir + ":branch --show-current":                    {output: "main"},
		dir + ":fetch origin":                              {output: ""},
		dir + ":rev-list --count origin/HEAD..HEAD":        {output: "0"},
		dir + ":rev-list --count HEAD..origin/HEAD":        {output: "3"},
		dir + ":diff --name-only --diff-filter=U":          {output: ""},
		dir + ":pull origin --ff-only":                     {output: "Updating abc123..def456"},
	})
	spec := model.RepoSpec{Owner: "o", Name: "r", LocalPath: dir, CloneURL: "https://example.com/o/r.git"}
	outcome := m.Decide(context.Background(), spec, safePullOpts())
	if outcome.Kind != model.OutcomePulled {
		t.Fatalf("expected Pulled, got %v", outcome.Kind)
	}
	if outcome.CommitsUpdated != 1 {
		t.Fatalf("expected sentinel count 1, got %d", outcome.CommitsUpdated)
	}
	if outcome.Branch != "main" {
		t.Fatalf("expected branch main, got %q", outcome.Branch)
	}
}

// Scenario 3: most-recent branch switch.
func TestDecideMostRecentBranchSwitch(t *testing.T) {
	dir := t.TempDir()
	m := machineWith(map[string]scriptedResponse{
		dir + ":status --porcelain":                 {output: ""},
		dir + ":remote get-url origin":               {output: "https://example.com/o/r.git"},
		dir + ":branch --show-current":               {output: "main"},
		dir + ":fetch origin":                         {output: ""},
		dir + ":rev-list --count origin/HEAD..HEAD":   {output: "0"},
		dir + ":rev-list --count HEAD..origin/HEAD":   {output: "0"},
		dir + ":diff --name-only --diff-filter=U":     {output: ""},
		dir + ":fetch --all --prune":                  {output: ""},
		dir + ":for-each-ref --sort=-committerdate --format=%(refname:short) refs/remotes/origin/": {
			output: "origin/feature/x\norigin/main\norigin/HEAD",
		},
		dir + ":checkout feature/x":      {output: ""},
		dir + ":pull origin --ff-only":   {output: "Updating 1..2"},
	})
	spec := model.RepoSpec{Owner: "o", Name: "r", LocalPath: dir, CloneURL: "https://example.com/o/r.git"}
	opts := reposync.Options{Strategy: config.StrategyMostRecentBranch, FastForwardOnly: true}
	outcome := m.Decide(context.Background(), spec, opts)
	if outcome.Kind != model.OutcomeBranchSwitched {
		t.Fatalf("expected BranchSwitched, got %v", outcome.Kind)
	}
	if outcome.From != "main" || outcome.To != "feature/x" {
		t.Fatalf("expected main->feature/x, got %s->%s", outcome.From, outcome.To)
	}
	if outcome.CommitsUpdated != 1 {
		t.Fatalf("expected sentinel count 1, got %d", outcome.CommitsUpdated)
	}
}

// Scenario 4: ahead of remote.
func TestDecideAheadOfRemote(t *testing.T) {
	dir := t.TempDir()
	m := machineWith(map[string]scriptedResponse{
		dir + ":status --porcelain":                    {output: ""},
		dir + ":remote get-url origin":                  {output: "https://example.com/o/r.git"},
		dir + ":branch --show-current":                  {output: "main"},
		dir + ":fetch origin":                            {output: ""},
		dir + ":rev-list --count origin/HEAD..HEAD":      {output: "2"},
		dir + ":rev-list --count HEAD..origin/HEAD":      {output: "0"},
		dir + ":diff --name-only --diff-filter=U":        {output: ""},
	})
	spec := model.RepoSpec{Owner: "o", Name: "r", LocalPath: dir, CloneURL: "https://example.com/o/r.git"}
	outcome := m.Decide(context.Background(), spec, safePullOpts())
	if outcome.Kind != model.OutcomeFetchedOnly {
		t.Fatalf("expected FetchedOnly, got %v", outcome.Kind)
	}
	if outcome.Reason != model.ReasonAheadOfRemote {
		t.Fatalf("expected ahead-of-remote reason, got %q", outcome.Reason)
	}
}

// Scenario 5: clone with verify+cleanup, fsck fails.
func TestDecideCloneFsckFailureCleansUp(t *testing.T) {
	base := t.TempDir()
	dest := filepath.Join(base, "missing-repo")
	m := machineWith(map[string]scriptedResponse{
		"" + ":clone https://example.com/o/r.git " + dest: {output: ""},
		dest + ":fsck": {output: "error: bad object", err: errors.New("exit status 1")},
	})
	spec := model.RepoSpec{Owner: "o", Name: "r", LocalPath: dest, CloneURL: "https://example.com/o/r.git"}
	opts := reposync.Options{Strategy: config.StrategySafePull, VerifyClone: true, CleanupOnError: true}
	outcome := m.Decide(context.Background(), spec, opts)
	if outcome.Kind != model.OutcomeFailed {
		t.Fatalf("expected Failed, got %v", outcome.Kind)
	}
	if !strings.Contains(outcome.Error, "integrity") {
		t.Fatalf("expected integrity error text, got %q", outcome.Error)
	}
	if outcome.ErrorClass != "corrupt" {
		t.Fatalf("expected error class corrupt, got %q", outcome.ErrorClass)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("expected cloned directory to be removed after fsck failure")
	}
}

func TestDecideRemoteURLMismatchSkips(t *testing.T) {
	dir := t.TempDir()
	m := machineWith(map[string]scriptedResponse{
		dir + ":status --porcelain":        {output: ""},
		dir + ":remote get-url origin":      {output: "https://example.com/other/repo.git"},
		dir + ":branch --show-current":      {output: "main"},
	})
	spec := model.RepoSpec{Owner: "o", Name: "r", LocalPath: dir, CloneURL: "https://example.com/o/r.git"}
	outcome := m.Decide(context.Background(), spec, safePullOpts())
	if outcome.Kind != model.OutcomeSkipped || outcome.Reason != model.ReasonRemoteMismatch {
		t.Fatalf("expected remote mismatch skip, got %v %q", outcome.Kind, outcome.Reason)
	}
}
