package gitx_test

import (
	"context"
	"testing"

	"github.com/reposentry/reposentry/internal/gitx"
)

func newExecutor(responses map[string]mockResponse) *gitx.Executor {
	return &gitx.Executor{Runner: &mockRunner{Responses: responses}}
}

func TestStatusPorcelainDirty(t *testing.T) {
	e := newExecutor(map[string]mockResponse{
		"/r:status --porcelain": {Output: " M README.md"},
	})
	out, err := e.StatusPorcelain(context.Background(), "/r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == "" {
		t.Fatalf("expected non-empty porcelain output")
	}
}

func TestRevListCountParsesInteger(t *testing.T) {
	e := newExecutor(map[string]mockResponse{
		"/r:rev-list --count HEAD..origin/HEAD": {Output: "3"},
	})
	n, err := e.RevListCount(context.Background(), "/r", "HEAD..origin/HEAD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
}

func TestCurrentBranchTrims(t *testing.T) {
	e := newExecutor(map[string]mockResponse{
		"/r:branch --show-current": {Output: "main\n"},
	})
	b, err := e.CurrentBranch(context.Background(), "/r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != "main" {
		t.Fatalf("expected main, got %q", b)
	}
}

func TestBranchesByRecencyFiltersHEAD(t *testing.T) {
	e := newExecutor(map[string]mockResponse{
		"/r:for-each-ref --sort=-committerdate --format=%(refname:short) refs/remotes/origin/": {
			Output: "origin/feature/x\norigin/main\norigin/HEAD",
		},
	})
	branches, err := e.BranchesByRecency(context.Background(), "/r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"feature/x", "main"}
	if len(branches) != len(want) {
		t.Fatalf("expected %v, got %v", want, branches)
	}
	for i := range want {
		if branches[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, branches)
		}
	}
}

func TestLatestCommitUnixRejectsOutOfRange(t *testing.T) {
	e := newExecutor(map[string]mockResponse{
		"/r:log -1 --format=%ct": {Output: "100"}, // 1970, before 2005 floor
	})
	if _, err := e.LatestCommitUnix(context.Background(), "/r"); err == nil {
		t.Fatalf("expected out-of-range timestamp to be rejected")
	}
}

func TestLatestCommitUnixAcceptsInRange(t *testing.T) {
	e := newExecutor(map[string]mockResponse{
		"/r:log -1 --format=%ct": {Output: "1700000000"}, // 2023
	})
	t_, err := e.LatestCommitUnix(context.Background(), "/r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if t_ != 1700000000 {
		t.Fatalf("expected 1700000000, got %d", t_)
	}
}

func TestCheckoutFallsBackToTrackingBranch(t *testing.T) {
	e := newExecutor(map[string]mockResponse{
		"/r:checkout feature/x":                         {Err: errMockCommand},
		"/r:checkout -b feature/x origin/feature/x": {Output: ""},
	})
	if err := e.Checkout(context.Background(), "/r", "feature/x"); err != nil {
		t.Fatalf("expected fallback checkout to succeed, got %v", err)
	}
}
