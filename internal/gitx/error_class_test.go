package gitx_test

import (
	"context"
	"testing"

	"github.com/reposentry/reposentry/internal/gitx"
)

func TestClassifyErrorContextDeadline(t *testing.T) {
	if got := gitx.ClassifyError(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("expected timeout, got %q", got)
	}
}

func TestClassifyErrorSentinels(t *testing.T) {
	if got := gitx.ClassifyError(gitx.ErrAuthFailure); got != "auth" {
		t.Fatalf("expected auth, got %q", got)
	}
	if got := gitx.ClassifyError(gitx.ErrNetworkFailure); got != "network" {
		t.Fatalf("expected network, got %q", got)
	}
}

func TestClassifyErrorNil(t *testing.T) {
	if got := gitx.ClassifyError(nil); got != "" {
		t.Fatalf("expected empty string for nil error, got %q", got)
	}
}
