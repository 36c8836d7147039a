package model_test

import (
	"testing"
	"time"

	"github.com/reposentry/reposentry/internal/model"
)

func TestEventForOutcomeSuppressesQuietOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		outcome model.SyncOutcome
		wantOK  bool
	}{
		{"up_to_date", model.UpToDate("/r", "main", "o/r"), false},
		{"pulled_zero", model.Pulled("/r", "main", 0, "o/r"), false},
		{"pulled_nonzero", model.Pulled("/r", "main", 1, "o/r"), true},
		{"fetched_only_other", model.FetchedOnly("/r", "Fetch-only strategy configured", "o/r"), false},
		{"fetched_only_ahead", model.FetchedOnly("/r", model.ReasonAheadOfRemote, "o/r"), true},
		{"cloned", model.Cloned("/r", "main", "o/r"), true},
		{"failed", model.Failed("/r", "boom", "unknown", "o/r"), true},
	}
	for _, tc := range cases {
		_, ok := model.EventForOutcome(tc.outcome)
		if ok != tc.wantOK {
			t.Errorf("%s: EventForOutcome emit = %v, want %v", tc.name, ok, tc.wantOK)
		}
	}
}

func TestEventForOutcomeTypesAndSeverity(t *testing.T) {
	et, ok := model.EventForOutcome(model.Skipped("/r", model.ReasonLocalChanges, "o/r"))
	if !ok || et != model.EventSkippedLocalChanges {
		t.Fatalf("expected skipped_local_changes event, got %v %v", et, ok)
	}
	if model.SeverityFor(et) != model.SeverityWarning {
		t.Fatalf("expected warning severity")
	}

	et, ok = model.EventForOutcome(model.Failed("/r", "boom", "unknown", "o/r"))
	if !ok || et != model.EventSyncError {
		t.Fatalf("expected sync_error event, got %v %v", et, ok)
	}
	if model.SeverityFor(et) != model.SeverityError {
		t.Fatalf("expected error severity")
	}
}

func TestRecordForOutcomeBranchSwitchUsesTo(t *testing.T) {
	now := time.Now()
	rec := model.RecordForOutcome(model.BranchSwitched("/r", "main", "feature/x", 1, "o/r"), now)
	if rec.CurrentBranch != "feature/x" {
		t.Fatalf("expected branch feature/x, got %q", rec.CurrentBranch)
	}
	if rec.LastSyncStatus != model.StatusOK {
		t.Fatalf("expected status ok, got %q", rec.LastSyncStatus)
	}
}

func TestRecordForOutcomeSkippedCarriesReason(t *testing.T) {
	rec := model.RecordForOutcome(model.Skipped("/r", model.ReasonLocalChanges, "o/r"), time.Now())
	if rec.LastSyncStatus != model.StatusSkipped {
		t.Fatalf("expected status skipped, got %q", rec.LastSyncStatus)
	}
	if rec.SkipReason != model.ReasonLocalChanges {
		t.Fatalf("expected skip reason to be carried over, got %q", rec.SkipReason)
	}
}

func TestSuccessfulClassification(t *testing.T) {
	successful := []model.SyncOutcome{
		model.Cloned("/r", "main", "o/r"),
		model.Pulled("/r", "main", 1, "o/r"),
		model.BranchSwitched("/r", "a", "b", 1, "o/r"),
		model.FetchedOnly("/r", "x", "o/r"),
		model.UpToDate("/r", "main", "o/r"),
	}
	for _, o := range successful {
		if !o.Successful() {
			t.Errorf("%v: expected Successful() == true", o.Kind)
		}
	}
	notSuccessful := []model.SyncOutcome{
		model.Skipped("/r", "x", "o/r"),
		model.Failed("/r", "x", "unknown", "o/r"),
	}
	for _, o := range notSuccessful {
		if o.Successful() {
			t.Errorf("%v: expected Successful() == false", o.Kind)
		}
	}
}
