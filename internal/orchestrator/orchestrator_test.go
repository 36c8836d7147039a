package orchestrator_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reposentry/reposentry/internal/gitx"
	"github.com/reposentry/reposentry/internal/model"
	"github.com/reposentry/reposentry/internal/orchestrator"
	"github.com/reposentry/reposentry/internal/reposync"
)

// blockingRunner blocks every Run call until release is closed, recording
// how many calls are concurrently in flight via started.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context, _ string, _ ...string) (string, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	select {
	case <-b.release:
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type recordingStore struct {
	mu       sync.Mutex
	recorded []model.SyncOutcome
}

func (r *recordingStore) RecordOutcome(_ context.Context, outcome model.SyncOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, outcome)
	return nil
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recorded)
}

var _ = Describe("Orchestrator", func() {
	It("computes effective concurrency within [1, 12]", func() {
		repos := make([]model.RepoSpec, 5)
		got := orchestrator.EffectiveConcurrency(4, repos)
		Expect(got).To(BeNumerically(">=", 1))
		Expect(got).To(BeNumerically("<=", 12))
	})

	It("respects concurrency by not exceeding it", func() {
		blocker := &blockingRunner{started: make(chan struct{}, 3), release: make(chan struct{})}
		store := &recordingStore{}
		orch := &orchestrator.Orchestrator{
			Machine: &reposync.Machine{Executor: &gitx.Executor{Runner: blocker}},
			Store:   store,
		}

		base := GinkgoT().TempDir()
		repos := []model.RepoSpec{
			{Owner: "o", Name: "repo1", LocalPath: filepath.Join(base, "repo1"), CloneURL: "https://example.com/o/repo1.git"},
			{Owner: "o", Name: "repo2", LocalPath: filepath.Join(base, "repo2"), CloneURL: "https://example.com/o/repo2.git"},
			{Owner: "o", Name: "repo3", LocalPath: filepath.Join(base, "repo3"), CloneURL: "https://example.com/o/repo3.git"},
		}

		done := make(chan model.SyncSummary, 1)
		go func() {
			summary := orch.Sync(context.Background(), repos, orchestrator.Options{BaseParallel: 1})
			done <- summary
		}()

		<-blocker.started
		select {
		case <-blocker.started:
			Fail("sync exceeded concurrency limit of 1")
		case <-time.After(200 * time.Millisecond):
		}

		close(blocker.release)
		summary := <-done
		Expect(summary.Total).To(Equal(3))
		Expect(store.count()).To(Equal(3))
	})

	It("times out long-running operations as failures", func() {
		blocker := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
		store := &recordingStore{}
		orch := &orchestrator.Orchestrator{
			Machine: &reposync.Machine{Executor: &gitx.Executor{Runner: blocker}},
			Store:   store,
		}
		repos := []model.RepoSpec{
			{Owner: "o", Name: "repo1", LocalPath: filepath.Join(GinkgoT().TempDir(), "repo1"), CloneURL: "https://example.com/o/repo1.git"},
		}

		summary := orch.Sync(context.Background(), repos, orchestrator.Options{BaseParallel: 1, Timeout: 50 * time.Millisecond})
		Expect(summary.Total).To(Equal(1))
		Expect(summary.Failed).To(Equal(1))
		Expect(summary.Outcomes[0].Kind).To(Equal(model.OutcomeFailed))
	})

	It("records a store write failure as a warning without failing the sync", func() {
		blocker := &blockingRunner{started: make(chan struct{}, 1), release: make(chan struct{})}
		close(blocker.release)
		orch := &orchestrator.Orchestrator{
			Machine: &reposync.Machine{Executor: &gitx.Executor{Runner: blocker}},
			Store:   failingStore{},
		}
		repos := []model.RepoSpec{
			{Owner: "o", Name: "repo1", LocalPath: filepath.Join(GinkgoT().TempDir(), "repo1"), CloneURL: "https://example.com/o/repo1.git"},
		}
		summary := orch.Sync(context.Background(), repos, orchestrator.Options{BaseParallel: 1})
		Expect(summary.Total).To(Equal(1))
	})
})

type failingStore struct{}

func (failingStore) RecordOutcome(context.Context, model.SyncOutcome) error {
	return errStoreDown
}

var errStoreDown = errors.New("store unavailable")
