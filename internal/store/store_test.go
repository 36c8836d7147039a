package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reposentry/reposentry/internal/model"
	"github.com/reposentry/reposentry/internal/store"
)

var _ = Describe("Store", func() {
	var (
		s   *store.Store
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		s, err = store.OpenInMemory()
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
		DeferCleanup(func() { _ = s.Close() })
	})

	It("starts with an empty repositories table", func() {
		repos, err := s.ReposByStatus(ctx, model.StatusOK)
		Expect(err).NotTo(HaveOccurred())
		Expect(repos).To(BeEmpty())
	})

	It("upserts and retrieves a repository", func() {
		now := time.Now()
		Expect(s.UpsertRepo(ctx, model.RepoRecord{
			FullName:       "owner/repo",
			LocalPath:      "/path/to/repo",
			CurrentBranch:  "main",
			LastSyncStatus: model.StatusOK,
			LastSyncAt:     now,
			UpdatedAt:      now,
		})).To(Succeed())

		rec, ok, err := s.GetRepo(ctx, "owner/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(rec.LocalPath).To(Equal("/path/to/repo"))
		Expect(rec.CurrentBranch).To(Equal("main"))
		Expect(rec.LastSyncStatus).To(Equal(model.StatusOK))
	})

	It("preserves local_path on update when the incoming value is empty", func() {
		now := time.Now()
		Expect(s.UpsertRepo(ctx, model.RepoRecord{
			FullName: "owner/repo", LocalPath: "/path", CurrentBranch: "main",
			LastSyncStatus: model.StatusOK, LastSyncAt: now, UpdatedAt: now,
		})).To(Succeed())

		Expect(s.UpsertRepo(ctx, model.RepoRecord{
			FullName: "owner/repo", CurrentBranch: "dev",
			LastSyncStatus: model.StatusSkipped, SkipReason: "local changes", UpdatedAt: now,
		})).To(Succeed())

		rec, ok, err := s.GetRepo(ctx, "owner/repo")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(rec.LocalPath).To(Equal("/path"))
		Expect(rec.CurrentBranch).To(Equal("dev"))
		Expect(rec.LastSyncStatus).To(Equal(model.StatusSkipped))
		Expect(rec.SkipReason).To(Equal("local changes"))
	})

	It("records an outcome and its derived event together", func() {
		outcome := model.BranchSwitched("/path", "main", "feature/x", 1, "owner/repo")
		Expect(s.RecordOutcome(ctx, outcome)).To(Succeed())

		events, err := s.EventsForRepo(ctx, "owner/repo", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
		Expect(events[0].EventType).To(Equal(model.EventBranchSwitch))
		Expect(events[0].Severity).To(Equal(model.SeverityWarning))
		Expect(events[0].Acknowledged).To(BeFalse())
	})

	It("suppresses events for quiet outcomes", func() {
		Expect(s.RecordOutcome(ctx, model.UpToDate("/path", "main", "owner/repo"))).To(Succeed())
		Expect(s.RecordOutcome(ctx, model.Pulled("/path", "main", 0, "owner/repo"))).To(Succeed())

		events, err := s.EventsForRepo(ctx, "owner/repo", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(BeEmpty())
	})

	It("acknowledges a single event", func() {
		Expect(s.RecordOutcome(ctx, model.Cloned("/path", "main", "owner/repo"))).To(Succeed())
		events, err := s.RecentEvents(ctx, store.EventFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))

		Expect(s.Acknowledge(ctx, events[0].ID)).To(Succeed())

		unacked := false
		events, err = s.RecentEvents(ctx, store.EventFilter{Acknowledged: &unacked})
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(BeEmpty())
	})

	It("acknowledges all events at once", func() {
		Expect(s.RecordOutcome(ctx, model.Cloned("/a", "main", "owner/a"))).To(Succeed())
		Expect(s.RecordOutcome(ctx, model.Cloned("/b", "main", "owner/b"))).To(Succeed())

		n, err := s.AcknowledgeAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(2)))

		unacked := false
		events, err := s.RecentEvents(ctx, store.EventFilter{Acknowledged: &unacked})
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(BeEmpty())
	})

	It("counts unacknowledged events by severity", func() {
		Expect(s.RecordOutcome(ctx, model.Cloned("/a", "main", "owner/a"))).To(Succeed())                                 // info
		Expect(s.RecordOutcome(ctx, model.BranchSwitched("/b", "main", "dev", 1, "owner/b"))).To(Succeed())               // warning
		Expect(s.RecordOutcome(ctx, model.Skipped("/c", model.ReasonLocalChanges, "owner/c"))).To(Succeed())              // warning
		Expect(s.RecordOutcome(ctx, model.Failed("/d", "network unreachable", "network", "owner/d"))).To(Succeed())       // error

		info, warning, errCount, err := s.UnacknowledgedCounts(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(info).To(Equal(1))
		Expect(warning).To(Equal(2))
		Expect(errCount).To(Equal(1))
	})

	It("reports repositories with issues", func() {
		now := time.Now()
		Expect(s.UpsertRepo(ctx, model.RepoRecord{FullName: "owner/ok", LastSyncStatus: model.StatusOK, UpdatedAt: now})).To(Succeed())
		Expect(s.UpsertRepo(ctx, model.RepoRecord{FullName: "owner/skipped", LastSyncStatus: model.StatusSkipped, SkipReason: "local changes", UpdatedAt: now})).To(Succeed())
		Expect(s.UpsertRepo(ctx, model.RepoRecord{FullName: "owner/errored", LastSyncStatus: model.StatusError, SkipReason: "network error", UpdatedAt: now})).To(Succeed())

		issues, err := s.ReposWithIssues(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(issues).To(HaveLen(2))
	})

	It("never deletes unacknowledged events during cleanup regardless of age", func() {
		s.Now = func() time.Time { return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) }
		Expect(s.RecordOutcome(ctx, model.Cloned("/a", "main", "owner/a"))).To(Succeed())

		s.Now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
		n, err := s.Cleanup(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(0)))

		events, err := s.RecentEvents(ctx, store.EventFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(1))
	})

	It("deletes acknowledged events older than the retention window", func() {
		s.Now = func() time.Time { return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) }
		Expect(s.RecordOutcome(ctx, model.Cloned("/a", "main", "owner/a"))).To(Succeed())
		events, err := s.RecentEvents(ctx, store.EventFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Acknowledge(ctx, events[0].ID)).To(Succeed())

		s.Now = func() time.Time { return time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC) }
		n, err := s.Cleanup(ctx, 30)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
	})
})
