package sortutil

import (
	"sort"

	"github.com/reposentry/reposentry/internal/model"
)

// LessRepoIDPath provides deterministic ordering by repository identity first,
// then by path for multi-checkout scenarios.
func LessRepoIDPath(fullNameI, pathI, fullNameJ, pathJ string) bool {
	if fullNameI == fullNameJ {
		return pathI < pathJ
	}
	return fullNameI < fullNameJ
}

// SortRepoRecords orders persisted repository rows by FullName, then LocalPath.
func SortRepoRecords(records []model.RepoRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return LessRepoIDPath(records[i].FullName, records[i].LocalPath, records[j].FullName, records[j].LocalPath)
	})
}

// SortEventsByTime orders events newest first, breaking ties by ID so
// equal-timestamp events keep a stable, reproducible order.
func SortEventsByTime(events []model.SyncEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].ID > events[j].ID
		}
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}
