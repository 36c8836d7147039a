// Package store implements the State Store: a SQLite-backed, append-only
// event log plus a per-repo upserted status table, serialized behind a
// single mutex per spec §5.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/reposentry/reposentry/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS repositories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	full_name TEXT UNIQUE NOT NULL,
	local_path TEXT,
	current_branch TEXT,
	last_sync_at TEXT,
	last_sync_status TEXT DEFAULT 'unknown',
	skip_reason TEXT,
	error_class TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	repo_full_name TEXT,
	event_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	summary TEXT NOT NULL,
	details TEXT,
	acknowledged INTEGER DEFAULT 0,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_repos_full_name ON repositories(full_name);
CREATE INDEX IF NOT EXISTS idx_repos_status ON repositories(last_sync_status);
CREATE INDEX IF NOT EXISTS idx_events_unack ON events(acknowledged, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_repo ON events(repo_full_name, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type, timestamp);
`

const timeLayout = time.RFC3339Nano

// Store wraps a single *sql.DB. Writes are serialized through mu because
// modernc.org/sqlite's default journal mode does not tolerate concurrent
// writers from multiple goroutines sharing one connection pool; reads pass
// through unlocked.
type Store struct {
	db *sql.DB
	mu sync.Mutex
	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// Open opens (creating if necessary) the SQLite database at path and
// applies the schema. The parent directory must already exist; callers
// typically pass config.StatePath() after config.EnsureDataDir().
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state database at %s: %w", path, err)
	}
	// modernc.org/sqlite serializes internally but a single shared
	// connection avoids "database is locked" errors under our own
	// mutex-guarded write path.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db, Now: time.Now}, nil
}

// migrate applies additive schema changes that CREATE TABLE IF NOT EXISTS
// cannot retrofit onto a database created by an earlier version of
// RepoSentry. Each statement is tolerant of already having been applied.
func migrate(db *sql.DB) error {
	for _, stmt := range []string{
		`ALTER TABLE repositories ADD COLUMN error_class TEXT`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return err
		}
	}
	return nil
}

// OpenInMemory opens a private in-memory database, for tests.
func OpenInMemory() (*Store, error) {
	return Open(":memory:")
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// UpsertRepo inserts or updates a repository's row. A zero-value
// CurrentBranch/LocalPath in rec leaves the corresponding stored column
// unchanged (COALESCE semantics, matching the original state manager).
func (s *Store) UpsertRepo(ctx context.Context, rec model.RepoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var localPath, branch, lastSyncAt any
	if rec.LocalPath != "" {
		localPath = rec.LocalPath
	}
	if rec.CurrentBranch != "" {
		branch = rec.CurrentBranch
	}
	if rec.LastSyncStatus == model.StatusOK || rec.LastSyncStatus == model.StatusSkipped {
		lastSyncAt = rec.LastSyncAt.UTC().Format(timeLayout)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories (full_name, local_path, current_branch, last_sync_at, last_sync_status, skip_reason, error_class, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(full_name) DO UPDATE SET
			local_path = COALESCE(excluded.local_path, repositories.local_path),
			current_branch = COALESCE(excluded.current_branch, repositories.current_branch),
			last_sync_at = COALESCE(excluded.last_sync_at, repositories.last_sync_at),
			last_sync_status = excluded.last_sync_status,
			skip_reason = excluded.skip_reason,
			error_class = excluded.error_class,
			updated_at = excluded.updated_at
	`, rec.FullName, localPath, branch, lastSyncAt, string(rec.LastSyncStatus), nullableString(rec.SkipReason), nullableString(rec.ErrorClass), rec.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert repository %s: %w", rec.FullName, err)
	}
	return nil
}

// RecordOutcome is the orchestrator-facing entry point: it derives the
// RepoRecord and optional SyncEvent from a SyncOutcome per spec §4.5 and
// persists both in one call.
func (s *Store) RecordOutcome(ctx context.Context, outcome model.SyncOutcome) error {
	now := s.now()
	rec := model.RecordForOutcome(outcome, now)
	if err := s.UpsertRepo(ctx, rec); err != nil {
		return err
	}

	eventType, emit := model.EventForOutcome(outcome)
	if !emit {
		return nil
	}
	event := model.SyncEvent{
		Timestamp:    now,
		RepoFullName: outcome.RepoFullName,
		EventType:    eventType,
		Severity:     model.SeverityFor(eventType),
		Summary:      summaryFor(outcome),
		Details:      outcome.Error,
	}
	_, err := s.RecordEvent(ctx, event)
	return err
}

func summaryFor(o model.SyncOutcome) string {
	switch o.Kind {
	case model.OutcomeCloned:
		return fmt.Sprintf("Cloned %s (branch %s)", o.RepoFullName, o.Branch)
	case model.OutcomePulled:
		return fmt.Sprintf("Pulled %s (branch %s)", o.RepoFullName, o.Branch)
	case model.OutcomeBranchSwitched:
		return fmt.Sprintf("Switched %s from %s to %s", o.RepoFullName, o.From, o.To)
	case model.OutcomeFetchedOnly, model.OutcomeSkipped:
		return fmt.Sprintf("%s: %s", o.RepoFullName, o.Reason)
	case model.OutcomeFailed:
		return fmt.Sprintf("%s: %s", o.RepoFullName, o.Error)
	default:
		return o.RepoFullName
	}
}

// GetRepo returns a single repository's row, or ok=false if it has no row yet.
func (s *Store) GetRepo(ctx context.Context, fullName string) (model.RepoRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT full_name, local_path, current_branch, last_sync_at, last_sync_status, skip_reason, error_class, updated_at
		FROM repositories WHERE full_name = ?
	`, fullName)
	rec, err := scanRepoRow(row.Scan)
	if err == sql.ErrNoRows {
		return model.RepoRecord{}, false, nil
	}
	if err != nil {
		return model.RepoRecord{}, false, fmt.Errorf("query repository %s: %w", fullName, err)
	}
	return rec, true, nil
}

// ReposByStatus returns every repository with the given status, most
// recently updated first.
func (s *Store) ReposByStatus(ctx context.Context, status model.SyncStatus) ([]model.RepoRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT full_name, local_path, current_branch, last_sync_at, last_sync_status, skip_reason, error_class, updated_at
		FROM repositories WHERE last_sync_status = ? ORDER BY updated_at DESC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query repositories by status: %w", err)
	}
	defer rows.Close()
	return collectRepoRows(rows)
}

// ReposWithIssues returns every repository whose last_sync_status is
// skipped or error, most recently updated first.
func (s *Store) ReposWithIssues(ctx context.Context) ([]model.RepoRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT full_name, local_path, current_branch, last_sync_at, last_sync_status, skip_reason, error_class, updated_at
		FROM repositories WHERE last_sync_status IN ('skipped', 'error') ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query repositories with issues: %w", err)
	}
	defer rows.Close()
	return collectRepoRows(rows)
}

func scanRepoRow(scan func(...any) error) (model.RepoRecord, error) {
	var rec model.RepoRecord
	var localPath, branch, lastSyncAt, skipReason, errorClass sql.NullString
	var updatedAt string
	if err := scan(&rec.FullName, &localPath, &branch, &lastSyncAt, (*string)(&rec.LastSyncStatus), &skipReason, &errorClass, &updatedAt); err != nil {
		return model.RepoRecord{}, err
	}
	rec.LocalPath = localPath.String
	rec.CurrentBranch = branch.String
	rec.SkipReason = skipReason.String
	rec.ErrorClass = errorClass.String
	if lastSyncAt.Valid {
		rec.LastSyncAt, _ = time.Parse(timeLayout, lastSyncAt.String)
	}
	rec.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return rec, nil
}

func collectRepoRows(rows *sql.Rows) ([]model.RepoRecord, error) {
	var out []model.RepoRecord
	for rows.Next() {
		rec, err := scanRepoRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan repository row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordEvent appends one event and returns its assigned ID.
func (s *Store) RecordEvent(ctx context.Context, event model.SyncEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := event.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO events (timestamp, repo_full_name, event_type, severity, summary, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ts.UTC().Format(timeLayout), nullableString(event.RepoFullName), string(event.EventType), string(event.Severity), event.Summary, nullableString(event.Details))
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}
	return result.LastInsertId()
}

// EventFilter narrows RecentEvents; zero values are "no filter".
type EventFilter struct {
	Acknowledged *bool
	EventType    model.EventType
	Limit        int
}

// RecentEvents returns events matching filter, most recent first.
func (s *Store) RecentEvents(ctx context.Context, filter EventFilter) ([]model.SyncEvent, error) {
	query := `SELECT id, timestamp, repo_full_name, event_type, severity, summary, details, acknowledged FROM events WHERE 1=1`
	var args []any
	if filter.Acknowledged != nil {
		query += " AND acknowledged = ?"
		args = append(args, boolToInt(*filter.Acknowledged))
	}
	if filter.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, string(filter.EventType))
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	return collectEventRows(rows)
}

// EventsForRepo returns events for one repository, most recent first,
// optionally bounded by limit (0 means unbounded).
func (s *Store) EventsForRepo(ctx context.Context, fullName string, limit int) ([]model.SyncEvent, error) {
	query := `SELECT id, timestamp, repo_full_name, event_type, severity, summary, details, acknowledged
		FROM events WHERE repo_full_name = ? ORDER BY timestamp DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query, fullName)
	if err != nil {
		return nil, fmt.Errorf("query events for repo %s: %w", fullName, err)
	}
	defer rows.Close()
	return collectEventRows(rows)
}

func collectEventRows(rows *sql.Rows) ([]model.SyncEvent, error) {
	var out []model.SyncEvent
	for rows.Next() {
		var e model.SyncEvent
		var repoFullName, details sql.NullString
		var ts string
		var ack int
		if err := rows.Scan(&e.ID, &ts, &repoFullName, (*string)(&e.EventType), (*string)(&e.Severity), &e.Summary, &details, &ack); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Timestamp, _ = time.Parse(timeLayout, ts)
		e.RepoFullName = repoFullName.String
		e.Details = details.String
		e.Acknowledged = ack != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// UnacknowledgedCounts returns the count of unacknowledged events per
// severity.
func (s *Store) UnacknowledgedCounts(ctx context.Context) (infoCount, warningCount, errorCount int, err error) {
	rows, qerr := s.db.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM events WHERE acknowledged = 0 GROUP BY severity
	`)
	if qerr != nil {
		return 0, 0, 0, fmt.Errorf("query unacknowledged counts: %w", qerr)
	}
	defer rows.Close()
	for rows.Next() {
		var severity string
		var count int
		if serr := rows.Scan(&severity, &count); serr != nil {
			return 0, 0, 0, fmt.Errorf("scan unacknowledged count row: %w", serr)
		}
		switch model.Severity(severity) {
		case model.SeverityInfo:
			infoCount = count
		case model.SeverityWarning:
			warningCount = count
		case model.SeverityError:
			errorCount = count
		}
	}
	return infoCount, warningCount, errorCount, rows.Err()
}

// Acknowledge marks a single event acknowledged by ID.
func (s *Store) Acknowledge(ctx context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE events SET acknowledged = 1 WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("acknowledge event %d: %w", eventID, err)
	}
	return nil
}

// AcknowledgeAll marks every unacknowledged event acknowledged and returns
// the count affected.
func (s *Store) AcknowledgeAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result, err := s.db.ExecContext(ctx, `UPDATE events SET acknowledged = 1 WHERE acknowledged = 0`)
	if err != nil {
		return 0, fmt.Errorf("acknowledge all events: %w", err)
	}
	return result.RowsAffected()
}

// Cleanup deletes acknowledged events older than days; unacknowledged
// events are never deleted regardless of age, matching the original state
// manager's retention rule.
func (s *Store) Cleanup(ctx context.Context, days int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().AddDate(0, 0, -days).UTC().Format(timeLayout)
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < ? AND acknowledged = 1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old events: %w", err)
	}
	return result.RowsAffected()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
