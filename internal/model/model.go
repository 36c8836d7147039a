// Package model defines the data types shared across the git execution,
// discovery, state machine, orchestrator, and store packages.
package model

import "time"

// Remote represents a single git remote.
type Remote struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Head represents the current HEAD state of a repo.
type Head struct {
	Branch   string `json:"branch" yaml:"branch"`
	Detached bool   `json:"detached" yaml:"detached"`
}

// Worktree represents the working tree status. Nil for bare repos.
type Worktree struct {
	Dirty     bool `json:"dirty" yaml:"dirty"`
	Staged    int  `json:"staged" yaml:"staged"`
	Unstaged  int  `json:"unstaged" yaml:"unstaged"`
	Untracked int  `json:"untracked" yaml:"untracked"`
}

// TrackingStatus enumerates the possible upstream tracking states.
type TrackingStatus string

const (
	TrackingAhead    TrackingStatus = "ahead"
	TrackingBehind   TrackingStatus = "behind"
	TrackingDiverged TrackingStatus = "diverged"
	TrackingEqual    TrackingStatus = "equal"
	TrackingGone     TrackingStatus = "gone"
	TrackingNone     TrackingStatus = "none"
)

// Tracking represents the upstream tracking relationship for the current branch.
type Tracking struct {
	Upstream string         `json:"upstream" yaml:"upstream"`
	Status   TrackingStatus `json:"status" yaml:"status"`
	Ahead    *int           `json:"ahead" yaml:"ahead"`
	Behind   *int           `json:"behind" yaml:"behind"`
}

// CloneMethod is the transport used to clone a RepoSpec.
type CloneMethod string

const (
	CloneSSH   CloneMethod = "ssh"
	CloneHTTPS CloneMethod = "https"
)

// RepoSpec is a provider-agnostic description of one unit of sync work.
// Invariant: LocalPath is fully resolved (no environment placeholders)
// before the orchestrator sees it.
type RepoSpec struct {
	Owner         string
	Name          string
	CloneURL      string
	CloneURLAlt   string
	CloneMethod   CloneMethod
	LocalPath     string
	IsFork        bool
	IsArchived    bool
	SizeBytes     int64
	DefaultBranch string
	Provider      string
	UpdatedAt     time.Time
}

// FullName returns the "owner/name" identity used as the RepoRecord key.
func (s RepoSpec) FullName() string {
	if s.Owner == "" {
		return s.Name
	}
	return s.Owner + "/" + s.Name
}

// RepoState is the observed state of a local checkout at a point in time.
// It is produced fresh by the state machine at the start of every per-repo
// operation and is never cached across operations.
type RepoState struct {
	Path                  string
	Exists                bool
	RemoteURL             string
	CurrentBranch         string
	HasUncommittedChanges bool
	HasUntrackedFiles     bool
	IsAheadOfRemote       bool
	IsBehindRemote        bool
	HasConflicts          bool
}

// OutcomeKind tags the seven disjoint SyncOutcome variants.
type OutcomeKind string

const (
	OutcomeCloned         OutcomeKind = "cloned"
	OutcomePulled         OutcomeKind = "pulled"
	OutcomeBranchSwitched OutcomeKind = "branch_switched"
	OutcomeFetchedOnly    OutcomeKind = "fetched_only"
	OutcomeUpToDate       OutcomeKind = "up_to_date"
	OutcomeSkipped        OutcomeKind = "skipped"
	OutcomeFailed         OutcomeKind = "failed"
)

// SyncOutcome is the tagged result of one per-repo operation. Exactly one
// kind is populated per value; switch exhaustively over Kind at aggregation
// and persistence sites so a new variant forces review of both.
type SyncOutcome struct {
	Kind OutcomeKind
	Path string

	Branch         string // Cloned / Pulled / UpToDate (BranchSwitched uses To)
	CommitsUpdated int    // Pulled / BranchSwitched
	From           string // BranchSwitched
	To             string // BranchSwitched
	Reason         string // FetchedOnly / Skipped
	Error          string // Failed
	ErrorClass     string // Failed, from gitx.ClassifyError

	RepoFullName string
}

func Cloned(path, branch, fullName string) SyncOutcome {
	return SyncOutcome{Kind: OutcomeCloned, Path: path, Branch: branch, RepoFullName: fullName}
}

func Pulled(path, branch string, commitsUpdated int, fullName string) SyncOutcome {
	return SyncOutcome{Kind: OutcomePulled, Path: path, Branch: branch, CommitsUpdated: commitsUpdated, RepoFullName: fullName}
}

func BranchSwitched(path, from, to string, commitsUpdated int, fullName string) SyncOutcome {
	return SyncOutcome{Kind: OutcomeBranchSwitched, Path: path, From: from, To: to, CommitsUpdated: commitsUpdated, RepoFullName: fullName}
}

func FetchedOnly(path, reason, fullName string) SyncOutcome {
	return SyncOutcome{Kind: OutcomeFetchedOnly, Path: path, Reason: reason, RepoFullName: fullName}
}

func UpToDate(path, branch, fullName string) SyncOutcome {
	return SyncOutcome{Kind: OutcomeUpToDate, Path: path, Branch: branch, RepoFullName: fullName}
}

func Skipped(path, reason, fullName string) SyncOutcome {
	return SyncOutcome{Kind: OutcomeSkipped, Path: path, Reason: reason, RepoFullName: fullName}
}

func Failed(path, errText, errClass, fullName string) SyncOutcome {
	return SyncOutcome{Kind: OutcomeFailed, Path: path, Error: errText, ErrorClass: errClass, RepoFullName: fullName}
}

// Successful reports whether this outcome counts toward SyncSummary.Successful.
func (o SyncOutcome) Successful() bool {
	switch o.Kind {
	case OutcomeCloned, OutcomePulled, OutcomeBranchSwitched, OutcomeFetchedOnly, OutcomeUpToDate:
		return true
	default:
		return false
	}
}

// SyncSummary is the aggregate over one orchestrator run.
type SyncSummary struct {
	Total      int
	Successful int
	Skipped    int
	Failed     int
	Duration   time.Duration
	Outcomes   []SyncOutcome
}

// Severity is the derived importance of a SyncEvent.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// EventType enumerates the kinds of SyncEvent the store persists.
type EventType string

const (
	EventCloned               EventType = "cloned"
	EventPulled               EventType = "pulled"
	EventBranchSwitch         EventType = "branch_switch"
	EventSkippedLocalChanges  EventType = "skipped_local_changes"
	EventSkippedConflicts     EventType = "skipped_conflicts"
	EventSkippedAheadOfRemote EventType = "skipped_ahead_of_remote"
	EventSyncError            EventType = "sync_error"
)

// SeverityFor maps an EventType to its fixed severity.
func SeverityFor(t EventType) Severity {
	switch t {
	case EventCloned, EventPulled, EventSkippedAheadOfRemote:
		return SeverityInfo
	case EventBranchSwitch, EventSkippedLocalChanges, EventSkippedConflicts:
		return SeverityWarning
	case EventSyncError:
		return SeverityError
	default:
		return SeverityInfo
	}
}

// SyncEvent is a persisted, timestamped, typed record emitted as a side
// effect of a state-affecting outcome. Append-only; acknowledgement mutates
// Acknowledged in place.
type SyncEvent struct {
	ID           int64
	Timestamp    time.Time
	RepoFullName string
	EventType    EventType
	Severity     Severity
	Summary      string
	Details      string
	Acknowledged bool
}

// SyncStatus is the last-known disposition of a repository, persisted in a
// RepoRecord.
type SyncStatus string

const (
	StatusOK      SyncStatus = "ok"
	StatusSkipped SyncStatus = "skipped"
	StatusError   SyncStatus = "error"
	StatusUnknown SyncStatus = "unknown"
)

// RepoRecord is the persisted per-repo row. Upsert semantics: a zero-value
// CurrentBranch on the incoming update preserves the previous value;
// LastSyncStatus and SkipReason always overwrite.
type RepoRecord struct {
	FullName       string
	LocalPath      string
	CurrentBranch  string
	LastSyncAt     time.Time
	LastSyncStatus SyncStatus
	SkipReason     string
	ErrorClass     string
	UpdatedAt      time.Time
}

// Canonical reason strings, matched verbatim against the scenarios in spec §8.
const (
	ReasonLocalChanges   = "Repository has local changes (uncommitted or untracked files)"
	ReasonRemoteMismatch = "Remote URL mismatch"
	ReasonConflicts      = "Repository has unresolved conflicts"
	ReasonFetchOnly      = "Fetch-only strategy configured"
	ReasonAheadOfRemote  = "Repository is ahead of remote (has local commits)"
)

// classifySkipReason maps the known FetchedOnly/Skipped reason strings to
// their event type. An unrecognized reason returns "".
func classifySkipReason(reason string) EventType {
	switch reason {
	case ReasonLocalChanges:
		return EventSkippedLocalChanges
	case ReasonConflicts:
		return EventSkippedConflicts
	case ReasonAheadOfRemote:
		return EventSkippedAheadOfRemote
	default:
		return ""
	}
}

// RecordForOutcome derives the RepoRecord fields implied by a SyncOutcome,
// per the outcome-to-record mapping table in spec §4.5.
func RecordForOutcome(o SyncOutcome, now time.Time) RepoRecord {
	rec := RepoRecord{
		FullName:   o.RepoFullName,
		LocalPath:  o.Path,
		LastSyncAt: now,
		UpdatedAt:  now,
	}
	switch o.Kind {
	case OutcomeCloned:
		rec.LastSyncStatus = StatusOK
		rec.CurrentBranch = o.Branch
	case OutcomePulled:
		rec.LastSyncStatus = StatusOK
		rec.CurrentBranch = o.Branch
	case OutcomeBranchSwitched:
		rec.LastSyncStatus = StatusOK
		rec.CurrentBranch = o.To
	case OutcomeFetchedOnly:
		if classifySkipReason(o.Reason) != "" {
			rec.LastSyncStatus = StatusSkipped
			rec.SkipReason = o.Reason
		} else {
			rec.LastSyncStatus = StatusOK
		}
	case OutcomeUpToDate:
		rec.LastSyncStatus = StatusOK
		rec.CurrentBranch = o.Branch
	case OutcomeSkipped:
		rec.LastSyncStatus = StatusSkipped
		rec.SkipReason = o.Reason
	case OutcomeFailed:
		rec.LastSyncStatus = StatusError
		rec.SkipReason = o.Error
		rec.ErrorClass = o.ErrorClass
	default:
		rec.LastSyncStatus = StatusUnknown
	}
	return rec
}

// EventForOutcome derives the (EventType, emit) implied by a SyncOutcome,
// per the outcome-to-event mapping table. UpToDate, Pulled{n=0}, and
// FetchedOnly{other} emit no event.
func EventForOutcome(o SyncOutcome) (EventType, bool) {
	switch o.Kind {
	case OutcomeCloned:
		return EventCloned, true
	case OutcomePulled:
		return EventPulled, o.CommitsUpdated > 0
	case OutcomeBranchSwitched:
		return EventBranchSwitch, true
	case OutcomeFetchedOnly:
		if t := classifySkipReason(o.Reason); t != "" {
			return t, true
		}
		return "", false
	case OutcomeUpToDate:
		return "", false
	case OutcomeSkipped:
		if t := classifySkipReason(o.Reason); t != "" {
			return t, true
		}
		return EventSkippedLocalChanges, true
	case OutcomeFailed:
		return EventSyncError, true
	default:
		return "", false
	}
}
