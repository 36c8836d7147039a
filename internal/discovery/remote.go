package discovery

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/reposentry/reposentry/internal/model"
)

// RemoteRepo is the raw record returned by an authenticated remote API
// client (GitHub/GitLab/...). Acquiring the client and its credentials is
// an external collaborator's job; the adapter below only maps these fields.
type RemoteRepo struct {
	Owner         string
	Name          string
	CloneURLHTTPS string
	CloneURLSSH   string
	IsFork        bool
	IsArchived    bool
	SizeBytes     int64
	DefaultBranch string
	UpdatedAt     time.Time
}

// RemoteClient is the external collaborator that returns raw repository
// records plus the authenticated identity used to scope them. Credential
// acquisition (gh CLI, token, OAuth) lives entirely on the implementation.
type RemoteClient interface {
	// ListRepositories returns every repository visible to the
	// authenticated identity, optionally scoped to the given
	// organizations (empty means "the authenticated user's own repos").
	ListRepositories(ctx context.Context, organizations []string) ([]RemoteRepo, error)
	// Ping is a cheap reachability/credential probe.
	Ping(ctx context.Context) bool
}

// PathPolicy computes local_path from organization layout configuration,
// per spec §4.3.2.
type PathPolicy struct {
	BaseDirectory   string
	SeparateOrgDirs bool
	// PrefixOrg selects the "owner-name" single-path-component folder name
	// when SeparateOrgDirs is false; when both are false the folder is
	// just "name" (conflict_resolution = skip, left to the caller to
	// detect collisions).
	PrefixOrg bool
}

func (p PathPolicy) LocalPath(owner, name string) string {
	if p.SeparateOrgDirs {
		return filepath.Join(p.BaseDirectory, owner, name)
	}
	if p.PrefixOrg {
		return filepath.Join(p.BaseDirectory, owner+"-"+name)
	}
	return filepath.Join(p.BaseDirectory, name)
}

// FilterPolicy applies the discovery filters from spec §4.3.3 /
// config.Filters + config.GitHub.
type FilterPolicy struct {
	IncludeForks    bool
	ExcludePatterns []string
	MaxAge          time.Duration // 0 means no cutoff
	MaxSizeBytes    int64         // 0 means no cutoff
}

// Allow reports whether repo passes every configured filter.
func (f FilterPolicy) Allow(repo RemoteRepo, now time.Time) bool {
	if repo.IsFork && !f.IncludeForks {
		return false
	}
	if matchesSimpleGlob(repo.Name, f.ExcludePatterns) {
		return false
	}
	if f.MaxAge > 0 && !repo.UpdatedAt.IsZero() && now.Sub(repo.UpdatedAt) > f.MaxAge {
		return false
	}
	if f.MaxSizeBytes > 0 && repo.SizeBytes > f.MaxSizeBytes {
		return false
	}
	return true
}

// matchesSimpleGlob implements the spec's simplistic exclusion-pattern
// interpretation (REDESIGN note: `*` → `.*`, `.` → `\.`, anchored full
// match; no bracket/charclass support is guaranteed).
func matchesSimpleGlob(name string, patterns []string) bool {
	for _, pattern := range patterns {
		re := simpleGlobToRegexp(pattern)
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func simpleGlobToRegexp(pattern string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	return regexp.MustCompile("^" + escaped + "$")
}

// chooseCloneURL prefers SSH when both URLs are present, per spec §4.3.1.
func chooseCloneURL(repo RemoteRepo) (url, alt string, method model.CloneMethod) {
	switch {
	case repo.CloneURLSSH != "" && repo.CloneURLHTTPS != "":
		return repo.CloneURLSSH, repo.CloneURLHTTPS, model.CloneSSH
	case repo.CloneURLSSH != "":
		return repo.CloneURLSSH, "", model.CloneSSH
	default:
		return repo.CloneURLHTTPS, "", model.CloneHTTPS
	}
}

// toRepoSpec maps a RemoteRepo into a model.RepoSpec using the given path
// policy and provider tag.
func toRepoSpec(repo RemoteRepo, provider string, paths PathPolicy) model.RepoSpec {
	url, alt, method := chooseCloneURL(repo)
	return model.RepoSpec{
		Owner:         repo.Owner,
		Name:          repo.Name,
		CloneURL:      url,
		CloneURLAlt:   alt,
		CloneMethod:   method,
		LocalPath:     paths.LocalPath(repo.Owner, repo.Name),
		IsFork:        repo.IsFork,
		IsArchived:    repo.IsArchived,
		SizeBytes:     repo.SizeBytes,
		DefaultBranch: repo.DefaultBranch,
		Provider:      provider,
		UpdatedAt:     repo.UpdatedAt,
	}
}
