package gitx

import (
	"net/url"
	"sort"
	"strings"
)

// NormalizeURL converts a git remote URL into a canonical repo_id, used for
// display/dedup purposes (distinct from NormalizeRemote, which implements
// the spec's exact mismatch-detection rule).
//
//	git@github.com:Org/Repo.git     → github.com/Org/Repo
//	https://github.com/Org/Repo.git → github.com/Org/Repo
func NormalizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}

	var host, path string

	if i := strings.Index(rawURL, "@"); i >= 0 && !strings.Contains(rawURL[:i], "://") {
		rest := rawURL[i+1:]
		if colonIdx := strings.Index(rest, ":"); colonIdx >= 0 {
			host = rest[:colonIdx]
			path = rest[colonIdx+1:]
		}
	} else {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return rawURL
		}
		host = parsed.Hostname()
		path = strings.TrimPrefix(parsed.Path, "/")
	}

	host = strings.ToLower(host)
	path = strings.TrimSuffix(path, ".git")
	path = strings.TrimRight(path, "/")

	if host == "" {
		return path
	}
	return host + "/" + path
}

// NormalizeRemote implements the spec §4.5 URL normalization rule used for
// remote-mismatch detection: replace "git@<host>:" with "https://<host>/",
// strip a trailing ".git", lowercase. Two URLs denote the same remote iff
// their normalized forms are equal.
func NormalizeRemote(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if strings.HasPrefix(s, "git@") {
		rest := s[len("git@"):]
		if i := strings.Index(rest, ":"); i >= 0 {
			s = "https://" + rest[:i] + "/" + rest[i+1:]
		}
	}
	s = strings.TrimSuffix(s, ".git")
	return strings.ToLower(s)
}

// PrimaryRemote selects the preferred remote from a list.
// Prefers "origin", falls back to first alphabetically.
func PrimaryRemote(remoteNames []string) string {
	if len(remoteNames) == 0 {
		return ""
	}
	for _, name := range remoteNames {
		if name == "origin" {
			return "origin"
		}
	}
	sorted := make([]string, len(remoteNames))
	copy(sorted, remoteNames)
	sort.Strings(sorted)
	return sorted[0]
}
