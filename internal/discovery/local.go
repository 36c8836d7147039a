package discovery

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/reposentry/reposentry/internal/gitx"
	"github.com/reposentry/reposentry/internal/model"
)

// LocalOptions configures the filesystem-walking LocalProvider.
type LocalOptions struct {
	Roots          []string
	Exclude        []string // glob patterns to skip
	FollowSymlinks bool
}

// LocalProvider discovers already-checked-out repositories already present
// under the configured roots. It never performs network I/O, so
// IsAvailable reports true whenever at least one root exists.
type LocalProvider struct {
	Options  LocalOptions
	Executor *gitx.Executor
}

// NewLocalProvider constructs a LocalProvider with a default Executor.
func NewLocalProvider(opts LocalOptions) *LocalProvider {
	return &LocalProvider{Options: opts, Executor: gitx.NewExecutor()}
}

func (p *LocalProvider) ProviderName() string { return "local" }

func (p *LocalProvider) IsAvailable(ctx context.Context) bool {
	for _, root := range p.Options.Roots {
		if root == "" {
			continue
		}
		if _, err := os.Stat(root); err == nil {
			return true
		}
	}
	return false
}

// Discover walks all configured roots and returns one RepoSpec per detected
// git working tree, skipping directories matching exclude patterns and
// never recursing into .git directories or matched exclusions.
func (p *LocalProvider) Discover(ctx context.Context) ([]model.RepoSpec, error) {
	visited := make(map[string]struct{})
	skipDirs := make(map[string]struct{})
	var specs []model.RepoSpec

	for _, root := range p.Options.Roots {
		if root == "" {
			continue
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		if err := p.walkRoot(ctx, absRoot, visited, skipDirs, &specs); err != nil {
			return nil, err
		}
	}
	return specs, nil
}

// MatchesExclude checks whether a path matches any of the given exclude
// glob patterns.
func MatchesExclude(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	slashPath := filepath.ToSlash(path)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		match, err := doublestar.Match(pattern, slashPath)
		if err != nil {
			continue
		}
		if match {
			return true
		}
	}
	return false
}

func (p *LocalProvider) walkRoot(ctx context.Context, root string, visited, skipDirs map[string]struct{}, specs *[]model.RepoSpec) error {
	realRoot := root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		realRoot = resolved
	}
	if _, ok := visited[realRoot]; ok {
		return nil
	}
	visited[realRoot] = struct{}{}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.Type()&os.ModeSymlink != 0 && d.IsDir() && !p.Options.FollowSymlinks {
			return fs.SkipDir
		}

		if d.IsDir() {
			if _, ok := skipDirs[path]; ok {
				return fs.SkipDir
			}
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			if MatchesExclude(path, p.Options.Exclude) {
				return fs.SkipDir
			}
		} else {
			return nil
		}

		isRepoRoot, bare, gitdir, err := p.detectRepo(ctx, path)
		if err != nil {
			return err
		}
		if isRepoRoot {
			if gitdir != "" {
				skipDirs[gitdir] = struct{}{}
			}
			if bare {
				return fs.SkipDir
			}
			spec, err := p.buildSpec(ctx, path)
			if err != nil {
				return err
			}
			*specs = append(*specs, spec)
			return fs.SkipDir
		}

		if d.Type()&os.ModeSymlink != 0 && d.IsDir() && p.Options.FollowSymlinks {
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil
			}
			info, err := os.Stat(target)
			if err != nil || !info.IsDir() {
				return nil
			}
			if err := p.walkRoot(ctx, target, visited, skipDirs, specs); err != nil {
				return err
			}
			return fs.SkipDir
		}

		return nil
	})
}

func (p *LocalProvider) detectRepo(ctx context.Context, dir string) (isRepo bool, bare bool, gitdir string, err error) {
	gitPath := filepath.Join(dir, ".git")
	if info, statErr := os.Stat(gitPath); statErr == nil {
		if info.Mode().IsRegular() {
			if gd, ok := gitdirFromFile(gitPath); ok {
				return true, p.Executor.IsBare(ctx, dir), gd, nil
			}
		}
		return true, p.Executor.IsBare(ctx, dir), "", nil
	}

	// Bare repo heuristic: HEAD file and objects dir, no working tree.
	if _, statErr := os.Stat(filepath.Join(dir, "HEAD")); statErr == nil {
		if info, objErr := os.Stat(filepath.Join(dir, "objects")); objErr == nil && info.IsDir() {
			return true, true, "", nil
		}
	}

	if p.Executor.IsRepo(ctx, dir) {
		return true, p.Executor.IsBare(ctx, dir), "", nil
	}
	return false, false, "", nil
}

func gitdirFromFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	content := strings.TrimSpace(string(data))
	if !strings.HasPrefix(content, "gitdir:") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(content, "gitdir:"))
	if raw == "" {
		return "", false
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw), true
	}
	return filepath.Clean(filepath.Join(filepath.Dir(path), raw)), true
}

func (p *LocalProvider) buildSpec(ctx context.Context, dir string) (model.RepoSpec, error) {
	remotes, err := p.Executor.Remotes(ctx, dir)
	if err != nil {
		return model.RepoSpec{}, err
	}
	var remoteNames []string
	for _, r := range remotes {
		remoteNames = append(remoteNames, r.Name)
	}
	primary := gitx.PrimaryRemote(remoteNames)
	var remoteURL string
	for _, r := range remotes {
		if r.Name == primary {
			remoteURL = r.URL
			break
		}
	}

	owner, name := ownerNameFromPath(dir)
	method := model.CloneHTTPS
	if strings.HasPrefix(remoteURL, "git@") || strings.HasPrefix(remoteURL, "ssh://") {
		method = model.CloneSSH
	}

	return model.RepoSpec{
		Owner:       owner,
		Name:        name,
		CloneURL:    remoteURL,
		CloneMethod: method,
		LocalPath:   dir,
		Provider:    "local",
	}, nil
}

func ownerNameFromPath(dir string) (owner, name string) {
	name = filepath.Base(dir)
	owner = filepath.Base(filepath.Dir(dir))
	if owner == "." || owner == string(filepath.Separator) {
		owner = ""
	}
	return owner, name
}
