package discovery

import (
	"context"
	"time"

	"github.com/reposentry/reposentry/internal/model"
)

// GitLabProvider mirrors GitHubProvider for GitLab-hosted groups. It shares
// the RemoteClient contract: discovery never performs its own
// authentication, it only consumes an already-authenticated client.
type GitLabProvider struct {
	Client  RemoteClient
	Groups  []string
	Paths   PathPolicy
	Filters FilterPolicy
	Now     func() time.Time
}

func (p *GitLabProvider) ProviderName() string { return "gitlab" }

func (p *GitLabProvider) IsAvailable(ctx context.Context) bool {
	if p.Client == nil {
		return false
	}
	return p.Client.Ping(ctx)
}

func (p *GitLabProvider) Discover(ctx context.Context) ([]model.RepoSpec, error) {
	raw, err := p.Client.ListRepositories(ctx, p.Groups)
	if err != nil {
		return nil, err
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	var specs []model.RepoSpec
	for _, repo := range raw {
		if !p.Filters.Allow(repo, now()) {
			continue
		}
		specs = append(specs, toRepoSpec(repo, "gitlab", p.Paths))
	}
	return specs, nil
}
