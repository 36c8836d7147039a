package discovery

import (
	"context"
	"time"

	"github.com/reposentry/reposentry/internal/model"
)

// GitHubProvider discovers repositories visible to an authenticated GitHub
// identity. Credential acquisition and the HTTP client itself belong to
// Client; this type only maps records and applies filters.
type GitHubProvider struct {
	Client        RemoteClient
	Organizations []string
	Paths         PathPolicy
	Filters       FilterPolicy
	Now           func() time.Time // overridable for tests; defaults to time.Now
}

func (p *GitHubProvider) ProviderName() string { return "github" }

func (p *GitHubProvider) IsAvailable(ctx context.Context) bool {
	if p.Client == nil {
		return false
	}
	return p.Client.Ping(ctx)
}

func (p *GitHubProvider) Discover(ctx context.Context) ([]model.RepoSpec, error) {
	raw, err := p.Client.ListRepositories(ctx, p.Organizations)
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
		specs = append(specs, toRepoSpec(repo, "github", p.Paths))
	}
	return specs, nil
}
