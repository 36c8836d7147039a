// Package discovery is polymorphic over remote providers; each Provider
// yields a flat list of model.RepoSpec with local paths pre-computed.
// Adding a provider must not require changes to the orchestrator.
package discovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/reposentry/reposentry/internal/model"
)

// Provider is the discovery capability set: discover/provider_name/is_available.
type Provider interface {
	// Discover may perform network I/O and may fail as a whole.
	Discover(ctx context.Context) ([]model.RepoSpec, error)
	// ProviderName identifies the source, e.g. "local", "github", "gitlab".
	ProviderName() string
	// IsAvailable is a cheap probe, called before Discover by MultiDiscovery.
	IsAvailable(ctx context.Context) bool
}

// SourceFailure records a non-fatal failure from one source within a
// MultiDiscovery run.
type SourceFailure struct {
	Provider string
	Err      error
}

func (f SourceFailure) String() string {
	return fmt.Sprintf("%s: %v", f.Provider, f.Err)
}

// MultiDiscovery composes several Providers. It calls IsAvailable first and
// concatenates Discover results; a failure in one source is recorded and
// skipped rather than failing the whole run.
type MultiDiscovery struct {
	Providers []Provider

	// OnSourceFailure, if set, is invoked synchronously for every
	// non-fatal per-source failure. When it is nil the failure is skipped
	// silently; this package does not log it.
	OnSourceFailure func(SourceFailure)
}

// Discover runs every available provider and concatenates their results,
// then deduplicates by LocalPath (the orchestrator assumes local_path
// uniqueness per run).
func (m MultiDiscovery) Discover(ctx context.Context) ([]model.RepoSpec, error) {
	var all []model.RepoSpec
	for _, p := range m.Providers {
		if !p.IsAvailable(ctx) {
			continue
		}
		specs, err := p.Discover(ctx)
		if err != nil {
			if m.OnSourceFailure != nil {
				m.OnSourceFailure(SourceFailure{Provider: p.ProviderName(), Err: err})
			}
			continue
		}
		all = append(all, specs...)
	}
	return dedupeByLocalPath(all), nil
}

func dedupeByLocalPath(specs []model.RepoSpec) []model.RepoSpec {
	seen := make(map[string]struct{}, len(specs))
	out := make([]model.RepoSpec, 0, len(specs))
	for _, s := range specs {
		if _, ok := seen[s.LocalPath]; ok {
			continue
		}
		seen[s.LocalPath] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalPath < out[j].LocalPath })
	return out
}
