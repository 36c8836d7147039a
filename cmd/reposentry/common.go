// SPDX-License-Identifier: MIT
package reposentry

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reposentry/reposentry/internal/config"
	"github.com/reposentry/reposentry/internal/discovery"
	"github.com/reposentry/reposentry/internal/reposync"
	"github.com/reposentry/reposentry/internal/store"
)

// loadConfig resolves and loads the machine config for cmd, honoring
// --config / REPOSENTRY_CONFIG / the nearest .reposentry.yaml.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	cfgPath, err := config.ResolveConfigPath(configOverride(cmd), cwd)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// openStore opens the State Store at the platform data path, creating the
// data directory if needed.
func openStore() (*store.Store, error) {
	if _, err := config.EnsureDataDir(); err != nil {
		return nil, err
	}
	path, err := config.StatePath()
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}

// buildLocalDiscovery constructs the local-filesystem discovery provider
// from the resolved config and an optional --roots override. Remote
// providers (github, gitlab) require an authenticated RemoteClient, which
// is an external collaborator this CLI does not wire up; see DESIGN.md.
func buildLocalDiscovery(cfg *config.Config, rootsOverride []string) (*discovery.LocalProvider, error) {
	roots := rootsOverride
	if len(roots) == 0 {
		base, err := cfg.ExpandBaseDirectory()
		if err != nil {
			return nil, err
		}
		if base != "" {
			roots = []string{base}
		}
	}
	return discovery.NewLocalProvider(discovery.LocalOptions{
		Roots: roots,
	}), nil
}

// syncOptionsFrom maps the loaded config onto the state machine's Options.
func syncOptionsFrom(cfg *config.Config) reposync.Options {
	return reposync.Options{
		Strategy:           cfg.Sync.Strategy,
		ExcludePatterns:    cfg.GitHub.ExcludePatterns,
		FastForwardOnly:    cfg.Sync.FastForwardOnly,
		AutoStash:          cfg.Sync.AutoStash,
		PreserveTimestamps: cfg.Advanced.PreserveTimestamps,
		VerifyClone:        cfg.Advanced.VerifyClone,
		CleanupOnError:     cfg.Advanced.CleanupOnError,
	}
}
