// SPDX-License-Identifier: MIT
package reposentry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reposentry/reposentry/internal/cliio"
	"github.com/reposentry/reposentry/internal/config"
	"github.com/reposentry/reposentry/internal/model"
	"github.com/reposentry/reposentry/internal/orchestrator"
	"github.com/reposentry/reposentry/internal/store"
	"github.com/reposentry/reposentry/internal/strutil"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Discover repositories and synchronize them against the configured strategy",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cfgPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		debugf(cmd, "using config %s", cfgPath)

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		summary, err := runOneSync(cmd.Context(), cfg, st, cmd)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			data, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			logOutputWriteFailure(cmd, "sync json", err)
		default:
			logOutputWriteFailure(cmd, "sync table", writeSyncTable(cmd, summary))
		}

		infof(cmd, "sync completed: %d total, %d successful, %d skipped, %d failed in %s",
			summary.Total, summary.Successful, summary.Skipped, summary.Failed, summary.Duration)
		if summary.Failed > 0 {
			raiseExitCode(cmd, 2)
		} else if summary.Skipped > 0 {
			raiseExitCode(cmd, 1)
		}
		return nil
	},
}

// runOneSync implements the discover -> run_sync -> record_results pipeline
// shared by the "sync" command and the daemon loop.
func runOneSync(ctx context.Context, cfg *config.Config, st *store.Store, cmd *cobra.Command) (model.SyncSummary, error) {
	var roots []string
	if cmd != nil {
		r, _ := cmd.Flags().GetString("roots")
		roots = strutil.SplitCSV(r)
	}
	provider, err := buildLocalDiscovery(cfg, roots)
	if err != nil {
		return model.SyncSummary{}, err
	}
	specs, err := provider.Discover(ctx)
	if err != nil {
		return model.SyncSummary{}, fmt.Errorf("discover: %w", err)
	}

	orch := orchestrator.New(st)
	timeout := time.Duration(cfg.Sync.TimeoutSeconds) * time.Second
	summary := orch.Sync(ctx, specs, orchestrator.Options{
		BaseParallel: cfg.Sync.MaxParallel,
		Timeout:      timeout,
		SyncOptions:  syncOptionsFrom(cfg),
	})
	return summary, nil
}

func writeSyncTable(cmd *cobra.Command, summary model.SyncSummary) error {
	rows := make([][]string, 0, len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		detail := o.Reason
		if o.Kind == model.OutcomeFailed {
			detail = o.Error
		}
		rows = append(rows, []string{o.RepoFullName, string(o.Kind), detail})
	}
	return cliio.WriteTable(cmd.OutOrStdout(), false, false, []string{"REPO", "OUTCOME", "DETAIL"}, rows)
}

func init() {
	syncCmd.Flags().String("roots", "", "comma-separated root directories to scan (overrides base_directory)")
	addFormatFlag(syncCmd, "output format: table or json")

	rootCmd.AddCommand(syncCmd)
}
