// SPDX-License-Identifier: MIT
package reposentry

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reposentry/reposentry/internal/cliio"
	"github.com/reposentry/reposentry/internal/model"
	"github.com/reposentry/reposentry/internal/orchestrator"
	"github.com/reposentry/reposentry/internal/strutil"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Discover repositories and report their state without syncing",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cfgPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		debugf(cmd, "using config %s", cfgPath)

		roots, _ := cmd.Flags().GetString("roots")
		provider, err := buildLocalDiscovery(cfg, strutil.SplitCSV(roots))
		if err != nil {
			return err
		}
		specs, err := provider.Discover(cmd.Context())
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}

		quiet, _ := cmd.Flags().GetBool("no-fetch")
		orch := orchestrator.New(nil)
		states := orch.Analyze(cmd.Context(), specs, orchestrator.Options{
			BaseParallel: cfg.Sync.MaxParallel,
			SyncOptions:  syncOptionsFrom(cfg),
		}, quiet)

		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")
		switch format {
		case "json":
			data, err := json.MarshalIndent(states, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			logOutputWriteFailure(cmd, "analyze json", err)
		default:
			logOutputWriteFailure(cmd, "analyze table", writeAnalyzeTable(cmd, states, noHeaders))
		}
		return nil
	},
}

func writeAnalyzeTable(cmd *cobra.Command, states []model.RepoState, noHeaders bool) error {
	rows := make([][]string, 0, len(states))
	for _, s := range states {
		rows = append(rows, []string{
			s.Path,
			s.CurrentBranch,
			boolStr(s.HasUncommittedChanges),
			boolStr(s.IsAheadOfRemote),
			boolStr(s.IsBehindRemote),
			boolStr(s.HasConflicts),
		})
	}
	return cliio.WriteTable(cmd.OutOrStdout(), false, noHeaders, []string{"PATH", "BRANCH", "DIRTY", "AHEAD", "BEHIND", "CONFLICTS"}, rows)
}

func boolStr(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	analyzeCmd.Flags().String("roots", "", "comma-separated root directories to scan (overrides base_directory)")
	analyzeCmd.Flags().Bool("no-fetch", false, "skip the best-effort fetch before computing ahead/behind counts")
	addFormatFlag(analyzeCmd, "output format: table or json")
	addNoHeadersFlag(analyzeCmd)

	rootCmd.AddCommand(analyzeCmd)
}
