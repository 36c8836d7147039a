// SPDX-License-Identifier: MIT
package reposentry

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reposentry/reposentry/internal/cliio"
	"github.com/reposentry/reposentry/internal/model"
	"github.com/reposentry/reposentry/internal/sortutil"
	"github.com/reposentry/reposentry/internal/termstyle"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the persisted sync status of every known repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		only, _ := cmd.Flags().GetString("only")
		var records []model.RepoRecord
		switch only {
		case "", "all":
			for _, s := range []model.SyncStatus{model.StatusOK, model.StatusSkipped, model.StatusError, model.StatusUnknown} {
				rs, err := st.ReposByStatus(cmd.Context(), s)
				if err != nil {
					return err
				}
				records = append(records, rs...)
			}
		case "issues":
			records, err = st.ReposWithIssues(cmd.Context())
			if err != nil {
				return err
			}
		default:
			records, err = st.ReposByStatus(cmd.Context(), model.SyncStatus(only))
			if err != nil {
				return err
			}
		}
		sortutil.SortRepoRecords(records)

		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")
		setColorOutputMode(cmd, format)
		switch format {
		case "json":
			data, err := json.MarshalIndent(records, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			logOutputWriteFailure(cmd, "status json", err)
		default:
			logOutputWriteFailure(cmd, "status table", writeStatusTable(cmd, records, noHeaders))
		}

		for _, rec := range records {
			if rec.LastSyncStatus == model.StatusError {
				raiseExitCode(cmd, 2)
			} else if rec.LastSyncStatus == model.StatusSkipped {
				raiseExitCode(cmd, 1)
			}
		}
		return nil
	},
}

func writeStatusTable(cmd *cobra.Command, records []model.RepoRecord, noHeaders bool) error {
	colorEnabled := runtimeStateFor(cmd).colorOutputEnabled
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.FullName,
			truncatePath(cmd, rec.LocalPath),
			rec.CurrentBranch,
			termstyle.Colorize(colorEnabled, string(rec.LastSyncStatus), statusColor(rec.LastSyncStatus)),
			rec.SkipReason,
			rec.ErrorClass,
		})
	}
	return cliio.WriteTable(cmd.OutOrStdout(), true, noHeaders, []string{"REPO", "PATH", "BRANCH", "STATUS", "REASON", "ERROR_CLASS"}, rows)
}

func statusColor(status model.SyncStatus) string {
	switch status {
	case model.StatusOK:
		return termstyle.Healthy
	case model.StatusSkipped:
		return termstyle.Warn
	case model.StatusError:
		return termstyle.Error
	default:
		return termstyle.Info
	}
}

func init() {
	addStatusFilterFlag(statusCmd)
	addFormatFlag(statusCmd, "output format: table or json")
	addNoHeadersFlag(statusCmd)

	rootCmd.AddCommand(statusCmd)
}
