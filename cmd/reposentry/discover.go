// SPDX-License-Identifier: MIT
package reposentry

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reposentry/reposentry/internal/cliio"
	"github.com/reposentry/reposentry/internal/model"
	"github.com/reposentry/reposentry/internal/strutil"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover repositories without syncing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		debugf(cmd, "starting discovery")
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

		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")
		switch format {
		case "json":
			data, err := json.MarshalIndent(specs, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			logOutputWriteFailure(cmd, "discover json", err)
		default:
			logOutputWriteFailure(cmd, "discover table", writeDiscoverTable(cmd, specs, noHeaders))
		}

		infof(cmd, "discovery completed: %d repos", len(specs))
		return nil
	},
}

func writeDiscoverTable(cmd *cobra.Command, specs []model.RepoSpec, noHeaders bool) error {
	rows := make([][]string, 0, len(specs))
	for _, spec := range specs {
		rows = append(rows, []string{spec.FullName(), truncatePath(cmd, spec.LocalPath), string(spec.CloneMethod), spec.Provider})
	}
	return cliio.WriteTable(cmd.OutOrStdout(), false, noHeaders, []string{"REPO", "PATH", "METHOD", "PROVIDER"}, rows)
}

func init() {
	discoverCmd.Flags().String("roots", "", "comma-separated root directories to scan (overrides base_directory)")
	addFormatFlag(discoverCmd, "output format: table or json")
	addNoHeadersFlag(discoverCmd)

	rootCmd.AddCommand(discoverCmd)
}
