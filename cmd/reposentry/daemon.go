// SPDX-License-Identifier: MIT
package reposentry

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reposentry/reposentry/internal/config"
	"github.com/reposentry/reposentry/internal/daemon"
	"github.com/reposentry/reposentry/internal/model"
	"github.com/reposentry/reposentry/internal/store"
)

// cmdSyncer adapts runOneSync to the daemon.Syncer interface, opening one
// Store for the process lifetime rather than per tick.
type cmdSyncer struct {
	cfg *config.Config
	st  *store.Store
}

func (s *cmdSyncer) RunOnce(ctx context.Context) (model.SyncSummary, error) {
	return runOneSync(ctx, s.cfg, s.st, nil)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run sync on a fixed interval until signaled to stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cfgPath, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		debugf(cmd, "using config %s", cfgPath)

		interval, err := cfg.Daemon.IntervalDuration()
		if err != nil {
			return fmt.Errorf("daemon.interval: %w", err)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		pidFile := cfg.Daemon.PIDFile
		if v, _ := cmd.Flags().GetString("pid-file"); v != "" {
			pidFile = v
		}

		d := daemon.New(&cmdSyncer{cfg: cfg, st: st}, daemon.Options{
			Interval: interval,
			PIDFile:  pidFile,
		})
		infof(cmd, "daemon starting: interval=%s pid_file=%s", interval, pidFile)
		return d.Run(cmd.Context())
	},
}

func init() {
	daemonCmd.Flags().String("pid-file", "", "override daemon.pid_file from config")

	rootCmd.AddCommand(daemonCmd)
}
