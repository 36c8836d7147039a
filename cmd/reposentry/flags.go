// SPDX-License-Identifier: MIT
package reposentry

import "github.com/spf13/cobra"

const (
	noHeadersUsage   = "when using table format, do not print headers"
	statusFilterUsage = "filter: all, ok, skipped, error, unknown"
)

func addFormatFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().StringP("format", "o", "table", usage)
}

func addNoHeadersFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-headers", false, noHeadersUsage)
}

func addStatusFilterFlag(cmd *cobra.Command) {
	cmd.Flags().String("only", "all", statusFilterUsage)
}
