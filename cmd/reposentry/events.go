// SPDX-License-Identifier: MIT
package reposentry

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/reposentry/reposentry/internal/cliio"
	"github.com/reposentry/reposentry/internal/model"
	"github.com/reposentry/reposentry/internal/sortutil"
	"github.com/reposentry/reposentry/internal/store"
	"github.com/reposentry/reposentry/internal/termstyle"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Query and acknowledge recorded sync events",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded events",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.EventFilter{}
		if eventType, _ := cmd.Flags().GetString("type"); eventType != "" {
			filter.EventType = model.EventType(eventType)
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
			filter.Limit = limit
		}
		switch v, _ := cmd.Flags().GetString("acknowledged"); v {
		case "true":
			b := true
			filter.Acknowledged = &b
		case "false":
			b := false
			filter.Acknowledged = &b
		}

		events, err := st.RecentEvents(cmd.Context(), filter)
		if err != nil {
			return err
		}
		sortutil.SortEventsByTime(events)

		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")
		setColorOutputMode(cmd, format)
		switch format {
		case "json":
			data, err := json.MarshalIndent(events, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			logOutputWriteFailure(cmd, "events json", err)
		default:
			logOutputWriteFailure(cmd, "events table", writeEventsTable(cmd, events, noHeaders))
		}
		return nil
	},
}

var eventsAckCmd = &cobra.Command{
	Use:   "ack [event-id]",
	Short: "Acknowledge one event by ID, or every unacknowledged event with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		all, _ := cmd.Flags().GetBool("all")
		switch {
		case all:
			n, err := st.AcknowledgeAll(cmd.Context())
			if err != nil {
				return err
			}
			infof(cmd, "acknowledged %d events", n)
		case len(args) == 1:
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid event id %q: %w", args[0], err)
			}
			if err := st.Acknowledge(cmd.Context(), id); err != nil {
				return err
			}
			infof(cmd, "acknowledged event %d", id)
		default:
			return fmt.Errorf("specify an event id or --all")
		}
		return nil
	},
}

func writeEventsTable(cmd *cobra.Command, events []model.SyncEvent, noHeaders bool) error {
	colorEnabled := runtimeStateFor(cmd).colorOutputEnabled
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		ack := "no"
		if e.Acknowledged {
			ack = "yes"
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			e.RepoFullName,
			string(e.EventType),
			termstyle.Colorize(colorEnabled, string(e.Severity), severityColor(e.Severity)),
			ack,
			e.Summary,
		})
	}
	return cliio.WriteTable(cmd.OutOrStdout(), true, noHeaders, []string{"ID", "TIME", "REPO", "TYPE", "SEVERITY", "ACK", "SUMMARY"}, rows)
}

func severityColor(sev model.Severity) string {
	switch sev {
	case model.SeverityError:
		return termstyle.Error
	case model.SeverityWarning:
		return termstyle.Warn
	default:
		return termstyle.Info
	}
}

func init() {
	eventsListCmd.Flags().String("type", "", "filter by event type")
	eventsListCmd.Flags().String("acknowledged", "", "filter by acknowledgement: true or false")
	eventsListCmd.Flags().Int("limit", 0, "limit the number of events returned (0 means unbounded)")
	addFormatFlag(eventsListCmd, "output format: table or json")
	addNoHeadersFlag(eventsListCmd)

	eventsAckCmd.Flags().Bool("all", false, "acknowledge every unacknowledged event")

	eventsCmd.AddCommand(eventsListCmd, eventsAckCmd)
	rootCmd.AddCommand(eventsCmd)
}
