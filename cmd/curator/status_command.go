package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"curator/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			if err := ctx.client().get(cmd.Context(), "/api/status", &status); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), status)
			}

			out := cmd.OutOrStdout()
			state := "stopped"
			if status.Running {
				state = "running"
			}
			if shouldColorize(out) {
				color := text.FgRed
				if status.Running {
					color = text.FgGreen
				}
				state = color.Sprint(state)
			}
			fmt.Fprintf(out, "Daemon:     %s (pid %d)\n", state, status.PID)
			fmt.Fprintf(out, "Database:   %s\n", status.DatabasePath)
			fmt.Fprintf(out, "Lock file:  %s\n", status.LockFilePath)
			fmt.Fprintf(out, "Unreviewed: %d\n", status.Unreviewed)

			order := []string{"pending", "running", "completed", "failed", "cancelled", "total"}
			rows := make([][]string, 0, len(order))
			for _, key := range order {
				rows = append(rows, []string{key, fmt.Sprintf("%d", status.JobCounts[key])})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Jobs", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}
