package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/api"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Manage import jobs",
	}

	jobCmd.AddCommand(newJobAddCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobRemoveCommand(ctx))
	jobCmd.AddCommand(newJobStatsCommand(ctx))

	return jobCmd
}

func newJobAddCommand(ctx *commandContext) *cobra.Command {
	var libraryID int64
	var format string
	var manual bool

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a source URL for import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := api.CreateJobRequest{
				SourceURL: strings.TrimSpace(args[0]),
				LibraryID: libraryID,
				Format:    strings.TrimSpace(format),
				Auto:      !manual,
			}
			var resp api.JobResponse
			if err := ctx.client().post(cmd.Context(), "/api/jobs", request, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued job %d\n", resp.Job.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&libraryID, "library", 0, "Force the destination library ID")
	cmd.Flags().StringVar(&format, "format", "", "Requested download format")
	cmd.Flags().BoolVar(&manual, "manual", false, "Always file the result for review instead of auto-importing")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List import jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			for _, status := range statuses {
				if trimmed := strings.TrimSpace(status); trimmed != "" {
					query.Add("status", trimmed)
				}
			}
			path := "/api/jobs"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			var resp api.JobListResponse
			if err := ctx.client().get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			if len(resp.Jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}

			rows := make([][]string, 0, len(resp.Jobs))
			for _, job := range resp.Jobs {
				rows = append(rows, []string{
					fmt.Sprintf("%d", job.ID),
					job.Status,
					formatPercent(job.Progress.Percent),
					dash(job.Progress.Stage),
					truncate(job.Params.SourceURL, 56),
					dash(job.UpdatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Status", "Progress", "Stage", "Source", "Updated"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one import job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var resp api.JobResponse
			if err := ctx.client().get(cmd.Context(), fmt.Sprintf("/api/jobs/%d", id), &resp); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			job := resp.Job
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:        %d (%s)\n", job.ID, job.Kind)
			fmt.Fprintf(out, "Status:     %s\n", job.Status)
			fmt.Fprintf(out, "Progress:   %s %s\n", formatPercent(job.Progress.Percent), dash(job.Progress.Stage))
			fmt.Fprintf(out, "Source:     %s\n", job.Params.SourceURL)
			if job.Params.LibraryID != 0 {
				fmt.Fprintf(out, "Library:    %d\n", job.Params.LibraryID)
			}
			if job.Params.RequestedFormat != "" {
				fmt.Fprintf(out, "Format:     %s\n", job.Params.RequestedFormat)
			}
			fmt.Fprintf(out, "Auto:       %s\n", yesNo(job.Params.Auto))
			if job.Result.EntryID != 0 {
				fmt.Fprintf(out, "Entry:      %d\n", job.Result.EntryID)
			}
			if job.Result.InboxItemID != 0 {
				fmt.Fprintf(out, "Inbox item: %d\n", job.Result.InboxItemID)
			}
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:      %s\n", job.ErrorMessage)
			}
			if job.CancelRequested {
				fmt.Fprintln(out, "Cancel requested")
			}
			fmt.Fprintf(out, "Created:    %s\n", dash(job.CreatedAt))
			fmt.Fprintf(out, "Updated:    %s\n", dash(job.UpdatedAt))
			if job.CompletedAt != "" {
				fmt.Fprintf(out, "Completed:  %s\n", job.CompletedAt)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Request cancellation of a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := ctx.client().post(cmd.Context(), fmt.Sprintf("/api/jobs/%d/cancel", id), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %d\n", id)
			return nil
		},
	}
}

func newJobRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a terminal job record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := ctx.client().delete(cmd.Context(), fmt.Sprintf("/api/jobs/%d", id), nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %d\n", id)
			return nil
		},
	}
}

func newJobStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.JobStatsResponse
			if err := ctx.client().get(cmd.Context(), "/api/jobs/stats", &resp); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			order := []string{"pending", "running", "completed", "failed", "cancelled", "total"}
			rows := make([][]string, 0, len(order))
			for _, key := range order {
				rows = append(rows, []string{key, fmt.Sprintf("%d", resp.Counts[key])})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Status", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
