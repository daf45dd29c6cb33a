package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/api"
)

func newInboxCommand(ctx *commandContext) *cobra.Command {
	inboxCmd := &cobra.Command{
		Use:   "inbox",
		Short: "Review imports that did not auto-commit",
	}

	inboxCmd.AddCommand(newInboxListCommand(ctx))
	inboxCmd.AddCommand(newInboxShowCommand(ctx))
	inboxCmd.AddCommand(newInboxApproveCommand(ctx))
	inboxCmd.AddCommand(newInboxRejectCommand(ctx))
	inboxCmd.AddCommand(newInboxRetryCommand(ctx, "reprobe", "Refresh source metadata from the harvester"))
	inboxCmd.AddCommand(newInboxRetryCommand(ctx, "redownload", "Fetch the artifact again and refresh its fingerprint"))
	inboxCmd.AddCommand(newInboxRetryCommand(ctx, "reclassify", "Run classification again with current metadata"))

	return inboxCmd
}

func newInboxListCommand(ctx *commandContext) *cobra.Command {
	var itemType string
	var all bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review items (unreviewed by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if trimmed := strings.TrimSpace(itemType); trimmed != "" {
				query.Set("type", trimmed)
			}
			if !all {
				query.Set("reviewed", "false")
			}
			path := "/api/inbox"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			var resp api.InboxListResponse
			if err := ctx.client().get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			if len(resp.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Inbox is empty")
				return nil
			}

			rows := make([][]string, 0, len(resp.Items))
			for _, item := range resp.Items {
				title := item.Suggestion.Title
				if title == "" {
					title = item.Candidate.Title
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", item.ID),
					item.Type,
					truncate(dash(title), 40),
					formatConfidence(item.Confidence),
					yesNo(item.Reviewed),
					dash(item.CreatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Type", "Title", "Confidence", "Reviewed", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&itemType, "type", "", "Filter by item type")
	cmd.Flags().BoolVar(&all, "all", false, "Include reviewed items")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newInboxShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one review item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var resp api.InboxItemResponse
			if err := ctx.client().get(cmd.Context(), fmt.Sprintf("/api/inbox/%d", id), &resp); err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			item := resp.Item
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Item:        %d (job %d)\n", item.ID, item.JobID)
			fmt.Fprintf(out, "Type:        %s\n", item.Type)
			fmt.Fprintf(out, "Reviewed:    %s\n", yesNo(item.Reviewed))
			fmt.Fprintf(out, "Source:      %s\n", dash(item.Candidate.SourceURL))
			fmt.Fprintf(out, "Candidate:   %s\n", dash(item.Candidate.Title))
			if item.Candidate.Uploader != "" {
				fmt.Fprintf(out, "Uploader:    %s\n", item.Candidate.Uploader)
			}
			if item.Candidate.TempPath != "" {
				fmt.Fprintf(out, "Artifact:    %s\n", item.Candidate.TempPath)
			}
			fmt.Fprintf(out, "Suggested:   %s\n", dash(item.Suggestion.Title))
			if item.Suggestion.LibraryID != 0 {
				fmt.Fprintf(out, "Library:     %d\n", item.Suggestion.LibraryID)
			}
			if item.Suggestion.Subfolder != "" {
				fmt.Fprintf(out, "Subfolder:   %s\n", item.Suggestion.Subfolder)
			}
			fmt.Fprintf(out, "Confidence:  %s\n", formatConfidence(item.Confidence))
			if len(item.Suggestion.Tags) > 0 {
				names := make([]string, 0, len(item.Suggestion.Tags))
				for _, tag := range item.Suggestion.Tags {
					names = append(names, tag.Name)
				}
				fmt.Fprintf(out, "Tags:        %s\n", strings.Join(names, ", "))
			}
			if item.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:       %s\n", item.ErrorMessage)
			}
			fmt.Fprintf(out, "Created:     %s\n", dash(item.CreatedAt))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func newInboxApproveCommand(ctx *commandContext) *cobra.Command {
	var libraryID int64
	var title string
	var subfolder string
	var description string

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a review item and commit it to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			request := api.ApproveRequest{
				LibraryID:   libraryID,
				Title:       strings.TrimSpace(title),
				Subfolder:   strings.TrimSpace(subfolder),
				Description: strings.TrimSpace(description),
			}
			var resp api.ApproveResponse
			if err := ctx.client().post(cmd.Context(), fmt.Sprintf("/api/inbox/%d/approve", id), request, &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if resp.Entry == nil {
				fmt.Fprintf(out, "Item %d resolved (duplicate, nothing imported)\n", id)
				return nil
			}
			fmt.Fprintf(out, "Approved item %d: entry %d (%s)\n", id, resp.Entry.ID, resp.Entry.Title)
			return nil
		},
	}

	cmd.Flags().Int64Var(&libraryID, "library", 0, "Override the destination library ID")
	cmd.Flags().StringVar(&title, "title", "", "Override the entry title")
	cmd.Flags().StringVar(&subfolder, "subfolder", "", "Override the library subfolder")
	cmd.Flags().StringVar(&description, "description", "", "Override the entry description")
	return cmd
}

func newInboxRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a review item and discard its staged artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := ctx.client().post(cmd.Context(), fmt.Sprintf("/api/inbox/%d/reject", id), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejected item %d\n", id)
			return nil
		},
	}
}

func newInboxRetryCommand(ctx *commandContext, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var resp api.InboxItemResponse
			if err := ctx.client().post(cmd.Context(), fmt.Sprintf("/api/inbox/%d/%s", id, action), nil, &resp); err != nil {
				return err
			}
			item := resp.Item
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d updated: %s (confidence %s)\n",
				item.ID, dash(item.Suggestion.Title), formatConfidence(item.Confidence))
			return nil
		},
	}
}
