package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cultcreative/deck/internal/app"
	"github.com/cultcreative/deck/internal/submission"
)

// SubmissionsCmd lists the signed-in user's submissions for a campaign.
func SubmissionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submissions",
		Short: "List your submissions for a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, _ := cmd.Flags().GetString("campaign")
			return withRuntime(cmd, true, func(ctx context.Context, rt *app.Runtime) error {
				userID, err := requireUser(rt)
				if err != nil {
					return err
				}
				list, err := rt.Submissions.List(ctx, userID, campaignID)
				if err != nil {
					return fmt.Errorf("list submissions: %w", err)
				}
				printSubmissions(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}
	cmd.Flags().String("campaign", "", "campaign id")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func printSubmissions(w io.Writer, list []submission.Submission) {
	if len(list) == 0 {
		fmt.Fprintln(w, color.New(color.Faint).Sprint("(no submissions)"))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tUPDATED\tFEEDBACK")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, submissionStatus(s.Status), s.UpdatedAt, s.Feedback)
	}
	_ = tw.Flush()
}
