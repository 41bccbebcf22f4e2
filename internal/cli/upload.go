package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cultcreative/deck/internal/app"
	"github.com/cultcreative/deck/internal/campaign"
	"github.com/cultcreative/deck/internal/submission"
	"github.com/cultcreative/deck/internal/upload"
)

// UploadCmd returns the upload command group.
func UploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload draft or pitch videos",
		Long: `Upload a video and follow it through server processing.

Interrupting the command (Ctrl-C) cancels the upload and tells the server to
stop processing it.`,
	}
	cmd.AddCommand(uploadDraftCmd(), uploadPitchCmd())
	return cmd
}

func uploadDraftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft [file]",
		Short: "Upload a draft video for a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, _ := cmd.Flags().GetString("campaign")
			submissionID, _ := cmd.Flags().GetString("submission")
			caption, _ := cmd.Flags().GetString("caption")

			file, err := upload.FileFromPath(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, true, func(ctx context.Context, rt *app.Runtime) error {
				userID, err := requireUser(rt)
				if err != nil {
					return err
				}
				task, err := rt.Submissions.SubmitDraft(context.WithoutCancel(ctx), submission.Draft{
					UserID:       userID,
					CampaignID:   campaignID,
					SubmissionID: submissionID,
					Caption:      caption,
					File:         file,
				})
				if err != nil {
					return err
				}
				return followUpload(ctx, rt.Uploads, cmd.OutOrStdout(), task.SubjectID)
			})
		},
	}
	cmd.Flags().String("campaign", "", "campaign id")
	cmd.Flags().String("submission", "", "submission id")
	cmd.Flags().String("caption", "", "caption sent with the draft")
	_ = cmd.MarkFlagRequired("campaign")
	_ = cmd.MarkFlagRequired("submission")
	return cmd
}

func uploadPitchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pitch [file]",
		Short: "Upload a pitch video for a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, _ := cmd.Flags().GetString("campaign")
			message, _ := cmd.Flags().GetString("message")

			file, err := upload.FileFromPath(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, true, func(ctx context.Context, rt *app.Runtime) error {
				userID, err := requireUser(rt)
				if err != nil {
					return err
				}
				task, err := rt.Campaigns.SubmitPitch(context.WithoutCancel(ctx), campaign.Pitch{
					CampaignID: campaignID,
					UserID:     userID,
					Message:    message,
					File:       file,
				})
				if err != nil {
					return err
				}
				if err := followUpload(ctx, rt.Uploads, cmd.OutOrStdout(), task.SubjectID); err != nil {
					return err
				}
				if v, ok := rt.Campaigns.ProcessedVideo(campaignID); ok {
					fmt.Fprintf(cmd.OutOrStdout(), "  Video: %s\n", v.Video)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("campaign", "", "campaign id")
	cmd.Flags().String("message", "", "message sent with the pitch")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

// Uploads is the part of *upload.Controller followUpload watches.
type Uploads interface {
	Subscribe() (<-chan upload.Task, func())
	Get(subject string) (upload.Task, bool)
	Cancel(subject string) bool
}

// followUpload prints state changes for subject until it settles. Cancelling
// ctx cancels the upload. The upload itself must not run under ctx, or the
// request would fail before Cancel reaches the server.
func followUpload(ctx context.Context, uploads Uploads, out io.Writer, subject string) error {
	ch, stop := uploads.Subscribe()
	defer stop()

	var (
		lastStatus  = upload.Idle
		lastPercent = -1
		lastAt      time.Time
	)
	report := func(t upload.Task) (bool, error) {
		if t.UpdatedAt.Before(lastAt) {
			return false, nil
		}
		lastAt = t.UpdatedAt
		pct := int(t.Percent)
		if t.Status != lastStatus || pct != lastPercent {
			lastStatus, lastPercent = t.Status, pct
			fmt.Fprintln(out, taskLine(t))
		}
		if !t.Status.Terminal() {
			return false, nil
		}
		if err := uploadResult(t); err != nil {
			fmt.Fprintf(out, "%s %s\n", failMark(), subject)
			return true, err
		}
		fmt.Fprintf(out, "%s %s uploaded\n", okMark(), subject)
		return true, nil
	}

	// The task may have moved on before the subscription existed.
	if t, ok := uploads.Get(subject); ok {
		if done, err := report(t); done {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			uploads.Cancel(subject)
			return ctx.Err()
		case t, ok := <-ch:
			if !ok {
				return nil
			}
			if t.SubjectID != subject {
				continue
			}
			if done, err := report(t); done {
				return err
			}
		}
	}
}
