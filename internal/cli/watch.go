package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cultcreative/deck/internal/app"
	"github.com/cultcreative/deck/internal/cache"
	"github.com/cultcreative/deck/internal/campaign"
)

// WatchCmd streams live events until interrupted.
func WatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow unread messages, campaign changes, uploads and notices",
		Long: `Sign in to the realtime socket and print every change as it arrives:
the unread message count, the campaign counter, upload progress and
notices such as shortlist announcements. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *app.Runtime) error {
				if _, err := requireUser(rt); err != nil {
					return err
				}
				return watch(ctx, rt, cmd.OutOrStdout())
			})
		},
	}
}

func watch(ctx context.Context, rt *app.Runtime, out io.Writer) error {
	unread, stopUnread := rt.Inbox.Subscribe()
	defer stopUnread()
	notices, stopNotices := rt.Notices.Subscribe()
	defer stopNotices()
	tasks, stopTasks := rt.Uploads.Subscribe()
	defer stopTasks()
	counts, stopCounts := rt.Cache.Subscribe(campaign.CountKey)
	defer stopCounts()

	fmt.Fprintf(out, "%s watching as %s\n", stamp(time.Now()), rt.UserID())
	if _, err := rt.Campaigns.Count(ctx); err != nil {
		fmt.Fprintf(out, "%s %s campaign count unavailable: %v\n", stamp(time.Now()), failMark(), err)
	}

	lastCount := -1
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-unread:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "%s unread messages: %d\n", stamp(time.Now()), n)
		case n, ok := <-notices:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "%s %s\n", stamp(n.At), noticeLine(n))
		case t, ok := <-tasks:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "%s %s\n", stamp(t.UpdatedAt), taskLine(t))
		case e, ok := <-counts:
			if !ok {
				return nil
			}
			if c, ok := cache.Value[campaign.Count](e); ok && c.Count != lastCount {
				lastCount = c.Count
				fmt.Fprintf(out, "%s campaigns: %d\n", stamp(e.UpdatedAt), c.Count)
			}
		}
	}
}
