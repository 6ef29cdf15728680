package cli

import (
	"errors"
	"fmt"
	"sync"

	"guestbook/internal/notifications"

	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command, which prints review notifications
// until interrupted.
func NewWatchCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print comments as they start waiting for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDeps(cmd, func(d *Deps) error {
				if d.Reviews == nil {
					return errors.New("review notifications need a redis connection")
				}
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				var mu sync.Mutex
				err := d.Reviews.SubscribeReviews(ctx, func(e notifications.ReviewEvent) {
					mu.Lock()
					defer mu.Unlock()
					if opts.Format == "json" {
						_ = writeJSON(out, e)
						return
					}
					_, _ = fmt.Fprintf(out, "comment %d by %s is %s: review at %s\n", e.CommentID, e.Author, e.State, e.ReviewPath)
				})
				if err != nil {
					return err
				}
				<-ctx.Done()
				return nil
			})
		},
	}
}
