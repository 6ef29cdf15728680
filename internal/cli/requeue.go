package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRequeueCommand creates the requeue command.
func NewRequeueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <comment-id>",
		Short: "Schedule another moderation pass, e.g. after a dead-lettered message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCommentID(args[0])
			if err != nil {
				return err
			}
			return opts.withDeps(cmd, func(d *Deps) error {
				comment, err := d.Moderation.Requeue(cmd.Context(), id, nil)
				if err != nil {
					return err
				}
				if opts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"requeued": comment.ID, "state": comment.State})
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "comment %d requeued (state %s)\n", comment.ID, comment.State)
				return err
			})
		},
	}
}
