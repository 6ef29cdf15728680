package cli

import (
	"fmt"
	"strconv"

	"guestbook/internal/middleware"

	"github.com/spf13/cobra"
)

// NewReviewCommand creates the review command with its approve and reject subcommands.
func NewReviewCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Decide on a comment waiting for review",
	}
	cmd.AddCommand(newDecisionCommand(opts, "approve", true))
	cmd.AddCommand(newDecisionCommand(opts, "reject", false))
	return cmd
}

func newDecisionCommand(opts *RootOptions, verb string, approved bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <comment-id>",
		Short: verb + " a comment in the ham or potential_spam state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCommentID(args[0])
			if err != nil {
				return err
			}
			return opts.withDeps(cmd, func(d *Deps) error {
				comment, err := d.Moderation.Decide(cmd.Context(), id, approved)
				if err != nil && comment == nil {
					return err
				}
				if err != nil {
					middleware.Logger.Warn("review follow-up not enqueued", "comment_id", id, "error", err.Error())
				}
				return writeComment(cmd.OutOrStdout(), opts.Format, comment)
			})
		},
	}
}

func parseCommentID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid comment id %q", arg)
	}
	return uint(id), nil
}
