package cli

import (
	"guestbook/internal/models"

	"github.com/spf13/cobra"
)

// CommentsOptions holds flags for the comments list command.
type CommentsOptions struct {
	*RootOptions
	State string
	Limit int
}

// NewCommentsCommand creates the comments command.
func NewCommentsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Inspect comments",
	}

	opts := &CommentsOptions{RootOptions: rootOpts}
	list := &cobra.Command{
		Use:   "list",
		Short: "List comments in a moderation state, oldest first",
		Example: `  admin comments list --state potential_spam
  admin comments list --state ham --limit 10 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDeps(cmd, func(d *Deps) error {
				comments, err := d.Moderation.ListByState(cmd.Context(), models.CommentState(opts.State), opts.Limit)
				if err != nil {
					return err
				}
				return writeComments(cmd.OutOrStdout(), opts.Format, comments)
			})
		},
	}
	list.Flags().StringVar(&opts.State, "state", string(models.CommentStatePotentialSpam), "moderation state to list")
	list.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of comments (default 50)")

	cmd.AddCommand(list)
	return cmd
}
