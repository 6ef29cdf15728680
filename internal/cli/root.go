// Package cli implements the guestbook admin command line.
package cli

import (
	"context"
	"fmt"

	"guestbook/internal/notifications"
	"guestbook/internal/service"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	Load   Loader
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ReviewSubscriber streams review events until ctx ends.
type ReviewSubscriber interface {
	SubscribeReviews(ctx context.Context, onEvent func(notifications.ReviewEvent)) error
}

// Deps are the services a command works with.
type Deps struct {
	Moderation *service.ModerationService
	Reviews    ReviewSubscriber
}

// Loader builds Deps on first use. The returned func releases them.
type Loader func(ctx context.Context) (*Deps, func(), error)

// NewRootCommand creates the root command of the admin CLI.
func NewRootCommand(load Loader) *cobra.Command {
	opts := &RootOptions{Load: load}

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Guestbook moderation admin",
		Long:  "Review comments waiting for a decision, inspect moderation states and follow review notifications.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewReviewCommand(opts))
	cmd.AddCommand(NewCommentsCommand(opts))
	cmd.AddCommand(NewRequeueCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withDeps loads the dependencies, runs fn and releases them.
func (o *RootOptions) withDeps(cmd *cobra.Command, fn func(*Deps) error) error {
	if o.Load == nil {
		return fmt.Errorf("no dependency loader configured")
	}
	deps, release, err := o.Load(cmd.Context())
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}
	return fn(deps)
}
