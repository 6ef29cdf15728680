// Command admin reviews comments and inspects the moderation pipeline.
package main

import (
	"context"
	"fmt"
	"os"

	"guestbook/internal/bootstrap"
	"guestbook/internal/cli"
	"guestbook/internal/config"
	"guestbook/internal/middleware"
	"guestbook/internal/notifications"
	"guestbook/internal/repository"
	"guestbook/internal/service"
)

func main() {
	if err := cli.NewRootCommand(load).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func load(ctx context.Context) (*cli.Deps, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	middleware.SetLogger(middleware.NewLogger(cfg.Env))

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		return nil, nil, err
	}
	q, err := bootstrap.BuildQueue(ctx, cfg, rdb, middleware.Logger)
	if err != nil {
		return nil, nil, err
	}

	deps := &cli.Deps{
		Moderation: service.NewModerationService(repository.NewCommentRepository(db), q),
	}
	if rdb != nil {
		deps.Reviews = notifications.NewNotifier(rdb, cfg.NotifyChannel, cfg.AdminEmail)
	}

	release := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return deps, release, nil
}
