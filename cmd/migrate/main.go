// Command migrate applies or inspects the guestbook schema.
//
//	migrate [-timeout 30s] auto|status|check
//
// check exits non-zero while conferences or comments tables are missing, for use as a deploy gate.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"guestbook/internal/config"
	"guestbook/internal/database"
	"guestbook/internal/middleware"
)

var errSchemaPending = errors.New("schema has pending changes")

func main() {
	timeout := flag.Duration("timeout", 30*time.Second, "deadline for the whole operation")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [-timeout 30s] auto|status|check")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(strings.ToLower(strings.TrimSpace(flag.Arg(0))), *timeout); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(mode string, timeout time.Duration) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	middleware.SetLogger(middleware.NewLogger(cfg.Env))
	logger := middleware.Logger.With(slog.String("driver", cfg.DBDriver), slog.String("env", cfg.Env))

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	switch mode {
	case "auto":
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		logger.Info("schema applied")
		return nil
	case "status", "check":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status: %w", err)
		}
		for _, t := range status.Tables {
			logger.Info("table", slog.String("table", t.Table), slog.String("model", t.Model), slog.Bool("exists", t.Exists))
		}
		logger.Info("schema status", slog.Bool("pending", status.Pending()))
		if mode == "check" && status.Pending() {
			return errSchemaPending
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q (want auto, status or check)", mode)
	}
}
