package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/jera/internal"
	"github.com/starford/jera/internal/journal"
	"github.com/starford/jera/internal/mcpserver"
	pkgconfig "github.com/starford/jera/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// openJournal builds a journal service for the one-shot subcommands.
func openJournal(cmd *cli.Command) (*journal.Service, *internal.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	svc, err := journal.New(cfg.Data.Dir, cfg.Photos.Root, logger)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

func runCommit(_ context.Context, cmd *cli.Command) error {
	svc, cfg, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	data, err := os.ReadFile(cmd.String("file"))
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	opts := journal.CommitOptions{
		AllowRetake: cfg.Capture.AllowRetake || cmd.Bool("retake"),
	}
	if mood := cmd.String("mood"); mood != "" {
		opts.Mood = &mood
	}
	if notes := cmd.String("notes"); notes != "" {
		opts.Notes = &notes
	}

	rec, err := svc.Commit(data, int(cmd.Int("width")), int(cmd.Int("height")), opts)
	if err != nil {
		return err
	}
	fmt.Printf("committed %s -> %s\n", rec.ID, rec.Path)
	return nil
}

func runMigrate(_ context.Context, cmd *cli.Command) error {
	svc, _, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	n, err := svc.MigrateIfNeeded(cmd.String("audit"))
	if err != nil {
		return err
	}
	fmt.Printf("imported %d rows\n", n)
	return nil
}

func runMCP(_ context.Context, cmd *cli.Command) error {
	svc, _, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	return mcpserver.New(svc).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:  "jera",
		Usage: "Daily photo journal with an append-only audit trail and queryable capture index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and photo watcher",
				Action: runServe,
			},
			{
				Name:  "commit",
				Usage: "Commit an image file as today's capture",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Usage: "Path to the JPEG to commit", Required: true},
					&cli.IntFlag{Name: "width", Usage: "Image width in pixels"},
					&cli.IntFlag{Name: "height", Usage: "Image height in pixels"},
					&cli.StringFlag{Name: "mood", Usage: "Mood label"},
					&cli.StringFlag{Name: "notes", Usage: "Free-text notes"},
					&cli.BoolFlag{Name: "retake", Usage: "Supersede today's existing photo"},
				},
				Action: runCommit,
			},
			{
				Name:  "migrate",
				Usage: "Replay the audit log into the index",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "audit", Usage: "Audit file path (default: the data dir's captures.jsonl)"},
				},
				Action: runMigrate,
			},
			{
				Name:   "mcp",
				Usage:  "Serve journal tools over MCP stdio",
				Action: runMCP,
			},
		},
		Action: runServe,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
