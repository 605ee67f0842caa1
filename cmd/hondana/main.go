package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hondana-dev/hondana/pkg/authordates"
	"github.com/hondana-dev/hondana/pkg/calibre"
	"github.com/hondana-dev/hondana/pkg/config"
	"github.com/hondana-dev/hondana/pkg/database"
	"github.com/hondana-dev/hondana/pkg/migrations"
	"github.com/hondana-dev/hondana/pkg/organizer"
	"github.com/hondana-dev/hondana/pkg/progress"
	"github.com/hondana-dev/hondana/pkg/source"
	"github.com/hondana-dev/hondana/pkg/version"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
	"github.com/uptrace/bun"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()

	log.Info("starting hondana", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	ctx, cancel := context.WithCancel(log.WithContext(context.Background()))
	graceful := signals.Setup()
	go func() {
		<-graceful
		log.Info("shutting down, finishing current item")
		cancel()
	}()

	group, err := migrations.BringUpToDate(ctx, db)
	if err != nil {
		log.Err(err).Fatal("migrations error")
	}
	if group.ID != 0 {
		log.Info("migrated to new group", logger.Data{"group_id": group.ID, "migration_names": group.Migrations.String()})
	}

	app := &cli.App{
		Name:        "hondana",
		Usage:       "organize an ebook collection into a language/category tree",
		Description: "Enumerates books from a Calibre library and/or loose files, resolves their metadata, and copies them into a deterministic folder layout. Progress is persisted so interrupted runs resume where they left off.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to the user config file", DefaultText: "$CONFIG_DIRECTORY/config.json"},
		},
		Before: func(c *cli.Context) error {
			return cfg.LoadUser(c.String("config"))
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "organize the collection",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Usage: "compute and log destinations without copying"},
					&cli.IntFlag{Name: "limit", Usage: "process at most N items"},
					&cli.BoolFlag{Name: "resume", Usage: "skip re-enumeration and continue pending items"},
					&cli.BoolFlag{Name: "retry-failed", Usage: "retry previously failed items"},
					&cli.StringFlag{Name: "failed-report", Usage: "write failed items to this file after the run"},
				},
				Action: func(c *cli.Context) error {
					org, err := buildOrganizer(cfg, db)
					if err != nil {
						return err
					}
					summary, err := org.Run(ctx, organizer.Options{
						DryRun:      c.Bool("dry-run"),
						Limit:       c.Int("limit"),
						Resume:      c.Bool("resume"),
						RetryFailed: c.Bool("retry-failed"),
					})
					if err != nil {
						return err
					}
					printSummary(summary)
					if path := c.String("failed-report"); path != "" && summary.Stats.Failed > 0 {
						return writeFailedReport(ctx, org, path)
					}
					return nil
				},
			},
			{
				Name:  "preview",
				Usage: "report where the first N items would land",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 100, Usage: "number of items to preview"},
					&cli.StringFlag{Name: "output", Usage: "also write the report to this file"},
				},
				Action: func(c *cli.Context) error {
					org, err := buildOrganizer(cfg, db)
					if err != nil {
						return err
					}
					entries, err := org.Preview(ctx, c.Int("limit"))
					if err != nil {
						return err
					}
					report := organizer.FormatPreview(entries)
					fmt.Print(report)
					if path := c.String("output"); path != "" {
						if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
							return errors.WithStack(err)
						}
						log.Info("preview report written", logger.Data{"path": path})
					}
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "print progress statistics",
				Action: func(c *cli.Context) error {
					stats, err := progress.NewService(db).Statistics(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("Total:     %d\n", stats.Total)
					fmt.Printf("Pending:   %d\n", stats.Pending)
					fmt.Printf("Completed: %d\n", stats.Completed)
					fmt.Printf("Failed:    %d\n", stats.Failed)
					return nil
				},
			},
			{
				Name:  "reset",
				Usage: "forget all progress so the next run starts from scratch",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "failed-only", Usage: "only reset failed items back to pending"},
				},
				Action: func(c *cli.Context) error {
					svc := progress.NewService(db)
					if c.Bool("failed-only") {
						count, err := svc.ResetFailed(ctx)
						if err != nil {
							return err
						}
						fmt.Printf("Reset %d failed items\n", count)
						return nil
					}
					if err := svc.Reset(ctx); err != nil {
						return err
					}
					fmt.Println("Progress cleared")
					return nil
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Err(err).Fatal("app run error")
	}
}

// buildOrganizer wires the sources the config enables.
func buildOrganizer(cfg *config.Config, db *bun.DB) (*organizer.Organizer, error) {
	sources := []source.Source{}

	var calibreSvc *calibre.Service
	if cfg.User.UseCalibreDatabase && cfg.User.CalibreDatabase != "" {
		calibreDB, err := database.OpenReadOnly(cfg, cfg.User.CalibreDatabase)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		calibreSvc = calibre.NewService(calibreDB)
		sources = append(sources, source.NewCalibreSource(calibreSvc, cfg.User))
	}
	if len(cfg.User.SourceDirectories) > 0 {
		sources = append(sources, source.NewFilesystemSource(cfg.User))
	}
	if len(sources) == 0 {
		return nil, errors.New("no sources configured: set calibre_library or source_directories")
	}

	progressSvc := progress.NewService(db)
	dates := authordates.NewCache(db)
	return organizer.New(cfg.User, progressSvc, dates, calibreSvc, sources), nil
}

func printSummary(summary *organizer.Summary) {
	fmt.Println("============================================================")
	fmt.Println("Run finished")
	fmt.Printf("Processed: %d\n", summary.Processed)
	fmt.Printf("Succeeded: %d\n", summary.Succeeded)
	fmt.Printf("Failed:    %d\n", summary.Failed)
	if summary.Stats != nil {
		fmt.Printf("Remaining: %d\n", summary.Stats.Pending)
	}
	fmt.Println("============================================================")
}

func writeFailedReport(ctx context.Context, org *organizer.Organizer, path string) error {
	items, err := org.FailedItems(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithStack(err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	for _, item := range items {
		title := ""
		if item.Title != nil {
			title = *item.Title
		}
		message := ""
		if item.ErrorMessage != nil {
			message = *item.ErrorMessage
		}
		fmt.Fprintf(f, "Item: %s | Title: %s | Error: %s\n", item.ID, title, message)
	}
	return nil
}
