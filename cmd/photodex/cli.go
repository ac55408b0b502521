package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pwalhed/photodex/internal/config"
	"github.com/pwalhed/photodex/internal/db"
	"github.com/pwalhed/photodex/internal/errors"
	"github.com/pwalhed/photodex/internal/ingest"
	"github.com/pwalhed/photodex/internal/jobs"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config, orch *ingest.Orchestrator) *cli.App {
	app := &cli.App{
		Name:    "photodex",
		Usage:   "Local photo catalog with deduplicating folder ingestion",
		Version: Version,
		Commands: []*cli.Command{
			ingestCmd(cfg, orch),
			sessionsCmd(database),
			statsCmd(database),
			showCmd(database),
			thumbnailCmd(database, cfg),
			purgeCmd(database),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// ingestCmd creates the ingest command.
func ingestCmd(cfg *config.Config, orch *ingest.Orchestrator) *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Ingest one or more folders under the catalog root",
		ArgsUsage: "<folder> [folder...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "recursive", Aliases: []string{"r"}, Usage: "Descend into subfolders"},
			&cli.StringFlag{Name: "checkpoint", Aliases: []string{"c"}, Usage: "Checkpoint file: resumed from if present, written on interruption"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("at least one folder is required"))
			}

			req := ingest.Request{
				Folders: c.Args().Slice(),
				Options: ingest.Options{Recursive: c.Bool("recursive")},
			}

			checkpointPath := c.String("checkpoint")
			if checkpointPath != "" {
				data, err := os.ReadFile(checkpointPath)
				if err == nil {
					cp, err := ingest.DecodeCheckpoint(data)
					if err != nil {
						return outputError(err)
					}
					req.Checkpoint = cp
				} else if !os.IsNotExist(err) {
					return outputError(errors.NewInternal(err))
				}
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer logger.Sync()

			mgr := jobs.New(cfg.MaxWorkers, logger)
			defer mgr.Close()

			id := mgr.Enqueue(ingest.JobTypeIngest, ingest.JobBody(orch), req)

			// SIGINT/SIGTERM cancel cooperatively; the run stops at the next
			// file boundary and reports its checkpoint.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				if _, ok := <-sigCh; ok {
					mgr.Cancel(id)
				}
			}()

			mgr.Wait(id, 0)
			snap, err := mgr.Inspect(id)
			if err != nil {
				return outputError(err)
			}

			if snap.State == jobs.StateFailed {
				return outputError(snap.Err)
			}

			if snap.State == jobs.StateCancelled && checkpointPath != "" {
				if cp, ok := snap.Checkpoint.(*ingest.Checkpoint); ok && cp != nil {
					data, err := ingest.EncodeCheckpoint(cp)
					if err != nil {
						return outputError(err)
					}
					if err := os.WriteFile(checkpointPath, data, 0600); err != nil {
						return outputError(errors.NewInternal(err))
					}
				}
			}

			return outputJSON(snap.Result)
		},
	}
}

// sessionsCmd creates the sessions command.
func sessionsCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "List import sessions, newest first",
		Action: func(_ *cli.Context) error {
			sessions, err := db.ListSessions(database)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(sessions)
		},
	}
}

// statsCmd creates the stats command.
func statsCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show catalog totals",
		Action: func(_ *cli.Context) error {
			sessions, err := db.ListSessions(database)
			if err != nil {
				return outputError(err)
			}
			images, err := db.CountImages(database)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]int{
				"sessions": len(sessions),
				"images":   images,
			})
		},
	}
}

// showCmd creates the show command.
func showCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show an image record and its metadata",
		ArgsUsage: "<image-id>",
		Action: func(c *cli.Context) error {
			id, err := parseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			img, err := db.GetImage(database, id)
			if err != nil {
				return outputError(err)
			}
			entries, err := db.GetMetadata(database, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"image":    img,
				"metadata": entries,
			})
		},
	}
}

// thumbnailCmd creates the thumbnail command.
func thumbnailCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "thumbnail",
		Usage:     "Write an image's thumbnail JPEG to a file",
		ArgsUsage: "<image-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "Output file path"},
		},
		Action: func(c *cli.Context) error {
			id, err := parseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			thumbs, err := db.NewThumbnailCache(database, cfg.ThumbnailCacheSize)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			data, err := thumbs.Get(id)
			if err != nil {
				return outputError(err)
			}
			out := c.String("out")
			if err := os.WriteFile(out, data, 0600); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return outputJSON(map[string]any{
				"image_id": id,
				"path":     out,
				"bytes":    len(data),
			})
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(database *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "purge",
		Usage:     "Delete a session and its images",
		ArgsUsage: "<session-id>",
		Action: func(c *cli.Context) error {
			id, err := parseID(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			removed, err := db.DeleteSession(database, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"session_id":     id,
				"images_removed": removed,
			})
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr, ok := err.(*errors.CatalogError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseID parses a positional numeric id argument.
func parseID(arg string) (int64, error) {
	if arg == "" {
		return 0, errors.NewInvalidRequest("an id argument is required")
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, errors.NewInvalidRequest(fmt.Sprintf("invalid id %q", arg))
	}
	return id, nil
}
