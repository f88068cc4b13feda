package main

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/ratecon-tracker/internal/async"
	"github.com/joseph-ayodele/ratecon-tracker/internal/ingest"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm/provider"
	"github.com/joseph-ayodele/ratecon-tracker/internal/pipeline"
	"github.com/joseph-ayodele/ratecon-tracker/internal/render"
	repo "github.com/joseph-ayodele/ratecon-tracker/internal/repository"
)

var (
	watchOut      string
	watchWorkers  int
	watchSave     bool
	watchExisting bool
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Extract every rate confirmation dropped into a directory",
	Long: `Watches <dir> recursively. Each new PDF or image runs through the pipeline
with an empty form; the outcome is written as <name>.json under --out.
With --save and DB_URL set, successful runs are also saved as load drafts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.ValidateLLM(); err != nil {
			return err
		}

		vision, closeVision, err := provider.New(ctx, cfg.LLM, logger)
		if err != nil {
			return err
		}
		defer closeVision()

		db, err := repo.OpenJobStore(ctx, cfg.JobStore.Driver, cfg.JobStore.DSN, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := repo.MigrateJobs(ctx, db); err != nil {
			return err
		}

		var loads ingest.LoadSaver
		if watchSave {
			if cfg.Database.DSN == "" {
				return errors.New("--save needs DB_URL")
			}
			pool, err := repo.Open(ctx, repo.Config{DSN: cfg.Database.DSN, MaxConns: 4, DialTimeout: cfg.Database.DialTimeout}, logger)
			if err != nil {
				return err
			}
			defer repo.Close(pool, logger)
			if err := repo.Migrate(ctx, pool, logger); err != nil {
				return err
			}
			loads = repo.NewLoadRepository(pool, logger)
		}

		renderer := render.New(render.Config{
			Pdftoppm:      cfg.Render.Pdftoppm,
			HeicConverter: cfg.Render.HeicConverter,
			Scale:         cfg.Render.Scale,
			MaxPages:      cfg.Render.MaxPages,
			MaxPDFBytes:   cfg.Render.MaxPDFBytes,
			MaxImageBytes: cfg.Render.MaxImageBytes,
			TmpDir:        cfg.Render.TmpDir,
			Timeout:       cfg.Render.Timeout,
		}, logger)
		requester := llm.NewRequester(vision, provider.RetryConfig(cfg.LLM), logger)
		pipe := pipeline.New(renderer, requester, repo.NewExtractJobRepository(db, cfg.JobStore.Driver, logger), logger)

		out := watchOut
		if out == "" {
			out = filepath.Join(args[0], ".ratecon")
		}
		inbox := ingest.NewInbox(pipe, loads, out, logger)
		queue := async.NewQueue(inbox.Handle, logger,
			async.WithWorkers(watchWorkers),
			async.WithProcessTimeout(cfg.RunTimeout()),
		)

		events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
			Roots:       []string{args[0]},
			InitialScan: watchExisting,
			Debounce:    watchDebounce,
		}, logger)
		if err != nil {
			queue.Shutdown(context.Background())
			return err
		}
		logger.Info("watching", "dir", args[0], "out", out, "workers", watchWorkers)

		for events != nil || errs != nil {
			select {
			case p, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				if err := queue.Enqueue(ctx, async.Job{Path: p}); err != nil {
					logger.Warn("enqueue failed", "path", p, "error", err)
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("watch error", "error", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		queue.Shutdown(shutdownCtx)
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchOut, "out", "o", "", "outcome directory (default <dir>/.ratecon)")
	watchCmd.Flags().IntVarP(&watchWorkers, "workers", "w", 2, "concurrent extractions")
	watchCmd.Flags().BoolVar(&watchSave, "save", false, "save successful extractions as load drafts")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", true, "also process files already in the directory")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "wait for writes to settle")
}
