package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm/provider"
	"github.com/joseph-ayodele/ratecon-tracker/internal/merge"
	"github.com/joseph-ayodele/ratecon-tracker/internal/pipeline"
	"github.com/joseph-ayodele/ratecon-tracker/internal/render"
	repo "github.com/joseph-ayodele/ratecon-tracker/internal/repository"
)

var (
	extractFormPath string
	extractNoJobs   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Run one rate confirmation through the pipeline and print the merged form",
	Long: `Renders the document, sends one extraction request and prints the updated
form as JSON. --form seeds the form from a JSON file; fields the document
does not mention keep their seeded values.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.ValidateLLM(); err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		doc := entity.UploadedDocument{Filename: filepath.Base(args[0]), Data: data}
		doc.MediaType = render.DetectMediaType(doc)

		var form entity.FormState
		if extractFormPath != "" {
			raw, err := os.ReadFile(extractFormPath)
			if err != nil {
				return fmt.Errorf("read form: %w", err)
			}
			if err := json.Unmarshal(raw, &form); err != nil {
				return fmt.Errorf("decode form: %w", err)
			}
		}

		vision, closeVision, err := provider.New(ctx, cfg.LLM, logger)
		if err != nil {
			return err
		}
		defer closeVision()

		var jobs pipeline.JobRecorder
		if !extractNoJobs {
			db, err := repo.OpenJobStore(ctx, cfg.JobStore.Driver, cfg.JobStore.DSN, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := repo.MigrateJobs(ctx, db); err != nil {
				return err
			}
			jobs = repo.NewExtractJobRepository(db, cfg.JobStore.Driver, logger)
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
		pipe := pipeline.New(renderer, llm.NewRequester(vision, provider.RetryConfig(cfg.LLM), logger), jobs, logger)

		res, err := pipe.Run(ctx, doc, form)
		if err != nil {
			var perr *pipeline.Error
			if errors.As(err, &perr) {
				logger.Debug("extract failed", "detail", perr.Detail())
			}
			return err
		}

		return printJSON(struct {
			JobID         string           `json:"job_id"`
			Form          entity.FormState `json:"form"`
			UpdatedFields []string         `json:"updated_fields"`
			Changes       []merge.Change   `json:"changes"`
			Pages         int              `json:"pages"`
			Model         string           `json:"model"`
		}{res.JobID.String(), res.Form, res.UpdatedFields(), res.Changes, res.Pages, res.Model})
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractFormPath, "form", "", "JSON file with the current form state")
	extractCmd.Flags().BoolVar(&extractNoJobs, "no-history", false, "do not record the run in the job store")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
