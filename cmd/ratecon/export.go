package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/ratecon-tracker/internal/export"
	repo "github.com/joseph-ayodele/ratecon-tracker/internal/repository"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write saved loads to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cfg.Database.DSN == "" {
			return errors.New("DB_URL env var is required")
		}
		pool, err := repo.Open(ctx, repo.Config{
			DSN:         cfg.Database.DSN,
			MaxConns:    2,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			return err
		}
		defer repo.Close(pool, logger)

		xlsx, err := export.NewService(repo.NewLoadRepository(pool, logger), logger).ExportLoadsXLSX(ctx)
		if err != nil {
			return err
		}
		if exportOut == "" {
			exportOut = fmt.Sprintf("loads-%s.xlsx", time.Now().Format("20060102"))
		}
		if err := os.WriteFile(exportOut, xlsx, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", exportOut, err)
		}
		logger.Info("export written", "path", exportOut, "bytes", len(xlsx))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (default loads-YYYYMMDD.xlsx)")
}
