package main

import (
	"github.com/spf13/cobra"

	repo "github.com/joseph-ayodele/ratecon-tracker/internal/repository"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent extraction runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		db, err := repo.OpenJobStore(ctx, cfg.JobStore.Driver, cfg.JobStore.DSN, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := repo.MigrateJobs(ctx, db); err != nil {
			return err
		}
		jobs, err := repo.NewExtractJobRepository(db, cfg.JobStore.Driver, logger).List(ctx, jobsLimit)
		if err != nil {
			return err
		}
		return printJSON(jobs)
	},
}

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 20, "number of runs to show")
}
