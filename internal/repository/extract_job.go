package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

// ExtractJobRepository keeps the history of pipeline runs.
type ExtractJobRepository interface {
	Start(ctx context.Context, job *entity.ExtractJob) error
	Finish(ctx context.Context, job *entity.ExtractJob) error
	Get(ctx context.Context, id uuid.UUID) (*entity.ExtractJob, error)
	List(ctx context.Context, limit int) ([]entity.ExtractJob, error)
}

type extractJobRepo struct {
	db     *sql.DB
	driver string
	log    *slog.Logger
}

// OpenJobStore opens the run-history database. driver is "sqlite" (default) or "pgx".
func OpenJobStore(ctx context.Context, driver, dsn string, log *slog.Logger) (*sql.DB, error) {
	if driver == "" {
		driver = "sqlite"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	if driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY under concurrent runs
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("job store: exec %s: %w", pragma, err)
			}
		}
	}
	log.Info("job store opened", "driver", driver)
	return db, nil
}

func NewExtractJobRepository(db *sql.DB, driver string, log *slog.Logger) ExtractJobRepository {
	if driver == "" {
		driver = "sqlite"
	}
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, driver: driver, log: log}
}

const extractJobSchema = `
CREATE TABLE IF NOT EXISTS extract_jobs (
	id             TEXT PRIMARY KEY,
	filename       TEXT NOT NULL,
	media_type     TEXT NOT NULL,
	source_sha256  TEXT,
	status         TEXT NOT NULL,
	pages          INTEGER NOT NULL DEFAULT 0,
	model_name     TEXT,
	error_kind     TEXT,
	error_message  TEXT,
	extracted_json TEXT,
	started_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP,
	elapsed_ms     BIGINT
);

CREATE INDEX IF NOT EXISTS idx_extract_jobs_started_at ON extract_jobs(started_at);
CREATE INDEX IF NOT EXISTS idx_extract_jobs_sha ON extract_jobs(source_sha256);
`

// MigrateJobs creates the run-history table.
func MigrateJobs(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(extractJobSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("job store: migrate: %w", err)
		}
	}
	return nil
}

// bind rewrites ? placeholders for drivers that use $n.
func (r *extractJobRepo) bind(q string) string {
	if r.driver != "pgx" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *extractJobRepo) Start(ctx context.Context, job *entity.ExtractJob) error {
	_, err := r.db.ExecContext(ctx, r.bind(
		`INSERT INTO extract_jobs (id, filename, media_type, source_sha256, status, pages, model_name, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		job.ID.String(), job.Filename, job.MediaType, nullable(job.SourceSHA), job.Status, job.Pages,
		job.ModelName, job.StartedAt.UTC(),
	)
	if err != nil {
		r.log.Error("extract_job start failed", "job_id", job.ID, "err", err)
		return fmt.Errorf("%w: insert extract_job: %w", common.ErrDatabase, err)
	}
	r.log.Info("extract_job started", "job_id", job.ID, "filename", job.Filename)
	return nil
}

func (r *extractJobRepo) Finish(ctx context.Context, job *entity.ExtractJob) error {
	var extracted *string
	if len(job.ExtractedJSON) > 0 {
		s := string(job.ExtractedJSON)
		extracted = &s
	}
	var finished *time.Time
	if job.FinishedAt != nil {
		t := job.FinishedAt.UTC()
		finished = &t
	}
	res, err := r.db.ExecContext(ctx, r.bind(
		`UPDATE extract_jobs
		 SET status = ?, pages = ?, model_name = ?, error_kind = ?, error_message = ?,
		     extracted_json = ?, finished_at = ?, elapsed_ms = ?
		 WHERE id = ?`),
		job.Status, job.Pages, job.ModelName, job.ErrorKind, job.ErrorMessage,
		extracted, finished, job.ElapsedMS, job.ID.String(),
	)
	if err != nil {
		r.log.Error("extract_job finish failed", "job_id", job.ID, "err", err)
		return fmt.Errorf("%w: update extract_job: %w", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("extract_job %s: %w", job.ID, common.ErrNotFound)
	}
	r.log.Info("extract_job finished", "job_id", job.ID, "status", job.Status)
	return nil
}

const extractJobColumns = `id, filename, media_type, source_sha256, status, pages, model_name,
	error_kind, error_message, extracted_json, started_at, finished_at, elapsed_ms`

func (r *extractJobRepo) Get(ctx context.Context, id uuid.UUID) (*entity.ExtractJob, error) {
	row := r.db.QueryRowContext(ctx, r.bind(`SELECT `+extractJobColumns+` FROM extract_jobs WHERE id = ?`), id.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("extract_job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get extract_job: %w", common.ErrDatabase, err)
	}
	return job, nil
}

func (r *extractJobRepo) List(ctx context.Context, limit int) ([]entity.ExtractJob, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	rows, err := r.db.QueryContext(ctx, r.bind(`SELECT `+extractJobColumns+` FROM extract_jobs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list extract_jobs: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.ExtractJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan extract_job: %w", common.ErrDatabase, err)
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*entity.ExtractJob, error) {
	var (
		job       entity.ExtractJob
		id        string
		sha       sql.NullString
		extracted sql.NullString
		finished  sql.NullTime
		elapsed   sql.NullInt64
	)
	if err := row.Scan(&id, &job.Filename, &job.MediaType, &sha, &job.Status, &job.Pages, &job.ModelName,
		&job.ErrorKind, &job.ErrorMessage, &extracted, &job.StartedAt, &finished, &elapsed); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	job.ID = parsed
	job.SourceSHA = sha.String
	if extracted.Valid {
		job.ExtractedJSON = []byte(extracted.String)
	}
	if finished.Valid {
		t := finished.Time
		job.FinishedAt = &t
	}
	if elapsed.Valid {
		v := elapsed.Int64
		job.ElapsedMS = &v
	}
	return &job, nil
}
