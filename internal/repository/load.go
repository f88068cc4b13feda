package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

// LoadRepository stores saved load drafts.
type LoadRepository interface {
	Create(ctx context.Context, form entity.FormState, sourceSHA string) (*entity.Load, error)
	Update(ctx context.Context, id uuid.UUID, form entity.FormState) (*entity.Load, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Load, error)
	List(ctx context.Context, limit int) ([]entity.Load, error)
}

type loadRepo struct {
	db  DBTX
	log *slog.Logger
}

func NewLoadRepository(db DBTX, log *slog.Logger) LoadRepository {
	if log == nil {
		log = slog.Default()
	}
	return &loadRepo{db: db, log: log}
}

const loadColumns = `id::text, form, source_sha256, created_at, updated_at`

func (r *loadRepo) Create(ctx context.Context, form entity.FormState, sourceSHA string) (*entity.Load, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	load := &entity.Load{ID: uuid.New(), Form: form.Clone(), SourceSHA: sourceSHA}
	err = r.db.QueryRow(ctx,
		`INSERT INTO loads (id, reference_number, source_sha256, form)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		load.ID, nullable(form.Reference), nullable(sourceSHA), body,
	).Scan(&load.CreatedAt, &load.UpdatedAt)
	if err != nil {
		r.log.Error("load create failed", "err", err)
		return nil, fmt.Errorf("%w: insert load: %w", common.ErrDatabase, err)
	}
	r.log.Info("load created", "load_id", load.ID, "reference", form.Reference)
	return load, nil
}

func (r *loadRepo) Update(ctx context.Context, id uuid.UUID, form entity.FormState) (*entity.Load, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("encode form: %w", err)
	}
	row := r.db.QueryRow(ctx,
		`UPDATE loads SET form = $2, reference_number = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+loadColumns,
		id, body, nullable(form.Reference),
	)
	load, err := scanLoad(row)
	if err != nil {
		return nil, r.wrap("update", id, err)
	}
	r.log.Info("load updated", "load_id", id)
	return load, nil
}

func (r *loadRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Load, error) {
	row := r.db.QueryRow(ctx, `SELECT `+loadColumns+` FROM loads WHERE id = $1`, id)
	load, err := scanLoad(row)
	if err != nil {
		return nil, r.wrap("get", id, err)
	}
	return load, nil
}

func (r *loadRepo) List(ctx context.Context, limit int) ([]entity.Load, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := r.db.Query(ctx, `SELECT `+loadColumns+` FROM loads ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list loads: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.Load
	for rows.Next() {
		load, err := scanLoad(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan load: %w", common.ErrDatabase, err)
		}
		out = append(out, *load)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list loads: %w", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *loadRepo) wrap(op string, id uuid.UUID, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("load %s: %w", id, common.ErrNotFound)
	}
	r.log.Error("load "+op+" failed", "load_id", id, "err", err)
	return fmt.Errorf("%w: %s load: %w", common.ErrDatabase, op, err)
}

func scanLoad(row pgx.Row) (*entity.Load, error) {
	var (
		load entity.Load
		id   string
		body []byte
		sha  *string
		c, u time.Time
	)
	if err := row.Scan(&id, &body, &sha, &c, &u); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse load id: %w", err)
	}
	load.ID = parsed
	if err := json.Unmarshal(body, &load.Form); err != nil {
		return nil, fmt.Errorf("decode form: %w", err)
	}
	if sha != nil {
		load.SourceSHA = *sha
	}
	load.CreatedAt, load.UpdatedAt = c, u
	return &load, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
