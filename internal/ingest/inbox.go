package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/ratecon-tracker/internal/async"
	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
	"github.com/joseph-ayodele/ratecon-tracker/internal/merge"
	"github.com/joseph-ayodele/ratecon-tracker/internal/pipeline"
	"github.com/joseph-ayodele/ratecon-tracker/internal/render"
)

// Runner is the extraction pipeline.
type Runner interface {
	Run(ctx context.Context, doc entity.UploadedDocument, form entity.FormState) (pipeline.Result, error)
}

// LoadSaver stores a successful extraction as a new load draft.
type LoadSaver interface {
	Create(ctx context.Context, form entity.FormState, sourceSHA string) (*entity.Load, error)
}

// Outcome is what the inbox writes next to each processed file.
type Outcome struct {
	Source        string           `json:"source"`
	SHA256        string           `json:"sha256"`
	JobID         uuid.UUID        `json:"job_id,omitempty"`
	LoadID        *uuid.UUID       `json:"load_id,omitempty"`
	Form          entity.FormState `json:"form"`
	UpdatedFields []string         `json:"updated_fields,omitempty"`
	Changes       []merge.Change   `json:"changes,omitempty"`
	Error         string           `json:"error,omitempty"`
	Kind          string           `json:"kind,omitempty"`
}

// Inbox runs each file once per distinct content and records the outcome as
// <outDir>/<name>.json.
type Inbox struct {
	run    Runner
	loads  LoadSaver
	outDir string
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInbox builds an inbox. loads may be nil to skip saving drafts.
func NewInbox(run Runner, loads LoadSaver, outDir string, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{run: run, loads: loads, outDir: outDir, logger: logger, seen: map[string]struct{}{}}
}

// ErrDuplicate marks content that was already processed by this inbox.
var ErrDuplicate = errors.New("duplicate upload")

// Handle adapts Process to an async.Handler.
func (b *Inbox) Handle(ctx context.Context, job async.Job) error {
	_, err := b.Process(ctx, job.Path)
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

// Process extracts one file. Pipeline failures are written to the outcome
// file and returned.
func (b *Inbox) Process(ctx context.Context, path string) (*Outcome, error) {
	log := b.logger.With("path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])

	if !b.claim(sha) {
		log.Info("ingest.skip.duplicate", "sha256", sha)
		return nil, ErrDuplicate
	}

	doc := entity.UploadedDocument{Filename: filepath.Base(path), Data: data}
	doc.MediaType = render.DetectMediaType(doc)

	out := &Outcome{Source: path, SHA256: sha}
	res, runErr := b.run.Run(ctx, doc, entity.FormState{})
	if runErr != nil {
		out.Error = runErr.Error()
		out.Kind = string(common.KindOf(runErr))
		var perr *pipeline.Error
		if errors.As(runErr, &perr) {
			out.Kind = string(perr.Kind)
		}
		// a later copy of the same bytes may succeed (e.g. after a transient outage)
		b.release(sha)
	} else {
		out.JobID = res.JobID
		out.Form = res.Form
		out.UpdatedFields = res.UpdatedFields()
		out.Changes = res.Changes
		if b.loads != nil {
			load, err := b.loads.Create(ctx, res.Form, sha)
			if err != nil {
				log.Warn("ingest.save.failed", "error", err)
			} else {
				out.LoadID = &load.ID
			}
		}
	}

	if err := b.writeOutcome(path, out); err != nil {
		return out, err
	}
	if runErr != nil {
		return out, runErr
	}
	log.Info("ingest.ok", "job_id", out.JobID, "updated", len(out.Changes))
	return out, nil
}

func (b *Inbox) claim(sha string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.seen[sha]; ok {
		return false
	}
	b.seen[sha] = struct{}{}
	return true
}

func (b *Inbox) release(sha string) {
	b.mu.Lock()
	delete(b.seen, sha)
	b.mu.Unlock()
}

// OutcomePath is where the outcome for src is written.
func (b *Inbox) OutcomePath(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(b.outDir, base+".json")
}

func (b *Inbox) writeOutcome(src string, out *Outcome) error {
	if b.outDir == "" {
		return nil
	}
	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	dst := b.OutcomePath(src)
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
