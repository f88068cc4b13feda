// Package pipeline turns an uploaded rate confirmation into an updated load form.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
	"github.com/joseph-ayodele/ratecon-tracker/internal/address"
	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
	"github.com/joseph-ayodele/ratecon-tracker/internal/llm"
	"github.com/joseph-ayodele/ratecon-tracker/internal/merge"
	"github.com/joseph-ayodele/ratecon-tracker/internal/normalize"
	"github.com/joseph-ayodele/ratecon-tracker/internal/render"
)

// Renderer rasterises an upload into ordered pages.
type Renderer interface {
	Render(ctx context.Context, doc entity.UploadedDocument) (*render.Pages, error)
}

// Extractor builds and sends the single extraction request.
type Extractor interface {
	Model() string
	Build(pages []entity.RenderedPage, filename string) llm.VisionRequest
	Send(ctx context.Context, req llm.VisionRequest) (string, error)
}

// JobRecorder persists run history. Start is called once per run and Finish
// once with the terminal state.
type JobRecorder interface {
	Start(ctx context.Context, job *entity.ExtractJob) error
	Finish(ctx context.Context, job *entity.ExtractJob) error
}

// Result of one run. On failure Form is the caller's form, untouched.
type Result struct {
	JobID     uuid.UUID
	State     constants.RunState
	Form      entity.FormState
	Changes   []merge.Change
	Pages     int
	Model     string
	Extracted json.RawMessage
}

// UpdatedFields lists the form fields the run changed.
func (r Result) UpdatedFields() []string { return merge.Fields(r.Changes) }

type Pipeline struct {
	renderer  Renderer
	extractor Extractor
	jobs      JobRecorder
	logger    *slog.Logger
}

// New wires a pipeline. jobs may be nil to skip run history.
func New(renderer Renderer, extractor Extractor, jobs JobRecorder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{renderer: renderer, extractor: extractor, jobs: jobs, logger: logger}
}

// Run executes render -> request -> parse -> normalize -> resolve -> merge.
// The pipeline holds no per-run state, so concurrent runs over different
// uploads are safe. Any failure comes back as *Error and leaves form as it was.
func (p *Pipeline) Run(ctx context.Context, doc entity.UploadedDocument, form entity.FormState) (Result, error) {
	start := time.Now()
	sum := sha256.Sum256(doc.Data)
	job := &entity.ExtractJob{
		ID:        uuid.New(),
		Filename:  doc.Filename,
		MediaType: render.DetectMediaType(doc),
		SourceSHA: hex.EncodeToString(sum[:]),
		Status:    string(constants.RunProcessing),
		StartedAt: start.UTC(),
	}
	model := p.extractor.Model()
	job.ModelName = &model

	log := common.LoggerFromContext(ctx, p.logger).With("job_id", job.ID, "filename", doc.Filename)
	log.Info("pipeline.run.start", "media_type", job.MediaType, "bytes", len(doc.Data))
	p.recordStart(ctx, job, log)

	res := Result{JobID: job.ID, State: constants.RunProcessing, Form: form.Clone(), Model: model}

	fail := func(stage string, err error) (Result, error) {
		kind := common.KindOf(err)
		log.Error("pipeline.run.failed",
			"stage", stage,
			"kind", kind,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		res.State = constants.RunFailed
		res.Form = form.Clone()
		res.Changes = nil

		kindStr, msg := string(kind), err.Error()
		job.Status = string(constants.RunFailed)
		job.ErrorKind, job.ErrorMessage = &kindStr, &msg
		job.ExtractedJSON = res.Extracted
		p.recordFinish(ctx, job, start, log)
		return res, &Error{Stage: stage, Kind: kind, Err: err}
	}

	pages, err := p.renderer.Render(ctx, doc)
	if err != nil {
		return fail("render", err)
	}
	res.Pages = pages.Len()
	job.Pages = res.Pages

	req := p.extractor.Build(pages.Pages(), doc.Filename)
	// the request holds the only remaining page references from here on
	pages.Release()

	raw, err := p.extractor.Send(ctx, req)
	if err != nil {
		return fail("extract", err)
	}

	rec, cleaned, err := llm.ParseRecord(raw, log)
	res.Extracted = cleaned
	if err != nil {
		return fail("parse", err)
	}

	rec = normalize.Record(rec)
	loc := address.Resolve(rec)
	merged, changes := merge.Apply(form, rec, loc)

	res.State = constants.RunSucceeded
	res.Form = merged
	res.Changes = changes

	job.Status = string(constants.RunSucceeded)
	job.ExtractedJSON = cleaned
	p.recordFinish(ctx, job, start, log)

	log.Info("pipeline.run.ok",
		"pages", res.Pages,
		"updated_fields", len(changes),
		"pickup", loc.Pickup.CityState(),
		"delivery", loc.Delivery.CityState(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Pipeline) recordStart(ctx context.Context, job *entity.ExtractJob, log *slog.Logger) {
	if p.jobs == nil {
		return
	}
	if err := p.jobs.Start(ctx, job); err != nil {
		log.Warn("pipeline.job.start_failed", "error", err)
	}
}

func (p *Pipeline) recordFinish(ctx context.Context, job *entity.ExtractJob, start time.Time, log *slog.Logger) {
	if p.jobs == nil {
		return
	}
	now := time.Now().UTC()
	elapsed := now.Sub(start).Milliseconds()
	job.FinishedAt, job.ElapsedMS = &now, &elapsed
	// history is written even when the caller has gone away
	if err := p.jobs.Finish(context.WithoutCancel(ctx), job); err != nil {
		log.Warn("pipeline.job.finish_failed", "error", err)
	}
}
