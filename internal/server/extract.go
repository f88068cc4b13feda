package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
	"github.com/joseph-ayodele/ratecon-tracker/internal/merge"
	"github.com/joseph-ayodele/ratecon-tracker/internal/pipeline"
	"github.com/joseph-ayodele/ratecon-tracker/internal/render"
)

const maxFormField = 1 << 20

type extractResponse struct {
	JobID         uuid.UUID        `json:"job_id"`
	Form          entity.FormState `json:"form"`
	UpdatedFields []string         `json:"updated_fields"`
	Changes       []merge.Change   `json:"changes"`
	Pages         int              `json:"pages"`
	Model         string           `json:"model,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := common.LoggerFromContext(ctx, s.logger)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+maxFormField)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusBadRequest, string(common.KindInput), "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, string(common.KindInput), "expected multipart/form-data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	doc, err := readUpload(r)
	if err != nil {
		writeInvalid(w, err)
		return
	}
	doc.MediaType = render.DetectMediaType(doc)

	v := common.NewValidator().
		Field("file", doc.Data, common.Required, common.MaxBytes(s.cfg.MaxUploadBytes)).
		Field("filename", doc.Filename, common.MaxLength(255)).
		Field("media_type", doc.MediaType, common.SupportedMediaType)
	if err := common.ValidateAndReturnError(v); err != nil {
		log.Info("extract.rejected", "filename", doc.Filename, "media_type", doc.MediaType, "error", err)
		writeInvalid(w, err)
		return
	}

	var form entity.FormState
	if raw := strings.TrimSpace(r.FormValue("form")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &form); err != nil {
			writeError(w, http.StatusBadRequest, string(common.KindInput), "form must be a JSON object")
			return
		}
	}

	sum := sha256.Sum256(doc.Data)
	sha := hex.EncodeToString(sum[:])
	s.archiveUpload(ctx, doc, sha)

	key, err := flightKey(sha, form)
	if err != nil {
		writeError(w, http.StatusInternalServerError, string(common.KindInternal), "internal error")
		return
	}
	// Identical concurrent submissions share one run; it must outlive any
	// single caller disconnecting, so only RunTimeout ends it.
	out, err, shared := s.group.Do(key, func() (any, error) {
		runCtx, cancel := s.runContext(ctx)
		defer cancel()
		return s.extract.Run(runCtx, doc, form.Clone())
	})
	res, _ := out.(pipeline.Result)
	if err != nil {
		kind := common.KindOf(err)
		var perr *pipeline.Error
		if errors.As(err, &perr) {
			kind = perr.Kind
		}
		log.Warn("extract.failed", "filename", doc.Filename, "kind", kind, "shared", shared, "error", err)
		writeJSON(w, statusForKind(kind), errorBody{
			Error: common.UserMessage,
			Kind:  string(kind),
			Form:  form,
		})
		return
	}

	log.Info("extract.ok",
		"job_id", res.JobID,
		"pages", res.Pages,
		"updated", len(res.Changes),
		"shared", shared,
	)
	writeJSON(w, http.StatusOK, extractResponse{
		JobID:         res.JobID,
		Form:          res.Form.Clone(),
		UpdatedFields: nonNil(res.UpdatedFields()),
		Changes:       append([]merge.Change{}, res.Changes...),
		Pages:         res.Pages,
		Model:         res.Model,
	})
}

func (s *Server) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.cfg.RunTimeout > 0 {
		return context.WithTimeout(detached, s.cfg.RunTimeout)
	}
	return context.WithCancel(detached)
}

func readUpload(r *http.Request) (entity.UploadedDocument, error) {
	f, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return entity.UploadedDocument{}, common.ValidationErrors{{Field: "file", Message: "is required"}}
		}
		return entity.UploadedDocument{}, common.ValidationErrors{{Field: "file", Message: err.Error()}}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return entity.UploadedDocument{}, common.ValidationErrors{{Field: "file", Message: "could not be read"}}
	}
	return entity.UploadedDocument{
		Filename:  hdr.Filename,
		MediaType: hdr.Header.Get("Content-Type"),
		Data:      data,
	}, nil
}

// archiveUpload stores the original when an archive is configured. Failures
// never block extraction.
func (s *Server) archiveUpload(ctx context.Context, doc entity.UploadedDocument, sha string) {
	if s.archive == nil {
		return
	}
	log := common.LoggerFromContext(ctx, s.logger)
	if _, err := s.archive.Save(ctx, doc, sha); err != nil {
		log.Warn("extract.archive.failed", "sha256", sha, "error", err)
	}
}

func flightKey(sha string, form entity.FormState) (string, error) {
	b, err := json.Marshal(form)
	if err != nil {
		return "", err
	}
	fsum := sha256.Sum256(b)
	return sha + ":" + hex.EncodeToString(fsum[:]), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
