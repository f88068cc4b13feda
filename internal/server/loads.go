package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

const maxLoadBody = 1 << 20

type saveLoadRequest struct {
	Form      entity.FormState `json:"form"`
	SourceSHA string           `json:"source_sha256,omitempty"`
}

func validateForm(f entity.FormState) error {
	v := common.NewValidator().
		Field("reference", f.Reference, common.MaxLength(64)).
		Field("pickup_state", f.PickupState, common.StateCode).
		Field("delivery_state", f.DeliveryState, common.StateCode).
		Field("miles", f.Miles, common.Decimal).
		Field("rate", f.Rate, common.Decimal).
		Field("rate_per_mile", f.RatePerMile, common.Decimal)
	return common.ValidateAndReturnError(v)
}

func (s *Server) decodeLoad(w http.ResponseWriter, r *http.Request) (saveLoadRequest, bool) {
	var req saveLoadRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoadBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(common.KindInput), "body must be {\"form\": {...}}")
		return req, false
	}
	if err := validateForm(req.Form); err != nil {
		writeInvalid(w, err)
		return req, false
	}
	return req, true
}

func (s *Server) handleCreateLoad(w http.ResponseWriter, r *http.Request) {
	if s.loads == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "load storage is not configured")
		return
	}
	req, ok := s.decodeLoad(w, r)
	if !ok {
		return
	}
	load, err := s.loads.Create(r.Context(), req.Form, req.SourceSHA)
	if err != nil {
		s.storeFailed(w, r, "loads.create.failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": load.ID})
}

func (s *Server) handleUpdateLoad(w http.ResponseWriter, r *http.Request) {
	if s.loads == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "load storage is not configured")
		return
	}
	id, ok := loadID(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeLoad(w, r)
	if !ok {
		return
	}
	load, err := s.loads.Update(r.Context(), id, req.Form)
	if err != nil {
		s.storeFailed(w, r, "loads.update.failed", err)
		return
	}
	writeJSON(w, http.StatusOK, load)
}

func (s *Server) handleGetLoad(w http.ResponseWriter, r *http.Request) {
	if s.loads == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "load storage is not configured")
		return
	}
	id, ok := loadID(w, r)
	if !ok {
		return
	}
	load, err := s.loads.Get(r.Context(), id)
	if err != nil {
		s.storeFailed(w, r, "loads.get.failed", err)
		return
	}
	writeJSON(w, http.StatusOK, load)
}

func (s *Server) handleListLoads(w http.ResponseWriter, r *http.Request) {
	if s.loads == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "load storage is not configured")
		return
	}
	limit := 100
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, string(common.KindInput), "limit must be a positive integer")
			return
		}
		limit = n
	}
	loads, err := s.loads.List(r.Context(), limit)
	if err != nil {
		s.storeFailed(w, r, "loads.list.failed", err)
		return
	}
	if loads == nil {
		loads = []entity.Load{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"loads": loads})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "load storage is not configured")
		return
	}
	xlsx, err := s.exporter.ExportLoadsXLSX(r.Context())
	if err != nil {
		common.LoggerFromContext(r.Context(), s.logger).Error("export.xlsx.failed", "error", err)
		writeError(w, http.StatusInternalServerError, string(common.KindInternal), "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="loads.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(xlsx)
}

func loadID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeInvalid(w, common.ValidationErrors{{Field: "id", Value: chi.URLParam(r, "id"), Message: "must be a valid UUID"}})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) storeFailed(w http.ResponseWriter, r *http.Request, event string, err error) {
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "load not found")
		return
	}
	common.LoggerFromContext(r.Context(), s.logger).Error(event, "error", err)
	writeError(w, http.StatusInternalServerError, string(common.KindInternal), "internal error")
}
