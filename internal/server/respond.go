package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
)

type errorBody struct {
	Error   string                   `json:"error"`
	Kind    string                   `json:"kind,omitempty"`
	Details []common.ValidationError `json:"details,omitempty"`
	Form    any                      `json:"form,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

// writeInvalid reports request validation failures field by field.
func writeInvalid(w http.ResponseWriter, err error) {
	body := errorBody{Error: "invalid request", Kind: string(common.KindInput)}
	var verrs common.ValidationErrors
	if errors.As(err, &verrs) {
		body.Details = verrs
	}
	writeJSON(w, http.StatusBadRequest, body)
}

// statusForKind maps a pipeline failure onto an HTTP status.
func statusForKind(kind common.ErrorKind) int {
	switch kind {
	case common.KindInput:
		return http.StatusBadRequest
	case common.KindRender, common.KindParse, common.KindValidation:
		return http.StatusUnprocessableEntity
	case common.KindExtraction:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
