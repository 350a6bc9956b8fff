package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/torosent/crankstore/internal/metrics"
)

const (
	codeSuccess = iota + 303000
	codeFailure
	codeNotFound
	codeInvalidType
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status    bool        `json:"status"`
	Value     interface{} `json:"value,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode int         `json:"error_code"`
}

func errorCode(err error) int {
	switch {
	case err == nil:
		return codeSuccess
	case errors.Is(err, metrics.ErrNotFound):
		return codeNotFound
	case errors.Is(err, metrics.ErrInvalidType):
		return codeInvalidType
	default:
		return codeFailure
	}
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, metrics.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, metrics.ErrInvalidType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusCode(err), APIResponse{
		Error:     err.Error(),
		ErrorCode: errorCode(err),
	})
}

func writeResult(w http.ResponseWriter, value interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{
		Status:    true,
		Value:     value,
		ErrorCode: codeSuccess,
	})
}

func writeJSON(w http.ResponseWriter, status int, res APIResponse) {
	body, _ := json.Marshal(res)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	w.Write(body)
}
