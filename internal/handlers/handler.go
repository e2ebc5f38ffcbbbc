package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"gitlab.com/effect-network.net/internal/handlers/response"
	"gitlab.com/effect-network.net/internal/static/errs"
)

func ResponseWithJson(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func ResponseError(w http.ResponseWriter, message string, code int) {
	response.WriteError(w, response.ErrorMessage{Message: message, StatusCode: code})
}

// StatusOf maps service errors onto HTTP status codes
func StatusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrAlreadyExists), errors.Is(err, errs.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errs.ErrWrongAssignee):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrMalformedMessage), errors.Is(err, errs.ErrEmptyBatch):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrPeerNotConnected), errors.Is(err, errs.ErrUnknownPeer):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ResponseServiceError writes err with the status StatusOf picks
func ResponseServiceError(w http.ResponseWriter, err error) {
	ResponseError(w, err.Error(), StatusOf(err))
}

// DecodeJSON decodes an optional request body; an empty body leaves v untouched
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}
