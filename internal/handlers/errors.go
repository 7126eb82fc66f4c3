package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sharmarajnish/KTSecure-CodeSignIn/internal/quorum"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, statusCode int, err error, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: err.Error(),
	}

	if details != nil {
		response.Details = details
	}

	json.NewEncoder(w).Encode(response)
}

// WriteSuccess writes a success response
func WriteSuccess(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteQuorumError translates approval engine errors to HTTP statuses
func WriteQuorumError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quorum.ErrNotFound):
		WriteError(w, http.StatusNotFound, err, nil)
	case errors.Is(err, quorum.ErrForbidden):
		WriteError(w, http.StatusForbidden, err, nil)
	case errors.Is(err, quorum.ErrAlreadyVoted):
		WriteError(w, http.StatusConflict, err, nil)
	case errors.Is(err, quorum.ErrNotPending):
		WriteError(w, http.StatusConflict, err, nil)
	case errors.Is(err, quorum.ErrExpired):
		WriteError(w, http.StatusConflict, err, map[string]interface{}{
			"status": string(quorum.StatusExpired),
		})
	case errors.Is(err, quorum.ErrInvalidPolicy), errors.Is(err, quorum.ErrInvalidVote):
		WriteError(w, http.StatusBadRequest, err, nil)
	default:
		WriteError(w, http.StatusInternalServerError, err, nil)
	}
}

// HandlePanic recovers from panics and writes error response
func HandlePanic(w http.ResponseWriter, r *http.Request) {
	if err := recover(); err != nil {
		WriteError(w, http.StatusInternalServerError, fmt.Errorf("internal server error: %v", err), nil)
	}
}
