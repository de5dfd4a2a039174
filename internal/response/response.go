package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"opsboard/internal/models"
	"opsboard/internal/store"
	"opsboard/internal/validation"
)

// JSON writes a successful API response with the given data.
func JSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.APIResponse{Data: data})
}

// Created writes data with status 201.
func Created(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.APIResponse{Data: data})
}

// JSONMeta writes a successful API response with a total count.
func JSONMeta(w http.ResponseWriter, data interface{}, total int) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.APIResponse{
		Data: data,
		Meta: &models.Meta{Total: total},
	})
}

// Err writes a JSON error response with the given message and HTTP status code.
func Err(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Invalid writes the field errors with status 400.
func Invalid(w http.ResponseWriter, ve *validation.ValidationErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": "validation failed", "fields": ve.Errors})
}

// Fail maps a store error to a status code. Anything unrecognized is logged
// and reported as 500.
func Fail(w http.ResponseWriter, log *zap.Logger, err error) {
	var ve *validation.ValidationErrors
	switch {
	case errors.Is(err, store.ErrNotFound):
		Err(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &ve):
		Invalid(w, ve)
	default:
		log.Error("request failed", zap.Error(err))
		Err(w, err.Error(), http.StatusInternalServerError)
	}
}

// DecodeBody decodes a JSON request body into the given value.
func DecodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
