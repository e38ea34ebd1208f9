package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/lojf/kidstudio/internal/apperr"
	"github.com/lojf/kidstudio/internal/models"
)

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Kind     string            `json:"kind"`
	Reason   string            `json:"reason"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error": {kind, reason, metadata}}. Anything
// that is not a domain error is logged and reported as internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	de, ok := apperr.As(err)
	if !ok {
		log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorPayload{Kind: "internal", Reason: "internal_error"}})
		return
	}
	status := de.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorBody{Error: errorPayload{Kind: string(de.Kind), Reason: de.Reason, Metadata: de.Metadata}})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	if errors.Is(err, models.ErrInvalidMoney) {
		return apperr.Validation("payment_amount", "invalid_amount")
	}
	field := ""
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		field = te.Field
	}
	return apperr.Validation(field, "invalid_json")
}

// flag reads boolean query parameters such as ?include_archived=1.
func flag(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get(name))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
