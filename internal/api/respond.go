package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/docanalyze/internal/apperr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	switch apperr.KindOf(err) {
	case apperr.KindConfiguration:
		return http.StatusBadRequest
	case apperr.KindService:
		return http.StatusBadGateway
	case apperr.KindCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status for err and its kind.
func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body["kind"] = ae.Kind
		if ae.Piece != apperr.NoPiece {
			body["piece"] = ae.Piece + 1
			body["total_pieces"] = ae.Total
		}
	}
	writeJSON(w, statusFor(err), body)
}
