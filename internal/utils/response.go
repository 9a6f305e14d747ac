package utils

import (
	"encoding/json"
	"net/http"

	"ms-boxoffice/internal/apperr"
)

// Payload fields are flattened next to status and message in the envelope.
type Payload map[string]any

func envelope(ok bool, message string, payload Payload) map[string]any {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["status"] = ok
	body["message"] = message
	return body
}

func WriteJSON(w http.ResponseWriter, statusCode int, message string, payload Payload) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(envelope(statusCode < http.StatusBadRequest, message, payload))
}

func WriteSuccess(w http.ResponseWriter, statusCode int, message string, payload Payload) {
	WriteJSON(w, statusCode, message, payload)
}

// WriteError translates err through apperr so internal details never leak.
func WriteError(w http.ResponseWriter, err error) {
	status, message := apperr.Resolve(err)
	WriteJSON(w, status, message, nil)
}

func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.InvalidInput("invalid request body: %v", err)
	}
	return nil
}
