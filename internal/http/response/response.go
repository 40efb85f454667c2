package response

import (
	"encoding/json"
	"net/http"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Success writes {"status":"success"} merged with fields.
func Success(w http.ResponseWriter, r *http.Request, status int, fields map[string]any) {
	writeJSON(w, status, envelope(statusSuccess, fields))
}

func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	ErrorWithFields(w, r, status, message, nil)
}

func ErrorWithFields(w http.ResponseWriter, _ *http.Request, status int, message string, fields map[string]any) {
	body := envelope(statusError, fields)
	body["message"] = message
	writeJSON(w, status, body)
}

func envelope(status string, fields map[string]any) map[string]any {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["status"] = status
	return body
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
