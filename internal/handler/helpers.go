package handler

import (
	"encoding/json"
	"net/http"
	"strings"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// formString returns the first non-empty value among the given parameter
// names, read from the query string or an urlencoded body.
func formString(r *http.Request, keys ...string) string {
	for _, key := range keys {
		if v := r.FormValue(key); v != "" {
			return v
		}
	}
	return ""
}

// formFlag reports whether any of the given parameters is set to a truthy
// value. Empty, "0" and "false" are false; anything else is true.
func formFlag(r *http.Request, keys ...string) bool {
	for _, key := range keys {
		switch strings.ToLower(strings.TrimSpace(r.FormValue(key))) {
		case "", "0", "false":
			continue
		default:
			return true
		}
	}
	return false
}
