package handler

import (
	"net/http"

	"github.com/faucetdb/acctd/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI 3.1 description of the lookup RPCs.
type OpenAPIHandler struct {
	baseURL string
}

// NewOpenAPIHandler creates a new OpenAPIHandler. An empty baseURL is
// derived from each request.
func NewOpenAPIHandler(baseURL string) *OpenAPIHandler {
	return &OpenAPIHandler{baseURL: baseURL}
}

// ServeSpec returns the RPC spec.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	baseURL := h.baseURL
	if baseURL == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		baseURL = scheme + "://" + r.Host
	}
	writeJSON(w, http.StatusOK, openapi.GenerateRPCSpec(baseURL))
}
