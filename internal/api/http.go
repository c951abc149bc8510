package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const maxRequestBodySize = 1 << 20 // 1MB

// NewHTTPHandler returns the HTTP surface: an open /health probe and a
// bearer-authenticated tool endpoint mirroring the MCP tools.
//
//	POST /tools/{tool}  body: JSON argument object
//
// The response is always the JSON envelope with status 200; transport-level
// problems (auth, unknown tool, bad body) use conventional status codes.
func NewHTTPHandler(deps Deps, token string) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))
		r.Post("/tools/{tool}", handleTool(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleTool(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tool := chi.URLParam(r, "tool")

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		// An empty body means a tool call with no arguments.
		args := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid JSON body: %v", err)
			return
		}

		resp, known := Dispatch(deps, tool, args)
		if !known {
			httpError(w, http.StatusNotFound, "invalid_request_error", "unknown tool %q", tool)
			return
		}
		if !resp.OK {
			deps.Log.Warn("tool failed", "tool", tool, "code", resp.Error.Code)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
