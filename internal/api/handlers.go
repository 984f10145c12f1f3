package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/history"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/manifest"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/patchsync"
)

// Handler holds API route handlers.
type Handler struct {
	svc  *patchsync.Service
	runs history.Store
}

// NewHandler creates a new Handler.
func NewHandler(svc *patchsync.Service, runs history.Store) *Handler {
	return &Handler{svc: svc, runs: runs}
}

// GetManifest handles GET /api/manifest.
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Manifest(r.Context())
	if err != nil {
		writeError(w, "read manifest", err)
		return
	}
	entries := m.Entries()
	if entries == nil {
		entries = []manifest.Entry{}
	}
	writeJSON(w, http.StatusOK, ManifestResponse{
		Path:    h.svc.Options().ManifestPath,
		MaxID:   m.MaxID(),
		Lines:   m.Len(),
		Entries: entries,
	})
}

// Sync handles POST /api/sync. The run is detached from the request
// context so a disconnecting client cannot interrupt a push halfway.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.TryRun(context.WithoutCancel(r.Context()), patchsync.TriggerAPI)
	if rep == nil {
		writeError(w, "sync", err)
		return
	}
	// A failed run still has a report describing how far it got.
	writeJSON(w, statusFor(err), rep)
}

// ListRuns handles GET /api/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusNotFound, errorBody("run history disabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.runs.List(limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// GetRun handles GET /api/runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusNotFound, errorBody("run history disabled"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid run id"))
		return
	}
	run, err := h.runs.Get(id)
	if err != nil {
		writeError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
