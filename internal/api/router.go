package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/irowiki-org/iROWikiPatcherTool/internal/history"
	"github.com/irowiki-org/iROWikiPatcherTool/internal/patchsync"
)

// NewRouter creates a chi router with all API routes mounted.
// runs may be nil when the run ledger is disabled.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *patchsync.Service, runs history.Store, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, runs)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/manifest", h.GetManifest)
	r.Post("/sync", h.Sync)

	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
