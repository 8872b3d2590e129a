package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router builds the chi route tree for the API server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.log))

	r.Get("/api/health", s.handleHealth)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/save", s.handleSaveSession)
			r.Post("/messages", s.handleAddMessage)
			r.Post("/state", s.handleSetState)
			r.Post("/context", s.handleMergeContext)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/complete", s.handleComplete)
			r.Post("/abandon", s.handleAbandon)
			r.Get("/checkpoints", s.handleListCheckpoints)
			r.Post("/checkpoints", s.handleCreateCheckpoint)
			r.Post("/checkpoints/{name}/restore", s.handleRestoreCheckpoint)
			r.Get("/watch", s.handleWatch)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route: "+r.URL.Path)
	})

	return r
}
