package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func NewRouter(server *Server) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", server.HealthCheck)

	r.Get("/lanes", server.HandleLanes)

	r.Post("/issues/{key}/transition", server.HandleTransition)
	r.Post("/issues/{key}/components/fix", server.HandleFixComponents)
	r.Post("/issues/{key}/assign", server.HandleAssign)

	return r
}
