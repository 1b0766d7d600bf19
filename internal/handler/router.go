package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/zhizhi/bobi/backend/internal/handler/chat"
	wsHandler "github.com/zhizhi/bobi/backend/internal/handler/ws"
	middlewarePkg "github.com/zhizhi/bobi/backend/internal/middleware"
	chatService "github.com/zhizhi/bobi/backend/internal/service/chat"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatSvc *chatService.Service, searcher chatHandler.Searcher) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Load balancer health check, path matches the deployed target group.
	r.Get("/health-check-path", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		chatHandler.New(chatSvc, searcher).RegisterRoutes(api)
		wsHandler.New(chatSvc).RegisterRoutes(api)
	})

	return r
}
