package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/CBerg14/balloon-pump-backend/internal/comments"
	"github.com/CBerg14/balloon-pump-backend/internal/game"
	"github.com/CBerg14/balloon-pump-backend/internal/metrics"
	"github.com/CBerg14/balloon-pump-backend/internal/users"
	"github.com/CBerg14/balloon-pump-backend/internal/ws"
)

func SetupRoutes(rm *game.Room, reg *users.Registry, cmts *comments.Service, m *metrics.Metrics, staticDir string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(rm, reg, cmts, log))
	r.Handle("/metrics", m.Handler())

	r.Get("/api/users", ListUsers(reg, log))
	r.Get("/get_nickname", GetNickname(reg))
	r.Put("/api/users/update-nickname", UpdateNickname(reg, log))

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}
