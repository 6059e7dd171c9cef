package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	log        *slog.Logger
	db         Pinger
	middleware huma.Middlewares
}

func NewHandler(log *slog.Logger, db Pinger, middleware huma.Middlewares) *Handler {
	return &Handler{
		log:        log,
		db:         db,
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.healthCheckOp(), h.healthCheck)
}

func (h *Handler) healthCheck(ctx context.Context, _ *Input) (*Output, error) {
	h.log.Debug("health check request received")

	out := &Output{Body: Response{Status: "OK"}}
	if h.db == nil {
		return out, nil
	}
	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn("database ping failed", slog.String("error", err.Error()))
		out.Body.Status = "DEGRADED"
		out.Body.Database = "UNAVAILABLE"
		return out, nil
	}
	out.Body.Database = "OK"
	return out, nil
}
