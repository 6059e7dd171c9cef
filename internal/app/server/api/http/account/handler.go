package account

import (
	"context"
	"errors"

	"contactsync/internal/domain/account"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    account.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service account.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With(slog.String("component", "account_handler")),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.registerOp(), h.register)
}

func (h *Handler) register(ctx context.Context, input *registerInput) (*registerOutput, error) {
	reg, err := h.service.Register(ctx, input.Body.Name, input.Body.DisplayName)
	switch {
	case errors.Is(err, account.ErrExists):
		return nil, huma.Error409Conflict("account already exists")
	case errors.Is(err, account.ErrInvalidInput):
		return &registerOutput{Body: account.RegisterResponse{Status: "Error", Error: err.Error()}}, nil
	case err != nil:
		h.log.Error("registration failed", slog.String("error", err.Error()))
		return nil, huma.Error500InternalServerError("registration failed")
	}

	h.log.Info("account registered", slog.Int64("account_id", reg.AccountID))
	return &registerOutput{
		Body: account.RegisterResponse{
			Status:    "Ok",
			AccountID: reg.AccountID,
			Token:     reg.Token,
		},
	}, nil
}
