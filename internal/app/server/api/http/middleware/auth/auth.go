package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"contactsync/internal/domain/account"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Auth struct {
	accounts account.Servicer
	log      *slog.Logger
}

func New(accounts account.Servicer, log *slog.Logger) *Auth {
	return &Auth{
		accounts: accounts,
		log:      log.With(slog.String("component", "auth_middleware")),
	}
}

type contextKey string

const AccountIDKey contextKey = "accountID"

// Middleware возвращает middleware для Huma с сигнатурой func(ctx Context, next func(Context))
func (a *Auth) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token, ok := strings.CutPrefix(ctx.Header("Authorization"), "Bearer ")
		if !ok || token == "" {
			a.log.Debug("missing bearer token", slog.String("path", ctx.URL().Path))
			a.unauthorized(ctx)
			return
		}

		accountID, err := a.accounts.Authenticate(ctx.Context(), token)
		if err != nil {
			a.log.Warn("token rejected", slog.String("error", err.Error()))
			a.unauthorized(ctx)
			return
		}

		newCtx := context.WithValue(ctx.Context(), AccountIDKey, accountID)
		next(huma.WithContext(ctx, newCtx))
	}
}

func (a *Auth) unauthorized(ctx huma.Context) {
	ctx.SetStatus(http.StatusUnauthorized)
	ctx.SetHeader("Content-Type", "application/json")

	err := json.NewEncoder(ctx.BodyWriter()).Encode(map[string]string{
		"status": "Error",
		"error":  "Unauthorized",
	})
	if err != nil {
		a.log.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func GetAccountID(ctx context.Context) (int64, bool) {
	accountID, ok := ctx.Value(AccountIDKey).(int64)
	return accountID, ok
}
