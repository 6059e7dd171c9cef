package requestid

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
)

const Header = "X-Request-ID"

type contextKey struct{}

// Middleware назначает запросу идентификатор и возвращает его в ответе.
// Идентификатор клиента используется, если он передан в заголовке.
func Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		id := ctx.Header(Header)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		ctx.SetHeader(Header, id)
		next(huma.WithContext(ctx, context.WithValue(ctx.Context(), contextKey{}, id)))
	}
}

func Get(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
