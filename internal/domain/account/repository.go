package account

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, name, displayName string) (int64, error)
	SaveToken(ctx context.Context, token Token) error
	TokenByID(ctx context.Context, id uuid.UUID) (Token, error)
}
