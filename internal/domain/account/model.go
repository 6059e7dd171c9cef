package account

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID          int64
	Name        string
	DisplayName string
	CreatedAt   time.Time
}

// Token токен устройства; секрет хранится только в виде хэша
type Token struct {
	ID        uuid.UUID
	AccountID int64
	Hash      string // bcrypt
	CreatedAt time.Time
}

// Registration результат регистрации: токен показывается один раз
type Registration struct {
	AccountID int64
	Token     string
}
