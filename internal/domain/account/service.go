package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	Register(ctx context.Context, name, displayName string) (Registration, error)
	Authenticate(ctx context.Context, token string) (int64, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
	cost int
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(slog.String("component", "account_service")),
		cost: bcrypt.DefaultCost,
	}
}

// Register создает учетную запись и выпускает для нее токен устройства
func (s *Service) Register(ctx context.Context, name, displayName string) (Registration, error) {
	if err := ValidateName(name); err != nil {
		s.log.Debug("validation failed", "name", name, "error", err)
		return Registration{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := ValidateDisplayName(displayName); err != nil {
		return Registration{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if displayName == "" {
		displayName = name
	}

	accountID, err := s.repo.Create(ctx, name, displayName)
	if err != nil {
		return Registration{}, fmt.Errorf("failed to create account: %w", err)
	}

	token, err := s.issue(ctx, accountID)
	if err != nil {
		return Registration{}, err
	}
	return Registration{AccountID: accountID, Token: token}, nil
}

// Authenticate проверяет токен вида "<id>.<secret>" и возвращает идентификатор учетной записи
func (s *Service) Authenticate(ctx context.Context, token string) (int64, error) {
	idPart, secret, ok := strings.Cut(token, ".")
	if !ok || secret == "" {
		return 0, ErrInvalidToken
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return 0, ErrInvalidToken
	}

	stored, err := s.repo.TokenByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return 0, ErrInvalidToken
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get token: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(stored.Hash), []byte(secret)); err != nil {
		return 0, ErrInvalidToken
	}
	return stored.AccountID, nil
}

func (s *Service) issue(ctx context.Context, accountID int64) (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}

	id := uuid.New()
	if err := s.repo.SaveToken(ctx, Token{ID: id, AccountID: accountID, Hash: string(hash)}); err != nil {
		return "", fmt.Errorf("save token: %w", err)
	}
	return id.String() + "." + secret, nil
}
