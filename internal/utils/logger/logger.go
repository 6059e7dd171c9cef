package logger

import (
	"io"
	"os"

	"golang.org/x/exp/slog"
)

// Окружения, от которых зависит формат и уровень логов
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New создает логгер для окружения: local - текст с уровнем debug, dev - JSON debug, prod - JSON info
func New(env string) *slog.Logger {
	return NewWriter(env, os.Stderr)
}

func NewWriter(env string, w io.Writer) *slog.Logger {
	switch env {
	case EnvLocal:
		return setupPrettySlogWriter(w)
	case EnvDev:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// Discard логгер без вывода
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard возвращает log или логгер без вывода, если log равен nil
func OrDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return Discard()
	}
	return log
}

func setupPrettySlog() *slog.Logger {
	return setupPrettySlogWriter(os.Stderr)
}

func setupPrettySlogWriter(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: false,
	}))
}
