package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// persistedState состояние движка, переживающее перезапуск процесса
type persistedState struct {
	FirstTimeComplete bool `json:"first_time_complete"`
	// ExternalChangeAt время последнего внешнего изменения адресной книги в миллисекундах
	ExternalChangeAt int64 `json:"external_change_at,omitempty"`
}

func loadState(path string) (persistedState, error) {
	var state persistedState
	if path == "" {
		return state, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("failed to read engine state: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return persistedState{}, fmt.Errorf("failed to parse engine state: %w", err)
	}
	return state, nil
}

func saveState(path string, state persistedState) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
