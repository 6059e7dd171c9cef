package addressbook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"contactsync/internal/domain/contact"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/slog"
)

// fileState содержимое файла адресной книги
type fileState struct {
	Accounts []Account `json:"accounts,omitempty"`
	NextID   int64     `json:"next_id"`
	Contacts []*Entry  `json:"contacts"`
}

// File адресная книга, сохраняемая в JSON-файл.
// Правки файла другими программами отслеживаются через Watch.
type File struct {
	*Memory

	path string
	log  *slog.Logger

	mu        sync.Mutex
	lastSaved []byte
}

// OpenFile открывает адресную книгу; отсутствующий файл создается при первой записи
func OpenFile(path string, profile *contact.Profile, supportsAccounts bool, log *slog.Logger) (*File, error) {
	f := &File{
		Memory: NewMemory(profile, supportsAccounts),
		path:   filepath.Clean(path),
		log:    log.With(slog.String("component", "address_book")),
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read address book: %w", err)
	}
	if err := f.load(data); err != nil {
		return nil, err
	}
	f.lastSaved = data
	return f, nil
}

func (f *File) AddContact(ctx context.Context, account *Account, records []contact.Change) ([]contact.ID, error) {
	ids, err := f.Memory.AddContact(ctx, account, records)
	if err != nil {
		return nil, err
	}
	return ids, f.save()
}

func (f *File) UpdateContact(ctx context.Context, records []contact.Change) ([]contact.ID, error) {
	ids, err := f.Memory.UpdateContact(ctx, records)
	if err != nil {
		return nil, err
	}
	return ids, f.save()
}

func (f *File) RemoveContact(ctx context.Context, id int64) error {
	if err := f.Memory.RemoveContact(ctx, id); err != nil {
		return err
	}
	return f.save()
}

// AddAccount регистрирует учетную запись и сохраняет файл
func (f *File) AddAccount(a Account) error {
	f.Memory.AddAccount(a)
	return f.save()
}

// Watch следит за файлом и уведомляет наблюдателя о внешних правках до отмены ctx
func (f *File) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// каталог, а не файл: редакторы заменяют файл целиком
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != f.path || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			changed, err := f.reload()
			if err != nil {
				f.log.Warn("Failed to reload address book", "error", err)
				continue
			}
			if changed {
				f.log.Debug("address book changed externally", slog.String("path", f.path))
				f.notify()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Warn("Address book watcher error", "error", err)
		}
	}
}

func (f *File) reload() (bool, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read address book: %w", err)
	}

	f.mu.Lock()
	same := bytes.Equal(data, f.lastSaved)
	f.mu.Unlock()
	if same {
		return false, nil
	}

	if err := f.load(data); err != nil {
		return false, err
	}
	f.mu.Lock()
	f.lastSaved = data
	f.mu.Unlock()
	return true, nil
}

func (f *File) load(data []byte) error {
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse address book: %w", err)
	}

	m := f.Memory
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts = state.Accounts
	m.entries = make(map[int64]*Entry, len(state.Contacts))
	m.nextID = state.NextID
	for _, e := range state.Contacts {
		m.entries[e.ID] = e
		if e.ID >= m.nextID {
			m.nextID = e.ID + 1
		}
		for _, d := range e.Details {
			if d.Store.Detail >= m.nextID {
				m.nextID = d.Store.Detail + 1
			}
		}
	}
	return nil
}

func (f *File) save() error {
	m := f.Memory
	m.mu.Lock()
	state := fileState{
		Accounts: m.accounts,
		NextID:   m.nextID,
		Contacts: make([]*Entry, 0, len(m.entries)),
	}
	for _, e := range m.entries {
		state.Contacts = append(state.Contacts, cloneEntry(e))
	}
	m.mu.Unlock()
	sort.Slice(state.Contacts, func(i, j int) bool { return state.Contacts[i].ID < state.Contacts[j].ID })

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode address book: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create address book directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write address book: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace address book: %w", err)
	}
	f.lastSaved = data
	return nil
}
