// Package addressbook описывает адресную книгу устройства, с которой синхронизируется локальное хранилище.
package addressbook

import (
	"context"
	"errors"

	"contactsync/internal/domain/contact"
)

var (
	ErrNotFound           = errors.New("address book contact not found")
	ErrObserverRegistered = errors.New("address book observer already registered")
	ErrNoObserver         = errors.New("address book observer is not registered")
)

// Account учетная запись, в которой хранятся контакты
type Account struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Entry контакт адресной книги устройства
type Entry struct {
	ID       int64            `json:"id"`
	Account  *Account         `json:"account,omitempty"`
	SourceID int64            `json:"source_id"`
	Details  []contact.Change `json:"details"`
}

// Book адресная книга устройства.
// Изменения, сделанные через Book, наблюдателю не сообщаются; сообщаются только внешние правки.
type Book interface {
	// Profile возвращает описание возможностей хранилища
	Profile() *contact.Profile
	IsKeySupported(key contact.Key) bool
	SupportsAccounts() bool

	Accounts(ctx context.Context) ([]Account, error)
	AccountsByType(ctx context.Context, accountType string) ([]Account, error)

	// ContactIDs возвращает идентификаторы контактов учетной записи; nil означает контакты без учетной записи
	ContactIDs(ctx context.Context, account *Account) ([]int64, error)
	Contact(ctx context.Context, id int64) (*Entry, error)

	// AddContact добавляет контакт и возвращает назначенные идентификаторы для каждой записи
	AddContact(ctx context.Context, account *Account, records []contact.Change) ([]contact.ID, error)
	// UpdateContact применяет изменения полей; для записей без назначенного идентификатора возвращается contact.NoID()
	UpdateContact(ctx context.Context, records []contact.Change) ([]contact.ID, error)
	RemoveContact(ctx context.Context, id int64) error

	// RegisterObserver регистрирует единственного наблюдателя внешних изменений
	RegisterObserver(fn func()) error
	UnregisterObserver() error
}
