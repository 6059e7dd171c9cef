// Package native сверяет локальное хранилище с адресной книгой устройства ограниченными шагами.
package native

import (
	"contactsync/internal/app/client/addressbook"
)

// DefaultBatchSize число контактов адресной книги, обрабатываемых за один шаг
const DefaultBatchSize = 50

// Result итог прохода
type Result int

const (
	ResultUndefined Result = iota
	ResultOK
)

func (r Result) String() string {
	if r == ResultOK {
		return "OK"
	}
	return "UNDEFINED"
}

// Config параметры сверки с адресной книгой
type Config struct {
	BatchSize int
	// Account собственная учетная запись приложения в адресной книге
	Account addressbook.Account
	// ExternalAccountTypes типы учетных записей, из которых берутся контакты при первой синхронизации
	ExternalAccountTypes []string
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return c
}

// targetAccount учетная запись для записи; nil для хранилищ без учетных записей
func targetAccount(book addressbook.Book, cfg Config) *addressbook.Account {
	if !book.SupportsAccounts() {
		return nil
	}
	a := cfg.Account
	return &a
}
