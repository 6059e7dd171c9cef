// Package store локальное хранилище контактов приложения
package store

import (
	"context"
	"errors"
	"time"

	"contactsync/internal/domain/contact"
)

var (
	ErrNotFound = errors.New("not found")
	ErrNoTarget = errors.New("change does not reference a known contact or detail")
)

// Source происхождение изменений, определяет побочные записи журнала
type Source int

const (
	// SourceSystem служебные изменения (обратная запись идентификаторов), журнал не ведется
	SourceSystem Source = iota
	// SourceDevice изменения из адресной книги устройства, попадают в журнал выгрузки на сервер
	SourceDevice
	// SourceServer изменения с сервера, контакт помечается для записи в адресную книгу устройства
	SourceServer
)

func (s Source) String() string {
	switch s {
	case SourceDevice:
		return "device"
	case SourceServer:
		return "server"
	default:
		return "system"
	}
}

// Kind вид записи журнала выгрузки
type Kind string

const (
	KindNewContact     Kind = "new_contact"
	KindModifiedDetail Kind = "modified_detail"
	KindDeletedContact Kind = "deleted_contact"
	KindDeletedDetail  Kind = "deleted_detail"
	KindGroupAdd       Kind = "group_add"
	KindGroupDelete    Kind = "group_delete"
)

// LogEntry запись журнала выгрузки
type LogEntry struct {
	ID              int64
	Kind            Kind
	LocalContactID  int64
	LocalDetailID   int64
	ServerContactID int64
	ServerDetailID  int64
	GroupID         int64
}

// Thumbnail миниатюра контакта
type Thumbnail struct {
	LocalID  int64
	ServerID int64
	Data     []byte
}

// Profile профиль владельца учетной записи
type Profile struct {
	DisplayName string
	Bio         string
	UpdatedAt   time.Time
}

// Store транзакционный API локального хранилища
type Store interface {
	// Update выполняет fn в одной транзакции
	Update(ctx context.Context, fn func(tx *Tx) error) error
	ApplyChanges(ctx context.Context, source Source, changes []contact.Change) ([]contact.Change, error)

	Contact(ctx context.Context, localID int64) (*contact.Contact, error)
	ContactByServerID(ctx context.Context, serverID int64) (*contact.Contact, error)
	ContactByStoreID(ctx context.Context, storeID int64) (*contact.Contact, error)
	ListContacts(ctx context.Context) ([]contact.Contact, error)
	CountContacts(ctx context.Context) (int, error)
	Detail(ctx context.Context, localDetailID int64) (contact.Change, error)
	// StoreContactIDs возвращает соответствие идентификаторов адресной книги локальным
	StoreContactIDs(ctx context.Context) (map[int64]int64, error)

	SyncableContactIDs(ctx context.Context, limit int) ([]int64, error)
	PendingExportStoreIDs(ctx context.Context) (map[int64]bool, error)
	ClearSyncable(ctx context.Context, localID int64) error
	PurgeContact(ctx context.Context, localID int64) error

	ChangeLog(ctx context.Context, kind Kind) ([]LogEntry, error)
	PendingChanges(ctx context.Context) (int, error)
	ClearChangeLog(ctx context.Context, ids []int64) error

	Anchor(ctx context.Context) (int64, error)
	SetAnchor(ctx context.Context, anchor int64) error

	ThumbnailsToFetch(ctx context.Context) ([]Thumbnail, error)
	ThumbnailsToPush(ctx context.Context) ([]Thumbnail, error)
	SaveThumbnail(ctx context.Context, localID int64, data []byte) error
	SetPhoto(ctx context.Context, localID int64, data []byte) error
	MarkThumbnailPushed(ctx context.Context, localID int64) error
	ClearThumbnailRequest(ctx context.Context, localID int64) error
	Thumbnail(ctx context.Context, localID int64) ([]byte, error)

	AddToGroup(ctx context.Context, localID, groupID int64) error
	RemoveFromGroup(ctx context.Context, localID, groupID int64) error

	SaveProfile(ctx context.Context, p Profile) error
	Profile(ctx context.Context) (*Profile, error)

	Close() error
}
