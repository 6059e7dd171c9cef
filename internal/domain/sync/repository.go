package sync

import (
	"context"
)

// Repository хранилище контактов учетной записи.
// Каждая изменяющая операция увеличивает ревизию учетной записи и возвращает новое значение.
type Repository interface {
	Revision(ctx context.Context, accountID int64) (int64, error)
	// ChangedContacts возвращает контакты с ревизией больше anchor в порядке идентификаторов и их общее количество.
	// Контакт не покидает выборку при последующих изменениях, поэтому смещения страниц стабильны.
	ChangedContacts(ctx context.Context, accountID, anchor int64, offset, limit int) ([]Contact, int, error)

	CreateContacts(ctx context.Context, accountID int64, contacts []Contact) ([]ContactAck, int64, error)
	SaveDetails(ctx context.Context, accountID int64, changes []DetailChange) ([]int64, int64, error)
	DeleteContacts(ctx context.Context, accountID int64, ids []int64) (int, int64, error)
	DeleteDetails(ctx context.Context, accountID int64, refs []DetailRef) (int, int64, error)

	AddGroupMembers(ctx context.Context, accountID int64, members []GroupMember) (int, int64, error)
	RemoveGroupMembers(ctx context.Context, accountID int64, members []GroupMember) (int, int64, error)

	Thumbnails(ctx context.Context, accountID int64, contactIDs []int64) ([]Thumbnail, error)
	SaveThumbnails(ctx context.Context, accountID int64, thumbnails []Thumbnail) (int, int64, error)

	Profile(ctx context.Context, accountID int64) (*Profile, error)
}
