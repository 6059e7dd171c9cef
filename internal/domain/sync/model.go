package sync

import (
	"time"

	"contactsync/internal/domain/contact"
)

// InvalidID идентификатор, еще не назначенный сервером
const InvalidID int64 = -1

// Detail поле контакта в представлении сервера
type Detail struct {
	ID      int64         `json:"id"`
	Key     contact.Key   `json:"key"`
	Value   string        `json:"value,omitempty"`
	Flags   contact.Flags `json:"flags,omitempty"`
	Deleted bool          `json:"deleted,omitempty"`
}

// Contact контакт в представлении сервера.
// Удаленный контакт передается без полей и сводных данных.
type Contact struct {
	ID           int64    `json:"id"`
	Deleted      bool     `json:"deleted,omitempty"`
	Details      []Detail `json:"details,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	PhotoPath    string   `json:"photo_path,omitempty"`
	Gender       string   `json:"gender,omitempty"`
	Groups       []int64  `json:"groups,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	UserID       int64    `json:"user_id,omitempty"`
	HasThumbnail bool     `json:"has_thumbnail,omitempty"`
	Revision     int64    `json:"revision,omitempty"`
}

// Summary возвращает сводные данные контакта
func (c Contact) Summary() contact.Summary {
	return contact.Summary{
		Bio:       c.Bio,
		PhotoPath: c.PhotoPath,
		Gender:    c.Gender,
		Groups:    c.Groups,
		Sources:   c.Sources,
		UserID:    c.UserID,
	}
}

// DetailChange добавленное или измененное поле существующего контакта.
// Detail.ID равен InvalidID для нового поля.
type DetailChange struct {
	ContactID int64  `json:"contact_id"`
	Detail    Detail `json:"detail"`
}

// DetailRef ссылка на поле контакта на сервере
type DetailRef struct {
	ContactID int64 `json:"contact_id"`
	DetailID  int64 `json:"detail_id"`
}

// GroupMember связь контакта с группой
type GroupMember struct {
	ContactID int64 `json:"contact_id"`
	GroupID   int64 `json:"group_id"`
}

// Thumbnail миниатюра контакта
type Thumbnail struct {
	ContactID int64  `json:"contact_id"`
	Data      []byte `json:"data,omitempty"`
}

// ContactAck идентификаторы, назначенные сервером новому контакту; DetailIDs в порядке отправки полей
type ContactAck struct {
	ID        int64   `json:"id"`
	DetailIDs []int64 `json:"detail_ids"`
}

// Profile профиль учетной записи
type Profile struct {
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
