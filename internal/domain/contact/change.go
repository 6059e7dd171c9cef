package contact

import (
	"fmt"
	"strings"
)

// InvalidID значение еще не известного идентификатора
const InvalidID int64 = -1

// ID пара идентификаторов контакта и поля в одном хранилище
type ID struct {
	Contact int64 `json:"contact"`
	Detail  int64 `json:"detail"`
}

// NoID возвращает пару неизвестных идентификаторов
func NoID() ID {
	return ID{Contact: InvalidID, Detail: InvalidID}
}

func (id ID) HasContact() bool {
	return id.Contact != InvalidID
}

func (id ID) HasDetail() bool {
	return id.Detail != InvalidID
}

// Type операция, которую описывает запись
type Type int

const (
	TypeUnknown Type = iota
	TypeAddContact
	TypeAddDetail
	TypeUpdateDetail
	TypeDeleteDetail
	TypeDeleteContact
	TypeUpdateLocalContactID
	TypeUpdateRemoteContactID
	TypeUpdateStoreDetailID
	TypeUpdateStoreContactID
)

var typeNames = map[Type]string{
	TypeUnknown:               "unknown",
	TypeAddContact:            "add-contact",
	TypeAddDetail:             "add-detail",
	TypeUpdateDetail:          "update-detail",
	TypeDeleteDetail:          "delete-detail",
	TypeDeleteContact:         "delete-contact",
	TypeUpdateLocalContactID:  "update-local-contact-id",
	TypeUpdateRemoteContactID: "update-remote-contact-id",
	TypeUpdateStoreDetailID:   "update-store-detail-id",
	TypeUpdateStoreContactID:  "update-store-contact-id",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	for k, name := range typeNames {
		if name == s {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// IsDeletion сообщает, удаляет ли операция поле или контакт
func (t Type) IsDeletion() bool {
	return t == TypeDeleteDetail || t == TypeDeleteContact
}

// Change атомарное изменение одного поля контакта с идентификаторами во всех трех хранилищах
type Change struct {
	Key    Key    `json:"key"`
	Value  string `json:"value,omitempty"`
	Flags  Flags  `json:"flags,omitempty"`
	Type   Type   `json:"type"`
	Local  ID     `json:"local"`
	Server ID     `json:"server"`
	Store  ID     `json:"store"`
}

// New создает запись поля без операции и без идентификаторов
func New(key Key, value string, flags Flags) Change {
	return Change{
		Key:    key,
		Value:  value,
		Flags:  flags,
		Type:   TypeUnknown,
		Local:  NoID(),
		Server: NoID(),
		Store:  NoID(),
	}
}

// NewDeletion создает запись удаления, несущую только идентификаторы
func NewDeletion(t Type, key Key, local, server, store ID) Change {
	return Change{
		Key:    key,
		Type:   t,
		Local:  local,
		Server: server,
		Store:  store,
	}
}

// As возвращает копию записи с указанной операцией
func (c Change) As(t Type) Change {
	c.Type = t
	return c
}

// IsLive сообщает, описывает ли запись существующее поле
func (c Change) IsLive() bool {
	return !c.Type.IsDeletion()
}

func (c Change) String() string {
	return fmt.Sprintf("%s %s=%q flags=%d local=%v server=%v store=%v",
		c.Type, c.Key, c.Value, c.Flags, c.Local, c.Server, c.Store)
}

// WithLocalContact проставляет локальный идентификатор контакта во все записи списка
func WithLocalContact(list []Change, localID int64) []Change {
	out := make([]Change, len(list))
	for i, c := range list {
		c.Local.Contact = localID
		out[i] = c
	}
	return out
}
