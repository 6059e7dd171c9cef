package sync

// DTO (Data Transfer Objects) для API синхронизации контактов

// ChangesRequest запрос страницы изменений после якоря.
// Until равен нулю для первой страницы; последующие страницы передают значение из первого ответа.
type ChangesRequest struct {
	Anchor   int64 `json:"anchor" minimum:"0"`
	Until    int64 `json:"until,omitempty" minimum:"0"`
	Page     int   `json:"page" minimum:"0"`
	PageSize int   `json:"page_size" minimum:"1" maximum:"500" default:"15"`
}

// ChangesResponse страница изменений
type ChangesResponse struct {
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	CurrentRevision int64     `json:"current_revision"`
	RevisionBefore  int64     `json:"revision_before"`
	RevisionAfter   int64     `json:"revision_after"`
	Anchor          int64     `json:"anchor"`
	Page            int       `json:"page"`
	NumberOfPages   int       `json:"number_of_pages"`
	Contacts        []Contact `json:"contacts,omitempty"`
}

// PushContactsRequest новые контакты; передаются только поля
type PushContactsRequest struct {
	Contacts []Contact `json:"contacts"`
}

// PushContactsResponse идентификаторы в порядке отправки
type PushContactsResponse struct {
	Status   string       `json:"status"`
	Error    string       `json:"error,omitempty"`
	Revision int64        `json:"revision,omitempty"`
	Contacts []ContactAck `json:"contacts,omitempty"`
}

// PushDetailsRequest добавленные и измененные поля
type PushDetailsRequest struct {
	Details []DetailChange `json:"details"`
}

// PushDetailsResponse идентификаторы полей в порядке отправки
type PushDetailsResponse struct {
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
	Revision int64   `json:"revision,omitempty"`
	IDs      []int64 `json:"ids,omitempty"`
}

// DeleteContactsRequest удаление контактов
type DeleteContactsRequest struct {
	IDs []int64 `json:"ids"`
}

// DeleteDetailsRequest удаление полей
type DeleteDetailsRequest struct {
	Details []DetailRef `json:"details"`
}

// GroupMembersRequest добавление или удаление связей с группами
type GroupMembersRequest struct {
	Members []GroupMember `json:"members"`
}

// AckResponse подтверждение пакетной операции
type AckResponse struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Revision int64  `json:"revision,omitempty"`
	Count    int    `json:"count"`
}

// FetchThumbnailsRequest запрос миниатюр
type FetchThumbnailsRequest struct {
	ContactIDs []int64 `json:"contact_ids"`
}

// FetchThumbnailsResponse найденные миниатюры
type FetchThumbnailsResponse struct {
	Status     string      `json:"status"`
	Error      string      `json:"error,omitempty"`
	Thumbnails []Thumbnail `json:"thumbnails,omitempty"`
}

// PushThumbnailsRequest выгрузка миниатюр
type PushThumbnailsRequest struct {
	Thumbnails []Thumbnail `json:"thumbnails"`
}

// ProfileResponse профиль учетной записи
type ProfileResponse struct {
	Status  string   `json:"status"`
	Error   string   `json:"error,omitempty"`
	Profile *Profile `json:"profile,omitempty"`
}
