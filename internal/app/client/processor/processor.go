// Package processor содержит шаги синхронизации, которыми управляет движок.
//
// Процессор не блокирует вызывающий поток: он отправляет запрос через Host и возвращается,
// а ответ или срабатывание таймера приходят следующим вызовом OnResponse или OnTimeout.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	syncdto "contactsync/internal/domain/sync"
)

var (
	ErrTimeout        = errors.New("request timed out")
	ErrUnknownRequest = errors.New("response for unknown request")
	ErrPageMismatch   = errors.New("server returned unexpected page")
	ErrServer         = errors.New("server reported error")
	ErrBadResponse    = errors.New("malformed server response")
)

// Status итог работы процессора
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusUserCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusError:
		return "ERROR"
	case StatusUserCancelled:
		return "USER_CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// RequestID идентификатор отправленного запроса
type RequestID int64

// Call асинхронный вызов сервера
type Call func(ctx context.Context) (any, error)

// Response ответ на запрос, доставленный движком
type Response struct {
	ID      RequestID
	Payload any
	Err     error
}

// NoTimeout отменяет взведенный таймер
const NoTimeout time.Duration = -1

// Host среда, в которой выполняется процессор
type Host interface {
	// Send ставит вызов в очередь; ответ придет в OnResponse с тем же идентификатором
	Send(call Call) RequestID
	// SetTimeout взводит одноразовый таймер, заменяя предыдущий; NoTimeout его отменяет
	SetTimeout(d time.Duration)
	// Complete сообщает о завершении; после него процессор не получает событий
	Complete(status Status, err error)
}

// Processor шаг синхронизации
type Processor interface {
	Start(ctx context.Context)
	OnResponse(ctx context.Context, resp Response)
	OnTimeout(ctx context.Context)
	Cancel(ctx context.Context)
}

// Server сервер синхронизации контактов
type Server interface {
	FetchChanges(ctx context.Context, req syncdto.ChangesRequest) (*syncdto.ChangesResponse, error)
	PushContacts(ctx context.Context, req syncdto.PushContactsRequest) (*syncdto.PushContactsResponse, error)
	PushDetails(ctx context.Context, req syncdto.PushDetailsRequest) (*syncdto.PushDetailsResponse, error)
	DeleteContacts(ctx context.Context, req syncdto.DeleteContactsRequest) (*syncdto.AckResponse, error)
	DeleteDetails(ctx context.Context, req syncdto.DeleteDetailsRequest) (*syncdto.AckResponse, error)
	AddGroupMembers(ctx context.Context, req syncdto.GroupMembersRequest) (*syncdto.AckResponse, error)
	RemoveGroupMembers(ctx context.Context, req syncdto.GroupMembersRequest) (*syncdto.AckResponse, error)
	FetchThumbnails(ctx context.Context, req syncdto.FetchThumbnailsRequest) (*syncdto.FetchThumbnailsResponse, error)
	PushThumbnails(ctx context.Context, req syncdto.PushThumbnailsRequest) (*syncdto.AckResponse, error)
	FetchProfile(ctx context.Context) (*syncdto.ProfileResponse, error)
}

// Config общие параметры процессоров
type Config struct {
	PageSize       int
	RequestTimeout time.Duration
}

const (
	DefaultPageSize       = 15
	DefaultRequestTimeout = 60 * time.Second
)

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

// Stats счетчики одного прогона
type Stats struct {
	Pages       int `json:"pages"`
	Downloaded  int `json:"downloaded"`
	Uploaded    int `json:"uploaded"`
	Thumbnails  int `json:"thumbnails"`
	DeviceAdds  int `json:"device_adds"`
	DeviceEdits int `json:"device_edits"`
	DeviceDrops int `json:"device_drops"`
}

// Add суммирует счетчики
func (s *Stats) Add(o Stats) {
	s.Pages += o.Pages
	s.Downloaded += o.Downloaded
	s.Uploaded += o.Uploaded
	s.Thumbnails += o.Thumbnails
	s.DeviceAdds += o.DeviceAdds
	s.DeviceEdits += o.DeviceEdits
	s.DeviceDrops += o.DeviceDrops
}

// Reporter процессор, который ведет счетчики
type Reporter interface {
	Stats() Stats
}

// serverError проверяет статус ответа сервера
func serverError(status, message string) error {
	if status == "Ok" {
		return nil
	}
	if message == "" {
		message = status
	}
	return fmt.Errorf("%w: %s", ErrServer, message)
}
