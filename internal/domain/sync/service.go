package sync

import (
	"context"
	"fmt"

	"contactsync/internal/app/server/api/http/middleware/auth"
	"contactsync/internal/domain/contact"

	"golang.org/x/exp/slog"
)

// Servicer интерфейс сервиса синхронизации контактов
type Servicer interface {
	// Changes возвращает страницу изменений после якоря
	Changes(ctx context.Context, req ChangesRequest) (*ChangesResponse, error)

	PushContacts(ctx context.Context, req PushContactsRequest) (*PushContactsResponse, error)
	PushDetails(ctx context.Context, req PushDetailsRequest) (*PushDetailsResponse, error)
	DeleteContacts(ctx context.Context, req DeleteContactsRequest) (*AckResponse, error)
	DeleteDetails(ctx context.Context, req DeleteDetailsRequest) (*AckResponse, error)

	AddGroupMembers(ctx context.Context, req GroupMembersRequest) (*AckResponse, error)
	RemoveGroupMembers(ctx context.Context, req GroupMembersRequest) (*AckResponse, error)

	FetchThumbnails(ctx context.Context, req FetchThumbnailsRequest) (*FetchThumbnailsResponse, error)
	PushThumbnails(ctx context.Context, req PushThumbnailsRequest) (*AckResponse, error)

	Profile(ctx context.Context) (*ProfileResponse, error)
}

// ServiceConfig настройки сервиса синхронизации
type ServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	MaxBatchSize    int
}

// Service реализация сервиса синхронизации
type Service struct {
	repo   Repository
	log    *slog.Logger
	config *ServiceConfig
}

// NewService создает новый сервис синхронизации
func NewService(repo Repository, log *slog.Logger, config *ServiceConfig) *Service {
	if config == nil {
		config = &ServiceConfig{
			DefaultPageSize: 15,
			MaxPageSize:     500,
			MaxBatchSize:    1000,
		}
	}

	return &Service{
		repo:   repo,
		log:    log.With(slog.String("component", "sync_service")),
		config: config,
	}
}

// Changes возвращает страницу изменений.
// Первая страница фиксирует новый якорь; изменения, сделанные во время выгрузки страниц, будут получены повторно.
func (s *Service) Changes(ctx context.Context, req ChangesRequest) (*ChangesResponse, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	if req.PageSize <= 0 {
		req.PageSize = s.config.DefaultPageSize
	}
	if req.PageSize > s.config.MaxPageSize {
		req.PageSize = s.config.MaxPageSize
	}
	if req.Page < 0 || req.Anchor < 0 {
		return nil, fmt.Errorf("%w: negative page or anchor", ErrInvalidRequest)
	}

	current, err := s.repo.Revision(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get revision: %w", err)
	}

	until := req.Until
	if until == 0 {
		until = current
	}
	if until > current || req.Anchor > until {
		return nil, fmt.Errorf("%w: anchor %d, until %d, current %d", ErrInvalidRequest, req.Anchor, until, current)
	}

	contacts, total, err := s.repo.ChangedContacts(ctx, accountID, req.Anchor, req.Page*req.PageSize, req.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get changed contacts: %w", err)
	}

	pages := (total + req.PageSize - 1) / req.PageSize
	if pages == 0 {
		pages = 1
	}
	if req.Page >= pages {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, req.Page, pages)
	}

	s.log.Debug("changes page",
		slog.Int64("account", accountID),
		slog.Int64("anchor", req.Anchor),
		slog.Int64("until", until),
		slog.Int("page", req.Page),
		slog.Int("pages", pages),
		slog.Int("contacts", len(contacts)),
	)

	return &ChangesResponse{
		Status:          "Ok",
		CurrentRevision: current,
		RevisionBefore:  req.Anchor,
		RevisionAfter:   until,
		Anchor:          until,
		Page:            req.Page,
		NumberOfPages:   pages,
		Contacts:        contacts,
	}, nil
}

// PushContacts сохраняет новые контакты; сводные данные контакта игнорируются
func (s *Service) PushContacts(ctx context.Context, req PushContactsRequest) (*PushContactsResponse, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkBatch(len(req.Contacts)); err != nil {
		return nil, err
	}

	contacts := make([]Contact, len(req.Contacts))
	for i, c := range req.Contacts {
		if err := validateDetails(c.Details); err != nil {
			return nil, fmt.Errorf("contact %d: %w", i, err)
		}
		contacts[i] = Contact{ID: InvalidID, Details: c.Details}
	}

	acks, revision, err := s.repo.CreateContacts(ctx, accountID, contacts)
	if err != nil {
		return nil, fmt.Errorf("failed to create contacts: %w", err)
	}

	return &PushContactsResponse{
		Status:   "Ok",
		Revision: revision,
		Contacts: acks,
	}, nil
}

// PushDetails сохраняет добавленные и измененные поля
func (s *Service) PushDetails(ctx context.Context, req PushDetailsRequest) (*PushDetailsResponse, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkBatch(len(req.Details)); err != nil {
		return nil, err
	}
	for i, d := range req.Details {
		if d.Detail.Key == contact.KeyUnknown {
			return nil, fmt.Errorf("%w: detail %d has no key", ErrInvalidRequest, i)
		}
	}

	ids, revision, err := s.repo.SaveDetails(ctx, accountID, req.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to save details: %w", err)
	}

	return &PushDetailsResponse{
		Status:   "Ok",
		Revision: revision,
		IDs:      ids,
	}, nil
}

func (s *Service) DeleteContacts(ctx context.Context, req DeleteContactsRequest) (*AckResponse, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkBatch(len(req.IDs)); err != nil {
		return nil, err
	}

	n, revision, err := s.repo.DeleteContacts(ctx, accountID, req.IDs)
	if err != nil {
		return nil, fmt.Errorf("failed to delete contacts: %w", err)
	}
	return ack(n, revision), nil
}

func (s *Service) DeleteDetails(ctx context.Context, req DeleteDetailsRequest) (*AckResponse, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkBatch(len(req.Details)); err != nil {
		return nil, err
	}

	n, revision, err := s.repo.DeleteDetails(ctx, accountID, req.Details)
	if err != nil {
		return nil, fmt.Errorf("failed to delete details: %w", err)
	}
	return ack(n, revision), nil
}

func (s *Service) AddGroupMembers(ctx context.Context, req GroupMembersRequest) (*AckResponse, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkBatch(len(req.Members)); err != nil {
		return nil, err
	}

	n, revision, err := s.repo.AddGroupMembers(ctx, accountID, req.Members)
	if err != nil {
		return nil, fmt.Errorf("failed to add group members: %w", err)
	}
	return ack(n, revision), nil
}

func (s *Service) RemoveGroupMembers(ctx context.Context, req GroupMembersRequest) (*AckResponse, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkBatch(len(req.Members)); err != nil {
		return nil, err
	}

	n, revision, err := s.repo.RemoveGroupMembers(ctx, accountID, req.Members)
	if err != nil {
		return nil, fmt.Errorf("failed to remove group members: %w", err)
	}
	return ack(n, revision), nil
}

func (s *Service) FetchThumbnails(ctx context.Context, req FetchThumbnailsRequest) (*FetchThumbnailsResponse, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkBatch(len(req.ContactIDs)); err != nil {
		return nil, err
	}

	thumbnails, err := s.repo.Thumbnails(ctx, accountID, req.ContactIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get thumbnails: %w", err)
	}
	return &FetchThumbnailsResponse{
		Status:     "Ok",
		Thumbnails: thumbnails,
	}, nil
}

func (s *Service) PushThumbnails(ctx context.Context, req PushThumbnailsRequest) (*AckResponse, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkBatch(len(req.Thumbnails)); err != nil {
		return nil, err
	}

	n, revision, err := s.repo.SaveThumbnails(ctx, accountID, req.Thumbnails)
	if err != nil {
		return nil, fmt.Errorf("failed to save thumbnails: %w", err)
	}
	return ack(n, revision), nil
}

func (s *Service) Profile(ctx context.Context) (*ProfileResponse, error) {
	accountID, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.repo.Profile(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &ProfileResponse{
		Status:  "Ok",
		Profile: profile,
	}, nil
}

// Вспомогательные методы
func (s *Service) account(ctx context.Context) (int64, error) {
	accountID, ok := auth.GetAccountID(ctx)
	if !ok {
		return 0, ErrNotAuthenticated
	}
	return accountID, nil
}

func (s *Service) checkBatch(n int) error {
	if n > s.config.MaxBatchSize {
		return fmt.Errorf("%w: batch of %d exceeds %d", ErrInvalidRequest, n, s.config.MaxBatchSize)
	}
	return nil
}

func ack(n int, revision int64) *AckResponse {
	return &AckResponse{
		Status:   "Ok",
		Revision: revision,
		Count:    n,
	}
}

// validateDetails проверяет ключи и ограничение на единственные поля
func validateDetails(details []Detail) error {
	list := make([]contact.Change, 0, len(details))
	for _, d := range details {
		if d.Key == contact.KeyUnknown {
			return fmt.Errorf("%w: detail without key", ErrInvalidRequest)
		}
		list = append(list, contact.New(d.Key, d.Value, d.Flags).As(contact.TypeAddDetail))
	}
	if err := contact.CheckSingular(list); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
