package processor

import (
	"context"
	"errors"
	"fmt"

	"contactsync/internal/app/client/store"
	"contactsync/internal/domain/contact"
	syncdto "contactsync/internal/domain/sync"

	"golang.org/x/exp/slog"
)

// UploadState этап выгрузки локальных изменений
type UploadState int

const (
	UploadIdle UploadState = iota
	UploadNewContacts
	UploadModifiedDetails
	UploadDeletedContacts
	UploadDeletedDetails
	UploadGroupAdditions
	UploadGroupDeletions
)

func (s UploadState) String() string {
	switch s {
	case UploadIdle:
		return "IDLE"
	case UploadNewContacts:
		return "PROCESSING_NEW_CONTACTS"
	case UploadModifiedDetails:
		return "PROCESSING_MODIFIED_DETAILS"
	case UploadDeletedContacts:
		return "PROCESSING_DELETED_CONTACTS"
	case UploadDeletedDetails:
		return "PROCESSING_DELETED_DETAILS"
	case UploadGroupAdditions:
		return "PROCESSING_GROUP_ADDITIONS"
	case UploadGroupDeletions:
		return "PROCESSING_GROUP_DELETIONS"
	default:
		return "UNKNOWN"
	}
}

var uploadKinds = map[UploadState]store.Kind{
	UploadNewContacts:     store.KindNewContact,
	UploadModifiedDetails: store.KindModifiedDetail,
	UploadDeletedContacts: store.KindDeletedContact,
	UploadDeletedDetails:  store.KindDeletedDetail,
	UploadGroupAdditions:  store.KindGroupAdd,
	UploadGroupDeletions:  store.KindGroupDelete,
}

// uploadPage отправленная страница; порядок sent совпадает с порядком в запросе
type uploadPage struct {
	id      RequestID
	entries []store.LogEntry
	sent    []*contact.Contact
	details []contact.Change
}

// Upload выгружает журнал локальных изменений на сервер по этапам и страницам
type Upload struct {
	host   Host
	server Server
	store  store.Store
	cfg    Config
	log    *slog.Logger

	state    UploadState
	entries  []store.LogEntry
	offset   int
	inflight *uploadPage
	stats    Stats
}

func NewUpload(host Host, server Server, st store.Store, cfg Config, log *slog.Logger) *Upload {
	return &Upload{
		host:   host,
		server: server,
		store:  st,
		cfg:    cfg.withDefaults(),
		log:    log.With(slog.String("component", "upload")),
	}
}

func (u *Upload) State() UploadState {
	return u.state
}

func (u *Upload) Stats() Stats {
	return u.stats
}

func (u *Upload) Start(ctx context.Context) {
	u.advance(ctx)
}

// advance переходит к следующему этапу с непустым журналом или завершает выгрузку
func (u *Upload) advance(ctx context.Context) {
	for u.state < UploadGroupDeletions {
		u.state++
		entries, err := u.store.ChangeLog(ctx, uploadKinds[u.state])
		if err != nil {
			u.fail(fmt.Errorf("failed to read change log: %w", err))
			return
		}
		u.entries = withServerContact(u.state, entries)
		u.offset = 0
		if len(u.entries) > 0 {
			u.log.Debug("stage started", slog.String("state", u.state.String()), slog.Int("entries", len(u.entries)))
			u.sendPage(ctx)
			return
		}
	}

	u.state = UploadIdle
	u.host.SetTimeout(NoTimeout)
	if u.stats.Uploaded > 0 {
		u.log.Info("changes uploaded", slog.Int("entries", u.stats.Uploaded), slog.Int("pages", u.stats.Pages))
	}
	u.host.Complete(StatusSuccess, nil)
}

// withServerContact оставляет записи, для которых известен контакт на сервере
func withServerContact(state UploadState, entries []store.LogEntry) []store.LogEntry {
	if state == UploadNewContacts {
		return entries
	}
	out := entries[:0]
	for _, e := range entries {
		if e.ServerContactID != contact.InvalidID {
			out = append(out, e)
		}
	}
	return out
}

func (u *Upload) sendPage(ctx context.Context) {
	for u.offset < len(u.entries) {
		end := min(u.offset+u.cfg.PageSize, len(u.entries))
		page := &uploadPage{entries: u.entries[u.offset:end]}
		u.offset = end

		call, err := u.buildCall(ctx, page)
		if err != nil {
			u.fail(err)
			return
		}
		if call == nil {
			// все записи страницы устарели
			if err := u.store.ClearChangeLog(ctx, entryIDs(page.entries)); err != nil {
				u.fail(fmt.Errorf("failed to clear change log: %w", err))
				return
			}
			continue
		}

		page.id = u.host.Send(call)
		u.inflight = page
		u.host.SetTimeout(u.cfg.RequestTimeout)
		return
	}
	u.advance(ctx)
}

func (u *Upload) buildCall(ctx context.Context, page *uploadPage) (Call, error) {
	switch u.state {
	case UploadNewContacts:
		var req syncdto.PushContactsRequest
		for _, e := range page.entries {
			c, err := u.store.Contact(ctx, e.LocalContactID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load contact %d: %w", e.LocalContactID, err)
			}
			page.sent = append(page.sent, c)
			// на сервер уходит только структура контакта
			req.Contacts = append(req.Contacts, syncdto.Contact{
				ID:      syncdto.InvalidID,
				Details: toServerDetails(c.Structural().Details),
			})
		}
		if len(req.Contacts) == 0 {
			return nil, nil
		}
		return func(ctx context.Context) (any, error) { return u.server.PushContacts(ctx, req) }, nil

	case UploadModifiedDetails:
		var req syncdto.PushDetailsRequest
		for _, e := range page.entries {
			d, err := u.store.Detail(ctx, e.LocalDetailID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load detail %d: %w", e.LocalDetailID, err)
			}
			d.Server.Contact = e.ServerContactID
			page.details = append(page.details, d)
			req.Details = append(req.Details, syncdto.DetailChange{
				ContactID: e.ServerContactID,
				Detail: syncdto.Detail{
					ID:    d.Server.Detail,
					Key:   d.Key,
					Value: d.Value,
					Flags: d.Flags,
				},
			})
		}
		if len(req.Details) == 0 {
			return nil, nil
		}
		return func(ctx context.Context) (any, error) { return u.server.PushDetails(ctx, req) }, nil

	case UploadDeletedContacts:
		req := syncdto.DeleteContactsRequest{IDs: make([]int64, 0, len(page.entries))}
		for _, e := range page.entries {
			req.IDs = append(req.IDs, e.ServerContactID)
		}
		return func(ctx context.Context) (any, error) { return u.server.DeleteContacts(ctx, req) }, nil

	case UploadDeletedDetails:
		req := syncdto.DeleteDetailsRequest{Details: make([]syncdto.DetailRef, 0, len(page.entries))}
		for _, e := range page.entries {
			req.Details = append(req.Details, syncdto.DetailRef{ContactID: e.ServerContactID, DetailID: e.ServerDetailID})
		}
		return func(ctx context.Context) (any, error) { return u.server.DeleteDetails(ctx, req) }, nil

	case UploadGroupAdditions, UploadGroupDeletions:
		req := syncdto.GroupMembersRequest{Members: make([]syncdto.GroupMember, 0, len(page.entries))}
		for _, e := range page.entries {
			req.Members = append(req.Members, syncdto.GroupMember{ContactID: e.ServerContactID, GroupID: e.GroupID})
		}
		if u.state == UploadGroupAdditions {
			return func(ctx context.Context) (any, error) { return u.server.AddGroupMembers(ctx, req) }, nil
		}
		return func(ctx context.Context) (any, error) { return u.server.RemoveGroupMembers(ctx, req) }, nil
	}
	return nil, fmt.Errorf("no request for state %s", u.state)
}

func (u *Upload) OnResponse(ctx context.Context, resp Response) {
	page := u.inflight
	if page == nil || page.id != resp.ID {
		u.fail(fmt.Errorf("%w: %d", ErrUnknownRequest, resp.ID))
		return
	}
	u.inflight = nil

	if resp.Err != nil {
		u.fail(fmt.Errorf("failed to upload %s: %w", u.state, resp.Err))
		return
	}

	var backfill []contact.Change
	var revision int64
	switch r := resp.Payload.(type) {
	case *syncdto.PushContactsResponse:
		if err := serverError(r.Status, r.Error); err != nil {
			u.fail(err)
			return
		}
		if len(r.Contacts) != len(page.sent) {
			u.fail(fmt.Errorf("%w: %d acks for %d contacts", ErrBadResponse, len(r.Contacts), len(page.sent)))
			return
		}
		backfill = contactIDBackfill(page.sent, r.Contacts)
		revision = r.Revision
	case *syncdto.PushDetailsResponse:
		if err := serverError(r.Status, r.Error); err != nil {
			u.fail(err)
			return
		}
		if len(r.IDs) != len(page.details) {
			u.fail(fmt.Errorf("%w: %d ids for %d details", ErrBadResponse, len(r.IDs), len(page.details)))
			return
		}
		backfill = detailIDBackfill(page.details, r.IDs)
		revision = r.Revision
	case *syncdto.AckResponse:
		if err := serverError(r.Status, r.Error); err != nil {
			u.fail(err)
			return
		}
		revision = r.Revision
	default:
		u.fail(fmt.Errorf("%w: %T", ErrBadResponse, resp.Payload))
		return
	}

	if err := u.commit(ctx, page, backfill, revision); err != nil {
		u.fail(err)
		return
	}
	u.stats.Pages++
	u.stats.Uploaded += len(page.entries)
	u.sendPage(ctx)
}

// commit записывает идентификаторы сервера и очищает журнал страницы одной транзакцией.
// Якорь сдвигается, только если ревизию подняла именно эта страница.
func (u *Upload) commit(ctx context.Context, page *uploadPage, backfill []contact.Change, revision int64) error {
	anchor, err := u.store.Anchor(ctx)
	if err != nil {
		return fmt.Errorf("failed to read anchor: %w", err)
	}
	err = u.store.Update(ctx, func(tx *store.Tx) error {
		if _, err := tx.ApplyChanges(ctx, store.SourceSystem, backfill); err != nil {
			return err
		}
		if err := tx.ClearChangeLog(ctx, entryIDs(page.entries)); err != nil {
			return err
		}
		if revision > 0 && anchor == revision-1 {
			return tx.SetAnchor(ctx, revision)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit %s page: %w", u.state, err)
	}
	return nil
}

func (u *Upload) OnTimeout(_ context.Context) {
	u.fail(ErrTimeout)
}

func (u *Upload) Cancel(_ context.Context) {
	u.inflight = nil
	u.state = UploadIdle
	u.host.SetTimeout(NoTimeout)
	u.host.Complete(StatusUserCancelled, nil)
}

func (u *Upload) fail(err error) {
	u.log.Error("upload failed", slog.String("state", u.state.String()), slog.String("error", err.Error()))
	u.inflight = nil
	u.state = UploadIdle
	u.host.SetTimeout(NoTimeout)
	u.host.Complete(StatusError, err)
}

// contactIDBackfill сопоставляет подтверждения с контактами по позиции: сначала контакт, затем поля по порядку
func contactIDBackfill(sent []*contact.Contact, acks []syncdto.ContactAck) []contact.Change {
	var out []contact.Change
	for i, c := range sent {
		ack := acks[i]
		ch := contact.New(contact.KeyUnknown, "", contact.FlagNone).As(contact.TypeUpdateRemoteContactID)
		ch.Local.Contact = c.LocalID
		ch.Server.Contact = ack.ID
		out = append(out, ch)

		for j, d := range c.Details {
			if j >= len(ack.DetailIDs) {
				break
			}
			dc := contact.New(d.Key, "", contact.FlagNone).As(contact.TypeUpdateRemoteContactID)
			dc.Local = d.Local
			dc.Server = contact.ID{Contact: ack.ID, Detail: ack.DetailIDs[j]}
			out = append(out, dc)
		}
	}
	return out
}

func detailIDBackfill(details []contact.Change, ids []int64) []contact.Change {
	var out []contact.Change
	for i, d := range details {
		if d.Server.Detail == ids[i] {
			continue
		}
		dc := contact.New(d.Key, "", contact.FlagNone).As(contact.TypeUpdateRemoteContactID)
		dc.Local = d.Local
		dc.Server = contact.ID{Contact: d.Server.Contact, Detail: ids[i]}
		out = append(out, dc)
	}
	return out
}

func entryIDs(entries []store.LogEntry) []int64 {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
