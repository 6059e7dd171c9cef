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

// DownloadState состояние загрузки изменений с сервера
type DownloadState int

const (
	DownloadIdle DownloadState = iota
	DownloadFetchingFirstPage
	DownloadFetchingNextBatch
	DownloadFailed
)

func (s DownloadState) String() string {
	switch s {
	case DownloadIdle:
		return "IDLE"
	case DownloadFetchingFirstPage:
		return "FETCHING_FIRST_PAGE"
	case DownloadFetchingNextBatch:
		return "FETCHING_NEXT_BATCH"
	case DownloadFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Download постранично загружает изменения после якоря и применяет их к локальному хранилищу
type Download struct {
	host   Host
	server Server
	store  store.Store
	cmp    *contact.Comparator
	cfg    Config
	log    *slog.Logger

	state  DownloadState
	anchor int64
	until  int64
	pages  map[RequestID]int
	stats  Stats
}

func NewDownload(host Host, server Server, st store.Store, cmp *contact.Comparator, cfg Config, log *slog.Logger) *Download {
	return &Download{
		host:   host,
		server: server,
		store:  st,
		cmp:    cmp,
		cfg:    cfg.withDefaults(),
		log:    log.With(slog.String("component", "download")),
		pages:  make(map[RequestID]int),
	}
}

func (d *Download) State() DownloadState {
	return d.state
}

func (d *Download) Stats() Stats {
	return d.stats
}

func (d *Download) Start(ctx context.Context) {
	anchor, err := d.store.Anchor(ctx)
	if err != nil {
		d.fail(fmt.Errorf("failed to read anchor: %w", err))
		return
	}
	d.anchor = anchor
	d.state = DownloadFetchingFirstPage
	d.request(0)
}

func (d *Download) request(page int) {
	req := syncdto.ChangesRequest{
		Anchor:   d.anchor,
		Until:    d.until,
		Page:     page,
		PageSize: d.cfg.PageSize,
	}
	id := d.host.Send(func(ctx context.Context) (any, error) {
		return d.server.FetchChanges(ctx, req)
	})
	d.pages[id] = page
	d.host.SetTimeout(d.cfg.RequestTimeout)
	d.log.Debug("page requested", slog.Int("page", page), slog.Int64("anchor", d.anchor))
}

func (d *Download) OnResponse(ctx context.Context, resp Response) {
	page, ok := d.pages[resp.ID]
	if !ok {
		d.fail(fmt.Errorf("%w: %d", ErrUnknownRequest, resp.ID))
		return
	}
	delete(d.pages, resp.ID)

	if resp.Err != nil {
		d.fail(fmt.Errorf("failed to fetch page %d: %w", page, resp.Err))
		return
	}
	r, ok := resp.Payload.(*syncdto.ChangesResponse)
	if !ok || r == nil {
		d.fail(fmt.Errorf("%w: page %d", ErrBadResponse, page))
		return
	}
	if err := serverError(r.Status, r.Error); err != nil {
		d.fail(err)
		return
	}
	if r.Page != page {
		d.fail(fmt.Errorf("%w: want %d, got %d", ErrPageMismatch, page, r.Page))
		return
	}
	if page == 0 {
		d.until = r.Anchor
	}

	last := page+1 >= r.NumberOfPages
	if err := d.applyPage(ctx, r, last); err != nil {
		d.fail(fmt.Errorf("failed to apply page %d: %w", page, err))
		return
	}
	d.stats.Pages++

	if !last {
		d.state = DownloadFetchingNextBatch
		d.request(page + 1)
		return
	}

	d.log.Info("changes downloaded",
		slog.Int("pages", d.stats.Pages),
		slog.Int("contacts", d.stats.Downloaded),
		slog.Int64("anchor", r.Anchor))
	d.state = DownloadIdle
	d.host.SetTimeout(NoTimeout)
	d.host.Complete(StatusSuccess, nil)
}

func (d *Download) OnTimeout(_ context.Context) {
	d.fail(ErrTimeout)
}

func (d *Download) Cancel(_ context.Context) {
	d.state = DownloadIdle
	d.host.SetTimeout(NoTimeout)
	d.host.Complete(StatusUserCancelled, nil)
}

func (d *Download) fail(err error) {
	d.log.Error("download failed", slog.String("error", err.Error()))
	d.state = DownloadFailed
	d.host.SetTimeout(NoTimeout)
	d.host.Complete(StatusError, err)
}

// applyPage применяет страницу одной транзакцией; на последней странице сохраняется якорь
func (d *Download) applyPage(ctx context.Context, r *syncdto.ChangesResponse, last bool) error {
	applied := 0
	err := d.store.Update(ctx, func(tx *store.Tx) error {
		for _, c := range r.Contacts {
			ok, err := d.applyContact(ctx, tx, c)
			if err != nil {
				return fmt.Errorf("contact %d: %w", c.ID, err)
			}
			if ok {
				applied++
			}
		}
		if last {
			return tx.SetAnchor(ctx, r.Anchor)
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.stats.Downloaded += applied
	return nil
}

func (d *Download) applyContact(ctx context.Context, tx *store.Tx, c syncdto.Contact) (bool, error) {
	local, err := tx.ContactByServerID(ctx, c.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		local = nil
	case err != nil:
		return false, err
	}

	if c.Deleted {
		if local == nil {
			return false, nil
		}
		del := contact.NewDeletion(contact.TypeDeleteContact, contact.KeyUnknown,
			contact.ID{Contact: local.LocalID, Detail: contact.InvalidID},
			contact.ID{Contact: c.ID, Detail: contact.InvalidID},
			contact.NoID())
		_, err := tx.ApplyChanges(ctx, store.SourceServer, []contact.Change{del})
		return true, err
	}

	var localID int64
	if local == nil {
		changes := newContactChanges(c)
		if err := contact.CheckSingular(changes); err != nil {
			return false, err
		}
		out, err := tx.ApplyChanges(ctx, store.SourceServer, changes)
		if err != nil {
			return false, err
		}
		localID = out[0].Local.Contact
	} else {
		updates := d.detailUpdates(local, c)
		if err := contact.CheckSingular(contact.Apply(local.Details, updates)); err != nil {
			return false, err
		}
		if _, err := tx.ApplyChanges(ctx, store.SourceServer, contact.Pending(updates)); err != nil {
			return false, err
		}
		localID = local.LocalID
	}

	if err := tx.SetSummary(ctx, localID, c.Summary()); err != nil {
		return false, err
	}
	if c.HasThumbnail {
		if err := tx.RequestThumbnail(ctx, localID); err != nil {
			return false, err
		}
	}
	return true, nil
}

// detailUpdates строит список обновлений, выровненный по полям локального контакта
func (d *Download) detailUpdates(local *contact.Contact, c syncdto.Contact) []contact.Change {
	byID := make(map[int64]syncdto.Detail, len(c.Details))
	for _, sd := range c.Details {
		byID[sd.ID] = sd
	}

	updates := make([]contact.Change, 0, len(local.Details)+len(c.Details))
	matched := make(map[int64]bool)
	for _, b := range local.Details {
		sd, ok := byID[b.Server.Detail]
		if !b.Server.HasDetail() || !ok {
			updates = append(updates, b.As(contact.TypeUnknown))
			continue
		}
		matched[sd.ID] = true
		if sd.Deleted {
			updates = append(updates, contact.NewDeletion(contact.TypeDeleteDetail, b.Key, b.Local, b.Server, b.Store))
			continue
		}
		target := b
		target.Key, target.Value, target.Flags = sd.Key, sd.Value, sd.Flags
		if d.cmp.Equal(b, target, false) {
			updates = append(updates, b.As(contact.TypeUnknown))
			continue
		}
		updates = append(updates, target.As(contact.TypeUpdateDetail))
	}

	var adds []contact.Change
	for _, sd := range c.Details {
		if sd.Deleted || matched[sd.ID] {
			continue
		}
		if i := unsyncedSingular(updates, sd.Key); i >= 0 {
			// поле устройства еще не выгружено: значение и идентификатор берутся с сервера
			target := updates[i]
			target.Value, target.Flags = sd.Value, sd.Flags
			target.Server = contact.ID{Contact: c.ID, Detail: sd.ID}
			updates[i] = target.As(contact.TypeUpdateDetail)
			continue
		}
		adds = append(adds, serverDetail(c.ID, sd).As(contact.TypeAddDetail))
	}
	return append(updates, contact.WithLocalContact(adds, local.LocalID)...)
}

// unsyncedSingular возвращает позицию живого поля с ключом key без серверного идентификатора
// или -1, если такого поля нет или ключ допускает несколько значений
func unsyncedSingular(updates []contact.Change, key contact.Key) int {
	if !contact.IsSingular(key) {
		return -1
	}
	for i, u := range updates {
		if u.Key == key && u.IsLive() && !u.Server.HasDetail() {
			return i
		}
	}
	return -1
}

func newContactChanges(c syncdto.Contact) []contact.Change {
	header := contact.New(contact.KeyUnknown, "", contact.FlagNone).As(contact.TypeAddContact)
	header.Server.Contact = c.ID
	changes := []contact.Change{header}
	for _, sd := range c.Details {
		if sd.Deleted {
			continue
		}
		changes = append(changes, serverDetail(c.ID, sd).As(contact.TypeAddDetail))
	}
	return changes
}

func serverDetail(contactID int64, sd syncdto.Detail) contact.Change {
	ch := contact.New(sd.Key, sd.Value, sd.Flags)
	ch.Server = contact.ID{Contact: contactID, Detail: sd.ID}
	return ch
}

func toServerDetails(details []contact.Change) []syncdto.Detail {
	out := make([]syncdto.Detail, 0, len(details))
	for _, d := range details {
		out = append(out, syncdto.Detail{
			ID:    syncdto.InvalidID,
			Key:   d.Key,
			Value: d.Value,
			Flags: d.Flags,
		})
	}
	return out
}
