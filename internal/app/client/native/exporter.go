package native

import (
	"context"
	"errors"
	"fmt"

	"contactsync/internal/app/client/addressbook"
	"contactsync/internal/app/client/processor"
	"contactsync/internal/app/client/store"
	"contactsync/internal/domain/contact"

	"golang.org/x/exp/slog"
)

// Exporter записывает в адресную книгу устройства контакты, измененные сервером
type Exporter struct {
	book  addressbook.Book
	store store.Store
	cmp   *contact.Comparator
	cfg   Config
	log   *slog.Logger

	result Result
	stats  processor.Stats
}

func NewExporter(book addressbook.Book, st store.Store, cfg Config, log *slog.Logger) *Exporter {
	return &Exporter{
		book:  book,
		store: st,
		cmp:   contact.NewComparator(book.Profile()),
		cfg:   cfg.withDefaults(),
		log:   log.With(slog.String("component", "exporter")),
	}
}

func (ex *Exporter) Result() Result {
	return ex.result
}

func (ex *Exporter) Stats() processor.Stats {
	return ex.stats
}

// Tick записывает не более BatchSize контактов; завершается, когда ожидающих контактов не осталось
func (ex *Exporter) Tick(ctx context.Context) (bool, error) {
	ids, err := ex.store.SyncableContactIDs(ctx, ex.cfg.BatchSize)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		ex.result = ResultOK
		ex.log.Debug("export finished",
			slog.Int("added", ex.stats.DeviceAdds),
			slog.Int("changed", ex.stats.DeviceEdits),
			slog.Int("removed", ex.stats.DeviceDrops))
		return true, nil
	}

	for _, id := range ids {
		if err := ex.exportContact(ctx, id); err != nil {
			return false, fmt.Errorf("failed to export contact %d: %w", id, err)
		}
	}
	return false, nil
}

func (ex *Exporter) exportContact(ctx context.Context, localID int64) error {
	c, err := ex.store.Contact(ctx, localID)
	if err != nil {
		return err
	}

	if c.Deleted {
		if c.StoreID != contact.InvalidID {
			err := ex.book.RemoveContact(ctx, c.StoreID)
			if err != nil && !errors.Is(err, addressbook.ErrNotFound) {
				return err
			}
		}
		ex.stats.DeviceDrops++
		return ex.store.PurgeContact(ctx, localID)
	}

	var entry *addressbook.Entry
	if c.StoreID != contact.InvalidID {
		entry, err = ex.book.Contact(ctx, c.StoreID)
		if err != nil && !errors.Is(err, addressbook.ErrNotFound) {
			return err
		}
	}

	if entry == nil {
		err = ex.insert(ctx, c)
	} else {
		err = ex.update(ctx, c, entry)
	}
	if err != nil {
		return err
	}
	return ex.store.ClearSyncable(ctx, localID)
}

func (ex *Exporter) insert(ctx context.Context, c *contact.Contact) error {
	header := contact.New(contact.KeyUnknown, "", contact.FlagNone).As(contact.TypeAddContact)
	header.Local.Contact = c.LocalID
	records := []contact.Change{header}
	for _, d := range contact.Clamp(ex.cmp.Profile().Filter(c.Details)) {
		records = append(records, d.As(contact.TypeAddDetail))
	}

	ids, err := ex.book.AddContact(ctx, targetAccount(ex.book, ex.cfg), records)
	if err != nil {
		return err
	}
	if len(ids) != len(records) {
		return fmt.Errorf("address book returned %d ids for %d records", len(ids), len(records))
	}

	backfill := []contact.Change{{
		Type:  contact.TypeUpdateStoreContactID,
		Local: contact.ID{Contact: c.LocalID, Detail: contact.InvalidID},
		Store: contact.ID{Contact: ids[0].Contact, Detail: contact.InvalidID},
	}}
	backfill = append(backfill, storeDetailIDs(records[1:], ids[1:])...)
	if _, err := ex.store.ApplyChanges(ctx, store.SourceSystem, backfill); err != nil {
		return err
	}
	ex.stats.DeviceAdds++
	return nil
}

func (ex *Exporter) update(ctx context.Context, c *contact.Contact, entry *addressbook.Entry) error {
	updates := contact.Pending(contact.Diff(ex.cmp, entry.Details, c.Details))
	if len(updates) == 0 {
		return nil
	}
	for i := range updates {
		updates[i].Store.Contact = entry.ID
	}

	ids, err := ex.book.UpdateContact(ctx, updates)
	if err != nil {
		return err
	}
	if len(ids) != len(updates) {
		return fmt.Errorf("address book returned %d ids for %d records", len(ids), len(updates))
	}
	if backfill := storeDetailIDs(updates, ids); len(backfill) > 0 {
		if _, err := ex.store.ApplyChanges(ctx, store.SourceSystem, backfill); err != nil {
			return err
		}
	}
	ex.stats.DeviceEdits++
	return nil
}

// storeDetailIDs строит записи обратной связи для полей, получивших идентификатор в адресной книге
func storeDetailIDs(records []contact.Change, ids []contact.ID) []contact.Change {
	var out []contact.Change
	for i, r := range records {
		if r.Type != contact.TypeAddDetail || !ids[i].HasDetail() || !r.Local.HasDetail() {
			continue
		}
		out = append(out, contact.Change{
			Type:  contact.TypeUpdateStoreDetailID,
			Local: r.Local,
			Store: ids[i],
		})
	}
	return out
}
