package native

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"contactsync/internal/app/client/addressbook"
	"contactsync/internal/app/client/processor"
	"contactsync/internal/app/client/store"
	"contactsync/internal/domain/contact"

	"golang.org/x/exp/slog"
)

// Importer переносит изменения адресной книги устройства в локальное хранилище
type Importer struct {
	book      addressbook.Book
	store     store.Store
	cmp       *contact.Comparator
	cfg       Config
	firstTime bool
	log       *slog.Logger

	loaded  bool
	ids     []int64
	offset  int
	seen    map[int64]bool
	held    map[int64]bool
	result  Result
	applied map[contact.Type]int
	stats   processor.Stats
}

func NewImporter(book addressbook.Book, st store.Store, cfg Config, firstTime bool, log *slog.Logger) *Importer {
	return &Importer{
		book:      book,
		store:     st,
		cmp:       contact.NewComparator(book.Profile()),
		cfg:       cfg.withDefaults(),
		firstTime: firstTime,
		log:       log.With(slog.String("component", "importer")),
		seen:      make(map[int64]bool),
		applied:   make(map[contact.Type]int),
	}
}

func (im *Importer) Result() Result {
	return im.result
}

func (im *Importer) Stats() processor.Stats {
	return im.stats
}

// Applied возвращает число записанных изменений указанного типа
func (im *Importer) Applied(t contact.Type) int {
	return im.applied[t]
}

// Tick обрабатывает не более BatchSize контактов; последний шаг удаляет исчезнувшие контакты
func (im *Importer) Tick(ctx context.Context) (bool, error) {
	if im.result == ResultOK {
		return true, nil
	}
	if !im.loaded {
		if err := im.load(ctx); err != nil {
			return false, err
		}
	}

	if im.offset < len(im.ids) {
		end := min(im.offset+im.cfg.BatchSize, len(im.ids))
		for _, id := range im.ids[im.offset:end] {
			if err := im.importContact(ctx, id); err != nil {
				return false, fmt.Errorf("failed to import contact %d: %w", id, err)
			}
		}
		im.offset = end
		return false, nil
	}

	if err := im.removeVanished(ctx); err != nil {
		return false, err
	}
	im.result = ResultOK
	im.log.Debug("import finished",
		slog.Int("contacts", len(im.ids)),
		slog.Int("added", im.stats.DeviceAdds),
		slog.Int("changed", im.stats.DeviceEdits),
		slog.Int("removed", im.stats.DeviceDrops))
	return true, nil
}

func (im *Importer) load(ctx context.Context) error {
	accounts, err := im.sourceAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	unique := make(map[int64]bool)
	for _, a := range accounts {
		ids, err := im.book.ContactIDs(ctx, a)
		if err != nil {
			return fmt.Errorf("failed to list address book contacts: %w", err)
		}
		for _, id := range ids {
			unique[id] = true
		}
	}
	im.ids = make([]int64, 0, len(unique))
	for id := range unique {
		im.ids = append(im.ids, id)
	}
	sort.Slice(im.ids, func(i, j int) bool { return im.ids[i] < im.ids[j] })

	if im.held, err = im.store.PendingExportStoreIDs(ctx); err != nil {
		return err
	}
	im.loaded = true
	return nil
}

// sourceAccounts при первой синхронизации читает внешние учетные записи, иначе только собственную
func (im *Importer) sourceAccounts(ctx context.Context) ([]*addressbook.Account, error) {
	if !im.book.SupportsAccounts() {
		return []*addressbook.Account{nil}, nil
	}
	if !im.firstTime {
		return []*addressbook.Account{targetAccount(im.book, im.cfg)}, nil
	}
	var out []*addressbook.Account
	for _, t := range im.cfg.ExternalAccountTypes {
		accounts, err := im.book.AccountsByType(ctx, t)
		if err != nil {
			return nil, err
		}
		for i := range accounts {
			out = append(out, &accounts[i])
		}
	}
	return out, nil
}

func (im *Importer) importContact(ctx context.Context, storeID int64) error {
	im.seen[storeID] = true
	if im.held[storeID] {
		return nil
	}

	entry, err := im.book.Contact(ctx, storeID)
	if errors.Is(err, addressbook.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	details := contact.Clamp(im.cmp.Profile().Filter(entry.Details))

	local, err := im.store.ContactByStoreID(ctx, storeID)
	if errors.Is(err, store.ErrNotFound) {
		header := contact.New(contact.KeyUnknown, "", contact.FlagNone).As(contact.TypeAddContact)
		header.Store.Contact = storeID
		changes := []contact.Change{header}
		for _, d := range details {
			changes = append(changes, d.As(contact.TypeAddDetail))
		}
		if _, err := im.store.ApplyChanges(ctx, store.SourceDevice, changes); err != nil {
			return err
		}
		im.count(changes)
		im.stats.DeviceAdds++
		return nil
	}
	if err != nil {
		return err
	}

	if im.cmp.EqualListsUnordered(local.Details, details, false) {
		return nil
	}
	updates := contact.Pending(contact.Diff(im.cmp, local.Details, details))
	if len(updates) == 0 {
		return nil
	}
	updates = contact.WithLocalContact(updates, local.LocalID)
	if _, err := im.store.ApplyChanges(ctx, store.SourceDevice, updates); err != nil {
		return err
	}
	im.count(updates)
	im.stats.DeviceEdits++
	return nil
}

// removeVanished удаляет локальные контакты, которых больше нет в адресной книге.
// Контакты из непросмотренных учетных записей проверяются по одному.
func (im *Importer) removeVanished(ctx context.Context) error {
	linked, err := im.store.StoreContactIDs(ctx)
	if err != nil {
		return err
	}
	storeIDs := make([]int64, 0, len(linked))
	for storeID := range linked {
		storeIDs = append(storeIDs, storeID)
	}
	sort.Slice(storeIDs, func(i, j int) bool { return storeIDs[i] < storeIDs[j] })

	for _, storeID := range storeIDs {
		if im.seen[storeID] || im.held[storeID] {
			continue
		}
		_, err := im.book.Contact(ctx, storeID)
		if err == nil {
			continue
		}
		if !errors.Is(err, addressbook.ErrNotFound) {
			return err
		}
		del := contact.NewDeletion(contact.TypeDeleteContact, contact.KeyUnknown,
			contact.ID{Contact: linked[storeID], Detail: contact.InvalidID},
			contact.NoID(),
			contact.ID{Contact: storeID, Detail: contact.InvalidID})
		if _, err := im.store.ApplyChanges(ctx, store.SourceDevice, []contact.Change{del}); err != nil {
			return fmt.Errorf("failed to remove contact %d: %w", linked[storeID], err)
		}
		im.applied[contact.TypeDeleteContact]++
		im.stats.DeviceDrops++
	}
	return nil
}

func (im *Importer) count(changes []contact.Change) {
	for _, c := range changes {
		im.applied[c.Type]++
	}
}
