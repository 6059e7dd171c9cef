package addressbook

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"contactsync/internal/domain/contact"
)

// Memory адресная книга в памяти. Применяет профиль возможностей при записи.
type Memory struct {
	mu sync.Mutex

	profile         *contact.Profile
	accountsEnabled bool
	accounts        []Account
	entries         map[int64]*Entry
	nextID          int64
	writes          int
	observer        func()
}

// NewMemory создает пустую адресную книгу
func NewMemory(profile *contact.Profile, supportsAccounts bool) *Memory {
	return &Memory{
		profile:         profile,
		accountsEnabled: supportsAccounts,
		entries:         make(map[int64]*Entry),
		nextID:          1,
	}
}

func (m *Memory) Profile() *contact.Profile {
	return m.profile
}

func (m *Memory) IsKeySupported(key contact.Key) bool {
	return m.profile.IsKeySupported(key)
}

func (m *Memory) SupportsAccounts() bool {
	return m.accountsEnabled
}

// AddAccount регистрирует учетную запись, если ее еще нет
func (m *Memory) AddAccount(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.accounts {
		if existing == a {
			return
		}
	}
	m.accounts = append(m.accounts, a)
}

func (m *Memory) Accounts(_ context.Context) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.accountsEnabled {
		return nil, nil
	}
	out := make([]Account, len(m.accounts))
	copy(out, m.accounts)
	return out, nil
}

func (m *Memory) AccountsByType(_ context.Context, accountType string) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.accountsEnabled {
		return nil, nil
	}
	var out []Account
	for _, a := range m.accounts {
		if a.Type == accountType {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) ContactIDs(_ context.Context, account *Account) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.entries))
	for id, e := range m.entries {
		if sameAccount(e.Account, account) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) Contact(_ context.Context, id int64) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return cloneEntry(e), nil
}

func (m *Memory) AddContact(_ context.Context, account *Account, records []contact.Change) ([]contact.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes++
	e := m.newEntry(account)
	ids := make([]contact.ID, len(records))
	for i, r := range records {
		ids[i] = contact.NoID()
		if r.Local.HasContact() && e.SourceID == contact.InvalidID {
			e.SourceID = r.Local.Contact
		}
		if r.Type == contact.TypeAddContact {
			ids[i] = contact.ID{Contact: e.ID, Detail: contact.InvalidID}
			continue
		}
		if detailID, ok := m.putDetail(e, r); ok {
			ids[i] = contact.ID{Contact: e.ID, Detail: detailID}
		}
	}
	m.promote(e)
	return ids, nil
}

func (m *Memory) UpdateContact(_ context.Context, records []contact.Change) ([]contact.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes++
	ids := make([]contact.ID, len(records))
	touched := make(map[int64]*Entry)
	for i, r := range records {
		ids[i] = contact.NoID()
		e, ok := m.entries[r.Store.Contact]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, r.Store.Contact)
		}
		touched[e.ID] = e

		switch r.Type {
		case contact.TypeAddDetail:
			if detailID, ok := m.putDetail(e, r); ok {
				ids[i] = contact.ID{Contact: e.ID, Detail: detailID}
			}
		case contact.TypeUpdateDetail:
			m.updateDetail(e, r)
		case contact.TypeDeleteDetail:
			m.removeDetail(e, r)
		case contact.TypeUpdateLocalContactID:
			e.SourceID = r.Local.Contact
		}
	}
	for _, e := range touched {
		m.promote(e)
	}
	return ids, nil
}

func (m *Memory) RemoveContact(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writes++
	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(m.entries, id)
	return nil
}

func (m *Memory) RegisterObserver(fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.observer != nil {
		return ErrObserverRegistered
	}
	m.observer = fn
	return nil
}

func (m *Memory) UnregisterObserver() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.observer == nil {
		return ErrNoObserver
	}
	m.observer = nil
	return nil
}

// Insert добавляет контакт от имени другого приложения и уведомляет наблюдателя
func (m *Memory) Insert(account *Account, details ...contact.Change) int64 {
	m.mu.Lock()
	e := m.newEntry(account)
	for _, d := range details {
		m.putDetail(e, d)
	}
	m.promote(e)
	id := e.ID
	m.mu.Unlock()

	m.notify()
	return id
}

// Append добавляет поля существующему контакту от имени другого приложения
func (m *Memory) Append(id int64, details ...contact.Change) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	for _, d := range details {
		m.putDetail(e, d)
	}
	m.promote(e)
	m.mu.Unlock()

	m.notify()
	return nil
}

// Delete удаляет контакт от имени другого приложения
func (m *Memory) Delete(id int64) error {
	m.mu.Lock()
	if _, ok := m.entries[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	delete(m.entries, id)
	m.mu.Unlock()

	m.notify()
	return nil
}

// Len возвращает число контактов
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Writes возвращает число операций записи, выполненных через Book
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) notify() {
	m.mu.Lock()
	fn := m.observer
	m.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (m *Memory) newEntry(account *Account) *Entry {
	e := &Entry{ID: m.allocID(), SourceID: contact.InvalidID}
	if account != nil && m.accountsEnabled {
		a := *account
		e.Account = &a
	}
	m.entries[e.ID] = e
	return e
}

func (m *Memory) allocID() int64 {
	id := m.nextID
	m.nextID++
	return id
}

// putDetail сохраняет поле с учетом профиля; организация и должность делят один идентификатор
func (m *Memory) putDetail(e *Entry, r contact.Change) (int64, bool) {
	if !m.profile.IsKeySupported(r.Key) {
		return contact.InvalidID, false
	}
	d := contact.New(r.Key, m.profile.NarrowValue(r.Key, r.Value), m.profile.NarrowFlags(r.Key, r.Flags))
	d.Store.Contact = e.ID
	d.Store.Detail = m.sharedDetailID(e, r.Key)
	if d.Store.Detail == contact.InvalidID {
		d.Store.Detail = m.allocID()
	}
	e.Details = append(e.Details, d)
	return d.Store.Detail, true
}

func (m *Memory) sharedDetailID(e *Entry, k contact.Key) int64 {
	var partner contact.Key
	switch k {
	case contact.KeyOrganization:
		partner = contact.KeyTitle
	case contact.KeyTitle:
		partner = contact.KeyOrganization
	default:
		return contact.InvalidID
	}
	for _, d := range e.Details {
		if d.Key == partner {
			return d.Store.Detail
		}
	}
	return contact.InvalidID
}

func (m *Memory) updateDetail(e *Entry, r contact.Change) {
	for i, d := range e.Details {
		if d.Key == r.Key && d.Store.Detail == r.Store.Detail {
			e.Details[i].Value = m.profile.NarrowValue(r.Key, r.Value)
			e.Details[i].Flags = m.profile.NarrowFlags(r.Key, r.Flags)
			return
		}
	}
}

func (m *Memory) removeDetail(e *Entry, r contact.Change) {
	for i, d := range e.Details {
		if d.Key == r.Key && d.Store.Detail == r.Store.Detail {
			e.Details = append(e.Details[:i], e.Details[i+1:]...)
			return
		}
	}
}

// promote помечает первое значение предпочтительным там, где так поступает платформа
func (m *Memory) promote(e *Entry) {
	for _, k := range contact.Keys() {
		if !m.profile.PromotesPreferred(k) {
			continue
		}
		first := -1
		hasPreferred := false
		for i, d := range e.Details {
			if d.Key != k {
				continue
			}
			if first < 0 {
				first = i
			}
			hasPreferred = hasPreferred || d.Flags.IsPreferred()
		}
		if first >= 0 && !hasPreferred {
			e.Details[first].Flags |= contact.FlagPreferred
		}
	}
}

func sameAccount(a, b *Account) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneEntry(e *Entry) *Entry {
	out := *e
	if e.Account != nil {
		a := *e.Account
		out.Account = &a
	}
	out.Details = make([]contact.Change, len(e.Details))
	copy(out.Details, e.Details)
	return &out
}
