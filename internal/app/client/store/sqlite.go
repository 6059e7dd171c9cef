package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"contactsync/internal/domain/contact"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"
)

const (
	thumbnailNone = iota
	thumbnailFetch
	thumbnailPush
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite локальное хранилище на SQLite
type SQLite struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Store = (*SQLite)(nil)

// Open открывает или создает базу данных
func Open(path string, log *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	// одна запись за раз: транзакции хранилища не пересекаются
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, log: log.With(slog.String("component", "local_store"))}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) initTables() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			server_id INTEGER NOT NULL DEFAULT -1,
			store_id INTEGER NOT NULL DEFAULT -1,
			bio TEXT NOT NULL DEFAULT '',
			photo_path TEXT NOT NULL DEFAULT '',
			gender TEXT NOT NULL DEFAULT '',
			sources TEXT NOT NULL DEFAULT '[]',
			user_id INTEGER NOT NULL DEFAULT 0,
			deleted BOOLEAN NOT NULL DEFAULT 0,
			native_pending BOOLEAN NOT NULL DEFAULT 0,
			thumbnail_state INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_contacts_server ON contacts(server_id);
		CREATE INDEX IF NOT EXISTS idx_contacts_store ON contacts(store_id);
		CREATE INDEX IF NOT EXISTS idx_contacts_native ON contacts(native_pending);

		CREATE TABLE IF NOT EXISTS details (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contact_id INTEGER NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			flags INTEGER NOT NULL DEFAULT 0,
			server_id INTEGER NOT NULL DEFAULT -1,
			store_id INTEGER NOT NULL DEFAULT -1,
			position INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_details_contact ON details(contact_id);
		CREATE INDEX IF NOT EXISTS idx_details_server ON details(server_id);

		CREATE TABLE IF NOT EXISTS contact_summary (
			contact_id INTEGER PRIMARY KEY REFERENCES contacts(id) ON DELETE CASCADE,
			display_name TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS contact_groups (
			contact_id INTEGER NOT NULL REFERENCES contacts(id) ON DELETE CASCADE,
			group_id INTEGER NOT NULL,
			PRIMARY KEY (contact_id, group_id)
		);

		CREATE TABLE IF NOT EXISTS thumbnails (
			contact_id INTEGER PRIMARY KEY REFERENCES contacts(id) ON DELETE CASCADE,
			data BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS change_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			contact_id INTEGER NOT NULL,
			detail_id INTEGER NOT NULL DEFAULT -1,
			server_contact_id INTEGER NOT NULL DEFAULT -1,
			server_detail_id INTEGER NOT NULL DEFAULT -1,
			group_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_change_log_kind ON change_log(kind);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS profile (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			display_name TEXT NOT NULL,
			bio TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`)
	return err
}

// Update выполняет fn в транзакции; сводные данные и ограничения проверяются перед фиксацией
func (s *SQLite) Update(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	tx := newTx(sqlTx)

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := tx.finish(ctx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func (s *SQLite) ApplyChanges(ctx context.Context, source Source, changes []contact.Change) ([]contact.Change, error) {
	var out []contact.Change
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.ApplyChanges(ctx, source, changes)
		return err
	})
	return out, err
}

func (s *SQLite) Contact(ctx context.Context, localID int64) (*contact.Contact, error) {
	return loadContact(ctx, s.db, "c.id = ?", localID)
}

func (s *SQLite) ContactByServerID(ctx context.Context, serverID int64) (*contact.Contact, error) {
	return loadContact(ctx, s.db, "c.server_id = ? AND c.server_id != -1", serverID)
}

func (s *SQLite) ContactByStoreID(ctx context.Context, storeID int64) (*contact.Contact, error) {
	return loadContact(ctx, s.db, "c.store_id = ? AND c.store_id != -1 AND c.deleted = 0", storeID)
}

func (s *SQLite) ListContacts(ctx context.Context) ([]contact.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM contacts WHERE deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения контактов: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}

	out := make([]contact.Contact, 0, len(ids))
	for _, id := range ids {
		c, err := s.Contact(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (s *SQLite) CountContacts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE deleted = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчета контактов: %w", err)
	}
	return n, nil
}

func (s *SQLite) Detail(ctx context.Context, localDetailID int64) (contact.Change, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.contact_id, d.key, d.value, d.flags, d.server_id, d.store_id, c.server_id, c.store_id
		FROM details d JOIN contacts c ON c.id = d.contact_id
		WHERE d.id = ?
	`, localDetailID)
	d, err := scanDetail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return contact.Change{}, fmt.Errorf("поле %d: %w", localDetailID, ErrNotFound)
	}
	return d, err
}

func (s *SQLite) StoreContactIDs(ctx context.Context) (map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT store_id, id FROM contacts WHERE store_id != -1 AND deleted = 0`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения идентификаторов: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var storeID, localID int64
		if err := rows.Scan(&storeID, &localID); err != nil {
			return nil, err
		}
		out[storeID] = localID
	}
	return out, rows.Err()
}

// PendingExportStoreIDs возвращает идентификаторы адресной книги контактов, ожидающих записи в нее
func (s *SQLite) PendingExportStoreIDs(ctx context.Context) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT store_id FROM contacts WHERE store_id != -1 AND (deleted = 1 OR native_pending = 1)
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения контактов для устройства: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

func (s *SQLite) SyncableContactIDs(ctx context.Context, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM contacts WHERE native_pending = 1 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения контактов для устройства: %w", err)
	}
	return scanIDs(rows)
}

func (s *SQLite) ClearSyncable(ctx context.Context, localID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE contacts SET native_pending = 0 WHERE id = ?`, localID)
	return err
}

func (s *SQLite) PurgeContact(ctx context.Context, localID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, localID)
	return err
}

func (s *SQLite) ChangeLog(ctx context.Context, kind Kind) ([]LogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.kind, l.contact_id, l.detail_id,
		       CASE WHEN l.server_contact_id != -1 THEN l.server_contact_id ELSE COALESCE(c.server_id, -1) END,
		       CASE WHEN l.server_detail_id != -1 THEN l.server_detail_id ELSE COALESCE(d.server_id, -1) END,
		       l.group_id
		FROM change_log l
		LEFT JOIN contacts c ON c.id = l.contact_id
		LEFT JOIN details d ON d.id = l.detail_id
		WHERE l.kind = ?
		ORDER BY l.id
	`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала изменений: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var k string
		if err := rows.Scan(&e.ID, &k, &e.LocalContactID, &e.LocalDetailID, &e.ServerContactID, &e.ServerDetailID, &e.GroupID); err != nil {
			return nil, err
		}
		e.Kind = Kind(k)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) PendingChanges(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM change_log`).Scan(&n)
	return n, err
}

func (s *SQLite) ClearChangeLog(ctx context.Context, ids []int64) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.ClearChangeLog(ctx, ids)
	})
}

func (s *SQLite) Anchor(ctx context.Context) (int64, error) {
	return readAnchor(ctx, s.db)
}

func (s *SQLite) SetAnchor(ctx context.Context, anchor int64) error {
	return writeAnchor(ctx, s.db, anchor)
}

func (s *SQLite) ThumbnailsToFetch(ctx context.Context) ([]Thumbnail, error) {
	return s.thumbnails(ctx, thumbnailFetch)
}

func (s *SQLite) ThumbnailsToPush(ctx context.Context) ([]Thumbnail, error) {
	return s.thumbnails(ctx, thumbnailPush)
}

func (s *SQLite) thumbnails(ctx context.Context, state int) ([]Thumbnail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.server_id, COALESCE(t.data, x'')
		FROM contacts c LEFT JOIN thumbnails t ON t.contact_id = c.id
		WHERE c.thumbnail_state = ? AND c.server_id != -1 AND c.deleted = 0
		ORDER BY c.id
	`, state)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения миниатюр: %w", err)
	}
	defer rows.Close()

	var out []Thumbnail
	for rows.Next() {
		var t Thumbnail
		if err := rows.Scan(&t.LocalID, &t.ServerID, &t.Data); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) SaveThumbnail(ctx context.Context, localID int64, data []byte) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.putThumbnail(ctx, localID, data, thumbnailNone)
	})
}

func (s *SQLite) SetPhoto(ctx context.Context, localID int64, data []byte) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.putThumbnail(ctx, localID, data, thumbnailPush)
	})
}

func (s *SQLite) MarkThumbnailPushed(ctx context.Context, localID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE contacts SET thumbnail_state = ? WHERE id = ? AND thumbnail_state = ?`,
		thumbnailNone, localID, thumbnailPush)
	return err
}

// ClearThumbnailRequest снимает запрос миниатюры, которой нет на сервере
func (s *SQLite) ClearThumbnailRequest(ctx context.Context, localID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE contacts SET thumbnail_state = ? WHERE id = ? AND thumbnail_state = ?`,
		thumbnailNone, localID, thumbnailFetch)
	return err
}

func (s *SQLite) Thumbnail(ctx context.Context, localID int64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM thumbnails WHERE contact_id = ?`, localID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("миниатюра %d: %w", localID, ErrNotFound)
	}
	return data, err
}

func (s *SQLite) AddToGroup(ctx context.Context, localID, groupID int64) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.changeGroup(ctx, localID, groupID, true)
	})
}

func (s *SQLite) RemoveFromGroup(ctx context.Context, localID, groupID int64) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.changeGroup(ctx, localID, groupID, false)
	})
}

func (s *SQLite) SaveProfile(ctx context.Context, p Profile) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.SaveProfile(ctx, p)
	})
}

func (s *SQLite) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx, `SELECT display_name, bio, updated_at FROM profile WHERE id = 1`).
		Scan(&p.DisplayName, &p.Bio, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("профиль: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения профиля: %w", err)
	}
	return &p, nil
}

func readAnchor(ctx context.Context, q querier) (int64, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'anchor'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения якоря: %w", err)
	}
	return strconv.ParseInt(v, 10, 64)
}

func writeAnchor(ctx context.Context, q querier, anchor int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('anchor', ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, strconv.FormatInt(anchor, 10))
	if err != nil {
		return fmt.Errorf("ошибка сохранения якоря: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func loadContact(ctx context.Context, q querier, where string, arg any) (*contact.Contact, error) {
	row := q.QueryRowContext(ctx, `
		SELECT c.id, c.server_id, c.store_id, c.bio, c.photo_path, c.gender, c.sources, c.user_id, c.deleted
		FROM contacts c WHERE `+where+` LIMIT 1`, arg)

	var c contact.Contact
	var sources string
	err := row.Scan(&c.LocalID, &c.ServerID, &c.StoreID, &c.Summary.Bio, &c.Summary.PhotoPath,
		&c.Summary.Gender, &sources, &c.Summary.UserID, &c.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("контакт: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения контакта: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &c.Summary.Sources); err != nil {
		return nil, fmt.Errorf("ошибка парсинга источников: %w", err)
	}

	if c.Details, err = loadDetails(ctx, q, c.LocalID); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `SELECT group_id FROM contact_groups WHERE contact_id = ? ORDER BY group_id`, c.LocalID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения групп: %w", err)
	}
	if c.Summary.Groups, err = scanIDs(rows); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadDetails(ctx context.Context, q querier, localID int64) ([]contact.Change, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT d.id, d.contact_id, d.key, d.value, d.flags, d.server_id, d.store_id, c.server_id, c.store_id
		FROM details d JOIN contacts c ON c.id = d.contact_id
		WHERE d.contact_id = ?
		ORDER BY d.position, d.id
	`, localID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения полей: %w", err)
	}
	defer rows.Close()

	var out []contact.Change
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDetail(row scanner) (contact.Change, error) {
	var d contact.Change
	var key string
	var flags uint32
	err := row.Scan(&d.Local.Detail, &d.Local.Contact, &key, &d.Value, &flags,
		&d.Server.Detail, &d.Store.Detail, &d.Server.Contact, &d.Store.Contact)
	if err != nil {
		return contact.Change{}, err
	}
	if d.Key, err = contact.ParseKey(key); err != nil {
		return contact.Change{}, err
	}
	d.Flags = contact.Flags(flags)
	d.Type = contact.TypeUnknown
	return d, nil
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func now() time.Time {
	return time.Now().UTC()
}
