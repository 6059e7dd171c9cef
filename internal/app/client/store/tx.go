package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"contactsync/internal/domain/contact"
)

// Tx транзакция локального хранилища
type Tx struct {
	tx      *sql.Tx
	touched map[int64]bool
}

func newTx(tx *sql.Tx) *Tx {
	return &Tx{tx: tx, touched: make(map[int64]bool)}
}

type detailRow struct {
	ID        int64
	ContactID int64
	Key       contact.Key
	ServerID  int64
	StoreID   int64
}

// ApplyChanges применяет записи изменений и возвращает их с назначенными локальными идентификаторами.
// Поля без локального идентификатора контакта относятся к последнему добавленному в этом вызове контакту.
func (t *Tx) ApplyChanges(ctx context.Context, source Source, changes []contact.Change) ([]contact.Change, error) {
	out := make([]contact.Change, len(changes))
	current := contact.InvalidID

	for i, c := range changes {
		var err error
		switch c.Type {
		case contact.TypeUnknown:
		case contact.TypeAddContact:
			c, err = t.addContact(ctx, source, c)
			current = c.Local.Contact
		case contact.TypeAddDetail:
			c, err = t.addDetail(ctx, source, c, current)
		case contact.TypeUpdateDetail:
			c, err = t.updateDetail(ctx, source, c)
		case contact.TypeDeleteDetail:
			c, err = t.deleteDetail(ctx, source, c)
		case contact.TypeDeleteContact:
			c, err = t.deleteContact(ctx, source, c)
		case contact.TypeUpdateRemoteContactID:
			err = t.updateRemoteID(ctx, c)
		case contact.TypeUpdateStoreContactID:
			_, err = t.tx.ExecContext(ctx, `UPDATE contacts SET store_id = ? WHERE id = ?`, c.Store.Contact, c.Local.Contact)
		case contact.TypeUpdateStoreDetailID:
			_, err = t.tx.ExecContext(ctx, `UPDATE details SET store_id = ? WHERE id = ?`, c.Store.Detail, c.Local.Detail)
		default:
			err = fmt.Errorf("%w: %s", contact.ErrUnknownType, c.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка применения изменения %s: %w", c.Type, err)
		}
		out[i] = c
	}
	return out, nil
}

func (t *Tx) ContactByServerID(ctx context.Context, serverID int64) (*contact.Contact, error) {
	return loadContact(ctx, t.tx, "c.server_id = ? AND c.server_id != -1", serverID)
}

// SetSummary сохраняет сводные данные контакта, полученные с сервера
func (t *Tx) SetSummary(ctx context.Context, localID int64, s contact.Summary) error {
	sources, err := json.Marshal(s.Sources)
	if err != nil {
		return fmt.Errorf("ошибка сериализации источников: %w", err)
	}
	if s.Sources == nil {
		sources = []byte("[]")
	}
	_, err = t.tx.ExecContext(ctx, `
		UPDATE contacts SET bio = ?, photo_path = ?, gender = ?, sources = ?, user_id = ?, updated_at = ?
		WHERE id = ?
	`, s.Bio, s.PhotoPath, s.Gender, string(sources), s.UserID, now(), localID)
	if err != nil {
		return fmt.Errorf("ошибка сохранения сводных данных: %w", err)
	}
	return t.SetGroups(ctx, localID, s.Groups)
}

// SetGroups заменяет членство в группах без записи в журнал
func (t *Tx) SetGroups(ctx context.Context, localID int64, groups []int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM contact_groups WHERE contact_id = ?`, localID); err != nil {
		return fmt.Errorf("ошибка обновления групп: %w", err)
	}
	for _, g := range groups {
		if _, err := t.tx.ExecContext(ctx, `INSERT OR IGNORE INTO contact_groups (contact_id, group_id) VALUES (?, ?)`, localID, g); err != nil {
			return fmt.Errorf("ошибка обновления групп: %w", err)
		}
	}
	return nil
}

// RequestThumbnail помечает миниатюру контакта для загрузки с сервера
func (t *Tx) RequestThumbnail(ctx context.Context, localID int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE contacts SET thumbnail_state = ? WHERE id = ?`, thumbnailFetch, localID)
	return err
}

func (t *Tx) SetAnchor(ctx context.Context, anchor int64) error {
	return writeAnchor(ctx, t.tx, anchor)
}

func (t *Tx) ClearChangeLog(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM change_log WHERE id = ?`, id); err != nil {
			return fmt.Errorf("ошибка очистки журнала изменений: %w", err)
		}
	}
	return nil
}

func (t *Tx) SaveProfile(ctx context.Context, p Profile) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO profile (id, display_name, bio, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name, bio = excluded.bio, updated_at = excluded.updated_at
	`, p.DisplayName, p.Bio, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка сохранения профиля: %w", err)
	}
	return nil
}

func (t *Tx) addContact(ctx context.Context, source Source, c contact.Change) (contact.Change, error) {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO contacts (server_id, store_id, native_pending, updated_at) VALUES (?, ?, ?, ?)`,
		c.Server.Contact, c.Store.Contact, source == SourceServer, now())
	if err != nil {
		return c, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return c, err
	}
	c.Local = contact.ID{Contact: id, Detail: contact.InvalidID}
	t.touched[id] = true

	if source == SourceDevice {
		err = t.log(ctx, LogEntry{Kind: KindNewContact, LocalContactID: id})
	}
	return c, err
}

func (t *Tx) addDetail(ctx context.Context, source Source, c contact.Change, current int64) (contact.Change, error) {
	cid, err := t.resolveContact(ctx, c, current)
	if err != nil {
		return c, err
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO details (contact_id, key, value, flags, server_id, store_id, position)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM details WHERE contact_id = ?))
	`, cid, c.Key.String(), c.Value, uint32(c.Flags), c.Server.Detail, c.Store.Detail, cid)
	if err != nil {
		return c, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return c, err
	}
	c.Local = contact.ID{Contact: cid, Detail: id}
	return c, t.detailChanged(ctx, source, cid, id)
}

func (t *Tx) updateDetail(ctx context.Context, source Source, c contact.Change) (contact.Change, error) {
	row, err := t.resolveDetail(ctx, c)
	if err != nil {
		return c, err
	}
	_, err = t.tx.ExecContext(ctx, `
		UPDATE details SET value = ?, flags = ?,
			server_id = CASE WHEN ? != -1 THEN ? ELSE server_id END,
			store_id = CASE WHEN ? != -1 THEN ? ELSE store_id END
		WHERE id = ?
	`, c.Value, uint32(c.Flags), c.Server.Detail, c.Server.Detail, c.Store.Detail, c.Store.Detail, row.ID)
	if err != nil {
		return c, err
	}
	c.Local = contact.ID{Contact: row.ContactID, Detail: row.ID}
	if source == SourceServer {
		// значение сервера заменяет неотправленную правку устройства
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM change_log WHERE kind = ? AND detail_id = ?`, string(KindModifiedDetail), row.ID); err != nil {
			return c, err
		}
	}
	return c, t.detailChanged(ctx, source, row.ContactID, row.ID)
}

func (t *Tx) deleteDetail(ctx context.Context, source Source, c contact.Change) (contact.Change, error) {
	row, err := t.resolveDetail(ctx, c)
	if err != nil {
		return c, err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM details WHERE id = ?`, row.ID); err != nil {
		return c, err
	}
	c.Local = contact.ID{Contact: row.ContactID, Detail: row.ID}
	t.touched[row.ContactID] = true

	switch source {
	case SourceDevice:
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM change_log WHERE kind = ? AND detail_id = ?`, string(KindModifiedDetail), row.ID); err != nil {
			return c, err
		}
		if row.ServerID != contact.InvalidID {
			serverContact, err := t.serverContactID(ctx, row.ContactID)
			if err != nil {
				return c, err
			}
			return c, t.log(ctx, LogEntry{
				Kind:            KindDeletedDetail,
				LocalContactID:  row.ContactID,
				LocalDetailID:   contact.InvalidID,
				ServerContactID: serverContact,
				ServerDetailID:  row.ServerID,
			})
		}
	case SourceServer:
		return c, t.markNative(ctx, row.ContactID)
	}
	return c, nil
}

func (t *Tx) deleteContact(ctx context.Context, source Source, c contact.Change) (contact.Change, error) {
	cid, err := t.resolveContact(ctx, c, contact.InvalidID)
	if err != nil {
		return c, err
	}
	var serverID, storeID int64
	if err := t.tx.QueryRowContext(ctx, `SELECT server_id, store_id FROM contacts WHERE id = ?`, cid).Scan(&serverID, &storeID); err != nil {
		return c, err
	}
	c.Local = contact.ID{Contact: cid, Detail: contact.InvalidID}
	delete(t.touched, cid)

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM change_log WHERE contact_id = ? AND kind != ? AND kind != ?`,
		cid, string(KindDeletedContact), string(KindDeletedDetail)); err != nil {
		return c, err
	}

	if source == SourceDevice && serverID != contact.InvalidID {
		if err := t.log(ctx, LogEntry{Kind: KindDeletedContact, LocalContactID: cid, LocalDetailID: contact.InvalidID, ServerContactID: serverID}); err != nil {
			return c, err
		}
	}

	if source == SourceServer && storeID != contact.InvalidID {
		// контакт остается до удаления из адресной книги устройства
		for _, q := range []string{
			`DELETE FROM details WHERE contact_id = ?`,
			`DELETE FROM contact_summary WHERE contact_id = ?`,
			`DELETE FROM contact_groups WHERE contact_id = ?`,
			`DELETE FROM thumbnails WHERE contact_id = ?`,
			`UPDATE contacts SET deleted = 1, native_pending = 1, server_id = -1 WHERE id = ?`,
		} {
			if _, err := t.tx.ExecContext(ctx, q, cid); err != nil {
				return c, err
			}
		}
		return c, nil
	}

	_, err = t.tx.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, cid)
	return c, err
}

func (t *Tx) updateRemoteID(ctx context.Context, c contact.Change) error {
	if c.Local.HasDetail() {
		_, err := t.tx.ExecContext(ctx, `UPDATE details SET server_id = ? WHERE id = ?`, c.Server.Detail, c.Local.Detail)
		return err
	}
	_, err := t.tx.ExecContext(ctx, `UPDATE contacts SET server_id = ? WHERE id = ?`, c.Server.Contact, c.Local.Contact)
	return err
}

func (t *Tx) detailChanged(ctx context.Context, source Source, cid, detailID int64) error {
	t.touched[cid] = true
	switch source {
	case SourceDevice:
		var serverID int64
		var isNew bool
		err := t.tx.QueryRowContext(ctx, `
			SELECT c.server_id, EXISTS(SELECT 1 FROM change_log l WHERE l.contact_id = c.id AND l.kind = ?)
			FROM contacts c WHERE c.id = ?
		`, string(KindNewContact), cid).Scan(&serverID, &isNew)
		if err != nil {
			return err
		}
		if isNew || serverID == contact.InvalidID {
			return nil
		}
		var logged bool
		err = t.tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM change_log WHERE kind = ? AND detail_id = ?)`,
			string(KindModifiedDetail), detailID).Scan(&logged)
		if err != nil || logged {
			return err
		}
		return t.log(ctx, LogEntry{Kind: KindModifiedDetail, LocalContactID: cid, LocalDetailID: detailID})
	case SourceServer:
		return t.markNative(ctx, cid)
	}
	return nil
}

func (t *Tx) markNative(ctx context.Context, cid int64) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE contacts SET native_pending = 1, updated_at = ? WHERE id = ?`, now(), cid)
	return err
}

func (t *Tx) log(ctx context.Context, e LogEntry) error {
	if e.LocalDetailID == 0 {
		e.LocalDetailID = contact.InvalidID
	}
	if e.ServerContactID == 0 {
		e.ServerContactID = contact.InvalidID
	}
	if e.ServerDetailID == 0 {
		e.ServerDetailID = contact.InvalidID
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO change_log (kind, contact_id, detail_id, server_contact_id, server_detail_id, group_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(e.Kind), e.LocalContactID, e.LocalDetailID, e.ServerContactID, e.ServerDetailID, e.GroupID)
	if err != nil {
		return fmt.Errorf("ошибка записи в журнал изменений: %w", err)
	}
	return nil
}

func (t *Tx) resolveContact(ctx context.Context, c contact.Change, current int64) (int64, error) {
	if c.Local.HasContact() {
		return c.Local.Contact, nil
	}
	if current != contact.InvalidID {
		return current, nil
	}
	var id int64
	var err error
	switch {
	case c.Server.HasContact():
		err = t.tx.QueryRowContext(ctx, `SELECT id FROM contacts WHERE server_id = ?`, c.Server.Contact).Scan(&id)
	case c.Store.HasContact():
		err = t.tx.QueryRowContext(ctx, `SELECT id FROM contacts WHERE store_id = ? AND deleted = 0`, c.Store.Contact).Scan(&id)
	default:
		return 0, ErrNoTarget
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoTarget
	}
	return id, err
}

func (t *Tx) resolveDetail(ctx context.Context, c contact.Change) (detailRow, error) {
	var row detailRow
	var key string
	const columns = `SELECT id, contact_id, key, server_id, store_id FROM details `
	var err error
	switch {
	case c.Local.HasDetail():
		err = t.tx.QueryRowContext(ctx, columns+`WHERE id = ?`, c.Local.Detail).
			Scan(&row.ID, &row.ContactID, &key, &row.ServerID, &row.StoreID)
	case c.Server.HasDetail():
		err = t.tx.QueryRowContext(ctx, columns+`WHERE server_id = ?`, c.Server.Detail).
			Scan(&row.ID, &row.ContactID, &key, &row.ServerID, &row.StoreID)
	case c.Store.HasDetail():
		err = t.tx.QueryRowContext(ctx, columns+`WHERE store_id = ? AND key = ?`, c.Store.Detail, c.Key.String()).
			Scan(&row.ID, &row.ContactID, &key, &row.ServerID, &row.StoreID)
	default:
		return row, ErrNoTarget
	}
	if errors.Is(err, sql.ErrNoRows) {
		return row, ErrNoTarget
	}
	if err != nil {
		return row, err
	}
	row.Key, err = contact.ParseKey(key)
	return row, err
}

func (t *Tx) serverContactID(ctx context.Context, cid int64) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, `SELECT server_id FROM contacts WHERE id = ?`, cid).Scan(&id)
	return id, err
}

func (t *Tx) putThumbnail(ctx context.Context, localID int64, data []byte, state int) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO thumbnails (contact_id, data) VALUES (?, ?)
		ON CONFLICT (contact_id) DO UPDATE SET data = excluded.data
	`, localID, data)
	if err != nil {
		return fmt.Errorf("ошибка сохранения миниатюры: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `UPDATE contacts SET thumbnail_state = ? WHERE id = ?`, state, localID)
	return err
}

func (t *Tx) changeGroup(ctx context.Context, localID, groupID int64, add bool) error {
	kind, opposite := KindGroupAdd, KindGroupDelete
	query := `INSERT OR IGNORE INTO contact_groups (contact_id, group_id) VALUES (?, ?)`
	if !add {
		kind, opposite = KindGroupDelete, KindGroupAdd
		query = `DELETE FROM contact_groups WHERE contact_id = ? AND group_id = ?`
	}
	if _, err := t.tx.ExecContext(ctx, query, localID, groupID); err != nil {
		return fmt.Errorf("ошибка изменения группы: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM change_log WHERE kind = ? AND contact_id = ? AND group_id = ?`,
		string(opposite), localID, groupID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	return t.log(ctx, LogEntry{Kind: kind, LocalContactID: localID, GroupID: groupID})
}

// finish обновляет отображаемые имена и проверяет ограничения затронутых контактов
func (t *Tx) finish(ctx context.Context) error {
	for cid := range t.touched {
		details, err := loadDetails(ctx, t.tx, cid)
		if err != nil {
			return err
		}
		if err := contact.CheckSingular(details); err != nil {
			return fmt.Errorf("контакт %d: %w", cid, err)
		}
		name := contact.Contact{Details: details}.DisplayName()
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO contact_summary (contact_id, display_name) VALUES (?, ?)
			ON CONFLICT (contact_id) DO UPDATE SET display_name = excluded.display_name
		`, cid, name)
		if err != nil {
			return fmt.Errorf("ошибка обновления сводки: %w", err)
		}
	}
	return nil
}
