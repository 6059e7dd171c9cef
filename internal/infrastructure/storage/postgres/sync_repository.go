package postgres

import (
	"context"
	"errors"
	"fmt"

	"contactsync/internal/domain/contact"
	"contactsync/internal/domain/sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"
)

// SyncRepository хранилище контактов на PostgreSQL.
// Удаленные контакты и поля остаются как надгробия с ревизией удаления.
type SyncRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

var _ sync.Repository = (*SyncRepository)(nil)

func NewSyncRepository(storage *Storage, log *slog.Logger) *SyncRepository {
	return &SyncRepository{
		pool: storage.Pool(),
		log:  log.With(slog.String("component", "sync_repository")),
	}
}

func (r *SyncRepository) Revision(ctx context.Context, accountID int64) (int64, error) {
	var rev int64
	err := r.pool.QueryRow(ctx, `SELECT revision FROM accounts WHERE id = $1`, accountID).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("get revision: %w", err)
	}
	return rev, nil
}

func (r *SyncRepository) ChangedContacts(ctx context.Context, accountID, anchor int64, offset, limit int) ([]sync.Contact, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM contacts WHERE account_id = $1 AND revision > $2`,
		accountID, anchor).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count changed contacts: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.revision, c.deleted, c.bio, c.photo_path, c.gender, c.sources, c.user_id,
		       EXISTS(SELECT 1 FROM thumbnails t WHERE t.contact_id = c.id),
		       COALESCE((SELECT array_agg(g.group_id ORDER BY g.group_id) FROM contact_groups g WHERE g.contact_id = c.id), '{}')
		FROM contacts c
		WHERE c.account_id = $1 AND c.revision > $2
		ORDER BY c.id
		OFFSET $3 LIMIT $4`,
		accountID, anchor, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list changed contacts: %w", err)
	}
	contacts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (sync.Contact, error) {
		var c sync.Contact
		err := row.Scan(&c.ID, &c.Revision, &c.Deleted, &c.Bio, &c.PhotoPath, &c.Gender,
			&c.Sources, &c.UserID, &c.HasThumbnail, &c.Groups)
		return c, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan contacts: %w", err)
	}

	for i := range contacts {
		c := &contacts[i]
		if c.Deleted {
			*c = sync.Contact{ID: c.ID, Deleted: true, Revision: c.Revision}
			continue
		}
		if c.Details, err = r.details(ctx, c.ID, anchor); err != nil {
			return nil, 0, err
		}
	}
	return contacts, total, nil
}

// details возвращает живые поля контакта и надгробия, появившиеся после якоря
func (r *SyncRepository) details(ctx context.Context, contactID, anchor int64) ([]sync.Detail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, key, value, flags, deleted
		FROM details
		WHERE contact_id = $1 AND (NOT deleted OR revision > $2)
		ORDER BY position, id`,
		contactID, anchor)
	if err != nil {
		return nil, fmt.Errorf("list details: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (sync.Detail, error) {
		var d sync.Detail
		var key string
		var flags int32
		if err := row.Scan(&d.ID, &key, &d.Value, &flags, &d.Deleted); err != nil {
			return d, err
		}
		d.Flags = contact.Flags(flags)
		var err error
		d.Key, err = contact.ParseKey(key)
		if d.Deleted {
			d.Value, d.Flags = "", 0
		}
		return d, err
	})
}

func (r *SyncRepository) CreateContacts(ctx context.Context, accountID int64, contacts []sync.Contact) ([]sync.ContactAck, int64, error) {
	acks := make([]sync.ContactAck, 0, len(contacts))
	rev, err := r.mutate(ctx, accountID, func(tx pgx.Tx, rev int64) error {
		for _, c := range contacts {
			ack := sync.ContactAck{DetailIDs: make([]int64, 0, len(c.Details))}
			err := tx.QueryRow(ctx,
				`INSERT INTO contacts (account_id, revision) VALUES ($1, $2) RETURNING id`,
				accountID, rev).Scan(&ack.ID)
			if err != nil {
				return fmt.Errorf("insert contact: %w", err)
			}
			for _, d := range c.Details {
				id, err := insertDetail(ctx, tx, ack.ID, d, rev)
				if err != nil {
					return err
				}
				ack.DetailIDs = append(ack.DetailIDs, id)
			}
			acks = append(acks, ack)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return acks, rev, nil
}

func (r *SyncRepository) SaveDetails(ctx context.Context, accountID int64, changes []sync.DetailChange) ([]int64, int64, error) {
	ids := make([]int64, 0, len(changes))
	rev, err := r.mutate(ctx, accountID, func(tx pgx.Tx, rev int64) error {
		for _, ch := range changes {
			if err := touchContact(ctx, tx, accountID, ch.ContactID, rev); err != nil {
				return err
			}
			if ch.Detail.ID == sync.InvalidID {
				id, err := insertDetail(ctx, tx, ch.ContactID, ch.Detail, rev)
				if err != nil {
					return err
				}
				ids = append(ids, id)
				continue
			}
			tag, err := tx.Exec(ctx, `
				UPDATE details SET value = $1, flags = $2, revision = $3
				WHERE id = $4 AND contact_id = $5 AND NOT deleted`,
				ch.Detail.Value, int32(ch.Detail.Flags), rev, ch.Detail.ID, ch.ContactID)
			if err != nil {
				return fmt.Errorf("update detail: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("detail %d: %w", ch.Detail.ID, sync.ErrDetailNotFound)
			}
			ids = append(ids, ch.Detail.ID)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return ids, rev, nil
}

func (r *SyncRepository) DeleteContacts(ctx context.Context, accountID int64, ids []int64) (int, int64, error) {
	var n int
	rev, err := r.mutate(ctx, accountID, func(tx pgx.Tx, rev int64) error {
		rows, err := tx.Query(ctx, `
			UPDATE contacts SET deleted = TRUE, revision = $1, bio = '', photo_path = '', gender = '', sources = '{}', user_id = 0
			WHERE account_id = $2 AND id = ANY($3) AND NOT deleted
			RETURNING id`,
			rev, accountID, ids)
		if err != nil {
			return fmt.Errorf("delete contacts: %w", err)
		}
		deleted, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("delete contacts: %w", err)
		}
		n = len(deleted)

		if _, err := tx.Exec(ctx,
			`UPDATE details SET deleted = TRUE, revision = $1, value = '', flags = 0 WHERE contact_id = ANY($2) AND NOT deleted`,
			rev, deleted); err != nil {
			return fmt.Errorf("delete details: %w", err)
		}
		for _, q := range []string{
			`DELETE FROM contact_groups WHERE contact_id = ANY($1)`,
			`DELETE FROM thumbnails WHERE contact_id = ANY($1)`,
		} {
			if _, err := tx.Exec(ctx, q, deleted); err != nil {
				return fmt.Errorf("delete contact data: %w", err)
			}
		}
		return nil
	})
	return n, rev, err
}

func (r *SyncRepository) DeleteDetails(ctx context.Context, accountID int64, refs []sync.DetailRef) (int, int64, error) {
	var n int
	rev, err := r.mutate(ctx, accountID, func(tx pgx.Tx, rev int64) error {
		for _, ref := range refs {
			if err := touchContact(ctx, tx, accountID, ref.ContactID, rev); err != nil {
				if errors.Is(err, sync.ErrContactNotFound) {
					continue
				}
				return err
			}
			tag, err := tx.Exec(ctx, `
				UPDATE details SET deleted = TRUE, revision = $1, value = '', flags = 0
				WHERE id = $2 AND contact_id = $3 AND NOT deleted`,
				rev, ref.DetailID, ref.ContactID)
			if err != nil {
				return fmt.Errorf("delete detail: %w", err)
			}
			n += int(tag.RowsAffected())
		}
		return nil
	})
	return n, rev, err
}

func (r *SyncRepository) AddGroupMembers(ctx context.Context, accountID int64, members []sync.GroupMember) (int, int64, error) {
	return r.changeGroups(ctx, accountID, members,
		`INSERT INTO contact_groups (contact_id, group_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`)
}

func (r *SyncRepository) RemoveGroupMembers(ctx context.Context, accountID int64, members []sync.GroupMember) (int, int64, error) {
	return r.changeGroups(ctx, accountID, members,
		`DELETE FROM contact_groups WHERE contact_id = $1 AND group_id = $2`)
}

func (r *SyncRepository) changeGroups(ctx context.Context, accountID int64, members []sync.GroupMember, query string) (int, int64, error) {
	var n int
	rev, err := r.mutate(ctx, accountID, func(tx pgx.Tx, rev int64) error {
		for _, m := range members {
			if err := touchContact(ctx, tx, accountID, m.ContactID, rev); err != nil {
				return err
			}
			tag, err := tx.Exec(ctx, query, m.ContactID, m.GroupID)
			if err != nil {
				return fmt.Errorf("change group: %w", err)
			}
			n += int(tag.RowsAffected())
		}
		return nil
	})
	return n, rev, err
}

func (r *SyncRepository) Thumbnails(ctx context.Context, accountID int64, contactIDs []int64) ([]sync.Thumbnail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.contact_id, t.data
		FROM thumbnails t JOIN contacts c ON c.id = t.contact_id
		WHERE c.account_id = $1 AND t.contact_id = ANY($2) AND NOT c.deleted
		ORDER BY t.contact_id`,
		accountID, contactIDs)
	if err != nil {
		return nil, fmt.Errorf("list thumbnails: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[sync.Thumbnail])
}

func (r *SyncRepository) SaveThumbnails(ctx context.Context, accountID int64, thumbnails []sync.Thumbnail) (int, int64, error) {
	var n int
	rev, err := r.mutate(ctx, accountID, func(tx pgx.Tx, rev int64) error {
		for _, t := range thumbnails {
			if err := touchContact(ctx, tx, accountID, t.ContactID, rev); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO thumbnails (contact_id, data) VALUES ($1, $2)
				ON CONFLICT (contact_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
				t.ContactID, t.Data)
			if err != nil {
				return fmt.Errorf("save thumbnail: %w", err)
			}
			n++
		}
		return nil
	})
	return n, rev, err
}

func (r *SyncRepository) Profile(ctx context.Context, accountID int64) (*sync.Profile, error) {
	var p sync.Profile
	err := r.pool.QueryRow(ctx,
		`SELECT display_name, bio, profile_updated_at FROM accounts WHERE id = $1`, accountID).
		Scan(&p.DisplayName, &p.Bio, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// mutate увеличивает ревизию учетной записи и выполняет fn в той же транзакции.
// Блокировка строки учетной записи упорядочивает параллельные изменения.
func (r *SyncRepository) mutate(ctx context.Context, accountID int64, fn func(tx pgx.Tx, rev int64) error) (int64, error) {
	var rev int64
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE accounts SET revision = revision + 1 WHERE id = $1 RETURNING revision`,
			accountID).Scan(&rev)
		if err != nil {
			return fmt.Errorf("bump revision: %w", err)
		}
		return fn(tx, rev)
	})
	if err != nil {
		r.log.Error("mutation failed", "account_id", accountID, "error", err)
		return 0, err
	}
	return rev, nil
}

func touchContact(ctx context.Context, tx pgx.Tx, accountID, contactID, rev int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE contacts SET revision = $1 WHERE id = $2 AND account_id = $3 AND NOT deleted`,
		rev, contactID, accountID)
	if err != nil {
		return fmt.Errorf("touch contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact %d: %w", contactID, sync.ErrContactNotFound)
	}
	return nil
}

func insertDetail(ctx context.Context, tx pgx.Tx, contactID int64, d sync.Detail, rev int64) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO details (contact_id, key, value, flags, position, revision)
		VALUES ($1, $2, $3, $4, (SELECT COALESCE(MAX(position), 0) + 1 FROM details WHERE contact_id = $1), $5)
		RETURNING id`,
		contactID, d.Key.String(), d.Value, int32(d.Flags), rev).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert detail: %w", err)
	}
	return id, nil
}
