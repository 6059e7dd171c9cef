package addressbook

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"contactsync/internal/domain/contact"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestFile_Persistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.json")
	account := Account{Name: "contactsync", Type: "com.contactsync"}

	book, err := OpenFile(path, contact.FullProfile, true, slog.Default())
	require.NoError(t, err)
	require.NoError(t, book.AddAccount(account))
	ids, err := book.AddContact(ctx, &account, []contact.Change{
		contact.New(contact.KeyName, "Doe;John", contact.FlagNone),
		contact.New(contact.KeyPhone, "+1", contact.FlagCell),
	})
	require.NoError(t, err)

	// Act
	reopened, err := OpenFile(path, contact.FullProfile, true, slog.Default())
	require.NoError(t, err)

	// Assert
	accounts, err := reopened.Accounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Account{account}, accounts)

	entry, err := reopened.Contact(ctx, ids[0].Contact)
	require.NoError(t, err)
	require.Len(t, entry.Details, 2)
	assert.Equal(t, ids[1].Detail, entry.Details[1].Store.Detail)

	more, err := reopened.AddContact(ctx, &account, []contact.Change{contact.New(contact.KeyNote, "n", contact.FlagNone)})
	require.NoError(t, err)
	assert.Greater(t, more[0].Contact, ids[1].Detail, "ids keep growing after reopen")
}

func TestFile_WatchNotifiesExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.json")
	book, err := OpenFile(path, contact.FullProfile, false, slog.Default())
	require.NoError(t, err)
	_, err = book.AddContact(context.Background(), nil, []contact.Change{contact.New(contact.KeyNote, "n", contact.FlagNone)})
	require.NoError(t, err)

	var calls atomic.Int32
	require.NoError(t, book.RegisterObserver(func() { calls.Add(1) }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- book.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// Act
	require.NoError(t, os.WriteFile(path, []byte(`{"next_id": 10, "contacts": []}`), 0600))

	// Assert
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, book.Len())

	cancel()
	assert.NoError(t, <-done)
}
