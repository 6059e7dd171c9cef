package processor

import (
	"context"
	"fmt"
	"testing"

	"contactsync/internal/app/client/store"
	"contactsync/internal/domain/contact"
	syncdto "contactsync/internal/domain/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func newUpload(h Host, server Server, st store.Store) *Upload {
	return NewUpload(h, server, st, Config{PageSize: 15}, slog.Default())
}

// addDeviceContact добавляет контакт так, как это делает импорт из адресной книги
func addDeviceContact(t *testing.T, st *store.SQLite, storeID int64, details ...contact.Change) int64 {
	t.Helper()
	header := contact.New(contact.KeyUnknown, "", contact.FlagNone).As(contact.TypeAddContact)
	header.Store.Contact = storeID
	changes := []contact.Change{header}
	for _, d := range details {
		changes = append(changes, d.As(contact.TypeAddDetail))
	}
	out, err := st.ApplyChanges(context.Background(), store.SourceDevice, changes)
	require.NoError(t, err)
	return out[0].Local.Contact
}

func TestUpload_NothingPending(t *testing.T) {
	// Arrange
	h := newFakeHost()
	server := newFakeServer()
	u := newUpload(h, server, newTestStore(t))

	// Act
	u.Start(context.Background())

	// Assert
	assert.True(t, h.done)
	assert.Equal(t, StatusSuccess, h.status)
	assert.Zero(t, h.sent)
	assert.Empty(t, server.requests)
	assert.Equal(t, UploadIdle, u.State())
}

func TestUpload_BackfillsServerIDsInOrder(t *testing.T) {
	// Arrange
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.SetAnchor(ctx, 7))
	localID := addDeviceContact(t, st, 1, contact.New(contact.KeyPhone, "+123", contact.FlagCell))
	require.NoError(t, st.Update(ctx, func(tx *store.Tx) error {
		return tx.SetSummary(ctx, localID, contact.Summary{Bio: "private", Gender: "f", Groups: []int64{4}})
	}))

	const x = int64(500)
	server := newFakeServer()
	server.pushContacts = func(req syncdto.PushContactsRequest) (*syncdto.PushContactsResponse, error) {
		return &syncdto.PushContactsResponse{
			Status:   "Ok",
			Revision: 8,
			Contacts: []syncdto.ContactAck{{ID: x, DetailIDs: []int64{x + 2}}},
		}, nil
	}
	h := newFakeHost()
	u := newUpload(h, server, st)

	// Act
	drive(t, u, h)

	// Assert
	require.Equal(t, StatusSuccess, h.status, h.err)
	require.Len(t, server.contactRequests, 1)
	sent := server.contactRequests[0].Contacts[0]
	assert.Equal(t, syncdto.InvalidID, sent.ID)
	assert.Empty(t, sent.Bio)
	assert.Empty(t, sent.Gender)
	assert.Empty(t, sent.Groups)
	require.Len(t, sent.Details, 1)
	assert.Equal(t, "+123", sent.Details[0].Value)

	c, err := st.Contact(ctx, localID)
	require.NoError(t, err)
	assert.Equal(t, x, c.ServerID)
	require.Len(t, c.Details, 1)
	assert.Equal(t, x+2, c.Details[0].Server.Detail)

	anchor, err := st.Anchor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), anchor)

	pending, err := st.PendingChanges(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestUpload_SecondRunIsNoop(t *testing.T) {
	// Arrange
	st := newTestStore(t)
	addDeviceContact(t, st, 1, contact.New(contact.KeyName, "Doe;John", contact.FlagNone))
	server := newFakeServer()
	first := newFakeHost()
	drive(t, newUpload(first, server, st), first)
	require.Equal(t, StatusSuccess, first.status)
	require.Equal(t, 1, first.sent)

	// Act
	second := newFakeHost()
	newUpload(second, server, st).Start(context.Background())

	// Assert
	assert.True(t, second.done)
	assert.Equal(t, StatusSuccess, second.status)
	assert.Zero(t, second.sent)
}

func TestUpload_PagesEveryStage(t *testing.T) {
	// Arrange
	ctx := context.Background()
	st := newTestStore(t)
	var changes []contact.Change
	for i := 0; i < 285; i++ {
		header := contact.New(contact.KeyUnknown, "", contact.FlagNone).As(contact.TypeAddContact)
		header.Store.Contact = int64(i + 1)
		changes = append(changes, header,
			contact.New(contact.KeyName, fmt.Sprintf("Doe;John %d", i), contact.FlagNone).As(contact.TypeAddDetail))
	}
	out, err := st.ApplyChanges(ctx, store.SourceDevice, changes)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, st.AddToGroup(ctx, out[i*2].Local.Contact, 9))
	}
	server := newFakeServer()
	h := newFakeHost()
	u := newUpload(h, server, st)

	// Act
	drive(t, u, h)

	// Assert
	require.Equal(t, StatusSuccess, h.status, h.err)
	assert.Equal(t, 20, h.sent)
	assert.Equal(t, 19, server.count("push_contacts"))
	assert.Equal(t, 1, server.count("groups_add"))
	require.Len(t, server.groupsAdded, 3)
	for _, m := range server.groupsAdded {
		assert.NotEqual(t, contact.InvalidID, m.ContactID)
		assert.Equal(t, int64(9), m.GroupID)
	}
	assert.Equal(t, Stats{Pages: 20, Uploaded: 288}, u.Stats())
}

func TestUpload_DetailAndDeletionStages(t *testing.T) {
	// Arrange
	ctx := context.Background()
	st := newTestStore(t)
	seedServerContact(t, st, 100,
		syncdto.Detail{ID: 1001, Key: contact.KeyName, Value: "Doe;John"},
		syncdto.Detail{ID: 1002, Key: contact.KeyPhone, Value: "+100"},
	)
	seedServerContact(t, st, 200, syncdto.Detail{ID: 2001, Key: contact.KeyName, Value: "Roe;Jane"})

	c, err := st.ContactByServerID(ctx, 100)
	require.NoError(t, err)
	name := c.Details[0]
	name.Value = "Doe;Johnny"
	email := contact.New(contact.KeyEmail, "john@example.com", contact.FlagWork)
	email.Local.Contact = c.LocalID
	_, err = st.ApplyChanges(ctx, store.SourceDevice, []contact.Change{
		name.As(contact.TypeUpdateDetail),
		email.As(contact.TypeAddDetail),
		c.Details[1].As(contact.TypeDeleteDetail),
	})
	require.NoError(t, err)

	gone, err := st.ContactByServerID(ctx, 200)
	require.NoError(t, err)
	_, err = st.ApplyChanges(ctx, store.SourceDevice, []contact.Change{
		contact.NewDeletion(contact.TypeDeleteContact, contact.KeyUnknown,
			contact.ID{Contact: gone.LocalID, Detail: contact.InvalidID}, contact.NoID(), contact.NoID()),
	})
	require.NoError(t, err)

	server := newFakeServer()
	server.nextID = 4999
	h := newFakeHost()

	// Act
	drive(t, newUpload(h, server, st), h)

	// Assert
	require.Equal(t, StatusSuccess, h.status, h.err)
	assert.Equal(t, []string{"push_details", "delete_contacts", "delete_details"}, server.requests)

	require.Len(t, server.detailRequests, 1)
	details := server.detailRequests[0].Details
	require.Len(t, details, 2)
	assert.Equal(t, syncdto.DetailChange{ContactID: 100, Detail: syncdto.Detail{ID: 1001, Key: contact.KeyName, Value: "Doe;Johnny"}}, details[0])
	assert.Equal(t, syncdto.InvalidID, details[1].Detail.ID)

	assert.Equal(t, []int64{200}, server.deletedContacts)
	assert.Equal(t, []syncdto.DetailRef{{ContactID: 100, DetailID: 1002}}, server.deletedDetails)

	c, err = st.ContactByServerID(ctx, 100)
	require.NoError(t, err)
	require.Len(t, c.Details, 2)
	assert.Equal(t, int64(5000), c.Details[1].Server.Detail)

	pending, err := st.PendingChanges(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestUpload_ServerRejectsPage(t *testing.T) {
	// Arrange
	ctx := context.Background()
	st := newTestStore(t)
	addDeviceContact(t, st, 1, contact.New(contact.KeyName, "Doe;John", contact.FlagNone))
	server := newFakeServer()
	server.pushContacts = func(syncdto.PushContactsRequest) (*syncdto.PushContactsResponse, error) {
		return &syncdto.PushContactsResponse{Status: "Error", Error: "too many contacts"}, nil
	}
	h := newFakeHost()

	// Act
	drive(t, newUpload(h, server, st), h)

	// Assert
	assert.Equal(t, StatusError, h.status)
	assert.ErrorIs(t, h.err, ErrServer)
	pending, err := st.PendingChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestUpload_AckCountMismatch(t *testing.T) {
	// Arrange
	st := newTestStore(t)
	addDeviceContact(t, st, 1, contact.New(contact.KeyName, "Doe;John", contact.FlagNone))
	server := newFakeServer()
	server.pushContacts = func(syncdto.PushContactsRequest) (*syncdto.PushContactsResponse, error) {
		return &syncdto.PushContactsResponse{Status: "Ok"}, nil
	}
	h := newFakeHost()

	// Act
	drive(t, newUpload(h, server, st), h)

	// Assert
	assert.ErrorIs(t, h.err, ErrBadResponse)
}
