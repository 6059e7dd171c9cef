package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"contactsync/internal/app/client/config"
	"contactsync/internal/app/client/engine"
	"contactsync/internal/app/client/processor"
	"contactsync/internal/domain/contact"
	syncdto "contactsync/internal/domain/sync"
	"contactsync/internal/utils/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T, serverAddress string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env:             "local",
		ServerAddress:   serverAddress,
		ConfigDir:       dir,
		TokenPath:       filepath.Join(dir, "token"),
		StatePath:       filepath.Join(dir, "state.json"),
		DatabasePath:    filepath.Join(dir, "contacts.db"),
		AddressBookPath: filepath.Join(dir, "addressbook.json"),
		AccountName:     "contactsync",
		AccountType:     "contactsync",
		DeviceProfile:   "full",
		PageSize:        15,
		NativeBatchSize: 50,
		Debounce:        30 * time.Second,
		RequestTimeout:  5 * time.Second,
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := New(cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

// fakeSyncServer сервер без контактов, принимающий выгрузку
type fakeSyncServer struct {
	mu    gosync.Mutex
	paths []string
	auth  []string
}

func (s *fakeSyncServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.Path)
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	s.mu.Unlock()

	var body any
	switch r.URL.Path {
	case "/api/sync/changes":
		body = syncdto.ChangesResponse{Status: "Ok", NumberOfPages: 1}
	case "/api/sync/contacts":
		var req syncdto.PushContactsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := syncdto.PushContactsResponse{Status: "Ok", Revision: 1}
		next := int64(100)
		for _, c := range req.Contacts {
			next++
			ack := syncdto.ContactAck{ID: next}
			for range c.Details {
				next++
				ack.DetailIDs = append(ack.DetailIDs, next)
			}
			resp.Contacts = append(resp.Contacts, ack)
		}
		body = resp
	case "/api/profile":
		body = syncdto.ProfileResponse{Status: "Ok"}
	default:
		body = syncdto.AckResponse{Status: "Ok"}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (s *fakeSyncServer) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func TestApp_TokenRoundTrip(t *testing.T) {
	app := newTestApp(t, newTestConfig(t, "localhost:1"))

	_, err := app.GetToken()
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, app.IsAuthenticated())

	require.NoError(t, app.SaveToken("device-token\n"))

	token, err := app.GetToken()
	require.NoError(t, err)
	assert.Equal(t, "device-token", token)
	assert.True(t, app.IsAuthenticated())
}

func TestApp_SyncRequiresToken(t *testing.T) {
	app := newTestApp(t, newTestConfig(t, "localhost:1"))

	_, err := app.SyncOnce(context.Background(), false)

	assert.ErrorIs(t, err, ErrNoToken)
}

func TestApp_SyncOnce_FirstTime(t *testing.T) {
	// Arrange
	server := &fakeSyncServer{}
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	cfg := newTestConfig(t, srv.URL)
	cfg.Token = "device-token"
	app := newTestApp(t, cfg)
	app.book.Insert(nil, contact.New(contact.KeyName, "Doe;John", contact.FlagNone))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Act
	results, err := app.SyncOnce(ctx, false)

	// Assert
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, engine.ModeFullSyncFirstTime, results[0].Mode)
	assert.Equal(t, processor.StatusSuccess, results[0].Status)
	assert.Equal(t, 1, results[0].Stats.Uploaded)
	assert.Equal(t, engine.ModeBackground, results[1].Mode)

	calls := server.calls()
	assert.Contains(t, calls, "/api/sync/changes")
	assert.Contains(t, calls, "/api/profile")
	assert.Contains(t, calls, "/api/sync/contacts")
	for _, auth := range server.auth {
		assert.Equal(t, "Bearer device-token", auth)
	}

	status, err := app.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.FirstTimeComplete)
	assert.Equal(t, 1, status.Contacts)
	assert.Zero(t, status.PendingChanges)
	assert.Equal(t, engine.StateIdle, status.State)
}

func TestApp_SetPhoto_UnknownContact(t *testing.T) {
	app := newTestApp(t, newTestConfig(t, "localhost:1"))

	err := app.SetPhoto(context.Background(), 42, filepath.Join(t.TempDir(), "photo.jpg"))

	assert.Error(t, err)
}
