package processor

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"contactsync/internal/app/client/store"
	syncdto "contactsync/internal/domain/sync"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type pendingCall struct {
	id   RequestID
	call Call
}

// fakeHost выполняет вызовы только по запросу теста
type fakeHost struct {
	pending  []pendingCall
	nextID   RequestID
	timeout  time.Duration
	sent     int
	done     bool
	status   Status
	err      error
	complete int
}

func newFakeHost() *fakeHost {
	return &fakeHost{timeout: NoTimeout}
}

func (h *fakeHost) Send(call Call) RequestID {
	h.nextID++
	h.sent++
	h.pending = append(h.pending, pendingCall{id: h.nextID, call: call})
	return h.nextID
}

func (h *fakeHost) SetTimeout(d time.Duration) {
	h.timeout = d
}

func (h *fakeHost) Complete(status Status, err error) {
	h.done = true
	h.complete++
	h.status = status
	h.err = err
	h.timeout = NoTimeout
}

// pop выполняет первый ожидающий вызов
func (h *fakeHost) pop(ctx context.Context) Response {
	p := h.pending[0]
	h.pending = h.pending[1:]
	payload, err := p.call(ctx)
	return Response{ID: p.id, Payload: payload, Err: err}
}

// drive доводит процессор до завершения, доставляя ответы и срабатывания таймера
func drive(t *testing.T, p Processor, h *fakeHost) {
	t.Helper()
	ctx := context.Background()
	p.Start(ctx)
	for step := 0; !h.done; step++ {
		require.Less(t, step, 10000, "processor does not finish")
		switch {
		case len(h.pending) > 0:
			p.OnResponse(ctx, h.pop(ctx))
		case h.timeout == 0:
			h.timeout = NoTimeout
			p.OnTimeout(ctx)
		default:
			t.Fatalf("processor is stuck: no requests and no timer")
		}
	}
}

// fakeServer сервер в памяти, запоминающий запросы
type fakeServer struct {
	mu       sync.Mutex
	requests []string
	nextID   int64

	changes      func(req syncdto.ChangesRequest) (*syncdto.ChangesResponse, error)
	pushContacts func(req syncdto.PushContactsRequest) (*syncdto.PushContactsResponse, error)
	pushDetails  func(req syncdto.PushDetailsRequest) (*syncdto.PushDetailsResponse, error)
	revision     int64

	changeRequests  []syncdto.ChangesRequest
	contactRequests []syncdto.PushContactsRequest
	detailRequests  []syncdto.PushDetailsRequest
	deletedContacts []int64
	deletedDetails  []syncdto.DetailRef
	groupsAdded     []syncdto.GroupMember
	groupsRemoved   []syncdto.GroupMember
	thumbnails      map[int64][]byte
	profile         *syncdto.Profile
}

func newFakeServer() *fakeServer {
	return &fakeServer{nextID: 1000, thumbnails: make(map[int64][]byte)}
}

func (s *fakeServer) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, name)
}

func (s *fakeServer) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r == name {
			n++
		}
	}
	return n
}

func (s *fakeServer) FetchChanges(_ context.Context, req syncdto.ChangesRequest) (*syncdto.ChangesResponse, error) {
	s.record("changes")
	s.changeRequests = append(s.changeRequests, req)
	if s.changes != nil {
		return s.changes(req)
	}
	return &syncdto.ChangesResponse{Status: "Ok", Anchor: req.Anchor, Page: req.Page, NumberOfPages: 1}, nil
}

func (s *fakeServer) PushContacts(_ context.Context, req syncdto.PushContactsRequest) (*syncdto.PushContactsResponse, error) {
	s.record("push_contacts")
	s.contactRequests = append(s.contactRequests, req)
	if s.pushContacts != nil {
		return s.pushContacts(req)
	}
	resp := &syncdto.PushContactsResponse{Status: "Ok", Revision: s.bump()}
	for _, c := range req.Contacts {
		ack := syncdto.ContactAck{ID: s.allocID()}
		for range c.Details {
			ack.DetailIDs = append(ack.DetailIDs, s.allocID())
		}
		resp.Contacts = append(resp.Contacts, ack)
	}
	return resp, nil
}

func (s *fakeServer) PushDetails(_ context.Context, req syncdto.PushDetailsRequest) (*syncdto.PushDetailsResponse, error) {
	s.record("push_details")
	s.detailRequests = append(s.detailRequests, req)
	if s.pushDetails != nil {
		return s.pushDetails(req)
	}
	resp := &syncdto.PushDetailsResponse{Status: "Ok", Revision: s.bump()}
	for _, d := range req.Details {
		id := d.Detail.ID
		if id == syncdto.InvalidID {
			id = s.allocID()
		}
		resp.IDs = append(resp.IDs, id)
	}
	return resp, nil
}

func (s *fakeServer) DeleteContacts(_ context.Context, req syncdto.DeleteContactsRequest) (*syncdto.AckResponse, error) {
	s.record("delete_contacts")
	s.deletedContacts = append(s.deletedContacts, req.IDs...)
	return &syncdto.AckResponse{Status: "Ok", Revision: s.bump(), Count: len(req.IDs)}, nil
}

func (s *fakeServer) DeleteDetails(_ context.Context, req syncdto.DeleteDetailsRequest) (*syncdto.AckResponse, error) {
	s.record("delete_details")
	s.deletedDetails = append(s.deletedDetails, req.Details...)
	return &syncdto.AckResponse{Status: "Ok", Revision: s.bump(), Count: len(req.Details)}, nil
}

func (s *fakeServer) AddGroupMembers(_ context.Context, req syncdto.GroupMembersRequest) (*syncdto.AckResponse, error) {
	s.record("groups_add")
	s.groupsAdded = append(s.groupsAdded, req.Members...)
	return &syncdto.AckResponse{Status: "Ok", Revision: s.bump(), Count: len(req.Members)}, nil
}

func (s *fakeServer) RemoveGroupMembers(_ context.Context, req syncdto.GroupMembersRequest) (*syncdto.AckResponse, error) {
	s.record("groups_remove")
	s.groupsRemoved = append(s.groupsRemoved, req.Members...)
	return &syncdto.AckResponse{Status: "Ok", Revision: s.bump(), Count: len(req.Members)}, nil
}

func (s *fakeServer) FetchThumbnails(_ context.Context, req syncdto.FetchThumbnailsRequest) (*syncdto.FetchThumbnailsResponse, error) {
	s.record("thumbnails_fetch")
	resp := &syncdto.FetchThumbnailsResponse{Status: "Ok"}
	for _, id := range req.ContactIDs {
		if data, ok := s.thumbnails[id]; ok {
			resp.Thumbnails = append(resp.Thumbnails, syncdto.Thumbnail{ContactID: id, Data: data})
		}
	}
	sort.Slice(resp.Thumbnails, func(i, j int) bool { return resp.Thumbnails[i].ContactID < resp.Thumbnails[j].ContactID })
	return resp, nil
}

func (s *fakeServer) PushThumbnails(_ context.Context, req syncdto.PushThumbnailsRequest) (*syncdto.AckResponse, error) {
	s.record("thumbnails_push")
	for _, th := range req.Thumbnails {
		s.thumbnails[th.ContactID] = th.Data
	}
	return &syncdto.AckResponse{Status: "Ok", Revision: s.bump(), Count: len(req.Thumbnails)}, nil
}

func (s *fakeServer) FetchProfile(_ context.Context) (*syncdto.ProfileResponse, error) {
	s.record("profile")
	return &syncdto.ProfileResponse{Status: "Ok", Profile: s.profile}, nil
}

func (s *fakeServer) allocID() int64 {
	s.nextID++
	return s.nextID
}

func (s *fakeServer) bump() int64 {
	s.revision++
	return s.revision
}

func newTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "contacts.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
