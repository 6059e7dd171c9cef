package processor

import (
	"context"
	"fmt"

	"contactsync/internal/app/client/store"
	syncdto "contactsync/internal/domain/sync"

	"golang.org/x/exp/slog"
)

// ThumbnailDirection направление передачи миниатюр
type ThumbnailDirection int

const (
	ThumbnailsFetch ThumbnailDirection = iota
	ThumbnailsPush
)

// Thumbnails загружает запрошенные миниатюры с сервера или выгружает измененные фотографии
type Thumbnails struct {
	host      Host
	server    Server
	store     store.Store
	cfg       Config
	log       *slog.Logger
	direction ThumbnailDirection

	queue    []store.Thumbnail
	offset   int
	req      RequestID
	inflight []store.Thumbnail
	stats    Stats
}

func NewThumbnails(host Host, server Server, st store.Store, direction ThumbnailDirection, cfg Config, log *slog.Logger) *Thumbnails {
	name := "thumbnail_fetch"
	if direction == ThumbnailsPush {
		name = "thumbnail_push"
	}
	return &Thumbnails{
		host:      host,
		server:    server,
		store:     st,
		cfg:       cfg.withDefaults(),
		log:       log.With(slog.String("component", name)),
		direction: direction,
	}
}

func (t *Thumbnails) Stats() Stats {
	return t.stats
}

func (t *Thumbnails) Start(ctx context.Context) {
	var err error
	if t.direction == ThumbnailsFetch {
		t.queue, err = t.store.ThumbnailsToFetch(ctx)
	} else {
		t.queue, err = t.store.ThumbnailsToPush(ctx)
	}
	if err != nil {
		t.finish(StatusError, fmt.Errorf("failed to list thumbnails: %w", err))
		return
	}
	t.next()
}

func (t *Thumbnails) next() {
	if t.offset >= len(t.queue) {
		t.finish(StatusSuccess, nil)
		return
	}
	end := min(t.offset+t.cfg.PageSize, len(t.queue))
	t.inflight = t.queue[t.offset:end]
	t.offset = end

	if t.direction == ThumbnailsFetch {
		req := syncdto.FetchThumbnailsRequest{ContactIDs: make([]int64, 0, len(t.inflight))}
		for _, th := range t.inflight {
			req.ContactIDs = append(req.ContactIDs, th.ServerID)
		}
		t.req = t.host.Send(func(ctx context.Context) (any, error) { return t.server.FetchThumbnails(ctx, req) })
	} else {
		req := syncdto.PushThumbnailsRequest{Thumbnails: make([]syncdto.Thumbnail, 0, len(t.inflight))}
		for _, th := range t.inflight {
			req.Thumbnails = append(req.Thumbnails, syncdto.Thumbnail{ContactID: th.ServerID, Data: th.Data})
		}
		t.req = t.host.Send(func(ctx context.Context) (any, error) { return t.server.PushThumbnails(ctx, req) })
	}
	t.host.SetTimeout(t.cfg.RequestTimeout)
}

func (t *Thumbnails) OnResponse(ctx context.Context, resp Response) {
	if resp.ID != t.req {
		t.finish(StatusError, fmt.Errorf("%w: %d", ErrUnknownRequest, resp.ID))
		return
	}
	if resp.Err != nil {
		t.finish(StatusError, fmt.Errorf("failed to transfer thumbnails: %w", resp.Err))
		return
	}

	var err error
	switch r := resp.Payload.(type) {
	case *syncdto.FetchThumbnailsResponse:
		if err = serverError(r.Status, r.Error); err == nil {
			err = t.saveFetched(ctx, r.Thumbnails)
		}
	case *syncdto.AckResponse:
		if err = serverError(r.Status, r.Error); err == nil {
			err = t.markPushed(ctx)
		}
	default:
		err = fmt.Errorf("%w: %T", ErrBadResponse, resp.Payload)
	}
	if err != nil {
		t.finish(StatusError, err)
		return
	}
	t.next()
}

func (t *Thumbnails) saveFetched(ctx context.Context, got []syncdto.Thumbnail) error {
	data := make(map[int64][]byte, len(got))
	for _, th := range got {
		data[th.ContactID] = th.Data
	}
	for _, th := range t.inflight {
		var err error
		if d, ok := data[th.ServerID]; ok && len(d) > 0 {
			err = t.store.SaveThumbnail(ctx, th.LocalID, d)
			t.stats.Thumbnails++
		} else {
			err = t.store.ClearThumbnailRequest(ctx, th.LocalID)
		}
		if err != nil {
			return fmt.Errorf("failed to save thumbnail %d: %w", th.LocalID, err)
		}
	}
	return nil
}

func (t *Thumbnails) markPushed(ctx context.Context) error {
	for _, th := range t.inflight {
		if err := t.store.MarkThumbnailPushed(ctx, th.LocalID); err != nil {
			return fmt.Errorf("failed to mark thumbnail %d: %w", th.LocalID, err)
		}
		t.stats.Thumbnails++
	}
	return nil
}

func (t *Thumbnails) OnTimeout(_ context.Context) {
	t.finish(StatusError, ErrTimeout)
}

func (t *Thumbnails) Cancel(_ context.Context) {
	t.finish(StatusUserCancelled, nil)
}

func (t *Thumbnails) finish(status Status, err error) {
	if err != nil {
		t.log.Error("thumbnail transfer failed", slog.String("error", err.Error()))
	}
	t.inflight = nil
	t.host.SetTimeout(NoTimeout)
	t.host.Complete(status, err)
}
