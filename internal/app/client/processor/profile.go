package processor

import (
	"context"
	"fmt"

	"contactsync/internal/app/client/store"
	syncdto "contactsync/internal/domain/sync"

	"golang.org/x/exp/slog"
)

// Profile загружает профиль учетной записи
type Profile struct {
	host   Host
	server Server
	store  store.Store
	cfg    Config
	log    *slog.Logger
	req    RequestID
}

func NewProfile(host Host, server Server, st store.Store, cfg Config, log *slog.Logger) *Profile {
	return &Profile{
		host:   host,
		server: server,
		store:  st,
		cfg:    cfg.withDefaults(),
		log:    log.With(slog.String("component", "profile")),
	}
}

func (p *Profile) Start(_ context.Context) {
	p.req = p.host.Send(func(ctx context.Context) (any, error) {
		return p.server.FetchProfile(ctx)
	})
	p.host.SetTimeout(p.cfg.RequestTimeout)
}

func (p *Profile) OnResponse(ctx context.Context, resp Response) {
	if resp.ID != p.req {
		p.finish(StatusError, fmt.Errorf("%w: %d", ErrUnknownRequest, resp.ID))
		return
	}
	if resp.Err != nil {
		p.finish(StatusError, fmt.Errorf("failed to fetch profile: %w", resp.Err))
		return
	}
	r, ok := resp.Payload.(*syncdto.ProfileResponse)
	if !ok || r == nil {
		p.finish(StatusError, ErrBadResponse)
		return
	}
	if err := serverError(r.Status, r.Error); err != nil {
		p.finish(StatusError, err)
		return
	}
	if r.Profile != nil {
		err := p.store.SaveProfile(ctx, store.Profile{
			DisplayName: r.Profile.DisplayName,
			Bio:         r.Profile.Bio,
			UpdatedAt:   r.Profile.UpdatedAt,
		})
		if err != nil {
			p.finish(StatusError, fmt.Errorf("failed to save profile: %w", err))
			return
		}
	}
	p.finish(StatusSuccess, nil)
}

func (p *Profile) OnTimeout(_ context.Context) {
	p.finish(StatusError, ErrTimeout)
}

func (p *Profile) Cancel(_ context.Context) {
	p.finish(StatusUserCancelled, nil)
}

func (p *Profile) finish(status Status, err error) {
	if err != nil {
		p.log.Error("profile sync failed", slog.String("error", err.Error()))
	}
	p.host.SetTimeout(NoTimeout)
	p.host.Complete(status, err)
}
