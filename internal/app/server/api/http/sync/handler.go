package sync

import (
	"context"

	"contactsync/internal/domain/sync"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"
)

type Handler struct {
	service    sync.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service sync.Servicer, log *slog.Logger, middleware huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With(slog.String("component", "sync_handler")),
		middleware: middleware,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.changesOp(), h.changes)
	huma.Register(api, h.pushContactsOp(), h.pushContacts)
	huma.Register(api, h.pushDetailsOp(), h.pushDetails)
	huma.Register(api, h.deleteContactsOp(), h.deleteContacts)
	huma.Register(api, h.deleteDetailsOp(), h.deleteDetails)
	huma.Register(api, h.addGroupMembersOp(), h.addGroupMembers)
	huma.Register(api, h.removeGroupMembersOp(), h.removeGroupMembers)
	huma.Register(api, h.fetchThumbnailsOp(), h.fetchThumbnails)
	huma.Register(api, h.pushThumbnailsOp(), h.pushThumbnails)
	huma.Register(api, h.profileOp(), h.profile)
}

func (h *Handler) changes(ctx context.Context, input *changesInput) (*changesOutput, error) {
	response, err := h.service.Changes(ctx, input.Body)
	if err != nil {
		h.log.Debug("changes failed", slog.String("error", err.Error()))
		return &changesOutput{
			Body: sync.ChangesResponse{
				Status: "Error",
				Error:  err.Error(),
			},
		}, nil
	}

	return &changesOutput{
		Body: *response,
	}, nil
}

func (h *Handler) pushContacts(ctx context.Context, input *pushContactsInput) (*pushContactsOutput, error) {
	response, err := h.service.PushContacts(ctx, input.Body)
	if err != nil {
		return &pushContactsOutput{
			Body: sync.PushContactsResponse{
				Status: "Error",
				Error:  err.Error(),
			},
		}, nil
	}

	return &pushContactsOutput{
		Body: *response,
	}, nil
}

func (h *Handler) pushDetails(ctx context.Context, input *pushDetailsInput) (*pushDetailsOutput, error) {
	response, err := h.service.PushDetails(ctx, input.Body)
	if err != nil {
		return &pushDetailsOutput{
			Body: sync.PushDetailsResponse{
				Status: "Error",
				Error:  err.Error(),
			},
		}, nil
	}

	return &pushDetailsOutput{
		Body: *response,
	}, nil
}

func (h *Handler) deleteContacts(ctx context.Context, input *deleteContactsInput) (*ackOutput, error) {
	return ackResult(h.service.DeleteContacts(ctx, input.Body))
}

func (h *Handler) deleteDetails(ctx context.Context, input *deleteDetailsInput) (*ackOutput, error) {
	return ackResult(h.service.DeleteDetails(ctx, input.Body))
}

func (h *Handler) addGroupMembers(ctx context.Context, input *groupMembersInput) (*ackOutput, error) {
	return ackResult(h.service.AddGroupMembers(ctx, input.Body))
}

func (h *Handler) removeGroupMembers(ctx context.Context, input *groupMembersInput) (*ackOutput, error) {
	return ackResult(h.service.RemoveGroupMembers(ctx, input.Body))
}

func (h *Handler) fetchThumbnails(ctx context.Context, input *fetchThumbnailsInput) (*fetchThumbnailsOutput, error) {
	response, err := h.service.FetchThumbnails(ctx, input.Body)
	if err != nil {
		return &fetchThumbnailsOutput{
			Body: sync.FetchThumbnailsResponse{
				Status: "Error",
				Error:  err.Error(),
			},
		}, nil
	}

	return &fetchThumbnailsOutput{
		Body: *response,
	}, nil
}

func (h *Handler) pushThumbnails(ctx context.Context, input *pushThumbnailsInput) (*ackOutput, error) {
	return ackResult(h.service.PushThumbnails(ctx, input.Body))
}

func (h *Handler) profile(ctx context.Context, _ *profileInput) (*profileOutput, error) {
	response, err := h.service.Profile(ctx)
	if err != nil {
		return &profileOutput{
			Body: sync.ProfileResponse{
				Status: "Error",
				Error:  err.Error(),
			},
		}, nil
	}

	return &profileOutput{
		Body: *response,
	}, nil
}

func ackResult(response *sync.AckResponse, err error) (*ackOutput, error) {
	if err != nil {
		return &ackOutput{
			Body: sync.AckResponse{
				Status: "Error",
				Error:  err.Error(),
			},
		}, nil
	}
	return &ackOutput{Body: *response}, nil
}
