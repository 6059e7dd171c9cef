package sync

import "contactsync/internal/domain/sync"

type changesInput struct {
	Body sync.ChangesRequest
}

type changesOutput struct {
	Body sync.ChangesResponse
}

type pushContactsInput struct {
	Body sync.PushContactsRequest
}

type pushContactsOutput struct {
	Body sync.PushContactsResponse
}

type pushDetailsInput struct {
	Body sync.PushDetailsRequest
}

type pushDetailsOutput struct {
	Body sync.PushDetailsResponse
}

type deleteContactsInput struct {
	Body sync.DeleteContactsRequest
}

type deleteDetailsInput struct {
	Body sync.DeleteDetailsRequest
}

type groupMembersInput struct {
	Body sync.GroupMembersRequest
}

type ackOutput struct {
	Body sync.AckResponse
}

type fetchThumbnailsInput struct {
	Body sync.FetchThumbnailsRequest
}

type fetchThumbnailsOutput struct {
	Body sync.FetchThumbnailsResponse
}

type pushThumbnailsInput struct {
	Body sync.PushThumbnailsRequest
}

type profileInput struct{}

type profileOutput struct {
	Body sync.ProfileResponse
}
