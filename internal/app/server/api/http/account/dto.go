package account

import "contactsync/internal/domain/account"

type registerInput struct {
	Body account.RegisterRequest
}

type registerOutput struct {
	Body account.RegisterResponse
}
