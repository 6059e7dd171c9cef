package auth

import (
	"context"
	"net/http"
	"testing"

	"contactsync/internal/domain/account"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/exp/slog"
)

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) Register(ctx context.Context, name, displayName string) (account.Registration, error) {
	args := m.Called(ctx, name, displayName)
	return args.Get(0).(account.Registration), args.Error(1)
}

func (m *MockAccounts) Authenticate(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

type whoamiOutput struct {
	Body struct {
		AccountID int64 `json:"account_id"`
	}
}

func TestAuth_Middleware(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{name: "valid token", header: "Bearer good", wantCode: http.StatusOK},
		{name: "rejected token", header: "Bearer bad", wantCode: http.StatusUnauthorized},
		{name: "missing header", wantCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			accounts := new(MockAccounts)
			accounts.On("Authenticate", mock.Anything, "good").Return(int64(5), nil).Maybe()
			accounts.On("Authenticate", mock.Anything, "bad").Return(int64(0), account.ErrInvalidToken).Maybe()
			_, api := humatest.New(t)
			huma.Register(api, huma.Operation{
				OperationID: "whoami",
				Method:      http.MethodGet,
				Path:        "/whoami",
				Middlewares: huma.Middlewares{New(accounts, slog.Default()).Middleware()},
			}, func(ctx context.Context, _ *struct{}) (*whoamiOutput, error) {
				out := &whoamiOutput{}
				out.Body.AccountID, _ = GetAccountID(ctx)
				return out, nil
			})

			// Act
			var args []any
			if tt.header != "" {
				args = append(args, "Authorization: "+tt.header)
			}
			resp := api.Get("/whoami", args...)

			// Assert
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantCode == http.StatusOK {
				assert.JSONEq(t, `{"account_id":5}`, resp.Body.String())
			}
		})
	}
}
