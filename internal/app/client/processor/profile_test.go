package processor

import (
	"context"
	"testing"
	"time"

	"contactsync/internal/app/client/store"
	syncdto "contactsync/internal/domain/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile *syncdto.Profile
		want    *store.Profile
	}{
		{
			name:    "saves profile",
			profile: &syncdto.Profile{DisplayName: "John", Bio: "hi", UpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
			want:    &store.Profile{DisplayName: "John", Bio: "hi", UpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		},
		{
			name: "no profile on server",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			st := newTestStore(t)
			server := newFakeServer()
			server.profile = tt.profile
			h := newFakeHost()

			// Act
			drive(t, NewProfile(h, server, st, Config{}, slog.Default()), h)

			// Assert
			require.Equal(t, StatusSuccess, h.status, h.err)
			got, err := st.Profile(ctx)
			if tt.want == nil {
				assert.ErrorIs(t, err, store.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.DisplayName, got.DisplayName)
			assert.Equal(t, tt.want.Bio, got.Bio)
			assert.True(t, tt.want.UpdatedAt.Equal(got.UpdatedAt))
		})
	}
}
