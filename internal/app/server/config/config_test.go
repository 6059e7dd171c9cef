package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			env:  map[string]string{"DATABASE_URI": "postgres://localhost/contacts"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsLocal())
				assert.Equal(t, ":8080", cfg.Server.RunAddress)
				assert.Equal(t, "migrations", cfg.DB.Migrations)
				assert.Equal(t, 500, cfg.Sync.MaxPageSize)
			},
		},
		{
			name: "overrides",
			env: map[string]string{
				"DATABASE_URI":  "postgres://db/contacts",
				"APP_ENV":       "prod",
				"RUN_ADDRESS":   ":9000",
				"MAX_PAGE_SIZE": "50",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProd())
				assert.Equal(t, ":9000", cfg.Server.RunAddress)
				assert.Equal(t, 50, cfg.Sync.MaxPageSize)
			},
		},
		{
			name:    "missing database",
			env:     map[string]string{"DATABASE_URI": ""},
			wantErr: true,
		},
		{
			name:    "unknown environment",
			env:     map[string]string{"DATABASE_URI": "postgres://db", "APP_ENV": "staging"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"APP_ENV", "RUN_ADDRESS", "DATABASE_URI", "MIGRATIONS_PATH", "MAX_PAGE_SIZE", "MAX_BATCH_SIZE"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
