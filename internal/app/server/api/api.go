// Сервер синхронизации контактов:
// регистрация учетных записей и выпуск токенов устройств;
// хранение контактов учетной записи с ревизиями и надгробиями удалений;
// постраничная выдача изменений после якоря и прием изменений от устройств.

//POST /api/accounts                  # Регистрация (публичный)
//GET  /api/v1/health                 # Состояние сервиса (публичный)
//POST /api/sync/changes              # Страница изменений (auth)
//POST /api/sync/contacts             # Новые контакты (auth)
//POST /api/sync/details              # Измененные поля (auth)
//POST /api/sync/contacts/delete      # Удаление контактов (auth)
//POST /api/sync/details/delete       # Удаление полей (auth)
//POST /api/sync/groups/add|remove    # Связи с группами (auth)
//POST /api/sync/thumbnails/fetch|push # Миниатюры (auth)
//GET  /api/profile                   # Профиль (auth)

package api

import (
	accountAPI "contactsync/internal/app/server/api/http/account"
	healthAPI "contactsync/internal/app/server/api/http/health"
	"contactsync/internal/app/server/api/http/middleware"
	"contactsync/internal/app/server/api/http/middleware/auth"
	"contactsync/internal/app/server/api/http/middleware/logger"
	"contactsync/internal/app/server/api/http/middleware/requestid"
	syncAPI "contactsync/internal/app/server/api/http/sync"
	"contactsync/internal/app/server/config"
	"contactsync/internal/domain/account"
	"contactsync/internal/domain/sync"
	"contactsync/internal/infrastructure/storage/postgres"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health  *healthAPI.Handler
	Account *accountAPI.Handler
	Sync    *syncAPI.Handler
}

// New создает *chi.Mux со всеми операциями через huma.Register
func New(cfg *config.Config, storage *postgres.Storage, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	humaConfig := huma.DefaultConfig("Contact Sync API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}

	API := humachi.New(mux, humaConfig)

	h := handlers(cfg, storage, log)
	h.Health.SetupRoutes(API)
	h.Account.SetupRoutes(API)
	h.Sync.SetupRoutes(API)

	return mux
}

func handlers(cfg *config.Config, storage *postgres.Storage, log *slog.Logger) *Handlers {
	accountRepo := postgres.NewAccountRepository(storage, log)
	accountService := account.NewService(accountRepo, log)
	authMW := auth.New(accountService, log)
	loggerMW := logger.New(log)
	middlewares := middleware.NewContainer()

	middlewares.Add(requestid.Middleware(), loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, storage, middlewares.GetAllAndClear())

	middlewares.Add(requestid.Middleware(), loggerMW.Middleware())
	accountHandler := accountAPI.NewHandler(accountService, log, middlewares.GetAllAndClear())

	syncRepo := postgres.NewSyncRepository(storage, log)
	syncService := sync.NewService(syncRepo, log, &sync.ServiceConfig{
		DefaultPageSize: 15,
		MaxPageSize:     cfg.Sync.MaxPageSize,
		MaxBatchSize:    cfg.Sync.MaxBatchSize,
	})
	middlewares.Add(requestid.Middleware(), loggerMW.Middleware(), authMW.Middleware())
	syncHandler := syncAPI.NewHandler(syncService, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:  healthHandler,
		Account: accountHandler,
		Sync:    syncHandler,
	}
}
