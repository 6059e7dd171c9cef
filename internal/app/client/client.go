package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"time"

	"golang.org/x/exp/slog"

	"contactsync/internal/app/client/addressbook"
	"contactsync/internal/app/client/config"
	"contactsync/internal/app/client/engine"
	"contactsync/internal/app/client/native"
	"contactsync/internal/app/client/processor"
	"contactsync/internal/app/client/store"
	"contactsync/internal/domain/account"
	"contactsync/internal/domain/contact"
)

// ErrNoToken токен устройства не найден
var ErrNoToken = errors.New("токен не найден. Выполните регистрацию: contactsync init")

type App struct {
	config     *config.Config
	log        *slog.Logger
	httpClient *HTTPClient
	store      *store.SQLite
	book       *addressbook.File
	engine     *engine.Engine

	// run сериализует SyncOnce и Watch: движок обслуживается одним потоком
	run gosync.Mutex
	wg  gosync.WaitGroup
}

// Status сводка состояния клиента
type Status struct {
	Authenticated     bool
	FirstTimeComplete bool
	Mode              engine.Mode
	State             engine.State
	// NextRunTime в миллисекундах Unix; 0 - есть работа, -1 - ничего не запланировано
	NextRunTime    int64
	Contacts       int
	PendingChanges int
	Anchor         int64
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.ConfigDir, 0700); err != nil {
		return nil, fmt.Errorf("ошибка создания каталога %s: %w", cfg.ConfigDir, err)
	}

	profile, err := contact.ProfileByName(cfg.DeviceProfile)
	if err != nil {
		return nil, fmt.Errorf("ошибка профиля устройства: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия хранилища: %w", err)
	}

	book, err := addressbook.OpenFile(cfg.AddressBookPath, profile, cfg.SupportsAccounts, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("ошибка открытия адресной книги: %w", err)
	}

	own := addressbook.Account{Name: cfg.AccountName, Type: cfg.AccountType}
	if cfg.SupportsAccounts {
		if err := book.AddAccount(own); err != nil {
			st.Close()
			return nil, fmt.Errorf("ошибка регистрации учетной записи в адресной книге: %w", err)
		}
	}

	httpCl := NewHTTPClient(cfg, log)

	app := &App{
		config:     cfg,
		log:        log.With(slog.String("component", "app")),
		httpClient: httpCl,
		store:      st,
		book:       book,
	}

	// Загружаем токен если он есть
	if token, err := app.GetToken(); err == nil {
		httpCl.SetToken(token)
		app.log.Debug("Токен загружен")
	}

	factory := engine.NewFactory(engine.Deps{
		Server: httpCl,
		Store:  st,
		Book:   book,
		Processor: processor.Config{
			PageSize:       cfg.PageSize,
			RequestTimeout: cfg.RequestTimeout,
		},
		Native: native.Config{
			BatchSize:            cfg.NativeBatchSize,
			Account:              own,
			ExternalAccountTypes: cfg.ExternalAccountTypes,
		},
		Log: log,
	})

	app.engine, err = engine.New(factory, engine.Options{
		Debounce:  cfg.Debounce,
		StatePath: cfg.StatePath,
	}, log)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("ошибка инициализации движка синхронизации: %w", err)
	}

	return app, nil
}

// Engine возвращает движок синхронизации
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// CheckConnection проверяет доступность сервера
func (a *App) CheckConnection(ctx context.Context) error {
	return a.httpClient.HealthCheck(ctx)
}

// Register создает учетную запись на сервере и сохраняет токен устройства
func (a *App) Register(ctx context.Context, req account.RegisterRequest) (*account.RegisterResponse, error) {
	resp, err := a.httpClient.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := a.SaveToken(resp.Token); err != nil {
		return nil, err
	}
	a.log.Info("Учетная запись зарегистрирована", slog.Int64("account_id", resp.AccountID))
	return resp, nil
}

// IsAuthenticated проверяет наличие токена
func (a *App) IsAuthenticated() bool {
	token, err := a.GetToken()
	return err == nil && token != ""
}

// GetToken возвращает токен из конфигурации или из файла
func (a *App) GetToken() (string, error) {
	if a.config.Token != "" {
		return a.config.Token, nil
	}
	tokenBytes, err := os.ReadFile(a.config.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("ошибка чтения токена: %w", err)
	}
	token := strings.TrimSpace(string(tokenBytes))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// SaveToken сохраняет токен устройства
func (a *App) SaveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(a.config.TokenPath), 0700); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}
	if err := os.WriteFile(a.config.TokenPath, []byte(token), 0600); err != nil {
		return fmt.Errorf("ошибка сохранения токена: %w", err)
	}

	a.httpClient.SetToken(token)
	return nil
}

// resultCollector собирает итоги синхронизаций
type resultCollector struct {
	mu      gosync.Mutex
	results []engine.Result
}

func (c *resultCollector) OnStateChange(engine.Mode, engine.State, engine.State) {}

func (c *resultCollector) OnProgress(engine.State, int) {}

func (c *resultCollector) OnSyncComplete(result engine.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

// SyncOnce запускает полную или серверную синхронизацию и ждет завершения,
// включая фоновый проход миниатюр и выгрузки в адресную книгу
func (a *App) SyncOnce(ctx context.Context, serverOnly bool) ([]engine.Result, error) {
	if !a.IsAuthenticated() {
		return nil, ErrNoToken
	}

	a.run.Lock()
	defer a.run.Unlock()

	collector := &resultCollector{}
	a.engine.RegisterObserver(collector)
	defer a.engine.UnregisterObserver(collector)

	if serverOnly {
		a.engine.AddStartServerSync(0)
	} else {
		a.engine.AddStartFullSync()
	}

	if err := a.engine.RunUntilIdle(ctx); err != nil {
		return collector.results, err
	}

	for _, r := range collector.results {
		if r.Status == processor.StatusError {
			return collector.results, fmt.Errorf("синхронизация %s завершилась с ошибкой: %w", r.Mode, r.Err)
		}
	}
	return collector.results, nil
}

// Watch синхронизирует при внешних изменениях адресной книги и с периодом interval
// для серверных изменений, пока ctx не отменен
func (a *App) Watch(ctx context.Context, interval time.Duration) error {
	if !a.IsAuthenticated() {
		return ErrNoToken
	}

	a.run.Lock()
	defer a.run.Unlock()

	if err := a.book.RegisterObserver(a.engine.OnExternalChange); err != nil {
		return fmt.Errorf("ошибка подписки на адресную книгу: %w", err)
	}
	defer a.book.UnregisterObserver()

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		a.wg.Wait()
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.book.Watch(ctx); err != nil {
			a.log.Error("Ошибка наблюдения за адресной книгой", "error", err)
		}
	}()

	if interval > 0 {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.pollServer(ctx, interval)
		}()
	}

	a.log.Info("Наблюдение запущено",
		slog.String("address_book", a.config.AddressBookPath),
		slog.Duration("interval", interval),
	)

	a.engine.AddStartFullSync()
	err := a.engine.Loop(ctx)
	if errors.Is(err, context.Canceled) {
		a.log.Info("Синхронизация остановлена")
		return nil
	}
	return err
}

func (a *App) pollServer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.engine.AddStartServerSync(0)
		}
	}
}

// Status возвращает сводку состояния
func (a *App) Status(ctx context.Context) (*Status, error) {
	count, err := a.store.CountContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета контактов: %w", err)
	}
	pending, err := a.store.PendingChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения журнала изменений: %w", err)
	}
	anchor, err := a.store.Anchor(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения якоря: %w", err)
	}

	return &Status{
		Authenticated:     a.IsAuthenticated(),
		FirstTimeComplete: a.engine.IsFirstTimeSyncComplete(),
		Mode:              a.engine.Mode(),
		State:             a.engine.State(),
		NextRunTime:       a.engine.NextRunTime(),
		Contacts:          count,
		PendingChanges:    pending,
		Anchor:            anchor,
	}, nil
}

// Contacts возвращает контакты локального хранилища
func (a *App) Contacts(ctx context.Context) ([]contact.Contact, error) {
	return a.store.ListContacts(ctx)
}

// SetPhoto сохраняет фото контакта для выгрузки на сервер при следующей синхронизации
func (a *App) SetPhoto(ctx context.Context, localID int64, path string) error {
	if _, err := a.store.Contact(ctx, localID); err != nil {
		return fmt.Errorf("контакт %d: %w", localID, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ошибка чтения фото: %w", err)
	}
	if err := a.store.SetPhoto(ctx, localID, data); err != nil {
		return fmt.Errorf("ошибка сохранения фото: %w", err)
	}
	a.engine.AddStartServerSync(0)
	return nil
}

// Close освобождает ресурсы
func (a *App) Close() error {
	a.wg.Wait()
	return a.store.Close()
}

type appKey struct{}

// WithApp сохраняет приложение в контексте команды
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

// FromContext возвращает приложение из контекста команды
func FromContext(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey{}).(*App)
	if !ok || app == nil {
		return nil, errors.New("приложение не инициализировано")
	}
	return app, nil
}
