package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"contactsync/cmd/client/cmd/sync"
	"contactsync/internal/app/client"
	"contactsync/internal/app/client/config"
	"contactsync/internal/utils/logger"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

var (
	cfgFile    string
	debug      bool
	jsonOutput bool
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "contactsync",
	Short: "ContactSync - синхронизация контактов устройства с сервером",
	Long: `ContactSync синхронизирует адресную книгу устройства с сервером
через локальное хранилище контактов.

Изменения с сервера загружаются постранично, правки адресной книги
отправляются на сервер, а результат выгружается обратно в адресную книгу.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFrom(cfgFile)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	if debug {
		cfg.Env = "local"
	}

	log := logger.New(cfg.Env)
	if !debug && !cfg.IsProd() {
		// без --debug только предупреждения
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	app, err := client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}

	cmd.SetContext(client.WithApp(cmd.Context(), app))
	return nil
}

func closeApp(cmd *cobra.Command, _ []string) error {
	app, err := client.FromContext(cmd.Context())
	if err != nil {
		return nil
	}
	return app.Close()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "файл с переменными окружения (.env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера синхронизации")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(contactsCmd)
	rootCmd.AddCommand(photoCmd)
}
