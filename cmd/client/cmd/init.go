package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"contactsync/cmd/client/cmd/ui"
	"contactsync/internal/app/client"
	"contactsync/internal/domain/account"

	"github.com/spf13/cobra"
)

var (
	accountName     string
	initDisplayName string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Зарегистрировать устройство на сервере",
	Long: `Команда init выполняет первоначальную настройку клиента:
	1. Проверяет соединение с сервером
	2. Создает учетную запись и сохраняет токен устройства
	
После регистрации выполните первую синхронизацию: contactsync sync`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		if app.IsAuthenticated() {
			fmt.Println("Устройство уже зарегистрировано.")
			return nil
		}

		fmt.Println("=== Регистрация ContactSync ===")

		if accountName == "" {
			if !ui.IsTerminal(os.Stdin) {
				return fmt.Errorf("укажите имя учетной записи: --name")
			}
			fmt.Print("Имя учетной записи: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("ошибка чтения имени: %w", err)
			}
			accountName = strings.TrimSpace(line)
		}

		fmt.Println("Проверка соединения с сервером...")
		if err := app.CheckConnection(cmd.Context()); err != nil {
			return fmt.Errorf("сервер недоступен: %w", err)
		}

		resp, err := app.Register(cmd.Context(), account.RegisterRequest{
			Name:        accountName,
			DisplayName: initDisplayName,
		})
		if err != nil {
			return fmt.Errorf("ошибка регистрации: %w", err)
		}

		fmt.Println()
		ui.Success.Printf("✓ Учетная запись %q создана (id %d)\n", accountName, resp.AccountID)
		fmt.Println("Токен устройства сохранен.")
		fmt.Println()
		fmt.Println("Что дальше:")
		fmt.Println("1. Первая синхронизация: contactsync sync")
		fmt.Println("2. Фоновая синхронизация: contactsync sync --watch")
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&accountName, "name", "", "имя учетной записи")
	initCmd.Flags().StringVar(&initDisplayName, "display-name", "", "отображаемое имя")
}
