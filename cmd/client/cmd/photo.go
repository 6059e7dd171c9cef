package cmd

import (
	"fmt"
	"strconv"

	"contactsync/cmd/client/cmd/ui"
	"contactsync/internal/app/client"

	"github.com/spf13/cobra"
)

var photoCmd = &cobra.Command{
	Use:   "photo <id> <file>",
	Short: "Установить фото контакта",
	Long: `Сохраняет фото контакта в локальном хранилище.
Фото будет отправлено на сервер при следующей синхронизации.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("неверный идентификатор контакта: %s", args[0])
		}

		if err := app.SetPhoto(cmd.Context(), id, args[1]); err != nil {
			return err
		}

		ui.Success.Printf("✓ Фото контакта %d сохранено\n", id)
		return nil
	},
}
