package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"contactsync/cmd/client/cmd/ui"
	"contactsync/internal/app/client"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Состояние синхронизации",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		st, err := app.Status(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"authenticated":       st.Authenticated,
				"first_time_complete": st.FirstTimeComplete,
				"state":               st.State.String(),
				"next_run_time":       st.NextRunTime,
				"contacts":            st.Contacts,
				"pending_changes":     st.PendingChanges,
				"anchor":              st.Anchor,
			})
		}

		fmt.Println("=== Статус синхронизации ===")
		if st.Authenticated {
			ui.Success.Println("  Устройство зарегистрировано")
		} else {
			ui.Warn.Println("  Устройство не зарегистрировано: contactsync init")
		}
		if st.FirstTimeComplete {
			fmt.Println("  Первая синхронизация выполнена")
		} else {
			ui.Warn.Println("  Первая синхронизация не выполнена")
		}
		fmt.Printf("  Контактов:                %d\n", st.Contacts)
		fmt.Printf("  Изменений к отправке:     %d\n", st.PendingChanges)
		fmt.Printf("  Ревизия сервера:          %d\n", st.Anchor)
		fmt.Printf("  Следующий запуск:         %s\n", formatNextRun(st.NextRunTime))
		return nil
	},
}

func formatNextRun(ms int64) string {
	switch {
	case ms < 0:
		return ui.Faint.Sprint("не запланирован")
	case ms == 0:
		return "сейчас"
	default:
		return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
	}
}
