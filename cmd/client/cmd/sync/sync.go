package sync

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"contactsync/cmd/client/cmd/ui"
	"contactsync/internal/app/client"
	"contactsync/internal/app/client/engine"
	"contactsync/internal/app/client/processor"

	"github.com/spf13/cobra"
)

var (
	watch      bool
	serverOnly bool
	interval   time.Duration
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизировать контакты",
	Long: `Синхронизация адресной книги устройства с сервером.

Без флагов выполняется полная синхронизация: загрузка изменений с сервера,
чтение адресной книги, отправка изменений на сервер и выгрузка результата
обратно в адресную книгу.

С флагом --watch клиент остается запущенным: правки адресной книги
синхронизируются через 30 секунд после последнего изменения, а сервер
опрашивается с периодом --interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if !jsonOutput {
			progress := ui.NewProgress(os.Stdout)
			app.Engine().RegisterObserver(progress)
			defer app.Engine().UnregisterObserver(progress)
		}

		if watch {
			fmt.Println("Наблюдение за адресной книгой. Ctrl+C для выхода.")
			return app.Watch(cmd.Context(), interval)
		}

		start := time.Now()
		results, err := app.SyncOnce(cmd.Context(), serverOnly)
		if jsonOutput {
			return printJSON(results, err)
		}
		if err != nil {
			return err
		}

		var total processor.Stats
		for _, r := range results {
			total.Add(r.Stats)
		}
		fmt.Println()
		fmt.Printf("Время выполнения: %v\n", time.Since(start).Round(time.Millisecond))
		ui.Stats(os.Stdout, total)
		return nil
	},
}

func printJSON(results []engine.Result, syncErr error) error {
	type item struct {
		Mode   string          `json:"mode"`
		Status string          `json:"status"`
		Error  string          `json:"error,omitempty"`
		Stats  processor.Stats `json:"stats"`
	}
	out := make([]item, 0, len(results))
	for _, r := range results {
		it := item{Mode: r.Mode.String(), Status: r.Status.String(), Stats: r.Stats}
		if r.Err != nil {
			it.Error = r.Err.Error()
		}
		out = append(out, it)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return syncErr
}

func init() {
	SyncCmd.Flags().BoolVar(&watch, "watch", false, "синхронизировать непрерывно")
	SyncCmd.Flags().BoolVar(&serverOnly, "server-only", false, "только обмен с сервером, без адресной книги")
	SyncCmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "период опроса сервера в режиме --watch")
}
