package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"contactsync/cmd/client/cmd/ui"
	"contactsync/internal/app/client"
	"contactsync/internal/domain/contact"

	"github.com/spf13/cobra"
)

var showDeleted bool

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Контакты локального хранилища",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := client.FromContext(cmd.Context())
		if err != nil {
			return err
		}

		all, err := app.Contacts(cmd.Context())
		if err != nil {
			return fmt.Errorf("ошибка получения контактов: %w", err)
		}

		contacts := all[:0]
		for _, c := range all {
			if c.Deleted && !showDeleted {
				continue
			}
			contacts = append(contacts, c)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(contacts)
		}
		return printContactsTable(contacts)
	},
}

func printContactsTable(contacts []contact.Contact) error {
	if len(contacts) == 0 {
		fmt.Println("Контакты не найдены")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVER\tИМЯ\tТЕЛЕФОН\tEMAIL\tПОЛЕЙ")
	for _, c := range contacts {
		name := displayName(c)
		if c.Deleted {
			name = ui.Faint.Sprint(name + " (удален)")
		}
		server := "-"
		if c.ServerID > 0 {
			server = fmt.Sprint(c.ServerID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n",
			c.LocalID, server, name, firstValue(c, contact.KeyPhone), firstValue(c, contact.KeyEmail), len(c.Details))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nВсего: %d\n", len(contacts))
	return nil
}

func displayName(c contact.Contact) string {
	if name := c.DisplayName(); name != "" {
		return name
	}
	return "Без имени"
}

func firstValue(c contact.Contact, key contact.Key) string {
	for _, d := range c.Details {
		if d.Key == key && d.Value != "" {
			return d.Value
		}
	}
	return ""
}

func init() {
	contactsCmd.Flags().BoolVar(&showDeleted, "deleted", false, "показывать удаленные контакты")
}
