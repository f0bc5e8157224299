package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/signal-golang/siglink/contacts"
)

func contactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List, export or import the stored contacts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the stored contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.Store().ListContacts()
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"UUID", "Phone", "Name", "Blocked", "Archived"})
			for _, c := range list {
				tw.AppendRow(table.Row{c.UUID, c.Tel, c.Name, c.Blocked, c.Archived})
			}
			tw.Render()
			return nil
		},
	}, &cobra.Command{
		Use:   "export <file>",
		Short: "Write the stored contacts to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client.Store().ListContacts()
			if err != nil {
				return err
			}
			if err := contacts.WriteContacts(args[0], list); err != nil {
				return err
			}
			fmt.Printf("Exported %d contacts\n", len(list))
			return nil
		},
	}, &cobra.Command{
		Use:   "import <file>",
		Short: "Merge contacts from a YAML file into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := contacts.ReadContacts(args[0])
			if err != nil {
				return err
			}
			local, err := client.Store().ListContacts()
			if err != nil {
				return err
			}
			merged := contacts.Merge(local, remote)
			for i := range merged {
				if err := client.Store().SaveContact(&merged[i]); err != nil {
					return err
				}
			}
			fmt.Printf("Stored %d contacts\n", len(merged))
			return nil
		},
	})
	return cmd
}
