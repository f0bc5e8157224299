package commands

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/signal-golang/siglink/store"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := client.Registration()
			if err != nil {
				return err
			}
			fp, err := client.IdentityFingerprint()
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendRows([]table.Row{
				{"Number", reg.Number},
				{"ACI", reg.ACI},
				{"PNI", reg.PNI},
				{"Device", reg.DeviceID},
				{"Name", reg.DeviceName},
				{"Server", reg.Server},
				{"Fingerprint", fp},
			})
			tw.Render()
			return nil
		},
	}
}

func conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List stored conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			convs, err := client.Store().ListConversations()
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Type", "Name", "Last message", "Unread"})
			for _, c := range convs {
				tw.AppendRow(table.Row{c.ID, c.Type, c.Name, formatMillis(c.LastMessageAt), c.Unread})
			}
			tw.Render()
			return nil
		},
	}
}

func messagesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "messages <conversation>",
		Short: "Show the latest messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := client.Store().ListMessages(args[0], limit)
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Sent", "From", "Status", "Body"})
			for _, m := range msgs {
				from := m.Sender
				if m.Outgoing || m.Sender == store.SelfSender {
					from = "me"
				}
				tw.AppendRow(table.Row{formatMillis(m.Timestamp), from, m.Status, m.Body})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of messages")
	return cmd
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
