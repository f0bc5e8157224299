package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/signal-golang/siglink/events"
)

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Connect to the chat server and print incoming events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := client.Connect(ctx); err != nil {
				return err
			}
			defer client.Disconnect()
			for {
				ev, err := next(ctx)
				if ctx.Err() != nil {
					return nil
				}
				if err != nil {
					return err
				}
				switch e := ev.(type) {
				case events.MessageReceived:
					m := e.Message
					ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
					fmt.Printf("[%s] %s in %s: %s\n", ts, m.Sender, m.ConversationID, m.Body)
					for _, a := range m.Attachments {
						fmt.Printf("    attachment %s (%s, %d bytes)\n", a.FileName, a.ContentType, a.Size)
					}
				case events.DeliveryReceipt:
					fmt.Printf("delivered %s to %s\n", e.MessageID, e.Recipient)
				case events.ReadReceipt:
					fmt.Printf("read %s by %s\n", e.MessageID, e.Recipient)
				case events.TypingStarted:
					fmt.Printf("%s is typing\n", e.Sender)
				case events.ContactUpdated:
					fmt.Printf("contact %s updated\n", e.ContactID)
				case events.ConnectionStateChanged:
					fmt.Printf("connection %s\n", e.State)
					if e.State == events.Disconnected {
						return nil
					}
				case events.Error:
					fmt.Printf("error: %s\n", e.Message)
				}
			}
		},
	}
}
