package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signal-golang/siglink/events"
	"github.com/signal-golang/siglink/provisioning"
)

func linkCmd() *cobra.Command {
	var (
		name      string
		qrPNG     string
		noHistory bool
	)
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Show a QR code to scan with the primary device and link to its account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client.Link(ctx, name)
			for {
				ev, err := next(ctx)
				if err != nil {
					return err
				}
				switch e := ev.(type) {
				case events.ProvisioningURLReady:
					qr, err := provisioning.RenderQR(e.URL)
					if err != nil {
						return err
					}
					fmt.Println(qr)
					fmt.Println(e.URL)
					if qrPNG != "" {
						if err := provisioning.WriteQRPNG(e.URL, qrPNG); err != nil {
							return err
						}
						fmt.Printf("QR code written to %s\n", qrPNG)
					}
				case events.LinkingCompleted:
					fmt.Printf("Linked as device %d of %s\n", e.DeviceID, e.ACI)
					if !client.HistoryAvailable() {
						return nil
					}
					if noHistory {
						client.DiscardHistory()
						return nil
					}
					return syncHistory(ctx)
				case events.LinkingFailed:
					return fmt.Errorf("linking failed: %s", e.Reason)
				}
			}
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "device name shown on the primary device")
	cmd.Flags().StringVar(&qrPNG, "qr-png", "", "also write the QR code to this PNG file")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip the message history transfer")
	return cmd
}

func syncHistory(ctx context.Context) error {
	client.SyncHistory(ctx)
	for {
		ev, err := next(ctx)
		if err != nil {
			return err
		}
		switch e := ev.(type) {
		case events.HistorySyncProgress:
			if e.Attempt > 0 {
				fmt.Printf("History sync: %s (attempt %d)\n", e.Stage, e.Attempt)
			} else {
				fmt.Printf("History sync: %s\n", e.Stage)
			}
		case events.HistorySyncCompleted:
			fmt.Printf("Imported %d conversations and %d messages\n", e.Conversations, e.Messages)
			return nil
		case events.HistorySyncFailed:
			return fmt.Errorf("history sync failed: %s", e.Reason)
		}
	}
}

// next waits for the client's next event.
func next(ctx context.Context) (events.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-client.Events():
		if !ok {
			return nil, fmt.Errorf("event stream closed")
		}
		return ev, nil
	}
}
