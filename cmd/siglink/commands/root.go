package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/signal-golang/siglink"
)

var (
	configFile string
	client     *siglink.Client
)

func Execute() error {
	root := &cobra.Command{
		Use:          "siglink",
		Short:        "Link this machine as a secondary device and browse its history",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := siglink.LoadConfig(configFile)
			if err != nil {
				return err
			}
			client, err = siglink.Setup(cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if client == nil {
				return nil
			}
			return client.Close()
		},
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yml", "configuration file")

	root.AddCommand(linkCmd(), listenCmd(), statusCmd(), conversationsCmd(), messagesCmd(), contactsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return root.ExecuteContext(ctx)
}
