package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-sspm/resolvers/internal/connectors/infoblox"
	"github.com/open-sspm/resolvers/internal/connectors/infoblox/mockwapi"
	"github.com/open-sspm/resolvers/internal/logging"
	"github.com/spf13/cobra"
)

var (
	infobloxMockAddr     string
	infobloxMockUsername string
	infobloxMockPassword string
	infobloxMockVersion  string
)

var infobloxMockCmd = &cobra.Command{
	Use:         "infoblox-mock",
	Short:       "Serve an in-memory Infoblox WAPI for local development.",
	Args:        cobra.NoArgs,
	Annotations: structuredLogging(),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger, err := logging.BootstrapFromEnv(logging.BootstrapOptions{Command: cmd.CommandPath(), Writer: cmd.ErrOrStderr()})
		if err != nil {
			return err
		}
		srv := mockwapi.New(mockwapi.Options{
			Username: infobloxMockUsername,
			Password: infobloxMockPassword,
			Version:  infobloxMockVersion,
			Logger:   logger,
		})
		return srv.ListenAndServe(ctx, infobloxMockAddr)
	},
}

func init() {
	infobloxMockCmd.Flags().StringVar(&infobloxMockAddr, "addr", "127.0.0.1:8089", "Listen address")
	infobloxMockCmd.Flags().StringVar(&infobloxMockUsername, "username", "admin", "Basic auth user (empty disables auth)")
	infobloxMockCmd.Flags().StringVar(&infobloxMockPassword, "password", "infoblox", "Basic auth password")
	infobloxMockCmd.Flags().StringVar(&infobloxMockVersion, "wapi-version", infoblox.DefaultWAPIVersion, "Accepted WAPI version (empty accepts any)")
}
