package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-sspm/resolvers/internal/connectors/registry"
	"github.com/open-sspm/resolvers/internal/instance"
	"github.com/open-sspm/resolvers/internal/metrics"
	"github.com/open-sspm/resolvers/internal/poller"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const pollOnceConcurrency = 4

var (
	pollConnectors []string
	pollOnce       bool
	pollWebhookURL string
)

var pollCmd = &cobra.Command{
	Use:         "poll",
	Short:       "Run connector pollers and emit instances as JSON lines or to a webhook.",
	Args:        cobra.NoArgs,
	Annotations: structuredLogging(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPoll(cmd.Context(), cmd)
	},
}

func init() {
	pollCmd.Flags().StringSliceVar(&pollConnectors, "connectors", nil, "Connector kinds to poll (default: RESOLVERS_CONNECTORS, else every configured connector)")
	pollCmd.Flags().BoolVar(&pollOnce, "once", false, "Run a single pass of every poller and exit")
	pollCmd.Flags().StringVar(&pollWebhookURL, "webhook", "", "POST emitted instances to this URL instead of stdout (default: SUBSCRIBER_WEBHOOK_URL)")
}

func runPoll(parent context.Context, cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := loadRuntime(ctx, cmd.CommandPath(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	kinds := pollConnectors
	if len(kinds) == 0 {
		kinds = rt.cfg.Connectors
	}
	defs, err := rt.reg.Select(rt.deps, kinds)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return configError(errors.New("no connectors configured: set RESOLVERS_CONNECTORS or provide connector credentials"))
	}

	webhookURL := pollWebhookURL
	if webhookURL == "" {
		webhookURL = rt.cfg.WebhookURL
	}
	sub, err := newSubscriber(webhookURL, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	pollers, err := buildPollers(defs, rt.deps, sub)
	if err != nil {
		return err
	}
	if pollOnce {
		return runPollersOnce(ctx, pollers)
	}

	_, metricsErr := metrics.StartServer(ctx, rt.cfg.MetricsAddr)
	group := poller.StartAll(ctx, pollers...)
	rt.logger.Info("polling started", "connectors", len(defs), "pollers", len(pollers))

	select {
	case <-ctx.Done():
	case err = <-metricsErr:
		rt.logger.Error("metrics server failed", "err", err)
	}
	group.Stop()
	rt.logger.Info("polling stopped")
	return err
}

func newSubscriber(webhookURL string, stdout io.Writer) (instance.Subscriber, error) {
	if webhookURL == "" {
		return instance.NewJSONLines(stdout), nil
	}
	return instance.NewWebhook(webhookURL)
}

func buildPollers(defs []registry.ConnectorDefinition, deps registry.Deps, sub instance.Subscriber) ([]*poller.Poller, error) {
	var out []*poller.Poller
	for _, def := range defs {
		conn, err := def.New(deps)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", def.Kind(), err)
		}
		out = append(out, conn.Pollers(sub)...)
	}
	return out, nil
}

// runPollersOnce runs every poller a single time and returns the first failure.
func runPollersOnce(ctx context.Context, pollers []*poller.Poller) error {
	var g errgroup.Group
	g.SetLimit(pollOnceConcurrency)
	for _, p := range pollers {
		g.Go(func() error {
			if err := p.RunOnce(ctx); err != nil {
				return fmt.Errorf("%s %s: %w", p.Connector, p.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
