package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iota-uz/asptt-sync/modules/asptt"
	"github.com/iota-uz/asptt-sync/pkg/application"
	"github.com/iota-uz/asptt-sync/pkg/eventbus"
	"github.com/iota-uz/asptt-sync/pkg/logging"
	"github.com/iota-uz/asptt-sync/pkg/metrics"
	"github.com/iota-uz/asptt-sync/pkg/middleware"
	"github.com/iota-uz/asptt-sync/pkg/server"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var origins string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API under /asptt/api",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, logger, err := loadConfig(g)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if conf.OpenTelemetry.Enabled {
				cleanup, err := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
				if err != nil {
					logger.WithError(err).Warn("tracing disabled")
				}
				defer cleanup()
			}

			pool, err := connect(ctx, conf)
			if err != nil {
				return err
			}
			defer pool.Close()

			app := application.New(&application.ApplicationOptions{
				Pool:     pool,
				EventBus: eventbus.NewEventPublisher(logger),
				Logger:   logger,
			})
			defer app.Shutdown()
			if err := application.LoadModules(app, asptt.NewModule(conf)); err != nil {
				return withCode(exitUsage, err)
			}
			if conf.Prometheus.Enabled {
				app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
			}
			app.RegisterMiddleware(
				middleware.ProvideDB(pool),
				middleware.WithLogger(logger, middleware.LoggerOptions{
					RequestIDHeader: conf.RequestIDHeader,
					OperatorHeader:  conf.OperatorHeader,
				}),
			)

			srv := server.NewHTTPServer(app, nil, nil)
			srv.AllowedOrigins = splitOrigins(origins)
			logger.WithField("address", conf.SocketAddress).Info("asptt.serve.listening")
			if err := srv.Start(ctx, conf.SocketAddress); err != nil {
				return withCode(1, err)
			}
			return writeJSONLine(cmd.OutOrStdout(), map[string]string{"status": "stopped"})
		},
	}
	cmd.Flags().StringVar(&origins, "cors-origins", "", "Comma-separated origins allowed to call the API from a browser")
	return cmd
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
