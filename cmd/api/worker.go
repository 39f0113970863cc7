package main

import (
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// workerCmd runs only the outbox relay, for deployments that keep it out
// of the API processes.
func workerCmd(load loader) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Relay outbox events to the message broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(cfg.Database, log)
			if err != nil {
				return err
			}
			defer store.Close()

			broker, err := newBroker(cfg.Redis, log)
			if err != nil {
				return err
			}
			defer broker.Close()

			reg, m := newRegistry(cfg.Metrics, "worker")
			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error(err, "metrics server failed")
					}
				}()
				defer srv.Close()
			}

			log.Info("starting outbox worker", "batch_size", cfg.Outbox.BatchSize, "poll_interval", cfg.Outbox.PollInterval.String())
			newOutboxProcessor(cfg.Outbox, store, broker, log, m).Start(ctx)
			log.Info("outbox worker stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9091", "address for the /metrics endpoint, empty to disable")
	return cmd
}
