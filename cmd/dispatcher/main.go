// Command dispatcher runs the A role: the payment worker pool that
// talks to the two external providers and persists outcomes to S.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rinha-core/dispatch/internal/config"
	"github.com/rinha-core/dispatch/internal/dispatcher"
	"github.com/rinha-core/dispatch/internal/logging"
	"github.com/rinha-core/dispatch/internal/metrics"
	"github.com/rinha-core/dispatch/internal/transport"
)

const (
	storePoolSize = 10
	probeTimeout  = 5 * time.Second
)

func main() {
	var instanceID string

	root := &cobra.Command{
		Use:   "dispatcher",
		Short: "Payment worker pool with provider retry and failover",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(instanceID)
		},
	}
	root.Flags().StringVar(&instanceID, "instance", "", "label for this dispatcher instance in logs")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(instanceID string) error {
	logger := logging.New("dispatcher", instanceID)
	cfg := config.LoadDispatcher()

	probeCtx, probeCancel := context.WithTimeout(context.Background(), probeTimeout)
	defer probeCancel()
	providers, err := dispatcher.ProbeProviders(probeCtx, cfg.ProcessorURLDefault, cfg.ProcessorURLFallback)
	if err != nil {
		logger.Fatal().Err(err).Msg("provider health probe failed, aborting startup")
	}

	storePool, warnings := transport.NewPool("unix", cfg.RinhaDBSock, storePoolSize)
	for _, w := range warnings {
		logger.Warn().Err(w).Msg("partial store pool warm-up failure")
	}
	if storePool == nil {
		logger.Fatal().Str("socket", cfg.RinhaDBSock).Msg("could not warm up store connection pool")
	}

	d := dispatcher.New(cfg.NumWorkers, cfg.ProcessorURLDefault, cfg.ProcessorURLFallback, storePool, providers, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go d.Run(runCtx)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	logger.Info().Int("workers", cfg.NumWorkers).Str("socket", cfg.APIPath).Msg("dispatcher starting")
	return dispatcher.ListenAndServe(cfg.APIPath, d, logger)
}
