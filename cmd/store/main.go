// Command store runs the S role: the persistent, time-indexed
// payment summary store.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/rinha-core/dispatch/internal/config"
	"github.com/rinha-core/dispatch/internal/logging"
	"github.com/rinha-core/dispatch/internal/metrics"
	"github.com/rinha-core/dispatch/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:   "store",
		Short: "Ordered key/value store serving payment Write/Read/Purge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New("store", "")
	cfg := config.LoadStore()

	s, err := store.Open(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not open store database")
	}
	defer s.Close()

	go s.Run()

	stopFlush := make(chan struct{})
	go s.RunFlushLoop(stopFlush)
	defer close(stopFlush)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Warn().Err(err).Msg("metrics server stopped")
		}
	}()

	logger.Info().Str("socket", cfg.RinhaDBSock).Str("db", cfg.DatabaseURL).Msg("store starting")
	return store.ListenAndServe(cfg.RinhaDBSock, s, logger)
}
