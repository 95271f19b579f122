// Command gateway runs the G role: the public HTTP front of the
// payment dispatch core.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/rinha-core/dispatch/internal/config"
	"github.com/rinha-core/dispatch/internal/gateway"
	"github.com/rinha-core/dispatch/internal/logging"
	"github.com/rinha-core/dispatch/internal/transport"
)

const apiPoolSize = 200
const storePoolSize = 10

func main() {
	var addrOverride string

	root := &cobra.Command{
		Use:   "gateway",
		Short: "HTTP ingress and load balancer for the payment dispatch core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addrOverride)
		},
	}
	root.Flags().StringVar(&addrOverride, "addr", "", "override GATEWAY_ADDR")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(addrOverride string) error {
	logger := logging.New("gateway", "")
	cfg := config.LoadGateway()
	if addrOverride != "" {
		cfg.HTTPAddr = addrOverride
	}

	apiPools := make([]*transport.Pool, 0, len(cfg.APISocks))
	for _, sock := range cfg.APISocks {
		pool, warnings := transport.NewPool("unix", sock, apiPoolSize)
		for _, w := range warnings {
			logger.Warn().Err(w).Str("socket", sock).Msg("partial API pool warm-up failure")
		}
		if pool == nil {
			logger.Fatal().Str("socket", sock).Msg("could not warm up API connection pool")
		}
		apiPools = append(apiPools, pool)
	}

	storePool, warnings := transport.NewPool("unix", cfg.RinhaDBSock, storePoolSize)
	for _, w := range warnings {
		logger.Warn().Err(w).Str("socket", cfg.RinhaDBSock).Msg("partial store pool warm-up failure")
	}
	if storePool == nil {
		logger.Fatal().Str("socket", cfg.RinhaDBSock).Msg("could not warm up store connection pool")
	}

	gw := gateway.New(apiPools, storePool, logger)

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("gateway starting")
	return http.ListenAndServe(cfg.HTTPAddr, gw.Router())
}
