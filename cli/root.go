// Package cli implements the x402secure command line: risk session
// creation, trace inspection, and demo agent payments against a
// gateway.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	x402secure "github.com/vitwit/x402-secure"
	"github.com/vitwit/x402-secure/logger"
)

var (
	flagGateway string
	flagConfig  string
	flagTimeout time.Duration
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "x402secure",
	Short: "Client for x402-secure gateways",
	Long:  "Create risk sessions, inspect stored agent traces, and run demo payments against an x402-secure gateway.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagGateway, "gateway", "", "Gateway base URL (overrides config file and AGENT_GATEWAY_URL)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "Per-request timeout (default 30s)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers env, optional config file, and flags.
func resolveConfig() (*x402secure.Config, error) {
	cfg := x402secure.FromEnv()
	if flagConfig != "" {
		fileCfg, err := x402secure.LoadConfig(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if flagGateway != "" {
		cfg.Buyer.GatewayURL = flagGateway
	}
	if flagTimeout > 0 {
		cfg.Buyer.Timeout = flagTimeout
	}
	if cfg.Agent.GatewayURL == "" {
		cfg.Agent.BuyerConfig = cfg.Buyer
	}
	return cfg, nil
}

func clientOptions() []x402secure.Option {
	opts := []x402secure.Option{x402secure.WithTracing()}
	if flagVerbose {
		opts = append(opts, x402secure.WithLogger(logger.NewZapLogger("debug")))
	}
	return opts
}
