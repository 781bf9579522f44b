package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	x402secure "github.com/vitwit/x402-secure"
	"github.com/vitwit/x402-secure/utils"
)

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.AddCommand(traceViewCmd)
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Agent trace operations",
}

var traceViewCmd = &cobra.Command{
	Use:   "view <tid>",
	Short: "Fetch and pretty-print a stored agent trace",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceView,
}

func runTraceView(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	buyer, err := newBuyerClient(cfg)
	if err != nil {
		return err
	}

	stored, err := buyer.GetAgentTrace(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out, err := utils.NormalizeJSON(stored)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func newBuyerClient(cfg *x402secure.Config) (*x402secure.BuyerClient, error) {
	return x402secure.NewBuyerClient(cfg.Buyer, clientOptions()...)
}
