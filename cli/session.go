package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vitwit/x402-secure/utils"
)

var sessionAppID string

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionNewCmd)
	sessionNewCmd.Flags().StringVar(&sessionAppID, "app-id", "x402secure-cli", "Application id reported to the risk engine")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Risk session operations",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a risk session",
	Long:  "Opens a risk session on the gateway and prints the sid and expiry. Subsequent trace and payment calls reference the sid.",
	Args:  cobra.NoArgs,
	RunE:  runSessionNew,
}

func runSessionNew(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	buyer, err := newBuyerClient(cfg)
	if err != nil {
		return err
	}

	session, err := buyer.CreateRiskSession(cmd.Context(), sessionAppID, nil)
	if err != nil {
		return err
	}

	out, err := utils.NormalizeJSON(session)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
