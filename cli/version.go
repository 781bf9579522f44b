package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	x402secure "github.com/vitwit/x402-secure"
	"github.com/vitwit/x402-secure/utils"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out, _ := utils.NormalizeJSON(x402secure.GetVersion())
		fmt.Println(string(out))
	},
}
