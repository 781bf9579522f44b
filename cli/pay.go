package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	x402secure "github.com/vitwit/x402-secure"
	"github.com/vitwit/x402-secure/telemetry"
	"github.com/vitwit/x402-secure/utils"
)

var (
	payRequirements string
	payTask         string
	payMandate      string
	payAgentID      string
)

func init() {
	rootCmd.AddCommand(payCmd)
	payCmd.Flags().StringVar(&payRequirements, "requirements", "", "Path to a payment requirements JSON file")
	payCmd.Flags().StringVar(&payTask, "task", "cli demo payment", "Task description recorded in the agent trace")
	payCmd.Flags().StringVar(&payMandate, "mandate", "", "Mandate reference carried as AP2 evidence")
	payCmd.Flags().StringVar(&payAgentID, "agent-id", "x402secure-cli", "Agent id for the risk session")
	_ = payCmd.MarkFlagRequired("requirements")
}

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Run an agent payment against the gateway",
	Long:  "Opens a risk session, submits a minimal agent trace, and runs the verify/settle payment for the first accept option in the requirements file.",
	Args:  cobra.NoArgs,
	RunE:  runPay,
}

func runPay(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(payRequirements)
	if err != nil {
		return fmt.Errorf("read requirements: %w", err)
	}
	requirements, err := utils.ParsePaymentRequirements(data)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	shutdown, err := telemetry.Setup(ctx, "x402secure-cli")
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(ctx) }()

	agentCfg := cfg.Agent
	if agentCfg.AgentID == "" {
		agentCfg.AgentID = payAgentID
	}

	agent, err := x402secure.NewAgentBuyerClient(agentCfg, clientOptions()...)
	if err != nil {
		return err
	}

	ctx, span := telemetry.StartClientSpan(ctx, "cli.pay")
	defer span.End()

	builder := agent.CreateTraceBuilder().
		AddUserRequest(payTask).
		AddReasoning("cli-initiated payment, no model in the loop")

	result, err := agent.MakeAgentPayment(ctx, requirements, builder, payTask, payMandate)
	if err != nil {
		return err
	}

	out, err := utils.NormalizeJSON(result)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
