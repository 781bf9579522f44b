package x402secure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402-secure/gatewaytest"
	"github.com/vitwit/x402-secure/headers"
	"github.com/vitwit/x402-secure/types"
)

func newTestAgent(t *testing.T, gatewayURL string) *AgentBuyerClient {
	t.Helper()
	agent, err := NewAgentBuyerClient(AgentConfig{
		BuyerConfig: BuyerConfig{
			GatewayURL: gatewayURL,
			SigningKey: testSigningKey,
			AgentDID:   "did:example:agent-1",
		},
		AgentID: "test-agent",
	})
	require.NoError(t, err)
	return agent
}

func testBuilder(agent *AgentBuyerClient) *TraceBuilder {
	return agent.CreateTraceBuilder().
		AddUserRequest("renew the data subscription").
		AddReasoning("renewal is within budget").
		AddToolCall("check_budget", map[string]interface{}{"amount": "1000000"}, "approved")
}

func TestMakeAgentPaymentFourCallsInOrder(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()
	agent := newTestAgent(t, gw.URL())

	result, err := agent.MakeAgentPayment(
		context.Background(),
		testRequirements(),
		testBuilder(agent),
		"renew the data subscription",
		"mandates/subscription-2026.json",
	)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, strings.HasPrefix(result.Transaction, "0x"))
	assert.Equal(t, "base-sepolia", result.Network)

	want := []gatewaytest.Call{
		{Method: http.MethodPost, Path: "/risk/session"},
		{Method: http.MethodPost, Path: "/risk/trace"},
		{Method: http.MethodPost, Path: "/x402/verify"},
		{Method: http.MethodPost, Path: "/x402/settle"},
	}
	assert.Equal(t, want, gw.Calls(), "composite flow is exactly four calls in strict order")
}

func TestMakeAgentPaymentCarriesMandateEvidence(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()
	agent := newTestAgent(t, gw.URL())

	const mandateRef = "mandates/subscription-2026.json"
	_, err := agent.MakeAgentPayment(context.Background(), testRequirements(), testBuilder(agent), "renew", mandateRef)
	require.NoError(t, err)

	for _, path := range []string{"/x402/verify", "/x402/settle"} {
		value := gw.LastHeaders(path).Get(headers.AP2Evidence)
		require.NotEmpty(t, value, "%s must carry evidence when a mandate is referenced", path)

		meta, err := headers.ParseAP2Evidence(value)
		require.NoError(t, err)
		assert.Equal(t, mandateRef, meta.Ref)
		assert.Equal(t, types.MandateFromRef(mandateRef).SHA256, meta.SHA256)
	}

	// The submitted trace records the mandate reference too.
	var sub struct {
		AgentTrace types.AgentTrace `json:"agent_trace"`
	}
	require.NoError(t, json.Unmarshal(gw.LastBody("/risk/trace"), &sub))
	assert.Equal(t, mandateRef, sub.AgentTrace.Params["mandate_reference"])
	assert.Equal(t, "renew", sub.AgentTrace.Task)
	assert.Len(t, sub.AgentTrace.Events, 3)
}

func TestMakeAgentPaymentWithoutMandateOmitsEvidence(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()
	agent := newTestAgent(t, gw.URL())

	_, err := agent.MakeAgentPayment(context.Background(), testRequirements(), testBuilder(agent), "renew", "")
	require.NoError(t, err)

	assert.Empty(t, gw.LastHeaders("/x402/verify").Get(headers.AP2Evidence))
	assert.Empty(t, gw.LastHeaders("/x402/settle").Get(headers.AP2Evidence))
}

func TestMakeAgentPaymentSessionFailureAbortsFlow(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()
	gw.Override("/risk/session", http.StatusInternalServerError, `{"detail":"risk engine down"}`)
	agent := newTestAgent(t, gw.URL())

	_, err := agent.MakeAgentPayment(context.Background(), testRequirements(), testBuilder(agent), "renew", "")
	require.Error(t, err)

	var xe *types.X402Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, types.ErrGatewayError, xe.Code)

	data, ok := xe.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "create_session", data["step"])

	assert.Len(t, gw.Calls(), 1, "first-step failure must stop the flow")
}

func TestMakeAgentPaymentTraceFailureAbortsFlow(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()
	gw.Override("/risk/trace", http.StatusNotFound, `{"detail":"unknown sid"}`)
	agent := newTestAgent(t, gw.URL())

	_, err := agent.MakeAgentPayment(context.Background(), testRequirements(), testBuilder(agent), "renew", "")
	require.Error(t, err)

	var xe *types.X402Error
	require.True(t, errors.As(err, &xe))
	data, ok := xe.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "submit_trace", data["step"])

	assert.Len(t, gw.Calls(), 2, "trace failure must leave verify and settle unissued")
}

func TestMakeAgentPaymentRejectionShortCircuits(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()
	gw.RejectVerify("mandate exceeded")
	agent := newTestAgent(t, gw.URL())

	_, err := agent.MakeAgentPayment(context.Background(), testRequirements(), testBuilder(agent), "renew", "mandates/m1.json")
	require.Error(t, err)

	var xe *types.X402Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, types.ErrPaymentRejected, xe.Code)
	assert.Len(t, gw.Calls(), 3, "settle must not follow a rejected verify")
}

func TestMakeAgentPaymentRequiresBuilder(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()
	agent := newTestAgent(t, gw.URL())

	_, err := agent.MakeAgentPayment(context.Background(), testRequirements(), nil, "renew", "")
	require.Error(t, err)
	assert.Empty(t, gw.Calls())
}

func TestMakeAgentPaymentBuilderReusableAfterFlow(t *testing.T) {
	gw := gatewaytest.New()
	defer gw.Close()
	agent := newTestAgent(t, gw.URL())
	builder := testBuilder(agent)

	_, err := agent.MakeAgentPayment(context.Background(), testRequirements(), builder, "renew", "")
	require.NoError(t, err)

	assert.Equal(t, 3, builder.Len(), "composite flow must not consume the builder")
}

func TestNewAgentBuyerClientRequiresAgentID(t *testing.T) {
	_, err := NewAgentBuyerClient(AgentConfig{
		BuyerConfig: BuyerConfig{GatewayURL: "http://localhost:8000", SigningKey: testSigningKey},
	})
	require.Error(t, err)

	var xe *types.X402Error
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, types.ErrConfigError, xe.Code)
}
