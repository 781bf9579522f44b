package x402secure

import (
	"context"

	"github.com/vitwit/x402-secure/headers"
	"github.com/vitwit/x402-secure/types"
)

// AgentBuyerClient is a BuyerClient acting on behalf of an AI agent.
// It adds trace building and the composite pay-with-mandate flow.
type AgentBuyerClient struct {
	*BuyerClient

	// AgentID identifies the agent application when the composite flow
	// opens its risk session.
	AgentID string
}

// NewAgentBuyerClient builds an agent buyer client from cfg.
func NewAgentBuyerClient(cfg AgentConfig, opts ...Option) (*AgentBuyerClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	buyer, err := NewBuyerClient(cfg.BuyerConfig, opts...)
	if err != nil {
		return nil, err
	}
	return &AgentBuyerClient{BuyerClient: buyer, AgentID: cfg.AgentID}, nil
}

// CreateTraceBuilder returns a fresh builder scoped to one task.
func (a *AgentBuyerClient) CreateTraceBuilder() *TraceBuilder {
	return NewTraceBuilder()
}

// MakeAgentPayment runs the full agent payment in strict sequence:
// open a risk session, build and submit the trace under it, then the
// inherited verify/settle payment with the same sid and the returned
// tid. Exactly four network calls on success. The first failure aborts
// the remaining steps and propagates; there is no rollback and no
// partial result.
//
// When mandateRef is non-empty the verify and settle calls carry an
// X-AP2-EVIDENCE header binding the payment to the mandate reference.
func (a *AgentBuyerClient) MakeAgentPayment(ctx context.Context, req *types.PaymentRequirements, tb *TraceBuilder, task, mandateRef string) (*types.PaymentResult, error) {
	if tb == nil {
		return nil, types.NewValidationError("trace builder is required")
	}

	var evidence string
	if mandateRef != "" {
		var err error
		evidence, err = headers.BuildAP2Evidence(types.MandateFromRef(mandateRef))
		if err != nil {
			return nil, err
		}
	}

	session, err := a.CreateRiskSession(ctx, a.AgentID, map[string]interface{}{
		"sdk_version": UserAgent,
	})
	if err != nil {
		return nil, stepError("create_session", err)
	}

	trace := tb.Build(task, nil)
	if mandateRef != "" {
		trace.Params = map[string]interface{}{"mandate_reference": mandateRef}
	}

	tid, err := a.SubmitAgentTrace(ctx, session.SID, trace)
	if err != nil {
		return nil, stepError("submit_trace", err)
	}

	return a.pay(ctx, req, session.SID, tid, evidence)
}
