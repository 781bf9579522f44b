package x402secure

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/vitwit/x402-secure/gateway"
	"github.com/vitwit/x402-secure/headers"
	"github.com/vitwit/x402-secure/logger"
	"github.com/vitwit/x402-secure/metrics"
	"github.com/vitwit/x402-secure/types"
	"github.com/vitwit/x402-secure/utils"
	"github.com/vitwit/x402-secure/utils/eip712"
)

// authorizationValidity is the window an EIP-3009 authorization stays
// executable. validAfter is backdated a minute to absorb clock skew.
const (
	authorizationValidity = 10 * time.Minute
	authorizationBackdate = time.Minute
)

// Token domain version used by USDC's EIP-712 domain.
const usdcDomainVersion = "2"

// BuyerClient is the buyer-side client: it opens risk sessions,
// submits agent traces, and runs the two-phase verify/settle payment
// against one gateway. It holds no state across calls beyond the
// constructor-supplied credentials and the reusable HTTP client, and
// is not meant for concurrent in-flight calls.
type BuyerClient struct {
	cfg     BuyerConfig
	key     *ecdsa.PrivateKey
	address string
	gw      *gateway.Client
	logger  logger.Logger
	metrics metrics.Recorder
}

// NewBuyerClient builds a buyer client from cfg. The signing key is
// optional; without it the client can open sessions and submit traces
// but payment calls fail before any I/O.
func NewBuyerClient(cfg BuyerConfig, opts ...Option) (*BuyerClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := buildOptions(opts, cfg.Timeout)

	b := &BuyerClient{
		cfg:     cfg,
		address: cfg.BuyerAddress,
		logger:  o.logger,
		metrics: o.metrics,
	}

	if cfg.SigningKey != "" {
		key, err := utils.PrivateKeyFromHex(cfg.SigningKey)
		if err != nil {
			return nil, &types.X402Error{
				Code:    types.ErrConfigError,
				Message: "signing_key is not a valid private key",
				Err:     err,
			}
		}
		b.key = key
		if b.address == "" {
			b.address = utils.AddressFromPrivateKey(key).Hex()
		}
	}

	b.gw = gateway.New(gateway.Config{
		BaseURL:    cfg.GatewayURL,
		HTTPClient: o.httpClient,
		Logger:     o.logger,
		Metrics:    o.metrics,
		UserAgent:  UserAgent,
		Timeout:    o.timeout,
	})
	return b, nil
}

// Address returns the buyer's EVM address.
func (b *BuyerClient) Address() string {
	return b.address
}

// CreateRiskSession opens a risk session for this buyer. The returned
// sid and expiry are the gateway's values unchanged.
func (b *BuyerClient) CreateRiskSession(ctx context.Context, appID string, device map[string]interface{}) (*types.RiskSession, error) {
	session, err := b.gw.CreateSession(ctx, &types.SessionRequest{
		AgentDID: b.cfg.AgentDID,
		AppID:    appID,
		Device:   device,
	})
	if err != nil {
		return nil, err
	}
	b.logger.Info("risk session created", map[string]any{
		"sid":        session.SID,
		"expires_at": session.ExpiresAt,
	})
	return session, nil
}

// SubmitAgentTrace uploads an agent execution trace under sid and
// returns the gateway-issued trace id unmodified. The sid must come
// from a prior CreateRiskSession; an empty or malformed sid fails
// before any network call.
func (b *BuyerClient) SubmitAgentTrace(ctx context.Context, sid string, trace *types.AgentTrace) (string, error) {
	if sid == "" {
		return "", &types.X402Error{
			Code:    types.ErrMissingSession,
			Message: "sid is required; create a risk session first",
		}
	}
	if err := headers.ValidateSessionID(sid); err != nil {
		return "", err
	}
	if trace == nil {
		return "", types.NewValidationError("agent trace is required")
	}
	if err := trace.Validate(); err != nil {
		return "", &types.X402Error{
			Code:    types.ErrValidation,
			Message: err.Error(),
			Err:     err,
		}
	}

	tid, err := b.gw.SubmitTrace(ctx, &types.TraceSubmission{
		SID:        sid,
		Telemetry:  map[string]interface{}{"sdk_version": UserAgent},
		AgentTrace: trace,
	})
	if err != nil {
		return "", err
	}
	b.logger.Info("agent trace submitted", map[string]any{
		"sid":    sid,
		"tid":    tid,
		"events": len(trace.Events),
	})
	return tid, nil
}

// GetAgentTrace fetches a previously submitted trace back from the
// gateway.
func (b *BuyerClient) GetAgentTrace(ctx context.Context, tid string) (*types.StoredTrace, error) {
	if tid == "" {
		return nil, &types.X402Error{
			Code:    types.ErrMissingTrace,
			Message: "tid is required",
		}
	}
	return b.gw.GetTrace(ctx, tid)
}

// MakePayment runs the two-phase payment: exactly one verify call,
// and when the gateway reports the payment valid, exactly one settle
// call. A rejected verification short-circuits settlement. Failures
// propagate as-is with no retry.
//
// Repeating MakePayment with the same sid/tid is not guaranteed safe
// against double settlement; guarding against replays is the caller's
// responsibility.
func (b *BuyerClient) MakePayment(ctx context.Context, req *types.PaymentRequirements, sid, tid string) (*types.PaymentResult, error) {
	return b.pay(ctx, req, sid, tid, "")
}

func (b *BuyerClient) pay(ctx context.Context, req *types.PaymentRequirements, sid, tid, evidence string) (*types.PaymentResult, error) {
	if req == nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidRequirement,
			Message: "payment requirements are required",
		}
	}
	if err := req.Validate(); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidRequirement,
			Message: err.Error(),
			Err:     err,
		}
	}
	if sid == "" {
		return nil, &types.X402Error{
			Code:    types.ErrMissingSession,
			Message: "sid is required; create a risk session first",
		}
	}
	if err := headers.ValidateSessionID(sid); err != nil {
		return nil, err
	}
	if tid == "" {
		return nil, &types.X402Error{
			Code:    types.ErrMissingTrace,
			Message: "tid is required; submit an agent trace first",
		}
	}
	if b.key == nil {
		return nil, types.NewValidationError("signing key required for payment")
	}

	// The buyer pays against the merchant's first accept option.
	accept := req.Accepts[0]
	payload, err := b.signPayload(accept)
	if err != nil {
		return nil, err
	}

	encoded, err := headers.EncodePayment(payload)
	if err != nil {
		return nil, types.NewValidationError("encode payment payload: %v", err)
	}
	env := headers.Envelope{
		Payment:       encoded,
		PaymentSecure: headers.BuildPaymentSecure(headers.NewTraceContext(ctx, sid, tid)),
		RiskSession:   sid,
		AP2Evidence:   evidence,
	}

	wire := &types.VerifyRequest{
		X402Version:         types.X402Version1,
		PaymentPayload:      *payload,
		PaymentRequirements: *req,
	}

	verdict, err := b.gw.Verify(ctx, wire, env)
	if err != nil {
		return nil, stepError("verify", err)
	}
	if !verdict.IsValid {
		b.logger.Warn("payment rejected by gateway", map[string]any{
			"sid":    sid,
			"tid":    tid,
			"reason": verdict.InvalidReason,
		})
		b.metrics.IncCounter("payment", map[string]string{"operation": "verify", "status": "rejected"})
		return nil, &types.X402Error{
			Code:    types.ErrPaymentRejected,
			Message: fmt.Sprintf("payment verification failed: %s", verdict.InvalidReason),
			Data: map[string]interface{}{
				"step":          "verify",
				"invalidReason": verdict.InvalidReason,
				"payer":         verdict.Payer,
			},
		}
	}

	settled, err := b.gw.Settle(ctx, wire, env)
	if err != nil {
		return nil, stepError("settle", err)
	}
	if !settled.Success {
		b.metrics.IncCounter("payment", map[string]string{"operation": "settle", "status": "failed"})
		return nil, &types.X402Error{
			Code:    types.ErrSettlementFailed,
			Message: fmt.Sprintf("settlement failed: %s", settled.ErrorReason),
			Data: map[string]interface{}{
				"step":        "settle",
				"errorReason": settled.ErrorReason,
				"payer":       settled.Payer,
			},
		}
	}

	b.metrics.IncCounter("payment", map[string]string{"operation": "settle", "status": "ok"})
	b.logger.Info("payment settled", map[string]any{
		"transaction": settled.Transaction,
		"network":     settled.Network,
		"payer":       settled.Payer,
	})
	return &types.PaymentResult{
		Success:     true,
		Transaction: settled.Transaction,
		Network:     settled.Network,
		Payer:       settled.Payer,
	}, nil
}

// signPayload builds and signs the EIP-3009 transfer authorization for
// one accept option.
func (b *BuyerClient) signPayload(accept types.AcceptOption) (*types.PaymentPayload, error) {
	network := types.Network(accept.Chain)
	if !network.Known() {
		return nil, types.NewValidationError("unsupported network: %s", accept.Chain)
	}
	contract, ok := types.AssetAddress(network, accept.Currency)
	if !ok {
		return nil, types.NewValidationError("no %s contract registered on %s", accept.Currency, accept.Chain)
	}

	nonce, err := utils.RandomNonce()
	if err != nil {
		return nil, fmt.Errorf("generate authorization nonce: %w", err)
	}

	now := time.Now()
	validAfter := now.Add(-authorizationBackdate).Unix()
	validBefore := now.Add(authorizationValidity).Unix()

	digest, err := eip712.TransferWithAuthDigest(eip712.Domain{
		Name:              accept.Currency,
		Version:           usdcDomainVersion,
		ChainID:           big.NewInt(network.ChainID()),
		VerifyingContract: contract,
	}, b.address, accept.Receiver, accept.RequiredAmount, validAfter, validBefore, nonce)
	if err != nil {
		return nil, types.NewValidationError("build authorization digest: %v", err)
	}

	signature, err := utils.SignHash(digest.Bytes(), b.key)
	if err != nil {
		return nil, fmt.Errorf("sign authorization: %w", err)
	}

	return &types.PaymentPayload{
		From:        b.address,
		To:          utils.NormalizeAddress(accept.Receiver),
		Value:       accept.RequiredAmount,
		ValidAfter:  validAfter,
		ValidBefore: validBefore,
		Nonce:       nonce,
		Signature:   signature,
	}, nil
}

// stepError records which step of a multi-step flow failed without
// disturbing the error's code or cause.
func stepError(step string, err error) error {
	var xe *types.X402Error
	if errors.As(err, &xe) {
		data, ok := xe.Data.(map[string]interface{})
		if !ok {
			data = make(map[string]interface{}, 1)
		}
		if _, exists := data["step"]; !exists {
			data["step"] = step
			xe.Data = data
		}
		return err
	}
	return fmt.Errorf("%s: %w", step, err)
}
