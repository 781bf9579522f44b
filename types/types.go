package types

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// X402Version represents the version of the x402 protocol
type X402Version int

const (
	X402Version1 X402Version = 1
)

// RiskSession is the gateway-issued session a buyer opens before
// submitting traces or paying. The sid is referenced by every
// subsequent call; expiry is server-controlled.
type RiskSession struct {
	SID       string    `json:"sid"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionRequest is the body of a risk-session creation call.
type SessionRequest struct {
	AgentDID string                 `json:"agent_did,omitempty"`
	AppID    string                 `json:"app_id,omitempty"`
	Device   map[string]interface{} `json:"device,omitempty"`
}

// AgentTrace is the execution record of an AI agent run: what it was
// asked to do, the ordered events it produced, and the model settings
// it ran under. Params, Environment and SessionContext are free-form
// and carried verbatim to the gateway.
type AgentTrace struct {
	Task           string                 `json:"task"`
	Events         Events                 `json:"events"`
	ModelConfig    map[string]interface{} `json:"model_config,omitempty"`
	Params         map[string]interface{} `json:"params,omitempty"`
	Environment    map[string]interface{} `json:"environment,omitempty"`
	SessionContext map[string]interface{} `json:"session_context,omitempty"`
}

// Validate checks the trace is submittable.
func (t *AgentTrace) Validate() error {
	if t.Task == "" {
		return fmt.Errorf("agentTrace.task is required")
	}
	return nil
}

// TraceSubmission is the body of a trace upload, keyed by session id.
type TraceSubmission struct {
	SID         string                 `json:"sid"`
	Fingerprint map[string]interface{} `json:"fingerprint,omitempty"`
	Telemetry   map[string]interface{} `json:"telemetry,omitempty"`
	AgentTrace  *AgentTrace            `json:"agent_trace"`
}

// TraceAck is the gateway's acknowledgement of a stored trace.
type TraceAck struct {
	TID string `json:"tid"`
}

// StoredTrace is what the gateway returns when a trace is fetched back.
type StoredTrace struct {
	TID        string      `json:"tid"`
	SID        string      `json:"sid"`
	ReceivedAt time.Time   `json:"received_at"`
	AgentTrace *AgentTrace `json:"agent_trace"`
}

// AcceptOption is one way a merchant accepts payment.
type AcceptOption struct {
	// Chain is the network name (e.g. "base-sepolia").
	Chain string `json:"chain"`

	// Currency is the token symbol (e.g. "USDC").
	Currency string `json:"currency"`

	// Receiver is the merchant's receiving address.
	Receiver string `json:"receiver"`

	// RequiredAmount is the payment amount in atomic units of the
	// asset. Represented as a string because Go does not support uint256.
	RequiredAmount string `json:"requiredAmount"`
}

// Validate checks that the AcceptOption contains all required fields
// and that the amount parses as a non-negative decimal.
func (a *AcceptOption) Validate() error {
	if a.Chain == "" {
		return fmt.Errorf("acceptOption.chain is required")
	}
	if a.Currency == "" {
		return fmt.Errorf("acceptOption.currency is required")
	}
	if a.Receiver == "" {
		return fmt.Errorf("acceptOption.receiver is required")
	}
	if !common.IsHexAddress(a.Receiver) {
		return fmt.Errorf("acceptOption.receiver must be a hex address")
	}
	if a.RequiredAmount == "" {
		return fmt.Errorf("acceptOption.requiredAmount is required")
	}
	dec, err := decimal.NewFromString(a.RequiredAmount)
	if err != nil {
		return fmt.Errorf("acceptOption.requiredAmount is not a valid amount: %w", err)
	}
	if dec.IsNegative() {
		return fmt.Errorf("acceptOption.requiredAmount cannot be negative")
	}
	return nil
}

// PaymentRequirements defines the payments a merchant accepts.
// Constructed seller-side, consumed buyer-side, immutable once passed
// to a payment flow.
type PaymentRequirements struct {
	MerchantName   string         `json:"merchantName"`
	MerchantDomain string         `json:"merchantDomain"`
	Accepts        []AcceptOption `json:"accepts"`
}

// Validate checks merchant identity and that at least one accept
// option is present and well-formed.
func (pr *PaymentRequirements) Validate() error {
	if pr.MerchantName == "" {
		return fmt.Errorf("paymentRequirements.merchantName is required")
	}
	if pr.MerchantDomain == "" {
		return fmt.Errorf("paymentRequirements.merchantDomain is required")
	}
	if len(pr.Accepts) == 0 {
		return fmt.Errorf("paymentRequirements.accepts must not be empty")
	}
	for i := range pr.Accepts {
		if err := pr.Accepts[i].Validate(); err != nil {
			return fmt.Errorf("paymentRequirements.accepts[%d]: %w", i, err)
		}
	}
	return nil
}

// PaymentPayload is the signed EIP-3009 transfer authorization the
// buyer attaches to verify and settle calls.
type PaymentPayload struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`       // uint256, atomic units
	ValidAfter  int64  `json:"validAfter"`  // unix seconds
	ValidBefore int64  `json:"validBefore"` // unix seconds
	Nonce       string `json:"nonce"`       // bytes32 hex
	Signature   string `json:"signature"`   // 65-byte ECDSA signature, 0x hex
}

// VerifyRequest is the body sent to the gateway to verify a payment.
type VerifyRequest struct {
	X402Version         X402Version         `json:"x402Version"`
	PaymentPayload      PaymentPayload      `json:"paymentPayload"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// Validate checks that the VerifyRequest contains all required fields.
func (v *VerifyRequest) Validate() error {
	if v.X402Version <= 0 {
		return fmt.Errorf("x402Version must be greater than 0")
	}
	if v.PaymentPayload.From == "" || v.PaymentPayload.To == "" {
		return fmt.Errorf("paymentPayload from/to are required")
	}
	return v.PaymentRequirements.Validate()
}

// VerifyResponse is the gateway's verification result.
type VerifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

// SettleResponse is the gateway's settlement result.
type SettleResponse struct {
	Success     bool   `json:"success"`
	Payer       string `json:"payer,omitempty"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// PaymentResult is the terminal outcome of a verify+settle exchange.
// The client never retries it; repeating a payment with the same
// sid/tid is the caller's responsibility to avoid double settlement.
type PaymentResult struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
	ErrorReason string `json:"errorReason,omitempty"`
}

// MandateMeta describes the AP2 mandate document a payment executes
// under: a reference, the digest binding it, its MIME type and size.
// It is carried on the wire inside the X-AP2-EVIDENCE header.
type MandateMeta struct {
	Ref    string `json:"ref"`
	SHA256 string `json:"sha256_b64url"`
	MIME   string `json:"mime"`
	Size   int    `json:"size"`
}

// MandateFromRef binds evidence to the reference string itself.
// Used when the caller holds only a mandate reference, not the
// document; the digest is computed over the reference bytes so the
// header stays deterministic without any I/O.
func MandateFromRef(ref string) MandateMeta {
	sum := sha256.Sum256([]byte(ref))
	return MandateMeta{
		Ref:    ref,
		SHA256: base64.RawURLEncoding.EncodeToString(sum[:]),
		MIME:   "application/json",
		Size:   len(ref),
	}
}

// MandateFromFile reads the mandate document at path and binds the
// evidence to its contents.
func MandateFromFile(ref, path string) (MandateMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MandateMeta{}, fmt.Errorf("read mandate document: %w", err)
	}
	sum := sha256.Sum256(data)
	return MandateMeta{
		Ref:    ref,
		SHA256: base64.RawURLEncoding.EncodeToString(sum[:]),
		MIME:   "application/json",
		Size:   len(data),
	}, nil
}
