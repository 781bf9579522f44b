// Package headers builds and validates the x402-secure header envelope:
// the base64 payment payload, the W3C trace-context carrier, the risk
// session id, and the optional AP2 mandate evidence.
package headers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/vitwit/x402-secure/types"
)

// Header names used by the protocol.
const (
	Payment       = "X-PAYMENT"
	PaymentSecure = "X-PAYMENT-SECURE"
	RiskSession   = "X-RISK-SESSION"
	RiskTrace     = "X-RISK-TRACE"
	AP2Evidence   = "X-AP2-EVIDENCE"
)

// Required lists the headers every paid request must carry.
var Required = []string{Payment, PaymentSecure, RiskSession}

const (
	maxPaymentSecureLen = 4096
	maxEvidenceLen      = 2048

	paymentSecureVersion = "w3c.v1"
	evidenceVersion      = "evd.v1"
)

var (
	hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)
	hex16 = regexp.MustCompile(`^[0-9a-f]{16}$`)
	hex2  = regexp.MustCompile(`^[0-9a-f]{2}$`)
)

// Envelope holds the header values attached to a verify or settle call.
type Envelope struct {
	Payment       string
	PaymentSecure string
	RiskSession   string
	RiskTrace     string
	AP2Evidence   string
}

// Apply sets the envelope's non-empty values on h.
func (e Envelope) Apply(h http.Header) {
	if e.Payment != "" {
		h.Set(Payment, e.Payment)
	}
	if e.PaymentSecure != "" {
		h.Set(PaymentSecure, e.PaymentSecure)
	}
	if e.RiskSession != "" {
		h.Set(RiskSession, e.RiskSession)
	}
	if e.RiskTrace != "" {
		h.Set(RiskTrace, e.RiskTrace)
	}
	if e.AP2Evidence != "" {
		h.Set(AP2Evidence, e.AP2Evidence)
	}
}

// EnsurePresent checks that all required headers are set. The returned
// error names the first missing header.
func EnsurePresent(h http.Header) error {
	for _, name := range Required {
		if h.Get(name) == "" {
			return &types.X402Error{
				Code:    types.ErrMissingHeader,
				Message: fmt.Sprintf("%s header required", name),
			}
		}
	}
	return nil
}

// TraceContext is the distributed-tracing carrier inside
// X-PAYMENT-SECURE: a W3C traceparent plus an optional tracestate.
type TraceContext struct {
	TraceParent string
	TraceState  string // url-encoded base64 JSON, optional
}

// NewTraceContext derives a trace context from the active span in ctx,
// or generates fresh non-zero ids when no span is recording. The
// tracestate carries sid and tid so the gateway can correlate the
// payment with its risk session and trace.
func NewTraceContext(ctx context.Context, sid, tid string) TraceContext {
	tc := TraceContext{TraceState: EncodeTraceState(sid, tid)}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		tc.TraceParent = fmt.Sprintf("00-%s-%s-%02x",
			sc.TraceID().String(), sc.SpanID().String(), byte(sc.TraceFlags()))
		return tc
	}

	tc.TraceParent = fmt.Sprintf("00-%s-%s-01", randomHex(16), randomHex(8))
	return tc
}

func randomHex(n int) string {
	b := make([]byte, n)
	for {
		_, _ = rand.Read(b)
		allZero := true
		for _, v := range b {
			if v != 0 {
				allZero = false
				break
			}
		}
		if !allZero {
			return fmt.Sprintf("%x", b)
		}
	}
}

// EncodeTraceState packs sid/tid into the tracestate form the gateway
// expects: url-encoded base64 of a small JSON object.
func EncodeTraceState(sid, tid string) string {
	payload := map[string]string{}
	if sid != "" {
		payload["sid"] = sid
	}
	if tid != "" {
		payload["tid"] = tid
	}
	raw, _ := json.Marshal(payload)
	return url.QueryEscape(base64.StdEncoding.EncodeToString(raw))
}

// DecodeTraceState reverses EncodeTraceState.
func DecodeTraceState(ts string) (sid, tid string, err error) {
	unescaped, err := url.QueryUnescape(ts)
	if err != nil {
		return "", "", fmt.Errorf("tracestate not url-encoded: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(unescaped)
	if err != nil {
		return "", "", fmt.Errorf("tracestate not base64: %w", err)
	}
	var payload map[string]string
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", "", fmt.Errorf("tracestate not JSON: %w", err)
	}
	return payload["sid"], payload["tid"], nil
}

// BuildPaymentSecure renders the X-PAYMENT-SECURE value:
// 'w3c.v1;tp=<traceparent>[;ts=<url-encoded tracestate>]'.
func BuildPaymentSecure(tc TraceContext) string {
	var b strings.Builder
	b.WriteString(paymentSecureVersion)
	b.WriteString(";tp=")
	b.WriteString(tc.TraceParent)
	if tc.TraceState != "" {
		b.WriteString(";ts=")
		b.WriteString(tc.TraceState)
	}
	return b.String()
}

// ParsePaymentSecure parses and validates an X-PAYMENT-SECURE value,
// failing fast on any deviation from the grammar.
func ParsePaymentSecure(value string) (TraceContext, error) {
	if len(value) > maxPaymentSecureLen {
		return TraceContext{}, traceHeaderError("X-PAYMENT-SECURE too large")
	}
	parts := splitSegments(value)
	if len(parts) == 0 || parts[0] != paymentSecureVersion {
		return TraceContext{}, traceHeaderError("Unsupported X-PAYMENT-SECURE version")
	}
	kv, err := parseSegments(parts[1:], "X-PAYMENT-SECURE")
	if err != nil {
		return TraceContext{}, err
	}
	tp, ok := kv["tp"]
	if !ok {
		return TraceContext{}, traceHeaderError("traceparent (tp) required")
	}
	if err := ValidateTraceParent(tp); err != nil {
		return TraceContext{}, err
	}
	return TraceContext{TraceParent: tp, TraceState: kv["ts"]}, nil
}

// ValidateTraceParent checks the W3C format 00-<32hex>-<16hex>-<2hex>
// with non-zero trace and span ids.
func ValidateTraceParent(tp string) error {
	parts := strings.Split(tp, "-")
	if len(parts) != 4 {
		return traceHeaderError("traceparent format invalid")
	}
	version, traceID, spanID, flags := parts[0], parts[1], parts[2], parts[3]
	switch {
	case version != "00":
		return traceHeaderError("traceparent version must be 00")
	case !hex32.MatchString(traceID):
		return traceHeaderError("trace_id invalid")
	case !hex16.MatchString(spanID):
		return traceHeaderError("span_id invalid")
	case !hex2.MatchString(flags):
		return traceHeaderError("flags invalid")
	case traceID == strings.Repeat("0", 32):
		return traceHeaderError("trace_id cannot be all zeros")
	case spanID == strings.Repeat("0", 16):
		return traceHeaderError("span_id cannot be all zeros")
	}
	return nil
}

// BuildAP2Evidence renders the X-AP2-EVIDENCE value:
// 'evd.v1;mr=<ref>;ms=<b64url sha256>;mt=application/json;sz=<bytes>'.
func BuildAP2Evidence(m types.MandateMeta) (string, error) {
	if m.Ref == "" || m.SHA256 == "" {
		return "", evidenceError("Missing required evidence keys")
	}
	mime := m.MIME
	if mime == "" {
		mime = "application/json"
	}
	value := fmt.Sprintf("%s;mr=%s;ms=%s;mt=%s;sz=%d",
		evidenceVersion, m.Ref, m.SHA256, mime, m.Size)
	if len(value) > maxEvidenceLen {
		return "", evidenceError("X-AP2-EVIDENCE too large")
	}
	return value, nil
}

// ParseAP2Evidence parses and validates an X-AP2-EVIDENCE value.
func ParseAP2Evidence(value string) (types.MandateMeta, error) {
	if len(value) > maxEvidenceLen {
		return types.MandateMeta{}, evidenceError("X-AP2-EVIDENCE too large")
	}
	parts := splitSegments(value)
	if len(parts) == 0 || parts[0] != evidenceVersion {
		return types.MandateMeta{}, evidenceError("Unsupported X-AP2-EVIDENCE version")
	}
	kv, err := parseSegments(parts[1:], "X-AP2-EVIDENCE")
	if err != nil {
		return types.MandateMeta{}, err
	}
	mr, ms, mt, sz := kv["mr"], kv["ms"], kv["mt"], kv["sz"]
	if mr == "" || ms == "" || mt == "" || sz == "" {
		return types.MandateMeta{}, evidenceError("Missing required evidence keys")
	}
	if mt != "application/json" {
		return types.MandateMeta{}, evidenceError("mt must be application/json")
	}
	size, err := strconv.Atoi(sz)
	if err != nil || size < 0 {
		return types.MandateMeta{}, evidenceError("sz must be decimal size")
	}
	return types.MandateMeta{Ref: mr, SHA256: ms, MIME: mt, Size: size}, nil
}

// EncodePayment renders the X-PAYMENT value: base64 of the payload JSON.
func EncodePayment(p *types.PaymentPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payment payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodePayment reverses EncodePayment.
func DecodePayment(value string) (*types.PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("X-PAYMENT not base64: %w", err)
	}
	var p types.PaymentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("X-PAYMENT not a payment payload: %w", err)
	}
	return &p, nil
}

// ValidateSessionID checks that a risk session id is a v1 or v4 UUID,
// the only versions the gateway issues.
func ValidateSessionID(sid string) error {
	if sid == "" {
		return &types.X402Error{
			Code:    types.ErrRiskSessionInvalid,
			Message: "X-RISK-SESSION required",
		}
	}
	u, err := uuid.Parse(sid)
	if err != nil {
		return &types.X402Error{
			Code:    types.ErrRiskSessionInvalid,
			Message: fmt.Sprintf("X-RISK-SESSION invalid: %v", err),
		}
	}
	if v := u.Version(); v != 1 && v != 4 {
		return &types.X402Error{
			Code:    types.ErrRiskSessionInvalid,
			Message: "X-RISK-SESSION must be UUID v1 or v4",
		}
	}
	return nil
}

func splitSegments(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ";") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseSegments(parts []string, header string) (map[string]string, error) {
	kv := make(map[string]string, len(parts))
	for _, p := range parts {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			msg := fmt.Sprintf("Malformed %s segment", header)
			if header == AP2Evidence {
				return nil, evidenceError(msg)
			}
			return nil, traceHeaderError(msg)
		}
		kv[k] = v
	}
	return kv, nil
}

func traceHeaderError(msg string) *types.X402Error {
	return &types.X402Error{Code: types.ErrTraceHeaderInvalid, Message: msg}
}

func evidenceError(msg string) *types.X402Error {
	return &types.X402Error{Code: types.ErrEvidenceInvalid, Message: msg}
}
