package x402secure

import (
	"encoding/json"
	"net/http"

	"github.com/vitwit/x402-secure/headers"
	"github.com/vitwit/x402-secure/logger"
	"github.com/vitwit/x402-secure/types"
)

// SellerClient is the merchant-side client. It constructs payment
// requirements and validates the header envelope on inbound requests.
// It performs no network I/O and no cryptographic verification; the
// gateway owns signature checks.
type SellerClient struct {
	cfg    SellerConfig
	logger logger.Logger
}

// NewSellerClient builds a seller client from the merchant identity.
func NewSellerClient(cfg SellerConfig, opts ...Option) (*SellerClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts, 0)
	return &SellerClient{cfg: cfg, logger: o.logger}, nil
}

// MerchantName returns the configured merchant name.
func (s *SellerClient) MerchantName() string { return s.cfg.MerchantName }

// MerchantDomain returns the configured merchant domain.
func (s *SellerClient) MerchantDomain() string { return s.cfg.MerchantDomain }

// CreatePaymentRequirements wraps the accept options with the merchant
// identity. The accept list is carried as given; amounts are not
// touched here.
func (s *SellerClient) CreatePaymentRequirements(accepts []types.AcceptOption) *types.PaymentRequirements {
	return &types.PaymentRequirements{
		MerchantName:   s.cfg.MerchantName,
		MerchantDomain: s.cfg.MerchantDomain,
		Accepts:        accepts,
	}
}

// ValidatePaymentHeaders checks that X-PAYMENT, X-PAYMENT-SECURE and
// X-RISK-SESSION are all present. The returned error names the first
// missing header. Presence only; signatures are verified gateway-side.
func (s *SellerClient) ValidatePaymentHeaders(h http.Header) error {
	return headers.EnsurePresent(h)
}

// RequirePayment is middleware for a merchant endpoint: requests
// missing the payment envelope get a 402 carrying the requirements so
// the buyer knows how to pay; complete requests pass through.
func (s *SellerClient) RequirePayment(req *types.PaymentRequirements, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := headers.EnsurePresent(r.Header); err != nil {
			s.logger.Debug("payment required", map[string]any{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			s.writePaymentRequired(w, err, req)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *SellerClient) writePaymentRequired(w http.ResponseWriter, cause error, req *types.PaymentRequirements) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)

	body := map[string]interface{}{
		"x402Version": ProtocolVersion,
		"error":       cause.Error(),
	}
	if req != nil {
		body["paymentRequirements"] = req
	}
	_ = json.NewEncoder(w).Encode(body)
}
