package x402secure

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitwit/x402-secure/types"
	"github.com/vitwit/x402-secure/utils"
)

// Environment variables read by FromEnv.
const (
	EnvGatewayURL     = "AGENT_GATEWAY_URL"
	EnvSigningKey     = "BUYER_SIGNING_KEY"
	EnvBuyerAddress   = "BUYER_ADDRESS"
	EnvMerchantName   = "SELLER_MERCHANT_NAME"
	EnvMerchantDomain = "SELLER_MERCHANT_DOMAIN"
)

// BuyerConfig holds the credentials and endpoint a BuyerClient needs.
type BuyerConfig struct {
	// GatewayURL is the base URL of the x402-secure gateway.
	GatewayURL string `yaml:"gateway_url" json:"gateway_url" validate:"required,url"`

	// SigningKey is the buyer's secp256k1 private key as 64 hex chars,
	// with or without the 0x prefix. Required for payment flows; a
	// client without it can still open sessions and submit traces.
	SigningKey string `yaml:"signing_key" json:"signing_key"`

	// BuyerAddress is the buyer's EVM address. Derived from SigningKey
	// when empty.
	BuyerAddress string `yaml:"buyer_address" json:"buyer_address"`

	// AgentDID identifies the agent to the gateway's risk engine.
	AgentDID string `yaml:"agent_did" json:"agent_did"`

	// Timeout bounds each HTTP exchange. Zero means the default.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Validate checks the config before a client is built from it.
func (c *BuyerConfig) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid buyer config: %v", err),
			Err:     err,
		}
	}
	if c.BuyerAddress != "" && !utils.ValidateAddress(c.BuyerAddress) {
		return &types.X402Error{
			Code:    types.ErrConfigError,
			Message: "buyer_address must be a hex address",
		}
	}
	return nil
}

// SellerConfig holds the merchant identity a SellerClient stamps onto
// payment requirements. The domain is carried verbatim; callers may
// pass a bare hostname or a full URL.
type SellerConfig struct {
	MerchantName   string `yaml:"merchant_name" json:"merchant_name" validate:"required"`
	MerchantDomain string `yaml:"merchant_domain" json:"merchant_domain" validate:"required"`
}

// Validate checks the merchant identity is complete.
func (c *SellerConfig) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid seller config: %v", err),
			Err:     err,
		}
	}
	return nil
}

// AgentConfig extends BuyerConfig with the agent identity used by
// AgentBuyerClient.
type AgentConfig struct {
	BuyerConfig `yaml:",inline"`

	// AgentID is the application identifier sent when the composite
	// payment flow opens its risk session.
	AgentID string `yaml:"agent_id" json:"agent_id" validate:"required"`
}

// Validate checks both the buyer part and the agent identity.
func (c *AgentConfig) Validate() error {
	if c.AgentID == "" {
		return &types.X402Error{
			Code:    types.ErrConfigError,
			Message: "agent_id is required",
		}
	}
	return c.BuyerConfig.Validate()
}

// Config is the on-disk configuration file shape, one section per role.
type Config struct {
	Buyer  BuyerConfig  `yaml:"buyer" json:"buyer"`
	Seller SellerConfig `yaml:"seller" json:"seller"`
	Agent  AgentConfig  `yaml:"agent" json:"agent"`
}

// DefaultConfig returns the baseline a loaded file overwrites.
func DefaultConfig() *Config {
	return &Config{
		Buyer: BuyerConfig{
			GatewayURL: "http://localhost:8000",
			Timeout:    30 * time.Second,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("read config %s", path),
			Err:     err,
		}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("parse config %s", path),
			Err:     err,
		}
	}
	return cfg, nil
}

// FromEnv builds a config from the process environment, falling back
// to defaults for anything unset.
func FromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv(EnvGatewayURL); v != "" {
		cfg.Buyer.GatewayURL = v
	}
	if v := os.Getenv(EnvSigningKey); v != "" {
		cfg.Buyer.SigningKey = v
	}
	if v := os.Getenv(EnvBuyerAddress); v != "" {
		cfg.Buyer.BuyerAddress = v
	}
	if v := os.Getenv(EnvMerchantName); v != "" {
		cfg.Seller.MerchantName = v
	}
	if v := os.Getenv(EnvMerchantDomain); v != "" {
		cfg.Seller.MerchantDomain = v
	}

	cfg.Agent.BuyerConfig = cfg.Buyer
	return cfg
}
