package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitwit/x402-secure/types"
)

var hexRe = regexp.MustCompile(`^[0-9a-fA-F]+$`)

// ValidateAmount checks if an amount string is a valid non-negative decimal.
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ValidateBigInt checks if a string is a valid base-10 big integer.
func ValidateBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}

	bigInt := new(big.Int)
	_, success := bigInt.SetString(value, 10)
	if !success {
		return nil, fmt.Errorf("invalid big integer format")
	}

	return bigInt, nil
}

// ValidateTransactionHash validates an EVM transaction hash
// (0x followed by 64 hex characters).
func ValidateTransactionHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}
	if len(hash) != 66 || hash[:2] != "0x" {
		return fmt.Errorf("transaction hash must be 0x followed by 64 hex characters")
	}
	if !hexRe.MatchString(hash[2:]) {
		return fmt.Errorf("transaction hash must be valid hex")
	}
	return nil
}

// ValidateEVMAddress validates an EVM address (0x followed by 40 hex characters).
func ValidateEVMAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if len(address) != 42 || address[:2] != "0x" {
		return fmt.Errorf("address must be 0x followed by 40 hex characters")
	}
	if !hexRe.MatchString(address[2:]) {
		return fmt.Errorf("address must be valid hex")
	}
	return nil
}

// ValidateNetwork checks if a network is in the registry.
func ValidateNetwork(network string) error {
	if !types.Network(network).Known() {
		return fmt.Errorf("unsupported network: %s", network)
	}
	return nil
}

// ValidateValidityWindow checks an EIP-3009 authorization window:
// validAfter must precede validBefore and the window must not already
// be closed.
func ValidateValidityWindow(validAfter, validBefore int64) error {
	if validBefore <= validAfter {
		return fmt.Errorf("validBefore must be after validAfter")
	}
	if validBefore <= time.Now().Unix() {
		return fmt.Errorf("authorization window already closed")
	}
	return nil
}

// ParseAmountWithDecimals parses a decimal amount string and converts
// it to a big.Int in atomic units with the given decimals.
func ParseAmountWithDecimals(amount string, decimals int) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	multiplier := decimal.NewFromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil), 0)
	result := dec.Mul(multiplier)

	return result.BigInt(), nil
}

// FormatAmountFromBigInt formats an atomic-unit amount as a decimal
// string with the given decimals.
func FormatAmountFromBigInt(amount *big.Int, decimals int) string {
	dec := decimal.NewFromBigInt(amount, -int32(decimals))
	return dec.String()
}
