package utils

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/vitwit/x402-secure/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateStruct runs struct-tag validation on v.
func ValidateStruct(v interface{}) error {
	return validate.Struct(v)
}

// ParsePaymentRequirements parses and validates PaymentRequirements from JSON.
func ParsePaymentRequirements(data []byte) (*types.PaymentRequirements, error) {
	var req types.PaymentRequirements

	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidRequirement,
			Message: fmt.Sprintf("failed to parse payment requirements: %v", err),
			Err:     err,
		}
	}

	if err := validate.Struct(&req); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidRequirement,
			Message: fmt.Sprintf("validation failed: %v", err),
			Err:     err,
		}
	}

	if err := req.Validate(); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrInvalidRequirement,
			Message: err.Error(),
			Err:     err,
		}
	}

	return &req, nil
}

// ParseAgentTrace parses and validates an AgentTrace from JSON.
func ParseAgentTrace(data []byte) (*types.AgentTrace, error) {
	var trace types.AgentTrace

	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrValidation,
			Message: fmt.Sprintf("failed to parse agent trace: %v", err),
			Err:     err,
		}
	}

	if err := trace.Validate(); err != nil {
		return nil, &types.X402Error{
			Code:    types.ErrValidation,
			Message: err.Error(),
			Err:     err,
		}
	}

	return &trace, nil
}

// NormalizeJSON formats JSON with consistent indentation.
func NormalizeJSON(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}
