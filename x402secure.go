// Package x402secure is the client SDK for the x402 payment protocol
// with risk-session and agent-trace extensions: buyer-side and
// seller-side HTTP clients that create risk sessions, submit AI-agent
// execution traces, and perform two-phase payment verification and
// settlement against a gateway service.
//
// The SDK never talks to a blockchain. The buyer signs an EIP-3009
// transfer authorization locally; verification and on-chain settlement
// are entirely the gateway's job.
package x402secure

// Version information
const (
	Version         = "1.0.0"
	ProtocolVersion = 1
	UserAgent       = "x402-agent/" + Version
)

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version":  Version,
		"protocol_version": ProtocolVersion,
		"supported_networks": []string{
			"base", "base-sepolia",
			"avalanche", "avalanche-fuji",
			"polygon", "polygon-amoy",
		},
		"supported_headers": []string{
			"X-PAYMENT", "X-PAYMENT-SECURE",
			"X-RISK-SESSION", "X-AP2-EVIDENCE",
		},
	}
}
