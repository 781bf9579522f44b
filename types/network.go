package types

// Network represents a blockchain network the gateway can settle on.
type Network string

const (
	NetworkBase          Network = "base"
	NetworkBaseSepolia   Network = "base-sepolia"   // testnet
	NetworkAvalanche     Network = "avalanche"
	NetworkAvalancheFuji Network = "avalanche-fuji" // testnet
	NetworkPolygon       Network = "polygon"
	NetworkPolygonAmoy   Network = "polygon-amoy"   // testnet
)

// chainIDs mirrors the gateway's default network→chainId mapping.
var chainIDs = map[Network]int64{
	NetworkBase:          8453,
	NetworkBaseSepolia:   84532,
	NetworkAvalanche:     43114,
	NetworkAvalancheFuji: 43113,
	NetworkPolygon:       137,
	NetworkPolygonAmoy:   80002,
}

// usdcContracts holds the USDC token contract per network, used as the
// EIP-712 verifying contract when signing transfer authorizations.
var usdcContracts = map[Network]string{
	NetworkBase:          "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	NetworkBaseSepolia:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	NetworkAvalanche:     "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E",
	NetworkAvalancheFuji: "0x5425890298aed601595a70AB815c96711a31Bc65",
	NetworkPolygon:       "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
	NetworkPolygonAmoy:   "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582",
}

// ChainID returns the EVM chain id for the network, or 0 when the
// network is not in the registry.
func (n Network) ChainID() int64 {
	return chainIDs[n]
}

// Known reports whether the network is in the registry.
func (n Network) Known() bool {
	_, ok := chainIDs[n]
	return ok
}

func (n Network) IsTestnet() bool {
	switch n {
	case NetworkBaseSepolia, NetworkAvalancheFuji, NetworkPolygonAmoy:
		return true
	}
	return false
}

func (n Network) String() string {
	return string(n)
}

// AssetAddress returns the token contract address for a currency on the
// given network. Only USDC is registered today; unknown pairs return
// ok=false and the caller decides whether that is fatal.
func AssetAddress(n Network, currency string) (string, bool) {
	if currency != "USDC" {
		return "", false
	}
	addr, ok := usdcContracts[n]
	return addr, ok
}
