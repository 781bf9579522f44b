package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkRegistry(t *testing.T) {
	tests := []struct {
		network Network
		chainID int64
		testnet bool
	}{
		{NetworkBase, 8453, false},
		{NetworkBaseSepolia, 84532, true},
		{NetworkAvalanche, 43114, false},
		{NetworkAvalancheFuji, 43113, true},
		{NetworkPolygon, 137, false},
		{NetworkPolygonAmoy, 80002, true},
	}
	for _, tt := range tests {
		t.Run(tt.network.String(), func(t *testing.T) {
			assert.True(t, tt.network.Known())
			assert.Equal(t, tt.chainID, tt.network.ChainID())
			assert.Equal(t, tt.testnet, tt.network.IsTestnet())

			addr, ok := AssetAddress(tt.network, "USDC")
			require.True(t, ok, "every registered network carries a USDC contract")
			assert.Len(t, addr, 42)
			assert.Equal(t, "0x", addr[:2])
		})
	}
}

func TestNetworkUnknown(t *testing.T) {
	n := Network("solana")
	assert.False(t, n.Known())
	assert.Zero(t, n.ChainID())

	_, ok := AssetAddress(n, "USDC")
	assert.False(t, ok)

	_, ok = AssetAddress(NetworkBase, "DAI")
	assert.False(t, ok, "only USDC is registered")
}
