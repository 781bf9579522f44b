package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestPrivateKeyFromHexAcceptsBothForms(t *testing.T) {
	plain, err := PrivateKeyFromHex(testKeyHex)
	require.NoError(t, err)

	prefixed, err := PrivateKeyFromHex("0x" + testKeyHex)
	require.NoError(t, err)

	assert.Equal(t, AddressFromPrivateKey(plain), AddressFromPrivateKey(prefixed))
}

func TestPrivateKeyFromHexRejectsGarbage(t *testing.T) {
	_, err := PrivateKeyFromHex("0xzz")
	require.Error(t, err)

	_, err = PrivateKeyFromHex("")
	require.Error(t, err)
}

func TestSignHashRecoverRoundTrip(t *testing.T) {
	key, err := PrivateKeyFromHex(testKeyHex)
	require.NoError(t, err)

	hash := crypto.Keccak256([]byte("transfer authorization digest"))
	signature, err := SignHash(hash, key)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(signature, "0x"))
	assert.Len(t, signature, 2+130, "65-byte signature hex")

	recovered, err := RecoverAddressFromSignature(hash, signature)
	require.NoError(t, err)
	assert.Equal(t, AddressFromPrivateKey(key), recovered)
}

func TestRecoverAddressRejectsShortSignature(t *testing.T) {
	hash := crypto.Keccak256([]byte("digest"))
	_, err := RecoverAddressFromSignature(hash, "0xdeadbeef")
	require.Error(t, err)
}

func TestRandomNonce(t *testing.T) {
	a, err := RandomNonce()
	require.NoError(t, err)
	b, err := RandomNonce()
	require.NoError(t, err)

	assert.Len(t, a, 2+64, "32-byte nonce hex")
	assert.True(t, strings.HasPrefix(a, "0x"))
	assert.NotEqual(t, a, b)
}

func TestValidateAndNormalizeAddress(t *testing.T) {
	assert.True(t, ValidateAddress("0xcccccccccccccccccccccccccccccccccccccccc"))
	assert.False(t, ValidateAddress("not-an-address"))
	assert.False(t, ValidateAddress("0xcc"))

	normalized := NormalizeAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	assert.True(t, strings.EqualFold("0xcccccccccccccccccccccccccccccccccccccccc", normalized))
	assert.Empty(t, NormalizeAddress("nope"))
}
