// Package eip712 computes the EIP-712 digests a buyer signs when
// authorizing an EIP-3009 transferWithAuthorization.
package eip712

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Domain is the EIP-712 domain of the token contract being authorized.
type Domain struct {
	Name              string // token domain name, e.g. "USDC"
	Version           string // token domain version, e.g. "2"
	ChainID           *big.Int
	VerifyingContract string // hex address "0x..."
}

var (
	// TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)
	transferAuthTypeHash = crypto.Keccak256Hash([]byte("TransferWithAuthorization(address from,address to,uint256 value,uint256 validAfter,uint256 validBefore,bytes32 nonce)"))

	// EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
)

// keccakConcat hashes the concatenation of 32-byte words, matching
// keccak256(abi.encode(...)) for already-padded parts.
func keccakConcat(parts ...[]byte) common.Hash {
	var joined []byte
	for _, p := range parts {
		joined = append(joined, p...)
	}
	return crypto.Keccak256Hash(joined)
}

// padLeft32 returns a 32-byte right-aligned representation of i.
func padLeft32(i *big.Int) []byte {
	b := i.Bytes()
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// addressTo32 left-pads an address into 32 bytes.
func addressTo32(a common.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], a.Bytes())
	return out
}

// HexToBytes32 converts hex (with or without 0x) to a 32-byte array,
// left-padding short input.
func HexToBytes32(hexStr string) ([32]byte, error) {
	var out [32]byte
	if len(hexStr) >= 2 && hexStr[0:2] == "0x" {
		hexStr = hexStr[2:]
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, err
	}
	if len(b) > 32 {
		return out, fmt.Errorf("value longer than 32 bytes")
	}
	copy(out[32-len(b):], b)
	return out, nil
}

// DomainSeparator builds the EIP-712 domain separator:
// keccak256(abi.encode(domainTypeHash, keccak256(name), keccak256(version), chainId, verifyingContract)).
func DomainSeparator(d Domain) (common.Hash, error) {
	if d.Name == "" || d.Version == "" || d.ChainID == nil || d.VerifyingContract == "" {
		return common.Hash{}, errors.New("incomplete domain")
	}

	nameHash := crypto.Keccak256Hash([]byte(d.Name))
	versionHash := crypto.Keccak256Hash([]byte(d.Version))
	verifying := common.HexToAddress(d.VerifyingContract)

	parts := [][]byte{
		domainTypeHash.Bytes(),
		nameHash.Bytes(),
		versionHash.Bytes(),
		padLeft32(d.ChainID),
		addressTo32(verifying),
	}
	return keccakConcat(parts...), nil
}

// HashTransferWithAuthorization computes the EIP-3009 struct hash:
// keccak256(abi.encode(typeHash, from, to, value, validAfter, validBefore, nonce)).
func HashTransferWithAuthorization(from, to common.Address, value, validAfter, validBefore *big.Int, nonce [32]byte) common.Hash {
	parts := [][]byte{
		transferAuthTypeHash.Bytes(),
		addressTo32(from),
		addressTo32(to),
		padLeft32(value),
		padLeft32(validAfter),
		padLeft32(validBefore),
		nonce[:],
	}
	return keccakConcat(parts...)
}

// TypedDataHash returns the final digest to sign:
// keccak256("\x19\x01" || domainSeparator || structHash).
func TypedDataHash(domainSeparator, structHash common.Hash) common.Hash {
	prefix := []byte{0x19, 0x01}
	return crypto.Keccak256Hash(append(append(prefix, domainSeparator.Bytes()...), structHash.Bytes()...))
}

// TransferWithAuthDigest builds the complete digest for an EIP-3009
// transferWithAuthorization. value is a decimal string; validAfter and
// validBefore are unix seconds; nonceHex is 0x-prefixed or plain hex.
func TransferWithAuthDigest(domain Domain, fromHex, toHex, value string, validAfter, validBefore int64, nonceHex string) (common.Hash, error) {
	domainSep, err := DomainSeparator(domain)
	if err != nil {
		return common.Hash{}, err
	}

	amount := new(big.Int)
	if _, ok := amount.SetString(value, 10); !ok {
		return common.Hash{}, fmt.Errorf("invalid decimal value: %q", value)
	}

	nonce, err := HexToBytes32(nonceHex)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid nonce: %w", err)
	}

	structHash := HashTransferWithAuthorization(
		common.HexToAddress(fromHex),
		common.HexToAddress(toHex),
		amount,
		big.NewInt(validAfter),
		big.NewInt(validBefore),
		nonce,
	)
	return TypedDataHash(domainSep, structHash), nil
}
