// Package signing holds the raw cryptographic primitives the signer
// package builds on: key parsing, deterministic ECDSA signatures over
// canonical transaction bytes, and address derivation.
//
// Grounded on the teacher's internal/exchange/auth.go, which parses a
// hex private key with go-ethereum's crypto package and signs with
// crypto.Sign. This package drops the EIP-712 / HMAC layers (the venue
// here verifies a signature over the canonical wire bytes directly, not
// typed Ethereum data) but keeps the same key-handling idiom.
package signing

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Key wraps a parsed secp256k1 private key used to sign transaction
// buffers and mint auth tokens.
type Key struct {
	private *ecdsa.PrivateKey
	address common.Address
}

// ParseKey parses a hex-encoded private key, with or without a 0x prefix.
func ParseKey(hexKey string) (*Key, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	priv, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("signing: parse private key: %w", err)
	}
	return &Key{
		private: priv,
		address: crypto.PubkeyToAddress(priv.PublicKey),
	}, nil
}

// Address returns the Ethereum-style address derived from the key. The
// venue uses this only as an identity hint; it is not part of the
// signing payload itself.
func (k *Key) Address() common.Address {
	return k.address
}

// Sign hashes buf with Keccak-256 and produces a 65-byte
// recoverable ECDSA signature (r || s || v, v in {27,28}), matching the
// normalization the teacher's SignTypedData applies.
func (k *Key) Sign(buf []byte) ([]byte, error) {
	hash := crypto.Keccak256(buf)
	sig, err := crypto.Sign(hash, k.private)
	if err != nil {
		return nil, fmt.Errorf("signing: sign: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// SignHex signs buf and returns the 0x-prefixed hex signature the
// exchange expects in a transaction's signature field.
func (k *Key) SignHex(buf []byte) (string, error) {
	sig, err := k.Sign(buf)
	if err != nil {
		return "", err
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

// Verify reports whether sig is a valid signature over buf by the key
// that produced address. Used in tests to check round-trip correctness
// without depending on the live venue.
func Verify(address common.Address, buf, sig []byte) bool {
	if len(sig) != 65 {
		return false
	}
	hash := crypto.Keccak256(buf)
	// crypto.SigToPub wants v in {0,1}.
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == address
}
