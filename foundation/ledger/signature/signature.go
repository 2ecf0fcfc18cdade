// Package signature provides the hashing and signing primitives for the
// ledger. Every digest in the system flows through Hash or HashString so
// block hashes, merkle nodes and transaction content hashes stay consistent.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash is the previous-hash sentinel carried by the first block in
// the chain.
const ZeroHash = "0"

// Hash returns the sha256 digest of the canonical JSON form of the value
// as a lower-case hex string.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashString returns the sha256 digest of the raw bytes of s as a
// lower-case hex string.
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// =============================================================================

// Sign uses the specified private key to sign the value and returns the
// signature as a hex string.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(sig), nil
}

// FromAddress extracts the address of the key that produced the signature
// over the value.
func FromAddress(value any, sig string) (string, error) {
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return "", fmt.Errorf("decoding signature: %w", err)
	}

	publicKey, err := crypto.SigToPub(data, sigBytes)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// VerifySignature checks the signature over the value was produced by the
// key behind the specified address.
func VerifySignature(value any, sig string, address string) error {
	from, err := FromAddress(value, sig)
	if err != nil {
		return err
	}

	if from != address {
		return errors.New("signature does not match address")
	}

	return nil
}

// PublicKeyString returns the address form of the public key for storing
// with a validator record.
func PublicKeyString(privateKey *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(privateKey.PublicKey).String()
}

// stamp hashes the value into the fixed 32 byte array the secp256k1
// signing functions require.
func stamp(value any) ([]byte, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	return crypto.Keccak256(v), nil
}
