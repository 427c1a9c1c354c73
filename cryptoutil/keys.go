// Package cryptoutil wraps the signing and address primitives shared by the
// wallet and chain packages: secp256k1 keys, Hash160, Base58, and the node's
// address encoding.
package cryptoutil

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

const (
	checksumLength = 4
	addressVersion = byte(0x00)
)

// KeyPair holds a secp256k1 private/public key pair.
type KeyPair struct {
	Private *btcec.PrivateKey
	Public  *btcec.PublicKey
}

// GenerateKeyPair creates a fresh secp256k1 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &KeyPair{Private: priv, Public: priv.PubKey()}, nil
}

// PublicKeyBytes returns the uncompressed SEC1 encoding (0x04 prefix), the
// same shape the reference implementation stores as sender_public_key.
func (k *KeyPair) PublicKeyBytes() []byte {
	return k.Public.SerializeUncompressed()
}

// ParsePublicKey decodes an uncompressed SEC1-encoded public key.
func ParsePublicKey(b []byte) (*btcec.PublicKey, error) {
	return btcec.ParsePubKey(b)
}

// SignDigest signs the SHA-256 digest of the hex-string form of txHash.
//
// This mirrors the reference implementation's sign(): it hashes
// txHash.encode("utf-8") again before signing, rather than signing the raw
// transaction-hash bytes. Preserved deliberately, not "fixed".
func SignDigest(priv *btcec.PrivateKey, txHash string) []byte {
	digest := sha256.Sum256([]byte(txHash))
	sig := ecdsa.Sign(priv, digest[:])
	return sig.Serialize()
}

// VerifyDigest verifies a signature produced by SignDigest.
func VerifyDigest(pub *btcec.PublicKey, txHash string, sig []byte) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(txHash))
	return parsed.Verify(digest[:], pub)
}

// Hash160 returns RIPEMD160(SHA256(data)), the standard public-key hash.
func Hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	hasher := ripemd160.New()
	hasher.Write(sum[:])
	return hasher.Sum(nil)
}

// Checksum returns the first 4 bytes of SHA256(SHA256(payload)).
func Checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:checksumLength]
}

// DeriveAddress turns a public key into the node's address string.
//
// Pipeline: SHA256 -> RIPEMD160 -> prepend version byte -> append checksum
// -> Base58 -> re-encode the Base58 bytes as hex, prefixed with "0x".
//
// The final re-hex step looks redundant (Base58 already produces a
// human-readable string) but is required for wire compatibility with peers
// running the reference implementation, which performs the same extra
// encoding pass. Preserve it.
func DeriveAddress(pub *btcec.PublicKey) string {
	pubHash := Hash160(pub.SerializeUncompressed())
	versioned := append([]byte{addressVersion}, pubHash...)
	checksum := Checksum(versioned)
	full := append(versioned, checksum...)
	b58 := base58.Encode(full)
	return "0x" + hex.EncodeToString([]byte(b58))
}

// ValidateAddress checks that an address decodes to a well-formed
// version+hash+checksum payload under the DeriveAddress encoding.
func ValidateAddress(address string) bool {
	if len(address) < 2 || address[:2] != "0x" {
		return false
	}
	b58Bytes, err := hex.DecodeString(address[2:])
	if err != nil {
		return false
	}
	decoded, err := base58.Decode(string(b58Bytes))
	if err != nil {
		return false
	}
	if len(decoded) != 1+20+checksumLength {
		return false
	}
	version := decoded[0]
	pubHash := decoded[1:21]
	checksum := decoded[21:]
	if version != addressVersion {
		return false
	}
	expected := Checksum(append([]byte{version}, pubHash...))
	return bytes.Equal(expected, checksum)
}
