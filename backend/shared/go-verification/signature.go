// go-verification/signature.go
package verification

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// ParsePublicKey decodes a base58 ed25519 public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not base58", ErrInvalidKey)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// ParsePrivateKey accepts either a 64-byte keypair (the Solana CLI format)
// or a 32-byte seed, both base58 encoded.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not base58", ErrInvalidKey)
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		priv := ed25519.PrivateKey(raw)
		// The trailing half of a keypair must be the public key of the seed.
		derived := ed25519.NewKeyFromSeed(priv.Seed())
		if !derived.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(raw[32:])) {
			return nil, fmt.Errorf("%w: keypair halves do not match", ErrInvalidKey)
		}
		return priv, nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, fmt.Errorf("%w: private key must be 32 or 64 bytes, got %d", ErrInvalidKey, len(raw))
	}
}

func EncodePublicKey(pub ed25519.PublicKey) string { return base58.Encode(pub) }
func EncodePrivateKey(priv ed25519.PrivateKey) string { return base58.Encode(priv) }

// GenerateKeypair creates a fresh ed25519 keypair from crypto/rand.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// Sign signs the keccak256 digest of message and returns the base58
// signature. Ed25519 is deterministic, so the same message and key always
// give the same signature.
func Sign(message []byte, priv ed25519.PrivateKey) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("%w: signing key must be %d bytes", ErrInvalidKey, ed25519.PrivateKeySize)
	}
	return base58.Encode(ed25519.Sign(priv, Digest(message))), nil
}

// Verify checks a base58 signature over message against a base58 public key.
// Every failure, including malformed inputs, is ErrInvalidSignature.
func Verify(message []byte, publicKey, signature string) error {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return ErrInvalidSignature
	}
	return VerifyWithKey(message, pub, signature)
}

// VerifyWithKey is Verify for an already decoded key.
func VerifyWithKey(message []byte, pub ed25519.PublicKey, signature string) error {
	if len(pub) != ed25519.PublicKeySize {
		return ErrInvalidSignature
	}
	sig, err := base58.Decode(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(pub, Digest(message), sig) {
		return ErrInvalidSignature
	}
	return nil
}
