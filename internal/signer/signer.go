// Package signer implements the typed-data encoding of signed governance
// messages and the signature scheme used to authenticate payers. A signature
// carries the signer's public key, so the payer identity can be recovered
// from the signature alone and compared against the claimed payer.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"

	"govvault/pkg/domain"
)

// ErrInvalidSignature is returned for malformed signature bytes or a
// signature that does not verify against the digest.
var ErrInvalidSignature = errors.New("invalid signature")

// Signature layout: 32-byte ed25519 public key followed by the 64-byte
// signature over the digest.
const (
	signatureSize = ed25519.PublicKeySize + ed25519.SignatureSize
)

// Typed-data constants. Changing either invalidates all outstanding
// signatures, which is the point: signatures are bound to this protocol.
var (
	domainSeparator = keccak256([]byte("GovVault Message Payment v1"))
	messageTypeHash = keccak256([]byte("SignedMessage(bytes32 contentHash,address payer,uint64 nonce)"))
)

// SignedMessage is a payer-authored intent to submit a governance message
// against payment. Its digest is its identity and replay-protection key.
type SignedMessage struct {
	ContentHash domain.Digest
	Payer       domain.Address
	Nonce       uint64
}

// Digest returns the keccak-256 hash of the typed encoding of the message.
func (m SignedMessage) Digest() domain.Digest {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], m.Nonce)

	structHash := keccak256(messageTypeHash[:], m.ContentHash[:], m.Payer[:], nonce[:])
	return keccak256([]byte{0x19, 0x01}, domainSeparator[:], structHash[:])
}

// AddressFromPublicKey derives the 20-byte identity from a public key: the
// trailing 20 bytes of its keccak-256 hash.
func AddressFromPublicKey(pub ed25519.PublicKey) domain.Address {
	h := keccak256(pub)
	var a domain.Address
	copy(a[:], h[len(h)-len(a):])
	return a
}

// RecoverSigner extracts the public key from the signature bytes, verifies
// the signature over the digest, and returns the derived signer identity.
func RecoverSigner(digest domain.Digest, sig []byte) (domain.Address, error) {
	if len(sig) != signatureSize {
		return domain.Address{}, fmt.Errorf("signature must be %d bytes, got %d: %w", signatureSize, len(sig), ErrInvalidSignature)
	}
	pub := ed25519.PublicKey(sig[:ed25519.PublicKeySize])
	if !ed25519.Verify(pub, digest[:], sig[ed25519.PublicKeySize:]) {
		return domain.Address{}, ErrInvalidSignature
	}
	return AddressFromPublicKey(pub), nil
}

// KeyPair holds an ed25519 key pair with its derived identity.
type KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// GenerateKeyPair generates a new key pair from cryptographically secure
// randomness.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// Address returns the identity derived from the public key.
func (kp *KeyPair) Address() domain.Address {
	return AddressFromPublicKey(kp.Public)
}

// Sign signs the digest and returns the combined public-key-plus-signature
// bytes accepted by RecoverSigner.
func (kp *KeyPair) Sign(digest domain.Digest) []byte {
	sig := make([]byte, 0, signatureSize)
	sig = append(sig, kp.Public...)
	sig = append(sig, ed25519.Sign(kp.Private, digest[:])...)
	return sig
}

func keccak256(chunks ...[]byte) domain.Digest {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	var d domain.Digest
	h.Sum(d[:0])
	return d
}
