// Package identity provides member identities: a 16-byte ID plus a NIST
// P-256 keypair used both for ECDSA signing (CBL authenticity) and for ECDH
// key agreement (block encryption). Members without private key material
// are representable; operations that need one fail with
// ErrPrivateKeyRequired.
package identity

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// IDSize is the fixed width of a member ID on the wire.
	IDSize = 16
	// SignatureSize is the fixed width of an ECDSA signature (r ‖ s).
	SignatureSize = 64
	// PublicKeySize is the width of a compressed P-256 public key.
	PublicKeySize = 33
)

// ErrPrivateKeyRequired is returned when a signing or decryption operation
// is attempted by a member holding only public key material.
var ErrPrivateKeyRequired = errors.New("identity: private key required")

// Member is a BrightChain participant: block creator, encryption recipient,
// or both. Immutable once constructed.
type Member struct {
	id   uuid.UUID
	priv *ecdsa.PrivateKey // nil for public-only members
	pub  *ecdsa.PublicKey
}

// New generates a member with a fresh random ID and P-256 keypair.
func New() (*Member, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return &Member{
		id:   uuid.New(),
		priv: priv,
		pub:  &priv.PublicKey,
	}, nil
}

// NewPublic constructs a public-only member from its ID and compressed
// public key bytes.
func NewPublic(id uuid.UUID, publicKey [PublicKeySize]byte) (*Member, error) {
	pub, err := decompress(publicKey)
	if err != nil {
		return nil, err
	}
	return &Member{id: id, pub: pub}, nil
}

func (m *Member) ID() uuid.UUID {
	return m.id
}

// IDBytes returns the member ID as its fixed 16-byte wire form.
func (m *Member) IDBytes() [IDSize]byte {
	return [IDSize]byte(m.id)
}

// HasPrivateKey reports whether this member can sign and decrypt.
func (m *Member) HasPrivateKey() bool {
	return m.priv != nil
}

// Public returns a copy of the member stripped of private key material.
func (m *Member) Public() *Member {
	return &Member{id: m.id, pub: m.pub}
}

// PublicKeyBytes returns the compressed P-256 public key.
func (m *Member) PublicKeyBytes() [PublicKeySize]byte {
	var out [PublicKeySize]byte
	copy(out[:], elliptic.MarshalCompressed(elliptic.P256(), m.pub.X, m.pub.Y))
	return out
}

// ECDHPublicKey returns the member's key-agreement public key.
func (m *Member) ECDHPublicKey() (*ecdh.PublicKey, error) {
	pub, err := m.pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("identity: convert public key: %w", err)
	}
	return pub, nil
}

// ECDHPrivateKey returns the member's key-agreement private key, or
// ErrPrivateKeyRequired for public-only members.
func (m *Member) ECDHPrivateKey() (*ecdh.PrivateKey, error) {
	if m.priv == nil {
		return nil, ErrPrivateKeyRequired
	}
	priv, err := m.priv.ECDH()
	if err != nil {
		return nil, fmt.Errorf("identity: convert private key: %w", err)
	}
	return priv, nil
}

// Sign produces a fixed-width r ‖ s ECDSA signature over digest.
func (m *Member) Sign(digest []byte) ([SignatureSize]byte, error) {
	var sig [SignatureSize]byte
	if m.priv == nil {
		return sig, ErrPrivateKeyRequired
	}
	r, s, err := ecdsa.Sign(rand.Reader, m.priv, digest)
	if err != nil {
		return sig, fmt.Errorf("identity: sign: %w", err)
	}
	r.FillBytes(sig[:SignatureSize/2])
	s.FillBytes(sig[SignatureSize/2:])
	return sig, nil
}

// Verify checks an r ‖ s signature over digest against the member's public
// key.
func (m *Member) Verify(digest []byte, sig [SignatureSize]byte) bool {
	r := new(big.Int).SetBytes(sig[:SignatureSize/2])
	s := new(big.Int).SetBytes(sig[SignatureSize/2:])
	return ecdsa.Verify(m.pub, digest, r, s)
}

// DecompressPublicKey converts a compressed 33-byte public key into an ECDH
// public key suitable for key agreement.
func DecompressPublicKey(b [PublicKeySize]byte) (*ecdh.PublicKey, error) {
	pub, err := decompress(b)
	if err != nil {
		return nil, err
	}
	ecdhPub, err := pub.ECDH()
	if err != nil {
		return nil, fmt.Errorf("identity: convert public key: %w", err)
	}
	return ecdhPub, nil
}

func decompress(b [PublicKeySize]byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), b[:])
	if x == nil {
		return nil, errors.New("identity: invalid compressed public key")
	}
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}
