// Package ecies implements the asymmetric block encryption primitive:
// P-256 ECDH with an ephemeral key, HKDF-SHA256 key derivation and
// AES-256-GCM, framed by the fixed single- and multi-recipient headers in
// header.go. The sealed output is header ‖ ciphertext, with the GCM tag
// carried in the header's AuthTag field so ciphertext length equals
// plaintext length.
package ecies

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/brightchain/brightchain/pkg/identity"
)

// hkdfInfo binds derived keys to this format version.
var hkdfInfo = []byte("brightchain ecies v1")

// Seal encrypts plaintext for a single recipient. The result is the
// single-recipient header followed by exactly len(plaintext) ciphertext
// bytes.
func Seal(recipient *identity.Member, plaintext []byte) ([]byte, error) {
	recipientPub, err := recipient.ECDHPublicKey()
	if err != nil {
		return nil, err
	}

	eph, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ecies: generate ephemeral key: %w", err)
	}
	key, err := deriveKey(eph, recipientPub)
	if err != nil {
		return nil, err
	}

	h := &Header{
		Encryption:         EncryptionTypeSingle,
		RecipientID:        recipient.ID(),
		Version:            CurrentVersion,
		CipherSuite:        CipherSuiteAES256GCM,
		FormatTag:          FormatWithLength,
		EphemeralPublicKey: compressPublicKey(eph.PublicKey()),
		PlaintextLength:    uint64(len(plaintext)),
	}
	if _, err := io.ReadFull(rand.Reader, h.IV[:]); err != nil {
		return nil, fmt.Errorf("ecies: generate IV: %w", err)
	}

	ciphertext, tag, err := gcmSeal(key, h.IV, plaintext)
	if err != nil {
		return nil, err
	}
	h.AuthTag = tag

	headerBytes, err := h.Encode()
	if err != nil {
		return nil, err
	}
	return append(headerBytes, ciphertext...), nil
}

// Unseal decrypts a single-recipient sealed buffer. The member must be the
// recipient named in the header and must hold a private key. Trailing bytes
// past the ciphertext (block padding) are ignored.
func Unseal(member *identity.Member, data []byte) ([]byte, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Encryption != EncryptionTypeSingle {
		return nil, fmt.Errorf("%w: want single-recipient, got %s", ErrInvalidEncryptionType, h.Encryption)
	}
	if h.RecipientID != member.ID() {
		return nil, fmt.Errorf("%w: header names %s", ErrRecipientNotFound, h.RecipientID)
	}

	priv, err := member.ECDHPrivateKey()
	if err != nil {
		return nil, err
	}
	ephPub, err := identity.DecompressPublicKey(h.EphemeralPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEphemeralPublicKey, err)
	}
	key, err := deriveKey(priv, ephPub)
	if err != nil {
		return nil, err
	}

	ciphertext, err := ciphertextSlice(data, SingleOverhead, h.PlaintextLength)
	if err != nil {
		return nil, err
	}
	return gcmOpen(key, h.IV, h.AuthTag, ciphertext)
}

// SealMulti encrypts plaintext for two or more recipients. A random content
// key encrypts the data once; it is then wrapped per recipient under a key
// derived from a shared ephemeral keypair.
func SealMulti(recipients []*identity.Member, plaintext []byte) ([]byte, error) {
	if len(recipients) < MinMultiRecipients {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRecipientCount, len(recipients))
	}
	if len(recipients) > MaxRecipients {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRecipientCount, len(recipients))
	}

	cek := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, cek); err != nil {
		return nil, fmt.Errorf("ecies: generate content key: %w", err)
	}

	eph, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ecies: generate ephemeral key: %w", err)
	}

	h := &Header{
		Encryption:         EncryptionTypeMulti,
		Version:            CurrentVersion,
		CipherSuite:        CipherSuiteAES256GCM,
		FormatTag:          FormatWithLength,
		EphemeralPublicKey: compressPublicKey(eph.PublicKey()),
		PlaintextLength:    uint64(len(plaintext)),
		Recipients:         make([]RecipientEntry, len(recipients)),
	}
	if _, err := io.ReadFull(rand.Reader, h.IV[:]); err != nil {
		return nil, fmt.Errorf("ecies: generate IV: %w", err)
	}

	ciphertext, tag, err := gcmSeal(cek, h.IV, plaintext)
	if err != nil {
		return nil, err
	}
	h.AuthTag = tag

	seen := make(map[[identity.IDSize]byte]struct{}, len(recipients))
	for i, recipient := range recipients {
		id := recipient.IDBytes()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate recipient %s", ErrInvalidRecipientIDs, recipient.ID())
		}
		seen[id] = struct{}{}

		entry := &h.Recipients[i]
		entry.ID = recipient.ID()
		if _, err := io.ReadFull(rand.Reader, entry.KeyIV[:]); err != nil {
			return nil, fmt.Errorf("ecies: generate key IV: %w", err)
		}

		recipientPub, err := recipient.ECDHPublicKey()
		if err != nil {
			return nil, err
		}
		kek, err := deriveKey(eph, recipientPub)
		if err != nil {
			return nil, err
		}
		wrapped, wrapTag, err := gcmSeal(kek, entry.KeyIV, cek)
		if err != nil {
			return nil, err
		}
		if len(wrapped) != WrappedKeySize {
			return nil, fmt.Errorf("%w: wrapped key is %d bytes", ErrInvalidRecipientKeys, len(wrapped))
		}
		copy(entry.WrappedKey[:], wrapped)
		entry.KeyAuthTag = wrapTag
	}

	headerBytes, err := h.Encode()
	if err != nil {
		return nil, err
	}
	return append(headerBytes, ciphertext...), nil
}

// UnsealMulti decrypts a multi-recipient sealed buffer for a member that
// appears in the recipient table.
func UnsealMulti(member *identity.Member, data []byte) ([]byte, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Encryption != EncryptionTypeMulti {
		return nil, fmt.Errorf("%w: want multi-recipient, got %s", ErrInvalidEncryptionType, h.Encryption)
	}

	var entry *RecipientEntry
	for i := range h.Recipients {
		if h.Recipients[i].ID == member.ID() {
			entry = &h.Recipients[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: member %s", ErrRecipientNotFound, member.ID())
	}

	priv, err := member.ECDHPrivateKey()
	if err != nil {
		return nil, err
	}
	ephPub, err := identity.DecompressPublicKey(h.EphemeralPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEphemeralPublicKey, err)
	}
	kek, err := deriveKey(priv, ephPub)
	if err != nil {
		return nil, err
	}
	cek, err := gcmOpen(kek, entry.KeyIV, entry.KeyAuthTag, entry.WrappedKey[:])
	if err != nil {
		return nil, fmt.Errorf("ecies: unwrap content key: %w", err)
	}

	overhead, err := h.Overhead()
	if err != nil {
		return nil, err
	}
	ciphertext, err := ciphertextSlice(data, overhead, h.PlaintextLength)
	if err != nil {
		return nil, err
	}
	return gcmOpen(cek, h.IV, h.AuthTag, ciphertext)
}

func deriveKey(priv *ecdh.PrivateKey, pub *ecdh.PublicKey) ([]byte, error) {
	shared, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("ecies: key agreement: %w", err)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("ecies: derive key: %w", err)
	}
	return key, nil
}

// gcmSeal encrypts plaintext and returns ciphertext and tag separately so
// the tag can live in the header.
func gcmSeal(key []byte, iv [IVSize]byte, plaintext []byte) ([]byte, [AuthTagSize]byte, error) {
	var tag [AuthTagSize]byte
	aead, err := newGCM(key)
	if err != nil {
		return nil, tag, err
	}
	sealed := aead.Seal(nil, iv[:], plaintext, nil)
	split := len(sealed) - AuthTagSize
	copy(tag[:], sealed[split:])
	return sealed[:split], tag, nil
}

func gcmOpen(key []byte, iv [IVSize]byte, tag [AuthTagSize]byte, ciphertext []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(ciphertext)+AuthTagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag[:]...)
	plaintext, err := aead.Open(nil, iv[:], sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("ecies: open: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("ecies: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("ecies: new GCM: %w", err)
	}
	return aead, nil
}

func ciphertextSlice(data []byte, overhead int, plaintextLength uint64) ([]byte, error) {
	end := uint64(overhead) + plaintextLength
	if end > uint64(len(data)) {
		return nil, fmt.Errorf(
			"%w: ciphertext extends past buffer (%d > %d)", ErrInvalidHeaderLength, end, len(data),
		)
	}
	return data[overhead:end], nil
}

// compressPublicKey converts an ECDH public key to its 33-byte compressed
// point form.
func compressPublicKey(pub *ecdh.PublicKey) [EphemeralKeySize]byte {
	var out [EphemeralKeySize]byte
	raw := pub.Bytes() // uncompressed: 0x04 ‖ X ‖ Y
	x, y := elliptic.Unmarshal(elliptic.P256(), raw)
	copy(out[:], elliptic.MarshalCompressed(elliptic.P256(), x, y))
	return out
}
