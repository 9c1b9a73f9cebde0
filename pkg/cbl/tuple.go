package cbl

import (
	"fmt"
	"time"

	"github.com/brightchain/brightchain/pkg/block"
	"github.com/brightchain/brightchain/pkg/checksum"
	"github.com/brightchain/brightchain/pkg/identity"
)

// FromTuple XOR-combines a tuple of sibling blocks and reinterprets the
// result as a list block, verifying the creator's signature.
func FromTuple(
	cs *checksum.Service,
	t *block.Tuple,
	creator *identity.Member,
	tupleSize int,
) (*Block, error) {
	combined, err := t.XOR(cs)
	if err != nil {
		return nil, err
	}
	return Parse(cs, combined.Size(), combined.Buffer(), creator, tupleSize)
}

// Encrypt seals a list for one or more recipients, producing an
// encrypted block of the encrypted-list type.
func Encrypt(
	cs *checksum.Service,
	b *Block,
	cap block.CapacityProvider,
	recipients ...*identity.Member,
) (*block.EncryptedBlock, error) {
	return block.Encrypt(cs, b.EphemeralBlock, block.TypeEncryptedConstituentBlockList, cap, recipients...)
}

// Decrypt unseals an encrypted list block and parses the plaintext back
// into a list, verifying the creator's signature. creator identifies the
// claimed author; member supplies the decryption key and may be the same
// identity.
func Decrypt(
	cs *checksum.Service,
	enc *block.EncryptedBlock,
	member *identity.Member,
	creator *identity.Member,
	tupleSize int,
) (*Block, error) {
	if enc.Type() != block.TypeEncryptedConstituentBlockList {
		return nil, &block.InvalidBlockTypeError{Type: enc.Type()}
	}
	plain, err := enc.Decrypt(member, block.TypeConstituentBlockList)
	if err != nil {
		return nil, err
	}
	return Parse(cs, plain.Size(), plain.Buffer(), creator, tupleSize)
}

// EncryptedFromTuple XOR-combines a tuple and reinterprets the result as
// an encrypted list block. The ciphertext cannot be inspected here beyond
// its header, so only structural checks run; Decrypt completes the
// verification.
func EncryptedFromTuple(
	cs *checksum.Service,
	t *block.Tuple,
	creator *identity.Member,
	cap block.CapacityProvider,
) (*block.EncryptedBlock, error) {
	combined, err := t.XOR(cs)
	if err != nil {
		return nil, err
	}
	enc, err := block.NewEncryptedBlock(
		cs, block.TypeEncryptedConstituentBlockList,
		combined.Size(), combined.Buffer(), creator, time.Now(), cap,
	)
	if err != nil {
		return nil, fmt.Errorf("cbl: reinterpret tuple as encrypted list: %w", err)
	}
	return enc, nil
}
