package anchor

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

var ErrInvalidAccountData = errors.New("unexpected account data")

// Discriminator is the 8-byte anchor prefix of instruction data and account data.
type Discriminator [8]byte

func InstructionDiscriminator(ixName string) Discriminator {
	return hashDiscriminator("global:" + ixName)
}

func AccountDiscriminator(accountName string) Discriminator {
	return hashDiscriminator("account:" + accountName)
}

func hashDiscriminator(preimage string) Discriminator {
	hash := sha256.Sum256([]byte(preimage))
	var out Discriminator
	copy(out[:], hash[:8])
	return out
}

// EncodeInstructionData writes the discriminator followed by the borsh
// encoding of each argument in order.
func EncodeInstructionData(disc Discriminator, args ...any) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	enc := bin.NewBorshEncoder(buf)
	for i, arg := range args {
		if err := enc.Encode(arg); err != nil {
			return nil, fmt.Errorf("encode instruction arg %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// DecodeAccount checks the discriminator and borsh-decodes the remaining
// bytes into out. Trailing bytes beyond out's layout are ignored so that
// fields appended by later program versions do not break decoding.
func DecodeAccount(data []byte, disc Discriminator, name string, out any) error {
	if len(data) < len(disc) {
		return fmt.Errorf("%w: %s payload too short (%d bytes)", ErrInvalidAccountData, name, len(data))
	}
	if !bytes.Equal(data[:len(disc)], disc[:]) {
		return fmt.Errorf("%w: %s discriminator mismatch", ErrInvalidAccountData, name)
	}
	if err := bin.NewBorshDecoder(data[len(disc):]).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidAccountData, name, err)
	}
	return nil
}

// EncodeAccount produces account data in the layout the program writes.
func EncodeAccount(disc Discriminator, account any) ([]byte, error) {
	return EncodeInstructionData(disc, account)
}
