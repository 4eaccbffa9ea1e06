package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var (
	ErrNoKey              = errors.New("no signing key configured: set SOLANA_PRIVATE_KEY or SOLANA_KEYPAIR_PATH")
	ErrUnrecognizedFormat = errors.New("unrecognized private key format (supported: JSON array, base58, hex, comma-separated bytes)")
	ErrMnemonic           = errors.New("seed phrase keys are not supported, export the key as base58 or a JSON byte array")
	ErrKeyMismatch        = errors.New("secret key public half does not match its seed")
)

// LoadKey resolves the signing key. An inline key takes precedence over the
// keypair file.
func LoadKey(privateKey, keypairPath string) (solana.PrivateKey, error) {
	if strings.TrimSpace(privateKey) != "" {
		return ParseKey(privateKey)
	}
	if strings.TrimSpace(keypairPath) != "" {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(keypairPath)
		if err != nil {
			return nil, fmt.Errorf("load keypair file %s: %w", keypairPath, err)
		}
		return key, nil
	}
	return nil, ErrNoKey
}

// ParseKey detects the encoding of an inline private key. A 32-byte value is
// treated as an ed25519 seed and a 64-byte value as a full secret key.
func ParseKey(raw string) (solana.PrivateKey, error) {
	trimmed := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
		var ints []int
		if err := json.Unmarshal([]byte(trimmed), &ints); err != nil {
			return nil, fmt.Errorf("decode JSON key: %w", err)
		}
		b, err := bytesFromInts(ints)
		if err != nil {
			return nil, err
		}
		return fromBytes(b)

	case len(strings.Fields(trimmed)) == 12 || len(strings.Fields(trimmed)) == 24:
		return nil, ErrMnemonic

	case strings.Contains(trimmed, ","):
		parts := strings.Split(trimmed, ",")
		ints := make([]int, 0, len(parts))
		for _, part := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("decode comma-separated key: %w", err)
			}
			ints = append(ints, n)
		}
		b, err := bytesFromInts(ints)
		if err != nil {
			return nil, err
		}
		return fromBytes(b)

	case isHex(trimmed) && (len(trimmed) == 64 || len(trimmed) == 128):
		b, err := hex.DecodeString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("decode hex key: %w", err)
		}
		return fromBytes(b)
	}

	b, err := base58.Decode(trimmed)
	if err != nil {
		return nil, ErrUnrecognizedFormat
	}
	return fromBytes(b)
}

func bytesFromInts(ints []int) ([]byte, error) {
	out := make([]byte, len(ints))
	for i, n := range ints {
		if n < 0 || n > 255 {
			return nil, fmt.Errorf("key byte %d out of range: %d", i, n)
		}
		out[i] = byte(n)
	}
	return out, nil
}

func fromBytes(b []byte) (solana.PrivateKey, error) {
	switch len(b) {
	case ed25519.SeedSize:
		return solana.PrivateKey(ed25519.NewKeyFromSeed(b)), nil
	case ed25519.PrivateKeySize:
		expected := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
		if !bytes.Equal(expected[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
			return nil, ErrKeyMismatch
		}
		return solana.PrivateKey(b), nil
	default:
		return nil, fmt.Errorf("%w: decoded %d bytes, want 32 or 64", ErrUnrecognizedFormat, len(b))
	}
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
