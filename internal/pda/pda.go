package pda

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	seedMarketGroup  = "market_group"
	seedMarket       = "market"
	seedMarketPeriod = "market_period"
	seedPosition     = "position"
)

// PeriodSeedLen is the width of an encoded market period seed.
const PeriodSeedLen = 2

func DeriveMarketGroupPDA(xeenonProgramID, underlyingMarketGroup solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedMarketGroup), underlyingMarketGroup.Bytes()}, xeenonProgramID)
}

func DeriveMarketPDA(xeenonProgramID, marketMeta solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedMarket), marketMeta.Bytes()}, xeenonProgramID)
}

// DeriveMarketPeriodPDA derives the per-period reward account of a market.
// The period is encoded as a little-endian u16.
func DeriveMarketPeriodPDA(xeenonProgramID, market solana.PublicKey, period uint16) (solana.PublicKey, uint8, error) {
	return DeriveMarketPeriodPDAFromSeed(xeenonProgramID, market, PeriodSeed(period))
}

// DeriveMarketPeriodPDAFromSeed accepts a period that is already encoded, as
// stored on chain.
func DeriveMarketPeriodPDAFromSeed(xeenonProgramID, market solana.PublicKey, periodSeed []byte) (solana.PublicKey, uint8, error) {
	if len(periodSeed) != PeriodSeedLen {
		return solana.PublicKey{}, 0, fmt.Errorf("market period seed must be %d bytes, got %d", PeriodSeedLen, len(periodSeed))
	}
	return solana.FindProgramAddress([][]byte{[]byte(seedMarketPeriod), market.Bytes(), periodSeed}, xeenonProgramID)
}

func DerivePositionPDA(xeenonProgramID, market, owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedPosition), market.Bytes(), owner.Bytes()}, xeenonProgramID)
}

// DeriveAssociatedTokenAddress returns the classic SPL token account of owner
// for mint. Off-curve owners (PDAs) are allowed.
func DeriveAssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token address for %s/%s: %w", owner, mint, err)
	}
	return ata, nil
}

func PeriodSeed(period uint16) []byte {
	buf := make([]byte, PeriodSeedLen)
	binary.LittleEndian.PutUint16(buf, period)
	return buf
}

// PeriodFromSeed decodes a little-endian period as stored in program accounts.
func PeriodFromSeed(seed [PeriodSeedLen]uint8) uint16 {
	return binary.LittleEndian.Uint16(seed[:])
}

func MustDeriveMarketPDA(xeenonProgramID, marketMeta solana.PublicKey) solana.PublicKey {
	pk, _, err := DeriveMarketPDA(xeenonProgramID, marketMeta)
	if err != nil {
		panic(fmt.Errorf("derive market PDA: %w", err))
	}
	return pk
}

func MustDeriveMarketPeriodPDA(xeenonProgramID, market solana.PublicKey, period uint16) solana.PublicKey {
	pk, _, err := DeriveMarketPeriodPDA(xeenonProgramID, market, period)
	if err != nil {
		panic(fmt.Errorf("derive market period PDA: %w", err))
	}
	return pk
}

func MustDerivePositionPDA(xeenonProgramID, market, owner solana.PublicKey) solana.PublicKey {
	pk, _, err := DerivePositionPDA(xeenonProgramID, market, owner)
	if err != nil {
		panic(fmt.Errorf("derive position PDA: %w", err))
	}
	return pk
}
