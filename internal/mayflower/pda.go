package mayflower

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	seedPersonalPosition       = "personal_position"
	seedPersonalPositionEscrow = "personal_position_escrow"
	seedMintOptions            = "mint_options"
	seedLiqVaultMain           = "liq_vault_main"
	seedRevEscrowGroup         = "rev_escrow_group"
	seedRevEscrowTenant        = "rev_escrow_tenant"
)

// DerivePersonalPositionPDA derives the market position of owner. When the
// owner is a protocol position the result is that position's backing account.
func DerivePersonalPositionPDA(programID, marketMeta, owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedPersonalPosition), marketMeta.Bytes(), owner.Bytes()}, programID)
}

func DerivePersonalPositionEscrowPDA(programID, personalPosition solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(seedPersonalPositionEscrow), personalPosition.Bytes()}, programID)
}

func DeriveMintOptionsPDA(programID, marketMeta solana.PublicKey) (solana.PublicKey, uint8, error) {
	return deriveMarketMetaPDA(programID, seedMintOptions, marketMeta)
}

func DeriveLiqVaultMainPDA(programID, marketMeta solana.PublicKey) (solana.PublicKey, uint8, error) {
	return deriveMarketMetaPDA(programID, seedLiqVaultMain, marketMeta)
}

func DeriveRevEscrowGroupPDA(programID, marketMeta solana.PublicKey) (solana.PublicKey, uint8, error) {
	return deriveMarketMetaPDA(programID, seedRevEscrowGroup, marketMeta)
}

func DeriveRevEscrowTenantPDA(programID, marketMeta solana.PublicKey) (solana.PublicKey, uint8, error) {
	return deriveMarketMetaPDA(programID, seedRevEscrowTenant, marketMeta)
}

func deriveMarketMetaPDA(programID solana.PublicKey, seed string, marketMeta solana.PublicKey) (solana.PublicKey, uint8, error) {
	pk, bump, err := solana.FindProgramAddress([][]byte{[]byte(seed), marketMeta.Bytes()}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive %s PDA: %w", seed, err)
	}
	return pk, bump, nil
}
