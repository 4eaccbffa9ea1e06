package xeenon

import (
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/anchor"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/pda"
	"github.com/gagliardetto/solana-go"
)

var ErrInvalidAccountData = anchor.ErrInvalidAccountData

var (
	Account_XeenonPosition = anchor.AccountDiscriminator("XeenonPosition")
	Account_XeenonMarket   = anchor.AccountDiscriminator("XeenonMarket")
)

// Position is the per-owner staking/collateral record of one market.
type Position struct {
	Owner          solana.PublicKey
	Market         solana.PublicKey
	LastSeenPeriod [pda.PeriodSeedLen]uint8
	Staked         uint64
	Debt           uint64
	Bump           uint8
}

func (p *Position) LastSeen() uint16 {
	return pda.PeriodFromSeed(p.LastSeenPeriod)
}

// Market is the protocol wrapper around an underlying market. CurrentPeriod
// only moves forward and is advanced by the program.
type Market struct {
	MarketMeta    solana.PublicKey
	MarketGroup   solana.PublicKey
	MintToken     solana.PublicKey
	CurrentPeriod [pda.PeriodSeedLen]uint8
	Bump          uint8
}

func (m *Market) Current() uint16 {
	return pda.PeriodFromSeed(m.CurrentPeriod)
}

func ParseAccount_XeenonPosition(data []byte) (*Position, error) {
	out := new(Position)
	if err := anchor.DecodeAccount(data, Account_XeenonPosition, "xeenon position", out); err != nil {
		return nil, err
	}
	return out, nil
}

func ParseAccount_XeenonMarket(data []byte) (*Market, error) {
	out := new(Market)
	if err := anchor.DecodeAccount(data, Account_XeenonMarket, "xeenon market", out); err != nil {
		return nil, err
	}
	return out, nil
}
