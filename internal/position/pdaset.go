package position

import (
	"errors"
	"fmt"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/catalog"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/mayflower"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/pda"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/xeenon"
	"github.com/gagliardetto/solana-go"
)

var ErrMarketMismatch = errors.New("catalog market does not match derived market")

// ProgramIDs are the deployment-wide addresses every PDA set is derived from.
type ProgramIDs struct {
	Xeenon    solana.PublicKey
	Mayflower solana.PublicKey
	MintMain  solana.PublicKey
	Tenant    solana.PublicKey
}

func (p ProgramIDs) Validate() error {
	for name, pk := range map[string]solana.PublicKey{
		"xeenon program":    p.Xeenon,
		"mayflower program": p.Mayflower,
		"main mint":         p.MintMain,
		"tenant":            p.Tenant,
	} {
		if pk.IsZero() {
			return fmt.Errorf("%s address is required", name)
		}
	}
	return nil
}

// PDASet is every address an action on one (token, owner) pair touches.
type PDASet struct {
	Owner            solana.PublicKey
	XeenonProgram    solana.PublicKey
	MayflowerProgram solana.PublicKey
	MintMain         solana.PublicKey
	MintToken        solana.PublicKey
	Tenant           solana.PublicKey

	XeenonMarket      solana.PublicKey
	XeenonMarketGroup solana.PublicKey
	XeenonPosition    solana.PublicKey

	MayflowerMarket      solana.PublicKey
	MayflowerMarketMeta  solana.PublicKey
	MayflowerMarketGroup solana.PublicKey
	MayflowerPosition    solana.PublicKey
	Escrow               solana.PublicKey
	MintOptions          solana.PublicKey
	LiqVaultMain         solana.PublicKey
	RevEscrowGroup       solana.PublicKey
	RevEscrowTenant      solana.PublicKey
}

// BuildPDASet derives the full address set for owner acting on token. It
// performs no I/O.
func BuildPDASet(ids ProgramIDs, token catalog.Token, owner solana.PublicKey) (PDASet, error) {
	if err := ids.Validate(); err != nil {
		return PDASet{}, err
	}
	if owner.IsZero() {
		return PDASet{}, fmt.Errorf("owner address is required")
	}
	meta := token.Market.MayflowerMarketMeta

	market, _, err := pda.DeriveMarketPDA(ids.Xeenon, meta)
	if err != nil {
		return PDASet{}, fmt.Errorf("derive xeenon market: %w", err)
	}
	if !token.Market.XeenonMarket.IsZero() && !token.Market.XeenonMarket.Equals(market) {
		return PDASet{}, fmt.Errorf("%w: catalog %s, derived %s", ErrMarketMismatch, token.Market.XeenonMarket, market)
	}
	group, _, err := pda.DeriveMarketGroupPDA(ids.Xeenon, token.Market.MayflowerMarketGroup)
	if err != nil {
		return PDASet{}, fmt.Errorf("derive xeenon market group: %w", err)
	}
	if !token.Market.XeenonMarketGroup.IsZero() && !token.Market.XeenonMarketGroup.Equals(group) {
		return PDASet{}, fmt.Errorf("%w: catalog group %s, derived %s", ErrMarketMismatch, token.Market.XeenonMarketGroup, group)
	}
	position, _, err := pda.DerivePositionPDA(ids.Xeenon, market, owner)
	if err != nil {
		return PDASet{}, fmt.Errorf("derive xeenon position: %w", err)
	}
	personal, _, err := mayflower.DerivePersonalPositionPDA(ids.Mayflower, meta, position)
	if err != nil {
		return PDASet{}, fmt.Errorf("derive personal position: %w", err)
	}
	escrow, _, err := mayflower.DerivePersonalPositionEscrowPDA(ids.Mayflower, personal)
	if err != nil {
		return PDASet{}, fmt.Errorf("derive personal position escrow: %w", err)
	}
	mintOptions, _, err := mayflower.DeriveMintOptionsPDA(ids.Mayflower, meta)
	if err != nil {
		return PDASet{}, err
	}
	liqVault, _, err := mayflower.DeriveLiqVaultMainPDA(ids.Mayflower, meta)
	if err != nil {
		return PDASet{}, err
	}
	revGroup, _, err := mayflower.DeriveRevEscrowGroupPDA(ids.Mayflower, meta)
	if err != nil {
		return PDASet{}, err
	}
	revTenant, _, err := mayflower.DeriveRevEscrowTenantPDA(ids.Mayflower, meta)
	if err != nil {
		return PDASet{}, err
	}

	return PDASet{
		Owner:                owner,
		XeenonProgram:        ids.Xeenon,
		MayflowerProgram:     ids.Mayflower,
		MintMain:             ids.MintMain,
		MintToken:            token.Address,
		Tenant:               ids.Tenant,
		XeenonMarket:         market,
		XeenonMarketGroup:    group,
		XeenonPosition:       position,
		MayflowerMarket:      token.Market.MayflowerMarket,
		MayflowerMarketMeta:  meta,
		MayflowerMarketGroup: token.Market.MayflowerMarketGroup,
		MayflowerPosition:    personal,
		Escrow:               escrow,
		MintOptions:          mintOptions,
		LiqVaultMain:         liqVault,
		RevEscrowGroup:       revGroup,
		RevEscrowTenant:      revTenant,
	}, nil
}

func (s PDASet) positionAccounts() xeenon.PositionAccounts {
	return xeenon.PositionAccounts{
		Payer:                     s.Owner,
		Market:                    s.XeenonMarket,
		MarketGroup:               s.XeenonMarketGroup,
		Position:                  s.XeenonPosition,
		MayflowerProgram:          s.MayflowerProgram,
		MayflowerMarket:           s.MayflowerMarket,
		MayflowerMarketMeta:       s.MayflowerMarketMeta,
		MayflowerMarketGroup:      s.MayflowerMarketGroup,
		MayflowerPersonalPosition: s.MayflowerPosition,
		Escrow:                    s.Escrow,
		MintToken:                 s.MintToken,
	}
}

func (s PDASet) loanAccounts() xeenon.LoanAccounts {
	return xeenon.LoanAccounts{
		PositionAccounts: s.positionAccounts(),
		MayflowerTenant:  s.Tenant,
		LiqVaultMain:     s.LiqVaultMain,
		RevEscrowGroup:   s.RevEscrowGroup,
		RevEscrowTenant:  s.RevEscrowTenant,
		MintMain:         s.MintMain,
	}
}

func (s PDASet) tradeAccounts() xeenon.TradeAccounts {
	return xeenon.TradeAccounts{
		Payer:                s.Owner,
		Market:               s.XeenonMarket,
		MayflowerProgram:     s.MayflowerProgram,
		MayflowerMarket:      s.MayflowerMarket,
		MayflowerMarketMeta:  s.MayflowerMarketMeta,
		MayflowerMarketGroup: s.MayflowerMarketGroup,
		MayflowerTenant:      s.Tenant,
		LiqVaultMain:         s.LiqVaultMain,
		RevEscrowGroup:       s.RevEscrowGroup,
		RevEscrowTenant:      s.RevEscrowTenant,
		MintMain:             s.MintMain,
		MintToken:            s.MintToken,
	}
}
