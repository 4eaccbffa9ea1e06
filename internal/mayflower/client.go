package mayflower

import (
	"context"
	"errors"
	"fmt"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/anchor"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var Instruction_DonateLiquidity = anchor.InstructionDiscriminator("donate_liquidity")

var ErrMarketNotFound = errors.New("market account not found")

// AccountReader is the part of the RPC client used to read program accounts.
type AccountReader interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

type Client struct {
	programID  solana.PublicKey
	rpc        AccountReader
	commitment rpc.CommitmentType
}

func NewClient(programID solana.PublicKey, reader AccountReader, commitment rpc.CommitmentType) *Client {
	return &Client{programID: programID, rpc: reader, commitment: commitment}
}

func (c *Client) ProgramID() solana.PublicKey {
	return c.programID
}

func (c *Client) LoadMarket(ctx context.Context, address solana.PublicKey) (*MarketLinear, error) {
	resp, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{Commitment: c.commitment})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, address)
		}
		return nil, fmt.Errorf("fetch market %s: %w", address, err)
	}
	if resp == nil || resp.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, address)
	}
	if !resp.Value.Owner.Equals(c.programID) {
		return nil, fmt.Errorf("%w: market %s owned by %s", anchor.ErrInvalidAccountData, address, resp.Value.Owner)
	}
	market, err := ParseAccount_MarketLinear(resp.Value.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("decode market %s: %w", address, err)
	}
	return market, nil
}

type DonateLiquidityAccounts struct {
	Payer        solana.PublicKey
	Market       solana.PublicKey
	MarketMeta   solana.PublicKey
	MarketGroup  solana.PublicKey
	LiqVaultMain solana.PublicKey
	MintMain     solana.PublicKey
	MainSrc      solana.PublicKey
}

// NewDonateLiquidityInstruction moves amount of the main mint into the
// market's liquidity vault without minting tokens in return.
func NewDonateLiquidityInstruction(programID solana.PublicKey, amount uint64, accs DonateLiquidityAccounts) (solana.Instruction, error) {
	data, err := anchor.EncodeInstructionData(Instruction_DonateLiquidity, amount)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(accs.Payer, true, true),
		solana.NewAccountMeta(accs.Market, true, false),
		solana.NewAccountMeta(accs.MarketMeta, false, false),
		solana.NewAccountMeta(accs.MarketGroup, false, false),
		solana.NewAccountMeta(accs.LiqVaultMain, true, false),
		solana.NewAccountMeta(accs.MintMain, false, false),
		solana.NewAccountMeta(accs.MainSrc, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}
