package xeenon

import (
	"fmt"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/anchor"
	"github.com/gagliardetto/solana-go"
)

var (
	Instruction_InitXeenonPosition     = anchor.InstructionDiscriminator("init_xeenon_position")
	Instruction_AccruePositionRewards  = anchor.InstructionDiscriminator("accrue_position_rewards")
	Instruction_DepositToken           = anchor.InstructionDiscriminator("deposit_token")
	Instruction_WithdrawToken          = anchor.InstructionDiscriminator("withdraw_token")
	Instruction_Borrow                 = anchor.InstructionDiscriminator("borrow")
	Instruction_Repay                  = anchor.InstructionDiscriminator("repay")
	Instruction_BuyWithExactCashIn     = anchor.InstructionDiscriminator("buy_with_exact_cash_in")
	Instruction_SellWithExactTokenIn   = anchor.InstructionDiscriminator("sell_with_exact_token_in")
	associatedTokenCreateIdempotentTag = []byte{1}
)

// PositionAccounts is the account set shared by every instruction that
// touches a position. All fields are required; nothing is inferred from seeds
// at build time.
type PositionAccounts struct {
	Payer                     solana.PublicKey
	Market                    solana.PublicKey
	MarketGroup               solana.PublicKey
	Position                  solana.PublicKey
	MayflowerProgram          solana.PublicKey
	MayflowerMarket           solana.PublicKey
	MayflowerMarketMeta       solana.PublicKey
	MayflowerMarketGroup      solana.PublicKey
	MayflowerPersonalPosition solana.PublicKey
	Escrow                    solana.PublicKey
	MintToken                 solana.PublicKey
}

// TradeAccounts is the account set of buy/sell against the underlying market.
type TradeAccounts struct {
	Payer                solana.PublicKey
	Market               solana.PublicKey
	MayflowerProgram     solana.PublicKey
	MayflowerMarket      solana.PublicKey
	MayflowerMarketMeta  solana.PublicKey
	MayflowerMarketGroup solana.PublicKey
	MayflowerTenant      solana.PublicKey
	LiqVaultMain         solana.PublicKey
	RevEscrowGroup       solana.PublicKey
	RevEscrowTenant      solana.PublicKey
	MintMain             solana.PublicKey
	MintToken            solana.PublicKey
}

// LoanAccounts extends PositionAccounts with the cash side used by borrow/repay.
type LoanAccounts struct {
	PositionAccounts
	MayflowerTenant solana.PublicKey
	LiqVaultMain    solana.PublicKey
	RevEscrowGroup  solana.PublicKey
	RevEscrowTenant solana.PublicKey
	MintMain        solana.PublicKey
}

func NewInitXeenonPositionInstruction(programID solana.PublicKey, accs PositionAccounts) (solana.Instruction, error) {
	data, err := anchor.EncodeInstructionData(Instruction_InitXeenonPosition)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(accs.Payer, true, true),
		solana.NewAccountMeta(accs.Market, false, false),
		solana.NewAccountMeta(accs.Position, true, false),
		solana.NewAccountMeta(accs.MayflowerMarketMeta, false, false),
		solana.NewAccountMeta(accs.MayflowerPersonalPosition, true, false),
		solana.NewAccountMeta(accs.Escrow, true, false),
		solana.NewAccountMeta(accs.MintToken, false, false),
		solana.NewAccountMeta(accs.MayflowerProgram, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewAccruePositionRewardsInstruction closes one elapsed reward period for a
// position. marketPeriod must be the period PDA of exactly that period.
func NewAccruePositionRewardsInstruction(
	programID solana.PublicKey,
	period uint16,
	payer solana.PublicKey,
	market solana.PublicKey,
	marketPeriod solana.PublicKey,
	position solana.PublicKey,
) (solana.Instruction, error) {
	data, err := anchor.EncodeInstructionData(Instruction_AccruePositionRewards, period)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(market, false, false),
		solana.NewAccountMeta(marketPeriod, false, false),
		solana.NewAccountMeta(position, true, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

func NewDepositTokenInstruction(programID solana.PublicKey, amount uint64, accs PositionAccounts, payerTokenAccount solana.PublicKey) (solana.Instruction, error) {
	return newPositionTransferInstruction(programID, Instruction_DepositToken, amount, accs, payerTokenAccount)
}

func NewWithdrawTokenInstruction(programID solana.PublicKey, amount uint64, accs PositionAccounts, payerTokenAccount solana.PublicKey) (solana.Instruction, error) {
	return newPositionTransferInstruction(programID, Instruction_WithdrawToken, amount, accs, payerTokenAccount)
}

func newPositionTransferInstruction(
	programID solana.PublicKey,
	disc anchor.Discriminator,
	amount uint64,
	accs PositionAccounts,
	payerTokenAccount solana.PublicKey,
) (solana.Instruction, error) {
	data, err := anchor.EncodeInstructionData(disc, amount)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(accs.Payer, true, true),
		solana.NewAccountMeta(accs.Market, false, false),
		solana.NewAccountMeta(accs.MarketGroup, false, false),
		solana.NewAccountMeta(accs.Position, true, false),
		solana.NewAccountMeta(accs.MayflowerMarket, true, false),
		solana.NewAccountMeta(accs.MayflowerMarketMeta, false, false),
		solana.NewAccountMeta(accs.MayflowerPersonalPosition, true, false),
		solana.NewAccountMeta(accs.Escrow, true, false),
		solana.NewAccountMeta(accs.MintToken, false, false),
		solana.NewAccountMeta(payerTokenAccount, true, false),
		solana.NewAccountMeta(accs.MayflowerProgram, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

func NewBorrowInstruction(programID solana.PublicKey, amount uint64, accs LoanAccounts, payerMainAccount solana.PublicKey) (solana.Instruction, error) {
	return newLoanInstruction(programID, Instruction_Borrow, amount, accs, payerMainAccount)
}

func NewRepayInstruction(programID solana.PublicKey, amount uint64, accs LoanAccounts, payerMainAccount solana.PublicKey) (solana.Instruction, error) {
	return newLoanInstruction(programID, Instruction_Repay, amount, accs, payerMainAccount)
}

func newLoanInstruction(
	programID solana.PublicKey,
	disc anchor.Discriminator,
	amount uint64,
	accs LoanAccounts,
	payerMainAccount solana.PublicKey,
) (solana.Instruction, error) {
	data, err := anchor.EncodeInstructionData(disc, amount)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(accs.Payer, true, true),
		solana.NewAccountMeta(accs.Market, false, false),
		solana.NewAccountMeta(accs.Position, true, false),
		solana.NewAccountMeta(accs.MayflowerMarket, true, false),
		solana.NewAccountMeta(accs.MayflowerMarketMeta, false, false),
		solana.NewAccountMeta(accs.MayflowerMarketGroup, false, false),
		solana.NewAccountMeta(accs.MayflowerTenant, false, false),
		solana.NewAccountMeta(accs.MayflowerPersonalPosition, true, false),
		solana.NewAccountMeta(accs.LiqVaultMain, true, false),
		solana.NewAccountMeta(accs.RevEscrowGroup, true, false),
		solana.NewAccountMeta(accs.RevEscrowTenant, true, false),
		solana.NewAccountMeta(accs.MintMain, false, false),
		solana.NewAccountMeta(payerMainAccount, true, false),
		solana.NewAccountMeta(accs.MayflowerProgram, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// NewBuyWithExactCashInInstruction spends exactly cashIn of the main mint and
// fails on chain when fewer than minTokenOut tokens would be received.
func NewBuyWithExactCashInInstruction(
	programID solana.PublicKey,
	cashIn uint64,
	minTokenOut uint64,
	accs TradeAccounts,
	mainSrc solana.PublicKey,
	tokenDst solana.PublicKey,
) (solana.Instruction, error) {
	data, err := anchor.EncodeInstructionData(Instruction_BuyWithExactCashIn, cashIn, minTokenOut)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, tradeAccountMetas(accs, mainSrc, tokenDst), data), nil
}

// NewSellWithExactTokenInInstruction sells exactly tokenIn and fails on chain
// when less than minCashOut of the main mint would be received.
func NewSellWithExactTokenInInstruction(
	programID solana.PublicKey,
	tokenIn uint64,
	minCashOut uint64,
	accs TradeAccounts,
	tokenSrc solana.PublicKey,
	mainDst solana.PublicKey,
) (solana.Instruction, error) {
	data, err := anchor.EncodeInstructionData(Instruction_SellWithExactTokenIn, tokenIn, minCashOut)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, tradeAccountMetas(accs, mainDst, tokenSrc), data), nil
}

func tradeAccountMetas(accs TradeAccounts, mainAccount, tokenAccount solana.PublicKey) solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(accs.Payer, true, true),
		solana.NewAccountMeta(accs.Market, false, false),
		solana.NewAccountMeta(accs.MayflowerMarket, true, false),
		solana.NewAccountMeta(accs.MayflowerMarketMeta, false, false),
		solana.NewAccountMeta(accs.MayflowerMarketGroup, false, false),
		solana.NewAccountMeta(accs.MayflowerTenant, false, false),
		solana.NewAccountMeta(accs.LiqVaultMain, true, false),
		solana.NewAccountMeta(accs.RevEscrowGroup, true, false),
		solana.NewAccountMeta(accs.RevEscrowTenant, true, false),
		solana.NewAccountMeta(accs.MintMain, false, false),
		solana.NewAccountMeta(accs.MintToken, true, false),
		solana.NewAccountMeta(mainAccount, true, false),
		solana.NewAccountMeta(tokenAccount, true, false),
		solana.NewAccountMeta(accs.MayflowerProgram, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
}

// NewCreateIdempotentATAInstruction creates owner's associated token account
// for mint, or does nothing when it already exists.
func NewCreateIdempotentATAInstruction(payer, owner, mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive associated token address: %w", err)
	}
	data := make([]byte, len(associatedTokenCreateIdempotentTag))
	copy(data, associatedTokenCreateIdempotentTag)

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(owner, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, data), ata, nil
}
