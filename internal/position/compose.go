package position

import (
	"fmt"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/mayflower"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/pda"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/xeenon"
	"github.com/gagliardetto/solana-go"
)

// Composition groups an action's instructions by role. Instructions returns
// them in execution order: account creation, position sync, then the action.
type Composition struct {
	Create []solana.Instruction
	Sync   []solana.Instruction
	Action []solana.Instruction
}

func (c Composition) Instructions() []solana.Instruction {
	out := make([]solana.Instruction, 0, len(c.Create)+len(c.Sync)+len(c.Action))
	out = append(out, c.Create...)
	out = append(out, c.Sync...)
	out = append(out, c.Action...)
	return out
}

// Composer builds instruction lists for one PDA set. Amounts are in base
// units.
type Composer struct {
	set PDASet
}

func NewComposer(set PDASet) *Composer {
	return &Composer{set: set}
}

func (c *Composer) Set() PDASet {
	return c.set
}

func (c *Composer) Buy(cashIn, minTokenOut uint64) (Composition, error) {
	createTokenATA, tokenATA, err := c.createATA(c.set.MintToken)
	if err != nil {
		return Composition{}, err
	}
	mainATA, err := pda.DeriveAssociatedTokenAddress(c.set.Owner, c.set.MintMain)
	if err != nil {
		return Composition{}, err
	}
	ix, err := xeenon.NewBuyWithExactCashInInstruction(c.set.XeenonProgram, cashIn, minTokenOut, c.set.tradeAccounts(), mainATA, tokenATA)
	if err != nil {
		return Composition{}, fmt.Errorf("build buy: %w", err)
	}
	return Composition{Create: []solana.Instruction{createTokenATA}, Action: []solana.Instruction{ix}}, nil
}

func (c *Composer) Sell(tokenIn, minCashOut uint64) (Composition, error) {
	createMainATA, mainATA, err := c.createATA(c.set.MintMain)
	if err != nil {
		return Composition{}, err
	}
	tokenATA, err := pda.DeriveAssociatedTokenAddress(c.set.Owner, c.set.MintToken)
	if err != nil {
		return Composition{}, err
	}
	ix, err := xeenon.NewSellWithExactTokenInInstruction(c.set.XeenonProgram, tokenIn, minCashOut, c.set.tradeAccounts(), tokenATA, mainATA)
	if err != nil {
		return Composition{}, fmt.Errorf("build sell: %w", err)
	}
	return Composition{Create: []solana.Instruction{createMainATA}, Action: []solana.Instruction{ix}}, nil
}

// Deposit initializes the position first when it is absent.
func (c *Composer) Deposit(plan SyncPlan, amount uint64) (Composition, error) {
	createTokenATA, tokenATA, err := c.createATA(c.set.MintToken)
	if err != nil {
		return Composition{}, err
	}
	ix, err := xeenon.NewDepositTokenInstruction(c.set.XeenonProgram, amount, c.set.positionAccounts(), tokenATA)
	if err != nil {
		return Composition{}, fmt.Errorf("build deposit: %w", err)
	}
	return Composition{
		Create: []solana.Instruction{createTokenATA},
		Sync:   plan.Instructions,
		Action: []solana.Instruction{ix},
	}, nil
}

func (c *Composer) Withdraw(plan SyncPlan, amount uint64) (Composition, error) {
	if !plan.Exists() {
		return Composition{}, fmt.Errorf("withdraw: %w", ErrPositionNotFound)
	}
	createTokenATA, tokenATA, err := c.createATA(c.set.MintToken)
	if err != nil {
		return Composition{}, err
	}
	ix, err := xeenon.NewWithdrawTokenInstruction(c.set.XeenonProgram, amount, c.set.positionAccounts(), tokenATA)
	if err != nil {
		return Composition{}, fmt.Errorf("build withdraw: %w", err)
	}
	return Composition{
		Create: []solana.Instruction{createTokenATA},
		Sync:   plan.Instructions,
		Action: []solana.Instruction{ix},
	}, nil
}

// Borrow initializes the position first when it is absent; the program
// rejects the borrow itself when there is no collateral.
func (c *Composer) Borrow(plan SyncPlan, amount uint64) (Composition, error) {
	createMainATA, mainATA, err := c.createATA(c.set.MintMain)
	if err != nil {
		return Composition{}, err
	}
	ix, err := xeenon.NewBorrowInstruction(c.set.XeenonProgram, amount, c.set.loanAccounts(), mainATA)
	if err != nil {
		return Composition{}, fmt.Errorf("build borrow: %w", err)
	}
	return Composition{
		Create: []solana.Instruction{createMainATA},
		Sync:   plan.Instructions,
		Action: []solana.Instruction{ix},
	}, nil
}

func (c *Composer) Repay(plan SyncPlan, amount uint64) (Composition, error) {
	if !plan.Exists() {
		return Composition{}, fmt.Errorf("repay: %w", ErrPositionNotFound)
	}
	createMainATA, mainATA, err := c.createATA(c.set.MintMain)
	if err != nil {
		return Composition{}, err
	}
	ix, err := xeenon.NewRepayInstruction(c.set.XeenonProgram, amount, c.set.loanAccounts(), mainATA)
	if err != nil {
		return Composition{}, fmt.Errorf("build repay: %w", err)
	}
	return Composition{
		Create: []solana.Instruction{createMainATA},
		Sync:   plan.Instructions,
		Action: []solana.Instruction{ix},
	}, nil
}

// Donate sends main-mint liquidity straight to the underlying market.
func (c *Composer) Donate(amount uint64) (Composition, error) {
	mainATA, err := pda.DeriveAssociatedTokenAddress(c.set.Owner, c.set.MintMain)
	if err != nil {
		return Composition{}, err
	}
	ix, err := mayflower.NewDonateLiquidityInstruction(c.set.MayflowerProgram, amount, mayflower.DonateLiquidityAccounts{
		Payer:        c.set.Owner,
		Market:       c.set.MayflowerMarket,
		MarketMeta:   c.set.MayflowerMarketMeta,
		MarketGroup:  c.set.MayflowerMarketGroup,
		LiqVaultMain: c.set.LiqVaultMain,
		MintMain:     c.set.MintMain,
		MainSrc:      mainATA,
	})
	if err != nil {
		return Composition{}, fmt.Errorf("build donate liquidity: %w", err)
	}
	return Composition{Action: []solana.Instruction{ix}}, nil
}

func (c *Composer) createATA(mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ix, ata, err := xeenon.NewCreateIdempotentATAInstruction(c.set.Owner, c.set.Owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("build create token account for mint %s: %w", mint, err)
	}
	return ix, ata, nil
}
