package tools

import (
	"context"
	"fmt"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/catalog"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/position"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/txn"
	"github.com/shopspring/decimal"
)

// TxResult is returned by every tool that submits a transaction. The
// transaction was accepted by the node, not necessarily confirmed.
type TxResult struct {
	TxSignature string `json:"txSignature"`
	TxStatus    string `json:"txStatus"`
}

func (s *Service) buy(ctx context.Context, args Arguments) (any, error) {
	tokenID, cashIn, minOut, err := tradeArgs(args, "crediezAmount")
	if err != nil {
		return nil, err
	}
	token, set, err := s.resolve(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	rawIn, err := toRaw("crediezAmount", cashIn, s.cfg.MainDecimals, false)
	if err != nil {
		return nil, err
	}
	rawMin, err := toRaw("minOutAmount", minOut, token.Decimals, true)
	if err != nil {
		return nil, err
	}
	comp, err := position.NewComposer(set).Buy(rawIn, rawMin)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, comp)
}

func (s *Service) sell(ctx context.Context, args Arguments) (any, error) {
	tokenID, tokenIn, minOut, err := tradeArgs(args, "tokenAmount")
	if err != nil {
		return nil, err
	}
	token, set, err := s.resolve(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	rawIn, err := toRaw("tokenAmount", tokenIn, token.Decimals, false)
	if err != nil {
		return nil, err
	}
	rawMin, err := toRaw("minOutAmount", minOut, s.cfg.MainDecimals, true)
	if err != nil {
		return nil, err
	}
	comp, err := position.NewComposer(set).Sell(rawIn, rawMin)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, comp)
}

type positionAction func(c *position.Composer, plan position.SyncPlan, amount uint64) (position.Composition, error)

func (s *Service) deposit(ctx context.Context, args Arguments) (any, error) {
	return s.positionCall(ctx, args, "tokensAmount", false, (*position.Composer).Deposit)
}

func (s *Service) withdraw(ctx context.Context, args Arguments) (any, error) {
	return s.positionCall(ctx, args, "tokensAmount", false, (*position.Composer).Withdraw)
}

func (s *Service) borrow(ctx context.Context, args Arguments) (any, error) {
	return s.positionCall(ctx, args, "borrowAmount", true, (*position.Composer).Borrow)
}

func (s *Service) repay(ctx context.Context, args Arguments) (any, error) {
	return s.positionCall(ctx, args, "repayAmount", true, (*position.Composer).Repay)
}

// positionCall runs an action that mutates the caller's position. The
// position state is read fresh and handed to the composer so the sync
// instructions always match what is on chain right now.
func (s *Service) positionCall(ctx context.Context, args Arguments, amountName string, inMain bool, action positionAction) (any, error) {
	tokenID, err := args.text("token")
	if err != nil {
		return nil, err
	}
	qty, err := args.amount(amountName)
	if err != nil {
		return nil, err
	}
	token, set, err := s.resolve(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	decimals := token.Decimals
	if inMain {
		decimals = s.cfg.MainDecimals
	}
	raw, err := toRaw(amountName, qty, decimals, false)
	if err != nil {
		return nil, err
	}
	plan, err := s.deps.Positions.Plan(ctx, set)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("position plan",
		"token", token.Symbol,
		"position", set.XeenonPosition,
		"state", plan.State,
		"last_seen", plan.LastSeen,
		"current", plan.Current,
	)
	comp, err := action(position.NewComposer(set), plan, raw)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, comp)
}

func (s *Service) donateLiquidity(ctx context.Context, args Arguments) (any, error) {
	tokenID, err := args.text("token")
	if err != nil {
		return nil, err
	}
	qty, err := args.amount("amount")
	if err != nil {
		return nil, err
	}
	_, set, err := s.resolve(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	raw, err := toRaw("amount", qty, s.cfg.MainDecimals, false)
	if err != nil {
		return nil, err
	}
	comp, err := position.NewComposer(set).Donate(raw)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, comp)
}

func tradeArgs(args Arguments, amountName string) (string, decimal.Decimal, decimal.Decimal, error) {
	tokenID, err := args.text("token")
	if err != nil {
		return "", decimal.Decimal{}, decimal.Decimal{}, err
	}
	qty, err := args.amount(amountName)
	if err != nil {
		return "", decimal.Decimal{}, decimal.Decimal{}, err
	}
	minOut, err := args.optionalAmount("minOutAmount")
	if err != nil {
		return "", decimal.Decimal{}, decimal.Decimal{}, err
	}
	return tokenID, qty, minOut, nil
}

func (s *Service) resolve(ctx context.Context, tokenID string) (catalog.Token, position.PDASet, error) {
	token, err := s.deps.Catalog.LookupToken(ctx, tokenID)
	if err != nil {
		return catalog.Token{}, position.PDASet{}, err
	}
	set, err := position.BuildPDASet(s.cfg.Programs, token, s.deps.Submitter.Signer())
	if err != nil {
		return catalog.Token{}, position.PDASet{}, err
	}
	return token, set, nil
}

func (s *Service) submit(ctx context.Context, comp position.Composition) (TxResult, error) {
	sig, err := s.deps.Submitter.Submit(ctx, txn.Request{
		Instructions: comp.Instructions(),
		Fee:          s.cfg.FeePolicy,
	})
	if err != nil {
		return TxResult{}, err
	}
	return TxResult{
		TxSignature: sig.String(),
		TxStatus:    fmt.Sprintf("Transaction sent but not confirmed, visit %s to see the current status", s.explorerLink(sig.String())),
	}, nil
}

func (s *Service) explorerLink(sig string) string {
	return fmt.Sprintf(s.cfg.ExplorerURL, sig)
}
