package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/mayflower"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/txn"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// QuoteResult values are in whole units and signed from the trader's side.
type QuoteResult struct {
	Fee              decimal.Decimal `json:"fee"`
	NetCrediez       decimal.Decimal `json:"netCrediez"`
	NetToken         decimal.Decimal `json:"netToken"`
	PriceImpact      decimal.Decimal `json:"priceImpact"`
	AverageFillPrice decimal.Decimal `json:"averageFillPrice"`
}

func (s *Service) quoteBuy(ctx context.Context, args Arguments) (any, error) {
	return s.quote(ctx, args, "crediezAmount", (*mayflower.MarketLinear).QuoteBuy)
}

func (s *Service) quoteSell(ctx context.Context, args Arguments) (any, error) {
	return s.quote(ctx, args, "tokenAmount", (*mayflower.MarketLinear).QuoteSell)
}

func (s *Service) quote(ctx context.Context, args Arguments, amountName string, fn func(*mayflower.MarketLinear, decimal.Decimal) (mayflower.Quote, error)) (any, error) {
	tokenID, err := args.text("token")
	if err != nil {
		return nil, err
	}
	qty, err := args.amount(amountName)
	if err != nil {
		return nil, err
	}
	token, err := s.deps.Catalog.LookupToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	market, err := s.deps.Markets.LoadMarket(ctx, token.Market.MayflowerMarket)
	if err != nil {
		return nil, err
	}
	q, err := fn(market, qty)
	if err != nil {
		return nil, err
	}
	return QuoteResult{
		Fee:              q.Fee,
		NetCrediez:       q.NetCash,
		NetToken:         q.NetToken,
		PriceImpact:      q.PriceImpact,
		AverageFillPrice: q.AverageFillPrice,
	}, nil
}

func (s *Service) tokenDetails(ctx context.Context, args Arguments) (any, error) {
	tokenID, err := args.text("tokenAddress")
	if err != nil {
		return nil, err
	}
	return s.deps.Catalog.LookupToken(ctx, tokenID)
}

type StatusResult struct {
	Signature          string  `json:"signature"`
	Found              bool    `json:"found"`
	ConfirmationStatus string  `json:"confirmationStatus,omitempty"`
	Slot               uint64  `json:"slot,omitempty"`
	Confirmations      *uint64 `json:"confirmations,omitempty"`
	Error              string  `json:"error,omitempty"`
	ExplorerURL        string  `json:"explorerUrl"`
	TimedOut           bool    `json:"timedOut,omitempty"`
}

func (s *Service) transactionStatus(ctx context.Context, args Arguments) (any, error) {
	sig, err := args.signature("signature")
	if err != nil {
		return nil, err
	}
	wait, err := args.boolean("wait")
	if err != nil {
		return nil, err
	}

	if !wait {
		status, err := s.deps.Submitter.Status(ctx, sig)
		if err != nil {
			return nil, err
		}
		return s.statusResult(sig, status), nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()
	status, err := s.deps.Submitter.WaitForConfirmation(waitCtx, sig, s.cfg.PollInterval)
	out := s.statusResult(sig, status)
	switch {
	case err == nil, status.Err != "":
		return out, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		out.TimedOut = true
		return out, nil
	default:
		return nil, fmt.Errorf("wait for confirmation: %w", err)
	}
}

func (s *Service) statusResult(sig solana.Signature, status txn.Status) StatusResult {
	return StatusResult{
		Signature:          sig.String(),
		Found:              status.Found,
		ConfirmationStatus: status.ConfirmationStatus,
		Slot:               status.Slot,
		Confirmations:      status.Confirmations,
		Error:              status.Err,
		ExplorerURL:        s.explorerLink(sig.String()),
	}
}
