package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/catalog"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/mayflower"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/position"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/txn"
	"github.com/gagliardetto/solana-go"
)

type fakeCatalog struct {
	tokens map[string]catalog.Token
	calls  int
}

func (f *fakeCatalog) LookupToken(_ context.Context, identifier string) (catalog.Token, error) {
	f.calls++
	token, ok := f.tokens[identifier]
	if !ok {
		return catalog.Token{}, fmt.Errorf("%w: %s", catalog.ErrNotFound, identifier)
	}
	return token, nil
}

type fakePlanner struct {
	planFn func(set position.PDASet) (position.SyncPlan, error)
	sets   []position.PDASet
}

func (f *fakePlanner) Plan(_ context.Context, set position.PDASet) (position.SyncPlan, error) {
	f.sets = append(f.sets, set)
	if f.planFn == nil {
		return position.SyncPlan{State: position.StateCurrent}, nil
	}
	return f.planFn(set)
}

type fakeMarkets struct {
	market *mayflower.MarketLinear
	err    error
	loaded []solana.PublicKey
}

func (f *fakeMarkets) LoadMarket(_ context.Context, address solana.PublicKey) (*mayflower.MarketLinear, error) {
	f.loaded = append(f.loaded, address)
	if f.err != nil {
		return nil, f.err
	}
	return f.market, nil
}

type fakeSubmitter struct {
	signer    solana.PublicKey
	sig       solana.Signature
	submitErr error
	requests  []txn.Request
	status    txn.Status
	waitFn    func(ctx context.Context) (txn.Status, error)
}

func (f *fakeSubmitter) Signer() solana.PublicKey {
	return f.signer
}

func (f *fakeSubmitter) Submit(_ context.Context, req txn.Request) (solana.Signature, error) {
	f.requests = append(f.requests, req)
	if f.submitErr != nil {
		return solana.Signature{}, f.submitErr
	}
	return f.sig, nil
}

func (f *fakeSubmitter) Status(context.Context, solana.Signature) (txn.Status, error) {
	return f.status, nil
}

func (f *fakeSubmitter) WaitForConfirmation(ctx context.Context, _ solana.Signature, _ time.Duration) (txn.Status, error) {
	if f.waitFn != nil {
		return f.waitFn(ctx)
	}
	return f.status, nil
}
