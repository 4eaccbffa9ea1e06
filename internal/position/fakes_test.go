package position

import (
	"context"
	"testing"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/anchor"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/pda"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/xeenon"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type fakeReader struct {
	accounts map[solana.PublicKey][]byte
	errs     map[solana.PublicKey]error
	reads    []solana.PublicKey
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		accounts: make(map[solana.PublicKey][]byte),
		errs:     make(map[solana.PublicKey]error),
	}
}

func (f *fakeReader) GetAccountInfoWithOpts(_ context.Context, account solana.PublicKey, _ *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	f.reads = append(f.reads, account)
	if err, ok := f.errs[account]; ok {
		return nil, err
	}
	data, ok := f.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)}}, nil
}

func (f *fakeReader) putPosition(t *testing.T, set PDASet, lastSeen uint16) {
	t.Helper()
	var seed [pda.PeriodSeedLen]uint8
	copy(seed[:], pda.PeriodSeed(lastSeen))
	data, err := anchor.EncodeAccount(xeenon.Account_XeenonPosition, xeenon.Position{
		Owner:          set.Owner,
		Market:         set.XeenonMarket,
		LastSeenPeriod: seed,
	})
	if err != nil {
		t.Fatalf("encode position: %v", err)
	}
	f.accounts[set.XeenonPosition] = data
}

func (f *fakeReader) putMarket(t *testing.T, set PDASet, current uint16) {
	t.Helper()
	var seed [pda.PeriodSeedLen]uint8
	copy(seed[:], pda.PeriodSeed(current))
	data, err := anchor.EncodeAccount(xeenon.Account_XeenonMarket, xeenon.Market{
		MarketMeta:    set.MayflowerMarketMeta,
		MarketGroup:   set.XeenonMarketGroup,
		MintToken:     set.MintToken,
		CurrentPeriod: seed,
	})
	if err != nil {
		t.Fatalf("encode market: %v", err)
	}
	f.accounts[set.XeenonMarket] = data
}
