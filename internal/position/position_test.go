package position

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/catalog"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/mayflower"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/pda"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/xeenon"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
)

var (
	testIDs = ProgramIDs{
		Xeenon:    solana.MustPublicKeyFromBase58("GpMobZUKPtEE1eiZQAADo2ecD54JXhNHPNts5kPGwLtb"),
		Mayflower: solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"),
		MintMain:  solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		Tenant:    solana.MustPublicKeyFromBase58("F8gkLV5nMaCG16PQAwkKKsTdWC2yuPektUXAFHQF4Cds"),
	}
	testOwner = solana.MustPublicKeyFromBase58("BsA8fuyw8XqBMiUfpLbdiBwbKg8MZMHB1jdZzjs7c46q")
)

func testToken() catalog.Token {
	return catalog.Token{
		Name:     "Example",
		Symbol:   "EXMPL",
		Address:  solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
		Decimals: 6,
		Market: catalog.Market{
			MayflowerMarket:      solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111"),
			MayflowerMarketGroup: solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111"),
			MayflowerMarketMeta:  solana.MustPublicKeyFromBase58("Stake11111111111111111111111111111111111111"),
		},
	}
}

func testSet(t *testing.T) PDASet {
	t.Helper()
	set, err := BuildPDASet(testIDs, testToken(), testOwner)
	require.NoError(t, err)
	return set
}

func discriminatorOf(t *testing.T, ix solana.Instruction) []byte {
	t.Helper()
	data, err := ix.Data()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 8)
	return data[:8]
}

func accruedPeriod(t *testing.T, ix solana.Instruction) uint16 {
	t.Helper()
	data, err := ix.Data()
	require.NoError(t, err)
	require.Equal(t, xeenon.Instruction_AccruePositionRewards[:], data[:8])
	return binary.LittleEndian.Uint16(data[8:10])
}

func TestBuildPDASet(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	again := testSet(t)
	require.Equal(t, set, again)

	token := testToken()
	market := pda.MustDeriveMarketPDA(testIDs.Xeenon, token.Market.MayflowerMarketMeta)
	require.Equal(t, market, set.XeenonMarket)
	require.Equal(t, pda.MustDerivePositionPDA(testIDs.Xeenon, market, testOwner), set.XeenonPosition)

	personal, _, err := mayflower.DerivePersonalPositionPDA(testIDs.Mayflower, token.Market.MayflowerMarketMeta, set.XeenonPosition)
	require.NoError(t, err)
	require.Equal(t, personal, set.MayflowerPosition)
	escrow, _, err := mayflower.DerivePersonalPositionEscrowPDA(testIDs.Mayflower, personal)
	require.NoError(t, err)
	require.Equal(t, escrow, set.Escrow)

	group, _, err := pda.DeriveMarketGroupPDA(testIDs.Xeenon, token.Market.MayflowerMarketGroup)
	require.NoError(t, err)
	require.Equal(t, group, set.XeenonMarketGroup)

	require.Equal(t, token.Address, set.MintToken)
	require.Equal(t, testIDs.MintMain, set.MintMain)
	require.Equal(t, testIDs.Tenant, set.Tenant)

	other, err := BuildPDASet(testIDs, token, solana.NewWallet().PublicKey())
	require.NoError(t, err)
	require.NotEqual(t, set.XeenonPosition, other.XeenonPosition)
	require.Equal(t, set.XeenonMarket, other.XeenonMarket)
}

func TestBuildPDASetRejectsMismatchedMarket(t *testing.T) {
	t.Parallel()

	token := testToken()
	token.Market.XeenonMarket = solana.NewWallet().PublicKey()
	_, err := BuildPDASet(testIDs, token, testOwner)
	require.True(t, errors.Is(err, ErrMarketMismatch))

	token.Market.XeenonMarket = pda.MustDeriveMarketPDA(testIDs.Xeenon, token.Market.MayflowerMarketMeta)
	_, err = BuildPDASet(testIDs, token, testOwner)
	require.NoError(t, err)

	_, err = BuildPDASet(ProgramIDs{}, token, testOwner)
	require.Error(t, err)
}

func TestBuildPDASetChecksMarketGroup(t *testing.T) {
	t.Parallel()

	token := testToken()
	token.Market.XeenonMarketGroup = solana.NewWallet().PublicKey()
	_, err := BuildPDASet(testIDs, token, testOwner)
	require.ErrorIs(t, err, ErrMarketMismatch)

	group, _, err := pda.DeriveMarketGroupPDA(testIDs.Xeenon, token.Market.MayflowerMarketGroup)
	require.NoError(t, err)
	token.Market.XeenonMarketGroup = group
	set, err := BuildPDASet(testIDs, token, testOwner)
	require.NoError(t, err)
	require.Equal(t, group, set.XeenonMarketGroup)
}

func TestPlanAbsentPosition(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	plan, err := NewSyncer(newFakeReader(), rpc.CommitmentConfirmed).Plan(context.Background(), set)
	require.NoError(t, err)
	require.Equal(t, StateAbsent, plan.State)
	require.False(t, plan.Exists())
	require.Len(t, plan.Instructions, 1)
	require.Equal(t, xeenon.Instruction_InitXeenonPosition[:], discriminatorOf(t, plan.Instructions[0]))
}

func TestPlanStalePosition(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	reader := newFakeReader()
	reader.putPosition(t, set, 5)
	reader.putMarket(t, set, 8)

	plan, err := NewSyncer(reader, rpc.CommitmentConfirmed).Plan(context.Background(), set)
	require.NoError(t, err)
	require.Equal(t, StateStale, plan.State)
	require.Equal(t, 3, plan.Pending())
	require.Len(t, plan.Instructions, 3)

	for i, ix := range plan.Instructions {
		period := uint16(5 + i)
		require.Equal(t, period, accruedPeriod(t, ix))
		require.Equal(t, pda.MustDeriveMarketPeriodPDA(testIDs.Xeenon, set.XeenonMarket, period), ix.Accounts()[2].PublicKey)
		require.Equal(t, set.XeenonPosition, ix.Accounts()[3].PublicKey)
	}
}

func TestPlanCurrentPosition(t *testing.T) {
	t.Parallel()

	for _, lastSeen := range []uint16{8, 9} {
		set := testSet(t)
		reader := newFakeReader()
		reader.putPosition(t, set, lastSeen)
		reader.putMarket(t, set, 8)

		plan, err := NewSyncer(reader, rpc.CommitmentConfirmed).Plan(context.Background(), set)
		require.NoError(t, err)
		require.Equal(t, StateCurrent, plan.State)
		require.True(t, plan.Exists())
		require.Empty(t, plan.Instructions)
	}
}

func TestPlanAccrualIsComplete(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	cases := [][2]uint16{{0, 1}, {0, 10}, {254, 258}, {1000, 1001}, {65530, 65535}}
	for _, c := range cases {
		plan, err := planFromPeriods(set, c[0], c[1])
		require.NoError(t, err)
		require.Len(t, plan.Instructions, int(c[1]-c[0]))
		for i, ix := range plan.Instructions {
			require.Equal(t, c[0]+uint16(i), accruedPeriod(t, ix))
		}
	}
}

func TestPlanPropagatesReadFailures(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	boom := errors.New("connection refused")

	reader := newFakeReader()
	reader.errs[set.XeenonPosition] = boom
	_, err := NewSyncer(reader, rpc.CommitmentConfirmed).Plan(context.Background(), set)
	require.True(t, errors.Is(err, boom))
	require.Len(t, reader.reads, 1)

	reader = newFakeReader()
	reader.putPosition(t, set, 1)
	_, err = NewSyncer(reader, rpc.CommitmentConfirmed).Plan(context.Background(), set)
	require.True(t, errors.Is(err, ErrMarketNotFound))

	reader = newFakeReader()
	reader.accounts[set.XeenonPosition] = []byte{1, 2, 3}
	_, err = NewSyncer(reader, rpc.CommitmentConfirmed).Plan(context.Background(), set)
	require.True(t, errors.Is(err, xeenon.ErrInvalidAccountData))
}

func TestDepositOnAbsentPositionInitializesFirst(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	plan, err := NewSyncer(newFakeReader(), rpc.CommitmentConfirmed).Plan(context.Background(), set)
	require.NoError(t, err)

	comp, err := NewComposer(set).Deposit(plan, 10_500_000)
	require.NoError(t, err)
	require.Len(t, comp.Create, 1)
	require.Len(t, comp.Sync, 1)
	require.Len(t, comp.Action, 1)

	ixs := comp.Instructions()
	require.Len(t, ixs, 3)
	require.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ixs[0].ProgramID())
	tokenATA, err := pda.DeriveAssociatedTokenAddress(set.Owner, set.MintToken)
	require.NoError(t, err)
	require.True(t, ixs[0].Accounts()[1].PublicKey.Equals(tokenATA))
	require.Equal(t, xeenon.Instruction_InitXeenonPosition[:], discriminatorOf(t, ixs[1]))
	require.Equal(t, xeenon.Instruction_DepositToken[:], discriminatorOf(t, ixs[2]))
}

func TestWithdrawOnStalePosition(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	reader := newFakeReader()
	reader.putPosition(t, set, 5)
	reader.putMarket(t, set, 8)
	plan, err := NewSyncer(reader, rpc.CommitmentConfirmed).Plan(context.Background(), set)
	require.NoError(t, err)

	comp, err := NewComposer(set).Withdraw(plan, 10)
	require.NoError(t, err)
	ixs := comp.Instructions()
	require.Len(t, ixs, 5)
	require.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ixs[0].ProgramID())
	require.Equal(t, uint16(5), accruedPeriod(t, ixs[1]))
	require.Equal(t, uint16(6), accruedPeriod(t, ixs[2]))
	require.Equal(t, uint16(7), accruedPeriod(t, ixs[3]))
	require.Equal(t, xeenon.Instruction_WithdrawToken[:], discriminatorOf(t, ixs[4]))
}

func TestPositionRequiredForWithdrawAndRepay(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	absent := SyncPlan{State: StateAbsent}
	composer := NewComposer(set)

	_, err := composer.Withdraw(absent, 1)
	require.True(t, errors.Is(err, ErrPositionNotFound))
	_, err = composer.Repay(absent, 1)
	require.True(t, errors.Is(err, ErrPositionNotFound))

	comp, err := composer.Borrow(absent, 1)
	require.NoError(t, err)
	require.Len(t, comp.Create, 1)
}

func TestBuyWithZeroMinimumOut(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	comp, err := NewComposer(set).Buy(2_500_000, 0)
	require.NoError(t, err)
	ixs := comp.Instructions()
	require.Len(t, ixs, 2)
	require.Empty(t, comp.Sync)

	tokenATA, err := pda.DeriveAssociatedTokenAddress(testOwner, set.MintToken)
	require.NoError(t, err)
	require.Equal(t, tokenATA, ixs[0].Accounts()[1].PublicKey)

	data, err := ixs[1].Data()
	require.NoError(t, err)
	require.Equal(t, xeenon.Instruction_BuyWithExactCashIn[:], data[:8])
	require.Equal(t, uint64(2_500_000), binary.LittleEndian.Uint64(data[8:16]))
	require.Equal(t, uint64(0), binary.LittleEndian.Uint64(data[16:24]))
}

func TestSellAndDonate(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	composer := NewComposer(set)

	sell, err := composer.Sell(10, 5)
	require.NoError(t, err)
	mainATA, err := pda.DeriveAssociatedTokenAddress(testOwner, set.MintMain)
	require.NoError(t, err)
	require.Equal(t, mainATA, sell.Create[0].Accounts()[1].PublicKey)

	donate, err := composer.Donate(42)
	require.NoError(t, err)
	ixs := donate.Instructions()
	require.Len(t, ixs, 1)
	require.Equal(t, testIDs.Mayflower, ixs[0].ProgramID())
	require.Equal(t, mainATA, ixs[0].Accounts()[6].PublicKey)
}

func TestCompositionOrdering(t *testing.T) {
	t.Parallel()

	set := testSet(t)
	plan, err := planFromPeriods(set, 1, 3)
	require.NoError(t, err)

	comp, err := NewComposer(set).Repay(plan, 7)
	require.NoError(t, err)
	ixs := comp.Instructions()
	require.Len(t, ixs, 4)
	require.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ixs[0].ProgramID())
	require.Equal(t, uint16(1), accruedPeriod(t, ixs[1]))
	require.Equal(t, uint16(2), accruedPeriod(t, ixs[2]))
	require.Equal(t, xeenon.Instruction_Repay[:], discriminatorOf(t, ixs[3]))
}
