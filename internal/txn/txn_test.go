package txn

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/metrics"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

var (
	computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
	memoProgramID          = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
)

type fakeRPC struct {
	blockhash      solana.Hash
	blockhashCalls int
	sendFn         func(attempt int, tx *solana.Transaction) (solana.Signature, error)
	sent           [][]byte
	statuses       *rpc.GetSignatureStatusesResult
}

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	f.blockhashCalls++
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: f.blockhash, LastValidBlockHeight: 100}}, nil
}

func (f *fakeRPC) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ rpc.TransactionOpts) (solana.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, err
	}
	f.sent = append(f.sent, raw)
	if f.sendFn != nil {
		return f.sendFn(len(f.sent), tx)
	}
	return tx.Signatures[0], nil
}

func (f *fakeRPC) GetSignatureStatuses(context.Context, bool, ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if f.statuses == nil {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	return f.statuses, nil
}

type fakeEstimator struct {
	levels  FeeLevels
	err     error
	encoded []string
}

func (f *fakeEstimator) EstimatePriorityFees(_ context.Context, encodedTx string) (FeeLevels, error) {
	f.encoded = append(f.encoded, encodedTx)
	return f.levels, f.err
}

func newTestSubmitter(client *fakeRPC, fees FeeEstimator, m *metrics.Metrics) *Submitter {
	return NewSubmitter(Config{
		Commitment:    rpc.CommitmentConfirmed,
		SubmitRetries: DefaultSubmitRetries,
		RetryInterval: time.Millisecond,
	}, client, solana.NewWallet().PrivateKey, fees, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func memoInstruction(t *testing.T) solana.Instruction {
	t.Helper()
	return solana.NewInstruction(
		memoProgramID,
		solana.AccountMetaSlice{},
		[]byte("hello"),
	)
}

func decodeSent(t *testing.T, raw []byte) *solana.Transaction {
	t.Helper()
	tx := new(solana.Transaction)
	require.NoError(t, tx.UnmarshalWithDecoder(bin.NewBinDecoder(raw)))
	return tx
}

func counterValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name && len(family.GetMetric()) > 0 {
			return family.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func priceOf(t *testing.T, tx *solana.Transaction) (uint64, bool) {
	t.Helper()
	for _, ix := range tx.Message.Instructions {
		if !tx.Message.AccountKeys[ix.ProgramIDIndex].Equals(computeBudgetProgramID) {
			continue
		}
		if len(ix.Data) == 9 && ix.Data[0] == 3 {
			return binary.LittleEndian.Uint64(ix.Data[1:]), true
		}
	}
	return 0, false
}

func TestSubmitFallsBackToDefaultFee(t *testing.T) {
	t.Parallel()

	client := &fakeRPC{blockhash: solana.Hash{1}}
	m := metrics.New()
	s := newTestSubmitter(client, &fakeEstimator{err: &FeeEstimateError{Reason: "status 500"}}, m)

	sig, err := s.Submit(context.Background(), Request{Instructions: []solana.Instruction{memoInstruction(t)}})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	tx := decodeSent(t, client.sent[0])
	require.Equal(t, sig, tx.Signatures[0])
	price, ok := priceOf(t, tx)
	require.True(t, ok)
	require.Equal(t, DefaultPriorityFeeMicroLamports, price)
	require.Equal(t, 1.0, counterValue(t, m, "xeenon_tools_priority_fee_fallbacks_total"))
}

func TestSubmitUsesEstimatedTierAndPrependsFee(t *testing.T) {
	t.Parallel()

	client := &fakeRPC{blockhash: solana.Hash{2}}
	estimator := &fakeEstimator{levels: FeeLevels{Medium: 2000, High: 5000, VeryHigh: 9000}}
	s := newTestSubmitter(client, estimator, nil)

	_, err := s.Submit(context.Background(), Request{Instructions: []solana.Instruction{memoInstruction(t)}})
	require.NoError(t, err)

	tx := decodeSent(t, client.sent[0])
	require.Len(t, tx.Message.Instructions, 2)
	first := tx.Message.Instructions[0]
	require.Equal(t, computeBudgetProgramID, tx.Message.AccountKeys[first.ProgramIDIndex])
	price, ok := priceOf(t, tx)
	require.True(t, ok)
	require.Equal(t, uint64(5000), price)
	last := tx.Message.Instructions[1]
	require.Equal(t, memoProgramID, tx.Message.AccountKeys[last.ProgramIDIndex])

	require.Len(t, estimator.encoded, 1)
	raw, err := base58.Decode(estimator.encoded[0])
	require.NoError(t, err)
	unsigned := decodeSent(t, raw)
	require.Len(t, unsigned.Message.Instructions, 1)
	require.Equal(t, solana.Signature{}, unsigned.Signatures[0])

	_, err = s.Submit(context.Background(), Request{
		Instructions: []solana.Instruction{memoInstruction(t)},
		Fee:          FeePolicy{Tier: TierVeryHigh},
	})
	require.NoError(t, err)
	price, _ = priceOf(t, decodeSent(t, client.sent[1]))
	require.Equal(t, uint64(9000), price)
}

func TestSubmitWithoutPriorityFee(t *testing.T) {
	t.Parallel()

	client := &fakeRPC{blockhash: solana.Hash{3}}
	estimator := &fakeEstimator{}
	s := newTestSubmitter(client, estimator, nil)

	given := solana.Hash{9}
	_, err := s.Submit(context.Background(), Request{
		Instructions:    []solana.Instruction{memoInstruction(t)},
		Fee:             FeePolicy{Disabled: true},
		RecentBlockhash: given,
	})
	require.NoError(t, err)
	require.Zero(t, client.blockhashCalls)
	require.Empty(t, estimator.encoded)

	tx := decodeSent(t, client.sent[0])
	require.Equal(t, given, tx.Message.RecentBlockhash)
	_, ok := priceOf(t, tx)
	require.False(t, ok)
}

func TestSubmitRetriesTransientFailuresWithSameBytes(t *testing.T) {
	t.Parallel()

	client := &fakeRPC{blockhash: solana.Hash{4}}
	client.sendFn = func(attempt int, tx *solana.Transaction) (solana.Signature, error) {
		if attempt < 3 {
			return solana.Signature{}, &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
		}
		return tx.Signatures[0], nil
	}
	m := metrics.New()
	s := newTestSubmitter(client, nil, m)

	sig, err := s.Submit(context.Background(), Request{Instructions: []solana.Instruction{memoInstruction(t)}})
	require.NoError(t, err)
	require.Len(t, client.sent, 3)
	require.Equal(t, client.sent[0], client.sent[1])
	require.Equal(t, client.sent[0], client.sent[2])
	require.Equal(t, decodeSent(t, client.sent[0]).Signatures[0], sig)
	require.Equal(t, 2.0, counterValue(t, m, "xeenon_tools_tx_submit_retries_total"))
}

func TestSubmitGivesUpAfterBoundedRetries(t *testing.T) {
	t.Parallel()

	client := &fakeRPC{blockhash: solana.Hash{5}}
	client.sendFn = func(int, *solana.Transaction) (solana.Signature, error) {
		return solana.Signature{}, errors.New("rpc call sendTransaction() on https://rpc: 429 Too Many Requests")
	}
	s := newTestSubmitter(client, nil, nil)

	_, err := s.Submit(context.Background(), Request{Instructions: []solana.Instruction{memoInstruction(t)}})
	require.Error(t, err)
	require.Len(t, client.sent, DefaultSubmitRetries+1)
	require.True(t, errors.Is(err, ErrTransient))
	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	require.Equal(t, DefaultSubmitRetries+1, subErr.Attempts)
}

func TestSubmitDoesNotRetryNodeRejections(t *testing.T) {
	t.Parallel()

	client := &fakeRPC{blockhash: solana.Hash{6}}
	client.sendFn = func(int, *solana.Transaction) (solana.Signature, error) {
		return solana.Signature{}, &jsonrpc.RPCError{Code: -32002, Message: "Transaction simulation failed: timeout in program"}
	}
	s := newTestSubmitter(client, nil, nil)

	_, err := s.Submit(context.Background(), Request{Instructions: []solana.Instruction{memoInstruction(t)}})
	require.Error(t, err)
	require.Len(t, client.sent, 1)
	require.False(t, errors.Is(err, ErrTransient))
	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
}

func TestSubmitRejectsEmptyRequest(t *testing.T) {
	t.Parallel()

	s := newTestSubmitter(&fakeRPC{}, nil, nil)
	_, err := s.Submit(context.Background(), Request{})
	require.True(t, errors.Is(err, ErrNoInstructions))
}

func TestIsRetriable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "net error", err: &net.OpError{Op: "read", Err: syscall.ECONNRESET}, want: true},
		{name: "eof", err: fmt.Errorf("post: %w", io.EOF), want: true},
		{name: "gateway", err: errors.New("unexpected status 503 Service Unavailable"), want: true},
		{name: "rpc error", err: &jsonrpc.RPCError{Code: -32002, Message: "timeout"}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("invalid account data"), want: false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, IsRetriable(tc.err))
		})
	}
}

func TestParseFeeTier(t *testing.T) {
	t.Parallel()

	tier, err := ParseFeeTier("")
	require.NoError(t, err)
	require.Equal(t, TierHigh, tier)
	tier, err = ParseFeeTier("veryHigh")
	require.NoError(t, err)
	require.Equal(t, TierVeryHigh, tier)
	_, err = ParseFeeTier("ludicrous")
	require.Error(t, err)
}

func TestHeliusEstimator(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req priorityFeeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "getPriorityFeeEstimate", req.Method)
		require.Len(t, req.Params, 1)
		require.True(t, req.Params[0].Options.IncludeAllPriorityFeeLevels)

		if req.Params[0].Transaction == "bad" {
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","error":{"code":-32602,"message":"invalid transaction"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","result":{"priorityFeeLevels":{"min":0,"low":10,"medium":100,"high":1500.7,"veryHigh":20000,"unsafeMax":90000}}}`))
	}))
	t.Cleanup(srv.Close)

	estimator := NewHeliusEstimator(srv.URL, time.Second)
	levels, err := estimator.EstimatePriorityFees(context.Background(), "abc")
	require.NoError(t, err)
	high, err := levels.For(TierHigh)
	require.NoError(t, err)
	require.Equal(t, uint64(1500), high)

	_, err = estimator.EstimatePriorityFees(context.Background(), "bad")
	var feeErr *FeeEstimateError
	require.True(t, errors.As(err, &feeErr))
}

func TestStatus(t *testing.T) {
	t.Parallel()

	client := &fakeRPC{}
	s := newTestSubmitter(client, nil, nil)
	sig := solana.Signature{7}

	status, err := s.Status(context.Background(), sig)
	require.NoError(t, err)
	require.False(t, status.Found)

	client.statuses = &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{{
		Slot:               42,
		ConfirmationStatus: rpc.ConfirmationStatusFinalized,
	}}}
	status, err = s.Status(context.Background(), sig)
	require.NoError(t, err)
	require.True(t, status.Found)
	require.True(t, status.Landed())
	require.Equal(t, uint64(42), status.Slot)

	waited, err := s.WaitForConfirmation(context.Background(), sig, time.Millisecond)
	require.NoError(t, err)
	require.True(t, waited.Landed())
}

func TestWaitForConfirmationStopsOnFailureOrDeadline(t *testing.T) {
	t.Parallel()

	sig := solana.Signature{9}
	pending := newTestSubmitter(&fakeRPC{}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	status, err := pending.WaitForConfirmation(ctx, sig, time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, status.Found)

	failed := newTestSubmitter(&fakeRPC{statuses: &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{{
		Slot:               5,
		ConfirmationStatus: rpc.ConfirmationStatusProcessed,
		Err:                map[string]any{"InstructionError": []any{2, "Custom"}},
	}}}}, nil, nil)
	status, err = failed.WaitForConfirmation(context.Background(), sig, time.Millisecond)
	require.Error(t, err)
	require.NotEmpty(t, status.Err)
	require.False(t, status.Landed())
}

func TestSubmitFallsBackWhenTierTableIsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"1","result":{"priorityFeeLevels":{}}}`))
	}))
	t.Cleanup(srv.Close)

	client := &fakeRPC{blockhash: solana.Hash{4}}
	m := metrics.New()
	s := newTestSubmitter(client, NewHeliusEstimator(srv.URL, time.Second), m)

	_, err := s.Submit(context.Background(), Request{Instructions: []solana.Instruction{memoInstruction(t)}})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	price, ok := priceOf(t, decodeSent(t, client.sent[0]))
	require.True(t, ok)
	require.Equal(t, DefaultPriorityFeeMicroLamports, price)
	require.Equal(t, 1.0, counterValue(t, m, "xeenon_tools_priority_fee_fallbacks_total"))
}

func TestFeeLevelsFor(t *testing.T) {
	t.Parallel()

	levels := FeeLevels{Min: 0, Low: 0.4, Medium: math.NaN(), High: 2500.9, VeryHigh: 1e30, UnsafeMax: -5}
	cases := []struct {
		tier    FeeTier
		want    uint64
		wantErr bool
	}{
		{tier: TierMin, wantErr: true},
		{tier: TierLow, wantErr: true},
		{tier: TierMedium, wantErr: true},
		{tier: TierHigh, want: 2500},
		{tier: TierVeryHigh, want: math.MaxUint64},
		{tier: TierUnsafeMax, wantErr: true},
		{tier: FeeTier("turbo"), wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(string(tc.tier), func(t *testing.T) {
			t.Parallel()
			got, err := levels.For(tc.tier)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
