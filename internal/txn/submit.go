package txn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/mr-tron/base58"
)

const (
	DefaultSubmitRetries   = 3
	defaultRetryInterval   = 250 * time.Millisecond
	defaultMaxRetryBackoff = 2 * time.Second
)

var (
	// ErrTransient marks network failures that outlived every resend.
	ErrTransient      = errors.New("transient network error")
	ErrNoInstructions = errors.New("transaction has no instructions")
)

// SubmissionError is returned when the node did not accept the transaction.
type SubmissionError struct {
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit transaction (%d attempts): %v", e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// RPCClient is the part of the RPC client used to submit and inspect
// transactions.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

type Config struct {
	Commitment         rpc.CommitmentType
	SkipPreflight      bool
	SubmitRetries      int
	NodeMaxRetries     *uint
	DefaultPriorityFee uint64
	ComputeUnitLimit   uint32
	RetryInterval      time.Duration
}

// Request is one transaction to submit. Zero RecentBlockhash and FeePayer
// are filled in from the node and the signer.
type Request struct {
	Instructions    []solana.Instruction
	Fee             FeePolicy
	RecentBlockhash solana.Hash
	FeePayer        solana.PublicKey
}

type Submitter struct {
	cfg     Config
	rpc     RPCClient
	signer  solana.PrivateKey
	fees    FeeEstimator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewSubmitter(cfg Config, client RPCClient, signer solana.PrivateKey, fees FeeEstimator, m *metrics.Metrics, logger *slog.Logger) *Submitter {
	if cfg.SubmitRetries < 0 {
		cfg.SubmitRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.DefaultPriorityFee == 0 {
		cfg.DefaultPriorityFee = DefaultPriorityFeeMicroLamports
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{cfg: cfg, rpc: client, signer: signer, fees: fees, metrics: m, logger: logger}
}

func (s *Submitter) Signer() solana.PublicKey {
	return s.signer.PublicKey()
}

// Submit signs the request once and sends it, resending the same signed
// transaction on retriable network failures. It returns as soon as the node
// accepts the transaction; confirmation is not awaited.
func (s *Submitter) Submit(ctx context.Context, req Request) (solana.Signature, error) {
	if len(req.Instructions) == 0 {
		return solana.Signature{}, ErrNoInstructions
	}

	blockhash := req.RecentBlockhash
	if blockhash.IsZero() {
		recent, err := s.rpc.GetLatestBlockhash(ctx, s.cfg.Commitment)
		if err != nil {
			s.metrics.ObserveSubmission("blockhash_failed")
			return solana.Signature{}, s.wrapSendError(fmt.Errorf("get latest blockhash: %w", err), 1)
		}
		if recent == nil || recent.Value == nil {
			s.metrics.ObserveSubmission("blockhash_failed")
			return solana.Signature{}, &SubmissionError{Attempts: 1, Err: errors.New("get latest blockhash: empty response")}
		}
		blockhash = recent.Value.Blockhash
	}
	payer := req.FeePayer
	if payer.IsZero() {
		payer = s.signer.PublicKey()
	}

	instructions := req.Instructions
	if !req.Fee.Disabled {
		price := s.priorityFee(ctx, req.Fee, instructions, blockhash, payer)
		prefixed, err := s.withComputeBudget(price, instructions)
		if err != nil {
			return solana.Signature{}, err
		}
		instructions = prefixed
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if s.signer.PublicKey().Equals(key) {
			return &s.signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	return s.send(ctx, tx)
}

func (s *Submitter) send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	opts := rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: s.cfg.Commitment,
	}
	if s.cfg.NodeMaxRetries != nil {
		retries := *s.cfg.NodeMaxRetries
		opts.MaxRetries = &retries
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryInterval
	policy.MaxInterval = defaultMaxRetryBackoff
	policy.MaxElapsedTime = 0

	var (
		sig      solana.Signature
		attempts int
	)
	operation := func() error {
		attempts++
		got, err := s.rpc.SendTransactionWithOpts(ctx, tx, opts)
		if err != nil {
			if IsRetriable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		sig = got
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.metrics.IncSubmitRetry()
		s.logger.Warn("transaction send failed, retrying",
			"attempt", attempts,
			"wait", wait,
			"signature", tx.Signatures[0],
			"err", err,
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.cfg.SubmitRetries)), ctx), notify)
	if err != nil {
		s.metrics.ObserveSubmission("rejected")
		return solana.Signature{}, s.wrapSendError(err, attempts)
	}
	s.metrics.ObserveSubmission("accepted")
	s.logger.Info("transaction submitted", "signature", sig, "attempts", attempts)
	return sig, nil
}

func (s *Submitter) wrapSendError(err error, attempts int) error {
	if IsRetriable(err) {
		err = fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return &SubmissionError{Attempts: attempts, Err: err}
}

// priorityFee applies the single fallback rule: any estimation failure uses
// the configured default price.
func (s *Submitter) priorityFee(ctx context.Context, policy FeePolicy, instructions []solana.Instruction, blockhash solana.Hash, payer solana.PublicKey) uint64 {
	levels, err := s.estimate(ctx, instructions, blockhash, payer)
	if err == nil {
		price, tierErr := levels.For(policy.tier())
		if tierErr == nil {
			s.logger.Debug("priority fee estimated", "tier", policy.tier(), "micro_lamports", price)
			return price
		}
		err = &FeeEstimateError{Reason: "select tier", Err: tierErr}
	}
	s.metrics.IncFeeFallback()
	s.logger.Warn("priority fee estimate unavailable, using default",
		"micro_lamports", s.cfg.DefaultPriorityFee,
		"err", err,
	)
	return s.cfg.DefaultPriorityFee
}

func (s *Submitter) estimate(ctx context.Context, instructions []solana.Instruction, blockhash solana.Hash, payer solana.PublicKey) (FeeLevels, error) {
	if s.fees == nil {
		return FeeLevels{}, &FeeEstimateError{Reason: "no estimator configured"}
	}
	encoded, err := encodeUnsigned(instructions, blockhash, payer)
	if err != nil {
		return FeeLevels{}, &FeeEstimateError{Reason: "serialize transaction", Err: err}
	}
	return s.fees.EstimatePriorityFees(ctx, encoded)
}

// encodeUnsigned serializes the transaction with zeroed signature slots, the
// form fee estimators accept before signing.
func encodeUnsigned(instructions []solana.Instruction, blockhash solana.Hash, payer solana.PublicKey) (string, error) {
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return "", err
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base58.Encode(raw), nil
}

// withComputeBudget prepends the compute budget instructions so they run
// before anything else in the transaction.
func (s *Submitter) withComputeBudget(price uint64, instructions []solana.Instruction) ([]solana.Instruction, error) {
	out := make([]solana.Instruction, 0, len(instructions)+2)
	if s.cfg.ComputeUnitLimit > 0 {
		cuLimitIx, err := computebudget.NewSetComputeUnitLimitInstruction(s.cfg.ComputeUnitLimit).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("build compute unit limit instruction: %w", err)
		}
		out = append(out, cuLimitIx)
	}
	cuPriceIx, err := computebudget.NewSetComputeUnitPriceInstruction(price).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("build compute unit price instruction: %w", err)
	}
	out = append(out, cuPriceIx)
	return append(out, instructions...), nil
}

// IsRetriable reports whether err is a network-level failure worth resending
// the same signed transaction for. Errors returned by the node itself are not.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "connection reset", "connection refused", "429", "too many requests", "503", "service unavailable", "502", "bad gateway"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
