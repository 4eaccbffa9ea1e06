package txn

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const defaultPollInterval = 700 * time.Millisecond

type Status struct {
	Signature          solana.Signature `json:"signature"`
	Found              bool             `json:"found"`
	ConfirmationStatus string           `json:"confirmationStatus,omitempty"`
	Slot               uint64           `json:"slot,omitempty"`
	Confirmations      *uint64          `json:"confirmations,omitempty"`
	Err                string           `json:"err,omitempty"`
}

// Landed reports whether the transaction reached at least confirmed
// commitment.
func (s Status) Landed() bool {
	return s.ConfirmationStatus == string(rpc.ConfirmationStatusConfirmed) ||
		s.ConfirmationStatus == string(rpc.ConfirmationStatusFinalized)
}

// Status performs a single signature status lookup.
func (s *Submitter) Status(ctx context.Context, sig solana.Signature) (Status, error) {
	result, err := s.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return Status{}, fmt.Errorf("get signature status %s: %w", sig, err)
	}
	out := Status{Signature: sig}
	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return out, nil
	}
	status := result.Value[0]
	out.Found = true
	out.Slot = status.Slot
	out.Confirmations = status.Confirmations
	out.ConfirmationStatus = string(status.ConfirmationStatus)
	if status.Err != nil {
		out.Err = fmt.Sprintf("%v", status.Err)
	}
	return out, nil
}

// WaitForConfirmation polls until the transaction is confirmed, fails, or
// ctx ends. The last observed status is returned in every case.
func (s *Submitter) WaitForConfirmation(ctx context.Context, sig solana.Signature, pollInterval time.Duration) (Status, error) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := Status{Signature: sig}
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
			status, err := s.Status(ctx, sig)
			if err != nil {
				s.logger.Debug("signature status lookup failed", "signature", sig, "err", err)
				continue
			}
			last = status
			if status.Err != "" {
				return status, fmt.Errorf("transaction failed: %s", status.Err)
			}
			if status.Landed() {
				return status, nil
			}
		}
	}
}
