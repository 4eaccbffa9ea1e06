package txn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

type FeeTier string

const (
	TierMin       FeeTier = "min"
	TierLow       FeeTier = "low"
	TierMedium    FeeTier = "medium"
	TierHigh      FeeTier = "high"
	TierVeryHigh  FeeTier = "veryHigh"
	TierUnsafeMax FeeTier = "unsafeMax"
)

const DefaultTier = TierHigh

// DefaultPriorityFeeMicroLamports is the compute unit price used when no
// estimate is available.
const DefaultPriorityFeeMicroLamports uint64 = 1000

func ParseFeeTier(raw string) (FeeTier, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return DefaultTier, nil
	case "min":
		return TierMin, nil
	case "low":
		return TierLow, nil
	case "medium":
		return TierMedium, nil
	case "high":
		return TierHigh, nil
	case "veryhigh", "very_high":
		return TierVeryHigh, nil
	case "unsafemax", "unsafe_max":
		return TierUnsafeMax, nil
	default:
		return "", fmt.Errorf("unsupported priority fee tier %q", raw)
	}
}

// FeePolicy selects the priority fee of a submission. The zero value uses
// the default tier.
type FeePolicy struct {
	Disabled bool
	Tier     FeeTier
}

func (p FeePolicy) tier() FeeTier {
	if p.Tier == "" {
		return DefaultTier
	}
	return p.Tier
}

// FeeLevels are per-tier compute unit prices in micro-lamports. A tier the
// estimator left out decodes as zero and is reported as unusable by For.
type FeeLevels struct {
	Min       float64 `json:"min"`
	Low       float64 `json:"low"`
	Medium    float64 `json:"medium"`
	High      float64 `json:"high"`
	VeryHigh  float64 `json:"veryHigh"`
	UnsafeMax float64 `json:"unsafeMax"`
}

func (l FeeLevels) For(tier FeeTier) (uint64, error) {
	var v float64
	switch tier {
	case TierMin:
		v = l.Min
	case TierLow:
		v = l.Low
	case TierMedium:
		v = l.Medium
	case TierHigh:
		v = l.High
	case TierVeryHigh:
		v = l.VeryHigh
	case TierUnsafeMax:
		v = l.UnsafeMax
	default:
		return 0, fmt.Errorf("unsupported priority fee tier %q", tier)
	}
	if math.IsNaN(v) || v < 1 {
		return 0, fmt.Errorf("no usable %s priority fee (got %v)", tier, v)
	}
	if v >= math.MaxUint64 {
		return math.MaxUint64, nil
	}
	return uint64(v), nil
}

// FeeEstimator returns fee levels for a serialized, base58-encoded
// transaction. Any error makes the submitter fall back to the default fee.
type FeeEstimator interface {
	EstimatePriorityFees(ctx context.Context, encodedTx string) (FeeLevels, error)
}

// FeeEstimateError describes why an estimate could not be used.
type FeeEstimateError struct {
	Reason string
	Err    error
}

func (e *FeeEstimateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("priority fee estimate: %s: %v", e.Reason, e.Err)
	}
	return "priority fee estimate: " + e.Reason
}

func (e *FeeEstimateError) Unwrap() error {
	return e.Err
}

// HeliusEstimator calls the getPriorityFeeEstimate JSON-RPC extension on the
// configured RPC endpoint.
type HeliusEstimator struct {
	endpoint string
	http     *http.Client
}

func NewHeliusEstimator(endpoint string, timeout time.Duration) *HeliusEstimator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HeliusEstimator{endpoint: endpoint, http: &http.Client{Timeout: timeout}}
}

type priorityFeeRequest struct {
	JSONRPC string                   `json:"jsonrpc"`
	ID      string                   `json:"id"`
	Method  string                   `json:"method"`
	Params  []priorityFeeRequestItem `json:"params"`
}

type priorityFeeRequestItem struct {
	Transaction string             `json:"transaction"`
	Options     priorityFeeOptions `json:"options"`
}

type priorityFeeOptions struct {
	IncludeAllPriorityFeeLevels bool `json:"includeAllPriorityFeeLevels"`
}

type priorityFeeResponse struct {
	Result *struct {
		PriorityFeeLevels *FeeLevels `json:"priorityFeeLevels"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *HeliusEstimator) EstimatePriorityFees(ctx context.Context, encodedTx string) (FeeLevels, error) {
	payload, err := json.Marshal(priorityFeeRequest{
		JSONRPC: "2.0",
		ID:      "1",
		Method:  "getPriorityFeeEstimate",
		Params: []priorityFeeRequestItem{{
			Transaction: encodedTx,
			Options:     priorityFeeOptions{IncludeAllPriorityFeeLevels: true},
		}},
	})
	if err != nil {
		return FeeLevels{}, &FeeEstimateError{Reason: "encode request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return FeeLevels{}, &FeeEstimateError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return FeeLevels{}, &FeeEstimateError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return FeeLevels{}, &FeeEstimateError{Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var decoded priorityFeeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return FeeLevels{}, &FeeEstimateError{Reason: "decode response", Err: err}
	}
	if decoded.Error != nil {
		return FeeLevels{}, &FeeEstimateError{Reason: fmt.Sprintf("rpc error %d: %s", decoded.Error.Code, decoded.Error.Message)}
	}
	if decoded.Result == nil || decoded.Result.PriorityFeeLevels == nil {
		return FeeLevels{}, &FeeEstimateError{Reason: "response has no priority fee levels"}
	}
	return *decoded.Result.PriorityFeeLevels, nil
}
