package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/catalog"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/mayflower"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/metrics"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/position"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/txn"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

const (
	defaultExplorerURL    = "https://solscan.io/tx/%s"
	defaultConfirmTimeout = 30 * time.Second
	defaultMainDecimals   = 6
)

type TokenResolver interface {
	LookupToken(ctx context.Context, identifier string) (catalog.Token, error)
}

type PositionPlanner interface {
	Plan(ctx context.Context, set position.PDASet) (position.SyncPlan, error)
}

type MarketLoader interface {
	LoadMarket(ctx context.Context, address solana.PublicKey) (*mayflower.MarketLinear, error)
}

type Submitter interface {
	Signer() solana.PublicKey
	Submit(ctx context.Context, req txn.Request) (solana.Signature, error)
	Status(ctx context.Context, sig solana.Signature) (txn.Status, error)
	WaitForConfirmation(ctx context.Context, sig solana.Signature, pollInterval time.Duration) (txn.Status, error)
}

type Config struct {
	Programs       position.ProgramIDs
	MainDecimals   uint8
	ExplorerURL    string
	FeePolicy      txn.FeePolicy
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Deps are the network collaborators every handler goes through. None of
// them may hold state across calls.
type Deps struct {
	Catalog   TokenResolver
	Positions PositionPlanner
	Markets   MarketLoader
	Submitter Submitter
}

type Service struct {
	cfg     Config
	deps    Deps
	metrics *metrics.Metrics
	logger  *slog.Logger
	tools   map[string]*Tool
}

func New(cfg Config, deps Deps, m *metrics.Metrics, logger *slog.Logger) (*Service, error) {
	if err := cfg.Programs.Validate(); err != nil {
		return nil, fmt.Errorf("tools config: %w", err)
	}
	if deps.Catalog == nil || deps.Positions == nil || deps.Markets == nil || deps.Submitter == nil {
		return nil, errors.New("tools: catalog, positions, markets and submitter are required")
	}
	if strings.TrimSpace(cfg.ExplorerURL) == "" {
		cfg.ExplorerURL = defaultExplorerURL
	}
	if cfg.MainDecimals == 0 {
		cfg.MainDecimals = defaultMainDecimals
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{cfg: cfg, deps: deps, metrics: m, logger: logger}
	s.tools = s.registry()
	return s, nil
}

// Result is the outcome of one tool call. Exactly one of Data and Error is
// set.
type Result struct {
	RequestID string `json:"requestId"`
	Tool      string `json:"tool"`
	Data      any    `json:"result,omitempty"`
	Error     *Error `json:"error,omitempty"`
}

func (r Result) IsError() bool {
	return r.Error != nil
}

// Call runs one tool. Business failures and panics come back as an error
// result; Call itself never fails.
func (s *Service) Call(ctx context.Context, name string, arguments json.RawMessage) (result Result) {
	started := time.Now()
	result = Result{RequestID: uuid.NewString(), Tool: name}
	logger := s.logger.With("tool", name, "request_id", result.RequestID)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("tool call panicked", "panic", rec, "stack", string(debug.Stack()))
			result.Data = nil
			result.Error = &Error{Code: CodeInternal, Message: "internal error"}
		}
		outcome := "ok"
		if result.Error != nil {
			outcome = result.Error.Code
		}
		elapsed := time.Since(started)
		s.metrics.ObserveToolCall(name, outcome, elapsed)
		logger.Info("tool call finished", "outcome", outcome, "duration", elapsed)
	}()

	tool, ok := s.tools[name]
	if !ok {
		result.Error = &Error{Code: CodeNotFound, Message: fmt.Sprintf("unknown tool %q", name)}
		return result
	}
	args, err := parseArguments(arguments, tool.Params)
	if err != nil {
		result.Error = classify(err)
		return result
	}
	data, err := tool.run(ctx, args)
	if err != nil {
		result.Error = classify(err)
		logger.Warn("tool call failed", "code", result.Error.Code, "err", err)
		return result
	}
	result.Data = data
	return result
}

// Tools lists the registered tools ordered by name.
func (s *Service) Tools() []Tool {
	out := make([]Tool, 0, len(s.tools))
	for _, tool := range s.tools {
		out = append(out, *tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
