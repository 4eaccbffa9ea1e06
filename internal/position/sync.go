package position

import (
	"context"
	"errors"
	"fmt"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/pda"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/xeenon"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrMarketNotFound   = errors.New("xeenon market not found")
)

type State int

const (
	StateAbsent State = iota
	StateStale
	StateCurrent
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateStale:
		return "stale"
	case StateCurrent:
		return "current"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AccountReader is the part of the RPC client used to read program accounts.
type AccountReader interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

// SyncPlan is the on-chain position state observed for one call together with
// the instructions that bring it up to date. It is never reused across calls.
type SyncPlan struct {
	State        State
	LastSeen     uint16
	Current      uint16
	Instructions []solana.Instruction
}

// Exists reports whether the position account was found.
func (p SyncPlan) Exists() bool {
	return p.State != StateAbsent
}

// Pending is the number of elapsed periods that still need accrual.
func (p SyncPlan) Pending() int {
	if p.State != StateStale {
		return 0
	}
	return int(p.Current) - int(p.LastSeen)
}

type Syncer struct {
	rpc        AccountReader
	commitment rpc.CommitmentType
}

func NewSyncer(reader AccountReader, commitment rpc.CommitmentType) *Syncer {
	return &Syncer{rpc: reader, commitment: commitment}
}

// Plan reads the position and market accounts and computes the sync
// instructions. Absent yields a single init instruction, Stale yields one
// accrue instruction per elapsed period in ascending order, Current yields
// none. Read failures other than a missing account are returned as is.
func (s *Syncer) Plan(ctx context.Context, set PDASet) (SyncPlan, error) {
	data, found, err := s.readAccount(ctx, set.XeenonPosition)
	if err != nil {
		return SyncPlan{}, fmt.Errorf("load position %s: %w", set.XeenonPosition, err)
	}
	if !found {
		ix, err := xeenon.NewInitXeenonPositionInstruction(set.XeenonProgram, set.positionAccounts())
		if err != nil {
			return SyncPlan{}, fmt.Errorf("build init position: %w", err)
		}
		return SyncPlan{State: StateAbsent, Instructions: []solana.Instruction{ix}}, nil
	}
	position, err := xeenon.ParseAccount_XeenonPosition(data)
	if err != nil {
		return SyncPlan{}, fmt.Errorf("decode position %s: %w", set.XeenonPosition, err)
	}

	data, found, err = s.readAccount(ctx, set.XeenonMarket)
	if err != nil {
		return SyncPlan{}, fmt.Errorf("load market %s: %w", set.XeenonMarket, err)
	}
	if !found {
		return SyncPlan{}, fmt.Errorf("%w: %s", ErrMarketNotFound, set.XeenonMarket)
	}
	market, err := xeenon.ParseAccount_XeenonMarket(data)
	if err != nil {
		return SyncPlan{}, fmt.Errorf("decode market %s: %w", set.XeenonMarket, err)
	}

	return planFromPeriods(set, position.LastSeen(), market.Current())
}

func planFromPeriods(set PDASet, lastSeen, current uint16) (SyncPlan, error) {
	plan := SyncPlan{State: StateCurrent, LastSeen: lastSeen, Current: current}
	if lastSeen >= current {
		return plan, nil
	}
	plan.State = StateStale
	plan.Instructions = make([]solana.Instruction, 0, int(current)-int(lastSeen))
	for period := lastSeen; period < current; period++ {
		marketPeriod, _, err := pda.DeriveMarketPeriodPDA(set.XeenonProgram, set.XeenonMarket, period)
		if err != nil {
			return SyncPlan{}, fmt.Errorf("derive market period %d: %w", period, err)
		}
		ix, err := xeenon.NewAccruePositionRewardsInstruction(
			set.XeenonProgram,
			period,
			set.Owner,
			set.XeenonMarket,
			marketPeriod,
			set.XeenonPosition,
		)
		if err != nil {
			return SyncPlan{}, fmt.Errorf("build accrue for period %d: %w", period, err)
		}
		plan.Instructions = append(plan.Instructions, ix)
	}
	return plan, nil
}

func (s *Syncer) readAccount(ctx context.Context, address solana.PublicKey) ([]byte, bool, error) {
	resp, err := s.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{Commitment: s.commitment})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if resp == nil || resp.Value == nil {
		return nil, false, nil
	}
	return resp.Value.Data.GetBinary(), true, nil
}
