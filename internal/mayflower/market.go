package mayflower

import (
	"errors"
	"fmt"
	"math"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/amount"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/anchor"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const (
	bpsDenom = 10_000
	// PriceScale is the fixed-point scale of FloorPrice and Slope.
	PriceScale = 1_000_000_000_000
	sqrtRounds = 6
	quoteScale = 18
)

var Account_MarketLinear = anchor.AccountDiscriminator("MarketLinear")

var (
	ErrInvalidQuoteAmount = errors.New("quote amount must be positive")
	ErrInsufficientSupply = errors.New("sell amount exceeds circulating supply")
	ErrDegenerateCurve    = errors.New("market curve has zero floor and slope")
)

// MarketLinear is the market account of a linear bonding curve:
// price(s) = floor + slope*s, with s in whole tokens and price in whole
// main-mint units per token.
//
// The field layout and the curve are assumed, not taken from the published
// program IDL. The quotes they produce are previews only; the program
// prices the actual trade. Replace both once the real account layout is
// available.
type MarketLinear struct {
	MarketMeta    solana.PublicKey
	MintMain      solana.PublicKey
	MintToken     solana.PublicKey
	MainDecimals  uint8
	TokenDecimals uint8
	TokenSupply   uint64
	CashLiquidity uint64
	FloorPrice    uint64
	Slope         uint64
	BuyFeeBps     uint16
	SellFeeBps    uint16
	Bump          uint8
}

func ParseAccount_MarketLinear(data []byte) (*MarketLinear, error) {
	out := new(MarketLinear)
	if err := anchor.DecodeAccount(data, Account_MarketLinear, "market linear", out); err != nil {
		return nil, err
	}
	return out, nil
}

// Quote is a trade preview from the trader's perspective: NetCash and
// NetToken are signed balance changes, Fee is the part of the cash flow kept
// by the protocol and tenant.
type Quote struct {
	Fee              decimal.Decimal
	NetCash          decimal.Decimal
	NetToken         decimal.Decimal
	PriceImpact      decimal.Decimal
	AverageFillPrice decimal.Decimal
}

func (m *MarketLinear) floor() decimal.Decimal {
	return decimal.NewFromUint64(m.FloorPrice).Div(decimal.NewFromInt(PriceScale))
}

func (m *MarketLinear) slope() decimal.Decimal {
	return decimal.NewFromUint64(m.Slope).Div(decimal.NewFromInt(PriceScale))
}

func (m *MarketLinear) supply() decimal.Decimal {
	return amount.ToUI(m.TokenSupply, m.TokenDecimals)
}

// SpotPrice is the marginal price at the current supply.
func (m *MarketLinear) SpotPrice() decimal.Decimal {
	return m.priceAt(m.supply())
}

func (m *MarketLinear) priceAt(supply decimal.Decimal) decimal.Decimal {
	return m.floor().Add(m.slope().Mul(supply))
}

// QuoteBuy previews spending cashIn of the main mint. The fee is taken from
// the input before it moves along the curve.
func (m *MarketLinear) QuoteBuy(cashIn decimal.Decimal) (Quote, error) {
	if !cashIn.IsPositive() {
		return Quote{}, ErrInvalidQuoteAmount
	}
	fee := feeOf(cashIn, m.BuyFeeBps)
	net := cashIn.Sub(fee)

	s0 := m.supply()
	p0 := m.priceAt(s0)
	slope := m.slope()

	var tokens decimal.Decimal
	switch {
	case slope.IsZero():
		if p0.IsZero() {
			return Quote{}, ErrDegenerateCurve
		}
		tokens = net.DivRound(p0, quoteScale)
	default:
		// slope/2·Δ² + p0·Δ − net = 0
		disc := p0.Mul(p0).Add(slope.Mul(net).Mul(decimal.NewFromInt(2)))
		tokens = sqrtDecimal(disc).Sub(p0).DivRound(slope, quoteScale)
	}
	tokens = tokens.Truncate(int32(m.TokenDecimals))
	if !tokens.IsPositive() {
		return Quote{Fee: fee, NetCash: cashIn.Neg(), NetToken: decimal.Zero}, nil
	}

	p1 := m.priceAt(s0.Add(tokens))
	return Quote{
		Fee:              fee,
		NetCash:          cashIn.Neg(),
		NetToken:         tokens,
		PriceImpact:      relativeChange(p0, p1),
		AverageFillPrice: cashIn.DivRound(tokens, quoteScale),
	}, nil
}

// QuoteSell previews selling tokenIn back into the curve. The fee is taken
// from the gross proceeds.
func (m *MarketLinear) QuoteSell(tokenIn decimal.Decimal) (Quote, error) {
	if !tokenIn.IsPositive() {
		return Quote{}, ErrInvalidQuoteAmount
	}
	s0 := m.supply()
	if tokenIn.GreaterThan(s0) {
		return Quote{}, fmt.Errorf("%w: %s > %s", ErrInsufficientSupply, tokenIn, s0)
	}
	s1 := s0.Sub(tokenIn)
	p0 := m.priceAt(s0)
	p1 := m.priceAt(s1)

	// area under the curve between s1 and s0
	gross := p0.Add(p1).Mul(tokenIn).Div(decimal.NewFromInt(2))
	gross = gross.Truncate(int32(m.MainDecimals))
	fee := feeOf(gross, m.SellFeeBps)
	net := gross.Sub(fee)

	q := Quote{
		Fee:         fee,
		NetCash:     net,
		NetToken:    tokenIn.Neg(),
		PriceImpact: relativeChange(p0, p1),
	}
	if net.IsPositive() {
		q.AverageFillPrice = net.DivRound(tokenIn, quoteScale)
	}
	return q, nil
}

func feeOf(v decimal.Decimal, bps uint16) decimal.Decimal {
	return v.Mul(decimal.NewFromInt(int64(bps))).DivRound(decimal.NewFromInt(bpsDenom), quoteScale)
}

func relativeChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Abs().DivRound(from, quoteScale)
}

func sqrtDecimal(v decimal.Decimal) decimal.Decimal {
	if !v.IsPositive() {
		return decimal.Zero
	}
	f, _ := v.Float64()
	x := decimal.NewFromFloat(math.Sqrt(f))
	if !x.IsPositive() {
		x = v
	}
	two := decimal.NewFromInt(2)
	for i := 0; i < sqrtRounds; i++ {
		x = x.Add(v.DivRound(x, quoteScale)).DivRound(two, quoteScale)
	}
	return x
}
