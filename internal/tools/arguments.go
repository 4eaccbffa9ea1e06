package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/amount"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

var ErrValidation = errors.New("validation error")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Arguments are the raw named parameters of one call, checked against the
// tool's parameter list.
type Arguments map[string]json.RawMessage

func parseArguments(raw json.RawMessage, params []Param) (Arguments, error) {
	args := Arguments{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &args); err != nil {
			return nil, invalidf("arguments must be a JSON object")
		}
	}

	known := make(map[string]struct{}, len(params))
	for _, p := range params {
		known[p.Name] = struct{}{}
		if _, ok := args[p.Name]; p.Required && !ok {
			return nil, invalidf("%s is required", p.Name)
		}
	}
	var unknown []string
	for name := range args {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, invalidf("unknown argument(s) %s", strings.Join(unknown, ", "))
	}
	return args, nil
}

func (a Arguments) present(name string) bool {
	raw, ok := a[name]
	return ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (a Arguments) text(name string) (string, error) {
	if !a.present(name) {
		return "", invalidf("%s is required", name)
	}
	var v string
	if err := json.Unmarshal(a[name], &v); err != nil {
		return "", invalidf("%s must be a string", name)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", invalidf("%s must not be empty", name)
	}
	return v, nil
}

// amount reads a positive human amount. JSON numbers and numeric strings
// are both accepted.
func (a Arguments) amount(name string) (decimal.Decimal, error) {
	if !a.present(name) {
		return decimal.Decimal{}, invalidf("%s is required", name)
	}
	v, err := amount.Parse(string(a[name]))
	if err != nil {
		return decimal.Decimal{}, invalidf("%s: %v", name, err)
	}
	if !v.IsPositive() {
		return decimal.Decimal{}, invalidf("%s must be greater than zero", name)
	}
	return v, nil
}

// optionalAmount reads a non-negative amount that defaults to zero.
func (a Arguments) optionalAmount(name string) (decimal.Decimal, error) {
	if !a.present(name) {
		return decimal.Zero, nil
	}
	v, err := amount.Parse(string(a[name]))
	if err != nil {
		return decimal.Decimal{}, invalidf("%s: %v", name, err)
	}
	if v.IsNegative() {
		return decimal.Decimal{}, invalidf("%s must not be negative", name)
	}
	return v, nil
}

func (a Arguments) boolean(name string) (bool, error) {
	if !a.present(name) {
		return false, nil
	}
	var v bool
	if err := json.Unmarshal(a[name], &v); err != nil {
		return false, invalidf("%s must be a boolean", name)
	}
	return v, nil
}

func (a Arguments) signature(name string) (solana.Signature, error) {
	raw, err := a.text(name)
	if err != nil {
		return solana.Signature{}, err
	}
	sig, err := solana.SignatureFromBase58(raw)
	if err != nil {
		return solana.Signature{}, invalidf("%s is not a valid transaction signature", name)
	}
	return sig, nil
}

// toRaw scales a human amount to base units, truncating toward zero. A
// positive amount that truncates to zero is rejected rather than sent.
func toRaw(name string, ui decimal.Decimal, decimals uint8, allowZero bool) (uint64, error) {
	raw, err := amount.ToRaw(ui, decimals)
	if err != nil {
		return 0, invalidf("%s: %v", name, err)
	}
	if raw == 0 && !allowZero {
		return 0, invalidf("%s %s is below the smallest unit (%d decimals)", name, ui, decimals)
	}
	return raw, nil
}
