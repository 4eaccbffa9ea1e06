package tools

import (
	"errors"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/amount"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/catalog"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/mayflower"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/position"
	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/txn"
)

const (
	CodeNotFound         = "not_found"
	CodeValidation       = "validation_error"
	CodePositionNotFound = "position_not_found"
	CodeSubmission       = "submission_error"
	CodeInternal         = "internal_error"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func classify(err error) *Error {
	var submission *txn.SubmissionError
	code := CodeInternal
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, amount.ErrNegative),
		errors.Is(err, amount.ErrOverflow),
		errors.Is(err, amount.ErrOutOfRange),
		errors.Is(err, mayflower.ErrInvalidQuoteAmount),
		errors.Is(err, mayflower.ErrInsufficientSupply):
		code = CodeValidation
	case errors.Is(err, position.ErrPositionNotFound):
		code = CodePositionNotFound
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, mayflower.ErrMarketNotFound),
		errors.Is(err, position.ErrMarketNotFound):
		code = CodeNotFound
	case errors.As(err, &submission), errors.Is(err, txn.ErrNoInstructions):
		code = CodeSubmission
	}
	return &Error{Code: code, Message: err.Error()}
}
