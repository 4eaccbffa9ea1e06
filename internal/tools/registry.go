package tools

import "context"

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
}

type Tool struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`

	run func(ctx context.Context, args Arguments) (any, error)
}

const tokenDescription = "The address or symbol of the token. Must be a token launched on Xeenon."

func tokenParam() Param {
	return Param{Name: "token", Type: TypeString, Description: tokenDescription, Required: true}
}

func amountParam(name, description string) Param {
	return Param{Name: name, Type: TypeNumber, Description: description, Required: true}
}

func minOutParam(description string) Param {
	return Param{Name: "minOutAmount", Type: TypeNumber, Description: description, Default: 0}
}

func (s *Service) registry() map[string]*Tool {
	list := []*Tool{
		{
			Name:        "buy",
			Title:       "Buy a token",
			Description: "Buy a token with a given amount of CREDIEZ",
			Params: []Param{
				amountParam("crediezAmount", "The amount of CREDIEZ to use to buy the token"),
				tokenParam(),
				minOutParam("The minimum amount of tokens to receive. If the trade results in less, the transaction fails."),
			},
			run: s.buy,
		},
		{
			Name:        "sell",
			Title:       "Sell a token",
			Description: "Sell a token for CREDIEZ",
			Params: []Param{
				amountParam("tokenAmount", "The amount of tokens to sell"),
				tokenParam(),
				minOutParam("The minimum amount of CREDIEZ to receive. If the trade results in less, the transaction fails."),
			},
			run: s.sell,
		},
		{
			Name:        "deposit",
			Title:       "Deposit tokens into a position",
			Description: "Deposit/Stake tokens into a position, creating it on first use",
			Params:      []Param{amountParam("tokensAmount", "The amount of tokens to deposit"), tokenParam()},
			run:         s.deposit,
		},
		{
			Name:        "withdraw",
			Title:       "Withdraw tokens from a position",
			Description: "Withdraw/Unstake tokens from a position",
			Params:      []Param{amountParam("tokensAmount", "The amount of tokens to withdraw"), tokenParam()},
			run:         s.withdraw,
		},
		{
			Name:        "borrow",
			Title:       "Borrow CREDIEZ using a position as collateral",
			Description: "Borrow CREDIEZ using a position as collateral",
			Params:      []Param{amountParam("borrowAmount", "The amount of CREDIEZ to borrow"), tokenParam()},
			run:         s.borrow,
		},
		{
			Name:        "repay",
			Title:       "Repay a CREDIEZ loan",
			Description: "Repay a CREDIEZ loan",
			Params:      []Param{amountParam("repayAmount", "The amount of CREDIEZ to repay"), tokenParam()},
			run:         s.repay,
		},
		{
			Name:        "donateLiquidity",
			Title:       "Donate backing liquidity to the token",
			Description: "Donate CREDIEZ to the backing liquidity of a token market",
			Params:      []Param{tokenParam(), amountParam("amount", "The amount of CREDIEZ to donate. I.e. 1.5 means 1.5 CREDIEZ")},
			run:         s.donateLiquidity,
		},
		{
			Name:        "quoteBuy",
			Title:       "Get a quote to buy a token",
			Description: "Get a quote to buy a token with a given amount of CREDIEZ",
			Params:      []Param{amountParam("crediezAmount", "The amount of CREDIEZ to use to buy the token"), tokenParam()},
			run:         s.quoteBuy,
		},
		{
			Name:        "quoteSell",
			Title:       "Get a quote to sell a token",
			Description: "Get a quote to sell a given amount of a token for CREDIEZ",
			Params:      []Param{amountParam("tokenAmount", "The amount of tokens to sell"), tokenParam()},
			run:         s.quoteSell,
		},
		{
			Name:        "getTokenDetailsByAddress",
			Title:       "Get Token Details",
			Description: "Get details for a Xeenon token",
			Params: []Param{{
				Name:        "tokenAddress",
				Type:        TypeString,
				Description: "The address of the token to get details for. Must be a token launched on Xeenon.",
				Required:    true,
			}},
			run: s.tokenDetails,
		},
		{
			Name:        "transactionStatus",
			Title:       "Get the status of a transaction",
			Description: "Look up a submitted transaction, optionally waiting until it is confirmed",
			Params: []Param{
				{Name: "signature", Type: TypeString, Description: "The transaction signature returned by a trading tool", Required: true},
				{Name: "wait", Type: TypeBoolean, Description: "Wait for confirmation before answering", Default: false},
			},
			run: s.transactionStatus,
		},
	}
	out := make(map[string]*Tool, len(list))
	for _, tool := range list {
		out[tool.Name] = tool
	}
	return out
}
