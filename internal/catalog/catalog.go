package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	apiKeyHeader       = "x-api-key"
	maxResponseBytes   = 1 << 20
	defaultTimeout     = 15 * time.Second
	defaultRatePerMin  = 120
	defaultBurst       = 4
	errorBodyPreviewSz = 256
)

var (
	ErrNotFound     = errors.New("token not found")
	ErrInvalidToken = errors.New("invalid token record")
)

// Market holds the protocol and underlying market accounts of a token.
type Market struct {
	MayflowerMarket      solana.PublicKey `json:"mayflowerMarketAddress"`
	MayflowerMarketGroup solana.PublicKey `json:"mayflowerMarketGroup"`
	MayflowerMarketMeta  solana.PublicKey `json:"mayflowerMarketMetaAddress"`
	XeenonMarket         solana.PublicKey `json:"xeenonMarketAddress"`
	XeenonMarketGroup    solana.PublicKey `json:"xeenonMarketGroup"`
}

type Token struct {
	Name                string           `json:"name"`
	Symbol              string           `json:"symbol"`
	Image               string           `json:"image,omitempty"`
	Address             solana.PublicKey `json:"address"`
	Decimals            uint8            `json:"decimals"`
	URL                 string           `json:"url"`
	Price               decimal.Decimal  `json:"price"`
	Supply              decimal.Decimal  `json:"supply"`
	Debt                decimal.Decimal  `json:"debt"`
	Staked              decimal.Decimal  `json:"staked"`
	MarketCap           decimal.Decimal  `json:"mCap"`
	Volume24h           decimal.Decimal  `json:"volume24h"`
	Change24h           decimal.Decimal  `json:"change24h"`
	CreatorRewardsSplit decimal.Decimal  `json:"creatorRewardsSplit"`
	Market              Market           `json:"market"`
}

func (t Token) validate() error {
	var missing []string
	if strings.TrimSpace(t.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(t.Symbol) == "" {
		missing = append(missing, "symbol")
	}
	if t.Address.IsZero() {
		missing = append(missing, "address")
	}
	for name, pk := range map[string]solana.PublicKey{
		"market.mayflowerMarketAddress":     t.Market.MayflowerMarket,
		"market.mayflowerMarketGroup":       t.Market.MayflowerMarketGroup,
		"market.mayflowerMarketMetaAddress": t.Market.MayflowerMarketMeta,
		"market.xeenonMarketAddress":        t.Market.XeenonMarket,
		"market.xeenonMarketGroup":          t.Market.XeenonMarketGroup,
	} {
		if pk.IsZero() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidToken, strings.Join(missing, ", "))
	}
	return nil
}

type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute float64
	Burst             int
}

// Client resolves tokens against the catalog API. It keeps no token state
// between calls.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid catalog base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	perMin := cfg.RequestsPerMinute
	if perMin <= 0 {
		perMin = defaultRatePerMin
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	return &Client{
		baseURL: strings.TrimRight(base.String(), "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perMin/60.0), burst),
	}, nil
}

// LookupToken fetches a token by mint address or symbol.
func (c *Client) LookupToken(ctx context.Context, identifier string) (Token, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Token{}, fmt.Errorf("%w: empty token identifier", ErrInvalidToken)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Token{}, fmt.Errorf("catalog rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tokens/"+url.PathEscape(identifier), nil)
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("fetch token %s: %w", identifier, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Token{}, fmt.Errorf("read token %s: %w", identifier, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Token{}, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Token{}, fmt.Errorf("fetch token %s: status %d: %s", identifier, resp.StatusCode, preview(body))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := token.validate(); err != nil {
		return Token{}, err
	}
	return token, nil
}

func preview(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > errorBodyPreviewSz {
		return text[:errorBodyPreviewSz] + "..."
	}
	return text
}
