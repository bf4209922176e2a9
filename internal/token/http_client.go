package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/attendfi/attendfi-api/pkg/config"
)

// Client talks to the token-ledger service over its JSON API. The settlement
// contract itself is the spender account, so TransferFrom consumes the
// allowance granted to SpenderAddress and Transfer debits it.
type Client struct {
	baseURL string
	spender string
	http    *http.Client
}

// NewClient builds a ledger client for the configured token service.
func NewClient(cfg config.TokenLedgerConfig, spenderAddress string) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		spender: spenderAddress,
		http:    &http.Client{Timeout: timeout},
	}
}

// SpenderAddress is the ledger account the engine holds custody under.
func (c *Client) SpenderAddress() string {
	return c.spender
}

func (c *Client) Decimals(ctx context.Context) (int, error) {
	var out struct {
		Decimals int `json:"decimals"`
	}
	if err := c.get(ctx, "/token/decimals", nil, &out); err != nil {
		return 0, err
	}
	return out.Decimals, nil
}

func (c *Client) BalanceOf(ctx context.Context, account string) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	q := url.Values{"account": {account}}
	if err := c.get(ctx, "/token/balance", q, &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

func (c *Client) Allowance(ctx context.Context, owner, spender string) (int64, error) {
	var out struct {
		Allowance int64 `json:"allowance"`
	}
	q := url.Values{"owner": {owner}, "spender": {spender}}
	if err := c.get(ctx, "/token/allowance", q, &out); err != nil {
		return 0, err
	}
	return out.Allowance, nil
}

func (c *Client) TransferFrom(ctx context.Context, owner, recipient string, amount int64) error {
	payload := map[string]interface{}{
		"owner":     owner,
		"spender":   c.spender,
		"recipient": recipient,
		"amount":    amount,
	}
	return c.post(ctx, "/token/transfer-from", payload)
}

func (c *Client) Transfer(ctx context.Context, recipient string, amount int64) error {
	payload := map[string]interface{}{
		"sender":    c.spender,
		"recipient": recipient,
		"amount":    amount,
	}
	return c.post(ctx, "/token/transfer", payload)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token ledger request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token ledger %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("token ledger request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token ledger %s: status %d", path, resp.StatusCode)
	}
	return nil
}
