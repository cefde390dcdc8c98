// Package chain предоставляет клиент публичного индексатора блокчейна
// и проверку перевода стейблкоина по хешу транзакции.
package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrTxNotFound возвращается, когда индексатор не знает такой хеш.
var ErrTxNotFound = errors.New("transaction not found")

// Transfer описывает один перевод внутри транзакции.
type Transfer struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// Transaction — ответ индексатора по одному хешу.
type Transaction struct {
	Hash      string     `json:"hash"`
	Confirmed bool       `json:"confirmed"`
	Timestamp int64      `json:"timestamp"`
	Transfers []Transfer `json:"transfers"`
}

// Client инкапсулирует HTTP-взаимодействие с индексатором.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient создаёт клиент индексатора. Таймаут внешнего запроса
// ограничен 10 секундами, временные сбои ретраятся ограниченно.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc,
	}
}

// GetTransaction запрашивает транзакцию по хешу.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*Transaction, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("chain client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	url := fmt.Sprintf("%s/api/v1/transactions/%s", base, hash)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTxNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Transaction
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &result, nil
}
