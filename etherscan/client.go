package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/orcohen/crypto-logs/domain"
)

// Client fetches the transaction history of a wallet from the block
// explorer's HTTP API.
type Client struct {
	baseUrl    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseUrl, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseUrl: baseUrl,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// txListResponse is the explorer's envelope. Result holds the transaction
// list on success but degrades to a plain string on error responses, so it
// is only unmarshalled after the status check.
type txListResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// GetTransactions returns the wallet's transactions newest first. A
// non-success status from the explorer is returned as an empty list; this
// includes unknown addresses, which the explorer does not distinguish from
// wallets without transactions. Transport and decoding failures return an
// error.
func (c *Client) GetTransactions(ctx context.Context, address string) ([]domain.Transaction, error) {
	endpoint := fmt.Sprintf("%s/api?module=account&action=txlist&address=%s&sort=desc&apikey=%s",
		c.baseUrl, url.QueryEscape(address), url.QueryEscape(c.apiKey))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	res, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("calling explorer api: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err = Body.Close()
		if err != nil {
			log.Printf("Error closing body: %v", err)
		}
	}(res.Body)

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer api returned status [%s]", res.Status)
	}

	var response txListResponse
	if err = json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if response.Status != "1" {
		log.Printf("[INFO] Explorer returned no transactions for address [%s]: %s", address, response.Message)
		return []domain.Transaction{}, nil
	}

	var transactions []domain.Transaction
	if err = json.Unmarshal(response.Result, &transactions); err != nil {
		return nil, fmt.Errorf("decoding result list: %w", err)
	}
	return transactions, nil
}
