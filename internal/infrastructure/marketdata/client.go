package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"papertrade/internal/application/port"
	"papertrade/internal/domain"
)

// Client looks prices up over REST: GET {base}/api/market-data/{symbol}.
type Client struct {
	baseURL string
	client  *http.Client
}

type priceResp struct {
	Price float64 `json:"price"`
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/api/market-data/%s", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &domain.IOError{Op: "fetch price " + symbol, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, &domain.IOError{
			Op:  "fetch price " + symbol,
			Err: fmt.Errorf("market-data api error: %d %s", resp.StatusCode, string(body)),
		}
	}

	var result priceResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, &domain.IOError{Op: "decode price " + symbol, Err: err}
	}
	if result.Price <= 0 {
		return 0, &domain.IOError{
			Op:  "fetch price " + symbol,
			Err: fmt.Errorf("non-positive price %v", result.Price),
		}
	}
	return result.Price, nil
}

var _ port.PriceSource = (*Client)(nil)
