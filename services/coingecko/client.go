package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	// MaxBatchSize is the upstream cap on ids per /simple/price call.
	// Rate-limited demo keys should run well below it.
	MaxBatchSize = 250
)

// UpstreamError is returned when CoinGecko itself is the problem: a
// transport failure, a non-2xx status or an unparseable body.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("coingecko %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("coingecko %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Client wraps the CoinGecko REST API
type Client struct {
	baseURL    string
	apiKey     string
	batchSize  int
	httpClient *http.Client
}

// NewClient creates a new CoinGecko client. batchSize is clamped to
// the upstream request-size limit.
func NewClient(baseURL, apiKey string, batchSize int, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		batchSize: batchSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CoinListEntry is one row of /coins/list
type CoinListEntry struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// TrendingCoin is one entry of /search/trending
type TrendingCoin struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	MarketCapRank int     `json:"market_cap_rank"`
	Thumb         string  `json:"thumb"`
	PriceBTC      float64 `json:"price_btc"`
}

// MarketCoin is one row of /coins/markets. The 24h change is a pointer
// because CoinGecko omits it for thinly traded coins.
type MarketCoin struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	Image                    string   `json:"image"`
	MarketCapRank            int      `json:"market_cap_rank"`
	CurrentPrice             float64  `json:"current_price"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

// FetchPrices returns current USD prices for the given coin ids,
// batching requests to respect the upstream request-size limit.
// Batches are fetched concurrently; a failed batch is logged and its
// ids are simply absent from the result. Only when every batch fails
// is an error returned.
func (c *Client) FetchPrices(ctx context.Context, ids []string) (map[string]float64, error) {
	prices := make(map[string]float64)
	if len(ids) == 0 {
		return prices, nil
	}

	var batches [][]string
	for start := 0; start < len(ids); start += c.batchSize {
		end := start + c.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		failed  int
		lastErr error
	)

	for i, batch := range batches {
		wg.Add(1)
		go func(num int, batch []string) {
			defer wg.Done()

			batchPrices, err := c.fetchPriceBatch(ctx, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("Price batch %d/%d failed (%d ids skipped): %v", num+1, len(batches), len(batch), err)
				failed++
				lastErr = err
				return
			}
			// Ids are disjoint across batches, so merging never overwrites
			for id, price := range batchPrices {
				prices[id] = price
			}
		}(i, batch)
	}
	wg.Wait()

	if failed == len(batches) {
		return nil, &UpstreamError{Op: "simple/price", Err: fmt.Errorf("all %d batches failed: %w", failed, lastErr)}
	}
	return prices, nil
}

// fetchPriceBatch issues a single /simple/price call
func (c *Client) fetchPriceBatch(ctx context.Context, ids []string) (map[string]float64, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")

	var raw map[string]map[string]any
	if err := c.getJSON(ctx, "/simple/price", query, &raw); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(raw))
	for id, quote := range raw {
		// Keep only present numeric USD values; never default to zero
		usd, ok := quote["usd"]
		if !ok {
			log.Printf("No USD price for %s, skipping", id)
			continue
		}
		price, ok := usd.(float64)
		if !ok {
			log.Printf("Malformed USD price for %s: %v, skipping", id, usd)
			continue
		}
		prices[id] = price
	}
	return prices, nil
}

// ListCoins returns the full coin id/symbol catalogue
func (c *Client) ListCoins(ctx context.Context) ([]CoinListEntry, error) {
	var coins []CoinListEntry
	if err := c.getJSON(ctx, "/coins/list", nil, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// SearchTrending returns the coins currently trending on CoinGecko
func (c *Client) SearchTrending(ctx context.Context) ([]TrendingCoin, error) {
	var raw struct {
		Coins []struct {
			Item TrendingCoin `json:"item"`
		} `json:"coins"`
	}
	if err := c.getJSON(ctx, "/search/trending", nil, &raw); err != nil {
		return nil, err
	}

	coins := make([]TrendingCoin, 0, len(raw.Coins))
	for _, entry := range raw.Coins {
		coins = append(coins, entry.Item)
	}
	return coins, nil
}

// CoinsMarkets returns one page of coins ordered by market cap, with
// 24h price change data
func (c *Client) CoinsMarkets(ctx context.Context, perPage, page int) ([]MarketCoin, error) {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("order", "market_cap_desc")
	query.Set("per_page", fmt.Sprintf("%d", perPage))
	query.Set("page", fmt.Sprintf("%d", page))
	query.Set("sparkline", "false")
	query.Set("price_change_percentage", "24h")

	var coins []MarketCoin
	if err := c.getJSON(ctx, "/coins/markets", query, &coins); err != nil {
		return nil, err
	}
	return coins, nil
}

// getJSON performs a GET against the API and decodes the response
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &UpstreamError{Op: path, Err: err}
	}
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &UpstreamError{Op: path, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Op: path, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &UpstreamError{Op: path, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}
