package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// priceServer fakes /simple/price, pricing every requested id at a
// fixed value and failing any batch that contains a "bad-" id
func priceServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	reqs := &requestLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" {
			http.NotFound(w, r)
			return
		}
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		reqs.add(ids)

		for _, id := range ids {
			if strings.HasPrefix(id, "bad-") {
				http.Error(w, "upstream exploded", http.StatusInternalServerError)
				return
			}
		}

		quotes := make(map[string]map[string]float64, len(ids))
		for i, id := range ids {
			quotes[id] = map[string]float64{"usd": float64(100 + i)}
		}
		json.NewEncoder(w).Encode(quotes)
	}))
	t.Cleanup(server.Close)
	return server, reqs
}

type requestLog struct {
	mu      sync.Mutex
	batches [][]string
}

func (l *requestLog) add(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, ids)
}

func (l *requestLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.batches)
}

func TestFetchPricesBatching(t *testing.T) {
	server, reqs := priceServer(t)
	client := NewClient(server.URL, "", 10, 5*time.Second)

	var ids []string
	for i := 0; i < 25; i++ {
		ids = append(ids, fmt.Sprintf("coin-%02d", i))
	}

	prices, err := client.FetchPrices(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, prices, 25)
	assert.Equal(t, 3, reqs.count(), "25 ids at batch size 10 should take 3 requests")
}

func TestFetchPricesPartialBatchFailure(t *testing.T) {
	server, _ := priceServer(t)
	client := NewClient(server.URL, "", 2, 5*time.Second)

	// Batches: [alpha beta] [bad-coin gamma] [delta]
	ids := []string{"alpha", "beta", "bad-coin", "gamma", "delta"}

	prices, err := client.FetchPrices(context.Background(), ids)
	require.NoError(t, err, "one failed batch must not fail the fetch")

	assert.Contains(t, prices, "alpha")
	assert.Contains(t, prices, "beta")
	assert.Contains(t, prices, "delta")
	assert.NotContains(t, prices, "bad-coin")
	assert.NotContains(t, prices, "gamma", "ids sharing a failed batch are absent")
}

func TestFetchPricesAllBatchesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 2, 5*time.Second)

	prices, err := client.FetchPrices(context.Background(), []string{"alpha", "beta", "gamma"})
	require.Error(t, err)
	assert.Nil(t, prices)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
}

func TestFetchPricesSkipsMalformedEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// "novalue" has no usd field, "stringy" has a non-numeric one
		w.Write([]byte(`{
			"bitcoin": {"usd": 50000},
			"novalue": {},
			"stringy": {"usd": "oops"}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 10, 5*time.Second)

	prices, err := client.FetchPrices(context.Background(), []string{"bitcoin", "novalue", "stringy"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"bitcoin": 50000}, prices)
}

func TestFetchPricesEmptyInput(t *testing.T) {
	server, reqs := priceServer(t)
	client := NewClient(server.URL, "", 10, 5*time.Second)

	prices, err := client.FetchPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
	assert.Equal(t, 0, reqs.count())
}

func TestFetchPricesSendsAPIKey(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-cg-demo-api-key")
		w.Write([]byte(`{"bitcoin": {"usd": 1}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "demo-key", 10, 5*time.Second)
	_, err := client.FetchPrices(context.Background(), []string{"bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, "demo-key", gotKey)
}

func TestSearchTrending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/trending", r.URL.Path)
		w.Write([]byte(`{"coins": [
			{"item": {"id": "pepe", "name": "Pepe", "symbol": "pepe", "market_cap_rank": 30, "price_btc": 0.0000001}},
			{"item": {"id": "sui", "name": "Sui", "symbol": "sui", "market_cap_rank": 20, "price_btc": 0.00004}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 10, 5*time.Second)
	coins, err := client.SearchTrending(context.Background())
	require.NoError(t, err)
	require.Len(t, coins, 2)
	assert.Equal(t, "pepe", coins[0].ID)
	assert.Equal(t, 20, coins[1].MarketCapRank)
}

func TestCoinsMarketsOmitsMissingChange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		w.Write([]byte(`[
			{"id": "bitcoin", "symbol": "btc", "current_price": 50000, "price_change_percentage_24h": 2.5},
			{"id": "thin-coin", "symbol": "thin", "current_price": 0.01}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 10, 5*time.Second)
	coins, err := client.CoinsMarkets(context.Background(), 250, 1)
	require.NoError(t, err)
	require.Len(t, coins, 2)
	require.NotNil(t, coins[0].PriceChangePercentage24h)
	assert.Equal(t, 2.5, *coins[0].PriceChangePercentage24h)
	assert.Nil(t, coins[1].PriceChangePercentage24h)
}
