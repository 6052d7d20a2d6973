// Package services holds the engine's external collaborators: the market
// quote provider used to price market orders and the fee schedule provider.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"broker-ledger/observability"
)

// QuoteProvider supplies the reference price used to estimate the gross
// amount of a market order before execution.
type QuoteProvider interface {
	Quote(ctx context.Context, securityID string) (decimal.Decimal, error)
}

// MarketDataService fetches quotes from an external market-data endpoint.
// Calls go through a circuit breaker so a flapping upstream fails fast
// instead of stalling order submission.
type MarketDataService struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[decimal.Decimal]
}

// NewMarketDataService creates a quote service against the given base URL.
func NewMarketDataService(baseURL string) *MarketDataService {
	return NewMarketDataServiceWithTimeout(baseURL, 10*time.Second)
}

// NewMarketDataServiceWithTimeout creates a quote service with an explicit
// per-request timeout.
func NewMarketDataServiceWithTimeout(baseURL string, timeout time.Duration) *MarketDataService {
	settings := gobreaker.Settings{
		Name:        "market-data",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			observability.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		},
	}

	return &MarketDataService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[decimal.Decimal](settings),
	}
}

type quoteResponse struct {
	SecurityID string          `json:"security_id"`
	Price      decimal.Decimal `json:"price"`
}

// Quote returns the latest price for the security.
func (s *MarketDataService) Quote(ctx context.Context, securityID string) (decimal.Decimal, error) {
	return s.breaker.Execute(func() (decimal.Decimal, error) {
		url := fmt.Sprintf("%s/quotes/%s", s.baseURL, securityID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to build quote request: %w", err)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return decimal.Zero, fmt.Errorf("quote request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return decimal.Zero, fmt.Errorf("quote request for %s returned status %d", securityID, resp.StatusCode)
		}

		var q quoteResponse
		if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
			return decimal.Zero, fmt.Errorf("failed to decode quote: %w", err)
		}
		if !q.Price.IsPositive() {
			return decimal.Zero, fmt.Errorf("quote for %s has non-positive price %s", securityID, q.Price)
		}
		return q.Price, nil
	})
}

// StaticQuoteProvider serves quotes from a fixed table. It backs tests and
// offline back-office use where prices are keyed in manually.
type StaticQuoteProvider struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStaticQuoteProvider creates an empty static provider.
func NewStaticQuoteProvider() *StaticQuoteProvider {
	return &StaticQuoteProvider{prices: make(map[string]decimal.Decimal)}
}

// Set registers or replaces the price for a security.
func (s *StaticQuoteProvider) Set(securityID string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[securityID] = price
}

// Quote returns the registered price for the security.
func (s *StaticQuoteProvider) Quote(ctx context.Context, securityID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[securityID]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote available for %s", securityID)
	}
	return price, nil
}
