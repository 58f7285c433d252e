package bybit

import (
	"context"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// klineFetcher performs one market kline request
type klineFetcher func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Client wraps the Bybit API client for public market data. Requests are
// paced by a token bucket and guarded by a circuit breaker.
type Client struct {
	httpClient *bybit_api.Client
	testnet    bool
	category   string
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retry      RetryConfig
	fetch      klineFetcher
}

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey            string
	APISecret         string
	Testnet           bool
	Category          string  // "spot", "linear", "inverse"
	RequestsPerSecond float64 // <= 0 uses 5
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	baseURL := bybit_api.MAINNET
	if config.Testnet {
		baseURL = bybit_api.TESTNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	c := newClient(config, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	})
	c.httpClient = httpClient
	return c
}

func newClient(config Config, fetch klineFetcher) *Client {
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	category := config.Category
	if category == "" {
		category = "spot"
	}

	return &Client{
		testnet:  config.Testnet,
		category: category,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		breaker:  newBreaker("bybit-market"),
		retry:    DefaultRetryConfig(),
		fetch:    fetch,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}

// IsTestnet returns whether the client is configured for testnet
func (c *Client) IsTestnet() bool {
	return c.testnet
}

// Category returns the market category requests default to
func (c *Client) Category() string {
	return c.category
}

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.testnet {
		return "testnet"
	}
	return "mainnet"
}
