package bybit

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
)

var historyStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeExchange serves hourly klines from historyStart, newest first
type fakeExchange struct {
	count int
	calls int32
}

func (f *fakeExchange) fetch(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	atomic.AddInt32(&f.calls, 1)

	start := params["start"].(int64)
	end := params["end"].(int64)
	limit := params["limit"].(int)

	var list [][]string
	for i := f.count - 1; i >= 0 && len(list) < limit; i-- {
		ts := historyStart.Add(time.Duration(i) * time.Hour).UnixMilli()
		if ts < start || ts > end {
			continue
		}
		price := strconv.Itoa(100 + i%10)
		list = append(list, []string{strconv.FormatInt(ts, 10), price, price, price, price, "1.5", "150"})
	}

	return &bybit_api.ServerResponse{
		RetCode: 0,
		RetMsg:  "OK",
		Result: map[string]interface{}{
			"symbol":   params["symbol"],
			"category": params["category"],
			"list":     list,
		},
	}, nil
}

func newTestClient(fetch klineFetcher) *Client {
	c := newClient(Config{RequestsPerSecond: 1000}, fetch)
	c.retry = RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	return c
}

// TestFetchHistory_Paginates tests that multiple pages are stitched in order
func TestFetchHistory_Paginates(t *testing.T) {
	exchange := &fakeExchange{count: 2500}
	source := NewKlineSource(newTestClient(exchange.fetch))

	end := historyStart.Add(2499 * time.Hour)
	candles, err := source.FetchHistory(context.Background(), "btcusdt", Interval1h, historyStart, end)
	require.NoError(t, err)
	require.Len(t, candles, 2500)

	assert.Equal(t, historyStart, candles[0].Timestamp)
	assert.Equal(t, end, candles[len(candles)-1].Timestamp)
	for i := 1; i < len(candles); i++ {
		assert.Equal(t, time.Hour, candles[i].Timestamp.Sub(candles[i-1].Timestamp))
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&exchange.calls))
	assert.Equal(t, 1.5, candles[0].Volume)
}

// TestFetchHistory_StopsWhenPagingStalls tests that a page repeating the same range ends the download
func TestFetchHistory_StopsWhenPagingStalls(t *testing.T) {
	exchange := &fakeExchange{count: 50}
	var calls int32
	client := newTestClient(func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		// ignore the requested end and always serve the newest page
		params["end"] = historyStart.Add(49 * time.Hour).UnixMilli()
		return exchange.fetch(ctx, params)
	})
	source := NewKlineSource(client)
	source.pageSize = 10

	candles, err := source.FetchHistory(context.Background(), "BTCUSDT", Interval1h, historyStart, historyStart.Add(49*time.Hour))
	require.NoError(t, err)
	assert.Len(t, candles, 10)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// TestFetchHistory_Window tests that only candles inside the window are returned
func TestFetchHistory_Window(t *testing.T) {
	exchange := &fakeExchange{count: 100}
	source := NewKlineSource(newTestClient(exchange.fetch))

	start := historyStart.Add(10 * time.Hour)
	end := historyStart.Add(19 * time.Hour)
	candles, err := source.FetchHistory(context.Background(), "ETHUSDT", Interval1h, start, end)
	require.NoError(t, err)
	require.Len(t, candles, 10)
	assert.Equal(t, start, candles[0].Timestamp)
}

// TestFetchHistory_InvalidRange tests rejection of inverted windows
func TestFetchHistory_InvalidRange(t *testing.T) {
	source := NewKlineSource(newTestClient((&fakeExchange{}).fetch))

	_, err := source.FetchHistory(context.Background(), "BTCUSDT", Interval1h, historyStart, historyStart)
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))

	_, err = source.FetchHistory(context.Background(), "BTCUSDT", KlineInterval("7"), historyStart, historyStart.Add(time.Hour))
	assert.True(t, errors.IsConfigError(err))
}

// TestGetKlines_APIError tests that exchange error codes surface as data errors
func TestGetKlines_APIError(t *testing.T) {
	client := newTestClient(func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return &bybit_api.ServerResponse{RetCode: ErrCodeSymbolNotFound, RetMsg: "symbol invalid"}, nil
	})

	_, err := client.GetKlines(context.Background(), KlineParams{Symbol: "NOPE", Interval: Interval1h})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCategoryData, errors.CategoryOf(err))
	assert.Contains(t, err.Error(), "symbol invalid")
}

// TestGetKlines_RetriesRateLimit tests that rate-limit responses are retried
func TestGetKlines_RetriesRateLimit(t *testing.T) {
	var calls int32
	exchange := &fakeExchange{count: 5}
	client := newTestClient(func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return &bybit_api.ServerResponse{RetCode: ErrCodeRateLimitExceeded, RetMsg: "too many visits"}, nil
		}
		return exchange.fetch(ctx, params)
	})

	start, end := historyStart, historyStart.Add(4*time.Hour)
	klines, err := client.GetKlines(context.Background(), KlineParams{Symbol: "BTCUSDT", Interval: Interval1h, Start: &start, End: &end})
	require.NoError(t, err)
	assert.Len(t, klines, 5)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

// TestParseInterval tests the accepted interval notations
func TestParseInterval(t *testing.T) {
	cases := map[string]KlineInterval{
		"1m":  Interval1m,
		"15m": Interval15m,
		"1h":  Interval1h,
		"4h":  Interval4h,
		"1d":  Interval1d,
		"D":   Interval1d,
		"60":  Interval1h,
		"1w":  Interval1w,
	}
	for raw, want := range cases {
		got, err := ParseInterval(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseInterval("7m")
	assert.Error(t, err)
}

// TestRetryWithConfig_StopsOnPermanentError tests that non-retryable errors end the loop
func TestRetryWithConfig_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := RetryWithConfig(context.Background(), func() error {
		attempts++
		return NewBybitError(ErrCodeInvalidParameter, "bad request")
	}, RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

// TestRetryDelay_RateLimitWaitsLonger tests that rate-limit errors use the longer floor
func TestRetryDelay_RateLimitWaitsLonger(t *testing.T) {
	config := RetryConfig{InitialDelay: time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2, RateLimitDelay: 50 * time.Millisecond}

	assert.Equal(t, 50*time.Millisecond, retryDelay(NewBybitError(ErrCodeRateLimitExceeded, "too many visits"), 0, config))
	assert.Equal(t, 2*time.Millisecond, retryDelay(NewBybitError(502, "bad gateway"), 1, config))
	assert.True(t, IsRateLimitError(NewBybitError(ErrCodeRateLimitExceeded, "too many visits")))
	assert.False(t, IsRateLimitError(NewBybitError(ErrCodeInvalidParameter, "bad request")))
}
