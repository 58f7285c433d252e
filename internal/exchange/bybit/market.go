package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/sony/gobreaker"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval3m  KlineInterval = "3"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval2h  KlineInterval = "120"
	Interval4h  KlineInterval = "240"
	Interval6h  KlineInterval = "360"
	Interval12h KlineInterval = "720"
	Interval1d  KlineInterval = "D"
	Interval1w  KlineInterval = "W"
)

// MaxKlineLimit is the largest page the kline endpoint returns
const MaxKlineLimit = 1000

var intervalDurations = map[KlineInterval]time.Duration{
	Interval1m:  time.Minute,
	Interval3m:  3 * time.Minute,
	Interval5m:  5 * time.Minute,
	Interval15m: 15 * time.Minute,
	Interval30m: 30 * time.Minute,
	Interval1h:  time.Hour,
	Interval2h:  2 * time.Hour,
	Interval4h:  4 * time.Hour,
	Interval6h:  6 * time.Hour,
	Interval12h: 12 * time.Hour,
	Interval1d:  24 * time.Hour,
	Interval1w:  7 * 24 * time.Hour,
}

// ParseInterval accepts "5m", "1h", "1d", "1w" or a raw Bybit interval
func ParseInterval(s string) (KlineInterval, error) {
	s = strings.TrimSpace(s)
	if _, ok := intervalDurations[KlineInterval(strings.ToUpper(s))]; ok {
		return KlineInterval(strings.ToUpper(s)), nil
	}
	if d, err := time.ParseDuration(strings.ToLower(s)); err == nil {
		for interval, dur := range intervalDurations {
			if dur == d {
				return interval, nil
			}
		}
	}
	switch strings.ToLower(s) {
	case "1d":
		return Interval1d, nil
	case "1w":
		return Interval1w, nil
	}
	return "", fmt.Errorf("unsupported kline interval %q", s)
}

// Duration returns the candle length
func (i KlineInterval) Duration() time.Duration {
	return intervalDurations[i]
}

// Kline represents a single kline/candlestick data point
type Kline struct {
	StartTime  time.Time
	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	ClosePrice float64
	Volume     float64
	Turnover   float64
}

// OHLCV converts the kline to the engine candle type
func (k Kline) OHLCV() types.OHLCV {
	return types.OHLCV{
		Timestamp: k.StartTime,
		Open:      k.OpenPrice,
		High:      k.HighPrice,
		Low:       k.LowPrice,
		Close:     k.ClosePrice,
		Volume:    k.Volume,
	}
}

// KlineParams holds parameters for fetching kline data
type KlineParams struct {
	Category string
	Symbol   string
	Interval KlineInterval
	Start    *time.Time
	End      *time.Time
	Limit    int // max 1000, default 200
}

// GetKlines fetches one page of klines, newest first as the API returns them
func (c *Client) GetKlines(ctx context.Context, params KlineParams) ([]Kline, error) {
	if params.Category == "" {
		params.Category = c.category
	}
	if params.Limit == 0 {
		params.Limit = 200
	}
	if params.Limit > MaxKlineLimit {
		params.Limit = MaxKlineLimit
	}

	reqParams := map[string]interface{}{
		"category": params.Category,
		"symbol":   strings.ToUpper(params.Symbol),
		"interval": string(params.Interval),
		"limit":    params.Limit,
	}
	if params.Start != nil {
		reqParams["start"] = params.Start.UnixMilli()
	}
	if params.End != nil {
		reqParams["end"] = params.End.UnixMilli()
	}

	var klines []Kline
	err := RetryWithConfig(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		result, err := c.breaker.Execute(func() (interface{}, error) {
			resp, err := c.fetch(ctx, reqParams)
			if err != nil {
				return nil, err
			}
			return parseKlineResponse(resp)
		})
		if err != nil {
			return err
		}
		klines = result.([]Kline)
		return nil
	}, c.retry)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errors.NewNetworkError("bybit", "get_klines", err)
		}
		if _, ok := err.(*BybitError); ok {
			return nil, errors.NewDataError("bybit", "get_klines", err).WithContext("symbol", params.Symbol)
		}
		return nil, errors.NewNetworkError("bybit", "get_klines", err).WithContext("symbol", params.Symbol)
	}

	return klines, nil
}

// parseKlineResponse parses the API response into Kline structs
func parseKlineResponse(response interface{}) ([]Kline, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type %T", response)
	}
	if err := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return nil, err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var klineResult struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kline result: %w", err)
	}

	klines := make([]Kline, 0, len(klineResult.List))
	for _, item := range klineResult.List {
		// [startTime, open, high, low, close, volume, turnover]
		if len(item) < 7 {
			continue
		}
		start, err := strconv.ParseInt(item[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid kline start time %q", item[0])
		}
		values := make([]float64, 6)
		for i := range values {
			v, err := strconv.ParseFloat(item[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid kline value %q", item[i+1])
			}
			values[i] = v
		}
		klines = append(klines, Kline{
			StartTime:  time.UnixMilli(start).UTC(),
			OpenPrice:  values[0],
			HighPrice:  values[1],
			LowPrice:   values[2],
			ClosePrice: values[3],
			Volume:     values[4],
			Turnover:   values[5],
		})
	}

	return klines, nil
}
