package bybit

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// KlineSource downloads historical candles from Bybit
type KlineSource struct {
	client   *Client
	pageSize int
}

// NewKlineSource creates a kline source on client
func NewKlineSource(client *Client) *KlineSource {
	return &KlineSource{client: client, pageSize: MaxKlineLimit}
}

// FetchHistory downloads every candle of symbol that starts in [start, end],
// walking backwards from end one page at a time. The result is chronological
// and free of duplicates.
func (s *KlineSource) FetchHistory(ctx context.Context, symbol string, interval KlineInterval, start, end time.Time) ([]types.OHLCV, error) {
	if interval.Duration() == 0 {
		return nil, errors.NewConfigError("bybit", "fetch_history", "unsupported interval %q", interval)
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if !start.Before(end) {
		return nil, errors.NewConfigError("bybit", "fetch_history", "start %s must be before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	seen := make(map[int64]bool)
	var candles []types.OHLCV
	cursor := end
	pages := 0
	var lastOldest time.Time

	for {
		pageStart, pageEnd := start, cursor
		page, err := s.client.GetKlines(ctx, KlineParams{
			Symbol:   symbol,
			Interval: interval,
			Start:    &pageStart,
			End:      &pageEnd,
			Limit:    s.pageSize,
		})
		if err != nil {
			return nil, err
		}
		pages++
		if len(page) == 0 {
			break
		}

		oldest := page[0].StartTime
		for _, k := range page {
			if k.StartTime.Before(oldest) {
				oldest = k.StartTime
			}
			ts := k.StartTime.UnixMilli()
			if seen[ts] || k.StartTime.Before(start) || k.StartTime.After(end) {
				continue
			}
			seen[ts] = true
			candles = append(candles, k.OHLCV())
		}

		log.Debug().
			Str("symbol", symbol).
			Int("page", pages).
			Int("candles", len(candles)).
			Time("oldest", oldest).
			Msg("downloaded kline page")

		if len(page) < s.pageSize || !oldest.After(start) {
			break
		}
		// a page that does not reach further back would repeat forever
		if !lastOldest.IsZero() && !oldest.Before(lastOldest) {
			log.Warn().
				Str("symbol", symbol).
				Time("oldest", oldest).
				Int("page", pages).
				Msg("kline paging stalled, stopping")
			break
		}
		lastOldest = oldest
		cursor = oldest.Add(-time.Millisecond)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	log.Info().
		Str("symbol", symbol).
		Str("interval", string(interval)).
		Int("candles", len(candles)).
		Int("pages", pages).
		Msg("kline history downloaded")

	return candles, nil
}
