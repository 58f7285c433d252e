package data

import (
	"strconv"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// LoadOptions narrows a loaded series
type LoadOptions struct {
	Start    time.Time
	End      time.Time
	Trailing time.Duration
}

// DataManager combines all data operations in a convenient interface
type DataManager struct {
	provider DataProvider
	filter   *DefaultDataFilter
	locator  *DefaultFileLocator
}

// NewDataManager creates a new data manager with default components
func NewDataManager() *DataManager {
	return NewDataManagerWithProvider(NewCachedProvider(NewCSVProvider()))
}

// NewDataManagerWithProvider creates a data manager with a custom provider
func NewDataManagerWithProvider(provider DataProvider) *DataManager {
	return &DataManager{
		provider: provider,
		filter:   NewDefaultDataFilter(),
		locator:  NewDefaultFileLocator(),
	}
}

// Load reads source, normalizes ordering, applies the window in opts and
// validates the result.
func (dm *DataManager) Load(source string, opts LoadOptions) ([]types.OHLCV, error) {
	data, err := dm.provider.LoadData(source)
	if err != nil {
		return nil, err
	}

	data = dm.filter.Normalize(data)
	data = dm.filter.FilterByDateRange(data, opts.Start, opts.End)
	data = dm.filter.FilterByPeriod(data, opts.Trailing)

	if len(data) == 0 {
		return nil, errors.NewEngineError(errors.ErrorCategoryData, "data_manager", "load",
			"no candles left in "+source+" after filtering")
	}
	if err := dm.provider.ValidateData(data); err != nil {
		return nil, err
	}
	return data, nil
}

// FindDataFile locates a candle file under dataRoot
func (dm *DataManager) FindDataFile(dataRoot, exchange, symbol, interval string) string {
	return dm.locator.FindDataFile(dataRoot, exchange, symbol, interval)
}

// CandlePath returns the canonical location for downloaded candles
func (dm *DataManager) CandlePath(dataRoot, exchange, category, symbol, interval string) string {
	return dm.locator.CandlePath(dataRoot, exchange, category, symbol, interval)
}

// ParseTrailingPeriod parses period strings like "7d", "30d", "180d" or a
// Go duration like "168h".
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}

// ParseDate parses a YYYY-MM-DD or RFC 3339 bound; empty is the zero time
func ParseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := ParseTimestamp(s, "2006-01-02")
	if err != nil {
		return time.Time{}, errors.NewConfigError("data", "parse_date", "invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
