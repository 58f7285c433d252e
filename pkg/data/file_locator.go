package data

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultFileLocator implements FileLocator for standard file system operations
type DefaultFileLocator struct{}

// NewDefaultFileLocator creates a new default file locator
func NewDefaultFileLocator() *DefaultFileLocator {
	return &DefaultFileLocator{}
}

// ConvertIntervalToMinutes converts interval strings like "5m", "1h", "4h" to minute numbers
func (f *DefaultFileLocator) ConvertIntervalToMinutes(interval string) string {
	if _, err := strconv.Atoi(interval); err == nil {
		return interval
	}

	interval = strings.ToLower(strings.TrimSpace(interval))
	if len(interval) < 2 {
		return interval
	}

	num, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil {
		return interval
	}

	switch interval[len(interval)-1:] {
	case "m":
		return strconv.Itoa(num)
	case "h":
		return strconv.Itoa(num * 60)
	case "d":
		return strconv.Itoa(num * 24 * 60)
	case "w":
		return strconv.Itoa(num * 7 * 24 * 60)
	default:
		return interval
	}
}

// CandlePath is where candles for exchange/category/symbol/interval live:
// {root}/{exchange}/{category}/{SYMBOL}/{minutes}/candles.csv
func (f *DefaultFileLocator) CandlePath(dataRoot, exchange, category, symbol, interval string) string {
	return filepath.Join(dataRoot, strings.ToLower(exchange), category, strings.ToUpper(symbol),
		f.ConvertIntervalToMinutes(interval), "candles.csv")
}

// FindDataFile returns the first existing candle file across the exchange's
// categories, or "" when there is none.
func (f *DefaultFileLocator) FindDataFile(dataRoot, exchange, symbol, interval string) string {
	var categories []string
	switch strings.ToLower(exchange) {
	case "bybit":
		categories = []string{"spot", "linear", "inverse"}
	default:
		categories = []string{"spot", "futures", "linear", "inverse"}
	}

	var attempted []string
	for _, category := range categories {
		path := f.CandlePath(dataRoot, exchange, category, symbol, interval)
		attempted = append(attempted, path)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	log.Warn().
		Str("exchange", exchange).
		Str("symbol", symbol).
		Str("interval", interval).
		Strs("attempted", attempted).
		Msg("no data file found")
	return ""
}
