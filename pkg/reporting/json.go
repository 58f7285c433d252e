package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultJSONFormatter implements JSON output functionality
type DefaultJSONFormatter struct{}

// NewDefaultJSONFormatter creates a new JSON formatter
func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{}
}

// Format returns indented JSON for v
func (f *DefaultJSONFormatter) Format(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// Print writes v as indented JSON to w
func (f *DefaultJSONFormatter) Print(w io.Writer, v interface{}) error {
	data, err := f.Format(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// WriteJSON writes v as indented JSON to path
func WriteJSON(v interface{}, path string) error {
	data, err := NewDefaultJSONFormatter().Format(v)
	if err != nil {
		return err
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ExtractIntervalFromPath extracts the interval from a data file path.
// Example: "data/bybit/spot/BTCUSDT/5m/candles.csv" -> "5m". A numeric parent
// directory is read as minutes, the layout written by fetch:
// "data/bybit/linear/BTCUSDT/60/candles.csv" -> "1h".
func ExtractIntervalFromPath(dataPath string) string {
	if dataPath == "" {
		return ""
	}

	parts := strings.Split(filepath.ToSlash(dataPath), "/")
	if len(parts) >= 2 {
		if minutes, err := strconv.Atoi(parts[len(parts)-2]); err == nil && minutes > 0 {
			return minutesToInterval(minutes)
		}
	}
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if len(part) < 2 {
			continue
		}
		switch part[len(part)-1] {
		case 'm', 'h', 'd':
			if _, err := strconv.Atoi(part[:len(part)-1]); err == nil {
				return part
			}
		}
	}

	return ""
}

func minutesToInterval(minutes int) string {
	switch {
	case minutes%1440 == 0:
		return strconv.Itoa(minutes/1440) + "d"
	case minutes%60 == 0:
		return strconv.Itoa(minutes/60) + "h"
	default:
		return strconv.Itoa(minutes) + "m"
	}
}
