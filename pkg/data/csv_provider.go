package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// CSVProvider implements DataProvider for CSV files
type CSVProvider struct {
	format CSVColumnMapping
	strict bool
}

// NewCSVProvider creates a new CSV data provider with default format
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{
		format: DefaultCSVFormat,
	}
}

// NewCSVProviderWithFormat creates a new CSV data provider with custom format
func NewCSVProviderWithFormat(format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{
		format: format,
	}
}

// Strict makes malformed rows fail the load instead of being skipped
func (p *CSVProvider) Strict() *CSVProvider {
	p.strict = true
	return p
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData loads historical data from a CSV file
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, errors.NewDataError("csv_provider", "load", err).WithContext("file", source)
	}
	defer file.Close()

	data, err := p.Read(file)
	if err != nil {
		return nil, errors.NewDataError("csv_provider", "load", err).WithContext("file", source)
	}

	log.Debug().
		Str("file", filepath.Base(source)).
		Int("candles", len(data)).
		Msg("loaded candles from CSV")
	return data, nil
}

// Read parses candles from r. The first row is a header.
func (p *CSVProvider) Read(r io.Reader) ([]types.OHLCV, error) {
	format := p.format
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	var data []types.OHLCV
	lineNum := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum, err)
		}
		lineNum++

		candle, err := parseRecord(record, format)
		if err == nil {
			err = validateCandle(candle)
		}
		if err != nil {
			if p.strict {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			log.Warn().Int("line", lineNum).Err(err).Msg("skipping malformed CSV row")
			continue
		}
		data = append(data, candle)
	}

	return data, nil
}

func parseRecord(record []string, format CSVColumnMapping) (types.OHLCV, error) {
	if len(record) < format.MinColumns {
		return types.OHLCV{}, fmt.Errorf("insufficient columns (expected %d, got %d)", format.MinColumns, len(record))
	}

	timestamp, err := ParseTimestamp(record[format.TimestampCol], format.DateFormat)
	if err != nil {
		return types.OHLCV{}, err
	}

	fields := []struct {
		name string
		col  int
	}{
		{"open", format.OpenCol},
		{"high", format.HighCol},
		{"low", format.LowCol},
		{"close", format.CloseCol},
		{"volume", format.VolumeCol},
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[f.col]), 64)
		if err != nil {
			return types.OHLCV{}, fmt.Errorf("invalid %s %q", f.name, record[f.col])
		}
		values[i] = v
	}

	return types.OHLCV{
		Timestamp: timestamp,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}

// ParseTimestamp accepts layout, RFC 3339, plain dates and Unix epochs in
// seconds or milliseconds. Results are UTC.
func ParseTimestamp(raw, layout string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, l := range []string{layout, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if l == "" {
			continue
		}
		if t, err := time.Parse(l, raw); err == nil {
			return t.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
}

func validateCandle(candle types.OHLCV) error {
	if candle.Open <= 0 || candle.High <= 0 || candle.Low <= 0 || candle.Close <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if candle.High < candle.Low {
		return fmt.Errorf("high (%.4f) cannot be less than low (%.4f)", candle.High, candle.Low)
	}
	if candle.High < candle.Open || candle.High < candle.Close {
		return fmt.Errorf("high (%.4f) must be >= open (%.4f) and close (%.4f)", candle.High, candle.Open, candle.Close)
	}
	if candle.Low > candle.Open || candle.Low > candle.Close {
		return fmt.Errorf("low (%.4f) must be <= open (%.4f) and close (%.4f)", candle.Low, candle.Open, candle.Close)
	}
	if candle.Volume < 0 {
		return fmt.Errorf("volume cannot be negative")
	}
	return nil
}

// ValidateData validates the integrity of loaded data
func (p *CSVProvider) ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return errors.NewEngineError(errors.ErrorCategoryData, "csv_provider", "validate", "no data provided")
	}

	for i, candle := range data {
		if err := validateCandle(candle); err != nil {
			return errors.NewDataError("csv_provider", "validate", err).WithContext("index", i)
		}
		if i > 0 && candle.Timestamp.Before(data[i-1].Timestamp) {
			return errors.NewEngineError(errors.ErrorCategoryData, "csv_provider", "validate",
				fmt.Sprintf("timestamps must be in chronological order at index %d", i))
		}
	}

	return nil
}

// WriteCSV writes candles in the default format
func WriteCSV(w io.Writer, data []types.OHLCV) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, c := range data {
		record := []string{
			c.Timestamp.UTC().Format(DefaultCSVFormat.DateFormat),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// SaveCSV writes candles to path, creating parent directories
func SaveCSV(path string, data []types.OHLCV) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("csv_provider", "save", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("csv_provider", "save", err)
	}
	defer file.Close()

	if err := WriteCSV(file, data); err != nil {
		return errors.NewStorageError("csv_provider", "save", err)
	}
	return nil
}
