package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/data"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/validation"
)

// Commands understood by the dispatcher
const (
	CommandBacktest    = "backtest"
	CommandOptimize    = "optimize"
	CommandWalkForward = "walk_forward"
	CommandRisk        = "risk"
)

// Request is the command envelope
type Request struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

// Response is the result envelope. Data is null and Error set on failure.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *string     `json:"error"`
	RunID   string      `json:"run_id,omitempty"`
	Cached  bool        `json:"cached,omitempty"`

	// HTTP status for transports that have one; zero means 200
	status int
}

func failure(status int, format string, args ...interface{}) Response {
	msg := fmt.Sprintf(format, args...)
	return Response{Success: false, Error: &msg, status: status}
}

// StatusCode maps the outcome to an HTTP status
func (r Response) StatusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Candle is the wire form of a bar. The timestamp is RFC 3339, a date or a
// Unix epoch in seconds or milliseconds; any other non-empty token is kept
// opaque and echoed back unchanged.
type Candle struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// opaqueEpoch anchors series with opaque timestamps; bar i sits i seconds after it
var opaqueEpoch = time.Unix(0, 0).UTC()

// timeline maps engine bar times back to the caller's timestamp tokens
type timeline map[time.Time]string

func (tl timeline) token(t time.Time) string {
	if raw, ok := tl[t]; ok {
		return raw
	}
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// decodeCandles parses the bars. When any timestamp is not a recognised
// time the whole series switches to ordered placeholder times.
func decodeCandles(candles []Candle) ([]types.OHLCV, timeline, error) {
	out := make([]types.OHLCV, len(candles))
	opaque := false
	for i, c := range candles {
		if strings.TrimSpace(c.Timestamp) == "" {
			return nil, nil, fmt.Errorf("candle %d: missing timestamp", i)
		}
		ts, err := data.ParseTimestamp(c.Timestamp, "")
		if err != nil {
			opaque = true
		}
		out[i] = types.OHLCV{Timestamp: ts, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
	}

	tl := make(timeline, len(candles))
	for i := range out {
		if opaque {
			out[i].Timestamp = opaqueEpoch.Add(time.Duration(i) * time.Second)
		}
		tl[out[i].Timestamp] = candles[i].Timestamp
	}
	return out, tl, nil
}

// BacktestRequest is the data of a backtest command
type BacktestRequest struct {
	Strategy       string             `json:"strategy"`
	Symbol         string             `json:"symbol"`
	InitialCapital float64            `json:"initial_capital"`
	Candles        []Candle           `json:"candles"`
	Params         types.ParameterSet `json:"params,omitempty"`
}

// OptimizeRequest is the data of an optimize command
type OptimizeRequest struct {
	Strategy       string              `json:"strategy"`
	Symbol         string              `json:"symbol"`
	InitialCapital float64             `json:"initial_capital"`
	Candles        []Candle            `json:"candles"`
	ParamGrid      types.ParameterGrid `json:"param_grid"`
}

// WalkForwardRequest is the data of a walk_forward command
type WalkForwardRequest struct {
	Strategy       string              `json:"strategy"`
	Symbol         string              `json:"symbol"`
	InitialCapital float64             `json:"initial_capital"`
	Candles        []Candle            `json:"candles"`
	ParamGrid      types.ParameterGrid `json:"param_grid"`
	InSampleRatio  float64             `json:"in_sample_ratio,omitempty"`
	NumFolds       int                 `json:"num_folds,omitempty"`
}

// RiskRequest is the data of a risk command
type RiskRequest struct {
	Returns        []float64 `json:"returns"`
	InitialCapital float64   `json:"initial_capital"`
	RiskFreeRate   *float64  `json:"risk_free_rate,omitempty"`
	Benchmark      []float64 `json:"benchmark,omitempty"`
}

// EquityPoint is the wire form of a nav observation
type EquityPoint struct {
	Date string  `json:"date"`
	NAV  float64 `json:"nav"`
}

// Trade is the wire form of a closed round trip
type Trade struct {
	Symbol     string     `json:"symbol"`
	Side       types.Side `json:"side"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Quantity   int64      `json:"qty"`
	PnL        float64    `json:"pnl"`
	EntryTime  string     `json:"entry_time"`
	ExitTime   string     `json:"exit_time"`
}

// Position is the wire form of a position left open at the end
type Position struct {
	EntryPrice float64 `json:"entry_price"`
	EntryTime  string  `json:"entry_time"`
	Quantity   int64   `json:"qty"`
}

// BacktestResponse flattens the performance report next to the curves
type BacktestResponse struct {
	backtest.PerformanceReport
	Strategy       string             `json:"strategy"`
	Symbol         string             `json:"symbol"`
	Params         types.ParameterSet `json:"params"`
	InitialCapital float64            `json:"initial_capital"`
	FinalNAV       float64            `json:"final_nav"`
	EquityCurve    []EquityPoint      `json:"equity_curve"`
	TradeLog       []Trade            `json:"trade_log"`
	OpenPosition   *Position          `json:"open_position,omitempty"`
}

func newBacktestResponse(r *backtest.BacktestResults, tl timeline) BacktestResponse {
	equity := make([]EquityPoint, len(r.EquityCurve))
	for i, p := range r.EquityCurve {
		equity[i] = EquityPoint{Date: tl.token(p.Timestamp), NAV: p.NAV}
	}
	trades := make([]Trade, len(r.Trades))
	for i, tr := range r.Trades {
		trades[i] = Trade{
			Symbol:     tr.Symbol,
			Side:       tr.Side,
			EntryPrice: tr.EntryPrice,
			ExitPrice:  tr.ExitPrice,
			Quantity:   tr.Quantity,
			PnL:        tr.PnL,
			EntryTime:  tl.token(tr.EntryTime),
			ExitTime:   tl.token(tr.ExitTime),
		}
	}
	var open *Position
	if pos := r.OpenPosition; pos != nil {
		open = &Position{EntryPrice: pos.EntryPrice, EntryTime: tl.token(pos.EntryTime), Quantity: pos.Quantity}
	}

	return BacktestResponse{
		PerformanceReport: r.Report,
		Strategy:          r.Strategy,
		Symbol:            r.Symbol,
		Params:            r.Params,
		InitialCapital:    r.InitialCapital,
		FinalNAV:          r.FinalNAV,
		EquityCurve:       equity,
		TradeLog:          trades,
		OpenPosition:      open,
	}
}

// Fold is a walk-forward fold with its window bounds in the caller's tokens
type Fold struct {
	validation.WalkForwardFold
	InSampleStart  string `json:"in_sample_start"`
	InSampleEnd    string `json:"in_sample_end"`
	OutSampleStart string `json:"out_sample_start"`
	OutSampleEnd   string `json:"out_sample_end"`
}

// WalkForwardResponse repeats the robust parameters and overfitting score
// at the top level
type WalkForwardResponse struct {
	*validation.WalkForwardSummary
	Folds            []Fold             `json:"folds"`
	BestRobustParams types.ParameterSet `json:"best_robust_params"`
	OverfittingScore float64            `json:"overfitting_score"`
}

func newWalkForwardResponse(s *validation.WalkForwardSummary, tl timeline) WalkForwardResponse {
	folds := make([]Fold, len(s.Folds))
	for i, f := range s.Folds {
		folds[i] = Fold{
			WalkForwardFold: f,
			InSampleStart:   tl.token(f.InSampleStart),
			InSampleEnd:     tl.token(f.InSampleEnd),
			OutSampleStart:  tl.token(f.OutSampleStart),
			OutSampleEnd:    tl.token(f.OutSampleEnd),
		}
	}
	return WalkForwardResponse{
		WalkForwardSummary: s,
		Folds:              folds,
		BestRobustParams:   s.Aggregate.MostRobustParams,
		OverfittingScore:   s.Aggregate.OverfittingScore,
	}
}
