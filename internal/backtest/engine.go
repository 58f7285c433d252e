package backtest

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/strategy"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// DefaultPositionFraction is the share of nav committed on each entry.
const DefaultPositionFraction = 0.10

// BacktestEngine runs a single forward pass of a strategy over a candle
// series. An engine carries no per-run state and may be reused.
type BacktestEngine struct {
	symbol           string
	initialCapital   float64
	positionFraction float64
}

// Position is the open trade while LONG.
type Position struct {
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	// Quantity fixed at entry from the entry-time nav. The same quantity
	// is closed on exit.
	Quantity int64 `json:"qty"`
}

// Trade is a closed round trip.
type Trade struct {
	Symbol     string     `json:"symbol"`
	Side       types.Side `json:"side"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price"`
	Quantity   int64      `json:"qty"`
	PnL        float64    `json:"pnl"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   time.Time  `json:"exit_time"`
}

// EquityPoint is the nav at the start of a bar, before that bar's decision.
type EquityPoint struct {
	Timestamp time.Time `json:"date"`
	NAV       float64   `json:"nav"`
}

// BacktestResults holds everything a run produced.
type BacktestResults struct {
	Strategy       string             `json:"strategy"`
	Symbol         string             `json:"symbol"`
	Params         types.ParameterSet `json:"params"`
	InitialCapital float64            `json:"initial_capital"`
	FinalNAV       float64            `json:"final_nav"`
	Bars           int                `json:"bars"`

	// Running drawdown maxima, updated after every bar.
	MaxDrawdown       float64 `json:"-"`
	MaxDrawdownAmount float64 `json:"-"`

	Report       PerformanceReport `json:"report"`
	Trades       []Trade           `json:"trade_log"`
	EquityCurve  []EquityPoint     `json:"equity_curve"`
	OpenPosition *Position         `json:"open_position,omitempty"`
}

// NewBacktestEngine creates an engine trading symbol from initialCapital.
func NewBacktestEngine(symbol string, initialCapital float64) *BacktestEngine {
	return &BacktestEngine{
		symbol:           symbol,
		initialCapital:   initialCapital,
		positionFraction: DefaultPositionFraction,
	}
}

// Run simulates strat over data. A position still open after the last bar
// is reported in OpenPosition and is not closed.
func (b *BacktestEngine) Run(strat strategy.Strategy, data []types.OHLCV) *BacktestResults {
	results := &BacktestResults{
		Strategy:       strat.GetName(),
		Symbol:         b.symbol,
		InitialCapital: b.initialCapital,
		Bars:           len(data),
		Trades:         make([]Trade, 0),
		EquityCurve:    make([]EquityPoint, 0, len(data)),
	}

	nav := b.initialCapital
	peak := nav
	var position *Position

	strat.Prepare(data)

	for i, candle := range data {
		results.EquityCurve = append(results.EquityCurve, EquityPoint{Timestamp: candle.Timestamp, NAV: nav})

		switch strat.Step(i, position != nil) {
		case strategy.ActionBuy:
			if position != nil {
				break
			}
			if qty := b.entryQuantity(nav, candle.Close); qty > 0 {
				position = &Position{EntryPrice: candle.Close, EntryTime: candle.Timestamp, Quantity: qty}
			}

		case strategy.ActionSell:
			if position == nil {
				break
			}
			pnl := (candle.Close - position.EntryPrice) * float64(position.Quantity)
			nav += pnl
			results.Trades = append(results.Trades, Trade{
				Symbol:     b.symbol,
				Side:       types.SideBuy,
				EntryPrice: position.EntryPrice,
				ExitPrice:  candle.Close,
				Quantity:   position.Quantity,
				PnL:        pnl,
				EntryTime:  position.EntryTime,
				ExitTime:   candle.Timestamp,
			})
			position = nil
		}

		if nav > peak {
			peak = nav
		}
		drawdown := math.Min(1, (peak-nav)/peak)
		if drawdown > results.MaxDrawdown {
			results.MaxDrawdown = drawdown
		}
		if peak-nav > results.MaxDrawdownAmount {
			results.MaxDrawdownAmount = peak - nav
		}
	}

	results.FinalNAV = nav
	results.OpenPosition = position
	results.UpdateMetrics()

	return results
}

// entryQuantity sizes an order at positionFraction of nav, rounded down.
func (b *BacktestEngine) entryQuantity(nav, price float64) int64 {
	if nav <= 0 || !(price > 0) {
		return 0
	}
	qty := math.Floor(nav * b.positionFraction / price)
	if math.IsNaN(qty) || qty < 1 {
		return 0
	}
	if qty >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(qty)
}

// Simulate runs strategyID configured with params over data. Unknown
// strategy identifiers produce a run with no trades.
func Simulate(strategyID, symbol string, initialCapital float64, data []types.OHLCV, params types.ParameterSet) (*BacktestResults, error) {
	if len(data) == 0 {
		return nil, errors.NewConfigError("engine", "simulate", "candle series is empty")
	}
	if !(initialCapital > 0) || math.IsInf(initialCapital, 0) {
		return nil, errors.NewConfigError("engine", "simulate", "initial capital must be positive, got %v", initialCapital)
	}

	strat, err := strategy.New(strategyID, params)
	if err != nil {
		return nil, err
	}

	results := NewBacktestEngine(symbol, initialCapital).Run(strat, data)
	results.Strategy = strategyID
	results.Params = params.Clone()

	log.Debug().
		Str("strategy", strat.GetName()).
		Str("symbol", symbol).
		Int("bars", len(data)).
		Int("trades", results.Report.TotalTrades).
		Float64("sharpe", results.Report.SharpeRatio).
		Msg("simulation complete")

	return results, nil
}
