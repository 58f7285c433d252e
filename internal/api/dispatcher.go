package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/backtest"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/cache"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/monitoring"
	"github.com/ducminhle1904/crypto-backtest-lab/internal/storage"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/validation"
)

// RunStore persists completed runs
type RunStore interface {
	SaveRun(ctx context.Context, kind, symbol, strategy string, payload interface{}) (*storage.Run, error)
}

// Options configures a Dispatcher. Nil Cache and Store disable caching and
// persistence.
type Options struct {
	Workers         int
	MaxCombinations int
	Cache           cache.Cache
	CacheTTL        time.Duration
	Store           RunStore
}

// Dispatcher routes command envelopes to the engine
type Dispatcher struct {
	opts Options
}

// NewDispatcher creates a dispatcher
func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{opts: opts}
}

// Commands lists the supported command names
func Commands() []string {
	return []string{CommandBacktest, CommandOptimize, CommandWalkForward, CommandRisk}
}

// Handle decodes a raw envelope and dispatches it
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return failure(http.StatusBadRequest, "Invalid JSON input: %v", err)
	}
	return d.Dispatch(ctx, req)
}

// Dispatch runs one command
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	start := time.Now()
	var resp Response

	switch req.Command {
	case CommandBacktest:
		resp = d.backtest(req.Data)
	case CommandOptimize:
		resp = d.cached(ctx, req, d.optimize)
	case CommandWalkForward:
		resp = d.cached(ctx, req, d.walkForward)
	case CommandRisk:
		resp = d.risk(req.Data)
	default:
		return failure(http.StatusNotFound, "Unknown command: %s", req.Command)
	}

	event := log.Debug()
	if !resp.Success {
		event = log.Warn().Str("error", *resp.Error)
	}
	event.Str("command", req.Command).
		Bool("success", resp.Success).
		Bool("cached", resp.Cached).
		Dur("elapsed", time.Since(start)).
		Msg("command handled")

	return resp
}

// result is a successful command outcome to be cached and stored
type result struct {
	data     interface{}
	kind     string
	symbol   string
	strategy string
}

func (d *Dispatcher) cached(ctx context.Context, req Request, run func(json.RawMessage) (*result, error)) Response {
	var key string
	if d.opts.Cache != nil {
		var canonical bytes.Buffer
		if err := json.Compact(&canonical, req.Data); err == nil {
			key = cache.RequestKey(req.Command, canonical.Bytes())
			if hit, ok, err := d.opts.Cache.Get(ctx, key); err != nil {
				log.Warn().Err(err).Msg("result cache read failed")
			} else if ok {
				return Response{Success: true, Data: json.RawMessage(hit), Cached: true}
			}
		}
	}

	res, err := run(req.Data)
	if err != nil {
		return errorResponse(req.Command, err)
	}

	resp := Response{Success: true, Data: res.data}

	if key != "" {
		if encoded, err := json.Marshal(res.data); err == nil {
			if err := d.opts.Cache.Set(ctx, key, encoded, d.opts.CacheTTL); err != nil {
				log.Warn().Err(err).Msg("result cache write failed")
			}
		}
	}
	if d.opts.Store != nil {
		saved, err := d.opts.Store.SaveRun(ctx, res.kind, res.symbol, res.strategy, res.data)
		if err != nil {
			log.Warn().Err(err).Str("command", req.Command).Msg("failed to store run")
		} else {
			resp.RunID = saved.ID
		}
	}
	return resp
}

func errorResponse(command string, err error) Response {
	category := string(errors.CategoryOf(err))
	if category == "" {
		category = "UNKNOWN"
	}
	monitoring.RecordError(category)
	log.Debug().Err(err).Str("command", command).Str("category", category).Msg("command failed")

	status := http.StatusInternalServerError
	if errors.IsConfigError(err) {
		status = http.StatusBadRequest
	}
	return failure(status, "%v", err)
}

func decode(raw json.RawMessage, into interface{}, what string) error {
	if len(raw) == 0 {
		return errors.NewConfigError("api", "decode", "missing data for %s", what)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return errors.NewConfigError("api", "decode", "Invalid %s config: %v", what, err)
	}
	return nil
}

func (d *Dispatcher) backtest(raw json.RawMessage) Response {
	var req BacktestRequest
	if err := decode(raw, &req, "backtest"); err != nil {
		return errorResponse(CommandBacktest, err)
	}

	if len(req.Candles) == 0 {
		return Response{Success: true, Data: BacktestResponse{
			Strategy:       req.Strategy,
			Symbol:         req.Symbol,
			Params:         req.Params,
			InitialCapital: req.InitialCapital,
			FinalNAV:       req.InitialCapital,
			EquityCurve:    []EquityPoint{},
			TradeLog:       []Trade{},
		}}
	}

	candles, tl, err := decodeCandles(req.Candles)
	if err != nil {
		return errorResponse(CommandBacktest, errors.NewConfigError("api", "backtest", "%v", err))
	}

	params := req.Params
	if params == nil {
		params = types.ParameterSet{}
	}
	results, err := backtest.Simulate(req.Strategy, req.Symbol, req.InitialCapital, candles, params)
	if err != nil {
		return errorResponse(CommandBacktest, err)
	}
	return Response{Success: true, Data: newBacktestResponse(results, tl)}
}

func (d *Dispatcher) optimize(raw json.RawMessage) (*result, error) {
	var req OptimizeRequest
	if err := decode(raw, &req, "optimize"); err != nil {
		return nil, err
	}
	candles, _, err := decodeCandles(req.Candles)
	if err != nil {
		return nil, errors.NewConfigError("api", "optimize", "%v", err)
	}

	start := time.Now()
	optimizer := backtest.NewOptimizer(d.opts.Workers)
	if d.opts.MaxCombinations != 0 {
		optimizer.WithMaxCombinations(d.opts.MaxCombinations)
	}
	out, err := optimizer.Optimize(req.Strategy, req.Symbol, req.InitialCapital, candles, req.ParamGrid)
	if err != nil {
		return nil, err
	}
	monitoring.ObserveOperation(CommandOptimize, req.Strategy, time.Since(start))

	return &result{data: out, kind: storage.KindOptimize, symbol: req.Symbol, strategy: req.Strategy}, nil
}

func (d *Dispatcher) walkForward(raw json.RawMessage) (*result, error) {
	var req WalkForwardRequest
	if err := decode(raw, &req, "walk-forward"); err != nil {
		return nil, err
	}
	candles, tl, err := decodeCandles(req.Candles)
	if err != nil {
		return nil, errors.NewConfigError("api", "walk_forward", "%v", err)
	}

	start := time.Now()
	validator := validation.NewDefaultWalkForwardValidator()
	validator.SetWorkers(d.opts.Workers)
	if d.opts.MaxCombinations != 0 {
		validator.SetMaxCombinations(d.opts.MaxCombinations)
	}
	summary, err := validator.Validate(candles, validation.WalkForwardConfig{
		StrategyID:     req.Strategy,
		Symbol:         req.Symbol,
		InitialCapital: req.InitialCapital,
		Grid:           req.ParamGrid,
		FoldCount:      req.NumFolds,
		InSampleRatio:  req.InSampleRatio,
	})
	if err != nil {
		return nil, err
	}
	monitoring.ObserveOperation(CommandWalkForward, req.Strategy, time.Since(start))

	return &result{data: newWalkForwardResponse(summary, tl), kind: storage.KindWalkForward, symbol: req.Symbol, strategy: req.Strategy}, nil
}

func (d *Dispatcher) risk(raw json.RawMessage) Response {
	var req RiskRequest
	if err := decode(raw, &req, "risk"); err != nil {
		return errorResponse(CommandRisk, err)
	}
	report, err := backtest.AnalyzeRisk(req.Returns, req.InitialCapital, backtest.RiskOptions{
		RiskFreeRate: req.RiskFreeRate,
		Benchmark:    req.Benchmark,
	})
	if err != nil {
		return errorResponse(CommandRisk, err)
	}
	return Response{Success: true, Data: report}
}
