package strategy

import (
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// Strategy is a long-only two-state (FLAT/LONG) decision rule evaluated once
// per bar. Prepare is called once with the full series before any Step.
// Implementations hold per-run state and must not be shared across runs.
type Strategy interface {
	// GetName returns the name of the strategy
	GetName() string

	// Kind returns the variant this strategy implements
	Kind() Kind

	// WarmupBars is the minimum bar index at which transitions are evaluated
	WarmupBars() int

	// Prepare computes per-bar indicator series for data
	Prepare(data []types.OHLCV)

	// Step returns the action for bar i given the current position state
	Step(i int, inPosition bool) TradeAction
}

// TradeAction represents the type of trading action
type TradeAction int

const (
	ActionHold TradeAction = iota
	ActionBuy
	ActionSell
)

func (ta TradeAction) String() string {
	switch ta {
	case ActionHold:
		return "HOLD"
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Kind is the closed set of strategy variants.
type Kind int

const (
	KindNoop Kind = iota
	KindEMACrossover
	KindSMACrossover
)

// ParseKind maps a strategy identifier to its variant. Unknown identifiers
// map to KindNoop. "supertrend" shares the dual-EMA crossover rule.
func ParseKind(id string) Kind {
	switch id {
	case "ema-crossover", "ema_crossover", "supertrend":
		return KindEMACrossover
	case "sma-crossover", "sma_crossover":
		return KindSMACrossover
	default:
		return KindNoop
	}
}

func (k Kind) String() string {
	switch k {
	case KindEMACrossover:
		return "ema-crossover"
	case KindSMACrossover:
		return "sma-crossover"
	default:
		return "noop"
	}
}

// Known lists the identifiers that select a non-noop variant.
func Known() []string {
	return []string{"ema-crossover", "sma-crossover", "supertrend"}
}
