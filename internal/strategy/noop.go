package strategy

import "github.com/ducminhle1904/crypto-backtest-lab/pkg/types"

// Noop never trades. Unrecognised strategy identifiers resolve to it.
type Noop struct {
	id string
}

func (n *Noop) GetName() string {
	if n.id == "" {
		return "noop"
	}
	return n.id
}

func (n *Noop) Kind() Kind { return KindNoop }

func (n *Noop) WarmupBars() int { return 0 }

func (n *Noop) Prepare(data []types.OHLCV) {}

func (n *Noop) Step(int, bool) TradeAction { return ActionHold }
