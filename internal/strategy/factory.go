package strategy

import (
	"github.com/ducminhle1904/crypto-backtest-lab/pkg/types"
)

// New resolves id to a variant and configures it from params.
func New(id string, params types.ParameterSet) (Strategy, error) {
	switch kind := ParseKind(id); kind {
	case KindEMACrossover, KindSMACrossover:
		return NewMACrossover(kind, params)
	default:
		return &Noop{id: id}, nil
	}
}

// WarmupFor returns the warm-up requirement of id configured with params,
// or ok=false when params are invalid for it.
func WarmupFor(id string, params types.ParameterSet) (bars int, ok bool) {
	s, err := New(id, params)
	if err != nil {
		return 0, false
	}
	return s.WarmupBars(), true
}
