/*
strategy.go - Team split strategy registration and lookup

PURPOSE:
  A team check splits a total effort across several users. How the split is
  made is a named strategy looked up from a registry, so new policies
  (weighted by capacity, by seniority...) can be added without touching the
  team planner.

REGISTERED:
  equal - total / n per user

USAGE:
  capacity.RegisterStrategy(myWeightedSplit{})
  s, err := capacity.LookupStrategy("weighted")

SEE ALSO:
  - team.go: the team planner consuming strategies
*/
package capacity

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// StrategyEqual is the default team split strategy.
const StrategyEqual = "equal"

// SplitStrategy divides total hours across users. The returned slice is
// aligned with users and must have the same length. Shares are checked
// unrounded; the team planner rounds them only for display.
type SplitStrategy interface {
	Name() string
	Split(total decimal.Decimal, users []UserID) []decimal.Decimal
}

// =============================================================================
// STRATEGY REGISTRY
// =============================================================================

var (
	strategyRegistry = map[string]SplitStrategy{StrategyEqual: EqualSplit{}}
	strategyMu       sync.RWMutex
)

// RegisterStrategy adds or replaces a split strategy.
func RegisterStrategy(s SplitStrategy) {
	strategyMu.Lock()
	defer strategyMu.Unlock()
	strategyRegistry[s.Name()] = s
}

// LookupStrategy finds a strategy by name. An empty name selects equal.
func LookupStrategy(name string) (SplitStrategy, error) {
	if name == "" {
		name = StrategyEqual
	}
	strategyMu.RLock()
	defer strategyMu.RUnlock()
	s, ok := strategyRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, name)
	}
	return s, nil
}

// ListStrategies returns registered strategy names, sorted.
func ListStrategies() []string {
	strategyMu.RLock()
	defer strategyMu.RUnlock()
	names := make([]string, 0, len(strategyRegistry))
	for name := range strategyRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// EQUAL SPLIT
// =============================================================================

type EqualSplit struct{}

func (EqualSplit) Name() string { return StrategyEqual }

func (EqualSplit) Split(total decimal.Decimal, users []UserID) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(users))
	if len(users) == 0 {
		return shares
	}
	share := total.Div(decimal.NewFromInt(int64(len(users))))
	for i := range shares {
		shares[i] = share
	}
	return shares
}
