package actions

import (
	"fmt"

	"github.com/tavernkeep/rules-server-go/internal/game/events"
)

// CostType names a spendable resource gating an action's completion.
type CostType string

const (
	CostAction      CostType = "ACTION"
	CostBonusAction CostType = "BONUS_ACTION"
	CostReaction    CostType = "REACTION"
	CostMovement    CostType = "MOVEMENT"
)

// Cost is one named, typed resource deduction. Amount is the static
// price; Evaluator, when set, computes the price from the action's
// current event instead (e.g. movement cost from the travelled
// distance).
type Cost struct {
	Type      CostType
	Amount    int
	Evaluator func(evt events.Event) int
}

// Price resolves the cost's amount against the current event.
func (c Cost) Price(evt events.Event) int {
	if c.Evaluator != nil {
		return c.Evaluator(evt)
	}
	return c.Amount
}

// Pool holds one entity's spendable resources per cost type.
type Pool struct {
	resources map[CostType]int
}

// NewPool creates an empty resource pool.
func NewPool() *Pool {
	return &Pool{resources: make(map[CostType]int)}
}

// Set fixes the available amount for one resource type.
func (p *Pool) Set(t CostType, amount int) {
	p.resources[t] = amount
}

// Get returns the available amount for one resource type.
func (p *Pool) Get(t CostType) int {
	return p.resources[t]
}

// CanAfford reports whether the pool covers the given price.
func (p *Pool) CanAfford(t CostType, price int) bool {
	return p.resources[t] >= price
}

// Spend deducts the price. Overspending indicates a caller bug: costs
// must be affordability-checked before any deduction.
func (p *Pool) Spend(t CostType, price int) error {
	if !p.CanAfford(t, price) {
		return fmt.Errorf("insufficient %s: need %d, have %d", t, price, p.resources[t])
	}
	p.resources[t] -= price
	return nil
}

// Restore adds the amount back, e.g. on a new turn.
func (p *Pool) Restore(t CostType, amount int) {
	p.resources[t] += amount
}

// Snapshot returns a copy of the pool's contents.
func (p *Pool) Snapshot() map[CostType]int {
	out := make(map[CostType]int, len(p.resources))
	for t, n := range p.resources {
		out[t] = n
	}
	return out
}
