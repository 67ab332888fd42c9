package game

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/tavernkeep/rules-server-go/internal/game/actions"
	"github.com/tavernkeep/rules-server-go/internal/game/values"
)

// Stat names every creature carries. Gameplay code resolves these
// composites; content code populates them.
const (
	StatAttackBonus = "attack_bonus"
	StatArmorClass  = "armor_class"
	StatDefenses    = "defenses"
	StatSpeed       = "speed"
)

// Position is a grid coordinate supplied and consumed by the spatial
// layer.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Creature is one combatant: its composite stats, resource pool,
// position and hit points. Composite values are created once per stat
// and mutated by gameplay code for the creature's lifetime.
type Creature struct {
	ID       uuid.UUID
	Name     string
	HP       int
	MaxHP    int
	Speed    int
	Position Position
	Pool     *actions.Pool

	stats map[string]*values.Composite

	// conditions maps a condition name to the modifier ids it injected,
	// per stat, so removal is an exact inverse.
	conditions map[string][]appliedModifier
}

type appliedModifier struct {
	stat string
	id   uuid.UUID
}

// NewCreature creates a creature with empty default stats: armor class
// base 10, attack bonus 0, no defenses, the given speed and hit points.
func NewCreature(name string, hp, speed int) *Creature {
	c := &Creature{
		ID:         uuid.New(),
		Name:       name,
		HP:         hp,
		MaxHP:      hp,
		Speed:      speed,
		Pool:       actions.NewPool(),
		stats:      make(map[string]*values.Composite),
		conditions: make(map[string][]appliedModifier),
	}
	for _, stat := range []string{StatAttackBonus, StatArmorClass, StatDefenses, StatSpeed} {
		c.stats[stat] = values.NewComposite(stat, c.ID)
	}

	base := values.MustModifier(values.KindNumeric, c.ID, uuid.Nil, values.NumericValue(10))
	if err := c.stats[StatArmorClass].AddModifier(base); err != nil {
		panic(err)
	}
	spd := values.MustModifier(values.KindNumeric, c.ID, uuid.Nil, values.NumericValue(speed))
	if err := c.stats[StatSpeed].AddModifier(spd); err != nil {
		panic(err)
	}

	c.RefreshPool()
	return c
}

// Stat returns the named composite value.
func (c *Creature) Stat(name string) *values.Composite {
	return c.stats[name]
}

// AttackBonus returns the attack-bonus composite.
func (c *Creature) AttackBonus() *values.Composite {
	return c.stats[StatAttackBonus]
}

// ArmorClass returns the armor-class composite.
func (c *Creature) ArmorClass() *values.Composite {
	return c.stats[StatArmorClass]
}

// Defenses returns the resistances composite.
func (c *Creature) Defenses() *values.Composite {
	return c.stats[StatDefenses]
}

// RefreshPool restores the per-turn resources: one action, one bonus
// action, one reaction, and movement equal to the resolved speed.
func (c *Creature) RefreshPool() {
	c.Pool.Set(actions.CostAction, 1)
	c.Pool.Set(actions.CostBonusAction, 1)
	c.Pool.Set(actions.CostReaction, 1)
	c.Pool.Set(actions.CostMovement, c.stats[StatSpeed].Score(nil))
}

// Alive reports whether the creature has hit points left.
func (c *Creature) Alive() bool {
	return c.HP > 0
}

// TakeDamage reduces hit points, flooring at zero.
func (c *Creature) TakeDamage(amount int) {
	c.HP -= amount
	if c.HP < 0 {
		c.HP = 0
	}
}

// HasCondition reports whether the named condition is active.
func (c *Creature) HasCondition(name string) bool {
	_, ok := c.conditions[name]
	return ok
}

// applyCondition injects the condition's modifiers into the creature's
// stats and records their ids for removal.
func (c *Creature) applyCondition(cond Condition) error {
	if c.HasCondition(cond.Name) {
		return fmt.Errorf("condition %s already active on %s", cond.Name, c.Name)
	}
	var applied []appliedModifier
	for _, sm := range cond.Modifiers {
		composite := c.stats[sm.Stat]
		if composite == nil {
			return fmt.Errorf("condition %s references unknown stat %s", cond.Name, sm.Stat)
		}
		m, err := sm.build(c.ID)
		if err != nil {
			return err
		}
		if sm.Outgoing {
			err = composite.AddOutgoingModifier(m)
		} else {
			err = composite.AddModifier(m)
		}
		if err != nil {
			return err
		}
		applied = append(applied, appliedModifier{stat: sm.Stat, id: m.ID})
	}
	c.conditions[cond.Name] = applied
	return nil
}

// removeCondition deletes every modifier the condition injected.
func (c *Creature) removeCondition(name string) bool {
	applied, ok := c.conditions[name]
	if !ok {
		return false
	}
	for _, am := range applied {
		if composite := c.stats[am.stat]; composite != nil {
			composite.RemoveModifier(am.id)
		}
	}
	delete(c.conditions, name)
	return true
}

// CreatureSnapshot is the inspection view of one creature.
type CreatureSnapshot struct {
	ID         uuid.UUID                   `json:"id"`
	Name       string                      `json:"name"`
	HP         int                         `json:"hp"`
	MaxHP      int                         `json:"max_hp"`
	Position   Position                    `json:"position"`
	Pool       map[actions.CostType]int    `json:"pool"`
	Conditions []string                    `json:"conditions,omitempty"`
	Stats      map[string]values.Snapshot  `json:"stats"`
}

// Snapshot resolves every stat once for inspection surfaces.
func (c *Creature) Snapshot() CreatureSnapshot {
	snap := CreatureSnapshot{
		ID:       c.ID,
		Name:     c.Name,
		HP:       c.HP,
		MaxHP:    c.MaxHP,
		Position: c.Position,
		Pool:     c.Pool.Snapshot(),
		Stats:    make(map[string]values.Snapshot, len(c.stats)),
	}
	for name, composite := range c.stats {
		snap.Stats[name] = composite.Snapshot(nil)
	}
	for name := range c.conditions {
		snap.Conditions = append(snap.Conditions, name)
	}
	return snap
}
