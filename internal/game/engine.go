package game

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tavernkeep/rules-server-go/internal/game/actions"
	"github.com/tavernkeep/rules-server-go/internal/game/events"
)

// Engine is the gameplay façade: it resolves creature ids against the
// world and drives the structured actions. One engine per world.
type Engine struct {
	world   *World
	spatial SpatialService
	logger  *zap.Logger
}

// NewEngine binds an engine to a world. spatial may be nil; range and
// visibility checks then degrade to plain grid distance with full
// vision.
func NewEngine(world *World, spatial SpatialService, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{world: world, spatial: spatial, logger: logger}
}

// World exposes the engine's world for inspection surfaces.
func (e *Engine) World() *World {
	return e.world
}

func (e *Engine) pair(sourceID, targetID uuid.UUID) (*Creature, *Creature, error) {
	source, ok := e.world.Creature(sourceID)
	if !ok {
		return nil, nil, fmt.Errorf("unknown creature %s", sourceID)
	}
	target, ok := e.world.Creature(targetID)
	if !ok {
		return nil, nil, fmt.Errorf("unknown creature %s", targetID)
	}
	return source, target, nil
}

// Attack runs a full weapon attack from source against target. The
// returned event is the attack's final revision; inspect its phase,
// rolls and metadata for the result.
func (e *Engine) Attack(sourceID, targetID uuid.UUID, weapon Weapon) (events.Event, error) {
	attacker, target, err := e.pair(sourceID, targetID)
	if err != nil {
		return events.Event{}, err
	}
	a := e.attackAction(attacker, target, weapon, actions.CostAction, uuid.Nil)
	return a.Apply(), nil
}

// PreValidateAttack dry-runs the attack's cost check and prerequisites
// without touching the queue, the pool, or any listener.
func (e *Engine) PreValidateAttack(sourceID, targetID uuid.UUID, weapon Weapon) (events.Event, error) {
	attacker, target, err := e.pair(sourceID, targetID)
	if err != nil {
		return events.Event{}, err
	}
	a := e.attackAction(attacker, target, weapon, actions.CostAction, uuid.Nil)
	return a.PreValidate(), nil
}

// Move runs a full movement action for one creature. Reactions armed
// on movement, e.g. opportunity attacks, interrupt during the
// execution phase.
func (e *Engine) Move(sourceID uuid.UUID, to Position) (events.Event, error) {
	mover, ok := e.world.Creature(sourceID)
	if !ok {
		return events.Event{}, fmt.Errorf("unknown creature %s", sourceID)
	}
	a := e.moveAction(mover, to)
	a.RevalidatePrerequisites = false
	return a.Apply(), nil
}

// PreValidateMove dry-runs the movement's cost check and prerequisites.
func (e *Engine) PreValidateMove(sourceID uuid.UUID, to Position) (events.Event, error) {
	mover, ok := e.world.Creature(sourceID)
	if !ok {
		return events.Event{}, fmt.Errorf("unknown creature %s", sourceID)
	}
	return e.moveAction(mover, to).PreValidate(), nil
}

// ApplyCondition attaches a condition to a creature through the action
// pipeline, so listeners observe and may react to the application.
func (e *Engine) ApplyCondition(targetID uuid.UUID, cond Condition) (events.Event, error) {
	target, ok := e.world.Creature(targetID)
	if !ok {
		return events.Event{}, fmt.Errorf("unknown creature %s", targetID)
	}

	a := actions.NewAction(events.EventConditionApplied, targetID, targetID, e.world.Queue, nil, e.logger)
	a.SetPrerequisite("not_already_active", func(evt events.Event, source uuid.UUID) *events.Event {
		if target.HasCondition(cond.Name) {
			return nil
		}
		return &evt
	})
	a.SetConsequence("attach", func(evt events.Event, source uuid.UUID) *events.Event {
		if err := target.applyCondition(cond); err != nil {
			canceled := evt.Cancel(e.world.Queue, err.Error())
			return &canceled
		}
		next := evt.Post(e.world.Queue, events.WithMetadata("condition", cond.Name))
		return &next
	})
	return a.Apply(), nil
}

// RemoveCondition detaches a named condition, restoring every affected
// stat to its pre-condition resolution.
func (e *Engine) RemoveCondition(targetID uuid.UUID, name string) (events.Event, error) {
	target, ok := e.world.Creature(targetID)
	if !ok {
		return events.Event{}, fmt.Errorf("unknown creature %s", targetID)
	}

	a := actions.NewAction(events.EventConditionRemoved, targetID, targetID, e.world.Queue, nil, e.logger)
	a.SetPrerequisite("active", func(evt events.Event, source uuid.UUID) *events.Event {
		if !target.HasCondition(name) {
			return nil
		}
		return &evt
	})
	a.SetConsequence("detach", func(evt events.Event, source uuid.UUID) *events.Event {
		if !target.removeCondition(name) {
			return nil
		}
		next := evt.Post(e.world.Queue, events.WithMetadata("condition", name))
		return &next
	})
	return a.Apply(), nil
}

// RegisterOpportunityAttack arms a creature's opportunity attack with
// the given weapon and returns the listener handle for disarming.
func (e *Engine) RegisterOpportunityAttack(reactorID uuid.UUID, weapon Weapon) (int, error) {
	reactor, ok := e.world.Creature(reactorID)
	if !ok {
		return 0, fmt.Errorf("unknown creature %s", reactorID)
	}
	return e.registerOpportunityAttack(reactor, weapon), nil
}

// StartTurn refreshes a creature's resource pool for a new turn.
func (e *Engine) StartTurn(creatureID uuid.UUID) error {
	c, ok := e.world.Creature(creatureID)
	if !ok {
		return fmt.Errorf("unknown creature %s", creatureID)
	}
	c.RefreshPool()
	e.logger.Debug("turn started", zap.String("name", c.Name))
	return nil
}
