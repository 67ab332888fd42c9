package game

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tavernkeep/rules-server-go/internal/game/actions"
	"github.com/tavernkeep/rules-server-go/internal/game/events"
)

// Metadata keys movement events carry.
const (
	metaFromX = "from_x"
	metaFromY = "from_y"
	metaToX   = "to_x"
	metaToY   = "to_y"
	metaCost  = "cost"
)

// moveAction assembles the action for moving one creature to a
// destination. The path cost is computed during validation and priced
// into the movement cost through the event, so the deduction matches
// the actual route even when listeners rewrite the event mid-flight.
func (e *Engine) moveAction(mover *Creature, to Position) *actions.Action {
	a := actions.NewAction(events.EventMovement, mover.ID, uuid.Nil, e.world.Queue, mover.Pool, e.logger)
	a.AddCost(actions.Cost{
		Type:   actions.CostMovement,
		Amount: 1,
		Evaluator: func(evt events.Event) int {
			if cost, err := strconv.Atoi(evt.Metadata[metaCost]); err == nil {
				return cost
			}
			return evt.Amount
		},
	})

	from := mover.Position

	a.SetPrerequisite("mover_alive", func(evt events.Event, source uuid.UUID) *events.Event {
		if !mover.Alive() {
			return nil
		}
		return &evt
	})
	a.SetPrerequisite("destination_reachable", func(evt events.Event, source uuid.UUID) *events.Event {
		cost, err := e.pathCost(from, to)
		if err != nil {
			return nil
		}
		next := evt.Post(e.world.Queue,
			events.WithAmount(cost),
			events.WithMetadata(metaCost, strconv.Itoa(cost)),
			events.WithMetadata(metaFromX, strconv.Itoa(from.X)),
			events.WithMetadata(metaFromY, strconv.Itoa(from.Y)),
			events.WithMetadata(metaToX, strconv.Itoa(to.X)),
			events.WithMetadata(metaToY, strconv.Itoa(to.Y)),
		)
		return &next
	})
	a.SetPrerequisite("movement_affordable", func(evt events.Event, source uuid.UUID) *events.Event {
		if !mover.Pool.CanAfford(actions.CostMovement, evt.Amount) {
			return nil
		}
		return &evt
	})

	a.SetConsequence("relocate", func(evt events.Event, source uuid.UUID) *events.Event {
		mover.Position = to
		e.logger.Debug("creature moved",
			zap.String("name", mover.Name),
			zap.Int("from_x", from.X),
			zap.Int("from_y", from.Y),
			zap.Int("to_x", to.X),
			zap.Int("to_y", to.Y),
			zap.Int("cost", evt.Amount),
		)
		return &evt
	})

	return a
}

// pathCost resolves the movement cost from the spatial layer, falling
// back to the grid distance when no spatial service is wired.
func (e *Engine) pathCost(from, to Position) (int, error) {
	if e.spatial == nil {
		return chebyshev(from, to), nil
	}
	costs, _ := e.spatial.GetPaths(from)
	cost, ok := costs[to]
	if !ok {
		return 0, fmt.Errorf("no path from %v to %v", from, to)
	}
	return cost, nil
}

// registerOpportunityAttack arms a reactor to strike creatures that
// leave its reach. The listener fires on the execution phase of every
// movement event, so the strike interrupts the move after the route is
// fixed but before it completes. The reaction's nested pipeline runs
// through the same queue, linked to the movement by parent id.
func (e *Engine) registerOpportunityAttack(reactor *Creature, weapon Weapon) int {
	return e.world.Queue.AddListener(events.EventMovement, events.PhaseExecution, reactor.ID,
		func(evt events.Event, ownerID uuid.UUID) *events.Event {
			if evt.SourceID == reactor.ID {
				return &evt
			}
			mover, ok := e.world.Creature(evt.SourceID)
			if !ok {
				return &evt
			}
			if !reactor.Alive() || !reactor.Pool.CanAfford(actions.CostReaction, 1) {
				return &evt
			}

			from, to, ok := movementEndpoints(evt)
			if !ok {
				return &evt
			}
			inReachBefore := chebyshev(reactor.Position, from) <= weapon.Reach
			inReachAfter := chebyshev(reactor.Position, to) <= weapon.Reach
			if !inReachBefore || inReachAfter {
				return &evt
			}

			e.logger.Debug("opportunity attack triggered",
				zap.String("reactor", reactor.Name),
				zap.String("mover", mover.Name),
			)

			// The strike resolves against the mover's position at the
			// moment of leaving, before the relocation lands.
			reaction := e.attackAction(reactor, mover, weapon, actions.CostReaction, evt.ID)
			reaction.Apply()
			return &evt
		})
}

// movementEndpoints decodes the from/to coordinates a movement event
// carries.
func movementEndpoints(evt events.Event) (from, to Position, ok bool) {
	fx, err1 := strconv.Atoi(evt.Metadata[metaFromX])
	fy, err2 := strconv.Atoi(evt.Metadata[metaFromY])
	tx, err3 := strconv.Atoi(evt.Metadata[metaToX])
	ty, err4 := strconv.Atoi(evt.Metadata[metaToY])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return Position{}, Position{}, false
	}
	return Position{X: fx, Y: fy}, Position{X: tx, Y: ty}, true
}
