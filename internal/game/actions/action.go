package actions

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tavernkeep/rules-server-go/internal/game/events"
)

// Processor is one step of a prerequisite or consequence chain. It
// receives the action's current event and the source entity id and
// returns the event to continue with, or nil to veto the step.
type Processor func(evt events.Event, source uuid.UUID) *events.Event

// namedProcessor keeps chains ordered by first insertion while allowing
// upsert by name.
type namedProcessor struct {
	name string
	fn   Processor
}

// Action orchestrates one gameplay action through its declaration →
// validation → execution → effect → completion pipeline, applying costs
// and consequences. Actions are transient: one instance per attempted
// action, discarded after Apply returns.
type Action struct {
	EventType events.EventType
	SourceID  uuid.UUID
	TargetID  uuid.UUID

	// ParentID links the action's declaration event to a
	// causally-enclosing event, e.g. the movement a reaction interrupts.
	ParentID uuid.UUID

	// RevalidatePrerequisites re-runs the full prerequisite chain after
	// every consequence, so a consequence's side effects (e.g. a
	// reaction raised through the queue) can invalidate the action
	// mid-flight.
	RevalidatePrerequisites bool

	costs         []Cost
	prerequisites []namedProcessor
	consequences  []namedProcessor

	queue  *events.Queue
	pool   *Pool
	logger *zap.Logger
}

// NewAction creates an action bound to the queue and the source
// entity's resource pool.
func NewAction(eventType events.EventType, source, target uuid.UUID, queue *events.Queue, pool *Pool, logger *zap.Logger) *Action {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Action{
		EventType: eventType,
		SourceID:  source,
		TargetID:  target,
		queue:     queue,
		pool:      pool,
		logger:    logger,
	}
}

// AddCost appends a resource cost.
func (a *Action) AddCost(c Cost) *Action {
	a.costs = append(a.costs, c)
	return a
}

// SetPrerequisite upserts a named prerequisite, preserving first-insert
// order.
func (a *Action) SetPrerequisite(name string, fn Processor) *Action {
	a.prerequisites = upsert(a.prerequisites, name, fn)
	return a
}

// SetConsequence upserts a named consequence, preserving first-insert
// order.
func (a *Action) SetConsequence(name string, fn Processor) *Action {
	a.consequences = upsert(a.consequences, name, fn)
	return a
}

func upsert(chain []namedProcessor, name string, fn Processor) []namedProcessor {
	for i, p := range chain {
		if p.name == name {
			chain[i].fn = fn
			return chain
		}
	}
	return append(chain, namedProcessor{name: name, fn: fn})
}

// CheckCosts is the pure affordability predicate: it inspects the pool
// without mutating anything and reports the first unaffordable cost.
func (a *Action) CheckCosts(evt events.Event) (bool, string) {
	if a.pool == nil {
		return true, ""
	}
	for _, c := range a.costs {
		price := c.Price(evt)
		if !a.pool.CanAfford(c.Type, price) {
			return false, fmt.Sprintf("insufficient %s: need %d, have %d", c.Type, price, a.pool.Get(c.Type))
		}
	}
	return true, ""
}

// Apply drives the full pipeline: cost check, declaration event,
// prerequisite chain (ending in the advance to execution), consequence
// chain (driving execution → effect → completion), and finally the cost
// deduction. A canceled result at any step aborts the whole call and is
// returned unmodified; costs are applied last, so a failed action never
// deducts resources.
func (a *Action) Apply() events.Event {
	declaration := events.New(a.EventType, a.SourceID, a.TargetID)
	declaration.ParentID = a.ParentID
	affordable, reason := a.CheckCosts(declaration)

	declared := a.queue.Register(declaration)
	if declared.Canceled {
		return declared
	}
	if !affordable {
		a.logger.Debug("action unaffordable",
			zap.String("type", string(a.EventType)),
			zap.String("reason", reason),
		)
		return declared.Cancel(a.queue, reason)
	}

	validated := a.validate(declared)
	if validated.Canceled {
		return validated
	}

	applied := a.applyConsequences(validated)
	if applied.Canceled {
		return applied
	}

	if applied.Phase == events.PhaseCompletion {
		a.applyCosts(applied)
	}
	return applied
}

// PreValidate is a side-effect-free dry run: it builds a silent
// declaration event, excluded from queue indexing and listener
// notification, and runs only the cost check and the prerequisite
// chain. Callers inspect the returned event's canceled flag and discard
// it.
func (a *Action) PreValidate() events.Event {
	probe := events.New(a.EventType, a.SourceID, a.TargetID)
	probe.Silent = true

	if ok, reason := a.CheckCosts(probe); !ok {
		return probe.Cancel(a.queue, reason)
	}
	return a.validate(probe)
}

// validate runs the prerequisite chain against the current event and
// ends by advancing declaration → execution. A processor returning nil
// cancels the event with a message naming the failed prerequisite.
func (a *Action) validate(evt events.Event) events.Event {
	current, ok := a.runChain(a.prerequisites, evt, "prerequisite")
	if !ok {
		return current
	}
	return current.PhaseTo(a.queue, events.PhaseExecution)
}

// revalidate re-runs the prerequisite chain without the phase advance.
func (a *Action) revalidate(evt events.Event) events.Event {
	current, _ := a.runChain(a.prerequisites, evt, "prerequisite")
	return current
}

// applyConsequences runs the consequence chain at the execution phase,
// then drives the event through effect to completion. When
// RevalidatePrerequisites is set the full prerequisite chain runs again
// after every consequence.
func (a *Action) applyConsequences(evt events.Event) events.Event {
	current := evt
	for _, p := range a.consequences {
		result := p.fn(current, a.SourceID)
		if result == nil {
			return current.Cancel(a.queue, fmt.Sprintf("consequence %s failed", p.name))
		}
		current = *result
		if current.Canceled {
			return current
		}
		if a.RevalidatePrerequisites {
			current = a.revalidate(current)
			if current.Canceled {
				return current
			}
		}
	}

	current = current.PhaseTo(a.queue, events.PhaseEffect)
	if current.Canceled {
		return current
	}
	return current.PhaseTo(a.queue, events.PhaseCompletion)
}

// runChain executes one processor chain. It reports false when a step
// vetoed or canceled the event; the returned event is then the
// cancellation to hand back.
func (a *Action) runChain(chain []namedProcessor, evt events.Event, kind string) (events.Event, bool) {
	current := evt
	for _, p := range chain {
		result := p.fn(current, a.SourceID)
		if result == nil {
			return current.Cancel(a.queue, fmt.Sprintf("%s %s failed", kind, p.name)), false
		}
		current = *result
		if current.Canceled {
			return current, false
		}
	}
	return current, true
}

// applyCosts mutates the resource pool. Reached only once the event has
// completed, guaranteeing no partial deduction on failure.
func (a *Action) applyCosts(evt events.Event) {
	if a.pool == nil {
		return
	}
	for _, c := range a.costs {
		price := c.Price(evt)
		if err := a.pool.Spend(c.Type, price); err != nil {
			// CheckCosts passed before the pipeline ran; a failure here
			// means a consequence drained the pool mid-flight. The
			// remainder is still spent to zero.
			a.logger.Warn("cost overspend after completion",
				zap.String("type", string(c.Type)),
				zap.Int("price", price),
				zap.Error(err),
			)
			a.pool.Set(c.Type, 0)
		}
	}
}
