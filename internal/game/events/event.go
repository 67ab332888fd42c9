package events

import (
	"time"

	"github.com/google/uuid"
)

// Phase is a stage in an event's causal lifecycle.
type Phase string

const (
	PhaseDeclaration Phase = "DECLARATION"
	PhaseExecution   Phase = "EXECUTION"
	PhaseEffect      Phase = "EFFECT"
	PhaseCompletion  Phase = "COMPLETION"
	PhaseCancel      Phase = "CANCEL"
)

// phaseOrder is the forward progression a one-step advance follows.
var phaseOrder = []Phase{PhaseDeclaration, PhaseExecution, PhaseEffect, PhaseCompletion}

// Next returns the phase one step forward, or the phase itself when no
// forward step exists.
func (p Phase) Next() Phase {
	for i, phase := range phaseOrder {
		if phase == p && i+1 < len(phaseOrder) {
			return phaseOrder[i+1]
		}
	}
	return p
}

// EventType indicates the category of a rules event.
type EventType string

const (
	EventAttack           EventType = "ATTACK"
	EventDamage           EventType = "DAMAGE"
	EventMovement         EventType = "MOVEMENT"
	EventD20Roll          EventType = "D20_ROLL"
	EventConditionApplied EventType = "CONDITION_APPLIED"
	EventConditionRemoved EventType = "CONDITION_REMOVED"
	EventReaction         EventType = "REACTION"
	EventCustom           EventType = "CUSTOM"
)

// Event is an immutable-by-convention, versioned record of one unit of
// causality. Every revision carries a fresh ID; LineageID is the stable
// identity shared by all revisions of "the same" event. Mutation goes
// through Post, which clones with overrides and submits the clone to
// the queue.
type Event struct {
	ID        uuid.UUID `json:"id"`
	LineageID uuid.UUID `json:"lineage_id"`
	Revision  int       `json:"revision"`

	Type  EventType `json:"type"`
	Phase Phase     `json:"phase"`

	Canceled      bool   `json:"canceled"`
	StatusMessage string `json:"status_message,omitempty"`

	// ParentID is the causally-enclosing event's id, not the previous
	// revision of this lineage.
	ParentID uuid.UUID   `json:"parent_id,omitempty"`
	ChildIDs []uuid.UUID `json:"child_ids,omitempty"`

	SourceID uuid.UUID `json:"source_id,omitempty"`
	TargetID uuid.UUID `json:"target_id,omitempty"`

	Amount    int               `json:"amount,omitempty"`
	Rolls     []int             `json:"rolls,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`

	// Silent events are dry-run probes: they are never indexed by the
	// queue and never reach listeners.
	Silent bool `json:"-"`
}

// New creates the first revision of a fresh lineage in the declaration
// phase. The event is not yet known to any queue.
func New(eventType EventType, source, target uuid.UUID) Event {
	return Event{
		ID:        uuid.New(),
		LineageID: uuid.New(),
		Type:      eventType,
		Phase:     PhaseDeclaration,
		SourceID:  source,
		TargetID:  target,
		Metadata:  make(map[string]string),
		Timestamp: time.Now(),
	}
}

// Terminal reports whether the event has reached a terminal phase.
// Terminal events ignore further revision attempts.
func (e Event) Terminal() bool {
	return e.Phase == PhaseCompletion || e.Phase == PhaseCancel
}

// clone copies the event as the next revision: fresh id, incremented
// revision, refreshed timestamp, preserved lineage, deep-copied
// reference fields.
func (e Event) clone() Event {
	next := e
	next.ID = uuid.New()
	next.Revision = e.Revision + 1
	next.Timestamp = time.Now()
	next.ChildIDs = append([]uuid.UUID(nil), e.ChildIDs...)
	next.Rolls = append([]int(nil), e.Rolls...)
	next.Metadata = make(map[string]string, len(e.Metadata))
	for k, v := range e.Metadata {
		next.Metadata[k] = v
	}
	return next
}

// Override adjusts a cloned revision before it is submitted.
type Override func(*Event)

// WithPhase sets the clone's phase.
func WithPhase(p Phase) Override {
	return func(e *Event) { e.Phase = p }
}

// WithStatus sets the clone's status message.
func WithStatus(msg string) Override {
	return func(e *Event) { e.StatusMessage = msg }
}

// WithCancel marks the clone canceled with a human-readable reason and
// moves it to the cancel phase.
func WithCancel(msg string) Override {
	return func(e *Event) {
		e.Canceled = true
		e.Phase = PhaseCancel
		e.StatusMessage = msg
	}
}

// WithAmount sets the clone's numeric payload.
func WithAmount(n int) Override {
	return func(e *Event) { e.Amount = n }
}

// WithRolls sets the clone's recorded die rolls.
func WithRolls(rolls []int) Override {
	return func(e *Event) { e.Rolls = append([]int(nil), rolls...) }
}

// WithMetadata sets one metadata entry on the clone.
func WithMetadata(key, value string) Override {
	return func(e *Event) { e.Metadata[key] = value }
}

// WithParent links the clone to its causally-enclosing event.
func WithParent(id uuid.UUID) Override {
	return func(e *Event) { e.ParentID = id }
}

// WithLineage overrides the preserved lineage, forking the clone into a
// new causal identity.
func WithLineage(id uuid.UUID) Override {
	return func(e *Event) {
		e.LineageID = id
		e.Revision = 0
	}
}

// Post clones the event with the given overrides and submits the clone
// to the queue, returning whatever the queue hands back. Posting a
// terminal event is a no-op returning the event unchanged. Silent
// events are cloned but never submitted.
func (e Event) Post(q *Queue, overrides ...Override) Event {
	if e.Terminal() {
		return e
	}
	next := e.clone()
	for _, o := range overrides {
		o(&next)
	}
	if next.Silent || q == nil {
		return next
	}
	return q.Register(next)
}

// PhaseTo advances the event to the target phase via Post. An empty
// target advances exactly one step in declaration→execution→effect→
// completion order. No-op on terminal events.
func (e Event) PhaseTo(q *Queue, target Phase) Event {
	if e.Terminal() {
		return e
	}
	if target == "" {
		target = e.Phase.Next()
	}
	return e.Post(q, WithPhase(target))
}

// Cancel jumps the event straight to the cancel phase with the given
// reason. No-op on terminal events.
func (e Event) Cancel(q *Queue, msg string) Event {
	if e.Terminal() {
		return e
	}
	return e.Post(q, WithCancel(msg))
}
