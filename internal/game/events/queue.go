package events

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxDepth bounds nested reaction dispatch when no explicit
// limit is configured.
const DefaultMaxDepth = 16

// Listener is a registered callback invoked on matching event
// registrations. It receives the current event and the id of the entity
// that owns the listener, and returns the event to continue the chain
// with, or nil to stop propagation.
type Listener func(evt Event, ownerID uuid.UUID) *Event

// listenerEntry is one registration in one bucket.
type listenerEntry struct {
	handle    int
	eventType EventType
	phase     Phase
	ownerID   uuid.UUID
	callback  Listener
}

type typePhaseKey struct {
	eventType EventType
	phase     Phase
}

// Queue is the process dispatcher: it indexes every event revision and
// invokes matching listeners whenever an event is registered. Listener
// invocation is synchronous and re-entrant; a listener may spawn
// actions whose events re-enter Register before the outer registration
// returns. The depth guard bounds that nesting.
type Queue struct {
	logger   *zap.Logger
	maxDepth int

	// mu guards the indices and listener tables only. It is never held
	// across listener invocation, which keeps Register re-entrant.
	mu sync.Mutex

	byID      map[uuid.UUID]Event
	byLineage map[uuid.UUID][]uuid.UUID
	latest    map[uuid.UUID]uuid.UUID
	ordered   []uuid.UUID
	byType    map[EventType][]uuid.UUID
	byPhase   map[Phase][]uuid.UUID
	bySource  map[uuid.UUID][]uuid.UUID
	byTarget  map[uuid.UUID][]uuid.UUID

	exact      map[typePhaseKey][]listenerEntry
	anyPhase   map[EventType][]listenerEntry
	anyType    map[Phase][]listenerEntry
	handles    map[int]listenerEntry
	nextHandle int

	depth int
}

// NewQueue constructs an empty event queue. A nil logger disables
// logging; maxDepth <= 0 falls back to DefaultMaxDepth.
func NewQueue(logger *zap.Logger, maxDepth int) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Queue{
		logger:    logger,
		maxDepth:  maxDepth,
		byID:      make(map[uuid.UUID]Event),
		byLineage: make(map[uuid.UUID][]uuid.UUID),
		latest:    make(map[uuid.UUID]uuid.UUID),
		byType:    make(map[EventType][]uuid.UUID),
		byPhase:   make(map[Phase][]uuid.UUID),
		bySource:  make(map[uuid.UUID][]uuid.UUID),
		byTarget:  make(map[uuid.UUID][]uuid.UUID),
		exact:     make(map[typePhaseKey][]listenerEntry),
		anyPhase:  make(map[EventType][]listenerEntry),
		anyType:   make(map[Phase][]listenerEntry),
		handles:   make(map[int]listenerEntry),
	}
}

// AddListener registers a callback for events matching the given type
// and phase. An empty type matches any type; an empty phase matches any
// phase (a listener with both empty is rejected, handle -1). ownerID
// identifies the entity the listener acts for and is passed through to
// the callback. Returns a handle for removal.
func (q *Queue) AddListener(eventType EventType, phase Phase, ownerID uuid.UUID, cb Listener) int {
	if cb == nil {
		return -1
	}
	if eventType == "" && phase == "" {
		return -1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	handle := q.nextHandle
	q.nextHandle++
	entry := listenerEntry{
		handle:    handle,
		eventType: eventType,
		phase:     phase,
		ownerID:   ownerID,
		callback:  cb,
	}
	switch {
	case eventType != "" && phase != "":
		key := typePhaseKey{eventType, phase}
		q.exact[key] = append(q.exact[key], entry)
	case eventType != "":
		q.anyPhase[eventType] = append(q.anyPhase[eventType], entry)
	default:
		q.anyType[phase] = append(q.anyType[phase], entry)
	}
	q.handles[handle] = entry
	return handle
}

// RemoveListener removes the listener identified by the handle.
func (q *Queue) RemoveListener(handle int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.handles[handle]
	if !ok {
		return
	}
	delete(q.handles, handle)
	switch {
	case entry.eventType != "" && entry.phase != "":
		key := typePhaseKey{entry.eventType, entry.phase}
		q.exact[key] = removeByHandle(q.exact[key], handle)
	case entry.eventType != "":
		q.anyPhase[entry.eventType] = removeByHandle(q.anyPhase[entry.eventType], handle)
	default:
		q.anyType[entry.phase] = removeByHandle(q.anyType[entry.phase], handle)
	}
}

// RemoveOwnerListeners removes every listener registered for the given
// owner, e.g. when an entity leaves the simulation.
func (q *Queue) RemoveOwnerListeners(ownerID uuid.UUID) {
	q.mu.Lock()
	var handles []int
	for handle, entry := range q.handles {
		if entry.ownerID == ownerID {
			handles = append(handles, handle)
		}
	}
	q.mu.Unlock()
	for _, handle := range handles {
		q.RemoveListener(handle)
	}
}

func removeByHandle(entries []listenerEntry, handle int) []listenerEntry {
	for i, e := range entries {
		if e.handle == handle {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

// Register stores the event in every index and runs the listener chain
// against it. The chain is the concatenation of three buckets in fixed
// order — (type, phase) exact, (type, any-phase), (any-type, phase) —
// each in registration order. A listener returning nil stops
// propagation and the last good event is returned; a listener returning
// a canceled event stops the chain and the cancellation is persisted; a
// listener returning a modified event continues the chain with that
// version as current. With no matching listeners the event is returned
// unchanged after the initial store.
func (q *Queue) Register(evt Event) Event {
	if evt.Silent {
		return evt
	}

	q.store(evt)

	q.mu.Lock()
	q.depth++
	depth := q.depth
	chain := q.matchingListeners(evt)
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.depth--
		q.mu.Unlock()
	}()

	if depth > q.maxDepth {
		q.logger.Warn("reaction depth guard tripped, skipping listener dispatch",
			zap.String("event_id", evt.ID.String()),
			zap.String("event_type", string(evt.Type)),
			zap.Int("depth", depth),
			zap.Int("max_depth", q.maxDepth),
		)
		return evt
	}

	current := evt
	for _, entry := range chain {
		result := entry.callback(current, entry.ownerID)
		if result == nil {
			q.logger.Debug("listener stopped propagation",
				zap.Int("listener", entry.handle),
				zap.String("event_id", current.ID.String()),
			)
			return current
		}
		q.store(*result)
		if result.Canceled {
			q.logger.Debug("listener canceled event",
				zap.Int("listener", entry.handle),
				zap.String("event_id", result.ID.String()),
				zap.String("status", result.StatusMessage),
			)
			return *result
		}
		current = *result
	}
	return current
}

// matchingListeners builds the invocation chain for one event. Caller
// holds mu.
func (q *Queue) matchingListeners(evt Event) []listenerEntry {
	var chain []listenerEntry
	chain = append(chain, q.exact[typePhaseKey{evt.Type, evt.Phase}]...)
	chain = append(chain, q.anyPhase[evt.Type]...)
	chain = append(chain, q.anyType[evt.Phase]...)
	return chain
}

// store indexes one event revision. Re-storing an id replaces the
// record in place (latest wins) without duplicating index entries; a
// new id is appended to every index. A child lineage's first
// registration back-patches the parent's child list.
func (q *Queue) store(evt Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, seen := q.byID[evt.ID]
	firstOfLineage := len(q.byLineage[evt.LineageID]) == 0

	q.byID[evt.ID] = evt
	q.latest[evt.LineageID] = evt.ID
	if seen {
		return
	}

	q.byLineage[evt.LineageID] = append(q.byLineage[evt.LineageID], evt.ID)
	q.ordered = append(q.ordered, evt.ID)
	q.byType[evt.Type] = append(q.byType[evt.Type], evt.ID)
	q.byPhase[evt.Phase] = append(q.byPhase[evt.Phase], evt.ID)
	if evt.SourceID != uuid.Nil {
		q.bySource[evt.SourceID] = append(q.bySource[evt.SourceID], evt.ID)
	}
	if evt.TargetID != uuid.Nil {
		q.byTarget[evt.TargetID] = append(q.byTarget[evt.TargetID], evt.ID)
	}

	if firstOfLineage && evt.ParentID != uuid.Nil {
		if parent, ok := q.byID[evt.ParentID]; ok {
			parent.ChildIDs = append(parent.ChildIDs, evt.ID)
			q.byID[evt.ParentID] = parent
		}
	}
}

// GetEventByID returns the stored revision with the given id.
func (q *Queue) GetEventByID(id uuid.UUID) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	evt, ok := q.byID[id]
	return evt, ok
}

// GetLatest returns the current revision of a lineage. O(1).
func (q *Queue) GetLatest(lineage uuid.UUID) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id, ok := q.latest[lineage]
	if !ok {
		return Event{}, false
	}
	evt, ok := q.byID[id]
	return evt, ok
}

// GetEventHistory returns every revision of a lineage in timestamp
// order.
func (q *Queue) GetEventHistory(lineage uuid.UUID) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := q.byLineage[lineage]
	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, q.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Revision < out[j].Revision
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// EventsByType returns every event of one type in registration order.
func (q *Queue) EventsByType(eventType EventType) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.collect(q.byType[eventType])
}

// EventsByPhase returns every event registered in one phase.
func (q *Queue) EventsByPhase(phase Phase) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.collect(q.byPhase[phase])
}

// EventsBySource returns every event originated by one entity.
func (q *Queue) EventsBySource(source uuid.UUID) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.collect(q.bySource[source])
}

// EventsByTarget returns every event aimed at one entity.
func (q *Queue) EventsByTarget(target uuid.UUID) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.collect(q.byTarget[target])
}

// All returns every registered revision in timestamp order.
func (q *Queue) All() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.collect(q.ordered)
}

// Children returns the stored child events of the given event id.
func (q *Queue) Children(id uuid.UUID) []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	parent, ok := q.byID[id]
	if !ok {
		return nil
	}
	return q.collect(parent.ChildIDs)
}

// Size returns the number of distinct stored revisions.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ordered)
}

// collect resolves ids against the store. Caller holds mu.
func (q *Queue) collect(ids []uuid.UUID) []Event {
	out := make([]Event, 0, len(ids))
	for _, id := range ids {
		if evt, ok := q.byID[id]; ok {
			out = append(out, evt)
		}
	}
	return out
}
