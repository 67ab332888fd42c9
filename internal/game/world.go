package game

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tavernkeep/rules-server-go/internal/game/dice"
	"github.com/tavernkeep/rules-server-go/internal/game/events"
)

// World is the explicit context for one independent simulation: it owns
// the event queue, the dice roller, and the creature registry. Nothing
// is package-global, so multiple worlds coexist and tests stay
// deterministic.
type World struct {
	logger *zap.Logger
	Queue  *events.Queue
	Roller *dice.Roller

	mu        sync.RWMutex
	creatures map[uuid.UUID]*Creature
	order     []uuid.UUID
}

// NewWorld creates an empty world. maxDepth bounds nested reaction
// dispatch; seed fixes the roller for deterministic replays (zero draws
// a time-based seed).
func NewWorld(logger *zap.Logger, maxDepth int, seed uint64) *World {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &World{
		logger:    logger,
		Queue:     events.NewQueue(logger, maxDepth),
		Roller:    dice.NewRoller(seed),
		creatures: make(map[uuid.UUID]*Creature),
	}
}

// AddCreature registers a creature.
func (w *World) AddCreature(c *Creature) {
	if c == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.creatures[c.ID]; !exists {
		w.order = append(w.order, c.ID)
	}
	w.creatures[c.ID] = c
	w.logger.Debug("creature registered",
		zap.String("id", c.ID.String()),
		zap.String("name", c.Name),
	)
}

// Creature returns a registered creature by id.
func (w *World) Creature(id uuid.UUID) (*Creature, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.creatures[id]
	return c, ok
}

// RemoveCreature unregisters a creature and drops its listeners.
func (w *World) RemoveCreature(id uuid.UUID) {
	w.mu.Lock()
	if _, ok := w.creatures[id]; ok {
		delete(w.creatures, id)
		for i, cid := range w.order {
			if cid == id {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
	}
	w.mu.Unlock()
	w.Queue.RemoveOwnerListeners(id)
}

// Creatures returns every registered creature in registration order.
func (w *World) Creatures() []*Creature {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*Creature, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.creatures[id])
	}
	return out
}
