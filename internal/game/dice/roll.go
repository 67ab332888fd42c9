package dice

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tavernkeep/rules-server-go/internal/game/values"
)

// Roll is one recorded dice resolution.
type Roll struct {
	ID        uuid.UUID `json:"id"`
	Sides     int       `json:"sides"`
	Rolls     []int     `json:"rolls"`
	Kept      int       `json:"kept"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// Natural returns the kept face value of a d20 roll before any bonus.
func (r Roll) Natural() int {
	return r.Kept
}

// Roller produces die rolls and records every resolution in a
// UUID-keyed log for audit. Seeded rollers replay identically.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
	log map[uuid.UUID]Roll
}

// NewRoller creates a roller from the given seed. A zero seed draws a
// time-based one.
func NewRoller(seed uint64) *Roller {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Roller{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		log: make(map[uuid.UUID]Roll),
	}
}

// die rolls a single die with the given number of sides.
func (r *Roller) die(sides int) int {
	return r.rng.IntN(sides) + 1
}

// record stores the roll in the log and returns it.
func (r *Roller) record(roll Roll) Roll {
	roll.ID = uuid.New()
	roll.Timestamp = time.Now()
	r.log[roll.ID] = roll
	return roll
}

// D20 rolls a twenty-sided die against the given advantage status:
// advantage and disadvantage roll twice and keep the best or worst. The
// status is read by the caller at roll time, never cached.
func (r *Roller) D20(status values.AdvantageStatus) Roll {
	r.mu.Lock()
	defer r.mu.Unlock()

	first := r.die(20)
	roll := Roll{Sides: 20, Rolls: []int{first}, Kept: first}
	switch status {
	case values.Advantage:
		second := r.die(20)
		roll.Rolls = append(roll.Rolls, second)
		if second > roll.Kept {
			roll.Kept = second
		}
	case values.Disadvantage:
		second := r.die(20)
		roll.Rolls = append(roll.Rolls, second)
		if second < roll.Kept {
			roll.Kept = second
		}
	}
	roll.Total = roll.Kept
	return r.record(roll)
}

// Damage rolls count dice of the given sides plus a flat bonus. A
// critical doubles the dice count before rolling, not the total.
func (r *Roller) Damage(count, sides, bonus int, crit bool) Roll {
	r.mu.Lock()
	defer r.mu.Unlock()

	if crit {
		count *= 2
	}
	roll := Roll{Sides: sides}
	for i := 0; i < count; i++ {
		face := r.die(sides)
		roll.Rolls = append(roll.Rolls, face)
		roll.Total += face
	}
	roll.Total += bonus
	if len(roll.Rolls) > 0 {
		roll.Kept = roll.Rolls[0]
	}
	return r.record(roll)
}

// GetRoll returns a recorded roll by id.
func (r *Roller) GetRoll(id uuid.UUID) (Roll, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roll, ok := r.log[id]
	return roll, ok
}

// RollCount returns the number of recorded rolls.
func (r *Roller) RollCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.log)
}
