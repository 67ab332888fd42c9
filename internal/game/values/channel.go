package values

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Channel is a named, directional collection of modifiers. A channel is
// either self-affecting (its modifiers apply to the owning entity) or
// outgoing (its modifiers are imposed on whichever entity the owner is
// paired against), and either static or contextual.
type Channel struct {
	Name       string
	SourceID   uuid.UUID
	Outgoing   bool
	Contextual bool

	modifiers map[uuid.UUID]Modifier
	order     []uuid.UUID
}

// NewChannel creates an empty channel owned by the given entity.
func NewChannel(name string, source uuid.UUID, outgoing, contextual bool) *Channel {
	return &Channel{
		Name:       name,
		SourceID:   source,
		Outgoing:   outgoing,
		Contextual: contextual,
		modifiers:  make(map[uuid.UUID]Modifier),
	}
}

// Add upserts a modifier by id. An outgoing channel rejects modifiers
// aimed at its own source, and a channel rejects modifiers whose
// static/contextual nature does not match its own; both indicate a
// caller bug.
func (c *Channel) Add(m Modifier) error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("channel %s: modifier has no id", c.Name)
	}
	if c.Outgoing && m.TargetID == c.SourceID {
		return fmt.Errorf("channel %s: outgoing modifier targets its own source %s", c.Name, c.SourceID)
	}
	if m.IsContextual() != c.Contextual {
		return fmt.Errorf("channel %s: modifier %s static/contextual mismatch", c.Name, m.ID)
	}
	if _, exists := c.modifiers[m.ID]; !exists {
		c.order = append(c.order, m.ID)
	}
	c.modifiers[m.ID] = m
	return nil
}

// Remove deletes a modifier by id. Removing an absent id is a no-op.
func (c *Channel) Remove(id uuid.UUID) {
	if _, ok := c.modifiers[id]; !ok {
		return
	}
	delete(c.modifiers, id)
	for i, mid := range c.order {
		if mid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Has reports whether the channel holds a modifier with the given id.
func (c *Channel) Has(id uuid.UUID) bool {
	_, ok := c.modifiers[id]
	return ok
}

// Len returns the number of modifiers in the channel.
func (c *Channel) Len() int {
	return len(c.modifiers)
}

// Modifiers returns the channel's modifiers in insertion order.
func (c *Channel) Modifiers() []Modifier {
	out := make([]Modifier, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.modifiers[id])
	}
	return out
}

// Clear removes every modifier.
func (c *Channel) Clear() {
	c.modifiers = make(map[uuid.UUID]Modifier)
	c.order = nil
}

// Score resolves the channel's numeric contribution: the sum of numeric
// payloads, each raw or per-modifier-normalized, with the default
// normalizer applied to modifiers that carry none. Constraints are not
// applied here; clamping is a cross-channel concern.
func (c *Channel) Score(ctx *Context) int {
	t := newTally()
	c.accumulate(t, ctx, nil)
	return t.score
}

// accumulate folds every modifier's resolved payload into the tally.
// defaultNormalizer applies to numeric modifiers without their own.
func (c *Channel) accumulate(t *tally, ctx *Context, defaultNormalizer func(int) int) {
	for _, id := range c.order {
		m := c.modifiers[id]
		v := m.resolve(ctx)
		switch v.Kind {
		case KindNumeric:
			n := v.Score
			if m.Normalizer != nil {
				n = m.Normalizer(n)
			} else if defaultNormalizer != nil {
				n = defaultNormalizer(n)
			}
			t.score += n
		case KindMinConstraint:
			t.addMinBound(v.Score)
		case KindMaxConstraint:
			t.addMaxBound(v.Score)
		case KindAdvantage:
			switch v.Advantage {
			case Advantage:
				t.advantage++
			case Disadvantage:
				t.advantage--
			}
		case KindCritical:
			switch v.Critical {
			case AutoCrit:
				t.critGrant = true
			case NoCrit:
				t.critBlock = true
			}
		case KindAutoHit:
			switch v.AutoHit {
			case AutoHit:
				t.hitGrant = true
			case AutoMiss:
				t.hitBlock = true
			}
		case KindSize:
			t.sizes = append(t.sizes, v.Size)
		case KindDamageType:
			t.damageTypes[v.Damage] = struct{}{}
		case KindResistance:
			t.resistance[v.Damage] += resistanceWeight(v.Resistance)
		}
	}
}

// tally is the running accumulator shared by every channel of one
// resolution pass.
type tally struct {
	score      int
	minBound   *int
	maxBound   *int
	advantage  int
	critGrant  bool
	critBlock  bool
	hitGrant   bool
	hitBlock   bool
	sizes      []Size
	damageTypes map[DamageType]struct{}
	resistance map[DamageType]int
}

func newTally() *tally {
	return &tally{
		damageTypes: make(map[DamageType]struct{}),
		resistance:  make(map[DamageType]int),
	}
}

// addMinBound records a lower-bound candidate; the effective bound is
// the minimum (most permissive) across all candidates.
func (t *tally) addMinBound(bound int) {
	if t.minBound == nil || bound < *t.minBound {
		b := bound
		t.minBound = &b
	}
}

// addMaxBound records an upper-bound candidate; the effective bound is
// the maximum (most permissive) across all candidates.
func (t *tally) addMaxBound(bound int) {
	if t.maxBound == nil || bound > *t.maxBound {
		b := bound
		t.maxBound = &b
	}
}

// clampedScore applies the effective bounds to the summed score.
func (t *tally) clampedScore() int {
	score := t.score
	if t.minBound != nil && score < *t.minBound {
		score = *t.minBound
	}
	if t.maxBound != nil && score > *t.maxBound {
		score = *t.maxBound
	}
	return score
}

// advantageStatus derives the categorical status from the signed tally.
// One advantage cancels one disadvantage exactly.
func (t *tally) advantageStatus() AdvantageStatus {
	switch {
	case t.advantage > 0:
		return Advantage
	case t.advantage < 0:
		return Disadvantage
	default:
		return AdvantageNone
	}
}

// criticalStatus derives the override: a block anywhere beats a grant.
func (t *tally) criticalStatus() CriticalStatus {
	if t.critBlock {
		return NoCrit
	}
	if t.critGrant {
		return AutoCrit
	}
	return CriticalNone
}

// autoHitStatus derives the override: a block anywhere beats a grant.
func (t *tally) autoHitStatus() AutoHitStatus {
	if t.hitBlock {
		return AutoMiss
	}
	if t.hitGrant {
		return AutoHit
	}
	return AutoHitNone
}

// size picks a candidate by priority, defaulting to medium.
func (t *tally) size(priority SizePriority) Size {
	if len(t.sizes) == 0 {
		return SizeMedium
	}
	best := t.sizes[0]
	for _, s := range t.sizes[1:] {
		if priority == SizePriorityMax && s > best {
			best = s
		}
		if priority == SizePriorityMin && s < best {
			best = s
		}
	}
	return best
}

// resistanceStatus derives the per-type status from the signed tally.
func (t *tally) resistanceStatus(dt DamageType) ResistanceStatus {
	return resistanceFromTally(t.resistance[dt])
}

// damageTypeList returns the contributed damage types in stable order.
func (t *tally) damageTypeList() []DamageType {
	out := make([]DamageType, 0, len(t.damageTypes))
	for dt := range t.damageTypes {
		out = append(out, dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
