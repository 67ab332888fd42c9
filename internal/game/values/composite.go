package values

import (
	"fmt"

	"github.com/google/uuid"
)

// Composite is the full set of channels representing one gameplay stat
// (attack bonus, armor class, a saving throw). It permanently owns its
// self-affecting and outgoing channels; the from-target channels are
// transient and populated only for the duration of one cross-entity
// computation.
type Composite struct {
	ID       uuid.UUID
	Name     string
	SourceID uuid.UUID

	// Normalizer is the default conversion for numeric modifiers that
	// carry none of their own, e.g. ability score to ability modifier.
	Normalizer func(int) int

	// SizePriority selects the winning size candidate.
	SizePriority SizePriority

	// GeneratedFrom records the operand composites when this value was
	// produced by Combine. Audit only.
	GeneratedFrom []uuid.UUID

	selfStatic     *Channel
	selfContextual *Channel
	outStatic      *Channel
	outContextual  *Channel
	fromStatic     *Channel
	fromContextual *Channel
}

// NewComposite creates an empty composite value owned by the given
// entity.
func NewComposite(name string, owner uuid.UUID) *Composite {
	return &Composite{
		ID:             uuid.New(),
		Name:           name,
		SourceID:       owner,
		selfStatic:     NewChannel(name+".self.static", owner, false, false),
		selfContextual: NewChannel(name+".self.contextual", owner, false, true),
		outStatic:      NewChannel(name+".out.static", owner, true, false),
		outContextual:  NewChannel(name+".out.contextual", owner, true, true),
	}
}

// AddModifier upserts a self-affecting modifier, routed to the static or
// contextual channel by the modifier's nature. A self modifier must be
// untargeted or aimed at the owner.
func (c *Composite) AddModifier(m Modifier) error {
	if m.TargetID != uuid.Nil && m.TargetID != c.SourceID {
		return fmt.Errorf("composite %s: self modifier %s targets foreign entity %s", c.Name, m.ID, m.TargetID)
	}
	if m.IsContextual() {
		return c.selfContextual.Add(m)
	}
	return c.selfStatic.Add(m)
}

// AddOutgoingModifier upserts a modifier the owner imposes on whichever
// entity it is paired against. The outgoing-channel invariant (no
// self-targeting) is enforced by the channel.
func (c *Composite) AddOutgoingModifier(m Modifier) error {
	if m.IsContextual() {
		return c.outContextual.Add(m)
	}
	return c.outStatic.Add(m)
}

// RemoveModifier deletes a modifier by id from every owned channel.
// Transient from-target channels are not touched; they are cleared as a
// whole by ResetFromTarget.
func (c *Composite) RemoveModifier(id uuid.UUID) {
	c.selfStatic.Remove(id)
	c.selfContextual.Remove(id)
	c.outStatic.Remove(id)
	c.outContextual.Remove(id)
}

// HasModifier reports whether any owned channel holds the id.
func (c *Composite) HasModifier(id uuid.UUID) bool {
	return c.selfStatic.Has(id) || c.selfContextual.Has(id) ||
		c.outStatic.Has(id) || c.outContextual.Has(id)
}

// SetFromTarget pairs this value against the other side of a
// cross-entity computation: the other composite's outgoing modifiers
// are copied in, retargeted at this owner, so both sides' bonuses are
// mutually visible for the duration of the computation. Pairing is
// fully reversible via ResetFromTarget.
func (c *Composite) SetFromTarget(other *Composite) error {
	if other == nil {
		return fmt.Errorf("composite %s: cannot pair against nil", c.Name)
	}
	if other.SourceID == c.SourceID {
		return fmt.Errorf("composite %s: cannot pair against own entity %s", c.Name, c.SourceID)
	}
	c.fromStatic = NewChannel(c.Name+".from.static", other.SourceID, false, false)
	c.fromContextual = NewChannel(c.Name+".from.contextual", other.SourceID, false, true)
	for _, m := range other.outStatic.Modifiers() {
		if m.TargetID != uuid.Nil && m.TargetID != c.SourceID {
			continue
		}
		if err := c.fromStatic.Add(m.retargeted(c.SourceID)); err != nil {
			return err
		}
	}
	for _, m := range other.outContextual.Modifiers() {
		if m.TargetID != uuid.Nil && m.TargetID != c.SourceID {
			continue
		}
		if err := c.fromContextual.Add(m.retargeted(c.SourceID)); err != nil {
			return err
		}
	}
	return nil
}

// ResetFromTarget clears the transient pairing. After reset the
// composite resolves exactly as it did before pairing.
func (c *Composite) ResetFromTarget() {
	c.fromStatic = nil
	c.fromContextual = nil
}

// IsPaired reports whether a from-target pairing is active.
func (c *Composite) IsPaired() bool {
	return c.fromStatic != nil || c.fromContextual != nil
}

// channels returns every channel contributing to this value's own
// resolution: the self channels plus any transient from-target
// channels. Outgoing channels affect the paired entity, never the
// owner.
func (c *Composite) channels() []*Channel {
	chs := []*Channel{c.selfStatic, c.selfContextual}
	if c.fromStatic != nil {
		chs = append(chs, c.fromStatic)
	}
	if c.fromContextual != nil {
		chs = append(chs, c.fromContextual)
	}
	return chs
}

// resolve runs one full accumulation pass over the contributing
// channels. Contextual modifiers are evaluated fresh on every call.
func (c *Composite) resolve(ctx *Context) *tally {
	t := newTally()
	for _, ch := range c.channels() {
		ch.accumulate(t, ctx, c.Normalizer)
	}
	return t
}

// Score resolves the numeric score: the sum of all contributing
// channels' numeric modifiers, clamped to the most permissive bounds
// contributed by constraint modifiers.
func (c *Composite) Score(ctx *Context) int {
	return c.resolve(ctx).clampedScore()
}

// AdvantageStatus resolves the advantage state from the signed tally
// across all contributing channels.
func (c *Composite) AdvantageStatus(ctx *Context) AdvantageStatus {
	return c.resolve(ctx).advantageStatus()
}

// CriticalStatus resolves the critical override.
func (c *Composite) CriticalStatus(ctx *Context) CriticalStatus {
	return c.resolve(ctx).criticalStatus()
}

// AutoHitStatus resolves the auto-hit override.
func (c *Composite) AutoHitStatus(ctx *Context) AutoHitStatus {
	return c.resolve(ctx).autoHitStatus()
}

// Size resolves the size category, defaulting to medium when no size
// modifier contributes.
func (c *Composite) Size(ctx *Context) Size {
	return c.resolve(ctx).size(c.SizePriority)
}

// ResistanceStatus resolves the resistance state for one damage type.
func (c *Composite) ResistanceStatus(dt DamageType, ctx *Context) ResistanceStatus {
	return c.resolve(ctx).resistanceStatus(dt)
}

// DamageTypes resolves the distinct damage types contributed, in stable
// order.
func (c *Composite) DamageTypes(ctx *Context) []DamageType {
	return c.resolve(ctx).damageTypeList()
}

// Snapshot captures every resolved category at once, for inspection
// surfaces.
type Snapshot struct {
	Name       string               `json:"name"`
	SourceID   uuid.UUID            `json:"source_id"`
	Score      int                  `json:"score"`
	Advantage  AdvantageStatus      `json:"advantage"`
	Critical   CriticalStatus       `json:"critical"`
	AutoHit    AutoHitStatus        `json:"auto_hit"`
	Size       Size                 `json:"size"`
	Resistance map[DamageType]ResistanceStatus `json:"resistance,omitempty"`
}

// Snapshot resolves the composite once and reports every category.
func (c *Composite) Snapshot(ctx *Context) Snapshot {
	t := c.resolve(ctx)
	snap := Snapshot{
		Name:      c.Name,
		SourceID:  c.SourceID,
		Score:     t.clampedScore(),
		Advantage: t.advantageStatus(),
		Critical:  t.criticalStatus(),
		AutoHit:   t.autoHitStatus(),
		Size:      t.size(c.SizePriority),
	}
	if len(t.resistance) > 0 {
		snap.Resistance = make(map[DamageType]ResistanceStatus, len(t.resistance))
		for dt, sum := range t.resistance {
			snap.Resistance[dt] = resistanceFromTally(sum)
		}
	}
	return snap
}
