package game

import (
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tavernkeep/rules-server-go/internal/game/actions"
	"github.com/tavernkeep/rules-server-go/internal/game/dice"
	"github.com/tavernkeep/rules-server-go/internal/game/events"
	"github.com/tavernkeep/rules-server-go/internal/game/values"
)

// Weapon describes the strike an attack action resolves with.
type Weapon struct {
	Name        string
	Reach       int
	DiceCount   int
	DiceSides   int
	DamageBonus int
	DamageType  values.DamageType
}

// Unarmed is the fallback weapon.
var Unarmed = Weapon{
	Name:       "unarmed",
	Reach:      1,
	DiceCount:  1,
	DiceSides:  4,
	DamageType: values.DamageBludgeoning,
}

// Metadata keys attack events carry.
const (
	metaOutcome = "outcome"
	metaNatural = "natural"
	metaWeapon  = "weapon"
	metaDamage  = "damage"
)

// attackAction assembles the structured action for one strike. costType
// distinguishes a regular attack (ACTION) from a reaction strike
// (REACTION); parentID links reaction declarations to the event that
// provoked them.
func (e *Engine) attackAction(attacker, target *Creature, weapon Weapon, costType actions.CostType, parentID uuid.UUID) *actions.Action {
	a := actions.NewAction(events.EventAttack, attacker.ID, target.ID, e.world.Queue, attacker.Pool, e.logger)
	a.ParentID = parentID
	a.AddCost(actions.Cost{Type: costType, Amount: 1})

	a.SetPrerequisite("attacker_alive", func(evt events.Event, source uuid.UUID) *events.Event {
		if !attacker.Alive() {
			return nil
		}
		return &evt
	})
	a.SetPrerequisite("target_alive", func(evt events.Event, source uuid.UUID) *events.Event {
		if !target.Alive() {
			return nil
		}
		return &evt
	})
	a.SetPrerequisite("target_visible", func(evt events.Event, source uuid.UUID) *events.Event {
		if e.spatial != nil {
			if fov := e.spatial.GetFOV(attacker.Position); !fov[target.Position] {
				return nil
			}
		}
		return &evt
	})
	a.SetPrerequisite("target_in_reach", func(evt events.Event, source uuid.UUID) *events.Event {
		if chebyshev(attacker.Position, target.Position) > weapon.Reach {
			return nil
		}
		return &evt
	})

	a.SetConsequence("attack_roll", func(evt events.Event, source uuid.UUID) *events.Event {
		next, err := e.rollAttack(evt, attacker, target, weapon)
		if err != nil {
			canceled := evt.Cancel(e.world.Queue, err.Error())
			return &canceled
		}
		return next
	})
	a.SetConsequence("damage", func(evt events.Event, source uuid.UUID) *events.Event {
		return e.applyDamage(evt, attacker, target, weapon)
	})

	return a
}

// rollAttack pairs the attacker's attack bonus against the target's
// armor class, reads the advantage/critical/auto-hit statuses at roll
// time, rolls, classifies the outcome, and records everything on a new
// revision of the attack event. The pairing is always reset before
// returning.
func (e *Engine) rollAttack(evt events.Event, attacker, target *Creature, weapon Weapon) (*events.Event, error) {
	atk := attacker.AttackBonus()
	ac := target.ArmorClass()

	if err := atk.SetFromTarget(ac); err != nil {
		return nil, err
	}
	defer atk.ResetFromTarget()
	if err := ac.SetFromTarget(atk); err != nil {
		return nil, err
	}
	defer ac.ResetFromTarget()

	ctx := values.NewContext().Set(metaWeapon, weapon.Name)
	advantage := atk.AdvantageStatus(ctx)
	critical := atk.CriticalStatus(ctx)
	autoHit := atk.AutoHitStatus(ctx)
	bonus := atk.Score(ctx)
	armorClass := ac.Score(ctx)

	roll := e.world.Roller.D20(advantage)
	total := roll.Natural() + bonus
	outcome := dice.DetermineAttackOutcome(roll.Natural(), total, armorClass, critical, autoHit)

	e.logger.Debug("attack roll",
		zap.String("attacker", attacker.Name),
		zap.String("target", target.Name),
		zap.Int("natural", roll.Natural()),
		zap.Int("total", total),
		zap.Int("armor_class", armorClass),
		zap.String("advantage", string(advantage)),
		zap.String("outcome", string(outcome)),
	)

	next := evt.Post(e.world.Queue,
		events.WithRolls(roll.Rolls),
		events.WithAmount(total),
		events.WithMetadata(metaOutcome, string(outcome)),
		events.WithMetadata(metaNatural, strconv.Itoa(roll.Natural())),
		events.WithMetadata(metaWeapon, weapon.Name),
	)
	return &next, nil
}

// applyDamage rolls and applies damage when the recorded outcome landed
// the attack. The damage itself is a child event of the attack, run to
// completion so damage listeners can intercept it.
func (e *Engine) applyDamage(evt events.Event, attacker, target *Creature, weapon Weapon) *events.Event {
	outcome := dice.Outcome(evt.Metadata[metaOutcome])
	if !outcome.Hits() {
		return &evt
	}

	roll := e.world.Roller.Damage(weapon.DiceCount, weapon.DiceSides, weapon.DamageBonus, outcome == dice.OutcomeCrit)
	status := target.Defenses().ResistanceStatus(weapon.DamageType, nil)
	final := dice.ApplyResistance(roll.Total, status)

	damage := events.New(events.EventDamage, attacker.ID, target.ID)
	damage.ParentID = evt.ID
	damage.Amount = final
	damage.Rolls = append([]int(nil), roll.Rolls...)
	damage.Metadata["damage_type"] = string(weapon.DamageType)
	damage.Metadata["resistance"] = string(status)
	damage = e.world.Queue.Register(damage)
	if damage.Canceled {
		next := evt.Post(e.world.Queue, events.WithMetadata(metaDamage, "0"))
		return &next
	}
	// Listeners may have adjusted the damage amount in flight.
	final = damage.Amount
	damage = damage.PhaseTo(e.world.Queue, events.PhaseExecution)
	damage = damage.PhaseTo(e.world.Queue, events.PhaseEffect)

	target.TakeDamage(final)
	e.logger.Debug("damage applied",
		zap.String("target", target.Name),
		zap.Int("amount", final),
		zap.String("resistance", string(status)),
		zap.Int("hp", target.HP),
	)

	damage.PhaseTo(e.world.Queue, events.PhaseCompletion)

	next := evt.Post(e.world.Queue, events.WithMetadata(metaDamage, strconv.Itoa(final)))
	return &next
}
