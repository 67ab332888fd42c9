package game

import (
	"github.com/google/uuid"

	"github.com/tavernkeep/rules-server-go/internal/game/values"
)

// StatModifier is a condition's template for one modifier: which stat
// it lands on, whether it is imposed on attackers (outgoing) or on the
// bearer itself, and the payload.
type StatModifier struct {
	Stat     string
	Outgoing bool
	Kind     values.Kind
	Payload  values.Value
}

// build instantiates the template for a concrete bearer.
func (sm StatModifier) build(owner uuid.UUID) (values.Modifier, error) {
	return values.NewModifier(sm.Kind, owner, uuid.Nil, sm.Payload)
}

// Condition is a named bundle of stat modifiers applied and removed as
// one unit through the action pipeline.
type Condition struct {
	Name      string
	Modifiers []StatModifier
}

// The built-in condition catalog. Content layers register their own;
// these cover the common combat states.
var (
	// Prone creatures attack at disadvantage and are easier to hit in
	// melee: their armor class imposes advantage on incoming attacks.
	ConditionProne = Condition{
		Name: "prone",
		Modifiers: []StatModifier{
			{Stat: StatAttackBonus, Kind: values.KindAdvantage, Payload: values.AdvantageValue(values.Disadvantage)},
			{Stat: StatArmorClass, Outgoing: true, Kind: values.KindAdvantage, Payload: values.AdvantageValue(values.Advantage)},
		},
	}

	// Restrained creatures attack at disadvantage and grant advantage
	// to attackers.
	ConditionRestrained = Condition{
		Name: "restrained",
		Modifiers: []StatModifier{
			{Stat: StatAttackBonus, Kind: values.KindAdvantage, Payload: values.AdvantageValue(values.Disadvantage)},
			{Stat: StatArmorClass, Outgoing: true, Kind: values.KindAdvantage, Payload: values.AdvantageValue(values.Advantage)},
		},
	}

	// Poisoned creatures attack at disadvantage.
	ConditionPoisoned = Condition{
		Name: "poisoned",
		Modifiers: []StatModifier{
			{Stat: StatAttackBonus, Kind: values.KindAdvantage, Payload: values.AdvantageValue(values.Disadvantage)},
		},
	}

	// Blessed creatures gain a flat attack bonus.
	ConditionBlessed = Condition{
		Name: "blessed",
		Modifiers: []StatModifier{
			{Stat: StatAttackBonus, Kind: values.KindNumeric, Payload: values.NumericValue(2)},
		},
	}

	// Shielded creatures gain armor class.
	ConditionShielded = Condition{
		Name: "shielded",
		Modifiers: []StatModifier{
			{Stat: StatArmorClass, Kind: values.KindNumeric, Payload: values.NumericValue(2)},
		},
	}
)
