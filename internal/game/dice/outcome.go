package dice

import (
	"github.com/tavernkeep/rules-server-go/internal/game/values"
)

// Outcome classifies one attack roll.
type Outcome string

const (
	OutcomeHit      Outcome = "HIT"
	OutcomeMiss     Outcome = "MISS"
	OutcomeCrit     Outcome = "CRIT"
	OutcomeCritMiss Outcome = "CRIT_MISS"
)

// Hits reports whether the outcome lands the attack.
func (o Outcome) Hits() bool {
	return o == OutcomeHit || o == OutcomeCrit
}

// DetermineAttackOutcome classifies an attack roll against a target
// armor class. Pure; precedence is strict:
//
//  1. an auto-miss status overrides everything;
//  2. an auto-hit status lands, upgraded to a critical by an auto-crit
//     status or a natural 20;
//  3. a natural 1 is a critical miss;
//  4. a total meeting the armor class lands, upgraded to a critical by
//     an auto-crit status or a natural 20;
//  5. anything else misses.
func DetermineAttackOutcome(natural, total, armorClass int, crit values.CriticalStatus, auto values.AutoHitStatus) Outcome {
	if auto == values.AutoMiss {
		return OutcomeMiss
	}
	if auto == values.AutoHit {
		if crit == values.AutoCrit || natural == 20 {
			return OutcomeCrit
		}
		return OutcomeHit
	}
	if natural == 1 {
		return OutcomeCritMiss
	}
	if total >= armorClass {
		if crit == values.AutoCrit || natural == 20 {
			return OutcomeCrit
		}
		return OutcomeHit
	}
	return OutcomeMiss
}

// ApplyResistance scales a damage total by the resolved resistance
// status: immunity negates, resistance halves rounding down,
// vulnerability doubles.
func ApplyResistance(damage int, status values.ResistanceStatus) int {
	switch status {
	case values.Immunity:
		return 0
	case values.Resistance:
		return damage / 2
	case values.Vulnerability:
		return damage * 2
	default:
		return damage
	}
}
