package values

// Kind identifies the category of an atomic modifier. The set is closed:
// resolution switches exhaustively over these values.
type Kind string

const (
	// KindNumeric contributes to the summed score.
	KindNumeric Kind = "NUMERIC"
	// KindMinConstraint supplies a lower bound candidate for the score.
	KindMinConstraint Kind = "MIN_CONSTRAINT"
	// KindMaxConstraint supplies an upper bound candidate for the score.
	KindMaxConstraint Kind = "MAX_CONSTRAINT"
	// KindAdvantage contributes to the signed advantage tally.
	KindAdvantage Kind = "ADVANTAGE"
	// KindCritical contributes to the critical-hit override.
	KindCritical Kind = "CRITICAL"
	// KindAutoHit contributes to the auto-hit override.
	KindAutoHit Kind = "AUTO_HIT"
	// KindSize contributes a creature size candidate.
	KindSize Kind = "SIZE"
	// KindDamageType declares a damage type (e.g. a weapon's damage).
	KindDamageType Kind = "DAMAGE_TYPE"
	// KindResistance contributes to the per-damage-type resistance tally.
	KindResistance Kind = "RESISTANCE"
)

// AdvantageStatus is the resolved advantage state of a value.
type AdvantageStatus string

const (
	AdvantageNone AdvantageStatus = "NONE"
	Advantage     AdvantageStatus = "ADVANTAGE"
	Disadvantage  AdvantageStatus = "DISADVANTAGE"
)

// CriticalStatus is the resolved critical-hit state of a value.
// A block (NOCRIT) anywhere beats a grant (AUTOCRIT), which beats NONE.
type CriticalStatus string

const (
	CriticalNone CriticalStatus = "NONE"
	AutoCrit     CriticalStatus = "AUTOCRIT"
	NoCrit       CriticalStatus = "NOCRIT"
)

// AutoHitStatus is the resolved auto-hit state of a value.
// A block (AUTOMISS) anywhere beats a grant (AUTOHIT), which beats NONE.
type AutoHitStatus string

const (
	AutoHitNone AutoHitStatus = "NONE"
	AutoHit     AutoHitStatus = "AUTOHIT"
	AutoMiss    AutoHitStatus = "AUTOMISS"
)

// Size is a creature size category, ordered by ordinal.
type Size int

const (
	SizeTiny Size = iota
	SizeSmall
	SizeMedium
	SizeLarge
	SizeHuge
	SizeGargantuan
)

// String returns the string representation of the size.
func (s Size) String() string {
	switch s {
	case SizeTiny:
		return "TINY"
	case SizeSmall:
		return "SMALL"
	case SizeMedium:
		return "MEDIUM"
	case SizeLarge:
		return "LARGE"
	case SizeHuge:
		return "HUGE"
	case SizeGargantuan:
		return "GARGANTUAN"
	default:
		return "UNKNOWN"
	}
}

// SizePriority selects which size candidate wins when several modifiers
// contribute one.
type SizePriority int

const (
	// SizePriorityMax picks the largest contributed size.
	SizePriorityMax SizePriority = iota
	// SizePriorityMin picks the smallest contributed size.
	SizePriorityMin
)

// DamageType identifies a damage flavour for resistance bookkeeping.
type DamageType string

const (
	DamageBludgeoning DamageType = "BLUDGEONING"
	DamagePiercing    DamageType = "PIERCING"
	DamageSlashing    DamageType = "SLASHING"
	DamageFire        DamageType = "FIRE"
	DamageCold        DamageType = "COLD"
	DamageLightning   DamageType = "LIGHTNING"
	DamageThunder     DamageType = "THUNDER"
	DamageAcid        DamageType = "ACID"
	DamagePoison      DamageType = "POISON"
	DamageNecrotic    DamageType = "NECROTIC"
	DamageRadiant     DamageType = "RADIANT"
	DamagePsychic     DamageType = "PSYCHIC"
	DamageForce       DamageType = "FORCE"
)

// ResistanceStatus is the resolved resistance state for one damage type.
type ResistanceStatus string

const (
	ResistanceNone ResistanceStatus = "NONE"
	Resistance     ResistanceStatus = "RESISTANCE"
	Immunity       ResistanceStatus = "IMMUNITY"
	Vulnerability  ResistanceStatus = "VULNERABILITY"
)

// resistanceWeight maps a contributed status to its signed tally weight.
func resistanceWeight(rs ResistanceStatus) int {
	switch rs {
	case Immunity:
		return 2
	case Resistance:
		return 1
	case Vulnerability:
		return -1
	default:
		return 0
	}
}

// resistanceFromTally maps a signed tally back to a status.
// Stacked resistances promote to immunity; resistance and vulnerability
// cancel pairwise.
func resistanceFromTally(sum int) ResistanceStatus {
	switch {
	case sum > 1:
		return Immunity
	case sum == 1:
		return Resistance
	case sum == 0:
		return ResistanceNone
	default:
		return Vulnerability
	}
}
