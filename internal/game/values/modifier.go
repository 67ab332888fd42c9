package values

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Context carries opaque evaluation data into contextual modifiers.
// Gameplay code fills it per computation; the value engine never
// interprets the contents.
type Context struct {
	Data map[string]string
}

// NewContext creates an empty evaluation context.
func NewContext() *Context {
	return &Context{Data: make(map[string]string)}
}

// Set stores a string value under the given key and returns the context
// for chaining.
func (c *Context) Set(key, value string) *Context {
	if c.Data == nil {
		c.Data = make(map[string]string)
	}
	c.Data[key] = value
	return c
}

// SetInt stores an integer value under the given key.
func (c *Context) SetInt(key string, value int) *Context {
	return c.Set(key, strconv.Itoa(value))
}

// Get retrieves a string value.
func (c *Context) Get(key string) (string, bool) {
	if c == nil || c.Data == nil {
		return "", false
	}
	v, ok := c.Data[key]
	return v, ok
}

// GetInt retrieves an integer value.
func (c *Context) GetInt(key string) (int, bool) {
	raw, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Value is the payload of an atomic modifier, tagged by Kind. Only the
// field matching the kind is meaningful.
type Value struct {
	Kind       Kind
	Score      int
	Advantage  AdvantageStatus
	Critical   CriticalStatus
	AutoHit    AutoHitStatus
	Size       Size
	Damage     DamageType
	Resistance ResistanceStatus
}

// NumericValue builds a numeric payload.
func NumericValue(score int) Value {
	return Value{Kind: KindNumeric, Score: score}
}

// MinConstraintValue builds a lower-bound payload.
func MinConstraintValue(bound int) Value {
	return Value{Kind: KindMinConstraint, Score: bound}
}

// MaxConstraintValue builds an upper-bound payload.
func MaxConstraintValue(bound int) Value {
	return Value{Kind: KindMaxConstraint, Score: bound}
}

// AdvantageValue builds an advantage payload.
func AdvantageValue(status AdvantageStatus) Value {
	return Value{Kind: KindAdvantage, Advantage: status}
}

// CriticalValue builds a critical payload.
func CriticalValue(status CriticalStatus) Value {
	return Value{Kind: KindCritical, Critical: status}
}

// AutoHitValue builds an auto-hit payload.
func AutoHitValue(status AutoHitStatus) Value {
	return Value{Kind: KindAutoHit, AutoHit: status}
}

// SizeValue builds a size payload.
func SizeValue(size Size) Value {
	return Value{Kind: KindSize, Size: size}
}

// DamageTypeValue builds a damage-type payload.
func DamageTypeValue(dt DamageType) Value {
	return Value{Kind: KindDamageType, Damage: dt}
}

// ResistanceValue builds a resistance payload for one damage type.
func ResistanceValue(dt DamageType, status ResistanceStatus) Value {
	return Value{Kind: KindResistance, Damage: dt, Resistance: status}
}

// Effect computes an atomic value at read time. Contextual modifiers are
// evaluated fresh on every resolution and must be pure with respect to
// their inputs; the returned value's kind must match the modifier's kind.
type Effect func(source, target uuid.UUID, ctx *Context) Value

// Modifier is one atomic, typed contribution to a value. A modifier is
// either static (Static payload) or contextual (Eval set); contextual
// payloads are never cached.
type Modifier struct {
	ID       uuid.UUID
	SourceID uuid.UUID
	TargetID uuid.UUID
	Kind     Kind

	Static Value
	Eval   Effect

	// Normalizer converts the raw numeric payload before summation,
	// e.g. an ability score into its modifier. Numeric kind only.
	Normalizer func(int) int
}

// NewModifier creates a static modifier. The payload kind must match the
// modifier kind.
func NewModifier(kind Kind, source, target uuid.UUID, payload Value) (Modifier, error) {
	if payload.Kind != kind {
		return Modifier{}, fmt.Errorf("modifier kind %s does not match payload kind %s", kind, payload.Kind)
	}
	return Modifier{
		ID:       uuid.New(),
		SourceID: source,
		TargetID: target,
		Kind:     kind,
		Static:   payload,
	}, nil
}

// NewContextualModifier creates a contextual modifier whose payload is
// computed by eval on every read.
func NewContextualModifier(kind Kind, source, target uuid.UUID, eval Effect) (Modifier, error) {
	if eval == nil {
		return Modifier{}, fmt.Errorf("contextual modifier requires an effect")
	}
	return Modifier{
		ID:       uuid.New(),
		SourceID: source,
		TargetID: target,
		Kind:     kind,
		Eval:     eval,
	}, nil
}

// MustModifier is a test/content helper that panics on construction
// errors.
func MustModifier(kind Kind, source, target uuid.UUID, payload Value) Modifier {
	m, err := NewModifier(kind, source, target, payload)
	if err != nil {
		panic(err)
	}
	return m
}

// IsContextual reports whether the modifier computes its payload at read
// time.
func (m Modifier) IsContextual() bool {
	return m.Eval != nil
}

// WithNormalizer returns a copy of the modifier carrying the given
// normalizer.
func (m Modifier) WithNormalizer(fn func(int) int) Modifier {
	m.Normalizer = fn
	return m
}

// retargeted returns a copy aimed at a new target. Used when an outgoing
// channel is paired onto the other side of a computation; the id is kept
// so the copy stays traceable to its origin.
func (m Modifier) retargeted(target uuid.UUID) Modifier {
	m.TargetID = target
	return m
}

// resolve produces the modifier's payload, evaluating contextual
// modifiers fresh. A contextual payload of the wrong kind is a content
// bug; it resolves to a zero payload of the declared kind so a single
// bad effect cannot corrupt unrelated categories.
func (m Modifier) resolve(ctx *Context) Value {
	if m.Eval == nil {
		return m.Static
	}
	v := m.Eval(m.SourceID, m.TargetID, ctx)
	if v.Kind != m.Kind {
		return Value{Kind: m.Kind}
	}
	return v
}
