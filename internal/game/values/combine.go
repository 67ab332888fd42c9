package values

import (
	"fmt"
)

// Combine produces a new composite whose modifier maps are the union of
// every operand's owned maps, tagged with the operand ids for audit. The
// result inherits the first operand's entity id and normalizer.
//
// Each copied modifier that lacks a normalizer has its operand's default
// normalizer baked in, so already-normalized contributions are never
// re-normalized by the inherited default.
func Combine(name string, operands ...*Composite) (*Composite, error) {
	if len(operands) == 0 {
		return nil, fmt.Errorf("combine %s: no operands", name)
	}
	for i, op := range operands {
		if op == nil {
			return nil, fmt.Errorf("combine %s: operand %d is nil", name, i)
		}
	}

	first := operands[0]
	combined := NewComposite(name, first.SourceID)
	combined.Normalizer = first.Normalizer
	combined.SizePriority = first.SizePriority

	for _, op := range operands {
		combined.GeneratedFrom = append(combined.GeneratedFrom, op.ID)
		for _, m := range op.selfStatic.Modifiers() {
			if err := combined.selfStatic.Add(bakeNormalizer(m, op.Normalizer)); err != nil {
				return nil, fmt.Errorf("combine %s: %w", name, err)
			}
		}
		for _, m := range op.selfContextual.Modifiers() {
			if err := combined.selfContextual.Add(bakeNormalizer(m, op.Normalizer)); err != nil {
				return nil, fmt.Errorf("combine %s: %w", name, err)
			}
		}
		for _, m := range op.outStatic.Modifiers() {
			if err := combined.outStatic.Add(bakeNormalizer(m, op.Normalizer)); err != nil {
				return nil, fmt.Errorf("combine %s: %w", name, err)
			}
		}
		for _, m := range op.outContextual.Modifiers() {
			if err := combined.outContextual.Add(bakeNormalizer(m, op.Normalizer)); err != nil {
				return nil, fmt.Errorf("combine %s: %w", name, err)
			}
		}
	}
	return combined, nil
}

// bakeNormalizer pins the operand's normalization semantics onto a
// copied numeric modifier: the operand's default where the modifier has
// none, or identity where the operand had no default. The inherited
// default on the combined value then only governs modifiers added
// later; already-normalized (or deliberately raw) inputs are never
// re-normalized.
func bakeNormalizer(m Modifier, def func(int) int) Modifier {
	if m.Kind != KindNumeric || m.Normalizer != nil {
		return m
	}
	if def != nil {
		m.Normalizer = def
	} else {
		m.Normalizer = func(n int) int { return n }
	}
	return m
}

// CombineChannels produces a new channel holding the union of the
// operands' modifiers. The result inherits the first operand's entity
// id and direction; operands of mismatched direction are a caller bug.
func CombineChannels(name string, operands ...*Channel) (*Channel, error) {
	if len(operands) == 0 {
		return nil, fmt.Errorf("combine channel %s: no operands", name)
	}
	first := operands[0]
	combined := NewChannel(name, first.SourceID, first.Outgoing, first.Contextual)
	for i, op := range operands {
		if op == nil {
			return nil, fmt.Errorf("combine channel %s: operand %d is nil", name, i)
		}
		if op.Outgoing != first.Outgoing || op.Contextual != first.Contextual {
			return nil, fmt.Errorf("combine channel %s: operand %d direction mismatch", name, i)
		}
		for _, m := range op.Modifiers() {
			if err := combined.Add(m); err != nil {
				return nil, fmt.Errorf("combine channel %s: %w", name, err)
			}
		}
	}
	return combined, nil
}

// AbilityNormalizer converts a raw ability score into its modifier
// ((score - 10) / 2, rounded down). The conventional table for the
// ruleset this engine serves.
func AbilityNormalizer(score int) int {
	if score >= 10 {
		return (score - 10) / 2
	}
	// Go integer division truncates toward zero; ability modifiers
	// round down.
	return -((11 - score) / 2)
}
