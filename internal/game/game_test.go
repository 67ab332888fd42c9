package game

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavernkeep/rules-server-go/internal/game/actions"
	"github.com/tavernkeep/rules-server-go/internal/game/dice"
	"github.com/tavernkeep/rules-server-go/internal/game/events"
	"github.com/tavernkeep/rules-server-go/internal/game/values"
)

const testSeed = 42

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	world := NewWorld(nil, 0, testSeed)
	return NewEngine(world, nil, nil)
}

func addFighter(t *testing.T, e *Engine, name string, pos Position) *Creature {
	t.Helper()
	c := NewCreature(name, 20, 6)
	c.Position = pos
	e.World().AddCreature(c)
	return c
}

// grantAutoHit pins the attacker's strikes to land regardless of the
// die, making attack outcomes deterministic for tests.
func grantAutoHit(t *testing.T, c *Creature) {
	t.Helper()
	m := values.MustModifier(values.KindAutoHit, c.ID, uuid.Nil, values.AutoHitValue(values.AutoHit))
	require.NoError(t, c.AttackBonus().AddModifier(m))
}

func addNumeric(t *testing.T, comp *values.Composite, owner uuid.UUID, n int) {
	t.Helper()
	m := values.MustModifier(values.KindNumeric, owner, uuid.Nil, values.NumericValue(n))
	require.NoError(t, comp.AddModifier(m))
}

func TestAttackHitDealsDamageAndSpendsOneAction(t *testing.T) {
	e := newTestEngine(t)
	attacker := addFighter(t, e, "attacker", Position{0, 0})
	target := addFighter(t, e, "target", Position{1, 0})
	addNumeric(t, attacker.AttackBonus(), attacker.ID, 5)
	grantAutoHit(t, attacker)

	weapon := Weapon{Name: "club", Reach: 1, DiceCount: 1, DiceSides: 4, DamageBonus: 2, DamageType: values.DamageBludgeoning}
	actionsBefore := attacker.Pool.Get(actions.CostAction)
	hpBefore := target.HP

	final, err := e.Attack(attacker.ID, target.ID, weapon)
	require.NoError(t, err)

	require.Equal(t, events.PhaseCompletion, final.Phase)
	assert.False(t, final.Canceled)

	outcome := dice.Outcome(final.Metadata["outcome"])
	assert.True(t, outcome.Hits())

	natural, err := strconv.Atoi(final.Metadata["natural"])
	require.NoError(t, err)
	assert.Equal(t, natural+5, final.Amount, "total is the kept die plus the attack bonus")
	assert.Len(t, final.Rolls, 1, "no advantage, single die")

	dealt, err := strconv.Atoi(final.Metadata["damage"])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, dealt, 3, "1d4+2 deals at least 3")
	assert.Equal(t, hpBefore-dealt, target.HP)

	assert.Equal(t, actionsBefore-1, attacker.Pool.Get(actions.CostAction), "exactly one action spent")

	damageEvents := e.World().Queue.EventsByType(events.EventDamage)
	require.NotEmpty(t, damageEvents)
	first := damageEvents[0]
	parent, ok := e.World().Queue.GetEventByID(first.ParentID)
	require.True(t, ok, "damage is a child of an attack revision")
	assert.Equal(t, events.EventAttack, parent.Type)
}

func TestAttackAutoMissDealsNoDamage(t *testing.T) {
	e := newTestEngine(t)
	attacker := addFighter(t, e, "attacker", Position{0, 0})
	target := addFighter(t, e, "target", Position{1, 0})

	// The target's armor imposes an auto-miss on whoever swings at it.
	block := values.MustModifier(values.KindAutoHit, target.ID, uuid.Nil, values.AutoHitValue(values.AutoMiss))
	require.NoError(t, target.ArmorClass().AddOutgoingModifier(block))

	hpBefore := target.HP
	final, err := e.Attack(attacker.ID, target.ID, Unarmed)
	require.NoError(t, err)

	assert.Equal(t, events.PhaseCompletion, final.Phase, "a miss still completes the action")
	assert.Equal(t, string(dice.OutcomeMiss), final.Metadata["outcome"])
	assert.Equal(t, hpBefore, target.HP)
	assert.Empty(t, e.World().Queue.EventsByType(events.EventDamage))
	assert.Equal(t, 0, attacker.Pool.Get(actions.CostAction), "a resolved miss still costs the action")
}

func TestAttackPairingLeavesNoResidue(t *testing.T) {
	e := newTestEngine(t)
	attacker := addFighter(t, e, "attacker", Position{0, 0})
	target := addFighter(t, e, "target", Position{1, 0})
	grantAutoHit(t, attacker)

	// The target's armor imposes disadvantage on attackers; the pairing
	// must be visible during the roll and fully gone afterwards.
	imposed := values.MustModifier(values.KindAdvantage, target.ID, uuid.Nil, values.AdvantageValue(values.Disadvantage))
	require.NoError(t, target.ArmorClass().AddOutgoingModifier(imposed))

	before := attacker.AttackBonus().Snapshot(nil)

	final, err := e.Attack(attacker.ID, target.ID, Unarmed)
	require.NoError(t, err)
	assert.Len(t, final.Rolls, 2, "imposed disadvantage rolls two dice")

	assert.False(t, attacker.AttackBonus().IsPaired())
	assert.Equal(t, before, attacker.AttackBonus().Snapshot(nil))
}

func TestAttackOutOfReachCancelsWithoutCost(t *testing.T) {
	e := newTestEngine(t)
	attacker := addFighter(t, e, "attacker", Position{0, 0})
	target := addFighter(t, e, "target", Position{5, 5})

	final, err := e.Attack(attacker.ID, target.ID, Unarmed)
	require.NoError(t, err)

	assert.True(t, final.Canceled)
	assert.Equal(t, events.PhaseCancel, final.Phase)
	assert.Contains(t, final.StatusMessage, "target_in_reach")
	assert.Equal(t, 1, attacker.Pool.Get(actions.CostAction), "a canceled action costs nothing")
	assert.Equal(t, 20, target.HP)
}

func TestAttackWithoutActionCancels(t *testing.T) {
	e := newTestEngine(t)
	attacker := addFighter(t, e, "attacker", Position{0, 0})
	target := addFighter(t, e, "target", Position{1, 0})
	attacker.Pool.Set(actions.CostAction, 0)

	final, err := e.Attack(attacker.ID, target.ID, Unarmed)
	require.NoError(t, err)

	assert.True(t, final.Canceled)
	assert.Contains(t, final.StatusMessage, "insufficient")
	assert.Equal(t, 20, target.HP)
}

func TestPreValidateAttackLeavesNoTrace(t *testing.T) {
	e := newTestEngine(t)
	attacker := addFighter(t, e, "attacker", Position{0, 0})
	target := addFighter(t, e, "target", Position{1, 0})

	calls := 0
	e.World().Queue.AddListener(events.EventAttack, "", uuid.Nil, func(evt events.Event, _ uuid.UUID) *events.Event {
		calls++
		return &evt
	})

	probe, err := e.PreValidateAttack(attacker.ID, target.ID, Unarmed)
	require.NoError(t, err)

	assert.False(t, probe.Canceled)
	assert.Equal(t, 0, e.World().Queue.Size(), "a dry run is never indexed")
	assert.Equal(t, 0, calls, "a dry run never reaches listeners")
	assert.Equal(t, 1, attacker.Pool.Get(actions.CostAction))
	assert.Equal(t, 20, target.HP)

	// The same probe against an unreachable target reports the failure.
	far := addFighter(t, e, "far", Position{9, 9})
	probe, err = e.PreValidateAttack(attacker.ID, far.ID, Unarmed)
	require.NoError(t, err)
	assert.True(t, probe.Canceled)
	assert.Contains(t, probe.StatusMessage, "target_in_reach")
}

func TestConditionApplyAndRemoveIsExactInverse(t *testing.T) {
	e := newTestEngine(t)
	c := addFighter(t, e, "victim", Position{0, 0})
	addNumeric(t, c.AttackBonus(), c.ID, 4)

	before := c.AttackBonus().Snapshot(nil)
	require.Equal(t, values.AdvantageNone, before.Advantage)

	applied, err := e.ApplyCondition(c.ID, ConditionPoisoned)
	require.NoError(t, err)
	assert.Equal(t, events.PhaseCompletion, applied.Phase)
	assert.True(t, c.HasCondition("poisoned"))
	assert.Equal(t, values.Disadvantage, c.AttackBonus().AdvantageStatus(nil))

	removed, err := e.RemoveCondition(c.ID, "poisoned")
	require.NoError(t, err)
	assert.Equal(t, events.PhaseCompletion, removed.Phase)
	assert.False(t, c.HasCondition("poisoned"))
	assert.Equal(t, before, c.AttackBonus().Snapshot(nil))
}

func TestConditionDoubleApplyCancels(t *testing.T) {
	e := newTestEngine(t)
	c := addFighter(t, e, "victim", Position{0, 0})

	_, err := e.ApplyCondition(c.ID, ConditionBlessed)
	require.NoError(t, err)

	again, err := e.ApplyCondition(c.ID, ConditionBlessed)
	require.NoError(t, err)
	assert.True(t, again.Canceled)
	assert.Contains(t, again.StatusMessage, "not_already_active")
}

func TestProneImposesAdvantageOnIncomingAttacks(t *testing.T) {
	e := newTestEngine(t)
	attacker := addFighter(t, e, "attacker", Position{0, 0})
	prone := addFighter(t, e, "prone", Position{1, 0})

	_, err := e.ApplyCondition(prone.ID, ConditionProne)
	require.NoError(t, err)

	// The prone creature itself swings at disadvantage.
	assert.Equal(t, values.Disadvantage, prone.AttackBonus().AdvantageStatus(nil))

	// An attacker paired against the prone creature gains advantage.
	atk := attacker.AttackBonus()
	require.NoError(t, atk.SetFromTarget(prone.ArmorClass()))
	assert.Equal(t, values.Advantage, atk.AdvantageStatus(nil))
	atk.ResetFromTarget()
	assert.Equal(t, values.AdvantageNone, atk.AdvantageStatus(nil))
}

func TestMoveDeductsPathCostAndRelocates(t *testing.T) {
	e := newTestEngine(t)
	mover := addFighter(t, e, "mover", Position{0, 0})

	final, err := e.Move(mover.ID, Position{3, 0})
	require.NoError(t, err)

	require.Equal(t, events.PhaseCompletion, final.Phase)
	assert.Equal(t, Position{3, 0}, mover.Position)
	assert.Equal(t, 3, final.Amount)
	assert.Equal(t, 6-3, mover.Pool.Get(actions.CostMovement))
	assert.Equal(t, "0", final.Metadata["from_x"])
	assert.Equal(t, "3", final.Metadata["to_x"])
}

func TestMoveBeyondSpeedCancels(t *testing.T) {
	e := newTestEngine(t)
	mover := addFighter(t, e, "mover", Position{0, 0})

	final, err := e.Move(mover.ID, Position{9, 0})
	require.NoError(t, err)

	assert.True(t, final.Canceled)
	assert.Contains(t, final.StatusMessage, "movement_affordable")
	assert.Equal(t, Position{0, 0}, mover.Position)
	assert.Equal(t, 6, mover.Pool.Get(actions.CostMovement))
}

type stubSpatial struct {
	costs map[Position]int
	fov   map[Position]bool
}

func (s *stubSpatial) GetPaths(start Position) (map[Position]int, map[Position][]Position) {
	return s.costs, nil
}

func (s *stubSpatial) GetFOV(start Position) map[Position]bool {
	return s.fov
}

func TestMoveUnreachableDestinationCancels(t *testing.T) {
	world := NewWorld(nil, 0, testSeed)
	spatial := &stubSpatial{costs: map[Position]int{{1, 0}: 1}, fov: map[Position]bool{}}
	e := NewEngine(world, spatial, nil)
	mover := addFighter(t, e, "mover", Position{0, 0})

	final, err := e.Move(mover.ID, Position{4, 4})
	require.NoError(t, err)
	assert.True(t, final.Canceled)
	assert.Contains(t, final.StatusMessage, "destination_reachable")
}

func TestAttackRequiresLineOfSight(t *testing.T) {
	world := NewWorld(nil, 0, testSeed)
	spatial := &stubSpatial{fov: map[Position]bool{}}
	e := NewEngine(world, spatial, nil)
	attacker := addFighter(t, e, "attacker", Position{0, 0})
	target := addFighter(t, e, "target", Position{1, 0})

	final, err := e.Attack(attacker.ID, target.ID, Unarmed)
	require.NoError(t, err)
	assert.True(t, final.Canceled)
	assert.Contains(t, final.StatusMessage, "target_visible")
}

func TestOpportunityAttackInterruptsMovement(t *testing.T) {
	e := newTestEngine(t)
	mover := addFighter(t, e, "mover", Position{1, 0})
	sentinel := addFighter(t, e, "sentinel", Position{0, 0})
	grantAutoHit(t, sentinel)

	_, err := e.RegisterOpportunityAttack(sentinel.ID, Unarmed)
	require.NoError(t, err)

	hpBefore := mover.HP
	final, err := e.Move(mover.ID, Position{4, 0})
	require.NoError(t, err)

	require.Equal(t, events.PhaseCompletion, final.Phase, "the move completes after the reaction")
	assert.Equal(t, Position{4, 0}, mover.Position)

	assert.Less(t, mover.HP, hpBefore, "the sentinel's strike landed")
	assert.Equal(t, 0, sentinel.Pool.Get(actions.CostReaction), "the reaction is spent")
	assert.Equal(t, 1, sentinel.Pool.Get(actions.CostAction), "the regular action is untouched")

	attackEvents := e.World().Queue.EventsByType(events.EventAttack)
	require.NotEmpty(t, attackEvents)
	reaction := attackEvents[0]
	require.NotEqual(t, uuid.Nil, reaction.ParentID, "the reaction links to the provoking movement")
	parent, ok := e.World().Queue.GetEventByID(reaction.ParentID)
	require.True(t, ok)
	assert.Equal(t, events.EventMovement, parent.Type)
	assert.Equal(t, mover.ID, parent.SourceID)
}

func TestOpportunityAttackIgnoresMovementWithinReach(t *testing.T) {
	e := newTestEngine(t)
	mover := addFighter(t, e, "mover", Position{1, 0})
	sentinel := addFighter(t, e, "sentinel", Position{0, 0})
	grantAutoHit(t, sentinel)

	_, err := e.RegisterOpportunityAttack(sentinel.ID, Unarmed)
	require.NoError(t, err)

	// Shifting to an adjacent square stays inside the sentinel's reach.
	final, err := e.Move(mover.ID, Position{1, 1})
	require.NoError(t, err)

	assert.Equal(t, events.PhaseCompletion, final.Phase)
	assert.Equal(t, 20, mover.HP)
	assert.Equal(t, 1, sentinel.Pool.Get(actions.CostReaction))
}

func TestOpportunityAttackRequiresReaction(t *testing.T) {
	e := newTestEngine(t)
	mover := addFighter(t, e, "mover", Position{1, 0})
	sentinel := addFighter(t, e, "sentinel", Position{0, 0})
	grantAutoHit(t, sentinel)
	sentinel.Pool.Set(actions.CostReaction, 0)

	_, err := e.RegisterOpportunityAttack(sentinel.ID, Unarmed)
	require.NoError(t, err)

	final, err := e.Move(mover.ID, Position{4, 0})
	require.NoError(t, err)

	assert.Equal(t, events.PhaseCompletion, final.Phase)
	assert.Equal(t, 20, mover.HP, "no reaction left, no strike")
}

func TestStartTurnRefreshesPool(t *testing.T) {
	e := newTestEngine(t)
	c := addFighter(t, e, "fighter", Position{0, 0})
	c.Pool.Set(actions.CostAction, 0)
	c.Pool.Set(actions.CostMovement, 0)

	require.NoError(t, e.StartTurn(c.ID))
	assert.Equal(t, 1, c.Pool.Get(actions.CostAction))
	assert.Equal(t, 1, c.Pool.Get(actions.CostBonusAction))
	assert.Equal(t, 1, c.Pool.Get(actions.CostReaction))
	assert.Equal(t, 6, c.Pool.Get(actions.CostMovement))
}

func TestResistanceHalvesWeaponDamage(t *testing.T) {
	e := newTestEngine(t)
	attacker := addFighter(t, e, "attacker", Position{0, 0})
	target := addFighter(t, e, "target", Position{1, 0})
	grantAutoHit(t, attacker)

	res := values.MustModifier(values.KindResistance, target.ID, uuid.Nil,
		values.ResistanceValue(values.DamageBludgeoning, values.Resistance))
	require.NoError(t, target.Defenses().AddModifier(res))

	// A fixed-size die keeps the pre-resistance total predictable:
	// 1d1+9 rolls 10 on a plain hit, 11 on a critical.
	weapon := Weapon{Name: "maul", Reach: 1, DiceCount: 1, DiceSides: 1, DamageBonus: 9, DamageType: values.DamageBludgeoning}
	final, err := e.Attack(attacker.ID, target.ID, weapon)
	require.NoError(t, err)

	dealt, err := strconv.Atoi(final.Metadata["damage"])
	require.NoError(t, err)
	assert.Equal(t, 20-dealt, target.HP)
	assert.LessOrEqual(t, dealt, 5, "resistance halves the roll, rounding down")
}

func TestWorldRemoveCreatureDropsListeners(t *testing.T) {
	e := newTestEngine(t)
	mover := addFighter(t, e, "mover", Position{1, 0})
	sentinel := addFighter(t, e, "sentinel", Position{0, 0})
	grantAutoHit(t, sentinel)

	_, err := e.RegisterOpportunityAttack(sentinel.ID, Unarmed)
	require.NoError(t, err)
	e.World().RemoveCreature(sentinel.ID)

	final, err := e.Move(mover.ID, Position{4, 0})
	require.NoError(t, err)
	assert.Equal(t, events.PhaseCompletion, final.Phase)
	assert.Equal(t, 20, mover.HP, "a removed creature reacts to nothing")
}
