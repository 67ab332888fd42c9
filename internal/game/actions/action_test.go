package actions

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavernkeep/rules-server-go/internal/game/events"
)

func passThrough(evt events.Event, source uuid.UUID) *events.Event {
	return &evt
}

func TestActionHappyPath(t *testing.T) {
	q := events.NewQueue(nil, 0)
	pool := NewPool()
	pool.Set(CostAction, 1)

	a := NewAction(events.EventAttack, uuid.New(), uuid.New(), q, pool, nil)
	a.AddCost(Cost{Type: CostAction, Amount: 1})
	a.SetPrerequisite("always", passThrough)
	a.SetConsequence("swing", passThrough)

	result := a.Apply()

	require.False(t, result.Canceled)
	assert.Equal(t, events.PhaseCompletion, result.Phase)
	assert.Equal(t, 0, pool.Get(CostAction), "cost applied exactly once")

	// Declaration through completion, one revision per phase.
	history := q.GetEventHistory(result.LineageID)
	phases := make([]events.Phase, 0, len(history))
	for _, e := range history {
		phases = append(phases, e.Phase)
	}
	assert.Equal(t, []events.Phase{
		events.PhaseDeclaration,
		events.PhaseExecution,
		events.PhaseEffect,
		events.PhaseCompletion,
	}, phases)
}

func TestCostInsufficiencyCancelsBeforeAnything(t *testing.T) {
	q := events.NewQueue(nil, 0)
	pool := NewPool()
	pool.Set(CostAction, 0)

	consequenceRan := false
	a := NewAction(events.EventAttack, uuid.New(), uuid.Nil, q, pool, nil)
	a.AddCost(Cost{Type: CostAction, Amount: 1})
	a.SetConsequence("swing", func(evt events.Event, source uuid.UUID) *events.Event {
		consequenceRan = true
		return &evt
	})

	result := a.Apply()

	require.True(t, result.Canceled)
	assert.Contains(t, result.StatusMessage, "insufficient ACTION")
	assert.False(t, consequenceRan)
	assert.Equal(t, 0, pool.Get(CostAction))

	// The cancellation keeps its causal context inspectable.
	stored, ok := q.GetLatest(result.LineageID)
	require.True(t, ok)
	assert.True(t, stored.Canceled)
}

func TestPrerequisiteVetoCancels(t *testing.T) {
	q := events.NewQueue(nil, 0)
	pool := NewPool()
	pool.Set(CostAction, 1)

	a := NewAction(events.EventAttack, uuid.New(), uuid.Nil, q, pool, nil)
	a.AddCost(Cost{Type: CostAction, Amount: 1})
	a.SetPrerequisite("in_range", func(evt events.Event, source uuid.UUID) *events.Event {
		return nil
	})

	result := a.Apply()

	require.True(t, result.Canceled)
	assert.Contains(t, result.StatusMessage, "in_range")
	assert.Equal(t, 1, pool.Get(CostAction), "no deduction on validation failure")
}

func TestConsequenceCancelKeepsPoolUntouched(t *testing.T) {
	q := events.NewQueue(nil, 0)
	pool := NewPool()
	pool.Set(CostAction, 3)
	pool.Set(CostMovement, 30)
	before := pool.Snapshot()

	a := NewAction(events.EventAttack, uuid.New(), uuid.Nil, q, pool, nil)
	a.AddCost(Cost{Type: CostAction, Amount: 1})
	a.SetConsequence("first", passThrough)
	a.SetConsequence("second", func(evt events.Event, source uuid.UUID) *events.Event {
		canceled := evt.Cancel(q, "interrupted")
		return &canceled
	})
	a.SetConsequence("third", passThrough)

	result := a.Apply()

	require.True(t, result.Canceled)
	assert.Equal(t, before, pool.Snapshot(), "cost atomicity: pool unchanged from pre-apply value")
}

func TestRevalidatePrerequisitesMidFlight(t *testing.T) {
	q := events.NewQueue(nil, 0)
	pool := NewPool()
	pool.Set(CostAction, 1)

	valid := true
	a := NewAction(events.EventMovement, uuid.New(), uuid.Nil, q, pool, nil)
	a.RevalidatePrerequisites = true
	a.AddCost(Cost{Type: CostAction, Amount: 1})
	a.SetPrerequisite("still_standing", func(evt events.Event, source uuid.UUID) *events.Event {
		if !valid {
			return nil
		}
		return &evt
	})
	// The first consequence's side effect invalidates the prerequisite.
	a.SetConsequence("step", func(evt events.Event, source uuid.UUID) *events.Event {
		valid = false
		return &evt
	})
	reached := false
	a.SetConsequence("late", func(evt events.Event, source uuid.UUID) *events.Event {
		reached = true
		return &evt
	})

	result := a.Apply()

	require.True(t, result.Canceled)
	assert.Contains(t, result.StatusMessage, "still_standing")
	assert.False(t, reached, "consequences after the failed revalidation never run")
	assert.Equal(t, 1, pool.Get(CostAction))
}

func TestCostEvaluator(t *testing.T) {
	q := events.NewQueue(nil, 0)
	pool := NewPool()
	pool.Set(CostMovement, 30)

	a := NewAction(events.EventMovement, uuid.New(), uuid.Nil, q, pool, nil)
	a.AddCost(Cost{Type: CostMovement, Evaluator: func(evt events.Event) int {
		return evt.Amount
	}})
	a.SetConsequence("walk", func(evt events.Event, source uuid.UUID) *events.Event {
		stepped := evt.Post(q, events.WithAmount(15))
		return &stepped
	})

	result := a.Apply()

	require.False(t, result.Canceled)
	assert.Equal(t, 15, pool.Get(CostMovement), "evaluator priced the cost from the final event")
}

func TestPreValidateIsInvisible(t *testing.T) {
	q := events.NewQueue(nil, 0)
	pool := NewPool()
	pool.Set(CostAction, 1)

	listenerCalls := 0
	q.AddListener("", events.PhaseDeclaration, uuid.Nil, func(evt events.Event, owner uuid.UUID) *events.Event {
		listenerCalls++
		return &evt
	})

	a := NewAction(events.EventAttack, uuid.New(), uuid.Nil, q, pool, nil)
	a.AddCost(Cost{Type: CostAction, Amount: 1})
	a.SetPrerequisite("ok", passThrough)

	probe := a.PreValidate()

	assert.False(t, probe.Canceled)
	assert.Equal(t, events.PhaseExecution, probe.Phase)
	assert.Equal(t, 0, q.Size(), "dry run never touches the indices")
	assert.Equal(t, 0, listenerCalls, "dry run never notifies listeners")
	assert.Equal(t, 1, pool.Get(CostAction), "dry run never spends")
}

func TestPreValidateReportsFailures(t *testing.T) {
	q := events.NewQueue(nil, 0)
	pool := NewPool()

	a := NewAction(events.EventAttack, uuid.New(), uuid.Nil, q, pool, nil)
	a.AddCost(Cost{Type: CostAction, Amount: 1})

	probe := a.PreValidate()
	assert.True(t, probe.Canceled)
	assert.Contains(t, probe.StatusMessage, "insufficient ACTION")
	assert.Equal(t, 0, q.Size())
}

func TestChainUpsertPreservesOrder(t *testing.T) {
	q := events.NewQueue(nil, 0)
	a := NewAction(events.EventCustom, uuid.New(), uuid.Nil, q, nil, nil)

	var order []string
	record := func(name string) Processor {
		return func(evt events.Event, source uuid.UUID) *events.Event {
			order = append(order, name)
			return &evt
		}
	}
	a.SetConsequence("first", record("first-v1"))
	a.SetConsequence("second", record("second"))
	// Replacing by name keeps the original position.
	a.SetConsequence("first", record("first-v2"))

	result := a.Apply()
	require.False(t, result.Canceled)
	assert.Equal(t, []string{"first-v2", "second"}, order)
}
