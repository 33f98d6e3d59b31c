package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jitexpr/internal/store"
)

func money(addr uint32, amount float64) map[string]any {
	return map[string]any{
		"name":    "Money",
		"address": addr,
		"fields":  map[string]any{"amount": amount, "currency": "USD"},
	}
}

var sampleTrace = []TraceEvent{
	{Type: EventCompile, Step: "sum", Args: map[string]any{"expression": "(+ 1 2)"}, Seq: 1},
	{Type: EventInvoke, Step: "sum", Symbol: "entry", Result: int32(3), Seq: 2},
	{Type: EventCompile, Step: "money", Args: map[string]any{"construct": "Money"}, Seq: 3},
	{Type: EventInvoke, Step: "money", Symbol: "construct", Result: money(8, 20), Seq: 4},
	{Type: EventInvoke, Step: "money", Symbol: "construct", Result: money(8, 20), Seq: 5},
	{Type: EventError, Step: "bad", Code: "UNSUPPORTED_OPERATOR", Seq: 6},
}

func TestAssertTraceContains(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   bool
	}{
		{"event only", Assertion{Event: EventInvoke}, false},
		{"int result", Assertion{Event: EventInvoke, Step: "sum", Result: 3}, false},
		{"wrong int result", Assertion{Event: EventInvoke, Step: "sum", Result: 4}, true},
		{"record subset", Assertion{Event: EventInvoke, Symbol: "construct", Result: map[string]any{"fields": map[string]any{"amount": 20}}}, false},
		{"record mismatch", Assertion{Event: EventInvoke, Symbol: "construct", Result: map[string]any{"name": "Line"}}, true},
		{"error code", Assertion{Event: EventError, Code: "UNSUPPORTED_OPERATOR"}, false},
		{"missing code", Assertion{Event: EventError, Code: "TYPE_MISMATCH"}, true},
		{"missing step", Assertion{Event: EventInvoke, Step: "bad"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(sampleTrace, tt.assertion)
			if tt.wantErr {
				var ae *AssertionError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, AssertTraceContains, ae.Type)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	assert.NoError(t, assertTraceOrder(sampleTrace, Assertion{Steps: []string{"sum", "money"}}))

	err := assertTraceOrder(sampleTrace, Assertion{Steps: []string{"money", "sum"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "money (pos 4) should be before sum (pos 2)")

	// Steps that never invoked anything have no position.
	err = assertTraceOrder(sampleTrace, Assertion{Steps: []string{"sum", "bad"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step bad never invoked")
}

func TestAssertTraceCount(t *testing.T) {
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Event: EventInvoke, Count: 3}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Event: EventInvoke, Step: "money", Count: 2}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Event: EventError, Count: 1}))
	assert.NoError(t, assertTraceCount(sampleTrace, Assertion{Event: EventInvoke, Step: "bad", Count: 0}))

	err := assertTraceCount(sampleTrace, Assertion{Event: EventCompile, Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 3 compile events")
	assert.Contains(t, err.Error(), "Actual: 2 events")
}

func TestAssertSameAddress(t *testing.T) {
	assert.NoError(t, assertSameAddress(sampleTrace, Assertion{Step: "money"}))

	moved := append([]TraceEvent{}, sampleTrace...)
	moved = append(moved, TraceEvent{Type: EventInvoke, Step: "money", Symbol: "construct", Result: money(24, 20), Seq: 7})
	err := assertSameAddress(moved, Assertion{Step: "money"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "addresses [8 8 24]")

	err = assertSameAddress(sampleTrace, Assertion{Step: "sum"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no records")
}

func TestAssertJournal(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, e := range []store.Entry{
		{ID: "a", Outcome: store.OutcomeOK},
		{ID: "b", Outcome: store.OutcomeOK},
		{ID: "c", Outcome: store.OutcomeCompileError},
	} {
		_, err := st.WriteSession(ctx, e)
		require.NoError(t, err)
	}

	assert.NoError(t, assertJournal(ctx, st, Assertion{Outcome: "ok", Count: 2}))
	assert.NoError(t, assertJournal(ctx, st, Assertion{Outcome: "compile_error", Count: 1}))
	assert.NoError(t, assertJournal(ctx, st, Assertion{Outcome: "load_error", Count: 0}))

	err = assertJournal(ctx, st, Assertion{Outcome: "ok", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Actual: 2 sessions")
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Trace: sampleTrace}
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Event: EventInvoke, Count: 3},
		{Type: AssertJournal, Outcome: "ok"},
		{Type: "final_state"},
	}, nil)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "journal requires a store")
	assert.Contains(t, errs[1], `unknown assertion type "final_state"`)
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 invoke events",
		Actual:   "3 events",
		Trace:    sampleTrace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "[2] sum invoke entry = 3")
	assert.Contains(t, msg, "[6] bad error UNSUPPORTED_OPERATOR")
}

func TestMatchValue(t *testing.T) {
	assert.True(t, matchValue(20, 20.0))
	assert.True(t, matchValue(-1, int32(-1)))
	assert.True(t, matchValue(8, uint32(8)))
	assert.True(t, matchValue("USD", "USD"))
	assert.True(t, matchValue(map[string]any{"a": 1}, map[string]any{"a": int32(1), "b": 2}))
	assert.True(t, matchValue(map[string]any{"price": map[string]any{"amount": 0}}, map[string]any{"price": map[string]any{"amount": 0.0, "currency": ""}}))

	assert.False(t, matchValue(1, "1"))
	assert.False(t, matchValue(map[string]any{"a": 1}, int32(1)))
	assert.False(t, matchValue(map[string]any{"a": 1}, map[string]any{"b": 1}))
	assert.False(t, matchValue(true, 1))
}
