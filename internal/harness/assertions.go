package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/jitexpr/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Seq, event.Step, event.Type)
			switch event.Type {
			case EventInvoke:
				fmt.Fprintf(&buf, " %s = %v", event.Symbol, event.Result)
			case EventError:
				fmt.Fprintf(&buf, " %s", event.Code)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// matches reports whether event satisfies the filters of assertion. Empty
// filters match anything.
func matches(event TraceEvent, assertion Assertion) bool {
	return (assertion.Event == "" || event.Type == assertion.Event) &&
		(assertion.Step == "" || event.Step == assertion.Step) &&
		(assertion.Symbol == "" || event.Symbol == assertion.Symbol) &&
		(assertion.Code == "" || event.Code == assertion.Code)
}

// describe renders the filters of assertion for messages.
func describe(assertion Assertion) string {
	parts := []string{assertion.Event}
	if assertion.Step != "" {
		parts = append(parts, "step "+assertion.Step)
	}
	if assertion.Symbol != "" {
		parts = append(parts, "symbol "+assertion.Symbol)
	}
	if assertion.Code != "" {
		parts = append(parts, "code "+assertion.Code)
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks if the trace contains an event matching the
// assertion's filters and, when given, its result (subset match for maps).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if !matches(event, assertion) {
			continue
		}
		if assertion.Result == nil || matchValue(assertion.Result, event.Result) {
			return nil
		}
	}

	expected := describe(assertion)
	if assertion.Result != nil {
		expected += fmt.Sprintf(" with result %v", assertion.Result)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the listed steps were first invoked in order.
// Steps don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type == EventInvoke && positions[event.Step] == 0 {
			positions[event.Step] = i + 1 // 1-indexed for readability
		}
	}

	for _, step := range assertion.Steps {
		if positions[step] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all steps invoked: %v", assertion.Steps),
				Actual:   fmt.Sprintf("step %s never invoked", step),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Steps); i++ {
		prev := assertion.Steps[i-1]
		curr := assertion.Steps[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("steps in order: %v", assertion.Steps),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count events match.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events", assertion.Count, describe(assertion)),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertSameAddress checks that every record the step returned lives at a
// single address.
func assertSameAddress(trace []TraceEvent, assertion Assertion) error {
	var addresses []any
	for _, event := range trace {
		if event.Type != EventInvoke || event.Step != assertion.Step {
			continue
		}
		if rec, ok := event.Result.(map[string]any); ok {
			addresses = append(addresses, rec["address"])
		}
	}

	if len(addresses) == 0 {
		return &AssertionError{
			Type:     AssertSameAddress,
			Expected: fmt.Sprintf("records returned by step %s", assertion.Step),
			Actual:   "no records",
			Trace:    trace,
		}
	}
	for _, addr := range addresses[1:] {
		if addr != addresses[0] {
			return &AssertionError{
				Type:     AssertSameAddress,
				Expected: fmt.Sprintf("every record of step %s at one address", assertion.Step),
				Actual:   fmt.Sprintf("addresses %v", addresses),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertJournal counts journaled sessions with the given outcome.
func assertJournal(ctx context.Context, st *store.Store, assertion Assertion) error {
	rows, err := st.Query(ctx, "SELECT COUNT(*) FROM sessions WHERE outcome = ?", assertion.Outcome)
	if err != nil {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("query sessions with outcome %s", assertion.Outcome),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return fmt.Errorf("scan count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertJournal,
			Expected: fmt.Sprintf("%d sessions with outcome %s", assertion.Count, assertion.Outcome),
			Actual:   fmt.Sprintf("%d sessions", count),
		}
	}
	return nil
}

// matchValue reports whether actual matches expected. Maps are subset
// matches; numbers compare by value whatever their Go type.
func matchValue(expected, actual any) bool {
	if exp, ok := expected.(map[string]any); ok {
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for key, want := range exp {
			got, exists := act[key]
			if !exists || !matchValue(want, got) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(normalize(expected), normalize(actual))
}

// normalize converts numbers to float64 so YAML ints match int32 and uint32
// values read from compiled code.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = normalize(e)
		}
		return out
	}
	return v
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides journal access for journal assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertSameAddress:
			err = assertSameAddress(result.Trace, assertion)
		case AssertJournal:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: journal requires a store", i)
			} else {
				err = assertJournal(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
