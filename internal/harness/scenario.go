package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It prefixes session IDs and
	// names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps run in order, each in its own session.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the journal after all steps ran.
	Assertions []Assertion `yaml:"assertions"`

	// Dir is the directory document paths are resolved against. Set by
	// LoadScenario.
	Dir string `yaml:"-"`
}

// Step compiles and invokes one document.
type Step struct {
	// Name identifies the step in the trace. Defaults to "step<N>".
	Name string `yaml:"name"`

	// Document is a path to a JSON, YAML or CUE document, relative to the
	// scenario file.
	Document string `yaml:"document,omitempty"`

	// Input is an inline document with the same keys as a YAML document.
	Input map[string]any `yaml:"input,omitempty"`

	// Calls is how many times each entry point is invoked. Defaults to 1.
	Calls int `yaml:"calls,omitempty"`

	// Expect checks what the step produced. If nil, any outcome passes.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies what a step should produce.
type Expect struct {
	// Value is the expected expression result on every call.
	Value *int32 `yaml:"value,omitempty"`

	// Record contains expected record field values. This is a subset
	// match: only the listed fields are checked. Nested records are maps.
	Record map[string]any `yaml:"record,omitempty"`

	// Error is the expected error code, e.g. UNSUPPORTED_OPERATOR or
	// INVOCATION_FAILED. A step that expects an error fails if it succeeds.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the journal.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event matching the filters and result exists
	// - "trace_order": steps were first invoked in the listed order
	// - "trace_count": exactly count events match the filters
	// - "same_address": every record returned by step has one address
	// - "journal": exactly count sessions ended with outcome
	Type string `yaml:"type"`

	// Event is the trace event type (compile, invoke or error).
	Event string `yaml:"event,omitempty"`

	// Step restricts matching to one step.
	Step string `yaml:"step,omitempty"`

	// Symbol restricts matching to one entry point.
	Symbol string `yaml:"symbol,omitempty"`

	// Code restricts matching to error events with this code.
	Code string `yaml:"code,omitempty"`

	// Result is matched against the event result (used by trace_contains).
	// Maps are subset matches.
	Result any `yaml:"result,omitempty"`

	// Steps is the expected step order (used by trace_order).
	Steps []string `yaml:"steps,omitempty"`

	// Outcome is the journal outcome (used by journal).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of matches (used by trace_count and journal).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertSameAddress   = "same_address"
	AssertJournal       = "journal"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.Dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML. Relative document paths are resolved
// against the working directory unless Dir is set afterwards.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and fills step defaults.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must contain at least one step")
	}

	names := make(map[string]bool, len(s.Steps))
	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Name == "" {
			step.Name = fmt.Sprintf("step%d", i+1)
		}
		if names[step.Name] {
			return fmt.Errorf("steps[%d]: duplicate step name %q", i, step.Name)
		}
		names[step.Name] = true

		if (step.Document == "") == (step.Input == nil) {
			return fmt.Errorf("steps[%d]: exactly one of document or input is required", i)
		}
		if step.Calls < 0 {
			return fmt.Errorf("steps[%d]: calls must be non-negative", i)
		}
		if e := step.Expect; e != nil && e.Error != "" && (e.Value != nil || e.Record != nil) {
			return fmt.Errorf("steps[%d]: expect.error excludes value and record", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, names); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, steps map[string]bool) error {
	if a.Step != "" && !steps[a.Step] {
		return fmt.Errorf("assertions[%d]: unknown step %q", index, a.Step)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for trace_order", index)
		}
		for _, name := range a.Steps {
			if !steps[name] {
				return fmt.Errorf("assertions[%d]: unknown step %q", index, name)
			}
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertSameAddress:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for same_address", index)
		}
	case AssertJournal:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for journal", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
