// Package harness runs conformance scenarios against the compiler and a
// real backend.
//
// A scenario is a list of steps. Each step loads a document, compiles it in
// a fresh session, invokes its entry points and checks what came back. Every
// step is journaled to an in-memory store, and everything that happened is
// recorded as a trace that assertions and golden files inspect.
//
// # Scenario Format
//
//	name: money_reuses_storage
//	description: "The constructor returns the same record on every call"
//	steps:
//	  - name: expression
//	    document: ../documents/structure.json
//	    expect:
//	      value: -1
//	  - name: money
//	    input:
//	      construct: {record: Money, values: {amount: 20, currency: USD}}
//	    calls: 3
//	    expect:
//	      record: {amount: 20, currency: USD}
//	  - name: bad_operator
//	    input:
//	      expression: ["%", 7, 2]
//	    expect:
//	      error: UNSUPPORTED_OPERATOR
//	assertions:
//	  - type: trace_count
//	    event: invoke
//	    step: money
//	    count: 3
//	  - type: same_address
//	    step: money
//	  - type: journal
//	    outcome: compile_error
//	    count: 1
//
// A step reads either document, a path relative to the scenario file, or
// input, a document written inline in YAML.
//
// # Assertion Types
//
//   - trace_contains: an event of the given kind (and step, symbol, result) exists
//   - trace_order: the named steps were invoked in order
//   - trace_count: exactly count events match
//   - same_address: every record a step returned lives at one address
//   - journal: exactly count journaled sessions ended with outcome
//
// # Deterministic Testing
//
// Session IDs are "<scenario>-<step number>" and sequence numbers come from
// a logical clock starting at zero, so traces are identical across runs and
// can be compared with golden files.
package harness
