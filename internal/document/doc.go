// Package document loads expression documents from JSON, YAML or CUE.
//
// A document is either an expression tree on its own:
//
//	["+", 1, ["-", 2]]
//
// or an object with any of these keys:
//
//	{
//	  "expression": ["*", 6, 7],
//	  "records": [{"name": "Money", "fields": [{"name": "amount", "type": "float64"}, {"name": "currency", "type": "string"}]}],
//	  "construct": {"record": "Money", "values": {"amount": 20, "currency": "USD"}}
//	}
//
// In a tree, an integer is a literal and an array is an operation whose
// first element is the operator token and whose remaining elements are the
// operands.
package document
