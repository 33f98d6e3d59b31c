// Package session runs the compile pipeline against a jit.Backend.
//
// A Session exclusively owns one backend context for its lifetime:
//
//	s, err := session.Open(ctx, backend)
//	defer s.Close(ctx)
//	s.CompileExpression("entry", node)
//	inv, err := s.Build(ctx)
//	defer inv.Release(ctx)
//	v, err := inv.Int32(ctx, "entry")
//
// Close and Release are safe to call on every exit path; only the first
// call releases anything. EvaluateExpression and EvaluateRecord wrap the
// whole sequence.
//
// A Session is not safe for concurrent use.
package session
