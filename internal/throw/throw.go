// Package throw implements the non-local flow-control protocol shared
// by the evaluator and PARSE: a few operations (RETURN, PARSE's
// ACCEPT/REJECT/RETURN) unwind through arbitrarily many intervening
// Do/Subparse calls by carrying a labeled value as a Go error, caught
// only by the frame that owns the matching label.
package throw

import "rebolcore/internal/values"

// sentinel is an unexported comparable type so the well-known labels
// below are distinguishable from each other and from any *values.Function
// pointer used as a RETURN label, by identity rather than string
// comparison.
type sentinel struct{ name string }

func (s *sentinel) String() string { return s.name }

var (
	// ParseAccept is thrown by PARSE's ACCEPT keyword: unwind to the
	// nearest enclosing quantified iteration (ANY/SOME/WHILE/OPT or a
	// count), which stops and succeeds at the current input position,
	// or to the top-level Parse call, which returns true. The carried
	// value is not used.
	ParseAccept = &sentinel{"parse-accept"}
	// ParseReject is thrown by PARSE's REJECT keyword: unwind to the
	// same catcher as ParseAccept, which then fails instead; the
	// top-level Parse call returns false.
	ParseReject = &sentinel{"parse-reject"}
	// ParseReturn is thrown by PARSE's RETURN keyword: unwind past every
	// intervening Subparse frame and yield the carried value as the
	// result of the whole outer PARSE call, not just the current rule.
	ParseReturn = &sentinel{"parse"}
)

// ReturnLabel returns the throw label a RETURN inside fn's body must
// use: the function's own identity, so a RETURN thrown from a nested
// call (e.g. inside a block passed to MAP-EACH) unwinds past any
// intervening frames and is caught only by the Do loop that is
// running this exact fn invocation.
func ReturnLabel(fn *values.Function) interface{} { return fn }

// Thrown is the error value a throw produces. It satisfies the
// standard error interface so it can be returned and propagated like
// any other Go error, but callers that want to distinguish "a real
// error happened" from "control is unwinding to a catcher" should use
// AsThrown.
type Thrown struct {
	Label interface{}
	Value values.Cell
}

func (t *Thrown) Error() string { return "thrown: unwinding to catcher" }

// New constructs a Thrown for the given label and value.
func New(label interface{}, value values.Cell) *Thrown {
	return &Thrown{Label: label, Value: value}
}

// AsThrown reports whether err is a *Thrown, regardless of label.
func AsThrown(err error) (*Thrown, bool) {
	t, ok := err.(*Thrown)
	return t, ok
}

// Catch reports whether err is a Thrown matching label, returning its
// carried value. A Thrown with a different label is returned
// unexamined via ok == false, so the caller can re-propagate it
// (let a RETURN from a deeper function pass through a PARSE frame,
// for instance).
func Catch(err error, label interface{}) (values.Cell, bool) {
	t, ok := AsThrown(err)
	if !ok || t.Label != label {
		return values.Cell{}, false
	}
	return t.Value, true
}
