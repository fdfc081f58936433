// Package lookup turns a bound word cell into the actual variable
// cell it names, the one operation both the evaluator and PARSE call
// every time they dereference a word.
package lookup

import (
	"rebolcore/internal/frame"
	"rebolcore/internal/rerr"
	"rebolcore/internal/values"
)

// GetVar resolves word to the variable cell it's bound to.
//
//   - BindNone: the word was never bound (a fresh literal word used
//     as a value) -> rerr.NotBound.
//   - BindSpecific: word.Bind.Ctx names the context directly; fails
//     with rerr.VarlessWord if that context is no longer accessible
//     (its owning stack frame has popped).
//   - BindRelative: word.Bind.Fn names the function whose paramlist
//     slot this word addresses, but not which call — stack is walked
//     from the top for the innermost frame currently running that
//     function, skipping any frame that isn't running a function body
//     at all (a PARSE frame, say). No match at all is rerr.NoRelative,
//     the case where a function body block outlived every invocation
//     of its own function (e.g. returned and called as data) and is
//     evaluated outside of any call.
func GetVar(stack *frame.Stack, word *values.Cell) (*values.Cell, error) {
	switch word.Bind.Kind {
	case values.BindNone:
		return nil, rerr.New(rerr.NotBound, "word has no binding")

	case values.BindSpecific:
		ctx := word.Bind.Ctx
		if ctx == nil || !ctx.Accessible() {
			return nil, rerr.New(rerr.VarlessWord, "word's context is no longer accessible")
		}
		return ctx.VarSlot(word.Bind.Index), nil

	case values.BindRelative:
		f := stack.FindRunning(word.Bind.Fn)
		if f == nil {
			return nil, rerr.New(rerr.NoRelative, "no running invocation of the function this word is relatively bound to")
		}
		return f.ArgSlot(word.Bind.Index), nil

	default:
		return nil, rerr.New(rerr.NotBound, "word carries an unrecognized binding kind")
	}
}

// SetVar resolves word the same way GetVar does and overwrites the
// variable in place, failing with rerr.LockedWord if that slot is
// protected.
func SetVar(stack *frame.Stack, word *values.Cell, value values.Cell) error {
	slot, err := GetVar(stack, word)
	if err != nil {
		return err
	}
	if slot.Flags&values.FlagCellLocked != 0 {
		return rerr.New(rerr.LockedWord, "variable is locked against assignment")
	}
	*slot = value
	return nil
}
