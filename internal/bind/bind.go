// Package bind walks a block and sets or clears the binding of its
// word cells, in the two flavors the evaluator needs — specific (word
// -> context slot) and relative (word -> function paramlist slot,
// resolved against whatever frame is running that function).
package bind

import (
	"rebolcore/internal/rctx"
	"rebolcore/internal/symtab"
	"rebolcore/internal/values"
)

// BindValuesCore binds every eligible word cell in head, starting at
// startIdx, that resolves against ctx's key-list, to a specific
// binding pointing at ctx. Words that don't resolve
// are left exactly as they were — binding is additive, never an
// all-or-nothing operation, so a block can be bound against several
// contexts in sequence (outermost first) the way a function body is
// bound against its paramlist and then the enclosing module.
//
// When deep is true, every array-kind cell (BLOCK!/GROUP!/PATH!
// variants) is recursed into, so a path's head word gets the same
// binding pass a plain word would. This is broader than
// Collect's COLLECT_DEEP, which only descends into BLOCK!/GROUP! —
// paths name existing variables, they don't declare new ones.
func BindValuesCore(tab *symtab.Table, head *values.Series, startIdx int, ctx *rctx.Context, deep bool) int {
	bound := 0
	for i := startIdx; ; i++ {
		cell := head.CellAt(i)
		if cell.Kind == values.KindEnd {
			return bound
		}
		switch {
		case cell.IsWord():
			if idx := ctx.IndexOf(tab, cell.Sym); idx != 0 {
				cell.Bind = values.Binding{Kind: values.BindSpecific, Ctx: ctx, Index: idx}
				bound++
			}
		case deep && values.IsArrayKind(cell.Kind) && cell.Ser != nil:
			bound += BindValuesCore(tab, cell.Ser, cell.Idx, ctx, deep)
		}
	}
}

// UnbindValuesCore clears the binding of every word cell in head
// starting at startIdx, recursing when deep is true. Unlike
// BindValuesCore it is unconditional: every word loses whatever
// binding it had, specific or relative.
func UnbindValuesCore(head *values.Series, startIdx int, deep bool) {
	for i := startIdx; ; i++ {
		cell := head.CellAt(i)
		if cell.Kind == values.KindEnd {
			return
		}
		switch {
		case cell.IsWord():
			cell.Unbind()
		case deep && values.IsArrayKind(cell.Kind) && cell.Ser != nil:
			UnbindValuesCore(cell.Ser, cell.Idx, deep)
		}
	}
}

// BindRelativeDeep binds every word cell in a function's body that
// names one of fn's parameters to a relative binding: the word
// remembers which function it belongs to and which
// parameter slot, but not which invocation — that is resolved later,
// dynamically, against whichever frame on the call stack is currently
// running fn (internal/lookup.GetVar). This always recurses, since a
// function body's nested blocks are bound once, at function-creation
// time, not re-bound per call.
func BindRelativeDeep(tab *symtab.Table, fn *values.Function, head *values.Series, startIdx int) int {
	bound := 0
	for i := startIdx; ; i++ {
		cell := head.CellAt(i)
		if cell.Kind == values.KindEnd {
			return bound
		}
		switch {
		case cell.IsWord():
			for p := 1; p <= fn.ArgCount(); p++ {
				if tab.SameCanon(fn.ParamSym(p), cell.Sym) {
					cell.Bind = values.Binding{Kind: values.BindRelative, Fn: fn, Index: p}
					bound++
					break
				}
			}
		case values.IsArrayKind(cell.Kind) && cell.Ser != nil:
			bound += BindRelativeDeep(tab, fn, cell.Ser, cell.Idx)
		}
	}
}

// RebindValuesDeep retargets every specifically-bound word currently
// pointing at oldCtx so it instead points at newCtx, re-resolving each
// word's own symbol against newCtx rather than assuming the slot
// index is unchanged — newCtx's key-list may have a different layout
// than oldCtx's (MergeSelfish appends a second context's keys after
// the first's, shifting indexes). A word whose symbol newCtx doesn't
// carry at all is left bound to oldCtx, which should only happen if a
// caller passes a newCtx that isn't a superset of oldCtx's keys. Words
// bound to any other context, or relatively bound, are untouched.
func RebindValuesDeep(tab *symtab.Table, head *values.Series, startIdx int, oldCtx, newCtx *rctx.Context, deep bool) int {
	rebound := 0
	for i := startIdx; ; i++ {
		cell := head.CellAt(i)
		if cell.Kind == values.KindEnd {
			return rebound
		}
		switch {
		case cell.IsWord() && cell.Bind.Kind == values.BindSpecific && cell.Bind.Ctx == oldCtx:
			if idx, ok := newCtx.FindWord(tab, cell.Sym); ok {
				cell.Bind.Ctx = newCtx
				cell.Bind.Index = idx
				rebound++
			}
		case deep && values.IsArrayKind(cell.Kind) && cell.Ser != nil:
			rebound += RebindValuesDeep(tab, cell.Ser, cell.Idx, oldCtx, newCtx, deep)
		}
	}
}
