// Package eval is the evaluator proper: the Do loop that walks a
// block cell by cell, dispatching words to function calls, set-words
// to assignment, and groups to nested evaluation, all while threading
// the per-instance symbol table, heap, and call stack an Interp owns.
package eval

import (
	"context"
	"fmt"
	"io"

	"rebolcore/internal/bind"
	"rebolcore/internal/clock"
	"rebolcore/internal/frame"
	"rebolcore/internal/mold"
	"rebolcore/internal/rctx"
	"rebolcore/internal/rerr"
	"rebolcore/internal/symtab"
	"rebolcore/internal/throw"
	"rebolcore/internal/values"
)

// Interp is one interpreter instance. A value, series, or context
// from one instance must not flow into another, so every piece of
// mutable state lives here rather than in package globals — running
// two Interps concurrently is safe.
type Interp struct {
	Tab       *symtab.Table
	Heap      *values.Heap
	Stack     *frame.Stack
	Collector *rctx.Collector
	Root      *rctx.Context // the top-level (user) context natives and words resolve against
	Out       io.Writer
	Clock     clock.Clock
}

// New returns a fresh interpreter with its root context populated by
// the built-in native functions (see natives.go).
func New(out io.Writer) *Interp {
	ip := &Interp{
		Tab:       symtab.New(),
		Heap:      values.NewHeap(),
		Stack:     frame.NewStack(),
		Collector: rctx.NewCollector(),
		Out:       out,
		Clock:     clock.System{},
	}
	ip.Root = rctx.NewContext(values.KindModule, 0)
	ip.installNatives()
	return ip
}

// Do evaluates block (a BLOCK!/GROUP! cell) in a fresh frame and
// returns its final value, satisfying internal/parse.Doer so PARSE's
// GROUP!/DO/IF rule keywords can call back into evaluation without
// internal/parse importing this package.
func (ip *Interp) Do(block values.Cell) (values.Cell, error) {
	if !values.IsEvaluativeBlockKind(block.Kind) || block.Ser == nil {
		return block, nil
	}
	fr := &frame.Frame{Source: block.Ser, Index: block.Idx, Mode: frame.ModeEval}
	ip.Stack.Push(fr)
	defer ip.Stack.Pop()
	return ip.DoFrame(fr)
}

// env builds the values.Env natives see for one call, closing over ip
// so DoBlock/CurrentFunction/Throw/Print all operate against this
// instance's own stack and table.
func (ip *Interp) env() *values.Env {
	return &values.Env{
		Print: func(v values.Cell) { fmt.Fprintln(ip.Out, mold.Form(ip.Tab, v)) },
		Throw: func(label interface{}, v values.Cell) error { return throw.New(label, v) },
		DoBlock: func(v values.Cell) (values.Cell, error) {
			if !values.IsEvaluativeBlockKind(v.Kind) || v.Ser == nil {
				return v, nil
			}
			sub := &frame.Frame{Source: v.Ser, Index: v.Idx, Mode: frame.ModeEval}
			ip.Stack.Push(sub)
			defer ip.Stack.Pop()
			return ip.DoFrame(sub)
		},
		CurrentFunction: func() *values.Function {
			for f := ip.Stack.Top(); f != nil; f = f.Prior {
				if f.Mode == frame.ModeFunctionBody {
					return f.Function
				}
			}
			return nil
		},
	}
}

// bind sym in the root context to a native function value, growing
// the root context as needed.
func (ip *Interp) defineNative(name string, paramNames []string, fn values.NativeFunc) {
	nameSym := ip.Tab.Intern(name)
	paramSyms := make([]symtab.Sym, len(paramNames))
	for i, p := range paramNames {
		paramSyms[i] = ip.Tab.Intern(p)
	}
	f := values.NewNative(nameSym, paramSyms, fn)
	ip.Define(nameSym, values.Cell{Kind: values.KindFunction, Obj: f})
}

// Define sets sym to value in the root context, appending a new slot
// if sym is not already bound there.
func (ip *Interp) Define(sym symtab.Sym, value values.Cell) {
	if idx := ip.Root.IndexOf(ip.Tab, sym); idx != 0 {
		*ip.Root.VarSlot(idx) = value
		return
	}
	rctx.ExpandContext(ip.Root, 1)
	slot := ip.Root.Len()
	*ip.Root.KeyAt(slot) = values.Typeset(sym, values.AllTypesExceptVoid, 0)
	*ip.Root.VarSlot(slot) = value
}

// DoTopLevel binds src against the root context and evaluates it,
// the entry point internal/repl and cmd/rebolcore use to run a loaded
// program.
func (ip *Interp) DoTopLevel(ctx context.Context, src *values.Series) (values.Cell, error) {
	// Top-level SET-WORD!s auto-declare into the root context, the way
	// a classic top-level DO expands the user context as new globals
	// are assigned — recursing into nested blocks too, since an IF or
	// WHILE body is lexically part of the same script, not a separate
	// scope.
	keylist, err := rctx.Collect(ip.Tab, ip.Collector, src, 0, ip.Root, rctx.Deep)
	if err != nil {
		return values.Cell{}, err
	}
	rctx.SyncKeylist(ip.Root, keylist)

	bind.BindValuesCore(ip.Tab, src, 0, ip.Root, true)
	fr := &frame.Frame{Source: src, Index: 0, Mode: frame.ModeEval}
	ip.Stack.Push(fr)
	defer ip.Stack.Pop()
	return ip.doWithCancel(ctx, fr)
}

// doWithCancel runs Do but checks ctx between each top-level step, the
// only place context.Context is consulted: it cancels the
// *evaluation*, it is never the Rebol "context" (object) term.
func (ip *Interp) doWithCancel(ctx context.Context, fr *frame.Frame) (values.Cell, error) {
	last := values.Void()
	for !fr.AtEnd() {
		select {
		case <-ctx.Done():
			return values.Cell{}, rerr.New(rerr.Canceled, "evaluation canceled: %v", ctx.Err())
		default:
		}
		v, err := ip.Step(fr)
		if err != nil {
			return values.Cell{}, err
		}
		last = v
	}
	return last, nil
}
