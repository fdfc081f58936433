package eval

import (
	"rebolcore/internal/frame"
	"rebolcore/internal/lookup"
	"rebolcore/internal/rctx"
	"rebolcore/internal/rerr"
	"rebolcore/internal/throw"
	"rebolcore/internal/values"
)

// DoFrame evaluates fr from its current cursor to the end of its
// source, returning the last evaluated value: DO of a block yields
// the value of its final expression, matching the source's own
// top-level evaluation semantics.
func (ip *Interp) DoFrame(fr *frame.Frame) (values.Cell, error) {
	last := values.Void()
	for !fr.AtEnd() {
		v, err := ip.Step(fr)
		if err != nil {
			return values.Cell{}, err
		}
		last = v
	}
	return last, nil
}

// Step evaluates exactly one expression starting at fr's cursor,
// advancing the cursor past everything that expression consumed
// (which, for a function call, includes its argument cells).
func (ip *Interp) Step(fr *frame.Frame) (values.Cell, error) {
	cell := fr.Current()
	fr.Index++
	return ip.EvalCell(fr, cell)
}

// EvalCell evaluates one already-fetched cell in fr's context. It is
// split from Step so GROUP! sub-evaluation and function-argument
// evaluation can both dispatch through the same switch without
// double-advancing fr's cursor.
func (ip *Interp) EvalCell(fr *frame.Frame, cell *values.Cell) (values.Cell, error) {
	switch cell.Kind {
	case values.KindWord:
		slot, err := lookup.GetVar(ip.Stack, cell)
		if err != nil {
			return values.Cell{}, err
		}
		if slot.Kind == values.KindFunction {
			fn, _ := slot.Obj.(*values.Function)
			return ip.applyFunction(fr, fn, *slot)
		}
		return *slot, nil

	case values.KindSetWord:
		if fr.AtEnd() {
			return values.Cell{}, rerr.New(rerr.ParseEnd, "set-word with no following value")
		}
		next := fr.Current()
		fr.Index++
		val, err := ip.EvalCell(fr, next)
		if err != nil {
			return values.Cell{}, err
		}
		if err := lookup.SetVar(ip.Stack, cell, val); err != nil {
			return values.Cell{}, err
		}
		return val, nil

	case values.KindGetWord:
		slot, err := lookup.GetVar(ip.Stack, cell)
		if err != nil {
			return values.Cell{}, err
		}
		return *slot, nil

	case values.KindLitWord:
		return values.Word(values.KindWord, cell.Sym), nil

	case values.KindGroup:
		if cell.Ser == nil {
			return values.Void(), nil
		}
		sub := &frame.Frame{Source: cell.Ser, Index: cell.Idx, Mode: frame.ModeEval}
		ip.Stack.Push(sub)
		defer ip.Stack.Pop()
		return ip.DoFrame(sub)

	case values.KindPath, values.KindSetPath, values.KindGetPath, values.KindLitPath:
		return ip.evalPath(fr, cell)

	default:
		return *cell, nil
	}
}

// applyFunction consumes fn.ArgCount() further cells from fr, each
// fully evaluated, and dispatches to the native Go closure or, for an
// interpreted closure, pushes a ModeFunctionBody frame running its
// body.
func (ip *Interp) applyFunction(fr *frame.Frame, fn *values.Function, funcVal values.Cell) (values.Cell, error) {
	argc := fn.ArgCount()
	args := make([]values.Cell, argc)
	for i := 1; i <= argc; i++ {
		if fr.AtEnd() {
			return values.Cell{}, rerr.New(rerr.ArityError, "missing argument %d of %d", i, argc)
		}
		argCell := fr.Current()
		fr.Index++
		v, err := ip.EvalCell(fr, argCell)
		if err != nil {
			return values.Cell{}, err
		}
		args[i-1] = v
	}

	if fn.IsNative() {
		return fn.Native(ip.env(), args)
	}

	bodyFrame := &frame.Frame{
		Source:   fn.Body,
		Index:    0,
		Mode:     frame.ModeFunctionBody,
		Function: fn,
		Args:     args,
	}
	ip.Stack.Push(bodyFrame)
	result, err := ip.DoFrame(bodyFrame)
	ip.Stack.Pop()
	if err != nil {
		if v, ok := throw.Catch(err, throw.ReturnLabel(fn)); ok {
			return v, nil
		}
		return values.Cell{}, err
	}
	return result, nil
}

// evalPath implements a minimal PATH! evaluator, restricted to context
// field access (e.g. `obj/field`): the head segment is looked up as a
// word, every further segment selects a field out of the context that
// produced it, and a SET-PATH! assigns the next evaluated expression
// into the final segment.
func (ip *Interp) evalPath(fr *frame.Frame, cell *values.Cell) (values.Cell, error) {
	if cell.Ser == nil {
		return values.Cell{}, rerr.New(rerr.BadPathSelect, "empty path")
	}
	cells := cell.Ser.Cells()
	if cell.Idx >= len(cells) {
		return values.Cell{}, rerr.New(rerr.BadPathSelect, "empty path")
	}
	head := cells[cell.Idx]
	if !head.IsWord() {
		return values.Cell{}, rerr.New(rerr.BadPathSelect, "path must start with a word")
	}
	slot, err := lookup.GetVar(ip.Stack, &head)
	if err != nil {
		return values.Cell{}, err
	}
	cur := slot
	for i := cell.Idx + 1; i < len(cells); i++ {
		seg := cells[i]
		if !seg.IsWord() {
			return values.Cell{}, rerr.New(rerr.BadPathSelect, "path segment must be a word")
		}
		if !values.IsContextKind(cur.Kind) {
			return values.Cell{}, rerr.New(rerr.BadPathSelect, "cannot select into a %s", cur.Kind)
		}
		ctxRef, ok := cur.Obj.(*rctx.Context)
		if !ok {
			return values.Cell{}, rerr.New(rerr.BadPathSelect, "value has no context payload")
		}
		slotIdx := ctxRef.IndexOf(ip.Tab, seg.Sym)
		if slotIdx == 0 {
			return values.Cell{}, rerr.New(rerr.BadPathSelect, "no such field %q", ip.Tab.Name(seg.Sym))
		}
		cur = ctxRef.VarSlot(slotIdx)
	}

	switch cell.Kind {
	case values.KindSetPath:
		if fr.AtEnd() {
			return values.Cell{}, rerr.New(rerr.BadPathSet, "set-path with no following value")
		}
		next := fr.Current()
		fr.Index++
		val, err := ip.EvalCell(fr, next)
		if err != nil {
			return values.Cell{}, err
		}
		if cur.Flags&values.FlagCellLocked != 0 {
			return values.Cell{}, rerr.New(rerr.LockedWord, "field is locked against assignment")
		}
		*cur = val
		return val, nil

	case values.KindGetPath:
		return *cur, nil

	default: // plain PATH!
		if cur.Kind == values.KindFunction {
			fn, _ := cur.Obj.(*values.Function)
			return ip.applyFunction(fr, fn, *cur)
		}
		return *cur, nil
	}
}
