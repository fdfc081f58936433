package eval

import (
	"rebolcore/internal/bind"
	"rebolcore/internal/parse"
	"rebolcore/internal/rctx"
	"rebolcore/internal/rerr"
	"rebolcore/internal/symtab"
	"rebolcore/internal/throw"
	"rebolcore/internal/values"
)

// installNatives populates ip.Root with the built-in function set:
// arithmetic, comparison, the control-flow forms that drive a branch
// block through Env.DoBlock, and the FUNCTION!/RETURN pair that ties
// relative binding (internal/bind) and the throw protocol
// (internal/throw) together into user-defined functions.
func (ip *Interp) installNatives() {
	ip.defineArithmetic()
	ip.defineComparison()
	ip.defineControlFlow()
	ip.defineFunctionConstructors()
	ip.defineDatatypes()
	ip.defineContextConstructors()
	ip.defineMisc()
}

func numOf(c values.Cell) (float64, bool) {
	switch c.Kind {
	case values.KindInteger:
		return float64(c.I), true
	case values.KindDecimal:
		return c.D, true
	default:
		return 0, false
	}
}

func wrapNum(isInt bool, f float64) values.Cell {
	if isInt {
		return values.Integer(int64(f))
	}
	return values.Decimal(f)
}

func (ip *Interp) defineArithmetic() {
	arith := func(name string, op func(a, b float64) float64) {
		ip.defineNative(name, []string{"a", "b"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
			a, ok1 := numOf(args[0])
			b, ok2 := numOf(args[1])
			if !ok1 || !ok2 {
				return values.Cell{}, rerr.New(rerr.NativeError, "%s expects numbers", name)
			}
			bothInt := args[0].Kind == values.KindInteger && args[1].Kind == values.KindInteger
			return wrapNum(bothInt, op(a, b)), nil
		})
	}
	arith("add", func(a, b float64) float64 { return a + b })
	arith("subtract", func(a, b float64) float64 { return a - b })
	arith("multiply", func(a, b float64) float64 { return a * b })
	arith("divide", func(a, b float64) float64 { return a / b })
}

func (ip *Interp) defineComparison() {
	cmp := func(name string, op func(a, b float64) bool) {
		ip.defineNative(name, []string{"a", "b"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
			a, ok1 := numOf(args[0])
			b, ok2 := numOf(args[1])
			if !ok1 || !ok2 {
				return values.Cell{}, rerr.New(rerr.NativeError, "%s expects numbers", name)
			}
			return values.Logic(op(a, b)), nil
		})
	}
	cmp("lesser?", func(a, b float64) bool { return a < b })
	cmp("greater?", func(a, b float64) bool { return a > b })

	ip.defineNative("equal?", []string{"a", "b"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		return values.Logic(cellsEqual(args[0], args[1])), nil
	})
	ip.defineNative("not", []string{"v"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		return values.Logic(!args[0].IsTruthy()), nil
	})
}

func cellsEqual(a, b values.Cell) bool {
	if a.Kind != b.Kind {
		na, oka := numOf(a)
		nb, okb := numOf(b)
		return oka && okb && na == nb
	}
	switch a.Kind {
	case values.KindInteger:
		return a.I == b.I
	case values.KindDecimal:
		return a.D == b.D
	case values.KindLogic:
		return a.I == b.I
	case values.KindChar:
		return a.I == b.I
	case values.KindBlank:
		return true
	case values.KindWord, values.KindSetWord, values.KindGetWord, values.KindLitWord, values.KindRefinement:
		return a.Sym == b.Sym
	case values.KindString, values.KindBinary, values.KindFile, values.KindTag, values.KindEmail:
		return stringPayload(a) == stringPayload(b)
	default:
		return false
	}
}

func stringPayload(c values.Cell) string {
	if c.Ser == nil {
		return ""
	}
	b := c.Ser.Bytes()
	if c.Idx > len(b) {
		return ""
	}
	return string(b[c.Idx:])
}

func (ip *Interp) defineControlFlow() {
	ip.defineNative("if", []string{"condition", "branch"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		if !args[0].IsTruthy() {
			return values.Void(), nil
		}
		return env.DoBlock(args[1])
	})

	ip.defineNative("either", []string{"condition", "true-branch", "false-branch"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		if args[0].IsTruthy() {
			return env.DoBlock(args[1])
		}
		return env.DoBlock(args[2])
	})

	ip.defineNative("while", []string{"condition", "body"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		last := values.Void()
		for {
			cond, err := env.DoBlock(args[0])
			if err != nil {
				return values.Cell{}, err
			}
			if !cond.IsTruthy() {
				return last, nil
			}
			v, err := env.DoBlock(args[1])
			if err != nil {
				return values.Cell{}, err
			}
			last = v
		}
	})

	ip.defineNative("return", []string{"value"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		fn := env.CurrentFunction()
		if fn == nil {
			return values.Cell{}, rerr.New(rerr.NoRelative, "return used outside of a function body")
		}
		return values.Cell{}, env.Throw(throw.ReturnLabel(fn), args[0])
	})
}

func (ip *Interp) defineFunctionConstructors() {
	makeFn := func(env *values.Env, args []values.Cell) (values.Cell, error) {
		spec, body := args[0], args[1]
		if spec.Kind != values.KindBlock || body.Kind != values.KindBlock {
			return values.Cell{}, rerr.New(rerr.BadMake, "function expects [spec] [body] blocks")
		}
		keylist, err := rctx.Collect(ip.Tab, ip.Collector, spec.Ser, spec.Idx, nil, rctx.AnyWord)
		if err != nil {
			return values.Cell{}, err
		}
		bodyCopy := body.Ser.CopyDeep(values.IsEvaluativeBlockKind)
		fn := values.NewClosure(symtab.Sym0, keylist, bodyCopy)
		bind.BindRelativeDeep(ip.Tab, fn, bodyCopy, 0)
		return values.Cell{Kind: values.KindFunction, Obj: fn}, nil
	}
	ip.defineNative("function", []string{"spec", "body"}, makeFn)
	ip.defineNative("func", []string{"spec", "body"}, makeFn)
}

// datatypeKinds lists every Kind that gets a bare `<name>!` global
// word bound to its single-bit TYPESET! value — both the DATATYPE!
// operand PARSE's match vocabulary calls for (kind equality, since the
// mask holds exactly one bit) and the type argument MAKE dispatches
// on to tell "build a fresh object" from "extend an existing one".
var datatypeKinds = []values.Kind{
	values.KindVoid, values.KindBlank, values.KindLogic, values.KindInteger, values.KindDecimal, values.KindChar,
	values.KindWord, values.KindSetWord, values.KindGetWord, values.KindLitWord, values.KindRefinement,
	values.KindBlock, values.KindGroup, values.KindPath, values.KindSetPath, values.KindGetPath, values.KindLitPath,
	values.KindString, values.KindBinary, values.KindFile, values.KindTag, values.KindEmail,
	values.KindBitset, values.KindTypeset, values.KindFunction,
	values.KindObject, values.KindModule, values.KindPort, values.KindError,
}

func (ip *Interp) defineDatatypes() {
	for _, k := range datatypeKinds {
		sym := ip.Tab.Intern(k.String() + "!")
		ip.Define(sym, values.Typeset(sym, values.KindBit(k), 0))
	}
}

// defineContextConstructors wires MAKE for the two context-building
// forms the evaluator must support: `make object! [...]` builds a
// fresh context from the spec block alone, `make parent [...]`
// extends an existing one via rctx.MergeSelfish. Both paths run the
// spec block's SET-WORD!s for real, against the new context, so later
// entries can reference earlier ones the way a plain top-level DO
// would.
func (ip *Interp) defineContextConstructors() {
	ip.defineNative("make", []string{"type", "spec"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		typeArg, spec := args[0], args[1]
		if spec.Kind != values.KindBlock || spec.Ser == nil {
			return values.Cell{}, rerr.New(rerr.BadMake, "make expects a block of words and values")
		}

		if values.IsContextKind(typeArg.Kind) {
			parent, ok := typeArg.Obj.(*rctx.Context)
			if !ok {
				return values.Cell{}, rerr.New(rerr.BadMake, "make's parent argument carries no context")
			}
			return ip.makeChildObject(parent, spec)
		}
		if typeArg.Kind == values.KindTypeset && typeArg.Mask == values.KindBit(values.KindObject) {
			return ip.makeRootObject(spec)
		}
		return values.Cell{}, rerr.New(rerr.BadMake, "make's first argument must be object! or an existing object")
	})
}

// makeRootObject builds a brand new object context out of spec alone:
// collect its top-level SET-WORD!s (always reserving a SELF slot), bind
// them deep against the new context, then evaluate spec in place so its
// SET-WORD!s populate the var-list the same way a top-level DO would.
func (ip *Interp) makeRootObject(spec values.Cell) (values.Cell, error) {
	keylist, err := rctx.Collect(ip.Tab, ip.Collector, spec.Ser, spec.Idx, nil, rctx.EnsureSelf)
	if err != nil {
		return values.Cell{}, err
	}

	varlist := values.MakeArray(keylist.Len())
	varlist.AppendCell(values.Cell{Kind: values.KindObject})
	for i := 1; i < keylist.Len(); i++ {
		varlist.AppendCell(values.Blank())
	}
	ctx := rctx.FromSeries(values.KindObject, keylist, varlist)
	rctx.BindSelf(ip.Tab, ctx)

	bind.BindValuesCore(ip.Tab, spec.Ser, spec.Idx, ctx, true)
	if _, err := ip.Do(values.SeriesCell(values.KindBlock, spec.Ser, spec.Idx)); err != nil {
		return values.Cell{}, err
	}
	return values.Cell{Kind: values.KindObject, Obj: ctx}, nil
}

// makeChildObject builds spec as its own fresh object (exactly like
// makeRootObject) and folds it into parent via MergeSelfish, then
// rebinds any nested word reference the merge's cloned values carry
// from parent's or the child spec's own context to the merged one —
// the one step rctx can't do itself without importing internal/bind.
func (ip *Interp) makeChildObject(parent *rctx.Context, spec values.Cell) (values.Cell, error) {
	specResult, err := ip.makeRootObject(spec)
	if err != nil {
		return values.Cell{}, err
	}
	specCtx := specResult.Obj.(*rctx.Context)

	merged := rctx.MergeSelfish(ip.Tab, ip.Collector, parent, specCtx)
	bind.RebindValuesDeep(ip.Tab, merged.Varlist, 1, parent, merged, true)
	bind.RebindValuesDeep(ip.Tab, merged.Varlist, 1, specCtx, merged, true)

	return values.Cell{Kind: values.KindObject, Obj: merged}, nil
}

func (ip *Interp) defineMisc() {
	ip.defineNative("print", []string{"value"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		env.Print(args[0])
		return values.Void(), nil
	})

	// now returns the current Unix timestamp in seconds. DATE!/TIME!
	// values aren't implemented yet, so a caller wanting finer-grained
	// arithmetic reads ip.Clock.Now() directly rather than through this
	// native.
	ip.defineNative("now", nil, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		return values.Integer(ip.Clock.Now().Sec), nil
	})

	// parse matches rule (a block) against input and returns either the
	// LOGIC! of whether it ran to the series' end or the value a
	// RETURN rule inside it threw out instead.
	ip.defineNative("parse", []string{"input", "rule"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		return parse.Parse(ip.Tab, ip.Stack, ip, args[0], args[1])
	})

	// copy on an object! duplicates its var-list (and, lazily, its
	// key-list once either copy diverges) rather than aliasing the
	// source's storage; every other kind falls back to the series
	// layer's own shallow copy.
	ip.defineNative("copy", []string{"value"}, func(env *values.Env, args []values.Cell) (values.Cell, error) {
		v := args[0]
		if values.IsContextKind(v.Kind) {
			ctx, ok := v.Obj.(*rctx.Context)
			if !ok {
				return values.Cell{}, rerr.New(rerr.BadMake, "copy's argument carries no context")
			}
			return values.Cell{Kind: v.Kind, Obj: rctx.CopyShallow(ctx)}, nil
		}
		if (values.IsArrayKind(v.Kind) || values.IsStringKind(v.Kind)) && v.Ser != nil {
			out := v
			out.Ser = v.Ser.CopyShallow(0)
			return out, nil
		}
		return v, nil
	})
}
