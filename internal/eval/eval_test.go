package eval

import (
	"bytes"
	"context"
	"testing"

	"rebolcore/internal/clock"
	"rebolcore/internal/rctx"
	"rebolcore/internal/symtab"
	"rebolcore/internal/values"
)

// src builds a top-level source array out of already-constructed
// cells, the way a loader (internal/scan) would hand DoTopLevel an
// unbound array of cells straight off the wire.
func src(cells ...values.Cell) *values.Series {
	s := values.MakeArray(len(cells) + 1)
	for _, c := range cells {
		s.AppendCell(c)
	}
	return s
}

func block(cells ...values.Cell) values.Cell {
	return values.SeriesCell(values.KindBlock, src(cells...), 0)
}

func word(tab *symtab.Table, name string) values.Cell {
	return values.Word(values.KindWord, tab.Intern(name))
}

func setWord(tab *symtab.Table, name string) values.Cell {
	return values.Word(values.KindSetWord, tab.Intern(name))
}

func TestEvalArithmeticSetWordAndFetch(t *testing.T) {
	var out bytes.Buffer
	ip := New(&out)
	tab := ip.Tab

	program := src(
		setWord(tab, "x"),
		word(tab, "add"),
		values.Integer(2),
		values.Integer(3),
		word(tab, "print"),
		word(tab, "x"),
		word(tab, "x"),
	)

	result, err := ip.DoTopLevel(context.Background(), program)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != values.KindInteger || result.I != 5 {
		t.Fatalf("expected integer 5, got %v", result)
	}
	if out.String() != "5\n" {
		t.Fatalf("expected print output \"5\\n\", got %q", out.String())
	}
}

func TestEvalEitherBranchesOnCondition(t *testing.T) {
	var out bytes.Buffer
	ip := New(&out)
	tab := ip.Tab

	program := src(
		word(tab, "either"),
		word(tab, "greater?"),
		values.Integer(5),
		values.Integer(3),
		block(values.Integer(1)),
		block(values.Integer(2)),
	)

	result, err := ip.DoTopLevel(context.Background(), program)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.I != 1 {
		t.Fatalf("expected the true branch's value 1, got %v", result)
	}
}

func TestEvalWhileLoopMutatesCounter(t *testing.T) {
	var out bytes.Buffer
	ip := New(&out)
	tab := ip.Tab

	condBlock := block(word(tab, "lesser?"), word(tab, "i"), values.Integer(3))
	bodyBlock := block(setWord(tab, "i"), word(tab, "add"), word(tab, "i"), values.Integer(1))

	program := src(
		setWord(tab, "i"),
		values.Integer(0),
		word(tab, "while"),
		condBlock,
		bodyBlock,
		word(tab, "i"),
	)

	result, err := ip.DoTopLevel(context.Background(), program)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.I != 3 {
		t.Fatalf("expected i to reach 3, got %v", result)
	}
}

func TestEvalFunctionDefinitionCallAndReturn(t *testing.T) {
	var out bytes.Buffer
	ip := New(&out)
	tab := ip.Tab

	spec := block(word(tab, "n"))
	body := block(word(tab, "return"), word(tab, "add"), word(tab, "n"), values.Integer(1))

	program := src(
		setWord(tab, "add-one"),
		word(tab, "function"),
		spec,
		body,
		word(tab, "add-one"),
		values.Integer(5),
	)

	result, err := ip.DoTopLevel(context.Background(), program)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != values.KindInteger || result.I != 6 {
		t.Fatalf("expected 6, got %v", result)
	}
}

func TestEvalUnboundWordErrors(t *testing.T) {
	var out bytes.Buffer
	ip := New(&out)
	tab := ip.Tab

	program := src(word(tab, "nonexistent"))
	if _, err := ip.DoTopLevel(context.Background(), program); err == nil {
		t.Fatalf("expected an error resolving an undeclared word")
	}
}

func TestEvalGroupEvaluatesInline(t *testing.T) {
	var out bytes.Buffer
	ip := New(&out)
	tab := ip.Tab

	group := values.SeriesCell(values.KindGroup, src(word(tab, "add"), values.Integer(1), values.Integer(2)), 0)
	program := src(word(tab, "add"), group, values.Integer(10))

	result, err := ip.DoTopLevel(context.Background(), program)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.I != 13 {
		t.Fatalf("expected (1+2)+10 = 13, got %v", result)
	}
}

func TestEvalNowReadsInjectedClock(t *testing.T) {
	var out bytes.Buffer
	ip := New(&out)
	tab := ip.Tab
	ip.Clock = clock.Fixed{Stamp: clock.Stamp{Sec: 1700000000}}

	program := src(word(tab, "now"))
	result, err := ip.DoTopLevel(context.Background(), program)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != values.KindInteger || result.I != 1700000000 {
		t.Fatalf("expected the fixed clock's timestamp, got %v", result)
	}
}

func TestEvalMakeObjectConstructsSelfReferencingContext(t *testing.T) {
	var out bytes.Buffer
	ip := New(&out)
	tab := ip.Tab

	spec := block(setWord(tab, "a"), values.Integer(10), setWord(tab, "b"), values.Integer(20))
	program := src(
		word(tab, "make"),
		word(tab, "object!"),
		spec,
	)

	result, err := ip.DoTopLevel(context.Background(), program)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != values.KindObject {
		t.Fatalf("expected an object!, got %v", result.Kind)
	}
	ctx, ok := result.Obj.(*rctx.Context)
	if !ok {
		t.Fatalf("object cell carries no context")
	}
	if ctx.Len() != 3 {
		t.Fatalf("expected 3 slots (self, a, b), got %d", ctx.Len())
	}

	aIdx, ok := ctx.FindWord(tab, tab.Intern("a"))
	if !ok || ctx.VarSlot(aIdx).I != 10 {
		t.Fatalf("expected a = 10")
	}
	bIdx, ok := ctx.FindWord(tab, tab.Intern("b"))
	if !ok || ctx.VarSlot(bIdx).I != 20 {
		t.Fatalf("expected b = 20")
	}

	selfIdx, ok := ctx.FindWord(tab, tab.Intern("self"))
	if !ok {
		t.Fatalf("expected a hidden self key")
	}
	if ctx.KeyAt(selfIdx).Flags&values.FlagHidden == 0 {
		t.Fatalf("self key must be hidden")
	}
	selfVal := ctx.VarSlot(selfIdx)
	if got, ok := selfVal.Obj.(*rctx.Context); !ok || got != ctx {
		t.Fatalf("self slot must point back at its own context")
	}
}

func TestEvalMakeParentBuildsIsolatedChild(t *testing.T) {
	var out bytes.Buffer
	ip := New(&out)
	tab := ip.Tab

	parentSpec := block(setWord(tab, "x"), values.Integer(1), setWord(tab, "y"), values.Integer(2))
	parentResult, err := ip.DoTopLevel(context.Background(), src(
		setWord(tab, "parent"),
		word(tab, "make"),
		word(tab, "object!"),
		parentSpec,
	))
	if err != nil {
		t.Fatalf("unexpected error building parent: %v", err)
	}
	parent := parentResult.Obj.(*rctx.Context)

	childSpec := block(setWord(tab, "y"), values.Integer(20), setWord(tab, "z"), values.Integer(3))
	childResult, err := ip.DoTopLevel(context.Background(), src(
		setWord(tab, "child"),
		word(tab, "make"),
		word(tab, "parent"),
		childSpec,
	))
	if err != nil {
		t.Fatalf("unexpected error building child: %v", err)
	}
	if childResult.Kind != values.KindObject {
		t.Fatalf("expected an object!, got %v", childResult.Kind)
	}
	child := childResult.Obj.(*rctx.Context)

	if child.Len() != 4 {
		t.Fatalf("expected 4 slots (self, x, y, z), got %d", child.Len())
	}

	xIdx, ok := child.FindWord(tab, tab.Intern("x"))
	if !ok || child.VarSlot(xIdx).I != 1 {
		t.Fatalf("expected inherited x = 1")
	}
	yIdx, ok := child.FindWord(tab, tab.Intern("y"))
	if !ok || child.VarSlot(yIdx).I != 20 {
		t.Fatalf("expected overridden y = 20, got %v", child.VarSlot(yIdx))
	}
	zIdx, ok := child.FindWord(tab, tab.Intern("z"))
	if !ok || child.VarSlot(zIdx).I != 3 {
		t.Fatalf("expected new z = 3")
	}

	selfIdx, ok := child.FindWord(tab, tab.Intern("self"))
	if !ok {
		t.Fatalf("expected a hidden self key")
	}
	if got, ok := child.VarSlot(selfIdx).Obj.(*rctx.Context); !ok || got != child {
		t.Fatalf("child's self slot must point back at child, not parent")
	}

	// Mutating parent's x afterwards must not be visible through child.
	*parent.VarSlot(parent.IndexOf(tab, tab.Intern("x"))) = values.Integer(999)
	if child.VarSlot(xIdx).I != 1 {
		t.Fatalf("child's x must stay isolated from parent, got %v", child.VarSlot(xIdx).I)
	}
}

func TestEvalCopyObjectDuplicatesVarlist(t *testing.T) {
	var out bytes.Buffer
	ip := New(&out)
	tab := ip.Tab

	spec := block(setWord(tab, "a"), values.Integer(1))
	program := src(
		setWord(tab, "orig"),
		word(tab, "make"),
		word(tab, "object!"),
		spec,
		word(tab, "copy"),
		word(tab, "orig"),
	)

	result, err := ip.DoTopLevel(context.Background(), program)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dup := result.Obj.(*rctx.Context)

	origIdx, _ := ip.Root.FindWord(tab, tab.Intern("orig"))
	orig := ip.Root.VarSlot(origIdx).Obj.(*rctx.Context)
	if dup == orig {
		t.Fatalf("copy must return a distinct context, not the original")
	}

	aIdx, ok := dup.FindWord(tab, tab.Intern("a"))
	if !ok || dup.VarSlot(aIdx).I != 1 {
		t.Fatalf("copy must carry over the original's values")
	}

	*dup.VarSlot(aIdx) = values.Integer(99)
	origAIdx, _ := orig.FindWord(tab, tab.Intern("a"))
	if orig.VarSlot(origAIdx).I != 1 {
		t.Fatalf("mutating the copy must not affect the original")
	}
}
