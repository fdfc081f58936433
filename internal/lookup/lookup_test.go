package lookup

import (
	"testing"

	"rebolcore/internal/frame"
	"rebolcore/internal/rctx"
	"rebolcore/internal/rerr"
	"rebolcore/internal/symtab"
	"rebolcore/internal/values"
)

func TestGetVarUnbound(t *testing.T) {
	w := values.Word(values.KindWord, 1)
	_, err := GetVar(frame.NewStack(), &w)
	if !rerr.Is(err, rerr.NotBound) {
		t.Fatalf("expected NotBound, got %v", err)
	}
}

func TestGetVarSpecific(t *testing.T) {
	tab := symtab.New()
	ctx := rctx.NewContext(values.KindObject, 1)
	aSym := tab.Intern("a")
	ctx.Keylist.AppendCell(values.Typeset(aSym, values.AllTypesExceptVoid, 0))
	ctx.Varlist.AppendCell(values.Integer(42))

	w := values.Word(values.KindWord, aSym)
	w.Bind = values.Binding{Kind: values.BindSpecific, Ctx: ctx, Index: 1}

	slot, err := GetVar(frame.NewStack(), &w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.I != 42 {
		t.Fatalf("expected 42, got %v", slot.I)
	}
}

func TestGetVarSpecificInaccessible(t *testing.T) {
	tab := symtab.New()
	ctx := rctx.NewContext(values.KindObject, 1)
	aSym := tab.Intern("a")
	ctx.Keylist.AppendCell(values.Typeset(aSym, values.AllTypesExceptVoid, 0))
	ctx.Varlist.AppendCell(values.Integer(1))
	ctx.Deaccessible()

	w := values.Word(values.KindWord, aSym)
	w.Bind = values.Binding{Kind: values.BindSpecific, Ctx: ctx, Index: 1}

	_, err := GetVar(frame.NewStack(), &w)
	if !rerr.Is(err, rerr.VarlessWord) {
		t.Fatalf("expected VarlessWord, got %v", err)
	}
}

func TestGetVarRelativeNoFrame(t *testing.T) {
	tab := symtab.New()
	fn := values.NewNative(tab.Intern("f"), []symtab.Sym{tab.Intern("x")}, nil)
	w := values.Word(values.KindWord, tab.Intern("x"))
	w.Bind = values.Binding{Kind: values.BindRelative, Fn: fn, Index: 1}

	_, err := GetVar(frame.NewStack(), &w)
	if !rerr.Is(err, rerr.NoRelative) {
		t.Fatalf("expected NoRelative, got %v", err)
	}
}

func TestGetVarRelativeWithRunningFrame(t *testing.T) {
	tab := symtab.New()
	xSym := tab.Intern("x")
	fn := values.NewNative(tab.Intern("f"), []symtab.Sym{xSym}, nil)

	stack := frame.NewStack()
	stack.Push(&frame.Frame{
		Source:   values.MakeArray(1),
		Mode:     frame.ModeFunctionBody,
		Function: fn,
		Args:     []values.Cell{values.Integer(99)},
	})

	w := values.Word(values.KindWord, xSym)
	w.Bind = values.Binding{Kind: values.BindRelative, Fn: fn, Index: 1}

	slot, err := GetVar(stack, &w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.I != 99 {
		t.Fatalf("expected 99, got %v", slot.I)
	}
}

func TestSetVarLockedFails(t *testing.T) {
	tab := symtab.New()
	ctx := rctx.NewContext(values.KindObject, 1)
	aSym := tab.Intern("a")
	ctx.Keylist.AppendCell(values.Typeset(aSym, values.AllTypesExceptVoid, 0))
	locked := values.Integer(1)
	locked.Flags |= values.FlagCellLocked
	ctx.Varlist.AppendCell(locked)

	w := values.Word(values.KindWord, aSym)
	w.Bind = values.Binding{Kind: values.BindSpecific, Ctx: ctx, Index: 1}

	err := SetVar(frame.NewStack(), &w, values.Integer(2))
	if !rerr.Is(err, rerr.LockedWord) {
		t.Fatalf("expected LockedWord, got %v", err)
	}
}

func TestSetVarWritesThrough(t *testing.T) {
	tab := symtab.New()
	ctx := rctx.NewContext(values.KindObject, 1)
	aSym := tab.Intern("a")
	ctx.Keylist.AppendCell(values.Typeset(aSym, values.AllTypesExceptVoid, 0))
	ctx.Varlist.AppendCell(values.Integer(1))

	w := values.Word(values.KindWord, aSym)
	w.Bind = values.Binding{Kind: values.BindSpecific, Ctx: ctx, Index: 1}

	if err := SetVar(frame.NewStack(), &w, values.Integer(7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.VarSlot(1).I != 7 {
		t.Fatalf("expected variable to be updated to 7")
	}
}
