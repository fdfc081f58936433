package rctx

import (
	"testing"

	"rebolcore/internal/rerr"
	"rebolcore/internal/symtab"
	"rebolcore/internal/values"
)

func block(tab *symtab.Table, words ...string) *values.Series {
	s := values.MakeArray(len(words) + 1)
	for _, w := range words {
		kind := values.KindWord
		if len(w) > 0 && w[len(w)-1] == ':' {
			kind = values.KindSetWord
			w = w[:len(w)-1]
		}
		s.AppendCell(values.Word(kind, tab.Intern(w)))
	}
	return s
}

func TestCollectBasicSetWords(t *testing.T) {
	tab := symtab.New()
	c := NewCollector()
	b := block(tab, "a:", "b:", "1", "a:")

	kl, err := Collect(tab, c, b, 0, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// slot0 root + a + b == 3
	if kl.Len() != 3 {
		t.Fatalf("expected 3 slots (root+a+b), got %d", kl.Len())
	}
	if !c.Drained() {
		t.Fatalf("Collector must be drained after Collect returns")
	}
}

func TestCollectNoDupFails(t *testing.T) {
	tab := symtab.New()
	c := NewCollector()
	b := block(tab, "a:", "a:")

	_, err := Collect(tab, c, b, 0, nil, NoDup)
	if err == nil {
		t.Fatalf("expected dup-vars error")
	}
	if !rerr.Is(err, rerr.DupVars) {
		t.Fatalf("expected rerr.DupVars, got %v", err)
	}
	if !c.Drained() {
		t.Fatalf("Collector must drain even after a failed Collect")
	}
}

func TestCollectPreservesPriorSlots(t *testing.T) {
	tab := symtab.New()
	c := NewCollector()

	first := block(tab, "a:", "b:")
	kl1, err := Collect(tab, c, first, 0, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prior := FromSeries(values.KindObject, kl1, values.MakeArray(kl1.Len()+1))
	ExpandContext(prior, 0) // no-op, exercised for completeness
	for prior.Varlist.Len() < kl1.Len() {
		prior.Varlist.AppendCell(values.Blank())
	}

	second := block(tab, "b:", "c:")
	kl2, err := Collect(tab, c, second, 0, prior, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// a (slot1), b (slot2) preserved, c appended at slot3.
	if tab.Name(kl2.CellAt(1).Sym) != "a" || tab.Name(kl2.CellAt(2).Sym) != "b" {
		t.Fatalf("prior slot order not preserved: %v %v", kl2.CellAt(1).Sym, kl2.CellAt(2).Sym)
	}
	if kl2.Len() != 4 {
		t.Fatalf("expected 4 slots total (root+a+b+c), got %d", kl2.Len())
	}
}

func TestCollectDeepRecursesIntoBlocks(t *testing.T) {
	tab := symtab.New()
	c := NewCollector()

	inner := block(tab, "x:")
	outer := values.MakeArray(2)
	outer.AppendCell(values.SeriesCell(values.KindBlock, inner, 0))
	outer.AppendCell(values.Word(values.KindSetWord, tab.Intern("y")))

	kl, err := Collect(tab, c, outer, 0, nil, Deep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kl.Len() != 3 { // root + x + y
		t.Fatalf("expected root+x+y == 3 slots, got %d", kl.Len())
	}
}

func TestExpandContextCopiesSharedKeylist(t *testing.T) {
	tab := symtab.New()
	base := NewContext(values.KindObject, 2)
	base.Keylist.AppendCell(values.Typeset(tab.Intern("a"), values.AllTypesExceptVoid, 0))
	base.Varlist.AppendCell(values.Blank())

	dup := CopyShallow(base)
	if !base.Keylist.KeylistShared() {
		t.Fatalf("CopyShallow must mark the key-list shared")
	}
	if dup.Keylist != base.Keylist {
		t.Fatalf("shallow copy must alias the key-list until expansion")
	}

	ExpandContext(dup, 1)
	if dup.Keylist == base.Keylist {
		t.Fatalf("ExpandContext on a shared key-list must copy-on-write")
	}
	if dup.Keylist.KeylistShared() {
		t.Fatalf("the freshly copied key-list must not itself be marked shared")
	}
}

func TestResolveFindsSlotBySymbol(t *testing.T) {
	tab := symtab.New()
	ctx := NewContext(values.KindObject, 1)
	aSym := tab.Intern("a")
	ctx.Keylist.AppendCell(values.Typeset(aSym, values.AllTypesExceptVoid, 0))
	ctx.Varlist.AppendCell(values.Integer(42))

	idx := Resolve(tab, ctx, aSym)
	if idx != 1 {
		t.Fatalf("expected slot 1, got %d", idx)
	}
	if ctx.VarSlot(idx).I != 42 {
		t.Fatalf("VarSlot did not return the expected value")
	}
	if Resolve(tab, ctx, tab.Intern("nope")) != 0 {
		t.Fatalf("expected 0 for an absent symbol")
	}
}

func TestMergeSelfishOverridesExistingAndAppendsNew(t *testing.T) {
	tab := symtab.New()
	c := NewCollector()

	a := NewContext(values.KindObject, 1)
	aSym := tab.Intern("a")
	a.Keylist.AppendCell(values.Typeset(aSym, values.AllTypesExceptVoid, 0))
	a.Varlist.AppendCell(values.Integer(1))

	b := NewContext(values.KindObject, 2)
	bSym := tab.Intern("b")
	b.Keylist.AppendCell(values.Typeset(aSym, values.AllTypesExceptVoid, 0))
	b.Varlist.AppendCell(values.Integer(999))
	b.Keylist.AppendCell(values.Typeset(bSym, values.AllTypesExceptVoid, 0))
	b.Varlist.AppendCell(values.Integer(2))

	merged := MergeSelfish(tab, c, a, b)
	if !c.Drained() {
		t.Fatalf("Collector must be drained after MergeSelfish returns")
	}
	if merged.Len() != 2 {
		t.Fatalf("expected 2 total slots (a, b), got %d", merged.Len())
	}

	idx, ok := merged.FindWord(tab, aSym)
	if !ok {
		t.Fatalf("merged context must carry a's key")
	}
	if merged.VarSlot(idx).I != 999 {
		t.Fatalf("b's value must override a's for a shared key, got %d", merged.VarSlot(idx).I)
	}

	idx, ok = merged.FindWord(tab, bSym)
	if !ok {
		t.Fatalf("merged context must carry b's new key")
	}
	if merged.VarSlot(idx).I != 2 {
		t.Fatalf("b's new slot must carry b's value, got %d", merged.VarSlot(idx).I)
	}

	// a and b themselves must be untouched by the merge.
	if a.Len() != 1 || a.VarSlot(1).I != 1 {
		t.Fatalf("a must not be mutated by MergeSelfish")
	}
	if b.Len() != 2 || b.VarSlot(1).I != 999 {
		t.Fatalf("b must not be mutated by MergeSelfish")
	}
}

func TestMergeSelfishClonesBlockValues(t *testing.T) {
	tab := symtab.New()
	c := NewCollector()

	a := NewContext(values.KindObject, 1)
	xSym := tab.Intern("x")
	inner := values.MakeArray(1)
	inner.AppendCell(values.Integer(10))
	a.Keylist.AppendCell(values.Typeset(xSym, values.AllTypesExceptVoid, 0))
	a.Varlist.AppendCell(values.SeriesCell(values.KindBlock, inner, 0))

	b := NewContext(values.KindObject, 0)

	merged := MergeSelfish(tab, c, a, b)
	idx, ok := merged.FindWord(tab, xSym)
	if !ok {
		t.Fatalf("merged context must carry a's key")
	}
	mergedSer := merged.VarSlot(idx).Ser
	if mergedSer == inner {
		t.Fatalf("a clonable value must be deep-copied, not aliased, into the merged context")
	}
	mergedSer.CellAt(0).I = 99
	if inner.CellAt(0).I != 10 {
		t.Fatalf("mutating the merged context's copy must not affect a's original block")
	}
}
