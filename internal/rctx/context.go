// Package rctx implements the context (object/module/port/error body)
// representation: a paired key-list and var-list, with copy-on-write
// key-list sharing and the key-collection scratch buffer used while
// building one from a block of words.
package rctx

import (
	"rebolcore/internal/symtab"
	"rebolcore/internal/values"
)

// Context is a var-list/key-list pair. Slot 0 of the var-list holds a
// cell that points back at the Context itself (the "self" slot
// required by values.ContextRef's self-reference convention); slot 0
// of the key-list holds the SYM_0 root key. Slots 1..N are the actual
// bindings.
type Context struct {
	Varlist *values.Series
	Keylist *values.Series

	// live is false once a stack-relative context's owning frame has
	// popped; Accessible() reports its negation. Heap-allocated
	// contexts (objects, modules, ports, errors) never flip this.
	live bool
}

// NewContext allocates a fresh context of the given self-kind
// (KindObject, KindModule, KindPort, or KindError) with room for
// `capacity` additional slots beyond the self slot.
func NewContext(selfKind values.Kind, capacity int) *Context {
	kl := values.MakeArray(capacity + 1)
	kl.AppendCell(values.Typeset(symtab.Sym0, 0, 0))

	vl := values.MakeArray(capacity + 1)
	vl.AppendCell(values.Cell{Kind: selfKind})
	vl.MarkContextVarlist()

	ctx := &Context{Varlist: vl, Keylist: kl, live: true}
	vl.CellAt(0).Obj = ctx
	return ctx
}

// FromSeries wraps an already-built key-list/var-list pair (e.g. the
// output of Collect) into a Context, fixing up the self-referring
// slot-0 cell.
func FromSeries(selfKind values.Kind, keylist, varlist *values.Series) *Context {
	ctx := &Context{Varlist: varlist, Keylist: keylist, live: true}
	if varlist.Len() == 0 {
		varlist.AppendCell(values.Cell{Kind: selfKind})
	}
	varlist.MarkContextVarlist()
	varlist.CellAt(0).Kind = selfKind
	varlist.CellAt(0).Obj = ctx
	return ctx
}

// VarSlot implements values.ContextRef.
func (c *Context) VarSlot(index int) *values.Cell { return c.Varlist.CellAt(index) }

// Len implements values.ContextRef: the number of key/var pairs,
// excluding the self slot.
func (c *Context) Len() int { return c.Varlist.Len() - 1 }

// Accessible implements values.ContextRef.
func (c *Context) Accessible() bool { return c.live }

// Deaccessible marks a stack-relative context's storage as gone once
// its owning frame pops.
func (c *Context) Deaccessible() { c.live = false }

// KeyAt returns the typeset cell describing slot i's symbol and type
// constraint.
func (c *Context) KeyAt(i int) *values.Cell { return c.Keylist.CellAt(i) }

// IndexOf returns the 1-based slot of sym, or 0 if absent.
func (c *Context) IndexOf(tab *symtab.Table, sym symtab.Sym) int {
	canon := tab.Canon(sym)
	for i := 1; i <= c.Len(); i++ {
		if tab.SameCanon(c.Keylist.CellAt(i).Sym, canon) {
			return i
		}
	}
	return 0
}

// FindWord is IndexOf with the ambiguity of a bare 0 return resolved:
// the historical "0 means not found, but slot 0 is also the self
// slot" overload doesn't survive translation cleanly, so callers that
// want a definite found/not-found answer use this instead of checking
// IndexOf's result against zero by hand.
func (c *Context) FindWord(tab *symtab.Table, sym symtab.Sym) (index int, ok bool) {
	idx := c.IndexOf(tab, sym)
	return idx, idx != 0
}

// ExpandContext grows a context by delta slots, copying the key-list
// first if it is shared with another context: two contexts may start out
// pointing at the identical key-list (e.g. an object and the duplicate
// CopyShallow made of it), but the
// moment one of them needs new keys it must stop aliasing the other.
func ExpandContext(ctx *Context, delta int) {
	if delta <= 0 {
		return
	}
	ctx.Varlist.ExpandTail(delta)
	if ctx.Keylist.KeylistShared() {
		fresh := ctx.Keylist.CopyShallow(delta)
		fresh.ClearKeylistShared()
		ctx.Keylist = fresh
	} else {
		ctx.Keylist.ExpandTail(delta)
	}
}

// CopyShallow duplicates a context's var-list (and key-list, marking
// both copies as sharing it) without descending into nested blocks.
func CopyShallow(ctx *Context) *Context {
	newVarlist := ctx.Varlist.CopyShallow(0)
	ctx.Keylist.MarkKeylistShared()
	dup := &Context{Varlist: newVarlist, Keylist: ctx.Keylist, live: true}
	newVarlist.CellAt(0).Obj = dup
	return dup
}

// clonable reports whether v's payload is a series that must be
// duplicated, not shared, when its value moves into a new context —
// every array and string-like kind.
func clonable(k values.Kind) bool {
	return values.IsArrayKind(k) || values.IsStringKind(k)
}

// cloneValue deep-copies v's backing series when v is clonable,
// recursing into nested evaluative blocks the same way a function
// body is copied at FUNCTION-creation time. Non-clonable kinds (and
// already-unset slots) pass through unchanged.
func cloneValue(v values.Cell) values.Cell {
	if !clonable(v.Kind) || v.Ser == nil {
		return v
	}
	out := v
	out.Ser = v.Ser.CopyDeep(values.IsEvaluativeBlockKind)
	return out
}

// BindSelf sets ctx's named "self" slot, if EnsureSelf reserved one in
// its key-list, to a value that points back at ctx itself — distinct
// from the var-list's slot-0 back-pointer, which values.ContextRef
// uses internally and which a rule body never names directly. A
// context built without EnsureSelf (no "self" key) is left alone.
func BindSelf(tab *symtab.Table, ctx *Context) {
	selfKind := ctx.Varlist.CellAt(0).Kind
	if idx, ok := ctx.FindWord(tab, tab.Intern("self")); ok {
		*ctx.Varlist.CellAt(idx) = values.Cell{Kind: selfKind, Obj: ctx}
	}
}

// MergeSelfish implements `make a [b-spec]`'s object-extension step:
// it collects a's keys, then b's keys that a doesn't already have,
// into a brand new context; copies a's values into the matching
// slots; then overwrites every slot b also names (whether inherited
// from a or freshly added) with b's value, deep-copying clonable
// values so the new context never aliases a's or b's series storage.
// a and b are left untouched. The caller still owes the merged
// context one more pass: bind.RebindValuesDeep against a and then
// against b over merged.Varlist, retargeting any nested word
// reference the cloned values carry from a's or b's slots to the
// merged context's — rctx cannot call that itself without an import
// cycle (package bind already imports rctx).
func MergeSelfish(tab *symtab.Table, c *Collector, a, b *Context) *Context {
	c.start()
	defer c.end()

	selfKind := a.Varlist.CellAt(0).Kind
	selfSym := tab.Intern("self")

	c.buf.AppendCell(values.Typeset(symtab.Sym0, 0, 0))
	for i := 1; i <= a.Len(); i++ {
		key := *a.Keylist.CellAt(i)
		c.buf.AppendCell(key)
		c.set(tab.Canon(key.Sym), c.buf.Len()-1)
	}
	for i := 1; i <= b.Len(); i++ {
		key := *b.Keylist.CellAt(i)
		canon := tab.Canon(key.Sym)
		if c.get(canon) != 0 {
			continue
		}
		c.buf.AppendCell(key)
		c.set(canon, c.buf.Len()-1)
	}

	mergedKeys := c.buf.CopyShallow(0)

	varlist := values.MakeArray(mergedKeys.Len())
	varlist.AppendCell(values.Cell{Kind: selfKind})
	for i := 1; i < mergedKeys.Len(); i++ {
		varlist.AppendCell(values.Blank())
	}
	varlist.MarkContextVarlist()
	merged := &Context{Varlist: varlist, Keylist: mergedKeys, live: true}
	varlist.CellAt(0).Obj = merged

	for i := 1; i <= a.Len(); i++ {
		if tab.SameCanon(a.Keylist.CellAt(i).Sym, selfSym) {
			continue
		}
		*merged.Varlist.CellAt(i) = cloneValue(*a.Varlist.CellAt(i))
	}
	for i := 1; i <= b.Len(); i++ {
		if tab.SameCanon(b.Keylist.CellAt(i).Sym, selfSym) {
			continue
		}
		slot, ok := merged.FindWord(tab, b.Keylist.CellAt(i).Sym)
		if !ok {
			continue
		}
		*merged.Varlist.CellAt(slot) = cloneValue(*b.Varlist.CellAt(i))
	}

	BindSelf(tab, merged)
	return merged
}

// SyncKeylist adopts newKeylist (typically the output of Collect with
// ctx as prior) as ctx's key-list, growing ctx's var-list with blank
// cells for whatever new slots newKeylist added beyond ctx's current
// length. It is a no-op if newKeylist is already ctx's own key-list.
func SyncKeylist(ctx *Context, newKeylist *values.Series) {
	if newKeylist == ctx.Keylist {
		return
	}
	delta := (newKeylist.Len() - 1) - ctx.Len()
	ctx.Keylist = newKeylist
	for delta > 0 {
		ctx.Varlist.AppendCell(values.Blank())
		delta--
	}
}

// Resolve looks up sym in ctx and returns its 1-based slot, or 0 if
// absent; it runs the same search as IndexOf and never skips a match.
// It does not copy values from one context into another, takes no
// only-words, all or expand options, and does not use the Collector.
func Resolve(tab *symtab.Table, ctx *Context, sym symtab.Sym) int {
	return ctx.IndexOf(tab, sym)
}
