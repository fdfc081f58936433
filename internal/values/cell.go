package values

import "rebolcore/internal/symtab"

// CellFlags are the header bits a cell can carry. Only typeset cells
// use all four; word cells use none of them today.
type CellFlags uint8

const (
	FlagHidden CellFlags = 1 << iota
	FlagCellLocked
	FlagLookback
	FlagUnbindable
)

// BindKind distinguishes the two binding forms: specific and relative.
type BindKind uint8

const (
	BindNone BindKind = iota
	BindSpecific
	BindRelative
)

// ContextRef is the minimal surface a word's specific binding needs
// from a context. internal/rctx.Context implements it; values itself
// never imports rctx, breaking what would otherwise be a Context/Cell
// import cycle (see DESIGN.md).
type ContextRef interface {
	// VarSlot returns the variable cell at the given 1-based index.
	VarSlot(index int) *Cell
	// Len returns N, the number of key/var slots (excluding slot 0).
	Len() int
	// Accessible reports whether the context's storage is still live
	// (a stack-relative context whose frame has popped is not).
	Accessible() bool
}

// Binding is the resolved location a bound word cell carries.
type Binding struct {
	Kind  BindKind
	Ctx   ContextRef // BindSpecific
	Fn    *Function  // BindRelative
	Index int         // 1-based into Ctx.VarSlot / the function's paramlist
}

// Cell is the fixed-size tagged value at the core of the system. Every one of
// the ~30 Kinds fills in a different subset of these fields; the
// struct is kept flat (instead of a Go union, which the language
// doesn't have) so that a Cell can be copied by value the way the
// source's REBVAL is, which is load-bearing for the series-of-cells
// representation of arrays.
type Cell struct {
	Kind  Kind
	Flags CellFlags

	Sym  symtab.Sym // word variants, typeset
	Bind Binding    // word variants only

	I int64   // integer, char (as rune), logic (0/1)
	D float64 // decimal

	Ser *Series // array/string-like kinds, bitset
	Idx int     // head-index into Ser

	Mask uint64 // typeset type mask

	// Obj carries the payload for kinds too large to inline: *Function
	// for KindFunction, an rctx-supplied context handle for KindObject,
	// KindModule and KindError, and an internal/port handle (not a
	// context) for KindPort.
	Obj interface{}
}

// End returns an END sentinel cell.
func End() Cell { return Cell{Kind: KindEnd} }

// Void returns the VOID cell.
func Void() Cell { return Cell{Kind: KindVoid} }

// Blank returns the BLANK cell.
func Blank() Cell { return Cell{Kind: KindBlank} }

// Logic returns a LOGIC cell.
func Logic(b bool) Cell {
	var i int64
	if b {
		i = 1
	}
	return Cell{Kind: KindLogic, I: i}
}

// Integer returns an INTEGER cell.
func Integer(n int64) Cell { return Cell{Kind: KindInteger, I: n} }

// Decimal returns a DECIMAL cell.
func Decimal(f float64) Cell { return Cell{Kind: KindDecimal, D: f} }

// CharCell returns a CHAR cell.
func CharCell(r rune) Cell { return Cell{Kind: KindChar, I: int64(r)} }

// Word returns an unbound word cell of the given word-variant kind.
func Word(kind Kind, sym symtab.Sym) Cell {
	return Cell{Kind: kind, Sym: sym}
}

// Series returns a series-backed cell (block/group/path variants or
// string/binary/file/tag/email) at the given head index.
func SeriesCell(kind Kind, ser *Series, idx int) Cell {
	return Cell{Kind: kind, Ser: ser, Idx: idx}
}

// Typeset returns a TYPESET cell.
func Typeset(sym symtab.Sym, mask uint64, flags CellFlags) Cell {
	return Cell{Kind: KindTypeset, Sym: sym, Mask: mask, Flags: flags}
}

// IsTruthy implements Rebol's two-value falsehood: only BLANK and a
// false LOGIC are falsey; everything else, including 0 and "", is
// truthy. VOID is not a value a word can hold, so it is never passed
// here by well-formed callers, but is treated as falsey defensively.
func (c Cell) IsTruthy() bool {
	switch c.Kind {
	case KindBlank, KindVoid, KindEnd:
		return false
	case KindLogic:
		return c.I != 0
	default:
		return true
	}
}

// Bound reports whether a word cell carries any binding.
func (c Cell) Bound() bool { return c.Bind.Kind != BindNone }

// Unbind clears a word cell's binding in place.
func (c *Cell) Unbind() { c.Bind = Binding{} }

// IsWord is a convenience wrapper over IsWordKind.
func (c Cell) IsWord() bool { return IsWordKind(c.Kind) }
