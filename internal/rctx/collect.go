package rctx

import (
	"rebolcore/internal/rerr"
	"rebolcore/internal/symtab"
	"rebolcore/internal/values"
)

// Flags control what Collect gathers out of a block of words.
type Flags uint8

const (
	// AnyWord collects every word-kind cell, not just SET-WORD!.
	AnyWord Flags = 1 << iota
	// Deep recurses into nested BLOCK!/GROUP! cells.
	Deep
	// EnsureSelf guarantees a "self" slot exists even if the input
	// never mentions it (object-of-object use case).
	EnsureSelf
	// NoDup fails instead of silently ignoring a repeated symbol.
	NoDup
)

// Collector is the scratch state Collect reuses across calls: a
// bind-table mapping symbol -> tentative slot index, and BUF_COLLECT,
// the growable typeset buffer being assembled into a new key-list.
// This is per-interpreter-instance state, never a package global, so
// that two interpreters collecting concurrently never see each
// other's half-built table.
type Collector struct {
	table map[symtab.Sym]int
	buf   *values.Series
}

// NewCollector returns a drained Collector ready for use.
func NewCollector() *Collector {
	return &Collector{table: make(map[symtab.Sym]int), buf: values.MakeArray(8)}
}

// get returns the tentative slot for canon, or 0 (meaning "not yet
// seen") if absent — mirroring the bind-table's use of 0 as "unbound"
// sentinel, the same convention symtab.Sym0 uses for symbols.
func (c *Collector) get(canon symtab.Sym) int { return c.table[canon] }

func (c *Collector) set(canon symtab.Sym, idx int) {
	if idx == 0 {
		delete(c.table, canon)
	} else {
		c.table[canon] = idx
	}
}

// Drained reports whether the bind-table and BUF_COLLECT have been
// fully emptied, the precondition Start enforces: Collect panics if
// the scratch buffer was not drained by a matching End.
func (c *Collector) Drained() bool {
	return len(c.table) == 0 && c.buf.Len() == 0
}

func (c *Collector) start() {
	if !c.Drained() {
		panic("rctx: Collector reused before the previous Collect drained it")
	}
}

// end wipes the bind-table and replaces BUF_COLLECT with a fresh
// buffer, regardless of success or failure of the collect that just
// ran — the draining step is unconditional.
func (c *Collector) end() {
	for k := range c.table {
		delete(c.table, k)
	}
	c.buf = values.MakeArray(8)
}

// Collect walks head starting at startIdx and builds a new key-list
// out of the words it finds, via an eight-step algorithm:
//
//  1. Start: the Collector must already be drained.
//  2. Place the SYM_0 root key at slot 0 of BUF_COLLECT.
//  3. If EnsureSelf is set and prior doesn't already bind "self",
//     reserve a hidden self slot.
//  4. Copy prior's existing keys first, so an extended context keeps
//     its original slot numbers.
//  5. Walk the input recording each newly-seen word (or, with Deep,
//     recursing into nested blocks) as a typeset defaulting to
//     AllTypesExceptVoid.
//  6. A duplicate is ignored unless NoDup is set, in which case the
//     whole collect fails with rerr.DupVars.
//  7. Produce the result: prior's own key-list verbatim if nothing
//     new was added, otherwise a fresh copy of BUF_COLLECT.
//  8. End: drain the bind-table and BUF_COLLECT unconditionally.
func Collect(tab *symtab.Table, c *Collector, head *values.Series, startIdx int, prior *Context, flags Flags) (keylist *values.Series, err error) {
	c.start()
	defer c.end()

	selfSym := tab.Intern("self")

	// Step 2: root key.
	c.buf.AppendCell(values.Typeset(symtab.Sym0, 0, 0))

	// Step 3: ensure self.
	if flags&EnsureSelf != 0 {
		hasSelf := prior != nil && prior.IndexOf(tab, selfSym) != 0
		if !hasSelf {
			c.buf.AppendCell(values.Typeset(selfSym, values.AllTypesExceptVoid, values.FlagHidden))
			c.set(tab.Canon(selfSym), c.buf.Len()-1)
		}
	}

	// Step 4: copy prior's keys verbatim, preserving slot numbers.
	if prior != nil {
		for i := 1; i <= prior.Len(); i++ {
			key := *prior.Keylist.CellAt(i)
			c.buf.AppendCell(key)
			c.set(tab.Canon(key.Sym), c.buf.Len()-1)
		}
	}

	// Step 5/6: walk the input.
	if walkErr := collectWalk(tab, c, head, startIdx, flags); walkErr != nil {
		return nil, walkErr
	}

	// Step 7: reuse prior's key-list untouched if nothing new appeared.
	if prior != nil && c.buf.Len() == prior.Len()+1 {
		return prior.Keylist, nil
	}
	return c.buf.CopyShallow(0), nil
}

// collectWalk implements step 5/6 without touching Start/End, so it
// can also be invoked recursively for COLLECT_DEEP without disturbing
// the enclosing call's in-progress bind-table.
func collectWalk(tab *symtab.Table, c *Collector, head *values.Series, startIdx int, flags Flags) error {
	for i := startIdx; ; i++ {
		cell := head.CellAt(i)
		if cell.Kind == values.KindEnd {
			return nil
		}
		switch {
		case cell.IsWord():
			eligible := flags&AnyWord != 0 || cell.Kind == values.KindSetWord
			if !eligible {
				continue
			}
			canon := tab.Canon(cell.Sym)
			if c.get(canon) != 0 {
				if flags&NoDup != 0 {
					return rerr.New(rerr.DupVars, "duplicate variable %q in collected context", tab.Name(cell.Sym)).
						WithLocation("collect", i)
				}
				continue
			}
			c.buf.AppendCell(values.Typeset(cell.Sym, values.AllTypesExceptVoid, 0))
			c.set(canon, c.buf.Len()-1)
		case flags&Deep != 0 && values.IsEvaluativeBlockKind(cell.Kind) && cell.Ser != nil:
			if err := collectWalk(tab, c, cell.Ser, cell.Idx, flags); err != nil {
				return err
			}
		}
	}
}
