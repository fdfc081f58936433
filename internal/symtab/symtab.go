// Package symtab interns the identifiers that flow through the rest of
// the interpreter as small integers ("symbols") instead of strings.
package symtab

import "strings"

// Sym identifies an interned name. Sym0 is the reserved "no symbol"
// sentinel used as the root key of an empty key-list.
type Sym int

// Sym0 is the reserved sentinel meaning "no symbol".
const Sym0 Sym = 0

// Table is a process-wide, append-only symbol table. The zero value is
// not usable; construct one with New.
type Table struct {
	names  []string       // Sym -> original spelling
	canon  []Sym          // Sym -> canonical (case-folded) Sym
	byName map[string]Sym // exact spelling -> Sym
	byFold map[string]Sym // case-folded spelling -> canonical Sym
}

// New returns a Table with Sym0 already reserved.
func New() *Table {
	t := &Table{
		names:  make([]string, 1, 64),
		canon:  make([]Sym, 1, 64),
		byName: make(map[string]Sym, 64),
		byFold: make(map[string]Sym, 64),
	}
	t.names[0] = ""
	t.canon[0] = Sym0
	return t
}

// Intern returns the Sym for name, creating it if this is the first
// time this exact spelling has been seen. Symbols are never freed.
func (t *Table) Intern(name string) Sym {
	if s, ok := t.byName[name]; ok {
		return s
	}
	fold := strings.ToLower(name)
	canon, hasFold := t.byFold[fold]

	id := Sym(len(t.names))
	t.names = append(t.names, name)
	if hasFold {
		t.canon = append(t.canon, canon)
	} else {
		// First spelling of this fold family becomes its own canon.
		t.canon = append(t.canon, id)
		t.byFold[fold] = id
	}
	t.byName[name] = id
	return id
}

// Lookup returns the Sym for name without interning it.
func (t *Table) Lookup(name string) (Sym, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Canon returns the canonical (case-folded representative) symbol for s.
func (t *Table) Canon(s Sym) Sym {
	if int(s) < 0 || int(s) >= len(t.canon) {
		return Sym0
	}
	return t.canon[s]
}

// Name returns the original spelling a symbol was interned with.
func (t *Table) Name(s Sym) string {
	if int(s) < 0 || int(s) >= len(t.names) {
		return ""
	}
	return t.names[s]
}

// SameCanon reports whether a and b fold to the same canonical symbol.
func (t *Table) SameCanon(a, b Sym) bool {
	return t.Canon(a) == t.Canon(b)
}
