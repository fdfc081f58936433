// Package mold implements the external printer interface: turning a
// value cell into its textual form, the way PRINT, PROBE, and the
// REPL's result echo all present a value to a human.
package mold

import (
	"fmt"
	"strconv"
	"strings"

	"rebolcore/internal/symtab"
	"rebolcore/internal/values"
)

// Mold renders c the way the source would need to read to produce it
// again (blocks bracketed, strings quoted); Form (below) renders the
// human-readable variant PRINT uses (strings unquoted).
func Mold(tab *symtab.Table, c values.Cell) string {
	return render(tab, c, true)
}

// Form renders c for human-facing output: strings and words appear
// bare, without mold-level quoting.
func Form(tab *symtab.Table, c values.Cell) string {
	return render(tab, c, false)
}

func render(tab *symtab.Table, c values.Cell, quote bool) string {
	switch c.Kind {
	case values.KindEnd:
		return ""
	case values.KindVoid:
		return ""
	case values.KindBlank:
		return "_"
	case values.KindLogic:
		if c.I != 0 {
			return "true"
		}
		return "false"
	case values.KindInteger:
		return strconv.FormatInt(c.I, 10)
	case values.KindDecimal:
		return strconv.FormatFloat(c.D, 'g', -1, 64)
	case values.KindChar:
		if quote {
			return "#\"" + string(rune(c.I)) + "\""
		}
		return string(rune(c.I))

	case values.KindWord, values.KindGetWord, values.KindSetWord, values.KindLitWord, values.KindRefinement:
		name := tab.Name(c.Sym)
		switch c.Kind {
		case values.KindGetWord:
			return ":" + name
		case values.KindSetWord:
			return name + ":"
		case values.KindLitWord:
			return "'" + name
		case values.KindRefinement:
			return "/" + name
		default:
			return name
		}

	case values.KindBlock, values.KindGroup:
		open, close := "[", "]"
		if c.Kind == values.KindGroup {
			open, close = "(", ")"
		}
		return open + moldSeries(tab, c.Ser, c.Idx, quote) + close

	case values.KindPath, values.KindSetPath, values.KindGetPath, values.KindLitPath:
		return moldPath(tab, c, quote)

	case values.KindString:
		s := stringOf(c)
		if quote {
			return "\"" + s + "\""
		}
		return s
	case values.KindBinary, values.KindFile, values.KindTag, values.KindEmail:
		return stringOf(c)

	case values.KindBitset:
		return "make bitset! []"
	case values.KindTypeset:
		return "make typeset! [" + tab.Name(c.Sym) + "]"
	case values.KindFunction:
		return "make function! []"

	case values.KindObject:
		return "make object! []"
	case values.KindModule:
		return "make module! []"
	case values.KindPort:
		return "make port! []"
	case values.KindError:
		return "make error! []"

	default:
		return fmt.Sprintf("<unknown:%s>", c.Kind)
	}
}

func stringOf(c values.Cell) string {
	if c.Ser == nil {
		return ""
	}
	b := c.Ser.Bytes()
	if c.Idx > len(b) {
		return ""
	}
	return string(b[c.Idx:])
}

func moldSeries(tab *symtab.Table, ser *values.Series, idx int, quote bool) string {
	if ser == nil {
		return ""
	}
	var parts []string
	cells := ser.Cells()
	for i := idx; i < len(cells); i++ {
		if cells[i].Kind == values.KindEnd {
			break
		}
		parts = append(parts, render(tab, cells[i], quote))
	}
	return strings.Join(parts, " ")
}

func moldPath(tab *symtab.Table, c values.Cell, quote bool) string {
	base := moldSeriesPath(tab, c.Ser, c.Idx)
	switch c.Kind {
	case values.KindSetPath:
		return base + ":"
	case values.KindGetPath:
		return ":" + base
	case values.KindLitPath:
		return "'" + base
	default:
		return base
	}
}

func moldSeriesPath(tab *symtab.Table, ser *values.Series, idx int) string {
	if ser == nil {
		return ""
	}
	var parts []string
	cells := ser.Cells()
	for i := idx; i < len(cells); i++ {
		if cells[i].Kind == values.KindEnd {
			break
		}
		parts = append(parts, render(tab, cells[i], false))
	}
	return strings.Join(parts, "/")
}
