package parse

import "rebolcore/internal/values"

// valuesEqual is parse's own narrow value-equality test — duplicated
// rather than imported from internal/eval, since eval depends on
// parse (for the "parse" native) and parse must not depend back on
// eval.
func valuesEqual(a, b values.Cell) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case values.KindInteger:
		return a.I == b.I
	case values.KindDecimal:
		return a.D == b.D
	case values.KindLogic, values.KindChar:
		return a.I == b.I
	case values.KindBlank, values.KindVoid, values.KindEnd:
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

// matchArrayElement compares cur's current array element against v
// (QUOTE's operand, or a bare literal rule item), advancing cur by one
// element on success. A TYPESET! operand (which a bare DATATYPE! word
// like integer! evaluates to, its mask holding that one bit) matches
// by the element's Kind instead of its value — kind equality for a
// single-bit mask, kind membership for a wider one; both are the same
// bitmask test.
func matchArrayElement(cur *cursor, v values.Cell) bool {
	if cur.atEnd() {
		return false
	}
	cell := cur.ser.CellAt(cur.pos)
	if v.Kind == values.KindTypeset {
		if values.KindBit(cell.Kind)&v.Mask == 0 {
			return false
		}
		cur.pos++
		return true
	}
	if !valuesEqual(*cell, v) {
		return false
	}
	cur.pos++
	return true
}

// matchStringElement matches v (a CHAR!, single-byte INTEGER!, or a
// STRING!/BINARY! substring) against cur's byte series at its current
// position, advancing past whatever it consumed on success.
func matchStringElement(cur *cursor, v values.Cell) bool {
	switch v.Kind {
	case values.KindChar:
		if cur.atEnd() {
			return false
		}
		if rune(cur.ser.Bytes()[cur.pos]) != rune(v.I) {
			return false
		}
		cur.pos++
		return true

	case values.KindInteger:
		if cur.atEnd() {
			return false
		}
		if int64(cur.ser.Bytes()[cur.pos]) != v.I {
			return false
		}
		cur.pos++
		return true

	case values.KindString, values.KindBinary, values.KindFile, values.KindTag, values.KindEmail:
		needle := []byte(stringPayload(v))
		hay := cur.ser.Bytes()
		if cur.pos+len(needle) > len(hay) {
			return false
		}
		for i, b := range needle {
			if hay[cur.pos+i] != b {
				return false
			}
		}
		cur.pos += len(needle)
		return true

	case values.KindBitset:
		if cur.atEnd() || v.Ser == nil {
			return false
		}
		if !bitsetHas(v.Ser, cur.ser.Bytes()[cur.pos]) {
			return false
		}
		cur.pos++
		return true

	default:
		return false
	}
}

// bitsetHas reports whether byte b is a member of the bit array a
// BITSET! cell's series carries: one bit per possible byte value,
// packed eight to a byte.
func bitsetHas(ser *values.Series, b byte) bool {
	bytes := ser.Bytes()
	i := int(b) / 8
	if i >= len(bytes) {
		return false
	}
	return bytes[i]&(1<<uint(b%8)) != 0
}

// matchLiteral dispatches to the array or string form of literal
// matching depending on cur's series kind.
func matchLiteral(cur *cursor, v values.Cell) bool {
	if cur.ser.Kind() == values.SeriesCells {
		return matchArrayElement(cur, v)
	}
	return matchStringElement(cur, v)
}

