package parse

import (
	"rebolcore/internal/lookup"
	"rebolcore/internal/rerr"
	"rebolcore/internal/symtab"
	"rebolcore/internal/throw"
	"rebolcore/internal/values"
)

// parseItem matches one full rule item — any leading quantifier,
// SET/COPY/NOT/AND/AHEAD/THEN/REMOVE modifiers, and the core operand
// they apply to — starting at rule index i, advancing cur as it goes.
// It reports the rule index just past everything it consumed so the
// caller can move on to the next item or the end of the alternative.
func (p *parser) parseItem(cur *cursor, rule *values.Series, i int) (bool, int, error) {
	cell := rule.CellAt(i)

	switch cell.Kind {
	case values.KindSetWord:
		if err := p.savePosition(cur, cell); err != nil {
			return false, i + 1, err
		}
		return true, i + 1, nil
	case values.KindGetWord:
		if err := p.seekPosition(cur, cell); err != nil {
			return false, i + 1, err
		}
		return true, i + 1, nil
	}

	var setWord, copyWord *values.Cell
	negate, lookahead, removeFlag, thenFlag := false, false, false, false
modifiers:
	for {
		switch keyword(p.tab, cell) {
		case "set":
			i++
			w := rule.CellAt(i)
			if !w.IsWord() {
				return false, i, rerr.New(rerr.ParseVariable, "SET requires a word")
			}
			setWord = w
			i++
			cell = rule.CellAt(i)
		case "copy":
			i++
			w := rule.CellAt(i)
			if !w.IsWord() {
				return false, i, rerr.New(rerr.ParseVariable, "COPY requires a word")
			}
			copyWord = w
			i++
			cell = rule.CellAt(i)
		case "not":
			negate = !negate
			i++
			cell = rule.CellAt(i)
		case "and", "ahead":
			lookahead = true
			i++
			cell = rule.CellAt(i)
		case "then":
			thenFlag = true
			i++
			cell = rule.CellAt(i)
		case "remove":
			removeFlag = true
			i++
			cell = rule.CellAt(i)
		default:
			break modifiers
		}
	}

	mincount, maxcount := 1, 1
	haveQuant := false
	if cell.Kind == values.KindInteger {
		mincount = int(cell.I)
		maxcount = mincount
		haveQuant = true
		i++
		cell = rule.CellAt(i)
		if cell.Kind == values.KindInteger {
			maxcount = int(cell.I)
			i++
			cell = rule.CellAt(i)
		}
	} else {
		switch keyword(p.tab, cell) {
		case "any", "while":
			mincount, maxcount = 0, -1
			haveQuant = true
			i++
			cell = rule.CellAt(i)
		case "some":
			mincount, maxcount = 1, -1
			haveQuant = true
			i++
			cell = rule.CellAt(i)
		case "opt":
			mincount, maxcount = 0, 1
			haveQuant = true
			i++
			cell = rule.CellAt(i)
		}
	}

	start := cur.pos
	finalPos, matched, nextI, err := p.iterateCore(cur, rule, i, mincount, maxcount, haveQuant)
	if err != nil {
		return false, nextI, err
	}

	if negate {
		cur.pos = start
		result := !matched
		if result && thenFlag {
			nextI = skipToBarOrEnd(p.tab, rule, nextI)
		}
		return result, nextI, nil
	}
	if lookahead {
		cur.pos = start
		if matched && thenFlag {
			nextI = skipToBarOrEnd(p.tab, rule, nextI)
		}
		return matched, nextI, nil
	}
	if !matched {
		cur.pos = start
		return false, nextI, nil
	}

	cur.pos = finalPos
	if removeFlag {
		cur.ser.RemoveRange(start, finalPos)
		cur.pos = start
	}
	if copyWord != nil {
		if err := lookup.SetVar(p.stack, copyWord, copySpan(cur.ser, start, finalPos)); err != nil {
			return false, nextI, err
		}
	} else if setWord != nil && finalPos > start {
		if err := lookup.SetVar(p.stack, setWord, elementAt(cur.ser, start)); err != nil {
			return false, nextI, err
		}
	}
	if thenFlag {
		nextI = skipToBarOrEnd(p.tab, rule, nextI)
	}
	return true, nextI, nil
}

// savePosition implements a SET-WORD! rule item (`here:`): it binds
// the word to a bookmark pointing at cur's current series and
// position, the value a later GET-WORD! item uses to seek back.
func (p *parser) savePosition(cur *cursor, word *values.Cell) error {
	kind := values.KindBlock
	if cur.ser.Kind() == values.SeriesBytes {
		kind = values.KindString
	}
	return lookup.SetVar(p.stack, word, values.SeriesCell(kind, cur.ser, cur.pos))
}

// seekPosition implements a GET-WORD! rule item (`:here`): it repoints
// cur at the series and position a bound bookmark names, clipping the
// position into range — the one place PARSE switches its own input.
func (p *parser) seekPosition(cur *cursor, word *values.Cell) error {
	slot, err := lookup.GetVar(p.stack, word)
	if err != nil {
		return err
	}
	if !values.IsArrayKind(slot.Kind) && !values.IsStringKind(slot.Kind) {
		return rerr.New(rerr.ParseSeries, "GET-WORD! rule item must name a series")
	}
	cur.ser = slot.Ser
	cur.pos = slot.Idx
	cur.clip()
	return nil
}

// iterateCore repeats coreOnce between mincount and maxcount times
// (maxcount < 0 means unbounded), reporting the position after the
// last successful repetition. When haveQuant is false — the implicit
// single pass every plain rule item gets — ACCEPT/REJECT thrown by
// the core are left unexamined so they keep unwinding to whatever
// real ANY/SOME/WHILE loop (or the top-level Parse call) actually
// encloses them; an explicit quantifier is what makes this call site
// "the nearest enclosing iteration" the throw protocol refers to.
func (p *parser) iterateCore(cur *cursor, rule *values.Series, coreIdx, mincount, maxcount int, haveQuant bool) (int, bool, int, error) {
	count := 0
	pos := cur.pos
	nextI := coreIdx
	for maxcount < 0 || count < maxcount {
		cur.pos = pos
		newPos, ok, ni, err := p.coreOnce(cur, rule, coreIdx)
		nextI = ni
		if err != nil {
			if haveQuant {
				if _, caught := throw.Catch(err, throw.ParseAccept); caught {
					cur.pos = pos
					return pos, true, nextI, nil
				}
				if _, caught := throw.Catch(err, throw.ParseReject); caught {
					cur.pos = pos
					return notFound, false, nextI, nil
				}
			}
			return notFound, false, nextI, err
		}
		if !ok {
			break
		}
		if newPos == pos {
			count++
			break
		}
		pos = newPos
		count++
	}
	if count < mincount {
		return notFound, false, nextI, nil
	}
	cur.pos = pos
	return pos, true, nextI, nil
}

// coreOnce attempts a single match of the rule item at index i —
// everything left after parseItem has stripped off quantifiers and
// modifiers — returning the position after the match, whether it
// matched, and the rule index just past this item.
func (p *parser) coreOnce(cur *cursor, rule *values.Series, i int) (int, bool, int, error) {
	cell := rule.CellAt(i)

	switch cell.Kind {
	case values.KindEnd:
		return cur.pos, false, i, rerr.New(rerr.ParseEnd, "rule ran past the end of the rule block")

	case values.KindLitWord:
		ok := matchAnyWordElement(cur, cell.Sym, p.tab)
		return cur.pos, ok, i + 1, nil

	case values.KindBlock:
		pos, err := p.subparse(cur, cell.Ser, cell.Idx)
		if err != nil {
			return cur.pos, false, i + 1, err
		}
		return pos, pos != notFound, i + 1, nil

	case values.KindGroup:
		if _, err := p.doer.Do(*cell); err != nil {
			return cur.pos, false, i + 1, err
		}
		return cur.pos, true, i + 1, nil

	case values.KindWord:
		return p.coreCommand(cur, rule, i)

	default:
		ok := matchLiteral(cur, *cell)
		return cur.pos, ok, i + 1, nil
	}
}

// coreCommand dispatches the PARSE keywords (SKIP, END, TO/THRU,
// QUOTE, RETURN, ACCEPT/BREAK, REJECT, FAIL, IF, INTO, DO, INSERT,
// CHANGE) and, for any other WORD!, treats it as a named sub-rule
// reference: a word bound to a BLOCK! value is parsed as a nested
// rule, anything else is matched as a literal.
func (p *parser) coreCommand(cur *cursor, rule *values.Series, i int) (int, bool, int, error) {
	cell := rule.CellAt(i)
	switch keyword(p.tab, cell) {
	case "skip":
		if cur.atEnd() {
			return cur.pos, false, i + 1, nil
		}
		cur.pos++
		return cur.pos, true, i + 1, nil

	case "end":
		return cur.pos, cur.atEnd(), i + 1, nil

	case "to", "thru":
		thru := keyword(p.tab, cell) == "thru"
		pos, ok, err := p.scanTo(cur, rule, i+1, thru)
		if err != nil {
			return cur.pos, false, i + 2, err
		}
		if !ok {
			return cur.pos, false, i + 2, nil
		}
		cur.pos = pos
		return cur.pos, true, i + 2, nil

	case "quote":
		v := rule.CellAt(i + 1)
		ok := matchLiteral(cur, *v)
		return cur.pos, ok, i + 2, nil

	case "return":
		return p.doReturn(cur, rule, i+1)

	case "accept", "break":
		return cur.pos, false, i + 1, throw.New(throw.ParseAccept, values.Blank())

	case "reject":
		return cur.pos, false, i + 1, throw.New(throw.ParseReject, values.Blank())

	case "fail":
		return cur.pos, false, i + 1, nil

	case "if":
		v := rule.CellAt(i + 1)
		result, err := p.doer.Do(*v)
		if err != nil {
			return cur.pos, false, i + 2, err
		}
		return cur.pos, result.IsTruthy(), i + 2, nil

	case "into":
		return p.doInto(cur, rule, i+1)

	case "do":
		return p.doDo(cur, rule, i+1)

	case "insert":
		return p.doInsert(cur, rule, i+1)

	case "change":
		return p.doChange(cur, rule, i+1)

	default:
		slot, err := lookup.GetVar(p.stack, cell)
		if err != nil {
			return cur.pos, false, i + 1, err
		}
		if slot.Kind == values.KindBlock {
			pos, err := p.subparse(cur, slot.Ser, slot.Idx)
			if err != nil {
				return cur.pos, false, i + 1, err
			}
			return pos, pos != notFound, i + 1, nil
		}
		ok := matchLiteral(cur, *slot)
		return cur.pos, ok, i + 1, nil
	}
}

// doReturn implements RETURN r / RETURN (expr): a group operand is
// evaluated and its value thrown directly; any other operand is
// matched like an ordinary rule item and, on success, the span it
// matched is thrown instead of bound to a word the way COPY would.
func (p *parser) doReturn(cur *cursor, rule *values.Series, i int) (int, bool, int, error) {
	cell := rule.CellAt(i)
	if cell.Kind == values.KindGroup {
		v, err := p.doer.Do(*cell)
		if err != nil {
			return cur.pos, false, i + 1, err
		}
		return cur.pos, false, i + 1, throw.New(throw.ParseReturn, v)
	}
	start := cur.pos
	newPos, matched, nextI, err := p.coreOnce(cur, rule, i)
	if err != nil {
		return cur.pos, false, nextI, err
	}
	if !matched {
		cur.pos = start
		return cur.pos, false, nextI, nil
	}
	cur.pos = newPos
	return cur.pos, false, nextI, throw.New(throw.ParseReturn, copySpan(cur.ser, start, newPos))
}

// scanTo advances from cur.pos looking for target (a literal value, a
// bound word, or a BLOCK! of alternative literals tried in turn),
// stopping just before the match for TO or just after it for THRU.
// `to end`/`thru end` scan straight to the series tail.
func (p *parser) scanTo(cur *cursor, rule *values.Series, targetIdx int, thru bool) (int, bool, error) {
	target := rule.CellAt(targetIdx)
	if target.Kind == values.KindWord && keyword(p.tab, target) == "end" {
		return cur.len(), true, nil
	}
	n := cur.len()
	for pos := cur.pos; pos <= n; pos++ {
		tmp := &cursor{ser: cur.ser, pos: pos}
		ok, err := p.tryOperandAt(tmp, target)
		if err != nil {
			return notFound, false, err
		}
		if ok {
			if thru {
				return tmp.pos, true, nil
			}
			return pos, true, nil
		}
	}
	return notFound, false, nil
}

// tryOperandAt attempts target (see scanTo) at cur's current position
// without side effects beyond advancing cur on success.
func (p *parser) tryOperandAt(cur *cursor, target *values.Cell) (bool, error) {
	switch target.Kind {
	case values.KindBlock:
		items := target.Ser.Cells()
		if target.Idx < len(items) {
			items = items[target.Idx:]
		}
		for _, alt := range items {
			save := cur.pos
			if matchLiteral(cur, alt) {
				return true, nil
			}
			cur.pos = save
		}
		return false, nil
	case values.KindWord:
		slot, err := lookup.GetVar(p.stack, target)
		if err != nil {
			return false, err
		}
		return matchLiteral(cur, *slot), nil
	default:
		return matchLiteral(cur, *target), nil
	}
}

// resolveToBlock reads the rule operand at i, following a bound word
// to the BLOCK! value it names, for the keywords (INTO, DO) whose
// operand is itself a sub-rule rather than a literal to match.
func (p *parser) resolveToBlock(rule *values.Series, i int) (values.Cell, bool, error) {
	cell := rule.CellAt(i)
	if cell.Kind == values.KindBlock {
		return *cell, true, nil
	}
	if cell.IsWord() {
		slot, err := lookup.GetVar(p.stack, cell)
		if err != nil {
			return values.Cell{}, false, err
		}
		if slot.Kind == values.KindBlock {
			return *slot, true, nil
		}
	}
	return values.Cell{}, false, nil
}

// doInto implements INTO r: the current input element (which must
// itself be a series-kind value) is parsed from its own start against
// r; the outer cursor advances by exactly one element on success.
func (p *parser) doInto(cur *cursor, rule *values.Series, i int) (int, bool, int, error) {
	if cur.ser.Kind() != values.SeriesCells || cur.atEnd() {
		return cur.pos, false, i + 1, nil
	}
	elem := cur.ser.CellAt(cur.pos)
	if elem.Ser == nil || !(values.IsArrayKind(elem.Kind) || values.IsStringKind(elem.Kind)) {
		return cur.pos, false, i + 1, nil
	}
	ruleVal, ok, err := p.resolveToBlock(rule, i)
	if err != nil {
		return cur.pos, false, i + 1, err
	}
	if !ok {
		return cur.pos, false, i + 1, nil
	}
	inner := &cursor{ser: elem.Ser, pos: elem.Idx}
	endPos, err := p.subparse(inner, ruleVal.Ser, ruleVal.Idx)
	if err != nil {
		return cur.pos, false, i + 1, err
	}
	if endPos == notFound || endPos < inner.len() {
		return cur.pos, false, i + 1, nil
	}
	cur.pos++
	return cur.pos, true, i + 1, nil
}

// doDo implements DO r: the remainder of an array input is evaluated
// as a script (not one expression at a time — Doer only exposes
// whole-block evaluation, so DO consumes the input to its end in one
// call rather than stepping expression by expression) and its result
// is matched against r, either as a sub-rule or, if r doesn't resolve
// to one, by direct value comparison. Because it always consumes the
// whole remaining input, DO is not usefully iterable under a
// quantifier, and TO/THRU do not recognise it: in `thru do integer!`
// the `do` is looked up as an ordinary word operand.
func (p *parser) doDo(cur *cursor, rule *values.Series, i int) (int, bool, int, error) {
	if cur.ser.Kind() != values.SeriesCells {
		return cur.pos, false, i + 1, nil
	}
	block := values.Cell{Kind: values.KindBlock, Ser: cur.ser, Idx: cur.pos}
	result, err := p.doer.Do(block)
	if err != nil {
		return cur.pos, false, i + 1, err
	}
	cur.pos = cur.len()

	ruleVal, ok, err := p.resolveToBlock(rule, i)
	if err != nil {
		return cur.pos, false, i + 1, err
	}
	if !ok {
		return cur.pos, valuesEqual(result, *rule.CellAt(i)), i + 1, nil
	}
	one := values.MakeArray(2)
	one.AppendCell(result)
	endPos, err := p.subparse(&cursor{ser: one, pos: 0}, ruleVal.Ser, ruleVal.Idx)
	if err != nil {
		return cur.pos, false, i + 1, err
	}
	return cur.pos, endPos != notFound && endPos >= one.Len(), i + 1, nil
}

// operandValue reads INSERT/CHANGE's operand: a GROUP! is evaluated
// for its value, anything else is used literally.
func (p *parser) operandValue(rule *values.Series, i int) (values.Cell, int, error) {
	cell := rule.CellAt(i)
	if cell.Kind == values.KindGroup {
		v, err := p.doer.Do(*cell)
		return v, i + 1, err
	}
	return *cell, i + 1, nil
}

// doInsert implements INSERT v / INSERT (expr): splices v into the
// input at the current position without consuming anything, so a
// following rule item sees it in place immediately.
func (p *parser) doInsert(cur *cursor, rule *values.Series, i int) (int, bool, int, error) {
	v, nextI, err := p.operandValue(rule, i)
	if err != nil {
		return cur.pos, false, nextI, err
	}
	insertOneValue(cur.ser, cur.pos, v)
	return cur.pos, true, nextI, nil
}

// doChange implements CHANGE v / CHANGE (expr): replaces the single
// element at the current position with v, advancing past it.
func (p *parser) doChange(cur *cursor, rule *values.Series, i int) (int, bool, int, error) {
	v, nextI, err := p.operandValue(rule, i)
	if err != nil {
		return cur.pos, false, nextI, err
	}
	if !cur.atEnd() {
		cur.ser.RemoveRange(cur.pos, cur.pos+1)
	}
	insertOneValue(cur.ser, cur.pos, v)
	cur.pos++
	return cur.pos, true, nextI, nil
}

func insertOneValue(ser *values.Series, at int, v values.Cell) {
	if ser.Kind() == values.SeriesCells {
		ser.InsertCells(at, []values.Cell{v})
		return
	}
	switch v.Kind {
	case values.KindChar:
		ser.InsertBytes(at, []byte(string(rune(v.I))))
	case values.KindInteger:
		ser.InsertBytes(at, []byte{byte(v.I)})
	default:
		ser.InsertBytes(at, []byte(stringPayload(v)))
	}
}

// matchAnyWordElement matches a LIT-WORD! rule item against the
// current array element: any of the five word-kind cells with the
// same canon spelling counts, mirroring how a lit-word in a rule is
// written as 'foo but matches a plain WORD! foo in the input.
func matchAnyWordElement(cur *cursor, sym symtab.Sym, tab *symtab.Table) bool {
	if cur.ser.Kind() != values.SeriesCells || cur.atEnd() {
		return false
	}
	cell := cur.ser.CellAt(cur.pos)
	if !cell.IsWord() || !tab.SameCanon(cell.Sym, sym) {
		return false
	}
	cur.pos++
	return true
}

func copySpan(ser *values.Series, start, end int) values.Cell {
	if end < start {
		end = start
	}
	if ser.Kind() == values.SeriesCells {
		n := ser.Len()
		if end > n {
			end = n
		}
		if start > end {
			start = end
		}
		dst := values.MakeArray(end - start + 1)
		for k := start; k < end; k++ {
			dst.AppendCell(*ser.CellAt(k))
		}
		return values.Cell{Kind: values.KindBlock, Ser: dst, Idx: 0}
	}
	b := ser.Bytes()
	if end > len(b) {
		end = len(b)
	}
	if start > end {
		start = end
	}
	dst := values.MakeSeries(end - start)
	dst.AppendBytes(b[start:end]...)
	return values.Cell{Kind: values.KindString, Ser: dst, Idx: 0}
}

func elementAt(ser *values.Series, pos int) values.Cell {
	if ser.Kind() == values.SeriesCells {
		if pos < ser.Len() {
			return *ser.CellAt(pos)
		}
		return values.Cell{Kind: values.KindEnd}
	}
	b := ser.Bytes()
	if pos < len(b) {
		return values.CharCell(rune(b[pos]))
	}
	return values.Cell{Kind: values.KindEnd}
}
