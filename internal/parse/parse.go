// Package parse implements the PARSE dialect: a backtracking pattern
// matcher built as a recursive sub-evaluator over a rule block, in the
// same spirit as internal/eval's Do loop but walking two cursors at
// once — the rule stream and the input series being matched against
// it — and using internal/throw's sentinel labels the way a function
// RETURN uses a per-function label, so ACCEPT/REJECT/RETURN can unwind
// past an arbitrary number of nested sub-rules to the frame that owns
// them.
package parse

import (
	"strings"

	"rebolcore/internal/frame"
	"rebolcore/internal/rerr"
	"rebolcore/internal/symtab"
	"rebolcore/internal/throw"
	"rebolcore/internal/values"
)

// Doer evaluates a GROUP!/paren cell the way a rule's embedded code
// does, and is also how the DO and IF rule keywords reach the
// evaluator. internal/eval's *Interp satisfies this without parse
// importing eval, avoiding the import cycle an evaluator-calls-PARSE,
// PARSE-calls-evaluator relationship would otherwise create.
type Doer interface {
	Do(block values.Cell) (values.Cell, error)
}

// notFound is the sentinel position meaning "this rule, or this
// alternative of it, did not match" — distinct from any real index,
// which is always >= 0.
const notFound = -1

// cursor is the (series, position) pair PARSE advances as it matches;
// a GET-WORD! rule element can repoint it at an entirely different
// series (input switching).
type cursor struct {
	ser *values.Series
	pos int
}

func (c *cursor) len() int {
	if c.ser.Kind() == values.SeriesBytes {
		return len(c.ser.Bytes())
	}
	return c.ser.Len()
}

func (c *cursor) atEnd() bool { return c.pos >= c.len() }

func (c *cursor) clip() {
	if c.pos < 0 {
		c.pos = 0
	}
	if n := c.len(); c.pos > n {
		c.pos = n
	}
}

// parser holds the state one top-level Parse call threads through its
// recursive subparse calls.
type parser struct {
	tab   *symtab.Table
	stack *frame.Stack
	doer  Doer
}

// Parse runs rule (a BLOCK!) against input (an array, string, or
// binary cell) from input's current index. It returns the LOGIC! a
// bare `parse` call in the source language returns: true if the match
// ran all the way to the end of the input series. A RETURN rule
// overrides this with its own carried value instead.
func Parse(tab *symtab.Table, stack *frame.Stack, doer Doer, input, rule values.Cell) (values.Cell, error) {
	if !values.IsArrayKind(input.Kind) && !values.IsStringKind(input.Kind) {
		return values.Cell{}, rerr.New(rerr.ParseSeries, "parse input must be a series, got %s", input.Kind)
	}
	if rule.Kind != values.KindBlock || rule.Ser == nil {
		return values.Cell{}, rerr.New(rerr.ParseRule, "parse rule must be a block")
	}
	if input.Ser == nil {
		return values.Cell{}, rerr.New(rerr.ParseSeries, "parse input has no backing series")
	}

	p := &parser{tab: tab, stack: stack, doer: doer}
	cur := &cursor{ser: input.Ser, pos: input.Idx}

	wasLocked := rule.Ser.Locked()
	if !wasLocked {
		rule.Ser.Lock()
		defer rule.Ser.Unlock()
	}

	endPos, err := p.subparse(cur, rule.Ser, rule.Idx)
	if err != nil {
		if v, ok := throw.Catch(err, throw.ParseReturn); ok {
			return v, nil
		}
		if _, ok := throw.Catch(err, throw.ParseAccept); ok {
			return values.Logic(true), nil
		}
		if _, ok := throw.Catch(err, throw.ParseReject); ok {
			return values.Logic(false), nil
		}
		return values.Cell{}, err
	}
	return values.Logic(endPos != notFound && endPos >= cur.len()), nil
}

func keyword(tab *symtab.Table, c *values.Cell) string {
	if !c.IsWord() {
		return ""
	}
	return strings.ToLower(tab.Name(c.Sym))
}

func isBar(tab *symtab.Table, c *values.Cell) bool {
	return c.Kind == values.KindWord && tab.Name(c.Sym) == "|"
}

// subparse matches a full rule block (all of its '|'-separated
// alternatives) against cur starting at rule index ridx, pushing a
// ModeParse frame so internal/lookup's relative-binding walk skips
// over it the same way it already skips any non-function-body frame.
func (p *parser) subparse(cur *cursor, rule *values.Series, ridx int) (int, error) {
	fr := &frame.Frame{Source: rule, Index: ridx, Mode: frame.ModeParse}
	p.stack.Push(fr)
	defer p.stack.Pop()

	start := cur.pos
	i := ridx
	for {
		cur.pos = start
		matched, err := p.parseAlternative(cur, rule, i)
		if err != nil {
			return notFound, err
		}
		if matched {
			return cur.pos, nil
		}
		bar := skipToBar(p.tab, rule, i)
		if bar < 0 {
			cur.pos = notFound
			return notFound, nil
		}
		i = bar + 1
	}
}

// skipToBar scans rule from i for the next top-level '|' cell,
// returning its index, or -1 if KindEnd is reached first. Rule items
// that are themselves blocks own their own alternation internally and
// are never descended into here.
func skipToBar(tab *symtab.Table, rule *values.Series, i int) int {
	for {
		cell := rule.CellAt(i)
		if cell.Kind == values.KindEnd {
			return -1
		}
		if isBar(tab, cell) {
			return i
		}
		i++
	}
}

// skipToBarOrEnd is skipToBar without the "not found" case: it always
// lands on a real rule index, either the next '|' or the KindEnd cell
// terminating the block. parseItem uses this to implement THEN, which
// needs the terminator's index itself rather than a not-found sentinel.
func skipToBarOrEnd(tab *symtab.Table, rule *values.Series, i int) int {
	for {
		cell := rule.CellAt(i)
		if cell.Kind == values.KindEnd || isBar(tab, cell) {
			return i
		}
		i++
	}
}

// parseAlternative matches one '|'-delimited sequence of rule items
// starting at i, advancing cur.pos as each item matches. It reports
// false (without error) on the first item that fails, leaving cur in
// an undefined position — the caller (subparse) resets cur.pos to the
// alternative's start before trying the next one.
func (p *parser) parseAlternative(cur *cursor, rule *values.Series, i int) (bool, error) {
	for {
		cell := rule.CellAt(i)
		if cell.Kind == values.KindEnd || isBar(p.tab, cell) {
			return true, nil
		}
		ok, nextI, err := p.parseItem(cur, rule, i)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		i = nextI
	}
}
