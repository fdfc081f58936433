package values

// SeriesKind distinguishes the two element widths the core needs.
// A third (UTF-16 code units) exists in the historical source for
// string storage but is folded here into SeriesBytes, which stores
// UTF-8; §1's non-goals explicitly drop wire/layout compatibility.
type SeriesKind uint8

const (
	SeriesBytes SeriesKind = iota
	SeriesCells
)

// Flags bits a Series carries.
type Flags uint16

const (
	FlagManaged Flags = 1 << iota
	FlagAccessible
	FlagLocked
	FlagArrayContextVarlist
	FlagKeylistShared
	FlagFixedSize
	FlagExternalData
)

// Series is the uniform variable-length heap object backing every
// array and string-like value in the system: a contiguous buffer of
// fixed-width elements plus a used length. Cell and Series are
// mutually recursive (a cell's payload may be a series of cells), so
// they live in one Go package — see DESIGN.md.
type Series struct {
	kind  SeriesKind
	bytes []byte
	cells []Cell
	used  int
	flags Flags
	heap  *Heap
}

// MakeSeries allocates an unmanaged byte series with the given
// starting capacity.
func MakeSeries(capacity int) *Series {
	if capacity < 0 {
		capacity = 0
	}
	return &Series{
		kind:  SeriesBytes,
		bytes: make([]byte, 0, capacity),
		flags: FlagAccessible,
	}
}

// MakeArray allocates an unmanaged array series, terminated by an END
// cell at slot 0.
func MakeArray(capacity int) *Series {
	if capacity < 1 {
		capacity = 1
	}
	s := &Series{
		kind:  SeriesCells,
		cells: make([]Cell, 1, capacity),
		flags: FlagAccessible,
	}
	s.cells[0] = Cell{Kind: KindEnd}
	return s
}

// Kind reports whether this is a byte or cell series.
func (s *Series) Kind() SeriesKind { return s.kind }

// Len returns the used length (not counting the array terminator).
func (s *Series) Len() int { return s.used }

// Flags returns the current flag bitmask.
func (s *Series) Flags() Flags { return s.flags }

func (s *Series) HasFlag(f Flags) bool { return s.flags&f != 0 }

func (s *Series) setFlag(f Flags)   { s.flags |= f }
func (s *Series) clearFlag(f Flags) { s.flags &^= f }

// Locked reports the read-only bit.
func (s *Series) Locked() bool { return s.HasFlag(FlagLocked) }

// Lock marks the series read-only; PARSE locks rule blocks for the
// duration of a sub-parse.
func (s *Series) Lock()   { s.setFlag(FlagLocked) }
func (s *Series) Unlock() { s.clearFlag(FlagLocked) }

// Managed reports whether the GC owns this series' lifetime.
func (s *Series) Managed() bool { return s.HasFlag(FlagManaged) }

// MarkKeylistShared flags a key-list as shared between two or more
// contexts, forcing the next ExpandContext on either to copy-on-write.
func (s *Series) MarkKeylistShared() { s.setFlag(FlagKeylistShared) }

// ClearKeylistShared is called on the fresh copy produced by the
// copy-on-write path; the new key-list starts out exclusively owned.
func (s *Series) ClearKeylistShared() { s.clearFlag(FlagKeylistShared) }

// KeylistShared reports whether two or more contexts currently
// reference this key-list.
func (s *Series) KeylistShared() bool { return s.HasFlag(FlagKeylistShared) }

// MarkContextVarlist flags an array as a context's varlist.
func (s *Series) MarkContextVarlist() { s.setFlag(FlagArrayContextVarlist) }

// CellAt returns a pointer to the cell at index i, including the
// terminating END cell at i == Len(). It panics on a byte series or
// out-of-range index, mirroring the source's "C-string-like" array
// contract: callers are expected to respect Len()/termination.
func (s *Series) CellAt(i int) *Cell {
	if s.kind != SeriesCells {
		panic("values: CellAt on a byte series")
	}
	return &s.cells[i]
}

// Cells exposes the live (non-terminator) cell slice. Callers must not
// retain it across a mutating operation.
func (s *Series) Cells() []Cell {
	if s.kind != SeriesCells {
		return nil
	}
	return s.cells[:s.used]
}

// Bytes exposes the live byte slice.
func (s *Series) Bytes() []byte {
	if s.kind != SeriesBytes {
		return nil
	}
	return s.bytes
}

// terminate re-establishes the END-at-Len() invariant after a
// length-mutating operation.
func (s *Series) terminate() {
	if s.kind != SeriesCells {
		return
	}
	if cap(s.cells) <= s.used {
		grown := make([]Cell, s.used+1, growCap(cap(s.cells), s.used+1))
		copy(grown, s.cells)
		s.cells = grown
	} else {
		s.cells = s.cells[:s.used+1]
	}
	s.cells[s.used] = Cell{Kind: KindEnd}
}

func growCap(have, need int) int {
	if have == 0 {
		have = 4
	}
	for have < need {
		have *= 2
	}
	return have
}

// ExpandTail grows the used length by delta, reallocating if needed,
// and re-terminates arrays.
func (s *Series) ExpandTail(delta int) {
	if delta <= 0 {
		return
	}
	if s.Locked() {
		panic("values: ExpandTail on a locked series")
	}
	switch s.kind {
	case SeriesBytes:
		s.bytes = append(s.bytes, make([]byte, delta)...)
		s.used = len(s.bytes)
	case SeriesCells:
		s.used += delta
		s.terminate()
	}
}

// Extend reserves capacity without changing the used length.
func (s *Series) Extend(delta int) {
	if delta <= 0 {
		return
	}
	switch s.kind {
	case SeriesBytes:
		if cap(s.bytes)-len(s.bytes) < delta {
			grown := make([]byte, len(s.bytes), growCap(cap(s.bytes), len(s.bytes)+delta))
			copy(grown, s.bytes)
			s.bytes = grown
		}
	case SeriesCells:
		if cap(s.cells)-s.used-1 < delta {
			grown := make([]Cell, s.used+1, growCap(cap(s.cells), s.used+1+delta))
			copy(grown, s.cells[:s.used+1])
			s.cells = grown
		}
	}
}

// AppendCell appends one cell to an array series, growing and
// re-terminating as needed.
func (s *Series) AppendCell(c Cell) int {
	if s.kind != SeriesCells {
		panic("values: AppendCell on a byte series")
	}
	if s.Locked() {
		panic("values: AppendCell on a locked series")
	}
	idx := s.used
	s.used++
	s.terminate()
	s.cells[idx] = c
	return idx
}

// RemoveRange deletes the elements in [start, end) from an array or
// byte series, shifting the tail down and re-terminating arrays.
func (s *Series) RemoveRange(start, end int) {
	if s.Locked() {
		panic("values: RemoveRange on a locked series")
	}
	if end <= start {
		return
	}
	switch s.kind {
	case SeriesBytes:
		s.bytes = append(s.bytes[:start], s.bytes[end:]...)
		s.used = len(s.bytes)
	case SeriesCells:
		copy(s.cells[start:], s.cells[end:s.used])
		s.used -= end - start
		s.cells = s.cells[:s.used]
		s.terminate()
	}
}

// InsertCells splices cells into an array series at index at, growing
// and re-terminating as needed. Inserting into a byte series panics;
// use InsertBytes there instead.
func (s *Series) InsertCells(at int, cells []Cell) {
	if s.kind != SeriesCells {
		panic("values: InsertCells on a byte series")
	}
	if s.Locked() {
		panic("values: InsertCells on a locked series")
	}
	n := len(cells)
	if n == 0 {
		return
	}
	s.used += n
	s.terminate()
	copy(s.cells[at+n:s.used], s.cells[at:s.used-n])
	copy(s.cells[at:at+n], cells)
}

// InsertBytes splices bytes into a byte series at index at.
func (s *Series) InsertBytes(at int, b []byte) {
	if s.kind != SeriesBytes {
		panic("values: InsertBytes on a cell series")
	}
	if s.Locked() {
		panic("values: InsertBytes on a locked series")
	}
	n := len(b)
	if n == 0 {
		return
	}
	s.bytes = append(s.bytes, make([]byte, n)...)
	copy(s.bytes[at+n:], s.bytes[at:len(s.bytes)-n])
	copy(s.bytes[at:at+n], b)
	s.used = len(s.bytes)
}

// AppendBytes appends to a byte series.
func (s *Series) AppendBytes(b ...byte) {
	if s.kind != SeriesBytes {
		panic("values: AppendBytes on a cell series")
	}
	if s.Locked() {
		panic("values: AppendBytes on a locked series")
	}
	s.bytes = append(s.bytes, b...)
	s.used = len(s.bytes)
}

// CopyShallow duplicates the element buffer; for array series, copied
// cells still point at the same inner series.
func (s *Series) CopyShallow(extra int) *Series {
	if extra < 0 {
		extra = 0
	}
	switch s.kind {
	case SeriesBytes:
		dst := MakeSeries(s.used + extra)
		dst.AppendBytes(s.bytes...)
		return dst
	case SeriesCells:
		dst := MakeArray(s.used + extra + 1)
		dst.cells = append(dst.cells[:0], s.cells[:s.used]...)
		dst.used = s.used
		dst.terminate()
		return dst
	}
	return nil
}

// CopyDeep duplicates the element buffer, additionally descending into
// child array cells whose Kind is in types.
func (s *Series) CopyDeep(types func(Kind) bool) *Series {
	dst := s.CopyShallow(0)
	if dst.kind != SeriesCells {
		return dst
	}
	for i := 0; i < dst.used; i++ {
		c := &dst.cells[i]
		if c.Ser != nil && IsArrayKind(c.Kind) && types(c.Kind) {
			c.Ser = c.Ser.CopyDeep(types)
		}
	}
	return dst
}

// Manage hands the series to h; thereafter only h may free it.
func (s *Series) Manage(h *Heap) {
	h.Manage(s)
}

// Free releases an unmanaged series. It panics if the series is
// managed.
func (s *Series) Free() {
	if s.Managed() {
		panic("values: Free called on a managed series")
	}
	s.bytes = nil
	s.cells = nil
	s.used = 0
	s.flags &^= FlagAccessible
}
