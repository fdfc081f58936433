package values

import "testing"

func TestArrayTerminationInvariant(t *testing.T) {
	arr := MakeArray(2)
	if arr.CellAt(0).Kind != KindEnd {
		t.Fatalf("empty array must have END at slot 0")
	}
	arr.AppendCell(Integer(1))
	arr.AppendCell(Integer(2))
	if arr.CellAt(arr.Len()).Kind != KindEnd {
		t.Fatalf("array[len] must be END after mutation, got %v", arr.CellAt(arr.Len()).Kind)
	}
	if arr.CellAt(0).I != 1 || arr.CellAt(1).I != 2 {
		t.Fatalf("unexpected contents after append")
	}
}

func TestExpandTailReterminates(t *testing.T) {
	arr := MakeArray(1)
	arr.ExpandTail(5)
	if arr.Len() != 5 {
		t.Fatalf("expected len 5, got %d", arr.Len())
	}
	if arr.CellAt(5).Kind != KindEnd {
		t.Fatalf("expected END at tail after ExpandTail")
	}
}

func TestCopyShallowSharesInnerSeries(t *testing.T) {
	inner := MakeArray(1)
	inner.AppendCell(Integer(99))

	outer := MakeArray(1)
	outer.AppendCell(SeriesCell(KindBlock, inner, 0))

	dup := outer.CopyShallow(0)
	if dup.CellAt(0).Ser != inner {
		t.Fatalf("shallow copy must share the inner series")
	}
}

func TestCopyDeepDuplicatesNestedBlocks(t *testing.T) {
	inner := MakeArray(1)
	inner.AppendCell(Integer(7))

	outer := MakeArray(1)
	outer.AppendCell(SeriesCell(KindBlock, inner, 0))

	dup := outer.CopyDeep(IsEvaluativeBlockKind)
	if dup.CellAt(0).Ser == inner {
		t.Fatalf("deep copy must not share the inner series")
	}
	if dup.CellAt(0).Ser.CellAt(0).I != 7 {
		t.Fatalf("deep copy lost nested contents")
	}
	inner.CellAt(0).I = 1000
	if dup.CellAt(0).Ser.CellAt(0).I == 1000 {
		t.Fatalf("deep copy must be independent of the original")
	}
}

func TestManagedMonotonicity(t *testing.T) {
	h := NewHeap()
	s := MakeSeries(0)
	if s.Managed() {
		t.Fatalf("new series must start unmanaged")
	}
	s.Manage(h)
	if !s.Managed() {
		t.Fatalf("Manage must set the managed flag")
	}
	if h.ManagedCount() != 1 {
		t.Fatalf("expected heap to track one managed series")
	}
	// Managed is monotone: a second Manage call is a no-op, never a clear.
	s.Manage(h)
	if !s.Managed() || h.ManagedCount() != 1 {
		t.Fatalf("re-managing should not change managed state")
	}
}

func TestFreeOnManagedPanics(t *testing.T) {
	h := NewHeap()
	s := MakeSeries(0)
	s.Manage(h)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Free on a managed series to panic")
		}
	}()
	s.Free()
}

func TestIsTruthy(t *testing.T) {
	cases := []struct {
		c    Cell
		want bool
	}{
		{Blank(), false},
		{Logic(false), false},
		{Logic(true), true},
		{Integer(0), true},
		{Decimal(0), true},
	}
	for _, tc := range cases {
		if got := tc.c.IsTruthy(); got != tc.want {
			t.Errorf("IsTruthy(%v) = %v, want %v", tc.c.Kind, got, tc.want)
		}
	}
}
