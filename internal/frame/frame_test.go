package frame

import (
	"testing"

	"rebolcore/internal/symtab"
	"rebolcore/internal/values"
)

func TestStackPushPopOrder(t *testing.T) {
	s := NewStack()
	f1 := &Frame{Source: values.MakeArray(1)}
	f2 := &Frame{Source: values.MakeArray(1)}

	s.Push(f1)
	s.Push(f2)
	if s.Top() != f2 {
		t.Fatalf("top should be the most recently pushed frame")
	}
	if f1.Next != f2 || f2.Prior != f1 {
		t.Fatalf("doubly-linked pointers not wired correctly")
	}

	popped := s.Pop()
	if popped != f2 {
		t.Fatalf("Pop must return the top frame")
	}
	if s.Top() != f1 {
		t.Fatalf("after popping f2, top should be f1")
	}
	if f1.Next != nil {
		t.Fatalf("f1.Next must be cleared once f2 is popped")
	}
}

func TestFindRunningSkipsNonFunctionFrames(t *testing.T) {
	tab := symtab.New()
	fn := values.NewNative(tab.Intern("f"), nil, nil)
	other := values.NewNative(tab.Intern("g"), nil, nil)

	s := NewStack()
	s.Push(&Frame{Source: values.MakeArray(1), Mode: ModeParse})
	s.Push(&Frame{Source: values.MakeArray(1), Mode: ModeFunctionBody, Function: other})
	target := &Frame{Source: values.MakeArray(1), Mode: ModeFunctionBody, Function: fn}
	s.Push(target)

	if got := s.FindRunning(fn); got != target {
		t.Fatalf("FindRunning did not locate the frame running fn")
	}
	if got := s.FindRunning(values.NewNative(tab.Intern("h"), nil, nil)); got != nil {
		t.Fatalf("expected nil for a function not on the stack")
	}
}

func TestAtEndAndCurrent(t *testing.T) {
	arr := values.MakeArray(2)
	arr.AppendCell(values.Integer(5))
	f := &Frame{Source: arr, Index: 0}

	if f.AtEnd() {
		t.Fatalf("frame at index 0 of a 1-cell array must not be at end")
	}
	if f.Current().I != 5 {
		t.Fatalf("Current did not return the expected cell")
	}
	f.Index = 1
	if !f.AtEnd() {
		t.Fatalf("frame at index 1 (the terminator) must report AtEnd")
	}
}
