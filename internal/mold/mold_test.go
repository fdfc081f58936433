package mold

import (
	"testing"

	"rebolcore/internal/symtab"
	"rebolcore/internal/values"
)

func TestMoldScalars(t *testing.T) {
	tab := symtab.New()
	cases := []struct {
		c    values.Cell
		want string
	}{
		{values.Integer(42), "42"},
		{values.Logic(true), "true"},
		{values.Logic(false), "false"},
		{values.Blank(), "_"},
	}
	for _, tc := range cases {
		if got := Mold(tab, tc.c); got != tc.want {
			t.Errorf("Mold(%v) = %q, want %q", tc.c.Kind, got, tc.want)
		}
	}
}

func TestMoldWordVariants(t *testing.T) {
	tab := symtab.New()
	sym := tab.Intern("foo")
	cases := []struct {
		c    values.Cell
		want string
	}{
		{values.Word(values.KindWord, sym), "foo"},
		{values.Word(values.KindSetWord, sym), "foo:"},
		{values.Word(values.KindGetWord, sym), ":foo"},
		{values.Word(values.KindLitWord, sym), "'foo"},
	}
	for _, tc := range cases {
		if got := Mold(tab, tc.c); got != tc.want {
			t.Errorf("Mold(%v) = %q, want %q", tc.c.Kind, got, tc.want)
		}
	}
}

func TestMoldBlockBracketsElements(t *testing.T) {
	tab := symtab.New()
	arr := values.MakeArray(2)
	arr.AppendCell(values.Integer(1))
	arr.AppendCell(values.Integer(2))
	c := values.SeriesCell(values.KindBlock, arr, 0)
	if got, want := Mold(tab, c), "[1 2]"; got != want {
		t.Errorf("Mold(block) = %q, want %q", got, want)
	}
}

func TestMoldStringQuotesOnlyWhenMolding(t *testing.T) {
	tab := symtab.New()
	ser := values.MakeSeries(0)
	ser.AppendBytes([]byte("hi")...)
	c := values.SeriesCell(values.KindString, ser, 0)

	if got := Mold(tab, c); got != "\"hi\"" {
		t.Errorf("Mold(string) = %q", got)
	}
	if got := Form(tab, c); got != "hi" {
		t.Errorf("Form(string) = %q", got)
	}
}
