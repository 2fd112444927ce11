package source

import (
	"testing"
)

func TestFileSetIDsStartAtOne(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("a.mica", "module 0x1::a {}")
	if id != 1 {
		t.Fatalf("first id = %d", id)
	}
	if fs.Path(NoFile) != "" {
		t.Fatalf("NoFile has a path: %q", fs.Path(NoFile))
	}
	if fs.Path(id) != "a.mica" {
		t.Fatalf("path = %q", fs.Path(id))
	}
	if fs.Len() != 1 {
		t.Fatalf("len = %d", fs.Len())
	}
}

func TestFileSetOutOfRange(t *testing.T) {
	fs := NewFileSet()
	if fs.Path(99) != "" || fs.Text(99) != "" {
		t.Fatalf("out-of-range id returned data")
	}
}

func TestPosition(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("a.mica", "one\ntwo\nthree")

	cases := []struct {
		offset    uint32
		line, col int
	}{
		{0, 1, 1},
		{3, 1, 4},
		{4, 2, 1},
		{6, 2, 3},
		{8, 3, 1},
		{100, 3, 6}, // clamped to end of text
	}
	for _, c := range cases {
		line, col := fs.Position(id, c.offset)
		if line != c.line || col != c.col {
			t.Errorf("Position(%d) = %d:%d, want %d:%d", c.offset, line, col, c.line, c.col)
		}
	}
}

func TestLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.Add("a.mica", "one\ntwo\nthree")
	if got := fs.Line(id, 2); got != "two" {
		t.Fatalf("line 2 = %q", got)
	}
	if got := fs.Line(id, 0); got != "" {
		t.Fatalf("line 0 = %q", got)
	}
	if got := fs.Line(id, 4); got != "" {
		t.Fatalf("line 4 = %q", got)
	}
}

func TestSortedPaths(t *testing.T) {
	fs := NewFileSet()
	fs.Add("b.mica", "")
	fs.Add("a.mica", "")
	got := fs.SortedPaths()
	if len(got) != 2 || got[0] != "a.mica" || got[1] != "b.mica" {
		t.Fatalf("sorted paths = %v", got)
	}
}

func TestSpanCoverAndBefore(t *testing.T) {
	a := Span{File: 1, Start: 5, End: 10}
	b := Span{File: 1, Start: 2, End: 7}
	c := a.Cover(b)
	if c.Start != 2 || c.End != 10 {
		t.Fatalf("cover = %+v", c)
	}
	other := Span{File: 2, Start: 0, End: 1}
	if got := a.Cover(other); got != a {
		t.Fatalf("cross-file cover changed the span: %+v", got)
	}
	if !b.Before(a) || a.Before(b) {
		t.Fatalf("Before ordering wrong")
	}
	if !a.Before(other) {
		t.Fatalf("file ordering wrong")
	}
}
