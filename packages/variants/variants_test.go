package variants

import (
	"testing"

	"github.com/dancharlton9/gambling-blocklist/packages/domain"
)

func TestExpand(t *testing.T) {
	g := New(1, 9)

	got := g.Expand("foo.com")
	if len(got) != 9 {
		t.Fatalf("Expand(foo.com) returned %d siblings, want 9: %v", len(got), got)
	}
	want := map[domain.Domain]bool{}
	for _, d := range []domain.Domain{"foo1.com", "foo2.com", "foo3.com", "foo4.com", "foo5.com", "foo6.com", "foo7.com", "foo8.com", "foo9.com"} {
		want[d] = true
	}
	for _, d := range got {
		if !want[d] {
			t.Errorf("unexpected sibling %q", d)
		}
	}
}

func TestExpand_NumberedNotReexpanded(t *testing.T) {
	g := New(1, 9)
	for _, d := range []domain.Domain{"foo1.com", "casino777.bet", "x0.co.uk"} {
		if got := g.Expand(d); len(got) != 0 {
			t.Errorf("Expand(%q) = %v, want empty", d, got)
		}
	}
}

func TestExpand_MultiLabelSuffix(t *testing.T) {
	got := New(1, 2).Expand("spin.casino.co.uk")
	if len(got) != 2 || got[0] != "spin1.casino.co.uk" || got[1] != "spin2.casino.co.uk" {
		t.Fatalf("Expand = %v, want [spin1.casino.co.uk spin2.casino.co.uk]", got)
	}
}

func TestExpand_ConfiguredRange(t *testing.T) {
	g := New(1, 19)
	if got := g.Expand("luckyspin.io"); len(got) != 19 || g.Count() != 19 {
		t.Fatalf("Expand with 1..19 returned %d siblings, Count %d", len(got), g.Count())
	}
	if got := New(5, 1).Expand("luckyspin.io"); len(got) != 0 {
		t.Fatalf("inverted range should produce nothing, got %v", got)
	}
}

func TestExpand_ZeroMaxDisables(t *testing.T) {
	for _, g := range []Generator{New(0, 0), New(1, 0)} {
		if g.Count() != 0 {
			t.Errorf("%+v Count = %d, want 0", g, g.Count())
		}
		if got := g.Expand("luckyspin.io"); len(got) != 0 {
			t.Errorf("%+v Expand = %v, want nothing", g, got)
		}
	}
	if got := New(0, 1).Expand("bet.io"); len(got) != 2 || got[0] != "bet0.io" {
		t.Fatalf("Expand with 0..1 = %v, want [bet0.io bet1.io]", got)
	}
}

func TestExpand_Sorted(t *testing.T) {
	got := New(1, 12).Expand("bet.io")
	for i := 1; i < len(got); i++ {
		if got[i-1] >= got[i] {
			t.Fatalf("Expand output not sorted: %v", got)
		}
	}
}
