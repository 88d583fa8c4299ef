package query

import "testing"

func TestNewAndPropagatesMatchNothing(t *testing.T) {
	q := NewAnd(Leaf{Term: "a"}, MatchNothing, Leaf{Term: "b"})
	if !IsMatchNothing(q) {
		t.Fatalf("NewAnd with a MatchNothing child = %v, want MatchNothing", q)
	}
}

func TestNewAndSingleChildUnwraps(t *testing.T) {
	leaf := Leaf{Term: "a"}
	q := NewAnd(leaf)
	if q != Q(leaf) {
		t.Fatalf("NewAnd(single) = %v, want %v", q, leaf)
	}
}

func TestNewOrDropsMatchNothingChildren(t *testing.T) {
	q := NewOr(MatchNothing, Leaf{Term: "a"}, MatchNothing, Leaf{Term: "b"})
	mw, ok := q.(MultiWay)
	if !ok {
		t.Fatalf("NewOr result = %T, want MultiWay", q)
	}
	if len(mw.Children) != 2 {
		t.Fatalf("NewOr children = %v, want 2 entries", mw.Children)
	}
}

func TestNewOrAllNothingIsNothing(t *testing.T) {
	if q := NewOr(MatchNothing, MatchNothing); !IsMatchNothing(q) {
		t.Fatalf("NewOr(all MatchNothing) = %v, want MatchNothing", q)
	}
}

func TestNewOrSingleSurvivorUnwraps(t *testing.T) {
	leaf := Leaf{Term: "only"}
	q := NewOr(MatchNothing, leaf)
	if q != Q(leaf) {
		t.Fatalf("NewOr with single survivor = %v, want %v", q, leaf)
	}
}

func TestNewAndNotDegenerateCases(t *testing.T) {
	left := Leaf{Term: "l"}
	if q := NewAndNot(MatchNothing, left); !IsMatchNothing(q) {
		t.Fatalf("NewAndNot(MatchNothing, x) = %v, want MatchNothing", q)
	}
	if q := NewAndNot(left, MatchNothing); q != Q(left) {
		t.Fatalf("NewAndNot(x, MatchNothing) = %v, want %v", q, left)
	}
}

func TestNewAndNotStripsScaleOnRight(t *testing.T) {
	left := Leaf{Term: "l"}
	right := NewScaleWeight(2, Leaf{Term: "r"})
	q := NewAndNot(left, right)
	mw, ok := q.(MultiWay)
	if !ok {
		t.Fatalf("NewAndNot result = %T, want MultiWay", q)
	}
	if _, ok := mw.Children[1].(Leaf); !ok {
		t.Fatalf("NewAndNot right child = %#v, want unwrapped Leaf", mw.Children[1])
	}
}

func TestNewSynonymOfSingleWildcardCommutes(t *testing.T) {
	w := WildcardQ{Pattern: "foo"}
	q := NewSynonym(w)
	got, ok := q.(WildcardQ)
	if !ok {
		t.Fatalf("NewSynonym(single wildcard) = %T, want WildcardQ", q)
	}
	if got.Combine != CombinerSynonym {
		t.Fatalf("Combine = %v, want CombinerSynonym", got.Combine)
	}
}

func TestNewEliteSetCarriesK(t *testing.T) {
	q := NewEliteSet(3, Leaf{Term: "a"}, Leaf{Term: "b"}, Leaf{Term: "c"})
	mw, ok := q.(MultiWay)
	if !ok {
		t.Fatalf("NewEliteSet result = %T, want MultiWay", q)
	}
	if mw.K != 3 {
		t.Fatalf("K = %d, want 3", mw.K)
	}
	if mw.Op != OpEliteSet {
		t.Fatalf("Op = %v, want OpEliteSet", mw.Op)
	}
}

func TestNewScaleWeightOfMatchNothing(t *testing.T) {
	if q := NewScaleWeight(2, MatchNothing); !IsMatchNothing(q) {
		t.Fatalf("NewScaleWeight(f, MatchNothing) = %v, want MatchNothing", q)
	}
}

func TestMapRewritesBottomUp(t *testing.T) {
	q := NewAnd(Leaf{Term: "a"}, Leaf{Term: "b"})
	var seen []string
	rewritten := Map(q, func(n Q) Q {
		if leaf, ok := n.(Leaf); ok {
			seen = append(seen, leaf.Term)
			leaf.WQF = 5
			return leaf
		}
		return n
	})
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("Map visited %v, want [a b]", seen)
	}
	mw, ok := rewritten.(MultiWay)
	if !ok {
		t.Fatalf("rewritten = %T, want MultiWay", rewritten)
	}
	for _, c := range mw.Children {
		if leaf, ok := c.(Leaf); !ok || leaf.WQF != 5 {
			t.Fatalf("child %#v, want WQF=5", c)
		}
	}
}

func TestVisitAtomsVisitsLeavesOnly(t *testing.T) {
	q := NewAnd(Leaf{Term: "a"}, NewOr(Leaf{Term: "b"}, Leaf{Term: "c"}))
	var terms []string
	VisitAtoms(q, func(n Q) {
		if _, ok := n.(MultiWay); ok {
			t.Errorf("VisitAtoms visited inner node %#v", n)
		}
		if leaf, ok := n.(Leaf); ok {
			terms = append(terms, leaf.Term)
		}
	})
	if len(terms) != 3 {
		t.Fatalf("VisitAtoms found %v, want 3 leaves", terms)
	}
}

func TestIsMatchAllAndIsMatchNothing(t *testing.T) {
	if !IsMatchAll(MatchAll) {
		t.Error("IsMatchAll(MatchAll) = false")
	}
	if IsMatchAll(MatchNothing) {
		t.Error("IsMatchAll(MatchNothing) = true")
	}
	if !IsMatchNothing(MatchNothing) {
		t.Error("IsMatchNothing(MatchNothing) = false")
	}
}
