package qmatch

import (
	"context"
	"testing"
)

// termFromPostings builds a termPostList over an in-memory posting list,
// for composing operator trees directly in tests without going through
// the QueryOptimiser.
func termFromPostings(postings []Posting, lengths map[DocID]int64, tf int64, w Weight) PostList {
	leaf := newFakeLeaf(postings, lengths)
	db := &fakeTermDB{tf: tf}
	return newTermPostList(db, "t", leaf, w)
}

func drain(t *testing.T, p PostList) []DocID {
	t.Helper()
	ctx := context.Background()
	var got []DocID
	for {
		repl, err := p.Next(ctx, 0)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if repl != nil {
			p = repl
		}
		if p.AtEnd() {
			break
		}
		got = append(got, p.GetDocID())
	}
	return got
}

func assertDocIDs(t *testing.T, got []DocID, want []DocID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestMultiAndPostListIntersects(t *testing.T) {
	lengths := map[DocID]int64{1: 10, 2: 10, 3: 10, 4: 10, 5: 10}
	a := termFromPostings([]Posting{{DocID: 1, WDF: 1}, {DocID: 2, WDF: 1}, {DocID: 3, WDF: 1}}, lengths, 3, &constWeight{sum: 1, max: 1})
	b := termFromPostings([]Posting{{DocID: 2, WDF: 1}, {DocID: 3, WDF: 1}, {DocID: 4, WDF: 1}}, lengths, 3, &constWeight{sum: 1, max: 1})

	and := newMultiAndPostList([]PostList{a, b})
	got := drain(t, and)
	assertDocIDs(t, got, []DocID{2, 3})
}

func TestMultiAndPostListSingleChildUnwraps(t *testing.T) {
	a := termFromPostings([]Posting{{DocID: 1, WDF: 1}}, map[DocID]int64{1: 5}, 1, &constWeight{sum: 1, max: 1})
	got := newMultiAndPostList([]PostList{a})
	if got != a {
		t.Fatalf("newMultiAndPostList with one child should return it unwrapped")
	}
}

func TestMultiAndPostListEmptyIsMatchNothing(t *testing.T) {
	if newMultiAndPostList(nil) != MatchNothing {
		t.Fatal("newMultiAndPostList(nil) should be MatchNothing")
	}
}

func TestMultiAndPostListWeightSumsChildren(t *testing.T) {
	lengths := map[DocID]int64{1: 10}
	a := termFromPostings([]Posting{{DocID: 1, WDF: 1}}, lengths, 1, &constWeight{sum: 2, max: 2})
	b := termFromPostings([]Posting{{DocID: 1, WDF: 1}}, lengths, 1, &constWeight{sum: 3, max: 3})
	and := newMultiAndPostList([]PostList{a, b})

	ctx := context.Background()
	if _, err := and.Next(ctx, 0); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if and.AtEnd() {
		t.Fatal("expected a match at doc 1")
	}
	if got, want := and.GetWeight(10, 0, 0), 5.0; got != want {
		t.Errorf("GetWeight = %v, want %v", got, want)
	}
	if got, want := and.RecalcMaxWeight(), 5.0; got != want {
		t.Errorf("RecalcMaxWeight = %v, want %v", got, want)
	}
}

func TestAndNotPostListExcludes(t *testing.T) {
	lengths := map[DocID]int64{1: 10, 2: 10, 3: 10, 4: 10}
	l := termFromPostings([]Posting{{DocID: 1, WDF: 1}, {DocID: 2, WDF: 1}, {DocID: 3, WDF: 1}}, lengths, 3, &constWeight{sum: 1, max: 1})
	r := termFromPostings([]Posting{{DocID: 2, WDF: 1}}, lengths, 1, &constWeight{sum: 1, max: 1})

	andNot := newAndNotPostList(l, r, 4)
	got := drain(t, andNot)
	assertDocIDs(t, got, []DocID{1, 3})
}

func TestAndNotPostListDegenerateChildren(t *testing.T) {
	a := termFromPostings([]Posting{{DocID: 1, WDF: 1}}, map[DocID]int64{1: 5}, 1, &constWeight{sum: 1, max: 1})
	if got := newAndNotPostList(MatchNothing, a, 1); got != MatchNothing {
		t.Error("AND_NOT(MatchNothing, x) should be MatchNothing")
	}
	if got := newAndNotPostList(a, MatchNothing, 1); got != a {
		t.Error("AND_NOT(x, MatchNothing) should degenerate to x")
	}
}

func TestAndMaybePostListAddsRightWeightWhenPresent(t *testing.T) {
	lengths := map[DocID]int64{1: 10, 2: 10, 3: 10}
	l := termFromPostings([]Posting{{DocID: 1, WDF: 1}, {DocID: 2, WDF: 1}, {DocID: 3, WDF: 1}}, lengths, 3, &constWeight{sum: 1, max: 1})
	r := termFromPostings([]Posting{{DocID: 2, WDF: 1}}, lengths, 1, &constWeight{sum: 10, max: 10})

	am := newAndMaybePostList(l, r)
	ctx := context.Background()

	var gotDocs []DocID
	var gotWeights []float64
	for {
		if _, err := am.Next(ctx, 0); err != nil {
			t.Fatalf("Next: %v", err)
		}
		if am.AtEnd() {
			break
		}
		gotDocs = append(gotDocs, am.GetDocID())
		gotWeights = append(gotWeights, am.GetWeight(10, 0, 0))
	}
	assertDocIDs(t, gotDocs, []DocID{1, 2, 3})
	want := []float64{1, 11, 1}
	for i, w := range want {
		if gotWeights[i] != w {
			t.Errorf("weight[%d] = %v, want %v (docs=%v)", i, gotWeights[i], w, gotDocs)
		}
	}
}
