package memdb

import (
	"context"
	"sort"
	"testing"

	"github.com/sourcegraph/qmatch"
)

func buildSample() *DB {
	b := NewBuilder()
	b.AddDocument(map[string][]int64{"cat": {0}, "dog": {3}}, map[int]string{0: "alpha"})
	b.AddDocument(map[string][]int64{"cat": {0, 4}, "fish": {2}}, map[int]string{0: "beta"})
	b.AddDocument(map[string][]int64{"dog": {0}}, map[int]string{0: "gamma"})
	return b.Build()
}

func TestBuilderAssignsSequentialDocIDs(t *testing.T) {
	b := NewBuilder()
	d1 := b.AddDocument(map[string][]int64{"a": {0}}, nil)
	d2 := b.AddDocument(map[string][]int64{"b": {0}}, nil)
	if d1 != 1 || d2 != 2 {
		t.Fatalf("docids = %d, %d, want 1, 2", d1, d2)
	}
}

func TestDBCountsAndLengths(t *testing.T) {
	db := buildSample()
	if db.DocCount() != 3 {
		t.Fatalf("DocCount = %d, want 3", db.DocCount())
	}
	if db.LastDocID() != 3 {
		t.Fatalf("LastDocID = %d, want 3", db.LastDocID())
	}
	length, err := db.DocLength(1)
	if err != nil {
		t.Fatalf("DocLength: %v", err)
	}
	if length != 4 {
		t.Fatalf("DocLength(1) = %d, want 4 (dog at position 3)", length)
	}
}

func TestDBDocLengthUnknownDoc(t *testing.T) {
	db := buildSample()
	if _, err := db.DocLength(99); err == nil {
		t.Fatal("DocLength(99) should error for a document that was never added")
	}
}

func TestTermFreqAndExists(t *testing.T) {
	db := buildSample()
	if db.TermFreq("cat") != 2 {
		t.Fatalf("TermFreq(cat) = %d, want 2", db.TermFreq("cat"))
	}
	if !db.TermExists("cat") {
		t.Fatal("TermExists(cat) = false")
	}
	if db.TermExists("bird") {
		t.Fatal("TermExists(bird) = true, want false")
	}
	if db.TermFreq("bird") != 0 {
		t.Fatalf("TermFreq(bird) = %d, want 0", db.TermFreq("bird"))
	}
}

func TestOpenPostListWalksPostingsInOrder(t *testing.T) {
	db := buildSample()
	ctx := context.Background()
	pl, err := db.OpenPostList(ctx, "cat", nil)
	if err != nil {
		t.Fatalf("OpenPostList: %v", err)
	}
	var got []qmatch.DocID
	for {
		post, ok, err := pl.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, post.DocID)
	}
	want := []qmatch.DocID{1, 2}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("walked %v, want %v", got, want)
	}
}

func TestOpenPostListUnknownTermIsEmpty(t *testing.T) {
	db := buildSample()
	pl, err := db.OpenPostList(context.Background(), "nope", nil)
	if err != nil {
		t.Fatalf("OpenPostList: %v", err)
	}
	_, ok, err := pl.Next()
	if err != nil || ok {
		t.Fatalf("Next on an unknown term = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

// TestMemLeafPostListSkipToIsIdempotent locks in the fix making SkipTo a
// no-op when the postlist is already positioned at or past the requested
// docid: calling SkipTo twice at the same (or a smaller) docid must not
// advance past the current posting, since operator postlists retry Check
// at the same docid within a single Next call.
func TestMemLeafPostListSkipToIsIdempotent(t *testing.T) {
	db := buildSample()
	pl, err := db.OpenPostList(context.Background(), "cat", nil)
	if err != nil {
		t.Fatalf("OpenPostList: %v", err)
	}

	post, ok, err := pl.SkipTo(2)
	if err != nil || !ok || post.DocID != 2 {
		t.Fatalf("SkipTo(2) = (%v, %v, %v), want (docid=2, true, nil)", post, ok, err)
	}

	// Re-issuing SkipTo at the same docid (or an earlier one) must return
	// the same posting, not advance to the next one or exhaust the list.
	post2, ok2, err2 := pl.SkipTo(2)
	if err2 != nil || !ok2 || post2.DocID != 2 {
		t.Fatalf("repeated SkipTo(2) = (%v, %v, %v), want (docid=2, true, nil)", post2, ok2, err2)
	}
	post3, ok3, err3 := pl.SkipTo(1)
	if err3 != nil || !ok3 || post3.DocID != 2 {
		t.Fatalf("SkipTo(1) after being at 2 = (%v, %v, %v), want (docid=2, true, nil)", post3, ok3, err3)
	}
}

func TestOpenValueListAndBounds(t *testing.T) {
	db := buildSample()
	if lower, upper := db.ValueLowerBound(0), db.ValueUpperBound(0); lower != "alpha" || upper != "gamma" {
		t.Fatalf("value bounds = [%s, %s], want [alpha, gamma]", lower, upper)
	}
	if db.ValueFreq(0) != 3 {
		t.Fatalf("ValueFreq(0) = %d, want 3", db.ValueFreq(0))
	}

	vl, err := db.OpenValueList(context.Background(), 0)
	if err != nil {
		t.Fatalf("OpenValueList: %v", err)
	}
	did, val, ok, err := vl.Next()
	if err != nil || !ok || did != 1 || val != "alpha" {
		t.Fatalf("first value = (%d, %q, %v, %v), want (1, alpha, true, nil)", did, val, ok, err)
	}
}

func TestCollectDocumentAndOpenDocument(t *testing.T) {
	db := buildSample()
	doc, err := db.CollectDocument(context.Background(), 2)
	if err != nil {
		t.Fatalf("CollectDocument: %v", err)
	}
	v, ok := doc.Value(0)
	if !ok || v != "beta" {
		t.Fatalf("Value(0) = (%q, %v), want (beta, true)", v, ok)
	}

	if _, err := db.CollectDocument(context.Background(), 99); err == nil {
		t.Fatal("CollectDocument(99) should error for an unknown docid")
	}
}

func TestExpandPrefixMatchesByPrefix(t *testing.T) {
	db := buildSample()
	got, err := db.ExpandPrefix(context.Background(), "ca", 0)
	if err != nil {
		t.Fatalf("ExpandPrefix: %v", err)
	}
	if len(got) != 1 || got[0] != "cat" {
		t.Fatalf("ExpandPrefix(ca) = %v, want [cat]", got)
	}
}

func TestExpandPrefixEditDistanceAdmitsFuzzyMatches(t *testing.T) {
	db := buildSample()
	got, err := db.ExpandPrefix(context.Background(), "dag", 1)
	if err != nil {
		t.Fatalf("ExpandPrefix: %v", err)
	}
	sort.Strings(got)
	found := false
	for _, term := range got {
		if term == "dog" {
			found = true
		}
	}
	if !found {
		t.Fatalf("ExpandPrefix(dag, dist=1) = %v, want it to include dog", got)
	}
}

func TestExpandPrefixZeroEditDistanceExcludesFuzzyMatches(t *testing.T) {
	db := buildSample()
	got, err := db.ExpandPrefix(context.Background(), "dag", 0)
	if err != nil {
		t.Fatalf("ExpandPrefix: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ExpandPrefix(dag, dist=0) = %v, want no matches", got)
	}
}

func TestLevenshteinDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"dog", "dog", 0},
		{"dog", "dag", 1},
		{"dog", "dogs", 1},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
	}
	for _, c := range cases {
		if got := levenshtein(c.a, c.b); got != c.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
