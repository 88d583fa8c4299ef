package qmatch

import (
	"context"
	"testing"
)

func TestGlobalDocID(t *testing.T) {
	cases := []struct {
		did        DocID
		shardIndex int
		nShards    int
		want       int64
	}{
		{did: 1, shardIndex: 0, nShards: 3, want: 1},
		{did: 1, shardIndex: 1, nShards: 3, want: 2},
		{did: 1, shardIndex: 2, nShards: 3, want: 3},
		{did: 2, shardIndex: 0, nShards: 3, want: 4},
		{did: 5, shardIndex: 2, nShards: 4, want: (5-1)*4 + 2 + 1},
	}
	for _, c := range cases {
		if got := GlobalDocID(c.did, c.shardIndex, c.nShards); got != c.want {
			t.Errorf("GlobalDocID(%d, %d, %d) = %d, want %d", c.did, c.shardIndex, c.nShards, got, c.want)
		}
	}
}

func TestSortItemsRelevance(t *testing.T) {
	items := []MSetItem{
		{DocID: 3, Weight: 1.0},
		{DocID: 1, Weight: 2.0},
		{DocID: 2, Weight: 2.0},
	}
	opts := &MatchOptions{}
	SortItems(items, opts)
	want := []DocID{1, 2, 3}
	for i, w := range want {
		if items[i].DocID != w {
			t.Fatalf("items[%d].DocID = %d, want %d (order %v)", i, items[i].DocID, w, items)
		}
	}
}

func TestSortItemsValue(t *testing.T) {
	items := []MSetItem{
		{DocID: 1, Weight: 1.0, SortKey: "c"},
		{DocID: 2, Weight: 1.0, SortKey: "a"},
		{DocID: 3, Weight: 1.0, SortKey: "b"},
	}
	opts := &MatchOptions{SortBy: SortByValue, SortValueFwd: true}
	SortItems(items, opts)
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if items[i].SortKey != w {
			t.Fatalf("items[%d].SortKey = %q, want %q", i, items[i].SortKey, w)
		}
	}
}

func TestSortItemsDocIDOrderDesc(t *testing.T) {
	items := []MSetItem{
		{DocID: 1, Weight: 1.0},
		{DocID: 2, Weight: 1.0},
		{DocID: 3, Weight: 1.0},
	}
	opts := &MatchOptions{DocIDOrder: DocIDOrderDesc}
	SortItems(items, opts)
	want := []DocID{3, 2, 1}
	for i, w := range want {
		if items[i].DocID != w {
			t.Fatalf("items[%d].DocID = %d, want %d", i, items[i].DocID, w)
		}
	}
}

func TestPercentScaleSingleTerm(t *testing.T) {
	termInfo := map[string]TermWeightInfo{"foo": {TermFreq: 1, MaxTermWeight: 5}}
	got := PercentScale(5, termInfo, 5)
	want := 100 / 5.0
	if got != want {
		t.Fatalf("PercentScale = %v, want %v", got, want)
	}
}

func TestPercentScaleMultiTerm(t *testing.T) {
	termInfo := map[string]TermWeightInfo{
		"foo": {MaxTermWeight: 3},
		"bar": {MaxTermWeight: 2},
	}
	// Best document matched both terms for a weight of 5, the greatest
	// weight seen in the match.
	got := PercentScale(5, termInfo, 5)
	want := 100 * 5.0 / (5.0 * 5.0)
	if got != want {
		t.Fatalf("PercentScale = %v, want %v", got, want)
	}
}

func TestPercentScaleZeroGreatest(t *testing.T) {
	if got := PercentScale(0, nil, 0); got != 0 {
		t.Fatalf("PercentScale with greatestWt=0 = %v, want 0", got)
	}
}

// fakeDoc is a minimal Document used across mset/submatch tests.
type fakeDoc struct {
	values map[int]string
	length int64
}

func (d *fakeDoc) Value(slot int) (string, bool) { v, ok := d.values[slot]; return v, ok }
func (d *fakeDoc) Length() int64                 { return d.length }

// fakeDatabase implements just enough of Database for MSet.GetDoc.
type fakeDatabase struct {
	docs map[DocID]*fakeDoc
}

func (d *fakeDatabase) DocCount() int64     { return int64(len(d.docs)) }
func (d *fakeDatabase) LastDocID() DocID    { return 0 }
func (d *fakeDatabase) AvLength() float64   { return 0 }
func (d *fakeDatabase) DocLength(did DocID) (int64, error) {
	return d.docs[did].Length(), nil
}
func (d *fakeDatabase) TotalLength() int64       { return 0 }
func (d *fakeDatabase) HasPositions() bool       { return false }
func (d *fakeDatabase) TermExists(string) bool   { return false }
func (d *fakeDatabase) TermFreq(string) int64    { return 0 }
func (d *fakeDatabase) CollectionFreq(string) int64 { return 0 }
func (d *fakeDatabase) OpenPostList(ctx context.Context, term string, hint LeafPostList) (LeafPostList, error) {
	return nil, nil
}
func (d *fakeDatabase) OpenPositionList(ctx context.Context, did DocID, term string) (PositionList, error) {
	return nil, nil
}
func (d *fakeDatabase) OpenDocument(ctx context.Context, did DocID, lazy bool) (Document, error) {
	return d.CollectDocument(ctx, did)
}
func (d *fakeDatabase) ValueLowerBound(slot int) string { return "" }
func (d *fakeDatabase) ValueUpperBound(slot int) string { return "" }
func (d *fakeDatabase) ValueFreq(slot int) int64        { return 0 }
func (d *fakeDatabase) OpenValueList(ctx context.Context, slot int) (ValueList, error) {
	return nil, nil
}
func (d *fakeDatabase) RequestDocument(ctx context.Context, did DocID) {}
func (d *fakeDatabase) CollectDocument(ctx context.Context, did DocID) (Document, error) {
	return d.docs[did], nil
}

func TestMSetGetDocCaches(t *testing.T) {
	db := &fakeDatabase{docs: map[DocID]*fakeDoc{
		1: {values: map[int]string{0: "one"}, length: 3},
		2: {values: map[int]string{0: "two"}, length: 4},
	}}
	ms := &MSet{Items: []MSetItem{{DocID: 1}, {DocID: 2}}}

	doc, err := ms.GetDoc(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("GetDoc: %v", err)
	}
	if v, _ := doc.Value(0); v != "one" {
		t.Fatalf("GetDoc(0).Value(0) = %q, want %q", v, "one")
	}

	// Mutate the backing map: a cached GetDoc must not re-fetch.
	db.docs[1] = &fakeDoc{values: map[int]string{0: "changed"}, length: 3}
	doc2, err := ms.GetDoc(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("GetDoc (cached): %v", err)
	}
	if v, _ := doc2.Value(0); v != "one" {
		t.Fatalf("GetDoc(0) after cache invalidation attempt = %q, want cached %q", v, "one")
	}
}
