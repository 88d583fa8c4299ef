package multimatch

import (
	"context"
	"errors"
	"testing"

	"github.com/sourcegraph/qmatch"
	"github.com/sourcegraph/qmatch/memdb"
	"github.com/sourcegraph/qmatch/query"
	"github.com/sourcegraph/qmatch/weight"
)

func buildDocs() *memdb.DB {
	b := memdb.NewBuilder()
	b.AddDocument(map[string][]int64{"cat": {0}, "dog": {3}}, map[int]string{0: "red"})
	b.AddDocument(map[string][]int64{"cat": {0, 1, 4}}, map[int]string{0: "blue"})
	b.AddDocument(map[string][]int64{"dog": {0}}, map[int]string{0: "red"})
	return b.Build()
}

func TestMultiMatchRunRanksByTermFrequency(t *testing.T) {
	db := buildDocs()
	sub := qmatch.NewLocalSubMatch(db, weight.NewBM25())
	mm := &MultiMatch{
		Subs:    []qmatch.SubMatch{sub},
		Query:   query.Leaf{Term: "cat", WQF: 1},
		Weight:  weight.NewBM25(),
		Options: qmatch.MatchOptions{MaxItems: 10, CollapseKey: qmatch.NoCollapse},
	}

	ms, err := mm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ms.Items) != 2 {
		t.Fatalf("got %d items, want 2 (docs 1 and 2 both contain cat)", len(ms.Items))
	}
	// Doc 2 has wdf=3 for "cat" vs doc 1's wdf=1, so it should rank first.
	if ms.Items[0].DocID != 2 {
		t.Fatalf("top result = doc %d, want doc 2 (higher wdf)", ms.Items[0].DocID)
	}
}

func TestMultiMatchRunAndQueryIntersects(t *testing.T) {
	db := buildDocs()
	sub := qmatch.NewLocalSubMatch(db, weight.NewBM25())
	mm := &MultiMatch{
		Subs:    []qmatch.SubMatch{sub},
		Query:   query.NewAnd(query.Leaf{Term: "cat"}, query.Leaf{Term: "dog"}),
		Weight:  weight.NewBM25(),
		Options: qmatch.MatchOptions{MaxItems: 10, CollapseKey: qmatch.NoCollapse},
	}
	ms, err := mm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ms.Items) != 1 || ms.Items[0].DocID != 1 {
		t.Fatalf("AND(cat,dog) = %v, want only doc 1", ms.Items)
	}
}

func TestMultiMatchRunNoMatchingShardsReturnsEmptyMSet(t *testing.T) {
	mm := &MultiMatch{
		Subs:    nil,
		Query:   query.Leaf{Term: "cat"},
		Weight:  weight.NewBM25(),
		Options: qmatch.MatchOptions{MaxItems: 10, CollapseKey: qmatch.NoCollapse},
	}
	ms, err := mm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ms.Items) != 0 {
		t.Fatalf("Run with no shards = %v items, want 0", ms.Items)
	}
}

// erroringSubMatch fails PrepareMatch so the ErrorHandler drop-and-continue
// path gets exercised.
type erroringSubMatch struct{}

func (erroringSubMatch) PrepareMatch(ctx context.Context, q query.Q, nowait bool, shared *qmatch.Stats) (bool, error) {
	return false, errors.New("boom")
}
func (erroringSubMatch) StartMatch(ctx context.Context, first, maxItems, checkAtLeast int, total *qmatch.Stats) error {
	return nil
}
func (erroringSubMatch) GetPostListAndTermInfo(ctx context.Context, q query.Q, termInfo map[string]qmatch.TermWeightInfo) (qmatch.PostList, error) {
	return qmatch.MatchNothing, nil
}
func (erroringSubMatch) Database() qmatch.Database { return nil }

func TestMultiMatchRunDropsFailedShardWhenHandlerAllows(t *testing.T) {
	db := buildDocs()
	good := qmatch.NewLocalSubMatch(db, weight.NewBM25())

	var handledIndex int
	var handledErr error
	mm := &MultiMatch{
		Subs:    []qmatch.SubMatch{erroringSubMatch{}, good},
		Query:   query.Leaf{Term: "dog"},
		Weight:  weight.NewBM25(),
		Options: qmatch.MatchOptions{MaxItems: 10, CollapseKey: qmatch.NoCollapse},
		ErrorHandler: func(shardIndex int, err error) bool {
			handledIndex = shardIndex
			handledErr = err
			return true
		},
	}
	ms, err := mm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if handledErr == nil {
		t.Fatal("ErrorHandler was never invoked")
	}
	if handledIndex != 0 {
		t.Fatalf("ErrorHandler called with index %d, want 0", handledIndex)
	}
	if len(ms.Items) != 2 {
		t.Fatalf("got %d items from the surviving shard, want 2 (docs 1 and 3 contain dog)", len(ms.Items))
	}
}

func TestMultiMatchRunAbortsWhenHandlerDeclines(t *testing.T) {
	mm := &MultiMatch{
		Subs:    []qmatch.SubMatch{erroringSubMatch{}},
		Query:   query.Leaf{Term: "dog"},
		Weight:  weight.NewBM25(),
		Options: qmatch.MatchOptions{MaxItems: 10, CollapseKey: qmatch.NoCollapse},
		ErrorHandler: func(shardIndex int, err error) bool {
			return false
		},
	}
	if _, err := mm.Run(context.Background()); err == nil {
		t.Fatal("Run should propagate the shard error when the handler declines to continue")
	}
}

func TestRunSingleShard(t *testing.T) {
	db := buildDocs()
	sub := qmatch.NewLocalSubMatch(db, weight.NewBM25())
	stats := qmatch.NewStats()
	stats.CollectionSize = db.DocCount()
	stats.TotalLength = db.TotalLength()

	ms, termInfo, err := RunSingleShard(context.Background(), sub, stats, query.Leaf{Term: "cat", WQF: 1}, qmatch.MatchOptions{MaxItems: 10, CollapseKey: qmatch.NoCollapse})
	if err != nil {
		t.Fatalf("RunSingleShard: %v", err)
	}
	if len(ms.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(ms.Items))
	}
	if _, ok := termInfo["cat"]; !ok {
		t.Fatalf("termInfo = %v, want an entry for \"cat\"", termInfo)
	}
}
