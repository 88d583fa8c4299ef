package multimatch

import (
	"context"

	"github.com/sourcegraph/qmatch"
)

// postListTree combines the per-shard compiled postlists into the
// single tree the top-k loop drives. Per §5's ordering guarantees, the
// PostListTree processes shards sequentially — shard 0 is fully drained
// before moving to shard 1 — and invalidates the per-shard
// document/value cache on every shard transition.
type postListTree struct {
	subs  []qmatch.SubMatch
	pls   []qmatch.PostList
	shard int
	did   qmatch.DocID
	atEnd bool

	docCache map[qmatch.DocID]qmatch.Document
}

func newPostListTree(subs []qmatch.SubMatch, pls []qmatch.PostList) *postListTree {
	t := &postListTree{subs: subs, pls: pls}
	t.advancePastEmptyShards()
	return t
}

// advancePastEmptyShards skips any leading shards whose compiled
// postlist is already exhausted (e.g. MatchNothing).
func (t *postListTree) advancePastEmptyShards() {
	for t.shard < len(t.pls) && t.pls[t.shard].AtEnd() {
		t.onShardTransition()
		t.shard++
	}
	if t.shard >= len(t.pls) {
		t.atEnd = true
	}
}

// onShardTransition invalidates the per-shard document/value cache, per
// §5.
func (t *postListTree) onShardTransition() {
	t.docCache = nil
}

func (t *postListTree) current() qmatch.PostList { return t.pls[t.shard] }

// Next advances within the current shard's postlist; when that shard is
// exhausted it transitions to the next shard and resumes there. When the
// current shard's postlist decays, its replacement is stored in that
// shard's slot; Next itself returns only an error.
func (t *postListTree) Next(ctx context.Context, wMin float64) error {
	if t.atEnd {
		return nil
	}
	repl, err := t.current().Next(ctx, wMin)
	if err != nil {
		return err
	}
	if repl != nil {
		t.pls[t.shard] = repl
	}
	if t.current().AtEnd() {
		t.shard++
		t.advancePastEmptyShards()
		return nil
	}
	t.did = t.current().GetDocID()
	return nil
}

func (t *postListTree) AtEnd() bool { return t.atEnd }

func (t *postListTree) GlobalDocID() int64 {
	return qmatch.GlobalDocID(t.did, t.shard, len(t.pls))
}

func (t *postListTree) LocalDocID() qmatch.DocID { return t.did }
func (t *postListTree) ShardIndex() int           { return t.shard }

func (t *postListTree) GetWeight(doclen, uniqueTerms, wdfDocMax int64) float64 {
	return t.current().GetWeight(doclen, uniqueTerms, wdfDocMax)
}

func (t *postListTree) RecalcMaxWeight() float64 {
	// The maxweight of the tree as a whole is the max over the current
	// shard's bound and every not-yet-visited shard's bound, since
	// shards after the current one may still contribute a higher-weight
	// posting once reached.
	var best float64
	for i := t.shard; i < len(t.pls); i++ {
		if mw := t.pls[i].RecalcMaxWeight(); i == t.shard || mw > best {
			best = mw
		}
	}
	return best
}

func (t *postListTree) TermFreqMin() int64 {
	var sum int64
	for i := t.shard; i < len(t.pls); i++ {
		sum += t.pls[i].TermFreqMin()
	}
	return sum
}

func (t *postListTree) TermFreqMax() int64 {
	var sum int64
	for _, pl := range t.pls {
		sum += pl.TermFreqMax()
	}
	return sum
}

func (t *postListTree) TermFreqEst() int64 {
	var sum int64
	for _, pl := range t.pls {
		sum += pl.TermFreqEst()
	}
	return sum
}

func (t *postListTree) Database() qmatch.Database {
	return t.subs[t.shard].Database()
}

func (t *postListTree) Document(ctx context.Context, did qmatch.DocID) (qmatch.Document, error) {
	if t.docCache == nil {
		t.docCache = make(map[qmatch.DocID]qmatch.Document)
	}
	if d, ok := t.docCache[did]; ok {
		return d, nil
	}
	d, err := t.Database().CollectDocument(ctx, did)
	if err != nil {
		return nil, err
	}
	t.docCache[did] = d
	return d, nil
}
