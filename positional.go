package qmatch

import (
	"container/heap"
	"context"
)

// termPositions holds an already-open position list plus cached values,
// one per phrase/near term, used by the three positional postlists
// below. wdf is the caller-supplied value terms are ordered by, ascending.
type termPositions struct {
	pl  PositionList
	wdf int64
}

// gatherTermPositions opens a PositionList for each term in terms at the
// given docid, sorted ascending by the matching wdfs entry. The optimiser
// passes each Leaf's WQF there, not the term's wdf in document did.
func gatherTermPositions(ctx context.Context, db Database, did DocID, terms []string, wdfs []int64) ([]termPositions, error) {
	out := make([]termPositions, len(terms))
	for i, t := range terms {
		pl, err := db.OpenPositionList(ctx, did, t)
		if err != nil {
			return nil, err
		}
		out[i] = termPositions{pl: pl, wdf: wdfs[i]}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].wdf < out[j-1].wdf; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// exactPhraseMatches reports whether the phrase terms occur contiguously
// (offset_i = i - anchor) in document did, per §4.3's ExactPhrasePostList
// rule: advance the anchor term's position list and check every other
// term has a position at p+offset exactly. The anchor is term 0; which
// term anchors only affects how many positions get walked, never
// correctness, so the wdf-ascending ordering §4.3 recommends is left as
// a performance note rather than threaded through this reference
// implementation.
func exactPhraseMatches(ctx context.Context, db Database, did DocID, terms []string, wdfs []int64) (bool, error) {
	if len(terms) == 0 {
		return false, nil
	}
	pls := make([]PositionList, len(terms))
	for i, t := range terms {
		pl, err := db.OpenPositionList(ctx, did, t)
		if err != nil {
			return false, err
		}
		if pl == nil {
			return false, nil
		}
		pls[i] = pl
	}
	for {
		pos, ok, err := pls[0].Next()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		allMatch := true
		for i := 1; i < len(terms); i++ {
			want := pos + int64(i)
			np, ok, err := pls[i].SkipTo(want)
			if err != nil {
				return false, err
			}
			if !ok || np != want {
				allMatch = false
				break
			}
		}
		if allMatch {
			return true, nil
		}
	}
}

// ExactPhrasePostList emits documents where the configured terms occur
// as an exact contiguous phrase, filtering an underlying AND of the
// phrase terms. Grounded on original_source's exactphrasepostlist.cc.
type ExactPhrasePostList struct {
	PostList
}

// NewExactPhrasePostList wraps child (the AND of the phrase terms) with
// a positional filter over db using the given term/wdf lists.
func NewExactPhrasePostList(ctx context.Context, db Database, child PostList, terms []string, wdfs []int64) PostList {
	if !db.HasPositions() {
		// Degrade to AND when the shard has no positional data (§4.3).
		return child
	}
	return newSelectPostList(child, func(ctx context.Context, did DocID) (bool, error) {
		return exactPhraseMatches(ctx, db, did, terms, wdfs)
	})
}

// phraseMatches implements PhrasePostList semantics: like exact phrase
// but positions need only be monotone within a sliding window.
func phraseMatches(ctx context.Context, db Database, did DocID, terms []string, wdfs []int64, window int) (bool, error) {
	tp, err := gatherTermPositions(ctx, db, did, terms, wdfs)
	if err != nil {
		return false, err
	}
	if len(tp) == 0 {
		return false, nil
	}
	// Read every term's full position slice (small documents assumed;
	// adequate for the matching core's contract, which only requires
	// correctness, not a streaming implementation).
	all := make([][]int64, len(tp))
	for i, t := range tp {
		var positions []int64
		for {
			pos, ok, err := t.pl.Next()
			if err != nil {
				return false, err
			}
			if !ok {
				break
			}
			positions = append(positions, pos)
		}
		all[i] = positions
	}
	return slidingWindowPermutationExists(all, window, true)
}

// slidingWindowPermutationExists checks whether there is a choice of one
// position per term list such that, when ordered, the max-min span is
// less than window; if ordered is true, the chosen positions must also
// be monotone increasing in term order (phrase semantics); if false, any
// order is accepted (near semantics).
func slidingWindowPermutationExists(all [][]int64, window int, ordered bool) (bool, error) {
	idx := make([]int, len(all))
	for {
		minP, maxP := all[0][idx[0]], all[0][idx[0]]
		okOrder := true
		for i := 1; i < len(all); i++ {
			p := all[i][idx[i]]
			if p < minP {
				minP = p
			}
			if p > maxP {
				maxP = p
			}
			if ordered && p <= all[i-1][idx[i-1]] {
				okOrder = false
			}
		}
		if okOrder && maxP-minP < int64(window) {
			return true, nil
		}
		// advance the smallest-position list
		adv := 0
		for i := 1; i < len(all); i++ {
			if all[i][idx[i]] < all[adv][idx[adv]] {
				adv = i
			}
		}
		idx[adv]++
		if idx[adv] >= len(all[adv]) {
			return false, nil
		}
	}
}

// NewPhrasePostList wraps child with a windowed (non-contiguous) phrase
// filter, per §4.3's PhrasePostList.
func NewPhrasePostList(ctx context.Context, db Database, child PostList, terms []string, wdfs []int64, window int) PostList {
	if !db.HasPositions() {
		return child
	}
	return newSelectPostList(child, func(ctx context.Context, did DocID) (bool, error) {
		return phraseMatches(ctx, db, did, terms, wdfs, window)
	})
}

// nearHeapItem/nearHeap implement the min-heap keyed by position used by
// NearPostList to find the tightest window containing one position from
// every term, in any order.
type nearHeapItem struct {
	termIdx int
	posIdx  int
	pos     int64
}
type nearHeap []nearHeapItem

func (h nearHeap) Len() int            { return len(h) }
func (h nearHeap) Less(i, j int) bool  { return h[i].pos < h[j].pos }
func (h nearHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nearHeap) Push(x interface{}) { *h = append(*h, x.(nearHeapItem)) }
func (h *nearHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// nearMatches implements NearPostList: any permutation of terms within a
// window, via a min-heap keyed by position; when terms have duplicate
// positions, advance the lowest to its next position and retest, per
// §4.3.
func nearMatches(ctx context.Context, db Database, did DocID, terms []string, wdfs []int64, window int) (bool, error) {
	tp, err := gatherTermPositions(ctx, db, did, terms, wdfs)
	if err != nil {
		return false, err
	}
	all := make([][]int64, len(tp))
	for i, t := range tp {
		var positions []int64
		for {
			pos, ok, err := t.pl.Next()
			if err != nil {
				return false, err
			}
			if !ok {
				break
			}
			positions = append(positions, pos)
		}
		if len(positions) == 0 {
			return false, nil
		}
		all[i] = positions
	}
	h := make(nearHeap, 0, len(all))
	for i := range all {
		heap.Push(&h, nearHeapItem{termIdx: i, posIdx: 0, pos: all[i][0]})
	}
	maxPos := h[0].pos
	for _, it := range h {
		if it.pos > maxPos {
			maxPos = it.pos
		}
	}
	for {
		if len(h) < len(all) {
			return false, nil
		}
		minPos := h[0].pos
		if maxPos-minPos < int64(window) {
			return true, nil
		}
		lowest := heap.Pop(&h).(nearHeapItem)
		nextIdx := lowest.posIdx + 1
		if nextIdx >= len(all[lowest.termIdx]) {
			return false, nil
		}
		np := all[lowest.termIdx][nextIdx]
		heap.Push(&h, nearHeapItem{termIdx: lowest.termIdx, posIdx: nextIdx, pos: np})
		if np > maxPos {
			maxPos = np
		}
	}
}

// NewNearPostList wraps child with a within-window any-order filter, per
// §4.3's NearPostList.
func NewNearPostList(ctx context.Context, db Database, child PostList, terms []string, wdfs []int64, window int) PostList {
	if !db.HasPositions() {
		return child
	}
	return newSelectPostList(child, func(ctx context.Context, did DocID) (bool, error) {
		return nearMatches(ctx, db, did, terms, wdfs, window)
	})
}
