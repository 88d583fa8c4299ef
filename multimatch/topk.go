package multimatch

import (
	"container/heap"
	"context"
	"time"

	"github.com/sourcegraph/qmatch"
)

// collapseBucket tracks the documents seen so far under one collapse
// key, per §4.6's collapse_tab.
type collapseBucket struct {
	kept    []qmatch.MSetItem
	dropped int
}

// boundHeap is a min-heap on Weight, used only to track the worst
// weight among the best max_msize candidates seen so far so min_weight
// can be tightened per §4.6 ("if docs_matched >= check_at_least:
// min_weight = max(min_weight, min_item.wt)"). It never drives the
// final result set; candidates are paged from the full sorted slice.
type boundHeap []qmatch.MSetItem

func (h boundHeap) Len() int            { return len(h) }
func (h boundHeap) Less(i, j int) bool  { return h[i].Weight < h[j].Weight }
func (h boundHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *boundHeap) Push(x interface{}) { *h = append(*h, x.(qmatch.MSetItem)) }
func (h *boundHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topKLoop runs the top-k selection loop described in §4.6: walk the
// combined postlist tree docid by docid, apply deciders/spies, bucket by
// collapse key, track bounds, then sort, percent-cutoff, and page the
// survivors.
//
// check_at_least never terminates the walk directly (postlists iterate
// in docid order, not weight order, so stopping on a raw count would
// return the first arrivals rather than the top-k by weight). Instead
// it gates min_weight tightening: once at least check_at_least
// candidates have been accepted, min_weight is raised to the worst
// weight among the best max_msize seen so far (tracked in boundHeap).
// The walk ends at tree.AtEnd(), once the tree's recalc_maxweight falls
// below the rising min_weight, or once the time limit passes; the rising
// min_weight also prunes postings directly (passed as wMin to
// tree.Next). Weight-bound tightening is skipped when collapsing is active,
// since a lower-weight-but-unique-key document can still survive
// collapse dedup after a higher-weight duplicate is bucketed away.
func (mm *MultiMatch) topKLoop(ctx context.Context, tree *postListTree, termInfo map[string]qmatch.TermWeightInfo) (*qmatch.MSet, error) {
	opts := &mm.Options

	var deadline *time.Time
	if opts.TimeLimit > 0 {
		d := timeNow().Add(opts.TimeLimit)
		deadline = &d
	}

	minWeight := opts.WeightCutoff
	maxPossible := tree.RecalcMaxWeight()

	var (
		candidates      []qmatch.MSetItem
		matchesSeen     int64
		matchesRejected int64
		greatestWt      float64
		timedOut        bool
		bound           boundHeap
	)

	// Weight-bound tightening only ever needs the best First+MaxItems
	// candidates; MaxItems <= 0 means "return everything" (see the
	// pagination below), so there's no useful bound to maintain.
	maxMsize := opts.First + opts.MaxItems
	tighten := opts.CollapseKey == qmatch.NoCollapse && opts.MaxItems > 0

	needDoc := opts.MatchDecider != nil || len(opts.MatchSpies) > 0 ||
		opts.CollapseKey != qmatch.NoCollapse || opts.KeyMaker != nil ||
		opts.SortBy == qmatch.SortByValue || opts.SortBy == qmatch.SortByRelevanceThenValue ||
		opts.SortBy == qmatch.SortByValueThenRelevance

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if deadline != nil && timeNow().After(*deadline) {
			timedOut = true
			break
		}
		if minWeight > 0 && tree.RecalcMaxWeight() < minWeight {
			break
		}
		if err := tree.Next(ctx, minWeight); err != nil {
			return nil, err
		}
		if tree.AtEnd() {
			break
		}

		did := tree.LocalDocID()
		db := tree.Database()
		doclen, err := db.DocLength(did)
		if err != nil {
			return nil, err
		}
		wt := tree.GetWeight(doclen, 0, 0)
		matchesSeen++

		if wt < minWeight-percentEpsilon {
			continue
		}
		if wt > greatestWt {
			greatestWt = wt
		}

		var doc qmatch.Document
		if needDoc {
			doc, err = tree.Document(ctx, did)
			if err != nil {
				return nil, err
			}
		}

		if opts.MatchDecider != nil && !opts.MatchDecider(doc) {
			matchesRejected++
			continue
		}
		spyRejected := false
		for _, spy := range opts.MatchSpies {
			if !spy(doc) {
				spyRejected = true
			}
		}
		if spyRejected {
			matchesRejected++
			continue
		}

		item := qmatch.MSetItem{
			Weight:     wt,
			DocID:      did,
			ShardIndex: tree.ShardIndex(),
		}
		switch {
		case opts.KeyMaker != nil:
			item.SortKey = opts.KeyMaker(doc)
		case doc != nil:
			if v, ok := doc.Value(opts.SortKey); ok {
				item.SortKey = v
			}
		}
		if opts.CollapseKey != qmatch.NoCollapse && doc != nil {
			if v, ok := doc.Value(opts.CollapseKey); ok {
				item.CollapseKey = v
			}
		}
		candidates = append(candidates, item)

		if tighten {
			heap.Push(&bound, item)
			if bound.Len() > maxMsize {
				heap.Pop(&bound)
			}
			if len(candidates) >= opts.CheckAtLeast && bound.Len() > 0 && bound[0].Weight > minWeight {
				minWeight = bound[0].Weight
			}
		}
	}

	qmatch.SortItems(candidates, opts)

	var (
		final    []qmatch.MSetItem
		buckets  = make(map[string]*collapseBucket)
	)
	for _, it := range candidates {
		if opts.CollapseKey == qmatch.NoCollapse {
			final = append(final, it)
			continue
		}
		b, ok := buckets[it.CollapseKey]
		if !ok {
			b = &collapseBucket{}
			buckets[it.CollapseKey] = b
		}
		if len(b.kept) < maxInt(1, opts.CollapseMax) {
			b.kept = append(b.kept, it)
			final = append(final, it)
		} else {
			b.dropped++
		}
	}
	var collapseDropped int64
	if opts.CollapseKey != qmatch.NoCollapse {
		for i := range final {
			if b, ok := buckets[final[i].CollapseKey]; ok {
				final[i].CollapseCount = b.dropped
			}
		}
		for _, b := range buckets {
			collapseDropped += int64(b.dropped)
		}
	}

	if opts.PercentCutoff > 0 && greatestWt > 0 {
		// The threshold (§4.6's percent_cutoff_factor) is
		// greatest_wt*percent_cutoff/100 - eps, not a rewrite through the *display* percent_scale
		// (mset.go's PercentScale): the two only coincide for
		// single-term queries, where scale = 100/greatest_wt. For
		// multi-term queries scale divides by the summed max term
		// weight instead, which over-prunes valid items.
		threshold := greatestWt*float64(opts.PercentCutoff)/100 - percentEpsilon
		pruned := final[:0]
		for _, it := range final {
			if it.Weight >= threshold {
				pruned = append(pruned, it)
			}
		}
		final = pruned
	}

	ms := &qmatch.MSet{
		First:          opts.First,
		TermFreqAndWts: termInfo,
		MaxAttained:    greatestWt,
		MaxPossible:    maxPossible,
	}
	ms.MatchesLowerBound = int64(len(final))
	ms.MatchesEstimated = matchesSeen
	ms.MatchesUpperBound = tree.TermFreqMax()

	// Decider/matchspy rejections and collapse duplicates both lower the
	// upper bound and scale the estimate by the observed accept rate,
	// per §4.6's bound bookkeeping; neither is allowed to push the
	// bound below the true lower bound of what was actually returned.
	dropped := matchesRejected + collapseDropped
	if dropped > 0 && matchesSeen > 0 {
		if ms.MatchesUpperBound > dropped {
			ms.MatchesUpperBound -= dropped
		} else {
			ms.MatchesUpperBound = 0
		}
		if ms.MatchesUpperBound < ms.MatchesLowerBound {
			ms.MatchesUpperBound = ms.MatchesLowerBound
		}
		acceptRate := float64(matchesSeen-dropped) / float64(matchesSeen)
		ms.MatchesEstimated = int64(float64(ms.MatchesEstimated) * acceptRate)
		if ms.MatchesEstimated < ms.MatchesLowerBound {
			ms.MatchesEstimated = ms.MatchesLowerBound
		}
	}
	if opts.PercentCutoff > 0 {
		// Percent cutoff never reduces the upper bound (docs below
		// threshold are still matches for bound purposes) but does
		// scale the estimate and tighten the lower bound to what was
		// actually returned, per §4.6.
		ms.MatchesEstimated = int64(float64(ms.MatchesEstimated) * (1 - float64(opts.PercentCutoff)/100))
		if ms.MatchesEstimated < ms.MatchesLowerBound {
			ms.MatchesEstimated = ms.MatchesLowerBound
		}
	}
	if timedOut {
		// A time-limited search can only promise a lower bound on the
		// true match count, per §4.6.
		ms.MatchesEstimated = ms.MatchesLowerBound
	}
	if greatestWt > 0 {
		ms.PercentFactor = qmatch.PercentScale(greatestWt, termInfo, greatestWt)
	}

	if opts.First >= len(final) {
		ms.Items = nil
		return ms, nil
	}
	end := opts.First + opts.MaxItems
	if end > len(final) || opts.MaxItems <= 0 {
		end = len(final)
	}
	ms.Items = final[opts.First:end]
	return ms, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
