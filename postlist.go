package qmatch

import "context"

// PostList is the unified iterator contract (§4.1) for postings with
// weight bounds, skip/check, and termfreq estimates. Every PostList
// represents a lazy sequence of (docid, weight) pairs in strictly
// ascending docid order.
//
// Advancing operations (Next, SkipTo, Check) may return a non-nil
// replacement PostList: a "decay" to a simpler, equivalent node the
// caller must substitute for the current one. The caller takes ownership
// of the replacement; the old node is simply dropped (Go's GC retires
// it — there is no manual delete). After a decay the tree's maxweight
// must be recomputed; operators track a dirty flag for this (see
// operators.go's needsRecalc field).
type PostList interface {
	// Next advances past the current posting to the next one whose
	// final contribution could reach w_min, or reports at_end. It may
	// return a replacement PostList (decay); when non-nil the caller
	// must use the replacement from this point on instead of the
	// receiver.
	Next(ctx context.Context, wMin float64) (replacement PostList, err error)

	// SkipTo advances to the first posting with docid >= did whose
	// final contribution could reach w_min. Same decay contract as
	// Next.
	SkipTo(ctx context.Context, did DocID, wMin float64) (replacement PostList, err error)

	// Check is like SkipTo but may report valid=false without having
	// advanced exactly to did, when the subtree cannot cheaply position
	// there. GetDocID() afterwards is only meaningful when valid is
	// true.
	Check(ctx context.Context, did DocID, wMin float64) (valid bool, replacement PostList, err error)

	AtEnd() bool
	GetDocID() DocID

	// GetWeight computes the weight of the posting currently positioned
	// on.
	GetWeight(doclen int64, uniqueTerms int64, wdfDocMax int64) float64
	GetWDF() int64

	// RecalcMaxWeight returns an upper bound on any future GetWeight,
	// monotonically non-increasing as the postlist advances.
	RecalcMaxWeight() float64

	TermFreqMin() int64
	TermFreqMax() int64
	TermFreqEst() int64

	// CountMatchingSubqs returns how many leaf terms of the compiled
	// subtree matched the current posting (used by SYNONYM/MAX
	// weighting).
	CountMatchingSubqs() int

	// GatherPositionLists appends the position lists of every leaf that
	// matched the current posting; operators either forward (AND,
	// AND_MAYBE) or refuse (plain OR, unless wrapped by a phrase
	// proxy).
	GatherPositionLists(ctx context.Context, out *[]PositionList) error
}

// needsRecalc is embedded by operator postlists to implement the
// dirty-flag propagation described in §4.1: any child decay marks the
// parent dirty so RecalcMaxWeight is forced to recompute rather than
// return a stale cached bound.
type needsRecalc struct {
	dirty  bool
	cached float64
	have   bool
}

func (n *needsRecalc) markDirty() {
	n.dirty = true
	n.have = false
}

func (n *needsRecalc) getCached(compute func() float64) float64 {
	if !n.have || n.dirty {
		n.cached = compute()
		n.have = true
		n.dirty = false
	}
	return n.cached
}
