package qmatch

import (
	"container/heap"
	"context"
)

// binaryPostList holds the shared two-child bookkeeping used by
// AndNotPostList, AndMaybePostList and OrPostList, ported from
// original_source's BranchPostList base (andnotpostlist.cc,
// andmaybepostlist.cc share this shape) the way matchtree.go's
// bruteForceMatchTree embeds shared mutable iterator state.
type binaryPostList struct {
	l, r         PostList
	lDone, rDone bool
	needsRecalc
}

func (b *binaryPostList) lAtEnd() bool { return b.l == nil || b.l.AtEnd() }
func (b *binaryPostList) rAtEnd() bool { return b.r == nil || b.r.AtEnd() }

// swap replaces child c (0 for left, 1 for right) if repl is non-nil.
func (b *binaryPostList) swap(idx int, repl PostList) {
	if repl == nil {
		return
	}
	b.markDirty()
	if idx == 0 {
		b.l = repl
	} else {
		b.r = repl
	}
}

// ---------------------------------------------------------------------
// MultiAndPostList (n-way AND, §4.2)
// ---------------------------------------------------------------------

// multiAndPostList is an n-way AND. Children are kept in ascending
// estimated-termfreq order (rarest first) to maximise skip efficiency,
// matching the construction-time sort the optimiser performs before
// building this node.
type multiAndPostList struct {
	children []PostList
	did      DocID
	atEnd    bool
	started  bool
	needsRecalc
}

func newMultiAndPostList(children []PostList) PostList {
	switch len(children) {
	case 0:
		return MatchNothing
	case 1:
		return children[0]
	}
	return &multiAndPostList{children: children}
}

// findNextMatch positions child 0 then checks every other child at that
// docid; if a check fails but reveals a higher docid, child 0 is
// skipped there and the scan restarts, exactly as §4.2 describes.
func (p *multiAndPostList) findNextMatch(ctx context.Context, wMin float64) error {
	for {
		if p.children[0].AtEnd() {
			p.atEnd = true
			return nil
		}
		did := p.children[0].GetDocID()
		matched := true
		for i := 1; i < len(p.children); i++ {
			other := p.maxOthers(i)
			wSub := wMin - other
			valid, repl, err := p.children[i].Check(ctx, did, maxf(wSub, 0))
			p.swap(i, repl)
			if err != nil {
				return err
			}
			if p.children[i].AtEnd() {
				p.atEnd = true
				return nil
			}
			if !valid {
				matched = false
				if p.children[i].GetDocID() > did {
					repl, err := p.children[0].SkipTo(ctx, p.children[i].GetDocID(), 0)
					p.swap(0, repl)
					if err != nil {
						return err
					}
				}
				break
			}
		}
		if matched {
			p.did = did
			p.started = true
			return nil
		}
	}
}

func (p *multiAndPostList) swap(idx int, repl PostList) {
	if repl != nil {
		p.markDirty()
		p.children[idx] = repl
	}
}

// maxOthers sums the maxweight of every child except idx, used to
// compute the w_min' passed to child idx.
func (p *multiAndPostList) maxOthers(idx int) float64 {
	var sum float64
	for i, c := range p.children {
		if i != idx {
			sum += c.RecalcMaxWeight()
		}
	}
	return sum
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func (p *multiAndPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	repl, err := p.children[0].Next(ctx, 0)
	p.swap(0, repl)
	if err != nil {
		return nil, err
	}
	if err := p.findNextMatch(ctx, wMin); err != nil {
		return nil, err
	}
	return nil, nil
}

func (p *multiAndPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	repl, err := p.children[0].SkipTo(ctx, did, 0)
	p.swap(0, repl)
	if err != nil {
		return nil, err
	}
	if err := p.findNextMatch(ctx, wMin); err != nil {
		return nil, err
	}
	return nil, nil
}

func (p *multiAndPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	if _, err := p.SkipTo(ctx, did, wMin); err != nil {
		return false, nil, err
	}
	return !p.atEnd && p.did == did, nil, nil
}

func (p *multiAndPostList) AtEnd() bool     { return p.atEnd }
func (p *multiAndPostList) GetDocID() DocID { return p.did }

func (p *multiAndPostList) GetWDF() int64 { return p.children[0].GetWDF() }

func (p *multiAndPostList) GetWeight(doclen, uniqueTerms, wdfDocMax int64) float64 {
	var sum float64
	for _, c := range p.children {
		sum += c.GetWeight(doclen, uniqueTerms, wdfDocMax)
	}
	return sum
}

func (p *multiAndPostList) RecalcMaxWeight() float64 {
	return p.getCached(func() float64 {
		var sum float64
		for _, c := range p.children {
			sum += c.RecalcMaxWeight()
		}
		return sum
	})
}

func (p *multiAndPostList) TermFreqMin() int64 {
	dbSize := p.dbSizeUpperBound()
	var sum int64
	for _, c := range p.children {
		sum += c.TermFreqMin()
	}
	bound := sum - int64(len(p.children)-1)*dbSize
	if bound < 0 {
		return 0
	}
	return bound
}

func (p *multiAndPostList) dbSizeUpperBound() int64 {
	var max int64
	for _, c := range p.children {
		if v := c.TermFreqMax(); v > max {
			max = v
		}
	}
	return max
}

func (p *multiAndPostList) TermFreqMax() int64 {
	min := p.children[0].TermFreqMax()
	for _, c := range p.children[1:] {
		if v := c.TermFreqMax(); v < min {
			min = v
		}
	}
	return min
}

func (p *multiAndPostList) TermFreqEst() int64 {
	dbSize := p.dbSizeUpperBound()
	if dbSize == 0 {
		return 0
	}
	est := float64(p.children[0].TermFreqEst())
	for _, c := range p.children[1:] {
		est = est * float64(c.TermFreqEst()) / float64(dbSize)
	}
	if est < 0 {
		est = 0
	}
	return int64(est)
}

func (p *multiAndPostList) CountMatchingSubqs() int {
	n := 0
	for _, c := range p.children {
		n += c.CountMatchingSubqs()
	}
	return n
}

func (p *multiAndPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	for _, c := range p.children {
		if err := c.GatherPositionLists(ctx, out); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// AndNotPostList (§4.2)
// ---------------------------------------------------------------------

// andNotPostList emits left's postings when right does not match. Right
// never contributes weight (it is always compiled with factor=0 by the
// optimiser); weight and maxweight are purely the left's.
type andNotPostList struct {
	binaryPostList
	dbSize int64
}

func newAndNotPostList(l, r PostList, dbSize int64) PostList {
	if l == MatchNothing {
		return MatchNothing
	}
	if r == MatchNothing {
		return l
	}
	return &andNotPostList{binaryPostList: binaryPostList{l: l, r: r}, dbSize: dbSize}
}

func (p *andNotPostList) advance(ctx context.Context, wMin float64, doSkip bool, did DocID) error {
	for {
		var repl PostList
		var err error
		if doSkip {
			repl, err = p.l.SkipTo(ctx, did, wMin)
		} else {
			repl, err = p.l.Next(ctx, wMin)
		}
		p.swap(0, repl)
		if err != nil {
			return err
		}
		doSkip = false
		if p.l.AtEnd() {
			return nil
		}
		ld := p.l.GetDocID()
		valid, rrepl, err := p.r.Check(ctx, ld, 0)
		p.swap(1, rrepl)
		if err != nil {
			return err
		}
		if !valid {
			return nil
		}
		// right matched ld exactly: skip this posting and retry.
	}
}

func (p *andNotPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	return nil, p.advance(ctx, wMin, false, 0)
}

func (p *andNotPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	return nil, p.advance(ctx, wMin, true, did)
}

func (p *andNotPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	if _, err := p.SkipTo(ctx, did, wMin); err != nil {
		return false, nil, err
	}
	return !p.l.AtEnd() && p.l.GetDocID() == did, nil, nil
}

func (p *andNotPostList) AtEnd() bool                            { return p.l.AtEnd() }
func (p *andNotPostList) GetDocID() DocID                        { return p.l.GetDocID() }
func (p *andNotPostList) GetWDF() int64                          { return p.l.GetWDF() }
func (p *andNotPostList) GetWeight(dl, ut, wm int64) float64      { return p.l.GetWeight(dl, ut, wm) }
func (p *andNotPostList) RecalcMaxWeight() float64               { return p.l.RecalcMaxWeight() }
func (p *andNotPostList) TermFreqMin() int64                     { return 0 }
func (p *andNotPostList) TermFreqMax() int64 {
	bound := p.dbSize - p.r.TermFreqMin()
	if m := p.l.TermFreqMax(); m < bound {
		return m
	}
	return bound
}
func (p *andNotPostList) TermFreqEst() int64 {
	if p.dbSize == 0 {
		return p.l.TermFreqEst()
	}
	lest := float64(p.l.TermFreqEst())
	rest := float64(p.r.TermFreqEst())
	return int64(lest * (1 - rest/float64(p.dbSize)))
}
func (p *andNotPostList) CountMatchingSubqs() int { return p.l.CountMatchingSubqs() }
func (p *andNotPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	return p.l.GatherPositionLists(ctx, out)
}

// ---------------------------------------------------------------------
// AndMaybePostList (§4.2)
// ---------------------------------------------------------------------

// andMaybePostList's posting set is left's; weight is left's weight plus
// right's weight when right also matches the same docid. When w_min
// exceeds left's maxweight it decays to a MultiAndPostList, since at
// that point right's contribution is mandatory to reach w_min.
type andMaybePostList struct {
	binaryPostList
	rMatches bool
}

func newAndMaybePostList(l, r PostList) PostList {
	if l == MatchNothing {
		return MatchNothing
	}
	if r == MatchNothing {
		return l
	}
	return &andMaybePostList{binaryPostList: binaryPostList{l: l, r: r}}
}

func (p *andMaybePostList) sync(ctx context.Context) error {
	if p.l.AtEnd() {
		return nil
	}
	did := p.l.GetDocID()
	valid, repl, err := p.r.Check(ctx, did, 0)
	p.swap(1, repl)
	if err != nil {
		return err
	}
	p.rMatches = valid
	return nil
}

func (p *andMaybePostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	if wMin > p.l.RecalcMaxWeight() {
		merged := newMultiAndPostList([]PostList{p.l, p.r})
		if p.l.AtEnd() || p.r.AtEnd() {
			return MatchNothing, nil
		}
		return merged, nil
	}
	repl, err := p.l.Next(ctx, 0)
	p.swap(0, repl)
	if err != nil {
		return nil, err
	}
	return nil, p.sync(ctx)
}

func (p *andMaybePostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	repl, err := p.l.SkipTo(ctx, did, 0)
	p.swap(0, repl)
	if err != nil {
		return nil, err
	}
	return nil, p.sync(ctx)
}

func (p *andMaybePostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	if _, err := p.SkipTo(ctx, did, wMin); err != nil {
		return false, nil, err
	}
	return !p.l.AtEnd() && p.l.GetDocID() == did, nil, nil
}

func (p *andMaybePostList) AtEnd() bool     { return p.l.AtEnd() }
func (p *andMaybePostList) GetDocID() DocID { return p.l.GetDocID() }
func (p *andMaybePostList) GetWDF() int64   { return p.l.GetWDF() }

func (p *andMaybePostList) GetWeight(dl, ut, wm int64) float64 {
	w := p.l.GetWeight(dl, ut, wm)
	if p.rMatches {
		w += p.r.GetWeight(dl, ut, wm)
	}
	return w
}

func (p *andMaybePostList) RecalcMaxWeight() float64 {
	return p.l.RecalcMaxWeight() + p.r.RecalcMaxWeight()
}
func (p *andMaybePostList) TermFreqMin() int64 { return p.l.TermFreqMin() }
func (p *andMaybePostList) TermFreqMax() int64 { return p.l.TermFreqMax() }
func (p *andMaybePostList) TermFreqEst() int64 { return p.l.TermFreqEst() }
func (p *andMaybePostList) CountMatchingSubqs() int {
	n := p.l.CountMatchingSubqs()
	if p.rMatches {
		n += p.r.CountMatchingSubqs()
	}
	return n
}
func (p *andMaybePostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	if err := p.l.GatherPositionLists(ctx, out); err != nil {
		return err
	}
	if p.rMatches {
		return p.r.GatherPositionLists(ctx, out)
	}
	return nil
}

// ---------------------------------------------------------------------
// OrPostList (binary, weighted, decaying) and BoolOrPostList (n-way)
// ---------------------------------------------------------------------

// orPostList is the binary weighted OR used when weights matter. It
// decays to AND or AND_MAYBE once w_min forces one or both sides to be
// mandatory, per §4.2's decay table.
type orPostList struct {
	binaryPostList
	did   DocID
	lHere bool
	rHere bool
}

func newOrPostList(l, r PostList) PostList {
	if l == MatchNothing {
		return r
	}
	if r == MatchNothing {
		return l
	}
	return &orPostList{binaryPostList: binaryPostList{l: l, r: r}}
}

// maybeDecay checks whether w_min now exceeds one or both children's
// maxweight and returns the decayed replacement, per §4.2.
func (p *orPostList) maybeDecay(wMin float64) PostList {
	if wMin <= 0 {
		return nil
	}
	lExceeded := wMin > p.l.RecalcMaxWeight()
	rExceeded := wMin > p.r.RecalcMaxWeight()
	switch {
	case lExceeded && rExceeded:
		return newMultiAndPostList([]PostList{p.l, p.r})
	case lExceeded:
		return newAndMaybePostList(p.r, p.l)
	case rExceeded:
		return newAndMaybePostList(p.l, p.r)
	default:
		return nil
	}
}

func (p *orPostList) advance(ctx context.Context, wMin float64, doSkip bool, did DocID) (PostList, error) {
	if repl := p.maybeDecay(wMin); repl != nil {
		return repl, nil
	}
	if p.did == 0 || p.lHere {
		var repl PostList
		var err error
		if doSkip {
			repl, err = p.l.SkipTo(ctx, did, 0)
		} else {
			repl, err = p.l.Next(ctx, 0)
		}
		p.swap(0, repl)
		if err != nil {
			return nil, err
		}
	}
	if p.did == 0 || p.rHere {
		var repl PostList
		var err error
		if doSkip {
			repl, err = p.r.SkipTo(ctx, did, 0)
		} else {
			repl, err = p.r.Next(ctx, 0)
		}
		p.swap(1, repl)
		if err != nil {
			return nil, err
		}
	}
	switch {
	case p.l.AtEnd() && p.r.AtEnd():
		p.did = 0
	case p.l.AtEnd():
		p.did = p.r.GetDocID()
		p.lHere, p.rHere = false, true
	case p.r.AtEnd():
		p.did = p.l.GetDocID()
		p.lHere, p.rHere = true, false
	default:
		ld, rd := p.l.GetDocID(), p.r.GetDocID()
		switch {
		case ld == rd:
			p.did, p.lHere, p.rHere = ld, true, true
		case ld < rd:
			p.did, p.lHere, p.rHere = ld, true, false
		default:
			p.did, p.lHere, p.rHere = rd, false, true
		}
	}
	return nil, nil
}

func (p *orPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	return p.advance(ctx, wMin, false, 0)
}

func (p *orPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	return p.advance(ctx, wMin, true, did)
}

func (p *orPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	repl, err := p.SkipTo(ctx, did, wMin)
	if err != nil {
		return false, nil, err
	}
	if repl != nil {
		valid, _, err := repl.Check(ctx, did, wMin)
		return valid, repl, err
	}
	return p.did == did && p.did != 0, nil, nil
}

func (p *orPostList) AtEnd() bool     { return p.did == 0 }
func (p *orPostList) GetDocID() DocID { return p.did }

func (p *orPostList) GetWDF() int64 {
	if p.lHere {
		return p.l.GetWDF()
	}
	return p.r.GetWDF()
}

func (p *orPostList) GetWeight(dl, ut, wm int64) float64 {
	var w float64
	if p.lHere {
		w += p.l.GetWeight(dl, ut, wm)
	}
	if p.rHere {
		w += p.r.GetWeight(dl, ut, wm)
	}
	return w
}

func (p *orPostList) RecalcMaxWeight() float64 {
	return p.l.RecalcMaxWeight() + p.r.RecalcMaxWeight()
}
func (p *orPostList) TermFreqMin() int64 {
	if a, b := p.l.TermFreqMin(), p.r.TermFreqMin(); a > b {
		return a
	} else {
		return b
	}
}
func (p *orPostList) TermFreqMax() int64 { return p.l.TermFreqMax() + p.r.TermFreqMax() }
func (p *orPostList) TermFreqEst() int64 {
	a := float64(p.l.TermFreqEst())
	b := float64(p.r.TermFreqEst())
	dbSize := float64(p.l.TermFreqMax() + p.r.TermFreqMax())
	if dbSize == 0 {
		return int64(a + b)
	}
	pa, pb := a/dbSize, b/dbSize
	return int64((pa + pb - pa*pb) * dbSize)
}
func (p *orPostList) CountMatchingSubqs() int {
	n := 0
	if p.lHere {
		n += p.l.CountMatchingSubqs()
	}
	if p.rHere {
		n += p.r.CountMatchingSubqs()
	}
	return n
}
func (p *orPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	if p.lHere {
		if err := p.l.GatherPositionLists(ctx, out); err != nil {
			return err
		}
	}
	if p.rHere {
		return p.r.GatherPositionLists(ctx, out)
	}
	return nil
}

// boolOrHeapItem/boolOrHeap implement the n-way heap keyed by current
// docid used by BoolOrPostList.
type boolOrHeapItem struct {
	pl  PostList
	did DocID
}
type boolOrHeap []*boolOrHeapItem

func (h boolOrHeap) Len() int            { return len(h) }
func (h boolOrHeap) Less(i, j int) bool  { return h[i].did < h[j].did }
func (h boolOrHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *boolOrHeap) Push(x interface{}) { *h = append(*h, x.(*boolOrHeapItem)) }
func (h *boolOrHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// boolOrPostList is the n-way unweighted OR used for Boolean (factor=0)
// subtrees: a heap keyed by current docid, children removed at AtEnd.
// newBoolOrPostList returns a lone child unwrapped; once iteration has
// started, a single remaining child stays inside the heap.
type boolOrPostList struct {
	h     boolOrHeap
	cur   DocID
	atEnd bool
}

func newBoolOrPostList(children []PostList) PostList {
	children = pruneNothing(children)
	if len(children) == 0 {
		return MatchNothing
	}
	if len(children) == 1 {
		return children[0]
	}
	// Every child starts at docid 0, so the first advance moves them all.
	h := make(boolOrHeap, 0, len(children))
	for _, c := range children {
		h = append(h, &boolOrHeapItem{pl: c})
	}
	return &boolOrPostList{h: h}
}

func pruneNothing(children []PostList) []PostList {
	out := children[:0:0]
	for _, c := range children {
		if c != MatchNothing {
			out = append(out, c)
		}
	}
	return out
}

func (p *boolOrPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	// pull every child once past cur, push into heap, pop min.
	return nil, p.advance(ctx, wMin, nil)
}

func (p *boolOrPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	return nil, p.advance(ctx, wMin, &did)
}

func (p *boolOrPostList) advance(ctx context.Context, wMin float64, skipDid *DocID) error {
	if len(p.h) == 0 && p.cur == 0 {
		return nil
	}
	// Next moves the children sitting on cur; SkipTo moves every child
	// still short of the target.
	for len(p.h) > 0 && ((skipDid == nil && p.h[0].did == p.cur) || (skipDid != nil && p.h[0].did < *skipDid)) {
		it := heap.Pop(&p.h).(*boolOrHeapItem)
		var repl PostList
		var err error
		if skipDid != nil {
			repl, err = it.pl.SkipTo(ctx, *skipDid, 0)
		} else {
			repl, err = it.pl.Next(ctx, 0)
		}
		if repl != nil {
			it.pl = repl
		}
		if err != nil {
			return err
		}
		if !it.pl.AtEnd() {
			it.did = it.pl.GetDocID()
			heap.Push(&p.h, it)
		}
	}
	if len(p.h) == 0 {
		p.atEnd = true
		p.cur = 0
		return nil
	}
	p.cur = p.h[0].did
	return nil
}

func (p *boolOrPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	if err := p.advance(ctx, wMin, &did); err != nil {
		return false, nil, err
	}
	return !p.atEnd && p.cur == did, nil, nil
}

func (p *boolOrPostList) AtEnd() bool                     { return p.atEnd }
func (p *boolOrPostList) GetDocID() DocID                  { return p.cur }
func (p *boolOrPostList) GetWDF() int64 {
	var wdf int64
	for _, it := range p.h {
		if it.did == p.cur {
			wdf += it.pl.GetWDF()
		}
	}
	return wdf
}
func (p *boolOrPostList) GetWeight(dl, ut, wm int64) float64 { return 0 }
func (p *boolOrPostList) RecalcMaxWeight() float64         { return 0 }
func (p *boolOrPostList) TermFreqMin() int64               { return 0 }
func (p *boolOrPostList) TermFreqMax() int64                { return 0 }
func (p *boolOrPostList) TermFreqEst() int64                { return 0 }
func (p *boolOrPostList) CountMatchingSubqs() int           { return 0 }
func (p *boolOrPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	return nil
}

// ---------------------------------------------------------------------
// MultiXorPostList (§4.2)
// ---------------------------------------------------------------------

// multiXorPostList emits docids matched by an odd number of children.
type multiXorPostList struct {
	children []PostList
	dids     []bool
	did      DocID
	atEnd    bool
}

func newMultiXorPostList(children []PostList) PostList {
	children = pruneNothing(children)
	switch len(children) {
	case 0:
		return MatchNothing
	case 1:
		return children[0]
	}
	return &multiXorPostList{children: children, dids: make([]bool, len(children))}
}

func (p *multiXorPostList) advance(ctx context.Context, doSkip bool, did DocID) error {
	min := DocID(0)
	found := false
	for i, c := range p.children {
		if !p.dids[i] && !doSkip {
			continue
		}
		var repl PostList
		var err error
		if doSkip {
			repl, err = c.SkipTo(ctx, did, 0)
		} else if p.dids[i] {
			repl, err = c.Next(ctx, 0)
		}
		if repl != nil {
			p.children[i] = repl
			c = repl
		}
		if err != nil {
			return err
		}
	}
	for i, c := range p.children {
		p.dids[i] = false
		if c.AtEnd() {
			continue
		}
		d := c.GetDocID()
		if !found || d < min {
			min, found = d, true
		}
	}
	if !found {
		p.atEnd = true
		p.did = 0
		return nil
	}
	cnt := 0
	for i, c := range p.children {
		if !c.AtEnd() && c.GetDocID() == min {
			p.dids[i] = true
			cnt++
		}
	}
	if cnt%2 == 1 {
		p.did = min
		return nil
	}
	return p.advance(ctx, false, 0)
}

func (p *multiXorPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	if p.did == 0 {
		for i := range p.dids {
			p.dids[i] = true
		}
	}
	return nil, p.advance(ctx, false, 0)
}

func (p *multiXorPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	return nil, p.advance(ctx, true, did)
}

func (p *multiXorPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	if _, err := p.SkipTo(ctx, did, wMin); err != nil {
		return false, nil, err
	}
	return !p.atEnd && p.did == did, nil, nil
}

func (p *multiXorPostList) AtEnd() bool     { return p.atEnd }
func (p *multiXorPostList) GetDocID() DocID { return p.did }
func (p *multiXorPostList) GetWDF() int64   { return 0 }

func (p *multiXorPostList) GetWeight(dl, ut, wm int64) float64 {
	var sum float64
	for i, c := range p.children {
		if p.dids[i] {
			sum += c.GetWeight(dl, ut, wm)
		}
	}
	return sum
}

func (p *multiXorPostList) RecalcMaxWeight() float64 {
	var sum, min float64
	for i, c := range p.children {
		mw := c.RecalcMaxWeight()
		sum += mw
		if i == 0 || mw < min {
			min = mw
		}
	}
	if len(p.children)%2 == 0 {
		return sum - min
	}
	return sum
}
func (p *multiXorPostList) TermFreqMin() int64 { return 0 }
func (p *multiXorPostList) TermFreqMax() int64 {
	var sum int64
	for _, c := range p.children {
		sum += c.TermFreqMax()
	}
	return sum
}
func (p *multiXorPostList) TermFreqEst() int64 { return p.TermFreqMax() / 2 }
func (p *multiXorPostList) CountMatchingSubqs() int {
	n := 0
	for i, c := range p.children {
		if p.dids[i] {
			n += c.CountMatchingSubqs()
		}
	}
	return n
}
func (p *multiXorPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	for i, c := range p.children {
		if p.dids[i] {
			if err := c.GatherPositionLists(ctx, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// MaxPostList (§4.2)
// ---------------------------------------------------------------------

// maxPostList emits the union of its children's docids; the weight at a
// docid is the max over children matching there. No decay: every child
// may still contribute at a future docid even once one side is
// exhausted of further maximal weight.
type maxPostList struct {
	children []PostList
	here     []bool
	did      DocID
	atEnd    bool
}

func newMaxPostList(children []PostList) PostList {
	children = pruneNothing(children)
	switch len(children) {
	case 0:
		return MatchNothing
	case 1:
		return children[0]
	}
	return &maxPostList{children: children, here: make([]bool, len(children))}
}

func (p *maxPostList) advance(ctx context.Context, doSkip bool, did DocID) error {
	for i, c := range p.children {
		if c.AtEnd() {
			continue
		}
		if doSkip || p.here[i] {
			var repl PostList
			var err error
			if doSkip {
				repl, err = c.SkipTo(ctx, did, 0)
			} else {
				repl, err = c.Next(ctx, 0)
			}
			if repl != nil {
				p.children[i] = repl
			}
			if err != nil {
				return err
			}
		}
	}
	min := DocID(0)
	found := false
	for i, c := range p.children {
		p.here[i] = false
		if c.AtEnd() {
			continue
		}
		d := c.GetDocID()
		if !found || d < min {
			min, found = d, true
		}
	}
	if !found {
		p.atEnd = true
		p.did = 0
		return nil
	}
	for i, c := range p.children {
		if !c.AtEnd() && c.GetDocID() == min {
			p.here[i] = true
		}
	}
	p.did = min
	return nil
}

func (p *maxPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	if p.did == 0 {
		for i := range p.here {
			p.here[i] = true
		}
	}
	return nil, p.advance(ctx, false, 0)
}

func (p *maxPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	return nil, p.advance(ctx, true, did)
}

func (p *maxPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	if _, err := p.SkipTo(ctx, did, wMin); err != nil {
		return false, nil, err
	}
	return !p.atEnd && p.did == did, nil, nil
}

func (p *maxPostList) AtEnd() bool     { return p.atEnd }
func (p *maxPostList) GetDocID() DocID { return p.did }
func (p *maxPostList) GetWDF() int64 {
	for i, c := range p.children {
		if p.here[i] {
			return c.GetWDF()
		}
	}
	return 0
}

func (p *maxPostList) GetWeight(dl, ut, wm int64) float64 {
	var best float64
	first := true
	for i, c := range p.children {
		if !p.here[i] {
			continue
		}
		w := c.GetWeight(dl, ut, wm)
		if first || w > best {
			best, first = w, false
		}
	}
	return best
}

func (p *maxPostList) RecalcMaxWeight() float64 {
	var best float64
	for i, c := range p.children {
		mw := c.RecalcMaxWeight()
		if i == 0 || mw > best {
			best = mw
		}
	}
	return best
}
func (p *maxPostList) TermFreqMin() int64 { return 0 }
func (p *maxPostList) TermFreqMax() int64 {
	var sum int64
	for _, c := range p.children {
		sum += c.TermFreqMax()
	}
	return sum
}
func (p *maxPostList) TermFreqEst() int64 { return p.TermFreqMax() }
func (p *maxPostList) CountMatchingSubqs() int {
	n := 0
	for i, c := range p.children {
		if p.here[i] {
			n += c.CountMatchingSubqs()
		}
	}
	return n
}
func (p *maxPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	for i, c := range p.children {
		if p.here[i] {
			if err := c.GatherPositionLists(ctx, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// ---------------------------------------------------------------------
// ExtraWeightPostList (§4.2)
// ---------------------------------------------------------------------

// extraWeightPostList is added above the root of the compiled tree when
// the weighting scheme has a term-independent contribution (SumExtra).
type extraWeightPostList struct {
	child PostList
	w     Weight
}

func newExtraWeightPostList(child PostList, w Weight) PostList {
	if child == MatchNothing {
		return MatchNothing
	}
	return &extraWeightPostList{child: child, w: w}
}

func (p *extraWeightPostList) pass(wMin float64) float64 {
	v := wMin - p.w.MaxExtra()
	if v < 0 {
		return 0
	}
	return v
}

func (p *extraWeightPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	repl, err := p.child.Next(ctx, p.pass(wMin))
	if repl != nil {
		p.child = repl
	}
	return nil, err
}
func (p *extraWeightPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	repl, err := p.child.SkipTo(ctx, did, p.pass(wMin))
	if repl != nil {
		p.child = repl
	}
	return nil, err
}
func (p *extraWeightPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	valid, repl, err := p.child.Check(ctx, did, p.pass(wMin))
	if repl != nil {
		p.child = repl
	}
	return valid, nil, err
}
func (p *extraWeightPostList) AtEnd() bool     { return p.child.AtEnd() }
func (p *extraWeightPostList) GetDocID() DocID { return p.child.GetDocID() }
func (p *extraWeightPostList) GetWDF() int64   { return p.child.GetWDF() }
func (p *extraWeightPostList) GetWeight(dl, ut, wm int64) float64 {
	return p.child.GetWeight(dl, ut, wm) + p.w.SumExtra(dl, ut)
}
func (p *extraWeightPostList) RecalcMaxWeight() float64 {
	return p.child.RecalcMaxWeight() + p.w.MaxExtra()
}
func (p *extraWeightPostList) TermFreqMin() int64      { return p.child.TermFreqMin() }
func (p *extraWeightPostList) TermFreqMax() int64      { return p.child.TermFreqMax() }
func (p *extraWeightPostList) TermFreqEst() int64      { return p.child.TermFreqEst() }
func (p *extraWeightPostList) CountMatchingSubqs() int { return p.child.CountMatchingSubqs() }
func (p *extraWeightPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	return p.child.GatherPositionLists(ctx, out)
}

// ---------------------------------------------------------------------
// scaleWeight (C2 adjunct): wraps a Weight, scaling all four quantities.
// ---------------------------------------------------------------------

type scaleWeight struct {
	inner  Weight
	factor float64
}

// newScaleWeight wraps inner so that SumPart/MaxPart/SumExtra/MaxExtra
// are all multiplied by factor, per §4.2's ScaleWeight wrapper.
func newScaleWeight(inner Weight, factor float64) Weight {
	if factor == 1 {
		return inner
	}
	return &scaleWeight{inner: inner, factor: factor}
}

func (s *scaleWeight) Clone() Weight { return &scaleWeight{inner: s.inner.Clone(), factor: s.factor} }
func (s *scaleWeight) Name() string  { return "scale(" + s.inner.Name() + ")" }
func (s *scaleWeight) Serialise() []byte              { return s.inner.Serialise() }
func (s *scaleWeight) Unserialise(data []byte) error   { return s.inner.Unserialise(data) }
func (s *scaleWeight) Init(stats *Stats, qlen int, term string, wqf int, factor float64) {
	s.inner.Init(stats, qlen, term, wqf, factor)
}
func (s *scaleWeight) SumPart(wdf, doclen, uniqueTerms, wdfDocMax int64) float64 {
	return s.inner.SumPart(wdf, doclen, uniqueTerms, wdfDocMax) * s.factor
}
func (s *scaleWeight) MaxPart() float64 { return s.inner.MaxPart() * s.factor }
func (s *scaleWeight) SumExtra(doclen, uniqueTerms int64) float64 {
	return s.inner.SumExtra(doclen, uniqueTerms) * s.factor
}
func (s *scaleWeight) MaxExtra() float64               { return s.inner.MaxExtra() * s.factor }
func (s *scaleWeight) SumPartNeedsDocLength() bool      { return s.inner.SumPartNeedsDocLength() }

// ---------------------------------------------------------------------
// Select/Filter base (§4.2)
// ---------------------------------------------------------------------

// selectPostList is the abstract wrapper over a child postlist providing
// a testDoc hook called at each candidate; positional filters and
// value-range filters build on this.
type selectPostList struct {
	child   PostList
	testDoc func(ctx context.Context, did DocID) (bool, error)
}

func newSelectPostList(child PostList, test func(ctx context.Context, did DocID) (bool, error)) PostList {
	return &selectPostList{child: child, testDoc: test}
}

func (p *selectPostList) advance(ctx context.Context, wMin float64, doSkip bool, did DocID) error {
	for {
		var repl PostList
		var err error
		if doSkip {
			repl, err = p.child.SkipTo(ctx, did, wMin)
		} else {
			repl, err = p.child.Next(ctx, wMin)
		}
		if repl != nil {
			p.child = repl
		}
		if err != nil {
			return err
		}
		doSkip = false
		if p.child.AtEnd() {
			return nil
		}
		ok, err := p.testDoc(ctx, p.child.GetDocID())
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

func (p *selectPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	return nil, p.advance(ctx, wMin, false, 0)
}
func (p *selectPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	return nil, p.advance(ctx, wMin, true, did)
}
func (p *selectPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	if err := p.advance(ctx, wMin, true, did); err != nil {
		return false, nil, err
	}
	return !p.child.AtEnd() && p.child.GetDocID() == did, nil, nil
}
func (p *selectPostList) AtEnd() bool     { return p.child.AtEnd() }
func (p *selectPostList) GetDocID() DocID { return p.child.GetDocID() }
func (p *selectPostList) GetWDF() int64   { return p.child.GetWDF() }
func (p *selectPostList) GetWeight(dl, ut, wm int64) float64 { return p.child.GetWeight(dl, ut, wm) }
func (p *selectPostList) RecalcMaxWeight() float64           { return p.child.RecalcMaxWeight() }
func (p *selectPostList) TermFreqMin() int64                 { return 0 }
func (p *selectPostList) TermFreqMax() int64                 { return p.child.TermFreqMax() }
func (p *selectPostList) TermFreqEst() int64                 { return p.child.TermFreqEst() / 2 }
func (p *selectPostList) CountMatchingSubqs() int            { return p.child.CountMatchingSubqs() }
func (p *selectPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	return p.child.GatherPositionLists(ctx, out)
}
