package qmatch

import (
	"container/heap"
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/sourcegraph/qmatch/qerror"
	"github.com/sourcegraph/qmatch/query"
)

// QueryOptimiser compiles a query.Q tree into a PostList tree (§4.4):
// factor propagation, AND flattening, Huffman-like OR tree construction,
// ELITE_SET selection, wildcard/edit-distance expansion, SYNONYM
// wrapping, value-range optimisation, and hint management.
type QueryOptimiser struct {
	db     Database
	w      Weight
	stats  *Stats
	hint   LeafPostList
	hintTerm string

	// positionalPending records positional filters to instantiate on the
	// way back up the tree, per §4.4's "the optimiser records positional
	// filters during compilation and instantiates them on the way back
	// up".
	ctx context.Context
}

// NewQueryOptimiser returns an optimiser bound to db's shard, the
// weighting scheme w (used as a factory to be cloned per term), and the
// match's combined Stats.
func NewQueryOptimiser(ctx context.Context, db Database, w Weight, stats *Stats) *QueryOptimiser {
	return &QueryOptimiser{db: db, w: w, stats: stats, ctx: ctx}
}

// Compile turns q into a PostList tree with the given outer factor
// (ScaleWeight nodes multiply the factor passed to their subtree;
// factor=0 means Boolean — no weights, w_min tests disabled).
func (o *QueryOptimiser) Compile(q query.Q, factor float64) (PostList, error) {
	pl, err := o.compile(q, factor)
	if err != nil {
		return nil, err
	}
	if factor != 0 && o.w.MaxExtra() != 0 {
		return newExtraWeightPostList(pl, o.w.Clone()), nil
	}
	return pl, nil
}

func (o *QueryOptimiser) compile(q query.Q, factor float64) (PostList, error) {
	switch n := q.(type) {
	case nil:
		return MatchNothing, nil
	case query.Leaf:
		return o.compileLeaf(n, factor)
	case query.ValueRange:
		return o.compileValueRange(n)
	case query.PostingSourceQ:
		return nil, qerror.New(qerror.Unimplemented, "posting source "+n.Name+" has no bound producer")
	case query.ScaleWeightQ:
		if n.Factor < 0 {
			return nil, qerror.New(qerror.InvalidArgument, "ScaleWeight factor must be >= 0")
		}
		return o.compile(n.Child, factor*n.Factor)
	case query.WildcardQ:
		return o.compileWildcard(n, factor)
	case query.MultiWay:
		return o.compileMultiWay(n, factor)
	default:
		if query.IsMatchAll(q) {
			return newMatchAllPostList(o.db), nil
		}
		if query.IsMatchNothing(q) {
			return MatchNothing, nil
		}
		return nil, errors.Errorf("qmatch: unrecognised query node %T", q)
	}
}

func (o *QueryOptimiser) compileLeaf(n query.Leaf, factor float64) (PostList, error) {
	if n.Term == "" {
		return newMatchAllPostList(o.db), nil
	}
	var hint LeafPostList
	if o.hintTerm == n.Term {
		hint = o.hint
	}
	leaf, err := o.db.OpenPostList(o.ctx, n.Term, hint)
	if err != nil {
		return nil, err
	}
	o.hint, o.hintTerm = leaf, n.Term
	w := o.w.Clone()
	w.Init(o.stats, 1, n.Term, n.WQF, factor)
	if factor == 0 {
		w = newScaleWeight(w, 0)
	}
	return newTermPostList(o.db, n.Term, leaf, w), nil
}

// compileValueRange implements §4.4's value-range optimisation: if the
// requested range covers the full recorded value bounds for the slot and
// every document has a value there, the range collapses to MatchAll.
func (o *QueryOptimiser) compileValueRange(n query.ValueRange) (PostList, error) {
	vb, ok := o.stats.ValueBounds[n.Slot]
	fullCoverage := ok && o.db.ValueFreq(n.Slot) == o.db.DocCount() &&
		(n.Begin == "" || n.Begin <= vb.Lower) &&
		(n.End == "" || n.End >= vb.Upper)
	if fullCoverage {
		return newMatchAllPostList(o.db), nil
	}
	vl, err := o.db.OpenValueList(o.ctx, n.Slot)
	if err != nil {
		return nil, err
	}
	return newValueRangePostList(vl, n.Begin, n.End, o.db.ValueFreq(n.Slot)), nil
}

// heapTerm is the (postlist, tf_est) pair pushed onto the min-heap used
// to build a balanced OR tree, per §4.4.
type heapTerm struct {
	pl    PostList
	tfEst int64
}
type orHeap []heapTerm

func (h orHeap) Len() int            { return len(h) }
func (h orHeap) Less(i, j int) bool  { return h[i].tfEst < h[j].tfEst }
func (h orHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *orHeap) Push(x interface{}) { *h = append(*h, x.(heapTerm)) }
func (h *orHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// buildOrTree builds a balanced binary OR tree via a min-heap on
// estimated termfreq, repeatedly popping the two cheapest and replacing
// them with their OrPostList, guaranteeing left.tf_est >= right.tf_est
// at every internal node (§4.4). boolOnly selects the n-way unweighted
// BoolOrPostList form instead (used for factor=0 subtrees).
func buildOrTree(children []PostList, boolOnly bool) PostList {
	children = pruneNothing(children)
	if len(children) == 0 {
		return MatchNothing
	}
	if boolOnly {
		return newBoolOrPostList(children)
	}
	if len(children) == 1 {
		return children[0]
	}
	h := make(orHeap, len(children))
	for i, c := range children {
		h[i] = heapTerm{pl: c, tfEst: c.TermFreqEst()}
	}
	heap.Init(&h)
	for h.Len() > 1 {
		a := heap.Pop(&h).(heapTerm)
		b := heap.Pop(&h).(heapTerm)
		// guarantee left.tf_est >= right.tf_est: a was popped first
		// (smallest), so b (next smallest) becomes left.
		merged := newOrPostList(b.pl, a.pl)
		heap.Push(&h, heapTerm{pl: merged, tfEst: merged.TermFreqEst()})
	}
	return h[0].pl
}

func (o *QueryOptimiser) compileChildren(children []query.Q, factor float64) ([]PostList, error) {
	out := make([]PostList, 0, len(children))
	for _, c := range children {
		pl, err := o.compile(c, factor)
		if err != nil {
			return nil, err
		}
		out = append(out, pl)
	}
	return out, nil
}

// flattenAnd collects the transitive children of nested AND-like nodes
// (AND, FILTER's left, NEAR, PHRASE) into a single list, per §4.4's AND
// flattening. FILTER's right branch is compiled with factor=0 and is not
// itself flattened further (it becomes one child of the resulting
// MultiAndPostList).
func (o *QueryOptimiser) flattenAnd(q query.Q, factor float64, out *[]PostList) error {
	mw, ok := q.(query.MultiWay)
	if ok && (mw.Op == query.OpAnd || mw.Op == query.OpNear || mw.Op == query.OpPhrase) {
		for _, c := range mw.Children {
			if err := o.flattenAnd(c, factor, out); err != nil {
				return err
			}
		}
		return nil
	}
	if ok && mw.Op == query.OpFilter {
		if err := o.flattenAnd(mw.Children[0], factor, out); err != nil {
			return err
		}
		right, err := o.compile(mw.Children[1], 0)
		if err != nil {
			return err
		}
		*out = append(*out, right)
		return nil
	}
	pl, err := o.compile(q, factor)
	if err != nil {
		return err
	}
	*out = append(*out, pl)
	return nil
}

// sortRarestFirst orders children ascending by estimated termfreq so the
// resulting MultiAndPostList skips most efficiently (§4.2).
func sortRarestFirst(children []PostList) {
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].TermFreqEst() < children[j].TermFreqEst()
	})
}

func (o *QueryOptimiser) compileMultiWay(n query.MultiWay, factor float64) (PostList, error) {
	switch n.Op {
	case query.OpAnd, query.OpFilter, query.OpNear, query.OpPhrase:
		var flat []PostList
		if err := o.flattenAnd(n, factor, &flat); err != nil {
			return nil, err
		}
		sortRarestFirst(flat)
		and := newMultiAndPostList(flat)
		if n.Op == query.OpNear || n.Op == query.OpPhrase {
			terms, wdfs := leafTermsOf(n)
			if n.Op == query.OpPhrase {
				return NewPhrasePostList(o.ctx, o.db, and, terms, wdfs, n.Window), nil
			}
			return NewNearPostList(o.ctx, o.db, and, terms, wdfs, n.Window), nil
		}
		return and, nil

	case query.OpAndNot:
		l, err := o.compile(n.Children[0], factor)
		if err != nil {
			return nil, err
		}
		r, err := o.compile(n.Children[1], 0)
		if err != nil {
			return nil, err
		}
		return newAndNotPostList(l, r, o.db.DocCount()), nil

	case query.OpAndMaybe:
		l, err := o.compile(n.Children[0], factor)
		if err != nil {
			return nil, err
		}
		r, err := o.compile(n.Children[1], factor)
		if err != nil {
			return nil, err
		}
		return newAndMaybePostList(l, r), nil

	case query.OpOr:
		children, err := o.compileChildren(n.Children, factor)
		if err != nil {
			return nil, err
		}
		return buildOrTree(children, factor == 0), nil

	case query.OpXor:
		children, err := o.compileChildren(n.Children, factor)
		if err != nil {
			return nil, err
		}
		return newMultiXorPostList(children), nil

	case query.OpMax:
		children, err := o.compileChildren(n.Children, factor)
		if err != nil {
			return nil, err
		}
		return newMaxPostList(children), nil

	case query.OpSynonym:
		return o.compileSynonym(n, factor)

	case query.OpEliteSet:
		return o.compileEliteSet(n, factor)

	default:
		return nil, errors.Errorf("qmatch: unhandled operator %v", n.Op)
	}
}

// leafTermsOf extracts the (term, wqf) pairs of a NEAR/PHRASE node's
// direct Leaf children, in declared order; each Leaf's WQF is what the
// positional postlists then order terms by. This follows §4.3's contract that
// positional postlists take a vector of leaf postlists.
func leafTermsOf(n query.MultiWay) ([]string, []int64) {
	var terms []string
	var wdfs []int64
	for _, c := range n.Children {
		if leaf, ok := c.(query.Leaf); ok {
			terms = append(terms, leaf.Term)
			wdfs = append(wdfs, int64(leaf.WQF))
		}
	}
	return terms, wdfs
}

// compileSynonym implements §4.4's SYNONYM wrapping: build an OR tree
// with factor=0, detect wdf_disjoint (true when every child is a unique
// Leaf/Wildcard with a prefix-free term/prefix set), then scale the
// combined postlist by the outer factor via a synonym weight wrapper.
func (o *QueryOptimiser) compileSynonym(n query.MultiWay, factor float64) (PostList, error) {
	children, err := o.compileChildren(n.Children, 0)
	if err != nil {
		return nil, err
	}
	inner := buildOrTree(children, true)
	if inner == MatchNothing {
		return MatchNothing, nil
	}
	w := o.w.Clone()
	w.Init(o.stats, 1, "", 1, factor)
	return &synonymPostList{child: inner, w: w, disjoint: wdfDisjoint(n.Children)}, nil
}

// wdfDisjoint detects whether every child is a unique Leaf term or a
// Wildcard with a prefix-free prefix — i.e. no document can have its wdf
// counted twice across the synonym set, per §4.4.
func wdfDisjoint(children []query.Q) bool {
	seen := map[string]bool{}
	var prefixes []string
	for _, c := range children {
		var key string
		switch n := c.(type) {
		case query.Leaf:
			key = "t:" + n.Term
		case query.WildcardQ:
			key = "w:" + n.Pattern
			prefixes = append(prefixes, n.Pattern)
		default:
			return false
		}
		if seen[key] {
			return false
		}
		seen[key] = true
	}
	for i, p := range prefixes {
		for j, s := range prefixes {
			if i != j && len(s) >= len(p) && s[:len(p)] == p {
				return false
			}
		}
	}
	return true
}

// synonymPostList wraps an OR of synonymous terms, producing a weight
// based on the combined wdf of whichever children matched, per §4.4.
type synonymPostList struct {
	child    PostList
	w        Weight
	disjoint bool
}

func (p *synonymPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	repl, err := p.child.Next(ctx, 0)
	if repl != nil {
		p.child = repl
	}
	return nil, err
}
func (p *synonymPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	repl, err := p.child.SkipTo(ctx, did, 0)
	if repl != nil {
		p.child = repl
	}
	return nil, err
}
func (p *synonymPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	valid, repl, err := p.child.Check(ctx, did, 0)
	if repl != nil {
		p.child = repl
	}
	return valid, nil, err
}
func (p *synonymPostList) AtEnd() bool     { return p.child.AtEnd() }
func (p *synonymPostList) GetDocID() DocID { return p.child.GetDocID() }
func (p *synonymPostList) GetWDF() int64   { return p.child.GetWDF() }
func (p *synonymPostList) GetWeight(dl, ut, wm int64) float64 {
	wdf := p.child.GetWDF()
	return p.w.SumPart(wdf, dl, ut, wm)
}
func (p *synonymPostList) RecalcMaxWeight() float64 { return p.w.MaxPart() }
func (p *synonymPostList) TermFreqMin() int64       { return p.child.TermFreqMin() }
func (p *synonymPostList) TermFreqMax() int64       { return p.child.TermFreqMax() }
func (p *synonymPostList) TermFreqEst() int64       { return p.child.TermFreqEst() }
func (p *synonymPostList) CountMatchingSubqs() int  { return 1 }
func (p *synonymPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	return p.child.GatherPositionLists(ctx, out)
}

// compileEliteSet implements §4.4's ELITE_SET(k): compile all children,
// select the k with the greatest recomputed maxweight, drop the rest,
// build the OR tree from the survivors. k counts the node's direct
// children: nested OR children are not flattened first, so a nested OR
// is kept or dropped as one candidate.
func (o *QueryOptimiser) compileEliteSet(n query.MultiWay, factor float64) (PostList, error) {
	children, err := o.compileChildren(n.Children, factor)
	if err != nil {
		return nil, err
	}
	if n.K <= 0 || n.K >= len(children) {
		return buildOrTree(children, factor == 0), nil
	}
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].RecalcMaxWeight() > children[j].RecalcMaxWeight()
	})
	return buildOrTree(children[:n.K], factor == 0), nil
}

// WildcardExpander enumerates every term starting with prefix (for
// EditDistance > 0, every term within that edit distance), used by
// compileWildcard. A Database that wants to support wildcard expansion
// implements this alongside Database.
type WildcardExpander interface {
	ExpandPrefix(ctx context.Context, prefix string, editDistance int) ([]string, error)
}

func (o *QueryOptimiser) compileWildcard(n query.WildcardQ, factor float64) (PostList, error) {
	exp, ok := o.db.(WildcardExpander)
	if !ok {
		return nil, qerror.New(qerror.Unimplemented, "database does not support wildcard expansion")
	}
	terms, err := exp.ExpandPrefix(o.ctx, n.Pattern, n.EditDistance)
	if err != nil {
		return nil, err
	}

	switch n.LimitMode {
	case query.LimitError:
		if n.Limit > 0 && len(terms) > n.Limit {
			return nil, qerror.New(qerror.WildcardError, "wildcard expansion exceeded limit")
		}
	case query.LimitFirst:
		if n.Limit > 0 && len(terms) > n.Limit {
			terms = terms[:n.Limit]
		}
	case query.LimitMostFrequent:
		if n.Limit > 0 && len(terms) > n.Limit {
			sort.SliceStable(terms, func(i, j int) bool {
				return o.db.TermFreq(terms[i]) > o.db.TermFreq(terms[j])
			})
			terms = terms[:n.Limit]
		}
	}

	// Every expanded term registers into Stats unconditionally, per the
	// Open Question decision recorded in SPEC_FULL.md (no MOST_FREQUENT
	// split).
	children := make([]query.Q, len(terms))
	for i, t := range terms {
		children[i] = query.Leaf{Term: t, WQF: 1}
	}

	switch n.Combine {
	case query.CombinerMax:
		return o.compile(query.MultiWay{Op: query.OpMax, Children: children}, factor)
	case query.CombinerSynonym:
		return o.compile(query.MultiWay{Op: query.OpSynonym, Children: children}, factor)
	default:
		return o.compile(query.MultiWay{Op: query.OpOr, Children: children}, factor)
	}
}
