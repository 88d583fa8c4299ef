package qmatch

import "context"

// termPostList is a leaf PostList over a single term's postings,
// generalized from a boolean "did it match" leaf to a weighted posting
// iterator. The weighting scheme is cloned once per term by the
// optimiser and supplies SumPart/MaxPart.
type termPostList struct {
	db     Database
	term   string
	leaf   LeafPostList
	w      Weight
	at     Posting
	atEnd  bool
	started bool

	tfMin, tfMax, tfEst int64
}

func newTermPostList(db Database, term string, leaf LeafPostList, w Weight) *termPostList {
	tf := db.TermFreq(term)
	return &termPostList{db: db, term: term, leaf: leaf, w: w, tfMin: tf, tfMax: tf, tfEst: tf}
}

func (p *termPostList) advance(ctx context.Context, wMin float64, post Posting, ok bool, err error) (PostList, error) {
	if err != nil {
		return nil, err
	}
	if !ok {
		p.atEnd = true
		return nil, nil
	}
	p.at = post
	p.started = true
	for wMin > 0 {
		doclen, err := p.leaf.DocLength()
		if err != nil {
			return nil, err
		}
		if p.w.SumPart(post.WDF, doclen, 0, 0) >= wMin {
			break
		}
		nxt, ok, err := p.leaf.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			p.atEnd = true
			return nil, nil
		}
		post = nxt
		p.at = post
	}
	return nil, nil
}

func (p *termPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	post, ok, err := p.leaf.Next()
	return p.advance(ctx, wMin, post, ok, err)
}

func (p *termPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	post, ok, err := p.leaf.SkipTo(did)
	return p.advance(ctx, wMin, post, ok, err)
}

func (p *termPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	repl, err := p.SkipTo(ctx, did, wMin)
	if err != nil {
		return false, nil, err
	}
	if p.atEnd {
		return false, repl, nil
	}
	return p.at.DocID == did, repl, nil
}

func (p *termPostList) AtEnd() bool     { return p.atEnd }
func (p *termPostList) GetDocID() DocID { return p.at.DocID }
func (p *termPostList) GetWDF() int64   { return p.at.WDF }

func (p *termPostList) GetWeight(doclen int64, uniqueTerms int64, wdfDocMax int64) float64 {
	return p.w.SumPart(p.at.WDF, doclen, uniqueTerms, wdfDocMax)
}

func (p *termPostList) RecalcMaxWeight() float64 { return p.w.MaxPart() }
func (p *termPostList) TermFreqMin() int64       { return p.tfMin }
func (p *termPostList) TermFreqMax() int64       { return p.tfMax }
func (p *termPostList) TermFreqEst() int64       { return p.tfEst }
func (p *termPostList) CountMatchingSubqs() int  { return 1 }

func (p *termPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	pl, err := p.leaf.OpenPositionList()
	if err != nil {
		return err
	}
	if pl != nil {
		*out = append(*out, pl)
	}
	return nil
}

// matchAllPostList is the empty-term leaf (MatchAll): it iterates every
// docid from 1 to the shard's last docid, contributing no term-specific
// weight. Grounded on matchtree.go's bruteForceMatchTree, the boolean
// analogue of "matches everything, cost counted separately".
type matchAllPostList struct {
	db    Database
	cur   DocID
	last  DocID
	atEnd bool
}

func newMatchAllPostList(db Database) *matchAllPostList {
	return &matchAllPostList{db: db, last: db.LastDocID()}
}

func (p *matchAllPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	if p.cur >= p.last {
		p.atEnd = true
		return nil, nil
	}
	p.cur++
	return nil, nil
}

func (p *matchAllPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	if did <= p.cur {
		did = p.cur + 1
	}
	if did > p.last {
		p.atEnd = true
		return nil, nil
	}
	p.cur = did
	return nil, nil
}

func (p *matchAllPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	repl, err := p.SkipTo(ctx, did, wMin)
	if err != nil {
		return false, nil, err
	}
	return !p.atEnd, repl, nil
}

func (p *matchAllPostList) AtEnd() bool     { return p.atEnd }
func (p *matchAllPostList) GetDocID() DocID { return p.cur }
func (p *matchAllPostList) GetWDF() int64   { return 0 }
func (p *matchAllPostList) GetWeight(doclen, uniqueTerms, wdfDocMax int64) float64 { return 0 }
func (p *matchAllPostList) RecalcMaxWeight() float64                              { return 0 }
func (p *matchAllPostList) TermFreqMin() int64                                    { return int64(p.last) }
func (p *matchAllPostList) TermFreqMax() int64                                    { return int64(p.last) }
func (p *matchAllPostList) TermFreqEst() int64                                    { return int64(p.last) }
func (p *matchAllPostList) CountMatchingSubqs() int                              { return 0 }
func (p *matchAllPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	return nil
}

// matchNothingPostList is the AND/OR simplification target: an
// always-empty postlist, grounded on matchtree.go's noMatchTree.
type matchNothingPostList struct{}

// MatchNothing is the shared, stateless always-empty PostList.
var MatchNothing PostList = matchNothingPostList{}

func (matchNothingPostList) Next(ctx context.Context, wMin float64) (PostList, error) { return nil, nil }
func (matchNothingPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	return nil, nil
}
func (matchNothingPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	return false, nil, nil
}
func (matchNothingPostList) AtEnd() bool                                           { return true }
func (matchNothingPostList) GetDocID() DocID                                       { return 0 }
func (matchNothingPostList) GetWDF() int64                                        { return 0 }
func (matchNothingPostList) GetWeight(doclen, uniqueTerms, wdfDocMax int64) float64 { return 0 }
func (matchNothingPostList) RecalcMaxWeight() float64                             { return 0 }
func (matchNothingPostList) TermFreqMin() int64                                   { return 0 }
func (matchNothingPostList) TermFreqMax() int64                                   { return 0 }
func (matchNothingPostList) TermFreqEst() int64                                   { return 0 }
func (matchNothingPostList) CountMatchingSubqs() int                             { return 0 }
func (matchNothingPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	return nil
}

// externalPostList wraps an opaque PostingSource (spec §3's "posting
// source" leaf), grounded on original_source's externalpostlist.cc
// next/check split: an external source may not support efficient
// skip_to, so Check falls back to Next-until when CanSkip is false.
type externalPostList struct {
	src     PostingSource
	canSkip bool
	cur     DocID
	atEnd   bool
}

func newExternalPostList(src PostingSource, canSkip bool) *externalPostList {
	return &externalPostList{src: src, canSkip: canSkip}
}

func (p *externalPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	did, ok, err := p.src.Next(wMin)
	if err != nil {
		return nil, err
	}
	if !ok {
		p.atEnd = true
		return nil, nil
	}
	p.cur = did
	return nil, nil
}

func (p *externalPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	if p.canSkip {
		ok, err := p.src.SkipTo(did, wMin)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.atEnd = true
			return nil, nil
		}
		p.cur = did
		return nil, nil
	}
	for !p.atEnd && p.cur < did {
		if _, err := p.Next(ctx, wMin); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (p *externalPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	repl, err := p.SkipTo(ctx, did, wMin)
	if err != nil {
		return false, nil, err
	}
	return !p.atEnd && p.cur == did, repl, nil
}

func (p *externalPostList) AtEnd() bool     { return p.atEnd }
func (p *externalPostList) GetDocID() DocID { return p.cur }
func (p *externalPostList) GetWDF() int64   { return 0 }
func (p *externalPostList) GetWeight(doclen, uniqueTerms, wdfDocMax int64) float64 {
	return p.src.Weight()
}
func (p *externalPostList) RecalcMaxWeight() float64 { return p.src.MaxWeight() }
func (p *externalPostList) TermFreqMin() int64       { return p.src.TermFreqMin() }
func (p *externalPostList) TermFreqMax() int64       { return p.src.TermFreqMax() }
func (p *externalPostList) TermFreqEst() int64       { return p.src.TermFreqEst() }
func (p *externalPostList) CountMatchingSubqs() int  { return 1 }
func (p *externalPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	return nil
}

// valueRangePostList filters a value list to those documents whose value
// at slot falls within [begin, end] lexicographically, following the
// Select/Filter base (§4.2) test_doc hook pattern.
type valueRangePostList struct {
	vl          ValueList
	begin, end  string
	cur         DocID
	curVal      string
	atEnd       bool
	started     bool
	freqEstimate int64
}

func newValueRangePostList(vl ValueList, begin, end string, freqEstimate int64) *valueRangePostList {
	return &valueRangePostList{vl: vl, begin: begin, end: end, freqEstimate: freqEstimate}
}

func (p *valueRangePostList) testDoc(val string) bool {
	if p.begin != "" && val < p.begin {
		return false
	}
	if p.end != "" && val > p.end {
		return false
	}
	return true
}

func (p *valueRangePostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	for {
		did, val, ok, err := p.vl.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			p.atEnd = true
			return nil, nil
		}
		if p.testDoc(val) {
			p.cur, p.curVal, p.started = did, val, true
			return nil, nil
		}
	}
}

func (p *valueRangePostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	val, ok, err := p.vl.SkipTo(did)
	if err != nil {
		return nil, err
	}
	if !ok {
		p.atEnd = true
		return nil, nil
	}
	if p.testDoc(val) {
		p.cur, p.curVal, p.started = did, val, true
		return nil, nil
	}
	return p.Next(ctx, wMin)
}

func (p *valueRangePostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	repl, err := p.SkipTo(ctx, did, wMin)
	if err != nil {
		return false, nil, err
	}
	return !p.atEnd && p.cur == did, repl, nil
}

func (p *valueRangePostList) AtEnd() bool     { return p.atEnd }
func (p *valueRangePostList) GetDocID() DocID { return p.cur }
func (p *valueRangePostList) GetWDF() int64   { return 0 }
func (p *valueRangePostList) GetWeight(doclen, uniqueTerms, wdfDocMax int64) float64 {
	return 0
}
func (p *valueRangePostList) RecalcMaxWeight() float64 { return 0 }
func (p *valueRangePostList) TermFreqMin() int64       { return 0 }
func (p *valueRangePostList) TermFreqMax() int64       { return p.freqEstimate }
func (p *valueRangePostList) TermFreqEst() int64       { return p.freqEstimate }
func (p *valueRangePostList) CountMatchingSubqs() int  { return 0 }
func (p *valueRangePostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	return nil
}
