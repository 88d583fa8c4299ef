package memdb

import "github.com/sourcegraph/qmatch"

// memLeafPostList is the qmatch.LeafPostList memdb hands back from
// OpenPostList: it walks a term's roaring bitmap in ascending docid
// order, looking up wdf/positions from the term's side maps.
type memLeafPostList struct {
	tp      *termPosting
	it      roaringIterator
	did     qmatch.DocID
	started bool
	ended   bool
}

// roaringIterator is the minimal surface memLeafPostList needs from
// roaring.Bitmap's iterator, kept narrow so an empty postlist (term never
// seen) can be represented without constructing a bitmap.
type roaringIterator interface {
	HasNext() bool
	Next() uint32
}

func newMemLeafPostList(tp *termPosting) *memLeafPostList {
	return &memLeafPostList{tp: tp, it: tp.bitmap.Iterator()}
}

func (p *memLeafPostList) Next() (qmatch.Posting, bool, error) {
	if p.ended || p.it == nil || !p.it.HasNext() {
		p.started = true
		p.ended = true
		return qmatch.Posting{}, false, nil
	}
	p.did = qmatch.DocID(p.it.Next())
	p.started = true
	return qmatch.Posting{DocID: p.did, WDF: p.tp.wdf[p.did]}, true, nil
}

// SkipTo is idempotent: if the postlist is already positioned at or past
// did, it returns the current posting rather than consuming the next
// one, since callers like multiAndPostList re-Check the same docid
// against a postlist that may already be sitting on it.
func (p *memLeafPostList) SkipTo(did qmatch.DocID) (qmatch.Posting, bool, error) {
	if p.started && !p.ended && p.did >= did {
		return qmatch.Posting{DocID: p.did, WDF: p.tp.wdf[p.did]}, true, nil
	}
	for {
		post, ok, err := p.Next()
		if err != nil || !ok {
			return post, ok, err
		}
		if post.DocID >= did {
			return post, true, nil
		}
	}
}

func (p *memLeafPostList) DocLength() (int64, error) {
	// memdb's leaf postlist doesn't carry a Database reference, so this
	// always returns 0. termPostList's w_min pruning calls it and so sees
	// a length of 0 for every document; the top-k loop takes lengths from
	// Database.DocLength instead.
	return 0, nil
}

func (p *memLeafPostList) OpenPositionList() (qmatch.PositionList, error) {
	if p.tp == nil {
		return nil, nil
	}
	positions := p.tp.pos[p.did]
	if positions == nil {
		return nil, nil
	}
	return &memPositionList{positions: positions, idx: -1}, nil
}

// memPositionList iterates the ascending within-document positions of one
// term in one document.
type memPositionList struct {
	positions []int64
	idx       int
}

func (p *memPositionList) Next() (int64, bool, error) {
	p.idx++
	if p.idx >= len(p.positions) {
		return 0, false, nil
	}
	return p.positions[p.idx], true, nil
}

func (p *memPositionList) SkipTo(pos int64) (int64, bool, error) {
	for p.idx+1 < len(p.positions) && p.positions[p.idx+1] < pos {
		p.idx++
	}
	return p.Next()
}

// memValueList iterates a value slot's (docid, value) pairs in ascending
// docid order.
type memValueList struct {
	pairs []valuePair
	idx   int
}

func (v *memValueList) Next() (qmatch.DocID, string, bool, error) {
	v.idx++
	if v.idx >= len(v.pairs) {
		return 0, "", false, nil
	}
	return v.pairs[v.idx].did, v.pairs[v.idx].value, true, nil
}

func (v *memValueList) SkipTo(did qmatch.DocID) (string, bool, error) {
	for v.idx+1 < len(v.pairs) && v.pairs[v.idx+1].did < did {
		v.idx++
	}
	_, value, ok, err := v.Next()
	return value, ok, err
}

// memDocument is the qmatch.Document memdb hands back from
// OpenDocument/CollectDocument.
type memDocument struct {
	values map[int]string
	length int64
}

func (d *memDocument) Value(slot int) (string, bool) {
	v, ok := d.values[slot]
	return v, ok
}

func (d *memDocument) Length() int64 { return d.length }
