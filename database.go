package qmatch

import "context"

// DocID identifies a document within a single shard. 0 is never a valid
// document id.
type DocID uint32

// Posting is one (docid, wdf) pair as read from a leaf postlist.
type Posting struct {
	DocID DocID
	WDF   int64
}

// LeafPostList is the handle a Database hands back from OpenPostList: a
// raw, unweighted iterator over a term's postings plus the per-document
// bookkeeping needed to compute a weight once a posting is positioned.
type LeafPostList interface {
	// Next advances to the next posting; ok is false at end.
	Next() (Posting, bool, error)
	// SkipTo advances to the first posting with DocID >= did.
	SkipTo(did DocID) (Posting, bool, error)
	// DocLength returns the length of the document currently
	// positioned on.
	DocLength() (int64, error)
	// OpenPositionList opens the position list for the current
	// posting, if the shard has positional data.
	OpenPositionList() (PositionList, error)
}

// PositionList iterates the within-document positions of one term in one
// document, in ascending order.
type PositionList interface {
	Next() (pos int64, ok bool, err error)
	SkipTo(pos int64) (newPos int64, ok bool, err error)
}

// ValueList iterates the (docid, value) pairs of a value slot in
// ascending docid order, used to build value-range postlists.
type ValueList interface {
	Next() (did DocID, value string, ok bool, err error)
	SkipTo(did DocID) (value string, ok bool, err error)
}

// Document is the read-side handle to document content: values and
// stored term/position data.
type Document interface {
	Value(slot int) (string, bool)
	Length() int64
}

// PostingSource is an opaque external posting producer (spec §3's
// "posting source" leaf), e.g. a user-supplied scored-id generator. It
// is wrapped by an externalPostList.
type PostingSource interface {
	Next(minWeight float64) (DocID, bool, error)
	SkipTo(did DocID, minWeight float64) (bool, error)
	Weight() float64
	MaxWeight() float64
	TermFreqMin() int64
	TermFreqMax() int64
	TermFreqEst() int64
}

// Database is the shard-local read interface the matching core consumes.
// On-disk formats, value storage, and positional storage are external
// collaborators; only this interface is visible to the matcher.
type Database interface {
	DocCount() int64
	LastDocID() DocID
	AvLength() float64
	DocLength(did DocID) (int64, error)
	TotalLength() int64
	HasPositions() bool

	TermExists(term string) bool
	TermFreq(term string) int64
	CollectionFreq(term string) int64

	// OpenPostList opens term's postlist; an empty term denotes the
	// all-documents postlist (MatchAll), which has no positions. hint,
	// if non-nil, is a previously-opened postlist the backend may reuse
	// (the optimiser's "hint" mechanism, §4.4).
	OpenPostList(ctx context.Context, term string, hint LeafPostList) (LeafPostList, error)

	OpenPositionList(ctx context.Context, did DocID, term string) (PositionList, error)
	OpenDocument(ctx context.Context, did DocID, lazy bool) (Document, error)

	ValueLowerBound(slot int) string
	ValueUpperBound(slot int) string
	ValueFreq(slot int) int64
	OpenValueList(ctx context.Context, slot int) (ValueList, error)

	// RequestDocument/CollectDocument let a remote Database pipeline
	// document fetches; a local Database may implement RequestDocument
	// as a no-op and CollectDocument as a direct OpenDocument call.
	RequestDocument(ctx context.Context, did DocID)
	CollectDocument(ctx context.Context, did DocID) (Document, error)
}
