package rpc

import (
	"github.com/sourcegraph/qmatch"
	"github.com/sourcegraph/qmatch/query"
)

// wireOptions is the scalar subset of qmatch.MatchOptions that can cross
// the wire: KeyMaker/MatchDecider/MatchSpies are closures and cannot be
// gob-encoded, so a remote shard only ever applies the scalar knobs
// (sorting, cutoffs, collapsing); deciders/spies are a local-only
// refinement layered on top of the merged MSet (§6.4 lists them as
// optional, and restricting them to the local side is a deliberate
// narrowing of the remote surface for this reference transport).
type wireOptions struct {
	First         int
	MaxItems      int
	CheckAtLeast  int
	CollapseKey   int
	CollapseMax   int
	PercentCutoff int
	WeightCutoff  float64
	DocIDOrder    qmatch.DocIDOrder
	SortKey       int
	SortBy        qmatch.SortBy
	SortValueFwd  bool
}

func toWireOptions(o *qmatch.MatchOptions) wireOptions {
	return wireOptions{
		First:         o.First,
		MaxItems:      o.MaxItems,
		CheckAtLeast:  o.CheckAtLeast,
		CollapseKey:   o.CollapseKey,
		CollapseMax:   o.CollapseMax,
		PercentCutoff: o.PercentCutoff,
		WeightCutoff:  o.WeightCutoff,
		DocIDOrder:    o.DocIDOrder,
		SortKey:       o.SortKey,
		SortBy:        o.SortBy,
		SortValueFwd:  o.SortValueFwd,
	}
}

func (w wireOptions) toMatchOptions() qmatch.MatchOptions {
	return qmatch.MatchOptions{
		First:         w.First,
		MaxItems:      w.MaxItems,
		CheckAtLeast:  w.CheckAtLeast,
		CollapseKey:   w.CollapseKey,
		CollapseMax:   w.CollapseMax,
		PercentCutoff: w.PercentCutoff,
		WeightCutoff:  w.WeightCutoff,
		DocIDOrder:    w.DocIDOrder,
		SortKey:       w.SortKey,
		SortBy:        w.SortBy,
		SortValueFwd:  w.SortValueFwd,
	}
}

// HandshakeArgs/HandshakeReply implement the version-negotiation
// handshake described in §6.3 ("OM <version> <doccount> <avlength>").
type HandshakeArgs struct{}

type HandshakeReply struct {
	Version   int
	DocCount  int64
	AvLength  float64
}

// ProtocolVersion is bumped whenever the wire types in this package
// change shape.
const ProtocolVersion = 1

// PrepareArgs/PrepareReply carry one shard's stats contribution (§4.6's
// prepare_sub_matches wave). memdb-backed servers never block, so nowait
// is accepted but always answered synchronously. Query is carried here
// (rather than only arriving with SearchArgs) so the server can register
// each query term's (df, collfreq) into its stats contribution, per
// §3's termfreq mapping invariant.
type PrepareArgs struct {
	Query  query.Q
	Nowait bool
}

type PrepareReply struct {
	Ready          bool
	CollectionSize int64
	TotalLength    int64
	TermFreq       map[string]qmatch.TermInfo
}

// SearchArgs/SearchReply collapse StartMatch+GetPostListAndTermInfo into
// a single round trip: the client sends the fully-combined Stats and
// query tree, the server runs its own single-shard match and returns the
// already-ranked MSet plus the term_info map, which the client replays
// locally as a PostList (§4.5's remote contract).
type SearchArgs struct {
	Query   query.Q
	Stats   *qmatch.Stats
	Options wireOptions
}

type SearchReply struct {
	MSet     *qmatch.MSet
	TermInfo map[string]qmatch.TermWeightInfo
}

// DocumentArgs/DocumentReply let a RemoteSubMatch's Database forward
// CollectDocument calls (§6.1's D frame). Service.Document fills in only
// Length; Values is left empty, so no document values cross the wire.
type DocumentArgs struct {
	DocID qmatch.DocID
}

type DocumentReply struct {
	Values map[int]string
	Length int64
}

// CloseArgs/CloseReply tear down a client connection's server-side
// resources. memdb has none, so this is a formality kept for parity with
// §6.3's close frame.
type CloseArgs struct{}
type CloseReply struct{}
