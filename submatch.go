package qmatch

import (
	"context"

	"github.com/sourcegraph/qmatch/query"
)

// SubMatch is the per-shard façade (§4.5): prepare (collect stats),
// start match, build postlist. LocalSubMatch uses the shard's index
// directly; a RemoteSubMatch (package qmatch/rpc) serves the same three
// calls over the wire protocol, sending StartMatch's stats and options
// with the single Search call GetPostListAndTermInfo makes.
type SubMatch interface {
	// PrepareMatch contributes this shard's stats into shared,
	// including the per-term (df, collfreq) pair for every term
	// appearing in q (§3, §4.5: "termfreq mapping for every query
	// term"). When nowait is true a remote shard may return
	// ready=false, meaning "call again when input is ready" (§4.5, §5).
	PrepareMatch(ctx context.Context, q query.Q, nowait bool, shared *Stats) (ready bool, err error)

	// StartMatch stores the collated stats for use during postlist
	// construction.
	StartMatch(ctx context.Context, first, maxItems, checkAtLeast int, total *Stats) error

	// GetPostListAndTermInfo builds the compiled postlist tree for this
	// shard. termInfo is populated with (termfreq, max_term_weight) for
	// every term in the query on the first shard only — pass nil on
	// subsequent shards so only the first shard fills it in, per §4.5.
	GetPostListAndTermInfo(ctx context.Context, q query.Q, termInfo map[string]TermWeightInfo) (PostList, error)

	// Database exposes the shard's Database, used for document fetch
	// and value lookups during the top-k loop.
	Database() Database
}

// LocalSubMatch is the local variant of SubMatch: it builds the postlist
// tree via a QueryOptimiser bound to its own shard.
type LocalSubMatch struct {
	db Database
	w  Weight

	stats *Stats
}

// NewLocalSubMatch returns a SubMatch for a locally-held shard.
func NewLocalSubMatch(db Database, w Weight) *LocalSubMatch {
	return &LocalSubMatch{db: db, w: w}
}

func (s *LocalSubMatch) PrepareMatch(ctx context.Context, q query.Q, nowait bool, shared *Stats) (bool, error) {
	local := NewStats()
	local.CollectionSize = s.db.DocCount()
	local.TotalLength = s.db.TotalLength()
	query.VisitAtoms(q, func(a query.Q) {
		leaf, ok := a.(query.Leaf)
		if !ok || leaf.Term == "" {
			return
		}
		if _, seen := local.TermFreq[leaf.Term]; seen {
			return
		}
		local.TermFreq[leaf.Term] = TermInfo{
			TermFreq: s.db.TermFreq(leaf.Term),
			CollFreq: s.db.CollectionFreq(leaf.Term),
		}
	})
	shared.Combine(local)
	return true, nil
}

func (s *LocalSubMatch) StartMatch(ctx context.Context, first, maxItems, checkAtLeast int, total *Stats) error {
	s.stats = total
	return nil
}

func (s *LocalSubMatch) GetPostListAndTermInfo(ctx context.Context, q query.Q, termInfo map[string]TermWeightInfo) (PostList, error) {
	opt := NewQueryOptimiser(ctx, s.db, s.w, s.stats)
	pl, err := opt.Compile(q, 1)
	if err != nil {
		return nil, err
	}
	if termInfo != nil {
		query.VisitAtoms(q, func(a query.Q) {
			leaf, ok := a.(query.Leaf)
			if !ok || leaf.Term == "" {
				return
			}
			w := s.w.Clone()
			w.Init(s.stats, 1, leaf.Term, leaf.WQF, 1)
			termInfo[leaf.Term] = TermWeightInfo{
				TermFreq:      s.stats.TermFreq[leaf.Term].TermFreq,
				MaxTermWeight: w.MaxPart(),
			}
		})
	}
	return pl, nil
}

func (s *LocalSubMatch) Database() Database { return s.db }

// replayPostList is the fake postlist a RemoteSubMatch exposes: it
// simply replays an already-ranked MSet as if it were a single postlist
// (§4.5's remote contract).
type replayPostList struct {
	items []MSetItem
	idx   int
	ended bool
}

// NewReplayPostList builds a PostList that iterates items in the order
// given (assumed already docid-ascending, as a remote MSet's items are
// once re-sorted by docid for replay).
func NewReplayPostList(items []MSetItem) PostList {
	if len(items) == 0 {
		return MatchNothing
	}
	return &replayPostList{items: items, idx: -1}
}

func (p *replayPostList) Next(ctx context.Context, wMin float64) (PostList, error) {
	p.idx++
	if p.idx >= len(p.items) {
		p.ended = true
	}
	return nil, nil
}

func (p *replayPostList) SkipTo(ctx context.Context, did DocID, wMin float64) (PostList, error) {
	for p.idx+1 < len(p.items) && p.items[p.idx+1].DocID < did {
		p.idx++
	}
	p.idx++
	if p.idx >= len(p.items) {
		p.ended = true
	}
	return nil, nil
}

func (p *replayPostList) Check(ctx context.Context, did DocID, wMin float64) (bool, PostList, error) {
	if _, err := p.SkipTo(ctx, did, wMin); err != nil {
		return false, nil, err
	}
	return !p.ended && p.items[p.idx].DocID == did, nil, nil
}

func (p *replayPostList) AtEnd() bool { return p.ended }
func (p *replayPostList) GetDocID() DocID {
	if p.ended || p.idx < 0 {
		return 0
	}
	return p.items[p.idx].DocID
}
func (p *replayPostList) GetWDF() int64 { return 0 }
func (p *replayPostList) GetWeight(dl, ut, wm int64) float64 {
	if p.ended || p.idx < 0 {
		return 0
	}
	return p.items[p.idx].Weight
}
func (p *replayPostList) RecalcMaxWeight() float64 {
	var max float64
	for _, it := range p.items[maxIdx(p.idx+1, 0):] {
		if it.Weight > max {
			max = it.Weight
		}
	}
	return max
}
func maxIdx(a, b int) int {
	if a > b {
		return a
	}
	return b
}
func (p *replayPostList) TermFreqMin() int64      { return int64(len(p.items)) }
func (p *replayPostList) TermFreqMax() int64      { return int64(len(p.items)) }
func (p *replayPostList) TermFreqEst() int64      { return int64(len(p.items)) }
func (p *replayPostList) CountMatchingSubqs() int { return 1 }
func (p *replayPostList) GatherPositionLists(ctx context.Context, out *[]PositionList) error {
	return nil
}
