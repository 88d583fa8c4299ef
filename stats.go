// Package qmatch implements the query matching engine of a probabilistic
// full-text search library: it compiles a query tree into a tree of
// PostList iterators over one or more Database shards and drives a top-k
// selection loop that produces a ranked MSet.
package qmatch

import "sync"

// TermInfo is the per-term statistics entry of Stats.termfreq: document
// frequency and collection frequency for a single term.
type TermInfo struct {
	TermFreq int64 // number of documents containing the term
	CollFreq int64 // total occurrences across the collection
}

// Stats holds the collection-wide counters needed by a Weight
// implementation. One Stats is built per match; it is writable only
// during the stats-preparation phase (SubMatch.PrepareMatch) and
// read-only thereafter. The preparation phase fans out across shards
// concurrently (multimatch.prepareStats), each calling Combine on the
// same shared Stats, so Combine guards itself with mu rather than
// relying on callers to serialise.
type Stats struct {
	mu sync.Mutex

	CollectionSize int64 // total documents across participating shards
	RSetSize       int64 // size of the relevance set
	TotalLength    int64 // sum of document lengths (0 if unknown)
	TotalTermCount int64 // sum over all terms of their collection frequency

	// TermFreq maps a term to its (df, collfreq) pair, for every term
	// that appears anywhere in the query.
	TermFreq map[string]TermInfo
	// RelTermFreq maps a term to the count of relevant docs containing
	// it.
	RelTermFreq map[string]int64

	// ValueBounds maps a value slot to its (lower, upper, freq) triple.
	ValueBounds map[int]ValueBound
}

// ValueBound records the bounds and frequency of a value slot, used to
// drive the optimiser's value-range-to-MatchAll rewrite.
type ValueBound struct {
	Lower string
	Upper string
	Freq  int64
}

// NewStats returns an empty, writable Stats.
func NewStats() *Stats {
	return &Stats{
		TermFreq:    make(map[string]TermInfo),
		RelTermFreq: make(map[string]int64),
		ValueBounds: make(map[int]ValueBound),
	}
}

// AverageLength returns TotalLength/CollectionSize, or 0 if either is 0.
// Ported from the weighted-mean combination behaviour of the original
// stats.cc: when TotalLength is known, the average is always recomputed
// from it rather than carried as a separately-combined field.
func (s *Stats) AverageLength() float64 {
	if s.CollectionSize == 0 || s.TotalLength == 0 {
		return 0
	}
	return float64(s.TotalLength) / float64(s.CollectionSize)
}

// Combine folds a per-shard Stats into s, maintaining the accumulation
// invariants: CollectionSize/RSetSize/TotalLength/TotalTermCount sum;
// TermFreq/RelTermFreq entries sum per term; ValueBounds widen. Safe to
// call concurrently on the same s from multiple shards' PrepareMatch.
func (s *Stats) Combine(other *Stats) {
	if other == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CollectionSize += other.CollectionSize
	s.RSetSize += other.RSetSize
	s.TotalLength += other.TotalLength
	s.TotalTermCount += other.TotalTermCount

	for term, info := range other.TermFreq {
		cur := s.TermFreq[term]
		cur.TermFreq += info.TermFreq
		cur.CollFreq += info.CollFreq
		s.TermFreq[term] = cur
	}
	for term, n := range other.RelTermFreq {
		s.RelTermFreq[term] += n
	}
	for slot, vb := range other.ValueBounds {
		cur, ok := s.ValueBounds[slot]
		if !ok {
			s.ValueBounds[slot] = vb
			continue
		}
		if vb.Lower < cur.Lower {
			cur.Lower = vb.Lower
		}
		if vb.Upper > cur.Upper {
			cur.Upper = vb.Upper
		}
		cur.Freq += vb.Freq
		s.ValueBounds[slot] = cur
	}
}

// Clone returns a deep copy, handed to each shard's SubMatch as its
// read-only view once the preparation phase completes.
func (s *Stats) Clone() *Stats {
	cp := &Stats{
		CollectionSize: s.CollectionSize,
		RSetSize:       s.RSetSize,
		TotalLength:    s.TotalLength,
		TotalTermCount: s.TotalTermCount,
		TermFreq:       make(map[string]TermInfo, len(s.TermFreq)),
		RelTermFreq:    make(map[string]int64, len(s.RelTermFreq)),
		ValueBounds:    make(map[int]ValueBound, len(s.ValueBounds)),
	}
	for k, v := range s.TermFreq {
		cp.TermFreq[k] = v
	}
	for k, v := range s.RelTermFreq {
		cp.RelTermFreq[k] = v
	}
	for k, v := range s.ValueBounds {
		cp.ValueBounds[k] = v
	}
	return cp
}

// TermFreqs is the triple an operator postlist returns when it acts as a
// "virtual term" for synonym/max/wildcard expansion weighting.
type TermFreqs struct {
	TermFreq    int64
	RelTermFreq int64
	CollFreq    int64
}
