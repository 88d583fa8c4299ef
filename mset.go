package qmatch

import (
	"context"
	"sort"
)

// MSetItem is one ranked result: (weight, docid, collapse_key,
// collapse_count, sort_key).
type MSetItem struct {
	Weight        float64
	DocID         DocID
	ShardIndex    int
	CollapseKey   string
	CollapseCount int
	SortKey       string
}

// GlobalDocID maps a per-shard docid to the global numbering described
// in §5: global_did = (local_did - 1)*n_shards + shard_index + 1.
func GlobalDocID(did DocID, shardIndex, nShards int) int64 {
	return (int64(did)-1)*int64(nShards) + int64(shardIndex) + 1
}

// MSet is the immutable paginated result of a match (§4.7).
type MSet struct {
	First int
	Items []MSetItem

	MatchesLowerBound int64
	MatchesEstimated  int64
	MatchesUpperBound int64

	MaxPossible float64
	MaxAttained float64

	// TermFreqAndWts maps a query term to its (termfreq, max weight)
	// pair, populated by the first shard's SubMatch, per §4.5.
	TermFreqAndWts map[string]TermWeightInfo

	PercentFactor float64

	docs map[DocID]Document
}

// TermWeightInfo is the (termfreq, max_term_weight) pair reported for
// each query term in term_info, per §4.5.
type TermWeightInfo struct {
	TermFreq     int64
	MaxTermWeight float64
}

// GetDoc returns the document for items[i], fetching it lazily via the
// deferred-batch RequestDocument/CollectDocument pair (§4.7, §6.1) so a
// remote backend can pipeline fetches across the whole page.
func (m *MSet) GetDoc(ctx context.Context, db Database, i int) (Document, error) {
	if m.docs == nil {
		m.docs = make(map[DocID]Document)
	}
	did := m.Items[i].DocID
	if d, ok := m.docs[did]; ok {
		return d, nil
	}
	for _, it := range m.Items {
		db.RequestDocument(ctx, it.DocID)
	}
	d, err := db.CollectDocument(ctx, did)
	if err != nil {
		return nil, err
	}
	m.docs[did] = d
	return d, nil
}

// percentScale computes the weight corresponding to 100%, per §4.6: with
// a single query term, 100/greatest_wt; otherwise the best document's
// intersecting term-weight sum over the total query term-weight sum,
// divided by greatest_wt.
func percentScale(greatestWt float64, termInfo map[string]TermWeightInfo, matchedTermWeight float64) float64 {
	if greatestWt <= 0 {
		return 0
	}
	if len(termInfo) == 1 {
		return 100 / greatestWt
	}
	var total float64
	for _, ti := range termInfo {
		total += ti.MaxTermWeight
	}
	if total == 0 {
		return 0
	}
	return 100 * matchedTermWeight / (total * greatestWt)
}

// lessRel orders by descending weight, then ascending docid (REL).
func lessRel(a, b MSetItem) bool {
	if a.Weight != b.Weight {
		return a.Weight > b.Weight
	}
	return a.DocID < b.DocID
}

// lessVal orders by sort key, direction per forward, ties by weight
// descending then docid (VAL).
func lessVal(a, b MSetItem, forward bool) bool {
	if a.SortKey != b.SortKey {
		if forward {
			return a.SortKey < b.SortKey
		}
		return a.SortKey > b.SortKey
	}
	return lessRel(a, b)
}

// SortItems stably sorts items per the configured comparator (§4.6). It
// is exported so the multimatch package's top-k loop can apply the same
// comparator the rest of this package uses internally.
func SortItems(items []MSetItem, opts *MatchOptions) {
	sortItems(items, opts)
}

// PercentScale exposes percentScale to the multimatch package's top-k
// loop.
func PercentScale(greatestWt float64, termInfo map[string]TermWeightInfo, matchedTermWeight float64) float64 {
	return percentScale(greatestWt, termInfo, matchedTermWeight)
}

// sortItems stably sorts items per the configured comparator (§4.6).
func sortItems(items []MSetItem, opts *MatchOptions) {
	var less func(a, b MSetItem) bool
	switch opts.SortBy {
	case SortByValue:
		less = func(a, b MSetItem) bool { return lessVal(a, b, opts.SortValueFwd) }
	case SortByRelevanceThenValue:
		less = func(a, b MSetItem) bool {
			if a.Weight != b.Weight {
				return a.Weight > b.Weight
			}
			return lessVal(a, b, opts.SortValueFwd)
		}
	case SortByValueThenRelevance:
		less = func(a, b MSetItem) bool {
			if a.SortKey != b.SortKey {
				if opts.SortValueFwd {
					return a.SortKey < b.SortKey
				}
				return a.SortKey > b.SortKey
			}
			return lessRel(a, b)
		}
	default:
		less = lessRel
	}
	if opts.DocIDOrder == DocIDOrderDesc {
		inner := less
		less = func(a, b MSetItem) bool {
			if a.Weight == b.Weight && a.SortKey == b.SortKey {
				return a.DocID > b.DocID
			}
			return inner(a, b)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}
