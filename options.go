package qmatch

import "time"

// DocIDOrder selects the tie-break direction for equal-weight/sort-key
// items.
type DocIDOrder int

const (
	DocIDOrderAsc DocIDOrder = iota
	DocIDOrderDesc
	DocIDOrderDontCare
)

// SortBy selects the MSet ordering.
type SortBy int

const (
	SortByRelevance SortBy = iota
	SortByValue
	SortByRelevanceThenValue
	SortByValueThenRelevance
)

// NoCollapse is the sentinel value slot meaning "no collapsing".
const NoCollapse = -1

// MatchDecider is called once per candidate document (after value-sort
// pruning, before collapsing) to accept or reject it.
type MatchDecider func(doc Document) bool

// MatchSpy observes every document that passes the deciders and
// collapsing, whether or not it ends up in the final MSet page. It may
// also reject, exactly like a MatchDecider, per §6.4.
type MatchSpy func(doc Document) bool

// KeyMaker computes a sort key for value-based ordering, replacing a
// plain slot lookup.
type KeyMaker func(doc Document) string

// NewMatchOptions returns a MatchOptions with CollapseKey set to
// NoCollapse. Slot 0 is a legitimate value slot (§6.4), so the zero
// value of a bare MatchOptions{} literal means "collapse on slot 0",
// not "no collapsing" — callers who want no collapsing must either use
// this constructor or set CollapseKey: NoCollapse explicitly.
func NewMatchOptions() MatchOptions {
	return MatchOptions{CollapseKey: NoCollapse}
}

// MatchOptions is the per-match configuration surface (§6.4). Callers
// build one and pass it to MultiMatch; SetDefaults fills in the
// unspecified fields, applied once by the orchestrator. CollapseKey has
// no usable zero-value default (0 is a legitimate slot), so construct
// with NewMatchOptions or set CollapseKey explicitly to NoCollapse when
// collapsing is not wanted.
type MatchOptions struct {
	First         int
	MaxItems      int
	CheckAtLeast  int
	CollapseKey   int // NoCollapse for none
	CollapseMax   int
	PercentCutoff int // 0-100
	WeightCutoff  float64
	DocIDOrder    DocIDOrder
	SortKey       int
	SortBy        SortBy
	SortValueFwd  bool
	TimeLimit     time.Duration // <= 0 means none

	KeyMaker     KeyMaker
	MatchDecider MatchDecider
	MatchSpies   []MatchSpy
}

// SetDefaults fills in zero-valued fields with the engine's defaults.
// MaxItems defaults to 10; CheckAtLeast is raised to at least
// First+MaxItems, mirroring the invariant "check_at_least >= maxitems".
func (o *MatchOptions) SetDefaults() {
	if o.MaxItems <= 0 {
		o.MaxItems = 10
	}
	if o.CheckAtLeast < o.First+o.MaxItems {
		o.CheckAtLeast = o.First + o.MaxItems
	}
}
