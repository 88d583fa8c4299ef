package qmatch

// Weight is the per-posting scoring contract. Concrete schemes (BM25,
// TF-IDF, trad, bool) live in package qmatch/weight; the matching core
// only depends on this interface, per the Database/Weight abstraction
// boundary.
type Weight interface {
	// Clone returns a fresh, independent instance with the same
	// parameters; the optimiser clones once per compiled term and per
	// synonym or extra-weight wrapper.
	Clone() Weight
	// Name identifies the scheme, used in logs and serialisation.
	Name() string
	// Serialise encodes the scheme's parameters for the wire protocol.
	Serialise() []byte
	// Unserialise restores parameters encoded by Serialise.
	Unserialise(data []byte) error

	// Init sets up the scheme for one term (or the whole query, when
	// term == "" for ExtraWeight use) against stats, with query length
	// qlen, within-query-frequency wqf, and overall scale factor.
	Init(stats *Stats, qlen int, term string, wqf int, factor float64)

	// SumPart returns the per-posting score contribution.
	SumPart(wdf int64, doclen int64, uniqueTerms int64, wdfDocMax int64) float64
	// MaxPart is an upper bound on SumPart over all postings.
	MaxPart() float64

	// SumExtra returns the term-independent contribution added once per
	// document by ExtraWeightPostList.
	SumExtra(doclen int64, uniqueTerms int64) float64
	// MaxExtra is an upper bound on SumExtra.
	MaxExtra() float64

	// SumPartNeedsDocLength lets operators skip costly doc-length
	// lookups when the scheme doesn't use them.
	SumPartNeedsDocLength() bool
}
