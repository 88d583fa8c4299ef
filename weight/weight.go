// Package weight provides concrete Weight schemes (BM25, TF-IDF, trad,
// bool), with BM25 parameterised the usual way (k1, b, k2). The matching
// core only depends on the qmatch.Weight interface; these are the
// schemes a caller plugs in.
package weight

import (
	"encoding/binary"
	"math"

	"github.com/sourcegraph/qmatch"
)

// idf is the inverse document frequency term shared by every scheme
// here.
func idf(termFreq, collectionSize int64) float64 {
	if collectionSize == 0 || termFreq == 0 {
		return 0
	}
	v := math.Log(1 + (float64(collectionSize)-float64(termFreq)+0.5)/(float64(termFreq)+0.5))
	if v < 0 {
		return 0
	}
	return v
}

// BM25 is the classic Okapi BM25 scheme with configurable k1, b, k2.
type BM25 struct {
	K1, B, K2 float64

	stats     *qmatch.Stats
	avgLen    float64
	idf       float64
	wqf       float64
	factor    float64
}

// NewBM25 returns a BM25 scheme with the standard k1=1.2, b=0.75, k2=0
// parameterisation used by score.go's scoreFilesUsingBM25.
func NewBM25() *BM25 {
	return &BM25{K1: 1.2, B: 0.75, K2: 0}
}

func (w *BM25) Clone() qmatch.Weight { cp := *w; return &cp }
func (w *BM25) Name() string         { return "bm25" }

func (w *BM25) Serialise() []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(w.K1))
	binary.BigEndian.PutUint64(buf[8:16], math.Float64bits(w.B))
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(w.K2))
	return buf
}

func (w *BM25) Unserialise(data []byte) error {
	if len(data) < 24 {
		return errShortBuffer
	}
	w.K1 = math.Float64frombits(binary.BigEndian.Uint64(data[0:8]))
	w.B = math.Float64frombits(binary.BigEndian.Uint64(data[8:16]))
	w.K2 = math.Float64frombits(binary.BigEndian.Uint64(data[16:24]))
	return nil
}

func (w *BM25) Init(stats *qmatch.Stats, qlen int, term string, wqf int, factor float64) {
	w.stats = stats
	w.avgLen = stats.AverageLength()
	w.wqf = float64(wqf)
	w.factor = factor
	if term != "" {
		ti := stats.TermFreq[term]
		w.idf = idf(ti.TermFreq, stats.CollectionSize)
	}
}

func (w *BM25) SumPart(wdf, doclen, uniqueTerms, wdfDocMax int64) float64 {
	if wdf == 0 {
		return 0
	}
	L := 1.0
	if w.avgLen > 0 {
		L = float64(doclen) / w.avgLen
	}
	tf := float64(wdf) / (w.K1*((1-w.B)+w.B*L) + float64(wdf))
	qtf := 1.0
	if w.K2 > 0 && w.wqf > 0 {
		qtf = w.wqf / (w.K2 + w.wqf)
	}
	return w.factor * w.idf * tf * qtf
}

func (w *BM25) MaxPart() float64 {
	qtf := 1.0
	if w.K2 > 0 && w.wqf > 0 {
		qtf = w.wqf / (w.K2 + w.wqf)
	}
	return w.factor * w.idf * qtf
}

func (w *BM25) SumExtra(doclen, uniqueTerms int64) float64 { return 0 }
func (w *BM25) MaxExtra() float64                          { return 0 }
func (w *BM25) SumPartNeedsDocLength() bool                 { return w.B != 0 }

// TFIDF is tf*idf with no document-length normalisation.
type TFIDF struct {
	stats  *qmatch.Stats
	idf    float64
	factor float64
}

func NewTFIDF() *TFIDF { return &TFIDF{} }

func (w *TFIDF) Clone() qmatch.Weight                   { cp := *w; return &cp }
func (w *TFIDF) Name() string                           { return "tfidf" }
func (w *TFIDF) Serialise() []byte                      { return nil }
func (w *TFIDF) Unserialise(data []byte) error          { return nil }
func (w *TFIDF) Init(stats *qmatch.Stats, qlen int, term string, wqf int, factor float64) {
	w.stats = stats
	w.factor = factor
	if term != "" {
		ti := stats.TermFreq[term]
		w.idf = idf(ti.TermFreq, stats.CollectionSize)
	}
}
func (w *TFIDF) SumPart(wdf, doclen, uniqueTerms, wdfDocMax int64) float64 {
	return w.factor * float64(wdf) * w.idf
}
func (w *TFIDF) MaxPart() float64 {
	return w.factor * w.idf * 1e6 // unbounded wdf in principle; capped bound
}
func (w *TFIDF) SumExtra(doclen, uniqueTerms int64) float64 { return 0 }
func (w *TFIDF) MaxExtra() float64                          { return 0 }
func (w *TFIDF) SumPartNeedsDocLength() bool                { return false }

// Trad is the "traditional probabilistic" scheme: BM25 degenerate with
// b=1, k2=0.
type Trad struct {
	BM25
	K float64
}

func NewTrad(k float64) *Trad {
	t := &Trad{K: k}
	t.BM25 = BM25{K1: k, B: 1, K2: 0}
	return t
}

func (w *Trad) Clone() qmatch.Weight { cp := *w; return &cp }
func (w *Trad) Name() string         { return "trad" }

// Bool is a constant-1.0 weight for callers that want Boolean ranking
// (qmatch-bench's -weight bool). The optimiser does not use it for
// factor=0 subtrees; it scales the chosen scheme by a factor of 0.
type Bool struct{}

func NewBool() *Bool { return &Bool{} }

func (w *Bool) Clone() qmatch.Weight                                         { return &Bool{} }
func (w *Bool) Name() string                                                  { return "bool" }
func (w *Bool) Serialise() []byte                                             { return nil }
func (w *Bool) Unserialise(data []byte) error                                 { return nil }
func (w *Bool) Init(stats *qmatch.Stats, qlen int, term string, wqf int, factor float64) {}
func (w *Bool) SumPart(wdf, doclen, uniqueTerms, wdfDocMax int64) float64     { return 1 }
func (w *Bool) MaxPart() float64                                             { return 1 }
func (w *Bool) SumExtra(doclen, uniqueTerms int64) float64                   { return 0 }
func (w *Bool) MaxExtra() float64                                            { return 0 }
func (w *Bool) SumPartNeedsDocLength() bool                                  { return false }

type shortBufferError struct{}

func (shortBufferError) Error() string { return "weight: short buffer" }

var errShortBuffer = shortBufferError{}
