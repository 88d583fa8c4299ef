package weight

import (
	"math"
	"testing"

	"github.com/sourcegraph/qmatch"
)

func newStats(collSize, termFreq, totalLen int64) *qmatch.Stats {
	s := qmatch.NewStats()
	s.CollectionSize = collSize
	s.TotalLength = totalLen
	s.TermFreq = map[string]qmatch.TermInfo{"t": {TermFreq: termFreq}}
	return s
}

func TestBM25SumPartZeroWDF(t *testing.T) {
	w := NewBM25()
	w.Init(newStats(100, 10, 1000), 1, "t", 1, 1)
	if got := w.SumPart(0, 10, 0, 0); got != 0 {
		t.Fatalf("SumPart(wdf=0) = %v, want 0", got)
	}
}

func TestBM25SumPartPositiveAndBoundedByMaxPart(t *testing.T) {
	w := NewBM25()
	w.Init(newStats(100, 10, 1000), 1, "t", 1, 1)
	got := w.SumPart(5, 10, 0, 0)
	if got <= 0 {
		t.Fatalf("SumPart = %v, want > 0", got)
	}
	if max := w.MaxPart(); got > max {
		t.Fatalf("SumPart = %v exceeds MaxPart = %v", got, max)
	}
}

func TestBM25SerialiseRoundTrip(t *testing.T) {
	w := &BM25{K1: 1.5, B: 0.6, K2: 3}
	data := w.Serialise()

	w2 := NewBM25()
	if err := w2.Unserialise(data); err != nil {
		t.Fatalf("Unserialise: %v", err)
	}
	if w2.K1 != 1.5 || w2.B != 0.6 || w2.K2 != 3 {
		t.Fatalf("round-tripped = %+v, want K1=1.5 B=0.6 K2=3", w2)
	}
}

func TestBM25UnserialiseShortBuffer(t *testing.T) {
	w := NewBM25()
	if err := w.Unserialise([]byte{1, 2, 3}); err == nil {
		t.Fatal("Unserialise with a short buffer should error")
	}
}

func TestBM25CloneIsIndependent(t *testing.T) {
	w := NewBM25()
	w.Init(newStats(100, 10, 1000), 1, "t", 1, 1)
	cp := w.Clone().(*BM25)
	cp.K1 = 99
	if w.K1 == 99 {
		t.Fatal("Clone shares state with the original")
	}
}

func TestBM25SumPartNeedsDocLength(t *testing.T) {
	w := &BM25{K1: 1.2, B: 0.75}
	if !w.SumPartNeedsDocLength() {
		t.Fatal("B != 0 should need doc length")
	}
	w0 := &BM25{K1: 1.2, B: 0}
	if w0.SumPartNeedsDocLength() {
		t.Fatal("B == 0 should not need doc length")
	}
}

func TestTFIDFScalesWithWDF(t *testing.T) {
	w := NewTFIDF()
	w.Init(newStats(100, 10, 0), 1, "t", 1, 1)
	low := w.SumPart(1, 0, 0, 0)
	high := w.SumPart(10, 0, 0, 0)
	if high <= low {
		t.Fatalf("SumPart should grow with wdf: low=%v high=%v", low, high)
	}
}

func TestTradIsBM25WithBOne(t *testing.T) {
	tr := NewTrad(1.5)
	if tr.K1 != 1.5 || tr.B != 1 || tr.K2 != 0 {
		t.Fatalf("Trad BM25 params = {K1:%v B:%v K2:%v}, want {1.5 1 0}", tr.K1, tr.B, tr.K2)
	}
	if tr.Name() != "trad" {
		t.Fatalf("Name() = %q, want trad", tr.Name())
	}
}

func TestBoolWeightIsConstantOne(t *testing.T) {
	b := NewBool()
	b.Init(newStats(10, 1, 100), 1, "t", 1, 1)
	if got := b.SumPart(1, 10, 0, 0); got != 1 {
		t.Fatalf("SumPart = %v, want 1", got)
	}
	if got := b.MaxPart(); got != 1 {
		t.Fatalf("MaxPart = %v, want 1", got)
	}
	if b.SumPartNeedsDocLength() {
		t.Fatal("Bool should not need doc length")
	}
}

func TestIdfIsZeroWhenTermFreqOrCollectionIsZero(t *testing.T) {
	w := NewBM25()
	w.Init(newStats(0, 0, 0), 1, "t", 1, 1)
	if math.Abs(w.MaxPart()) > 1e-9 {
		t.Fatalf("MaxPart with empty stats = %v, want ~0", w.MaxPart())
	}
}
