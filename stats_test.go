package qmatch

import "testing"

func TestStatsAverageLength(t *testing.T) {
	s := NewStats()
	if got := s.AverageLength(); got != 0 {
		t.Fatalf("AverageLength on empty stats = %v, want 0", got)
	}
	s.CollectionSize = 4
	s.TotalLength = 40
	if got, want := s.AverageLength(), 10.0; got != want {
		t.Fatalf("AverageLength = %v, want %v", got, want)
	}
}

func TestStatsCombine(t *testing.T) {
	s := NewStats()
	s.Combine(&Stats{
		CollectionSize: 10,
		TotalLength:    100,
		TermFreq: map[string]TermInfo{
			"foo": {TermFreq: 3, CollFreq: 5},
		},
		RelTermFreq: map[string]int64{"foo": 1},
		ValueBounds: map[int]ValueBound{
			0: {Lower: "b", Upper: "m", Freq: 4},
		},
	})
	s.Combine(&Stats{
		CollectionSize: 5,
		TotalLength:    50,
		TermFreq: map[string]TermInfo{
			"foo": {TermFreq: 2, CollFreq: 2},
			"bar": {TermFreq: 1, CollFreq: 1},
		},
		RelTermFreq: map[string]int64{"foo": 2},
		ValueBounds: map[int]ValueBound{
			0: {Lower: "a", Upper: "z", Freq: 6},
		},
	})

	if s.CollectionSize != 15 {
		t.Errorf("CollectionSize = %d, want 15", s.CollectionSize)
	}
	if s.TotalLength != 150 {
		t.Errorf("TotalLength = %d, want 150", s.TotalLength)
	}
	if got := s.TermFreq["foo"]; got.TermFreq != 5 || got.CollFreq != 7 {
		t.Errorf("TermFreq[foo] = %+v, want {5 7}", got)
	}
	if got := s.TermFreq["bar"]; got.TermFreq != 1 || got.CollFreq != 1 {
		t.Errorf("TermFreq[bar] = %+v, want {1 1}", got)
	}
	if s.RelTermFreq["foo"] != 3 {
		t.Errorf("RelTermFreq[foo] = %d, want 3", s.RelTermFreq["foo"])
	}
	vb := s.ValueBounds[0]
	if vb.Lower != "a" || vb.Upper != "z" || vb.Freq != 10 {
		t.Errorf("ValueBounds[0] = %+v, want {a z 10}", vb)
	}

	// Combine with nil is a no-op.
	before := s.Clone()
	s.Combine(nil)
	after := s.Clone()
	if before.CollectionSize != after.CollectionSize || before.TotalLength != after.TotalLength {
		t.Errorf("Combine(nil) mutated stats")
	}
}

func TestStatsClone(t *testing.T) {
	s := NewStats()
	s.CollectionSize = 3
	s.TermFreq["x"] = TermInfo{TermFreq: 1, CollFreq: 2}
	s.ValueBounds[0] = ValueBound{Lower: "a", Upper: "b", Freq: 1}

	cp := s.Clone()
	cp.CollectionSize = 99
	cp.TermFreq["x"] = TermInfo{TermFreq: 100, CollFreq: 100}
	cp.ValueBounds[0] = ValueBound{Lower: "z", Upper: "z", Freq: 100}

	if s.CollectionSize != 3 {
		t.Errorf("mutating clone affected original CollectionSize: %d", s.CollectionSize)
	}
	if s.TermFreq["x"].TermFreq != 1 {
		t.Errorf("mutating clone affected original TermFreq: %+v", s.TermFreq["x"])
	}
	if s.ValueBounds[0].Lower != "a" {
		t.Errorf("mutating clone affected original ValueBounds: %+v", s.ValueBounds[0])
	}
}
