package query

import (
	"bytes"
	"encoding/gob"
	"testing"
)

func TestRegisterGobRoundTrips(t *testing.T) {
	RegisterGob()

	q := NewAnd(
		Leaf{Term: "foo", WQF: 2},
		NewOr(Leaf{Term: "bar"}, WildcardQ{Pattern: "baz", Combine: CombinerMax}),
	)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&q); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded Q
	if err := gob.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	mw, ok := decoded.(MultiWay)
	if !ok {
		t.Fatalf("decoded = %T, want MultiWay", decoded)
	}
	if mw.Op != OpAnd || len(mw.Children) != 2 {
		t.Fatalf("decoded MultiWay = %#v, want a 2-child AND", mw)
	}
	leaf, ok := mw.Children[0].(Leaf)
	if !ok || leaf.Term != "foo" || leaf.WQF != 2 {
		t.Fatalf("decoded first child = %#v, want Leaf{foo, wqf=2}", mw.Children[0])
	}
}

func TestRegisterGobIsIdempotent(t *testing.T) {
	// Calling RegisterGob repeatedly must not panic with "duplicate name
	// registered", since the sync.Once guard should make every call but
	// the first a no-op.
	RegisterGob()
	RegisterGob()
	RegisterGob()
}

func TestRegisterGobRoundTripsSentinels(t *testing.T) {
	RegisterGob()
	for _, q := range []Q{MatchAll, MatchNothing} {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(&q); err != nil {
			t.Fatalf("encode %v: %v", q, err)
		}
		var decoded Q
		if err := gob.NewDecoder(&buf).Decode(&decoded); err != nil {
			t.Fatalf("decode %v: %v", q, err)
		}
		if decoded != q {
			t.Fatalf("decoded %#v, want %#v", decoded, q)
		}
	}
}
