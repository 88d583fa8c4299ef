package query

import (
	"encoding/gob"
	"sync"
)

var registerOnce sync.Once

// RegisterGob registers every Q variant with encoding/gob so query trees
// can cross the wire protocol (§6.3), using the usual sync.Once-guarded
// gob.RegisterName calls.
func RegisterGob() {
	registerOnce.Do(func() {
		gob.RegisterName("qmatch/query.Leaf", Leaf{})
		gob.RegisterName("qmatch/query.ValueRange", ValueRange{})
		gob.RegisterName("qmatch/query.PostingSourceQ", PostingSourceQ{})
		gob.RegisterName("qmatch/query.ScaleWeightQ", ScaleWeightQ{})
		gob.RegisterName("qmatch/query.WildcardQ", WildcardQ{})
		gob.RegisterName("qmatch/query.MultiWay", MultiWay{})
		gob.RegisterName("qmatch/query.matchAll", matchAll{})
		gob.RegisterName("qmatch/query.matchNothing", matchNothing{})
	})
}
