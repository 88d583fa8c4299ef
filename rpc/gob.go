package rpc

import (
	"encoding/gob"
	"sync"

	"github.com/sourcegraph/qmatch/query"
)

var registerOnce sync.Once

// RegisterGob registers the query tree's concrete types (via
// query.RegisterGob) and wireOptions with encoding/gob; Stats and MSet
// only reference concrete structs and need no registration. Safe to call
// more than once.
func RegisterGob() {
	registerOnce.Do(func() {
		query.RegisterGob()
		gob.RegisterName("qmatch/rpc.wireOptions", wireOptions{})
	})
}
