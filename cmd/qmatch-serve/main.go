// Command qmatch-serve wraps a memdb fixture behind qmatch/rpc.Handler,
// exposing the wire protocol over HTTP. Grounded on
// cmd/zoekt-webserver's flag handling and rpc.Server's HTTP mounting.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/peterbourgon/ff/v3"

	"github.com/sourcegraph/qmatch/memdb"
	"github.com/sourcegraph/qmatch/qlog"
	"github.com/sourcegraph/qmatch/rpc"
	"github.com/sourcegraph/qmatch/weight"
)

func main() {
	fs := flag.NewFlagSet("qmatch-serve", flag.ExitOnError)
	var (
		listen = fs.String("listen", ":6070", "address to listen on")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("QMATCH_SERVE")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	qlog.Init("qmatch-serve")
	log := qlog.Scope("qmatch-serve")

	db := loadFixture()
	handler := rpc.Handler(db, weight.NewBM25())

	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultPath, handler)

	log.Sugar().Infow("listening", "addr", *listen, "path", rpc.DefaultPath)
	if err := http.ListenAndServe(*listen, mux); err != nil {
		log.Sugar().Fatalw("serve failed", "error", err)
	}
}

func loadFixture() *memdb.DB {
	b := memdb.NewBuilder()
	docs := []struct {
		title string
		text  []string
	}{
		{"RoaringBitmap overview", []string{"roaring", "bitmap", "compressed", "index", "fast"}},
		{"Full-text search basics", []string{"search", "index", "term", "weight", "rank"}},
		{"Probabilistic ranking", []string{"bm25", "weight", "rank", "probabilistic", "term"}},
	}
	for _, d := range docs {
		terms := make(map[string][]int64)
		for i, t := range d.text {
			terms[t] = append(terms[t], int64(i))
		}
		b.AddDocument(terms, map[int]string{0: d.title})
	}
	return b.Build()
}
