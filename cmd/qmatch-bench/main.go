// Command qmatch-bench loads a small in-memory fixture, compiles a fixed
// query tree literal against it (building a query from free text is out
// of scope; see SPEC_FULL.md's Non-goals), runs a single-shard
// MultiMatch, and prints the resulting MSet. Grounded on
// cmd/zoekt-test's load/search/print shape and cmd/flags.go's flag
// handling.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/peterbourgon/ff/v3"

	"github.com/sourcegraph/qmatch"
	"github.com/sourcegraph/qmatch/memdb"
	"github.com/sourcegraph/qmatch/multimatch"
	"github.com/sourcegraph/qmatch/qlog"
	"github.com/sourcegraph/qmatch/query"
	"github.com/sourcegraph/qmatch/weight"
)

func main() {
	fs := flag.NewFlagSet("qmatch-bench", flag.ExitOnError)
	var (
		maxItems = fs.Int("max-items", 10, "number of results to print")
		scheme   = fs.String("weight", "bm25", "weighting scheme: bm25, tfidf, trad, bool")
	)
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("QMATCH_BENCH")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	qlog.Init("qmatch-bench")

	db := fixtureDB()
	var w qmatch.Weight
	switch *scheme {
	case "bm25":
		w = weight.NewBM25()
	case "tfidf":
		w = weight.NewTFIDF()
	case "trad":
		w = weight.NewTrad(1.0)
	case "bool":
		w = weight.NewBool()
	default:
		fmt.Fprintf(os.Stderr, "unknown weighting scheme %q\n", *scheme)
		os.Exit(2)
	}

	q := query.NewOr(
		query.Leaf{Term: "roaring", WQF: 1},
		query.Leaf{Term: "bitmap", WQF: 1},
	)

	mm := &multimatch.MultiMatch{
		Subs:  []qmatch.SubMatch{qmatch.NewLocalSubMatch(db, w)},
		Query: q,
		Options: qmatch.MatchOptions{
			MaxItems:    *maxItems,
			CollapseKey: qmatch.NoCollapse,
		},
	}

	ms, err := mm.Run(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "match failed:", err)
		os.Exit(1)
	}

	fmt.Printf("matches: lower=%d estimated=%d upper=%d max_possible=%.4f\n",
		ms.MatchesLowerBound, ms.MatchesEstimated, ms.MatchesUpperBound, ms.MaxPossible)
	for i, item := range ms.Items {
		doc, err := ms.GetDoc(context.Background(), db, i)
		title := "?"
		if err == nil {
			if v, ok := doc.Value(0); ok {
				title = v
			}
		}
		fmt.Printf("%2d. doc=%d weight=%.4f %s\n", i+ms.First, item.DocID, item.Weight, title)
	}
}

// fixtureDB builds a tiny document set so the demo has something to
// search without depending on any external corpus.
func fixtureDB() *memdb.DB {
	b := memdb.NewBuilder()
	docs := []struct {
		title string
		text  []string
	}{
		{"RoaringBitmap overview", []string{"roaring", "bitmap", "compressed", "index", "fast"}},
		{"Full-text search basics", []string{"search", "index", "term", "weight", "rank"}},
		{"Probabilistic ranking", []string{"bm25", "weight", "rank", "probabilistic", "term"}},
		{"Bitmap compression survey", []string{"bitmap", "compressed", "roaring", "run-length"}},
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
