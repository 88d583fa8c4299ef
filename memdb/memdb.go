// Package memdb is an in-memory reference Database implementation
// (qmatch.Database), grounded on indexdata.go's parallel-slice-per-docid
// layout but holding postings as term -> roaring bitmap + wdf map instead
// of an on-disk ngram index, since concrete on-disk formats are out of
// scope here. It exists to make the matching core exercisable by tests
// and by cmd/qmatch-bench; real backends are external collaborators.
package memdb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/sourcegraph/qmatch"
	"github.com/sourcegraph/qmatch/qerror"
)

func errDocNotFound(did qmatch.DocID) error {
	return qerror.New(qerror.DocNotFound, fmt.Sprintf("memdb: no such document %d", did))
}

type docRecord struct {
	length int64
	values map[int]string
}

type termPosting struct {
	bitmap *roaring.Bitmap
	wdf    map[qmatch.DocID]int64
	pos    map[qmatch.DocID][]int64
}

// DB is an in-memory qmatch.Database. The zero value is not usable; build
// one with NewBuilder.
type DB struct {
	docs        []docRecord // index 0 unused; docs[1] is doc 1
	postings    map[string]*termPosting
	totalLength int64

	valueBounds map[int]qmatch.ValueBound
	valueLists  map[int][]valuePair
}

type valuePair struct {
	did   qmatch.DocID
	value string
}

// Builder assembles a DB from documents added in any order; docids are
// assigned in insertion order starting at 1.
type Builder struct {
	db *DB
}

func NewBuilder() *Builder {
	return &Builder{db: &DB{
		docs:       []docRecord{{}}, // docs[0] unused
		postings:   make(map[string]*termPosting),
		valueLists: make(map[int][]valuePair),
	}}
}

// AddDocument registers a document and returns its assigned DocID. terms
// maps each term to its ascending within-document positions (len(positions)
// is the term's wdf in this document); values maps value slots to their
// stored string value.
func (b *Builder) AddDocument(terms map[string][]int64, values map[int]string) qmatch.DocID {
	did := qmatch.DocID(len(b.db.docs))
	var length int64
	for _, positions := range terms {
		for _, p := range positions {
			if p+1 > length {
				length = p + 1
			}
		}
	}
	b.db.docs = append(b.db.docs, docRecord{length: length, values: values})
	b.db.totalLength += length

	for term, positions := range terms {
		tp, ok := b.db.postings[term]
		if !ok {
			tp = &termPosting{
				bitmap: roaring.New(),
				wdf:    make(map[qmatch.DocID]int64),
				pos:    make(map[qmatch.DocID][]int64),
			}
			b.db.postings[term] = tp
		}
		tp.bitmap.Add(uint32(did))
		tp.wdf[did] = int64(len(positions))
		tp.pos[did] = append([]int64(nil), positions...)
	}
	for slot, v := range values {
		b.db.valueLists[slot] = append(b.db.valueLists[slot], valuePair{did: did, value: v})
	}
	return did
}

// Build finalises the DB: sorts value lists and computes per-slot bounds.
func (b *Builder) Build() *DB {
	db := b.db
	db.valueBounds = make(map[int]qmatch.ValueBound, len(db.valueLists))
	for slot, pairs := range db.valueLists {
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].did < pairs[j].did })
		lower, upper := pairs[0].value, pairs[0].value
		for _, p := range pairs {
			if p.value < lower {
				lower = p.value
			}
			if p.value > upper {
				upper = p.value
			}
		}
		db.valueBounds[slot] = qmatch.ValueBound{Lower: lower, Upper: upper, Freq: int64(len(pairs))}
	}
	return db
}

func (db *DB) DocCount() int64     { return int64(len(db.docs) - 1) }
func (db *DB) LastDocID() qmatch.DocID { return qmatch.DocID(len(db.docs) - 1) }
func (db *DB) AvLength() float64 {
	if db.DocCount() == 0 {
		return 0
	}
	return float64(db.totalLength) / float64(db.DocCount())
}
func (db *DB) TotalLength() int64 { return db.totalLength }
func (db *DB) HasPositions() bool { return true }

func (db *DB) DocLength(did qmatch.DocID) (int64, error) {
	if int(did) <= 0 || int(did) >= len(db.docs) {
		return 0, errDocNotFound(did)
	}
	return db.docs[did].length, nil
}

func (db *DB) TermExists(term string) bool {
	tp, ok := db.postings[term]
	return ok && !tp.bitmap.IsEmpty()
}

func (db *DB) TermFreq(term string) int64 {
	tp, ok := db.postings[term]
	if !ok {
		return 0
	}
	return int64(tp.bitmap.GetCardinality())
}

func (db *DB) CollectionFreq(term string) int64 {
	tp, ok := db.postings[term]
	if !ok {
		return 0
	}
	var sum int64
	for _, wdf := range tp.wdf {
		sum += wdf
	}
	return sum
}

func (db *DB) OpenPostList(ctx context.Context, term string, hint qmatch.LeafPostList) (qmatch.LeafPostList, error) {
	tp, ok := db.postings[term]
	if !ok {
		return &memLeafPostList{}, nil
	}
	return newMemLeafPostList(tp), nil
}

func (db *DB) OpenPositionList(ctx context.Context, did qmatch.DocID, term string) (qmatch.PositionList, error) {
	tp, ok := db.postings[term]
	if !ok {
		return nil, nil
	}
	positions, ok := tp.pos[did]
	if !ok {
		return nil, nil
	}
	return &memPositionList{positions: positions, idx: -1}, nil
}

func (db *DB) OpenDocument(ctx context.Context, did qmatch.DocID, lazy bool) (qmatch.Document, error) {
	return db.CollectDocument(ctx, did)
}

func (db *DB) ValueLowerBound(slot int) string { return db.valueBounds[slot].Lower }
func (db *DB) ValueUpperBound(slot int) string { return db.valueBounds[slot].Upper }
func (db *DB) ValueFreq(slot int) int64        { return db.valueBounds[slot].Freq }

func (db *DB) OpenValueList(ctx context.Context, slot int) (qmatch.ValueList, error) {
	return &memValueList{pairs: db.valueLists[slot], idx: -1}, nil
}

// RequestDocument is a no-op: memdb is single-process, so there is
// nothing to pipeline ahead of CollectDocument.
func (db *DB) RequestDocument(ctx context.Context, did qmatch.DocID) {}

func (db *DB) CollectDocument(ctx context.Context, did qmatch.DocID) (qmatch.Document, error) {
	if int(did) <= 0 || int(did) >= len(db.docs) {
		return nil, errDocNotFound(did)
	}
	rec := db.docs[did]
	return &memDocument{values: rec.values, length: rec.length}, nil
}

// ExpandPrefix implements qmatch.WildcardExpander with a plain prefix
// scan; editDistance > 0 additionally admits terms within that Levenshtein
// distance of prefix, since memdb has no trigram index to narrow the scan.
func (db *DB) ExpandPrefix(ctx context.Context, prefix string, editDistance int) ([]string, error) {
	var out []string
	for term := range db.postings {
		if strings.HasPrefix(term, prefix) {
			out = append(out, term)
			continue
		}
		if editDistance > 0 && levenshtein(prefix, term) <= editDistance {
			out = append(out, term)
		}
	}
	sort.Strings(out)
	return out, nil
}

func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}
