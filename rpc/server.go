package rpc

import (
	"context"
	"net/http"

	krpc "github.com/keegancsmith/rpc"

	"github.com/sourcegraph/qmatch"
	"github.com/sourcegraph/qmatch/multimatch"
	"github.com/sourcegraph/qmatch/query"
)

// DefaultPath is the HTTP path a Handler is conventionally mounted at.
const DefaultPath = "/rpc"

// Service is the server-side receiver registered with keegancsmith/rpc.
// One Service wraps exactly one shard (Database+Weight pair).
type Service struct {
	db qmatch.Database
	w  qmatch.Weight
}

// Handler returns an http.Handler exposing db/w as a remote shard,
// grounded on rpc.Server's shape (RegisterGob, rpc.NewServer, Register).
func Handler(db qmatch.Database, w qmatch.Weight) http.Handler {
	RegisterGob()
	server := krpc.NewServer()
	if err := server.Register(&Service{db: db, w: w}); err != nil {
		panic("qmatch/rpc: unexpected error registering server: " + err.Error())
	}
	return server
}

func (s *Service) Handshake(ctx context.Context, args *HandshakeArgs, reply *HandshakeReply) error {
	reply.Version = ProtocolVersion
	reply.DocCount = s.db.DocCount()
	reply.AvLength = s.db.AvLength()
	return nil
}

func (s *Service) Prepare(ctx context.Context, args *PrepareArgs, reply *PrepareReply) error {
	reply.Ready = true
	reply.CollectionSize = s.db.DocCount()
	reply.TotalLength = s.db.TotalLength()

	reply.TermFreq = make(map[string]qmatch.TermInfo)
	query.VisitAtoms(args.Query, func(a query.Q) {
		leaf, ok := a.(query.Leaf)
		if !ok || leaf.Term == "" {
			return
		}
		if _, seen := reply.TermFreq[leaf.Term]; seen {
			return
		}
		reply.TermFreq[leaf.Term] = qmatch.TermInfo{
			TermFreq: s.db.TermFreq(leaf.Term),
			CollFreq: s.db.CollectionFreq(leaf.Term),
		}
	})
	return nil
}

// Search runs a single-shard match locally and returns the ranked MSet
// plus the query's term_info, which the caller replays as a PostList
// instead of receiving a live postlist handle (§4.5's remote contract:
// the wire never ships an iterator, only its already-ranked output).
func (s *Service) Search(ctx context.Context, args *SearchArgs, reply *SearchReply) error {
	sub := qmatch.NewLocalSubMatch(s.db, s.w)
	opts := args.Options.toMatchOptions()

	ms, termInfo, err := multimatch.RunSingleShard(ctx, sub, args.Stats, args.Query, opts)
	if err != nil {
		return err
	}
	reply.MSet = ms
	reply.TermInfo = termInfo
	return nil
}

func (s *Service) Document(ctx context.Context, args *DocumentArgs, reply *DocumentReply) error {
	doc, err := s.db.CollectDocument(ctx, args.DocID)
	if err != nil {
		return err
	}
	reply.Length = doc.Length()
	return nil
}

func (s *Service) Close(ctx context.Context, args *CloseArgs, reply *CloseReply) error {
	return nil
}
