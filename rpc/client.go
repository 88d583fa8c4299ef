package rpc

import (
	"context"
	"sort"
	"sync"
	"time"

	krpc "github.com/keegancsmith/rpc"

	"github.com/sourcegraph/qmatch"
	"github.com/sourcegraph/qmatch/qerror"
	"github.com/sourcegraph/qmatch/query"
)

// client dials a Handler over HTTP, redialing on generation mismatch in
// the usual client/getRPCClient pair shape.
type client struct {
	addr, path string

	mu  sync.Mutex
	cl  *krpc.Client
	gen int
}

func dial(addr, path string) *client {
	RegisterGob()
	return &client{addr: addr, path: path}
}

func (c *client) call(ctx context.Context, method string, args, reply interface{}) error {
	cl, gen, err := c.getClient(ctx, 0)
	if err == nil {
		err = cl.Call(ctx, method, args, reply)
		if err != krpc.ErrShutdown {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}

	cl, _, err = c.getClient(ctx, gen)
	if err != nil {
		return qerror.Wrap(qerror.Network, err, "dial")
	}
	return cl.Call(ctx, method, args, reply)
}

func (c *client) getClient(ctx context.Context, gen int) (*krpc.Client, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return c.cl, c.gen, nil
	}
	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	cl, err := krpc.DialHTTPPathTimeout("tcp", c.addr, c.path, timeout)
	if err != nil {
		return nil, c.gen, err
	}
	c.cl = cl
	c.gen++
	return c.cl, c.gen, nil
}

func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cl == nil {
		return nil
	}
	return c.cl.Close()
}

// RemoteSubMatch is the remote variant of qmatch.SubMatch (§4.5):
// PrepareMatch makes a Handshake call (a protocol version mismatch fails
// with qerror.Network) followed by a Prepare call; StartMatch only
// records the stats and options, which GetPostListAndTermInfo sends to
// the Handler-backed shard in one Search call, replaying the shard's
// already-ranked MSet as a PostList rather than shipping a live iterator.
type RemoteSubMatch struct {
	c *client

	mu           sync.Mutex
	last         *qmatch.MSet
	lastDB       *remoteDatabase
	pendingStats *qmatch.Stats
	pendingOpts  qmatch.MatchOptions
}

// NewRemoteSubMatch dials addr/path (an http.Handler returned by Handler
// mounted there) and returns a SubMatch talking to it.
func NewRemoteSubMatch(addr, path string) *RemoteSubMatch {
	c := dial(addr, path)
	return &RemoteSubMatch{c: c, lastDB: &remoteDatabase{c: c}}
}

func (r *RemoteSubMatch) PrepareMatch(ctx context.Context, q query.Q, nowait bool, shared *qmatch.Stats) (bool, error) {
	var hs HandshakeReply
	if err := r.c.call(ctx, "Service.Handshake", &HandshakeArgs{}, &hs); err != nil {
		return false, qerror.Wrap(qerror.Network, err, "handshake")
	}
	if hs.Version != ProtocolVersion {
		return false, qerror.New(qerror.Network, "handshake: protocol version mismatch")
	}
	var reply PrepareReply
	if err := r.c.call(ctx, "Service.Prepare", &PrepareArgs{Query: q, Nowait: nowait}, &reply); err != nil {
		return false, qerror.Wrap(qerror.Network, err, "prepare")
	}
	if !reply.Ready {
		return false, nil
	}
	local := qmatch.NewStats()
	local.CollectionSize = reply.CollectionSize
	local.TotalLength = reply.TotalLength
	for term, ti := range reply.TermFreq {
		local.TermFreq[term] = ti
	}
	shared.Combine(local)
	return true, nil
}

func (r *RemoteSubMatch) StartMatch(ctx context.Context, first, maxItems, checkAtLeast int, total *qmatch.Stats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingStats = total
	r.pendingOpts = qmatch.MatchOptions{First: first, MaxItems: maxItems, CheckAtLeast: checkAtLeast}
	return nil
}

func (r *RemoteSubMatch) GetPostListAndTermInfo(ctx context.Context, q query.Q, termInfo map[string]qmatch.TermWeightInfo) (qmatch.PostList, error) {
	r.mu.Lock()
	stats, opts := r.pendingStats, r.pendingOpts
	r.mu.Unlock()

	args := &SearchArgs{Query: q, Stats: stats, Options: toWireOptions(&opts)}
	var reply SearchReply
	if err := r.c.call(ctx, "Service.Search", args, &reply); err != nil {
		return nil, qerror.Wrap(qerror.Network, err, "search")
	}

	r.mu.Lock()
	r.last = reply.MSet
	r.mu.Unlock()

	if termInfo != nil {
		for term, ti := range reply.TermInfo {
			termInfo[term] = ti
		}
	}

	items := append([]qmatch.MSetItem(nil), reply.MSet.Items...)
	sortByDocID(items)
	return qmatch.NewReplayPostList(items), nil
}

func (r *RemoteSubMatch) Database() qmatch.Database { return r.lastDB }

// ReplayMSet implements the replayMSetSource interface multimatch uses
// to short-circuit a single-remote-shard match (§4.6): the MSet the
// server already ranked is returned directly with no further local
// merge work.
func (r *RemoteSubMatch) ReplayMSet() *qmatch.MSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func sortByDocID(items []qmatch.MSetItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].DocID < items[j].DocID })
}

// remoteDatabase is the narrow Database stub a RemoteSubMatch exposes:
// only CollectDocument genuinely crosses the wire, since replay postlists
// carry their weight precomputed and never need DocLength for GetWeight.
// Only the document's length comes back: values are not transferred, so
// Value on a remote document always reports no value, and deciders,
// spies, collapsing and sort-by-value see no values for it.
type remoteDatabase struct {
	c *client
}

func (d *remoteDatabase) DocCount() int64                      { return 0 }
func (d *remoteDatabase) LastDocID() qmatch.DocID               { return 0 }
func (d *remoteDatabase) AvLength() float64                     { return 0 }
func (d *remoteDatabase) DocLength(did qmatch.DocID) (int64, error) { return 0, nil }
func (d *remoteDatabase) TotalLength() int64                    { return 0 }
func (d *remoteDatabase) HasPositions() bool                    { return false }
func (d *remoteDatabase) TermExists(term string) bool           { return false }
func (d *remoteDatabase) TermFreq(term string) int64            { return 0 }
func (d *remoteDatabase) CollectionFreq(term string) int64      { return 0 }

func (d *remoteDatabase) OpenPostList(ctx context.Context, term string, hint qmatch.LeafPostList) (qmatch.LeafPostList, error) {
	return nil, qerror.New(qerror.Unimplemented, "remoteDatabase: no local postlists")
}
func (d *remoteDatabase) OpenPositionList(ctx context.Context, did qmatch.DocID, term string) (qmatch.PositionList, error) {
	return nil, nil
}
func (d *remoteDatabase) OpenDocument(ctx context.Context, did qmatch.DocID, lazy bool) (qmatch.Document, error) {
	return d.CollectDocument(ctx, did)
}
func (d *remoteDatabase) ValueLowerBound(slot int) string { return "" }
func (d *remoteDatabase) ValueUpperBound(slot int) string { return "" }
func (d *remoteDatabase) ValueFreq(slot int) int64        { return 0 }
func (d *remoteDatabase) OpenValueList(ctx context.Context, slot int) (qmatch.ValueList, error) {
	return nil, qerror.New(qerror.Unimplemented, "remoteDatabase: no local value lists")
}
func (d *remoteDatabase) RequestDocument(ctx context.Context, did qmatch.DocID) {}
func (d *remoteDatabase) CollectDocument(ctx context.Context, did qmatch.DocID) (qmatch.Document, error) {
	var reply DocumentReply
	if err := d.c.call(ctx, "Service.Document", &DocumentArgs{DocID: did}, &reply); err != nil {
		return nil, qerror.Wrap(qerror.Network, err, "document")
	}
	return &remoteDocument{reply: reply}, nil
}

type remoteDocument struct {
	reply DocumentReply
}

func (d *remoteDocument) Value(slot int) (string, bool) {
	v, ok := d.reply.Values[slot]
	return v, ok
}
func (d *remoteDocument) Length() int64 { return d.reply.Length }

