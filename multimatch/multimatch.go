// Package multimatch implements the top-level orchestrator (§4.6): stats
// preparation, postlist assembly across shards, the top-k selection
// loop, bound bookkeeping, percent scaling, and sorting. Grounded on the
// teacher's shards/shards.go streamSearch (errgroup/semaphore fan-out,
// metrics, cancellation) and on original_source's multimatch.cc (the
// exact loop structure: prepare_sub_matches wave, getorrecalc_maxweight,
// collapse_tab bookkeeping, percent_cutoff_factor epsilon).
package multimatch

import (
	"context"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/sourcegraph/qmatch"
	"github.com/sourcegraph/qmatch/qlog"
	"github.com/sourcegraph/qmatch/qtrace"
	"github.com/sourcegraph/qmatch/query"
)

// percentEpsilon accounts for excess floating-point precision on
// platforms with 80-bit registers, per §4.6/§9.
const percentEpsilon = 1e-9

var (
	metricShardsPrepared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qmatch_shards_prepared_total",
		Help: "Number of shards that completed stats preparation.",
	})
	metricShardsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qmatch_shards_failed_total",
		Help: "Number of shards dropped due to an unhandled per-shard error.",
	})
	metricMatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qmatch_match_duration_seconds",
		Help:    "Wall-clock duration of a MultiMatch.Run call.",
		Buckets: prometheus.DefBuckets,
	})
)

// ErrorHandler is called when a shard's SubMatch fails. Returning true
// means "continue the match over the remaining shards, dropping this
// one"; returning false means "abort the whole match with this error",
// per §7's propagation policy.
type ErrorHandler func(shardIndex int, err error) (continueMatch bool)

// MultiMatch is the top-level orchestrator. One MultiMatch instance
// serves exactly one match: concurrent matches use independent
// MultiMatch instances over independent Stats, per §5's no-locking
// contract.
type MultiMatch struct {
	Subs         []qmatch.SubMatch
	Query        query.Q
	Weight       qmatch.Weight
	Options      qmatch.MatchOptions
	ErrorHandler ErrorHandler

	// MaxConcurrentPrepare caps how many shards run PrepareMatch
	// concurrently in each pass, following shards/shards.go's loader
	// semaphore.
	MaxConcurrentPrepare int64

	sharedStats *qmatch.Stats
}

// Run executes the full pipeline: stats preparation, postlist assembly,
// the top-k loop, and MSet assembly.
func (mm *MultiMatch) Run(ctx context.Context) (*qmatch.MSet, error) {
	start := timeNow()
	ctx, tr := qtrace.New(ctx, "qmatch.MultiMatch", "Run")
	defer tr.Finish()
	defer func() { metricMatchDuration.Observe(timeNow().Sub(start).Seconds()) }()

	mm.Options.SetDefaults()

	live, err := mm.prepareStats(ctx, tr)
	if err != nil {
		tr.SetError()
		return nil, err
	}
	if len(live) == 0 {
		return emptyMSet(&mm.Options), nil
	}

	// Short-circuit for a single remote shard carrying its own MSet
	// replay postlist (§4.6): detect via the replayMSetSource interface
	// rather than a concrete remote type, so the orchestrator stays
	// decoupled from the transport package.
	if len(live) == 1 {
		if rs, ok := live[0].(replayMSetSource); ok {
			if ms := rs.ReplayMSet(); ms != nil {
				return ms, nil
			}
		}
	}

	stats := mm.sharedStats
	termInfo := make(map[string]qmatch.TermWeightInfo)
	postlists := make([]qmatch.PostList, len(live))
	for i, sub := range live {
		if err := sub.StartMatch(ctx, mm.Options.First, mm.Options.MaxItems, mm.Options.CheckAtLeast, stats); err != nil {
			return nil, errors.Wrapf(err, "shard %d: start match", i)
		}
		ti := termInfo
		if i > 0 {
			ti = nil
		}
		pl, err := sub.GetPostListAndTermInfo(ctx, mm.Query, ti)
		if err != nil {
			return nil, errors.Wrapf(err, "shard %d: build postlist", i)
		}
		postlists[i] = pl
	}

	// Short-circuit for a single remote shard (§4.6): once its postlist
	// has been fetched, the MSet the remote side already ranked is
	// returned as is. Detected via the replayMSetSource interface rather
	// than a concrete remote type, so the orchestrator stays decoupled
	// from the transport package.
	if len(live) == 1 {
		if rs, ok := live[0].(replayMSetSource); ok {
			if ms := rs.ReplayMSet(); ms != nil {
				return ms, nil
			}
		}
	}

	tree := newPostListTree(live, postlists)
	ms, err := mm.topKLoop(ctx, tree, termInfo)
	if err != nil {
		tr.SetError()
		return nil, err
	}
	return ms, nil
}

// RunSingleShard drives one already-prepared SubMatch through
// StartMatch, postlist assembly, and the top-k loop, skipping the
// multi-shard stats-preparation wave. It is exported for the rpc
// package's server side: a remote shard receives its combined Stats
// ready-made from the caller and only needs to execute its own local
// match, not re-derive the wave.
func RunSingleShard(ctx context.Context, sub qmatch.SubMatch, stats *qmatch.Stats, q query.Q, opts qmatch.MatchOptions) (*qmatch.MSet, map[string]qmatch.TermWeightInfo, error) {
	opts.SetDefaults()
	if err := sub.StartMatch(ctx, opts.First, opts.MaxItems, opts.CheckAtLeast, stats); err != nil {
		return nil, nil, errors.Wrap(err, "start match")
	}
	termInfo := make(map[string]qmatch.TermWeightInfo)
	pl, err := sub.GetPostListAndTermInfo(ctx, q, termInfo)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build postlist")
	}
	mm := &MultiMatch{Options: opts}
	tree := newPostListTree([]qmatch.SubMatch{sub}, []qmatch.PostList{pl})
	ms, err := mm.topKLoop(ctx, tree, termInfo)
	if err != nil {
		return nil, nil, err
	}
	return ms, termInfo, nil
}

// replayMSetSource is implemented by remote SubMatch variants that can
// short-circuit the whole match by returning an already-assembled MSet
// (§4.6's "short-circuit for single remote shard").
type replayMSetSource interface {
	ReplayMSet() *qmatch.MSet
}

var timeNow = time.Now

func emptyMSet(opts *qmatch.MatchOptions) *qmatch.MSet {
	return &qmatch.MSet{First: opts.First}
}

// prepareStats runs the non-blocking wave described in §4.6/§5: issue
// PrepareMatch(nowait=true) to every sub, repeat on those that returned
// false, switching to blocking on the second pass. A per-shard error
// with an installed handler drops that shard and continues.
func (mm *MultiMatch) prepareStats(ctx context.Context, tr *qtrace.Trace) ([]qmatch.SubMatch, error) {
	mm.sharedStats = qmatch.NewStats()
	pending := append([]qmatch.SubMatch(nil), mm.Subs...)
	pendingIdx := make([]int, len(pending)) // index of pending[i] in mm.Subs
	for i := range pendingIdx {
		pendingIdx[i] = i
	}
	live := make([]qmatch.SubMatch, 0, len(mm.Subs))

	for pass := 0; len(pending) > 0; pass++ {
		nowait := pass == 0
		g, gctx := errgroup.WithContext(ctx)
		sem := newSemaphore(mm.concurrencyLimit())
		ready := make([]bool, len(pending))
		errs := make([]error, len(pending))

		for i, sub := range pending {
			i, sub := i, sub
			g.Go(func() error {
				if err := sem.Acquire(gctx); err != nil {
					return err
				}
				defer sem.Release()
				ok, err := sub.PrepareMatch(gctx, mm.Query, nowait, mm.sharedStats)
				ready[i] = ok
				errs[i] = err
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var stillPending []qmatch.SubMatch
		var stillPendingIdx []int
		for i, sub := range pending {
			switch {
			case errs[i] != nil:
				metricShardsFailed.Inc()
				if mm.ErrorHandler != nil && mm.ErrorHandler(pendingIdx[i], errs[i]) {
					qlog.Scope("multimatch").Sugar().Warnw("dropping shard after prepare error",
						"error", errs[i])
					continue
				}
				return nil, errors.Wrapf(errs[i], "shard %d: prepare", pendingIdx[i])
			case ready[i]:
				metricShardsPrepared.Inc()
				live = append(live, sub)
			default:
				stillPending = append(stillPending, sub)
				stillPendingIdx = append(stillPendingIdx, pendingIdx[i])
			}
		}
		pending = stillPending
		pendingIdx = stillPendingIdx
		tr.LazyPrintf("prepare pass %d: %s ready, %s pending", pass,
			humanize.Comma(int64(len(live))), humanize.Comma(int64(len(pending))))
	}
	return live, nil
}

func (mm *MultiMatch) concurrencyLimit() int64 {
	if mm.MaxConcurrentPrepare > 0 {
		return mm.MaxConcurrentPrepare
	}
	return 16
}
