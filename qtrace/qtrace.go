// Package qtrace provides lightweight per-match tracing: a
// golang.org/x/net/trace event log bridged to an OpenTracing span for a
// single logical operation.
package qtrace

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/net/trace"
)

// Trace is a single logical operation's event log plus its OpenTracing
// span, pairing golang.org/x/net/trace with an opentracing.Span for the
// same operation.
type Trace struct {
	family string
	tr     trace.Trace
	span   opentracing.Span
}

// New starts a Trace for family/title, in the usual
// trace.New(family, title) call convention.
func New(ctx context.Context, family, title string) (context.Context, *Trace) {
	span, ctx := opentracing.StartSpanFromContext(ctx, family)
	return ctx, &Trace{
		family: family,
		tr:     trace.New(family, title),
		span:   span,
	}
}

// LazyPrintf records a formatted breadcrumb on the event log, mirroring
// trace.Trace.LazyPrintf, and logs the unformatted format string on the
// span.
func (t *Trace) LazyPrintf(format string, args ...interface{}) {
	if t == nil {
		return
	}
	t.tr.LazyPrintf(format, args...)
	t.span.LogKV("event", format)
}

// SetError marks the trace as having failed.
func (t *Trace) SetError() {
	if t == nil {
		return
	}
	t.tr.SetError()
	t.span.SetTag("error", true)
}

// Finish closes both the event log and the span.
func (t *Trace) Finish() {
	if t == nil {
		return
	}
	t.tr.Finish()
	t.span.Finish()
}
