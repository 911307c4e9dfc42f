// Package walk implements parallel recursive directory traversal: N workers,
// each with a private deterministic filesystem Iterator and its own replica
// of the compiled match engine, assigned work strictly by visit_index mod N
// with no work stealing, flushing through a SlottedSink that preserves the
// exact order a single sequential walker would have produced.
package walk

import (
	"golang.org/x/sync/errgroup"
)

// VisitFunc processes one traversal entry. visitIndex is the entry's
// ordinal in the deterministic traversal, used both to decide whether this
// worker owns the entry and, via the returned output bytes, where in the
// Sink those bytes belong. matched reports whether the file produced any
// output, for exit-status aggregation.
type VisitFunc func(entry Entry, visitIndex int) (output []byte, matched bool, err error)

// Options configures a parallel traversal.
type Options struct {
	Root            string
	NumWorkers      int
	FollowSymlinks  bool
	MaxAllowedNodes int // ceiling per round; 0 selects a built-in default
}

const defaultCeiling = 4096

// Walker drives N workers over a deterministic Iterator sequence, each
// worker processing only the entries assigned to it.
type Walker struct {
	opts Options
	sink *SlottedSink
	fn   VisitFunc
}

// New builds a Walker writing through sink.
func New(opts Options, sink *SlottedSink, fn VisitFunc) *Walker {
	if opts.NumWorkers < 1 {
		opts.NumWorkers = 1
	}
	if opts.MaxAllowedNodes <= 0 {
		opts.MaxAllowedNodes = defaultCeiling
	}
	return &Walker{opts: opts, sink: sink, fn: fn}
}

// Result is the aggregated outcome of a full traversal: AnyMatch is the
// logical OR of every worker's "did I emit a line" flag, driving the
// matched/unmatched exit status; OK is the logical AND of every worker's
// "did I finish without error" flag.
type Result struct {
	AnyMatch bool
	OK       bool
	Errs     []error
}

// workerState is a worker's running totals, carried across rounds so a
// ceiling-bounded round never loses what a worker already found.
type workerState struct {
	visitIndex int
	anyMatch   bool
	ok         bool
	errs       []error
	exhausted  bool
}

// Run drives the traversal to completion: each worker owns a persistent
// Iterator (reused across rounds so position is preserved) and a
// persistent visitIndex counter (also carried across rounds, so the
// visit_index mod N assignment stays globally consistent). Every worker
// visits every node in the deterministic sequence but only calls fn for
// nodes it owns; the ceiling bounds how far any one round advances before
// the main thread flushes and starts the next round.
func (w *Walker) Run() Result {
	n := w.opts.NumWorkers
	iterators := make([]*Iterator, n)
	states := make([]workerState, n)
	for i := range iterators {
		iterators[i] = NewIterator(w.opts.Root, w.opts.FollowSymlinks)
		states[i].ok = true
	}

	ceiling := w.opts.MaxAllowedNodes

	for {
		var g errgroup.Group

		for k := 0; k < n; k++ {
			g.Go(func() error {
				it := iterators[k]
				st := &states[k]
				for st.visitIndex < ceiling {
					entry, ok, err := it.Next()
					if !ok {
						// A root that cannot be read ends every iterator with
						// the same error; the owner of its index records it.
						if err != nil && st.visitIndex%n == k {
							st.errs = append(st.errs, err)
							st.ok = false
						}
						st.exhausted = true
						break
					}
					visitIndex := st.visitIndex
					owned := visitIndex%n == k
					st.visitIndex++

					if err != nil {
						if owned {
							st.errs = append(st.errs, err)
							st.ok = false
							w.sink.MarkSkipped(visitIndex)
						}
						continue
					}
					if !owned {
						continue
					}
					if entry.IsDir {
						w.sink.MarkSkipped(visitIndex)
						continue
					}

					out, matched, verr := w.fn(entry, visitIndex)
					switch {
					case verr != nil:
						st.errs = append(st.errs, verr)
						st.ok = false
						w.sink.MarkSkipped(visitIndex)
					case len(out) > 0:
						w.sink.Write(visitIndex, out)
						st.anyMatch = st.anyMatch || matched
					default:
						w.sink.MarkSkipped(visitIndex)
						st.anyMatch = st.anyMatch || matched
					}
				}
				return nil
			})
		}
		_ = g.Wait()

		if _, err := w.sink.Flush(); err != nil {
			states[0].errs = append(states[0].errs, err)
			states[0].ok = false
		}

		allExhausted := true
		for i := range states {
			if !states[i].exhausted {
				allExhausted = false
			}
		}
		if allExhausted {
			break
		}
		ceiling += w.opts.MaxAllowedNodes
	}

	result := Result{OK: true}
	for _, st := range states {
		result.AnyMatch = result.AnyMatch || st.anyMatch
		result.OK = result.OK && st.ok
		result.Errs = append(result.Errs, st.errs...)
	}
	return result
}
