// Package intake drives a fetched clone to disk: it reconciles the
// advertised refs and writes every received object as a loose object
// while relaying the remote's progress and error text.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/odvcencio/gitsink/pkg/object"
	"github.com/odvcencio/gitsink/pkg/repo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Sequence names used in Result.States.
const (
	SeqRefs     = "refs"
	SeqLines    = "lines"
	SeqProgress = "progress"
	SeqErrors   = "errors"
	SeqObjects  = "objects"
)

// Source is what a fetch hands to the pipeline. Nil streams are treated
// as empty.
type Source interface {
	Refs() repo.Advertisement
	Lines() Stream[string]
	Progress() Stream[string]
	Errors() Stream[string]
	Objects() Stream[object.GitObject]
}

// SymrefSource is implemented by sources that know which ref each marker
// such as HEAD points at.
type SymrefSource interface {
	Symrefs() repo.Symrefs
}

// Pipeline writes a Source into a repository.
type Pipeline struct {
	Repo   *repo.Repo
	Logger *zap.Logger
	// Stdout receives remote progress text and the receiving-objects
	// meter; Stderr receives remote error text.
	Stdout io.Writer
	Stderr io.Writer
	// Workers bounds concurrent object writes. Values below 1 mean 1.
	Workers int
	// OnParsed, if set, receives every object decoded by the object
	// codec after it has been written. It is called from the write
	// workers, so up to Workers calls may run concurrently.
	OnParsed func(object.Parsed) error
}

// Result summarizes a completed or failed run.
type Result struct {
	Objects int
	Total   int
	Refs    *repo.RefPlan
	States  map[string]State
}

// Run drives all sequences of src concurrently until each completes. The
// first failure cancels the others and is returned; partial on-disk state
// is left in place.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Result, error) {
	if p.Repo == nil {
		return nil, errors.New("intake: repository is required")
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var outMu sync.Mutex
	stdout := lockedWriter{mu: &outMu, w: orDiscard(p.Stdout)}
	stderr := lockedWriter{mu: &outMu, w: orDiscard(p.Stderr)}

	states := newStateTracker(SeqRefs, SeqLines, SeqProgress, SeqErrors, SeqObjects)
	res := &Result{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		states.set(SeqRefs, Active)
		var hints repo.Symrefs
		if ss, ok := src.(SymrefSource); ok {
			hints = ss.Symrefs()
		}
		plan, err := p.Repo.Reconcile(src.Refs(), hints)
		if err != nil {
			states.set(SeqRefs, Failed)
			return fmt.Errorf("reconcile refs: %w", err)
		}
		res.Refs = plan
		states.set(SeqRefs, Completed)
		return nil
	})
	g.Go(func() error {
		return drain(gctx, SeqLines, src.Lines(), states, func(line string) error {
			logger.Debug("remote", zap.String("line", line))
			return nil
		})
	})
	g.Go(func() error {
		return drain(gctx, SeqProgress, src.Progress(), states, func(text string) error {
			_, err := io.WriteString(stdout, text)
			return err
		})
	})
	g.Go(func() error {
		return drain(gctx, SeqErrors, src.Errors(), states, func(text string) error {
			logger.Warn("remote error", zap.String("message", text))
			_, err := io.WriteString(stderr, text)
			return err
		})
	})
	g.Go(func() error {
		n, total, err := p.receive(gctx, src.Objects(), states, stdout, logger)
		res.Objects, res.Total = n, total
		return err
	})

	err := g.Wait()
	res.States = states.snapshot()
	if err != nil {
		return res, err
	}
	logger.Info("intake complete",
		zap.Int("objects", res.Objects),
		zap.Int("refs", len(res.Refs.Writes)),
	)
	return res, nil
}

// receive writes each object through a bounded pool. Writes may complete
// out of order; the meter follows delivery order.
func (p *Pipeline) receive(ctx context.Context, objects Stream[object.GitObject], states *stateTracker, stdout io.Writer, logger *zap.Logger) (int, int, error) {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	writers, wctx := errgroup.WithContext(ctx)
	writers.SetLimit(workers)

	var counter Counter
	received := 0
	// A failed write cancels wctx, which also unblocks a stalled Next.
	err := drain(wctx, SeqObjects, objects, states, func(obj object.GitObject) error {
		n, total, err := counter.Observe(obj.Index)
		if err != nil {
			return err
		}
		received++
		if _, err := io.WriteString(stdout, receivingLine(n, total)); err != nil {
			return err
		}
		writers.Go(func() error {
			return p.store(obj)
		})
		return nil
	})
	if werr := writers.Wait(); werr != nil {
		states.set(SeqObjects, Failed)
		logger.Error("object write failed", zap.Error(werr))
		return received, counter.Total(), werr
	}
	if err != nil {
		return received, counter.Total(), err
	}
	if counter.Total() > 0 {
		if _, err := io.WriteString(stdout, receivingDone(counter.Total())); err != nil {
			return received, counter.Total(), err
		}
	}
	return received, counter.Total(), nil
}

func (p *Pipeline) store(obj object.GitObject) error {
	if err := p.Repo.Store.Write(obj.Hash, obj.Type, obj.Data); err != nil {
		return err
	}
	if p.OnParsed == nil {
		return nil
	}
	parsed, err := object.Parse(obj)
	if err != nil {
		return err
	}
	return p.OnParsed(parsed)
}

// drain pulls s until it ends, handing each item to fn. A nil stream
// completes immediately.
func drain[T any](ctx context.Context, name string, s Stream[T], states *stateTracker, fn func(T) error) error {
	states.set(name, Active)
	if s == nil {
		states.set(name, Completed)
		return nil
	}
	for {
		item, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			states.set(name, Completed)
			return nil
		}
		if err != nil {
			states.set(name, Failed)
			return fmt.Errorf("%s stream: %w", name, err)
		}
		if err := fn(item); err != nil {
			states.set(name, Failed)
			return fmt.Errorf("%s stream: %w", name, err)
		}
	}
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
