package procreg

import (
	"context"
	"sync"
	"time"
)

// Dispatch gathers the current entries under key and invokes fn once per
// non-empty partition result: once at most in unique mode, up to one call
// per partition in duplicate mode. With WithParallel the per-partition
// calls run concurrently; either way Dispatch is a synchronous barrier and
// returns only after every invoked callback has completed.
//
// The registry never messages the registered owners; delivering to them
// (or doing anything else with the entries) is entirely fn's business:
//
//	err := r.Dispatch(ctx, "topic", func(entries []procreg.Entry) {
//	    for _, e := range entries {
//	        inbox(e.Owner) <- msg
//	    }
//	}, procreg.WithParallel())
//
// Partition results arrive in implementation-defined order.
func (r *Registry) Dispatch(ctx context.Context, key any, fn func([]Entry), opts ...DispatchOption) error {
	if fn == nil {
		return &OptionError{Option: "fn", Err: errNilCallback}
	}
	if r.stopped.Load() {
		return ErrRegistryStopped
	}

	var cfg dispatchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := r.spans.StartDispatchSpan(ctx, r.name, key, cfg.parallel)
	defer r.spans.EndSpanWithError(span, nil)
	start := time.Now()

	batches := make([][]Entry, 0, 1)
	for _, p := range r.partsFor(key) {
		if entries := p.lookup(key); len(entries) > 0 {
			batches = append(batches, entries)
		}
	}

	if cfg.parallel && len(batches) > 1 {
		var wg sync.WaitGroup
		for _, batch := range batches {
			wg.Add(1)
			go func(entries []Entry) {
				defer wg.Done()
				fn(entries)
			}(batch)
		}
		wg.Wait()
	} else {
		for _, batch := range batches {
			fn(batch)
		}
	}

	r.metrics.RecordDispatch(ctx, r.name, len(batches), time.Since(start))
	return nil
}
