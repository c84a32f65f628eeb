package journal

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/procreg/pkg/procreg"
	"github.com/randalmurphal/procreg/pkg/procreg/observability"
)

// StoreListener adapts a Store into a registry listener: every register
// and unregister event is appended as a journal record. Appends run on a
// background goroutine behind a buffered queue, so a slow store never
// blocks registry operations; events arriving while the queue is full are
// dropped, preserving the registry's best-effort listener contract. Append
// failures and drops are logged when a logger is given.
type StoreListener struct {
	store  Store
	logger *slog.Logger
	queue  chan procreg.Event

	closed    atomic.Bool
	closeOnce sync.Once
	stop      chan struct{} // signals the writer to drain and exit
	done      chan struct{} // closed when the writer has drained
}

// Listener creates a StoreListener with the given queue capacity
// (<= 0 means 256). Call Close to drain and stop the writer.
//
//	store, _ := journal.NewSQLiteStore("./events.db")
//	jl := journal.Listener(store, logger, 0)
//	defer jl.Close()
//	r, _ := procreg.Start("jobs",
//	    procreg.WithKeys(procreg.KeysDuplicate),
//	    procreg.WithListeners(jl),
//	)
func Listener(store Store, logger *slog.Logger, buffer int) *StoreListener {
	if buffer <= 0 {
		buffer = 256
	}
	l := &StoreListener{
		store:  store,
		logger: logger,
		queue:  make(chan procreg.Event, buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.write()
	return l
}

// Notify implements procreg.Listener with a non-blocking enqueue.
// Events arriving after Close are dropped.
func (l *StoreListener) Notify(evt procreg.Event) {
	if l.closed.Load() {
		return
	}
	select {
	case l.queue <- evt:
	default:
		observability.LogListenerDrop(l.logger, evt.Key)
	}
}

// Close stops accepting events, waits for queued events to be written,
// and returns. It does not close the underlying Store. Idempotent.
func (l *StoreListener) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.stop)
	})
	<-l.done
}

func (l *StoreListener) write() {
	defer close(l.done)
	for {
		select {
		case evt := <-l.queue:
			l.append(evt)
		case <-l.stop:
			// Drain whatever was enqueued before Close.
			for {
				select {
				case evt := <-l.queue:
					l.append(evt)
				default:
					return
				}
			}
		}
	}
}

func (l *StoreListener) append(evt procreg.Event) {
	rec := Record{
		Registry:  evt.Registry,
		Kind:      evt.Kind.String(),
		Key:       fmt.Sprintf("%v", evt.Key),
		Partition: evt.PartitionRef.String(),
		Time:      evt.Time,
	}
	if evt.Kind == procreg.EventRegister {
		rec.Value = fmt.Sprintf("%v", evt.Value)
	}

	if err := l.store.Append(rec); err != nil && l.logger != nil {
		l.logger.Warn("journal append failed",
			slog.String("registry", evt.Registry),
			slog.String("error", err.Error()),
		)
	}
}
