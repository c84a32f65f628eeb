// Package proc provides the process abstraction the registry tracks.
//
// The registry does not care how an owner runs; it only needs an identity
// and an exit signal. Anything implementing Process can own registry
// entries: a goroutine spawned through Spawn, a handle created with Self
// and closed explicitly, or an adapter over some other runtime.
package proc

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Process is the host-runtime capability the registry consumes: a stable
// identity plus an asynchronous exit signal. Done must be closed exactly
// once, when the process will never touch the registry again.
type Process interface {
	// ID returns a stable, unique identifier for this process.
	ID() string

	// Done returns a channel closed when the process has exited.
	Done() <-chan struct{}
}

// Proc is a goroutine-backed Process.
type Proc struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	// bound is true when a spawned goroutine owns the done channel.
	bound bool
}

// Spawn starts fn in its own goroutine and returns its process handle.
// The handle's Done channel closes when fn returns. The context passed to
// fn is cancelled by Kill.
func Spawn(fn func(ctx context.Context)) *Proc {
	p := newProc()
	p.bound = true
	go func() {
		defer p.close()
		fn(p.ctx)
	}()
	return p
}

// Self returns a process handle not bound to any goroutine. The caller
// owns its lifetime and must call Exit when done. Useful for registering
// the current goroutine, which Go cannot identify on its own.
func Self() *Proc {
	return newProc()
}

func newProc() *Proc {
	ctx, cancel := context.WithCancel(context.Background())
	return &Proc{
		id:     fmt.Sprintf("proc-%s", uuid.New().String()[:8]),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID implements Process.
func (p *Proc) ID() string { return p.id }

// Done implements Process.
func (p *Proc) Done() <-chan struct{} { return p.done }

// Kill cancels the process context. A spawned goroutine is expected to
// observe the cancellation and return, which closes Done; an unbound
// handle is closed immediately.
func (p *Proc) Kill() {
	p.cancel()
	if !p.bound {
		p.close()
	}
}

// Exit marks an unbound handle as exited. Idempotent. Calling Exit on a
// spawned process closes Done early; the goroutine keeps running with a
// cancelled context.
func (p *Proc) Exit() {
	p.cancel()
	p.close()
}

func (p *Proc) close() {
	p.once.Do(func() { close(p.done) })
}

// Watch invokes onExit in a new goroutine once p's Done channel closes.
// Delivery is asynchronous: there is a window between the process exiting
// and onExit running.
func Watch(p Process, onExit func(Process)) {
	go func() {
		<-p.Done()
		onExit(p)
	}()
}
