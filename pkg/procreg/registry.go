package procreg

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/procreg/pkg/procreg/match"
	"github.com/randalmurphal/procreg/pkg/procreg/observability"
	"github.com/randalmurphal/procreg/pkg/procreg/proc"
)

// Registry is a local, partitioned key-to-process registry. A handle owns
// its partitions, meta store, and lock table; there is no ambient global
// state, so independent registries never interact.
//
// Writes to one partition are totally ordered; different partitions
// proceed in parallel. Cross-partition reads (duplicate-mode Lookup,
// Select, Dispatch, Count) are unions of per-partition snapshots taken at
// slightly different instants; no cross-partition atomicity is provided.
// After an owner exits there is a bounded window before its entries are
// purged, so readers may observe entries of a dead owner.
type Registry struct {
	id   uuid.UUID
	name string
	mode Keys

	parts   []*partition
	tracker *tracker

	listeners []Listener
	meta      *MetaStore
	locks     *lockTable

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	stopped atomic.Bool
	stopCh  chan struct{}
}

// Start creates a registry. The key policy is required:
//
//	r, err := procreg.Start("sessions",
//	    procreg.WithKeys(procreg.KeysUnique),
//	    procreg.WithPartitions(4),
//	)
//
// A failed Start leaves nothing running.
func Start(name string, opts ...Option) (*Registry, error) {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if name == "" {
		return nil, &OptionError{Option: "name", Err: errors.New("must not be empty")}
	}
	if cfg.mode != KeysUnique && cfg.mode != KeysDuplicate {
		return nil, &OptionError{Option: "WithKeys", Err: errors.New("key policy is required")}
	}
	if cfg.partitions < 1 {
		return nil, &OptionError{Option: "WithPartitions", Err: errors.New("partition count must be at least 1")}
	}

	r := &Registry{
		id:        uuid.New(),
		name:      name,
		mode:      cfg.mode,
		parts:     make([]*partition, cfg.partitions),
		tracker:   newTracker(cfg.partitions),
		listeners: cfg.listeners,
		meta:      newMetaStore(cfg.meta),
		locks:     newLockTable(),
		logger:    observability.EnrichLogger(cfg.logger, name, cfg.partitions),
		metrics:   cfg.metrics,
		spans:     cfg.spans,
		stopCh:    make(chan struct{}),
	}
	for i := range r.parts {
		r.parts[i] = newPartition(i)
	}
	return r, nil
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Mode returns the key policy.
func (r *Registry) Mode() Keys { return r.mode }

// Partitions returns the partition count.
func (r *Registry) Partitions() int { return len(r.parts) }

// Stop shuts the registry down: watch goroutines exit, subsequent writes
// fail with ErrRegistryStopped, and reads return empty results. Idempotent.
func (r *Registry) Stop() {
	if !r.stopped.CompareAndSwap(false, true) {
		return
	}
	close(r.stopCh)
	observability.LogStop(r.logger, r.countAll())
}

// Registration is the result of a successful Register call.
type Registration struct {
	// Ref uniquely identifies this registration.
	Ref uuid.UUID
	// Key is the registered key.
	Key any
	// Owner is the registering process.
	Owner proc.Process

	registry  *Registry
	partition int
}

// Unregister removes the entries this registration's owner holds under its
// key. Convenience for Registry.Unregister(reg.Owner, reg.Key).
func (reg *Registration) Unregister() error {
	return reg.registry.Unregister(reg.Owner, reg.Key)
}

// Partition returns the index of the partition holding the entry.
func (reg *Registration) Partition() int {
	return reg.partition
}

// Register inserts an entry owned by owner. In unique mode a live entry
// for the key rejects the call with *AlreadyRegisteredError (a normal,
// recoverable outcome of name races); duplicate mode always appends, and
// the same owner may register the same key repeatedly with distinct
// values. The entry lives until explicitly unregistered or until the owner
// exits.
func (r *Registry) Register(owner proc.Process, key, value any) (*Registration, error) {
	if owner == nil {
		return nil, &OptionError{Option: "owner", Err: errors.New("must not be nil")}
	}
	if r.stopped.Load() {
		return nil, ErrRegistryStopped
	}

	idx := r.writePartition(key, owner)
	p := r.parts[idx]

	ref, conflict := p.register(r.mode, key, owner, value)
	if conflict != nil {
		observability.LogConflict(r.logger, key, owner.ID(), conflict.Owner.ID())
		r.metrics.RecordRegister(context.Background(), r.name, true)
		return nil, conflict
	}

	r.ensureWatch(owner)

	observability.LogRegister(r.logger, key, owner.ID(), idx)
	r.metrics.RecordRegister(context.Background(), r.name, false)
	r.notify(Event{
		Kind:         EventRegister,
		Registry:     r.name,
		Key:          key,
		PartitionRef: p.ref,
		Value:        value,
	})

	return &Registration{
		Ref:       ref,
		Key:       key,
		Owner:     owner,
		registry:  r,
		partition: idx,
	}, nil
}

// Unregister removes all entries matching (owner, key).
func (r *Registry) Unregister(owner proc.Process, key any) error {
	if r.stopped.Load() {
		return ErrRegistryStopped
	}

	p := r.parts[r.writePartition(key, owner)]
	removed := p.unregister(key, owner.ID())
	if len(removed) == 0 {
		return nil
	}

	observability.LogUnregister(r.logger, key, owner.ID(), len(removed))
	r.metrics.RecordUnregister(context.Background(), r.name, len(removed))
	for range removed {
		r.notify(Event{
			Kind:         EventUnregister,
			Registry:     r.name,
			Key:          key,
			PartitionRef: p.ref,
		})
	}
	return nil
}

// Lookup returns the live entries under key. The result may include
// entries whose owner already exited but whose purge has not run yet; that
// staleness window is part of the contract. In duplicate mode entries are
// concatenated across partitions in ascending partition order, which is
// implementation-defined and not to be relied on.
func (r *Registry) Lookup(key any) []Entry {
	if r.stopped.Load() {
		return nil
	}
	var out []Entry
	for _, p := range r.partsFor(key) {
		out = append(out, p.lookup(key)...)
	}
	return out
}

// Resolve returns the process owning key, for composing start-or-return-
// existing startup patterns externally. In duplicate mode it returns the
// first owner in partition order. ErrNotFound when no live entry exists.
func (r *Registry) Resolve(key any) (proc.Process, error) {
	entries := r.Lookup(key)
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries[0].Owner, nil
}

// Keys returns every key the owner has registered, one occurrence per
// entry.
func (r *Registry) Keys(owner proc.Process) []any {
	if r.stopped.Load() {
		return nil
	}
	var out []any
	for _, p := range r.parts {
		out = append(out, p.keysOf(owner.ID())...)
	}
	return out
}

// Values returns the values owner stored under key.
func (r *Registry) Values(key any, owner proc.Process) []any {
	if r.stopped.Load() {
		return nil
	}
	var out []any
	for _, p := range r.partsFor(key) {
		out = append(out, p.valuesOf(key, owner.ID())...)
	}
	return out
}

// UpdateValue replaces the value stored under (owner, key) in place,
// returning the new and old values. Unique mode only: calling it on a
// duplicate-mode registry is a programmer error and panics. An absent key
// returns ErrNotFound.
func (r *Registry) UpdateValue(owner proc.Process, key any, f func(any) any) (newV, oldV any, err error) {
	if r.mode != KeysUnique {
		panic("procreg: UpdateValue requires a unique-keys registry")
	}
	if r.stopped.Load() {
		return nil, nil, ErrRegistryStopped
	}
	p := r.parts[Route(key, len(r.parts))]
	return p.updateValue(key, owner.ID(), f)
}

// Count returns the number of live entries across all partitions.
func (r *Registry) Count() int {
	if r.stopped.Load() {
		return 0
	}
	return r.countAll()
}

// CountOwned returns the number of entries held by owner.
func (r *Registry) CountOwned(owner proc.Process) int {
	if r.stopped.Load() {
		return 0
	}
	n := 0
	for _, p := range r.parts {
		n += p.countOwned(owner.ID())
	}
	return n
}

// Match returns the entries under key whose value satisfies the pattern
// and all guards. The pattern compiles once and evaluates per candidate.
func (r *Registry) Match(key any, pattern match.Pattern, guards ...match.Guard) ([]Entry, error) {
	prog, err := match.Compile(pattern, guards...)
	if err != nil {
		return nil, err
	}
	if r.stopped.Load() {
		return nil, nil
	}
	var out []Entry
	for _, p := range r.partsFor(key) {
		out = append(out, p.matchKey(key, prog)...)
	}
	return out, nil
}

// CountMatch is Match returning only the cardinality.
func (r *Registry) CountMatch(key any, pattern match.Pattern, guards ...match.Guard) (int, error) {
	entries, err := r.Match(key, pattern, guards...)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Select matches every stored (key, owner, value) triple against the rule
// spec and returns the shaped results. Triples matching any rule
// contribute one result per matching rule. Results carry no cross-
// partition ordering guarantee.
func (r *Registry) Select(rules []match.Rule) ([]any, error) {
	var out []any
	err := r.selectEach(rules, func(shaped any) {
		out = append(out, shaped)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountSelect is Select returning only the cardinality; it does not
// materialize shaped results.
func (r *Registry) CountSelect(rules []match.Rule) (int, error) {
	n := 0
	err := r.selectEach(rules, func(any) { n++ })
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Registry) selectEach(rules []match.Rule, emit func(any)) error {
	progs, err := match.CompileRules(rules)
	if err != nil {
		return err
	}
	if r.stopped.Load() {
		return nil
	}

	_, span := r.spans.StartSelectSpan(context.Background(), r.name, len(rules))
	defer r.spans.EndSpanWithError(span, nil)

	for _, p := range r.parts {
		p.each(func(key any, s slot) {
			for _, prog := range progs {
				if shaped, ok := prog.Eval(key, s.owner.ID(), s.value); ok {
					emit(shaped)
				}
			}
		})
	}
	return nil
}

// PutMeta stores a meta value. Meta lives in a flat namespace independent
// of partitioning and process lifetime.
func (r *Registry) PutMeta(key, value any) error {
	if r.stopped.Load() {
		return ErrRegistryStopped
	}
	r.meta.Put(key, value)
	return nil
}

// Meta returns the meta value for key.
func (r *Registry) Meta(key any) (any, bool) {
	if r.stopped.Load() {
		return nil, false
	}
	return r.meta.Get(key)
}

// DeleteMeta removes a meta key.
func (r *Registry) DeleteMeta(key any) error {
	if r.stopped.Load() {
		return ErrRegistryStopped
	}
	r.meta.Delete(key)
	return nil
}

// writePartition picks the partition an entry is stored in. Unique mode
// routes by key, so a key's single entry has one home and conflicts are
// partition-local. Duplicate mode routes by owner, keeping each owner's
// writes serialized on one partition while entries for a shared key spread
// across partitions; that is why duplicate-mode reads scan all partitions.
func (r *Registry) writePartition(key any, owner proc.Process) int {
	if r.mode == KeysUnique {
		return Route(key, len(r.parts))
	}
	return Route(owner.ID(), len(r.parts))
}

// partsFor returns the partitions relevant to key reads: the single routed
// partition in unique mode, every partition in duplicate mode.
func (r *Registry) partsFor(key any) []*partition {
	if r.mode == KeysUnique {
		idx := Route(key, len(r.parts))
		return r.parts[idx : idx+1]
	}
	return r.parts
}

// notify fans an event out to every listener, best-effort. A dead or slow
// listener never blocks or fails the triggering operation.
func (r *Registry) notify(evt Event) {
	if len(r.listeners) == 0 {
		return
	}
	evt.Time = time.Now()
	for _, l := range r.listeners {
		l.Notify(evt)
	}
}

func (r *Registry) countAll() int {
	n := 0
	for _, p := range r.parts {
		n += p.count()
	}
	return n
}
