package procreg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/procreg/pkg/procreg/proc"
)

// startUnique is a test helper for a 4-partition unique registry.
func startUnique(t *testing.T) *Registry {
	t.Helper()
	r, err := Start("test", WithKeys(KeysUnique), WithPartitions(4))
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

// startDuplicate is a test helper for a 4-partition duplicate registry.
func startDuplicate(t *testing.T) *Registry {
	t.Helper()
	r, err := Start("test", WithKeys(KeysDuplicate), WithPartitions(4))
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func newOwner(t *testing.T) *proc.Proc {
	t.Helper()
	p := proc.Self()
	t.Cleanup(p.Exit)
	return p
}

func TestStartValidation(t *testing.T) {
	_, err := Start("", WithKeys(KeysUnique))
	assert.ErrorIs(t, err, ErrBadOptions)

	_, err = Start("r")
	assert.ErrorIs(t, err, ErrBadOptions, "key policy is required")

	_, err = Start("r", WithKeys(KeysUnique), WithPartitions(0))
	assert.ErrorIs(t, err, ErrBadOptions)

	var optErr *OptionError
	_, err = Start("r", WithKeys(KeysUnique), WithPartitions(-1))
	require.ErrorAs(t, err, &optErr)
	assert.Equal(t, "WithPartitions", optErr.Option)
}

func TestStartAccessors(t *testing.T) {
	r, err := Start("sessions", WithKeys(KeysUnique), WithPartitions(4))
	require.NoError(t, err)
	defer r.Stop()

	assert.Equal(t, "sessions", r.Name())
	assert.Equal(t, KeysUnique, r.Mode())
	assert.Equal(t, 4, r.Partitions())
}

func TestRegisterAndLookup(t *testing.T) {
	r := startUnique(t)
	owner := newOwner(t)

	reg, err := r.Register(owner, "agent", "v1")
	require.NoError(t, err)
	assert.Equal(t, "agent", reg.Key)
	assert.Equal(t, owner.ID(), reg.Owner.ID())
	assert.NotEqual(t, reg.Ref.String(), "00000000-0000-0000-0000-000000000000")

	entries := r.Lookup("agent")
	require.Len(t, entries, 1)
	assert.Equal(t, owner.ID(), entries[0].Owner.ID())
	assert.Equal(t, "v1", entries[0].Value)

	assert.Empty(t, r.Lookup("missing"))
}

func TestUniqueConflict(t *testing.T) {
	r := startUnique(t)
	first := newOwner(t)
	second := newOwner(t)

	_, err := r.Register(first, "agent", "v1")
	require.NoError(t, err)

	_, err = r.Register(second, "agent", "v2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	var conflict *AlreadyRegisteredError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "agent", conflict.Key)
	assert.Equal(t, first.ID(), conflict.Owner.ID())

	// Loser did not displace the winner.
	entries := r.Lookup("agent")
	require.Len(t, entries, 1)
	assert.Equal(t, "v1", entries[0].Value)
}

func TestUniqueConcurrentRace(t *testing.T) {
	// N racers, exactly one winner, N-1 AlreadyRegistered errors.
	r := startUnique(t)
	const n = 32

	var wins, losses atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := proc.Self()
			if _, err := r.Register(owner, "contested", i); err == nil {
				wins.Add(1)
			} else if errors.Is(err, ErrAlreadyRegistered) {
				losses.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())
	assert.Equal(t, int64(n-1), losses.Load())
	assert.Len(t, r.Lookup("contested"), 1)
}

func TestDuplicateAccumulation(t *testing.T) {
	r := startDuplicate(t)
	const m = 5

	want := make(map[string]any, m)
	for i := 0; i < m; i++ {
		owner := newOwner(t)
		_, err := r.Register(owner, "topic", i)
		require.NoError(t, err)
		want[owner.ID()] = i
	}

	entries := r.Lookup("topic")
	require.Len(t, entries, m)

	got := make(map[string]any, m)
	for _, e := range entries {
		got[e.Owner.ID()] = e.Value
	}
	assert.Equal(t, want, got)
}

func TestDuplicateSameOwnerMultipleValues(t *testing.T) {
	r := startDuplicate(t)
	owner := newOwner(t)

	_, err := r.Register(owner, "topic", "a")
	require.NoError(t, err)
	_, err = r.Register(owner, "topic", "b")
	require.NoError(t, err)

	values := r.Values("topic", owner)
	assert.ElementsMatch(t, []any{"a", "b"}, values)
	assert.Equal(t, 2, r.CountOwned(owner))
}

func TestCrashCleanup(t *testing.T) {
	r := startUnique(t)

	owner := proc.Spawn(func(ctx context.Context) {
		<-ctx.Done()
	})
	_, err := r.Register(owner, "ephemeral", "v")
	require.NoError(t, err)
	require.Len(t, r.Lookup("ephemeral"), 1)

	owner.Kill()

	// Exit notification is asynchronous; entries vanish within a bounded
	// window rather than instantly.
	require.Eventually(t, func() bool {
		return len(r.Lookup("ephemeral")) == 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, r.Count())
}

func TestCrashCleanupPurgesAllKeys(t *testing.T) {
	r := startDuplicate(t)
	survivorOwner := newOwner(t)

	owner := proc.Spawn(func(ctx context.Context) { <-ctx.Done() })
	for i := 0; i < 10; i++ {
		_, err := r.Register(owner, fmt.Sprintf("key-%d", i), i)
		require.NoError(t, err)
	}
	_, err := r.Register(survivorOwner, "key-0", "keep")
	require.NoError(t, err)

	owner.Kill()

	require.Eventually(t, func() bool {
		return r.CountOwned(owner) == 0
	}, 2*time.Second, 5*time.Millisecond)

	// Unrelated owner's entry survives.
	entries := r.Lookup("key-0")
	require.Len(t, entries, 1)
	assert.Equal(t, "keep", entries[0].Value)
}

func TestUnregister(t *testing.T) {
	r := startUnique(t)
	owner := newOwner(t)

	_, err := r.Register(owner, "agent", "v1")
	require.NoError(t, err)

	require.NoError(t, r.Unregister(owner, "agent"))
	assert.Empty(t, r.Lookup("agent"))

	// Unregistering an absent key is a no-op.
	require.NoError(t, r.Unregister(owner, "agent"))
}

func TestUnregisterOnlyOwnEntries(t *testing.T) {
	r := startDuplicate(t)
	a := newOwner(t)
	b := newOwner(t)

	_, err := r.Register(a, "topic", "from-a")
	require.NoError(t, err)
	_, err = r.Register(b, "topic", "from-b")
	require.NoError(t, err)

	require.NoError(t, r.Unregister(a, "topic"))

	entries := r.Lookup("topic")
	require.Len(t, entries, 1)
	assert.Equal(t, "from-b", entries[0].Value)
}

func TestRegistrationUnregister(t *testing.T) {
	r := startUnique(t)
	owner := newOwner(t)

	reg, err := r.Register(owner, "agent", "v1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reg.Partition(), 0)
	assert.Less(t, reg.Partition(), r.Partitions())

	require.NoError(t, reg.Unregister())
	assert.Empty(t, r.Lookup("agent"))
}

func TestEndToEndClaimRelease(t *testing.T) {
	r := startUnique(t)
	a := newOwner(t)
	b := newOwner(t)

	_, err := r.Register(a, "agent", "v1")
	require.NoError(t, err)

	_, err = r.Register(b, "agent", "v2")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	require.NoError(t, r.Unregister(a, "agent"))

	_, err = r.Register(b, "agent", "v2")
	require.NoError(t, err)

	entries := r.Lookup("agent")
	require.Len(t, entries, 1)
	assert.Equal(t, "v2", entries[0].Value)
}

func TestKeysAndValues(t *testing.T) {
	r := startDuplicate(t)
	owner := newOwner(t)
	other := newOwner(t)

	_, err := r.Register(owner, "a", 1)
	require.NoError(t, err)
	_, err = r.Register(owner, "b", 2)
	require.NoError(t, err)
	_, err = r.Register(owner, "b", 3)
	require.NoError(t, err)
	_, err = r.Register(other, "a", 99)
	require.NoError(t, err)

	assert.ElementsMatch(t, []any{"a", "b", "b"}, r.Keys(owner))
	assert.ElementsMatch(t, []any{2, 3}, r.Values("b", owner))
	assert.Empty(t, r.Values("b", other))
}

func TestResolve(t *testing.T) {
	r := startUnique(t)
	owner := newOwner(t)

	_, err := r.Resolve("agent")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Register(owner, "agent", "v")
	require.NoError(t, err)

	got, err := r.Resolve("agent")
	require.NoError(t, err)
	assert.Equal(t, owner.ID(), got.ID())
}

func TestUpdateValue(t *testing.T) {
	r := startUnique(t)
	owner := newOwner(t)

	_, err := r.Register(owner, "counter", 1)
	require.NoError(t, err)

	newV, oldV, err := r.UpdateValue(owner, "counter", func(v any) any {
		return v.(int) + 1
	})
	require.NoError(t, err)
	assert.Equal(t, 2, newV)
	assert.Equal(t, 1, oldV)

	entries := r.Lookup("counter")
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Value)
}

func TestUpdateValueNotFound(t *testing.T) {
	r := startUnique(t)
	owner := newOwner(t)

	_, _, err := r.UpdateValue(owner, "missing", func(v any) any { return v })
	assert.ErrorIs(t, err, ErrNotFound)

	// A key owned by someone else is NotFound for this owner.
	other := newOwner(t)
	_, err2 := r.Register(other, "held", 1)
	require.NoError(t, err2)
	_, _, err = r.UpdateValue(owner, "held", func(v any) any { return v })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateValueDuplicateModePanics(t *testing.T) {
	r := startDuplicate(t)
	owner := newOwner(t)

	assert.Panics(t, func() {
		_, _, _ = r.UpdateValue(owner, "k", func(v any) any { return v })
	})
}

func TestCount(t *testing.T) {
	r := startDuplicate(t)

	assert.Equal(t, 0, r.Count())

	for i := 0; i < 10; i++ {
		owner := newOwner(t)
		_, err := r.Register(owner, fmt.Sprintf("key-%d", i%3), i)
		require.NoError(t, err)
	}
	assert.Equal(t, 10, r.Count())
}

func TestMetaRoundTrip(t *testing.T) {
	r := startUnique(t)

	_, ok := r.Meta("k")
	assert.False(t, ok)

	require.NoError(t, r.PutMeta("k", "v"))
	v, ok := r.Meta("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, r.DeleteMeta("k"))
	_, ok = r.Meta("k")
	assert.False(t, ok)
}

func TestMetaSeededAtStart(t *testing.T) {
	r, err := Start("test",
		WithKeys(KeysUnique),
		WithMeta("region", "eu"),
		WithMeta("tier", 2),
	)
	require.NoError(t, err)
	defer r.Stop()

	v, ok := r.Meta("region")
	require.True(t, ok)
	assert.Equal(t, "eu", v)

	v, ok = r.Meta("tier")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestMetaSurvivesOwnerExit(t *testing.T) {
	r := startUnique(t)
	require.NoError(t, r.PutMeta("k", "v"))

	owner := proc.Spawn(func(ctx context.Context) { <-ctx.Done() })
	_, err := r.Register(owner, "key", "val")
	require.NoError(t, err)

	owner.Kill()
	require.Eventually(t, func() bool {
		return len(r.Lookup("key")) == 0
	}, 2*time.Second, 5*time.Millisecond)

	v, ok := r.Meta("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestStopSemantics(t *testing.T) {
	r, err := Start("test", WithKeys(KeysUnique))
	require.NoError(t, err)
	owner := newOwner(t)

	_, err = r.Register(owner, "agent", "v")
	require.NoError(t, err)

	r.Stop()
	r.Stop() // idempotent

	_, err = r.Register(owner, "other", "v")
	assert.ErrorIs(t, err, ErrRegistryStopped)
	assert.ErrorIs(t, r.Unregister(owner, "agent"), ErrRegistryStopped)
	assert.ErrorIs(t, r.PutMeta("k", "v"), ErrRegistryStopped)

	assert.Empty(t, r.Lookup("agent"))
	assert.Equal(t, 0, r.Count())
	_, err = r.Resolve("agent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterNilOwner(t *testing.T) {
	r := startUnique(t)
	_, err := r.Register(nil, "k", "v")
	assert.ErrorIs(t, err, ErrBadOptions)
}

func TestPartitionIndependence(t *testing.T) {
	// Writes to distinct partitions proceed concurrently without
	// corrupting each other's tables.
	r, err := Start("test", WithKeys(KeysUnique), WithPartitions(8))
	require.NoError(t, err)
	defer r.Stop()

	const perWorker = 50
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			owner := proc.Self()
			for i := 0; i < perWorker; i++ {
				_, err := r.Register(owner, fmt.Sprintf("w%d-key%d", w, i), i)
				if err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 8*perWorker, r.Count())
}

func BenchmarkRegisterUnique(b *testing.B) {
	for _, parts := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("partitions-%d", parts), func(b *testing.B) {
			r, err := Start("bench", WithKeys(KeysUnique), WithPartitions(parts))
			if err != nil {
				b.Fatal(err)
			}
			defer r.Stop()
			owner := proc.Self()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := r.Register(owner, i, i); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkLookup(b *testing.B) {
	r, err := Start("bench", WithKeys(KeysUnique), WithPartitions(4))
	if err != nil {
		b.Fatal(err)
	}
	defer r.Stop()
	owner := proc.Self()
	for i := 0; i < 1024; i++ {
		if _, err := r.Register(owner, i, i); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			r.Lookup(i % 1024)
			i++
		}
	})
}
