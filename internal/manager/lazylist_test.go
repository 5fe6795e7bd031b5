package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncbox/syncbox/models"
)

type note struct {
	Name string
}

// blockingResolver resolves identities to notes, optionally gating on a
// channel so tests control when slots become available.
type blockingResolver struct {
	mu      sync.Mutex
	values  map[models.Identity]*note
	release chan struct{}
}

func newBlockingResolver(values map[models.Identity]*note, gated bool) *blockingResolver {
	r := &blockingResolver{values: values}
	if gated {
		r.release = make(chan struct{})
	}
	return r
}

func (r *blockingResolver) resolve(id models.Identity) (*note, bool) {
	if r.release != nil {
		<-r.release
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[id]
	return v, ok
}

func someIdentities(n int) []models.Identity {
	ids := make([]models.Identity, n)
	for i := range ids {
		ids[i] = models.NewIdentity()
	}
	return ids
}

func TestLazyList_SizeAvailableImmediately(t *testing.T) {
	ids := someIdentities(3)
	resolver := newBlockingResolver(nil, true)
	defer close(resolver.release)

	list := NewLazyList(ids, resolver.resolve, ListHooks[*note]{}, false)
	assert.Equal(t, 3, list.Size())
}

func TestLazyList_GetBlocksUntilResolved(t *testing.T) {
	ids := someIdentities(2)
	want := &note{Name: "second"}
	resolver := newBlockingResolver(map[models.Identity]*note{
		ids[0]: {Name: "first"},
		ids[1]: want,
	}, true)

	list := NewLazyList(ids, resolver.resolve, ListHooks[*note]{}, false)
	list.recheck = 10 * time.Millisecond

	done := make(chan *note, 1)
	go func() {
		v, err := list.Get(context.Background(), 1)
		require.NoError(t, err)
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("Get returned before the slot resolved")
	case <-time.After(30 * time.Millisecond):
	}

	close(resolver.release)
	select {
	case v := <-done:
		assert.Equal(t, want, v)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after resolution")
	}
}

func TestLazyList_GetMissingValueYieldsZero(t *testing.T) {
	ids := someIdentities(1)
	resolver := newBlockingResolver(nil, false) // resolves to absent

	list := NewLazyList(ids, resolver.resolve, ListHooks[*note]{}, false)
	v, err := list.Get(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestLazyList_GetOutOfRange(t *testing.T) {
	list := NewLazyList(nil, func(models.Identity) (*note, bool) { return nil, false }, ListHooks[*note]{}, false)

	_, err := list.Get(context.Background(), 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = list.Get(context.Background(), -1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestLazyList_InsertShiftsSlots(t *testing.T) {
	ids := someIdentities(2)
	resolver := newBlockingResolver(map[models.Identity]*note{
		ids[0]: {Name: "a"},
		ids[1]: {Name: "c"},
	}, false)

	list := NewLazyList(ids, resolver.resolve, ListHooks[*note]{}, false)
	require.NoError(t, list.Insert(1, &note{Name: "b"}))
	require.Equal(t, 3, list.Size())

	ctx := context.Background()
	names := make([]string, 0, 3)
	for i := 0; i < list.Size(); i++ {
		v, err := list.Get(ctx, i)
		require.NoError(t, err)
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestLazyList_RemoveUnresolvedDoesNotBlock(t *testing.T) {
	ids := someIdentities(1)
	resolver := newBlockingResolver(nil, true)
	defer close(resolver.release)

	list := NewLazyList(ids, resolver.resolve, ListHooks[*note]{}, false)

	start := time.Now()
	_, ok, err := list.Remove(0)
	require.NoError(t, err)
	assert.False(t, ok, "unresolved slot removal is best-effort")
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 0, list.Size())
}

func TestLazyList_RemoveResolvedReturnsValue(t *testing.T) {
	list := NewLazyList(nil, func(models.Identity) (*note, bool) { return nil, false }, ListHooks[*note]{}, false)
	list.Append(&note{Name: "x"})

	v, ok, err := list.Remove(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", v.Name)
}

func TestLazyList_IteratorDetectsConcurrentModification(t *testing.T) {
	list := NewLazyList(nil, func(models.Identity) (*note, bool) { return nil, false }, ListHooks[*note]{}, false)
	list.Append(&note{Name: "a"})
	list.Append(&note{Name: "b"})

	it := list.Iterator()
	ctx := context.Background()

	_, err := it.Next(ctx)
	require.NoError(t, err)

	list.Append(&note{Name: "c"})

	_, err = it.Next(ctx)
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestLazyList_IteratorWalksAll(t *testing.T) {
	list := NewLazyList(nil, func(models.Identity) (*note, bool) { return nil, false }, ListHooks[*note]{}, false)
	list.Append(&note{Name: "a"})
	list.Append(&note{Name: "b"})

	it := list.Iterator()
	ctx := context.Background()
	var names []string
	for it.HasNext() {
		v, err := it.Next(ctx)
		require.NoError(t, err)
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestLazyList_AutoSavePropagatesMutations(t *testing.T) {
	var (
		mu      sync.Mutex
		saved   []*note
		deleted int
	)
	hooks := ListHooks[*note]{
		Save: func(v *note) {
			mu.Lock()
			saved = append(saved, v)
			mu.Unlock()
		},
		Delete: func(models.Identity, *note, bool) {
			mu.Lock()
			deleted++
			mu.Unlock()
		},
	}

	list := NewLazyList(nil, func(models.Identity) (*note, bool) { return nil, false }, hooks, true)

	a := &note{Name: "a"}
	list.Append(a)
	require.NoError(t, list.Insert(0, &note{Name: "b"}))
	_, _, err := list.Remove(0)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, saved, 2)
	assert.Equal(t, 1, deleted)
}

func TestLazyList_AutoSaveOffByDefaultMutesHooks(t *testing.T) {
	called := false
	hooks := ListHooks[*note]{Save: func(*note) { called = true }}

	list := NewLazyList(nil, func(models.Identity) (*note, bool) { return nil, false }, hooks, false)
	list.Append(&note{Name: "a"})
	assert.False(t, called)

	list.SetAutoSave(true)
	list.Append(&note{Name: "b"})
	assert.True(t, called)
}
