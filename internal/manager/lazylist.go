// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/syncbox/syncbox/models"
)

var (
	// ErrIndexOutOfRange is returned by list access with an invalid index.
	ErrIndexOutOfRange = errors.New("list index out of range")

	// ErrConcurrentModification is returned by an iterator whose list
	// changed size since the iterator was created.
	ErrConcurrentModification = errors.New("list modified during iteration")
)

// ListHooks let a LazyList propagate structural mutations back to the sync
// engine when auto-save is enabled.
type ListHooks[T any] struct {
	Save   func(v T)
	Delete func(id models.Identity, v T, resolved bool)
}

// listSlot holds one list element. Slots created from stored identities
// start unresolved and are filled by the background resolver; slots created
// by Insert/Append/Set are resolved immediately.
type listSlot[T any] struct {
	id       models.Identity
	value    T
	resolved bool
	present  bool
	ready    chan struct{}
}

// LazyList exposes a collection's identities immediately while the full
// objects are still being resolved in the background. Readers of an
// unresolved slot block until that slot is published; structural mutation
// is synchronized as a unit.
type LazyList[T any] struct {
	mu       sync.Mutex
	slots    []*listSlot[T]
	autoSave bool
	hooks    ListHooks[T]
	recheck  time.Duration
}

// NewLazyList builds the list over the given identities and starts one
// background goroutine resolving them in order. resolve returns the value
// for an identity and whether it exists; a missing value leaves a resolved
// empty slot that reads as the zero value.
func NewLazyList[T any](ids []models.Identity, resolve func(models.Identity) (T, bool), hooks ListHooks[T], autoSave bool) *LazyList[T] {
	l := &LazyList[T]{
		slots:    make([]*listSlot[T], 0, len(ids)),
		autoSave: autoSave,
		hooks:    hooks,
		recheck:  2 * time.Second,
	}
	for _, id := range ids {
		l.slots = append(l.slots, &listSlot[T]{id: id, ready: make(chan struct{})})
	}

	initial := make([]*listSlot[T], len(l.slots))
	copy(initial, l.slots)
	go l.materialize(initial, resolve)

	return l
}

// materialize resolves the initial slots in order. Slots removed from the
// list meanwhile are still published so any straggling reader wakes up.
func (l *LazyList[T]) materialize(slots []*listSlot[T], resolve func(models.Identity) (T, bool)) {
	for _, s := range slots {
		value, present := resolve(s.id)

		l.mu.Lock()
		s.value = value
		s.present = present
		s.resolved = true
		close(s.ready)
		l.mu.Unlock()
	}
}

// Size returns the current number of slots, resolved or not.
func (l *LazyList[T]) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// SetAutoSave toggles mutation propagation through the hooks.
func (l *LazyList[T]) SetAutoSave(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autoSave = enabled
}

// Get returns the element at index, blocking until its slot is resolved.
// The wait re-checks periodically rather than sleeping indefinitely.
// A slot whose object no longer exists yields the zero value.
func (l *LazyList[T]) Get(ctx context.Context, index int) (T, error) {
	var zero T

	l.mu.Lock()
	if index < 0 || index >= len(l.slots) {
		l.mu.Unlock()
		return zero, ErrIndexOutOfRange
	}
	s := l.slots[index]
	l.mu.Unlock()

	for {
		l.mu.Lock()
		if s.resolved {
			value := s.value
			l.mu.Unlock()
			return value, nil
		}
		ready := s.ready
		l.mu.Unlock()

		select {
		case <-ready:
		case <-time.After(l.recheck):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Identity returns the stored identity of the slot at index, without
// waiting for resolution. The zero identity marks a locally inserted value
// that has not been saved yet.
func (l *LazyList[T]) Identity(index int) (models.Identity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.slots) {
		return models.Identity{}, ErrIndexOutOfRange
	}
	return l.slots[index].id, nil
}

// Append adds v at the end of the list.
func (l *LazyList[T]) Append(v T) {
	l.mu.Lock()
	l.slots = append(l.slots, resolvedSlot(v))
	save := l.autoSave
	l.mu.Unlock()

	if save && l.hooks.Save != nil {
		l.hooks.Save(v)
	}
}

// Insert places v at index, shifting subsequent slots.
func (l *LazyList[T]) Insert(index int, v T) error {
	l.mu.Lock()
	if index < 0 || index > len(l.slots) {
		l.mu.Unlock()
		return ErrIndexOutOfRange
	}
	l.slots = append(l.slots, nil)
	copy(l.slots[index+1:], l.slots[index:])
	l.slots[index] = resolvedSlot(v)
	save := l.autoSave
	l.mu.Unlock()

	if save && l.hooks.Save != nil {
		l.hooks.Save(v)
	}
	return nil
}

// Set replaces the slot at index with v.
func (l *LazyList[T]) Set(index int, v T) error {
	l.mu.Lock()
	if index < 0 || index >= len(l.slots) {
		l.mu.Unlock()
		return ErrIndexOutOfRange
	}
	id := l.slots[index].id
	slot := resolvedSlot(v)
	slot.id = id
	l.slots[index] = slot
	save := l.autoSave
	l.mu.Unlock()

	if save && l.hooks.Save != nil {
		l.hooks.Save(v)
	}
	return nil
}

// Remove deletes the slot at index and returns its value when it was
// already resolved. An unresolved slot is removed without blocking and the
// second return value is false; callers needing the value should fetch it
// directly first.
func (l *LazyList[T]) Remove(index int) (T, bool, error) {
	var zero T

	l.mu.Lock()
	if index < 0 || index >= len(l.slots) {
		l.mu.Unlock()
		return zero, false, ErrIndexOutOfRange
	}
	s := l.slots[index]
	l.slots = append(l.slots[:index], l.slots[index+1:]...)
	save := l.autoSave
	l.mu.Unlock()

	if save && l.hooks.Delete != nil {
		l.hooks.Delete(s.id, s.value, s.resolved)
	}
	if !s.resolved {
		return zero, false, nil
	}
	return s.value, s.present, nil
}

func resolvedSlot[T any](v T) *listSlot[T] {
	ready := make(chan struct{})
	close(ready)
	return &listSlot[T]{value: v, resolved: true, present: true, ready: ready}
}

// ListIterator walks a LazyList front to back. It captures the list size
// at creation and fails when the size changes underneath it.
type ListIterator[T any] struct {
	list *LazyList[T]
	size int
	next int
}

// Iterator returns a new iterator positioned before the first element.
func (l *LazyList[T]) Iterator() *ListIterator[T] {
	return &ListIterator[T]{list: l, size: l.Size()}
}

// HasNext reports whether another element remains.
func (it *ListIterator[T]) HasNext() bool {
	return it.next < it.size
}

// Next returns the next element, blocking like Get for unresolved slots.
func (it *ListIterator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if it.list.Size() != it.size {
		return zero, ErrConcurrentModification
	}
	if !it.HasNext() {
		return zero, ErrIndexOutOfRange
	}
	v, err := it.list.Get(ctx, it.next)
	if err != nil {
		return zero, err
	}
	it.next++
	return v, nil
}
