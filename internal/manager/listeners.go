// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package manager

import "sync"

// ListenerManager tracks per-collection update subscriptions and collapses
// concurrent refreshes of one collection onto a single running call.
// Subscription lifetime is explicit: the caller keeps the returned
// unsubscribe function and invokes it when done.
type ListenerManager struct {
	mu        sync.Mutex
	nextID    int64
	listeners map[string]map[int64]func()
	running   map[string]chan struct{}
}

func NewListenerManager() *ListenerManager {
	return &ListenerManager{
		listeners: make(map[string]map[int64]func()),
		running:   make(map[string]chan struct{}),
	}
}

// Subscribe registers notify for the collection and returns its
// unsubscribe function. Unsubscribing twice is harmless.
func (l *ListenerManager) Subscribe(collection string, notify func()) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	group := l.listeners[collection]
	if group == nil {
		group = make(map[int64]func())
		l.listeners[collection] = group
	}
	group[id] = notify

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if group, ok := l.listeners[collection]; ok {
			delete(group, id)
			if len(group) == 0 {
				delete(l.listeners, collection)
			}
		}
	}
}

// Notify invokes every listener registered for the collection.
func (l *ListenerManager) Notify(collection string) {
	for _, notify := range l.snapshot(collection) {
		notify()
	}
}

// NotifyAll invokes every listener of every collection. Used on push
// signals, which carry no collection information.
func (l *ListenerManager) NotifyAll() {
	l.mu.Lock()
	var all []func()
	for _, group := range l.listeners {
		for _, notify := range group {
			all = append(all, notify)
		}
	}
	l.mu.Unlock()

	for _, notify := range all {
		notify()
	}
}

// Collections returns every collection with at least one listener.
func (l *ListenerManager) Collections() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.listeners))
	for name := range l.listeners {
		names = append(names, name)
	}
	return names
}

func (l *ListenerManager) snapshot(collection string) []func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	group := l.listeners[collection]
	snapshot := make([]func(), 0, len(group))
	for _, notify := range group {
		snapshot = append(snapshot, notify)
	}
	return snapshot
}

// Refresh runs one refresh for the collection. If another refresh for the
// same collection is already in flight, the call waits for it instead of
// starting a second one.
func (l *ListenerManager) Refresh(collection string, run func()) {
	l.mu.Lock()
	if done, inFlight := l.running[collection]; inFlight {
		l.mu.Unlock()
		<-done
		return
	}
	done := make(chan struct{})
	l.running[collection] = done
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.running, collection)
		l.mu.Unlock()
		close(done)
	}()

	run()
}
