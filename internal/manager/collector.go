// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

// Package manager contains the synchronization engine: the call-collapsing
// collector, the remote sync handler, the lazy list and the Manager facade
// that wires them together.
package manager

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syncbox/syncbox/internal/cache"
	"github.com/syncbox/syncbox/internal/logger"
	"github.com/syncbox/syncbox/internal/rest"
	"github.com/syncbox/syncbox/models"
)

// ErrNotOnServer is returned by FetchByID when the server did not return
// the requested identity, or when the fetch produced no data this round.
var ErrNotOnServer = errors.New("object not available from server")

type verb int

const (
	verbCreate verb = iota // bulk PUT
	verbUpdate             // bulk POST
	verbDelete             // per-id DELETE
	verbFetch              // bulk GET by id list
)

func (v verb) String() string {
	switch v {
	case verbCreate:
		return "create"
	case verbUpdate:
		return "update"
	case verbDelete:
		return "delete"
	default:
		return "fetch"
	}
}

type bucketKey struct {
	collection string
	verb       verb
}

// queuedDoc is one bucket entry. seq is assigned on the caller's goroutine,
// so "later enqueue wins" holds even though inserts run on background
// goroutines in arbitrary order.
type queuedDoc struct {
	doc models.Document
	seq uint64
}

// CollectorConfig bounds a bucket's accumulation phase.
type CollectorConfig struct {
	// Limit is the bucket size that triggers an immediate flush.
	Limit int
	// Window is the delay between the first unflushed enqueue and the
	// scheduled flush.
	Window time.Duration
	// FetchRecheck is how long a blocked FetchByID caller waits before
	// re-triggering a flush and checking again.
	FetchRecheck time.Duration
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.Limit <= 0 {
		c.Limit = 100
	}
	if c.Window <= 0 {
		c.Window = 3 * time.Second
	}
	if c.FetchRecheck <= 0 {
		c.FetchRecheck = 10 * time.Second
	}
	return c
}

// fetchGroup collects all concurrent FetchByID callers for one identity.
// The result is broadcast by closing done; the last departing waiter tears
// the group down.
type fetchGroup struct {
	done      chan struct{}
	result    models.Document
	found     bool
	published bool
	waiters   int
}

// CallCollector turns many per-object operations into few bulk REST calls.
// Pending work is grouped into buckets keyed by collection and verb; a
// bucket flushes when it reaches Limit entries or when the shared timer
// fires. Duplicate enqueues for one identity collapse to the latest entry.
type CallCollector struct {
	client rest.Client
	store  cache.Cache
	logger *logger.Logger
	cfg    CollectorConfig

	seq atomic.Uint64

	mu         sync.Mutex
	buckets    map[bucketKey]map[models.Identity]queuedDoc
	flushLocks map[string]*sync.Mutex
	timer      *time.Timer
	timerArmed bool
	closed     bool

	waitMu  sync.Mutex
	waiters map[models.Identity]*fetchGroup

	wg sync.WaitGroup
}

// NewCallCollector builds a collector sending through client and recording
// transmission results in store.
func NewCallCollector(client rest.Client, store cache.Cache, cfg CollectorConfig, log *logger.Logger) *CallCollector {
	return &CallCollector{
		client:     client,
		store:      store,
		logger:     log,
		cfg:        cfg.withDefaults(),
		buckets:    make(map[bucketKey]map[models.Identity]queuedDoc),
		flushLocks: make(map[string]*sync.Mutex),
		waiters:    make(map[models.Identity]*fetchGroup),
	}
}

// EnqueueCreate queues a freshly created document for a bulk PUT.
// Fire-and-forget; the call returns once the document is queued.
func (c *CallCollector) EnqueueCreate(collection string, doc models.Document) {
	c.enqueue(bucketKey{collection, verbCreate}, doc.ID, doc)
}

// EnqueueUpdate queues a locally modified document for a bulk POST.
func (c *CallCollector) EnqueueUpdate(collection string, doc models.Document) {
	c.enqueue(bucketKey{collection, verbUpdate}, doc.ID, doc)
}

// EnqueueDelete queues a deletion for transmission.
func (c *CallCollector) EnqueueDelete(collection string, id models.Identity) {
	c.enqueue(bucketKey{collection, verbDelete}, id, models.Document{ID: id})
}

// enqueue returns as soon as the entry is handed off. The flush lock wait,
// the bucket insert and any threshold flush run on a background goroutine:
// a flush in flight for the collection must never stall the caller.
func (c *CallCollector) enqueue(key bucketKey, id models.Identity, doc models.Document) {
	entry := queuedDoc{doc: doc, seq: c.seq.Add(1)}

	c.mu.Lock()
	if c.closed {
		// Shutting down. The change is already durable in the store as
		// untransmitted and replays on next start.
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		lock := c.flushLock(key.collection)
		lock.Lock()

		c.mu.Lock()
		bucket := c.buckets[key]
		if bucket == nil {
			bucket = make(map[models.Identity]queuedDoc)
			c.buckets[key] = bucket
		}
		if prev, ok := bucket[id]; !ok || entry.seq > prev.seq {
			bucket[id] = entry
		}
		size := len(bucket)
		c.mu.Unlock()

		if size >= c.cfg.Limit {
			// Still holding the collection lock: the bucket goes out at
			// exactly the threshold size before more entries pile in.
			c.flushHeld(key)
			lock.Unlock()
			return
		}
		lock.Unlock()
		c.scheduleFlush()
	}()
}

// FetchByID requests one object from the server, collapsing concurrent
// callers for the same identity onto a single round trip. It blocks until
// the result is published, rechecking periodically, or until ctx is done.
func (c *CallCollector) FetchByID(ctx context.Context, collection string, id models.Identity) (models.Document, error) {
	c.waitMu.Lock()
	group := c.waiters[id]
	if group == nil {
		group = &fetchGroup{done: make(chan struct{})}
		c.waiters[id] = group
	}
	group.waiters++
	c.waitMu.Unlock()

	key := bucketKey{collection, verbFetch}
	c.enqueue(key, id, models.Document{ID: id})

	defer c.leaveGroup(id, group)

	for {
		select {
		case <-group.done:
			c.waitMu.Lock()
			doc, found := group.result, group.found
			c.waitMu.Unlock()
			if !found {
				return models.Document{}, fmt.Errorf("fetch %s from %s: %w", id, collection, ErrNotOnServer)
			}
			return doc, nil
		case <-time.After(c.cfg.FetchRecheck):
			// A flush may have been missed by a scheduling race; kick one
			// and wait again.
			c.triggerFlush(key)
		case <-ctx.Done():
			return models.Document{}, ctx.Err()
		}
	}
}

func (c *CallCollector) leaveGroup(id models.Identity, group *fetchGroup) {
	c.waitMu.Lock()
	group.waiters--
	if group.waiters <= 0 && c.waiters[id] == group {
		delete(c.waiters, id)
	}
	c.waitMu.Unlock()
}

// publish hands a fetch result to every waiter of the identity.
func (c *CallCollector) publish(id models.Identity, doc models.Document, found bool) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()

	group := c.waiters[id]
	if group == nil || group.published {
		return
	}
	group.result = doc
	group.found = found
	group.published = true
	close(group.done)
}

// flushLock returns the lock serializing bucket mutation and flushing for
// one collection. Verbs of the same collection share it; collections are
// independent.
func (c *CallCollector) flushLock(collection string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock := c.flushLocks[collection]
	if lock == nil {
		lock = &sync.Mutex{}
		c.flushLocks[collection] = lock
	}
	return lock
}

// scheduleFlush arms the shared timer if it is not already running.
func (c *CallCollector) scheduleFlush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timerArmed || c.closed {
		return
	}
	c.timerArmed = true
	c.wg.Add(1)
	c.timer = time.AfterFunc(c.cfg.Window, c.flushDue)
}

// flushDue is the timer body: flush every non-empty bucket, then re-arm
// only if pending work remains. The timer stays disarmed otherwise and is
// re-armed lazily by the next enqueue.
func (c *CallCollector) flushDue() {
	defer c.wg.Done()

	c.mu.Lock()
	c.timerArmed = false
	keys := make([]bucketKey, 0, len(c.buckets))
	for key, bucket := range c.buckets {
		if len(bucket) > 0 {
			keys = append(keys, key)
		}
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.flush(key)
	}

	c.mu.Lock()
	pending := false
	for _, bucket := range c.buckets {
		if len(bucket) > 0 {
			pending = true
			break
		}
	}
	c.mu.Unlock()
	if pending {
		c.scheduleFlush()
	}
}

// triggerFlush runs one bucket's flush on its own goroutine.
func (c *CallCollector) triggerFlush(key bucketKey) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.flush(key)
	}()
}

// flush sends one bucket. The collection's flush lock is held for the whole
// snapshot-and-send so no enqueue mutates the bucket mid-flight.
func (c *CallCollector) flush(key bucketKey) {
	lock := c.flushLock(key.collection)
	lock.Lock()
	defer lock.Unlock()

	c.flushHeld(key)
}

// flushHeld is flush with the collection's flush lock already held.
func (c *CallCollector) flushHeld(key bucketKey) {
	c.mu.Lock()
	bucket := c.buckets[key]
	if len(bucket) == 0 {
		c.mu.Unlock()
		return
	}
	snapshot := make(map[models.Identity]models.Document, len(bucket))
	for id, entry := range bucket {
		snapshot[id] = entry.doc
	}
	c.mu.Unlock()

	ctx := context.Background()

	switch key.verb {
	case verbCreate, verbUpdate:
		c.flushBulk(ctx, key, snapshot)
	case verbDelete:
		c.flushDeletes(ctx, key, snapshot)
	case verbFetch:
		c.flushFetch(ctx, key, snapshot)
	}
}

// flushBulk sends one PUT or POST carrying the whole bucket. All-or-nothing:
// a 2xx marks every document transmitted and commits; anything else leaves
// the bucket untouched for the next scheduled flush.
func (c *CallCollector) flushBulk(ctx context.Context, key bucketKey, snapshot map[models.Identity]models.Document) {
	docs := make([]models.Document, 0, len(snapshot))
	for _, doc := range snapshot {
		docs = append(docs, doc)
	}
	body, err := json.Marshal(docs)
	if err != nil {
		c.logger.Err(err).Str("func", "CallCollector.flushBulk").Msg("failed to encode bulk body")
		return
	}

	var resp *rest.Response
	if key.verb == verbCreate {
		resp, err = c.client.Put(ctx, body, "objects", key.collection)
	} else {
		resp, err = c.client.Post(ctx, body, "objects", key.collection)
	}
	if err != nil || !resp.OK() {
		c.logger.Warn().
			Str("func", "CallCollector.flushBulk").
			Str("collection", key.collection).
			Str("verb", key.verb.String()).
			Int("size", len(snapshot)).
			Msg("bulk flush failed, entries stay queued")
		c.scheduleFlush()
		return
	}

	now := time.Now()
	for _, doc := range docs {
		if putErr := c.store.Put(ctx, key.collection, doc, models.TransmittedAt(now)); putErr != nil {
			c.logger.Err(putErr).
				Str("func", "CallCollector.flushBulk").
				Str("identity", doc.ID.Hex()).
				Msg("failed to record transmission")
		}
	}
	if commitErr := c.store.Commit(ctx); commitErr != nil {
		c.logger.Err(commitErr).Str("func", "CallCollector.flushBulk").Msg("failed to commit transmission states")
	}

	c.removeSent(key, snapshot)
	c.logger.Debug().
		Str("func", "CallCollector.flushBulk").
		Str("collection", key.collection).
		Str("verb", key.verb.String()).
		Int("size", len(docs)).
		Msg("bulk flush transmitted")
}

// flushDeletes sends one DELETE per queued identity. Each acknowledged
// deletion is removed locally; failures stay queued.
func (c *CallCollector) flushDeletes(ctx context.Context, key bucketKey, snapshot map[models.Identity]models.Document) {
	sent := make(map[models.Identity]models.Document, len(snapshot))
	for id := range snapshot {
		resp, err := c.client.Delete(ctx, "objects", key.collection, id.Hex())
		if err != nil || !resp.OK() {
			c.logger.Warn().
				Str("func", "CallCollector.flushDeletes").
				Str("collection", key.collection).
				Str("identity", id.Hex()).
				Msg("delete flush failed, entry stays queued")
			continue
		}
		if delErr := c.store.Delete(ctx, key.collection, id); delErr != nil {
			c.logger.Err(delErr).
				Str("func", "CallCollector.flushDeletes").
				Str("identity", id.Hex()).
				Msg("failed to remove acknowledged deletion")
		}
		sent[id] = snapshot[id]
	}

	if len(sent) == 0 {
		c.scheduleFlush()
		return
	}
	if commitErr := c.store.Commit(ctx); commitErr != nil {
		c.logger.Err(commitErr).Str("func", "CallCollector.flushDeletes").Msg("failed to commit deletions")
	}
	c.removeSent(key, sent)
	if len(sent) < len(snapshot) {
		c.scheduleFlush()
	}
}

// flushFetch resolves the queued identities with one bulk GET and publishes
// each result to its waiters. Identities missing from the response, or the
// whole bucket when the call produced no data, publish as absent so waiters
// do not hang for the full recheck cycle.
func (c *CallCollector) flushFetch(ctx context.Context, key bucketKey, snapshot map[models.Identity]models.Document) {
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id.Hex())
	}
	idList, err := json.Marshal(ids)
	if err != nil {
		c.logger.Err(err).Str("func", "CallCollector.flushFetch").Msg("failed to encode id list")
		return
	}
	segment := base64.URLEncoding.EncodeToString(idList)

	resp, err := c.client.Get(ctx, "objects", key.collection, segment)
	if err != nil || !resp.OK() {
		c.logger.Warn().
			Str("func", "CallCollector.flushFetch").
			Str("collection", key.collection).
			Int("size", len(snapshot)).
			Msg("fetch flush produced no data")
		c.removeSent(key, snapshot)
		for id := range snapshot {
			c.publish(id, models.Document{}, false)
		}
		return
	}

	var results map[string]models.Document
	if err = json.Unmarshal(resp.Body, &results); err != nil {
		c.logger.Err(err).Str("func", "CallCollector.flushFetch").Msg("failed to decode fetch response")
		c.removeSent(key, snapshot)
		for id := range snapshot {
			c.publish(id, models.Document{}, false)
		}
		return
	}

	now := time.Now()
	stored := false
	for id := range snapshot {
		doc, found := results[id.Hex()]
		if found {
			if putErr := c.store.Put(ctx, key.collection, doc, models.TransmittedAt(now)); putErr != nil {
				c.logger.Err(putErr).
					Str("func", "CallCollector.flushFetch").
					Str("identity", id.Hex()).
					Msg("failed to cache fetched document")
			} else {
				stored = true
			}
		}
		c.publish(id, doc, found)
	}
	if stored {
		if commitErr := c.store.Commit(ctx); commitErr != nil {
			c.logger.Err(commitErr).Str("func", "CallCollector.flushFetch").Msg("failed to commit fetched documents")
		}
	}
	c.removeSent(key, snapshot)
}

// removeSent drops flushed entries from the bucket. Entries are compared by
// identity only: the flush lock guarantees no replacement happened while
// the flush ran.
func (c *CallCollector) removeSent(key bucketKey, sent map[models.Identity]models.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket := c.buckets[key]
	for id := range sent {
		delete(bucket, id)
	}
	if len(bucket) == 0 {
		delete(c.buckets, key)
	}
}

// Flush synchronously sends every non-empty bucket. Used by the offline
// replay sweep and by Close.
func (c *CallCollector) Flush() {
	c.mu.Lock()
	keys := make([]bucketKey, 0, len(c.buckets))
	for key, bucket := range c.buckets {
		if len(bucket) > 0 {
			keys = append(keys, key)
		}
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.flush(key)
	}
}

// Close stops the scheduler and waits for in-flight flushes to finish.
// Queued entries that were never flushed stay in the local store as
// untransmitted and are replayed on next startup.
func (c *CallCollector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	timer := c.timer
	armed := c.timerArmed
	c.timerArmed = false
	c.mu.Unlock()

	if timer != nil && armed && timer.Stop() {
		c.wg.Done()
	}
	c.wg.Wait()
}
