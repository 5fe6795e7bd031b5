// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package manager

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/syncbox/syncbox/internal/cache"
	"github.com/syncbox/syncbox/internal/logger"
	"github.com/syncbox/syncbox/internal/rest"
	"github.com/syncbox/syncbox/models"
)

// lastModifiedHeader carries the server's highest modification timestamp
// (milliseconds) on collection fetch responses.
const lastModifiedHeader = "X-Last-Modified"

// RestHandler orchestrates the remote side of the sync: persist-then-enqueue
// on local writes, incremental-vs-full refetch with deletion reconciliation
// on collection reads, and the offline replay sweep.
type RestHandler struct {
	client    rest.Client
	store     cache.Cache
	info      cache.Information
	collector *CallCollector
	logger    *logger.Logger
	now       func() time.Time
}

// NewRestHandler wires the handler. client is expected to be the retrying
// transport; collector owns batching.
func NewRestHandler(client rest.Client, store cache.Cache, info cache.Information, collector *CallCollector, log *logger.Logger) *RestHandler {
	return &RestHandler{
		client:    client,
		store:     store,
		info:      info,
		collector: collector,
		logger:    log,
		now:       time.Now,
	}
}

// OnSave persists the document locally and queues the matching remote call.
// A document without an identity gets one assigned and becomes a create;
// anything else is an update, unless the store still holds it as a pending
// create. The returned document carries the assigned identity. The call
// never waits on the network.
func (h *RestHandler) OnSave(ctx context.Context, collection string, doc models.Document) (models.Document, error) {
	isNew := doc.ID.IsZero()
	if isNew {
		doc.ID = models.NewIdentity()
	}

	state := models.StateUpdateNotTransmitted
	if isNew {
		state = models.StateNeverTransmitted
	}

	if err := h.store.Put(ctx, collection, doc, state); err != nil {
		return doc, fmt.Errorf("persist %s before transmission: %w", doc.ID, err)
	}
	if err := h.store.Commit(ctx); err != nil {
		return doc, fmt.Errorf("commit %s before transmission: %w", doc.ID, err)
	}

	// The stored state decides the verb: a re-saved pending create must
	// still reach the server as a create.
	asCreate := isNew
	if cached, err := h.store.GetByID(ctx, doc.ID); err == nil {
		asCreate = cached.State == models.StateNeverTransmitted
	}

	if asCreate {
		h.collector.EnqueueCreate(collection, doc)
	} else {
		h.collector.EnqueueUpdate(collection, doc)
	}
	return doc, nil
}

// OnDelete queues the remote deletion. The local soft/hard delete has
// already been applied by the caller through the store.
func (h *RestHandler) OnDelete(_ context.Context, collection string, id models.Identity) {
	h.collector.EnqueueDelete(collection, id)
}

// OnGet refreshes the collection from the server and returns the merged
// local view.
//
// The server's deletion timestamp decides the fetch mode: newer than the
// recorded last fetch (or unknown) forces a full fetch so server-side
// deletions can be reconciled by pruning; otherwise only objects modified
// since the last fetch are requested. A transport failure is not fatal:
// cached documents are returned and the fetch window stays unchanged so the
// next attempt covers it again.
func (h *RestHandler) OnGet(ctx context.Context, collection string) ([]models.Document, error) {
	log := logger.FromContext(ctx)

	last, err := h.info.LastModified(ctx, collection)
	if err != nil {
		log.Err(err).Str("func", "RestHandler.OnGet").Str("collection", collection).Msg("failed to read last modified, forcing full fetch")
		last = 0
	}

	deletionTS, deletionKnown := h.deletionTimestamp(ctx, collection)
	full := !deletionKnown || deletionTS > last

	fetchStart := h.now().UnixMilli()

	var resp *rest.Response
	if full {
		resp, err = h.client.Get(ctx, "objects", collection)
	} else {
		query := url.Values{"mtime": {strconv.FormatInt(last, 10)}}
		resp, err = h.client.GetWithQuery(ctx, query, "objects", collection)
	}
	if err != nil || !resp.OK() {
		log.Warn().
			Str("func", "RestHandler.OnGet").
			Str("collection", collection).
			Bool("full", full).
			Msg("collection fetch produced no data, serving cached documents")
		return h.cachedDocuments(ctx, collection)
	}

	docs, err := models.JSONCodec{}.DecodeList(resp.Body)
	if err != nil {
		log.Err(err).Str("func", "RestHandler.OnGet").Str("collection", collection).Msg("failed to decode collection response")
		return h.cachedDocuments(ctx, collection)
	}

	transmitted := models.TransmittedAt(h.now())
	for _, doc := range docs {
		if putErr := h.store.Put(ctx, collection, doc, transmitted); putErr != nil {
			log.Err(putErr).
				Str("func", "RestHandler.OnGet").
				Str("identity", doc.ID.Hex()).
				Msg("failed to merge fetched document")
		}
	}

	if full {
		pruned, pruneErr := h.store.PruneOlderThan(ctx, collection, fetchStart)
		if pruneErr != nil {
			log.Err(pruneErr).Str("func", "RestHandler.OnGet").Str("collection", collection).Msg("failed to prune after full fetch")
		} else if pruned > 0 {
			log.Debug().
				Str("func", "RestHandler.OnGet").
				Str("collection", collection).
				Int64("pruned", pruned).
				Msg("reconciled server-side deletions")
		}
	}

	if err = h.store.Commit(ctx); err != nil {
		log.Err(err).Str("func", "RestHandler.OnGet").Str("collection", collection).Msg("failed to commit merged documents")
	}

	newLast := parseMillis(resp.Header.Get(lastModifiedHeader))
	if deletionKnown && deletionTS > newLast {
		newLast = deletionTS
	}
	if newLast > 0 {
		if infoErr := h.info.SetLastModified(ctx, collection, newLast); infoErr != nil {
			log.Err(infoErr).Str("func", "RestHandler.OnGet").Str("collection", collection).Msg("failed to record last modified")
		} else if commitErr := h.store.Commit(ctx); commitErr != nil {
			log.Err(commitErr).Str("func", "RestHandler.OnGet").Str("collection", collection).Msg("failed to commit last modified")
		}
	}

	return h.cachedDocuments(ctx, collection)
}

// deletionTimestamp asks the server when the collection last saw a delete.
// The second return value is false when the answer is unusable, which
// forces a full fetch.
func (h *RestHandler) deletionTimestamp(ctx context.Context, collection string) (int64, bool) {
	resp, err := h.client.Get(ctx, "meta", collection, "deletion")
	if err != nil || !resp.OK() {
		return 0, false
	}
	ts := parseMillis(string(resp.Body))
	if ts < 0 {
		return 0, false
	}
	return ts, true
}

func parseMillis(s string) int64 {
	ts, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return -1
	}
	return ts
}

func (h *RestHandler) cachedDocuments(ctx context.Context, collection string) ([]models.Document, error) {
	cached, err := h.store.GetAll(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("read cached %s: %w", collection, err)
	}

	docs := make([]models.Document, 0, len(cached))
	for _, c := range cached {
		doc, decErr := c.Document()
		if decErr != nil {
			h.logger.Err(decErr).
				Str("func", "RestHandler.cachedDocuments").
				Str("identity", c.Identity.Hex()).
				Msg("skipping undecodable cached document")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ReplayPending re-enqueues every locally stored change that never reached
// the server. Run once on startup so work done offline is flushed as soon
// as connectivity allows.
func (h *RestHandler) ReplayPending(ctx context.Context) error {
	pending, err := h.store.GetUntransmitted(ctx)
	if err != nil {
		return fmt.Errorf("read untransmitted documents: %w", err)
	}

	for _, entry := range pending {
		switch entry.State {
		case models.StateDeleted:
			h.collector.EnqueueDelete(entry.Collection, entry.Identity)
			continue
		}

		doc, decErr := entry.Document()
		if decErr != nil {
			h.logger.Err(decErr).
				Str("func", "RestHandler.ReplayPending").
				Str("identity", entry.Identity.Hex()).
				Msg("skipping undecodable pending document")
			continue
		}

		switch entry.State {
		case models.StateNeverTransmitted:
			h.collector.EnqueueCreate(entry.Collection, doc)
		case models.StateUpdateNotTransmitted:
			h.collector.EnqueueUpdate(entry.Collection, doc)
		}
	}

	if len(pending) > 0 {
		h.logger.Info().
			Str("func", "RestHandler.ReplayPending").
			Int("count", len(pending)).
			Msg("replaying offline changes")
	}
	return nil
}
