// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

// Package cache is the local document store. Every object the engine knows
// about lives here as an encoded document plus its transmission state, so
// reads never depend on the network and unsynced work survives restarts.
package cache

import (
	"context"
	"errors"

	"github.com/syncbox/syncbox/models"
)

var (
	// ErrNotFound is returned when no document with the requested identity
	// exists locally.
	ErrNotFound = errors.New("document not found in cache")

	// ErrCacheDisabled is returned by the no-op store used when the local
	// database could not be opened.
	ErrCacheDisabled = errors.New("local cache disabled")
)

// Cache stores documents keyed by identity, indexed by collection, each
// carrying a transmission state. Implementations must keep reads consistent
// with preceding writes from the same process even before Commit.
type Cache interface {
	// Put upserts the document under the given collection with the requested
	// state and a fresh local updated-at timestamp. A document still in
	// StateNeverTransmitted keeps that state when StateUpdateNotTransmitted
	// is requested, so the pending create is not misreported as an update.
	Put(ctx context.Context, collection string, doc models.Document, state models.TransmitState) error

	// GetByID returns the stored document regardless of its state, or
	// ErrNotFound.
	GetByID(ctx context.Context, id models.Identity) (models.CachedDocument, error)

	// GetAll returns every document of the collection except those marked
	// StateDeleted.
	GetAll(ctx context.Context, collection string) ([]models.CachedDocument, error)

	// GetAllIdentities is GetAll restricted to the identity column.
	GetAllIdentities(ctx context.Context, collection string) ([]models.Identity, error)

	// GetUntransmitted returns every document across all collections whose
	// state still owes the server a call.
	GetUntransmitted(ctx context.Context) ([]models.CachedDocument, error)

	// MarkDeleted records a local deletion: a never-transmitted document is
	// removed outright, anything else is kept with StateDeleted until the
	// server acknowledges.
	MarkDeleted(ctx context.Context, collection string, id models.Identity) error

	// Delete removes the document unconditionally.
	Delete(ctx context.Context, collection string, id models.Identity) error

	// PruneOlderThan removes transmitted documents of the collection whose
	// local timestamp is older than ts (milliseconds). Documents in a
	// sentinel state are never pruned. Returns the number removed.
	PruneOlderThan(ctx context.Context, collection string, ts int64) (int64, error)

	// Commit makes all preceding writes durable.
	Commit(ctx context.Context) error

	Close() error
}

// Information tracks per-collection sync bookkeeping, currently the highest
// server modification timestamp seen.
type Information interface {
	// LastModified returns the recorded timestamp for the collection, 0 when
	// the collection has never been fetched.
	LastModified(ctx context.Context, collection string) (int64, error)

	// SetLastModified records the timestamp for the collection.
	SetLastModified(ctx context.Context, collection string, ts int64) error

	// ClearAll forgets all recorded timestamps, forcing full fetches.
	ClearAll(ctx context.Context) error
}
