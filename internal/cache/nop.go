// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package cache

import (
	"context"

	"github.com/syncbox/syncbox/models"
)

// Nop is the fallback Cache used when the local database cannot be opened.
// Reads report nothing cached, writes succeed silently so the engine keeps
// working network-only for the session.
type Nop struct{}

func (Nop) Put(context.Context, string, models.Document, models.TransmitState) error {
	return nil
}

func (Nop) GetByID(context.Context, models.Identity) (models.CachedDocument, error) {
	return models.CachedDocument{}, ErrNotFound
}

func (Nop) GetAll(context.Context, string) ([]models.CachedDocument, error) {
	return nil, nil
}

func (Nop) GetAllIdentities(context.Context, string) ([]models.Identity, error) {
	return nil, nil
}

func (Nop) GetUntransmitted(context.Context) ([]models.CachedDocument, error) {
	return nil, nil
}

func (Nop) MarkDeleted(context.Context, string, models.Identity) error { return nil }

func (Nop) Delete(context.Context, string, models.Identity) error { return nil }

func (Nop) PruneOlderThan(context.Context, string, int64) (int64, error) { return 0, nil }

func (Nop) Commit(context.Context) error { return nil }

func (Nop) Close() error { return nil }

// NopInformation always reports "never fetched", so every refresh is a full
// fetch when the cache is disabled.
type NopInformation struct{}

func (NopInformation) LastModified(context.Context, string) (int64, error) { return 0, nil }

func (NopInformation) SetLastModified(context.Context, string, int64) error { return nil }

func (NopInformation) ClearAll(context.Context) error { return nil }
