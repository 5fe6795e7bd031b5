// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package manager

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/syncbox/syncbox/internal/cache"
	"github.com/syncbox/syncbox/internal/config"
	"github.com/syncbox/syncbox/internal/logger"
	"github.com/syncbox/syncbox/internal/rest"
	"github.com/syncbox/syncbox/models"
)

// ErrNeverSaved is returned by Delete for an object that was never saved
// through this engine and therefore has no identity.
var ErrNeverSaved = errors.New("object has no assigned identity")

// Manager is the engine's entry point: one long-lived object owning the
// local store, the transport, the call collector, the sync handler and the
// background jobs. Construct it once with New and pass it to all callers.
//
// Callers hand in pointers to their own types; the manager assigns
// identities on first save and recognizes the same pointer on later saves.
type Manager struct {
	cfg        *config.StructuredConfig
	logger     *logger.Logger
	store      cache.Cache
	info       cache.Information
	identities models.IdentityCache
	codec      models.Codec
	collector  *CallCollector
	handler    *RestHandler
	listeners  *ListenerManager
	push       *PushManager
	job        *syncJob
}

// New builds and starts the engine. A local store that cannot be opened is
// replaced by a no-op cache so remote sync keeps working without local
// persistence; any offline changes found in the store are replayed in the
// background.
func New(cfg *config.StructuredConfig, log *logger.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("nil configuration")
	}
	if log == nil {
		log = logger.Nop()
	}

	m := &Manager{
		cfg:        cfg,
		logger:     log,
		identities: models.NewIdentityCache(),
		codec:      models.JSONCodec{},
	}

	ctx := log.WithContext(context.Background())

	store, err := cache.Open(ctx, cfg.Storage.CacheDir, log)
	if err != nil {
		log.Warn().Err(err).Str("func", "manager.New").Msg("local cache unavailable, running network-only")
		m.store = cache.Nop{}
		m.info = cache.NopInformation{}
	} else {
		m.store = store
		m.info = store
	}

	raw := rest.NewClient(rest.ClientConfig{
		BaseURL: cfg.Server.BaseURL,
		Timeout: cfg.Server.RequestTimeout,
	})
	repeating := rest.NewRepeatingClient(raw, rest.RepeatingConfig{
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Attempts:     cfg.Retry.Attempts,
	}, log)

	m.collector = NewCallCollector(repeating, m.store, CollectorConfig{
		Limit:        cfg.Collector.Limit,
		Window:       cfg.Collector.Window,
		FetchRecheck: cfg.Collector.FetchRecheck,
	}, log)
	m.handler = NewRestHandler(repeating, m.store, m.info, m.collector, log)
	m.listeners = NewListenerManager()
	m.push = NewPushManager(repeating, cfg.Push.RegistrationID, func() {
		m.refreshSubscribed(ctx)
	}, log)
	m.job = newSyncJob(m.refreshSubscribed)

	go func() {
		if replayErr := m.handler.ReplayPending(ctx); replayErr != nil {
			log.Err(replayErr).Str("func", "manager.New").Msg("offline replay sweep failed")
		}
	}()

	if cfg.Workers.SyncInterval > 0 {
		m.job.Start(ctx, cfg.Workers.SyncInterval)
	}

	return m, nil
}

// Push returns the push manager for host platform integration.
func (m *Manager) Push() *PushManager {
	return m.push
}

// Save persists obj locally and queues its transmission. The first save of
// a pointer assigns an identity; subsequent saves of the same pointer are
// updates. Never blocks on the network.
func (m *Manager) Save(ctx context.Context, obj any) error {
	collection, err := collectionName(obj)
	if err != nil {
		return err
	}

	data, err := m.codec.Encode(obj)
	if err != nil {
		return err
	}

	var doc models.Document
	doc.Data = data
	if id, known := m.identities.Lookup(obj); known {
		doc.ID = id
	}

	saved, err := m.handler.OnSave(ctx, collection, doc)
	if err != nil {
		return err
	}
	m.identities.Bind(obj, saved.ID)
	return nil
}

// SaveAll saves every object, continuing past individual failures and
// returning them joined.
func (m *Manager) SaveAll(ctx context.Context, objs ...any) error {
	var errs []error
	for _, obj := range objs {
		if err := m.Save(ctx, obj); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes obj locally (immediately) and queues the remote deletion.
// Returns ErrNeverSaved when obj has no identity.
func (m *Manager) Delete(ctx context.Context, obj any) error {
	id, known := m.identities.Lookup(obj)
	if !known {
		return ErrNeverSaved
	}
	collection, err := collectionName(obj)
	if err != nil {
		return err
	}

	if err = m.store.MarkDeleted(ctx, collection, id); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return fmt.Errorf("mark %s deleted: %w", id, err)
	}
	if err = m.store.Commit(ctx); err != nil {
		return fmt.Errorf("commit deletion of %s: %w", id, err)
	}

	m.handler.OnDelete(ctx, collection, id)
	m.identities.Forget(obj)
	return nil
}

// refreshSubscribed refreshes every collection with listeners, collapsing
// onto refreshes already in flight, and notifies listeners afterwards.
func (m *Manager) refreshSubscribed(ctx context.Context) {
	for _, collection := range m.listeners.Collections() {
		m.listeners.Refresh(collection, func() {
			if _, err := m.handler.OnGet(ctx, collection); err != nil {
				m.logger.Err(err).
					Str("func", "Manager.refreshSubscribed").
					Str("collection", collection).
					Msg("background refresh failed")
				return
			}
			m.listeners.Notify(collection)
		})
	}
}

// Close stops the background jobs, flushes nothing further, and closes the
// store. Queued work that never flushed is still in the store as
// untransmitted and will replay on next start.
func (m *Manager) Close() error {
	m.job.Stop()
	m.collector.Close()
	return m.store.Close()
}

// collectionName derives the collection from the object's type: the
// fully-qualified type name, pointers dereferenced.
func collectionName(obj any) (string, error) {
	t := reflect.TypeOf(obj)
	if t == nil {
		return "", errors.New("nil object has no collection")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "", fmt.Errorf("unnamed type %s cannot form a collection", t)
	}
	if t.PkgPath() == "" {
		return t.Name(), nil
	}
	return t.PkgPath() + "." + t.Name(), nil
}

// collectionOf is collectionName for a type parameter.
func collectionOf[T any]() (string, error) {
	return collectionName((*T)(nil))
}

// Find returns one object by identity: from the local store when cached,
// otherwise through a collapsed server fetch. Blocks until the result is
// available or ctx is done.
func Find[T any](ctx context.Context, m *Manager, id models.Identity) (*T, error) {
	if cached, err := m.store.GetByID(ctx, id); err == nil && cached.State != models.StateDeleted {
		doc, decErr := cached.Document()
		if decErr != nil {
			return nil, decErr
		}
		return decodeInto[T](m, doc)
	}

	collection, err := collectionOf[T]()
	if err != nil {
		return nil, err
	}
	doc, err := m.collector.FetchByID(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	return decodeInto[T](m, doc)
}

// FindAll returns a lazy list over the collection of T, built from cached
// identities immediately while a background refresh runs. When onUpdate is
// non-nil it is subscribed for the collection: every completed refresh
// hands it a freshly built list until the returned unsubscribe function is
// called.
func FindAll[T any](ctx context.Context, m *Manager, onUpdate func(*LazyList[*T])) (*LazyList[*T], func(), error) {
	collection, err := collectionOf[T]()
	if err != nil {
		return nil, nil, err
	}

	list, err := buildList[T](ctx, m, collection)
	if err != nil {
		return nil, nil, err
	}

	unsubscribe := func() {}
	if onUpdate != nil {
		unsubscribe = m.listeners.Subscribe(collection, func() {
			fresh, buildErr := buildList[T](context.Background(), m, collection)
			if buildErr != nil {
				m.logger.Err(buildErr).
					Str("func", "manager.FindAll").
					Str("collection", collection).
					Msg("failed to rebuild list after refresh")
				return
			}
			onUpdate(fresh)
		})
	}

	go m.listeners.Refresh(collection, func() {
		if _, getErr := m.handler.OnGet(logger.FromContext(ctx).WithContext(context.Background()), collection); getErr != nil {
			m.logger.Err(getErr).
				Str("func", "manager.FindAll").
				Str("collection", collection).
				Msg("collection refresh failed")
			return
		}
		m.listeners.Notify(collection)
	})

	return list, unsubscribe, nil
}

func buildList[T any](ctx context.Context, m *Manager, collection string) (*LazyList[*T], error) {
	ids, err := m.store.GetAllIdentities(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list identities of %s: %w", collection, err)
	}

	resolve := func(id models.Identity) (*T, bool) {
		cached, getErr := m.store.GetByID(context.Background(), id)
		if getErr != nil {
			return nil, false
		}
		doc, decErr := cached.Document()
		if decErr != nil {
			return nil, false
		}
		v, decodeErr := decodeInto[T](m, doc)
		if decodeErr != nil {
			return nil, false
		}
		return v, true
	}

	hooks := ListHooks[*T]{
		Save: func(v *T) {
			if saveErr := m.Save(context.Background(), v); saveErr != nil {
				m.logger.Err(saveErr).Str("func", "manager.buildList").Msg("auto-save failed")
			}
		},
		Delete: func(id models.Identity, v *T, resolved bool) {
			if resolved && v != nil {
				if delErr := m.Delete(context.Background(), v); delErr != nil {
					m.logger.Err(delErr).Str("func", "manager.buildList").Msg("auto-delete failed")
				}
				return
			}
			if id.IsZero() {
				return
			}
			bg := context.Background()
			if markErr := m.store.MarkDeleted(bg, collection, id); markErr != nil && !errors.Is(markErr, cache.ErrNotFound) {
				m.logger.Err(markErr).Str("func", "manager.buildList").Msg("auto-delete failed to mark")
				return
			}
			if commitErr := m.store.Commit(bg); commitErr != nil {
				m.logger.Err(commitErr).Str("func", "manager.buildList").Msg("auto-delete failed to commit")
				return
			}
			m.handler.OnDelete(bg, collection, id)
		},
	}

	return NewLazyList(ids, resolve, hooks, m.cfg.List.AutoSave), nil
}

func decodeInto[T any](m *Manager, doc models.Document) (*T, error) {
	v := new(T)
	if err := m.codec.Decode(doc.Data, v); err != nil {
		return nil, err
	}
	m.identities.Bind(v, doc.ID)
	return v, nil
}
