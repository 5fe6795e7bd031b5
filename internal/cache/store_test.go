package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncbox/syncbox/internal/logger"
	"github.com/syncbox/syncbox/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), t.TempDir(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument(t *testing.T) models.Document {
	t.Helper()
	return models.Document{ID: models.NewIdentity(), Data: json.RawMessage(`{"v":1}`)}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	doc := testDocument(t)

	require.NoError(t, store.Put(ctx, "notes", doc, models.StateNeverTransmitted))

	cached, err := store.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, cached.Identity)
	assert.Equal(t, "notes", cached.Collection)
	assert.Equal(t, models.StateNeverTransmitted, cached.State)

	decoded, err := cached.Document()
	require.NoError(t, err)
	assert.JSONEq(t, string(doc.Data), string(decoded.Data))
}

func TestStore_GetByID_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByID(context.Background(), models.NewIdentity())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Put_RejectsMissingIdentity(t *testing.T) {
	store := newTestStore(t)

	err := store.Put(context.Background(), "notes", models.Document{Data: json.RawMessage(`{}`)}, models.StateNeverTransmitted)
	assert.Error(t, err)
}

func TestStore_Put_PendingCreateStaysCreate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	doc := testDocument(t)

	require.NoError(t, store.Put(ctx, "notes", doc, models.StateNeverTransmitted))
	require.NoError(t, store.Put(ctx, "notes", doc, models.StateUpdateNotTransmitted))

	cached, err := store.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateNeverTransmitted, cached.State,
		"a local edit before first transmission must not turn the pending create into an update")
}

func TestStore_Put_TransmittedBecomesUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	doc := testDocument(t)

	require.NoError(t, store.Put(ctx, "notes", doc, models.TransmittedAt(time.Now())))
	require.NoError(t, store.Put(ctx, "notes", doc, models.StateUpdateNotTransmitted))

	cached, err := store.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateUpdateNotTransmitted, cached.State)
}

func TestStore_GetAll_ExcludesDeleted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	kept := testDocument(t)
	deleted := testDocument(t)
	require.NoError(t, store.Put(ctx, "notes", kept, models.TransmittedAt(time.Now())))
	require.NoError(t, store.Put(ctx, "notes", deleted, models.TransmittedAt(time.Now())))
	require.NoError(t, store.MarkDeleted(ctx, "notes", deleted.ID))

	docs, err := store.GetAll(ctx, "notes")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, kept.ID, docs[0].Identity)

	ids, err := store.GetAllIdentities(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, []models.Identity{kept.ID}, ids)
}

func TestStore_MarkDeleted_NeverTransmittedIsRemoved(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	doc := testDocument(t)

	require.NoError(t, store.Put(ctx, "notes", doc, models.StateNeverTransmitted))
	require.NoError(t, store.MarkDeleted(ctx, "notes", doc.ID))

	_, err := store.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MarkDeleted_TransmittedIsRetained(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	doc := testDocument(t)

	require.NoError(t, store.Put(ctx, "notes", doc, models.TransmittedAt(time.Now())))
	require.NoError(t, store.MarkDeleted(ctx, "notes", doc.ID))

	cached, err := store.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDeleted, cached.State)
}

func TestStore_MarkDeleted_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.MarkDeleted(context.Background(), "notes", models.NewIdentity())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetUntransmitted(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	create := testDocument(t)
	update := testDocument(t)
	remove := testDocument(t)
	synced := testDocument(t)

	require.NoError(t, store.Put(ctx, "notes", create, models.StateNeverTransmitted))
	require.NoError(t, store.Put(ctx, "tags", update, models.StateUpdateNotTransmitted))
	require.NoError(t, store.Put(ctx, "notes", remove, models.TransmittedAt(time.Now())))
	require.NoError(t, store.MarkDeleted(ctx, "notes", remove.ID))
	require.NoError(t, store.Put(ctx, "notes", synced, models.TransmittedAt(time.Now())))

	docs, err := store.GetUntransmitted(ctx)
	require.NoError(t, err)

	states := map[models.Identity]models.TransmitState{}
	for _, d := range docs {
		states[d.Identity] = d.State
	}
	assert.Equal(t, map[models.Identity]models.TransmitState{
		create.ID: models.StateNeverTransmitted,
		update.ID: models.StateUpdateNotTransmitted,
		remove.ID: models.StateDeleted,
	}, states)
}

func TestStore_PruneOlderThan_ProtectsUnsynced(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Now()
	store.now = func() time.Time { return base }

	oldSynced := testDocument(t)
	oldPendingCreate := testDocument(t)
	oldPendingDelete := testDocument(t)
	require.NoError(t, store.Put(ctx, "notes", oldSynced, models.TransmittedAt(base)))
	require.NoError(t, store.Put(ctx, "notes", oldPendingCreate, models.StateNeverTransmitted))
	require.NoError(t, store.Put(ctx, "notes", oldPendingDelete, models.TransmittedAt(base)))
	require.NoError(t, store.MarkDeleted(ctx, "notes", oldPendingDelete.ID))

	store.now = func() time.Time { return base.Add(time.Minute) }
	fresh := testDocument(t)
	require.NoError(t, store.Put(ctx, "notes", fresh, models.TransmittedAt(base.Add(time.Minute))))

	pruned, err := store.PruneOlderThan(ctx, "notes", base.Add(30*time.Second).UnixMilli())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	_, err = store.GetByID(ctx, oldSynced.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, id := range []models.Identity{oldPendingCreate.ID, oldPendingDelete.ID, fresh.ID} {
		_, err = store.GetByID(ctx, id)
		assert.NoError(t, err, "identity %s must survive the prune", id)
	}
}

func TestStore_CommitIsTheDurabilityPoint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := Open(ctx, dir, logger.Nop())
	require.NoError(t, err)

	committed := testDocument(t)
	discarded := testDocument(t)
	require.NoError(t, store.Put(ctx, "notes", committed, models.StateNeverTransmitted))
	require.NoError(t, store.Commit(ctx))
	require.NoError(t, store.Put(ctx, "notes", discarded, models.StateNeverTransmitted))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, dir, logger.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.GetByID(ctx, committed.ID)
	assert.NoError(t, err)
	_, err = reopened.GetByID(ctx, discarded.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpen_RecoversFromCorruptDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, databaseFile), []byte("definitely not sqlite"), 0o600))

	store, err := Open(ctx, dir, logger.Nop())
	require.NoError(t, err)
	defer store.Close()

	doc := testDocument(t)
	require.NoError(t, store.Put(ctx, "notes", doc, models.StateNeverTransmitted))
}

func TestStore_LastModified(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ts, err := store.LastModified(ctx, "notes")
	require.NoError(t, err)
	assert.Zero(t, ts, "never fetched collection reports 0")

	require.NoError(t, store.SetLastModified(ctx, "notes", 1700000000000))
	require.NoError(t, store.SetLastModified(ctx, "notes", 1700000005000))

	ts, err = store.LastModified(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000005000), ts)

	require.NoError(t, store.ClearAll(ctx))
	ts, err = store.LastModified(ctx, "notes")
	require.NoError(t, err)
	assert.Zero(t, ts)
}

func TestStore_Put_ExecError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT state FROM documents").WillReturnError(errors.New("disk I/O error"))

	store := NewStoreWithDB(db, logger.Nop())
	err = store.Put(context.Background(), "notes", models.Document{ID: models.NewIdentity(), Data: json.RawMessage(`{}`)}, models.StateNeverTransmitted)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Commit_NothingPending(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Commit(context.Background()))
}
