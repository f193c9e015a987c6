package eventsrc_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0m3kk/eventsauce/eventsrc"
	"github.com/0m3kk/eventsauce/memstore"
	"github.com/0m3kk/eventsauce/testutil"
)

func TestRepository_LoadReplaysHistory(t *testing.T) {
	// GIVEN
	ctx := context.Background()
	store := memstore.New()

	created, err := testutil.CreateUser("ann", "ann@example.com")
	require.NoError(t, err)
	user, err := eventsrc.Persist[*memstore.Tx](ctx, store, created)
	require.NoError(t, err)

	updated, err := eventsrc.TryUpdate(user, eventsrc.NewUpdateEventBuilder(testutil.UserUpdated{Name: "bob", Email: "bob@example.com"}))
	require.NoError(t, err)
	_, err = eventsrc.Persist[*memstore.Tx](ctx, store, updated)
	require.NoError(t, err)

	repo := eventsrc.NewRepository[testutil.User](store, testutil.UserVariants)

	// WHEN
	loaded, err := repo.Load(ctx, user.ID)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, testutil.User{ID: user.ID, Name: "bob", Email: "bob@example.com"}, loaded)
}

func TestRepository_LoadUnknownEntity(t *testing.T) {
	repo := eventsrc.NewRepository[testutil.User](memstore.New(), testutil.UserVariants)

	_, err := repo.Load(context.Background(), uuid.New())

	assert.ErrorIs(t, err, eventsrc.ErrEntityNotFound)
}

func TestRepository_LoadPurgedEntity(t *testing.T) {
	// GIVEN
	ctx := context.Background()
	store := memstore.New()

	created, err := testutil.CreateUser("ann", "ann@example.com")
	require.NoError(t, err)
	user, err := eventsrc.Persist[*memstore.Tx](ctx, store, created)
	require.NoError(t, err)

	purge := eventsrc.TryPurge(user, eventsrc.NewPurgeEventBuilder(testutil.UserPurged{}))
	require.NoError(t, eventsrc.Purge[*memstore.Tx](ctx, store, purge))

	repo := eventsrc.NewRepository[testutil.User](store, testutil.UserVariants)

	// WHEN
	_, err = repo.Load(ctx, user.ID)

	// THEN
	assert.ErrorIs(t, err, eventsrc.ErrEntityNotFound)
	_, ok := store.Entity(testutil.UsersEntityType, user.ID)
	assert.False(t, ok)
}

func TestReplay_PurgedUpdateKeepsState(t *testing.T) {
	userID := uuid.New()
	created := eventsrc.NewCreateEventBuilder(testutil.UserCreated{Name: "ann"}).EntityID(userID).Build()
	createdDB, err := eventsrc.ToDBEvent(created)
	require.NoError(t, err)

	purgedUpdate := eventsrc.DBEvent{ID: uuid.New(), EventType: "UserUpdated", EntityType: testutil.UsersEntityType, EntityID: userID}

	entity, err := eventsrc.Replay[testutil.User]([]eventsrc.DBEvent{createdDB, purgedUpdate}, testutil.UserVariants)

	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, "ann", entity.Name)
}

func TestRepository_LoadDeletedEntity(t *testing.T) {
	// GIVEN
	ctx := context.Background()
	store := memstore.New()

	created, err := testutil.CreateUser("ann", "ann@example.com")
	require.NoError(t, err)
	user, err := eventsrc.Persist[*memstore.Tx](ctx, store, created)
	require.NoError(t, err)

	deleted, err := eventsrc.TryDelete(user, eventsrc.NewDeleteEventBuilder(testutil.UserDeleted{}))
	require.NoError(t, err)
	require.NoError(t, eventsrc.Delete[*memstore.Tx](ctx, store, deleted))

	repo := eventsrc.NewRepository[testutil.User](store, testutil.UserVariants)

	// WHEN
	_, err = repo.Load(ctx, user.ID)

	// THEN
	assert.ErrorIs(t, err, eventsrc.ErrEntityNotFound)
	_, ok := store.Entity(testutil.UsersEntityType, user.ID)
	assert.False(t, ok)
}

func TestReplay_RecreatesAfterDeletion(t *testing.T) {
	userID := uuid.New()
	history := make([]eventsrc.DBEvent, 0, 3)
	for _, data := range []testutil.UserEventData{
		{V: testutil.UserCreated{Name: "ann"}},
		{V: testutil.UserDeleted{}},
		{V: testutil.UserCreated{Name: "bob"}},
	} {
		e := eventsrc.NewCreateEventBuilder(data).EntityID(userID).Build()
		db, err := eventsrc.ToDBEvent(e)
		require.NoError(t, err)
		history = append(history, db)
	}

	entity, err := eventsrc.Replay[testutil.User](history[:2], testutil.UserVariants)
	require.NoError(t, err)
	assert.Nil(t, entity)

	entity, err = eventsrc.Replay[testutil.User](history, testutil.UserVariants)
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, "bob", entity.Name)
}

func TestRepository_LoadEntityWithConflict(t *testing.T) {
	// GIVEN
	ctx := context.Background()
	store := memstore.New()

	created, err := eventsrc.TryAction[testutil.User](
		eventsrc.NewActionEventBuilder(testutil.UserEventData{V: testutil.UserCreated{Name: "ann", Email: "ann@example.com"}}), nil)
	require.NoError(t, err)
	user, err := eventsrc.Persist[*memstore.Tx](ctx, store, created)
	require.NoError(t, err)

	checked, err := eventsrc.TryActionChecked(&user, created.Event,
		eventsrc.NewActionEventBuilder(testutil.UserEventData{V: testutil.UserUpdated{Name: "bob", Email: "bob@example.com"}}))
	require.NoError(t, err)
	require.True(t, checked.Conflicted())
	_, err = eventsrc.PersistChecked[*memstore.Tx](ctx, store, checked)
	require.NoError(t, err)

	repo := eventsrc.NewRepository[testutil.User](store, testutil.UserVariants)

	// WHEN
	loaded, err := repo.Load(ctx, user.ID)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, testutil.User{ID: user.ID, Name: "ann", Email: "ann@example.com", Conflicted: true}, loaded)

	history, err := store.LoadEvents(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, eventsrc.ConflictEventType, history[1].EventType)

	conflict, err := eventsrc.DecodeConflict(history[1], testutil.UserVariants)
	require.NoError(t, err)
	require.NotNil(t, conflict.Data)
	assert.Equal(t, created.Event.ID, conflict.Data.AppliedEvent.ID)
	require.NotNil(t, conflict.Data.AppliedEvent.Data)
	assert.Equal(t, testutil.UserCreated{Name: "ann", Email: "ann@example.com"}, conflict.Data.AppliedEvent.Data.V)
	assert.Equal(t, testutil.UserUpdated{Name: "bob", Email: "bob@example.com"}, conflict.Data.ConflictingEventData.V)

	_, err = eventsrc.FromDBEvent[eventsrc.ConflictData[testutil.UserEventData, testutil.UserEventData]](history[1])
	assert.ErrorIs(t, err, eventsrc.ErrConversion)
}

func TestReplay_PurgedConflictKeepsState(t *testing.T) {
	userID := uuid.New()
	created := eventsrc.NewCreateEventBuilder(testutil.UserCreated{Name: "ann"}).EntityID(userID).Build()
	createdDB, err := eventsrc.ToDBEvent(created)
	require.NoError(t, err)

	purgedConflict := eventsrc.DBEvent{ID: uuid.New(), EventType: eventsrc.ConflictEventType, EntityType: testutil.UsersEntityType, EntityID: userID}

	entity, err := eventsrc.Replay[testutil.User]([]eventsrc.DBEvent{createdDB, purgedConflict}, testutil.UserVariants)

	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.False(t, entity.Conflicted)
}
