package eventsrc_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0m3kk/eventsauce/eventsrc"
	"github.com/0m3kk/eventsauce/testutil"
)

func TestDBEvent_RoundTrip(t *testing.T) {
	// GIVEN
	event := eventsrc.NewCreateEventBuilder(testutil.UserCreated{Name: "ann", Email: "ann@example.com"}).
		SessionID(uuid.New()).
		Build()

	// WHEN
	dbEvent, err := eventsrc.ToDBEvent(event)
	require.NoError(t, err)
	decoded, err := eventsrc.FromDBEvent[testutil.UserCreated](dbEvent)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, event, decoded)
	assert.JSONEq(t, `{"name":"ann","email":"ann@example.com"}`, string(dbEvent.Data))
}

func TestDBEvent_PurgedRoundTrip(t *testing.T) {
	event := eventsrc.NewPurgeEventBuilder(testutil.UserPurged{}).SessionID(uuid.New()).BuildWithEntityID(uuid.New())

	dbEvent, err := eventsrc.ToDBEvent(event)
	require.NoError(t, err)
	decoded, err := eventsrc.FromDBEvent[testutil.UserPurged](dbEvent)

	require.NoError(t, err)
	assert.True(t, dbEvent.IsPurged())
	assert.Nil(t, dbEvent.Data)
	assert.Equal(t, event, decoded)
}

func TestDBEvent_IsPurgedOnNullData(t *testing.T) {
	assert.True(t, eventsrc.DBEvent{Data: json.RawMessage("null")}.IsPurged())
	assert.True(t, eventsrc.DBEvent{}.IsPurged())
	assert.False(t, eventsrc.DBEvent{Data: json.RawMessage("{}")}.IsPurged())
}

func TestFromDBEvent_RejectsMismatchedEventType(t *testing.T) {
	event := eventsrc.NewCreateEventBuilder(testutil.UserCreated{Name: "ann"}).Build()
	dbEvent, err := eventsrc.ToDBEvent(event)
	require.NoError(t, err)

	_, err = eventsrc.FromDBEvent[testutil.UserUpdated](dbEvent)

	require.ErrorIs(t, err, eventsrc.ErrConversion)
	var conversion *eventsrc.ConversionError
	require.ErrorAs(t, err, &conversion)
	assert.Equal(t, "DBEvent", conversion.From)
}

func TestFromDBEvent_RejectsMismatchedShape(t *testing.T) {
	dbEvent := eventsrc.DBEvent{
		ID:        uuid.New(),
		EventType: "UserCreated",
		EntityID:  uuid.New(),
		Data:      json.RawMessage(`{"name": 42}`),
	}

	_, err := eventsrc.FromDBEvent[testutil.UserCreated](dbEvent)

	assert.ErrorIs(t, err, eventsrc.ErrConversion)
}

func TestFromDBEvent_RejectsEnumPayloads(t *testing.T) {
	dbEvent := eventsrc.DBEvent{EventType: "UserCreated", Data: json.RawMessage(`{}`)}

	_, err := eventsrc.FromDBEvent[testutil.UserEventData](dbEvent)

	assert.ErrorIs(t, err, eventsrc.ErrConversion)
}

func TestEnumFromDBEvent_DispatchesOnEventType(t *testing.T) {
	// GIVEN
	// UserCreated and UserUpdated share a JSON shape; only the tag tells them apart.
	user := testutil.User{ID: uuid.New()}
	event := eventsrc.NewActionEventBuilder(testutil.UserEventData{V: testutil.UserUpdated{Name: "bob"}}).Build(user)

	// WHEN
	dbEvent, err := eventsrc.ToDBEvent(event)
	require.NoError(t, err)
	decoded, err := eventsrc.EnumFromDBEvent(dbEvent, testutil.UserVariants)

	// THEN
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"bob","email":""}`, string(dbEvent.Data))
	assert.Equal(t, "UserUpdated", dbEvent.EventType)
	require.NotNil(t, decoded.Data)
	assert.IsType(t, testutil.UserUpdated{}, decoded.Data.V)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, user.ID, decoded.EntityID)
}

func TestEnumFromDBEvent_UnknownTag(t *testing.T) {
	dbEvent := eventsrc.DBEvent{ID: uuid.New(), EventType: "UserRenamed", Data: json.RawMessage(`{}`)}

	_, err := eventsrc.EnumFromDBEvent(dbEvent, testutil.UserVariants)

	assert.ErrorIs(t, err, eventsrc.ErrConversion)
	assert.ErrorIs(t, err, eventsrc.ErrUnknownEventType)
}

func TestEnumFromDBEvent_PurgedEventHasNoPayload(t *testing.T) {
	dbEvent := eventsrc.DBEvent{ID: uuid.New(), EventType: "UserRenamed"}

	decoded, err := eventsrc.EnumFromDBEvent(dbEvent, testutil.UserVariants)

	require.NoError(t, err)
	assert.Nil(t, decoded.Data)
}

func TestIntoVariant(t *testing.T) {
	event := eventsrc.NewActionEventBuilder(testutil.UserEventData{V: testutil.UserCreated{Name: "ann"}}).Build(nil)

	created, err := eventsrc.IntoVariant[testutil.UserCreated](event)
	require.NoError(t, err)
	require.NotNil(t, created.Data)
	assert.Equal(t, "ann", created.Data.Name)
	assert.Equal(t, event.ID, created.ID)

	_, err = eventsrc.IntoVariant[testutil.UserUpdated](event)
	assert.ErrorIs(t, err, eventsrc.ErrConversion)
}

func TestVariantRegistry(t *testing.T) {
	assert.Equal(t, []string{"UserCreated", "UserDeleted", "UserUpdated"}, testutil.UserVariants.EventTypes())

	assert.Panics(t, func() {
		eventsrc.RegisterVariant(testutil.UserVariants, func(v testutil.UserCreated) testutil.UserEventData {
			return testutil.UserEventData{V: v}
		})
	})
}
