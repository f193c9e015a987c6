package testutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/0m3kk/eventsauce/eventsrc"
	"github.com/0m3kk/eventsauce/memstore"
)

// UsersEntityType is the entity type of User.
const UsersEntityType = "users"

// UserCreated is emitted when a user signs up.
type UserCreated struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (UserCreated) EventType() string  { return "UserCreated" }
func (UserCreated) EntityType() string { return UsersEntityType }

// UserUpdated has the same shape as UserCreated on purpose.
type UserUpdated struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (UserUpdated) EventType() string  { return "UserUpdated" }
func (UserUpdated) EntityType() string { return UsersEntityType }

// UserDeleted is emitted when a user closes their account.
type UserDeleted struct{}

func (UserDeleted) EventType() string  { return "UserDeleted" }
func (UserDeleted) EntityType() string { return UsersEntityType }
func (UserDeleted) IsDeletion() bool   { return true }

// UserPurged is emitted when all data of a user is scrubbed.
type UserPurged struct{}

func (UserPurged) EventType() string  { return "UserPurged" }
func (UserPurged) EntityType() string { return UsersEntityType }

// UserEventData holds one of the user event payloads.
type UserEventData struct {
	V eventsrc.EventData
}

func (d UserEventData) EventType() string           { return d.V.EventType() }
func (UserEventData) EntityType() string            { return UsersEntityType }
func (d UserEventData) Variant() eventsrc.EventData { return d.V }

// MarshalJSON encodes the active variant only.
func (d UserEventData) MarshalJSON() ([]byte, error) { return json.Marshal(d.V) }

// CheckConflict lets creations through and rejects every update or deletion that
// arrives while another event is applied.
func (d UserEventData) CheckConflict(
	applied eventsrc.Event[UserEventData],
) (UserEventData, *eventsrc.ConflictData[UserEventData, UserEventData]) {
	switch d.V.(type) {
	case UserCreated:
		return d, nil
	default:
		conflict := eventsrc.NewConflictData(applied, d)
		return d, &conflict
	}
}

// UserVariants decodes stored user events into UserEventData.
var UserVariants = newUserVariants()

func newUserVariants() *eventsrc.VariantRegistry[UserEventData] {
	r := eventsrc.NewVariantRegistry[UserEventData]()
	eventsrc.RegisterVariant(r, func(v UserCreated) UserEventData { return UserEventData{V: v} })
	eventsrc.RegisterVariant(r, func(v UserUpdated) UserEventData { return UserEventData{V: v} })
	eventsrc.RegisterVariant(r, func(v UserDeleted) UserEventData { return UserEventData{V: v} })
	return r
}

// User is the entity of the test domain.
type User struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Conflicted bool      `json:"conflicted"`
}

func (User) EntityType() string    { return UsersEntityType }
func (u User) EntityID() uuid.UUID { return u.ID }

func (User) TryAggregateCreate(event eventsrc.Event[UserCreated]) (User, error) {
	data, err := event.Payload()
	if err != nil {
		return User{}, err
	}
	return User{ID: event.EntityID, Name: data.Name, Email: data.Email}, nil
}

func (u User) TryAggregateUpdate(event eventsrc.Event[UserUpdated]) (User, error) {
	data, err := event.Payload()
	if err != nil {
		return User{}, err
	}
	u.Name = data.Name
	u.Email = data.Email
	return u, nil
}

func (u User) TryAggregateConflict(
	_ eventsrc.Event[eventsrc.ConflictData[UserEventData, UserEventData]],
) (User, error) {
	u.Conflicted = true
	return u, nil
}

func (User) TryAggregateAction(entity *User, event eventsrc.Event[UserEventData]) (User, error) {
	if event.Data == nil {
		return eventsrc.ActionPurged(entity, event)
	}
	switch event.Data.V.(type) {
	case UserCreated:
		return eventsrc.ActionCreate[UserCreated, User](event)
	case UserUpdated:
		return eventsrc.ActionUpdate[UserUpdated](entity, event)
	case UserDeleted:
		return eventsrc.ActionDelete[UserDeleted](entity, event)
	}
	return User{}, fmt.Errorf("unsupported user event %s", event.EventType)
}

// Persist stores the user in a memstore transaction.
func (u User) Persist(ctx context.Context, tx *memstore.Tx) (User, error) {
	return u, tx.PutEntity(ctx, UsersEntityType, u.ID, u)
}

// Delete removes the user in a memstore transaction.
func (u User) Delete(ctx context.Context, tx *memstore.Tx) error {
	return tx.DeleteEntity(ctx, UsersEntityType, u.ID)
}

// CreateUser builds a user creation pair.
func CreateUser(name, email string) (eventsrc.StorageBuilder[User, UserCreated], error) {
	return eventsrc.TryCreate[User](eventsrc.NewCreateEventBuilder(UserCreated{Name: name, Email: email}))
}
