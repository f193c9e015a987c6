package eventsrc_test

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/0m3kk/eventsauce/eventsrc"
)

// fakeStore is a transactional store that records every call made against it.
type fakeStore struct {
	calls     []string
	commits   int
	rollbacks int

	events   []eventsrc.DBEvent
	accounts map[uuid.UUID]account

	failEntity error
	failCommit error
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: map[uuid.UUID]account{}}
}

func (s *fakeStore) Begin(_ context.Context) (*fakeTx, error) {
	s.calls = append(s.calls, "begin")
	return &fakeTx{store: s, accounts: map[uuid.UUID]*account{}}, nil
}

type purge struct {
	entityID uuid.UUID
	at       time.Time
	purgerID uuid.NullUUID
}

type fakeTx struct {
	store    *fakeStore
	events   []eventsrc.DBEvent
	accounts map[uuid.UUID]*account // nil value marks a deletion
	purges   []purge
	seq      int64
}

func (tx *fakeTx) InsertEvent(_ context.Context, e eventsrc.DBEvent) (eventsrc.DBEvent, error) {
	tx.store.calls = append(tx.store.calls, "insert_event:"+e.EventType)
	tx.seq++
	seq := int64(len(tx.store.events)) + tx.seq
	e.SequenceNumber = &seq
	tx.events = append(tx.events, e)
	return e, nil
}

func (tx *fakeTx) PurgeEntityEvents(_ context.Context, entityID uuid.UUID, at time.Time, purgerID uuid.NullUUID) error {
	tx.store.calls = append(tx.store.calls, "purge_events")
	tx.purges = append(tx.purges, purge{entityID: entityID, at: at, purgerID: purgerID})
	return nil
}

func (tx *fakeTx) DeleteEntity(_ context.Context, entityType string, entityID uuid.UUID) error {
	tx.store.calls = append(tx.store.calls, "delete_entity:"+entityType)
	tx.accounts[entityID] = nil
	return nil
}

func (tx *fakeTx) Commit(_ context.Context) error {
	tx.store.calls = append(tx.store.calls, "commit")
	if tx.store.failCommit != nil {
		return tx.store.failCommit
	}
	tx.store.commits++

	for _, p := range tx.purges {
		for i := range tx.store.events {
			if tx.store.events[i].EntityID == p.entityID {
				at := p.at
				tx.store.events[i].Data = nil
				tx.store.events[i].PurgedAt = &at
				tx.store.events[i].PurgerID = p.purgerID
			}
		}
	}
	tx.store.events = append(tx.store.events, tx.events...)
	for id, a := range tx.accounts {
		if a == nil {
			delete(tx.store.accounts, id)
			continue
		}
		tx.store.accounts[id] = *a
	}
	return nil
}

func (tx *fakeTx) Rollback(_ context.Context) error {
	tx.store.calls = append(tx.store.calls, "rollback")
	tx.store.rollbacks++
	return nil
}

var errEntityWrite = errors.New("entity write failed")

const accountsEntityType = "accounts"

type accountOpened struct {
	Owner string `json:"owner"`
}

func (accountOpened) EventType() string  { return "AccountOpened" }
func (accountOpened) EntityType() string { return accountsEntityType }

// ownerChanged records the id of the event it was based on; it conflicts when a
// different event has been applied in the meantime. Accepted owners are trimmed.
type ownerChanged struct {
	Owner   string    `json:"owner"`
	BasedOn uuid.UUID `json:"based_on"`
}

func (ownerChanged) EventType() string  { return "OwnerChanged" }
func (ownerChanged) EntityType() string { return accountsEntityType }

func (c ownerChanged) CheckConflict(
	applied eventsrc.Event[ownerChanged],
) (ownerChanged, *eventsrc.ConflictData[ownerChanged, ownerChanged]) {
	if applied.ID == c.BasedOn {
		c.Owner = strings.TrimSpace(c.Owner)
		return c, nil
	}
	conflict := eventsrc.NewConflictData(applied, c)
	return c, &conflict
}

type accountClosed struct{}

func (accountClosed) EventType() string  { return "AccountClosed" }
func (accountClosed) EntityType() string { return accountsEntityType }

type account struct {
	ID         uuid.UUID
	Owner      string
	Closed     bool
	Conflicted bool
}

func (account) EntityType() string    { return accountsEntityType }
func (a account) EntityID() uuid.UUID { return a.ID }

func (account) TryAggregateCreate(e eventsrc.Event[accountOpened]) (account, error) {
	data, err := e.Payload()
	if err != nil {
		return account{}, err
	}
	return account{ID: e.EntityID, Owner: data.Owner}, nil
}

func (a account) TryAggregateUpdate(e eventsrc.Event[ownerChanged]) (account, error) {
	data, err := e.Payload()
	if err != nil {
		return account{}, err
	}
	a.Owner = data.Owner
	return a, nil
}

func (a account) TryAggregateDelete(_ eventsrc.Event[accountClosed]) (account, error) {
	a.Closed = true
	return a, nil
}

func (a account) TryAggregateConflict(_ eventsrc.Event[eventsrc.ConflictData[ownerChanged, ownerChanged]]) (account, error) {
	a.Conflicted = true
	return a, nil
}

func (a account) Persist(_ context.Context, tx *fakeTx) (account, error) {
	tx.store.calls = append(tx.store.calls, "persist_entity")
	if tx.store.failEntity != nil {
		return account{}, tx.store.failEntity
	}
	tx.accounts[a.ID] = &a
	return a, nil
}

func (a account) Delete(_ context.Context, tx *fakeTx) error {
	tx.store.calls = append(tx.store.calls, "delete_entity")
	tx.accounts[a.ID] = nil
	return nil
}

// triggered records trigger invocations of account.
var triggered []string

func (a account) OnCreated(_ context.Context) error {
	triggered = append(triggered, "created:"+a.Owner)
	return nil
}

func (a account) OnUpdated(_ context.Context) error {
	triggered = append(triggered, "updated:"+a.Owner)
	if a.Owner == "mallory" {
		return errors.New("owner rejected")
	}
	return nil
}
