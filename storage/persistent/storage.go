package storage

import (
	"context"
	"fmt"

	"github.com/jhaldar/sprout/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StorageInterface defines the set of methods any persistent storage backend
// needs to implement. All entities are owned by the store; the application
// only ever holds transient, derived projections of them.
type StorageInterface interface {
	// Establishes a connection to the storage backend and sets up indexes.
	Connect(dbName, uri string) error
	// Disconnects from the storage backend.
	Disconnect() error
	// Adds a new parent account.
	AddAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	// Finds a parent account using a filter.
	FindAccount(ctx context.Context, filter interface{}) (*models.Account, error)
	// Updates a parent account using a filter and update instructions.
	UpdateAccount(ctx context.Context, filter interface{}, update interface{}) (*models.Account, error)
	// Adds a new family profile.
	AddProfile(ctx context.Context, profile *models.Profile) (*models.Profile, error)
	// Finds a family profile using a filter.
	FindProfile(ctx context.Context, filter interface{}) (*models.Profile, error)
	// Replaces a family profile wholesale. Profile edits are built as new
	// immutable values and persisted with a full document replace.
	ReplaceProfile(ctx context.Context, filter interface{}, profile *models.Profile) (*models.Profile, error)
	// Finds day records using a filter.
	FindDayRecords(ctx context.Context, filter interface{}) ([]models.DayRecord, error)
	// Sets one behavior's point value on the (profile, child, date) record,
	// creating the record if it does not exist yet.
	SetPoint(ctx context.Context, profileID primitive.ObjectID, childID, date, behaviorID string, value int) (*models.DayRecord, error)
	// Subscribes to the profile's day records: the returned channel yields a
	// complete snapshot of the collection whenever any record changes, until
	// the context is cancelled.
	SubscribeDayRecords(ctx context.Context, profileID primitive.ObjectID) (<-chan models.Snapshot, error)
}

// NewStorage creates a StorageInterface with a MongoDB backend, using the
// provided URI to connect to the MongoDB server.
func NewStorage(dbName, uri string) (StorageInterface, error) {
	store := NewMongoStorage()
	if err := store.Connect(dbName, uri); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}
