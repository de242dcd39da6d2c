package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jhaldar/sprout/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStorage is a MongoDB-backed implementation of StorageInterface.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new MongoStorage instance. It does not connect;
// call Connect on the returned instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

// Connect establishes a connection to the MongoDB server at the given URI and
// sets up the indexes the data model relies on. The unique compound index on
// dayRecords is what enforces the one-record-per-(profile, child, date)
// invariant; everything above the store assumes it holds.
func (m *MongoStorage) Connect(dbName, uri string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	m.client = client
	m.dbName = dbName

	accounts := m.client.Database(m.dbName).Collection("accounts")

	// Every account has a unique email and username.
	for _, field := range []string{"email", "username"} {
		model := mongo.IndexModel{
			Keys:    bson.M{field: 1},
			Options: options.Index().SetUnique(true),
		}
		if _, err := accounts.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("error creating %s index: %v", field, err)
		}
	}

	profiles := m.client.Database(m.dbName).Collection("profiles")

	accountIndexModel := mongo.IndexModel{
		Keys:    bson.M{"account_id": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err := profiles.Indexes().CreateOne(ctx, accountIndexModel); err != nil {
		return fmt.Errorf("error creating account_id index: %v", err)
	}

	dayRecords := m.client.Database(m.dbName).Collection("dayRecords")

	// The composite key is the record's sole identity.
	recordKeyIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "profile_id", Value: 1},
			{Key: "child_id", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err := dayRecords.Indexes().CreateOne(ctx, recordKeyIndexModel); err != nil {
		return fmt.Errorf("error creating day record key index: %v", err)
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
func (m *MongoStorage) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}
	return nil
}

// AddAccount adds a new account document to the 'accounts' collection.
func (m *MongoStorage) AddAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	collection := m.client.Database(m.dbName).Collection("accounts")
	result, err := collection.InsertOne(ctx, account)
	if err != nil {
		var writeException mongo.WriteException
		if errors.As(err, &writeException) {
			for _, writeError := range writeException.WriteErrors {
				if writeError.Code == 11000 {
					return nil, errors.New("an account with this email or username already exists")
				}
			}
		}
		return nil, err
	}
	account.ID = result.InsertedID.(primitive.ObjectID)
	return account, nil
}

// FindAccount finds an account document matching the given filter.
func (m *MongoStorage) FindAccount(ctx context.Context, filter interface{}) (*models.Account, error) {
	collection := m.client.Database(m.dbName).Collection("accounts")
	account := &models.Account{}
	if err := collection.FindOne(ctx, filter).Decode(account); err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccount updates an account document matching the given filter with
// the provided update and returns the updated account.
func (m *MongoStorage) UpdateAccount(ctx context.Context, filter interface{}, update interface{}) (*models.Account, error) {
	collection := m.client.Database(m.dbName).Collection("accounts")
	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, errors.New("no account found to update")
	}
	return m.FindAccount(ctx, filter)
}

// AddProfile adds a new profile document to the 'profiles' collection. A
// profile must carry at least one child and an owning account.
func (m *MongoStorage) AddProfile(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	if profile.AccountID.IsZero() || len(profile.Children) == 0 {
		return nil, errors.New("invalid profile fields")
	}
	collection := m.client.Database(m.dbName).Collection("profiles")
	result, err := collection.InsertOne(ctx, profile)
	if err != nil {
		return nil, err
	}
	profile.ID = result.InsertedID.(primitive.ObjectID)
	return profile, nil
}

// FindProfile finds a profile document matching the given filter.
func (m *MongoStorage) FindProfile(ctx context.Context, filter interface{}) (*models.Profile, error) {
	collection := m.client.Database(m.dbName).Collection("profiles")
	profile := &models.Profile{}
	if err := collection.FindOne(ctx, filter).Decode(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// ReplaceProfile replaces the profile document matching the filter with the
// given value. The replacement must still carry at least one child.
func (m *MongoStorage) ReplaceProfile(ctx context.Context, filter interface{}, profile *models.Profile) (*models.Profile, error) {
	if len(profile.Children) == 0 {
		return nil, errors.New("a profile must keep at least one child")
	}
	collection := m.client.Database(m.dbName).Collection("profiles")
	result, err := collection.ReplaceOne(ctx, filter, profile)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, errors.New("profile does not exist")
	}
	return profile, nil
}

// FindDayRecords finds day record documents matching the given filter.
func (m *MongoStorage) FindDayRecords(ctx context.Context, filter interface{}) ([]models.DayRecord, error) {
	collection := m.client.Database(m.dbName).Collection("dayRecords")
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.DayRecord
	for cursor.Next(ctx) {
		var record models.DayRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, cursor.Err()
}

// SetPoint sets one behavior's value on the (profile, child, date) record
// with a field-level upsert. The record is created lazily on the first toggle
// for that pair and amended in place afterwards; concurrent writers merge at
// the field level, last write wins. Values are clamped to {-1, 0, +1} before
// they reach the store.
func (m *MongoStorage) SetPoint(ctx context.Context, profileID primitive.ObjectID, childID, date, behaviorID string, value int) (*models.DayRecord, error) {
	if childID == "" || behaviorID == "" {
		return nil, errors.New("child and behavior are required")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if value > 1 {
		value = 1
	} else if value < -1 {
		value = -1
	}

	filter := bson.M{
		"profile_id": profileID,
		"child_id":   childID,
		"date":       date,
	}
	update := bson.M{
		"$set": bson.M{"points." + behaviorID: value},
	}

	collection := m.client.Database(m.dbName).Collection("dayRecords")
	if _, err := collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return nil, err
	}

	record := &models.DayRecord{}
	if err := collection.FindOne(ctx, filter).Decode(record); err != nil {
		return nil, err
	}
	return record, nil
}

// snapshotDayRecords reads the complete set of day records for a profile and
// wraps it as one identified snapshot.
func (m *MongoStorage) snapshotDayRecords(ctx context.Context, profileID primitive.ObjectID) (models.Snapshot, error) {
	records, err := m.FindDayRecords(ctx, bson.M{"profile_id": profileID})
	if err != nil {
		return models.Snapshot{}, err
	}
	return models.Snapshot{
		ID:        uuid.New(),
		ProfileID: profileID,
		Records:   records,
		At:        time.Now().UTC(),
	}, nil
}

// SubscribeDayRecords opens a change stream on the profile's day records and
// delivers a complete snapshot of the collection for every change, starting
// with one initial snapshot. The channel has capacity one and a stale pending
// snapshot is dropped before a newer one is queued, so a slow consumer always
// receives the most recent state (last-snapshot-wins). Cancelling the context
// closes the stream and the channel.
func (m *MongoStorage) SubscribeDayRecords(ctx context.Context, profileID primitive.ObjectID) (<-chan models.Snapshot, error) {
	collection := m.client.Database(m.dbName).Collection("dayRecords")

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"fullDocument.profile_id": profileID}}},
	}
	stream, err := collection.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("error opening day record change stream: %w", err)
	}

	out := make(chan models.Snapshot, 1)

	send := func(snap models.Snapshot) {
		// Drop a stale pending snapshot so the buffer always holds the newest.
		select {
		case <-out:
		default:
		}
		select {
		case out <- snap:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		snap, err := m.snapshotDayRecords(ctx, profileID)
		if err != nil {
			log.Printf("error reading initial day record snapshot: %v", err)
			return
		}
		send(snap)

		for stream.Next(ctx) {
			snap, err := m.snapshotDayRecords(ctx, profileID)
			if err != nil {
				log.Printf("error reading day record snapshot: %v", err)
				continue
			}
			send(snap)
		}
		if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("day record change stream closed: %v", err)
		}
	}()

	return out, nil
}
