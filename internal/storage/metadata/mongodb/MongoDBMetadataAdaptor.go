// Package metadata_mongodb persists study configurations in MongoDB: one
// document per study in "study_configurations" and the advisory lock state
// in "study_locks".
package metadata_mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nicholsn/opencga/internal/common"
	"github.com/nicholsn/opencga/internal/storage/metadata"
)

const pollInterval = 100 * time.Millisecond

// MongoDBMetadataAdaptor implements metadata.Adaptor.
type MongoDBMetadataAdaptor struct {
	client  *mongo.Client
	configs *mongo.Collection
	locks   *mongo.Collection
}

// NewMongoDBMetadataAdaptor connects and prepares the unique indexes the
// lock protocol relies on.
func NewMongoDBMetadataAdaptor(ctx context.Context, uri, database string) (*MongoDBMetadataAdaptor, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}
	db := client.Database(database)
	a := &MongoDBMetadataAdaptor{
		client:  client,
		configs: db.Collection("study_configurations"),
		locks:   db.Collection("study_locks"),
	}
	unique := options.Index().SetUnique(true)
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique},
	}
	if _, err := a.configs.Indexes().CreateMany(ctx, models); err != nil {
		return nil, fmt.Errorf("error creating study configuration indexes: %w", err)
	}
	lockModels := []mongo.IndexModel{{Keys: bson.D{{Key: "studyId", Value: 1}}, Options: unique}}
	if _, err := a.locks.Indexes().CreateMany(ctx, lockModels); err != nil {
		return nil, fmt.Errorf("error creating study lock index: %w", err)
	}
	return a, nil
}

func (a *MongoDBMetadataAdaptor) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

func (a *MongoDBMetadataAdaptor) Get(ctx context.Context, studyID int, cachedTimestamp int64) (*metadata.StudyConfiguration, error) {
	return a.get(ctx, bson.M{"id": studyID}, cachedTimestamp)
}

func (a *MongoDBMetadataAdaptor) GetByName(ctx context.Context, name string, cachedTimestamp int64) (*metadata.StudyConfiguration, error) {
	return a.get(ctx, bson.M{"name": name}, cachedTimestamp)
}

// get skips deserialization when the stored timestamp still matches the
// cached one: the caller's cache is current.
func (a *MongoDBMetadataAdaptor) get(ctx context.Context, filter bson.M, cachedTimestamp int64) (*metadata.StudyConfiguration, error) {
	if cachedTimestamp != 0 {
		current := bson.M{"timestamp": cachedTimestamp}
		for k, v := range filter {
			current[k] = v
		}
		n, err := a.configs.CountDocuments(ctx, current)
		if err != nil {
			return nil, common.NewInternalServerError(err, "error checking the study configuration timestamp")
		}
		if n > 0 {
			return nil, nil
		}
	}
	var config metadata.StudyConfiguration
	err := a.configs.FindOne(ctx, filter).Decode(&config)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.NewErrNotFound("study configuration not found")
	}
	if err != nil {
		return nil, common.NewInternalServerError(err, "error reading the study configuration")
	}
	return &config, nil
}

func (a *MongoDBMetadataAdaptor) Update(ctx context.Context, config *metadata.StudyConfiguration) error {
	config.Timestamp = time.Now().UnixNano()
	_, err := a.configs.ReplaceOne(ctx, bson.M{"id": config.ID}, config, options.Replace().SetUpsert(true))
	if err != nil {
		return common.NewInternalServerError(err, "error writing the study configuration")
	}
	return nil
}

type lockDocument struct {
	StudyID int       `bson:"studyId"`
	Token   string    `bson:"token"`
	Expires time.Time `bson:"expires"`
}

// LockStudy claims the study's lock document, polling until it is free or
// expired. Mutual exclusion holds across every process sharing the
// deployment because the claim is a single conditional upsert.
func (a *MongoDBMetadataAdaptor) LockStudy(ctx context.Context, studyID int, duration, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		token, ok, err := a.tryLock(ctx, studyID, duration)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", common.NewErrTimeout("could not acquire the lock on study %d within %s", studyID, timeout)
		}
		select {
		case <-ctx.Done():
			return "", common.NewErrTimeout("lock acquisition on study %d cancelled", studyID)
		case <-time.After(pollInterval):
		}
	}
}

func (a *MongoDBMetadataAdaptor) tryLock(ctx context.Context, studyID int, duration time.Duration) (string, bool, error) {
	token := uuid.NewString()
	now := time.Now()
	// Claim the document only when it is free (absent) or expired. The
	// unique studyId index turns concurrent claims into write conflicts.
	filter := bson.M{"studyId": studyID, "expires": bson.M{"$lt": now}}
	update := bson.M{"$set": bson.M{"token": token, "expires": now.Add(duration)}, "$setOnInsert": bson.M{"studyId": studyID}}
	res, err := a.locks.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", false, nil
		}
		return "", false, common.NewInternalServerError(err, "error acquiring the lock on study %d", studyID)
	}
	if res.ModifiedCount == 0 && res.UpsertedCount == 0 {
		return "", false, nil
	}
	return token, true, nil
}

func (a *MongoDBMetadataAdaptor) UnlockStudy(ctx context.Context, studyID int, token string) error {
	_, err := a.locks.DeleteOne(ctx, bson.M{"studyId": studyID, "token": token})
	if err != nil {
		return common.NewInternalServerError(err, "error releasing the lock on study %d", studyID)
	}
	return nil
}
