package store

import (
	"context"
	stderrors "errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cartwright/pkg/errors"
)

const jobCollection = "jobs"

// MongoStore persists jobs in a MongoDB collection so they survive server
// restarts and can be shared across replicas. Artifacts are stored inline
// in the job document, which caps them at MongoDB's 16 MiB document limit.
//
// TODO: move artifacts to GridFS so they can exceed the document cap.
type MongoStore struct {
	client *mongo.Client
	jobs   *mongo.Collection
}

// NewMongoStore connects to the MongoDB instance at uri and prepares the
// job collection, including a TTL index on the expiry field.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "ping mongodb")
	}

	jobs := client.Database(database).Collection(jobCollection)

	// expireAfterSeconds 0 deletes documents as soon as expires_at passes.
	_, err = jobs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create job ttl index")
	}

	return &MongoStore{client: client, jobs: jobs}, nil
}

// Get retrieves a job. The TTL monitor only runs periodically, so expiry
// is checked here as well.
func (m *MongoStore) Get(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := m.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&job)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load job %s", id)
	}
	if job.IsExpired() {
		return nil, ErrNotFound
	}
	return &job, nil
}

// Put stores or replaces a job.
func (m *MongoStore) Put(ctx context.Context, job *Job) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := m.jobs.ReplaceOne(ctx, bson.M{"_id": job.ID}, job, opts); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "store job %s", job.ID)
	}
	return nil
}

// Delete removes a job.
func (m *MongoStore) Delete(ctx context.Context, id string) error {
	if _, err := m.jobs.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete job %s", id)
	}
	return nil
}

// Cleanup is a no-op; the TTL index reaps expired documents.
func (m *MongoStore) Cleanup(ctx context.Context) error {
	return nil
}

// Close disconnects from MongoDB.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
