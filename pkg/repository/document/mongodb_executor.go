package document

import (
	"context"
	"errors"
	"fmt"

	mongostore "github.com/nimburion/movies/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoExecutor defines a minimal document execution contract for MongoDB-backed repositories.
// Single-document reads return ErrNotFound when nothing matches.
type MongoExecutor interface {
	InsertOne(ctx context.Context, collection string, document map[string]interface{}) (interface{}, error)
	FindOne(ctx context.Context, collection string, filter Filter) (map[string]interface{}, error)
	Find(ctx context.Context, collection string, filter Filter, opts mongostore.FindOptions) ([]map[string]interface{}, error)
	CountDocuments(ctx context.Context, collection string, filter Filter) (int64, error)
	ReplaceOne(ctx context.Context, collection string, filter Filter, replacement map[string]interface{}) (int64, error)
	FindOneAndDelete(ctx context.Context, collection string, filter Filter) (map[string]interface{}, error)
}

// MongoDBExecutor adapts store/mongodb adapter to the repository/document executor contract.
type MongoDBExecutor struct {
	adapter *mongostore.Adapter
}

// NewMongoDBExecutor creates a new MongoDBExecutor instance.
func NewMongoDBExecutor(adapter *mongostore.Adapter) (*MongoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	return &MongoDBExecutor{adapter: adapter}, nil
}

// InsertOne inserts a document into the collection.
func (e *MongoDBExecutor) InsertOne(ctx context.Context, collection string, document map[string]interface{}) (interface{}, error) {
	result, err := e.adapter.InsertOne(ctx, collection, bson.M(document))
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

// FindOne finds a single document matching the filter.
func (e *MongoDBExecutor) FindOne(ctx context.Context, collection string, filter Filter) (map[string]interface{}, error) {
	out := bson.M{}
	if err := e.adapter.FindOne(ctx, collection, bson.M(filter), &out); err != nil {
		return nil, translateMongoError(err)
	}
	return map[string]interface{}(out), nil
}

// Find returns every document matching the filter within the window in opts.
func (e *MongoDBExecutor) Find(ctx context.Context, collection string, filter Filter, opts mongostore.FindOptions) ([]map[string]interface{}, error) {
	var out []bson.M
	if err := e.adapter.Find(ctx, collection, bson.M(filter), opts, &out); err != nil {
		return nil, err
	}
	docs := make([]map[string]interface{}, 0, len(out))
	for _, d := range out {
		docs = append(docs, map[string]interface{}(d))
	}
	return docs, nil
}

// CountDocuments counts documents matching the filter.
func (e *MongoDBExecutor) CountDocuments(ctx context.Context, collection string, filter Filter) (int64, error) {
	return e.adapter.CountDocuments(ctx, collection, bson.M(filter))
}

// ReplaceOne replaces a single document and reports how many matched.
func (e *MongoDBExecutor) ReplaceOne(ctx context.Context, collection string, filter Filter, replacement map[string]interface{}) (int64, error) {
	result, err := e.adapter.ReplaceOne(ctx, collection, bson.M(filter), bson.M(replacement))
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

// FindOneAndDelete deletes a single document and returns it.
func (e *MongoDBExecutor) FindOneAndDelete(ctx context.Context, collection string, filter Filter) (map[string]interface{}, error) {
	out := bson.M{}
	if err := e.adapter.FindOneAndDelete(ctx, collection, bson.M(filter), &out); err != nil {
		return nil, translateMongoError(err)
	}
	return map[string]interface{}(out), nil
}

func translateMongoError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
