package document

import (
	"context"
	"fmt"

	mongostore "github.com/nimburion/movies/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const mongoIDField = "_id"

// MongoRepository stores T documents in one MongoDB collection. Identifiers
// are ObjectIDs exposed as their hex form; T must not encode its ID field in BSON.
type MongoRepository[T any, PT EntityPtr[T]] struct {
	exec       MongoExecutor
	collection string
}

// NewMongoRepository creates a repository bound to collection.
func NewMongoRepository[T any, PT EntityPtr[T]](exec MongoExecutor, collection string) (*MongoRepository[T, PT], error) {
	if exec == nil {
		return nil, fmt.Errorf("mongodb executor is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	return &MongoRepository[T, PT]{exec: exec, collection: collection}, nil
}

// Create inserts entity under a fresh ObjectID and sets its identifier.
func (r *MongoRepository[T, PT]) Create(ctx context.Context, entity *T) error {
	doc, err := toBSONMap(entity)
	if err != nil {
		return err
	}
	oid := primitive.NewObjectID()
	doc[mongoIDField] = oid

	if _, err := r.exec.InsertOne(ctx, r.collection, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", r.collection, err)
	}
	PT(entity).SetDocumentID(oid.Hex())
	return nil
}

// FindByID loads the document with the given hex identifier.
func (r *MongoRepository[T, PT]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	doc, err := r.exec.FindOne(ctx, r.collection, Filter{mongoIDField: oid})
	if err != nil {
		return nil, err
	}
	return fromBSONMap[T, PT](doc)
}

// FindAll returns the documents selected by opts.
func (r *MongoRepository[T, PT]) FindAll(ctx context.Context, opts QueryOptions) ([]T, error) {
	findOpts := mongostore.FindOptions{
		Skip:  int64(opts.Pagination.Skip()),
		Limit: int64(opts.Pagination.Limit),
	}
	if !opts.Sort.IsZero() {
		direction := 1
		if opts.Sort.Order == SortDesc {
			direction = -1
		}
		findOpts.Sort = bson.D{{Key: mongoField(opts.Sort.Field), Value: direction}}
	}

	docs, err := r.exec.Find(ctx, r.collection, mongoFilter(opts.Filter), findOpts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", r.collection, err)
	}

	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		entity, err := fromBSONMap[T, PT](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *entity)
	}
	return out, nil
}

// Count returns the number of documents matching filter.
func (r *MongoRepository[T, PT]) Count(ctx context.Context, filter Filter) (int64, error) {
	n, err := r.exec.CountDocuments(ctx, r.collection, mongoFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count in %s: %w", r.collection, err)
	}
	return n, nil
}

// Update replaces the stored document. Fields absent from entity are removed.
func (r *MongoRepository[T, PT]) Update(ctx context.Context, entity *T) error {
	oid, err := parseObjectID(PT(entity).DocumentID())
	if err != nil {
		return err
	}
	doc, err := toBSONMap(entity)
	if err != nil {
		return err
	}

	matched, err := r.exec.ReplaceOne(ctx, r.collection, Filter{mongoIDField: oid}, doc)
	if err != nil {
		return fmt.Errorf("replace in %s: %w", r.collection, err)
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document and returns its last stored state.
func (r *MongoRepository[T, PT]) Delete(ctx context.Context, id string) (*T, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	doc, err := r.exec.FindOneAndDelete(ctx, r.collection, Filter{mongoIDField: oid})
	if err != nil {
		return nil, err
	}
	return fromBSONMap[T, PT](doc)
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

func mongoField(field string) string {
	if field == IDField {
		return mongoIDField
	}
	return field
}

func mongoFilter(filter Filter) Filter {
	out := make(Filter, len(filter))
	for k, v := range filter {
		out[mongoField(k)] = v
	}
	return out
}

func toBSONMap(entity interface{}) (map[string]interface{}, error) {
	raw, err := bson.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	doc := bson.M{}
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	delete(doc, mongoIDField)
	return doc, nil
}

func fromBSONMap[T any, PT EntityPtr[T]](doc map[string]interface{}) (*T, error) {
	var id string
	if oid, ok := doc[mongoIDField].(primitive.ObjectID); ok {
		id = oid.Hex()
	}

	raw, err := bson.Marshal(bson.M(doc))
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	entity := new(T)
	if err := bson.Unmarshal(raw, entity); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	PT(entity).SetDocumentID(id)
	return entity, nil
}
