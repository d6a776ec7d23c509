package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	mongoIDField        = "_id"
	mongoCreatedAtField = "_created_ms"
	mongoUpdatedAtField = "_updated_ms"
	userIndexName       = "userId_idx"
)

var errMissingMongoDatabase = errors.New("store: mongo database is required")

// MongoStoreConfig describes the dependencies of the MongoDB document store.
type MongoStoreConfig struct {
	Database   *mongo.Database
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// MongoStore maps each store collection onto a MongoDB collection with _id as the document id.
type MongoStore struct {
	db         *mongo.Database
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewMongoStore validates the configuration and returns a store bound to the database.
func NewMongoStore(cfg MongoStoreConfig) (*MongoStore, error) {
	if cfg.Database == nil {
		return nil, errMissingMongoDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoStore{
		db:         cfg.Database,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger.With(zap.String("store", "mongo")),
	}, nil
}

// EnsureIndexes creates the userId lookup index on each collection when it is missing.
func (s *MongoStore) EnsureIndexes(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		if err := ValidateCollection(name); err != nil {
			return err
		}
		coll := s.db.Collection(name)
		exists, err := indexExists(ctx, coll, userIndexName)
		if err != nil {
			return fmt.Errorf("store: list indexes for %s: %w", name, err)
		}
		if exists {
			continue
		}
		model := mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: mongoCreatedAtField, Value: 1}},
			Options: options.Index().SetName(userIndexName),
		}
		if _, err := coll.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("store: create index on %s: %w", name, err)
		}
		s.logger.Info("index created", zap.String("collection", name), zap.String("index", userIndexName))
	}
	return nil
}

func indexExists(ctx context.Context, coll *mongo.Collection, name string) (bool, error) {
	cursor, err := coll.Indexes().List(ctx)
	if err != nil {
		return false, err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var index bson.M
		if err := cursor.Decode(&index); err != nil {
			return false, err
		}
		if indexName, ok := index["name"].(string); ok && indexName == name {
			return true, nil
		}
	}
	return false, cursor.Err()
}

func (s *MongoStore) Insert(ctx context.Context, collection, id string, fields Fields) (string, error) {
	if err := ValidateCollection(collection); err != nil {
		return "", err
	}
	if id == "" {
		generated, err := s.idProvider.NewID()
		if err != nil {
			return "", fmt.Errorf("store: generate id: %w", err)
		}
		id = generated
	}
	if err := ValidateDocumentID(id); err != nil {
		return "", err
	}
	nowMillis := s.clock().UTC().UnixMilli()
	document := bson.M{}
	for key, value := range fields {
		document[key] = value
	}
	document[mongoIDField] = id
	document[mongoCreatedAtField] = nowMillis
	document[mongoUpdatedAtField] = nowMillis

	if _, err := s.db.Collection(collection).InsertOne(ctx, document); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: %s/%s", ErrDuplicateDocument, collection, id)
		}
		s.logger.Debug("insert failed", zap.String("collection", collection), zap.String("document_id", id), zap.Error(err))
		return "", fmt.Errorf("store: insert %s/%s: %w", collection, id, err)
	}
	return id, nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return Document{}, err
	}
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{mongoIDField: id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	return decodeBSON(collection, raw), nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}
	filter := bson.D{}
	for _, item := range filters {
		filter = append(filter, bson.E{Key: item.Field, Value: item.Value})
	}
	opts := options.Find().SetSort(bson.D{{Key: mongoCreatedAtField, Value: 1}, {Key: mongoIDField, Value: 1}})
	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	documents := make([]Document, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", collection, err)
		}
		documents = append(documents, decodeBSON(collection, raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("store: query %s: %w", collection, err)
	}
	return documents, nil
}

func (s *MongoStore) QueryOne(ctx context.Context, collection string, filters ...Filter) (*Document, error) {
	documents, err := s.Query(ctx, collection, filters...)
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		return nil, nil
	}
	return &documents[0], nil
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, fields Fields, merge bool) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	if err := ValidateDocumentID(id); err != nil {
		return err
	}
	nowMillis := s.clock().UTC().UnixMilli()
	coll := s.db.Collection(collection)

	if merge {
		set := bson.M{mongoUpdatedAtField: nowMillis}
		for key, value := range fields {
			set[key] = value
		}
		update := bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{mongoCreatedAtField: nowMillis},
		}
		if _, err := coll.UpdateOne(ctx, bson.M{mongoIDField: id}, update, options.Update().SetUpsert(true)); err != nil {
			return fmt.Errorf("store: set %s/%s: %w", collection, id, err)
		}
		return nil
	}

	createdAt := nowMillis
	var existing bson.M
	err := coll.FindOne(ctx, bson.M{mongoIDField: id}, options.FindOne().SetProjection(bson.M{mongoCreatedAtField: 1})).Decode(&existing)
	if err == nil {
		if value, ok := existing[mongoCreatedAtField].(int64); ok {
			createdAt = value
		}
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("store: set %s/%s: %w", collection, id, err)
	}
	replacement := bson.M{}
	for key, value := range fields {
		replacement[key] = value
	}
	replacement[mongoCreatedAtField] = createdAt
	replacement[mongoUpdatedAtField] = nowMillis
	if _, err := coll.ReplaceOne(ctx, bson.M{mongoIDField: id}, replacement, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("store: set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if err := ValidateCollection(collection); err != nil {
		return err
	}
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{mongoIDField: id}); err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func decodeBSON(collection string, raw bson.M) Document {
	document := Document{Collection: collection, Fields: Fields{}}
	for key, value := range raw {
		switch key {
		case mongoIDField:
			document.ID = fmt.Sprint(value)
		case mongoCreatedAtField:
			document.CreatedAtMillis, _ = value.(int64)
		case mongoUpdatedAtField:
			document.UpdatedAtMillis, _ = value.(int64)
		default:
			document.Fields[key] = normalizeBSON(value)
		}
	}
	return document
}

func normalizeBSON(value any) any {
	switch typed := value.(type) {
	case primitive.A:
		items := make([]any, 0, len(typed))
		for _, item := range typed {
			items = append(items, normalizeBSON(item))
		}
		return items
	case bson.M:
		nested := make(map[string]any, len(typed))
		for key, item := range typed {
			nested[key] = normalizeBSON(item)
		}
		return nested
	case bson.D:
		nested := make(map[string]any, len(typed))
		for _, element := range typed {
			nested[element.Key] = normalizeBSON(element.Value)
		}
		return nested
	case int32:
		return int64(typed)
	default:
		return value
	}
}
