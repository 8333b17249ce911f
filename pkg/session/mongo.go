package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foresttracker/pkg/claims"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoSession struct {
	ID        string    `bson:"_id"`
	Token     string    `bson:"token"`
	User      string    `bson:"user"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("sessions"),
	}
}

// EnsureIndexes lets the server drop expired sessions on its own.
func (r *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (r *MongoStore) Save(ctx context.Context, s *Session) error {
	_, err := r.collection.InsertOne(ctx, mongoSession{
		ID:        s.ID,
		Token:     s.Token,
		User:      s.User,
		Role:      string(s.Role),
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	return err
}

func (r *MongoStore) Get(ctx context.Context, id string) (*Session, error) {
	var doc mongoSession

	err := r.collection.FindOne(ctx, bson.M{
		"_id":       id,
		"expiresAt": bson.M{"$gt": time.Now()},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}

	return &Session{
		ID:        doc.ID,
		Token:     doc.Token,
		User:      doc.User,
		Role:      claims.Role(doc.Role),
		CreatedAt: doc.CreatedAt,
		ExpiresAt: doc.ExpiresAt,
	}, nil
}

func (r *MongoStore) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
