// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// State represents an OAuth2 state token stored for CSRF protection.
// Abandoned states are removed by the TTL index on expires_at.
type State struct {
	State       string    `bson:"state"`
	RedirectURI string    `bson:"redirect_uri,omitempty"` // app deep link that receives the token
	ExpiresAt   time.Time `bson:"expires_at"`
	CreatedAt   time.Time `bson:"created_at"`
}

// Store manages OAuth2 state tokens in MongoDB.
type Store struct {
	c *mongo.Collection
}

// New creates a new OAuth state Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("oauth_states")}
}

// Save stores a state token with the given expiration time.
func (s *Store) Save(ctx context.Context, state, redirectURI string, expiresAt time.Time) error {
	_, err := s.c.InsertOne(ctx, State{
		State:       state,
		RedirectURI: redirectURI,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now().UTC(),
	})
	return err
}

// Consume checks that a state token exists and has not expired, deleting it
// so it cannot be replayed. valid is false for unknown or expired states.
func (s *Store) Consume(ctx context.Context, state string) (redirectURI string, valid bool, err error) {
	var st State
	err = s.c.FindOneAndDelete(ctx, bson.M{
		"state":      state,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&st)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return st.RedirectURI, true, nil
}
