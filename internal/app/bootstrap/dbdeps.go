// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/teampulse/internal/app/store/localcache"
	assistantsvc "github.com/dalemusser/teampulse/internal/app/system/assistant"
	"github.com/dalemusser/teampulse/internal/app/system/ratelimit"
	"github.com/dalemusser/teampulse/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Cache is the local SQLite store for insights and chat history.
	Cache *localcache.Cache

	// CodeLimiter throttles join-code and attendance-code guesses.
	CodeLimiter *ratelimit.CodeLimiter

	CachePrune *workers.CachePrune

	// Generator is nil when no assistant API key is configured.
	Generator assistantsvc.Generator
}
