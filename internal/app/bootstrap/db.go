// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/teampulse/internal/app/store/localcache"
	assistantsvc "github.com/dalemusser/teampulse/internal/app/system/assistant"
	"github.com/dalemusser/teampulse/internal/app/system/indexes"
	"github.com/dalemusser/teampulse/internal/app/system/ratelimit"
	"github.com/dalemusser/teampulse/internal/app/system/timeouts"
	"github.com/dalemusser/teampulse/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB connects MongoDB, opens the local cache and builds the
// long-lived helpers that share their lifetime with the connections.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetAppName("teampulse").
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool", appCfg.MongoMaxPoolSize),
		zap.Uint64("min_pool", appCfg.MongoMinPoolSize))

	proxies, err := ratelimit.ParseTrustedProxies(appCfg.TrustedProxies)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("trusted_proxies: %w", err)
	}

	cache, err := localcache.Open(ctx, appCfg.CachePath, logger)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, err
	}

	limiter := ratelimit.NewCodeLimiter()
	limiter.TrustProxies(proxies)

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
		Cache:         cache,
		CodeLimiter:   limiter,
		CachePrune:    workers.NewCachePrune(cache, logger, appCfg.CachePruneInterval, appCfg.CacheInsightsTTL, appCfg.CacheChatTTL),
	}

	if appCfg.AssistantAPIKey == "" {
		logger.Info("assistant disabled: no API key configured")
		return deps, nil
	}
	gen, err := assistantsvc.NewGenAI(ctx, appCfg.AssistantAPIKey, appCfg.AssistantModel)
	if err != nil {
		// The rest of the API works without the assistant.
		logger.Warn("assistant disabled: client init failed", zap.Error(err))
		return deps, nil
	}
	deps.Generator = gen
	return deps, nil
}

// EnsureSchema creates the MongoDB indexes. The unique indexes back the
// one-code-per-team-day and one-check-in-per-user-day rules.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}
