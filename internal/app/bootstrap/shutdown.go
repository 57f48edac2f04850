// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work and tears down the cache and MongoDB
// connections, in that order.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.CachePrune != nil {
		deps.CachePrune.Stop()
	}
	if deps.CodeLimiter != nil {
		deps.CodeLimiter.Stop()
	}
	if deps.Cache != nil {
		if err := deps.Cache.Close(); err != nil {
			logger.Warn("local cache close failed", zap.Error(err))
		}
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
