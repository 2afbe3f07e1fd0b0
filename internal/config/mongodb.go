package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// Enabled reports whether a MongoDB URI was configured. Without one the
// receiver keeps devices and positions in memory.
func (c MongoConfig) Enabled() bool {
	return c.URI != ""
}

func ConnectMongoDB(ctx context.Context, cfg MongoConfig, logger *zap.Logger) (*mongo.Database, error) {
	if cfg.URI == "" {
		return nil, errors.New("MongoDB URI not provided")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, errors.Wrap(err, "connect to MongoDB")
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping MongoDB")
	}

	logger.Info("connected to MongoDB", zap.String("database", cfg.Database))
	return client.Database(cfg.Database), nil
}
