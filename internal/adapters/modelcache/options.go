package modelcache

import (
	"time"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/model"
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/ratingmodel"
	"github.com/We-are-Humans-Corp/recommendation-service/pkg/logger"
)

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithTTL sets how long a built model stays fresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPerAlgorithm keeps one model per algorithm instead of a single shared
// model that is rebuilt whenever the requested algorithm changes.
func WithPerAlgorithm(enabled bool) Option {
	return func(c *Cache) {
		c.perAlgorithm = enabled
	}
}

// WithScale sets the rating scale of the training data.
func WithScale(s model.Scale) Option {
	return func(c *Cache) {
		if s.Validate() == nil {
			c.scale = s
		}
	}
}

// WithModelConfig sets the algorithm parameters.
func WithModelConfig(cfg ratingmodel.Config) Option {
	return func(c *Cache) {
		c.modelCfg = cfg
	}
}

// WithFactory replaces ratingmodel.New.
func WithFactory(f Factory) Option {
	return func(c *Cache) {
		if f != nil {
			c.factory = f
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}
