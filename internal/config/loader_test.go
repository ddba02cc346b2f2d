package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/We-are-Humans-Corp/recommendation-service/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Refresh.Workers, convey.ShouldEqual, 4)
				convey.So(cfg.Model.TTL, convey.ShouldEqual, 10*time.Minute)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RECSVC_ADDR", ":9090")
			_ = os.Setenv("RECSVC_LOG_LEVEL", "debug")
			_ = os.Setenv("RECSVC_MODEL__TTL", "90s")
			_ = os.Setenv("RECSVC_MODEL__PER_ALGORITHM", "true")
			_ = os.Setenv("RECSVC_MODEL__KNN__MIN_K", "3")
			_ = os.Setenv("RECSVC_FORMULA__BREAKER__MAX_REQUESTS", "7")
			_ = os.Setenv("RECSVC_FORMULA__UPDATE_INFO_URL", "http://provider/v1/update-info")
			_ = os.Setenv("RECSVC_REFRESH__WORKERS", "16")

			cfg, err := config.Load(ctx)

			convey.Convey("Then nested keys override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.Model.TTL, convey.ShouldEqual, 90*time.Second)
				convey.So(cfg.Model.PerAlgorithm, convey.ShouldBeTrue)
				convey.So(cfg.Model.KNN.MinK, convey.ShouldEqual, 3)
				convey.So(cfg.Model.KNN.K, convey.ShouldEqual, 40)
				convey.So(cfg.Formula.Breaker.MaxRequests, convey.ShouldEqual, uint32(7))
				convey.So(cfg.Formula.UpdateInfoURL, convey.ShouldEqual, "http://provider/v1/update-info")
				convey.So(cfg.Refresh.Workers, convey.ShouldEqual, 16)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":7070"
ratings:
  source: sqlite
  sqlite_path: /tmp/ratings.db
model:
  ttl: 5m
  svd:
    factors: 8
recommend:
  default_algorithm: SVD
`)
			_ = os.Setenv("RECSVC_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values merge with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.Ratings.Source, convey.ShouldEqual, "sqlite")
				convey.So(cfg.Ratings.SQLitePath, convey.ShouldEqual, "/tmp/ratings.db")
				convey.So(cfg.Ratings.Table, convey.ShouldEqual, "post_ratings")
				convey.So(cfg.Model.TTL, convey.ShouldEqual, 5*time.Minute)
				convey.So(cfg.Model.SVD.Factors, convey.ShouldEqual, 8)
				convey.So(cfg.Model.SVD.Epochs, convey.ShouldEqual, 20)
				convey.So(cfg.Recommend.DefaultAlgorithm, convey.ShouldEqual, "SVD")
			})

			convey.Convey("And environment variables override the file", func() {
				_ = os.Setenv("RECSVC_ADDR", ":6060")
				_ = os.Setenv("RECSVC_MODEL__SVD__FACTORS", "12")
				_ = os.Setenv("RECSVC_MODEL__SVD__INIT_MEAN", "0.25")

				cfg, err := config.Load(ctx)

				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.Model.SVD.Factors, convey.ShouldEqual, 12)
				convey.So(cfg.Model.SVD.InitMean, convey.ShouldEqual, 0.25)
				convey.So(cfg.Model.TTL, convey.ShouldEqual, 5*time.Minute)
			})
		})

		convey.Convey("When a .env file is given", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "test.env")
			convey.So(os.WriteFile(path, []byte("RECSVC_ADDR=:5050\nRECSVC_REFRESH__QUEUE_SIZE=64\n"), 0o600), convey.ShouldBeNil)
			_ = os.Setenv("RECSVC_ENV_FILE", path)
			_ = os.Setenv("RECSVC_ADDR", ":4040")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it fills unset variables only", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":4040")
				convey.So(cfg.Refresh.QueueSize, convey.ShouldEqual, 64)
			})
		})

		convey.Convey("When the named .env file does not exist", func() {
			_ = os.Setenv("RECSVC_ENV_FILE", "/non/existent/.env")

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("RECSVC_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("RECSVC_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("RECSVC_REFRESH__QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When the loaded values do not validate", func() {
			_ = os.Setenv("RECSVC_ADDR", "")
			_ = os.Setenv("RECSVC_MODEL__TTL", "0s")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(err.Error(), convey.ShouldContainSubstring, "model.ttl must be positive")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// clearConfigEnvVars unsets every RECSVC_ variable.
func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

// createTempConfigFile writes content to a YAML file removed with the test.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
