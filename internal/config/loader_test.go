package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/posfit/internal/config"
)

func TestConfigLoader(t *testing.T) {
	clearEnv()
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		convey.Reset(clearEnv)

		convey.Convey("When loading config with defaults only", func() {
			setEnv(config.EnvConfigPath, "")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Database.QueryTimeout, convey.ShouldEqual, 5*time.Second)
		})

		convey.Convey("When loading config with environment variables", func() {
			setEnv("POSFIT_ADDR", ":8080")
			setEnv("POSFIT_WORKER_COUNT", "16")
			setEnv("POSFIT_QUEUE_SIZE", "100")
			setEnv("POSFIT_DATABASE__DRIVER", "sqlite")
			setEnv("POSFIT_DATABASE__DSN", "/tmp/posfit.db")
			setEnv("POSFIT_REFERENCE__POSITIVE_ONLY", "true")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 100)
			convey.So(cfg.Database.Driver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.Database.DSN, convey.ShouldEqual, "/tmp/posfit.db")
			convey.So(cfg.Reference.PositiveOnly, convey.ShouldBeTrue)
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfig(t, `
addr: ":9090"
worker_count: 3
log_format: text
reference:
  csv_dir: ./training
  top_n: 12
database:
  driver: postgres
  dsn: postgres://localhost/posfit
  query_timeout: 2s
goalkeeper:
  enabled: true
`)
			setEnv(config.EnvConfigPath, path)

			convey.Convey("Then file values apply", func() {
				cfg, err := config.Load(ctx)

				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
				convey.So(cfg.Reference.CSVDir, convey.ShouldEqual, "./training")
				convey.So(cfg.Reference.TopN, convey.ShouldEqual, 12)
				convey.So(cfg.Database.Driver, convey.ShouldEqual, "postgres")
				convey.So(cfg.Database.QueryTimeout, convey.ShouldEqual, 2*time.Second)
				convey.So(cfg.Goalkeeper.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 4096)
			})

			convey.Convey("And environment variables override the file", func() {
				setEnv("POSFIT_WORKER_COUNT", "7")

				cfg, err := config.Load(ctx)

				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When the file is missing", func() {
			_, err := config.LoadFile(ctx, filepath.Join(t.TempDir(), "nope.yaml"))

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the merged config is invalid", func() {
			setEnv(config.EnvConfigPath, "")
			setEnv("POSFIT_WORKER_COUNT", "0")

			_, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

func clearEnv() {
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, config.EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posfit.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
