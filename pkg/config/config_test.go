package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1, cfg.Engine.Workers)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Empty(t, cfg.Sources)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
engine:
  workers: 8
  driveBudget: 25ms
sources:
  - name: files
    kind: dir
    path: /srv/code
    watch: true
  - name: products
    kind: postgres
    table: catalog.products
    identity: true
`)
	t.Setenv("FM_SERVER_PORT", "9999")
	t.Setenv("FM_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FM_SERVER_CORS_ORIGINS", "*")
	t.Setenv("FM_ENGINE_WORKERS", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Engine.Workers, "unparsable overrides are ignored")
	assert.Equal(t, 25*time.Millisecond, cfg.Engine.DriveBudget)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	require.Len(t, cfg.Sources, 2)
	assert.True(t, cfg.Sources[0].Watch)
	assert.Equal(t, "catalog.products", cfg.Sources[1].Table)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.Timeout, "unset sections keep defaults")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero workers", "engine:\n  workers: 0\n", "engine.workers"},
		{"missing name", "sources:\n  - kind: feed\n", "name is required"},
		{"duplicate name", "sources:\n  - {name: a, kind: feed}\n  - {name: a, kind: feed}\n", "duplicate name"},
		{"dir without path", "sources:\n  - {name: a, kind: dir}\n", "path is required"},
		{"postgres without table", "sources:\n  - {name: a, kind: postgres}\n", "table is required"},
		{"unknown kind", "sources:\n  - {name: a, kind: s3}\n", "unknown kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=require", p.DSN())
}
