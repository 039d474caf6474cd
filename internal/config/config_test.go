package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idsync/internal/engine"
)

const sampleConfig = `
mongo:
  uri: mongodb://localhost:27017
  database: shop
db_path: state/idsync.db
log_level: debug
workers: 4
identities:
  collection: clients
  stable_id: code
targets:
  - name: orders
    key: OrderID
    full_name: shippingInfo.fullName
    phone: shippingInfo.phone
    tracked: [CustomerID]
    snapshot: data/orders.json
  - name: invoices
    key: _id
    full_name: billTo.name
    tracked: [customerId, lines.customerId]
`

// isolate runs the test in an empty directory with no IDSYNC_* variables set.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{
		"IDSYNC_CONFIG", "IDSYNC_MONGO_URI", "IDSYNC_MONGO_URI_FILE", "IDSYNC_MONGO_DATABASE",
		"IDSYNC_DB_PATH", "IDSYNC_LOG_LEVEL", "IDSYNC_WORKERS",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "", cfg.Path)
	assert.Equal(t, engine.DefaultIdentitySpec, cfg.Identities.IdentitySpec)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	writeFile(t, DefaultPath, sampleConfig)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPath, cfg.Path)
	assert.Equal(t, MongoConfig{URI: "mongodb://localhost:27017", Database: "shop"}, cfg.Mongo)
	assert.Equal(t, "state/idsync.db", cfg.DBPath)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	assert.Equal(t, "clients", cfg.Identities.Collection)
	assert.Equal(t, "code", cfg.Identities.StableID)
	assert.Equal(t, "fullName", cfg.Identities.FullName, "unset identity fields keep defaults")

	require.Len(t, cfg.Targets, 2)
	orders, err := cfg.Target("orders")
	require.NoError(t, err)
	assert.Equal(t, engine.TargetSpec{
		Name:     "orders",
		Key:      "OrderID",
		FullName: "shippingInfo.fullName",
		Phone:    "shippingInfo.phone",
		Tracked:  []string{"CustomerID"},
	}, orders.TargetSpec)
	assert.Equal(t, "data/orders.json", orders.Snapshot)

	invoices, err := cfg.Target("invoices")
	require.NoError(t, err)
	assert.Equal(t, []string{"customerId", "lines.customerId"}, invoices.Tracked)

	_, err = cfg.Target("refunds")
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestLoad_ConfigFromEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "conf", "other.yaml")
	writeFile(t, path, "workers: 2\n")
	t.Setenv("IDSYNC_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, DefaultPath, sampleConfig)
	secret := filepath.Join(dir, "mongo-uri")
	writeFile(t, secret, "mongodb://secret-host:27017\n")

	t.Setenv("IDSYNC_MONGO_URI_FILE", secret)
	t.Setenv("IDSYNC_WORKERS", "8")
	t.Setenv("IDSYNC_LOG_LEVEL", "warn")
	t.Setenv("IDSYNC_DB_PATH", "/var/lib/idsync.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mongodb://secret-host:27017", cfg.Mongo.URI)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, slog.LevelWarn, cfg.Level())
	assert.Equal(t, "/var/lib/idsync.db", cfg.DBPath)
}

func TestLoad_DirectURIBeatsFile(t *testing.T) {
	dir := isolate(t)
	secret := filepath.Join(dir, "mongo-uri")
	writeFile(t, secret, "mongodb://from-file")
	t.Setenv("IDSYNC_MONGO_URI_FILE", secret)
	t.Setenv("IDSYNC_MONGO_URI", "mongodb://direct")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://direct", cfg.Mongo.URI)
}

func TestLoad_InvalidEnv(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"IDSYNC_WORKERS", "zero", "IDSYNC_WORKERS"},
		{"IDSYNC_WORKERS", "0", "IDSYNC_WORKERS"},
		{"IDSYNC_LOG_LEVEL", "loud", "IDSYNC_LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_DotenvFoundInParent(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env.local"), "IDSYNC_DB_PATH=from-dotenv.db\nIDSYNC_WORKERS=3\n")
	sub := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	t.Chdir(sub)

	t.Setenv("IDSYNC_WORKERS", "5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.Workers, "process environment wins over .env.local")

	_, set := os.LookupEnv("IDSYNC_DB_PATH")
	assert.True(t, set)
	assert.Equal(t, "", os.Getenv("IDSYNC_DB_PATH"), ".env.local does not modify the environment")
}

func TestFindUpward(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "x", ".env.local"), "A=1\n")
	deep := filepath.Join(root, "x", "y", "z")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, filepath.Join(root, "x", ".env.local"), findUpward(deep, "", ".env.local"))
	assert.Equal(t, "", findUpward(deep, filepath.Join(root, "x", "y"), ".env.local"), "stops at stop dir")
	assert.Equal(t, "", findUpward(root, root, ".env.local"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "sample", yaml: sampleConfig},
		{name: "empty", yaml: "\n"},
		{name: "unknown key", yaml: "wrokers: 3\n", wantErr: "wrokers"},
		{name: "bad log level", yaml: "log_level: loud\n", wantErr: "log_level"},
		{name: "workers out of range", yaml: "workers: 0\n", wantErr: "workers"},
		{
			name:    "target without tracked fields",
			yaml:    "targets:\n  - name: orders\n    key: OrderID\n    full_name: n\n    tracked: []\n",
			wantErr: "tracked",
		},
		{
			name:    "dot path with leading dot",
			yaml:    "targets:\n  - name: orders\n    key: .OrderID\n    tracked: [CustomerID]\n",
			wantErr: "key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate("idsync.yaml", []byte(tt.yaml))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
