package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/store"
	"github.com/roach88/idsync/internal/store/sqlitestore"
	tu "github.com/roach88/idsync/internal/testutil"
)

const fixtureConfig = `db_path: %q
log_level: warn
targets:
  - name: orders
    key: OrderID
    full_name: shippingInfo.fullName
    phone: shippingInfo.phone
    email: shippingInfo.email
    tracked: [CustomerID]
`

var fixtureCustomers = []doc.Object{
	tu.Customer("CUS000001", "Alice Smith", "0900000001", "alice@example.com"),
	tu.Customer("CUS000002", "Bob Le", "0900000002", ""),
}

// fixtureOrders resolve as: O1 updated (name_phone), O2 updated (name),
// O3 not found, O4 skipped, O5 already correct.
var fixtureOrders = []doc.Object{
	tu.Order("O1", "alice smith", "0900000001", "OLD1"),
	tu.Order("O2", "Bob Le", "0999", ""),
	tu.Order("O3", "Carol", "0000", ""),
	{doc.F("OrderID", doc.String("O4")), doc.F("CustomerID", doc.String(""))},
	tu.Order("O5", "Alice Smith", "0900000001", "CUS000001"),
}

// fixture is a working directory with a config file and a seeded SQLite
// document store.
type fixture struct {
	dir    string
	dbPath string
	config string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clearEnv(t)

	dir := t.TempDir()
	t.Chdir(dir)

	f := &fixture{
		dir:    dir,
		dbPath: filepath.Join(dir, "idsync.db"),
		config: filepath.Join(dir, "idsync.yaml"),
	}
	require.NoError(t, os.WriteFile(f.config, []byte(fmt.Sprintf(fixtureConfig, f.dbPath)), 0o644))

	f.seed(t, "customers", fixtureCustomers...)
	f.seed(t, "orders", fixtureOrders...)
	return f
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"IDSYNC_CONFIG", "IDSYNC_MONGO_URI", "IDSYNC_MONGO_URI_FILE",
		"IDSYNC_MONGO_DATABASE", "IDSYNC_DB_PATH", "IDSYNC_LOG_LEVEL", "IDSYNC_WORKERS",
	} {
		t.Setenv(k, "")
	}
}

func (f *fixture) seed(t *testing.T, collection string, docs ...doc.Object) {
	t.Helper()
	s, err := sqlitestore.Open(f.dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Collection(collection).InsertMany(context.Background(), docs)
	require.NoError(t, err)
}

func (f *fixture) docs(t *testing.T, collection string) []doc.Object {
	t.Helper()
	s, err := sqlitestore.Open(f.dbPath)
	require.NoError(t, err)
	defer s.Close()

	docs, err := s.Collection(collection).FindAll(context.Background())
	require.NoError(t, err)
	return docs
}

func (f *fixture) find(t *testing.T, collection, orderID string) doc.Object {
	t.Helper()
	s, err := sqlitestore.Open(f.dbPath)
	require.NoError(t, err)
	defer s.Close()

	d, err := s.Collection(collection).FindOne(context.Background(), store.Eq("OrderID", doc.String(orderID)))
	require.NoError(t, err)
	return d
}

// run executes the root command with the fixture config and returns stdout.
func (f *fixture) run(args ...string) (string, error) {
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", f.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// response is the JSON envelope with a typed payload.
type response[T any] struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
	Data   T      `json:"data"`
}

func decode[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func lookup(t *testing.T, o doc.Object, path string) doc.Value {
	t.Helper()
	v, ok := o.Lookup(path)
	require.True(t, ok, path)
	return v
}
