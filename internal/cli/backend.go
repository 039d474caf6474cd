package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/idsync/internal/engine"
	"github.com/roach88/idsync/internal/match"
	"github.com/roach88/idsync/internal/metrics"
	"github.com/roach88/idsync/internal/store"
	"github.com/roach88/idsync/internal/store/mongostore"
	"github.com/roach88/idsync/internal/store/sqlitestore"
)

// Store backends selectable with --store.
const (
	StoreMongo  = "mongo"
	StoreSQLite = "sqlite"
)

// Collection is a document collection the CLI can both reconcile and load.
type Collection interface {
	store.Collection
	store.Inserter
}

// backend holds the open document store plus the SQLite run history.
// Run history always lives in SQLite, even when documents live in MongoDB.
type backend struct {
	kind   string
	mongo  *mongostore.Client
	sqlite *sqlitestore.Store
}

// openBackend opens the store selected by --store, defaulting to MongoDB when
// a URI is configured and to the SQLite database at db_path otherwise.
func openBackend(ctx context.Context, opts *RootOptions) (*backend, error) {
	cfg := opts.Config
	kind := opts.Store
	if kind == "" {
		kind = StoreSQLite
		if cfg.Mongo.URI != "" {
			kind = StoreMongo
		}
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
	}
	db, err := sqlitestore.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	b := &backend{kind: kind, sqlite: db}

	if kind == StoreMongo {
		if cfg.Mongo.URI == "" {
			db.Close()
			return nil, NewExitError(ExitCommandError, "--store mongo needs mongo.uri or IDSYNC_MONGO_URI")
		}
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			db.Close()
			return nil, WrapExitError(ExitCommandError, "failed to connect to mongo", err)
		}
		b.mongo = client
	}

	opts.Logger.Debug("store opened", "store", kind, "db_path", cfg.DBPath)
	return b, nil
}

// Collection returns a handle on the named collection in the document store.
func (b *backend) Collection(name string) Collection {
	if b.mongo != nil {
		return b.mongo.Collection(name)
	}
	return b.sqlite.Collection(name)
}

// Close releases both stores.
func (b *backend) Close(ctx context.Context) {
	if b.mongo != nil {
		_ = b.mongo.Close(ctx)
	}
	_ = b.sqlite.Close()
}

// identities reads and extracts the configured identity collection.
func (b *backend) identities(ctx context.Context, opts *RootOptions) ([]match.IdentityRecord, error) {
	ic := opts.Config.Identities
	if err := ic.Validate(); err != nil {
		return nil, err
	}
	docs, err := b.Collection(ic.Collection).FindAll(ctx)
	if err != nil {
		return nil, &engine.Error{
			Code:    engine.ErrCodeStoreUnavailable,
			Message: fmt.Sprintf("cannot read %s: %v", ic.Collection, err),
			Err:     err,
		}
	}
	records := engine.ExtractIdentities(docs, ic.IdentitySpec)
	opts.Logger.Debug("identities loaded", "collection", ic.Collection, "records", len(records))
	return records, nil
}

// saveRun records a run in the history. The counts come from r; full is
// the complete report stored alongside them.
func (b *backend) saveRun(ctx context.Context, command string, r *engine.Report, full any) error {
	data, err := json.Marshal(full)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return b.sqlite.SaveRun(ctx, runRecord(command, r, string(data)))
}

func runRecord(command string, r *engine.Report, report string) sqlitestore.Run {
	return sqlitestore.Run{
		ID:             r.RunID,
		Command:        command,
		Target:         r.Target,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DryRun:         r.DryRun,
		Updated:        r.Updated,
		AlreadyCorrect: r.AlreadyCorrect,
		NotFound:       r.NotFound,
		Skipped:        r.Skipped,
		Failed:         r.Failed,
		Report:         report,
	}
}

// newEngine builds an engine from the global options.
func newEngine(opts *RootOptions, m *metrics.Metrics, extra ...engine.Option) *engine.Engine {
	base := []engine.Option{
		engine.WithWorkers(opts.Config.Workers),
		engine.WithLogger(opts.Logger),
		engine.WithMetrics(m),
	}
	return engine.New(append(base, extra...)...)
}

// engineExit maps an engine error onto a CLI exit error.
func engineExit(message string, err error) error {
	return WrapExitError(ExitCommandError, message, err)
}
