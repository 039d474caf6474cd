package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/extjson"
	"github.com/roach88/idsync/internal/snapshot"
	"github.com/roach88/idsync/internal/store"
)

// ExportSnapshot returns the extended JSON form of every record, in order.
func ExportSnapshot(records []doc.Object) []doc.Value {
	out := make([]doc.Value, len(records))
	for i, r := range records {
		out[i] = extjson.EncodeObject(r)
	}
	return out
}

// Export writes every document of coll to a snapshot file at path and
// returns how many were written.
func (e *Engine) Export(ctx context.Context, coll store.Collection, path string) (int, error) {
	docs, err := coll.FindAll(ctx)
	if err != nil {
		return 0, newUnavailableError("export source", err)
	}
	if err := snapshot.Write(path, docs); err != nil {
		return 0, newFileError(path, err)
	}
	e.logger.Info("export finished", "file", path, "documents", len(docs))
	return len(docs), nil
}

// Import loads the snapshot at path and inserts its documents into coll.
// On a dry run the file is read and decoded but nothing is inserted.
func (e *Engine) Import(ctx context.Context, path string, coll store.Inserter) (int, error) {
	f, err := snapshot.Load(path)
	if err != nil {
		if errors.Is(err, snapshot.ErrFileUnavailable) {
			return 0, newFileError(path, err)
		}
		return 0, fmt.Errorf("import %s: %w", path, err)
	}

	docs := f.Docs()
	if e.dryRun {
		return len(docs), nil
	}

	n, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return n, fmt.Errorf("import %s: %w", path, err)
	}
	e.logger.Info("import finished", "file", path, "documents", n)
	return n, nil
}
