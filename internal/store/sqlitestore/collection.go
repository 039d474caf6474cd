package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/extjson"
	"github.com/roach88/idsync/internal/store"
)

// Collection is a store.Collection backed by the documents table.
//
// Every update runs inside one transaction: matching rows are decoded,
// patched in Go and written back.
type Collection struct {
	db   *sql.DB
	name string
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

type row struct {
	seq  int64
	body doc.Object
}

// FindAll returns every document ordered by insertion sequence.
func (c *Collection) FindAll(ctx context.Context) ([]doc.Object, error) {
	rows, err := c.load(ctx, c.db)
	if err != nil {
		return nil, err
	}
	docs := make([]doc.Object, len(rows))
	for i, r := range rows {
		docs[i] = r.body
	}
	return docs, nil
}

// FindOne returns the first document matching f.
func (c *Collection) FindOne(ctx context.Context, f store.Filter) (doc.Object, error) {
	rows, err := c.load(ctx, c.db)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if f.Matches(r.body) {
			return r.body, nil
		}
	}
	return nil, store.ErrNoDocument
}

// UpdateOne patches the first document matching f.
func (c *Collection) UpdateOne(ctx context.Context, f store.Filter, p store.Patch) (store.UpdateResult, error) {
	res, err := c.update(ctx, f, p, false)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("update one %s in %s: %w", f, c.name, err)
	}
	return res, nil
}

// UpdateMany patches every document matching f.
func (c *Collection) UpdateMany(ctx context.Context, f store.Filter, p store.Patch) (store.UpdateResult, error) {
	res, err := c.update(ctx, f, p, true)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("update many %s in %s: %w", f, c.name, err)
	}
	return res, nil
}

// InsertMany appends docs in order within a single transaction.
func (c *Collection) InsertMany(ctx context.Context, docs []doc.Object) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO documents (collection, body) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, d := range docs {
		body, err := extjson.Marshal(d)
		if err != nil {
			return 0, fmt.Errorf("encode document %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, c.name, string(body)); err != nil {
			return 0, fmt.Errorf("insert document %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(docs), nil
}

// Drop deletes every document in the collection and returns how many were removed.
func (c *Collection) Drop(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, c.name)
	if err != nil {
		return 0, fmt.Errorf("drop %s: %w", c.name, err)
	}
	return res.RowsAffected()
}

func (c *Collection) update(ctx context.Context, f store.Filter, p store.Patch, many bool) (store.UpdateResult, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := c.load(ctx, tx)
	if err != nil {
		return store.UpdateResult{}, err
	}

	var res store.UpdateResult
	for _, r := range rows {
		if !f.Matches(r.body) {
			continue
		}
		res.Matched++
		if patched, modified := p.Apply(r.body); modified {
			body, err := extjson.Marshal(patched)
			if err != nil {
				return store.UpdateResult{}, fmt.Errorf("encode document %d: %w", r.seq, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE documents SET body = ? WHERE seq = ?`, string(body), r.seq); err != nil {
				return store.UpdateResult{}, fmt.Errorf("write document %d: %w", r.seq, err)
			}
			res.Modified++
		}
		if !many {
			break
		}
	}

	if err := tx.Commit(); err != nil {
		return store.UpdateResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (c *Collection) load(ctx context.Context, q querier) ([]row, error) {
	rs, err := q.QueryContext(ctx,
		`SELECT seq, body FROM documents WHERE collection = ? ORDER BY seq ASC`, c.name)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	defer rs.Close()

	var out []row
	for rs.Next() {
		var (
			seq  int64
			body string
		)
		if err := rs.Scan(&seq, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		v, err := extjson.Unmarshal([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("decode document %d: %w", seq, err)
		}
		obj, ok := v.(doc.Object)
		if !ok {
			return nil, fmt.Errorf("decode document %d: body is %s, not an object", seq, doc.Kind(v))
		}
		out = append(out, row{seq: seq, body: obj})
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.name, err)
	}
	return out, nil
}
