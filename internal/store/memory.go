package store

import (
	"context"
	"sync"

	"github.com/roach88/idsync/internal/doc"
)

// Memory is an in-process Collection. Documents are copied on the way in and
// on the way out, so callers never share state with the collection.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs []doc.Object
}

// NewMemory creates a Memory collection holding copies of docs.
func NewMemory(docs ...doc.Object) *Memory {
	m := &Memory{docs: make([]doc.Object, 0, len(docs))}
	for _, d := range docs {
		m.docs = append(m.docs, d.Clone())
	}
	return m
}

// FindAll returns copies of all documents in insertion order.
func (m *Memory) FindAll(ctx context.Context) ([]doc.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.docs), nil
}

// FindOne returns a copy of the first matching document.
func (m *Memory) FindOne(ctx context.Context, f Filter) (doc.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.docs {
		if f.Matches(d) {
			return d.Clone(), nil
		}
	}
	return nil, ErrNoDocument
}

// UpdateOne patches the first matching document.
func (m *Memory) UpdateOne(ctx context.Context, f Filter, p Patch) (UpdateResult, error) {
	return m.update(ctx, f, p, false)
}

// UpdateMany patches every matching document.
func (m *Memory) UpdateMany(ctx context.Context, f Filter, p Patch) (UpdateResult, error) {
	return m.update(ctx, f, p, true)
}

func (m *Memory) update(ctx context.Context, f Filter, p Patch, many bool) (UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return UpdateResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var res UpdateResult
	for i, d := range m.docs {
		if !f.Matches(d) {
			continue
		}
		res.Matched++
		if patched, modified := p.Apply(d); modified {
			m.docs[i] = patched
			res.Modified++
		}
		if !many {
			break
		}
	}
	return res, nil
}

// InsertMany appends copies of docs.
func (m *Memory) InsertMany(ctx context.Context, docs []doc.Object) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.docs = append(m.docs, d.Clone())
	}
	return len(docs), nil
}

// Docs returns copies of all documents without a context.
func (m *Memory) Docs() []doc.Object {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.docs)
}

// Len returns the number of documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func cloneAll(docs []doc.Object) []doc.Object {
	out := make([]doc.Object, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}
