package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/store"
)

// ErrInjected is the default error returned by FaultyCollection.
var ErrInjected = errors.New("injected store failure")

// FaultyCollection wraps a store.Collection and fails selected calls.
//
// Thread-safety: safe for concurrent use; the wrapped collection must be too.
type FaultyCollection struct {
	store.Collection

	mu sync.Mutex

	// FindAllErr, when set, is returned by FindAll.
	FindAllErr error

	// FailValues makes UpdateOne and UpdateMany fail when the filter value's
	// text form is in the set.
	FailValues map[string]error

	// Calls counts update calls by filter text ("OrderID=O1").
	Calls map[string]int
}

// NewFaultyCollection wraps inner.
func NewFaultyCollection(inner store.Collection) *FaultyCollection {
	return &FaultyCollection{
		Collection: inner,
		FailValues: make(map[string]error),
		Calls:      make(map[string]int),
	}
}

// FailOn makes updates whose filter value is key fail with ErrInjected.
func (c *FaultyCollection) FailOn(keys ...string) *FaultyCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.FailValues[k] = ErrInjected
	}
	return c
}

func (c *FaultyCollection) FindAll(ctx context.Context) ([]doc.Object, error) {
	if c.FindAllErr != nil {
		return nil, c.FindAllErr
	}
	return c.Collection.FindAll(ctx)
}

func (c *FaultyCollection) UpdateOne(ctx context.Context, f store.Filter, p store.Patch) (store.UpdateResult, error) {
	if err := c.record(f); err != nil {
		return store.UpdateResult{}, err
	}
	return c.Collection.UpdateOne(ctx, f, p)
}

func (c *FaultyCollection) UpdateMany(ctx context.Context, f store.Filter, p store.Patch) (store.UpdateResult, error) {
	if err := c.record(f); err != nil {
		return store.UpdateResult{}, err
	}
	return c.Collection.UpdateMany(ctx, f, p)
}

// TotalCalls returns the number of update calls made.
func (c *FaultyCollection) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.Calls {
		n += v
	}
	return n
}

func (c *FaultyCollection) record(f store.Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls[f.String()]++
	text, _ := doc.Text(f.Value)
	return c.FailValues[text]
}
