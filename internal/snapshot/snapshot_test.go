package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/extjson"
	"github.com/roach88/idsync/internal/store"
)

func sampleOrders() []doc.Object {
	return []doc.Object{
		{
			doc.F("_id", doc.ObjectID("65a0f1c2e4b0a1b2c3d4e5f6")),
			doc.F("OrderID", doc.String("O1")),
			doc.F("CustomerID", doc.String("CUS000001")),
			doc.F("createdAt", doc.NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC))),
			doc.F("shippingInfo", doc.Object{
				doc.F("fullName", doc.String("Alice Tran")),
				doc.F("phone", doc.String("0900000001")),
			}),
			doc.F("items", doc.Array{doc.Object{
				doc.F("sku", doc.String("A-1")),
				doc.F("qty", doc.Int(2)),
				doc.F("price", doc.Float(9.5)),
			}}),
			doc.F("tags", doc.Array{}),
		},
		{
			doc.F("_id", doc.ObjectID("65a0f1c2e4b0a1b2c3d4e5f7")),
			doc.F("OrderID", doc.String("O2")),
			doc.F("CustomerID", doc.String("OLD")),
			doc.F("note", doc.String("Trần <gift> & card")),
		},
	}
}

func TestEncodeGolden(t *testing.T) {
	data, err := Encode(sampleOrders())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "orders_snapshot", data)
}

func TestEncodeEmpty(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestDecodeRoundTrip(t *testing.T) {
	data, err := Encode(sampleOrders())
	require.NoError(t, err)

	docs, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for i, want := range sampleOrders() {
		assert.True(t, doc.Equal(want, docs[i]), "document %d differs: %#v", i, docs[i])
	}
}

func TestDecodeRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"not json", `[{`, "decode snapshot"},
		{"object at top", `{"a":1}`, "top level is object"},
		{"scalar element", `[{"a":1}, 3]`, "element 1 is int"},
		{"malformed oid", `[{"_id":{"$oid":7}}]`, "$[0]._id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeMalformedIsTyped(t *testing.T) {
	_, err := Decode([]byte(`[{"createdAt":{"$date":true}}]`))
	assert.ErrorIs(t, err, extjson.ErrMalformed)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrFileUnavailable)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "orders.json")

	require.NoError(t, Write(path, sampleOrders()))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Docs(), 2)

	res, err := f.Collection().UpdateOne(context.Background(),
		store.Eq("OrderID", doc.String("O2")),
		store.SetField("CustomerID", doc.String("CUS000001")))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Modified)
	require.NoError(t, f.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	v, _ := reloaded.Docs()[1].Get("CustomerID")
	assert.Equal(t, doc.String("CUS000001"), v)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteIntoMissingParentFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := Write(filepath.Join(blocker, "orders.json"), sampleOrders())
	assert.ErrorIs(t, err, ErrFileUnavailable)
}

func TestDiff(t *testing.T) {
	before, err := Encode(sampleOrders())
	require.NoError(t, err)

	docs := sampleOrders()
	docs[1].Set("CustomerID", doc.String("CUS000001"))
	after, err := Encode(docs)
	require.NoError(t, err)

	diff, err := Diff("orders.json", before, after)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(diff, "--- orders.json\n+++ orders.json (updated)\n"), diff)
	assert.Contains(t, diff, `-    "CustomerID": "OLD",`)
	assert.Contains(t, diff, `+    "CustomerID": "CUS000001",`)

	same, err := Diff("orders.json", before, before)
	require.NoError(t, err)
	assert.Empty(t, same)
}
