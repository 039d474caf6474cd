package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/snapshot"
)

func TestPropagate_MapFlags(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("propagate", "orders", "--map", "OLD1=CUS000001", "--map", "CUS000001=CUS000009", "--format", "json")
	require.NoError(t, err)

	r := decode[PropagateResult](t, out).Data.Live
	require.Len(t, r.Pairs, 2)
	// Pairs run in sorted old-id order, so O5's CUS000001 moves first and
	// O1's OLD1 lands on CUS000001 afterwards.
	assert.Equal(t, "CUS000001", r.Pairs[0].Old)
	assert.Equal(t, int64(1), r.Pairs[0].Modified)
	assert.Equal(t, "OLD1", r.Pairs[1].Old)
	assert.Equal(t, int64(1), r.Pairs[1].Modified)

	assert.Equal(t, doc.String("CUS000001"), lookup(t, f.find(t, "orders", "O1"), "CustomerID"))
	assert.Equal(t, doc.String("CUS000009"), lookup(t, f.find(t, "orders", "O5"), "CustomerID"))
}

func TestPropagate_MappingFileAndSnapshot(t *testing.T) {
	f := newFixture(t)
	mappingFile := filepath.Join(f.dir, "ids.yaml")
	require.NoError(t, os.WriteFile(mappingFile, []byte("OLD1: CUS000001\nSAME: SAME\n"), 0o644))

	mirror := filepath.Join(f.dir, "orders.json")
	require.NoError(t, snapshot.Write(mirror, []doc.Object{
		{
			doc.F("OrderID", doc.String("O1")),
			doc.F("items", doc.Array{doc.Object{doc.F("CustomerID", doc.String("OLD1"))}}),
		},
	}))

	out, err := f.run("propagate", "orders", "--mapping-file", mappingFile, "--snapshot", mirror, "--format", "json")
	require.NoError(t, err)

	result := decode[PropagateResult](t, out).Data
	assert.Equal(t, int64(1), result.Live.Modified)
	require.NotNil(t, result.Snapshot)
	assert.Equal(t, int64(1), result.Snapshot.Modified)

	file, err := snapshot.Load(mirror)
	require.NoError(t, err)
	items := lookup(t, file.Docs()[0], "items").(doc.Array)
	assert.Equal(t, doc.String("CUS000001"), lookup(t, items[0].(doc.Object), "CustomerID"))
}

func TestPropagate_DryRun(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("propagate", "orders", "--map", "OLD1=CUS000001", "--dry-run", "--format", "json")
	require.NoError(t, err)

	r := decode[PropagateResult](t, out).Data.Live
	assert.True(t, r.DryRun)
	assert.Equal(t, int64(1), r.Matched)
	assert.Equal(t, doc.String("OLD1"), lookup(t, f.find(t, "orders", "O1"), "CustomerID"))
}

func TestPropagate_InvalidMapping(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no mapping", nil, "no id mapping given"},
		{"missing equals", []string{"--map", "OLD1"}, `want OLD=NEW, got "OLD1"`},
		{"empty new id", []string{"--map", "OLD1="}, "want OLD=NEW"},
		{"missing mapping file", []string{"--mapping-file", "nope.yaml"}, "invalid mapping"},
		{"chained ids", []string{"--map", "OLD1=OLD2", "--map", "OLD2=CUS000002"}, "OLD1 maps to OLD2, which is itself mapped to CUS000002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.run(append([]string{"propagate", "orders"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMapping_FlagsWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.yaml")
	require.NoError(t, os.WriteFile(path, []byte("A: B\nC: D\n"), 0o644))

	mapping, err := loadMapping(path, []string{" A = Z "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "Z", "C": "D"}, mapping)
}
