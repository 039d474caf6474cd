package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idsync/internal/snapshot"
)

func TestExportImport_RoundTrip(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "out", "orders.json")

	out, err := f.run("export", "orders", path, "--format", "json")
	require.NoError(t, err)
	exported := decode[TransferResult](t, out).Data
	assert.Equal(t, "export", exported.Direction)
	assert.Equal(t, 5, exported.Documents)

	file, err := snapshot.Load(path)
	require.NoError(t, err)
	assert.Equal(t, f.docs(t, "orders"), file.Docs())

	out, err = f.run("import", path, "orders_copy", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, 5, decode[TransferResult](t, out).Data.Documents)
	assert.Equal(t, f.docs(t, "orders"), f.docs(t, "orders_copy"))
}

func TestImport_DryRun(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "orders.json")
	_, err := f.run("export", "orders", path)
	require.NoError(t, err)

	out, err := f.run("import", path, "orders_copy", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "would import 5 document(s): "+path+" -> orders_copy\n", out)
	assert.Empty(t, f.docs(t, "orders_copy"))
}

func TestImport_MissingFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.run("import", filepath.Join(f.dir, "missing.json"), "orders")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "FILE_UNAVAILABLE")
}

func TestExport_TextOutput(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "customers.json")

	out, err := f.run("export", "customers", path)
	require.NoError(t, err)
	assert.Equal(t, "exported 2 document(s): customers -> "+path+"\n", out)
}
