// Package snapshot reads and writes JSON snapshot files: one array of
// documents in extended JSON form, two-space indented, trailing newline.
//
// A snapshot is always read and written whole. Save writes to a temp file
// next to the target and renames it into place, so a crash never leaves a
// half-written snapshot behind.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/extjson"
	"github.com/roach88/idsync/internal/store"
)

// ErrFileUnavailable is wrapped by read and write failures on the file itself.
var ErrFileUnavailable = errors.New("snapshot file unavailable")

// Indent is the indentation used for snapshot files.
const Indent = "  "

// Encode renders docs as a snapshot file body.
func Encode(docs []doc.Object) ([]byte, error) {
	arr := make(doc.Array, len(docs))
	for i, d := range docs {
		arr[i] = d
	}
	data, err := extjson.MarshalIndent(arr, Indent)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a snapshot file body. The top level must be an array of
// objects; extended values are decoded to native form.
func Decode(data []byte) ([]doc.Object, error) {
	v, err := extjson.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	arr, ok := v.(doc.Array)
	if !ok {
		return nil, fmt.Errorf("decode snapshot: top level is %s, want array", doc.Kind(v))
	}
	docs := make([]doc.Object, len(arr))
	for i, e := range arr {
		obj, ok := e.(doc.Object)
		if !ok {
			return nil, fmt.Errorf("decode snapshot: element %d is %s, want object", i, doc.Kind(e))
		}
		docs[i] = obj
	}
	return docs, nil
}

// File is a snapshot loaded into memory.
type File struct {
	Path string
	coll *store.Memory
}

// Load reads and decodes the snapshot at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, ErrFileUnavailable, err)
	}
	docs, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{Path: path, coll: store.NewMemory(docs...)}, nil
}

// New returns an unsaved snapshot holding docs.
func New(path string, docs []doc.Object) *File {
	return &File{Path: path, coll: store.NewMemory(docs...)}
}

// Collection exposes the snapshot documents as a store collection.
// Updates through it are visible to Save.
func (f *File) Collection() *store.Memory {
	return f.coll
}

// Docs returns copies of the current documents.
func (f *File) Docs() []doc.Object {
	return f.coll.Docs()
}

// Bytes renders the current documents.
func (f *File) Bytes() ([]byte, error) {
	return Encode(f.coll.Docs())
}

// Save writes the current documents back to Path.
func (f *File) Save() error {
	return Write(f.Path, f.coll.Docs())
}

// Write encodes docs and atomically replaces the file at path.
func Write(path string, docs []doc.Object) error {
	data, err := Encode(docs)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w: %w", dir, ErrFileUnavailable, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w: %w", path, ErrFileUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w: %w", path, ErrFileUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w: %w", path, ErrFileUnavailable, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w: %w", path, ErrFileUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w: %w", path, ErrFileUnavailable, err)
	}
	return nil
}

// Diff returns a unified diff between two snapshot bodies, or "" when they
// are identical.
func Diff(name string, before, after []byte) (string, error) {
	if string(before) == string(after) {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: name,
		ToFile:   name + " (updated)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", name, err)
	}
	return text, nil
}
