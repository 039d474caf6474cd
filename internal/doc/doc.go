// Package doc provides the shape-free document model shared by every idsync package.
//
// A document is a tree of Value nodes. Value is a sealed interface; only the
// types declared here implement it:
//   - Null, String, Int, Float, Bool: JSON scalars
//   - Array: ordered sequence
//   - Object: ordered key/value list (field order is preserved end to end)
//   - ObjectID, Timestamp: store-native values JSON cannot carry directly
//
// ObjectID and Timestamp never reach JSON through this package: Marshal
// refuses them. The extjson package owns their tagged wire form.
//
// This package imports nothing internal.
package doc
