// Package docstore provides the schema-capable, transactional record store
// the result cache persists into.
//
// The store is organised as classes. A class may extend one superclass and
// inherits its properties; adding a property to a class adds the column to
// every existing subclass as well. Each class is backed by one SQLite table,
// and the class tree with its typed property declarations lives in the
// qc_classes and qc_properties meta tables.
//
// # Database Configuration
//
//   - memory mode: private in-process database, gone on Close
//   - file mode: on-disk database, recreated on Open and removed on Close
//   - WAL journal for file mode, synchronous=NORMAL, busy_timeout=5000
//   - a single connection; SQLite serializes writers anyway
//
// Queries stream raw store-native values. Decoding into typed Go values is
// left to the caller, which knows the logical field types (see
// field.Type.Decode).
//
// Failures reported by the database itself wrap ErrConnectivity; rejections
// decided by the store (unknown classes or properties, missing mandatory
// values, conflicting declarations) wrap their own sentinels.
package docstore
