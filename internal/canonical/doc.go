// Package canonical provides deterministic JSON serialization and
// domain-separated hashing for content-addressed identities.
//
// This package imports nothing internal. Every identity that is persisted
// or used as a map key (fingerprint keys, virtual table discriminators)
// is computed from the bytes produced here, so the encoding must never
// change for a given domain version.
//
// Key constraints:
//   - Object keys sorted by UTF-16 code units (RFC 8785)
//   - Strings are NFC normalized
//   - No floats and no null (both break determinism of the identity)
package canonical
