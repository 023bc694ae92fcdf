// Package vectorstore provides the similarity index over steward's
// knowledge entities.
//
// The index is derived data: the knowledge store (SQLite) remains the
// system of record, and this package only answers "which stored texts are
// semantically close to this query". Two backends are supported: chromem
// (embedded, default, zero external services) and Qdrant (external gRPC).
//
// All operations are scoped to a single user. Stores default to payload
// isolation, which injects the user id into document metadata on write and
// into filters on search. Operations without a user in context fail with
// ErrMissingUser rather than returning cross-user results.
package vectorstore
