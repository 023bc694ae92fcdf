// Package goldens maintains the curated known-correct example set.
//
// Goldens are platform-wide YAML files, one or more examples per file,
// vetted by operators rather than learned. They are embedded into their
// own vector collection under a synthetic system user and queried by the
// confidence scorer's golden-alignment factor. A filesystem watcher
// re-syncs the collection when the directory changes, so curation does
// not require a restart.
package goldens
