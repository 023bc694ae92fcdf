// Package knowledge is steward's durable memory: decisions the agent made,
// rules and preferences it learned, owner corrections, measured outcomes,
// and the tasks the heartbeat raised.
//
// SQLite (modernc, pure Go) is the system of record. The vector index in
// internal/vectorstore is a derived similarity index over the same rows;
// every similarity search resolves ids against SQLite before returning, so
// a stale or rebuilt index can never surface rows that no longer exist.
//
// All entities are owned by a single user id and every query is scoped to
// one. Embeddings are validated against the configured dimensionality at
// the write boundary: rules, preferences, and corrections require one,
// decisions may omit one (an empty input summary yields no vector and the
// row simply never surfaces via similarity).
package knowledge
