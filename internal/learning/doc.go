// Package learning turns corrections and tool failures into durable
// knowledge.
//
// Explicit owner corrections are stored verbatim (scrubbed and embedded).
// Classified errors route to one of four artifact types: factual errors
// become rules (deduplicated by semantic similarity, reinforced instead
// of duplicated), reasoning errors become prompt-guidance preferences,
// tool misuse bumps a structural per-tool failure aggregate, and missing
// context becomes a context-pattern preference.
//
// Learning is best-effort from the caller's point of view: a message the
// pipeline cannot classify yields a typed "not learned" result, never an
// error that would break the chat turn. Storage and embedding failures do
// error, because rules, preferences, and corrections must never be stored
// without their embeddings.
package learning
