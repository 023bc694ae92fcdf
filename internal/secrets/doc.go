// Package secrets redacts credentials from learning text.
//
// Owner corrections and context snapshots can quote anything the owner
// pasted into a chat, API keys and tokens included. Everything headed
// for embedding or persistence passes through a gitleaks-backed scrubber
// first; an optional TOML allowlist suppresses known-benign patterns.
// Redaction markers keep the rule id so the surrounding text still reads
// sensibly after embedding.
package secrets
