// Package embeddings provides embedding generation via multiple providers.
//
// Supports TEI (local Text Embeddings Inference server), any
// OpenAI-compatible API via langchaingo, and FastEmbed (local ONNX,
// requires CGO). Factory pattern selects the provider at runtime and
// cross-checks the model's dimension against the configured index
// dimension so a mismatch fails at startup instead of at write time.
package embeddings
