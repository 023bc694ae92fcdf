// Package llm is the chat-model client used by the agent.
//
// It speaks either the OpenAI-compatible chat completions API or the
// Anthropic messages API behind one Client interface, with tool calling
// in both dialects. Outbound requests are rate limited and retried with
// bounded exponential backoff on transient failures (429, 5xx,
// transport errors); anything else fails fast.
package llm
