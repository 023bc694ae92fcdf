// Package agent orchestrates chat turns.
//
// A turn runs the conversation through the chat model with the tool
// registry's specs attached, then executes the model's tool calls under
// the autonomy gate: query and memory tools run directly, everything
// else is confidence-scored first and the resulting disposition decides
// whether the call executes, becomes an owner task, or is refused.
// Every scored call is recorded as a decision through the recorder,
// off the response path.
package agent
