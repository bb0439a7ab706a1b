// Package llm is the model boundary for fuzzy episode matching. The
// Runnable interface keeps resolvers testable with fakes; Client is an
// OpenRouter-compatible chat-completions implementation with retry,
// backoff, and tolerant JSON decoding.
package llm
