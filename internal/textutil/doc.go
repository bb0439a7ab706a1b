// Package textutil provides text processing utilities for episode-title
// matching and filename construction.
//
// The primary use cases are:
//   - Tokenizing titles into stopword-filtered token sets
//   - Computing Jaccard similarity between token sets
//   - Sanitizing filenames and path segments for safe filesystem use
//
// Tokenization lowercases text, splits on non-alphanumeric characters
// (apostrophes kept), and drops common English stopwords.
package textutil
