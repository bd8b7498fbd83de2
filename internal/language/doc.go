// Package language talks to the language-understanding backend that turns
// an utterance into a JSON intent.
//
// The backend is a black box: Infer sends a prompt and returns raw text.
// Interpreting that text is the intent package's job. OllamaClient speaks
// Ollama's /api/generate with JSON output forced and sampling disabled so
// the same prompt yields the same answer.
//
// Failures are split in two. ErrBackendUnavailable means no answer was
// obtained (connection refused, timeout, 5xx); callers degrade to an
// UNKNOWN intent and the API reports 503. ErrMalformedOutput means the
// backend answered but the envelope was unusable.
package language
