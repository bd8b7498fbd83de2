// Package cache remembers the structured intent produced for an utterance
// so a repeated command skips the language backend.
//
// Keys are fingerprints from Normalize: case-folded, punctuation-stripped
// and whitespace-collapsed text. Entries expire after a TTL and the backend
// evicts the least recently used entry once it holds MaxEntries. Any change
// to the device or scene catalogue must call InvalidateAll so a cached
// intent can never name a device that no longer exists.
//
// Two backends are provided: MemoryBackend (per process) and RedisBackend
// (shared across restarts). Backend errors are logged and treated as misses;
// the cache never fails a command.
package cache
