// Package cache memoizes file-upload transcripts so an identical recording
// sent to the same backend with the same settings is not uploaded twice.
//
// Entries are keyed by a content fingerprint plus every setting that
// affects the transcript, and leave the cache in LRU order or when their
// TTL runs out, whichever comes first. A second Tier (see redistier) can
// share results across processes.
package cache
