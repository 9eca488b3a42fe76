// Package analysiscache stores Gemini stage analyses keyed by case text,
// stage index and model so repeated analyze requests skip the API call.
//
// # Keys
//
// A key is the first 100 characters of the (sanitized) case text with all
// whitespace removed, the stage index and the model name joined by
// underscores. Two cases sharing their opening paragraph therefore share
// cache entries; that matches how the analyze endpoint has always behaved.
//
// # Storage
//
// Entries live in memory and, when a path is configured, are mirrored to a
// JSON file (default: <data_dir>/analysis_cache.json) written atomically on
// every change. Entries expire after the configured TTL (default 24h) and
// the oldest entry is evicted once the size bound is exceeded.
//
// The daemon runs Janitor in its errgroup to drop expired entries every few
// minutes; `lexcase cache clear` and `lexcase cache list` manage the file
// directly.
package analysiscache
