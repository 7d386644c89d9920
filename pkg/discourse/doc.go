// Package discourse is a client for the Discourse admin and groups APIs.
// All requests pass through a bounded-concurrency gate so bursts of sync
// work cannot overwhelm the forum, and confirmed group names are cached so
// idempotent group creation is not re-attempted needlessly.
package discourse
