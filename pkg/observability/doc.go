// Package observability provides structured JSON logging and Prometheus
// metrics for the bridge. Logging is built on the standard library slog
// package with a chainable field API; metrics cover the HTTP surface, the
// sync queue, and the upstream caches.
package observability
