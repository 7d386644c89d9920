// Package webhook receives member lifecycle events from the publisher,
// verifies their signatures, filters replayed deliveries and enqueues the
// matching sync action. Handlers answer before any sync work runs; failures
// past the 202 are only visible in logs.
package webhook
