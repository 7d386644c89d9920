// Package ghost is a client for the Ghost members and admin APIs. Ghost is
// the source of truth for member identity and subscription tiers; the bridge
// reads members by session cookie, email, uuid, or id, lists tiers, and
// checks staff sessions for the admin endpoints.
package ghost
