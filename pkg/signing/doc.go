// Package signing implements the cryptographic primitives of the Discourse
// SSO contract: HMAC-SHA256 signatures over opaque payloads, and the
// base64-wrapped query-string codec Discourse uses for the payload itself.
package signing
