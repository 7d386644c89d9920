// Package sso implements the forum-initiated single sign-on exchange. The
// forum redirects visitors here with a signed payload; the controller
// resolves their identity from the publisher (members session, bearer token
// or email/uuid query parameters), then signs them back to the forum with
// their email, stable id and tier groups.
package sso
