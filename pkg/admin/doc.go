// Package admin exposes staff-only maintenance endpoints: bulk tier-to-group
// synchronization and cache clearing. Callers authenticate with a Ghost
// admin session cookie.
package admin
