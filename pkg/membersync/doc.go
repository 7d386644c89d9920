// Package membersync keeps forum group membership consistent with Ghost
// subscription tiers. The reconciliation engine diffs a member's current
// managed groups against the groups their tiers require and applies the
// changes with per-change failure isolation; the action queue serializes
// asynchronous per-member work so at most one job per member is pending.
package membersync
