package discourse

import "strings"

// Default group settings. These must match the Discourse defaults the forum
// applies to tier groups.
const (
	DefaultMaxRequestConcurrency       = 3
	DefaultGroupMentionableLevel       = 3
	DefaultGroupVisibilityLevel        = 2
	DefaultGroupMembersVisibilityLevel = 2

	// GroupPrefix marks the forum groups this bridge manages. Groups
	// without the prefix are never touched.
	GroupPrefix = "tier_"

	// groupFullNameSuffix decorates the human-readable group name derived
	// from a tier's display name.
	groupFullNameSuffix = " Members"
)

// Group is a Discourse group.
type Group struct {
	ID                     int    `json:"id"`
	Name                   string `json:"name"`
	FullName               string `json:"full_name"`
	Automatic              bool   `json:"automatic"`
	MentionableLevel       int    `json:"mentionable_level"`
	VisibilityLevel        int    `json:"visibility_level"`
	MembersVisibilityLevel int    `json:"members_visibility_level"`
}

// User is a Discourse user with its group memberships.
type User struct {
	ID       int     `json:"id"`
	Username string  `json:"username"`
	Groups   []Group `json:"groups"`
}

// GroupName derives the managed forum group name for a tier slug.
func GroupName(tierSlug string) string {
	return GroupPrefix + tierSlug
}

// GroupFullName derives the human-readable group name for a tier display
// name.
func GroupFullName(tierName string) string {
	return tierName + groupFullNameSuffix
}

// IsManagedGroupName reports whether name carries the managed group prefix.
func IsManagedGroupName(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), GroupPrefix)
}
