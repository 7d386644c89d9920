package ghost

// Tier is a Ghost subscription tier.
type Tier struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Active bool   `json:"active"`
}

// Subscription is a member's paid subscription to a tier.
type Subscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Tier   Tier   `json:"tier"`
}

// Member is a Ghost member. Subscriptions is populated by the members API
// and by admin lookups with include=subscriptions; Tiers by admin lookups
// with include=tiers.
type Member struct {
	ID            string         `json:"id"`
	UUID          string         `json:"uuid"`
	Email         string         `json:"email"`
	Name          string         `json:"name"`
	AvatarImage   string         `json:"avatar_image"`
	Subscriptions []Subscription `json:"subscriptions"`
	Tiers         []Tier         `json:"tiers"`
}

// StaffUser is a Ghost staff user, as returned by the admin users endpoint.
type StaffUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Roles []struct {
		Name string `json:"name"`
	} `json:"roles"`
}
