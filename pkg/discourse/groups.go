package discourse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

type groupResponse struct {
	Group Group `json:"group"`
}

type basicGroupResponse struct {
	BasicGroup Group `json:"basic_group"`
}

type groupsResponse struct {
	Groups []Group `json:"groups"`
}

type membershipResponse struct {
	Errors []string `json:"errors"`
}

// GetGroup looks up a group by name. Any not-ok response is reported as
// ErrGroupNotFound since the forum answers 404 and 403 interchangeably for
// missing groups.
func (c *Client) GetGroup(ctx context.Context, name string) (*Group, error) {
	var out groupResponse
	err := c.do(ctx, http.MethodGet, "/groups/"+name+".json", url.Values{"group_name": {name}}, nil, &out)

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out.Group, nil
}

// GetAllGroups lists every group visible to the API user.
func (c *Client) GetAllGroups(ctx context.Context) ([]Group, error) {
	var out groupsResponse
	if err := c.do(ctx, http.MethodGet, "/groups.json", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// CreateGroup creates a managed group with the default visibility levels.
func (c *Client) CreateGroup(ctx context.Context, name, fullName string) (*Group, error) {
	payload := map[string]interface{}{
		"name":                     name,
		"full_name":                fullName,
		"automatic":                false,
		"mentionable_level":        DefaultGroupMentionableLevel,
		"visibility_level":         DefaultGroupVisibilityLevel,
		"members_visibility_level": DefaultGroupMembersVisibilityLevel,
	}

	var out basicGroupResponse
	if err := c.do(ctx, http.MethodPost, "/admin/groups/", nil, payload, &out); err != nil {
		return nil, fmt.Errorf("unable to create group %s: %w", name, err)
	}

	return &out.BasicGroup, nil
}

// EnsureGroup looks up a group by its deterministic name, creating it when
// absent. It reports whether a creation actually occurred. Creation failure
// is a hard error since membership changes need the group id.
func (c *Client) EnsureGroup(ctx context.Context, name, fullName string) (*Group, bool, error) {
	if id, ok := c.groupCache.Get(name); ok {
		c.cacheHit()
		return &Group{ID: id, Name: name, FullName: fullName}, false, nil
	}
	c.cacheMiss()

	group, err := c.GetGroup(ctx, name)
	if err == nil {
		c.groupCache.Add(name, group.ID)
		return group, false, nil
	}
	if !errors.Is(err, ErrGroupNotFound) {
		return nil, false, err
	}

	group, err = c.CreateGroup(ctx, name, fullName)
	if err != nil {
		return nil, false, err
	}

	c.groupCache.Add(name, group.ID)
	return group, true, nil
}

// DeleteGroup removes a group by id.
func (c *Client) DeleteGroup(ctx context.Context, id int) error {
	if err := c.do(ctx, http.MethodDelete, "/admin/groups/"+strconv.Itoa(id)+".json", nil, nil, nil); err != nil {
		return fmt.Errorf("unable to delete group %d: %w", id, err)
	}
	return nil
}

// AddMemberToGroup idempotently ensures the named group exists and adds the
// user to it.
func (c *Client) AddMemberToGroup(ctx context.Context, userID int, name, fullName string) error {
	group, created, err := c.EnsureGroup(ctx, name, fullName)
	if err != nil {
		return err
	}
	if created {
		c.logger.WithField("group", name).Info("Created group")
	}

	payload := map[string]interface{}{
		"user_ids":     strconv.Itoa(userID),
		"notify_users": false,
	}

	var out membershipResponse
	if err := c.do(ctx, http.MethodPut, "/groups/"+strconv.Itoa(group.ID)+"/members.json", nil, payload, &out); err != nil {
		return fmt.Errorf("unable to add user %d to group %s: %w", userID, name, err)
	}
	if len(out.Errors) > 0 {
		return fmt.Errorf("unable to add user %d to group %s: %s", userID, name, out.Errors[0])
	}

	return nil
}

// RemoveMemberFromGroup removes the user from the named group. The group is
// looked up fresh so a stale cache entry cannot target the wrong group.
func (c *Client) RemoveMemberFromGroup(ctx context.Context, userID int, name string) error {
	group, err := c.GetGroup(ctx, name)
	if err != nil {
		return fmt.Errorf("unable to remove user %d from group %s: %w", userID, name, err)
	}

	payload := map[string]interface{}{"user_id": userID}

	var out membershipResponse
	if err := c.do(ctx, http.MethodDelete, "/groups/"+strconv.Itoa(group.ID)+"/members.json", nil, payload, &out); err != nil {
		return fmt.Errorf("unable to remove user %d from group %s: %w", userID, name, err)
	}
	if len(out.Errors) > 0 {
		return fmt.Errorf("unable to remove user %d from group %s: %s", userID, name, out.Errors[0])
	}

	return nil
}
