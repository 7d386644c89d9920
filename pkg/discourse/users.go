package discourse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// suspendUntil is the effectively-permanent suspension date applied when a
// deleted Ghost member maps to the suspend action.
const suspendUntil = "3017-10-25"

type userResponse struct {
	User User `json:"user"`
}

// GetMember looks up a forum user and their group memberships by the stable
// external id (the Ghost member uuid). A not-ok response means the member
// has not logged into the forum yet and is reported as ErrMemberNotFound.
func (c *Client) GetMember(ctx context.Context, uuid string) (*User, error) {
	var out userResponse
	err := c.do(ctx, http.MethodGet, "/u/by-external/"+uuid+".json", nil, nil, &out)

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	return &out.User, nil
}

// AnonymizeExternalUser anonymizes the forum account mapped to uuid.
func (c *Client) AnonymizeExternalUser(ctx context.Context, uuid string) error {
	user, err := c.GetMember(ctx, uuid)
	if err != nil {
		return err
	}

	if err := c.do(ctx, http.MethodPut, "/admin/users/"+strconv.Itoa(user.ID)+"/anonymize.json", nil, nil, nil); err != nil {
		return fmt.Errorf("unable to anonymize user %d: %w", user.ID, err)
	}
	return nil
}

// SuspendExternalUser indefinitely suspends the forum account mapped to
// uuid.
func (c *Client) SuspendExternalUser(ctx context.Context, uuid string) error {
	user, err := c.GetMember(ctx, uuid)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"suspend_until": suspendUntil,
		"reason":        "Member was removed from Ghost",
	}

	if err := c.do(ctx, http.MethodPut, "/admin/users/"+strconv.Itoa(user.ID)+"/suspend.json", nil, payload, nil); err != nil {
		return fmt.Errorf("unable to suspend user %d: %w", user.ID, err)
	}
	return nil
}

// DeleteExternalUser deletes the forum account mapped to uuid.
func (c *Client) DeleteExternalUser(ctx context.Context, uuid string) error {
	user, err := c.GetMember(ctx, uuid)
	if err != nil {
		return err
	}

	if err := c.do(ctx, http.MethodDelete, "/admin/users/"+strconv.Itoa(user.ID)+".json", nil, nil, nil); err != nil {
		return fmt.Errorf("unable to delete user %d: %w", user.ID, err)
	}
	return nil
}
