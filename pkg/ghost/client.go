package ghost

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/membergate/discourse-on-ghost/pkg/config"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
)

const jsonMIMEType = "application/json"

var (
	// ErrNotLoggedIn indicates the caller has no authenticated members session.
	ErrNotLoggedIn = errors.New("ghost: not logged in")
	// ErrMemberNotFound indicates the member does not exist in Ghost.
	ErrMemberNotFound = errors.New("ghost: member not found")
	// ErrNotStaff indicates the session does not belong to a staff user.
	ErrNotStaff = errors.New("ghost: not a staff user")
)

// Client calls the Ghost members and admin APIs.
type Client struct {
	baseURL    *url.URL
	keyID      string
	keySecret  []byte
	httpClient *http.Client
	logger     *observability.Logger
}

// NewClient creates a Ghost API client from configuration. The admin API key
// is optional; admin endpoints fail with a descriptive error without it.
func NewClient(cfg config.GhostConfig, logger *observability.Logger) (*Client, error) {
	baseURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid ghost URL: %w", err)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}

	if cfg.AdminAPIKey != "" {
		id, secret, ok := strings.Cut(cfg.AdminAPIKey, ":")
		if !ok {
			return nil, fmt.Errorf("ghost admin API key must be in id:secret form")
		}
		keySecret, err := hex.DecodeString(secret)
		if err != nil {
			return nil, fmt.Errorf("ghost admin API key secret is not hex: %w", err)
		}
		c.keyID = id
		c.keySecret = keySecret
	}

	return c, nil
}

// Resolve joins urlPath onto the Ghost base URL, optionally with a fragment.
// Ghost routes its admin API on slash-terminated paths, which path.Join
// strips, so a trailing slash on urlPath is carried through.
func (c *Client) Resolve(urlPath, fragment string) string {
	resolved := *c.baseURL
	resolved.Path = path.Join("/", c.baseURL.Path, urlPath)
	if strings.HasSuffix(urlPath, "/") && !strings.HasSuffix(resolved.Path, "/") {
		resolved.Path += "/"
	}
	resolved.Fragment = fragment
	return resolved.String()
}

// JWKSEndpoint returns the members JWKS URL used for SSO token verification.
func (c *Client) JWKSEndpoint() string {
	return c.Resolve("/members/.well-known/jwks.json", "")
}

// PortalAccountURL returns the Ghost portal account page, the default
// destination for unauthenticated SSO callers.
func (c *Client) PortalAccountURL() string {
	return c.Resolve("/", "/portal/account")
}

// GetSessionMember resolves the member behind a Ghost members session
// cookie. A 204 from Ghost means the caller is not logged in.
func (c *Client) GetSessionMember(ctx context.Context, cookie string) (*Member, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Resolve("/members/api/member", ""), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", cookie)
	req.Header.Set("Accept", jsonMIMEType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to reach ghost members API: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, ErrNotLoggedIn
	case http.StatusOK:
		var member Member
		if err := json.NewDecoder(resp.Body).Decode(&member); err != nil {
			return nil, fmt.Errorf("unable to parse member response: %w", err)
		}
		return &member, nil
	default:
		return nil, fmt.Errorf("ghost members API responded with status %d", resp.StatusCode)
	}
}

// GetMemberByEmail looks up a single member by email via the admin API,
// including subscriptions.
func (c *Client) GetMemberByEmail(ctx context.Context, email string) (*Member, error) {
	return c.browseSingleMember(ctx, fmt.Sprintf("email:'%s'", email), "subscriptions,tiers")
}

// GetMemberByUUID looks up a single member by uuid via the admin API,
// including tiers.
func (c *Client) GetMemberByUUID(ctx context.Context, uuid string) (*Member, error) {
	return c.browseSingleMember(ctx, "uuid:"+uuid, "subscriptions,tiers")
}

// GetMemberByID reads a member by id via the admin API, including tiers.
func (c *Client) GetMemberByID(ctx context.Context, id string) (*Member, error) {
	var out struct {
		Members []Member `json:"members"`
	}

	endpoint := c.Resolve("/ghost/api/admin/members/"+id+"/", "") + "?include=tiers"
	status, err := c.getAdminJSON(ctx, endpoint, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrMemberNotFound
	}
	if status != http.StatusOK || len(out.Members) != 1 {
		return nil, fmt.Errorf("ghost admin API responded with status %d", status)
	}

	return &out.Members[0], nil
}

// GetTiers lists all tiers via the admin API.
func (c *Client) GetTiers(ctx context.Context) ([]Tier, error) {
	var out struct {
		Tiers []Tier `json:"tiers"`
	}

	endpoint := c.Resolve("/ghost/api/admin/tiers/", "") + "?limit=all"
	status, err := c.getAdminJSON(ctx, endpoint, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("ghost tiers API responded with status %d", status)
	}

	return out.Tiers, nil
}

// AuthenticateStaffFromCookie resolves the staff user behind a Ghost admin
// session cookie. Non-staff sessions return ErrNotStaff.
func (c *Client) AuthenticateStaffFromCookie(ctx context.Context, cookie string) (*StaffUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Resolve("/ghost/api/admin/users/me/", "")+"?include=roles", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cookie", cookie)
	req.Header.Set("Accept", jsonMIMEType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to reach ghost admin API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrNotStaff
	}

	var out struct {
		Users []StaffUser `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("unable to parse staff user response: %w", err)
	}
	if len(out.Users) != 1 {
		return nil, ErrNotStaff
	}

	return &out.Users[0], nil
}

func (c *Client) browseSingleMember(ctx context.Context, filter, include string) (*Member, error) {
	var out struct {
		Members []Member `json:"members"`
	}

	query := url.Values{"filter": {filter}, "include": {include}}
	endpoint := c.Resolve("/ghost/api/admin/members/", "") + "?" + query.Encode()

	status, err := c.getAdminJSON(ctx, endpoint, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("ghost admin API responded with status %d", status)
	}
	if len(out.Members) != 1 {
		return nil, ErrMemberNotFound
	}

	return &out.Members[0], nil
}

// getAdminJSON performs an authenticated admin API GET and decodes the body
// for 2xx responses. The status code is always returned so callers can
// distinguish not-found from other failures.
func (c *Client) getAdminJSON(ctx context.Context, endpoint string, out interface{}) (int, error) {
	token, err := c.AdminToken()
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Ghost "+token)
	req.Header.Set("Accept", jsonMIMEType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("unable to reach ghost admin API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("unable to parse ghost admin response: %w", err)
		}
	}

	return resp.StatusCode, nil
}
