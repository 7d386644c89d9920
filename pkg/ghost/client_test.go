package ghost

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/membergate/discourse-on-ghost/pkg/config"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminKey = "64c5e5a7b3d1a2c4e6f80912:aa6c73f2189e22f348ba3b8bc3f0300e09641c0b8d2a27e7d76ed8d28ea06e60"

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(config.GhostConfig{
		URL:            serverURL,
		AdminAPIKey:    testAdminKey,
		RequestTimeout: 5 * time.Second,
	}, observability.NewTestLogger())
	require.NoError(t, err)
	return client
}

func TestNewClient_RejectsMalformedKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "no separator", key: "justonepart"},
		{name: "non-hex secret", key: "id:nothexatall!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(config.GhostConfig{URL: "https://blog.example.com", AdminAPIKey: tt.key}, observability.NewTestLogger())
			assert.Error(t, err)
		})
	}
}

func TestClient_Resolve(t *testing.T) {
	client := newTestClient(t, "https://example.com/blog")

	assert.Equal(t, "https://example.com/blog/members/api/member", client.Resolve("/members/api/member", ""))
	assert.Equal(t, "https://example.com/blog#/portal/account", client.PortalAccountURL())
	assert.Equal(t, "https://example.com/blog/members/.well-known/jwks.json", client.JWKSEndpoint())

	// Admin routes keep their trailing slash even under a subdirectory base.
	assert.Equal(t, "https://example.com/blog/ghost/api/admin/tiers/", client.Resolve("/ghost/api/admin/tiers/", ""))
	assert.Equal(t, "https://example.com/blog/ghost/api/admin/users/me/", client.Resolve("/ghost/api/admin/users/me/", ""))
}

func TestClient_GetSessionMember(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "authenticated",
			status: http.StatusOK,
			body:   `{"uuid":"m-uuid","email":"member@example.com","name":"Member","subscriptions":[{"status":"active","tier":{"slug":"gold","name":"Gold"}}]}`,
		},
		{
			name:    "not logged in",
			status:  http.StatusNoContent,
			wantErr: ErrNotLoggedIn,
		},
		{
			name:    "upstream failure",
			status:  http.StatusInternalServerError,
			wantErr: nil, // generic error, checked below
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/members/api/member", r.URL.Path)
				assert.Equal(t, "ghost-members-ssr=abc", r.Header.Get("Cookie"))
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			member, err := newTestClient(t, server.URL).GetSessionMember(context.Background(), "ghost-members-ssr=abc")

			if tt.status == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, "m-uuid", member.UUID)
				assert.Len(t, member.Subscriptions, 1)
				return
			}

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestClient_GetMemberByUUID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ghost/api/admin/members/", r.URL.Path)
		assert.Equal(t, "uuid:m-uuid", r.URL.Query().Get("filter"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Ghost "))
		w.Write([]byte(`{"members":[{"id":"m-1","uuid":"m-uuid","email":"member@example.com","tiers":[{"slug":"gold","name":"Gold"}]}]}`))
	}))
	defer server.Close()

	member, err := newTestClient(t, server.URL).GetMemberByUUID(context.Background(), "m-uuid")
	require.NoError(t, err)
	assert.Equal(t, "m-1", member.ID)
	assert.Equal(t, "gold", member.Tiers[0].Slug)
}

func TestClient_GetMemberByEmail_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"members":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).GetMemberByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestClient_GetTiers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ghost/api/admin/tiers/", r.URL.Path)
		w.Write([]byte(`{"tiers":[{"id":"t-1","name":"Gold","slug":"gold","active":true},{"id":"t-2","name":"Silver","slug":"silver","active":true}]}`))
	}))
	defer server.Close()

	tiers, err := newTestClient(t, server.URL).GetTiers(context.Background())
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, "gold", tiers[0].Slug)
}

func TestClient_AuthenticateStaffFromCookie(t *testing.T) {
	t.Run("staff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/ghost/api/admin/users/me/", r.URL.Path)
			w.Write([]byte(`{"users":[{"id":"u-1","name":"Admin","roles":[{"name":"Administrator"}]}]}`))
		}))
		defer server.Close()

		user, err := newTestClient(t, server.URL).AuthenticateStaffFromCookie(context.Background(), "ghost-admin-api-session=abc")
		require.NoError(t, err)
		assert.Equal(t, "Admin", user.Name)
	})

	t.Run("not staff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).AuthenticateStaffFromCookie(context.Background(), "ghost-admin-api-session=abc")
		assert.ErrorIs(t, err, ErrNotStaff)
	})
}

func TestClient_AdminToken(t *testing.T) {
	client := newTestClient(t, "https://blog.example.com")

	token, err := client.AdminToken()
	require.NoError(t, err)

	parsed, err := jwt.ParseSigned(token, []jose.SignatureAlgorithm{jose.HS256})
	require.NoError(t, err)
	require.Len(t, parsed.Headers, 1)
	assert.Equal(t, "64c5e5a7b3d1a2c4e6f80912", parsed.Headers[0].KeyID)

	var claims jwt.Claims
	require.NoError(t, parsed.Claims(client.keySecret, &claims))
	assert.Equal(t, jwt.Audience{"/admin/"}, claims.Audience)
	assert.WithinDuration(t, time.Now().Add(adminTokenLifetime), claims.Expiry.Time(), time.Minute)
}

func TestClient_AdminToken_RequiresKey(t *testing.T) {
	client, err := NewClient(config.GhostConfig{URL: "https://blog.example.com"}, observability.NewTestLogger())
	require.NoError(t, err)

	_, err = client.AdminToken()
	assert.Error(t, err)
}
