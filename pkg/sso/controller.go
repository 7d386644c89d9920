package sso

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/membergate/discourse-on-ghost/pkg/config"
	"github.com/membergate/discourse-on-ghost/pkg/discourse"
	"github.com/membergate/discourse-on-ghost/pkg/ghost"
	"github.com/membergate/discourse-on-ghost/pkg/httputil"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
	"github.com/membergate/discourse-on-ghost/pkg/signing"
)

const bearerPrefix = "Bearer "

// Controller handles the forum's SSO entry point.
type Controller struct {
	ghost          *ghost.Client
	codec          *signing.Codec
	verifier       TokenVerifier
	mode           config.SSOMode
	noAuthRedirect string
	logger         *observability.Logger
}

// NewController creates the SSO controller. verifier is only consulted in
// jwt mode and may be nil otherwise. noAuthRedirect falls back to the
// publisher's portal account page when empty.
func NewController(ghostClient *ghost.Client, codec *signing.Codec, verifier TokenVerifier, cfg config.SSOConfig, logger *observability.Logger) *Controller {
	noAuthRedirect := cfg.NoAuthRedirect
	if noAuthRedirect == "" {
		noAuthRedirect = ghostClient.PortalAccountURL()
	}

	return &Controller{
		ghost:          ghostClient,
		codec:          codec,
		verifier:       verifier,
		mode:           cfg.Mode,
		noAuthRedirect: noAuthRedirect,
		logger:         logger,
	}
}

// Handle runs one SSO exchange: validate the inbound signed payload, resolve
// the caller's member identity, and redirect back to the forum with a newly
// signed payload.
func (c *Controller) Handle(w http.ResponseWriter, r *http.Request) {
	ssoPayload, ok := httputil.SingleQueryParam(r, "sso")
	if !ok {
		httputil.WriteBadRequest(w, "SSO is required and must be a single value")
		return
	}
	signature, ok := httputil.SingleQueryParam(r, "sig")
	if !ok {
		httputil.WriteBadRequest(w, "Signature is required and must be a single value")
		return
	}

	if !c.codec.Verify(signature, []byte(ssoPayload)) {
		httputil.WriteBadRequest(w, "Unable to verify signature")
		return
	}

	fields, err := signing.DecodePayload(ssoPayload)
	if err != nil {
		c.logger.WithError(err).Info("Rejected SSO request with undecodable payload")
		httputil.WriteBadRequest(w, "Unable to decode SSO payload")
		return
	}

	nonce := fields.Get("nonce")
	returnURL := fields.Get("return_sso_url")
	if nonce == "" || returnURL == "" {
		httputil.WriteBadRequest(w, "SSO payload is missing nonce or return_sso_url")
		return
	}

	member, done := c.resolveMember(w, r)
	if done {
		return
	}

	outbound := url.Values{
		"nonce":       {nonce},
		"email":       {member.Email},
		"external_id": {member.UUID},
		"avatar_url":  {rewriteAvatarURL(member.AvatarImage)},
	}
	if member.Name != "" {
		outbound.Set("name", member.Name)
	}
	if groups := tierGroups(member.Subscriptions); len(groups) > 0 {
		outbound.Set("add_groups", strings.Join(groups, ","))
	}

	target, err := url.Parse(returnURL)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid return_sso_url")
		return
	}

	encoded := signing.EncodePayload(outbound)
	query := target.Query()
	query.Set("sso", encoded)
	query.Set("sig", c.codec.Sign([]byte(encoded)))
	target.RawQuery = query.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// resolveMember authenticates the caller per the configured mode. When done
// is true a response has already been written.
func (c *Controller) resolveMember(w http.ResponseWriter, r *http.Request) (*ghost.Member, bool) {
	switch c.mode {
	case config.SSOModeJWT:
		return c.resolveMemberFromToken(w, r)
	case config.SSOModeObscure:
		return c.resolveMemberFromQuery(w, r)
	default:
		return c.resolveMemberFromSession(w, r)
	}
}

func (c *Controller) resolveMemberFromSession(w http.ResponseWriter, r *http.Request) (*ghost.Member, bool) {
	member, err := c.ghost.GetSessionMember(r.Context(), r.Header.Get("Cookie"))
	if errors.Is(err, ghost.ErrNotLoggedIn) {
		c.redirectToLogin(w, r)
		return nil, true
	}
	if err != nil {
		c.logger.WithError(err).Error("Unable to resolve member session")
		httputil.WriteInternalError(w, "Unable to resolve your session")
		return nil, true
	}
	return member, false
}

func (c *Controller) resolveMemberFromToken(w http.ResponseWriter, r *http.Request) (*ghost.Member, bool) {
	authorization := r.Header.Get("Authorization")
	if !strings.HasPrefix(authorization, bearerPrefix) {
		httputil.WriteUnauthorized(w, "A bearer token is required")
		return nil, true
	}

	email, err := c.verifier.Verify(r.Context(), strings.TrimPrefix(authorization, bearerPrefix))
	if err != nil {
		c.logger.WithError(err).Info("Rejected SSO bearer token")
		httputil.WriteUnauthorized(w, err.Error())
		return nil, true
	}

	member, err := c.ghost.GetMemberByEmail(r.Context(), email)
	if errors.Is(err, ghost.ErrMemberNotFound) {
		httputil.WriteNotFound(w, "There is no member with your email address")
		return nil, true
	}
	if err != nil {
		c.logger.WithError(err).WithField("email", email).Error("Unable to look up member")
		httputil.WriteInternalError(w, "Unable to look up your member account")
		return nil, true
	}
	return member, false
}

// resolveMemberFromQuery authenticates cross-origin callers who carry their
// identity as email and uuid query parameters. The email must corroborate
// the uuid's member record, so guessing a uuid alone is not enough.
func (c *Controller) resolveMemberFromQuery(w http.ResponseWriter, r *http.Request) (*ghost.Member, bool) {
	email, emailOK := httputil.SingleQueryParam(r, "email")
	memberUUID, uuidOK := httputil.SingleQueryParam(r, "uuid")
	if !emailOK || !uuidOK {
		httputil.WriteBadRequest(w, "Email and UUID are required and must be single values")
		return nil, true
	}

	member, err := c.ghost.GetMemberByUUID(r.Context(), memberUUID)
	if errors.Is(err, ghost.ErrMemberNotFound) {
		httputil.WriteNotFound(w, "Unable to authenticate member")
		return nil, true
	}
	if err != nil {
		c.logger.WithError(err).Error("Unable to look up member")
		httputil.WriteInternalError(w, "Unable to look up your member account")
		return nil, true
	}
	if member.Email != email {
		httputil.WriteNotFound(w, "Unable to authenticate member")
		return nil, true
	}
	return member, false
}

// redirectToLogin sends unauthenticated session-mode callers to the login
// page, preserving sso and sig so the exchange can resume after login.
func (c *Controller) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target, err := url.Parse(c.noAuthRedirect)
	if err != nil {
		c.logger.WithError(err).Error("Configured login redirect is not a valid URL")
		httputil.WriteInternalError(w, "Unable to redirect you to the login page")
		return
	}

	query := target.Query()
	query.Set("sso", r.URL.Query().Get("sso"))
	query.Set("sig", r.URL.Query().Get("sig"))
	target.RawQuery = query.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// tierGroups derives the forum group names for the member's subscriptions.
func tierGroups(subscriptions []ghost.Subscription) []string {
	groups := make([]string, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		if subscription.Tier.Slug == "" {
			continue
		}
		groups = append(groups, discourse.GroupName(subscription.Tier.Slug))
	}
	return groups
}

// rewriteAvatarURL swaps gravatar's blank default image for an identicon,
// since the forum cannot render a transparent avatar.
func rewriteAvatarURL(avatar string) string {
	parsed, err := url.Parse(avatar)
	if err != nil || !strings.HasSuffix(parsed.Hostname(), "gravatar.com") {
		return avatar
	}

	query := parsed.Query()
	if query.Get("d") != "blank" {
		return avatar
	}
	query.Set("d", "identicon")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
