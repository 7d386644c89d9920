package webhook

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/membergate/discourse-on-ghost/pkg/config"
	"github.com/membergate/discourse-on-ghost/pkg/ghost"
	"github.com/membergate/discourse-on-ghost/pkg/httputil"
	"github.com/membergate/discourse-on-ghost/pkg/membersync"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
	"github.com/membergate/discourse-on-ghost/pkg/replay"
	"github.com/membergate/discourse-on-ghost/pkg/signing"
)

const signatureHeader = "X-Ghost-Signature"

// maxBodyBytes bounds webhook bodies; member payloads are small.
const maxBodyBytes = 1 << 20

// Controller verifies and dispatches publisher webhook deliveries.
type Controller struct {
	codec        *signing.Codec
	guard        *replay.Guard
	syncer       *membersync.Syncer
	version      string
	deleteAction config.DeleteAction
	verify       bool
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// NewController creates the webhook controller. An empty secret disables
// signature verification, an explicit opt-out for trusted-network
// deployments. metrics may be nil.
func NewController(cfg config.WebhookConfig, syncer *membersync.Syncer, logger *observability.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{
		codec:        signing.NewCodec(cfg.Secret),
		guard:        replay.NewGuard(replay.DefaultCapacity),
		syncer:       syncer,
		version:      cfg.Version,
		deleteAction: cfg.DeleteAction,
		verify:       cfg.Secret != "",
		logger:       logger,
		metrics:      metrics,
	}
}

type memberPayload struct {
	Member struct {
		Current  memberSnapshot `json:"current"`
		Previous memberSnapshot `json:"previous"`
	} `json:"member"`
}

type memberSnapshot struct {
	ID    string       `json:"id"`
	UUID  string       `json:"uuid"`
	Tiers []ghost.Tier `json:"tiers"`
}

// MemberUpdated handles the member-updated webhook. Deliveries with a tier
// list sync against it directly; deliveries without one trigger a fresh
// member lookup at sync time.
func (c *Controller) MemberUpdated(w http.ResponseWriter, r *http.Request) {
	c.logger.Info("Processing member updated event")

	body, ok := c.verifiedBody(w, r, "member_updated")
	if !ok {
		return
	}

	var payload memberPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Member.Current.ID == "" {
		httputil.WriteBadRequest(w, "Missing member ID")
		return
	}

	member := payload.Member.Current
	if c.syncer.HasPendingAction(member.ID) {
		c.recordDelivery("member_updated", "duplicate_pending")
		httputil.WriteAccepted(w, "Syncing member")
		return
	}

	if member.Tiers == nil {
		c.syncer.EnqueueAction(membersync.Action{
			Kind:     membersync.ActionSyncMember,
			MemberID: member.ID,
		})
	} else {
		c.syncer.EnqueueAction(membersync.Action{
			Kind:       membersync.ActionSyncTiers,
			MemberID:   member.ID,
			MemberUUID: member.UUID,
			Tiers:      member.Tiers,
		})
	}

	c.recordDelivery("member_updated", "accepted")
	httputil.WriteAccepted(w, "Syncing member")
}

// MemberDeleted handles the member-deleted webhook per the configured delete
// action. With action "none" deliveries are acknowledged and dropped.
func (c *Controller) MemberDeleted(w http.ResponseWriter, r *http.Request) {
	c.logger.Info("Processing member removed event")

	body, ok := c.verifiedBody(w, r, "member_deleted")
	if !ok {
		return
	}

	var payload memberPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.Member.Previous.ID == "" {
		httputil.WriteBadRequest(w, "Missing member ID")
		return
	}

	member := payload.Member.Previous
	action := membersync.Action{MemberID: member.ID, MemberUUID: member.UUID}

	switch c.deleteAction {
	case config.DeleteActionSync:
		action.Kind = membersync.ActionSyncTiers
		action.Tiers = []ghost.Tier{}
	case config.DeleteActionSuspend:
		action.Kind = membersync.ActionSuspend
	case config.DeleteActionAnonymize:
		action.Kind = membersync.ActionAnonymize
	case config.DeleteActionDelete:
		action.Kind = membersync.ActionDeleteAccount
	default:
		c.recordDelivery("member_deleted", "ignored")
		httputil.WriteAccepted(w, "Member removal ignored")
		return
	}

	c.syncer.EnqueueAction(action)
	c.recordDelivery("member_deleted", "accepted")
	httputil.WriteAccepted(w, "Syncing member")
}

// verifiedBody reads the delivery body and enforces signature and replay
// checks. When ok is false a response has already been written.
func (c *Controller) verifiedBody(w http.ResponseWriter, r *http.Request, hook string) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteBadRequest(w, "Unable to read request body")
		return nil, false
	}

	if !c.verify {
		return body, true
	}

	signature, timestamp, ok := parseSignatureHeader(r.Header.Get(signatureHeader))
	if !ok {
		c.recordDelivery(hook, "bad_header")
		httputil.WriteBadRequest(w, "Invalid signature header")
		return nil, false
	}

	if !c.guard.Insert(timestamp) {
		c.logger.WithField("timestamp", timestamp).Info("Ignoring replayed webhook delivery")
		if c.metrics != nil {
			c.metrics.WebhookReplaysTotal.Inc()
		}
		httputil.WriteNoContent(w)
		return nil, false
	}

	var signed []byte
	switch c.version {
	case "1":
		signed = body
	case "2":
		signed = append(bytes.Clone(body), timestamp...)
	default:
		c.logger.WithField("version", c.version).Error("Unrecognized webhook signature version")
		httputil.WriteInternalError(w, "Webhook verification is misconfigured")
		return nil, false
	}

	if !c.codec.Verify(signature, signed) {
		c.recordDelivery(hook, "bad_signature")
		httputil.WriteBadRequest(w, "Unable to verify signature")
		return nil, false
	}

	return body, true
}

// parseSignatureHeader splits a "sha256=<hex>, t=<ts>" header into its
// signature and timestamp tokens. Both are required.
func parseSignatureHeader(header string) (signature, timestamp string, ok bool) {
	for _, token := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(token), "=")
		if !found {
			continue
		}
		switch key {
		case "sha256":
			signature = value
		case "t":
			timestamp = value
		}
	}

	return signature, timestamp, signature != "" && timestamp != ""
}

func (c *Controller) recordDelivery(hook, outcome string) {
	if c.metrics != nil {
		c.metrics.WebhookDeliveriesTotal.WithLabelValues(hook, outcome).Inc()
	}
}
