package webhook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/membergate/discourse-on-ghost/pkg/config"
	"github.com/membergate/discourse-on-ghost/pkg/discourse"
	"github.com/membergate/discourse-on-ghost/pkg/ghost"
	"github.com/membergate/discourse-on-ghost/pkg/membersync"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
	"github.com/membergate/discourse-on-ghost/pkg/signing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWebhookSecret = "hook-secret"
	testAdminKey      = "64c5e5a7b3d1a2c4e6f80912:aa6c73f2189e22f348ba3b8bc3f0300e09641c0b8d2a27e7d76ed8d28ea06e60"

	updatedBody = `{"member":{"current":{"id":"member-1","uuid":"m-uuid","tiers":[{"id":"t1","name":"Gold","slug":"gold"}]}}}`
	deletedBody = `{"member":{"previous":{"id":"member-1","uuid":"m-uuid"}}}`
)

// newParkedSyncer returns a syncer whose queue is blocked by a filler job,
// so enqueued actions stay pending and never reach the network. The returned
// release function unblocks the queue.
func newParkedSyncer(t *testing.T) (*membersync.Syncer, func()) {
	t.Helper()
	logger := observability.NewTestLogger()

	forumClient, err := discourse.NewClient(config.DiscourseConfig{
		URL:            "http://forum.invalid",
		APIKey:         "k",
		APIUser:        "system",
		MaxConcurrency: 3,
		RequestTimeout: time.Second,
	}, logger, nil)
	require.NoError(t, err)

	ghostClient, err := ghost.NewClient(config.GhostConfig{
		URL:            "http://ghost.invalid",
		AdminAPIKey:    testAdminKey,
		RequestTimeout: time.Second,
	}, logger)
	require.NoError(t, err)

	syncer := membersync.NewSyncer(ghostClient, forumClient, logger, nil, time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	syncer.Queue().Enqueue("park", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	return syncer, func() { close(release) }
}

func newTestController(syncer *membersync.Syncer, secret string, version string, deleteAction config.DeleteAction) *Controller {
	return NewController(config.WebhookConfig{
		Secret:       secret,
		Version:      version,
		DeleteAction: deleteAction,
	}, syncer, observability.NewTestLogger(), nil)
}

func signedRequest(target, body, timestamp, version string) *http.Request {
	codec := signing.NewCodec(testWebhookSecret)

	signed := body
	if version == "2" {
		signed = body + timestamp
	}

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("X-Ghost-Signature", fmt.Sprintf("sha256=%s, t=%s", codec.Sign([]byte(signed)), timestamp))
	return req
}

func TestMemberUpdated_WithoutSecretSkipsVerification(t *testing.T) {
	syncer, release := newParkedSyncer(t)
	defer release()

	controller := newTestController(syncer, "", "2", config.DeleteActionNone)

	recorder := httptest.NewRecorder()
	controller.MemberUpdated(recorder, httptest.NewRequest(http.MethodPost, "/hook/updated", strings.NewReader(updatedBody)))

	assert.Equal(t, http.StatusAccepted, recorder.Code)
	assert.True(t, syncer.HasPendingAction("member-1"))
}

func TestMemberUpdated_ReplayedDeliveryIsIgnored(t *testing.T) {
	syncer, release := newParkedSyncer(t)
	defer release()

	controller := newTestController(syncer, testWebhookSecret, "2", config.DeleteActionNone)

	first := httptest.NewRecorder()
	controller.MemberUpdated(first, signedRequest("/hook/updated", updatedBody, "1700000000", "2"))
	assert.Equal(t, http.StatusAccepted, first.Code)

	second := httptest.NewRecorder()
	controller.MemberUpdated(second, signedRequest("/hook/updated", updatedBody, "1700000000", "2"))
	assert.Equal(t, http.StatusNoContent, second.Code)

	// The filler already started, so the pending count is the sync action
	// alone; the replayed delivery queued nothing.
	assert.Equal(t, 1, syncer.Queue().PendingCount())
}

func TestMemberUpdated_SignatureVersions(t *testing.T) {
	t.Run("version 1 signs the body alone", func(t *testing.T) {
		syncer, release := newParkedSyncer(t)
		defer release()

		controller := newTestController(syncer, testWebhookSecret, "1", config.DeleteActionNone)

		recorder := httptest.NewRecorder()
		controller.MemberUpdated(recorder, signedRequest("/hook/updated", updatedBody, "1700000000", "1"))
		assert.Equal(t, http.StatusAccepted, recorder.Code)
	})

	t.Run("version mismatch fails verification", func(t *testing.T) {
		syncer, release := newParkedSyncer(t)
		defer release()

		controller := newTestController(syncer, testWebhookSecret, "2", config.DeleteActionNone)

		recorder := httptest.NewRecorder()
		controller.MemberUpdated(recorder, signedRequest("/hook/updated", updatedBody, "1700000000", "1"))
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("unrecognized version is a server error", func(t *testing.T) {
		syncer, release := newParkedSyncer(t)
		defer release()

		controller := newTestController(syncer, testWebhookSecret, "3", config.DeleteActionNone)

		recorder := httptest.NewRecorder()
		controller.MemberUpdated(recorder, signedRequest("/hook/updated", updatedBody, "1700000000", "2"))
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
		assert.False(t, syncer.HasPendingAction("member-1"))
	})
}

func TestMemberUpdated_RejectsMalformedSignatureHeader(t *testing.T) {
	syncer, release := newParkedSyncer(t)
	defer release()

	controller := newTestController(syncer, testWebhookSecret, "2", config.DeleteActionNone)

	for name, header := range map[string]string{
		"missing header":    "",
		"missing timestamp": "sha256=abcdef",
		"missing signature": "t=1700000000",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/hook/updated", strings.NewReader(updatedBody))
			if header != "" {
				req.Header.Set("X-Ghost-Signature", header)
			}

			recorder := httptest.NewRecorder()
			controller.MemberUpdated(recorder, req)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}
}

func TestMemberUpdated_RejectsBodyWithoutMemberID(t *testing.T) {
	syncer, release := newParkedSyncer(t)
	defer release()

	controller := newTestController(syncer, "", "2", config.DeleteActionNone)

	recorder := httptest.NewRecorder()
	controller.MemberUpdated(recorder, httptest.NewRequest(http.MethodPost, "/hook/updated", strings.NewReader(`{"member":{}}`)))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestMemberUpdated_PendingMemberIsNotRequeued(t *testing.T) {
	syncer, release := newParkedSyncer(t)
	defer release()

	controller := newTestController(syncer, "", "2", config.DeleteActionNone)

	first := httptest.NewRecorder()
	controller.MemberUpdated(first, httptest.NewRequest(http.MethodPost, "/hook/updated", strings.NewReader(updatedBody)))
	require.Equal(t, http.StatusAccepted, first.Code)
	require.Equal(t, 1, syncer.Queue().PendingCount())

	second := httptest.NewRecorder()
	controller.MemberUpdated(second, httptest.NewRequest(http.MethodPost, "/hook/updated", strings.NewReader(updatedBody)))
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, 1, syncer.Queue().PendingCount())
}

func TestMemberDeleted_ActionMapping(t *testing.T) {
	t.Run("suspend enqueues the member", func(t *testing.T) {
		syncer, release := newParkedSyncer(t)
		defer release()

		controller := newTestController(syncer, "", "2", config.DeleteActionSuspend)

		recorder := httptest.NewRecorder()
		controller.MemberDeleted(recorder, httptest.NewRequest(http.MethodPost, "/hook/deleted", strings.NewReader(deletedBody)))
		assert.Equal(t, http.StatusAccepted, recorder.Code)
		assert.True(t, syncer.HasPendingAction("member-1"))
	})

	t.Run("none acknowledges without queueing", func(t *testing.T) {
		syncer, release := newParkedSyncer(t)
		defer release()

		controller := newTestController(syncer, "", "2", config.DeleteActionNone)

		recorder := httptest.NewRecorder()
		controller.MemberDeleted(recorder, httptest.NewRequest(http.MethodPost, "/hook/deleted", strings.NewReader(deletedBody)))
		assert.Equal(t, http.StatusAccepted, recorder.Code)
		assert.False(t, syncer.HasPendingAction("member-1"))
	})
}

func TestParseSignatureHeader(t *testing.T) {
	signature, timestamp, ok := parseSignatureHeader("sha256=abc123, t=1700000000")
	require.True(t, ok)
	assert.Equal(t, "abc123", signature)
	assert.Equal(t, "1700000000", timestamp)

	_, _, ok = parseSignatureHeader("sha256=abc123")
	assert.False(t, ok)
}
