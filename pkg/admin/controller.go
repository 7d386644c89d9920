package admin

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/membergate/discourse-on-ghost/pkg/async"
	"github.com/membergate/discourse-on-ghost/pkg/ghost"
	"github.com/membergate/discourse-on-ghost/pkg/httputil"
	"github.com/membergate/discourse-on-ghost/pkg/membersync"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
)

const (
	adminSessionCookie = "ghost-admin-api-session"
	syncTiersKey       = "sync_tiers"

	// minimumSyncWait throttles how often a staff user can trigger a bulk
	// tier sync.
	minimumSyncWait = time.Minute

	// adminJobDelay spaces queued admin jobs closer together than member
	// sync jobs; tier syncs are rare and staff-triggered.
	adminJobDelay = 300 * time.Millisecond
)

// CacheClearer is any component holding process-local caches the clear-caches
// endpoint should reset.
type CacheClearer interface {
	ClearCaches()
}

// Controller serves the staff-gated maintenance endpoints.
type Controller struct {
	ghost      *ghost.Client
	tierSyncer *membersync.TierSyncer
	caches     []CacheClearer
	queue      *async.Queue
	logger     *observability.Logger

	mu       sync.Mutex
	lastSync time.Time
}

// NewController creates the admin controller. caches are cleared by the
// clear-caches endpoint.
func NewController(ghostClient *ghost.Client, tierSyncer *membersync.TierSyncer, logger *observability.Logger, caches ...CacheClearer) *Controller {
	return &Controller{
		ghost:      ghostClient,
		tierSyncer: tierSyncer,
		caches:     caches,
		queue:      async.NewQueue(logger, adminJobDelay),
		logger:     logger,
	}
}

// Queue exposes the admin job queue for shutdown draining.
func (c *Controller) Queue() *async.Queue {
	return c.queue
}

// SyncTiers queues a bulk tier-to-group sync. Repeated triggers inside the
// rate-limit window get 429; a trigger while a sync is already queued simply
// reports that one.
func (c *Controller) SyncTiers(w http.ResponseWriter, r *http.Request) {
	if !c.assertLoggedIn(w, r) {
		return
	}

	c.mu.Lock()
	tooSoon := time.Since(c.lastSync) < minimumSyncWait
	c.mu.Unlock()
	if tooSoon {
		httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "A sync request recently occurred. Please wait before trying again")
		return
	}

	if c.queue.Has(syncTiersKey) {
		httputil.WriteMessage(w, http.StatusOK, "Syncing Tiers")
		return
	}

	removeUnmapped := r.URL.Query().Get("removeUnmappedTiers") == "true"
	c.queue.Enqueue(syncTiersKey, func(ctx context.Context) error {
		c.markSynced()
		defer c.markSynced()
		return c.tierSyncer.SyncTiersToGroups(ctx, removeUnmapped)
	})

	message := "Syncing tiers (not removing unmapped tiers)"
	if removeUnmapped {
		message = "Syncing tiers (removing unmapped tiers)"
	}
	httputil.WriteMessage(w, http.StatusOK, message)
}

// ClearCaches resets every registered process-local cache.
func (c *Controller) ClearCaches(w http.ResponseWriter, r *http.Request) {
	if !c.assertLoggedIn(w, r) {
		return
	}

	for _, cache := range c.caches {
		cache.ClearCaches()
	}

	c.logger.Info("Cleared process-local caches")
	httputil.WriteMessage(w, http.StatusOK, "Caches cleared")
}

func (c *Controller) markSynced() {
	c.mu.Lock()
	c.lastSync = time.Now()
	c.mu.Unlock()
}

// assertLoggedIn requires a Ghost staff admin session. It writes the 401
// itself and reports whether the caller may proceed.
func (c *Controller) assertLoggedIn(w http.ResponseWriter, r *http.Request) bool {
	cookie := r.Header.Get("Cookie")
	if !strings.Contains(cookie, adminSessionCookie) {
		httputil.WriteUnauthorized(w, "You must be logged in to access this resource")
		return false
	}

	if _, err := c.ghost.AuthenticateStaffFromCookie(r.Context(), cookie); err != nil {
		c.logger.WithError(err).Info("Rejected admin request")
		httputil.WriteUnauthorized(w, "Unable to determine authenticated user")
		return false
	}

	return true
}
