package membersync

import (
	"context"
	"fmt"

	"github.com/membergate/discourse-on-ghost/pkg/ghost"
)

// ActionKind identifies a deferred per-member operation.
type ActionKind string

const (
	// ActionSyncMember re-reads the member from Ghost and reconciles.
	ActionSyncMember ActionKind = "sync_member"
	// ActionSyncTiers reconciles against the tiers carried by the action.
	ActionSyncTiers ActionKind = "sync_tiers"
	// ActionSuspend suspends the member's forum account.
	ActionSuspend ActionKind = "suspend"
	// ActionAnonymize anonymizes the member's forum account.
	ActionAnonymize ActionKind = "anonymize"
	// ActionDeleteAccount deletes the member's forum account.
	ActionDeleteAccount ActionKind = "delete"
)

// Action is one deferred per-member operation with its typed arguments.
type Action struct {
	Kind       ActionKind
	MemberID   string
	MemberUUID string
	Tiers      []ghost.Tier
}

// EnqueueAction queues the action keyed by member id. It returns false when
// a job for the member is already pending.
func (s *Syncer) EnqueueAction(action Action) bool {
	queued := s.queue.Enqueue(action.MemberID, func(ctx context.Context) error {
		err := s.runAction(ctx, action)
		s.recordJob(action.Kind, err)
		return err
	})
	if queued && s.metrics != nil {
		s.metrics.QueuePendingJobs.Set(float64(s.queue.PendingCount()))
	}
	return queued
}

// HasPendingAction reports whether a job for the member is queued but not
// yet running.
func (s *Syncer) HasPendingAction(memberID string) bool {
	return s.queue.Has(memberID)
}

func (s *Syncer) runAction(ctx context.Context, action Action) error {
	if s.metrics != nil {
		s.metrics.QueuePendingJobs.Set(float64(s.queue.PendingCount()))
	}

	switch action.Kind {
	case ActionSyncMember:
		_, _, err := s.SyncByMemberID(ctx, action.MemberID)
		return err
	case ActionSyncTiers:
		_, _, err := s.SyncFromTiers(ctx, action.MemberUUID, action.Tiers)
		return err
	case ActionSuspend:
		return s.forum.SuspendExternalUser(ctx, action.MemberUUID)
	case ActionAnonymize:
		return s.forum.AnonymizeExternalUser(ctx, action.MemberUUID)
	case ActionDeleteAccount:
		return s.forum.DeleteExternalUser(ctx, action.MemberUUID)
	default:
		return fmt.Errorf("unknown sync action %q", action.Kind)
	}
}

func (s *Syncer) recordJob(kind ActionKind, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.SyncJobsTotal.WithLabelValues(string(kind), outcome).Inc()
}
