package membersync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/membergate/discourse-on-ghost/pkg/async"
	"github.com/membergate/discourse-on-ghost/pkg/discourse"
	"github.com/membergate/discourse-on-ghost/pkg/ghost"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
)

// ChangeAction describes one side of a reconciliation diff.
type ChangeAction string

const (
	ChangeAdded   ChangeAction = "added"
	ChangeRemoved ChangeAction = "removed"
)

// ChangeRecord reports one applied (or attempted) group membership change.
// Records are ordered by dispatch: removals first, then additions.
type ChangeRecord struct {
	GroupName string
	Action    ChangeAction
	Success   bool
}

// GroupSpec names a forum group a member is required to be in.
type GroupSpec struct {
	Name     string
	FullName string
}

// GroupSpecsFromTiers derives the required managed groups for a set of
// tiers.
func GroupSpecsFromTiers(tiers []ghost.Tier) []GroupSpec {
	specs := make([]GroupSpec, 0, len(tiers))
	for _, tier := range tiers {
		specs = append(specs, GroupSpec{
			Name:     discourse.GroupName(tier.Slug),
			FullName: discourse.GroupFullName(tier.Name),
		})
	}
	return specs
}

// Syncer reconciles Ghost members against their forum groups.
type Syncer struct {
	ghost   *ghost.Client
	forum   *discourse.Client
	queue   *async.Queue
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewSyncer creates a syncer with its own action queue. metrics may be nil.
func NewSyncer(ghostClient *ghost.Client, forumClient *discourse.Client, logger *observability.Logger, metrics *observability.Metrics, jobDelay time.Duration) *Syncer {
	return &Syncer{
		ghost:   ghostClient,
		forum:   forumClient,
		queue:   async.NewQueue(logger, jobDelay),
		logger:  logger,
		metrics: metrics,
	}
}

// Queue exposes the underlying action queue, primarily for shutdown
// draining.
func (s *Syncer) Queue() *async.Queue {
	return s.queue
}

// Reconcile diffs the member's current managed forum groups against
// required and applies the changes. Removals are dispatched before
// additions; all changes run concurrently behind the forum client's gate,
// and one failing change never aborts its siblings. synced is false when
// the member has no forum account yet, which defers the sync until their
// first forum login.
func (s *Syncer) Reconcile(ctx context.Context, uuid string, required []GroupSpec) (changes []ChangeRecord, synced bool, err error) {
	user, err := s.forum.GetMember(ctx, uuid)
	if errors.Is(err, discourse.ErrMemberNotFound) {
		s.logger.WithField("uuid", uuid).Info("Member has no forum account yet, deferring sync")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	requiredNames := make(map[string]struct{}, len(required))
	for _, spec := range required {
		requiredNames[spec.Name] = struct{}{}
	}

	currentManaged := make(map[string]struct{})
	var toRemove []string
	for _, group := range user.Groups {
		if group.Automatic || !discourse.IsManagedGroupName(group.Name) {
			continue
		}
		currentManaged[group.Name] = struct{}{}
		if _, ok := requiredNames[group.Name]; !ok {
			toRemove = append(toRemove, group.Name)
		}
	}

	var toAdd []GroupSpec
	for _, spec := range required {
		if _, ok := currentManaged[spec.Name]; !ok {
			toAdd = append(toAdd, spec)
		}
	}

	// Fixed-length so the workers write into a slice header that never moves.
	changes = make([]ChangeRecord, len(toRemove)+len(toAdd))
	var wg sync.WaitGroup

	for i, name := range toRemove {
		index := i
		changes[index] = ChangeRecord{GroupName: name, Action: ChangeRemoved}

		wg.Add(1)
		go func(index int, name string) {
			defer wg.Done()
			err := s.forum.RemoveMemberFromGroup(ctx, user.ID, name)
			if err != nil {
				s.logger.WithError(err).WithField("group", name).Error("Unable to remove member from group")
			}
			changes[index].Success = err == nil
		}(index, name)
	}

	for i, spec := range toAdd {
		index := len(toRemove) + i
		changes[index] = ChangeRecord{GroupName: spec.Name, Action: ChangeAdded}

		wg.Add(1)
		go func(index int, spec GroupSpec) {
			defer wg.Done()
			err := s.forum.AddMemberToGroup(ctx, user.ID, spec.Name, spec.FullName)
			if err != nil {
				s.logger.WithError(err).WithField("group", spec.Name).Error("Unable to add member to group")
			}
			changes[index].Success = err == nil
		}(index, spec)
	}

	wg.Wait()
	s.recordChanges(changes)

	return changes, true, nil
}

// SyncByMemberID reads the member's tiers from Ghost and reconciles their
// forum groups. A member deleted from Ghost between webhook and sync is a
// soft no-op.
func (s *Syncer) SyncByMemberID(ctx context.Context, memberID string) ([]ChangeRecord, bool, error) {
	member, err := s.ghost.GetMemberByID(ctx, memberID)
	if errors.Is(err, ghost.ErrMemberNotFound) {
		s.logger.WithField("member_id", memberID).Info("Member no longer exists in Ghost, skipping sync")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return s.Reconcile(ctx, member.UUID, GroupSpecsFromTiers(member.Tiers))
}

// SyncFromTiers reconciles the member's forum groups against an explicit
// tier list, as delivered by a webhook payload.
func (s *Syncer) SyncFromTiers(ctx context.Context, uuid string, tiers []ghost.Tier) ([]ChangeRecord, bool, error) {
	return s.Reconcile(ctx, uuid, GroupSpecsFromTiers(tiers))
}

func (s *Syncer) recordChanges(changes []ChangeRecord) {
	if s.metrics == nil {
		return
	}
	for _, change := range changes {
		outcome := "success"
		if !change.Success {
			outcome = "failure"
		}
		s.metrics.GroupChangesTotal.WithLabelValues(string(change.Action), outcome).Inc()
	}
}
