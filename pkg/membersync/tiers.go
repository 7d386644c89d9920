package membersync

import (
	"context"
	"strings"
	"sync"

	"github.com/membergate/discourse-on-ghost/pkg/discourse"
	"github.com/membergate/discourse-on-ghost/pkg/ghost"
	"github.com/membergate/discourse-on-ghost/pkg/observability"
)

// TierSyncer mirrors the set of Ghost tiers into managed forum groups.
type TierSyncer struct {
	ghost  *ghost.Client
	forum  *discourse.Client
	logger *observability.Logger
}

// NewTierSyncer creates a tier syncer.
func NewTierSyncer(ghostClient *ghost.Client, forumClient *discourse.Client, logger *observability.Logger) *TierSyncer {
	return &TierSyncer{
		ghost:  ghostClient,
		forum:  forumClient,
		logger: logger,
	}
}

// SyncTiersToGroups creates a managed group for every Ghost tier that is
// missing one. When removeUnmapped is set, managed groups with no matching
// tier are deleted; otherwise they are reported and left alone. Per-group
// failures are logged and do not abort the rest of the run.
func (t *TierSyncer) SyncTiersToGroups(ctx context.Context, removeUnmapped bool) error {
	tiers, err := t.ghost.GetTiers(ctx)
	if err != nil {
		return err
	}

	rawGroups, err := t.forum.GetAllGroups(ctx)
	if err != nil {
		return err
	}

	unmapped := make(map[string]int)
	for _, group := range rawGroups {
		if group.Automatic || !discourse.IsManagedGroupName(group.Name) {
			continue
		}
		unmapped[group.Name] = group.ID
	}

	var wg sync.WaitGroup
	var work int

	for _, tier := range tiers {
		name := discourse.GroupName(tier.Slug)
		if _, ok := unmapped[name]; ok {
			delete(unmapped, name)
			continue
		}

		work++
		wg.Add(1)
		go func(name, fullName string) {
			defer wg.Done()
			_, created, err := t.forum.EnsureGroup(ctx, name, fullName)
			if err != nil {
				t.logger.WithError(err).WithField("group", name).Error("Unable to create group for tier")
				return
			}
			if created {
				t.logger.WithField("group", name).Info("Created group for tier")
			}
		}(name, discourse.GroupFullName(tier.Name))
	}

	if removeUnmapped {
		for name, id := range unmapped {
			work++
			wg.Add(1)
			go func(name string, id int) {
				defer wg.Done()
				if err := t.forum.DeleteGroup(ctx, id); err != nil {
					t.logger.WithError(err).WithField("group", name).Error("Unable to delete unmapped group")
					return
				}
				t.logger.WithField("group", name).Info("Deleted unmapped group")
			}(name, id)
		}
	} else if len(unmapped) > 0 {
		names := make([]string, 0, len(unmapped))
		for name := range unmapped {
			names = append(names, name)
		}
		t.logger.Infof("Not removing unmapped groups: %s", strings.Join(names, ", "))
	}

	wg.Wait()

	if work == 0 {
		t.logger.Info("Tiers and groups are already in sync")
	}

	return nil
}
