package clusterlock

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-coord/pkg/lockstore"
)

// TestHandleStatisticsTrackOwnership drives handles of three nodes through
// random TryLock/Unlock sequences. The stored holder must always be the one
// handle whose held gauge is set.
func TestHandleStatisticsTrackOwnership(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("held gauge matches stored holder", prop.ForAll(
		func(ops []int) bool {
			ctx := context.Background()
			store := lockstore.NewMemoryStore()
			ids := []string{"node-a", "node-b", "node-c"}

			locks := make([]*Lock, len(ids))
			for i, id := range ids {
				svc := NewService(store, &fakeNodes{id: id, live: ids}, Options{})
				lock, err := svc.GetLockForName(ctx, "prop")
				if err != nil {
					return false
				}
				locks[i] = lock
			}

			for _, op := range ops {
				lock := locks[(op>>1)%len(locks)]
				if op&1 == 0 {
					if _, err := lock.TryLock(ctx); err != nil {
						return false
					}
				} else {
					_ = lock.Unlock(ctx)
				}

				row, err := store.GetStatus(ctx, "prop")
				if err != nil || row == nil {
					return false
				}
				for i, l := range locks {
					stats := l.Statistics()
					holds := row.LockedBy == ids[i]
					if (stats[StatHeld] == 1) != holds {
						return false
					}
					if stats[StatAcquired]-stats[StatReleases] != stats[StatHeld] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}
