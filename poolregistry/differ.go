package poolregistry

import (
	"bytes"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

// PoolRegistryDiff represents the changes required to transition from one registry state to another.
type PoolRegistryDiff struct {
	// PoolAdditions contains pools that were registered.
	PoolAdditions []Pool `json:"poolAdditions,omitempty"`
	// PoolDeletions contains IDs of pools that were deregistered.
	PoolDeletions []common.Hash `json:"poolDeletions,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d PoolRegistryDiff) IsEmpty() bool {
	return len(d.PoolAdditions) == 0 && len(d.PoolDeletions) == 0
}

// Differ calculates the difference between two full registry views (Old -> New).
// Pool IDs are never reused, so a pool is either added, deleted or unchanged.
func Differ(old, new PoolRegistry) PoolRegistryDiff {
	oldPools := make(map[common.Hash]struct{}, len(old.Pools))
	for _, pool := range old.Pools {
		oldPools[pool.ID] = struct{}{}
	}
	newPools := make(map[common.Hash]struct{}, len(new.Pools))
	for _, pool := range new.Pools {
		newPools[pool.ID] = struct{}{}
	}

	var diff PoolRegistryDiff
	for _, pool := range new.Pools {
		if _, exists := oldPools[pool.ID]; !exists {
			diff.PoolAdditions = append(diff.PoolAdditions, pool)
		}
	}
	for _, pool := range old.Pools {
		if _, exists := newPools[pool.ID]; !exists {
			diff.PoolDeletions = append(diff.PoolDeletions, pool.ID)
		}
	}
	return diff
}

// Patcher constructs a new registry state by applying a diff to a previous
// state. prevState is not modified. Pools in the result are ordered by ID.
func Patcher(prevState PoolRegistry, diff PoolRegistryDiff) (PoolRegistry, error) {
	poolMap := make(map[common.Hash]Pool, len(prevState.Pools)+len(diff.PoolAdditions))
	for _, pool := range prevState.Pools {
		poolMap[pool.ID] = pool
	}
	for _, id := range diff.PoolDeletions {
		delete(poolMap, id)
	}
	for _, pool := range diff.PoolAdditions {
		poolMap[pool.ID] = pool
	}

	finalPools := make([]Pool, 0, len(poolMap))
	for _, pool := range poolMap {
		finalPools = append(finalPools, pool)
	}
	slices.SortFunc(finalPools, func(a, b Pool) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return PoolRegistry{Pools: finalPools}, nil
}
