package vault

import (
	"github.com/defistate/vault-ledger-go/poolregistry"
	"github.com/ethereum/go-ethereum/common"
)

// SnapshotDiff is the change between two snapshots: pool registrations and
// deregistrations, plus the full view of every pool that is new or whose
// balances changed.
type SnapshotDiff struct {
	Registry poolregistry.PoolRegistryDiff `json:"registry"`
	Updates  []PoolView                    `json:"updates,omitempty"`
}

// IsEmpty returns true if the diff contains no changes.
func (d SnapshotDiff) IsEmpty() bool {
	return d.Registry.IsEmpty() && len(d.Updates) == 0
}

// Differ calculates the difference between two snapshots (Old -> New).
func Differ(old, new *Snapshot) SnapshotDiff {
	oldPools := make(map[common.Hash]PoolView, len(old.Pools))
	for _, p := range old.Pools {
		oldPools[p.Pool.ID] = p
	}

	diff := SnapshotDiff{Registry: poolregistry.Differ(old.Registry(), new.Registry())}
	for _, p := range new.Pools {
		if prev, exists := oldPools[p.Pool.ID]; !exists || !prev.equal(p) {
			diff.Updates = append(diff.Updates, deepCopyPoolView(p))
		}
	}
	return diff
}

// Patcher constructs a new snapshot by applying diff to prev. prev is not
// modified.
func Patcher(prev *Snapshot, diff SnapshotDiff) (*Snapshot, error) {
	reg, err := poolregistry.Patcher(prev.Registry(), diff.Registry)
	if err != nil {
		return nil, err
	}

	views := make(map[common.Hash]PoolView, len(prev.Pools)+len(diff.Updates))
	for _, p := range prev.Pools {
		views[p.Pool.ID] = p
	}
	for _, p := range diff.Updates {
		views[p.Pool.ID] = p
	}

	out := &Snapshot{Pools: make([]PoolView, 0, len(reg.Pools))}
	for _, pool := range reg.Pools {
		p, ok := views[pool.ID]
		if !ok {
			p = PoolView{Pool: pool}
		}
		out.Pools = append(out.Pools, deepCopyPoolView(p))
	}
	return out, nil
}
