package blockdag

import (
	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/dagconfig"
	"github.com/shadowdag/shadowd/errcode"
)

// ComputeCumulativeDifficulty returns max(cum_diff(tip)) + difficulty(block)
// over the block's own tips.
func ComputeCumulativeDifficulty(provider DifficultyProvider, tips []crypto.Hash, blockDifficulty uint64) (uint64, error) {
	_, bestCum, err := bestParent(provider, tips)
	if err != nil {
		return 0, err
	}
	return bestCum + blockDifficulty, nil
}

// orderCandidate is one not-yet-ordered block under consideration during
// ComputeTopologicalOrder.
type orderCandidate struct {
	hash       crypto.Hash
	header     *Header
	cumulative uint64
}

// ComputeTopologicalOrder extends the DAG's existing total order with
// newBlock and every ancestor reachable from it that is not yet ordered. It
// performs a breadth-first walk from the genesis side: among blocks whose
// parents are all already ordered, it repeatedly picks the one with the
// higher cumulative difficulty, breaking ties by the lower block hash,
// until every pending block has a topoheight.
//
// It does not mutate storage; callers apply the returned assignments
// (commit.go does this inside an exclusive lock).
func ComputeTopologicalOrder(s Storage, newBlock *Header) ([]crypto.Hash, error) {
	pending := make(map[crypto.Hash]*orderCandidate)
	var collect func(hash crypto.Hash) error
	collect = func(hash crypto.Hash) error {
		if _, ok := pending[hash]; ok {
			return nil
		}
		ordered, err := s.IsBlockTopologicalOrdered(hash)
		if err != nil {
			return err
		}
		if ordered {
			return nil
		}
		header, err := s.GetBlockHeader(hash)
		if err != nil {
			return err
		}
		cum, err := s.GetCumulativeDifficultyForBlockHash(hash)
		if err != nil {
			return err
		}
		pending[hash] = &orderCandidate{hash: hash, header: header, cumulative: cum}
		for _, tip := range header.Tips {
			if err := collect(tip); err != nil {
				return err
			}
		}
		return nil
	}
	if err := collect(newBlock.Hash()); err != nil {
		return nil, err
	}

	isOrderedOrAssigned := func(hash crypto.Hash, assigned map[crypto.Hash]struct{}) (bool, error) {
		if _, ok := assigned[hash]; ok {
			return true, nil
		}
		return s.IsBlockTopologicalOrdered(hash)
	}

	assigned := make(map[crypto.Hash]struct{}, len(pending))
	var order []crypto.Hash

	for len(assigned) < len(pending) {
		var best *orderCandidate
		for hash, cand := range pending {
			if _, done := assigned[hash]; done {
				continue
			}
			ready := true
			for _, tip := range cand.header.Tips {
				ok, err := isOrderedOrAssigned(tip, assigned)
				if err != nil {
					return nil, err
				}
				if !ok {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			if best == nil || cand.cumulative > best.cumulative || (cand.cumulative == best.cumulative && cand.hash.Less(best.hash)) {
				best = cand
			}
		}
		if best == nil {
			return nil, errcode.New(errcode.OrphanTips, "topological order stalled: remaining blocks have unresolved tips")
		}
		order = append(order, best.hash)
		assigned[best.hash] = struct{}{}
	}

	return order, nil
}

// IsStable reports whether a topoheight is far enough below top to be
// immune to reordering.
func IsStable(topoheight, topTopoheight uint64) bool {
	return topoheight+dagconfig.StableHeightLimit <= topTopoheight
}
