package blockdag

import (
	"math/big"

	"github.com/shadowdag/shadowd/crypto"
	"github.com/shadowdag/shadowd/difficulty"
	"github.com/shadowdag/shadowd/errcode"
)

// maxPoWTarget is 2**256 - 1, the widest value a pow_hash*difficulty product
// may reach and still pass (spec.md section 4.4).
var maxPoWTarget = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// CheckProofOfWork reports whether powHash, read as a big-endian integer,
// satisfies the given difficulty: pow_hash * difficulty <= 2**256 - 1.
func CheckProofOfWork(powHash crypto.Hash, diff uint64) bool {
	h := new(big.Int).SetBytes(powHash[:])
	product := new(big.Int).Mul(h, new(big.Int).SetUint64(diff))
	return product.Cmp(maxPoWTarget) <= 0
}

// bestParent picks the tip with the highest cumulative difficulty, breaking
// ties by the lower block hash.
func bestParent(provider DifficultyProvider, tips []crypto.Hash) (crypto.Hash, uint64, error) {
	var best crypto.Hash
	var bestCum uint64
	first := true
	for _, tip := range tips {
		cum, err := provider.GetCumulativeDifficultyForBlockHash(tip)
		if err != nil {
			return crypto.Hash{}, 0, err
		}
		if first || cum > bestCum || (cum == bestCum && tip.Less(best)) {
			best = tip
			bestCum = cum
			first = false
		}
	}
	return best, bestCum, nil
}

// ExpectedDifficulty derives the difficulty a candidate block with the
// given tips and timestamp must satisfy, running the Kalman filter from the
// best parent's own difficulty and solve time.
func ExpectedDifficulty(provider DifficultyProvider, tips []crypto.Hash, candidateTimestamp uint64) (uint64, error) {
	parent, _, err := bestParent(provider, tips)
	if err != nil {
		return 0, err
	}
	parentDifficulty, err := provider.GetDifficultyForBlockHash(parent)
	if err != nil {
		return 0, err
	}
	parentTimestamp, err := provider.GetTimestampForBlockHash(parent)
	if err != nil {
		return 0, err
	}

	diff, _ := difficulty.CalculateDifficulty(parentTimestamp, candidateTimestamp, new(big.Int).SetUint64(parentDifficulty), difficulty.P)
	if !diff.IsUint64() {
		return 0, errcode.New(errcode.Overflow, "difficulty overflowed uint64")
	}
	return diff.Uint64(), nil
}

// VerifyProofOfWork computes the expected next difficulty from tips'
// best parent and checks powHash against it.
func VerifyProofOfWork(provider DifficultyProvider, powHash crypto.Hash, tips []crypto.Hash, candidateTimestamp uint64) error {
	expected, err := ExpectedDifficulty(provider, tips, candidateTimestamp)
	if err != nil {
		return err
	}
	if !CheckProofOfWork(powHash, expected) {
		return errcode.New(errcode.InvalidPoW, "proof of work does not satisfy difficulty %d", expected)
	}
	return nil
}
