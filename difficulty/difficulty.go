// Package difficulty implements the Kalman-filter difficulty controller
// (spec.md section 4.4): each block's target difficulty is derived from the
// solve time of its immediately preceding block using fixed-point unsigned
// arithmetic, not a sliding window average.
package difficulty

import (
	"math/big"

	"github.com/shadowdag/shadowd/dagconfig"
)

// Shift is the fixed-point scaling factor exponent.
const Shift = 32

var (
	// leftShift is 2**Shift, used to move values into and out of fixed-point
	// scale.
	leftShift = new(big.Int).Lsh(big.NewInt(1), Shift)

	// processNoiseCovar is 5% of leftShift, the filter's assumed process
	// noise.
	processNoiseCovar = func() *big.Int {
		v := new(big.Int).Lsh(big.NewInt(1), Shift)
		v.Div(v, big.NewInt(100))
		v.Mul(v, big.NewInt(5))
		return v
	}()

	// P is the initial estimate covariance used for the first block after
	// genesis or after a difficulty reset.
	P = new(big.Int).Set(leftShift)
)

// shiftLeft returns v << Shift.
func shiftLeft(v *big.Int) *big.Int {
	return new(big.Int).Lsh(v, Shift)
}

// shiftRight returns v >> Shift.
func shiftRight(v *big.Int) *big.Int {
	return new(big.Int).Rsh(v, Shift)
}

// KalmanFilter runs one step of the unsigned fixed-point Kalman filter.
//
//	z          is the latest observed hashrate estimate (previous_difficulty / solve_time).
//	xEstPrev   is the previous hashrate estimate.
//	pPrev      is the previous estimate covariance.
//
// It returns the new hashrate estimate and covariance.
func KalmanFilter(z, xEstPrev, pPrev *big.Int) (*big.Int, *big.Int) {
	z = shiftLeft(z)
	xEstPrev = shiftLeft(xEstPrev)

	// Prediction step.
	pPred := new(big.Int).Mul(xEstPrev, processNoiseCovar)
	pPred = shiftRight(pPred)
	pPred.Add(pPred, pPrev)

	// Update step.
	k := shiftLeft(pPred)
	denom := new(big.Int).Add(pPred, z)
	k.Div(k, denom)

	var xEstNew *big.Int
	if z.Cmp(xEstPrev) >= 0 {
		delta := new(big.Int).Sub(z, xEstPrev)
		delta.Mul(delta, k)
		delta = shiftRight(delta)
		xEstNew = new(big.Int).Add(xEstPrev, delta)
	} else {
		delta := new(big.Int).Sub(xEstPrev, z)
		delta.Mul(delta, k)
		delta = shiftRight(delta)
		xEstNew = new(big.Int).Sub(xEstPrev, delta)
	}

	pNew := new(big.Int).Sub(leftShift, k)
	pNew.Mul(pNew, pPred)
	pNew = shiftRight(pNew)

	xEstNew = shiftRight(xEstNew)

	return xEstNew, pNew
}

// CalculateDifficulty derives the next block's difficulty from the solve
// time between parentTimestamp and timestamp (both millisecond Unix times),
// the previous block's difficulty, and the filter's running covariance p.
//
// It returns the new difficulty and the covariance to carry forward to the
// next call. On underflow below the network floor it resets the covariance
// to P, matching the teacher's own reset-on-floor behavior.
func CalculateDifficulty(parentTimestamp, timestamp uint64, previousDifficulty *big.Int, p *big.Int) (*big.Int, *big.Int) {
	solveTime := timestamp - parentTimestamp
	if solveTime == 0 {
		solveTime = 1
	}

	z := new(big.Int).Div(previousDifficulty, big.NewInt(int64(solveTime)))
	xEstPrev := new(big.Int).Div(previousDifficulty, big.NewInt(dagconfig.BlockTimeMillis))

	xEstNew, pNew := KalmanFilter(z, xEstPrev, p)

	difficulty := new(big.Int).Mul(xEstNew, big.NewInt(dagconfig.BlockTimeMillis))

	minDiff := big.NewInt(dagconfig.MinimumDifficulty)
	if difficulty.Cmp(minDiff) < 0 {
		return minDiff, new(big.Int).Set(P)
	}

	return difficulty, pNew
}
