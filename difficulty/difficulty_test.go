package difficulty

import (
	"math/big"
	"testing"
)

func TestKalmanFilterVectors(t *testing.T) {
	// The reference vectors are taken at 100x the network floor.
	minDiff := big.NewInt(15000000)

	z1 := new(big.Int).Div(minDiff, big.NewInt(1000))
	xEst, p := KalmanFilter(z1, big.NewInt(1), P)
	if xEst.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("expected x_est_new=2, got %s", xEst)
	}
	if p.Cmp(big.NewInt(4509399998)) != 0 {
		t.Fatalf("expected p_new=4509399998, got %s", p)
	}

	z2 := new(big.Int).Div(minDiff, big.NewInt(2000))
	xEst2, p2 := KalmanFilter(z2, xEst, p)
	if xEst2.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("expected x_est_new=3, got %s", xEst2)
	}
	if p2.Cmp(big.NewInt(4938139585)) != 0 {
		t.Fatalf("expected p_new=4938139585, got %s", p2)
	}
}

func TestCalculateDifficultyFloor(t *testing.T) {
	diff, p := CalculateDifficulty(1000, 1001, big.NewInt(1), P)
	if diff.Cmp(big.NewInt(150000)) != 0 {
		t.Fatalf("expected difficulty floor, got %s", diff)
	}
	if p.Cmp(P) != 0 {
		t.Fatal("expected covariance reset to P on floor")
	}
}

func TestCalculateDifficultyTracksFasterBlocks(t *testing.T) {
	// At the floor one faster block moves the integer hashrate estimate by
	// less than one unit, so start well above it.
	prev := big.NewInt(1500000)
	p := new(big.Int).Set(P)
	diff, newP := CalculateDifficulty(0, 7500, prev, p)
	if diff.Cmp(prev) <= 0 {
		t.Fatalf("expected difficulty to rise for a faster-than-target block, got %s", diff)
	}
	if newP == nil {
		t.Fatal("expected non-nil covariance")
	}
}
