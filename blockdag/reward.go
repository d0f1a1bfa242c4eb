package blockdag

import "github.com/shadowdag/shadowd/dagconfig"

// BaseReward computes the unadjusted block reward for a block mined when
// circulatingSupply atomic units are already in existence, following the
// emission curve: reward halves in proportion to the remaining gap to
// MaxSupply, shifted by EmissionSpeedFactor. It saturates at zero once
// MaxSupply is reached.
func BaseReward(circulatingSupply uint64) uint64 {
	if circulatingSupply >= dagconfig.MaxSupply {
		return 0
	}
	remaining := dagconfig.MaxSupply - circulatingSupply
	return remaining >> dagconfig.EmissionSpeedFactor
}

// RewardSplit is the breakdown of one block's minted reward.
type RewardSplit struct {
	// MinerReward is the amount credited to the block's miner.
	MinerReward uint64
	// DevFee is the amount diverted to dagconfig.Params.DevFeePublicKey.
	DevFee uint64
	// Total is MinerReward + DevFee, the amount added to circulating supply.
	Total uint64
}

// ComputeReward splits base_reward for a block, discounting side blocks to
// SideBlockRewardPercent before the dev fee is taken.
func ComputeReward(circulatingSupply uint64, isSideBlock bool) RewardSplit {
	reward := BaseReward(circulatingSupply)
	if isSideBlock {
		reward = reward * dagconfig.SideBlockRewardPercent / 100
	}
	devFee := reward * dagconfig.DevFeePercent / 100
	return RewardSplit{
		MinerReward: reward - devFee,
		DevFee:      devFee,
		Total:       reward,
	}
}
