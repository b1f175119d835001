// Package status derives governance proposal state from chain data.
// Everything here is pure arithmetic; callers supply the numbers.
package status

import (
	"fmt"
	"math"
)

// Proposal states as persisted in proposal documents.
const (
	StatusActive  = "active"
	StatusPassed  = "passed"
	StatusExpired = "expired"
	StatusFunded  = "funded"
)

// Params are the superblock cycle parameters of one Dash network.
type Params struct {
	FirstSuperblockHeight int64
	SuperblockInterval    int64
}

var networks = map[string]Params{
	"mainnet": {FirstSuperblockHeight: 614820, SuperblockInterval: 16616},
	"testnet": {FirstSuperblockHeight: 4200, SuperblockInterval: 24},
	"regtest": {FirstSuperblockHeight: 1500, SuperblockInterval: 10},
}

// ParamsForNetwork returns the superblock parameters for a network name.
func ParamsForNetwork(name string) (Params, error) {
	p, ok := networks[name]
	if !ok {
		return Params{}, fmt.Errorf("status: unknown network %q", name)
	}
	return p, nil
}

// BlockHeightToEpoch maps a block height to its zero-based governance
// epoch. Heights before the first superblock are all epoch 0.
func (p Params) BlockHeightToEpoch(height int64) int64 {
	if height < p.FirstSuperblockHeight {
		return 0
	}
	return (height - p.FirstSuperblockHeight) / p.SuperblockInterval
}

// EpochToBlockHeight returns the first block height of an epoch, the
// exact inverse boundary of BlockHeightToEpoch.
func (p Params) EpochToBlockHeight(epoch int64) int64 {
	return p.FirstSuperblockHeight + epoch*p.SuperblockInterval
}

// CalculateProposalStatus runs the proposal state machine.
//
// Precedence: a funded proposal stays funded no matter what; a closed
// voting window resolves to passed or expired on net votes vs the
// threshold; an open window reports passed as soon as the threshold is
// met, otherwise active. The early-threshold "passed" is deliberate
// current behavior (see TestProposalStatusPassedBeforeDeadline).
func CalculateProposalStatus(endEpoch, currentEpoch int64, yes, no, threshold int, isFunded bool) string {
	if isFunded {
		return StatusFunded
	}
	net := yes - no
	if endEpoch < currentEpoch {
		if net >= threshold {
			return StatusPassed
		}
		return StatusExpired
	}
	if net >= threshold {
		return StatusPassed
	}
	return StatusActive
}

// CalculateFundingThreshold is 10% of enabled masternodes, rounded up.
func CalculateFundingThreshold(enabledMasternodes int) int {
	if enabledMasternodes <= 0 {
		return 0
	}
	return int(math.Ceil(float64(enabledMasternodes) * 0.1))
}

// CalculateVotesNeeded is how many more net yes votes a proposal needs.
func CalculateVotesNeeded(yes, no, threshold int) int {
	needed := threshold - (yes - no)
	if needed < 0 {
		return 0
	}
	return needed
}

// CalculateVoteProgress reports net votes against the threshold as a
// percentage clamped to [0, 100]. A zero threshold counts as met.
func CalculateVoteProgress(yes, no, threshold int) float64 {
	if threshold == 0 {
		return 100
	}
	progress := float64(yes-no) / float64(threshold) * 100
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
}
