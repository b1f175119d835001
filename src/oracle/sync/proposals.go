package sync

import (
	"context"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/stake-plus/dash-gov-oracle/src/oracle/dashrpc"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/metrics"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/platform"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/status"
)

// ProposalSync reconciles funding proposals: every governance object
// of proposal type becomes one proposal document with a derived
// status; stored proposals that vanished upstream are deleted.
type ProposalSync struct {
	rpc       dashrpc.Caller
	pub       Publisher
	params    status.Params
	sanitizer *bluemonday.Policy
	log       zerolog.Logger
}

// NewProposalSync builds the proposal task.
func NewProposalSync(rpc dashrpc.Caller, pub Publisher, params status.Params, log zerolog.Logger) *ProposalSync {
	return &ProposalSync{
		rpc:       rpc,
		pub:       pub,
		params:    params,
		sanitizer: bluemonday.StrictPolicy(),
		log:       log,
	}
}

// Name identifies the task in the scheduler and health snapshot.
func (s *ProposalSync) Name() string { return "proposals" }

// Sync runs one reconciliation cycle.
func (s *ProposalSync) Sync(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	objects, err := s.rpc.GovernanceObjects(ctx)
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}
	height, err := s.rpc.BlockCount(ctx)
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}
	counts, err := s.rpc.MasternodeCount(ctx)
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}

	currentEpoch := s.params.BlockHeightToEpoch(height)
	threshold := status.CalculateFundingThreshold(counts.Enabled)
	s.refreshBudget(ctx, currentEpoch)

	seen := make(map[string]bool, len(objects))
	for hash, obj := range objects {
		if obj.ObjectType != dashrpc.ObjectTypeProposal {
			continue
		}

		// Mark the proposal as present before parsing: the node still
		// lists it, so a bad payload must not feed the delete pass.
		key := strings.ToLower(hash)
		seen[key] = true

		payload, err := dashrpc.ParseProposalPayload(obj.DataString)
		if err != nil {
			s.log.Warn().Err(err).Str("hash", hash).Msg("unparseable proposal payload")
			res.Errors++
			continue
		}

		rec := platform.ProposalRecord{
			ProposalHash:   key,
			Name:           s.sanitizer.Sanitize(payload.Name),
			URL:            s.sanitizer.Sanitize(payload.URL),
			PaymentAddress: payload.PaymentAddress,
			PaymentAmount:  payload.PaymentAmount,
			StartEpoch:     payload.StartEpoch,
			EndEpoch:       payload.EndEpoch,
			Status: status.CalculateProposalStatus(
				payload.EndEpoch, currentEpoch,
				obj.YesCount, obj.NoCount, threshold, obj.CachedFunding),
			YesCount:         obj.YesCount,
			NoCount:          obj.NoCount,
			AbstainCount:     obj.AbstainCount,
			TotalMasternodes: counts.Total,
			FundingThreshold: threshold,
			CollateralHash:   strings.ToLower(obj.CollateralHash),
			LastUpdatedAt:    time.Now().UnixMilli(),
		}

		ur, err := s.pub.UpsertProposal(ctx, rec)
		if err != nil {
			s.log.Warn().Err(err).Str("hash", key).Msg("proposal upsert failed")
			res.Errors++
			continue
		}
		tally(&res, ur)

		if ur.Created && rec.CollateralHash != "" {
			s.confirmCollateral(ctx, key, rec.CollateralHash)
		}
	}

	s.deleteVanished(ctx, seen, &res)

	res.Duration = time.Since(start)
	return res, nil
}

// refreshBudget records the budget payable at the next superblock. A
// failure here never affects the cycle.
func (s *ProposalSync) refreshBudget(ctx context.Context, currentEpoch int64) {
	nextSuperblock := s.params.EpochToBlockHeight(currentEpoch + 1)
	budget, err := s.rpc.SuperblockBudget(ctx, nextSuperblock)
	if err != nil {
		s.log.Warn().Err(err).Int64("height", nextSuperblock).Msg("superblock budget unavailable")
		return
	}
	metrics.NextSuperblockBudget.Set(budget)
	s.log.Debug().Int64("height", nextSuperblock).Float64("budget", budget).Msg("next superblock budget")
}

// confirmCollateral checks the collateral transaction exists on chain
// for a newly created proposal. Purely informational.
func (s *ProposalSync) confirmCollateral(ctx context.Context, proposalHash, collateralHash string) {
	if _, err := s.rpc.RawTransaction(ctx, collateralHash); err != nil {
		s.log.Debug().Err(err).
			Str("proposal", proposalHash).
			Str("collateral", collateralHash).
			Msg("collateral tx not retrievable")
	}
}

// deleteVanished removes stored proposals no longer reported by the
// node. Failures here are counted, not fatal: the cycle's upserts have
// already happened and the next cycle re-evaluates.
func (s *ProposalSync) deleteVanished(ctx context.Context, seen map[string]bool, res *Result) {
	docs, err := s.pub.QueryDocuments(ctx, platform.DocTypeProposal, nil, platform.QueryOptions{})
	if err != nil {
		s.log.Warn().Err(err).Msg("stored proposal listing failed, skipping delete pass")
		res.Errors++
		return
	}
	for _, doc := range docs {
		rec, err := platform.ProposalFromDocument(doc)
		if err != nil {
			res.Errors++
			continue
		}
		if seen[rec.ProposalHash] {
			continue
		}
		if err := s.pub.DeleteProposal(ctx, rec.ProposalHash); err != nil {
			s.log.Warn().Err(err).Str("hash", rec.ProposalHash).Msg("proposal delete failed")
			res.Errors++
			continue
		}
		s.log.Info().Str("hash", rec.ProposalHash).Msg("proposal vanished upstream, deleted")
		res.Deleted++
	}
}
