package sync

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stake-plus/dash-gov-oracle/src/oracle/dashrpc"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/platform"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/status"
)

// VoteSync reconciles masternode votes, but only for proposals whose
// stored status is still active: once a proposal is finalized its
// votes no longer move, so they are not re-polled. Because VoteSync
// may run concurrently with ProposalSync, it reads the last-published
// status instead of recomputing it.
type VoteSync struct {
	rpc dashrpc.Caller
	pub Publisher
	log zerolog.Logger
}

// NewVoteSync builds the vote task.
func NewVoteSync(rpc dashrpc.Caller, pub Publisher, log zerolog.Logger) *VoteSync {
	return &VoteSync{rpc: rpc, pub: pub, log: log}
}

// Name identifies the task in the scheduler and health snapshot.
func (s *VoteSync) Name() string { return "votes" }

// Sync runs one reconciliation cycle.
func (s *VoteSync) Sync(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	// The trailing endEpoch range clause only satisfies the contract's
	// index shape; every proposal has endEpoch > 0.
	docs, err := s.pub.QueryDocuments(ctx, platform.DocTypeProposal, []platform.Where{
		{Field: "status", Op: "==", Value: status.StatusActive},
		{Field: "endEpoch", Op: ">", Value: 0},
	}, platform.QueryOptions{OrderBy: "endEpoch"})
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}

	for _, doc := range docs {
		rec, err := platform.ProposalFromDocument(doc)
		if err != nil {
			s.log.Warn().Err(err).Str("docId", doc.ID).Msg("undecodable proposal document")
			res.Errors++
			continue
		}

		votes, err := s.rpc.GovernanceVotes(ctx, rec.ProposalHash)
		if err != nil {
			s.log.Warn().Err(err).Str("hash", rec.ProposalHash).Msg("vote listing failed for proposal")
			res.Errors++
			continue
		}

		for _, vote := range votes {
			ur, err := s.pub.UpsertMasternodeVote(ctx, platform.VoteRecord{
				ProposalHash: rec.ProposalHash,
				ProTxHash:    vote.ProTxHash,
				Outcome:      vote.Outcome,
				Timestamp:    vote.Timestamp,
				VoteHash:     vote.VoteHash,
			})
			if err != nil {
				s.log.Debug().Err(err).
					Str("proposal", rec.ProposalHash).
					Str("proTxHash", vote.ProTxHash).
					Msg("vote upsert failed")
				res.Errors++
				continue
			}
			tally(&res, ur)
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}
