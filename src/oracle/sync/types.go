// Package sync holds the reconciliation tasks that mirror chain
// governance state into the document store. Each task lists one entity
// type from the node, derives the desired documents and upserts them;
// a single item's failure never aborts the batch, only a listing-level
// failure does.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/stake-plus/dash-gov-oracle/src/oracle/platform"
)

// Result is the contract every sync task returns for one cycle.
type Result struct {
	Created  int
	Updated  int
	Deleted  int
	Errors   int
	Duration time.Duration
}

func (r Result) String() string {
	return fmt.Sprintf("created=%d updated=%d deleted=%d errors=%d duration=%s",
		r.Created, r.Updated, r.Deleted, r.Errors, r.Duration.Round(time.Millisecond))
}

// Publisher is the document store surface the tasks write through.
// *platform.Publisher satisfies it; tests may substitute their own.
type Publisher interface {
	QueryDocuments(ctx context.Context, docType string, where []platform.Where, opts platform.QueryOptions) ([]platform.Document, error)
	UpsertProposal(ctx context.Context, rec platform.ProposalRecord) (platform.UpsertResult, error)
	UpsertMasternodeRecord(ctx context.Context, rec platform.MasternodeRecord) (platform.UpsertResult, error)
	UpsertMasternodeVote(ctx context.Context, rec platform.VoteRecord) (platform.UpsertResult, error)
	DeleteProposal(ctx context.Context, proposalHash string) error
}

func tally(res *Result, ur platform.UpsertResult) {
	switch {
	case ur.Created:
		res.Created++
	case ur.Updated:
		res.Updated++
	}
}
