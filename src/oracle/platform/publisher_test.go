package platform

import (
	"context"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/dash-gov-oracle/src/shared/retry"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	id := base58.Encode(make([]byte, 32))
	s, err := NewSignerFromHex(id, strings.Repeat("ab", 32))
	require.NoError(t, err)
	return s
}

func testPublisher(t *testing.T) (*Publisher, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	contractID := base58.Encode(append([]byte{1}, make([]byte, 31)...))
	pub := NewPublisher(store, testSigner(t), contractID, retry.FixedDelay(1, 0), nil, zerolog.Nop())
	return pub, store
}

func sampleProposal() ProposalRecord {
	return ProposalRecord{
		ProposalHash:     strings.Repeat("a1", 32),
		Name:             "core-dev-q3",
		URL:              "https://example.org/core-dev-q3",
		PaymentAddress:   "Xexample",
		PaymentAmount:    125.5,
		StartEpoch:       100,
		EndEpoch:         120,
		Status:           "active",
		YesCount:         5,
		NoCount:          1,
		AbstainCount:     0,
		TotalMasternodes: 4000,
		FundingThreshold: 350,
		LastUpdatedAt:    1700000000000,
	}
}

func TestUpsertProposalIdempotent(t *testing.T) {
	pub, _ := testPublisher(t)
	ctx := context.Background()

	res, err := pub.UpsertProposal(ctx, sampleProposal())
	require.NoError(t, err)
	require.Equal(t, UpsertResult{Created: true}, res)

	// Byte-identical data: no write at all.
	res, err = pub.UpsertProposal(ctx, sampleProposal())
	require.NoError(t, err)
	require.Equal(t, UpsertResult{}, res)
}

func TestUpsertProposalUpdatesMonitoredFields(t *testing.T) {
	pub, _ := testPublisher(t)
	ctx := context.Background()

	_, err := pub.UpsertProposal(ctx, sampleProposal())
	require.NoError(t, err)

	changed := sampleProposal()
	changed.Status = "passed"
	changed.YesCount = 400
	res, err := pub.UpsertProposal(ctx, changed)
	require.NoError(t, err)
	require.Equal(t, UpsertResult{Updated: true}, res)

	docs, err := pub.QueryDocuments(ctx, DocTypeProposal, nil, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, uint64(2), docs[0].Revision, "revision must increase on replace")

	rec, err := ProposalFromDocument(docs[0])
	require.NoError(t, err)
	require.Equal(t, "passed", rec.Status)
	require.Equal(t, 400, rec.YesCount)
}

func TestUpsertProposalKeepsImmutableFields(t *testing.T) {
	pub, _ := testPublisher(t)
	ctx := context.Background()

	_, err := pub.UpsertProposal(ctx, sampleProposal())
	require.NoError(t, err)

	// Name and url are immutable once created; an upstream rename must
	// not leak into the stored document, and alone it is not a change.
	renamed := sampleProposal()
	renamed.Name = "totally-different"
	renamed.URL = "https://elsewhere.example"
	res, err := pub.UpsertProposal(ctx, renamed)
	require.NoError(t, err)
	require.Equal(t, UpsertResult{}, res)

	renamed.Status = "passed"
	_, err = pub.UpsertProposal(ctx, renamed)
	require.NoError(t, err)

	docs, err := pub.QueryDocuments(ctx, DocTypeProposal, nil, QueryOptions{})
	require.NoError(t, err)
	rec, err := ProposalFromDocument(docs[0])
	require.NoError(t, err)
	require.Equal(t, "core-dev-q3", rec.Name)
	require.Equal(t, "https://example.org/core-dev-q3", rec.URL)
}

func TestUpsertMasternodeRecord(t *testing.T) {
	pub, _ := testPublisher(t)
	ctx := context.Background()

	mn := MasternodeRecord{
		ProTxHash:     strings.Repeat("b2", 32),
		VotingKeyHash: "yP8A3...voting",
		PayoutAddress: "Xpayout",
		IsEnabled:     true,
		LastUpdatedAt: 1700000000000,
	}
	res, err := pub.UpsertMasternodeRecord(ctx, mn)
	require.NoError(t, err)
	require.True(t, res.Created)

	res, err = pub.UpsertMasternodeRecord(ctx, mn)
	require.NoError(t, err)
	require.Equal(t, UpsertResult{}, res)

	mn.IsEnabled = false
	res, err = pub.UpsertMasternodeRecord(ctx, mn)
	require.NoError(t, err)
	require.True(t, res.Updated)
}

func TestUpsertMasternodeVoteCompositeKey(t *testing.T) {
	pub, _ := testPublisher(t)
	ctx := context.Background()

	vote := VoteRecord{
		ProposalHash: strings.Repeat("a1", 32),
		ProTxHash:    strings.Repeat("b2", 32),
		Outcome:      "yes",
		Timestamp:    1700000000,
	}
	res, err := pub.UpsertMasternodeVote(ctx, vote)
	require.NoError(t, err)
	require.True(t, res.Created)

	// Same proposal, different masternode: a distinct document.
	other := vote
	other.ProTxHash = strings.Repeat("c3", 32)
	res, err = pub.UpsertMasternodeVote(ctx, other)
	require.NoError(t, err)
	require.True(t, res.Created)

	// Revote flips the outcome in place.
	vote.Outcome = "no"
	vote.Timestamp = 1700000500
	res, err = pub.UpsertMasternodeVote(ctx, vote)
	require.NoError(t, err)
	require.True(t, res.Updated)

	docs, err := pub.QueryDocuments(ctx, DocTypeVote, nil, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestDeleteProposal(t *testing.T) {
	pub, _ := testPublisher(t)
	ctx := context.Background()

	rec := sampleProposal()
	_, err := pub.UpsertProposal(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, pub.DeleteProposal(ctx, rec.ProposalHash))
	docs, err := pub.QueryDocuments(ctx, DocTypeProposal, nil, QueryOptions{})
	require.NoError(t, err)
	require.Empty(t, docs)

	// Deleting a proposal that never existed is a no-op.
	require.NoError(t, pub.DeleteProposal(ctx, rec.ProposalHash))
}

func TestQueryWithWhereAndOrder(t *testing.T) {
	pub, _ := testPublisher(t)
	ctx := context.Background()

	for i, hash := range []string{strings.Repeat("a1", 32), strings.Repeat("b2", 32), strings.Repeat("c3", 32)} {
		rec := sampleProposal()
		rec.ProposalHash = hash
		rec.EndEpoch = int64(130 - i*10)
		if i == 2 {
			rec.Status = "expired"
		}
		_, err := pub.UpsertProposal(ctx, rec)
		require.NoError(t, err)
	}

	// Status filter with the index-shape trailing range clause.
	docs, err := pub.QueryDocuments(ctx, DocTypeProposal, []Where{
		{Field: "status", Op: "==", Value: "active"},
		{Field: "endEpoch", Op: ">", Value: 0},
	}, QueryOptions{OrderBy: "endEpoch"})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	first, err := ProposalFromDocument(docs[0])
	require.NoError(t, err)
	second, err := ProposalFromDocument(docs[1])
	require.NoError(t, err)
	require.Less(t, first.EndEpoch, second.EndEpoch)
}

func TestEnsureContractBootstrap(t *testing.T) {
	pub, store := testPublisher(t)
	ctx := context.Background()

	require.NoError(t, pub.EnsureContract(ctx, true))
	c, err := store.FetchContract(ctx, pub.contractID)
	require.NoError(t, err)
	require.Equal(t, pub.signer.IdentityID(), c.OwnerID)

	// Already registered: a second call is a no-op either way.
	require.NoError(t, pub.EnsureContract(ctx, false))
}

func TestEnsureContractFatalWithoutBootstrap(t *testing.T) {
	pub, _ := testPublisher(t)
	require.Error(t, pub.EnsureContract(context.Background(), false))
}
