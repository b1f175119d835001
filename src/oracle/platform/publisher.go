package platform

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stake-plus/dash-gov-oracle/src/oracle/metrics"
	"github.com/stake-plus/dash-gov-oracle/src/shared/retry"
)

// StreamDocuments is the redis stream downstream consumers read
// document change events from.
const StreamDocuments = "govoracle.documents"

// builtinContractSchema is registered on first boot when contract
// bootstrapping is enabled, so a fresh deployment does not require a
// manually seeded contracts table.
var builtinContractSchema = json.RawMessage(`{
	"proposal":         {"indices": [["proposalHash"], ["status", "endEpoch"]]},
	"masternodeRecord": {"indices": [["proTxHash"]]},
	"masternodeVote":   {"indices": [["proposalHash", "proTxHash"]]}
}`)

// UpsertResult tells the caller whether an upsert created, replaced or
// left the document alone, so sync tasks tally counts without
// re-querying.
type UpsertResult struct {
	Created bool
	Updated bool
}

// Publisher signs and submits idempotent document writes under one
// service identity.
type Publisher struct {
	store      Store
	signer     *Signer
	contractID string
	policy     retry.Policy
	rdb        *redis.Client
	log        zerolog.Logger
}

// NewPublisher wires the publisher. rdb may be nil, which disables the
// change stream.
func NewPublisher(store Store, signer *Signer, contractID string, policy retry.Policy, rdb *redis.Client, log zerolog.Logger) *Publisher {
	if policy == nil {
		policy = retry.FixedDelay(1, 0)
	}
	return &Publisher{
		store:      store,
		signer:     signer,
		contractID: contractID,
		policy:     policy,
		rdb:        rdb,
		log:        log,
	}
}

// EnsureContract verifies the target contract schema exists. With
// bootstrap enabled a missing contract is registered from the builtin
// schema instead of failing startup.
func (p *Publisher) EnsureContract(ctx context.Context, bootstrap bool) error {
	_, err := p.store.FetchContract(ctx, p.contractID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) || !bootstrap {
		return fmt.Errorf("fetch contract schema: %w", err)
	}

	p.log.Info().Str("contractId", p.contractID).Msg("contract not found, registering builtin schema")
	if err := p.store.RegisterContract(ctx, Contract{
		ID:      p.contractID,
		OwnerID: p.signer.IdentityID(),
		Schema:  builtinContractSchema,
	}); err != nil {
		return fmt.Errorf("register contract schema: %w", err)
	}
	return nil
}

// Ping probes store connectivity for the health checker.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}

// QueryDocuments runs a generic document query behind the retry policy.
func (p *Publisher) QueryDocuments(ctx context.Context, docType string, where []Where, opts QueryOptions) ([]Document, error) {
	var docs []Document
	err := p.policy.Do(ctx, func() error {
		var qerr error
		docs, qerr = p.store.Query(ctx, docType, where, opts)
		return qerr
	})
	return docs, err
}

func (p *Publisher) createDocument(ctx context.Context, docType string, data map[string]any) error {
	doc := Document{
		Type:    docType,
		ID:      uuid.NewString(),
		OwnerID: p.signer.IdentityID(),
		Data:    data,
	}
	sig, err := p.signWrite(docType, doc.ID, 1, data)
	if err != nil {
		return err
	}
	if err := p.policy.Do(ctx, func() error {
		return p.store.Create(ctx, doc, sig)
	}); err != nil {
		return err
	}
	metrics.DocumentWrites.WithLabelValues(docType, "create").Inc()
	p.notify(ctx, "create", docType, doc.ID)
	return nil
}

func (p *Publisher) updateDocument(ctx context.Context, existing Document, data map[string]any) error {
	// First-seen-but-revision-unknown documents default to revision 1.
	prev := existing.Revision
	if prev == 0 {
		prev = 1
	}
	doc := Document{
		Type:    existing.Type,
		ID:      existing.ID,
		OwnerID: p.signer.IdentityID(),
		Data:    data,
	}
	sig, err := p.signWrite(doc.Type, doc.ID, prev+1, data)
	if err != nil {
		return err
	}
	if err := p.policy.Do(ctx, func() error {
		return p.store.Replace(ctx, doc, prev, sig)
	}); err != nil {
		return err
	}
	metrics.DocumentWrites.WithLabelValues(doc.Type, "update").Inc()
	p.notify(ctx, "update", doc.Type, doc.ID)
	return nil
}

func (p *Publisher) deleteDocument(ctx context.Context, docType, id string) error {
	if err := p.policy.Do(ctx, func() error {
		return p.store.Delete(ctx, docType, id)
	}); err != nil {
		return err
	}
	metrics.DocumentWrites.WithLabelValues(docType, "delete").Inc()
	p.notify(ctx, "delete", docType, id)
	return nil
}

// signWrite generates fresh entropy and signs the write digest.
func (p *Publisher) signWrite(docType, docID string, revision uint64, data map[string]any) (WriteSignature, error) {
	entropy := uuid.NewString()
	digest, err := writeDigest(docType, docID, revision, entropy, data)
	if err != nil {
		return WriteSignature{}, err
	}
	sig, err := p.signer.Sign(digest)
	if err != nil {
		return WriteSignature{}, fmt.Errorf("sign %s/%s: %w", docType, docID, err)
	}
	return WriteSignature{Entropy: entropy, Signature: hex.EncodeToString(sig)}, nil
}

// notify appends a change event to the redis stream. Failures are
// logged, never propagated: the store write already happened.
func (p *Publisher) notify(ctx context.Context, op, docType, id string) {
	if p.rdb == nil {
		return
	}
	err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamDocuments,
		Values: map[string]any{
			"op":   op,
			"type": docType,
			"id":   id,
			"at":   time.Now().UnixMilli(),
		},
	}).Err()
	if err != nil {
		p.log.Warn().Err(err).Str("op", op).Str("type", docType).Msg("change stream publish failed")
	}
}

func (p *Publisher) findOne(ctx context.Context, docType string, where []Where) (Document, bool, error) {
	docs, err := p.QueryDocuments(ctx, docType, where, QueryOptions{Limit: 1})
	if err != nil {
		return Document{}, false, err
	}
	if len(docs) == 0 {
		return Document{}, false, nil
	}
	return docs[0], true, nil
}

// UpsertProposal creates or updates the proposal document keyed by
// proposalHash. Only status, vote counts, totalMasternodes and
// fundingThreshold are monitored for changes; name and url are
// immutable once created.
func (p *Publisher) UpsertProposal(ctx context.Context, rec ProposalRecord) (UpsertResult, error) {
	existing, found, err := p.findOne(ctx, DocTypeProposal, []Where{
		{Field: "proposalHash", Op: "==", Value: rec.ProposalHash},
	})
	if err != nil {
		return UpsertResult{}, err
	}

	if !found {
		data, err := encodeData(rec)
		if err != nil {
			return UpsertResult{}, err
		}
		if err := p.createDocument(ctx, DocTypeProposal, data); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Created: true}, nil
	}

	current, err := ProposalFromDocument(existing)
	if err != nil {
		return UpsertResult{}, err
	}
	if current.Status == rec.Status &&
		current.YesCount == rec.YesCount &&
		current.NoCount == rec.NoCount &&
		current.AbstainCount == rec.AbstainCount &&
		current.TotalMasternodes == rec.TotalMasternodes &&
		current.FundingThreshold == rec.FundingThreshold {
		return UpsertResult{}, nil
	}

	next := current
	next.Status = rec.Status
	next.YesCount = rec.YesCount
	next.NoCount = rec.NoCount
	next.AbstainCount = rec.AbstainCount
	next.TotalMasternodes = rec.TotalMasternodes
	next.FundingThreshold = rec.FundingThreshold
	next.LastUpdatedAt = rec.LastUpdatedAt

	data, err := encodeData(next)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := p.updateDocument(ctx, existing, data); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Updated: true}, nil
}

// UpsertMasternodeRecord creates or updates the masternode document
// keyed by proTxHash.
func (p *Publisher) UpsertMasternodeRecord(ctx context.Context, rec MasternodeRecord) (UpsertResult, error) {
	existing, found, err := p.findOne(ctx, DocTypeMasternode, []Where{
		{Field: "proTxHash", Op: "==", Value: rec.ProTxHash},
	})
	if err != nil {
		return UpsertResult{}, err
	}

	if !found {
		data, err := encodeData(rec)
		if err != nil {
			return UpsertResult{}, err
		}
		if err := p.createDocument(ctx, DocTypeMasternode, data); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Created: true}, nil
	}

	current, err := MasternodeFromDocument(existing)
	if err != nil {
		return UpsertResult{}, err
	}
	if current.IsEnabled == rec.IsEnabled &&
		current.VotingKeyHash == rec.VotingKeyHash &&
		current.OwnerKeyHash == rec.OwnerKeyHash &&
		current.PayoutAddress == rec.PayoutAddress {
		return UpsertResult{}, nil
	}

	next := rec
	data, err := encodeData(next)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := p.updateDocument(ctx, existing, data); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Updated: true}, nil
}

// UpsertMasternodeVote creates or updates the vote document keyed by
// (proposalHash, proTxHash).
func (p *Publisher) UpsertMasternodeVote(ctx context.Context, rec VoteRecord) (UpsertResult, error) {
	existing, found, err := p.findOne(ctx, DocTypeVote, []Where{
		{Field: "proposalHash", Op: "==", Value: rec.ProposalHash},
		{Field: "proTxHash", Op: "==", Value: rec.ProTxHash},
	})
	if err != nil {
		return UpsertResult{}, err
	}

	if !found {
		data, err := encodeData(rec)
		if err != nil {
			return UpsertResult{}, err
		}
		if err := p.createDocument(ctx, DocTypeVote, data); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Created: true}, nil
	}

	current, err := VoteFromDocument(existing)
	if err != nil {
		return UpsertResult{}, err
	}
	if current.Outcome == rec.Outcome &&
		current.Timestamp == rec.Timestamp &&
		current.VoteHash == rec.VoteHash {
		return UpsertResult{}, nil
	}

	data, err := encodeData(rec)
	if err != nil {
		return UpsertResult{}, err
	}
	if err := p.updateDocument(ctx, existing, data); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{Updated: true}, nil
}

// DeleteProposal removes a proposal document that disappeared
// upstream. Missing documents are not an error.
func (p *Publisher) DeleteProposal(ctx context.Context, proposalHash string) error {
	existing, found, err := p.findOne(ctx, DocTypeProposal, []Where{
		{Field: "proposalHash", Op: "==", Value: proposalHash},
	})
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return p.deleteDocument(ctx, DocTypeProposal, existing.ID)
}
