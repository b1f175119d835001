package platform

import (
	"encoding/json"
	"fmt"
	"time"
)

// Document types published by the oracle.
const (
	DocTypeProposal   = "proposal"
	DocTypeMasternode = "masternodeRecord"
	DocTypeVote       = "masternodeVote"
)

// Document is the generic persisted record. Business logic never
// touches Data directly; it goes through the typed records below.
type Document struct {
	Type      string         `json:"$type"`
	ID        string         `json:"$id"`
	OwnerID   string         `json:"$ownerId"`
	Revision  uint64         `json:"$revision"`
	CreatedAt time.Time      `json:"$createdAt"`
	UpdatedAt time.Time      `json:"$updatedAt"`
	Data      map[string]any `json:"data"`
}

// Where is one equality/range predicate of a document query. Queries
// must end on an index-compatible trailing field, mirroring the
// platform index shape rules.
type Where struct {
	Field string
	Op    string // "==", ">", ">=", "<", "<="
	Value any
}

// QueryOptions bound and order a document query.
type QueryOptions struct {
	Limit   int
	OrderBy string
}

// Contract is the registered document schema the oracle writes under.
type Contract struct {
	ID        string
	OwnerID   string
	Schema    json.RawMessage
	CreatedAt time.Time
}

// ProposalRecord is the proposal document, one per proposalHash.
type ProposalRecord struct {
	ProposalHash     string  `json:"proposalHash"`
	Name             string  `json:"name"`
	URL              string  `json:"url"`
	PaymentAddress   string  `json:"paymentAddress"`
	PaymentAmount    float64 `json:"paymentAmount"`
	StartEpoch       int64   `json:"startEpoch"`
	EndEpoch         int64   `json:"endEpoch"`
	Status           string  `json:"status"`
	YesCount         int     `json:"yesCount"`
	NoCount          int     `json:"noCount"`
	AbstainCount     int     `json:"abstainCount"`
	TotalMasternodes int     `json:"totalMasternodes"`
	FundingThreshold int     `json:"fundingThreshold"`
	CollateralHash   string  `json:"collateralHash,omitempty"`
	LastUpdatedAt    int64   `json:"lastUpdatedAt"`
}

// MasternodeRecord is the masternode document, one per proTxHash.
type MasternodeRecord struct {
	ProTxHash     string `json:"proTxHash"`
	VotingKeyHash string `json:"votingKeyHash"`
	OwnerKeyHash  string `json:"ownerKeyHash,omitempty"`
	PayoutAddress string `json:"payoutAddress,omitempty"`
	IsEnabled     bool   `json:"isEnabled"`
	LastUpdatedAt int64  `json:"lastUpdatedAt"`
}

// VoteRecord is the vote document, one per (proposalHash, proTxHash).
type VoteRecord struct {
	ProposalHash string `json:"proposalHash"`
	ProTxHash    string `json:"proTxHash"`
	Outcome      string `json:"outcome"`
	Timestamp    int64  `json:"timestamp"`
	VoteHash     string `json:"voteHash,omitempty"`
}

// The mapping functions below are the store boundary: generic
// documents in, typed records out, and back.

func encodeData(in any) (map[string]any, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode document data: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode document data: %w", err)
	}
	return data, nil
}

func decodeData(data map[string]any, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("decode document data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document data: %w", err)
	}
	return nil
}

// ProposalFromDocument decodes a proposal document.
func ProposalFromDocument(d Document) (ProposalRecord, error) {
	var rec ProposalRecord
	if err := decodeData(d.Data, &rec); err != nil {
		return ProposalRecord{}, err
	}
	if rec.ProposalHash == "" {
		return ProposalRecord{}, fmt.Errorf("proposal document %s missing proposalHash", d.ID)
	}
	return rec, nil
}

// MasternodeFromDocument decodes a masternode document.
func MasternodeFromDocument(d Document) (MasternodeRecord, error) {
	var rec MasternodeRecord
	if err := decodeData(d.Data, &rec); err != nil {
		return MasternodeRecord{}, err
	}
	if rec.ProTxHash == "" {
		return MasternodeRecord{}, fmt.Errorf("masternode document %s missing proTxHash", d.ID)
	}
	return rec, nil
}

// VoteFromDocument decodes a vote document.
func VoteFromDocument(d Document) (VoteRecord, error) {
	var rec VoteRecord
	if err := decodeData(d.Data, &rec); err != nil {
		return VoteRecord{}, err
	}
	if rec.ProposalHash == "" || rec.ProTxHash == "" {
		return VoteRecord{}, fmt.Errorf("vote document %s missing composite key", d.ID)
	}
	return rec, nil
}
