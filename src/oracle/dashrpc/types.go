package dashrpc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Governance object types as reported by dashd. Only proposals are
// mirrored; triggers and watchdogs are skipped.
const ObjectTypeProposal = 1

// GovernanceObject is one entry of `gobject list all`, an immutable
// snapshot of what the node currently believes.
type GovernanceObject struct {
	Hash               string `json:"Hash"`
	CollateralHash     string `json:"CollateralHash"`
	ObjectType         int    `json:"ObjectType"`
	CreationTime       int64  `json:"CreationTime"`
	DataString         string `json:"DataString"`
	AbsoluteYesCount   int    `json:"AbsoluteYesCount"`
	YesCount           int    `json:"YesCount"`
	NoCount            int    `json:"NoCount"`
	AbstainCount       int    `json:"AbstainCount"`
	BlockchainValidity bool   `json:"fBlockchainValidity"`
	IsValidReason      string `json:"IsValidReason"`
	CachedValid        bool   `json:"fCachedValid"`
	CachedFunding      bool   `json:"fCachedFunding"`
	CachedDelete       bool   `json:"fCachedDelete"`
	CachedEndorsed     bool   `json:"fCachedEndorsed"`
}

// ProposalPayload is the semi-structured proposal body embedded in a
// governance object's DataString.
type ProposalPayload struct {
	EndEpoch       int64   `json:"end_epoch"`
	Name           string  `json:"name"`
	PaymentAddress string  `json:"payment_address"`
	PaymentAmount  float64 `json:"payment_amount"`
	StartEpoch     int64   `json:"start_epoch"`
	Type           int     `json:"type"`
	URL            string  `json:"url"`
}

// ParseProposalPayload decodes a DataString. Older nodes wrap the
// payload in a [["proposal", {...}]] array; newer ones emit the object
// directly. Both forms are accepted.
func ParseProposalPayload(raw string) (ProposalPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ProposalPayload{}, fmt.Errorf("empty DataString")
	}

	body := []byte(raw)
	if strings.HasPrefix(raw, "[") {
		var outer []json.RawMessage
		if err := json.Unmarshal(body, &outer); err != nil {
			return ProposalPayload{}, fmt.Errorf("decode DataString array: %w", err)
		}
		if len(outer) == 0 {
			return ProposalPayload{}, fmt.Errorf("empty DataString array")
		}
		body = outer[0]
		var inner []json.RawMessage
		if err := json.Unmarshal(body, &inner); err == nil {
			// Legacy ["proposal", {...}] pair.
			if len(inner) < 2 {
				return ProposalPayload{}, fmt.Errorf("malformed DataString pair")
			}
			body = inner[1]
		}
	}

	var p ProposalPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return ProposalPayload{}, fmt.Errorf("decode proposal payload: %w", err)
	}
	if p.Name == "" {
		return ProposalPayload{}, fmt.Errorf("proposal payload missing name")
	}
	return p, nil
}

// MasternodeEntry is one entry of `masternode list json`, keyed by
// proTxHash.
type MasternodeEntry struct {
	Address           string `json:"address"`
	Payee             string `json:"payee"`
	Status            string `json:"status"`
	LastPaidTime      int64  `json:"lastpaidtime"`
	LastPaidBlock     int64  `json:"lastpaidblock"`
	OwnerAddress      string `json:"owneraddress"`
	VotingAddress     string `json:"votingaddress"`
	CollateralAddress string `json:"collateraladdress"`
	PubKeyOperator    string `json:"pubkeyoperator"`
}

// Enabled reports whether the masternode currently participates in
// governance voting.
func (m MasternodeEntry) Enabled() bool {
	return m.Status == "ENABLED"
}

// MasternodeCount mirrors `masternode count`.
type MasternodeCount struct {
	Total   int `json:"total"`
	Enabled int `json:"enabled"`
}

// Vote is one masternode's current vote on a governance object, after
// wire parsing.
type Vote struct {
	ProTxHash string
	Timestamp int64
	Outcome   string
	VoteHash  string
}

// RawTransaction is the verbose form of `getrawtransaction`, reduced
// to the fields the oracle looks at.
type RawTransaction struct {
	Txid          string `json:"txid"`
	BlockHash     string `json:"blockhash"`
	Confirmations int64  `json:"confirmations"`
	Time          int64  `json:"time"`
}

// BlockchainInfo is the subset of `getblockchaininfo` used for the
// startup network check and health snapshot.
type BlockchainInfo struct {
	Chain         string `json:"chain"`
	Blocks        int64  `json:"blocks"`
	BestBlockHash string `json:"bestblockhash"`
}
