package sync

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stake-plus/dash-gov-oracle/src/oracle/dashrpc"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/platform"
)

// MasternodeSync mirrors the masternode list, one document per
// proTxHash with its enabled flag and key hashes.
type MasternodeSync struct {
	rpc dashrpc.Caller
	pub Publisher
	log zerolog.Logger
}

// NewMasternodeSync builds the masternode task.
func NewMasternodeSync(rpc dashrpc.Caller, pub Publisher, log zerolog.Logger) *MasternodeSync {
	return &MasternodeSync{rpc: rpc, pub: pub, log: log}
}

// Name identifies the task in the scheduler and health snapshot.
func (s *MasternodeSync) Name() string { return "masternodes" }

// Sync runs one reconciliation cycle.
func (s *MasternodeSync) Sync(ctx context.Context) (Result, error) {
	start := time.Now()
	var res Result

	list, err := s.rpc.MasternodeList(ctx)
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}

	now := time.Now().UnixMilli()
	for proTxHash, entry := range list {
		ur, err := s.pub.UpsertMasternodeRecord(ctx, platform.MasternodeRecord{
			ProTxHash:     strings.ToLower(proTxHash),
			VotingKeyHash: entry.VotingAddress,
			OwnerKeyHash:  entry.OwnerAddress,
			PayoutAddress: entry.Payee,
			IsEnabled:     entry.Enabled(),
			LastUpdatedAt: now,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("proTxHash", proTxHash).Msg("masternode upsert failed")
			res.Errors++
			continue
		}
		tally(&res, ur)
	}

	res.Duration = time.Since(start)
	return res, nil
}
