package dashrpc

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Vote map keys look like
//
//	CTxIn(COutPoint(5ad0…64 hex…, 1), scriptSig=)
//
// with the voter's proTxHash inside the COutPoint wrapper.
var outPointRE = regexp.MustCompile(`COutPoint\(([0-9a-fA-F]{64}),`)

// parseVotes converts a raw getcurrentvotes map into Votes. Entries
// whose key does not carry a proTxHash, or whose value has fewer than
// two colon-separated parts, are skipped with a warning instead of
// failing the batch.
func parseVotes(raw map[string]string, log zerolog.Logger) []Vote {
	votes := make([]Vote, 0, len(raw))
	for key, value := range raw {
		m := outPointRE.FindStringSubmatch(key)
		if m == nil {
			log.Warn().Str("key", key).Msg("vote key without COutPoint proTxHash, skipping")
			continue
		}

		parts := strings.Split(value, ":")
		if len(parts) < 2 {
			log.Warn().Str("value", value).Msg("malformed vote value, skipping")
			continue
		}
		ts, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			log.Warn().Str("value", value).Msg("vote value with non-numeric timestamp, skipping")
			continue
		}

		vote := Vote{
			ProTxHash: strings.ToLower(m[1]),
			Timestamp: ts,
			Outcome:   normalizeOutcome(parts[1]),
		}
		if len(parts) > 2 {
			vote.VoteHash = parts[2]
		}
		votes = append(votes, vote)
	}
	return votes
}

// Vote outcomes as persisted in vote documents.
const (
	OutcomeYes     = "yes"
	OutcomeNo      = "no"
	OutcomeAbstain = "abstain"
)

func normalizeOutcome(raw string) string {
	switch strings.ToLower(raw) {
	case "yes", "funding-yes":
		return OutcomeYes
	case "no", "funding-no":
		return OutcomeNo
	default:
		return OutcomeAbstain
	}
}
