package dashrpc

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testProTx = "5ad00682e2e05a5f2e2f866f03fa1ac43b4a020239976c837e18f4ad85f6b427"

func voteKey(hash string) string {
	return "CTxIn(COutPoint(" + hash + ", 1), scriptSig=)"
}

func TestParseVotesValues(t *testing.T) {
	raw := map[string]string{
		voteKey(testProTx): "1700000000:funding-yes:ab12",
	}
	votes := parseVotes(raw, zerolog.Nop())
	require.Len(t, votes, 1)
	require.Equal(t, Vote{
		ProTxHash: testProTx,
		Timestamp: 1700000000,
		Outcome:   OutcomeYes,
		VoteHash:  "ab12",
	}, votes[0])
}

func TestParseVotesWithoutHash(t *testing.T) {
	votes := parseVotes(map[string]string{voteKey(testProTx): "1700000000:no"}, zerolog.Nop())
	require.Len(t, votes, 1)
	require.Equal(t, OutcomeNo, votes[0].Outcome)
	require.Empty(t, votes[0].VoteHash)
}

func TestParseVotesUnknownOutcomeIsAbstain(t *testing.T) {
	votes := parseVotes(map[string]string{voteKey(testProTx): "1700000000:weird"}, zerolog.Nop())
	require.Len(t, votes, 1)
	require.Equal(t, OutcomeAbstain, votes[0].Outcome)
}

func TestParseVotesOutcomeCaseInsensitive(t *testing.T) {
	for value, want := range map[string]string{
		"1:FUNDING-YES": OutcomeYes,
		"1:Yes":         OutcomeYes,
		"1:FUNDING-NO":  OutcomeNo,
		"1:No":          OutcomeNo,
		"1:ABSTAIN":     OutcomeAbstain,
	} {
		votes := parseVotes(map[string]string{voteKey(testProTx): value}, zerolog.Nop())
		require.Len(t, votes, 1, value)
		require.Equal(t, want, votes[0].Outcome, value)
	}
}

func TestParseVotesSkipsMalformedEntries(t *testing.T) {
	raw := map[string]string{
		// No COutPoint wrapper at all.
		"some-garbage-key": "1700000000:yes",
		// Hash too short to be a proTxHash.
		"CTxIn(COutPoint(abcd, 1), scriptSig=)": "1700000000:yes",
		// Value with a single part.
		voteKey(testProTx): "1700000000",
		// Empty value.
		voteKey(strings.Repeat("b", 64)): "",
		// Non-numeric timestamp.
		voteKey(strings.Repeat("c", 64)): "soon:yes",
	}
	votes := parseVotes(raw, zerolog.Nop())
	require.Empty(t, votes)
}

func TestParseVotesUppercaseProTxIsLowered(t *testing.T) {
	upper := strings.ToUpper(testProTx)
	votes := parseVotes(map[string]string{voteKey(upper): "1:yes"}, zerolog.Nop())
	require.Len(t, votes, 1)
	require.Equal(t, testProTx, votes[0].ProTxHash)
}
