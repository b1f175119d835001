package dashrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/dash-gov-oracle/src/shared/retry"
)

type rpcCall struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// newTestNode serves canned results per method and enforces basic auth.
func newTestNode(t *testing.T, results map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rpcuser" || pass != "rpcpass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var call rpcCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		require.Equal(t, "1.0", call.JSONRPC)

		key := call.Method
		for _, p := range call.Params {
			if s, ok := p.(string); ok {
				key += " " + s
			}
		}
		result, ok := results[key]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"result": nil,
				"error":  map[string]any{"code": -32601, "message": "Method not found"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "error": nil})
	}))
}

func newTestClient(url string, policy retry.Policy) *Client {
	return New(Options{
		URL:      url,
		User:     "rpcuser",
		Password: "rpcpass",
		Timeout:  2 * time.Second,
		Policy:   policy,
		Logger:   zerolog.Nop(),
	})
}

func TestBlockCount(t *testing.T) {
	srv := newTestNode(t, map[string]any{"getblockcount": 1234567})
	defer srv.Close()

	height, err := newTestClient(srv.URL, nil).BlockCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1234567), height)
}

func TestBadCredentialsPropagate(t *testing.T) {
	srv := newTestNode(t, map[string]any{"getblockcount": 1})
	defer srv.Close()

	c := New(Options{URL: srv.URL, User: "rpcuser", Password: "wrong", Logger: zerolog.Nop()})
	_, err := c.BlockCount(context.Background())
	require.Error(t, err)
}

func TestGovernanceObjectsKeyedByHash(t *testing.T) {
	srv := newTestNode(t, map[string]any{
		"gobject list all": map[string]any{
			"aa11": map[string]any{"ObjectType": 1, "DataString": `{"name":"p1"}`, "YesCount": 3},
			"bb22": map[string]any{"ObjectType": 2},
		},
	})
	defer srv.Close()

	objects, err := newTestClient(srv.URL, nil).GovernanceObjects(context.Background())
	require.NoError(t, err)
	require.Len(t, objects, 2)
	require.Equal(t, "aa11", objects["aa11"].Hash)
	require.Equal(t, 3, objects["aa11"].YesCount)
	require.Equal(t, 2, objects["bb22"].ObjectType)
}

func TestGovernanceVotesParsesWire(t *testing.T) {
	srv := newTestNode(t, map[string]any{
		"gobject getcurrentvotes aa11": map[string]string{
			voteKey(testProTx): "1700000000:funding-yes:ab12",
			"garbage":          "1700000000:yes",
		},
	})
	defer srv.Close()

	votes, err := newTestClient(srv.URL, nil).GovernanceVotes(context.Background(), "aa11")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	require.Equal(t, OutcomeYes, votes[0].Outcome)
}

func TestMasternodeCount(t *testing.T) {
	srv := newTestNode(t, map[string]any{
		"masternode count": map[string]int{"total": 4000, "enabled": 3500},
	})
	defer srv.Close()

	count, err := newTestClient(srv.URL, nil).MasternodeCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, MasternodeCount{Total: 4000, Enabled: 3500}, count)
}

func TestRPCErrorSurfacesMessage(t *testing.T) {
	srv := newTestNode(t, map[string]any{})
	defer srv.Close()

	_, err := newTestClient(srv.URL, nil).BlockHash(context.Background(), 10)
	require.ErrorContains(t, err, "Method not found")
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": 42, "error": nil})
	}))
	defer srv.Close()

	height, err := newTestClient(srv.URL, retry.FixedDelay(3, 0)).BlockCount(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(42), height)
	require.Equal(t, int64(3), calls.Load())
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, retry.FixedDelay(2, 0)).BlockCount(context.Background())
	require.Error(t, err)
	require.Equal(t, int64(2), calls.Load())
}

func TestTimeoutAbortsRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(Options{
		URL: srv.URL, User: "u", Password: "p",
		Timeout: 50 * time.Millisecond,
		Logger:  zerolog.Nop(),
	})
	start := time.Now()
	_, err := c.BlockCount(context.Background())
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second)
}

func TestParseProposalPayloadForms(t *testing.T) {
	plain := `{"end_epoch":120,"name":"core-dev","payment_address":"XabcD","payment_amount":125.5,"start_epoch":100,"type":1,"url":"https://example.org/p"}`
	legacy := `[["proposal",` + plain + `]]`

	for _, raw := range []string{plain, legacy} {
		p, err := ParseProposalPayload(raw)
		require.NoError(t, err, raw)
		require.Equal(t, "core-dev", p.Name)
		require.Equal(t, int64(120), p.EndEpoch)
		require.Equal(t, 125.5, p.PaymentAmount)
	}

	_, err := ParseProposalPayload("")
	require.Error(t, err)
	_, err = ParseProposalPayload("not json")
	require.Error(t, err)
	_, err = ParseProposalPayload(`{"url":"x"}`)
	require.Error(t, err, "payload without name")
}
