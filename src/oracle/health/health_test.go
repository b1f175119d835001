package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/dash-gov-oracle/src/oracle/dashrpc"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/scheduler"
)

type fakeNode struct {
	height int64
	chain  string
	err    error
}

func (f *fakeNode) BlockCount(context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.height, nil
}

func (f *fakeNode) BlockchainInfo(context.Context) (dashrpc.BlockchainInfo, error) {
	if f.err != nil {
		return dashrpc.BlockchainInfo{}, f.err
	}
	return dashrpc.BlockchainInfo{Chain: f.chain, Blocks: f.height}, nil
}

type fakeStore struct{ err error }

func (f *fakeStore) Ping(context.Context) error { return f.err }

func TestCheckerHealthy(t *testing.T) {
	c := NewChecker(&fakeNode{height: 123456, chain: "main"}, &fakeStore{}, nil, zerolog.Nop())
	require.NoError(t, c.Check(context.Background()))

	snap := c.Snapshot()
	require.True(t, snap.Healthy)
	require.True(t, snap.Node.Connected)
	require.Equal(t, int64(123456), snap.Node.Height)
	require.Equal(t, "main", snap.Node.Chain)
	require.True(t, snap.Store.Connected)
}

func TestCheckerUnhealthyOnAnyFailure(t *testing.T) {
	node := &fakeNode{height: 1}
	store := &fakeStore{}
	c := NewChecker(node, store, nil, zerolog.Nop())

	store.err = errors.New("mysql gone")
	require.NoError(t, c.Check(context.Background()), "probe failures are not task failures")
	snap := c.Snapshot()
	require.False(t, snap.Healthy)
	require.True(t, snap.Node.Connected)
	require.Equal(t, "mysql gone", snap.Store.Error)

	store.err = nil
	node.err = errors.New("connection refused")
	require.NoError(t, c.Check(context.Background()))
	snap = c.Snapshot()
	require.False(t, snap.Healthy)
	require.Equal(t, "connection refused", snap.Node.Error)
}

func TestReportsAccumulatePerTask(t *testing.T) {
	c := NewChecker(&fakeNode{height: 1}, &fakeStore{}, nil, zerolog.Nop())

	c.Report("proposals", TaskReport{Timestamp: time.Now(), Success: true, Count: 12})
	c.Report("votes", TaskReport{Timestamp: time.Now(), Success: false})
	c.Report("proposals", TaskReport{Timestamp: time.Now(), Success: true, Count: 3})

	snap := c.Snapshot()
	require.Len(t, snap.Tasks, 2)
	require.Equal(t, 3, snap.Tasks["proposals"].Count, "latest report wins")
	require.False(t, snap.Tasks["votes"].Success)
}

func TestServerEndpoints(t *testing.T) {
	node := &fakeNode{height: 99, chain: "test"}
	statusFn := func() map[string]scheduler.TaskStatus {
		return map[string]scheduler.TaskStatus{
			"proposals": {IntervalMS: 300000},
		}
	}
	c := NewChecker(node, &fakeStore{}, statusFn, zerolog.Nop())
	require.NoError(t, c.Check(context.Background()))

	srv := NewServer(":0", c, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.True(t, snap.Healthy)
	require.Equal(t, int64(300000), snap.Scheduler["proposals"].IntervalMS)

	mresp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	mresp.Body.Close()
	require.Equal(t, http.StatusOK, mresp.StatusCode)

	node.err = errors.New("down")
	require.NoError(t, c.Check(context.Background()))
	uresp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	uresp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, uresp.StatusCode)
}
