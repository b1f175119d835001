// Package health maintains a composite connectivity snapshot and
// serves it over HTTP.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stake-plus/dash-gov-oracle/src/oracle/dashrpc"
	"github.com/stake-plus/dash-gov-oracle/src/oracle/scheduler"
)

// CheckInterval is how often the checker re-probes connectivity. The
// checker registers as a regular scheduled task at this interval.
const CheckInterval = 30 * time.Second

// TaskReport is what each sync task pushes after a cycle.
type TaskReport struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Count     int       `json:"count"`
}

// NodeStatus describes dashd connectivity.
type NodeStatus struct {
	Connected bool      `json:"connected"`
	Height    int64     `json:"height,omitempty"`
	Chain     string    `json:"chain,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// StoreStatus describes document store connectivity.
type StoreStatus struct {
	Connected bool      `json:"connected"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Status is the point-in-time composite served at /health.
type Status struct {
	Healthy   bool                            `json:"healthy"`
	Node      NodeStatus                      `json:"node"`
	Store     StoreStatus                     `json:"store"`
	Tasks     map[string]TaskReport           `json:"tasks"`
	Scheduler map[string]scheduler.TaskStatus `json:"scheduler"`
	UpdatedAt time.Time                       `json:"updatedAt"`
}

// NodePinger is the node surface the checker probes.
type NodePinger interface {
	BlockCount(ctx context.Context) (int64, error)
	BlockchainInfo(ctx context.Context) (dashrpc.BlockchainInfo, error)
}

// StorePinger is the store surface the checker probes.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// Checker owns the snapshot. Probes overwrite the connectivity parts;
// sync tasks push their own reports.
type Checker struct {
	node     NodePinger
	store    StorePinger
	statusFn func() map[string]scheduler.TaskStatus

	mu        sync.RWMutex
	nodeStat  NodeStatus
	storeStat StoreStatus
	reports   map[string]TaskReport

	log zerolog.Logger
}

// NewChecker wires the checker. statusFn is typically
// (*scheduler.Scheduler).Status.
func NewChecker(node NodePinger, store StorePinger, statusFn func() map[string]scheduler.TaskStatus, log zerolog.Logger) *Checker {
	return &Checker{
		node:     node,
		store:    store,
		statusFn: statusFn,
		reports:  make(map[string]TaskReport),
		log:      log,
	}
}

// Check re-probes node and store connectivity. It always returns nil:
// a failed probe is healthy checker behavior, reflected in the
// snapshot rather than the scheduler's lastError.
func (c *Checker) Check(ctx context.Context) error {
	now := time.Now()

	node := NodeStatus{CheckedAt: now}
	if height, err := c.node.BlockCount(ctx); err != nil {
		node.Error = err.Error()
	} else {
		node.Connected = true
		node.Height = height
		if info, err := c.node.BlockchainInfo(ctx); err == nil {
			node.Chain = info.Chain
		}
	}

	store := StoreStatus{CheckedAt: now}
	if err := c.store.Ping(ctx); err != nil {
		store.Error = err.Error()
	} else {
		store.Connected = true
	}

	c.mu.Lock()
	c.nodeStat = node
	c.storeStat = store
	c.mu.Unlock()

	if !node.Connected {
		c.log.Warn().Str("error", node.Error).Msg("node probe failed")
	}
	if !store.Connected {
		c.log.Warn().Str("error", store.Error).Msg("store probe failed")
	}
	return nil
}

// Report records one sync task's cycle outcome.
func (c *Checker) Report(task string, r TaskReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[task] = r
}

// Snapshot returns the current composite status.
func (c *Checker) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tasks := make(map[string]TaskReport, len(c.reports))
	for name, r := range c.reports {
		tasks[name] = r
	}

	var sched map[string]scheduler.TaskStatus
	if c.statusFn != nil {
		sched = c.statusFn()
	}

	return Status{
		Healthy:   c.nodeStat.Connected && c.storeStat.Connected,
		Node:      c.nodeStat,
		Store:     c.storeStat,
		Tasks:     tasks,
		Scheduler: sched,
		UpdatedAt: time.Now(),
	}
}
