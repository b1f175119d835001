// Package dashrpc is a stateless JSON-RPC 1.0 client for a dashd full
// node. Every public method is a single RPC call bounded by the
// configured timeout and wrapped in the shared retry policy.
package dashrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/stake-plus/dash-gov-oracle/src/shared/retry"
)

const defaultTimeout = 30 * time.Second

// Caller is the node surface the sync tasks consume. Tests inject
// fakes through it.
type Caller interface {
	BlockCount(ctx context.Context) (int64, error)
	BlockHash(ctx context.Context, height int64) (string, error)
	SuperblockBudget(ctx context.Context, height int64) (float64, error)
	GovernanceObjects(ctx context.Context) (map[string]GovernanceObject, error)
	GovernanceObject(ctx context.Context, hash string) (GovernanceObject, error)
	GovernanceVotes(ctx context.Context, hash string) ([]Vote, error)
	MasternodeList(ctx context.Context) (map[string]MasternodeEntry, error)
	MasternodeCount(ctx context.Context) (MasternodeCount, error)
	RawTransaction(ctx context.Context, txid string) (RawTransaction, error)
	BlockchainInfo(ctx context.Context) (BlockchainInfo, error)
}

// Options configures a Client.
type Options struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
	Policy   retry.Policy
	Logger   zerolog.Logger
}

// Client issues JSON-RPC 1.0 calls over HTTP Basic Auth. It holds no
// mutable state beyond its configuration.
type Client struct {
	url        string
	user       string
	password   string
	timeout    time.Duration
	policy     retry.Policy
	httpClient *http.Client
	log        zerolog.Logger
}

// New builds a Client. A nil retry policy means single attempts.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Policy == nil {
		opts.Policy = retry.FixedDelay(1, 0)
	}
	return &Client{
		url:        opts.URL,
		user:       opts.User,
		password:   opts.Password,
		timeout:    opts.Timeout,
		policy:     opts.Policy,
		httpClient: &http.Client{},
		log:        opts.Logger,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("dashd rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	return c.policy.Do(ctx, func() error {
		if err := c.callOnce(ctx, method, params, out); err != nil {
			c.log.Warn().Err(err).Str("method", method).Msg("rpc call failed")
			return err
		}
		return nil
	})
}

func (c *Client) callOnce(ctx context.Context, method string, params []any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: "dash-gov-oracle", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", method, err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}

	// dashd reports call failures with a non-200 status and an error
	// object in the body; decode the body before looking at the status.
	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: http %d", method, resp.StatusCode)
		}
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http %d", method, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// BlockCount returns the node's current block height.
func (c *Client) BlockCount(ctx context.Context) (int64, error) {
	var height int64
	err := c.call(ctx, "getblockcount", nil, &height)
	return height, err
}

// BlockHash returns the block hash at a height.
func (c *Client) BlockHash(ctx context.Context, height int64) (string, error) {
	var hash string
	err := c.call(ctx, "getblockhash", []any{height}, &hash)
	return hash, err
}

// SuperblockBudget returns the total budget payable at the given
// superblock height.
func (c *Client) SuperblockBudget(ctx context.Context, height int64) (float64, error) {
	var budget float64
	err := c.call(ctx, "getsuperblockbudget", []any{height}, &budget)
	return budget, err
}

// GovernanceObjects lists every governance object the node knows,
// keyed by object hash.
func (c *Client) GovernanceObjects(ctx context.Context) (map[string]GovernanceObject, error) {
	var objects map[string]GovernanceObject
	if err := c.call(ctx, "gobject", []any{"list", "all"}, &objects); err != nil {
		return nil, err
	}
	for hash, obj := range objects {
		obj.Hash = hash
		objects[hash] = obj
	}
	return objects, nil
}

// GovernanceObject fetches a single governance object by hash.
func (c *Client) GovernanceObject(ctx context.Context, hash string) (GovernanceObject, error) {
	var obj GovernanceObject
	if err := c.call(ctx, "gobject", []any{"get", hash}, &obj); err != nil {
		return GovernanceObject{}, err
	}
	if obj.Hash == "" {
		obj.Hash = hash
	}
	return obj, nil
}

// GovernanceVotes returns the current votes on a governance object,
// parsed per the wire rules in votes.go.
func (c *Client) GovernanceVotes(ctx context.Context, hash string) ([]Vote, error) {
	var raw map[string]string
	if err := c.call(ctx, "gobject", []any{"getcurrentvotes", hash}, &raw); err != nil {
		return nil, err
	}
	return parseVotes(raw, c.log), nil
}

// MasternodeList returns the full masternode list keyed by proTxHash.
func (c *Client) MasternodeList(ctx context.Context) (map[string]MasternodeEntry, error) {
	var list map[string]MasternodeEntry
	if err := c.call(ctx, "masternode", []any{"list", "json"}, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// MasternodeCount returns total and enabled masternode counts.
func (c *Client) MasternodeCount(ctx context.Context) (MasternodeCount, error) {
	var count MasternodeCount
	err := c.call(ctx, "masternode", []any{"count"}, &count)
	return count, err
}

// RawTransaction fetches a transaction in verbose form.
func (c *Client) RawTransaction(ctx context.Context, txid string) (RawTransaction, error) {
	var tx RawTransaction
	err := c.call(ctx, "getrawtransaction", []any{txid, true}, &tx)
	return tx, err
}

// BlockchainInfo returns chain name and tip information.
func (c *Client) BlockchainInfo(ctx context.Context) (BlockchainInfo, error) {
	var info BlockchainInfo
	err := c.call(ctx, "getblockchaininfo", nil, &info)
	return info, err
}
