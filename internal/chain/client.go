package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"fc_explorer/core-go/internal/metrics"
	"fc_explorer/core-go/internal/upstream"
)

const (
	// DefaultBaseURL is the Alchemy endpoint for Base mainnet.
	DefaultBaseURL = "https://base-mainnet.g.alchemy.com"

	mintWindowBlocks = 498
	mintPageSize     = 10
)

type Options struct {
	BaseURL  string
	APIKey   string
	Contract string
	RPS      float64
}

// Client talks to an Alchemy-compatible indexer: JSON-RPC for logs and
// receipts, the NFT REST API for metadata and ownership.
type Client struct {
	log      zerolog.Logger
	api      *upstream.Client
	key      string
	contract string
	rpcID    atomic.Int64
}

func New(log zerolog.Logger, opts Options, m *metrics.Metrics) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	contract := strings.TrimSpace(opts.Contract)
	if contract == "" {
		contract = DefaultContract
	}
	return &Client{
		log: log,
		api: upstream.New(log, upstream.Options{
			Service: "alchemy",
			BaseURL: base,
			RPS:     opts.RPS,
			Burst:   2,
		}, m),
		key:      strings.TrimSpace(opts.APIKey),
		contract: contract,
	}
}

// Contract returns the collectibles contract address this client targets.
func (c *Client) Contract() string { return c.contract }

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c != nil && c.key != "" }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, dst any) error {
	if c.key == "" {
		return upstream.ErrNotConfigured
	}
	if params == nil {
		params = []any{}
	}
	req := rpcRequest{JSONRPC: "2.0", ID: c.rpcID.Add(1), Method: method, Params: params}
	var resp rpcResponse
	if err := c.api.PostJSON(ctx, "/v2/"+c.key, req, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("alchemy %s: rpc error %d: %s", method, resp.Error.Code, resp.Error.Message)
	}
	if dst == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, dst)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var hex string
	if err := c.call(ctx, "eth_blockNumber", nil, &hex); err != nil {
		return 0, err
	}
	return HexToUint64(hex)
}

func (c *Client) Logs(ctx context.Context, fromBlock, toBlock uint64, address string, topics []string) ([]Log, error) {
	filter := map[string]any{
		"fromBlock": "0x" + strconv.FormatUint(fromBlock, 16),
		"toBlock":   "0x" + strconv.FormatUint(toBlock, 16),
		"address":   address,
	}
	if len(topics) > 0 {
		filter["topics"] = topics
	}
	var logs []Log
	if err := c.call(ctx, "eth_getLogs", []any{filter}, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// TransactionReceipt returns nil, nil when the node does not know the hash.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	var receipt *Receipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{hash}, &receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) nftPath(method string) string {
	return "/nft/v2/" + c.key + "/" + method
}

// NFTMetadata returns nil, nil when the indexer has no metadata for the token.
func (c *Client) NFTMetadata(ctx context.Context, tokenID string) (*Metadata, error) {
	if c.key == "" {
		return nil, upstream.ErrNotConfigured
	}
	var resp struct {
		Metadata *Metadata `json:"metadata"`
		Raw      struct {
			Metadata *Metadata `json:"metadata"`
		} `json:"raw"`
	}
	q := url.Values{
		"contractAddress": {c.contract},
		"tokenId":         {tokenID},
		"tokenType":       {"ERC721"},
	}
	if err := c.api.GetJSON(ctx, c.nftPath("getNFTMetadata"), q, &resp); err != nil {
		if upstream.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if resp.Metadata != nil {
		return resp.Metadata, nil
	}
	return resp.Raw.Metadata, nil
}

// TotalSupply reads the contract's total supply, or 0 when unreported.
func (c *Client) TotalSupply(ctx context.Context) (uint64, error) {
	if c.key == "" {
		return 0, upstream.ErrNotConfigured
	}
	var resp struct {
		TotalSupply      string `json:"totalSupply"`
		ContractMetadata struct {
			TotalSupply string `json:"totalSupply"`
		} `json:"contractMetadata"`
	}
	q := url.Values{"contractAddress": {c.contract}}
	if err := c.api.GetJSON(ctx, c.nftPath("getContractMetadata"), q, &resp); err != nil {
		return 0, err
	}
	raw := resp.TotalSupply
	if raw == "" {
		raw = resp.ContractMetadata.TotalSupply
	}
	if raw == "" {
		return 0, nil
	}
	if strings.HasPrefix(raw, "0x") {
		return HexToUint64(raw)
	}
	return strconv.ParseUint(raw, 10, 64)
}

type ownedNFTJSON struct {
	TokenID string `json:"tokenId"`
	ID      struct {
		TokenID string `json:"tokenId"`
	} `json:"id"`
	Contract struct {
		Address string `json:"address"`
	} `json:"contract"`
	Metadata        *Metadata `json:"metadata"`
	TimeLastUpdated string    `json:"timeLastUpdated"`
	Mint            struct {
		Timestamp string `json:"timestamp"`
	} `json:"mint"`
}

// NFTsForOwner lists tokens of the configured contract held by owner.
func (c *Client) NFTsForOwner(ctx context.Context, owner string) ([]OwnedNFT, error) {
	if c.key == "" {
		return nil, upstream.ErrNotConfigured
	}
	var resp struct {
		OwnedNFTs []ownedNFTJSON `json:"ownedNfts"`
	}
	q := url.Values{
		"owner":               {owner},
		"contractAddresses[]": {c.contract},
		"withMetadata":        {"true"},
	}
	if err := c.api.GetJSON(ctx, c.nftPath("getNFTs"), q, &resp); err != nil {
		return nil, err
	}

	out := make([]OwnedNFT, 0, len(resp.OwnedNFTs))
	for _, n := range resp.OwnedNFTs {
		raw := n.TokenID
		if raw == "" {
			raw = n.ID.TokenID
		}
		tokenID, err := NormalizeTokenID(raw)
		if err != nil {
			c.log.Warn().Err(err).Str("owner", owner).Msg("skipping owned nft with bad token id")
			continue
		}
		contract := n.Contract.Address
		if contract == "" {
			contract = c.contract
		}
		out = append(out, OwnedNFT{
			TokenID:         tokenID,
			ContractAddress: contract,
			Metadata:        n.Metadata,
			MintTime:        n.Mint.Timestamp,
		})
	}
	return out, nil
}

// OwnersForToken returns the holders of a single token.
func (c *Client) OwnersForToken(ctx context.Context, tokenID string) ([]string, error) {
	if c.key == "" {
		return nil, upstream.ErrNotConfigured
	}
	var resp struct {
		Owners []string `json:"owners"`
	}
	q := url.Values{"contractAddress": {c.contract}, "tokenId": {tokenID}}
	if err := c.api.GetJSON(ctx, c.nftPath("getOwnersForToken"), q, &resp); err != nil {
		return nil, err
	}
	if resp.Owners == nil {
		resp.Owners = []string{}
	}
	return resp.Owners, nil
}

// RecentMints scans backwards from cursor (a block number; empty means the
// chain head) in fixed windows until a page worth of Mint events is found.
func (c *Client) RecentMints(ctx context.Context, cursor string) (MintPage, error) {
	var head uint64
	if strings.TrimSpace(cursor) == "" {
		n, err := c.BlockNumber(ctx)
		if err != nil {
			return MintPage{}, err
		}
		head = n
	} else {
		n, err := strconv.ParseUint(strings.TrimSpace(cursor), 10, 64)
		if err != nil {
			return MintPage{}, fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		head = n
	}

	var logs []Log
	to := head
	from := windowStart(to)
	for {
		batch, err := c.Logs(ctx, from, to, c.contract, []string{MintEventTopic})
		if err != nil {
			return MintPage{}, err
		}
		logs = append(logs, batch...)
		if len(logs) >= mintPageSize || from == 0 {
			break
		}
		to = from - 1
		from = windowStart(to)
	}

	mints := make([]Mint, 0, len(logs))
	for _, l := range logs {
		m, err := ParseMintLog(l)
		if err != nil {
			c.log.Warn().Err(err).Str("tx", l.TransactionHash).Msg("skipping malformed mint log")
			continue
		}
		mints = append(mints, m)
	}
	sort.SliceStable(mints, func(i, j int) bool {
		if mints[i].BlockNumber != mints[j].BlockNumber {
			return mints[i].BlockNumber > mints[j].BlockNumber
		}
		return mints[i].LogIndex > mints[j].LogIndex
	})

	next := ""
	if from > 0 {
		next = strconv.FormatUint(from-1, 10)
	}
	if len(mints) > mintPageSize {
		// Keep whole blocks so the cursor can resume strictly below the page.
		cut := mintPageSize
		last := mints[cut-1].BlockNumber
		for cut < len(mints) && mints[cut].BlockNumber == last {
			cut++
		}
		mints = mints[:cut]
		if last > 0 {
			next = strconv.FormatUint(last-1, 10)
		} else {
			next = ""
		}
	}

	return MintPage{Mints: mints, NextCursor: next}, nil
}

func windowStart(to uint64) uint64 {
	if to < mintWindowBlocks {
		return 0
	}
	return to - mintWindowBlocks
}

// OwnedTokens queries each address once and de-duplicates by
// (tokenId, contractAddress). It fails only when every address failed.
func (c *Client) OwnedTokens(ctx context.Context, addresses []string) ([]OwnedNFT, error) {
	seen := make(map[string]struct{})
	var out []OwnedNFT
	var errs []error
	queried := 0
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		queried++
		nfts, err := c.NFTsForOwner(ctx, addr)
		if err != nil {
			c.log.Warn().Err(err).Str("owner", addr).Msg("owned nft lookup failed")
			errs = append(errs, err)
			continue
		}
		for _, n := range nfts {
			key := n.TokenID + "|" + strings.ToLower(n.ContractAddress)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, n)
		}
	}
	if queried > 0 && len(errs) == queried {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
