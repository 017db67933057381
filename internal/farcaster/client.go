// Package farcaster resolves wallet addresses, usernames and numeric ids to
// social profiles through a Neynar-compatible API.
package farcaster

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"fc_explorer/core-go/internal/metrics"
	"fc_explorer/core-go/internal/upstream"
)

// DefaultBaseURL is the Neynar v2 Farcaster API root.
const DefaultBaseURL = "https://api.neynar.com/v2/farcaster"

// ErrInvalidUsername rejects empty usernames and the stringified
// placeholders some callers send instead of a value.
var ErrInvalidUsername = errors.New("valid username is required")

// Profile is a resolved social identity.
type Profile struct {
	SocialID    int64  `json:"socialId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// Addresses is the custody plus verified wallet set of one account.
type Addresses struct {
	SocialID  int64    `json:"fid"`
	Username  string   `json:"username"`
	Addresses []string `json:"addresses"`
}

type user struct {
	FID               int64  `json:"fid"`
	Username          string `json:"username"`
	DisplayName       string `json:"display_name"`
	PfpURL            string `json:"pfp_url"`
	CustodyAddress    string `json:"custody_address"`
	VerifiedAddresses struct {
		EthAddresses []string `json:"eth_addresses"`
	} `json:"verified_addresses"`
}

func (u user) profile() *Profile {
	return &Profile{
		SocialID:    u.FID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.PfpURL,
	}
}

type Options struct {
	BaseURL string
	APIKey  string
	RPS     float64
}

type Client struct {
	log zerolog.Logger
	api *upstream.Client
	key string
}

func New(log zerolog.Logger, opts Options, m *metrics.Metrics) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	key := strings.TrimSpace(opts.APIKey)
	return &Client{
		log: log,
		api: upstream.New(log, upstream.Options{
			Service: "neynar",
			BaseURL: base,
			Header:  http.Header{"api_key": []string{key}},
			RPS:     opts.RPS,
			Burst:   4,
		}, m),
		key: key,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c != nil && c.key != "" }

// IsZeroAddress reports an empty or all-zero wallet address.
func IsZeroAddress(address string) bool {
	a := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(address)), "0x")
	return strings.Trim(a, "0") == ""
}

// ValidateUsername rejects missing usernames and "undefined"/"null".
func ValidateUsername(username string) error {
	switch strings.TrimSpace(username) {
	case "", "undefined", "null":
		return ErrInvalidUsername
	}
	return nil
}

// ProfileByAddress returns nil, nil for the zero address, for a 404 and for
// addresses with no linked account.
func (c *Client) ProfileByAddress(ctx context.Context, address string) (*Profile, error) {
	if IsZeroAddress(address) {
		return nil, nil
	}
	if c.key == "" {
		return nil, upstream.ErrNotConfigured
	}
	var resp map[string][]user
	q := url.Values{"addresses": {address}}
	if err := c.api.GetJSON(ctx, "/user/bulk-by-address", q, &resp); err != nil {
		if upstream.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	for addr, users := range resp {
		if strings.EqualFold(addr, address) && len(users) > 0 {
			return users[0].profile(), nil
		}
	}
	return nil, nil
}

func (c *Client) ProfileByUsername(ctx context.Context, username string) (*Profile, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if c.key == "" {
		return nil, upstream.ErrNotConfigured
	}
	var resp struct {
		User *user `json:"user"`
	}
	q := url.Values{"username": {strings.TrimSpace(username)}}
	if err := c.api.GetJSON(ctx, "/user/by-username", q, &resp); err != nil {
		if upstream.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if resp.User == nil {
		return nil, nil
	}
	return resp.User.profile(), nil
}

func (c *Client) userByID(ctx context.Context, id int64) (*user, error) {
	if c.key == "" {
		return nil, upstream.ErrNotConfigured
	}
	var resp struct {
		Users []user `json:"users"`
	}
	q := url.Values{"fids": {strconv.FormatInt(id, 10)}}
	if err := c.api.GetJSON(ctx, "/user/bulk", q, &resp); err != nil {
		if upstream.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, nil
	}
	return &resp.Users[0], nil
}

func (c *Client) ProfileByID(ctx context.Context, id int64) (*Profile, error) {
	if id <= 0 {
		return nil, nil
	}
	u, err := c.userByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	return u.profile(), nil
}

// AddressesByID returns the custody address followed by verified eth
// addresses, or nil when the account does not exist.
func (c *Client) AddressesByID(ctx context.Context, id int64) (*Addresses, error) {
	u, err := c.userByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}
	out := &Addresses{SocialID: u.FID, Username: u.Username, Addresses: []string{}}
	if u.CustodyAddress != "" {
		out.Addresses = append(out.Addresses, u.CustodyAddress)
	}
	for _, a := range u.VerifiedAddresses.EthAddresses {
		if a != "" {
			out.Addresses = append(out.Addresses, a)
		}
	}
	return out, nil
}
