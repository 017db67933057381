package collectibles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fc_explorer/core-go/internal/cache"
	"fc_explorer/core-go/internal/chain"
	"fc_explorer/core-go/internal/farcaster"
)

var (
	// ErrNoAddresses is returned for the collection path when the viewer has
	// no known wallet.
	ErrNoAddresses = errors.New("no wallet addresses for viewer")
	// ErrUnknownAccount is returned when a social id has no account.
	ErrUnknownAccount = errors.New("social account not found")
)

// MintSource is the blockchain side of the service (*chain.Client).
type MintSource interface {
	RecentMints(ctx context.Context, cursor string) (chain.MintPage, error)
	NFTMetadata(ctx context.Context, tokenID string) (*chain.Metadata, error)
	OwnedTokens(ctx context.Context, addresses []string) ([]chain.OwnedNFT, error)
}

// ProfileSource is the social side of the service (*farcaster.Client).
type ProfileSource interface {
	ProfileByAddress(ctx context.Context, address string) (*farcaster.Profile, error)
	AddressesByID(ctx context.Context, id int64) (*farcaster.Addresses, error)
}

type Options struct {
	// EnrichConcurrency bounds parallel metadata/profile lookups per page.
	EnrichConcurrency int
}

type Service struct {
	log      zerolog.Logger
	mints    MintSource
	profiles ProfileSource
	cache    *cache.TTL
	group    singleflight.Group
	limit    int
}

func NewService(log zerolog.Logger, mints MintSource, profiles ProfileSource, c *cache.TTL, opts Options) *Service {
	if c == nil {
		c = cache.NewTTL(cache.NewMemory(), cache.DefaultTTL, nil)
	}
	limit := opts.EnrichConcurrency
	if limit <= 0 {
		limit = 4
	}
	return &Service{log: log, mints: mints, profiles: profiles, cache: c, limit: limit}
}

// Recent returns a page of recently minted items. The first page is served
// from cache while fresh; when the upstream fails, a stale first page is
// returned instead of the error.
func (s *Service) Recent(ctx context.Context, cursor string) (Page, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor != "" {
		return s.fetchRecent(ctx, cursor)
	}

	var cached Page
	if s.cache.Fresh(ctx, cache.RecentItemsKey, &cached) {
		return cached, nil
	}

	v, err, _ := s.group.Do(cache.RecentItemsKey, func() (any, error) {
		page, err := s.fetchRecent(ctx, "")
		if err != nil {
			return Page{}, err
		}
		if err := s.cache.Put(ctx, cache.RecentItemsKey, page); err != nil {
			s.log.Warn().Err(err).Msg("recent items cache write failed")
		}
		return page, nil
	})
	if err != nil {
		var stale Page
		if s.cache.Stale(ctx, cache.RecentItemsKey, &stale) {
			s.log.Warn().Err(err).Msg("recent mints unavailable; serving cached page")
			return stale, nil
		}
		return Page{}, err
	}
	return v.(Page), nil
}

// RefreshRecent refetches the first page and rewrites the cache.
func (s *Service) RefreshRecent(ctx context.Context) (Page, error) {
	v, err, _ := s.group.Do(cache.RecentItemsKey, func() (any, error) {
		page, err := s.fetchRecent(ctx, "")
		if err != nil {
			return Page{}, err
		}
		if err := s.cache.Put(ctx, cache.RecentItemsKey, page); err != nil {
			return page, fmt.Errorf("cache write: %w", err)
		}
		return page, nil
	})
	return v.(Page), err
}

// RecentMintPage exposes the raw mint page for background jobs.
func (s *Service) RecentMintPage(ctx context.Context, cursor string) (chain.MintPage, error) {
	return s.mints.RecentMints(ctx, cursor)
}

func (s *Service) fetchRecent(ctx context.Context, cursor string) (Page, error) {
	mp, err := s.mints.RecentMints(ctx, cursor)
	if err != nil {
		return Page{}, fmt.Errorf("recent mints: %w", err)
	}

	items := make([]Item, len(mp.Mints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, m := range mp.Mints {
		i, m := i, m
		g.Go(func() error {
			items[i] = s.enrichMint(gctx, m)
			return nil
		})
	}
	_ = g.Wait()

	return Page{Items: items, NextCursor: mp.NextCursor, HasMore: mp.NextCursor != ""}, nil
}

// enrichMint looks up metadata and the minter profile in parallel. Either
// lookup failing leaves that field empty.
func (s *Service) enrichMint(ctx context.Context, m chain.Mint) Item {
	var (
		md     *chain.Metadata
		minter *farcaster.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.mints.NFTMetadata(gctx, m.TokenID)
		if err != nil {
			s.log.Debug().Err(err).Str("token_id", m.TokenID).Msg("metadata lookup failed")
			return nil
		}
		md = v
		return nil
	})
	if s.profiles != nil {
		g.Go(func() error {
			v, err := s.profiles.ProfileByAddress(gctx, m.To)
			if err != nil {
				s.log.Debug().Err(err).Str("address", m.To).Msg("minter profile lookup failed")
				return nil
			}
			minter = v
			return nil
		})
	}
	_ = g.Wait()
	return FromRecentMint(m, md, minter)
}

// Owned returns the items held by any of the given addresses.
func (s *Service) Owned(ctx context.Context, addresses []string) (Page, error) {
	var clean []string
	for _, a := range addresses {
		if a = strings.TrimSpace(a); a != "" {
			clean = append(clean, a)
		}
	}
	if len(clean) == 0 {
		return Page{}, ErrNoAddresses
	}
	nfts, err := s.mints.OwnedTokens(ctx, clean)
	if err != nil {
		return Page{}, fmt.Errorf("owned tokens: %w", err)
	}
	items := make([]Item, 0, len(nfts))
	for _, n := range nfts {
		items = append(items, FromOwnedNFT(n))
	}
	return Page{Items: items}, nil
}

// OwnedBySocialID resolves the account's wallets, then lists their items.
func (s *Service) OwnedBySocialID(ctx context.Context, id int64) (Page, error) {
	if s.profiles == nil {
		return Page{}, ErrUnknownAccount
	}
	addrs, err := s.profiles.AddressesByID(ctx, id)
	if err != nil {
		return Page{}, fmt.Errorf("account addresses: %w", err)
	}
	if addrs == nil {
		return Page{}, ErrUnknownAccount
	}
	return s.Owned(ctx, addrs.Addresses)
}

// Viewer binds the service to one user's wallets so it can serve both paths.
type Viewer struct {
	Service   *Service
	Addresses []string
}

// LoadPage fetches a page for path. The collection path is not paginated.
func (v Viewer) LoadPage(ctx context.Context, path Path, cursor string) (Page, error) {
	switch path {
	case PathRecent:
		return v.Service.Recent(ctx, cursor)
	case PathMyCollection:
		if cursor != "" {
			return Page{}, nil
		}
		return v.Service.Owned(ctx, v.Addresses)
	default:
		return Page{}, fmt.Errorf("unknown path %q", path)
	}
}
