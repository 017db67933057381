// Package collectibles normalizes on-chain tokens, social casts and mock data
// into display items, and serves pages of them with caching and fallback.
package collectibles

import (
	"fmt"
	"strings"
	"time"

	"fc_explorer/core-go/internal/chain"
	"fc_explorer/core-go/internal/farcaster"
	"fc_explorer/core-go/internal/naming"
	"fc_explorer/core-go/internal/tagging"
)

// Path selects which list of items is browsed.
type Path string

const (
	PathRecent       Path = "recent"
	PathMyCollection Path = "mycollection"
)

// ParsePath accepts "recent" and "mycollection"; empty means recent.
func ParsePath(raw string) (Path, error) {
	switch Path(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PathRecent:
		return PathRecent, nil
	case PathMyCollection:
		return PathMyCollection, nil
	default:
		return "", fmt.Errorf("unknown path %q", raw)
	}
}

// Profile is a social identity attached to an item.
type Profile = farcaster.Profile

type Reactions struct {
	Likes   int `json:"likes"`
	Recasts int `json:"recasts"`
	Replies int `json:"replies"`
}

// Item is one collectible as shown in the scene.
type Item struct {
	ID          string     `json:"id"`
	TokenID     string     `json:"tokenId,omitempty"`
	Image       string     `json:"image,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Chain       string     `json:"chain"`
	Timestamp   *int64     `json:"timestamp,omitempty"`
	Author      *Profile   `json:"author,omitempty"`
	Minter      *Profile   `json:"minter,omitempty"`
	Channel     string     `json:"channel,omitempty"`
	Reactions   *Reactions `json:"reactions,omitempty"`
	Tags        []string   `json:"tags"`
}

// Page is one page of items. NextCursor is empty when there is nothing more.
type Page struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

func attributes(md *chain.Metadata) []tagging.Attribute {
	if md == nil || len(md.Attributes) == 0 {
		return nil
	}
	out := make([]tagging.Attribute, 0, len(md.Attributes))
	for _, a := range md.Attributes {
		out = append(out, tagging.Attribute{Trait: a.TraitType, Value: a.Value})
	}
	return out
}

func fromMetadata(id, tokenID string, md *chain.Metadata) Item {
	var name, description string
	if md != nil {
		name = md.Name
		description = strings.TrimSpace(md.Description)
	}
	title := naming.Title(name, "", tokenID)
	return Item{
		ID:          id,
		TokenID:     tokenID,
		Image:       md.ImageOrFallback(),
		Title:       title,
		Description: description,
		Chain:       chain.ChainBase,
		Tags:        tagging.Tags(title, description, attributes(md), ""),
	}
}

// FromRecentMint builds a recent-path item. The id is "<txHash>:<tokenId>"
// so tokens minted in one batch transaction stay distinct; without a hash it
// is the token id.
func FromRecentMint(m chain.Mint, md *chain.Metadata, minter *Profile) Item {
	id := m.TokenID
	if m.TransactionHash != "" {
		id = m.TransactionHash + ":" + m.TokenID
	}
	it := fromMetadata(id, m.TokenID, md)
	it.Minter = minter
	return it
}

// FromOwnedNFT builds a collection-path item with id "user-<tokenId>".
func FromOwnedNFT(n chain.OwnedNFT) Item {
	it := fromMetadata("user-"+n.TokenID, n.TokenID, n.Metadata)
	if ts, ok := parseTimestamp(n.MintTime); ok {
		it.Timestamp = &ts
	}
	return it
}

// Cast is a social post carrying an embedded image.
type Cast struct {
	Hash      string
	Author    Profile
	Text      string
	ImageURL  string
	ChannelID string
	Timestamp time.Time
	Reactions Reactions
}

// FromCast builds an item from a cast; the id is the cast hash.
func FromCast(c Cast) Item {
	title := naming.Title("", c.Text, "")
	author := c.Author
	it := Item{
		ID:          c.Hash,
		Image:       c.ImageURL,
		Title:       title,
		Description: strings.TrimSpace(c.Text),
		Chain:       chain.ChainBase,
		Author:      &author,
		Channel:     c.ChannelID,
		Tags:        tagging.Tags(title, c.Text, nil, c.ChannelID),
	}
	if !c.Timestamp.IsZero() {
		ts := c.Timestamp.UnixMilli()
		it.Timestamp = &ts
	}
	reactions := c.Reactions
	it.Reactions = &reactions
	return it
}

func parseTimestamp(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}
