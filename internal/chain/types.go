package chain

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	// DefaultContract is the collectibles contract on Base mainnet.
	DefaultContract = "0xc011Ec7Ca575D4f0a2eDA595107aB104c7Af7A09"
	// ChainBase tags items sourced from Base mainnet.
	ChainBase = "base"

	// MintEventTopic is the signature hash of the collectible Mint event:
	// Mint(address indexed to, uint256 indexed tokenId, uint256 indexed fid, bytes32 castHash).
	MintEventTopic = "0xcf6fbb9dcea7d07263ab4f5c3a92f53af33dffc421d9d121e1c74b307e68189d"
	// TransferEventTopic is the ERC-721 Transfer(address,address,uint256) signature hash.
	TransferEventTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	// ZeroTopic is a 32-byte zero word (the null address as an indexed topic).
	ZeroTopic = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

// Log is an EVM event log as returned by eth_getLogs / receipts.
type Log struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
}

type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	Logs            []Log  `json:"logs"`
}

type Attribute struct {
	TraitType   string `json:"trait_type"`
	Value       any    `json:"value"`
	DisplayType string `json:"display_type,omitempty"`
}

// Metadata is the token metadata document (name/description/image/attributes).
type Metadata struct {
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	Image       string      `json:"image,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty"`
}

// ImageOrFallback prefers image over image_url.
func (m *Metadata) ImageOrFallback() string {
	if m == nil {
		return ""
	}
	if m.Image != "" {
		return m.Image
	}
	return m.ImageURL
}

// Mint is a parsed collectible mint event.
type Mint struct {
	TokenID         string
	To              string
	FID             string
	CastHash        string
	BlockNumber     uint64
	LogIndex        uint64
	TransactionHash string
}

// MintPage is one page of recent mints, newest first.
type MintPage struct {
	Mints      []Mint
	NextCursor string
}

// OwnedNFT is a token held by an address.
type OwnedNFT struct {
	TokenID         string
	ContractAddress string
	Metadata        *Metadata
	MintTime        string
}

// HexToDecimal converts a 0x-prefixed (or bare) hex quantity to base 10.
func HexToDecimal(h string) (string, error) {
	n, err := parseHexBig(h)
	if err != nil {
		return "", err
	}
	return n.String(), nil
}

// HexToUint64 converts a hex quantity to uint64.
func HexToUint64(h string) (uint64, error) {
	n, err := parseHexBig(h)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("hex quantity %q overflows uint64", h)
	}
	return n.Uint64(), nil
}

func parseHexBig(h string) (*big.Int, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(h), "0x"), "0X")
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", h)
	}
	return n, nil
}

// NormalizeTokenID accepts decimal or 0x-hex token ids and returns decimal.
func NormalizeTokenID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X") {
		return HexToDecimal(id)
	}
	n, ok := new(big.Int).SetString(id, 10)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("invalid token id %q", id)
	}
	return n.String(), nil
}

// ParseMintLog decodes a Mint event log. Topics: [sig, to, tokenId, fid];
// data carries the cast hash in its first 32 bytes.
func ParseMintLog(l Log) (Mint, error) {
	if len(l.Topics) < 4 {
		return Mint{}, fmt.Errorf("mint log has %d topics, want 4", len(l.Topics))
	}
	toTopic := strings.TrimPrefix(l.Topics[1], "0x")
	if len(toTopic) < 40 {
		return Mint{}, fmt.Errorf("mint log has malformed recipient topic %q", l.Topics[1])
	}
	tokenID, err := HexToDecimal(l.Topics[2])
	if err != nil {
		return Mint{}, fmt.Errorf("token id: %w", err)
	}
	fid, err := HexToDecimal(l.Topics[3])
	if err != nil {
		return Mint{}, fmt.Errorf("fid: %w", err)
	}
	block, err := HexToUint64(l.BlockNumber)
	if err != nil {
		return Mint{}, fmt.Errorf("block number: %w", err)
	}
	var logIndex uint64
	if l.LogIndex != "" {
		logIndex, _ = HexToUint64(l.LogIndex)
	}

	castHash := ""
	if len(l.Data) > 2 {
		castHash = l.Data
		if len(castHash) > 66 {
			castHash = castHash[:66]
		}
	}

	return Mint{
		TokenID:         tokenID,
		To:              "0x" + toTopic[len(toTopic)-40:],
		FID:             fid,
		CastHash:        castHash,
		BlockNumber:     block,
		LogIndex:        logIndex,
		TransactionHash: l.TransactionHash,
	}, nil
}
