// Package fid infers the social account id behind a collectible token id.
//
// The on-chain token id does not carry the account id in a documented field,
// so extraction runs an ordered list of decoding heuristics and keeps the
// first candidate that passes IsValidID. The heuristics can disagree on the
// same token; the order is fixed and results should be treated as guesses
// unless they came from the Ledger.
package fid

import (
	"context"
	"math/big"
	"strconv"
	"strings"

	"fc_explorer/core-go/internal/chain"
)

const (
	MethodLower64Bits         = "encoded_lower_64_bits"
	MethodLower32Bits         = "encoded_lower_32_bits"
	MethodDirectTokenID       = "direct_tokenid_as_fid"
	MethodLastDigits          = "last_digits_as_fid"
	MethodTxLogData           = "transaction_log_data"
	MethodTxLogCustomEvent    = "transaction_log_custom_event"
	MethodTxLogError          = "transaction_log_error"
	MethodTxLogNoFID          = "transaction_log_no_fid"
	MethodNoTransactionHash   = "no_transaction_hash"
	MethodNoReceipt           = "no_transaction_receipt"
	MethodAllStrategiesFailed = "all_strategies_failed"
	MethodLedger              = "ledger"
	MethodMintEvent           = "mint_event"

	maxValidID     = 10_000_000
	directIDCutoff = 1_000_000
)

// Result is the outcome of one strategy or of a whole extraction.
type Result struct {
	ID      string `json:"fid,omitempty"`
	Success bool   `json:"success"`
	Method  string `json:"method"`
}

func failed(method string) Result { return Result{Method: method} }

func found(id, method string) Result { return Result{ID: id, Success: true, Method: method} }

// IsValidID reports whether s is a base-10 integer in (0, 10_000_000).
func IsValidID(s string) bool {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil && n > 0 && n < maxValidID
}

// Input is what a strategy sees. TokenID is parsed once by the Extractor.
type Input struct {
	TokenID  *big.Int
	Raw      string
	Contract string
	TxHash   string
}

// Strategy is one decoding heuristic.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, in Input) Result
}

// ReceiptSource fetches a mint transaction receipt; nil, nil means unknown.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, hash string) (*chain.Receipt, error)
}

var (
	mask64 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))
	mask32 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 32), big.NewInt(1))
)

func lowBits(mask *big.Int, method string) func(context.Context, Input) Result {
	return func(_ context.Context, in Input) Result {
		v := new(big.Int).And(in.TokenID, mask)
		if v.Sign() == 0 || v.Cmp(in.TokenID) == 0 {
			return failed("encoded_data_failed")
		}
		return found(v.String(), method)
	}
}

// BitMask64 and BitMask32 take the low bits of the token id when they differ
// from the whole id.
var (
	BitMask64 = Strategy{Name: "bitmask_64", Run: lowBits(mask64, MethodLower64Bits)}
	BitMask32 = Strategy{Name: "bitmask_32", Run: lowBits(mask32, MethodLower32Bits)}
)

// DirectTokenID accepts a token id in (0, 1_000_000) as the account id.
var DirectTokenID = Strategy{Name: "direct", Run: func(_ context.Context, in Input) Result {
	if in.TokenID.Sign() > 0 && in.TokenID.Cmp(big.NewInt(directIDCutoff)) < 0 {
		return found(in.TokenID.String(), MethodDirectTokenID)
	}
	return failed("pattern_no_match")
}}

// LastDigits takes the last six decimal digits of a token id above 1_000_000.
var LastDigits = Strategy{Name: "last_digits", Run: func(_ context.Context, in Input) Result {
	cutoff := big.NewInt(directIDCutoff)
	if in.TokenID.Cmp(cutoff) <= 0 {
		return failed("pattern_no_match")
	}
	rem := new(big.Int).Mod(in.TokenID, cutoff)
	if rem.Sign() == 0 {
		return failed("pattern_no_match")
	}
	return found(rem.String(), MethodLastDigits)
}}

// TxLog scans the mint receipt: first the zero-address Transfer of this
// token (leading data word), then the first three data words of any log
// the contract emitted with at least two.
func TxLog(src ReceiptSource) Strategy {
	return Strategy{Name: "tx_log", Run: func(ctx context.Context, in Input) Result {
		if strings.TrimSpace(in.TxHash) == "" {
			return failed(MethodNoTransactionHash)
		}
		if src == nil {
			return failed(MethodTxLogError)
		}
		receipt, err := src.TransactionReceipt(ctx, in.TxHash)
		if err != nil {
			return failed(MethodTxLogError)
		}
		if receipt == nil {
			return failed(MethodNoReceipt)
		}
		return scanReceipt(receipt, in)
	}}
}

func scanReceipt(receipt *chain.Receipt, in Input) Result {
	tokenID := in.TokenID.String()
	for _, l := range receipt.Logs {
		if !strings.EqualFold(l.Address, in.Contract) || len(l.Topics) < 4 {
			continue
		}
		if !strings.EqualFold(l.Topics[0], chain.TransferEventTopic) || !strings.EqualFold(l.Topics[1], chain.ZeroTopic) {
			continue
		}
		if id, err := chain.HexToDecimal(l.Topics[3]); err != nil || id != tokenID {
			continue
		}
		words := dataWords(l.Data)
		if len(words) == 0 {
			continue
		}
		if v := words[0]; v != "0" && len(v) < 10 && IsValidID(v) {
			return found(v, MethodTxLogData)
		}
	}

	for _, l := range receipt.Logs {
		if !strings.EqualFold(l.Address, in.Contract) || len(l.Topics) < 1 {
			continue
		}
		words := dataWords(l.Data)
		if len(words) < 2 {
			continue
		}
		if len(words) > 3 {
			words = words[:3]
		}
		for _, v := range words {
			if v != "0" && len(v) <= 8 && IsValidID(v) {
				return found(v, MethodTxLogCustomEvent)
			}
		}
	}
	return failed(MethodTxLogNoFID)
}

// dataWords splits hex log data into decimal 32-byte words. A trailing
// partial word is parsed as-is.
func dataWords(data string) []string {
	hex := strings.TrimPrefix(data, "0x")
	var out []string
	for len(hex) > 0 {
		n := 64
		if len(hex) < n {
			n = len(hex)
		}
		v, ok := new(big.Int).SetString(hex[:n], 16)
		if !ok {
			return out
		}
		out = append(out, v.String())
		hex = hex[n:]
	}
	return out
}

// DefaultStrategies is the fixed extraction order: bit masking, magnitude
// pattern, then the receipt scan.
func DefaultStrategies(src ReceiptSource) []Strategy {
	return []Strategy{BitMask64, BitMask32, DirectTokenID, LastDigits, TxLog(src)}
}

// Extractor runs strategies in order and returns the first valid candidate.
type Extractor struct {
	strategies []Strategy
	// Trace, if set, sees every strategy outcome including failures.
	Trace func(strategy string, r Result)
}

func NewExtractor(strategies []Strategy) *Extractor {
	return &Extractor{strategies: strategies}
}

func (e *Extractor) Extract(ctx context.Context, tokenID, contract, txHash string) Result {
	raw := strings.TrimSpace(tokenID)
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return failed(MethodAllStrategiesFailed)
	}
	in := Input{TokenID: n, Raw: raw, Contract: contract, TxHash: txHash}
	for _, s := range e.strategies {
		r := s.Run(ctx, in)
		if e.Trace != nil {
			e.Trace(s.Name, r)
		}
		if r.Success && IsValidID(r.ID) {
			return r
		}
	}
	return failed(MethodAllStrategiesFailed)
}
