package fid

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"fc_explorer/core-go/internal/chain"
)

const contract = "0xc011ec7ca575d4f0a2eda595107ab104c7af7a09"

type fakeReceipts struct {
	receiptFn func(hash string) (*chain.Receipt, error)
}

func (f fakeReceipts) TransactionReceipt(_ context.Context, hash string) (*chain.Receipt, error) {
	return f.receiptFn(hash)
}

func word(n uint64) string { return fmt.Sprintf("%064x", n) }

func pow2Plus(bits uint, add int64) string {
	n := new(big.Int).Lsh(big.NewInt(1), bits)
	return n.Add(n, big.NewInt(add)).String()
}

func TestIsValidID(t *testing.T) {
	cases := map[string]bool{
		"0":        false,
		"-5":       false,
		"1":        true,
		"9999999":  true,
		"10000000": false,
		"12.5":     false,
		"abc":      false,
		"":         false,
	}
	for in, want := range cases {
		if got := IsValidID(in); got != want {
			t.Fatalf("IsValidID(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestExtract_StrategyOrder(t *testing.T) {
	e := NewExtractor(DefaultStrategies(nil))
	cases := []struct {
		name    string
		tokenID string
		want    Result
	}{
		{"low 64 bits win over pattern", pow2Plus(64, 42), Result{ID: "42", Success: true, Method: MethodLower64Bits}},
		{"low 32 bits", pow2Plus(32, 7), Result{ID: "7", Success: true, Method: MethodLower32Bits}},
		{"small id used directly", "12345", Result{ID: "12345", Success: true, Method: MethodDirectTokenID}},
		{"masks empty so last digits", pow2Plus(64, 0), Result{ID: "551616", Success: true, Method: MethodLastDigits}},
		{"invalid mask candidate falls through", pow2Plus(64, 20_000_000), Result{ID: "551616", Success: true, Method: MethodLastDigits}},
		{"exactly one million", "1000000", Result{Method: MethodAllStrategiesFailed}},
		{"zero", "0", Result{Method: MethodAllStrategiesFailed}},
		{"not a number", "abc", Result{Method: MethodAllStrategiesFailed}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.Extract(context.Background(), tc.tokenID, contract, "")
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("result mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract_TransactionLogData(t *testing.T) {
	src := fakeReceipts{receiptFn: func(hash string) (*chain.Receipt, error) {
		if hash != "0xmint" {
			t.Errorf("unexpected hash %s", hash)
		}
		return &chain.Receipt{Logs: []chain.Log{
			{
				Address: "0xother",
				Topics:  []string{chain.TransferEventTopic, chain.ZeroTopic, "0x" + word(1), "0x" + word(1_000_000)},
				Data:    "0x" + word(5),
			},
			{
				Address: "0xC011Ec7Ca575D4f0a2eDA595107aB104c7Af7A09",
				Topics:  []string{chain.TransferEventTopic, chain.ZeroTopic, "0x" + word(1), "0x" + word(1_000_000)},
				Data:    "0x" + word(777),
			},
		}}, nil
	}}
	e := NewExtractor(DefaultStrategies(src))
	got := e.Extract(context.Background(), "1000000", contract, "0xmint")
	want := Result{ID: "777", Success: true, Method: MethodTxLogData}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_TransactionLogCustomEvent(t *testing.T) {
	src := fakeReceipts{receiptFn: func(string) (*chain.Receipt, error) {
		return &chain.Receipt{Logs: []chain.Log{
			{Address: contract, Topics: []string{"0xabc"}, Data: "0x" + word(9)},
			{Address: contract, Topics: []string{"0xabc"}, Data: "0x" + word(0) + word(123_456_789) + word(4321)},
		}}, nil
	}}
	e := NewExtractor(DefaultStrategies(src))
	got := e.Extract(context.Background(), "1000000", contract, "0xmint")
	want := Result{ID: "4321", Success: true, Method: MethodTxLogCustomEvent}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestExtract_TransactionLogFailuresAreNotErrors(t *testing.T) {
	cases := []struct {
		name   string
		txHash string
		src    ReceiptSource
		method string
	}{
		{"no hash", "", fakeReceipts{}, MethodNoTransactionHash},
		{"receipt error", "0x1", fakeReceipts{receiptFn: func(string) (*chain.Receipt, error) {
			return nil, errors.New("rate limited")
		}}, MethodTxLogError},
		{"unknown receipt", "0x1", fakeReceipts{receiptFn: func(string) (*chain.Receipt, error) {
			return nil, nil
		}}, MethodNoReceipt},
		{"no fid in logs", "0x1", fakeReceipts{receiptFn: func(string) (*chain.Receipt, error) {
			return &chain.Receipt{}, nil
		}}, MethodTxLogNoFID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var traced []string
			e := NewExtractor(DefaultStrategies(tc.src))
			e.Trace = func(_ string, r Result) { traced = append(traced, r.Method) }

			got := e.Extract(context.Background(), "1000000", contract, tc.txHash)
			if got.Success || got.Method != MethodAllStrategiesFailed {
				t.Fatalf("expected all_strategies_failed, got %+v", got)
			}
			if len(traced) != 5 || traced[4] != tc.method {
				t.Fatalf("expected tx-log strategy to report %s, got %v", tc.method, traced)
			}
		})
	}
}

func TestIsValidID_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("valid iff 0 < x < 10_000_000", prop.ForAll(
		func(x int64) bool {
			return IsValidID(strconv.FormatInt(x, 10)) == (x > 0 && x < 10_000_000)
		},
		gen.Int64Range(-20_000_000, 20_000_000),
	))

	properties.Property("successful extractions are always valid", prop.ForAll(
		func(hi, lo uint64) bool {
			n := new(big.Int).Lsh(new(big.Int).SetUint64(hi), 64)
			n.Add(n, new(big.Int).SetUint64(lo))
			r := NewExtractor(DefaultStrategies(nil)).Extract(context.Background(), n.String(), contract, "")
			return !r.Success || IsValidID(r.ID)
		},
		gen.UInt64(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

type fakeLedger struct {
	lookupFn func(contract, tokenID string) (Result, bool, error)
	recorded []Result
}

func (f *fakeLedger) LookupFID(_ context.Context, contract, tokenID string) (Result, bool, error) {
	return f.lookupFn(contract, tokenID)
}

func (f *fakeLedger) RecordFID(_ context.Context, _, _, _ string, r Result) error {
	f.recorded = append(f.recorded, r)
	return nil
}

func TestService_LedgerHitSkipsHeuristics(t *testing.T) {
	ledger := &fakeLedger{lookupFn: func(c, tokenID string) (Result, bool, error) {
		if c != contract || tokenID != "99" {
			t.Errorf("unexpected lookup %s/%s", c, tokenID)
		}
		return Result{ID: "3", Success: true, Method: MethodTxLogData}, true, nil
	}}
	boom := Strategy{Name: "boom", Run: func(context.Context, Input) Result {
		t.Fatalf("heuristics should not run on a ledger hit")
		return Result{}
	}}
	svc := NewService(zerolog.Nop(), NewExtractor([]Strategy{boom}), ledger, nil)

	got := svc.Resolve(context.Background(), " 99 ", "0xC011Ec7Ca575D4f0a2eDA595107aB104c7Af7A09", "")
	if got.ID != "3" || !got.Success {
		t.Fatalf("expected ledger result, got %+v", got)
	}
	if len(ledger.recorded) != 0 {
		t.Fatalf("expected no writes on a ledger hit, got %v", ledger.recorded)
	}
}

func TestService_LedgerErrorFallsBackAndRecords(t *testing.T) {
	ledger := &fakeLedger{lookupFn: func(string, string) (Result, bool, error) {
		return Result{}, false, errors.New("db down")
	}}
	svc := NewService(zerolog.Nop(), NewExtractor(DefaultStrategies(nil)), ledger, nil)

	got := svc.Resolve(context.Background(), "12345", contract, "")
	if got.Method != MethodDirectTokenID || got.ID != "12345" {
		t.Fatalf("unexpected result %+v", got)
	}
	if len(ledger.recorded) != 1 {
		t.Fatalf("expected one recorded result, got %d", len(ledger.recorded))
	}

	failedResult := svc.Resolve(context.Background(), "0", contract, "")
	if failedResult.Success {
		t.Fatalf("expected failure for token 0")
	}
	if len(ledger.recorded) != 1 {
		t.Fatalf("failures must not be recorded")
	}
}

func TestService_RecordMintEvent(t *testing.T) {
	ledger := &fakeLedger{}
	svc := NewService(zerolog.Nop(), NewExtractor(nil), ledger, nil)

	ok, err := svc.RecordMintEvent(context.Background(), contract, chain.Mint{TokenID: "77", FID: "4821"})
	if err != nil || !ok {
		t.Fatalf("RecordMintEvent = %v, %v", ok, err)
	}
	if len(ledger.recorded) != 1 || ledger.recorded[0].Method != MethodMintEvent || ledger.recorded[0].ID != "4821" {
		t.Fatalf("unexpected ledger writes %+v", ledger.recorded)
	}

	ok, err = svc.RecordMintEvent(context.Background(), contract, chain.Mint{TokenID: "78", FID: "0"})
	if err != nil || ok {
		t.Fatalf("an invalid id must be skipped, got %v, %v", ok, err)
	}
	if len(ledger.recorded) != 1 {
		t.Fatalf("expected no write for an invalid id")
	}
}
