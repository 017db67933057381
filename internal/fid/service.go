package fid

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"fc_explorer/core-go/internal/chain"
	"fc_explorer/core-go/internal/metrics"
)

// Ledger stores extraction outcomes keyed by contract and token id.
type Ledger interface {
	LookupFID(ctx context.Context, contract, tokenID string) (Result, bool, error)
	RecordFID(ctx context.Context, contract, tokenID, txHash string, r Result) error
}

// Service resolves account ids, consulting the ledger before the heuristics.
type Service struct {
	log       zerolog.Logger
	extractor *Extractor
	ledger    Ledger
	metrics   *metrics.Metrics
}

// NewService builds a Service. ledger may be nil.
func NewService(log zerolog.Logger, extractor *Extractor, ledger Ledger, m *metrics.Metrics) *Service {
	return &Service{log: log, extractor: extractor, ledger: ledger, metrics: m}
}

func (s *Service) Resolve(ctx context.Context, tokenID, contract, txHash string) Result {
	tokenID = strings.TrimSpace(tokenID)
	contract = strings.ToLower(strings.TrimSpace(contract))

	if s.ledger != nil {
		r, ok, err := s.ledger.LookupFID(ctx, contract, tokenID)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("token_id", tokenID).Msg("fid ledger lookup failed")
		case ok && r.Success && IsValidID(r.ID):
			s.metrics.ObserveFIDExtraction(MethodLedger, true)
			return r
		}
	}

	r := s.extractor.Extract(ctx, tokenID, contract, txHash)
	s.metrics.ObserveFIDExtraction(r.Method, r.Success)
	s.log.Debug().
		Str("token_id", tokenID).
		Str("method", r.Method).
		Bool("success", r.Success).
		Msg("fid extraction")

	if r.Success && s.ledger != nil {
		if err := s.ledger.RecordFID(ctx, contract, tokenID, txHash, r); err != nil {
			s.log.Warn().Err(err).Str("token_id", tokenID).Msg("fid ledger record failed")
		}
	}
	return r
}

// RecordMintEvent stores an id taken from a mint event. Such entries are
// authoritative and take precedence over heuristic results.
func (s *Service) RecordMintEvent(ctx context.Context, contract string, m chain.Mint) (bool, error) {
	if s.ledger == nil || !IsValidID(m.FID) {
		return false, nil
	}
	contract = strings.ToLower(strings.TrimSpace(contract))
	r := found(m.FID, MethodMintEvent)
	if err := s.ledger.RecordFID(ctx, contract, m.TokenID, m.TransactionHash, r); err != nil {
		return false, fmt.Errorf("record mint %s: %w", m.TokenID, err)
	}
	return true, nil
}
