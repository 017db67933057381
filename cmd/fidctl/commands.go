package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fc_explorer/core-go/internal/chain"
	"fc_explorer/core-go/internal/config"
	"fc_explorer/core-go/internal/fid"
)

type extractFlags struct {
	txHash   string
	contract string
	offline  bool
	trace    bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "fidctl",
		Short:        "Inspect social account id extraction for collectible tokens",
		SilenceUsage: true,
	}
	root.AddCommand(newExtractCmd(), newValidateCmd())
	return root
}

func newExtractCmd() *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "extract <tokenId>",
		Short: "Run the extraction strategies for a token id",
		Long: `Runs the fixed strategy order (bit masks, magnitude patterns, then the
mint receipt scan) and prints the first valid result as JSON.

The receipt scan needs --tx-hash and an indexer API key from the
environment unless --offline is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.txHash, "tx-hash", "", "mint transaction hash")
	cmd.Flags().StringVar(&f.contract, "contract", "", "collectible contract (defaults to CONTRACT_ADDRESS)")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "skip the receipt scan")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "print every strategy outcome")
	return cmd
}

func runExtract(cmd *cobra.Command, raw string, f extractFlags) error {
	tokenID, err := chain.NormalizeTokenID(raw)
	if err != nil {
		return err
	}

	contract := strings.ToLower(strings.TrimSpace(f.contract))
	var src fid.ReceiptSource
	if !f.offline {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if contract == "" {
			contract = cfg.Contract
		}
		if cfg.AlchemyAPIKey != "" {
			src = chain.New(zerolog.Nop(), chain.Options{
				BaseURL:  cfg.AlchemyBaseURL,
				APIKey:   cfg.AlchemyAPIKey,
				Contract: contract,
			}, nil)
		}
	}
	if contract == "" {
		contract = chain.DefaultContract
	}

	out := cmd.OutOrStdout()
	ex := fid.NewExtractor(fid.DefaultStrategies(src))
	if f.trace {
		ex.Trace = func(strategy string, r fid.Result) {
			fmt.Fprintf(out, "%-12s success=%-5t method=%s fid=%s\n", strategy, r.Success, r.Method, r.ID)
		}
	}
	res := ex.Extract(cmd.Context(), tokenID, contract, f.txHash)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		TokenID  string `json:"tokenId"`
		Contract string `json:"contract"`
		fid.Result
	}{TokenID: tokenID, Contract: contract, Result: res})
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <id>",
		Short: "Check that a value is a plausible social account id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !fid.IsValidID(args[0]) {
				return fmt.Errorf("%q is not a valid account id", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}
