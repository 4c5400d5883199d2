package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"bscwallet/pkg/config"
	"bscwallet/pkg/models"
	"bscwallet/pkg/rpc"

	"github.com/spf13/cobra"
)

func newCheckConfigCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Test the configuration against the configured RPC endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			if !jsonOutput {
				fmt.Fprintf(cmd.OutOrStdout(), "Testing configuration at: %s\n", cfgPath)
			}
			report := buildCheckReport(ctx, cfg, cfgPath)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printCheckReport(cmd.OutOrStdout(), report)
			}

			if !report.ValidStructure {
				return fmt.Errorf("configuration has %d problems", len(report.StructureErrors))
			}
			if !anyRPCOK(report) {
				return fmt.Errorf("no RPC endpoint is usable")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output test results as JSON")
	return cmd
}

// buildCheckReport validates c and dials every RPC URL and both tokens.
func buildCheckReport(ctx context.Context, c config.Config, path string) models.CheckReport {
	report := models.CheckReport{
		ConfigPath:    path,
		Chain:         c.Chain.Name,
		ConfigChainID: c.Chain.ChainID,
	}
	report.StructureErrors = c.Validate()
	report.ValidStructure = len(report.StructureErrors) == 0

	var observed int64
	for _, url := range c.Chain.RPCURLs {
		res := models.RPCResult{URL: url}
		lat, err := rpc.FetchRPCLatency(ctx, url)
		if err != nil {
			res.Status = "error"
			res.Error = err.Error()
			report.RPCs = append(report.RPCs, res)
			continue
		}
		res.Status = "ok"
		res.ChainID = lat.ChainID
		res.LatencyMS = lat.Latency.Milliseconds()
		if c.Chain.ChainID != 0 && lat.ChainID != c.Chain.ChainID {
			res.Error = fmt.Sprintf("Mismatch! Expected %d", c.Chain.ChainID)
		}
		if observed == 0 {
			observed = lat.ChainID
		} else if observed != lat.ChainID {
			report.Inconsistent = true
		}
		report.RPCs = append(report.RPCs, res)
	}

	if !anyRPCOK(report) {
		return report
	}
	for _, tok := range c.Chain.Tokens {
		res := models.TokenResult{Address: tok.Address, ConfigSymbol: tok.Symbol}
		meta, err := rpc.FetchTokenMetadata(ctx, c.Chain.RPCURLs, tok.Address)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.ObservedSymbol = meta.Symbol
			res.Decimals = meta.Decimals
			if tok.Symbol != "" && meta.Symbol != "" && !strings.EqualFold(tok.Symbol, meta.Symbol) {
				res.Error = fmt.Sprintf("symbol mismatch: contract reports %s", meta.Symbol)
			}
			if tok.Decimals != 0 && tok.Decimals != meta.Decimals {
				res.Error = fmt.Sprintf("decimals mismatch: contract reports %d", meta.Decimals)
			}
		}
		report.Tokens = append(report.Tokens, res)
	}
	return report
}

func anyRPCOK(r models.CheckReport) bool {
	for _, res := range r.RPCs {
		if res.Status == "ok" && res.Error == "" {
			return true
		}
	}
	return false
}

func printCheckReport(w io.Writer, r models.CheckReport) {
	for _, e := range r.StructureErrors {
		errColor.Fprintf(w, "Error: %s\n", e)
	}
	fmt.Fprintf(w, "Testing Chain: %s (chain id %d)\n", r.Chain, r.ConfigChainID)
	for _, res := range r.RPCs {
		fmt.Fprintf(w, "  RPC: %s ... ", res.URL)
		switch {
		case res.Status != "ok":
			errColor.Fprintf(w, "Failed: %s\n", res.Error)
		case res.Error != "":
			warnColor.Fprintf(w, "OK (ChainID: %d, %dms) - %s\n", res.ChainID, res.LatencyMS, res.Error)
		default:
			okColor.Fprintf(w, "OK (ChainID: %d, %dms) - Verified\n", res.ChainID, res.LatencyMS)
		}
	}
	if r.Inconsistent {
		warnColor.Fprintln(w, "WARNING: RPCs returned conflicting chain ids")
	}
	for _, tok := range r.Tokens {
		fmt.Fprintf(w, "  Token: %s %s ... ", tok.ConfigSymbol, tok.Address)
		if tok.Error != "" {
			errColor.Fprintln(w, tok.Error)
			continue
		}
		okColor.Fprintf(w, "OK (%s, %d decimals)\n", tok.ObservedSymbol, tok.Decimals)
	}
}
