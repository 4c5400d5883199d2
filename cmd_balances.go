package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"bscwallet/pkg/balance"
	"bscwallet/pkg/errs"
	"bscwallet/pkg/models"
	"bscwallet/pkg/utils"

	"github.com/spf13/cobra"
)

func newBalancesCmd() *cobra.Command {
	var (
		file       string
		jsonOutput bool
		decimals   int
	)

	cmd := &cobra.Command{
		Use:   "balances [address...]",
		Short: "Show native and token balances for a list of wallets",
		Long: `Reads the native balance and both configured token balances of every address.
Addresses come from the arguments, else --file (CSV, address in column 2), else the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs := args
			if len(addrs) == 0 && file != "" {
				f, err := os.Open(file)
				if err != nil {
					return errs.Wrap(errs.ErrIO, err)
				}
				addrs, err = balance.ReadAddressesCSV(f)
				_ = f.Close()
				if err != nil {
					return err
				}
			}
			if len(addrs) == 0 {
				addrs = cfg.Balance.Addresses
			}
			if len(addrs) == 0 {
				return fmt.Errorf("no addresses given: pass them as arguments, use --file, or set balance.addresses")
			}

			ctx, cancel := signalContext()
			defer cancel()
			a := newApp(ctx, cfg, defaultAppOptions())
			defer a.close()
			if err := a.connect(ctx); err != nil {
				return err
			}

			progress := func(msg string) {
				if !jsonOutput {
					dimColor.Fprintln(cmd.ErrOrStderr(), msg)
				}
			}
			report, err := a.reader.Check(ctx, addrs, progress)
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(report); encErr != nil {
					return encErr
				}
				return err
			}
			printBalanceReport(cmd.OutOrStdout(), report, decimals)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV file with addresses in the second column")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	cmd.Flags().IntVar(&decimals, "decimals", 4, "Decimal places to display")
	return cmd
}

func printBalanceReport(w io.Writer, r models.BalanceReport, decimals int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tADDRESS\t%s\t%s\t%s\n", r.Native, r.TokenA, r.TokenB)
	for i, s := range r.Snapshots {
		if s.Err != nil {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, s.Address, errColor.Sprintf("error: %v", s.Err))
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, s.Address,
			utils.FormatBigFloat(s.Native, decimals),
			utils.FormatBigFloat(s.TokenA, decimals),
			utils.FormatBigFloat(s.TokenB, decimals),
		)
	}
	_ = tw.Flush()

	for _, bad := range r.Invalid {
		warnColor.Fprintf(w, "Invalid address skipped: %s\n", bad)
	}

	fmt.Fprintln(w)
	boldColor.Fprintf(w, "Totals (%d wallets read, %d failed)\n", r.Checked-r.Failed, r.Failed)
	fmt.Fprintf(w, "  %-6s %s\n", r.Native, utils.FormatBigFloat(r.Totals.Native, decimals))
	fmt.Fprintf(w, "  %-6s %s\n", r.TokenA, utils.FormatBigFloat(r.Totals.TokenA, decimals))
	fmt.Fprintf(w, "  %-6s %s\n", r.TokenB, utils.FormatBigFloat(r.Totals.TokenB, decimals))
}
