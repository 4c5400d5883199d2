package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"bscwallet/pkg/errs"
	"bscwallet/pkg/models"
	"bscwallet/pkg/supply"
	"bscwallet/pkg/utils"
	"bscwallet/pkg/validate"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newSupplyCmd() *cobra.Command {
	var (
		address     string
		amount      string
		file        string
		delay       time.Duration
		yes         bool
		summaryPath string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "supply",
		Short: "Send a fixed native amount to every wallet in a CSV file",
		Long: `Distributes --amount of the native coin from the funding wallet to each recipient in --file,
one transfer at a time. The funding key is read from MAIN_WALLET_PRIVATE_KEY or prompted for.
Exits with status 2 when any transfer failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if address == "" {
				address = cfg.Supply.FundingAddress
			}
			if amount == "" {
				amount = cfg.Supply.TokenAmount
			}
			if file == "" {
				file = cfg.Supply.RecipientsFile
			}

			var err error
			if address == "" {
				if address, err = promptLine("Funding address", validateAddressInput); err != nil {
					return err
				}
			}
			if !validate.IsValidAddress(address) {
				return fmt.Errorf("%w: funding address %q", errs.ErrInvalidCredential, address)
			}
			key := cfg.Supply.FundingPrivateKey
			if key == "" {
				if key, err = promptSecret("Funding private key"); err != nil {
					return err
				}
			}
			if !validate.IsValidPrivateKey(key) {
				return fmt.Errorf("%w: private key", errs.ErrInvalidCredential)
			}
			if _, err := supply.ToWei(amount); err != nil {
				return err
			}

			recipients, err := supply.LoadRecipients(file)
			if err != nil {
				return err
			}
			if len(recipients) == 0 {
				return fmt.Errorf("%w: %s has no recipients", errs.ErrIO, file)
			}

			ctx, cancel := signalContext()
			defer cancel()
			opts := defaultAppOptions()
			opts.supplyDelay = delay
			a := newApp(ctx, cfg, opts)
			defer a.close()

			if !a.dist.ValidateFundingAccount(address, key) {
				return fmt.Errorf("%w: the private key does not belong to %s", errs.ErrValidationMismatch, address)
			}
			if err := a.connect(ctx); err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			bal, err := a.dist.FundingBalance(ctx, address)
			if err != nil {
				return err
			}
			symbol := cfg.Chain.Symbol
			fmt.Fprintf(stderr, "Funding wallet %s holds %s %s\n", address, utils.FormatBigFloat(bal, 6), symbol)
			if bad := supply.InvalidRecipients(recipients); len(bad) > 0 {
				warnColor.Fprintf(stderr, "%d recipients have invalid addresses and will be reported as failed\n", len(bad))
			}

			if !yes {
				label := fmt.Sprintf("Send %s %s to each of %d recipients", amount, symbol, len(recipients))
				if err := confirm(label); err != nil {
					return err
				}
			}

			summary, runErr := a.dist.Distribute(ctx, key, recipients, amount, func(msg string) {
				dimColor.Fprintln(stderr, msg)
			})
			if errors.Is(runErr, errs.ErrInvalidCredential) || errors.Is(runErr, errs.ErrInvalidAmount) || errors.Is(runErr, errs.ErrNetwork) {
				return runErr
			}

			if summaryPath != "" {
				if err := writeSummary(summaryPath, summary); err != nil {
					return err
				}
				okColor.Fprintf(stderr, "Summary written to %s\n", summaryPath)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
			} else {
				printSummary(cmd.OutOrStdout(), summary, symbol)
			}

			if runErr != nil {
				return runErr
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%w: %d of %d transfers failed", errs.ErrTransferFailure, summary.Failed, summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Funding wallet address (default MAIN_WALLET_ADDRESS)")
	cmd.Flags().StringVar(&amount, "amount", "", "Native amount per recipient (default TOKEN_AMOUNT)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Recipients CSV: no,address (default WALLETS_FILE)")
	cmd.Flags().DurationVar(&delay, "delay", supply.DefaultDelay, "Pause between transfers")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().StringVar(&summaryPath, "summary", "", "Also write the per-recipient results to this CSV file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the summary as JSON")
	return cmd
}

func printSummary(w io.Writer, s models.DistributionSummary, symbol string) {
	fmt.Fprintln(w)
	boldColor.Fprintln(w, "Distribution summary")
	fmt.Fprintf(w, "  Total:      %d\n", s.Total)
	okColor.Fprintf(w, "  Successful: %d\n", s.Succeeded)
	if s.Failed > 0 {
		errColor.Fprintf(w, "  Failed:     %d\n", s.Failed)
	} else {
		fmt.Fprintf(w, "  Failed:     0\n")
	}
	fmt.Fprintf(w, "  Sent:       %s %s\n", s.TotalAmount, symbol)
	if processed := len(s.Results); processed < s.Total {
		warnColor.Fprintf(w, "  Stopped after %d of %d recipients\n", processed, s.Total)
	}

	if failed := s.FailedResults(); len(failed) > 0 {
		fmt.Fprintln(w)
		errColor.Fprintln(w, "Failed recipients:")
		for _, r := range failed {
			fmt.Fprintf(w, "  #%s %s: %s\n", r.Recipient.No, r.Recipient.Address, r.Error())
		}
	}
}

func writeSummary(path string, s models.DistributionSummary) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err)
	}
	if err := supply.WriteSummaryCSV(f, s); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.ErrIO, err)
	}
	return nil
}

// --- prompts ---

func requireTerminal(what string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("stdin is not a terminal: cannot prompt for %s", what)
	}
	return nil
}

func handlePromptError(err error, what string) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
		return fmt.Errorf("cancelled")
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func validateAddressInput(s string) error {
	if !validate.IsValidAddress(strings.TrimSpace(s)) {
		return errors.New("not a 0x-prefixed 40 hex character address")
	}
	return nil
}

func promptLine(label string, check promptui.ValidateFunc) (string, error) {
	if err := requireTerminal(strings.ToLower(label)); err != nil {
		return "", err
	}
	p := promptui.Prompt{Label: label, Validate: check}
	v, err := p.Run()
	if err != nil {
		return "", handlePromptError(err, strings.ToLower(label))
	}
	return strings.TrimSpace(v), nil
}

func promptSecret(label string) (string, error) {
	if err := requireTerminal(strings.ToLower(label)); err != nil {
		return "", err
	}
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(s string) error {
			if !validate.IsValidPrivateKey(s) {
				return errors.New("must be 64 hex characters")
			}
			return nil
		},
	}
	v, err := p.Run()
	if err != nil {
		return "", handlePromptError(err, strings.ToLower(label))
	}
	return strings.TrimSpace(v), nil
}

func confirm(label string) error {
	if err := requireTerminal("confirmation (use --yes)"); err != nil {
		return err
	}
	p := promptui.Prompt{Label: label, IsConfirm: true}
	if _, err := p.Run(); err != nil {
		return handlePromptError(err, "confirmation")
	}
	return nil
}
