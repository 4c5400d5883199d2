package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"bscwallet/pkg/keygen"
	"bscwallet/pkg/validate"

	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	var (
		save     bool
		out      string
		showKeys bool
		showQR   bool
	)

	cmd := &cobra.Command{
		Use:   "generate [N]",
		Short: "Generate N new key pairs",
		Long: `Generates N fresh key pairs numbered 1..N. N defaults to NUMBER_OF_WALLETS.
With --save the list is written as CSV (no,address,private_key) under the output directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strconv.Itoa(cfg.Wallet.Count)
			if len(args) == 1 {
				raw = args[0]
			}
			n, err := validate.PositiveInteger(raw, "number of wallets", cfg.Wallet.MaxWallets)
			if err != nil {
				return err
			}

			gen := keygen.NewGenerator(cfg.Wallet.OutputDir)
			wallets, err := gen.Generate(n, nil)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NO\tADDRESS\tPRIVATE KEY")
			for _, kp := range wallets {
				key := "(hidden, use --show-keys or --save)"
				if showKeys {
					key = kp.PrivateKey
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", kp.No, kp.Address, key)
			}
			_ = tw.Flush()

			if showQR {
				for _, kp := range wallets {
					qr, err := keygen.QRCode(kp.Address)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "\n#%d %s\n%s", kp.No, kp.Address, qr)
				}
			}

			if save || out != "" {
				path, err := gen.SaveCSV(out)
				if err != nil {
					return err
				}
				okColor.Fprintf(w, "Saved %d wallets to %s\n", len(wallets), path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Write the key pairs to a CSV file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "CSV filename (implies --save; relative names go under the output directory)")
	cmd.Flags().BoolVar(&showKeys, "show-keys", false, "Print private keys to stdout")
	cmd.Flags().BoolVar(&showQR, "qr", false, "Print a QR code for every address")
	return cmd
}
