package tui

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bscwallet/pkg/errs"
	"bscwallet/pkg/events"
	"bscwallet/pkg/models"
	"bscwallet/pkg/rpc"
	"bscwallet/pkg/supply"
	"bscwallet/pkg/task"
	"bscwallet/pkg/utils"
	"bscwallet/pkg/validate"

	tea "github.com/charmbracelet/bubbletea"
)

// maxLogLines bounds the progress log kept per tab.
const maxLogLines = 200

func appendLog(lines []string, msg string) []string {
	lines = append(lines, msg)
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	return lines
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// balanceRows renders one row per snapshot: no, address, native, token A, token B, error.
func balanceRows(report models.BalanceReport, decimals int) [][]string {
	rows := make([][]string, 0, len(report.Snapshots))
	for i, s := range report.Snapshots {
		row := []string{fmt.Sprintf("%d", i+1), s.Address, "-", "-", "-", ""}
		if s.Err != nil {
			row[5] = s.Err.Error()
		} else {
			row[2] = utils.FormatBigFloat(s.Native, decimals)
			row[3] = utils.FormatBigFloat(s.TokenA, decimals)
			row[4] = utils.FormatBigFloat(s.TokenB, decimals)
		}
		rows = append(rows, row)
	}
	return rows
}

// nativeSeries returns the native balance of every successfully read wallet, in order.
func nativeSeries(report models.BalanceReport) []float64 {
	var out []float64
	for _, s := range report.Snapshots {
		if s.Err == nil && s.Native != nil {
			out = append(out, utils.BigFloatToFloat64(s.Native))
		}
	}
	return out
}

// supplyForm is what the user typed on the supply tab.
type supplyForm struct {
	Address string
	Key     string
	Amount  string
	File    string
}

// requiredTotal is amount times n, or "" when amount does not parse.
func requiredTotal(amount string, n int) string {
	dec, err := validate.PositiveNumber(amount, "amount")
	if err != nil {
		return ""
	}
	return supply.FormatDec(dec.MulInt64(int64(n)))
}

// checkSupplyForm runs every pre-flight check of a distribution without touching the chain
// beyond reading the funding balance.
func checkSupplyForm(ctx context.Context, d *supply.Distributor, f supplyForm) validatedMsg {
	if !validate.IsValidAddress(f.Address) {
		return validatedMsg{err: fmt.Errorf("%w: funding address %q", errs.ErrInvalidCredential, f.Address)}
	}
	if !validate.IsValidPrivateKey(f.Key) {
		return validatedMsg{err: fmt.Errorf("%w: private key", errs.ErrInvalidCredential)}
	}
	if !d.ValidateFundingAccount(f.Address, f.Key) {
		return validatedMsg{err: fmt.Errorf("%w: key does not belong to %s", errs.ErrValidationMismatch, f.Address)}
	}
	if _, err := supply.ToWei(f.Amount); err != nil {
		return validatedMsg{err: err}
	}
	if strings.TrimSpace(f.File) == "" {
		return validatedMsg{err: fmt.Errorf("%w: no recipients file", errs.ErrIO)}
	}
	recs, err := supply.LoadRecipients(f.File)
	if err != nil {
		return validatedMsg{err: err}
	}
	if len(recs) == 0 {
		return validatedMsg{err: fmt.Errorf("%w: %s has no recipients", errs.ErrIO, f.File)}
	}
	bal, err := d.FundingBalance(ctx, f.Address)
	if err != nil {
		return validatedMsg{err: err}
	}
	return validatedMsg{
		balance:    bal,
		recipients: recs,
		invalid:    supply.InvalidRecipients(recs),
	}
}

// failedLines lists every failed recipient with its error.
func failedLines(s models.DistributionSummary) []string {
	var out []string
	for _, r := range s.FailedResults() {
		out = append(out, fmt.Sprintf("#%s %s: %s", r.Recipient.No, r.Recipient.Address, r.Error()))
	}
	return out
}

// writeSummaryFile exports s as CSV under dir and returns the file path.
func writeSummaryFile(dir string, s models.DistributionSummary, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errs.Wrap(errs.ErrIO, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("supply_%d_%d_%d_%d_%d_%d.csv",
		now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second()))
	f, err := os.Create(path)
	if err != nil {
		return "", errs.Wrap(errs.ErrIO, err)
	}
	if err := supply.WriteSummaryCSV(f, s); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", errs.Wrap(errs.ErrIO, err)
	}
	return path, nil
}

func explorerLink(base, kind, id string) string {
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), kind, id)
}

// --- Commands ---

func listenForBus(sub events.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func connectCmd(c *rpc.Client) tea.Cmd {
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		err := c.Connect(context.Background())
		return connectedMsg{url: c.URL(), err: err}
	}
}

func validateCmd(d *supply.Distributor, f supplyForm) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return checkSupplyForm(ctx, d, f)
	}
}

// waitForTask blocks until t ends and reports it as a taskDoneMsg.
func waitForTask(t *task.Task) tea.Cmd {
	return func() tea.Msg {
		result, err := t.Wait()
		return taskDoneMsg{task: t, result: result, err: err}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearStatusMsg{} })
}

func bigOrZero(f *big.Float) *big.Float {
	if f == nil {
		return new(big.Float)
	}
	return f
}
