package tui

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bscwallet/pkg/config"
	"bscwallet/pkg/errs"
	"bscwallet/pkg/models"
	"bscwallet/pkg/rpc"
	"bscwallet/pkg/supply"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddr = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

func TestAppendLog(t *testing.T) {
	var lines []string
	for i := 0; i < maxLogLines+5; i++ {
		lines = appendLog(lines, "line")
	}
	assert.Len(t, lines, maxLogLines)
	assert.Equal(t, []string{"a", "b"}, tail([]string{"x", "a", "b"}, 2))
	assert.Equal(t, []string{"a"}, tail([]string{"a"}, 3))
}

func TestBalanceRowsAndSeries(t *testing.T) {
	report := models.BalanceReport{
		Snapshots: []models.WalletBalanceSnapshot{
			{Address: "0xA", Native: big.NewFloat(1.5), TokenA: big.NewFloat(10), TokenB: big.NewFloat(2000)},
			{Address: "0xB", Err: errors.New("rpc down")},
			{Address: "0xC", Native: big.NewFloat(0.25), TokenA: big.NewFloat(0), TokenB: big.NewFloat(0)},
		},
	}

	rows := balanceRows(report, 2)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1", "0xA", "1.50", "10.00", "2,000.00", ""}, rows[0])
	assert.Equal(t, []string{"2", "0xB", "-", "-", "-", "rpc down"}, rows[1])

	assert.Equal(t, []float64{1.5, 0.25}, nativeSeries(report))
}

func TestRequiredTotal(t *testing.T) {
	assert.Equal(t, "0.03", requiredTotal("0.01", 3))
	assert.Equal(t, "0", requiredTotal("0.5", 0))
	assert.Equal(t, "", requiredTotal("abc", 3))
}

func TestFailedLines(t *testing.T) {
	s := models.DistributionSummary{Results: []models.TransferOutcome{
		{Recipient: models.RecipientRecord{No: "1", Address: "0xA"}, Result: models.Success{TxHash: "0x1"}},
		{Recipient: models.RecipientRecord{No: "2", Address: "0xB"}, Result: models.Failure{Reason: "nonce too low"}},
	}}
	assert.Equal(t, []string{"#2 0xB: nonce too low"}, failedLines(s))
}

func TestWriteSummaryFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := models.DistributionSummary{Results: []models.TransferOutcome{
		{Recipient: models.RecipientRecord{No: "1", Address: "0xA"}, Amount: "0.1", Result: models.Success{TxHash: "0x1"}},
	}}
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	path, err := writeSummaryFile(dir, s, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "supply_2024_3_9_14_5_7.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1,0xA,success,0x1,0.1,")
}

func TestExplorerLink(t *testing.T) {
	assert.Equal(t, "https://bscscan.com/address/0xA", explorerLink("https://bscscan.com/", "address", "0xA"))
	assert.Empty(t, explorerLink("", "tx", "0x1"))
}

func writeRecipients(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipients.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCheckSupplyForm(t *testing.T) {
	d := supply.NewDistributor(rpc.NewClient(config.Default().Chain))
	good := writeRecipients(t, "1,0x00000000000000000000000000000000000000aa\n2,bad\n")
	empty := writeRecipients(t, "only-one-column\n")

	tests := []struct {
		name string
		form supplyForm
		want error
	}{
		{"bad address", supplyForm{Address: "0x12", Key: testKey, Amount: "1", File: good}, errs.ErrInvalidCredential},
		{"bad key", supplyForm{Address: testAddr, Key: "zz", Amount: "1", File: good}, errs.ErrInvalidCredential},
		{"mismatch", supplyForm{Address: "0x00000000000000000000000000000000000000aa", Key: testKey, Amount: "1", File: good}, errs.ErrValidationMismatch},
		{"zero amount", supplyForm{Address: testAddr, Key: testKey, Amount: "0", File: good}, errs.ErrInvalidAmount},
		{"no file", supplyForm{Address: testAddr, Key: testKey, Amount: "1"}, errs.ErrIO},
		{"missing file", supplyForm{Address: testAddr, Key: testKey, Amount: "1", File: filepath.Join(t.TempDir(), "nope.csv")}, errs.ErrIO},
		{"empty file", supplyForm{Address: testAddr, Key: testKey, Amount: "1", File: empty}, errs.ErrIO},
		{"not connected", supplyForm{Address: strings.ToLower(testAddr), Key: testKey, Amount: "1", File: good}, errs.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := checkSupplyForm(context.Background(), d, tt.form)
			assert.ErrorIs(t, res.err, tt.want)
		})
	}
}
