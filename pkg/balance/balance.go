package balance

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"bscwallet/pkg/config"
	"bscwallet/pkg/errs"
	"bscwallet/pkg/logger"
	"bscwallet/pkg/models"
	"bscwallet/pkg/utils"
	"bscwallet/pkg/validate"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// ChainClient is the read-only part of the chain client used for balance checks.
type ChainClient interface {
	Connected() bool
	NativeBalance(ctx context.Context, addr common.Address) (*big.Float, error)
	TokenBalance(ctx context.Context, addr, contract common.Address, decimals int) (*big.Float, error)
}

// symbolReader is implemented by clients that can ask a token contract for its symbol.
type symbolReader interface {
	TokenSymbol(ctx context.Context, contract common.Address) (string, error)
}

type Option func(*Reader)

// WithRateLimit paces chain reads to rps requests per second. Zero disables pacing.
func WithRateLimit(rps float64) Option {
	return func(r *Reader) {
		if rps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// Reader fetches the native balance and the two configured token balances of wallets.
type Reader struct {
	client  ChainClient
	chain   config.ChainConfig
	limiter *rate.Limiter
	now     func() time.Time
}

func NewReader(client ChainClient, chain config.ChainConfig, opts ...Option) *Reader {
	r := &Reader{client: client, chain: chain, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Reader) token(i int) config.TokenConfig {
	if i < len(r.chain.Tokens) {
		return r.chain.Tokens[i]
	}
	return config.TokenConfig{}
}

// tokenLabel is the configured symbol of token i, or the one the contract reports when
// none is configured.
func (r *Reader) tokenLabel(ctx context.Context, i int) string {
	t := r.token(i)
	if t.Symbol != "" || !common.IsHexAddress(t.Address) {
		return t.Symbol
	}
	sr, ok := r.client.(symbolReader)
	if !ok {
		return t.Symbol
	}
	sym, err := sr.TokenSymbol(ctx, common.HexToAddress(t.Address))
	if err != nil {
		logger.DebugCF("balance", "Token symbol lookup failed", map[string]any{"token": t.Address, "error": err.Error()})
		return t.Symbol
	}
	return sym
}

// Check reads every valid address in order. Invalid strings are listed in the report and
// never queried. A read failure ends that wallet's reads: the snapshot carries the error
// and the wallet is left out of the totals. Cancellation stops between wallets and returns
// what was read so far.
func (r *Reader) Check(ctx context.Context, addresses []string, progress func(string)) (models.BalanceReport, error) {
	if progress == nil {
		progress = func(string) {}
	}
	report := models.BalanceReport{
		Native: r.chain.Symbol,
		TokenA: r.token(0).Symbol,
		TokenB: r.token(1).Symbol,
		Totals: models.BalanceTotals{
			Native: new(big.Float),
			TokenA: new(big.Float),
			TokenB: new(big.Float),
		},
	}

	if !r.client.Connected() {
		return report, errs.Wrap(errs.ErrNetwork, errs.ErrNotConnected)
	}
	report.TokenA = r.tokenLabel(ctx, 0)
	report.TokenB = r.tokenLabel(ctx, 1)

	var valid []common.Address
	for _, raw := range addresses {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		addr, err := validate.Address(s)
		if err != nil {
			report.Invalid = append(report.Invalid, s)
			progress(fmt.Sprintf("Invalid address skipped: %s", s))
			continue
		}
		valid = append(valid, addr)
	}

	for i, addr := range valid {
		if err := ctx.Err(); err != nil {
			report.CheckedAt = r.now()
			return report, err
		}
		progress(fmt.Sprintf("Checking wallet %d/%d: %s", i+1, len(valid), addr.Hex()))

		snap := r.readWallet(ctx, addr)
		report.Snapshots = append(report.Snapshots, snap)
		report.Checked++
		if snap.Err != nil {
			report.Failed++
			logger.WarnCF("balance", "Balance read failed", map[string]any{"address": addr.Hex(), "error": snap.Err.Error()})
			progress(fmt.Sprintf("Error checking wallet %s: %v", addr.Hex(), snap.Err))
			continue
		}
		report.Totals.Native = utils.SumBigFloat(report.Totals.Native, snap.Native)
		report.Totals.TokenA = utils.SumBigFloat(report.Totals.TokenA, snap.TokenA)
		report.Totals.TokenB = utils.SumBigFloat(report.Totals.TokenB, snap.TokenB)
	}

	report.CheckedAt = r.now()
	logger.InfoCF("balance", "Balance check finished", map[string]any{
		"checked": report.Checked,
		"failed":  report.Failed,
		"invalid": len(report.Invalid),
	})
	return report, nil
}

// readWallet performs the native, token A and token B reads in that order and stops at
// the first failure.
func (r *Reader) readWallet(ctx context.Context, addr common.Address) models.WalletBalanceSnapshot {
	snap := models.WalletBalanceSnapshot{Address: addr.Hex()}

	if err := r.wait(ctx); err != nil {
		snap.Err = err
		return snap
	}
	native, err := r.client.NativeBalance(ctx, addr)
	if err != nil {
		snap.Err = err
		return snap
	}

	tokens := make([]*big.Float, 2)
	for i := range tokens {
		tok := r.token(i)
		if err := r.wait(ctx); err != nil {
			snap.Err = err
			return snap
		}
		bal, err := r.client.TokenBalance(ctx, addr, common.HexToAddress(tok.Address), tok.Decimals)
		if err != nil {
			snap.Err = fmt.Errorf("%s: %w", tok.Symbol, err)
			return snap
		}
		tokens[i] = bal
	}

	snap.Native, snap.TokenA, snap.TokenB = native, tokens[0], tokens[1]
	return snap
}

func (r *Reader) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// ReadAddressesCSV returns column 2 of every row with at least two columns.
func ReadAddressesCSV(rd io.Reader) ([]string, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errs.Wrap(errs.ErrIO, err)
		}
		if len(row) >= 2 {
			out = append(out, strings.TrimSpace(row[1]))
		}
	}
}

// ParseAddressList splits free text (one address per line, commas also accepted).
func ParseAddressList(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ' ' || r == '\t'
	})
	return fields
}
