package supply

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"bscwallet/pkg/errs"
	"bscwallet/pkg/logger"
	"bscwallet/pkg/models"
	"bscwallet/pkg/rpc"
	"bscwallet/pkg/validate"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// DefaultDelay is the pause between two transfers.
const DefaultDelay = 2 * time.Second

// FailedStatusReason is recorded when a transfer is included with a non-success status.
const FailedStatusReason = "Transaction failed"

// UnconfirmedReason is recorded for a broadcast transfer whose receipt did not arrive
// within the receipt grace after the run was canceled. The transaction may still be mined.
const UnconfirmedReason = "Canceled before the receipt arrived, transaction may still be mined"

// DefaultReceiptGrace is how long a broadcast transfer is still awaited once the run is
// canceled.
const DefaultReceiptGrace = time.Minute

// TransferClient is the part of the chain client the distributor needs.
type TransferClient interface {
	Connected() bool
	AccountFromKey(hexKey string) (rpc.Account, error)
	NativeBalance(ctx context.Context, addr common.Address) (*big.Float, error)
	CurrentNonce(ctx context.Context, addr common.Address) (uint64, error)
	CurrentGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendSigned(ctx context.Context, req rpc.TransferRequest, key *ecdsa.PrivateKey) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*rpc.Receipt, error)
}

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Distributor)

// WithDelay sets the pause between transfers.
func WithDelay(d time.Duration) Option {
	return func(s *Distributor) { s.delay = d }
}

// WithSleep replaces the function used to pause between transfers.
func WithSleep(fn SleepFunc) Option {
	return func(s *Distributor) { s.sleep = fn }
}

// WithReceiptGrace sets how long a broadcast transfer is still awaited after cancellation.
func WithReceiptGrace(d time.Duration) Option {
	return func(s *Distributor) { s.grace = d }
}

// WithClock replaces the clock used to stamp summaries.
func WithClock(now func() time.Time) Option {
	return func(s *Distributor) { s.now = now }
}

// Distributor sends a fixed native amount from one funding account to a list of
// recipients, one transfer at a time.
type Distributor struct {
	client TransferClient
	delay  time.Duration
	grace  time.Duration
	sleep  SleepFunc
	now    func() time.Time
}

func NewDistributor(client TransferClient, opts ...Option) *Distributor {
	d := &Distributor{
		client: client,
		delay:  DefaultDelay,
		grace:  DefaultReceiptGrace,
		sleep:  sleepCtx,
		now:    time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ValidateFundingAccount reports whether key derives address, ignoring case.
// A malformed key is a non-match.
func (d *Distributor) ValidateFundingAccount(address, key string) bool {
	acct, err := d.client.AccountFromKey(key)
	if err != nil {
		return false
	}
	return strings.EqualFold(acct.Address.Hex(), strings.TrimSpace(address))
}

// FundingBalance returns the native balance of the funding address.
func (d *Distributor) FundingBalance(ctx context.Context, address string) (*big.Float, error) {
	addr, err := validate.Address(address)
	if err != nil {
		return nil, err
	}
	if !d.client.Connected() {
		return nil, errs.Wrap(errs.ErrNetwork, errs.ErrNotConnected)
	}
	return d.client.NativeBalance(ctx, addr)
}

// ToWei converts a positive decimal amount of the native coin to wei.
func ToWei(amount string) (*big.Int, error) {
	dec, err := validate.PositiveNumber(amount, "amount")
	if err != nil {
		return nil, err
	}
	wei := dec.BigInt()
	if wei.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be at least 1 wei", errs.ErrInvalidAmount)
	}
	return wei, nil
}

// Distribute sends amount to every recipient in order. Per-recipient failures are recorded
// in the summary and never stop the run. If ctx is canceled the run stops before the next
// recipient and the partial summary is returned with ctx.Err().
func (d *Distributor) Distribute(ctx context.Context, fundingKey string, recipients []models.RecipientRecord, amount string, progress func(string)) (models.DistributionSummary, error) {
	if progress == nil {
		progress = func(string) {}
	}

	acct, err := d.client.AccountFromKey(fundingKey)
	if err != nil {
		return models.DistributionSummary{}, errs.Wrap(errs.ErrInvalidCredential, err)
	}
	dec, err := validate.PositiveNumber(amount, "amount")
	if err != nil {
		return models.DistributionSummary{}, err
	}
	wei, err := ToWei(amount)
	if err != nil {
		return models.DistributionSummary{}, err
	}

	if !d.client.Connected() {
		return models.DistributionSummary{}, errs.Wrap(errs.ErrNetwork, errs.ErrNotConnected)
	}
	chainID, err := d.client.ChainID(ctx)
	if err != nil {
		return models.DistributionSummary{}, errs.Wrap(errs.ErrNetwork, err)
	}

	summary := models.DistributionSummary{
		Total:              len(recipients),
		AmountPerRecipient: FormatDec(dec),
		StartedAt:          d.now(),
	}
	logger.InfoCF("supply", "Distribution started", map[string]any{
		"from":       acct.Address.Hex(),
		"recipients": len(recipients),
		"amount":     summary.AmountPerRecipient,
		"chain_id":   chainID.String(),
	})

	for i, rec := range recipients {
		if err := ctx.Err(); err != nil {
			d.finish(&summary, dec, wei)
			logger.WarnCF("supply", "Distribution canceled", map[string]any{"processed": len(summary.Results), "total": len(recipients)})
			return summary, err
		}

		progress(fmt.Sprintf("Transferring to wallet %d/%d: %s", i+1, len(recipients), rec.Address))

		result, sent := d.transfer(ctx, acct, rec.Address, wei, chainID)
		if !sent {
			// canceled before anything was broadcast: the recipient was not processed
			d.finish(&summary, dec, wei)
			logger.WarnCF("supply", "Distribution canceled", map[string]any{"processed": len(summary.Results), "total": len(recipients)})
			return summary, ctx.Err()
		}
		outcome := models.TransferOutcome{Recipient: rec, Amount: summary.AmountPerRecipient, Result: result}
		summary.Results = append(summary.Results, outcome)

		fields := map[string]any{"no": rec.No, "to": rec.Address}
		if outcome.Status() == models.StatusSuccess {
			summary.Succeeded++
			fields["hash"] = outcome.TxHash()
			logger.InfoCF("supply", "Transfer confirmed", fields)
			progress(fmt.Sprintf("✓ Transfer successful! TX: %s", outcome.TxHash()))
		} else {
			summary.Failed++
			fields["error"] = outcome.Error()
			logger.WarnCF("supply", "Transfer failed", fields)
			progress(fmt.Sprintf("✗ Transfer to %s failed: %s", rec.Address, outcome.Error()))
		}

		if err := d.sleep(ctx, d.delay); err != nil && i < len(recipients)-1 {
			d.finish(&summary, dec, wei)
			return summary, err
		}
	}

	d.finish(&summary, dec, wei)
	logger.InfoCF("supply", "Distribution finished", map[string]any{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"sent":      summary.TotalAmount,
	})
	return summary, nil
}

// transfer performs one fresh-nonce, fresh-gas-price transfer and waits for its receipt.
// It reports false only when ctx ended before the transfer was broadcast. Once
// broadcast, the transfer is awaited past cancellation for up to the receipt grace.
func (d *Distributor) transfer(ctx context.Context, from rpc.Account, to string, wei, chainID *big.Int) (models.Outcome, bool) {
	dest, err := validate.Address(to)
	if err != nil {
		return models.Failure{Reason: err.Error()}, true
	}
	gasPrice, err := d.client.CurrentGasPrice(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		return models.Failure{Reason: err.Error()}, true
	}
	nonce, err := d.client.CurrentNonce(ctx, from.Address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		return models.Failure{Reason: err.Error()}, true
	}

	hash, err := d.client.SendSigned(context.WithoutCancel(ctx), rpc.TransferRequest{
		To:       dest,
		Value:    new(big.Int).Set(wei),
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      params.TxGas,
		ChainID:  chainID,
	}, from.Key)
	if err != nil {
		return models.Failure{Reason: err.Error()}, true
	}

	receipt, err := d.awaitReceipt(ctx, hash)
	if err != nil {
		if ctx.Err() != nil {
			return models.Failure{Reason: fmt.Sprintf("%s (tx %s)", UnconfirmedReason, hash.Hex())}, true
		}
		return models.Failure{Reason: err.Error()}, true
	}
	if receipt.Status != 1 {
		return models.Failure{Reason: FailedStatusReason}, true
	}
	return models.Success{TxHash: hash.Hex()}, true
}

// awaitReceipt waits for the receipt of hash. Cancellation of ctx does not stop the
// wait at once: it ends the wait after the receipt grace.
func (d *Distributor) awaitReceipt(ctx context.Context, hash common.Hash) (*rpc.Receipt, error) {
	waitCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		logger.WarnCF("supply", "Canceled while awaiting a receipt", map[string]any{"hash": hash.Hex(), "grace": d.grace.String()})
		t := time.NewTimer(d.grace)
		defer t.Stop()
		select {
		case <-t.C:
			cancel()
		case <-waitCtx.Done():
		}
	})
	defer stop()
	return d.client.WaitForReceipt(waitCtx, hash)
}

func (d *Distributor) finish(s *models.DistributionSummary, amount math.LegacyDec, wei *big.Int) {
	s.TotalAmount = FormatDec(amount.MulInt64(int64(s.Succeeded)))
	s.TotalWei = new(big.Int).Mul(wei, big.NewInt(int64(s.Succeeded)))
	s.FinishedAt = d.now()
}

// FormatDec renders d without trailing fractional zeros.
func FormatDec(d math.LegacyDec) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
