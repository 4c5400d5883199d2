package rpc

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"bscwallet/pkg/config"
	"bscwallet/pkg/errs"
	"bscwallet/pkg/logger"
	"bscwallet/pkg/validate"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var DialTimeout = 15 * time.Second

// Account is a funding account resolved from a private key.
type Account struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
}

// TransferRequest describes one native-coin transfer before signing.
type TransferRequest struct {
	To       common.Address
	Value    *big.Int
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	ChainID  *big.Int
}

// Receipt is the part of a transaction receipt callers care about.
type Receipt struct {
	Status      uint64
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// Client is the single entry point to the chain. The configuration is fixed at
// construction; only the connection handle changes.
type Client struct {
	cfg  config.ChainConfig
	poll time.Duration

	mu      sync.RWMutex
	eth     *ethclient.Client
	url     string
	chainID *big.Int
}

func NewClient(cfg config.ChainConfig) *Client {
	poll := time.Duration(cfg.ReceiptPollMS) * time.Millisecond
	if poll <= 0 {
		poll = time.Second
	}
	return &Client{cfg: cfg, poll: poll}
}

// Config returns the chain configuration the client was built with.
func (c *Client) Config() config.ChainConfig {
	return c.cfg
}

// Connect dials each configured RPC URL in order and keeps the first one that answers
// with the expected chain id.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for _, url := range c.cfg.RPCURLs {
		dctx, cancel := context.WithTimeout(ctx, DialTimeout)
		eth, chainID, err := dial(dctx, url)
		cancel()
		if err != nil {
			logger.WarnCF("rpc", "RPC endpoint unavailable", map[string]any{"url": url, "error": err.Error()})
			lastErr = err
			continue
		}
		if c.cfg.ChainID != 0 && chainID.Int64() != c.cfg.ChainID {
			eth.Close()
			lastErr = fmt.Errorf("chain id mismatch on %s: expected %d, got %s", url, c.cfg.ChainID, chainID)
			logger.WarnCF("rpc", "Chain id mismatch", map[string]any{"url": url, "expected": c.cfg.ChainID, "got": chainID.String()})
			continue
		}

		c.mu.Lock()
		if c.eth != nil {
			c.eth.Close()
		}
		c.eth, c.url, c.chainID = eth, url, chainID
		c.mu.Unlock()

		logger.InfoCF("rpc", "Connected", map[string]any{"url": url, "chain_id": chainID.String()})
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("no RPC URLs configured")
	}
	return errs.Wrap(errs.ErrNetwork, lastErr)
}

func dial(ctx context.Context, url string) (*ethclient.Client, *big.Int, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return eth, chainID, nil
}

// Connected reports whether Connect has succeeded and Close has not been called since.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.eth != nil
}

// URL returns the endpoint in use, or "" when disconnected.
func (c *Client) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
		c.url = ""
	}
}

func (c *Client) conn() (*ethclient.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.eth == nil {
		return nil, errs.Wrap(errs.ErrNetwork, errs.ErrNotConnected)
	}
	return c.eth, nil
}

// NativeBalance returns the balance of addr in whole coins.
func (c *Client) NativeBalance(ctx context.Context, addr common.Address) (*big.Float, error) {
	eth, err := c.conn()
	if err != nil {
		return nil, err
	}
	wei, err := eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrNetwork, err)
	}
	return scale(wei, 18), nil
}

// NativeBalanceWei returns the balance of addr in wei.
func (c *Client) NativeBalanceWei(ctx context.Context, addr common.Address) (*big.Int, error) {
	eth, err := c.conn()
	if err != nil {
		return nil, err
	}
	wei, err := eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrNetwork, err)
	}
	return wei, nil
}

// AccountFromKey derives the account for a hex private key.
func (c *Client) AccountFromKey(hexKey string) (Account, error) {
	key, err := validate.ParsePrivateKey(hexKey)
	if err != nil {
		return Account{}, err
	}
	return Account{Address: crypto.PubkeyToAddress(key.PublicKey), Key: key}, nil
}

// CurrentNonce returns the confirmed transaction count of addr.
func (c *Client) CurrentNonce(ctx context.Context, addr common.Address) (uint64, error) {
	eth, err := c.conn()
	if err != nil {
		return 0, err
	}
	nonce, err := eth.NonceAt(ctx, addr, nil)
	if err != nil {
		return 0, errs.Wrap(errs.ErrNetwork, fmt.Errorf("failed to get nonce: %w", err))
	}
	return nonce, nil
}

func (c *Client) CurrentGasPrice(ctx context.Context) (*big.Int, error) {
	eth, err := c.conn()
	if err != nil {
		return nil, err
	}
	price, err := eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrNetwork, fmt.Errorf("failed to get gas price: %w", err))
	}
	return price, nil
}

// ChainID returns the chain id cached at connect time.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	eth, err := c.conn()
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	cached := c.chainID
	c.mu.RUnlock()
	if cached != nil {
		return new(big.Int).Set(cached), nil
	}
	id, err := eth.ChainID(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.ErrNetwork, err)
	}
	return id, nil
}

// SendSigned signs req as a legacy transaction and broadcasts it.
func (c *Client) SendSigned(ctx context.Context, req TransferRequest, key *ecdsa.PrivateKey) (common.Hash, error) {
	eth, err := c.conn()
	if err != nil {
		return common.Hash{}, err
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		To:       &req.To,
		Value:    req.Value,
		Gas:      req.Gas,
		GasPrice: req.GasPrice,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(req.ChainID), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, errs.Wrap(errs.ErrNetwork, fmt.Errorf("failed to send transaction: %w", err))
	}
	logger.DebugCF("rpc", "Transaction broadcast", map[string]any{
		"hash":  signed.Hash().Hex(),
		"to":    req.To.Hex(),
		"nonce": req.Nonce,
	})
	return signed.Hash(), nil
}

// WaitForReceipt polls until the transaction is included. It only gives up when ctx ends
// or the node returns something other than "not found".
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	eth, err := c.conn()
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		receipt, err := eth.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			r := &Receipt{Status: receipt.Status, TxHash: receipt.TxHash, GasUsed: receipt.GasUsed}
			if receipt.BlockNumber != nil {
				r.BlockNumber = receipt.BlockNumber.Uint64()
			}
			return r, nil
		case !errors.Is(err, ethereum.NotFound):
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errs.Wrap(errs.ErrNetwork, fmt.Errorf("failed to get receipt: %w", err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func scale(v *big.Int, decimals int) *big.Float {
	f := new(big.Float).SetPrec(256).SetInt(v)
	if decimals <= 0 {
		return f
	}
	divisor := new(big.Float).SetPrec(256).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	return f.Quo(f, divisor)
}
