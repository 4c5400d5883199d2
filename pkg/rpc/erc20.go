package rpc

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"bscwallet/pkg/errs"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var erc20ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid ERC-20 ABI: %v", err))
	}
	return parsed
}()

func callERC20(ctx context.Context, caller ethereum.ContractCaller, contract common.Address, method string, args ...any) ([]byte, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrNetwork, fmt.Errorf("%s call failed: %w", method, err))
	}
	return out, nil
}

// TokenBalance returns balanceOf(addr) on contract scaled to whole tokens.
// decimals <= 0 means the contract is asked for its decimals first.
func (c *Client) TokenBalance(ctx context.Context, addr, contract common.Address, decimals int) (*big.Float, error) {
	eth, err := c.conn()
	if err != nil {
		return nil, err
	}
	if decimals <= 0 {
		if decimals, err = c.TokenDecimals(ctx, contract); err != nil {
			return nil, err
		}
	}
	out, err := callERC20(ctx, eth, contract, "balanceOf", addr)
	if err != nil {
		return nil, err
	}
	var raw *big.Int
	if err := erc20ABI.UnpackIntoInterface(&raw, "balanceOf", out); err != nil {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	return scale(raw, decimals), nil
}

func (c *Client) TokenDecimals(ctx context.Context, contract common.Address) (int, error) {
	eth, err := c.conn()
	if err != nil {
		return 0, err
	}
	out, err := callERC20(ctx, eth, contract, "decimals")
	if err != nil {
		return 0, err
	}
	return decodeDecimals(out)
}

func (c *Client) TokenSymbol(ctx context.Context, contract common.Address) (string, error) {
	eth, err := c.conn()
	if err != nil {
		return "", err
	}
	out, err := callERC20(ctx, eth, contract, "symbol")
	if err != nil {
		return "", err
	}
	return decodeSymbol(out), nil
}

func decodeDecimals(out []byte) (int, error) {
	if len(out) == 0 {
		return 0, fmt.Errorf("decimals: empty result")
	}
	var d uint8
	if err := erc20ABI.UnpackIntoInterface(&d, "decimals", out); err != nil {
		return 0, fmt.Errorf("decode decimals: %w", err)
	}
	return int(d), nil
}

// decodeSymbol handles both the string ABI encoding and the older bytes32 form.
func decodeSymbol(out []byte) string {
	if len(out) == 32 {
		return string(bytes.TrimRight(out, "\x00"))
	}
	var s string
	if err := erc20ABI.UnpackIntoInterface(&s, "symbol", out); err != nil {
		return ""
	}
	return s
}
