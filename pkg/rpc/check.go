package rpc

import (
	"context"
	"fmt"
	"time"

	"bscwallet/pkg/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

var CheckTimeout = 10 * time.Second

// FetchTokenMetadata asks each RPC in turn for the symbol and decimals of a token,
// returning the first complete answer.
func FetchTokenMetadata(ctx context.Context, rpcURLs []string, tokenAddress string) (models.TokenMetadata, error) {
	contract := common.HexToAddress(tokenAddress)
	lastErr := fmt.Errorf("failed to fetch metadata")

	for _, rpcURL := range rpcURLs {
		cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
		client, err := ethclient.DialContext(cctx, rpcURL)
		if err != nil {
			cancel()
			lastErr = err
			continue
		}

		var symbol string
		if out, err := callERC20(cctx, client, contract, "symbol"); err == nil {
			symbol = decodeSymbol(out)
		}

		out, err := callERC20(cctx, client, contract, "decimals")
		client.Close()
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		decimals, err := decodeDecimals(out)
		if err != nil {
			lastErr = err
			continue
		}
		return models.TokenMetadata{Address: tokenAddress, Symbol: symbol, Decimals: decimals}, nil
	}
	return models.TokenMetadata{Address: tokenAddress, Err: lastErr}, lastErr
}

// FetchRPCLatency measures a round trip to rpcURL and reports the chain id it serves.
func FetchRPCLatency(ctx context.Context, rpcURL string) (models.RPCLatencyData, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	return models.RPCLatencyData{RPCURL: rpcURL, Latency: time.Since(start), ChainID: chainID.Int64()}, nil
}
