package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrNotConnected is returned when the RPC endpoint stops answering.
var ErrNotConnected = errors.New("chain client not connected")

// Client wraps an ethclient with the handful of calls the pipeline needs.
type Client struct {
	rpc *ethclient.Client
}

func NewClient(rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url not set")
	}

	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	return &Client{rpc: rpc}, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

// IsConnected probes the endpoint with a cheap chain id call.
func (c *Client) IsConnected(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.rpc.ChainID(ctx)
	return err == nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.rpc.ChainID(ctx)
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	return c.rpc.SuggestGasPrice(ctx)
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.rpc.EstimateGas(ctx, msg)
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNum *big.Int) ([]byte, error) {
	return c.rpc.CallContract(ctx, msg, blockNum)
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.rpc.BalanceAt(ctx, account, nil)
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.rpc.PendingNonceAt(ctx, account)
}

// LatestBlockTimestamp returns the timestamp of the current head block.
func (c *Client) LatestBlockTimestamp(ctx context.Context) (uint64, error) {
	header, err := c.rpc.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch head header: %w", err)
	}
	return header.Time, nil
}

func (c *Client) SendSigned(ctx context.Context, tx *types.Transaction) error {
	return c.rpc.SendTransaction(ctx, tx)
}

// WaitMined polls for the receipt of tx until ctx expires.
func (c *Client) WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := c.rpc.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
