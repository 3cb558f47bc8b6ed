package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/qlagarde/dex-arb/internal/eth"
)

// gas-unit estimate for a full two-leg arbitrage, used when sizing cost
const ArbGasUnits = 300_000

// QuotePriceFunc returns the current price of the chain's native asset in
// the reference quote currency.
type QuotePriceFunc func(ctx context.Context) (decimal.Decimal, error)

// ChainBackend is the slice of the chain client the engine needs to build,
// broadcast and confirm transactions.
type ChainBackend interface {
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	LatestBlockTimestamp(ctx context.Context) (uint64, error)
	SendSigned(ctx context.Context, tx *types.Transaction) error
	WaitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Engine turns a validated opportunity into exactly one settlement attempt.
// It never retries; retry policy belongs to the orchestrator.
type Engine struct {
	client     ChainBackend
	signer     *eth.Signer
	quotePrice QuotePriceFunc
	log        zerolog.Logger
}

func NewEngine(client ChainBackend, signer *eth.Signer, quotePrice QuotePriceFunc, log zerolog.Logger) *Engine {
	return &Engine{
		client:     client,
		signer:     signer,
		quotePrice: quotePrice,
		log:        log.With().Str("component", "executor").Logger(),
	}
}

func submissionError(format string, args ...any) *ExecutionResult {
	return &ExecutionResult{
		Success:   false,
		ErrorKind: ErrorKindSubmission,
		Detail:    fmt.Sprintf(format, args...),
	}
}

func executionFailed(format string, args ...any) *ExecutionResult {
	return &ExecutionResult{
		Success:   false,
		ErrorKind: ErrorKindExecutionFailed,
		Detail:    fmt.Sprintf(format, args...),
	}
}

// Execute submits the buy-leg swap for opp and blocks until a terminal
// receipt or the opportunity deadline.
func (e *Engine) Execute(ctx context.Context, opp *Opportunity) *ExecutionResult {
	if opp.VenueBuy == opp.VenueSell {
		return submissionError("buy and sell venue are identical: %s", opp.VenueBuy)
	}
	if opp.OptimalAmountIn == nil || opp.OptimalAmountIn.Sign() <= 0 {
		return submissionError("non-positive amount in")
	}
	if !opp.Deadline.IsZero() && time.Now().After(opp.Deadline) {
		return submissionError("opportunity deadline expired")
	}

	venue, ok := eth.VenueByName(opp.VenueBuy)
	if !ok {
		return submissionError("unknown venue: %s", opp.VenueBuy)
	}

	// floor on acceptable output: amountIn plus a minimal positive margin
	minAmountOut := new(big.Int).Mul(opp.OptimalAmountIn, big.NewInt(1001))
	minAmountOut.Div(minAmountOut, big.NewInt(1000))

	// fee-adjusted output the buy leg should produce, from the reserves the
	// opportunity was detected against
	expectedOut := big.NewInt(0)
	if opp.ReservesBuy.ReserveA != nil && opp.ReservesBuy.ReserveB != nil {
		expectedOut = AmountOut(opp.OptimalAmountIn, opp.ReservesBuy.ReserveA, opp.ReservesBuy.ReserveB)
	}

	// router deadline anchored on chain time, not wall clock
	blockTime, err := e.client.LatestBlockTimestamp(ctx)
	if err != nil {
		return submissionError("fetch block timestamp: %v", err)
	}
	deadline := new(big.Int).SetUint64(blockTime + 120)
	path := []common.Address{opp.Pair.TokenA, opp.Pair.TokenB}

	calldata, err := BuildSwapCalldata(opp.OptimalAmountIn, minAmountOut, path, e.signer.Address(), deadline)
	if err != nil {
		return submissionError("build calldata: %v", err)
	}

	from := e.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &venue.Router, Data: calldata}

	gasEstimate, err := e.client.EstimateGas(ctx, msg)
	if err != nil {
		return submissionError("estimate gas: %v", err)
	}
	gasLimit := gasEstimate * 120 / 100 // +20% safety margin

	gasPrice, err := e.client.GasPrice(ctx)
	if err != nil {
		return submissionError("fetch gas price: %v", err)
	}

	nonce, err := e.client.PendingNonceAt(ctx, from)
	if err != nil {
		return submissionError("fetch nonce: %v", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &venue.Router,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	signed, err := e.signer.Sign(tx)
	if err != nil {
		return submissionError("sign: %v", err)
	}

	if err := e.client.SendSigned(ctx, signed); err != nil {
		return submissionError("broadcast: %v", err)
	}

	txHash := signed.Hash()
	e.log.Info().
		Str("tx", txHash.Hex()).
		Str("pair", opp.Pair.Label()).
		Str("venue", venue.Name).
		Str("expected_out", expectedOut.String()).
		Str("min_out", minAmountOut.String()).
		Msg("swap submitted")

	waitCtx := ctx
	if !opp.Deadline.IsZero() {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithDeadline(ctx, opp.Deadline)
		defer cancel()
	}

	receipt, err := e.client.WaitMined(waitCtx, txHash)
	if err != nil {
		// timeout waiting for confirmation is a failure, never success-assumed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return executionFailed("confirmation timeout for %s", txHash.Hex())
		}
		return executionFailed("wait receipt: %v", err)
	}

	gasPriceQuote, err := e.gasPriceInQuote(ctx, gasPrice)
	if err != nil {
		e.log.Warn().Err(err).Msg("gas price conversion unavailable, reporting zero")
		gasPriceQuote = decimal.Zero
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return &ExecutionResult{
			Success:       false,
			TxRef:         txHash.Hex(),
			GasUsed:       receipt.GasUsed,
			GasPriceQuote: gasPriceQuote,
			ErrorKind:     ErrorKindExecutionFailed,
			Detail:        "receipt status 0",
		}
	}

	return &ExecutionResult{
		Success:       true,
		TxRef:         txHash.Hex(),
		GasUsed:       receipt.GasUsed,
		GasPriceQuote: gasPriceQuote,
		// realized profit approximated by the detection-time estimate
		RealizedProfitQuote: opp.ExpectedProfitQuote,
	}
}

// gasPriceInQuote converts a wei-per-gas price into the reference quote
// currency per gas unit.
func (e *Engine) gasPriceInQuote(ctx context.Context, gasPriceWei *big.Int) (decimal.Decimal, error) {
	nativePrice, err := e.quotePrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	weiPrice := decimal.NewFromBigInt(gasPriceWei, -18)
	return weiPrice.Mul(nativePrice), nil
}

// ApproveSpender issues a one-time max allowance for spender on token and
// waits for the receipt. Safe to call when an allowance already exists; not
// safe to race with itself for the same token/spender.
func (e *Engine) ApproveSpender(ctx context.Context, token, spender common.Address) error {
	parsedABI, err := abi.JSON(strings.NewReader(eth.ERC20ABI))
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}

	calldata, err := parsedABI.Pack("approve", spender, math.MaxBig256)
	if err != nil {
		return fmt.Errorf("pack approve: %w", err)
	}

	from := e.signer.Address()
	gasPrice, err := e.client.GasPrice(ctx)
	if err != nil {
		return fmt.Errorf("fetch gas price: %w", err)
	}

	nonce, err := e.client.PendingNonceAt(ctx, from)
	if err != nil {
		return fmt.Errorf("fetch nonce: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Value:    big.NewInt(0),
		Gas:      100_000,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	signed, err := e.signer.Sign(tx)
	if err != nil {
		return fmt.Errorf("sign approve: %w", err)
	}

	if err := e.client.SendSigned(ctx, signed); err != nil {
		return fmt.Errorf("broadcast approve: %w", err)
	}

	receipt, err := e.client.WaitMined(ctx, signed.Hash())
	if err != nil {
		return fmt.Errorf("wait approve receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("approve reverted: %s", signed.Hash().Hex())
	}

	e.log.Info().
		Str("token", token.Hex()).
		Str("spender", spender.Hex()).
		Str("tx", signed.Hash().Hex()).
		Msg("allowance set")

	return nil
}
