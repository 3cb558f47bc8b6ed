package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/qlagarde/dex-arb/internal/stats"
)

var (
	// ErrPairLocked signals a second execution attempt while one is in flight
	// for the same pair.
	ErrPairLocked = errors.New("pair locked: execution already in flight")

	// ErrStaleOpportunity signals that the discrepancy decayed below 90% of
	// its originally observed edge.
	ErrStaleOpportunity = errors.New("opportunity no longer valid")

	// ErrConsumed signals a second consumption of the same opportunity.
	ErrConsumed = errors.New("opportunity already consumed")
)

// stalenessTolerance: accept only if the re-checked discrepancy is at least
// this fraction of the detected one.
var stalenessTolerance = decimal.RequireFromString("0.9")

// Ledger is the slice of the stats ledger the validator consults and writes.
type Ledger interface {
	PreferredTokenCount() int
	IsPreferredToken(addr string) bool
	RecordOpportunityFound() error
	RecordTrade(rec stats.TradeRecord) error
}

// GasPricer supplies the current gas price in wei.
type GasPricer interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// PriceSource re-reads the current spot prices for an opportunity's pair on
// its buy and sell venues. Phase B calls it immediately before submission.
type PriceSource interface {
	CurrentPrices(ctx context.Context, opp *Opportunity) (priceBuy, priceSell decimal.Decimal, err error)
}

// TradeExecutor settles a validated opportunity.
type TradeExecutor interface {
	Execute(ctx context.Context, opp *Opportunity) *ExecutionResult
}

// ValidatorConfig tunes the detection-time filter.
type ValidatorConfig struct {
	// execution window stamped on accepted opportunities
	ExecutionWindow time.Duration
	// fractional bound on acceptable output shortfall
	MaxSlippage float64
	// optional extra gate on the raw discrepancy, zero disables it
	MinProfitPercent decimal.Decimal
}

// Validator gates execution in two phases: a detection-time filter and a
// pre-execution revalidation against price drift.
type Validator struct {
	cfg        ValidatorConfig
	ledger     Ledger
	gas        GasPricer
	quotePrice QuotePriceFunc
	prices     PriceSource
	executor   TradeExecutor
	log        zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func NewValidator(
	cfg ValidatorConfig,
	ledger Ledger,
	gas GasPricer,
	quotePrice QuotePriceFunc,
	prices PriceSource,
	executor TradeExecutor,
	log zerolog.Logger,
) *Validator {
	if cfg.ExecutionWindow <= 0 {
		cfg.ExecutionWindow = 4 * time.Minute
	}
	if cfg.MaxSlippage <= 0 {
		cfg.MaxSlippage = 0.01
	}
	return &Validator{
		cfg:        cfg,
		ledger:     ledger,
		gas:        gas,
		quotePrice: quotePrice,
		prices:     prices,
		executor:   executor,
		log:        log.With().Str("component", "validator").Logger(),
		inFlight:   make(map[string]bool),
	}
}

// Analyze is the detection-time filter. It never returns an error: any
// failure computing inputs is logged and the opportunity dropped, so the
// scan loop always continues. The returned reason is empty on acceptance.
func (v *Validator) Analyze(ctx context.Context, opp *Opportunity) (accepted bool, reason string) {
	if err := v.ledger.RecordOpportunityFound(); err != nil {
		v.log.Warn().Err(err).Msg("ledger write failed at detection")
	}

	if v.ledger.PreferredTokenCount() > 0 {
		if !v.ledger.IsPreferredToken(opp.Pair.TokenA.Hex()) &&
			!v.ledger.IsPreferredToken(opp.Pair.TokenB.Hex()) {
			return false, "neither token in preferred set"
		}
	}

	if !v.cfg.MinProfitPercent.IsZero() && opp.ProfitPercent.LessThan(v.cfg.MinProfitPercent) {
		return false, fmt.Sprintf("discrepancy %s%% below minimum %s%%",
			opp.ProfitPercent.StringFixed(4), v.cfg.MinProfitPercent.StringFixed(4))
	}

	gasCost, err := v.gasCostInQuote(ctx)
	if err != nil {
		v.log.Warn().Err(err).Str("pair", opp.Pair.Label()).Msg("gas cost unavailable, dropping opportunity")
		return false, "gas cost unavailable"
	}

	netProfit := opp.ExpectedProfitQuote.Sub(gasCost)
	if netProfit.Sign() <= 0 {
		return false, fmt.Sprintf("unprofitable after gas: net %s", netProfit.StringFixed(2))
	}

	opp.GasCostQuote = gasCost
	opp.NetProfitQuote = netProfit
	opp.Deadline = DeadlineFrom(time.Now(), v.cfg.ExecutionWindow)
	opp.MaxSlippage = v.cfg.MaxSlippage

	if !opp.transition(StateDetected, StateValidated) {
		return false, "opportunity not in detected state"
	}

	v.log.Info().
		Str("pair", opp.Pair.Label()).
		Str("buy", opp.VenueBuy).
		Str("sell", opp.VenueSell).
		Str("profit_pct", opp.ProfitPercent.StringFixed(4)).
		Str("net_profit", netProfit.StringFixed(2)).
		Msg("opportunity validated")

	return true, ""
}

// gas cost of a full two-leg arbitrage in the reference quote currency
func (v *Validator) gasCostInQuote(ctx context.Context) (decimal.Decimal, error) {
	gasPriceWei, err := v.gas.GasPrice(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch gas price: %w", err)
	}

	nativePrice, err := v.quotePrice(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch native quote price: %w", err)
	}

	costWei := new(big.Int).Mul(gasPriceWei, big.NewInt(ArbGasUnits))
	costNative := decimal.NewFromBigInt(costWei, -18)
	return costNative.Mul(nativePrice), nil
}

// VerifyAndExecute is the pre-execution revalidation gate. It re-reads both
// venue prices, rejects decayed opportunities, and hands surviving ones to
// the execution engine under a per-pair lock. The lock is released exactly
// once, on whichever terminal result arrives.
func (v *Validator) VerifyAndExecute(ctx context.Context, opp *Opportunity) (*ExecutionResult, error) {
	key := opp.Pair.Key()
	if !v.tryAcquire(key) {
		return nil, ErrPairLocked
	}
	defer v.release(key)

	if opp.State() != StateValidated {
		return nil, ErrConsumed
	}

	priceBuy, priceSell, err := v.prices.CurrentPrices(ctx, opp)
	if err != nil {
		return nil, fmt.Errorf("re-fetch prices: %w", err)
	}

	currentProfit := Discrepancy(priceBuy, priceSell)
	floor := opp.ProfitPercent.Mul(stalenessTolerance)
	if currentProfit.LessThan(floor) {
		opp.transition(StateValidated, StateStaleRejected)
		v.log.Info().
			Str("pair", opp.Pair.Label()).
			Str("detected_pct", opp.ProfitPercent.StringFixed(4)).
			Str("current_pct", currentProfit.StringFixed(4)).
			Msg("opportunity decayed, rejecting")
		return nil, ErrStaleOpportunity
	}

	if !opp.transition(StateValidated, StateExecuting) {
		return nil, ErrConsumed
	}

	result := v.executor.Execute(ctx, opp)
	if !result.Success {
		opp.transition(StateExecuting, StateRejected)
		v.log.Warn().
			Str("pair", opp.Pair.Label()).
			Str("kind", result.ErrorKind.String()).
			Str("detail", result.Detail).
			Msg("execution failed")
		return result, nil
	}

	rec := stats.TradeRecord{
		Timestamp:      time.Now().UTC(),
		PairLabel:      opp.Pair.Label(),
		ProfitQuote:    result.RealizedProfitQuote,
		VolumeQuote:    opp.VolumeQuote,
		ProfitPercent:  opp.ProfitPercent,
		GasCostQuote:   opp.GasCostQuote,
		NetProfitQuote: result.RealizedProfitQuote.Sub(opp.GasCostQuote),
	}
	if err := v.ledger.RecordTrade(rec); err != nil {
		v.log.Error().Err(err).Msg("trade executed but ledger write failed")
	}

	opp.transition(StateExecuting, StateSettled)
	v.log.Info().
		Str("pair", opp.Pair.Label()).
		Str("tx", result.TxRef).
		Str("profit", result.RealizedProfitQuote.StringFixed(2)).
		Msg("trade settled")

	return result, nil
}

func (v *Validator) tryAcquire(key string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.inFlight[key] {
		return false
	}
	v.inFlight[key] = true
	return true
}

func (v *Validator) release(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.inFlight, key)
}
