package arbitrage

import (
	"errors"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrZeroReserves      = errors.New("pool has zero reserves")
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// SpotPrice returns the price of tokenA in tokenB units, adjusted for
// decimals: (reserveB * 10^decimalsA) / (reserveA * 10^decimalsB).
func SpotPrice(res ReservePair, decimalsA, decimalsB int) (decimal.Decimal, error) {
	if res.ReserveA.Sign() == 0 || res.ReserveB.Sign() == 0 {
		return decimal.Zero, ErrZeroReserves
	}

	rA := decimal.NewFromBigInt(res.ReserveA, 0)
	rB := decimal.NewFromBigInt(res.ReserveB, 0)

	// rB/rA * 10^(decimalsA-decimalsB)
	return rB.Div(rA).Mul(decimal.New(1, int32(decimalsA-decimalsB))), nil
}

// PriceImpact simulates a constant-product swap of amountIn and returns the
// fractional move of the quote reserve. The pool simulation stays in integer
// arithmetic (floor division, as on chain); only the final ratio is decimal.
func PriceImpact(res ReservePair, amountIn *big.Int) (decimal.Decimal, error) {
	if res.ReserveA.Sign() == 0 || res.ReserveB.Sign() == 0 {
		return decimal.Zero, ErrZeroReserves
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return decimal.Zero, ErrNonPositiveAmount
	}

	rA, overflow := uint256.FromBig(res.ReserveA)
	if overflow {
		return decimal.Zero, errors.New("reserveA overflows uint256")
	}
	rB, overflow := uint256.FromBig(res.ReserveB)
	if overflow {
		return decimal.Zero, errors.New("reserveB overflows uint256")
	}
	in, overflow := uint256.FromBig(amountIn)
	if overflow {
		return decimal.Zero, errors.New("amountIn overflows uint256")
	}

	k := new(uint256.Int).Mul(rA, rB)
	newA := new(uint256.Int).Add(rA, in)
	newB := new(uint256.Int).Div(k, newA)

	moved := new(uint256.Int).Sub(rB, newB)

	impact := decimal.NewFromBigInt(moved.ToBig(), 0)
	return impact.Div(decimal.NewFromBigInt(res.ReserveB, 0)), nil
}

// Discrepancy returns the unsigned relative gap between two prices as a
// percentage of the lower one.
func Discrepancy(priceA, priceB decimal.Decimal) decimal.Decimal {
	if priceA.Sign() <= 0 || priceB.Sign() <= 0 {
		return decimal.Zero
	}

	diff := priceA.Sub(priceB).Abs()
	low := priceA
	if priceB.LessThan(low) {
		low = priceB
	}
	return diff.Div(low).Mul(decimal.NewFromInt(100))
}

// AmountOut computes the output of a V2 swap including the 0.3% pool fee.
func AmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(997))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)

	denominator := new(big.Int).Mul(reserveIn, big.NewInt(1000))
	denominator.Add(denominator, amountInWithFee)

	return numerator.Div(numerator, denominator)
}

// optimalAmountIn caps the trade at 30% of the smaller base reserve.
// Deliberately conservative: keeps realized impact small instead of solving
// the true profit-maximizing input, and ignores venue fees. Known
// approximation, kept on purpose.
func optimalAmountIn(buyRes, sellRes ReservePair) *big.Int {
	base := buyRes.ReserveA
	if sellRes.ReserveA.Cmp(base) < 0 {
		base = sellRes.ReserveA
	}

	amount := new(big.Int).Mul(base, big.NewInt(3))
	return amount.Div(amount, big.NewInt(10))
}

// FindOpportunity compares spot prices on the two venues and sizes a trade.
// Returns (nil, false) when reserves are unusable or the sized trade does not
// meet minVolumeQuote. Equal prices still produce an opportunity with
// ProfitPercent zero; the profitability gate downstream drops it.
func FindOpportunity(
	pair Pair,
	venueA, venueB string,
	resA, resB ReservePair,
	minVolumeQuote decimal.Decimal,
) (*Opportunity, bool) {
	priceA, errA := SpotPrice(resA, pair.DecimalsA, pair.DecimalsB)
	priceB, errB := SpotPrice(resB, pair.DecimalsA, pair.DecimalsB)
	if errA != nil || errB != nil {
		// empty pool on either side, nothing to trade against
		return nil, false
	}

	profitPercent := Discrepancy(priceA, priceB)

	// buy where the base token is cheaper
	venueBuy, venueSell := venueA, venueB
	priceBuy, priceSell := priceA, priceB
	buyRes, sellRes := resA, resB
	if priceB.LessThan(priceA) {
		venueBuy, venueSell = venueB, venueA
		priceBuy, priceSell = priceB, priceA
		buyRes, sellRes = resB, resA
	}

	amountIn := optimalAmountIn(buyRes, sellRes)
	if amountIn.Sign() <= 0 {
		return nil, false
	}

	// volumeQuote = optimalAmountIn * price on the buy venue
	volumeQuote := decimal.NewFromBigInt(amountIn, 0).Mul(priceBuy)
	if volumeQuote.LessThan(minVolumeQuote) {
		return nil, false
	}

	expectedProfit := volumeQuote.Mul(profitPercent).Div(decimal.NewFromInt(100))

	return &Opportunity{
		ID:                  uuid.New(),
		Pair:                pair,
		VenueBuy:            venueBuy,
		VenueSell:           venueSell,
		PriceBuy:            priceBuy,
		PriceSell:           priceSell,
		ProfitPercent:       profitPercent,
		OptimalAmountIn:     amountIn,
		ReservesBuy:         buyRes,
		VolumeQuote:         volumeQuote,
		ExpectedProfitQuote: expectedProfit,
		state:               int32(StateDetected),
	}, true
}

// DeadlineFrom stamps an absolute expiry on a detection time.
func DeadlineFrom(now time.Time, window time.Duration) time.Time {
	return now.Add(window)
}
