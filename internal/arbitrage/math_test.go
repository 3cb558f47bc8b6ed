package arbitrage

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPair(decimalsA, decimalsB int) Pair {
	return NewPair(
		common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
		"BASE", "QUOTE",
		decimalsA, decimalsB,
	)
}

func reserves(a, b int64) ReservePair {
	return ReservePair{
		ReserveA:   big.NewInt(a),
		ReserveB:   big.NewInt(b),
		ObservedAt: time.Now(),
	}
}

func TestSpotPrice(t *testing.T) {
	// same decimals: price is just the reserve ratio
	price, err := SpotPrice(reserves(1000, 2000), 18, 18)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(2)), "got %s", price)

	// decimal adjustment: 10^(decA-decB)
	price, err = SpotPrice(reserves(1000, 2000), 18, 6)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.New(2, 12)), "got %s", price)
}

func TestSpotPriceZeroReserves(t *testing.T) {
	_, err := SpotPrice(reserves(0, 2000), 18, 18)
	assert.ErrorIs(t, err, ErrZeroReserves)

	_, err = SpotPrice(reserves(1000, 0), 18, 18)
	assert.ErrorIs(t, err, ErrZeroReserves)
}

func TestPriceImpactMatchesIntegerPoolMath(t *testing.T) {
	// k = 1000*2000 = 2_000_000; amountIn 100 -> newA 1100,
	// newB = floor(2000000/1100) = 1818; impact = (2000-1818)/2000 = 0.091
	impact, err := PriceImpact(reserves(1000, 2000), big.NewInt(100))
	require.NoError(t, err)
	expected := decimal.NewFromInt(182).Div(decimal.NewFromInt(2000))
	assert.True(t, impact.Equal(expected), "got %s want %s", impact, expected)
}

func TestPriceImpactMonotonic(t *testing.T) {
	res := reserves(1_000_000, 2_000_000)

	prev := decimal.NewFromInt(-1)
	for _, amount := range []int64{1000, 5000, 20_000, 100_000, 500_000} {
		impact, err := PriceImpact(res, big.NewInt(amount))
		require.NoError(t, err)
		assert.True(t, impact.Sign() >= 0, "impact negative for %d", amount)
		assert.True(t, impact.GreaterThan(prev), "impact not increasing at %d", amount)
		prev = impact
	}
}

func TestPriceImpactRejectsBadInputs(t *testing.T) {
	_, err := PriceImpact(reserves(0, 2000), big.NewInt(10))
	assert.ErrorIs(t, err, ErrZeroReserves)

	_, err = PriceImpact(reserves(1000, 2000), big.NewInt(0))
	assert.ErrorIs(t, err, ErrNonPositiveAmount)
}

func TestDiscrepancy(t *testing.T) {
	a := decimal.NewFromInt(100)
	b := decimal.NewFromInt(102)

	// (2/100)*100 = 2%
	assert.True(t, Discrepancy(a, b).Equal(decimal.NewFromInt(2)))
	// symmetric
	assert.True(t, Discrepancy(b, a).Equal(decimal.NewFromInt(2)))
	// equal prices
	assert.True(t, Discrepancy(a, a).IsZero())
}

func TestAmountOutAppliesFee(t *testing.T) {
	// 997*100*2000 / (1000*1000 + 997*100) = 199400000/1099700 = 181 (floor)
	out := AmountOut(big.NewInt(100), big.NewInt(1000), big.NewInt(2000))
	assert.Equal(t, int64(181), out.Int64())

	assert.Equal(t, int64(0), AmountOut(big.NewInt(0), big.NewInt(1000), big.NewInt(2000)).Int64())
	assert.Equal(t, int64(0), AmountOut(big.NewInt(100), big.NewInt(0), big.NewInt(2000)).Int64())
}

func TestFindOpportunityEndToEnd(t *testing.T) {
	pair := testPair(18, 6)
	resA := reserves(1000, 2000)
	resB := reserves(1000, 2100)

	opp, found := FindOpportunity(pair, "uniswap", "sushiswap", resA, resB, decimal.NewFromInt(25000))
	require.True(t, found)

	// venue A is cheaper, so we buy there
	assert.Equal(t, "uniswap", opp.VenueBuy)
	assert.Equal(t, "sushiswap", opp.VenueSell)

	// 30% of min(1000, 1000)
	assert.Equal(t, int64(300), opp.OptimalAmountIn.Int64())

	// (100/2000)*100 = 5%
	assert.True(t, opp.ProfitPercent.Equal(decimal.NewFromInt(5)), "got %s", opp.ProfitPercent)

	// volume = amountIn * buy price
	assert.True(t, opp.VolumeQuote.Equal(opp.PriceBuy.Mul(decimal.NewFromInt(300))))
	assert.Equal(t, StateDetected, opp.State())

	// buy-venue reserves ride along for the submission-time output check
	assert.Equal(t, resA.ReserveA, opp.ReservesBuy.ReserveA)
	assert.Equal(t, resA.ReserveB, opp.ReservesBuy.ReserveB)
}

func TestFindOpportunityVolumeFloor(t *testing.T) {
	pair := testPair(18, 18)
	// tiny pool: volume = 300 * 2 = 600
	_, found := FindOpportunity(pair, "uniswap", "sushiswap", reserves(1000, 2000), reserves(1000, 2100), decimal.NewFromInt(25000))
	assert.False(t, found)
}

func TestFindOpportunityZeroReserves(t *testing.T) {
	pair := testPair(18, 6)
	_, found := FindOpportunity(pair, "uniswap", "sushiswap", reserves(0, 2000), reserves(1000, 2100), decimal.Zero)
	assert.False(t, found)

	_, found = FindOpportunity(pair, "uniswap", "sushiswap", reserves(1000, 2000), reserves(1000, 0), decimal.Zero)
	assert.False(t, found)
}

func TestFindOpportunityEqualPrices(t *testing.T) {
	pair := testPair(18, 6)
	opp, found := FindOpportunity(pair, "uniswap", "sushiswap", reserves(1000, 2000), reserves(1000, 2000), decimal.Zero)
	require.True(t, found)
	assert.True(t, opp.ProfitPercent.IsZero())
}
