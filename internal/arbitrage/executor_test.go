package arbitrage

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlagarde/dex-arb/internal/eth"
)

// throwaway dev key, never funded
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeBackend struct {
	receipt *types.Receipt
	waitErr error
	// when set, WaitMined blocks until the context expires
	waitForever bool

	sent *types.Transaction
}

func (b *fakeBackend) GasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(50_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 210_000, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (b *fakeBackend) LatestBlockTimestamp(context.Context) (uint64, error) {
	return 1_700_000_000, nil
}

func (b *fakeBackend) SendSigned(_ context.Context, tx *types.Transaction) error {
	b.sent = tx
	return nil
}

func (b *fakeBackend) WaitMined(ctx context.Context, _ common.Hash) (*types.Receipt, error) {
	if b.waitForever {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return b.receipt, b.waitErr
}

func newTestEngine(t *testing.T, backend ChainBackend) *Engine {
	t.Helper()
	signer, err := eth.NewSigner(testPrivateKey, big.NewInt(1))
	require.NoError(t, err)
	return NewEngine(backend, signer, quotePriceOf(2000), zerolog.Nop())
}

func executableOpportunity() *Opportunity {
	opp := detectedOpportunity(100)
	opp.Deadline = time.Now().Add(time.Minute)
	opp.ReservesBuy = ReservePair{
		ReserveA:   big.NewInt(1000),
		ReserveB:   big.NewInt(2000),
		ObservedAt: time.Now(),
	}
	return opp
}

func TestExecuteRejectsIdenticalVenues(t *testing.T) {
	engine := newTestEngine(t, nil)
	opp := executableOpportunity()
	opp.VenueSell = opp.VenueBuy

	result := engine.Execute(context.Background(), opp)

	assert.False(t, result.Success)
	assert.Equal(t, ErrorKindSubmission, result.ErrorKind)
	assert.Empty(t, result.TxRef)
}

func TestExecuteRejectsNonPositiveAmount(t *testing.T) {
	engine := newTestEngine(t, nil)

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		opp := executableOpportunity()
		opp.OptimalAmountIn = amount

		result := engine.Execute(context.Background(), opp)

		assert.False(t, result.Success)
		assert.Equal(t, ErrorKindSubmission, result.ErrorKind)
	}
}

func TestExecuteRejectsExpiredDeadline(t *testing.T) {
	engine := newTestEngine(t, nil)
	opp := executableOpportunity()
	opp.Deadline = time.Now().Add(-time.Second)

	result := engine.Execute(context.Background(), opp)

	assert.False(t, result.Success)
	assert.Equal(t, ErrorKindSubmission, result.ErrorKind)
}

func TestExecuteMapsBroadcastFailureToSubmission(t *testing.T) {
	backend := &fakeBackend{}
	engine := newTestEngine(t, &sendFailBackend{fakeBackend: backend})

	result := engine.Execute(context.Background(), executableOpportunity())

	assert.False(t, result.Success)
	assert.Equal(t, ErrorKindSubmission, result.ErrorKind)
	assert.Contains(t, result.Detail, "broadcast")
}

type sendFailBackend struct {
	*fakeBackend
}

func (b *sendFailBackend) SendSigned(context.Context, *types.Transaction) error {
	return errors.New("rpc unavailable")
}

func TestExecuteMapsRevertedReceipt(t *testing.T) {
	backend := &fakeBackend{
		receipt: &types.Receipt{Status: types.ReceiptStatusFailed, GasUsed: 198_431},
	}
	engine := newTestEngine(t, backend)

	result := engine.Execute(context.Background(), executableOpportunity())

	assert.False(t, result.Success)
	assert.Equal(t, ErrorKindExecutionFailed, result.ErrorKind)
	assert.Equal(t, "receipt status 0", result.Detail)
	assert.NotEmpty(t, result.TxRef)
	assert.Equal(t, uint64(198_431), result.GasUsed)
	// 50 gwei at 2000 per native unit
	assert.True(t, result.GasPriceQuote.Equal(decimal.RequireFromString("0.0001")),
		"got %s", result.GasPriceQuote)
}

func TestExecuteConfirmationTimeoutIsFailure(t *testing.T) {
	backend := &fakeBackend{waitForever: true}
	engine := newTestEngine(t, backend)

	opp := executableOpportunity()
	opp.Deadline = time.Now().Add(100 * time.Millisecond)

	result := engine.Execute(context.Background(), opp)

	assert.False(t, result.Success)
	assert.Equal(t, ErrorKindExecutionFailed, result.ErrorKind)
	assert.Contains(t, result.Detail, "confirmation timeout")
}

func TestExecuteSuccess(t *testing.T) {
	backend := &fakeBackend{
		receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, GasUsed: 176_002},
	}
	engine := newTestEngine(t, backend)

	opp := executableOpportunity()
	result := engine.Execute(context.Background(), opp)

	require.True(t, result.Success)
	assert.Equal(t, ErrorKindNone, result.ErrorKind)
	assert.Equal(t, uint64(176_002), result.GasUsed)
	assert.True(t, result.RealizedProfitQuote.Equal(opp.ExpectedProfitQuote))

	require.NotNil(t, backend.sent)
	assert.Equal(t, backend.sent.Hash().Hex(), result.TxRef)
	assert.Equal(t, uint64(7), backend.sent.Nonce())
	// estimate plus the 20% margin
	assert.Equal(t, uint64(252_000), backend.sent.Gas())
}
