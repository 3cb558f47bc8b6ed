package stats

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tradeOf(profit, volume int64) TradeRecord {
	return TradeRecord{
		Timestamp:      time.Now().UTC(),
		PairLabel:      "WETH/USDT",
		ProfitQuote:    decimal.NewFromInt(profit),
		VolumeQuote:    decimal.NewFromInt(volume),
		ProfitPercent:  decimal.NewFromInt(1),
		GasCostQuote:   decimal.NewFromInt(10),
		NetProfitQuote: decimal.NewFromInt(profit - 10),
	}
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "stats.json"))
	require.NoError(t, err)
	ledger, err := NewLedger(store)
	require.NoError(t, err)
	return ledger
}

func TestLedgerInvariants(t *testing.T) {
	ledger := newTestLedger(t)

	require.NoError(t, ledger.RecordOpportunityFound())
	require.NoError(t, ledger.RecordOpportunityFound())
	require.NoError(t, ledger.RecordTrade(tradeOf(50, 30000)))
	require.NoError(t, ledger.RecordTrade(tradeOf(-20, 25000)))

	snap := ledger.Snapshot()
	assert.Equal(t, uint64(2), snap.OpportunitiesFound)
	assert.Equal(t, uint64(2), snap.OpportunitiesTaken)
	assert.Len(t, snap.Trades, int(snap.OpportunitiesTaken))

	sum := decimal.Zero
	for _, tr := range snap.Trades {
		sum = sum.Add(tr.ProfitQuote)
	}
	assert.True(t, snap.TotalPnL.Equal(sum), "pnl %s != sum %s", snap.TotalPnL, sum)
	assert.True(t, snap.TotalVolume.Equal(decimal.NewFromInt(55000)))
}

func TestAverageProfitPercentNoTrades(t *testing.T) {
	ledger := newTestLedger(t)
	assert.True(t, ledger.AverageProfitPercent().IsZero())
}

func TestAverageProfitPercent(t *testing.T) {
	ledger := newTestLedger(t)
	require.NoError(t, ledger.RecordTrade(tradeOf(30, 1000)))
	require.NoError(t, ledger.RecordTrade(tradeOf(50, 1000)))
	assert.True(t, ledger.AverageProfitPercent().Equal(decimal.NewFromInt(40)))
}

func TestPreferredTokensCaseInsensitive(t *testing.T) {
	ledger := newTestLedger(t)

	require.NoError(t, ledger.AddPreferredToken("0xABCdef0000000000000000000000000000000001"))
	assert.True(t, ledger.IsPreferredToken("0xabcdef0000000000000000000000000000000001"))
	assert.True(t, ledger.IsPreferredToken("0xABCDEF0000000000000000000000000000000001"))
	assert.Equal(t, 1, ledger.PreferredTokenCount())

	require.NoError(t, ledger.RemovePreferredToken("0xAbCdEf0000000000000000000000000000000001"))
	assert.False(t, ledger.IsPreferredToken("0xabcdef0000000000000000000000000000000001"))
	assert.Equal(t, 0, ledger.PreferredTokenCount())
}

func TestWriteThroughSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	ledger, err := NewLedger(store)
	require.NoError(t, err)
	require.NoError(t, ledger.RecordOpportunityFound())
	require.NoError(t, ledger.RecordTrade(tradeOf(50, 30000)))
	require.NoError(t, ledger.AddPreferredToken("0xABC0000000000000000000000000000000000001"))

	// a second ledger over the same file sees everything already persisted
	reloaded, err := NewLedger(store)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), reloaded.OpportunitiesFound())
	assert.Equal(t, uint64(1), reloaded.OpportunitiesTaken())
	assert.True(t, reloaded.TotalPnL().Equal(decimal.NewFromInt(50)))
	assert.True(t, reloaded.IsPreferredToken("0xabc0000000000000000000000000000000000001"))

	snap := reloaded.Snapshot()
	require.Len(t, snap.Trades, 1)
	assert.Equal(t, "WETH/USDT", snap.Trades[0].PairLabel)
}

func TestSnapshotPreferredTokensSorted(t *testing.T) {
	ledger := newTestLedger(t)
	require.NoError(t, ledger.AddPreferredToken("0xBB00000000000000000000000000000000000002"))
	require.NoError(t, ledger.AddPreferredToken("0xAA00000000000000000000000000000000000001"))

	snap := ledger.Snapshot()
	require.Len(t, snap.PreferredTokens, 2)
	assert.Equal(t, "0xaa00000000000000000000000000000000000001", snap.PreferredTokens[0])
	assert.Equal(t, "0xbb00000000000000000000000000000000000002", snap.PreferredTokens[1])
}
