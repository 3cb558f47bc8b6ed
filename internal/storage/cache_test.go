package storage

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *CacheDB {
	t.Helper()
	cache, err := NewCacheDB(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestTokenRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	addr := common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")

	_, _, ok := cache.GetToken(addr)
	assert.False(t, ok)

	require.NoError(t, cache.SetToken(addr, "USDT", 6))

	symbol, decimals, ok := cache.GetToken(addr)
	require.True(t, ok)
	assert.Equal(t, "USDT", symbol)
	assert.Equal(t, 6, decimals)
}

func TestPoolRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	pool := common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852")

	_, ok := cache.GetPool("uniswap", "a-b")
	assert.False(t, ok)

	require.NoError(t, cache.SetPool("uniswap", "a-b", pool))

	got, ok := cache.GetPool("uniswap", "a-b")
	require.True(t, ok)
	assert.Equal(t, pool, got)
}

func TestCommonPairKeys(t *testing.T) {
	cache := newTestCache(t)

	entries := []PoolEntry{
		{Venue: "uniswap", PairKey: "a-b", Address: common.HexToAddress("0x01")},
		{Venue: "uniswap", PairKey: "c-d", Address: common.HexToAddress("0x02")},
		{Venue: "sushiswap", PairKey: "a-b", Address: common.HexToAddress("0x03")},
		{Venue: "sushiswap", PairKey: "e-f", Address: common.HexToAddress("0x04")},
	}
	require.NoError(t, cache.BatchSetPools(entries))

	keys, err := cache.CommonPairKeys("uniswap", "sushiswap")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-b"}, keys)

	stats, err := cache.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats["pool_entries"])
}
