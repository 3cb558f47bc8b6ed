package scanner

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/qlagarde/dex-arb/internal/eth"
	"github.com/qlagarde/dex-arb/internal/storage"
)

// pairKeyOf builds the canonical lower-cased sorted key for two tokens.
func pairKeyOf(token0, token1 common.Address) string {
	a := strings.ToLower(token0.Hex())
	b := strings.ToLower(token1.Hex())
	if a > b {
		a, b = b, a
	}
	return a + "-" + b
}

// enumerateVenue walks a factory's pair registry, up to maxPairs entries.
func (s *Scanner) enumerateVenue(ctx context.Context, venue eth.VenueConfig, maxPairs int) (map[string]common.Address, error) {
	lenRes, err := s.call(ctx, s.factoryABI, venue.Factory, "allPairsLength")
	if err != nil {
		return nil, fmt.Errorf("%s allPairsLength: %w", venue.Name, err)
	}
	total, ok := lenRes[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s pair count assertion failed", venue.Name)
	}

	n := int(total.Int64())
	if maxPairs > 0 && n > maxPairs {
		n = maxPairs
	}

	s.log.Info().Str("venue", venue.Name).Int("pairs", n).Msg("enumerating factory")

	pools := make(map[string]common.Address, n)
	for i := 0; i < n; i++ {
		poolRes, err := s.call(ctx, s.factoryABI, venue.Factory, "allPairs", big.NewInt(int64(i)))
		if err != nil {
			return nil, fmt.Errorf("%s allPairs(%d): %w", venue.Name, i, err)
		}
		pool, ok := poolRes[0].(common.Address)
		if !ok {
			return nil, fmt.Errorf("%s pool address assertion failed at %d", venue.Name, i)
		}

		token0, token1, err := s.PoolTokens(ctx, pool)
		if err != nil {
			// dead or nonstandard pair, skip it
			s.log.Debug().Err(err).Str("pool", pool.Hex()).Msg("skipping unreadable pair")
			continue
		}
		pools[pairKeyOf(token0, token1)] = pool
	}

	return pools, nil
}

// DiscoverCommonPools enumerates both venues' registries, persists every
// discovered pool and returns the pair keys listed on both. Restarts can use
// CachedCommonPools instead of re-walking the factories.
func (s *Scanner) DiscoverCommonPools(ctx context.Context, maxPairs int) ([]string, error) {
	uniPools, err := s.enumerateVenue(ctx, eth.Uniswap, maxPairs)
	if err != nil {
		return nil, err
	}
	sushiPools, err := s.enumerateVenue(ctx, eth.Sushiswap, maxPairs)
	if err != nil {
		return nil, err
	}

	entries := make([]storage.PoolEntry, 0, len(uniPools)+len(sushiPools))
	for key, pool := range uniPools {
		entries = append(entries, storage.PoolEntry{Venue: eth.Uniswap.Name, PairKey: key, Address: pool})
	}
	for key, pool := range sushiPools {
		entries = append(entries, storage.PoolEntry{Venue: eth.Sushiswap.Name, PairKey: key, Address: pool})
	}
	if err := s.cache.BatchSetPools(entries); err != nil {
		return nil, fmt.Errorf("persist discovered pools: %w", err)
	}

	var shared []string
	for key := range uniPools {
		if _, ok := sushiPools[key]; ok {
			shared = append(shared, key)
		}
	}

	s.log.Info().
		Int("uniswap", len(uniPools)).
		Int("sushiswap", len(sushiPools)).
		Int("common", len(shared)).
		Msg("pool discovery complete")

	return shared, nil
}

// CachedCommonPools returns the intersection already persisted in the cache.
func (s *Scanner) CachedCommonPools() ([]string, error) {
	return s.cache.CommonPairKeys(eth.Uniswap.Name, eth.Sushiswap.Name)
}
