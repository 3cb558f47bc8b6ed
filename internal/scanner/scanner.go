package scanner

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/qlagarde/dex-arb/internal/arbitrage"
	"github.com/qlagarde/dex-arb/internal/eth"
	"github.com/qlagarde/dex-arb/internal/storage"
)

const tokenMetaCacheSize = 4096

// Market is a token pair tradable on both venues.
type Market struct {
	Pair  arbitrage.Pair
	Pools map[string]common.Address // venue name -> pool address
}

// Scanner is the pool reserve source: it reads reserves, resolves token
// metadata and discovers the pairs both venues list.
type Scanner struct {
	client  *eth.Client
	cache   *storage.CacheDB
	meta    *lru.Cache[common.Address, eth.TokenInfo]
	limiter *rate.Limiter
	log     zerolog.Logger

	pairABI    abi.ABI
	factoryABI abi.ABI
	erc20ABI   abi.ABI
}

func New(client *eth.Client, cache *storage.CacheDB, rps float64, log zerolog.Logger) (*Scanner, error) {
	pairABI, err := abi.JSON(strings.NewReader(eth.UniswapV2PairABI))
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	factoryABI, err := abi.JSON(strings.NewReader(eth.UniswapV2FactoryABI))
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(eth.ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	meta, err := lru.New[common.Address, eth.TokenInfo](tokenMetaCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create meta cache: %w", err)
	}

	if rps <= 0 {
		rps = 20
	}

	return &Scanner{
		client:     client,
		cache:      cache,
		meta:       meta,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		log:        log.With().Str("component", "scanner").Logger(),
		pairABI:    pairABI,
		factoryABI: factoryABI,
		erc20ABI:   erc20ABI,
	}, nil
}

// call packs, rate-limits and executes one read-only contract call.
func (s *Scanner) call(ctx context.Context, contractABI abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	result, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	unpacked, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return unpacked, nil
}

// GetReserves reads a pool's reserves. Pool token0/token1 ordering matches
// the pair's canonical address ordering, so reserve0 is the base side.
func (s *Scanner) GetReserves(ctx context.Context, pool common.Address) (arbitrage.ReservePair, error) {
	unpacked, err := s.call(ctx, s.pairABI, pool, "getReserves")
	if err != nil {
		return arbitrage.ReservePair{}, err
	}
	if len(unpacked) < 2 {
		return arbitrage.ReservePair{}, fmt.Errorf("unexpected getReserves result length: %d", len(unpacked))
	}

	reserve0, ok := unpacked[0].(*big.Int)
	if !ok {
		return arbitrage.ReservePair{}, fmt.Errorf("reserve0 type assertion failed")
	}
	reserve1, ok := unpacked[1].(*big.Int)
	if !ok {
		return arbitrage.ReservePair{}, fmt.Errorf("reserve1 type assertion failed")
	}

	return arbitrage.ReservePair{
		ReserveA:   reserve0,
		ReserveB:   reserve1,
		ObservedAt: time.Now(),
	}, nil
}

// PoolTokens reads token0 and token1 of a pool.
func (s *Scanner) PoolTokens(ctx context.Context, pool common.Address) (token0, token1 common.Address, err error) {
	res0, err := s.call(ctx, s.pairABI, pool, "token0")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	res1, err := s.call(ctx, s.pairABI, pool, "token1")
	if err != nil {
		return common.Address{}, common.Address{}, err
	}

	token0, ok0 := res0[0].(common.Address)
	token1, ok1 := res1[0].(common.Address)
	if !ok0 || !ok1 {
		return common.Address{}, common.Address{}, fmt.Errorf("token address assertion failed")
	}
	return token0, token1, nil
}

// GetTokenMeta resolves symbol/decimals, LRU first, then the sqlite cache,
// then on-chain.
func (s *Scanner) GetTokenMeta(ctx context.Context, token common.Address) (eth.TokenInfo, error) {
	if info, ok := s.meta.Get(token); ok {
		return info, nil
	}

	if symbol, decimals, ok := s.cache.GetToken(token); ok {
		info := eth.TokenInfo{Address: token, Symbol: symbol, Decimals: decimals}
		s.meta.Add(token, info)
		return info, nil
	}

	symRes, err := s.call(ctx, s.erc20ABI, token, "symbol")
	if err != nil {
		return eth.TokenInfo{}, fmt.Errorf("fetch symbol for %s: %w", token.Hex(), err)
	}
	decRes, err := s.call(ctx, s.erc20ABI, token, "decimals")
	if err != nil {
		return eth.TokenInfo{}, fmt.Errorf("fetch decimals for %s: %w", token.Hex(), err)
	}

	symbol, ok := symRes[0].(string)
	if !ok {
		return eth.TokenInfo{}, fmt.Errorf("symbol assertion failed for %s", token.Hex())
	}
	decimals, ok := decRes[0].(uint8)
	if !ok {
		return eth.TokenInfo{}, fmt.Errorf("decimals assertion failed for %s", token.Hex())
	}

	info := eth.TokenInfo{Address: token, Symbol: symbol, Decimals: int(decimals)}
	s.meta.Add(token, info)
	if err := s.cache.SetToken(token, info.Symbol, info.Decimals); err != nil {
		s.log.Warn().Err(err).Str("token", token.Hex()).Msg("token cache write failed")
	}
	return info, nil
}

// MarketFor assembles a Market for a cached pair key.
func (s *Scanner) MarketFor(ctx context.Context, pairKey string) (*Market, error) {
	uniPool, ok := s.cache.GetPool(eth.Uniswap.Name, pairKey)
	if !ok {
		return nil, fmt.Errorf("pair %s not cached for %s", pairKey, eth.Uniswap.Name)
	}
	sushiPool, ok := s.cache.GetPool(eth.Sushiswap.Name, pairKey)
	if !ok {
		return nil, fmt.Errorf("pair %s not cached for %s", pairKey, eth.Sushiswap.Name)
	}

	token0, token1, err := s.PoolTokens(ctx, uniPool)
	if err != nil {
		return nil, fmt.Errorf("fetch pair tokens: %w", err)
	}

	meta0, err := s.GetTokenMeta(ctx, token0)
	if err != nil {
		return nil, err
	}
	meta1, err := s.GetTokenMeta(ctx, token1)
	if err != nil {
		return nil, err
	}

	pair := arbitrage.NewPair(token0, token1, meta0.Symbol, meta1.Symbol, meta0.Decimals, meta1.Decimals)
	return &Market{
		Pair: pair,
		Pools: map[string]common.Address{
			eth.Uniswap.Name:   uniPool,
			eth.Sushiswap.Name: sushiPool,
		},
	}, nil
}

// CurrentPrices re-reads both venue spot prices for an opportunity's pair.
// Used by the pre-execution revalidation; results are never cached.
func (s *Scanner) CurrentPrices(ctx context.Context, opp *arbitrage.Opportunity) (priceBuy, priceSell decimal.Decimal, err error) {
	key := opp.Pair.Key()

	buyPool, ok := s.cache.GetPool(opp.VenueBuy, key)
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("no cached pool for %s on %s", key, opp.VenueBuy)
	}
	sellPool, ok := s.cache.GetPool(opp.VenueSell, key)
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("no cached pool for %s on %s", key, opp.VenueSell)
	}

	buyRes, err := s.GetReserves(ctx, buyPool)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("buy venue reserves: %w", err)
	}
	sellRes, err := s.GetReserves(ctx, sellPool)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sell venue reserves: %w", err)
	}

	priceBuy, err = arbitrage.SpotPrice(buyRes, opp.Pair.DecimalsA, opp.Pair.DecimalsB)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("buy venue price: %w", err)
	}
	priceSell, err = arbitrage.SpotPrice(sellRes, opp.Pair.DecimalsA, opp.Pair.DecimalsB)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("sell venue price: %w", err)
	}

	return priceBuy, priceSell, nil
}

// WETHQuotePrice returns the WETH price in the reference quote currency,
// read from the reference WETH/USDT pool.
func (s *Scanner) WETHQuotePrice(ctx context.Context) (decimal.Decimal, error) {
	res, err := s.GetReserves(ctx, eth.ReferencePricePool)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reference pool reserves: %w", err)
	}
	// token0 is WETH, token1 is USDT in the reference pool
	return arbitrage.SpotPrice(res, eth.WETHDecimals, eth.ReferenceQuoteDecimals)
}
