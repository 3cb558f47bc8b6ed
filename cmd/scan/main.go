package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/qlagarde/dex-arb/internal/arbitrage"
	"github.com/qlagarde/dex-arb/internal/eth"
	"github.com/qlagarde/dex-arb/internal/scanner"
	"github.com/qlagarde/dex-arb/internal/storage"
	"github.com/shopspring/decimal"
)

func main() {
	_ = godotenv.Load()

	pairLabel := flag.String("pair", "WETH/USDT", "trading pair (WETH/USDC or WETH/USDT)")
	minVolume := flag.String("min-volume", "25000", "minimum trade volume in USDT")
	cachePath := flag.String("cache", "data/discovery.db", "discovery cache path")
	flag.Parse()

	rpcURL := os.Getenv("DEXARB_RPC_URL")
	if rpcURL == "" {
		log.Fatal("DEXARB_RPC_URL environment variable not set")
	}

	minVolumeQuote, err := decimal.NewFromString(*minVolume)
	if err != nil {
		log.Fatalf("invalid min volume: %v", err)
	}

	uniPool, ok := eth.KnownPools[eth.Uniswap.Name][*pairLabel]
	if !ok {
		log.Fatalf("unsupported pair: %s (use WETH/USDC or WETH/USDT)", *pairLabel)
	}
	sushiPool := eth.KnownPools[eth.Sushiswap.Name][*pairLabel]

	client, err := eth.NewClient(rpcURL)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	cache, err := storage.NewCacheDB(*cachePath)
	if err != nil {
		log.Fatalf("failed to open cache: %v", err)
	}
	defer cache.Close()

	scan, err := scanner.New(client, cache, 20, zerolog.Nop())
	if err != nil {
		log.Fatalf("failed to build scanner: %v", err)
	}

	ctx := context.Background()

	fmt.Printf("scanning %s for arbitrage opportunities...\n\n", *pairLabel)

	token0, token1, err := scan.PoolTokens(ctx, uniPool)
	if err != nil {
		log.Fatalf("failed to fetch pair tokens: %v", err)
	}
	meta0, err := scan.GetTokenMeta(ctx, token0)
	if err != nil {
		log.Fatalf("failed to fetch token meta: %v", err)
	}
	meta1, err := scan.GetTokenMeta(ctx, token1)
	if err != nil {
		log.Fatalf("failed to fetch token meta: %v", err)
	}
	pair := arbitrage.NewPair(token0, token1, meta0.Symbol, meta1.Symbol, meta0.Decimals, meta1.Decimals)

	uniRes, err := scan.GetReserves(ctx, uniPool)
	if err != nil {
		log.Fatalf("failed to fetch uniswap reserves: %v", err)
	}
	sushiRes, err := scan.GetReserves(ctx, sushiPool)
	if err != nil {
		log.Fatalf("failed to fetch sushiswap reserves: %v", err)
	}

	fmt.Println("Pool Reserves:")
	fmt.Println("==============")
	fmt.Printf("\nuniswap (%s):\n", uniPool.Hex())
	fmt.Printf("  ReserveA: %s\n", uniRes.ReserveA.String())
	fmt.Printf("  ReserveB: %s\n", uniRes.ReserveB.String())
	fmt.Printf("\nsushiswap (%s):\n", sushiPool.Hex())
	fmt.Printf("  ReserveA: %s\n", sushiRes.ReserveA.String())
	fmt.Printf("  ReserveB: %s\n", sushiRes.ReserveB.String())

	uniPrice, err := arbitrage.SpotPrice(uniRes, pair.DecimalsA, pair.DecimalsB)
	if err != nil {
		log.Fatalf("uniswap price: %v", err)
	}
	sushiPrice, err := arbitrage.SpotPrice(sushiRes, pair.DecimalsA, pair.DecimalsB)
	if err != nil {
		log.Fatalf("sushiswap price: %v", err)
	}

	fmt.Println("\n\nPrices:")
	fmt.Println("=======")
	fmt.Printf("  uniswap:   %s\n", uniPrice.StringFixed(6))
	fmt.Printf("  sushiswap: %s\n", sushiPrice.StringFixed(6))

	diff := arbitrage.Discrepancy(uniPrice, sushiPrice)
	fmt.Printf("\nPrice difference: %s%%\n", diff.StringFixed(4))

	opp, found := arbitrage.FindOpportunity(
		pair,
		eth.Uniswap.Name, eth.Sushiswap.Name,
		uniRes, sushiRes,
		minVolumeQuote,
	)
	if !found {
		fmt.Println("\nNo opportunity meeting the volume floor")
		return
	}

	fmt.Println("\nOpportunity detected:")
	fmt.Println("=====================")
	fmt.Printf("  Buy on:  %s @ %s\n", opp.VenueBuy, opp.PriceBuy.StringFixed(6))
	fmt.Printf("  Sell on: %s @ %s\n", opp.VenueSell, opp.PriceSell.StringFixed(6))
	fmt.Printf("  Spread:  %s%%\n", opp.ProfitPercent.StringFixed(4))
	fmt.Printf("  Size:    %s %s (smallest units)\n", opp.OptimalAmountIn.String(), strings.Split(opp.Pair.Label(), "/")[0])
	fmt.Printf("  Volume:  %s USDT\n", opp.VolumeQuote.StringFixed(2))
	fmt.Printf("  Gross:   %s USDT\n", opp.ExpectedProfitQuote.StringFixed(2))
	fmt.Println("\n(gas cost and profitability are assessed by the bot's validator)")
}
