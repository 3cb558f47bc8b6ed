package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/qlagarde/dex-arb/internal/arbitrage"
	"github.com/qlagarde/dex-arb/internal/eth"
)

// One-time allowance preflight: the routers must be able to pull the traded
// tokens before the first swap. Do not run two approvals for the same
// token/spender concurrently.
func main() {
	_ = godotenv.Load()

	tokenHex := flag.String("token", "", "token address to approve")
	venueName := flag.String("venue", "", "venue whose router to approve (uniswap or sushiswap, empty = both)")
	flag.Parse()

	rpcURL := os.Getenv("DEXARB_RPC_URL")
	if rpcURL == "" {
		log.Fatal("DEXARB_RPC_URL environment variable not set")
	}
	privateKey := os.Getenv("DEXARB_PRIVATE_KEY")
	if privateKey == "" {
		log.Fatal("DEXARB_PRIVATE_KEY environment variable not set")
	}
	if *tokenHex == "" {
		log.Fatal("Usage: --token <address> [--venue uniswap|sushiswap]")
	}
	if !common.IsHexAddress(*tokenHex) {
		log.Fatalf("invalid token address: %s", *tokenHex)
	}
	token := common.HexToAddress(*tokenHex)

	var venues []eth.VenueConfig
	if *venueName == "" {
		venues = []eth.VenueConfig{eth.Uniswap, eth.Sushiswap}
	} else {
		venue, ok := eth.VenueByName(*venueName)
		if !ok {
			log.Fatalf("unknown venue: %s", *venueName)
		}
		venues = []eth.VenueConfig{venue}
	}

	ctx := context.Background()

	client, err := eth.NewClient(rpcURL)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Fatalf("failed to fetch chain id: %v", err)
	}

	signer, err := eth.NewSigner(privateKey, chainID)
	if err != nil {
		log.Fatalf("failed to load key: %v", err)
	}

	noPrice := func(context.Context) (decimal.Decimal, error) { return decimal.Zero, nil }
	engine := arbitrage.NewEngine(client, signer, noPrice, zerolog.Nop())

	for _, venue := range venues {
		fmt.Printf("approving %s for %s router %s...\n", token.Hex(), venue.Name, venue.Router.Hex())
		if err := engine.ApproveSpender(ctx, token, venue.Router); err != nil {
			log.Fatalf("approve on %s failed: %v", venue.Name, err)
		}
		fmt.Println("done")
	}
}
