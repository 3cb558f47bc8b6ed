package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/qlagarde/dex-arb/internal/stats"
)

func main() {
	_ = godotenv.Load()

	statsPath := flag.String("stats", "data/stats.json", "path to the ledger file")
	outPath := flag.String("out", "data/trades.parquet", "output parquet file")
	flag.Parse()

	store, err := stats.NewFileStore(*statsPath)
	if err != nil {
		log.Fatalf("open stats store: %v", err)
	}

	ledger, err := stats.NewLedger(store)
	if err != nil {
		log.Fatalf("load ledger: %v", err)
	}

	snap := ledger.Snapshot()
	fmt.Printf("exporting %d trades (total pnl %s USDT)...\n", len(snap.Trades), snap.TotalPnL.StringFixed(2))

	if err := ledger.ExportParquet(*outPath); err != nil {
		log.Fatalf("export failed: %v", err)
	}

	fmt.Printf("wrote %s\n", *outPath)
}
