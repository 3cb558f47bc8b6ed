package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/qlagarde/dex-arb/internal/arbitrage"
	"github.com/qlagarde/dex-arb/internal/bot"
	"github.com/qlagarde/dex-arb/internal/config"
	"github.com/qlagarde/dex-arb/internal/eth"
	"github.com/qlagarde/dex-arb/internal/scanner"
	"github.com/qlagarde/dex-arb/internal/stats"
	"github.com/qlagarde/dex-arb/internal/storage"
)

func main() {
	addToken := flag.String("add-token", "", "add a token address to the preferred set and exit")
	removeToken := flag.String("remove-token", "", "remove a token address from the preferred set and exit")
	discover := flag.Bool("discover", false, "re-run pool discovery before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	store, err := stats.NewFileStore(cfg.StatsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open stats store")
	}
	ledger, err := stats.NewLedger(store)
	if err != nil {
		log.Fatal().Err(err).Msg("load ledger")
	}

	// preferred-token management short-circuits the bot
	if *addToken != "" {
		if err := ledger.AddPreferredToken(*addToken); err != nil {
			log.Fatal().Err(err).Msg("add preferred token")
		}
		fmt.Printf("added %s to preferred tokens\n", strings.ToLower(*addToken))
		return
	}
	if *removeToken != "" {
		if err := ledger.RemovePreferredToken(*removeToken); err != nil {
			log.Fatal().Err(err).Msg("remove preferred token")
		}
		fmt.Printf("removed %s from preferred tokens\n", strings.ToLower(*removeToken))
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := eth.NewClient(cfg.RPCURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect chain client")
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("fetch chain id")
	}

	signer, err := eth.NewSigner(cfg.PrivateKey, chainID)
	if err != nil {
		log.Fatal().Err(err).Msg("load signer key")
	}

	cache, err := storage.NewCacheDB(cfg.CachePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open discovery cache")
	}
	defer cache.Close()

	scan, err := scanner.New(client, cache, cfg.RPCRateLimit, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build scanner")
	}

	pairKeys, err := loadPairKeys(ctx, scan, *discover, cfg.MaxPairs)
	if err != nil {
		log.Fatal().Err(err).Msg("pool discovery")
	}
	if len(pairKeys) == 0 {
		log.Fatal().Msg("no common pairs known; run with -discover first")
	}

	markets := make([]*scanner.Market, 0, len(pairKeys))
	for _, key := range pairKeys {
		m, err := scan.MarketFor(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("pair", key).Msg("skipping market")
			continue
		}
		markets = append(markets, m)
	}

	engine := arbitrage.NewEngine(client, signer, scan.WETHQuotePrice, log)
	validator := arbitrage.NewValidator(
		arbitrage.ValidatorConfig{
			ExecutionWindow:  cfg.ExecWindow,
			MaxSlippage:      cfg.MaxSlippage,
			MinProfitPercent: cfg.MinProfitPercent,
		},
		ledger, client, scan.WETHQuotePrice, scan, engine, log,
	)

	runner := bot.NewRunner(scan, validator, client, markets, cfg.ScanInterval, cfg.MinVolumeQuote, cfg.AutoMode, log)

	go consumeResults(ctx, runner, log)
	if !cfg.AutoMode {
		go confirmLoop(ctx, runner, log)
	}

	log.Info().
		Str("account", signer.Address().Hex()).
		Int("markets", len(markets)).
		Str("avg_profit", ledger.AverageProfitPercent().StringFixed(2)).
		Msg("bot starting")

	if err := runner.Run(ctx); err != nil {
		if errors.Is(err, bot.ErrConnectivity) {
			log.Error().Msg("chain client unreachable, halting automatic operation")
		}
		log.Fatal().Err(err).Msg("bot stopped")
	}
}

func loadPairKeys(ctx context.Context, scan *scanner.Scanner, rediscover bool, maxPairs int) ([]string, error) {
	if rediscover {
		return scan.DiscoverCommonPools(ctx, maxPairs)
	}
	keys, err := scan.CachedCommonPools()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return scan.DiscoverCommonPools(ctx, maxPairs)
	}
	return keys, nil
}

func consumeResults(ctx context.Context, runner *bot.Runner, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-runner.Results():
			switch {
			case out.Err != nil:
				log.Warn().Err(out.Err).Str("pair", out.Opportunity.Pair.Label()).Msg("execution rejected")
			case out.Result.Success:
				log.Info().
					Str("pair", out.Opportunity.Pair.Label()).
					Str("tx", out.Result.TxRef).
					Str("profit", out.Result.RealizedProfitQuote.StringFixed(2)).
					Msg("arbitrage settled")
			default:
				log.Warn().
					Str("pair", out.Opportunity.Pair.Label()).
					Str("kind", out.Result.ErrorKind.String()).
					Str("detail", out.Result.Detail).
					Msg("arbitrage failed")
			}
		}
	}
}

// confirmLoop is the manual path: print each validated opportunity and
// execute on a y/N answer.
func confirmLoop(ctx context.Context, runner *bot.Runner, log zerolog.Logger) {
	stdin := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		case opp := <-runner.Pending():
			fmt.Printf("\nOpportunity %s\n", opp.ID)
			fmt.Printf("  Pair:       %s\n", opp.Pair.Label())
			fmt.Printf("  Buy on:     %s @ %s\n", opp.VenueBuy, opp.PriceBuy.StringFixed(6))
			fmt.Printf("  Sell on:    %s @ %s\n", opp.VenueSell, opp.PriceSell.StringFixed(6))
			fmt.Printf("  Spread:     %s%%\n", opp.ProfitPercent.StringFixed(4))
			fmt.Printf("  Volume:     %s USDT\n", opp.VolumeQuote.StringFixed(2))
			fmt.Printf("  Net profit: %s USDT\n", opp.NetProfitQuote.StringFixed(2))
			fmt.Print("Execute? [y/N] ")

			answer, err := stdin.ReadString('\n')
			if err != nil {
				return
			}
			if strings.TrimSpace(strings.ToLower(answer)) != "y" {
				fmt.Println("skipped")
				continue
			}

			result, err := runner.ExecuteManually(ctx, opp)
			if err != nil {
				log.Warn().Err(err).Msg("manual execution rejected")
				continue
			}
			if result.Success {
				fmt.Printf("settled: %s\n", result.TxRef)
			} else {
				fmt.Printf("failed (%s): %s\n", result.ErrorKind, result.Detail)
			}
		}
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}
