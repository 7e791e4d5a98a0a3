// Command oracle-price-feeder is a side-car process that fetches asset
// prices from external sources, validates and aggregates them, and submits
// the result to an on-chain oracle contract on a fixed interval.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cosmos/cosmos-sdk/client"

	"github.com/kiichain/oracle-price-feeder/config"
	"github.com/kiichain/oracle-price-feeder/oracle/aggregator"
	"github.com/kiichain/oracle-price-feeder/oracle/cache"
	"github.com/kiichain/oracle-price-feeder/oracle/provider"
	"github.com/kiichain/oracle-price-feeder/oracle/submitter"
	"github.com/kiichain/oracle-price-feeder/oracle/supervisor"
	"github.com/kiichain/oracle-price-feeder/oracle/validator"
)

const (
	logFormatJSON = "json"
	logFormatText = "text"

	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
)

var rootCmd = &cobra.Command{
	Use:   "oracle-price-feeder [config-file]",
	Args:  cobra.ExactArgs(1),
	Short: "oracle-price-feeder fetches, validates, aggregates and submits asset prices to an on-chain oracle",
	Long: `A side-car process that fetches prices from external data sources,
runs them through validation and weighted-median aggregation, and
periodically submits the result to an on-chain oracle contract.`,
	RunE: runCmdHandler,
}

func init() {
	rootCmd.PersistentFlags().String(flagLogLevel, zerolog.InfoLevel.String(), "logging level")
	rootCmd.PersistentFlags().String(flagLogFormat, logFormatText, "logging format; must be either json or text")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runCmdHandler(cmd *cobra.Command, args []string) error {
	logger, err := buildLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := config.ParseConfig(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	g, ctx := errgroup.WithContext(ctx)

	trapSignal(cancel, logger)

	providers := buildProviders(cfg, logger)

	val := validator.New(validator.Config{
		MaxDeviationPercent:   cfg.Oracle.MaxPriceDeviationPct,
		StaleThresholdSeconds: cfg.Oracle.PriceStaleThresholdSec,
	})

	priceCache := cache.New(cache.Config{
		TTL: time.Duration(cfg.Oracle.CacheTTLSeconds) * time.Second,
	})

	agg := aggregator.New(aggregator.Config{
		MinSources:   minSources(cfg),
		FetchTimeout: 10 * time.Second,
	}, providers, val, priceCache)

	clientCtx := client.Context{}.
		WithChainID(cfg.Account.ChainID).
		WithFromAddress(nil)

	chainClient := submitter.NewCosmosClient(submitter.CosmosClientConfig{
		ClientCtx:   clientCtx,
		GasAdjust:   cfg.Gas.GasAdjustment,
		ContractID:  cfg.Oracle.TargetContractID,
		AdminSecret: cfg.Oracle.AdminSecretKey,
	})

	sub := submitter.New(submitter.Config{
		AdminAddress: cfg.Account.Address,
		ContractID:   cfg.Oracle.TargetContractID,
	}, chainClient, logger)

	healthchecks := make([]supervisor.HealthcheckTarget, 0, len(cfg.Healthchecks))
	for i, hc := range cfg.Healthchecks {
		timeout, _ := time.ParseDuration(hc.Timeout)
		healthchecks = append(healthchecks, supervisor.HealthcheckTarget{
			Name:    fmt.Sprintf("healthcheck-%d", i),
			URL:     hc.URL,
			Timeout: timeout,
		})
	}

	sup := supervisor.New(supervisor.Config{
		Network:          cfg.Oracle.Network,
		TargetContractID: cfg.Oracle.TargetContractID,
		TickInterval:     time.Duration(cfg.Oracle.UpdateIntervalMs) * time.Millisecond,
		Assets:           cfg.Oracle.Assets,
		Healthchecks:     healthchecks,
	}, agg, sub, logger)

	g.Go(func() error {
		return sup.Start(ctx)
	})

	return g.Wait()
}

func buildLogger(cmd *cobra.Command) (zerolog.Logger, error) {
	logLvlStr, err := cmd.Flags().GetString(flagLogLevel)
	if err != nil {
		return zerolog.Logger{}, err
	}
	logLvl, err := zerolog.ParseLevel(logLvlStr)
	if err != nil {
		return zerolog.Logger{}, err
	}

	logFormatStr, err := cmd.Flags().GetString(flagLogFormat)
	if err != nil {
		return zerolog.Logger{}, err
	}

	var logWriter io.Writer
	switch strings.ToLower(logFormatStr) {
	case logFormatJSON:
		logWriter = os.Stderr
	case logFormatText:
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMilli}
	default:
		return zerolog.Logger{}, fmt.Errorf("invalid logging format: %s", logFormatStr)
	}

	zerolog.TimeFieldFormat = time.StampMilli
	return zerolog.New(logWriter).Level(logLvl).With().Timestamp().Logger(), nil
}

func trapSignal(cancel context.CancelFunc, logger zerolog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("caught signal; shutting down")
		cancel()
	}()
}

func minSources(cfg config.Config) int {
	min := 1
	for _, pair := range cfg.CurrencyPairs {
		if len(pair.Providers) > min {
			min = len(pair.Providers)
		}
	}
	if min > 2 {
		return 2
	}
	return min
}

func buildProviders(cfg config.Config, logger zerolog.Logger) []provider.Provider {
	seen := make(map[string]struct{})
	providers := make([]provider.Provider, 0)

	priority := 0
	for _, pair := range cfg.CurrencyPairs {
		for _, name := range pair.Providers {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}

			timeout := config.ProviderTimeout(name, cfg)
			pcfg := provider.Config{
				Enabled:  true,
				Priority: priority,
				Weight:   1.0,
				Timeout:  timeout,
				RateLimit: provider.RateLimit{
					MaxRequests: 10,
					WindowMs:    1000,
				},
			}
			priority++

			switch provider.Name(strings.ToLower(name)) {
			case provider.NameCoinGecko:
				providers = append(providers, provider.NewCoinGecko(pcfg, logger))
			case provider.NameBinance:
				providers = append(providers, provider.NewBinance(pcfg, logger))
			case provider.NameOkx:
				providers = append(providers, provider.NewOkx(pcfg, logger))
			case provider.NameHuobi:
				providers = append(providers, provider.NewHuobi(pcfg, logger))
			case provider.NameGate:
				providers = append(providers, provider.NewGate(pcfg, logger))
			case provider.NameMock:
				providers = append(providers, provider.NewMockProvider(pcfg, logger))
			default:
				logger.Warn().Str("provider", name).Msg("no implementation registered for configured provider; skipping")
			}
		}
	}

	return providers
}
