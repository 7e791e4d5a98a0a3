// Package config parses and validates the price-feeder's TOML
// configuration, combining the oracle's own pricing-pipeline settings with
// the ambient chain-client, telemetry, and server settings carried over
// from the lineage this module was adapted from.
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	sdkmath "cosmossdk.io/math"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/kiichain/oracle-price-feeder/oracle/provider"
)

const (
	defaultListenAddr        = "0.0.0.0:7171"
	defaultSrvWriteTimeout   = 15 * time.Second
	defaultSrvReadTimeout    = 15 * time.Second
	defaultProviderTimeout   = 100 * time.Millisecond
	minimumProviderCount     = 3
	defaultUpdateIntervalMs  = 60_000
	defaultMaxDeviationPct   = 10.0
	defaultStaleThresholdSec = 300
	defaultCacheTTLSec       = 30
)

var maxDeviationThreshold = sdkmath.LegacyMustNewDecFromStr("3.0")

// defaultAssets is the asset set a Supervisor runs against when the
// configuration names none explicitly.
var defaultAssets = []string{"XLM", "USDC", "USDT", "BTC", "ETH"}

// supportedQuotes restricts what a CurrencyPair's Quote may be, mirroring
// the lineage's stable-quote allowlist.
var supportedQuotes = map[string]struct{}{
	"USD":  {},
	"USDT": {},
	"USDC": {},
}

var validate = validator.New()

// Config is the root of the parsed TOML document.
type Config struct {
	Main              Main               `toml:"main"`
	Server            Server             `toml:"server"`
	Oracle            Oracle             `toml:"oracle"`
	CurrencyPairs     []CurrencyPair     `toml:"currency_pairs"`
	Deviations        []Deviation        `toml:"deviation_thresholds"`
	Account           Account            `toml:"account"`
	Keyring           Keyring            `toml:"keyring"`
	RPC               RPC                `toml:"rpc"`
	Telemetry         Telemetry          `toml:"telemetry"`
	Gas               Gas                `toml:"gas"`
	ProviderEndpoints []ProviderEndpoint `toml:"provider_endpoints"`
	Healthchecks      []Healthchecks     `toml:"healthchecks"`
}

// Main toggles the feeder's two outer surfaces. Neither EnableServer (REST
// facade) nor anything it implies is wired by this module; the flag is
// carried for configuration-format compatibility only.
type Main struct {
	EnableVoting bool `toml:"enable_voting"`
	EnableServer bool `toml:"enable_server"`
}

// Oracle holds the pricing-pipeline settings specific to this module:
// target chain, submission cadence, and the pipeline's own bounds.
type Oracle struct {
	Network                string   `toml:"network"`
	RPCURL                 string   `toml:"rpc_url"`
	TargetContractID       string   `toml:"target_contract_id"`
	AdminSecretKey         string   `toml:"admin_secret_key"`
	UpdateIntervalMs       int64    `toml:"update_interval_ms"`
	MaxPriceDeviationPct   float64  `toml:"max_price_deviation_percent"`
	PriceStaleThresholdSec float64  `toml:"price_stale_threshold_seconds"`
	CacheTTLSeconds        int64    `toml:"cache_ttl_seconds"`
	LogLevel               string   `toml:"log_level"`
	Assets                 []string `toml:"assets"`
}

// Server configures the liveness/metrics listener. Like Main.EnableServer,
// carried for format compatibility; this module does not start an HTTP
// server of its own.
type Server struct {
	ListenAddress  string   `toml:"listen_addr"`
	ReadTimeout    string   `toml:"read_timeout"`
	WriteTimeout   string   `toml:"write_timeout"`
	EnableCORS     bool     `toml:"enable_cors"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// CurrencyPair is one asset the feeder prices, its on-chain denom, the
// currency it is quoted against, and which providers may serve it.
type CurrencyPair struct {
	Base       string   `toml:"base"`
	ChainDenom string   `toml:"chain_denom"`
	Quote      string   `toml:"quote"`
	Providers  []string `toml:"providers"`
}

// Deviation overrides the max deviation threshold for one asset.
type Deviation struct {
	Base      string `toml:"base"`
	Threshold string `toml:"threshold"`
}

// Account identifies the admin account the Submitter signs and votes with.
type Account struct {
	Address   string `toml:"address"`
	Validator string `toml:"validator"`
	ChainID   string `toml:"chain_id"`
	Prefix    string `toml:"prefix"`
}

// Keyring configures where and how the admin key is stored.
type Keyring struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	Pass    string `toml:"pass"`
}

// RPC configures the chain RPC/GRPC endpoints the Submitter's chain client
// talks to.
type RPC struct {
	TMRPCEndpoint string `toml:"tmrpc_endpoint"`
	GRPCEndpoint  string `toml:"grpc_endpoint"`
	RPCTimeout    string `toml:"rpc_timeout"`
}

// Telemetry configures the hashicorp/go-metrics sink the oracle reports
// through.
type Telemetry struct {
	ServiceName             string     `toml:"service_name"`
	Enabled                 bool       `toml:"enabled"`
	EnableHostname          bool       `toml:"enable_hostname"`
	EnableHostnameLabel     bool       `toml:"enable_hostname_label"`
	EnableServiceLabel      bool       `toml:"enable_service_label"`
	GlobalLabels            [][]string `toml:"global_labels"`
	PrometheusRetentionTime int64      `toml:"prometheus_retention"`
}

// Gas configures fee parameters for submitted transactions.
type Gas struct {
	GasAdjustment float64 `toml:"gas_adjustment"`
	GasPrices     string  `toml:"gas_prices"`
	GasLimit      uint64  `toml:"gas_limit"`
}

// ProviderEndpoint overrides a provider's default REST/websocket endpoints
// and timeout.
type ProviderEndpoint struct {
	Name      string `toml:"name" validate:"required"`
	Rest      string `toml:"rest" validate:"required"`
	Websocket string `toml:"websocket"`
	Timeout   string `toml:"timeout"`
}

// Healthchecks is one external ping target notified at the end of a
// successful supervisor cycle.
type Healthchecks struct {
	URL     string `toml:"url" validate:"required"`
	Timeout string `toml:"timeout" validate:"required"`
}

// Validate runs struct-level and field-level validation over a parsed
// Config.
func (c Config) Validate() error {
	if len(c.CurrencyPairs) == 0 {
		return errors.New("currency_pairs cannot be empty")
	}

	pairs := make(map[string]map[string]struct{})
	for _, p := range c.CurrencyPairs {
		if p.Base == "" {
			return errors.New("currency pair base cannot be empty")
		}
		if p.Quote == "" {
			return errors.New("currency pair quote cannot be empty")
		}
		if len(p.Providers) == 0 {
			return errors.Errorf("currency pair %s%s must have at least one provider", p.Base, p.Quote)
		}

		if _, ok := pairs[p.Base]; !ok {
			pairs[p.Base] = make(map[string]struct{})
		}
		for _, pr := range p.Providers {
			pairs[p.Base][pr] = struct{}{}
		}
	}

	for _, ep := range c.ProviderEndpoints {
		if err := validate.Struct(ep); err != nil {
			return errors.Wrapf(err, "invalid provider endpoint %s", ep.Name)
		}
		if !knownProvider(ep.Name) {
			return errors.Errorf("endpoint given for unknown provider: %s", ep.Name)
		}
	}

	for _, d := range c.Deviations {
		threshold, err := sdkmath.LegacyNewDecFromStr(d.Threshold)
		if err != nil {
			return errors.Wrapf(err, "invalid deviation threshold for %s", d.Base)
		}
		if threshold.GT(maxDeviationThreshold) {
			return errors.Errorf("deviation threshold for %s exceeds maximum of %s", d.Base, maxDeviationThreshold)
		}
	}

	return nil
}

func knownProvider(name string) bool {
	switch provider.Name(strings.ToLower(name)) {
	case provider.NameCoinGecko, provider.NameBinance, provider.NameOkx,
		provider.NameHuobi, provider.NameGate, provider.NameMock:
		return true
	default:
		return false
	}
}

// ParseConfig reads and validates the TOML file at configPath, filling in
// the package defaults for anything left unset.
func ParseConfig(configPath string) (Config, error) {
	var cfg Config

	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to decode config file")
	}

	applyDefaults(&cfg)

	quotesSeen := make(map[string]struct{})
	for _, p := range cfg.CurrencyPairs {
		quote := strings.ToUpper(p.Quote)
		if _, ok := supportedQuotes[quote]; !ok {
			return cfg, errors.Errorf("unsupported quote currency: %s", p.Quote)
		}
		quotesSeen[quote] = struct{}{}

		for _, pr := range p.Providers {
			if !knownProvider(pr) && pr != "" {
				if _, ok := endpointOverride(cfg, pr); !ok {
					// providers with neither a registered implementation nor
					// an explicit endpoint override are rejected unless they
					// are one of the recognised built-in provider names.
					if !isBuiltinProviderName(pr) {
						return cfg, errors.Errorf("%s is not a supported provider", pr)
					}
				}
			}
		}
	}

	hasMock := false
	for _, p := range cfg.CurrencyPairs {
		for _, pr := range p.Providers {
			if pr == string(provider.NameMock) {
				hasMock = true
			}
		}
	}
	for _, p := range cfg.CurrencyPairs {
		if len(p.Providers) < minimumProviderCount && !hasMock {
			return cfg, errors.Errorf("%s%s must have at least %d providers", p.Base, p.Quote, minimumProviderCount)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func isBuiltinProviderName(name string) bool {
	switch provider.Name(strings.ToLower(name)) {
	case provider.NameCoinGecko, provider.NameBinance, provider.NameMock,
		"kraken", "huobi", "okx", "gate", "coinbase", "crypto", "mexc":
		return true
	default:
		return false
	}
}

func endpointOverride(cfg Config, providerName string) (ProviderEndpoint, bool) {
	for _, ep := range cfg.ProviderEndpoints {
		if strings.EqualFold(ep.Name, providerName) {
			return ep, true
		}
	}
	return ProviderEndpoint{}, false
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = defaultListenAddr
	}
	if cfg.Server.ReadTimeout == "" {
		cfg.Server.ReadTimeout = defaultSrvReadTimeout.String()
	}
	if cfg.Server.WriteTimeout == "" {
		cfg.Server.WriteTimeout = defaultSrvWriteTimeout.String()
	}

	if cfg.Oracle.UpdateIntervalMs <= 0 {
		cfg.Oracle.UpdateIntervalMs = defaultUpdateIntervalMs
	}
	if cfg.Oracle.MaxPriceDeviationPct <= 0 {
		cfg.Oracle.MaxPriceDeviationPct = defaultMaxDeviationPct
	}
	if cfg.Oracle.PriceStaleThresholdSec <= 0 {
		cfg.Oracle.PriceStaleThresholdSec = defaultStaleThresholdSec
	}
	if cfg.Oracle.CacheTTLSeconds <= 0 {
		cfg.Oracle.CacheTTLSeconds = defaultCacheTTLSec
	}
	if cfg.Oracle.LogLevel == "" {
		cfg.Oracle.LogLevel = "info"
	}
	if len(cfg.Oracle.Assets) == 0 {
		cfg.Oracle.Assets = append([]string(nil), defaultAssets...)
	}

	if cfg.Gas.GasAdjustment <= 0 {
		cfg.Gas.GasAdjustment = 1.5
	}
}

// ProviderTimeout resolves the per-provider HTTP timeout: an explicit
// endpoint override, falling back to the package default.
func ProviderTimeout(providerName string, cfg Config) time.Duration {
	if ep, ok := endpointOverride(cfg, providerName); ok && ep.Timeout != "" {
		if d, err := time.ParseDuration(ep.Timeout); err == nil {
			return d
		}
	}
	return defaultProviderTimeout
}
