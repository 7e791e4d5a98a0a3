package provider

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

// gateSymbols maps canonical asset symbols to Gate.io's underscore-joined
// currency pair, e.g. "BTC_USDT".
var gateSymbols = map[string]string{
	"XLM":  "XLM_USDT",
	"USDC": "USDC_USDT",
	"BTC":  "BTC_USDT",
	"ETH":  "ETH_USDT",
}

// Gate fetches ticker prices from Gate.io's public REST API.
type Gate struct {
	base
}

func NewGate(cfg Config, logger zerolog.Logger) *Gate {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.gateio.ws"
	}
	cfg.Name = NameGate
	return &Gate{base: newBase(cfg, logger)}
}

type gateTicker struct {
	CurrencyPair string `json:"currency_pair"`
	Last         string `json:"last"`
}

func (p *Gate) FetchOne(ctx context.Context, asset string) (types.RawPrice, error) {
	asset = types.CanonicalizeAsset(asset)
	pair, ok := gateSymbols[asset]
	if !ok {
		return types.RawPrice{}, assetUnsupported(p.Name(), asset)
	}

	url := p.cfg.BaseURL + "/api/v4/spot/tickers?currency_pair=" + pair
	resp, err := p.doGet(ctx, url, asset)
	if err != nil {
		return types.RawPrice{}, err
	}
	defer resp.Body.Close()

	var tickers []gateTicker
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return types.RawPrice{}, transportFailure(p.Name(), asset, err)
	}
	if len(tickers) == 0 {
		return types.RawPrice{}, transportFailure(p.Name(), asset, errMissingQuote(pair))
	}

	price, err := strconv.ParseFloat(tickers[0].Last, 64)
	if err != nil {
		return types.RawPrice{}, transportFailure(p.Name(), asset, err)
	}

	return types.RawPrice{Asset: asset, Price: price, Timestamp: time.Now().Unix(), Source: string(p.Name())}, nil
}

func (p *Gate) FetchMany(ctx context.Context, assets []string) []types.RawPrice {
	out := make([]types.RawPrice, 0, len(assets))
	for _, asset := range assets {
		price, err := p.FetchOne(ctx, asset)
		if err != nil {
			p.logger.Debug().Err(err).Str("asset", asset).Msg("fetch failed")
			continue
		}
		out = append(out, price)
	}
	return out
}

func (p *Gate) HealthCheck(ctx context.Context) HealthStatus {
	start := time.Now()
	_, err := p.FetchOne(ctx, "BTC")
	status := HealthStatus{LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Healthy = true
	return status
}
