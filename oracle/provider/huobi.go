package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

// huobiSymbols maps canonical asset symbols to Huobi's lowercase
// concatenated ticker symbol, e.g. "btcusdt".
var huobiSymbols = map[string]string{
	"XLM":  "xlmusdt",
	"USDC": "usdcusdt",
	"BTC":  "btcusdt",
	"ETH":  "ethusdt",
}

// Huobi fetches ticker prices from Huobi's public REST API.
type Huobi struct {
	base
}

func NewHuobi(cfg Config, logger zerolog.Logger) *Huobi {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.huobi.pro"
	}
	cfg.Name = NameHuobi
	return &Huobi{base: newBase(cfg, logger)}
}

type huobiTickerResponse struct {
	Tick struct {
		Close float64 `json:"close"`
	} `json:"tick"`
}

func (p *Huobi) FetchOne(ctx context.Context, asset string) (types.RawPrice, error) {
	asset = types.CanonicalizeAsset(asset)
	symbol, ok := huobiSymbols[asset]
	if !ok {
		return types.RawPrice{}, assetUnsupported(p.Name(), asset)
	}

	url := p.cfg.BaseURL + "/market/detail/merged?symbol=" + symbol
	resp, err := p.doGet(ctx, url, asset)
	if err != nil {
		return types.RawPrice{}, err
	}
	defer resp.Body.Close()

	var payload huobiTickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return types.RawPrice{}, transportFailure(p.Name(), asset, err)
	}
	if payload.Tick.Close <= 0 {
		return types.RawPrice{}, transportFailure(p.Name(), asset, errMissingQuote(symbol))
	}

	return types.RawPrice{Asset: asset, Price: payload.Tick.Close, Timestamp: time.Now().Unix(), Source: string(p.Name())}, nil
}

func (p *Huobi) FetchMany(ctx context.Context, assets []string) []types.RawPrice {
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

func (p *Huobi) HealthCheck(ctx context.Context) HealthStatus {
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
