package provider

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

// binanceSymbols maps canonical asset symbols to Binance ticker symbols,
// quoted in USDT per the default asset set.
var binanceSymbols = map[string]string{
	"XLM":  "XLMUSDT",
	"USDC": "USDCUSDT",
	"BTC":  "BTCUSDT",
	"ETH":  "ETHUSDT",
	// USDT has no USDT-quoted pair on Binance; left unmapped deliberately.
}

// Binance fetches ticker prices from Binance's public REST API.
type Binance struct {
	base
}

// NewBinance constructs a Binance provider. cfg.BaseURL defaults to the
// public API root when empty.
func NewBinance(cfg Config, logger zerolog.Logger) *Binance {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.binance.com"
	}
	cfg.Name = NameBinance
	return &Binance{base: newBase(cfg, logger)}
}

type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (p *Binance) FetchOne(ctx context.Context, asset string) (types.RawPrice, error) {
	asset = types.CanonicalizeAsset(asset)
	symbol, ok := binanceSymbols[asset]
	if !ok {
		return types.RawPrice{}, assetUnsupported(p.Name(), asset)
	}

	url := p.cfg.BaseURL + "/api/v3/ticker/price?symbol=" + symbol
	resp, err := p.doGet(ctx, url, asset)
	if err != nil {
		return types.RawPrice{}, err
	}
	defer resp.Body.Close()

	var ticker binanceTicker
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return types.RawPrice{}, transportFailure(p.Name(), asset, err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return types.RawPrice{}, transportFailure(p.Name(), asset, err)
	}

	return types.RawPrice{
		Asset:     asset,
		Price:     price,
		Timestamp: time.Now().Unix(),
		Source:    string(p.Name()),
	}, nil
}

func (p *Binance) FetchMany(ctx context.Context, assets []string) []types.RawPrice {
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

func (p *Binance) HealthCheck(ctx context.Context) HealthStatus {
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
