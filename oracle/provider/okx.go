package provider

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

// okxSymbols maps canonical asset symbols to the quote-currency-qualified
// instrument id OKX expects, e.g. "BTC-USDT".
var okxSymbols = map[string]string{
	"XLM":  "XLM-USDT",
	"USDC": "USDC-USDT",
	"BTC":  "BTC-USDT",
	"ETH":  "ETH-USDT",
}

// Okx fetches ticker prices from OKX's public REST API.
type Okx struct {
	base
}

func NewOkx(cfg Config, logger zerolog.Logger) *Okx {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.okx.com"
	}
	cfg.Name = NameOkx
	return &Okx{base: newBase(cfg, logger)}
}

type okxTickerResponse struct {
	Data []struct {
		InstID string `json:"instId"`
		Last   string `json:"last"`
	} `json:"data"`
}

func (p *Okx) FetchOne(ctx context.Context, asset string) (types.RawPrice, error) {
	asset = types.CanonicalizeAsset(asset)
	instID, ok := okxSymbols[asset]
	if !ok {
		return types.RawPrice{}, assetUnsupported(p.Name(), asset)
	}

	url := p.cfg.BaseURL + "/api/v5/market/ticker?instId=" + instID
	resp, err := p.doGet(ctx, url, asset)
	if err != nil {
		return types.RawPrice{}, err
	}
	defer resp.Body.Close()

	var payload okxTickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return types.RawPrice{}, transportFailure(p.Name(), asset, err)
	}
	if len(payload.Data) == 0 {
		return types.RawPrice{}, transportFailure(p.Name(), asset, errMissingQuote(instID))
	}

	price, err := strconv.ParseFloat(payload.Data[0].Last, 64)
	if err != nil {
		return types.RawPrice{}, transportFailure(p.Name(), asset, err)
	}

	return types.RawPrice{Asset: asset, Price: price, Timestamp: time.Now().Unix(), Source: string(p.Name())}, nil
}

func (p *Okx) FetchMany(ctx context.Context, assets []string) []types.RawPrice {
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

func (p *Okx) HealthCheck(ctx context.Context) HealthStatus {
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
