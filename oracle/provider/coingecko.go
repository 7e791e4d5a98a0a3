package provider

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

// coingeckoSymbols maps canonical asset symbols to CoinGecko's coin ids. An
// asset absent from this table is unsupported by this provider.
var coingeckoSymbols = map[string]string{
	"XLM":  "stellar",
	"USDC": "usd-coin",
	"USDT": "tether",
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
}

// CoinGecko fetches simple-price quotes from the CoinGecko REST API.
type CoinGecko struct {
	base
	vsCurrency string
}

// NewCoinGecko constructs a CoinGecko provider. cfg.BaseURL defaults to the
// public API root when empty.
func NewCoinGecko(cfg Config, logger zerolog.Logger) *CoinGecko {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.coingecko.com/api/v3"
	}
	cfg.Name = NameCoinGecko
	return &CoinGecko{base: newBase(cfg, logger), vsCurrency: "usd"}
}

type coingeckoResponse map[string]map[string]float64

func (p *CoinGecko) FetchOne(ctx context.Context, asset string) (types.RawPrice, error) {
	asset = types.CanonicalizeAsset(asset)
	id, ok := coingeckoSymbols[asset]
	if !ok {
		return types.RawPrice{}, assetUnsupported(p.Name(), asset)
	}

	url := p.cfg.BaseURL + "/simple/price?ids=" + id + "&vs_currencies=" + p.vsCurrency
	resp, err := p.doGet(ctx, url, asset)
	if err != nil {
		return types.RawPrice{}, err
	}
	defer resp.Body.Close()

	var payload coingeckoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return types.RawPrice{}, transportFailure(p.Name(), asset, err)
	}

	quote, ok := payload[id]
	if !ok {
		return types.RawPrice{}, transportFailure(p.Name(), asset, errMissingQuote(id))
	}
	price, ok := quote[p.vsCurrency]
	if !ok {
		return types.RawPrice{}, transportFailure(p.Name(), asset, errMissingQuote(id))
	}

	return types.RawPrice{
		Asset:     asset,
		Price:     price,
		Timestamp: time.Now().Unix(),
		Source:    string(p.Name()),
	}, nil
}

func (p *CoinGecko) FetchMany(ctx context.Context, assets []string) []types.RawPrice {
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

func (p *CoinGecko) HealthCheck(ctx context.Context) HealthStatus {
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

func errMissingQuote(id string) error {
	return &missingQuoteError{id: id}
}

type missingQuoteError struct{ id string }

func (e *missingQuoteError) Error() string {
	return "no quote returned for id " + e.id
}
