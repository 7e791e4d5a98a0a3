package provider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kiichain/oracle-price-feeder/oracle/provider"
)

func TestOkx_FetchOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v5/market/ticker?instId=BTC-USDT", r.URL.RequestURI())
		w.Write([]byte(`{"data":[{"instId":"BTC-USDT","last":"64000.5"}]}`))
	}))
	defer srv.Close()

	p := provider.NewOkx(provider.Config{Enabled: true, BaseURL: srv.URL}, zerolog.Nop())
	price, err := p.FetchOne(context.Background(), "btc")
	require.NoError(t, err)
	require.Equal(t, 64000.5, price.Price)
}

func TestOkx_FetchOneNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	p := provider.NewOkx(provider.Config{Enabled: true, BaseURL: srv.URL}, zerolog.Nop())
	_, err := p.FetchOne(context.Background(), "btc")
	require.Error(t, err)
}
