package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kiichain/oracle-price-feeder/oracle/provider"
)

func TestMockProvider_FetchOne(t *testing.T) {
	m := provider.NewMockProvider(provider.Config{Enabled: true}, zerolog.Nop())
	m.SetPrice("BTC", 50000.5)

	price, err := m.FetchOne(context.Background(), "btc")
	require.NoError(t, err)
	require.Equal(t, "BTC", price.Asset)
	require.Equal(t, 50000.5, price.Price)
	require.Equal(t, "mock", price.Source)
}

func TestMockProvider_FetchOneUnsupportedAsset(t *testing.T) {
	m := provider.NewMockProvider(provider.Config{Enabled: true}, zerolog.Nop())

	_, err := m.FetchOne(context.Background(), "XYZ")
	require.Error(t, err)
	var perr *provider.Error
	require.True(t, errors.As(err, &perr))
	require.Equal(t, provider.ErrAssetUnsupported, perr.Kind)
}

func TestMockProvider_FetchOneForcedFailure(t *testing.T) {
	m := provider.NewMockProvider(provider.Config{Enabled: true}, zerolog.Nop())
	m.SetPrice("BTC", 50000)
	m.SetFailure("BTC", errors.New("simulated upstream failure"))

	_, err := m.FetchOne(context.Background(), "BTC")
	require.Error(t, err)

	m.SetFailure("BTC", nil)
	price, err := m.FetchOne(context.Background(), "BTC")
	require.NoError(t, err)
	require.Equal(t, 50000.0, price.Price)
}

func TestMockProvider_FetchMany(t *testing.T) {
	m := provider.NewMockProvider(provider.Config{Enabled: true}, zerolog.Nop())
	m.SetPrice("BTC", 50000)
	m.SetPrice("ETH", 3000)

	prices := m.FetchMany(context.Background(), []string{"BTC", "ETH", "XLM"})
	require.Len(t, prices, 2)
}

func TestMockProvider_HealthCheck(t *testing.T) {
	m := provider.NewMockProvider(provider.Config{Enabled: true}, zerolog.Nop())
	require.True(t, m.HealthCheck(context.Background()).Healthy)

	m.SetHealthy(false)
	require.False(t, m.HealthCheck(context.Background()).Healthy)
}
