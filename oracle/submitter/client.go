package submitter

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/tx"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authclient "github.com/cosmos/cosmos-sdk/x/auth/client"
	"github.com/pkg/errors"
)

// TxStatus is the on-chain lifecycle state of a submitted transaction, as
// observed by polling.
type TxStatus string

const (
	TxStatusNotFound TxStatus = "not_found"
	TxStatusPending  TxStatus = "pending"
	TxStatusSuccess  TxStatus = "success"
	TxStatusFailed   TxStatus = "failed"
)

// PriceUpdate is one asset/price pair to submit in a set_asset_price call.
type PriceUpdate struct {
	Asset       string
	ScaledPrice int64
	Timestamp   int64
}

// ChainClient is the transport the Submitter drives. It is intentionally
// narrow: build, sign, broadcast and poll, with nothing asset-specific
// baked in, matching the separation between the client and the component
// that decides what to submit.
type ChainClient interface {
	// Simulate estimates gas for msgs without broadcasting.
	Simulate(ctx context.Context, msgs []sdk.Msg) (gasUsed uint64, err error)

	// SignAndBroadcast builds, signs on the admin account's current
	// sequence, and broadcasts msgs. It returns the tx hash.
	SignAndBroadcast(ctx context.Context, msgs []sdk.Msg, gasLimit uint64) (txHash string, err error)

	// TxStatus polls the chain once for txHash's current status.
	TxStatus(ctx context.Context, txHash string) (TxStatus, error)

	// Ping performs a cheap liveness probe (e.g. a node status query)
	// without submitting anything.
	Ping(ctx context.Context) error
}

// CosmosClient is a ChainClient backed by a cosmos-sdk client.Context,
// grounded on the teacher's oracleClient.BroadcastTx usage.
type CosmosClient struct {
	clientCtx   client.Context
	txConfig    client.TxConfig
	gasAdjust   float64
	contractID  string
	adminSecret string
}

// CosmosClientConfig configures a CosmosClient.
type CosmosClientConfig struct {
	ClientCtx   client.Context
	GasAdjust   float64
	ContractID  string
	AdminSecret string
}

// NewCosmosClient constructs a CosmosClient.
func NewCosmosClient(cfg CosmosClientConfig) *CosmosClient {
	gasAdjust := cfg.GasAdjust
	if gasAdjust <= 0 {
		gasAdjust = 1.5
	}
	return &CosmosClient{
		clientCtx:   cfg.ClientCtx,
		txConfig:    cfg.ClientCtx.TxConfig,
		gasAdjust:   gasAdjust,
		contractID:  cfg.ContractID,
		adminSecret: cfg.AdminSecret,
	}
}

func (c *CosmosClient) Simulate(ctx context.Context, msgs []sdk.Msg) (uint64, error) {
	txf, err := c.txFactory(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to build tx factory for simulation")
	}

	_, gas, err := tx.CalculateGas(c.clientCtx, txf, msgs...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to simulate transaction")
	}

	adjusted := sdkmath.LegacyNewDec(int64(gas)).MulInt64(int64(c.gasAdjust * 100)).QuoInt64(100)
	return adjusted.TruncateInt().Uint64(), nil
}

func (c *CosmosClient) SignAndBroadcast(ctx context.Context, msgs []sdk.Msg, gasLimit uint64) (string, error) {
	txf, err := c.txFactory(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to build tx factory")
	}
	txf = txf.WithGas(gasLimit)

	txBuilder, err := txf.BuildUnsignedTx(msgs...)
	if err != nil {
		return "", errors.Wrap(err, "failed to build unsigned transaction")
	}

	if err := tx.Sign(ctx, txf, c.clientCtx.GetFromName(), txBuilder, true); err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}

	txBytes, err := c.txConfig.TxEncoder()(txBuilder.GetTx())
	if err != nil {
		return "", errors.Wrap(err, "failed to encode transaction")
	}

	res, err := c.clientCtx.BroadcastTx(txBytes)
	if err != nil {
		return "", errors.Wrap(err, "failed to broadcast transaction")
	}
	if res.Code != 0 {
		return "", errors.Errorf("transaction rejected by node: code=%d log=%s", res.Code, res.RawLog)
	}

	return res.TxHash, nil
}

func (c *CosmosClient) TxStatus(ctx context.Context, txHash string) (TxStatus, error) {
	res, err := authclient.QueryTx(c.clientCtx, txHash)
	if err != nil {
		return TxStatusNotFound, nil
	}
	if res.Code != 0 {
		return TxStatusFailed, nil
	}
	return TxStatusSuccess, nil
}

func (c *CosmosClient) Ping(ctx context.Context) error {
	_, err := c.clientCtx.Client.Status(ctx)
	return errors.Wrap(err, "health probe failed")
}

func (c *CosmosClient) txFactory(ctx context.Context) (tx.Factory, error) {
	txf := tx.Factory{}.
		WithTxConfig(c.txConfig).
		WithAccountRetriever(c.clientCtx.AccountRetriever).
		WithKeybase(c.clientCtx.Keyring).
		WithChainID(c.clientCtx.ChainID)

	accNum, seq, err := c.clientCtx.AccountRetriever.GetAccountNumberSequence(c.clientCtx, c.clientCtx.GetFromAddress())
	if err != nil {
		return txf, err
	}
	return txf.WithAccountNumber(accNum).WithSequence(seq), nil
}

// TxDeadline bounds how long a single build-sign-broadcast attempt may
// take.
const TxDeadline = 30 * time.Second
