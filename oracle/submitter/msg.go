package submitter

import (
	"fmt"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// setAssetPriceMsg is the wire message for the set_asset_price call
// described in the external interface contract: admin, asset symbol,
// scaled price, and timestamp. It implements the minimal proto.Message
// surface sdk.Msg requires so it can be carried through Simulate and
// SignAndBroadcast without depending on a generated protobuf type for a
// target contract this module does not own.
type setAssetPriceMsg struct {
	Admin       string `json:"admin"`
	ContractID  string `json:"contract_id"`
	Asset       string `json:"asset_symbol"`
	ScaledPrice int64  `json:"scaled_price"`
	Timestamp   int64  `json:"timestamp"`
}

func newSetAssetPriceMsg(admin, contractID string, update PriceUpdate) *setAssetPriceMsg {
	return &setAssetPriceMsg{
		Admin:       admin,
		ContractID:  contractID,
		Asset:       update.Asset,
		ScaledPrice: update.ScaledPrice,
		Timestamp:   update.Timestamp,
	}
}

func (m *setAssetPriceMsg) Reset() { *m = setAssetPriceMsg{} }

func (m *setAssetPriceMsg) String() string {
	return fmt.Sprintf("set_asset_price{admin=%s contract=%s asset=%s price=%d ts=%d}",
		m.Admin, m.ContractID, m.Asset, m.ScaledPrice, m.Timestamp)
}

func (m *setAssetPriceMsg) ProtoMessage() {}

// GetSigners implements sdk.Msg. Assumes Admin is a valid bech32 address;
// a malformed admin address surfaces as a zero-value signer rather than a
// panic here.
func (m *setAssetPriceMsg) GetSigners() []sdk.AccAddress {
	admin, _ := sdk.AccAddressFromBech32(m.Admin)
	return []sdk.AccAddress{admin}
}
