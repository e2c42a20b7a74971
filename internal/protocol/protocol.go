package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeIntent  = "INTENT"
	TypeResult  = "RESULT"
	TypeState   = "STATE"
)

// Intent actions.
const (
	ActionClick        = "CLICK"
	ActionBuyBusiness  = "BUY_BUSINESS"
	ActionBuyUpgrade   = "BUY_UPGRADE"
	ActionPrestige     = "PRESTIGE"
	ActionClaimOffline = "CLAIM_OFFLINE"
	ActionSetSettings  = "SET_SETTINGS"
	ActionExport       = "EXPORT"
	ActionImport       = "IMPORT"
	ActionReset        = "RESET"
	ActionBuyShop      = "BUY_SHOP"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
