package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	// RedrawMs asks for STATE pushes at this interval; 0 means the server default.
	RedrawMs int `json:"redraw_ms,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	TickIntervalMs  int            `json:"tick_interval_ms"`
	Catalogs        CatalogDigests `json:"catalogs"`
	// Pending offline earnings, claimable with CLAIM_OFFLINE.
	OfflineEarnings     float64 `json:"offline_earnings"`
	OfflineEarningsText string  `json:"offline_earnings_text"`
}

type CatalogDigests struct {
	BusinessesDigest string `json:"businesses_digest"`
	UpgradesDigest   string `json:"upgrades_digest"`
	ShopDigest       string `json:"shop_digest"`
	TuningDigest     string `json:"tuning_digest,omitempty"`
}

// INTENT (client -> server)
type IntentMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Action          string `json:"action"`

	Index     *int             `json:"index,omitempty"`
	Category  string           `json:"category,omitempty"`
	UpgradeID string           `json:"upgrade_id,omitempty"`
	ItemID    string           `json:"item_id,omitempty"`
	Settings  *SettingsPayload `json:"settings,omitempty"`
	// Save carries the JSON save for IMPORT.
	Save json.RawMessage `json:"save,omitempty"`
}

type SettingsPayload struct {
	Sound    bool `json:"sound"`
	Music    bool `json:"music"`
	AutoSave bool `json:"auto_save"`
}

// RESULT (server -> client), one per INTENT.
type ResultMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ID              string  `json:"id"`
	Action          string  `json:"action"`
	OK              bool    `json:"ok"`
	Code            string  `json:"code,omitempty"`
	Message         string  `json:"message,omitempty"`
	Earned          float64 `json:"earned,omitempty"`
	// Cue names the sound to play ("click", "purchase", "prestige"), empty when muted.
	Cue  string          `json:"cue,omitempty"`
	Save json.RawMessage `json:"save,omitempty"`
}

// STATE (server -> client): everything needed to redraw.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Coins           float64 `json:"coins"`
	CoinsText       string  `json:"coins_text"`
	ClickPower      float64 `json:"click_power"`
	IncomePerSecond float64 `json:"income_per_second"`
	IncomeText      string  `json:"income_text"`

	Businesses []BusinessView           `json:"businesses"`
	Upgrades   map[string][]UpgradeView `json:"upgrades"`

	PrestigeTokens      int     `json:"prestige_tokens"`
	PrestigeCount       int     `json:"prestige_count"`
	PrestigeMultiplier  float64 `json:"prestige_multiplier"`
	PrestigeRequirement float64 `json:"prestige_requirement"`
	CanPrestige         bool    `json:"can_prestige"`

	Gems             float64         `json:"gems"`
	TotalCoinsEarned float64         `json:"total_coins_earned"`
	OfflineEarnings  float64         `json:"offline_earnings"`
	Settings         SettingsPayload `json:"settings"`
}

type BusinessView struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Emoji      string  `json:"emoji"`
	Owned      int     `json:"owned"`
	Cost       float64 `json:"cost"`
	CostText   string  `json:"cost_text"`
	Income     float64 `json:"income"`
	Unlocked   bool    `json:"unlocked"`
	Affordable bool    `json:"affordable"`
}

type UpgradeView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
	CostText    string  `json:"cost_text"`
	Purchased   bool    `json:"purchased"`
	Affordable  bool    `json:"affordable"`
}
