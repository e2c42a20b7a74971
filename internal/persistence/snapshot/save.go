package snapshot

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Version is written into every save produced by this build. Saves without a
// version field predate it and are read as version 1.
const Version = 1

// ErrMalformed marks external input (a save or an import file) that could not
// be parsed or does not match the save schema.
var ErrMalformed = errors.New("malformed save")

//go:embed save.schema.json
var saveSchemaJSON string

var saveSchema = jsonschema.MustCompileString("save.schema.json", saveSchemaJSON)

// SaveV1 is the serialized game state. Field names follow the JSON written by
// the browser build so its saves stay importable. Top-level pointer fields are
// nil when absent from the input; absent fields keep fresh-state defaults on
// import.
type SaveV1 struct {
	Version int `json:"version,omitempty"`

	Coins           *float64 `json:"coins,omitempty"`
	ClickPower      *float64 `json:"clickPower,omitempty"`
	IncomePerSecond *float64 `json:"incomePerSecond,omitempty"`

	Businesses []BusinessV1 `json:"businesses,omitempty"`
	Upgrades   *UpgradesV1  `json:"upgrades,omitempty"`

	PrestigeTokens     *int     `json:"prestigeTokens,omitempty"`
	PrestigeCount      *int     `json:"prestigeCount,omitempty"`
	PrestigeMultiplier *float64 `json:"prestigeMultiplier,omitempty"`
	Gems               *float64 `json:"gems,omitempty"`
	TotalCoinsEarned   *float64 `json:"totalCoinsEarned,omitempty"`

	// LastSaveTime is unix milliseconds.
	LastSaveTime    *int64   `json:"lastSaveTime,omitempty"`
	OfflineEarnings *float64 `json:"offlineEarnings,omitempty"`

	Settings *SettingsV1 `json:"settings,omitempty"`

	CostMultiplier   *float64 `json:"costMultiplier,omitempty"`
	LuckyChance      *bool    `json:"luckyChance,omitempty"`
	TimeWarpUnlocked *bool    `json:"timeWarpUnlocked,omitempty"`
}

type BusinessV1 struct {
	ID          int      `json:"id"`
	Name        string   `json:"name,omitempty"`
	Emoji       string   `json:"emoji,omitempty"`
	BaseCost    float64  `json:"baseCost,omitempty"`
	BaseIncome  *float64 `json:"baseIncome,omitempty"`
	UnlockedAt  int      `json:"unlockedAt"`
	Owned       int      `json:"owned"`
	CurrentCost float64  `json:"currentCost,omitempty"`
}

type UpgradesV1 struct {
	Click    []UpgradeV1 `json:"click"`
	Business []UpgradeV1 `json:"business"`
	Special  []UpgradeV1 `json:"special"`
}

type UpgradeV1 struct {
	ID          string  `json:"id"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Cost        float64 `json:"cost,omitempty"`
	Purchased   bool    `json:"purchased"`
}

type SettingsV1 struct {
	Sound    bool `json:"sound"`
	Music    bool `json:"music"`
	AutoSave bool `json:"autoSave"`
}

// Decode parses and validates an external save. Any failure wraps ErrMalformed.
func Decode(raw []byte) (SaveV1, error) {
	var save SaveV1

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return save, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if dec.More() {
		return save, fmt.Errorf("%w: trailing data after save object", ErrMalformed)
	}
	if err := saveSchema.Validate(doc); err != nil {
		return save, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(raw, &save); err != nil {
		return save, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if save.Version == 0 {
		save.Version = Version
	}
	if save.Version != Version {
		return save, fmt.Errorf("%w: unsupported save version %d", ErrMalformed, save.Version)
	}
	return save, nil
}

func Encode(save SaveV1) ([]byte, error) {
	return json.Marshal(save)
}

// EncodeIndent produces the human-readable form used for export files.
func EncodeIndent(save SaveV1) ([]byte, error) {
	return json.MarshalIndent(save, "", "  ")
}
