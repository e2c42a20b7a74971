package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickIntervalMs       int `yaml:"tick_interval_ms" json:"tick_interval_ms"`
	CheckpointIntervalMs int `yaml:"checkpoint_interval_ms" json:"checkpoint_interval_ms"`

	CostGrowth         float64 `yaml:"cost_growth" json:"cost_growth"`
	StartingClickPower float64 `yaml:"starting_click_power" json:"starting_click_power"`

	PrestigeBaseExponent  int     `yaml:"prestige_base_exponent" json:"prestige_base_exponent"`
	PrestigeBonusPerToken float64 `yaml:"prestige_bonus_per_token" json:"prestige_bonus_per_token"`

	LuckyClickChance     float64 `yaml:"lucky_click_chance" json:"lucky_click_chance"`
	LuckyClickMultiplier float64 `yaml:"lucky_click_multiplier" json:"lucky_click_multiplier"`

	OfflineCapSeconds int `yaml:"offline_cap_seconds" json:"offline_cap_seconds"`
}

func Defaults() Tuning {
	return Tuning{
		TickIntervalMs:        1000,
		CheckpointIntervalMs:  10000,
		CostGrowth:            1.5,
		StartingClickPower:    1,
		PrestigeBaseExponent:  6,
		PrestigeBonusPerToken: 0.01,
		LuckyClickChance:      0.05,
		LuckyClickMultiplier:  2,
		OfflineCapSeconds:     12 * 60 * 60,
	}
}

// Load reads a tuning.yaml. Keys absent from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickIntervalMs <= 0 {
		return fmt.Errorf("tick_interval_ms must be > 0")
	}
	if t.CheckpointIntervalMs <= 0 {
		return fmt.Errorf("checkpoint_interval_ms must be > 0")
	}
	if t.CostGrowth < 1 {
		return fmt.Errorf("cost_growth must be >= 1")
	}
	if t.StartingClickPower <= 0 {
		return fmt.Errorf("starting_click_power must be > 0")
	}
	if t.PrestigeBonusPerToken < 0 {
		return fmt.Errorf("prestige_bonus_per_token must be >= 0")
	}
	if t.LuckyClickChance < 0 || t.LuckyClickChance > 1 {
		return fmt.Errorf("lucky_click_chance must be within [0,1]")
	}
	if t.LuckyClickMultiplier < 1 {
		return fmt.Errorf("lucky_click_multiplier must be >= 1")
	}
	if t.OfflineCapSeconds < 0 {
		return fmt.Errorf("offline_cap_seconds must be >= 0")
	}
	return nil
}

func (t Tuning) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalMs) * time.Millisecond
}

func (t Tuning) CheckpointInterval() time.Duration {
	return time.Duration(t.CheckpointIntervalMs) * time.Millisecond
}

func (t Tuning) OfflineCap() time.Duration {
	return time.Duration(t.OfflineCapSeconds) * time.Second
}

// Digest is the sha256 of the canonical JSON form, reported to clients and
// stored next to the catalogs.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
