package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed data/*.json
var builtin embed.FS

type Catalogs struct {
	Businesses BusinessCatalog
	Upgrades   UpgradeCatalog
	Shop       ShopCatalog
}

type BusinessCatalog struct {
	Defs   []BusinessDef
	Digest string
}

// BusinessDef is one row of the business table. Order is significant: it is
// both the display order and the unlock-dependency order.
type BusinessDef struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Emoji      string  `json:"emoji"`
	BaseCost   float64 `json:"base_cost"`
	BaseIncome float64 `json:"base_income"`
	UnlockedAt int     `json:"unlocked_at"`
}

type Category string

const (
	CategoryClick    Category = "click"
	CategoryBusiness Category = "business"
	CategorySpecial  Category = "special"
)

// Categories returns upgrade categories in display order.
func Categories() []Category {
	return []Category{CategoryClick, CategoryBusiness, CategorySpecial}
}

func (c Category) Valid() bool {
	switch c {
	case CategoryClick, CategoryBusiness, CategorySpecial:
		return true
	}
	return false
}

type EffectKind string

const (
	EffectMultiplyClickPower EffectKind = "MULTIPLY_CLICK_POWER"
	EffectAddClickPower      EffectKind = "ADD_CLICK_POWER"
	EffectMultiplyAllIncome  EffectKind = "MULTIPLY_ALL_INCOME"
	EffectMultiplyCost       EffectKind = "MULTIPLY_COST"
	EffectEnableLuckyClick   EffectKind = "ENABLE_LUCKY_CLICK"
	EffectEnableTimedBonus   EffectKind = "ENABLE_TIMED_BONUS"
)

// Effect is a tagged variant; Factor or Amount is read depending on Kind.
type Effect struct {
	Kind   EffectKind `json:"kind"`
	Factor float64    `json:"factor,omitempty"`
	Amount float64    `json:"amount,omitempty"`
}

func (e Effect) Validate() error {
	switch e.Kind {
	case EffectMultiplyClickPower, EffectMultiplyAllIncome, EffectMultiplyCost:
		if e.Factor <= 0 {
			return fmt.Errorf("effect %s: factor must be > 0", e.Kind)
		}
	case EffectAddClickPower:
		if e.Amount <= 0 {
			return fmt.Errorf("effect %s: amount must be > 0", e.Kind)
		}
	case EffectEnableLuckyClick, EffectEnableTimedBonus:
	default:
		return fmt.Errorf("unknown effect kind %q", e.Kind)
	}
	return nil
}

type UpgradeCatalog struct {
	ByCategory map[Category][]UpgradeDef
	Digest     string
}

type UpgradeDef struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Cost        float64 `json:"cost"`
	Effect      Effect  `json:"effect"`
}

type ShopCatalog struct {
	Gems    []ShopItem `json:"gems"`
	Premium []ShopItem `json:"premium"`
	Digest  string     `json:"-"`
}

// ShopItem is display metadata only. Buying one never changes game state.
type ShopItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Gems        int    `json:"gems,omitempty"`
}

// Default returns the built-in catalogs.
func Default() (*Catalogs, error) {
	return Load("")
}

// MustDefault is Default for callers that cannot recover from a broken binary.
func MustDefault() *Catalogs {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads businesses.json, upgrades.json and shop.json from configDir.
// Tables missing from the directory (or an empty configDir) fall back to the
// built-in copies.
func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	raw, err := readTable(configDir, "businesses.json")
	if err != nil {
		return nil, err
	}
	if err := loadBusinesses(raw, &c.Businesses); err != nil {
		return nil, err
	}

	raw, err = readTable(configDir, "upgrades.json")
	if err != nil {
		return nil, err
	}
	if err := loadUpgrades(raw, &c.Upgrades); err != nil {
		return nil, err
	}

	raw, err = readTable(configDir, "shop.json")
	if err != nil {
		return nil, err
	}
	if err := loadShop(raw, &c.Shop); err != nil {
		return nil, err
	}
	return &c, nil
}

// Business returns the definition at catalog index i.
func (c *Catalogs) Business(i int) (BusinessDef, bool) {
	if c == nil || i < 0 || i >= len(c.Businesses.Defs) {
		return BusinessDef{}, false
	}
	return c.Businesses.Defs[i], true
}

func (c *Catalogs) Upgrade(cat Category, id string) (UpgradeDef, bool) {
	if c == nil {
		return UpgradeDef{}, false
	}
	for _, u := range c.Upgrades.ByCategory[cat] {
		if u.ID == id {
			return u, true
		}
	}
	return UpgradeDef{}, false
}

func (c *Catalogs) ShopItem(id string) (ShopItem, bool) {
	if c == nil {
		return ShopItem{}, false
	}
	for _, group := range [][]ShopItem{c.Shop.Gems, c.Shop.Premium} {
		for _, it := range group {
			if it.ID == id {
				return it, true
			}
		}
	}
	return ShopItem{}, false
}

func readTable(configDir, name string) ([]byte, error) {
	if configDir != "" {
		b, err := os.ReadFile(filepath.Join(configDir, name))
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return builtin.ReadFile("data/" + name)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBusinesses(raw []byte, out *BusinessCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []BusinessDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("businesses.json: %w", err)
	}
	if len(defs) == 0 {
		return fmt.Errorf("businesses.json: empty table")
	}
	for i, d := range defs {
		if d.ID != i {
			return fmt.Errorf("businesses.json: entry %d has id %d (ids must follow table order)", i, d.ID)
		}
		if d.Name == "" {
			return fmt.Errorf("businesses.json: entry %d: empty name", i)
		}
		if d.BaseCost <= 0 || d.BaseIncome <= 0 {
			return fmt.Errorf("businesses.json: %s: base_cost and base_income must be > 0", d.Name)
		}
		if d.UnlockedAt < 0 {
			return fmt.Errorf("businesses.json: %s: negative unlocked_at", d.Name)
		}
	}
	out.Defs = defs
	return nil
}

func loadUpgrades(raw []byte, out *UpgradeCatalog) error {
	out.Digest = sha256Hex(raw)

	var byCat map[Category][]UpgradeDef
	if err := json.Unmarshal(raw, &byCat); err != nil {
		return fmt.Errorf("upgrades.json: %w", err)
	}
	for cat, defs := range byCat {
		if !cat.Valid() {
			return fmt.Errorf("upgrades.json: unknown category %q", cat)
		}
		seen := map[string]struct{}{}
		for _, u := range defs {
			if u.ID == "" {
				return fmt.Errorf("upgrades.json: %s: empty id", cat)
			}
			if _, dup := seen[u.ID]; dup {
				return fmt.Errorf("upgrades.json: %s: duplicate id %q", cat, u.ID)
			}
			seen[u.ID] = struct{}{}
			if u.Cost < 0 {
				return fmt.Errorf("upgrades.json: %s: negative cost", u.ID)
			}
			if err := u.Effect.Validate(); err != nil {
				return fmt.Errorf("upgrades.json: %s: %w", u.ID, err)
			}
		}
	}
	for _, cat := range Categories() {
		if _, ok := byCat[cat]; !ok {
			byCat[cat] = nil
		}
	}
	out.ByCategory = byCat
	return nil
}

func loadShop(raw []byte, out *ShopCatalog) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("shop.json: %w", err)
	}
	out.Digest = sha256Hex(raw)
	return nil
}
