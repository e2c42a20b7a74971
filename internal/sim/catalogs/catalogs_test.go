package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_LoadsBuiltinTables(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if got := len(c.Businesses.Defs); got != 10 {
		t.Fatalf("businesses=%d want 10", got)
	}
	first := c.Businesses.Defs[0]
	if first.Name != "Lemonade Stand" || first.BaseCost != 10 || first.BaseIncome != 1 || first.UnlockedAt != 0 {
		t.Fatalf("unexpected first business: %+v", first)
	}
	if got := len(c.Upgrades.ByCategory[CategoryClick]); got != 4 {
		t.Fatalf("click upgrades=%d want 4", got)
	}
	if got := len(c.Upgrades.ByCategory[CategoryBusiness]); got != 3 {
		t.Fatalf("business upgrades=%d want 3", got)
	}
	if got := len(c.Upgrades.ByCategory[CategorySpecial]); got != 2 {
		t.Fatalf("special upgrades=%d want 2", got)
	}
	if c.Businesses.Digest == "" || c.Upgrades.Digest == "" || c.Shop.Digest == "" {
		t.Fatalf("expected digests to be set")
	}
	if len(c.Shop.Gems) != 3 || len(c.Shop.Premium) != 3 {
		t.Fatalf("shop gems=%d premium=%d", len(c.Shop.Gems), len(c.Shop.Premium))
	}
}

func TestUpgradeLookup(t *testing.T) {
	c := MustDefault()

	u, ok := c.Upgrade(CategoryClick, "goldenFinger")
	if !ok {
		t.Fatalf("goldenFinger not found")
	}
	if u.Effect.Kind != EffectAddClickPower || u.Effect.Amount != 5 {
		t.Fatalf("unexpected effect: %+v", u.Effect)
	}
	if _, ok := c.Upgrade(CategoryBusiness, "goldenFinger"); ok {
		t.Fatalf("lookup must be scoped to category")
	}
	if _, ok := c.Business(10); ok {
		t.Fatalf("index out of range must miss")
	}
	if it, ok := c.ShopItem("goldenPass"); !ok || it.Price != "$4.99/month" {
		t.Fatalf("shop lookup: %+v ok=%v", it, ok)
	}
}

func TestLoad_OverrideDirFallsBackPerTable(t *testing.T) {
	dir := t.TempDir()
	biz := `[{"id":0,"name":"Stall","emoji":"x","base_cost":5,"base_income":2,"unlocked_at":0}]`
	if err := os.WriteFile(filepath.Join(dir, "businesses.json"), []byte(biz), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Businesses.Defs) != 1 || c.Businesses.Defs[0].Name != "Stall" {
		t.Fatalf("override not applied: %+v", c.Businesses.Defs)
	}
	if len(c.Upgrades.ByCategory[CategoryClick]) != 4 {
		t.Fatalf("upgrades should fall back to builtin")
	}
}

func TestLoad_RejectsBadTables(t *testing.T) {
	cases := map[string]struct {
		file string
		body string
		want string
	}{
		"id out of order": {
			file: "businesses.json",
			body: `[{"id":1,"name":"A","base_cost":1,"base_income":1}]`,
			want: "ids must follow table order",
		},
		"zero income": {
			file: "businesses.json",
			body: `[{"id":0,"name":"A","base_cost":1,"base_income":0}]`,
			want: "must be > 0",
		},
		"unknown effect": {
			file: "upgrades.json",
			body: `{"click":[{"id":"x","cost":1,"effect":{"kind":"SUMMON_DRAGON"}}]}`,
			want: "unknown effect kind",
		},
		"duplicate upgrade": {
			file: "upgrades.json",
			body: `{"click":[{"id":"x","cost":1,"effect":{"kind":"ENABLE_LUCKY_CLICK"}},{"id":"x","cost":2,"effect":{"kind":"ENABLE_LUCKY_CLICK"}}]}`,
			want: "duplicate id",
		},
		"unknown category": {
			file: "upgrades.json",
			body: `{"cosmetic":[]}`,
			want: "unknown category",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, tc.file), []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := Load(dir)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%q want substring %q", err, tc.want)
			}
		})
	}
}
