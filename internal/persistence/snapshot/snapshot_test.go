package snapshot

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
)

const browserSave = `{
  "coins": 1234.5,
  "clickPower": 2,
  "incomePerSecond": 6,
  "businesses": [
    {"id":0,"name":"Lemonade Stand","emoji":"x","baseCost":10,"baseIncome":1,"unlockedAt":0,"owned":6,"currentCost":114,"currentIncome":1}
  ],
  "upgrades": {"click":[{"id":"doubleClick","purchased":true}],"business":[],"special":[]},
  "prestigeTokens": 0,
  "prestigeCount": 0,
  "prestigeMultiplier": 1,
  "gems": 0,
  "totalCoinsEarned": 2000,
  "lastSaveTime": 1735689600000,
  "offlineEarnings": 0,
  "settings": {"sound": true, "music": false, "autoSave": true}
}`

func TestDecode_BrowserSave(t *testing.T) {
	s, err := Decode([]byte(browserSave))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Version != Version {
		t.Fatalf("version=%d want %d", s.Version, Version)
	}
	if s.Coins == nil || *s.Coins != 1234.5 {
		t.Fatalf("coins=%v", s.Coins)
	}
	if len(s.Businesses) != 1 || s.Businesses[0].Owned != 6 {
		t.Fatalf("businesses=%+v", s.Businesses)
	}
	if s.Upgrades == nil || len(s.Upgrades.Click) != 1 || !s.Upgrades.Click[0].Purchased {
		t.Fatalf("upgrades=%+v", s.Upgrades)
	}
	if s.LastSaveTime == nil || *s.LastSaveTime != 1735689600000 {
		t.Fatalf("lastSaveTime=%v", s.LastSaveTime)
	}
	if s.Settings == nil || !s.Settings.Sound || s.Settings.Music {
		t.Fatalf("settings=%+v", s.Settings)
	}
	if s.PrestigeTokens == nil || *s.PrestigeTokens != 0 {
		t.Fatalf("prestigeTokens should be present and zero")
	}
}

func TestDecode_MissingFieldsStayNil(t *testing.T) {
	s, err := Decode([]byte(`{"coins": 5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.ClickPower != nil || s.Businesses != nil || s.Upgrades != nil || s.Settings != nil {
		t.Fatalf("absent fields must decode as nil: %+v", s)
	}
}

func TestDecode_RejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"coins": `,
		"not an object":     `[1,2,3]`,
		"negative coins":    `{"coins": -1}`,
		"zero click power":  `{"clickPower": 0}`,
		"fractional owned":  `{"businesses":[{"id":0,"owned":1.5}]}`,
		"string tokens":     `{"prestigeTokens":"many"}`,
		"upgrade w/o id":    `{"upgrades":{"click":[{"purchased":true}]}}`,
		"multiplier below1": `{"prestigeMultiplier":0.5}`,
		"trailing data":     `{"coins":1} {"coins":2}`,
		"future version":    `{"version": 9}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("err=%v want ErrMalformed", err)
			}
		})
	}
}

func TestDecode_AllowsUnknownFields(t *testing.T) {
	if _, err := Decode([]byte(`{"coins": 1, "achievements": ["x"]}`)); err != nil {
		t.Fatalf("unknown fields must be tolerated: %v", err)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "saves", "latest.json.zst")
	st := NewFileStore(path)

	if _, ok, err := st.Load(ctx); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	want := []byte(browserSave)
	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := st.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch")
	}

	// Overwrite keeps only the newest checkpoint.
	if err := st.Save(ctx, []byte(`{"coins":1}`)); err != nil {
		t.Fatalf("save 2: %v", err)
	}
	got, _, _ = st.Load(ctx)
	if string(got) != `{"coins":1}` {
		t.Fatalf("got %q", got)
	}
}

func TestExport_RoundTrip(t *testing.T) {
	s, err := Decode([]byte(browserSave))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	path := filepath.Join(t.TempDir(), "pixel-tycoon-save.json")
	if err := WriteExport(path, s); err != nil {
		t.Fatalf("write export: %v", err)
	}
	back, err := ReadExport(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	a, _ := Encode(s)
	b, _ := Encode(back)
	if !bytes.Equal(a, b) {
		t.Fatalf("export round trip mismatch:\n%s\n%s", a, b)
	}
}
