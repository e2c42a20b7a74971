package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pixeltycoon/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	slot := fs.String("slot", "latest", "slot filter (checkpoints)")
	limit := fs.Int("limit", 20, "result limit")
	action := fs.String("action", "", "action filter (audits)")
	_ = fs.Parse(args)

	q := "slots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = indexPath(*dataDir)
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := runDBQuery(ctx, idx, q, *slot, strings.ToUpper(*action), *limit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-slot S] [-action A] [-limit N] slots|checkpoints|catalogs|audits")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runDBQuery(ctx context.Context, idx *indexdb.SQLiteIndex, q, slot, action string, limit int) error {
	if limit <= 0 {
		limit = 20
	}
	switch q {
	case "slots":
		slots, err := idx.Slots(ctx)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, s := range slots {
			printJSON(struct {
				Slot      string  `json:"slot"`
				SavedAtMs int64   `json:"saved_at_ms"`
				Coins     float64 `json:"coins"`
				Bytes     int     `json:"bytes"`
			}{s.Name, s.SavedAtMs, s.Coins, s.Bytes})
		}
	case "checkpoints":
		rows, err := idx.Checkpoints(ctx, slot, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		for _, r := range rows {
			printJSON(struct {
				Slot          string  `json:"slot"`
				SavedAtMs     int64   `json:"saved_at_ms"`
				Coins         float64 `json:"coins"`
				Income        float64 `json:"income"`
				TotalEarned   float64 `json:"total_earned"`
				PrestigeCount int     `json:"prestige_count"`
			}{r.Slot, r.SavedAtMs, r.Coins, r.Income, r.TotalEarned, r.PrestigeCount})
		}
	case "catalogs":
		for _, name := range []string{"businesses", "upgrades", "shop", "tuning"} {
			d, err := idx.CatalogDigest(ctx, name)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			printJSON(map[string]string{"name": name, "digest": d})
		}
	case "audits":
		n, err := idx.AuditCount(ctx, action)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		printJSON(map[string]any{"action": action, "audits": n})
	default:
		return fmt.Errorf("unknown query: %s", q)
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
