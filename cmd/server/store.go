package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"pixeltycoon/internal/persistence/indexdb"
	"pixeltycoon/internal/persistence/snapshot"
	"pixeltycoon/internal/sim/game"
)

// openStore picks the save backend. The file store keeps one zstd file per
// slot; the sqlite store keeps one row per slot and records checkpoint history.
func openStore(kind, dataDir, slot string, idx *indexdb.SQLiteIndex) (game.Store, error) {
	slot = strings.TrimSpace(slot)
	if slot == "" || strings.ContainsAny(slot, `/\`) || strings.HasPrefix(slot, ".") {
		return nil, fmt.Errorf("invalid slot name %q", slot)
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "file":
		return snapshot.NewFileStore(filepath.Join(dataDir, "saves", slot+".json.zst")), nil
	case "sqlite":
		if idx == nil {
			return nil, fmt.Errorf("store=sqlite requires the index (drop -disable_db)")
		}
		return idx.Slot(slot), nil
	default:
		return nil, fmt.Errorf("unknown store %q (want file|sqlite)", kind)
	}
}
