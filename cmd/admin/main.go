package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"pixeltycoon/internal/persistence/indexdb"
	persistlog "pixeltycoon/internal/persistence/log"
	"pixeltycoon/internal/persistence/snapshot"
	"pixeltycoon/internal/protocol"
	"pixeltycoon/internal/sim/catalogs"
	"pixeltycoon/internal/sim/economy"
	"pixeltycoon/internal/sim/game"
	"pixeltycoon/internal/sim/tuning"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "export":
			exportCmd(os.Args[2:])
			return
		case "import":
			importCmd(os.Args[2:])
			return
		case "stats":
			statsCmd(os.Args[2:])
			return
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "download":
			downloadCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// storeFlags are shared by every subcommand that reads or writes a slot.
type storeFlags struct {
	dataDir *string
	kind    *string
	slot    *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		dataDir: fs.String("data", "./data", "runtime data directory"),
		kind:    fs.String("store", "file", "save backend: file|sqlite"),
		slot:    fs.String("slot", "latest", "save slot name"),
	}
}

// open returns the slot store and a close func for whatever it opened.
func (f storeFlags) open() (game.Store, func(), error) {
	switch strings.ToLower(strings.TrimSpace(*f.kind)) {
	case "", "file":
		return snapshot.NewFileStore(filepath.Join(*f.dataDir, "saves", *f.slot+".json.zst")), func() {}, nil
	case "sqlite":
		idx, err := indexdb.OpenSQLite(indexPath(*f.dataDir))
		if err != nil {
			return nil, nil, err
		}
		return idx.Slot(*f.slot), func() { _ = idx.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q (want file|sqlite)", *f.kind)
	}
}

func indexPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "pixeltycoon.sqlite")
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "saves"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json.zst") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fmt.Printf("%-16s %8s  %s\n", strings.TrimSuffix(name, ".json.zst"),
			humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
	}
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	sf := addStoreFlags(fs)
	out := fs.String("out", "pixel-tycoon-save.json", "output path")
	_ = fs.Parse(args)

	st, closeFn, err := sf.open()
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer closeFn()
	if err := exportSlot(context.Background(), st, *out); err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(1)
	}
	fmt.Println("wrote", *out)
}

func exportSlot(ctx context.Context, st game.Store, out string) error {
	raw, ok, err := st.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("slot is empty")
	}
	save, err := snapshot.Decode(raw)
	if err != nil {
		return err
	}
	return snapshot.WriteExport(out, save)
}

func importCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	sf := addStoreFlags(fs)
	in := fs.String("in", "", "export file to import (required)")
	configDir := fs.String("configs", "./configs", "config directory")
	_ = fs.Parse(args)

	if strings.TrimSpace(*in) == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		os.Exit(2)
	}
	cats, tune, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	st, closeFn, err := sf.open()
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer closeFn()
	if err := importSlot(context.Background(), st, *in, cats, tune); err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}
	fmt.Printf("imported %s into slot %q\n", *in, *sf.slot)
}

// importSlot validates the export against the catalogs before writing it, so
// the server never starts from a save it would reject.
func importSlot(ctx context.Context, st game.Store, in string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	save, err := snapshot.ReadExport(in)
	if err != nil {
		return err
	}
	if err := economy.New(cats, tune, nil).ImportSave(save, time.Now()); err != nil {
		return err
	}
	raw, err := snapshot.Encode(save)
	if err != nil {
		return err
	}
	return st.Save(ctx, raw)
}

func statsCmd(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	sf := addStoreFlags(fs)
	configDir := fs.String("configs", "./configs", "config directory")
	_ = fs.Parse(args)

	cats, tune, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	st, closeFn, err := sf.open()
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer closeFn()

	raw, ok, err := st.Load(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "load:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "slot is empty")
		os.Exit(2)
	}
	eng := economy.New(cats, tune, nil)
	if err := eng.Restore(raw, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}
	writeStats(os.Stdout, eng)
}

func writeStats(w io.Writer, eng *economy.Engine) {
	s := eng.Stats()
	st := eng.State()
	fmt.Fprintf(w, "coins:              %s (%s)\n", protocol.FormatCoins(s.Coins), humanize.Commaf(s.Coins))
	fmt.Fprintf(w, "income/s:           %s\n", protocol.FormatCoins(s.IncomePerSecond))
	fmt.Fprintf(w, "click power:        %s\n", humanize.Ftoa(s.ClickPower))
	fmt.Fprintf(w, "total earned:       %s\n", protocol.FormatCoins(s.TotalCoinsEarned))
	fmt.Fprintf(w, "businesses owned:   %s\n", humanize.Comma(int64(s.BusinessesOwned)))
	fmt.Fprintf(w, "upgrades purchased: %d\n", s.UpgradesPurchased)
	fmt.Fprintf(w, "prestige:           %s (tokens %d, x%s)\n",
		humanize.Ordinal(s.PrestigeCount), s.PrestigeTokens, humanize.FtoaWithDigits(s.PrestigeMultiplier, 2))
	fmt.Fprintf(w, "next prestige at:   %s\n", protocol.FormatCoins(eng.PrestigeRequirement()))
	if !st.LastSaveTime.IsZero() {
		fmt.Fprintf(w, "last saved:         %s\n", humanize.Time(st.LastSaveTime))
	}
	if st.OfflineEarnings > 0 {
		fmt.Fprintf(w, "offline pending:    %s\n", protocol.FormatCoins(st.OfflineEarnings))
	}
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	action := fs.String("action", "", "action filter (e.g. BUY_BUSINESS)")
	limit := fs.Int("limit", 50, "max entries (newest last; 0 = all)")
	_ = fs.Parse(args)

	entries, err := readAudit(*dataDir, strings.ToUpper(strings.TrimSpace(*action)), *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		printJSON(e)
	}
}

func readAudit(dataDir, action string, limit int) ([]game.AuditEntry, error) {
	files, err := filepath.Glob(filepath.Join(dataDir, "audit", "audit-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var out []game.AuditEntry
	for _, path := range files {
		entries, err := persistlog.ReadAll(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if action != "" && e.Action != action {
				continue
			}
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func loadConfig(configDir string) (*catalogs.Catalogs, tuning.Tuning, error) {
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return nil, tuning.Tuning{}, err
	}
	tune, err := tuning.Load(filepath.Join(configDir, "tuning.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, tuning.Tuning{}, err
		}
		tune = tuning.Defaults()
	}
	return cats, tune, nil
}
