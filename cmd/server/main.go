package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"pixeltycoon/internal/clock"
	"pixeltycoon/internal/persistence/indexdb"
	persistlog "pixeltycoon/internal/persistence/log"
	"pixeltycoon/internal/protocol"
	"pixeltycoon/internal/sim/catalogs"
	"pixeltycoon/internal/sim/economy"
	"pixeltycoon/internal/sim/game"
	"pixeltycoon/internal/sim/tuning"
	"pixeltycoon/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory (businesses.json, upgrades.json, shop.json)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		storeKind  = flag.String("store", "file", "save backend: file|sqlite")
		slot       = flag.String("slot", "latest", "save slot name")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (catalog digests, checkpoint history, audit rows)")
		redrawMs   = flag.Int("redraw_ms", 0, "default STATE push interval for clients (default: tick interval)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	idx, err := openRuntimeIndex(*dataDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	store, err := openStore(*storeKind, *dataDir, *slot, idx)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}

	audit := persistlog.NewAuditLogger(*dataDir)
	defer audit.Close()
	var auditSink game.AuditLogger = audit
	if idx != nil {
		auditSink = multiAuditLogger{a: audit, b: idx}
	}

	eng := economy.New(cats, tune, nil)
	g := game.New(eng, game.Config{
		Logger: log.New(os.Stdout, "[game] ", log.LstdFlags|log.Lmicroseconds),
		Clock:  clock.RealClock{},
		Store:  store,
		Audit:  auditSink,
	})

	ctx, cancel := signalContext()
	defer cancel()

	offline, err := g.Restore(ctx)
	if err != nil {
		logger.Fatalf("restore: %v", err)
	}
	if offline > 0 {
		logger.Printf("restored slot %q: %s coins earned offline (%s)",
			*slot, humanize.Commaf(offline), protocol.FormatCoins(offline))
	}

	redraw := tune.TickInterval()
	if *redrawMs > 0 {
		redraw = time.Duration(*redrawMs) * time.Millisecond
	}
	wsSrv := ws.NewServer(g, ws.Config{
		Catalogs:     cats,
		TuningDigest: tune.Digest(),
		Redraw:       redraw,
	}, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))

	mux := newMux(muxConfig{
		Game:        g,
		Index:       idx,
		WS:          wsSrv.Handler(),
		EnableAdmin: envBool("PT_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Any member failing cancels the others; the game loop always gets to
	// write its final checkpoint before Wait returns and the index closes.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := g.Run(egCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("game loop: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	eg.Go(func() error {
		logger.Printf("listening on %s (store=%s slot=%s)", *addr, *storeKind, *slot)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ListenAndServe: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		logger.Printf("shutdown: %v", err)
	}

	if idx != nil {
		s := idx.Stats()
		if s.DropCheckpointTotal+s.DropAuditTotal > 0 {
			logger.Printf("index dropped %s checkpoint rows, %s audit rows",
				humanize.Comma(int64(s.DropCheckpointTotal)), humanize.Comma(int64(s.DropAuditTotal)))
		}
	}
}

func openRuntimeIndex(dataDir string, disable bool, logger *log.Logger) (*indexdb.SQLiteIndex, error) {
	if disable {
		logger.Printf("index disabled")
		return nil, nil
	}
	return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "pixeltycoon.sqlite"))
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

type multiAuditLogger struct {
	a game.AuditLogger
	b game.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry game.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
