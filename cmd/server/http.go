package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"pixeltycoon/internal/persistence/indexdb"
	"pixeltycoon/internal/sim/game"
)

type muxConfig struct {
	Game        *game.Game
	Index       *indexdb.SQLiteIndex // optional
	WS          http.HandlerFunc
	EnableAdmin bool
	Logger      *log.Logger
}

func newMux(cfg muxConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		writeMetrics(rw, r, cfg.Game, cfg.Index)
	})

	if cfg.EnableAdmin {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			v, err := cfg.Game.View(ctx)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(v)
		})
		mux.HandleFunc("/admin/v1/export", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			save, err := cfg.Game.Export(ctx)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			rw.Header().Set("Content-Disposition", `attachment; filename="pixel-tycoon-save.json"`)
			_ = json.NewEncoder(rw).Encode(save)
		})
	} else if cfg.Logger != nil {
		cfg.Logger.Printf("admin endpoints disabled (PT_ENABLE_ADMIN_HTTP=false)")
	}

	mux.HandleFunc("/v1/ws", cfg.WS)
	return mux
}

func writeMetrics(rw http.ResponseWriter, r *http.Request, g *game.Game, idx *indexdb.SQLiteIndex) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	v, err := g.View(ctx)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusServiceUnavailable)
		return
	}
	st := v.State
	owned := 0
	for _, b := range st.Businesses {
		owned += b.Owned
	}
	canPrestige := 0
	if v.CanPrestige {
		canPrestige = 1
	}

	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(rw, "# HELP pixeltycoon_coins Current coin balance.\n")
	fmt.Fprintf(rw, "# TYPE pixeltycoon_coins gauge\n")
	fmt.Fprintf(rw, "pixeltycoon_coins %g\n", st.Coins)

	fmt.Fprintf(rw, "# HELP pixeltycoon_income_per_second Passive income rate.\n")
	fmt.Fprintf(rw, "# TYPE pixeltycoon_income_per_second gauge\n")
	fmt.Fprintf(rw, "pixeltycoon_income_per_second %g\n", st.IncomePerSecond)

	fmt.Fprintf(rw, "# HELP pixeltycoon_coins_earned_total Lifetime coins earned.\n")
	fmt.Fprintf(rw, "# TYPE pixeltycoon_coins_earned_total counter\n")
	fmt.Fprintf(rw, "pixeltycoon_coins_earned_total %g\n", st.TotalCoinsEarned)

	fmt.Fprintf(rw, "# HELP pixeltycoon_businesses_owned Units owned across all businesses.\n")
	fmt.Fprintf(rw, "# TYPE pixeltycoon_businesses_owned gauge\n")
	fmt.Fprintf(rw, "pixeltycoon_businesses_owned %d\n", owned)

	fmt.Fprintf(rw, "# HELP pixeltycoon_prestige_count Prestiges performed.\n")
	fmt.Fprintf(rw, "# TYPE pixeltycoon_prestige_count gauge\n")
	fmt.Fprintf(rw, "pixeltycoon_prestige_count %d\n", st.PrestigeCount)

	fmt.Fprintf(rw, "# HELP pixeltycoon_prestige_multiplier Income multiplier from prestige tokens.\n")
	fmt.Fprintf(rw, "# TYPE pixeltycoon_prestige_multiplier gauge\n")
	fmt.Fprintf(rw, "pixeltycoon_prestige_multiplier %g\n", st.PrestigeMultiplier)

	fmt.Fprintf(rw, "# HELP pixeltycoon_can_prestige 1 when the prestige requirement is met.\n")
	fmt.Fprintf(rw, "# TYPE pixeltycoon_can_prestige gauge\n")
	fmt.Fprintf(rw, "pixeltycoon_can_prestige %d\n", canPrestige)

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP pixeltycoon_index_queue_depth Current index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE pixeltycoon_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "pixeltycoon_index_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP pixeltycoon_index_queue_capacity Index writer queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE pixeltycoon_index_queue_capacity gauge\n")
	fmt.Fprintf(rw, "pixeltycoon_index_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP pixeltycoon_index_dropped_total Index rows dropped under backpressure.\n")
	fmt.Fprintf(rw, "# TYPE pixeltycoon_index_dropped_total counter\n")
	fmt.Fprintf(rw, "pixeltycoon_index_dropped_total{kind=\"checkpoint\"} %d\n", s.DropCheckpointTotal)
	fmt.Fprintf(rw, "pixeltycoon_index_dropped_total{kind=\"audit\"} %d\n", s.DropAuditTotal)
}
