package game

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"pixeltycoon/internal/clock"
	"pixeltycoon/internal/sim/economy"
	"pixeltycoon/internal/sim/tuning"
)

// Store persists the latest serialized save. Load reports ok=false when no
// save exists yet.
type Store interface {
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, raw []byte) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// AuditEntry records one applied intent.
type AuditEntry struct {
	TimeMs int64   `json:"ts"`
	Action string  `json:"action"`
	Target string  `json:"target,omitempty"`
	OK     bool    `json:"ok"`
	Earned float64 `json:"earned,omitempty"`
	Coins  float64 `json:"coins"`
	Income float64 `json:"income"`
}

type Config struct {
	Logger *log.Logger
	Clock  clock.Clock
	Store  Store       // optional
	Audit  AuditLogger // optional

	// SaveTimeout bounds each Store.Save, including the final one on shutdown.
	SaveTimeout time.Duration
}

var ErrStopped = errors.New("game stopped")

// Game is the single serialized loop around an economy.Engine.
// The engine must only be touched from the Run goroutine (or, before Run
// starts, from Restore and StepOnce).
type Game struct {
	eng   *economy.Engine
	log   *log.Logger
	clock clock.Clock
	store Store
	audit AuditLogger

	saveTimeout time.Duration

	inbox chan request
	stop  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
	runOnce  sync.Once
}

type request struct {
	intent Intent
	resp   chan Result
}

func New(eng *economy.Engine, cfg Config) *Game {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 5 * time.Second
	}
	return &Game{
		eng:         eng,
		log:         cfg.Logger,
		clock:       cfg.Clock,
		store:       cfg.Store,
		audit:       cfg.Audit,
		saveTimeout: cfg.SaveTimeout,
		inbox:       make(chan request, 64),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Restore loads the stored save and computes offline earnings. A missing save
// keeps the fresh state; a malformed one is logged and also keeps it. Call it
// before Run.
func (g *Game) Restore(ctx context.Context) (offline float64, err error) {
	if g.store == nil {
		return 0, nil
	}
	raw, ok, err := g.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	if err := g.eng.Restore(raw, g.clock.Now()); err != nil {
		g.log.Printf("restore: %v (starting fresh)", err)
		return 0, nil
	}
	return g.eng.State().OfflineEarnings, nil
}

// Run drives ticks, periodic checkpoints and queued intents until ctx is
// canceled or Stop is called. Both timers stop together and a final
// checkpoint is attempted before Run returns.
func (g *Game) Run(ctx context.Context) error {
	started := false
	g.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("game already running")
	}
	defer close(g.done)

	tune := g.eng.Tuning()
	ticker := time.NewTicker(tune.TickInterval())
	defer ticker.Stop()
	saver := time.NewTicker(tune.CheckpointInterval())
	defer saver.Stop()

	for {
		select {
		case <-ctx.Done():
			g.checkpoint()
			return ctx.Err()
		case <-g.stop:
			g.checkpoint()
			return nil
		case req := <-g.inbox:
			req.resp <- g.apply(req.intent)
		case <-ticker.C:
			g.StepOnce()
		case <-saver.C:
			g.checkpoint()
		}
	}
}

// Tuning is immutable after construction and safe to read from any goroutine.
func (g *Game) Tuning() tuning.Tuning { return g.eng.Tuning() }

func (g *Game) Stop() { g.stopOnce.Do(func() { close(g.stop) }) }

// Done is closed once Run has returned.
func (g *Game) Done() <-chan struct{} { return g.done }

// StepOnce credits one tick interval of passive income.
func (g *Game) StepOnce() {
	g.eng.Tick(g.eng.Tuning().TickInterval().Seconds())
}

func (g *Game) checkpoint() {
	if g.store == nil {
		return
	}
	raw, err := g.eng.Checkpoint(g.clock.Now())
	if err != nil {
		g.log.Printf("checkpoint encode: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.saveTimeout)
	defer cancel()
	if err := g.store.Save(ctx, raw); err != nil {
		g.log.Printf("checkpoint save: %v", err)
	}
}

// Do queues an intent and waits for the loop to apply it.
func (g *Game) Do(ctx context.Context, in Intent) (Result, error) {
	resp := make(chan Result, 1)
	select {
	case g.inbox <- request{intent: in, resp: resp}:
	case <-g.done:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-g.done:
		// The loop may have answered just before exiting.
		select {
		case r := <-resp:
			return r, nil
		default:
			return Result{}, ErrStopped
		}
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
