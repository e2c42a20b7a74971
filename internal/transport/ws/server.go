package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pixeltycoon/internal/protocol"
	"pixeltycoon/internal/sim/catalogs"
	"pixeltycoon/internal/sim/game"
)

type Config struct {
	Catalogs     *catalogs.Catalogs
	TuningDigest string
	// Redraw is the default STATE push interval while no intent arrives.
	Redraw time.Duration
}

// Server adapts one Game to WebSocket clients. Every connection is a view of
// the same game; intents from any of them go through the game loop.
type Server struct {
	game *game.Game
	cfg  Config
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(g *game.Game, cfg Config, logger *log.Logger) *Server {
	if cfg.Redraw <= 0 {
		cfg.Redraw = time.Second
	}
	s := &Server{
		game: g,
		cfg:  cfg,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sessionID, redraw := s.handshake(ctx, conn)
		if sessionID == "" {
			return
		}
		s.log.Printf("session %s connected from %s", sessionID, r.RemoteAddr)
		defer s.log.Printf("session %s closed", sessionID)

		out := make(chan []byte, 16)
		push := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				return
			}
			select {
			case out <- b:
			default:
				// Slow client; the next redraw carries the same state.
			}
		}

		// Writer goroutine.
		go func() {
			ticker := time.NewTicker(redraw)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-s.game.Done():
					cancel()
					return
				case <-ticker.C:
					if st, ok := s.state(ctx); ok {
						push(st)
					}
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		if st, ok := s.state(ctx); ok {
			push(st)
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeIntent {
				continue
			}
			res := s.handleIntent(ctx, msg)
			push(res)
			if st, ok := s.state(ctx); ok {
				push(st)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (sessionID string, redraw time.Duration) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", 0
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello || protocol.ValidateHello(msg) != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", 0
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", 0
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", 0
	}

	redraw = s.cfg.Redraw
	if hello.RedrawMs > 0 {
		redraw = time.Duration(hello.RedrawMs) * time.Millisecond
		if redraw < 100*time.Millisecond {
			redraw = 100 * time.Millisecond
		}
	}

	view, err := s.game.View(ctx)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "game stopped"), time.Now().Add(time.Second))
		return "", 0
	}

	sessionID = uuid.NewString()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		TickIntervalMs:  int(s.tickInterval() / time.Millisecond),
		OfflineEarnings: view.State.OfflineEarnings,
	}
	welcome.OfflineEarningsText = protocol.FormatCoins(welcome.OfflineEarnings)
	if c := s.cfg.Catalogs; c != nil {
		welcome.Catalogs = protocol.CatalogDigests{
			BusinessesDigest: c.Businesses.Digest,
			UpgradesDigest:   c.Upgrades.Digest,
			ShopDigest:       c.Shop.Digest,
			TuningDigest:     s.cfg.TuningDigest,
		}
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", 0
	}
	return sessionID, redraw
}

func (s *Server) tickInterval() time.Duration {
	return s.game.Tuning().TickInterval()
}

func (s *Server) state(ctx context.Context) (protocol.StateMsg, bool) {
	view, err := s.game.View(ctx)
	if err != nil {
		return protocol.StateMsg{}, false
	}
	return StateFromView(view, s.cfg.Catalogs), true
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
