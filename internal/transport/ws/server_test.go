package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pixeltycoon/internal/protocol"
	"pixeltycoon/internal/sim/catalogs"
	"pixeltycoon/internal/sim/economy"
	"pixeltycoon/internal/sim/game"
	"pixeltycoon/internal/sim/tuning"
)

type noLuck struct{}

func (noLuck) Float64() float64 { return 0.99 }

func startServer(t *testing.T) (url string, g *game.Game) {
	t.Helper()
	cats := catalogs.MustDefault()
	tune := tuning.Defaults()
	tune.TickIntervalMs = int(time.Hour / time.Millisecond)
	tune.CheckpointIntervalMs = int(time.Hour / time.Millisecond)
	g = game.New(economy.New(cats, tune, noLuck{}), game.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = g.Run(ctx)
		close(done)
	}()

	srv := NewServer(g, Config{Catalogs: cats, Redraw: time.Hour}, log.New(io.Discard, "", 0))
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		cancel()
		<-done
	})
	return "ws" + strings.TrimPrefix(hs.URL, "http"), g
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readType reads messages until one of type typ arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string, out any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", typ, err)
		}
		base, err := protocol.DecodeBase(b)
		if err != nil {
			t.Fatalf("decode base: %v", err)
		}
		if base.Type != typ {
			continue
		}
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("decode %s: %v", typ, err)
		}
		return
	}
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"})
	var w protocol.WelcomeMsg
	readType(t, conn, protocol.TypeWelcome, &w)
	return w
}

func intent(id, action string) protocol.IntentMsg {
	return protocol.IntentMsg{Type: protocol.TypeIntent, ProtocolVersion: protocol.Version, ID: id, Action: action}
}

func TestServer_HandshakeAndClick(t *testing.T) {
	url, _ := startServer(t)
	conn := dial(t, url)

	w := hello(t, conn)
	if w.SessionID == "" || w.Catalogs.BusinessesDigest == "" {
		t.Fatalf("welcome=%+v", w)
	}
	if w.TickIntervalMs != int(time.Hour/time.Millisecond) {
		t.Fatalf("tick interval=%d", w.TickIntervalMs)
	}
	var st protocol.StateMsg
	readType(t, conn, protocol.TypeState, &st)
	if len(st.Businesses) != 10 || st.Businesses[0].Name != "Lemonade Stand" || !st.Businesses[0].Unlocked {
		t.Fatalf("initial state businesses=%+v", st.Businesses[:1])
	}

	send(t, conn, intent("c1", protocol.ActionClick))
	var res protocol.ResultMsg
	readType(t, conn, protocol.TypeResult, &res)
	if res.ID != "c1" || !res.OK || res.Earned != 1 || res.Cue != "click" {
		t.Fatalf("click result=%+v", res)
	}
	readType(t, conn, protocol.TypeState, &st)
	if st.Coins != 1 || st.CoinsText != "1" {
		t.Fatalf("state after click: coins=%v text=%q", st.Coins, st.CoinsText)
	}
}

func TestServer_FailureCodes(t *testing.T) {
	url, _ := startServer(t)
	conn := dial(t, url)
	hello(t, conn)

	idx := 0
	buy := intent("b1", protocol.ActionBuyBusiness)
	buy.Index = &idx
	send(t, conn, buy)
	var res protocol.ResultMsg
	readType(t, conn, protocol.TypeResult, &res)
	if res.OK || res.Code != protocol.ErrNoResource {
		t.Fatalf("unaffordable buy=%+v", res)
	}

	bad := 42
	buy.ID, buy.Index = "b2", &bad
	send(t, conn, buy)
	readType(t, conn, protocol.TypeResult, &res)
	if res.Code != protocol.ErrInvalidTarget {
		t.Fatalf("out of range buy=%+v", res)
	}

	send(t, conn, intent("p1", protocol.ActionPrestige))
	readType(t, conn, protocol.TypeResult, &res)
	if res.Code != protocol.ErrBlocked {
		t.Fatalf("prestige=%+v", res)
	}

	shop := intent("s1", protocol.ActionBuyShop)
	shop.ItemID = "gems100"
	send(t, conn, shop)
	readType(t, conn, protocol.TypeResult, &res)
	if res.OK || res.Code != protocol.ErrUnavailable {
		t.Fatalf("shop=%+v", res)
	}

	send(t, conn, intent("x1", "DANCE"))
	readType(t, conn, protocol.TypeResult, &res)
	if res.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("unknown action=%+v", res)
	}

	imp := intent("i1", protocol.ActionImport)
	imp.Save = json.RawMessage(`{"coins": -3}`)
	send(t, conn, imp)
	readType(t, conn, protocol.TypeResult, &res)
	if res.OK || res.Code != protocol.ErrMalformedSave {
		t.Fatalf("malformed import=%+v", res)
	}
}

func TestServer_OverflowingIndexIsRejected(t *testing.T) {
	url, _ := startServer(t)
	conn := dial(t, url)
	hello(t, conn)

	for i := 0; i < 10; i++ {
		send(t, conn, intent("c", protocol.ActionClick))
	}
	raw := `{"type":"INTENT","protocol_version":"1.0","id":"big","action":"BUY_BUSINESS","index":100000000000000000000000000000}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var res protocol.ResultMsg
	for res.ID != "big" {
		readType(t, conn, protocol.TypeResult, &res)
	}
	if res.OK || res.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("overflowing index=%+v", res)
	}

	send(t, conn, intent("v", protocol.ActionClick))
	for res.ID != "v" {
		readType(t, conn, protocol.TypeResult, &res)
	}
	var st protocol.StateMsg
	readType(t, conn, protocol.TypeState, &st)
	if st.Coins != 11 || st.Businesses[0].Owned != 0 {
		t.Fatalf("state changed by rejected intent: coins=%v owned=%d", st.Coins, st.Businesses[0].Owned)
	}
}

func TestServer_ExportImport(t *testing.T) {
	url, _ := startServer(t)
	conn := dial(t, url)
	hello(t, conn)

	for i := 0; i < 5; i++ {
		send(t, conn, intent("c", protocol.ActionClick))
	}
	send(t, conn, intent("e1", protocol.ActionExport))
	var res protocol.ResultMsg
	for res.ID != "e1" {
		readType(t, conn, protocol.TypeResult, &res)
	}
	if !res.OK || len(res.Save) == 0 {
		t.Fatalf("export=%+v", res)
	}
	exported := res.Save

	send(t, conn, intent("r1", protocol.ActionReset))
	for res.ID != "r1" {
		readType(t, conn, protocol.TypeResult, &res)
	}

	imp := intent("i1", protocol.ActionImport)
	imp.Save = exported
	send(t, conn, imp)
	for res.ID != "i1" {
		readType(t, conn, protocol.TypeResult, &res)
	}
	if !res.OK {
		t.Fatalf("import=%+v", res)
	}
	var st protocol.StateMsg
	readType(t, conn, protocol.TypeState, &st)
	if st.Coins != 5 {
		t.Fatalf("coins after import=%v want 5", st.Coins)
	}
}

func TestServer_RejectsMissingHello(t *testing.T) {
	url, _ := startServer(t)
	conn := dial(t, url)
	send(t, conn, intent("c1", protocol.ActionClick))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close without HELLO")
	}
}
