package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okitsu/roomchat/internal/client"
	"github.com/okitsu/roomchat/pkg/protocol"
	"nhooyr.io/websocket"
)

// testServer accepts websocket connections, records inbound frames, and hands
// the accepted connections back so tests can push frames to the client.
type testServer struct {
	*httptest.Server
	conns    chan *websocket.Conn
	received chan []byte
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan []byte, 16),
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("failed to accept: %v", err)
			return
		}
		ts.conns <- c
		for {
			_, data, err := c.Read(context.Background())
			if err != nil {
				return
			}
			ts.received <- data
		}
	}))
	t.Cleanup(ts.Server.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) acceptedConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-ts.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server to accept")
		return nil
	}
}

func (ts *testServer) nextFrame(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-ts.received:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for frame")
		return nil
	}
}

func nextEvent(t *testing.T, c *client.Connection) client.Event {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for connection event")
		return client.Event{}
	}
}

func TestConnection_ConnectAndDisconnect(t *testing.T) {
	ts := newTestServer(t)
	conn := client.NewConnection(ts.wsURL(), nil)

	if got := conn.State(); got != client.StateDisconnected {
		t.Errorf("State() = %v before Connect, want disconnected", got)
	}

	if got := conn.Connect(context.Background()); got != client.StateConnecting {
		t.Errorf("Connect() = %v, want connecting", got)
	}
	if ev := nextEvent(t, conn); ev.Kind != client.EventOpened {
		t.Fatalf("event = %v, want EventOpened", ev.Kind)
	}
	if got := conn.State(); got != client.StateOpen {
		t.Errorf("State() = %v after open, want open", got)
	}

	conn.Disconnect()
	if ev := nextEvent(t, conn); ev.Kind != client.EventClosed {
		t.Fatalf("event = %v, want EventClosed", ev.Kind)
	}
	if got := conn.State(); got != client.StateDisconnected {
		t.Errorf("State() = %v after disconnect, want disconnected", got)
	}
}

func TestConnection_ConnectTwiceEstablishesOneTransport(t *testing.T) {
	ts := newTestServer(t)
	conn := client.NewConnection(ts.wsURL(), nil)
	defer conn.Close()

	conn.Connect(context.Background())
	if ev := nextEvent(t, conn); ev.Kind != client.EventOpened {
		t.Fatalf("event = %v, want EventOpened", ev.Kind)
	}
	ts.acceptedConn(t)

	if got := conn.Connect(context.Background()); got != client.StateOpen {
		t.Errorf("second Connect() = %v, want open (no-op reporting current state)", got)
	}

	select {
	case <-ts.conns:
		t.Fatal("second Connect opened a second transport")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConnection_SendRequiresOpen(t *testing.T) {
	conn := client.NewConnection("ws://localhost:0", nil)

	env, err := protocol.NewEnvelope(protocol.TypeSendMessage, protocol.SendMessage{Message: "hi"})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if err := conn.Send(env); err != client.ErrNotConnected {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
}

func TestConnection_SendDeliversEnvelope(t *testing.T) {
	ts := newTestServer(t)
	conn := client.NewConnection(ts.wsURL(), nil)
	defer conn.Close()

	conn.Connect(context.Background())
	if ev := nextEvent(t, conn); ev.Kind != client.EventOpened {
		t.Fatalf("event = %v, want EventOpened", ev.Kind)
	}

	env, err := protocol.NewEnvelope(protocol.TypeSendMessage, protocol.SendMessage{
		UserID:  "u1",
		RoomID:  "lobby",
		Message: "hello",
	})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	if err := conn.Send(env); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	got, err := protocol.Decode(ts.nextFrame(t))
	if err != nil {
		t.Fatalf("server received undecodable frame: %v", err)
	}
	if got.Type != protocol.TypeSendMessage {
		t.Errorf("frame type = %q, want %q", got.Type, protocol.TypeSendMessage)
	}
}

func TestConnection_MalformedInboundIsDropped(t *testing.T) {
	ts := newTestServer(t)
	conn := client.NewConnection(ts.wsURL(), nil)
	defer conn.Close()

	conn.Connect(context.Background())
	if ev := nextEvent(t, conn); ev.Kind != client.EventOpened {
		t.Fatalf("event = %v, want EventOpened", ev.Kind)
	}
	srv := ts.acceptedConn(t)

	ctx := context.Background()
	if err := srv.Write(ctx, websocket.MessageText, []byte(`{"type":`)); err != nil {
		t.Fatalf("server write error = %v", err)
	}
	valid, err := protocol.NewEnvelope(protocol.TypeAddChat, protocol.AddChat{ChatID: "1", RoomID: "lobby", Message: "hi", Name: "bob"})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	data, err := valid.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := srv.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("server write error = %v", err)
	}

	// The garbage frame never surfaces; the next event is the valid envelope.
	ev := nextEvent(t, conn)
	if ev.Kind != client.EventEnvelope {
		t.Fatalf("event = %v, want EventEnvelope", ev.Kind)
	}
	if ev.Envelope.Type != protocol.TypeAddChat {
		t.Errorf("envelope type = %q, want %q", ev.Envelope.Type, protocol.TypeAddChat)
	}
}

func TestConnection_DialFailure(t *testing.T) {
	conn := client.NewConnection("ws://127.0.0.1:1", nil)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn.Connect(ctx)

	ev := nextEvent(t, conn)
	if ev.Kind != client.EventFailed {
		t.Fatalf("event = %v, want EventFailed", ev.Kind)
	}
	if ev.Err == nil {
		t.Error("EventFailed carries no error detail")
	}
	if got := conn.State(); got != client.StateFailed {
		t.Errorf("State() = %v, want failed", got)
	}

	// Failure is recoverable with a fresh Connect.
	if got := conn.Connect(ctx); got != client.StateConnecting {
		t.Errorf("Connect() after failure = %v, want connecting", got)
	}
}

func TestConnection_ServerCloseTransitionsToDisconnected(t *testing.T) {
	ts := newTestServer(t)
	conn := client.NewConnection(ts.wsURL(), nil)
	defer conn.Close()

	conn.Connect(context.Background())
	if ev := nextEvent(t, conn); ev.Kind != client.EventOpened {
		t.Fatalf("event = %v, want EventOpened", ev.Kind)
	}
	srv := ts.acceptedConn(t)

	_ = srv.Close(websocket.StatusNormalClosure, "")

	if ev := nextEvent(t, conn); ev.Kind != client.EventClosed {
		t.Fatalf("event = %v, want EventClosed", ev.Kind)
	}
	if got := conn.State(); got != client.StateDisconnected {
		t.Errorf("State() = %v, want disconnected", got)
	}
}
