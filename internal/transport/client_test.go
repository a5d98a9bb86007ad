package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/treewatch/internal/protocol"
)

type recorder struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (r *recorder) Dispatch(ev protocol.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []protocol.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]protocol.Kind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind()
	}
	return out
}

func (r *recorder) snapshot() []protocol.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Event(nil), r.events...)
}

func (r *recorder) find(k protocol.Kind) (protocol.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Kind() == k {
			return ev, true
		}
	}
	return nil, false
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func fastOptions(url string) Options {
	return Options{
		URL:               url,
		HeartbeatInterval: time.Hour,
		SendRetryDelay:    10 * time.Millisecond,
		ReconnectBase:     5 * time.Millisecond,
		ReconnectCap:      20 * time.Millisecond,
		MaxAttempts:       3,
	}
}

func TestClientDispatchesEventsAndSkipsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"search_started","question":"q"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","message":"boom"}`))
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(fastOptions(wsURL(srv)), rec, zerolog.Nop())
	c.Connect(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool {
		_, ok := rec.find(protocol.KindError)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, c.Connected())
	assert.Equal(t, []protocol.Kind{
		protocol.KindConnectionState,
		protocol.KindRunStarted,
		protocol.KindError,
	}, rec.kinds())

	ev, _ := rec.find(protocol.KindError)
	assert.Equal(t, "boom", ev.(protocol.Error).Message)
}

func TestClientSendWritesWhenOpen(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m map[string]any
		assert.NoError(t, json.Unmarshal(data, &m))
		got <- m
		conn.ReadMessage()
	}))
	defer srv.Close()

	c := New(fastOptions(wsURL(srv)), &recorder{}, zerolog.Nop())
	c.Connect(context.Background())
	defer c.Close()

	require.Eventually(t, c.Connected, 2*time.Second, 5*time.Millisecond)

	req := protocol.NewRun(protocol.RequestAsk, protocol.RunParams{Question: "what happened?", MaxIterations: 5})
	require.NoError(t, c.Send(req))

	select {
	case m := <-got:
		assert.Equal(t, "ask", m["type"])
		assert.Equal(t, "what happened?", m["question"])
		assert.Equal(t, req.RequestID, m["request_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the request")
	}
}

func TestClientSendWhileClosedRetriesOnceThenFails(t *testing.T) {
	rec := &recorder{}
	c := New(fastOptions("ws://127.0.0.1:1/ws"), rec, zerolog.Nop())
	defer c.Close()

	req := protocol.NewRun(protocol.RequestDiscover, protocol.RunParams{})
	err := c.Send(req)
	assert.ErrorIs(t, err, ErrNotConnected)

	require.Eventually(t, func() bool {
		_, ok := rec.find(protocol.KindSendFailed)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	ev, _ := rec.find(protocol.KindSendFailed)
	failed := ev.(protocol.SendFailed)
	assert.Equal(t, req.RequestID, failed.Request.RequestID)
	assert.ErrorIs(t, failed.Err, ErrNotConnected)
}

func TestClientSendRetrySucceedsAfterConnect(t *testing.T) {
	got := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err == nil {
			got <- struct{}{}
		}
		conn.ReadMessage()
	}))
	defer srv.Close()

	rec := &recorder{}
	opts := fastOptions(wsURL(srv))
	opts.SendRetryDelay = 300 * time.Millisecond
	c := New(opts, rec, zerolog.Nop())
	defer c.Close()

	assert.ErrorIs(t, c.Send(protocol.NewRun(protocol.RequestAsk, protocol.RunParams{})), ErrNotConnected)
	c.Connect(context.Background())

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("queued request was never delivered")
	}
	_, failed := rec.find(protocol.KindSendFailed)
	assert.False(t, failed)
}

func TestClientReconnectsAfterServerClose(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		if conns.Add(1) == 1 {
			conn.Close()
			return
		}
		defer conn.Close()
		conn.ReadMessage()
	}))
	defer srv.Close()

	rec := &recorder{}
	c := New(fastOptions(wsURL(srv)), rec, zerolog.Nop())
	c.Connect(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool { return conns.Load() >= 2 && c.Connected() }, 2*time.Second, 5*time.Millisecond)

	events := rec.snapshot()
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, protocol.ConnectionState{Connected: true}, events[0])
	assert.Equal(t, protocol.ConnectionState{Connected: false}, events[1])
	assert.Equal(t, protocol.ConnectionState{Connected: true}, events[2])
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	rec := &recorder{}
	c := New(fastOptions(url), rec, zerolog.Nop())
	c.Connect(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool {
		_, ok := rec.find(protocol.KindConnectionLost)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	ev, _ := rec.find(protocol.KindConnectionLost)
	lost := ev.(protocol.ConnectionLost)
	assert.Equal(t, 3, lost.Attempts)
	assert.NotEmpty(t, lost.Err)
	assert.False(t, c.Connected())
}

func TestClientSendsHeartbeat(t *testing.T) {
	pings := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case pings <- string(data):
			default:
			}
		}
	}))
	defer srv.Close()

	opts := fastOptions(wsURL(srv))
	opts.HeartbeatInterval = 20 * time.Millisecond
	c := New(opts, &recorder{}, zerolog.Nop())
	c.Connect(context.Background())
	defer c.Close()

	select {
	case p := <-pings:
		assert.JSONEq(t, `{"type":"ping"}`, p)
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat received")
	}
}
