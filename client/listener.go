package client

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tabletap/tabletap/realtime"
)

// SyncListener keeps a standing subscription to one restaurant's change
// feed. Events are delivered as-is; state reduction is the caller's
// concern so it stays testable without a live socket. Brief disconnects
// are bridged by reconnecting and firing OnResync, never by silently
// dropping events.
type SyncListener struct {
	BaseURL string // http(s) server base; translated to ws(s)

	// OnEvent receives every decoded feed message.
	OnEvent func(realtime.Message)
	// OnResync fires after every (re)connect; the view must refetch the
	// full feed rather than trust whatever it last saw.
	OnResync func()

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

func NewSyncListener(baseURL string) *SyncListener {
	return &SyncListener{BaseURL: baseURL}
}

// Subscribe opens the channel for restaurantID and starts the read
// loop. It returns after the first successful dial; reconnection is
// handled internally until Unsubscribe.
func (sl *SyncListener) Subscribe(restaurantID uint) error {
	sl.mu.Lock()
	sl.closed = false
	sl.done = make(chan struct{})
	sl.mu.Unlock()

	conn, err := sl.dial(restaurantID)
	if err != nil {
		return &TransportError{Op: "subscribe", Err: err}
	}
	sl.setConn(conn)

	go sl.readLoop(restaurantID)
	return nil
}

// Unsubscribe tears the channel down deterministically. Safe to call
// more than once.
func (sl *SyncListener) Unsubscribe() {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.closed {
		return
	}
	sl.closed = true
	close(sl.done)
	if sl.conn != nil {
		sl.conn.Close()
		sl.conn = nil
	}
}

func (sl *SyncListener) dial(restaurantID uint) (*websocket.Conn, error) {
	wsURL := strings.Replace(sl.BaseURL, "http", "ws", 1)
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/ws/%d", wsURL, restaurantID), nil)
	return conn, err
}

func (sl *SyncListener) setConn(conn *websocket.Conn) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.conn = conn
}

func (sl *SyncListener) readLoop(restaurantID uint) {
	for {
		sl.mu.Lock()
		conn := sl.conn
		closed := sl.closed
		sl.mu.Unlock()
		if closed || conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if sl.isClosed() {
				return
			}
			sl.reconnect(restaurantID)
			continue
		}

		var msg realtime.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		if msg.Event == realtime.EventResync && sl.OnResync != nil {
			sl.OnResync()
		}
		if sl.OnEvent != nil {
			sl.OnEvent(msg)
		}
	}
}

// reconnect retries with backoff until the dial succeeds or the
// listener is unsubscribed. OnResync fires on every successful
// reconnect; events missed while offline are gone for good.
func (sl *SyncListener) reconnect(restaurantID uint) {
	backoff := 500 * time.Millisecond
	for {
		select {
		case <-sl.done:
			return
		case <-time.After(backoff):
		}

		conn, err := sl.dial(restaurantID)
		if err != nil {
			if backoff < 8*time.Second {
				backoff *= 2
			}
			continue
		}

		sl.setConn(conn)
		if sl.OnResync != nil {
			sl.OnResync()
		}
		return
	}
}

func (sl *SyncListener) isClosed() bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.closed
}
