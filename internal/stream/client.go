// Package stream maintains a persistent websocket connection to a push-based
// quote feed, keeps it subscribed to the wanted symbol set, and exposes the
// most recent trade price per symbol.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed   // dropped, reconnect pending
	StateTornDown // explicit disposal, terminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateTornDown:
		return "torn down"
	}
	return "unknown"
}

// Trade is one (symbol, price) pair from a trade-update message.
type Trade struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p"`
}

// wireMessage covers both directions of the feed protocol: outbound
// subscribe/unsubscribe requests and inbound typed messages. Inbound types
// other than "trade" are ignored.
type wireMessage struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol,omitempty"`
	Data   []Trade `json:"data,omitempty"`
}

// Client connects to the streaming endpoint, resubscribes after reconnects
// with capped linear backoff, and applies trade batches atomically to an
// in-memory price map. All prices go stale (not deleted) on disconnect.
type Client struct {
	url   string
	token string
	base  time.Duration
	max   time.Duration
	log   *slog.Logger

	mu      sync.RWMutex
	prices  map[string]float64
	wanted  map[string]struct{}
	conn    *websocket.Conn
	state   State
	retries int

	wmu sync.Mutex // serialises websocket writes

	closed atomic.Bool
	kick   chan struct{} // wakes the connect loop on symbol-set changes

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan map[string]float64
}

// NewClient creates a streaming client for the given endpoint and credential.
// base and max control the reconnect backoff: the nth consecutive drop waits
// min(max, base*(n+1)).
func NewClient(endpoint, token string, base, max time.Duration, log *slog.Logger) *Client {
	return &Client{
		url:    endpoint,
		token:  token,
		base:   base,
		max:    max,
		log:    log.With("component", "stream"),
		prices: make(map[string]float64),
		wanted: make(map[string]struct{}),
		state:  StateIdle,
		kick:   make(chan struct{}, 1),
		subs:   make(map[int]chan map[string]float64),
	}
}

// backoffDelay returns the reconnect delay for the given consecutive retry
// count.
func backoffDelay(retry int, base, max time.Duration) time.Duration {
	d := base * time.Duration(retry+1)
	if d > max {
		d = max
	}
	return d
}

// Run drives the connect/reconnect loop until Close is called or ctx is
// cancelled. A missing credential disables streaming entirely: Run returns
// nil immediately, which is inactivity, not an error. With an empty symbol
// set the loop idles without dialling until symbols arrive.
func (c *Client) Run(ctx context.Context) error {
	if c.token == "" {
		c.log.Info("no streaming credential, streaming disabled")
		return nil
	}

	for {
		if c.closed.Load() || ctx.Err() != nil {
			return nil
		}
		if len(c.snapshotWanted()) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-c.kick:
			}
			continue
		}

		err := c.connectOnce(ctx)
		if c.closed.Load() || ctx.Err() != nil {
			return nil
		}

		delay := c.nextBackoff()
		c.log.Warn("stream disconnected, reconnecting", "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// connectOnce dials, subscribes the current set, and reads until the
// connection drops. It returns the read error that ended the session.
func (c *Client) connectOnce(ctx context.Context) error {
	c.setState(StateConnecting)

	u := c.url + "?token=" + url.QueryEscape(c.token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.setState(StateClosed)
		return err
	}

	c.mu.Lock()
	if c.closed.Load() {
		// Close ran while the handshake was in flight. The connection was
		// never attached, so Close could not reach it.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateOpen
	c.retries = 0 // reset on entering Open
	symbols := make([]string, 0, len(c.wanted))
	for s := range c.wanted {
		symbols = append(symbols, s)
	}
	c.mu.Unlock()

	c.log.Info("stream connected", "symbols", len(symbols))
	for _, s := range symbols {
		if err := c.send(wireMessage{Type: "subscribe", Symbol: s}); err != nil {
			conn.Close()
			c.detach(conn)
			return err
		}
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			c.detach(conn)
			return err
		}

		var msg wireMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			// Malformed frame, skip it.
			continue
		}
		if msg.Type == "trade" && len(msg.Data) > 0 {
			c.applyTrades(msg.Data)
		}
	}
}

// detach clears the connection reference if it is still the active one and
// marks the state closed.
func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	if c.state != StateTornDown {
		c.state = StateClosed
	}
	c.mu.Unlock()
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state != StateTornDown {
		c.state = s
	}
	c.mu.Unlock()
}

func (c *Client) nextBackoff() time.Duration {
	c.mu.Lock()
	d := backoffDelay(c.retries, c.base, c.max)
	c.retries++
	c.mu.Unlock()
	return d
}

func (c *Client) send(msg wireMessage) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil
	}
	return conn.WriteJSON(msg)
}

// applyTrades records the latest price for every pair in the message. The
// whole batch becomes visible to readers at once, then subscribers are
// notified with a copy of the applied batch (non-blocking send).
func (c *Client) applyTrades(trades []Trade) {
	batch := make(map[string]float64, len(trades))
	for _, t := range trades {
		if t.Symbol == "" || t.Price <= 0 {
			continue
		}
		batch[t.Symbol] = t.Price
	}
	if len(batch) == 0 {
		return
	}

	c.mu.Lock()
	for sym, p := range batch {
		c.prices[sym] = p
	}
	c.mu.Unlock()

	c.subsMu.Lock()
	for _, ch := range c.subs {
		select {
		case ch <- batch:
		default:
			// Slow subscriber, drop the batch.
		}
	}
	c.subsMu.Unlock()
}

// SetSymbols replaces the wanted symbol set. While the connection is open,
// symbols no longer wanted are unsubscribed and new ones subscribed in
// place; otherwise the next (re)connect subscribes the full set.
func (c *Client) SetSymbols(symbols []string) {
	next := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s != "" {
			next[s] = struct{}{}
		}
	}

	c.mu.Lock()
	var added, removed []string
	for s := range next {
		if _, ok := c.wanted[s]; !ok {
			added = append(added, s)
		}
	}
	for s := range c.wanted {
		if _, ok := next[s]; !ok {
			removed = append(removed, s)
		}
	}
	c.wanted = next
	open := c.state == StateOpen && c.conn != nil
	c.mu.Unlock()

	if open {
		for _, s := range removed {
			if err := c.send(wireMessage{Type: "unsubscribe", Symbol: s}); err != nil {
				return
			}
		}
		for _, s := range added {
			if err := c.send(wireMessage{Type: "subscribe", Symbol: s}); err != nil {
				return
			}
		}
	}

	// Wake the connect loop in case it was idling on an empty set.
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Close tears the client down: pending reconnects become no-ops and the
// underlying connection is closed. Safe to call multiple times and from any
// goroutine.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateTornDown
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Price returns the latest streamed price for a symbol, if any.
func (c *Client) Price(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

// Prices returns a copy of the full price map.
func (c *Client) Prices() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.prices))
	for s, p := range c.prices {
		out[s] = p
	}
	return out
}

// Subscribe creates a subscription channel receiving each applied trade
// batch.
func (c *Client) Subscribe(bufSize int) (id int, ch <-chan map[string]float64) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id = c.nextSubID
	c.nextSubID++
	s := make(chan map[string]float64, bufSize)
	c.subs[id] = s
	return id, s
}

// Unsubscribe removes a subscription and closes its channel.
func (c *Client) Unsubscribe(id int) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if ch, ok := c.subs[id]; ok {
		close(ch)
		delete(c.subs, id)
	}
}

func (c *Client) snapshotWanted() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.wanted))
	for s := range c.wanted {
		out = append(out, s)
	}
	return out
}
