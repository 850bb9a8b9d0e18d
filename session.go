package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection, either a table display or a player's
// phone. The id is transient connection identity; a player's durable key
// within a session is their name.
type Client struct {
	conn    *websocket.Conn
	send    chan any
	id      string
	host    string // Host header at upgrade time, for join links
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
}

func newClientID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	return hex.EncodeToString(buf)
}

// trySend queues a message without blocking. It reports false when the
// client has been dropped or its buffer is full, in which case the caller
// should drop the client.
func (c *Client) trySend(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend shuts the outbound channel exactly once. The connection's
// readPump may still deliver events afterwards; trySend answers those with
// failure rather than a send on a closed channel.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Client) readPump(reg *Registry) {
	defer func() {
		reg.disconnect(c)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		// Flooding clients lose messages rather than stalling the session.
		if !c.limiter.Allow() {
			continue
		}

		reg.dispatch(c, msg)
	}
}

// Session is one running game instance. All methods are invoked from
// connection goroutines and timer callbacks; implementations serialize
// internally.
type Session interface {
	HandleEvent(c *Client, msg ClientMessage)
	HandleDisconnect(c *Client)
	LastActive() time.Time
	Close()
}

// SessionFactory builds a game instance bound to a registry.
type SessionFactory func(id string, reg *Registry) Session

type role int

const (
	roleTable role = iota
	rolePlayer
)

func (r role) String() string {
	if r == roleTable {
		return "table"
	}

	return "player"
}

type binding struct {
	sessionID string
	role      role
}

// Registry is the session directory for one game family: it owns the
// code-keyed session map, tracks which connection belongs to which session
// in what role, and routes every inbound event. It never touches game
// fields, only routing metadata.
type Registry struct {
	cfg     *Config
	path    string
	factory SessionFactory

	mu       sync.Mutex
	sessions map[string]Session
	bindings map[*Client]binding
}

func newRegistry(cfg *Config, path string, factory SessionFactory) *Registry {
	reg := &Registry{
		cfg:      cfg,
		path:     path,
		factory:  factory,
		sessions: make(map[string]Session),
		bindings: make(map[*Client]binding),
	}
	if cfg.sessionTimeout > 0 {
		go reg.reaperLoop()
	}
	return reg
}

// newSessionID generates a crypto-random session code and ensures it
// doesn't collide with an active session.
func (reg *Registry) newSessionID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	for {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 6)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		reg.mu.Lock()
		_, exists := reg.sessions[id]
		reg.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// joinURL is the address players open to join a session, encoded in the QR
// code and sent with gameCreated.
func (reg *Registry) joinURL(host, sessionID string) string {
	base := reg.cfg.frontendURL
	if base == "" {
		base = reg.cfg.scheme() + "://" + host + reg.cfg.prefix + reg.path
	}
	return base + "?session=" + sessionID
}

func (reg *Registry) dispatch(c *Client, msg ClientMessage) {
	switch msg.Type {
	case "createGame":
		reg.createSession(c, msg)
	case "joinGame", "rejoin":
		reg.routeBySessionID(c, msg)
	default:
		reg.mu.Lock()
		b, ok := reg.bindings[c]
		var session Session
		if ok {
			session = reg.sessions[b.sessionID]
		}
		reg.mu.Unlock()

		// Events from unresolved connections are dropped.
		if session == nil {
			return
		}
		session.HandleEvent(c, msg)
	}
}

func (reg *Registry) createSession(c *Client, msg ClientMessage) {
	reg.mu.Lock()
	_, bound := reg.bindings[c]
	reg.mu.Unlock()

	// A connection drives at most one session.
	if bound {
		return
	}

	id := reg.newSessionID()
	session := reg.factory(id, reg)

	reg.mu.Lock()
	reg.sessions[id] = session
	reg.bindings[c] = binding{sessionID: id, role: roleTable}
	reg.mu.Unlock()

	logf(reg.cfg, "GAMES: Created session %s%s/%s", reg.cfg.prefix, reg.path, id)

	session.HandleEvent(c, msg)
}

func (reg *Registry) routeBySessionID(c *Client, msg ClientMessage) {
	reg.mu.Lock()
	if prev, bound := reg.bindings[c]; bound && prev.sessionID != msg.SessionID {
		reg.mu.Unlock()

		// A connection holds one seat. Moving to another session would
		// orphan the old seat without a disconnect, so it is refused.
		if msg.Type == "joinGame" {
			c.trySend(JoinResultMessage{
				Type:    "joinResult",
				Success: false,
				Message: "Already in a session",
			})
		}
		return
	}

	session, ok := reg.sessions[msg.SessionID]
	if ok {
		reg.bindings[c] = binding{sessionID: msg.SessionID, role: rolePlayer}
	}
	reg.mu.Unlock()

	if !ok {
		if msg.Type == "joinGame" {
			c.trySend(JoinResultMessage{
				Type:    "joinResult",
				Success: false,
				Message: "Session not found",
			})
		}
		return
	}

	session.HandleEvent(c, msg)
}

func (reg *Registry) disconnect(c *Client) {
	reg.mu.Lock()
	b, ok := reg.bindings[c]
	delete(reg.bindings, c)
	var session Session
	if ok {
		session = reg.sessions[b.sessionID]
	}
	reg.mu.Unlock()

	if session != nil {
		logf(reg.cfg, "Client %s (%s) disconnected from session %s", c.id, b.role, b.sessionID)

		session.HandleDisconnect(c)
	}
}

// reaperLoop periodically removes sessions idle longer than the configured
// timeout.
func (reg *Registry) reaperLoop() {
	ticker := time.NewTicker(reg.cfg.sessionTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-reg.cfg.sessionTimeout)

		reg.mu.Lock()
		for id, session := range reg.sessions {
			if session.LastActive().Before(cutoff) {
				delete(reg.sessions, id)
				for c, b := range reg.bindings {
					if b.sessionID == id {
						delete(reg.bindings, c)
					}
				}
				go session.Close()
				logf(reg.cfg, "GAMES: Reaped idle session %s%s/%s", reg.cfg.prefix, reg.path, id)
			}
		}
		reg.mu.Unlock()
	}
}

// serveWS upgrades connections for one game family. Both tables and
// players use the same endpoint; role is decided by the first event they
// send (createGame vs joinGame/rejoin).
func serveWS(cfg *Config, reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:    conn,
			send:    make(chan any, 32),
			id:      newClientID(),
			host:    r.Host,
			limiter: rate.NewLimiter(rate.Limit(20), 40),
		}

		go client.writePump()

		client.trySend(ServerInfoMessage{
			Type:    "serverInfo",
			Version: releaseVersion,
			Prefix:  cfg.prefix,
		})

		client.readPump(reg)
	}
}

// qrHandler serves a PNG QR code of the join URL for a session.
func qrHandler(reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sessionID := ps.ByName("sessionid")
		if sessionID == "" {
			http.Error(w, "missing session id", http.StatusBadRequest)
			return
		}

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(reg.joinURL(r.Host, sessionID), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerGame sets up routes for one game family:
//   - $path/ws             → WebSocket for tables and players
//   - $path/qr/:sessionid  → PNG QR code of the join URL
func registerGame(cfg *Config, path string, mux *httprouter.Router, factory SessionFactory) {
	reg := newRegistry(cfg, path, factory)

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, reg))
	mux.GET(cfg.prefix+path+"/qr/:sessionid", qrHandler(reg))
}
