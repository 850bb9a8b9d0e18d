package main

import (
	"strings"
	"testing"
)

func newTestRegistry(cfg *Config, path string) *Registry {
	return newRegistry(cfg, path, newQueensSession(cfg, nil))
}

func TestNewSessionID(t *testing.T) {
	reg := newTestRegistry(newTestConfig(), "/queens")

	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id := reg.newSessionID()
		if len(id) != 6 {
			t.Fatalf("expected a 6-character code, got %q", id)
		}
		for _, r := range id {
			if !strings.ContainsRune(letters, r) {
				t.Fatalf("unexpected character %q in code %q", r, id)
			}
		}
		if seen[id] {
			t.Fatalf("code %q repeated within 100 draws", id)
		}
		seen[id] = true
	}
}

func TestJoinURL(t *testing.T) {
	cfg := newTestConfig()
	reg := newTestRegistry(cfg, "/queens")

	if got := reg.joinURL("example.com:8080", "ABC123"); got != "http://example.com:8080/queens?session=ABC123" {
		t.Fatalf("unexpected join URL %q", got)
	}

	cfg.prefix = "/games"
	if got := reg.joinURL("example.com", "ABC123"); got != "http://example.com/games/queens?session=ABC123" {
		t.Fatalf("unexpected prefixed join URL %q", got)
	}

	cfg.frontendURL = "https://play.example.com/cards"
	if got := reg.joinURL("ignored", "ABC123"); got != "https://play.example.com/cards?session=ABC123" {
		t.Fatalf("frontend override should win, got %q", got)
	}
}

func TestDispatchRequiresBinding(t *testing.T) {
	reg := newTestRegistry(newTestConfig(), "/queens")
	c := newTestClient("conn1")

	// Events from a connection that never created or joined a session are
	// dropped without a reply.
	reg.dispatch(c, ClientMessage{Type: "startGame"})
	if msgs := drain(c); len(msgs) != 0 {
		t.Fatalf("expected no replies, got %d", len(msgs))
	}

	// Unknown session codes fail a join explicitly.
	reg.dispatch(c, ClientMessage{Type: "joinGame", SessionID: "NOSUCH", PlayerName: "Ada"})
	result, ok := containsMessage[JoinResultMessage](drain(c))
	if !ok {
		t.Fatal("a failed join should be reported")
	}
	if result.Success || result.Message != "Session not found" {
		t.Fatalf("unexpected join result %+v", result)
	}
}

func TestCreateThenJoinFlow(t *testing.T) {
	reg := newTestRegistry(newTestConfig(), "/queens")

	table := newTestClient("conn-table")
	reg.dispatch(table, ClientMessage{Type: "createGame"})

	created, ok := containsMessage[GameCreatedMessage](drain(table))
	if !ok {
		t.Fatal("the table should receive gameCreated")
	}
	if created.SessionID == "" || created.JoinURL == "" || created.QRPath == "" {
		t.Fatalf("incomplete gameCreated %+v", created)
	}

	// A second createGame on the same connection is ignored.
	reg.dispatch(table, ClientMessage{Type: "createGame"})
	if len(reg.sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(reg.sessions))
	}

	phone := newTestClient("conn-phone")
	reg.dispatch(phone, ClientMessage{Type: "joinGame", SessionID: created.SessionID, PlayerName: "Ada"})

	result, ok := containsMessage[JoinResultMessage](drain(phone))
	if !ok || !result.Success {
		t.Fatalf("join should succeed, got %+v", result)
	}
	if result.SessionID != created.SessionID {
		t.Fatalf("join result names the wrong session: %q", result.SessionID)
	}
}

func TestJoinSecondSessionRejected(t *testing.T) {
	reg := newTestRegistry(newTestConfig(), "/queens")

	tableA := newTestClient("conn-table-a")
	reg.dispatch(tableA, ClientMessage{Type: "createGame"})
	createdA, ok := containsMessage[GameCreatedMessage](drain(tableA))
	if !ok {
		t.Fatal("first table should receive gameCreated")
	}

	tableB := newTestClient("conn-table-b")
	reg.dispatch(tableB, ClientMessage{Type: "createGame"})
	createdB, ok := containsMessage[GameCreatedMessage](drain(tableB))
	if !ok {
		t.Fatal("second table should receive gameCreated")
	}

	phone := newTestClient("conn-phone")
	reg.dispatch(phone, ClientMessage{Type: "joinGame", SessionID: createdA.SessionID, PlayerName: "Ada"})
	if result, ok := containsMessage[JoinResultMessage](drain(phone)); !ok || !result.Success {
		t.Fatalf("first join should succeed, got %+v", result)
	}

	// A bound connection cannot wander to a second session; the seat in
	// the first one would be orphaned without a disconnect.
	reg.dispatch(phone, ClientMessage{Type: "joinGame", SessionID: createdB.SessionID, PlayerName: "Ada"})
	result, ok := containsMessage[JoinResultMessage](drain(phone))
	if !ok {
		t.Fatal("the rejected join should be reported")
	}
	if result.Success {
		t.Fatal("joining a second session must fail")
	}
	if got := reg.bindings[phone].sessionID; got != createdA.SessionID {
		t.Fatalf("the original binding should survive, got %q", got)
	}
}

func TestTrySendDropsWhenFull(t *testing.T) {
	c := &Client{send: make(chan any, 1)}

	if !c.trySend("first") {
		t.Fatal("first send should fit")
	}
	if c.trySend("second") {
		t.Fatal("a full buffer must not block, it must report failure")
	}
}

func TestNewClientID(t *testing.T) {
	a, b := newClientID(), newClientID()
	if len(a) != 32 || len(b) != 32 {
		t.Fatalf("expected 32 hex characters, got %q and %q", a, b)
	}
	if a == b {
		t.Fatal("client ids must be unique")
	}
}
