package main

import (
	"fmt"
	"sync"
	"time"
)

// KaribaSession drives one kariba game the same way QueensSession drives
// queens: every mutation under the lock, broadcasts after each change.
// There is no counter window in this game, only an optional turn timer.
type KaribaSession struct {
	cfg  *Config
	reg  *Registry
	game *KaribaGame

	store *ResultStore

	mu         sync.Mutex
	clients    map[*Client]bool
	lastActive time.Time

	turnSeq   int
	turnTimer *time.Timer

	restartRequests map[string]bool
}

func newKaribaSession(cfg *Config, store *ResultStore) SessionFactory {
	return func(id string, reg *Registry) Session {
		return &KaribaSession{
			cfg:             cfg,
			reg:             reg,
			store:           store,
			game:            newKaribaGame(id),
			clients:         make(map[*Client]bool),
			lastActive:      time.Now(),
			restartRequests: make(map[string]bool),
		}
	}
}

func (s *KaribaSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *KaribaSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTurnTimerLocked()
	for c := range s.clients {
		c.closeSend()
		_ = c.conn.Close()
		delete(s.clients, c)
	}
}

func (s *KaribaSession) HandleEvent(c *Client, msg ClientMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()

	switch msg.Type {
	case "createGame":
		s.handleCreateLocked(c, msg)
	case "joinGame":
		s.handleJoinLocked(c, msg)
	case "startGame":
		s.handleStartLocked(c)
	case "playCards":
		s.handlePlayCardsLocked(c, msg)
	case "rejoin":
		s.handleRejoinLocked(c, msg)
	case "requestRestart":
		s.handleRestartLocked(c)
	}
}

func (s *KaribaSession) HandleDisconnect(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.clients[c] {
		return
	}
	delete(s.clients, c)
	c.closeSend()

	player := s.game.player(c.id)
	if player == nil {
		return
	}

	player.Connected = false
	s.broadcastLocked(ActionResultMessage{
		Type:    "actionResult",
		Success: true,
		Message: fmt.Sprintf("%s disconnected", player.Name),
	})
	s.broadcastStateLocked()
}

func (s *KaribaSession) handleCreateLocked(c *Client, msg ClientMessage) {
	s.clients[c] = true

	if msg.Options != nil && msg.Options.ExpertMode {
		s.game.expertMode = true
	}

	c.trySend(GameCreatedMessage{
		Type:      "gameCreated",
		SessionID: s.game.sessionID,
		JoinURL:   s.reg.joinURL(c.host, s.game.sessionID),
		QRPath:    s.cfg.prefix + s.reg.path + "/qr/" + s.game.sessionID,
	})
}

func (s *KaribaSession) handleJoinLocked(c *Client, msg ClientMessage) {
	if s.game.phase != phaseWaiting {
		c.trySend(JoinResultMessage{Type: "joinResult", Success: false, Message: "Game already started"})
		return
	}
	if msg.PlayerName == "" {
		c.trySend(JoinResultMessage{Type: "joinResult", Success: false, Message: "A name is required"})
		return
	}

	player := s.game.addPlayer(c.id, msg.PlayerName)
	if player == nil {
		reason := "That name is already taken"
		if len(s.game.players) >= maxPlayers {
			reason = "The game is full"
		}
		c.trySend(JoinResultMessage{Type: "joinResult", Success: false, Message: reason})
		return
	}

	s.clients[c] = true

	c.trySend(JoinResultMessage{
		Type:       "joinResult",
		Success:    true,
		PlayerID:   player.ID,
		PlayerName: player.Name,
		SessionID:  s.game.sessionID,
	})

	s.broadcastLocked(PlayerJoinedMessage{
		Type:        "playerJoined",
		PlayerID:    player.ID,
		PlayerName:  player.Name,
		PlayerCount: len(s.game.players),
	})

	logf(s.cfg, "GAMES: %q joined kariba session %s (%d/%d)", player.Name, s.game.sessionID, len(s.game.players), maxPlayers)
}

func (s *KaribaSession) handleStartLocked(c *Client) {
	if len(s.game.players) < 2 {
		s.failLocked(c, "At least 2 players are required")
		return
	}
	if s.game.phase != phaseWaiting && s.game.phase != phaseEnded {
		s.failLocked(c, "Game already started")
		return
	}

	s.game.initialize(NewKaribaDeck())

	s.broadcastStateLocked()
	s.sendHandsLocked()
	s.announceTurnLocked()

	logf(s.cfg, "GAMES: Kariba session %s started with %d players", s.game.sessionID, len(s.game.players))
}

func (s *KaribaSession) handlePlayCardsLocked(c *Client, msg ClientMessage) {
	if s.game.phase != phasePlaying {
		s.failLocked(c, "The game is not in progress")
		return
	}

	hunt, over, reason := s.game.playCards(c.id, msg.CardType, msg.Count)
	if reason != "" {
		s.failLocked(c, reason)
		return
	}

	s.stopTurnTimerLocked()
	s.turnSeq++

	s.broadcastStateLocked()
	s.sendHandsLocked()

	if hunt != nil {
		s.broadcastLocked(*hunt)
	}

	if over {
		s.endGameLocked()
		return
	}

	s.announceTurnLocked()
}

func (s *KaribaSession) handleRejoinLocked(c *Client, msg ClientMessage) {
	player := s.game.playerByName(msg.PlayerName)
	if player == nil {
		return
	}

	for old := range s.clients {
		if old != c && old.id == player.ID {
			delete(s.clients, old)
			old.closeSend()
		}
	}

	player.ID = c.id
	player.Connected = true
	s.clients[c] = true

	c.trySend(s.game.publicState())
	c.trySend(s.game.handMessage(player))
	if s.game.phase == phasePlaying {
		current := s.game.currentPlayer()
		c.trySend(TurnStartMessage{
			Type:       "turnStart",
			PlayerID:   current.ID,
			PlayerName: current.Name,
			TimeLimit:  s.cfg.turnTimeout.Seconds(),
		})
	}

	s.broadcastLocked(ActionResultMessage{
		Type:    "actionResult",
		Success: true,
		Message: fmt.Sprintf("%s reconnected", player.Name),
	})
	s.broadcastStateLocked()

	logf(s.cfg, "GAMES: %q rejoined kariba session %s", player.Name, s.game.sessionID)
}

func (s *KaribaSession) handleRestartLocked(c *Client) {
	player := s.game.player(c.id)
	if player == nil || s.game.phase != phaseEnded {
		return
	}

	s.restartRequests[player.Name] = true

	current := len(s.restartRequests)
	total := len(s.game.players)

	s.broadcastLocked(RestartStatusMessage{Type: "restartStatus", Current: current, Total: total})
	s.broadcastLocked(ActionResultMessage{
		Type:    "actionResult",
		Success: true,
		Message: fmt.Sprintf("%s requested a rematch (%d/%d)", player.Name, current, total),
	})

	if current < total {
		return
	}

	s.game.initialize(NewKaribaDeck())
	s.restartRequests = make(map[string]bool)

	s.broadcastLocked(ActionResultMessage{
		Type:    "actionResult",
		Success: true,
		Message: "Everyone agreed, starting a rematch!",
	})
	s.broadcastStateLocked()
	s.sendHandsLocked()
	s.announceTurnLocked()

	logf(s.cfg, "GAMES: Kariba session %s restarted", s.game.sessionID)
}

func (s *KaribaSession) endGameLocked() {
	s.stopTurnTimerLocked()
	s.turnSeq++
	s.restartRequests = make(map[string]bool)

	winner := s.game.winner()
	msg := KaribaGameEndMessage{
		Type:   "gameEnd",
		Scores: s.game.scores(),
	}
	if winner != nil {
		msg.WinnerID = winner.ID
		msg.WinnerName = winner.Name
	}
	s.broadcastLocked(msg)
	s.broadcastStateLocked()

	if winner != nil {
		logf(s.cfg, "GAMES: Kariba session %s ended, winner %q", s.game.sessionID, winner.Name)
	}

	if s.store != nil && winner != nil {
		entries := make([]ResultEntry, len(s.game.players))
		for i, p := range s.game.players {
			entries[i] = ResultEntry{Name: p.Name, Score: len(p.Collected), Collected: len(p.Collected)}
		}
		go s.store.Record(s.cfg, "kariba", s.game.sessionID, winner.Name, entries)
	}
}

func (s *KaribaSession) announceTurnLocked() {
	current := s.game.currentPlayer()

	s.broadcastLocked(TurnStartMessage{
		Type:       "turnStart",
		PlayerID:   current.ID,
		PlayerName: current.Name,
		TimeLimit:  s.cfg.turnTimeout.Seconds(),
	})

	s.armTurnTimerLocked()
}

func (s *KaribaSession) armTurnTimerLocked() {
	s.stopTurnTimerLocked()
	if s.cfg.turnTimeout <= 0 {
		return
	}

	seq := s.turnSeq
	s.turnTimer = time.AfterFunc(s.cfg.turnTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.game.phase != phasePlaying || s.turnSeq != seq {
			return
		}

		current := s.game.currentPlayer()
		s.broadcastLocked(ActionResultMessage{
			Type:    "actionResult",
			Success: false,
			Message: fmt.Sprintf("%s ran out of time", current.Name),
		})

		s.turnSeq++
		s.game.nextTurn()
		s.broadcastStateLocked()
		s.announceTurnLocked()
	})
}

func (s *KaribaSession) stopTurnTimerLocked() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
}

func (s *KaribaSession) broadcastLocked(msg any) {
	for c := range s.clients {
		if !c.trySend(msg) {
			delete(s.clients, c)
			c.closeSend()
		}
	}
}

func (s *KaribaSession) broadcastStateLocked() {
	s.broadcastLocked(s.game.publicState())
}

func (s *KaribaSession) unicastLocked(playerID string, msg any) {
	for c := range s.clients {
		if c.id == playerID {
			if !c.trySend(msg) {
				delete(s.clients, c)
				c.closeSend()
			}
			return
		}
	}
}

func (s *KaribaSession) sendHandsLocked() {
	for _, player := range s.game.players {
		s.unicastLocked(player.ID, s.game.handMessage(player))
	}
}

func (s *KaribaSession) failLocked(c *Client, reason string) {
	c.trySend(ActionResultMessage{Type: "actionResult", Success: false, Message: reason})
}
