package main

import (
	"fmt"
	"sync"
	"time"
)

// DiscardedCard is the face-up summary of a discarded card, broadcast for
// the table animation.
type DiscardedCard struct {
	Type  CardType `json:"type"`
	Value int      `json:"value,omitempty"`
}

type CardsDiscardedMessage struct {
	Type        string          `json:"type"` // "cardsDiscarded"
	PlayerID    string          `json:"playerId"`
	PlayerName  string          `json:"playerName"`
	PlayerIndex int             `json:"playerIndex"`
	CardCount   int             `json:"cardCount"`
	Cards       []DiscardedCard `json:"cards"`
}

// QueensSession drives one queens game: it guards every mutation behind
// its lock, owns the turn and counter timers, and rebroadcasts state after
// each change. The underlying QueensGame is never touched by anything
// else.
type QueensSession struct {
	cfg  *Config
	reg  *Registry
	game *QueensGame

	store *ResultStore

	mu         sync.Mutex
	clients    map[*Client]bool
	lastActive time.Time

	turnSeq      int // bumped whenever the guarded condition resolves, to invalidate stale timers
	turnTimer    *time.Timer
	counterTimer *time.Timer

	restartRequests map[string]bool // keyed by player name
}

func newQueensSession(cfg *Config, store *ResultStore) SessionFactory {
	return func(id string, reg *Registry) Session {
		return &QueensSession{
			cfg:             cfg,
			reg:             reg,
			store:           store,
			game:            newQueensGame(id),
			clients:         make(map[*Client]bool),
			lastActive:      time.Now(),
			restartRequests: make(map[string]bool),
		}
	}
}

func (s *QueensSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *QueensSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopTimersLocked()
	for c := range s.clients {
		c.closeSend()
		_ = c.conn.Close()
		delete(s.clients, c)
	}
}

func (s *QueensSession) HandleEvent(c *Client, msg ClientMessage) {
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
	case "playCard":
		s.handlePlayCardLocked(c, msg)
	case "discardCards":
		s.handleDiscardLocked(c, msg)
	case "counterAction":
		s.handleCounterLocked(c, msg)
	case "rejoin":
		s.handleRejoinLocked(c, msg)
	case "requestRestart":
		s.handleRestartLocked(c)
	}
}

func (s *QueensSession) HandleDisconnect(c *Client) {
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

	// The seat survives for rejoin; rotation just treats them as unable
	// to act.
	player.Connected = false
	s.broadcastLocked(ActionResultMessage{
		Type:    "actionResult",
		Success: true,
		Message: fmt.Sprintf("%s disconnected", player.Name),
	})
	s.broadcastStateLocked()
}

func (s *QueensSession) handleCreateLocked(c *Client, msg ClientMessage) {
	s.clients[c] = true

	if msg.Options != nil && msg.Options.AllQueens {
		s.game.allQueens = true
	}

	c.trySend(GameCreatedMessage{
		Type:      "gameCreated",
		SessionID: s.game.sessionID,
		JoinURL:   s.reg.joinURL(c.host, s.game.sessionID),
		QRPath:    s.cfg.prefix + s.reg.path + "/qr/" + s.game.sessionID,
	})
}

func (s *QueensSession) handleJoinLocked(c *Client, msg ClientMessage) {
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

	logf(s.cfg, "GAMES: %q joined queens session %s (%d/%d)", player.Name, s.game.sessionID, len(s.game.players), maxPlayers)
}

func (s *QueensSession) handleStartLocked(c *Client) {
	if len(s.game.players) < 2 {
		s.failLocked(c, "At least 2 players are required")
		return
	}
	if s.game.phase != phaseWaiting && s.game.phase != phaseEnded {
		s.failLocked(c, "Game already started")
		return
	}

	s.game.initialize(NewQueensDeck())

	s.broadcastStateLocked()
	s.sendHandsLocked()
	s.startTurnLocked()

	logf(s.cfg, "GAMES: Queens session %s started with %d players", s.game.sessionID, len(s.game.players))
}

func (s *QueensSession) handlePlayCardLocked(c *Client, msg ClientMessage) {
	player, ok := s.turnGuardLocked(c)
	if !ok {
		return
	}

	card, found := findCard(player.Hand, msg.CardID)
	if !found {
		s.failLocked(c, "Card not found in your hand")
		return
	}

	if valid, reason := ValidatePlay(s.game, player.ID, card, msg.TargetPlayerID, msg.TargetQueenID); !valid {
		s.failLocked(c, reason)
		return
	}

	switch card.Type {
	case CardKing:
		s.playKingLocked(c, player, card, msg.TargetQueenID)
	case CardKnight, CardPotion:
		s.playAttackLocked(player, card, msg.TargetPlayerID, msg.TargetQueenID)
	}
}

func (s *QueensSession) playKingLocked(c *Client, player *QueensPlayer, card Card, targetQueenID string) {
	queen := s.game.sleepingQueen(targetQueenID)

	if CatDogConflict(*queen, player.AwakenedQueens) {
		s.failLocked(c, "Cannot own both the cat queen and the dog queen")
		return
	}

	woken := *queen
	s.game.removeFromHand(player, card.ID)
	s.game.deck.Discard(card)
	s.game.wakeQueen(targetQueenID, player.ID)

	s.broadcastLocked(ActionResultMessage{
		Type:    "actionResult",
		Success: true,
		Message: fmt.Sprintf("%s woke the %s", player.Name, woken.Name),
	})

	// Rose queen bonus: one additional free wake, still subject to the
	// conflict rule. The first queen in the pool is taken, matching the
	// original fixed-pick behavior; a conflicting bonus silently fizzles.
	if woken.Ability == abilityRose && len(s.game.sleepingQueens) > 0 {
		bonus := s.game.sleepingQueens[0]
		if !CatDogConflict(bonus, player.AwakenedQueens) {
			s.game.wakeQueen(bonus.ID, player.ID)
			s.broadcastLocked(ActionResultMessage{
				Type:    "actionResult",
				Success: true,
				Message: fmt.Sprintf("Rose queen bonus! %s also woke the %s", player.Name, bonus.Name),
			})
		}
	}

	if winnerID := s.game.checkWinCondition(); winnerID != "" {
		s.endGameLocked(winnerID)
		return
	}

	s.drawForLocked(player, 1)
	s.endTurnLocked()
}

func (s *QueensSession) playAttackLocked(player *QueensPlayer, card Card, targetPlayerID, targetQueenID string) {
	target := s.game.player(targetPlayerID)
	queen := resolveTargetQueen(target, targetQueenID)

	s.game.removeFromHand(player, card.ID)
	s.game.deck.Discard(card)

	s.game.pendingAction = &pendingAction{
		Type:           card.Type,
		PlayerID:       player.ID,
		TargetPlayerID: target.ID,
		TargetQueenID:  queen.ID,
	}
	s.game.turnPhase = phaseCounter

	counterType, verb := CardDragon, "steal"
	if card.Type == CardPotion {
		counterType, verb = CardWand, "put to sleep"
	}

	s.unicastLocked(target.ID, CounterRequestMessage{
		Type:           "counterRequest",
		CounterType:    string(counterType),
		TargetPlayerID: target.ID,
		AttackerName:   player.Name,
		QueenName:      queen.Name,
		TimeLimit:      s.cfg.counterTimeout.Seconds(),
	})

	s.broadcastLocked(ActionResultMessage{
		Type:    "actionResult",
		Success: true,
		Message: fmt.Sprintf("%s is trying to %s %s's %s!", player.Name, verb, target.Name, queen.Name),
	})

	s.broadcastStateLocked()
	s.armCounterTimerLocked()
}

func (s *QueensSession) handleDiscardLocked(c *Client, msg ClientMessage) {
	player, ok := s.turnGuardLocked(c)
	if !ok {
		return
	}

	cards := make([]Card, 0, len(msg.CardIDs))
	seen := make(map[string]bool, len(msg.CardIDs))
	for _, id := range msg.CardIDs {
		card, found := findCard(player.Hand, id)
		if !found || seen[id] {
			s.failLocked(c, "Card not found in your hand")
			return
		}
		seen[id] = true
		cards = append(cards, card)
	}

	if valid, reason := ValidateDiscard(cards); !valid {
		s.failLocked(c, reason)
		return
	}

	for _, card := range cards {
		s.game.removeFromHand(player, card.ID)
	}
	s.game.deck.Discard(cards...)
	s.drawForLocked(player, len(cards))

	discarded := make([]DiscardedCard, len(cards))
	for i, card := range cards {
		discarded[i] = DiscardedCard{Type: card.Type, Value: card.Value}
	}
	playerIndex := 0
	for i, p := range s.game.players {
		if p.ID == player.ID {
			playerIndex = i
		}
	}

	s.broadcastLocked(CardsDiscardedMessage{
		Type:        "cardsDiscarded",
		PlayerID:    player.ID,
		PlayerName:  player.Name,
		PlayerIndex: playerIndex,
		CardCount:   len(cards),
		Cards:       discarded,
	})

	s.broadcastLocked(ActionResultMessage{
		Type:    "actionResult",
		Success: true,
		Message: fmt.Sprintf("%s discarded %d cards and drew replacements", player.Name, len(cards)),
	})

	s.endTurnLocked()
}

func (s *QueensSession) handleCounterLocked(c *Client, msg ClientMessage) {
	if s.game.turnPhase != phaseCounter || s.game.pendingAction == nil {
		return
	}

	player := s.game.player(c.id)
	if player == nil || s.game.pendingAction.TargetPlayerID != player.ID {
		return
	}

	if !msg.Accept {
		s.stopCounterTimerLocked()
		s.resolvePendingLocked()
		return
	}

	// The timer stays armed until a counter actually lands; a bad card
	// must not leave the attack hanging with no resolution path.
	card, found := findCard(player.Hand, msg.CardID)
	if !found {
		s.failLocked(c, "Card not found in your hand")
		return
	}
	if valid, reason := ValidateCounter(s.game, player.ID, card); !valid {
		s.failLocked(c, reason)
		return
	}

	s.stopCounterTimerLocked()

	pending := s.game.pendingAction
	attacker := s.game.player(pending.PlayerID)

	s.game.removeFromHand(player, card.ID)
	s.game.deck.Discard(card)

	blocked := "the knight"
	if pending.Type == CardPotion {
		blocked = "the sleeping potion"
	}
	s.broadcastLocked(ActionResultMessage{
		Type:    "actionResult",
		Success: true,
		Message: fmt.Sprintf("%s blocked %s with a %s!", player.Name, blocked, card.Name),
	})

	// Both sides spent a card, both sides draw one.
	s.drawForLocked(player, 1)
	if attacker != nil {
		s.drawForLocked(attacker, 1)
	}

	s.game.pendingAction = nil
	s.endTurnLocked()
}

// resolvePendingLocked applies the pending attack after the target
// declined or timed out. A cat/dog conflict on the attacker's side makes a
// knight steal fizzle with the card already spent.
func (s *QueensSession) resolvePendingLocked() {
	pending := s.game.pendingAction
	if pending == nil {
		return
	}

	attacker := s.game.player(pending.PlayerID)
	target := s.game.player(pending.TargetPlayerID)

	switch pending.Type {
	case CardKnight:
		queen := resolveTargetQueen(target, pending.TargetQueenID)
		if queen != nil && attacker != nil {
			if CatDogConflict(*queen, attacker.AwakenedQueens) {
				s.broadcastLocked(ActionResultMessage{
					Type:    "actionResult",
					Success: false,
					Message: "The steal fizzled on the cat/dog conflict",
				})
			} else {
				s.game.stealQueen(queen.ID, target.ID, attacker.ID)
				s.broadcastLocked(ActionResultMessage{
					Type:    "actionResult",
					Success: true,
					Message: fmt.Sprintf("%s stole %s's queen!", attacker.Name, target.Name),
				})
			}
		}
	case CardPotion:
		s.game.sleepQueen(pending.TargetQueenID)
		s.broadcastLocked(ActionResultMessage{
			Type:    "actionResult",
			Success: true,
			Message: fmt.Sprintf("%s's queen went back to sleep!", target.Name),
		})
	}

	if attacker != nil {
		s.drawForLocked(attacker, 1)
	}

	s.game.pendingAction = nil

	if winnerID := s.game.checkWinCondition(); winnerID != "" {
		s.endGameLocked(winnerID)
		return
	}

	s.endTurnLocked()
}

func (s *QueensSession) handleRejoinLocked(c *Client, msg ClientMessage) {
	player := s.game.playerByName(msg.PlayerName)
	if player == nil {
		return
	}

	// Drop any lingering client still holding the seat's old identity.
	for old := range s.clients {
		if old != c && old.id == player.ID {
			delete(s.clients, old)
			old.closeSend()
		}
	}

	player.ID = c.id
	player.Connected = true
	s.clients[c] = true

	// Idempotent resync: full public state plus the private hand.
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

	logf(s.cfg, "GAMES: %q rejoined queens session %s", player.Name, s.game.sessionID)
}

func (s *QueensSession) handleRestartLocked(c *Client) {
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

	s.game.initialize(NewQueensDeck())
	s.restartRequests = make(map[string]bool)

	s.broadcastLocked(ActionResultMessage{
		Type:    "actionResult",
		Success: true,
		Message: "Everyone agreed, starting a rematch!",
	})
	s.broadcastStateLocked()
	s.sendHandsLocked()
	s.startTurnLocked()

	logf(s.cfg, "GAMES: Queens session %s restarted", s.game.sessionID)
}

// turnGuardLocked enforces the entry conditions shared by all primary
// actions: the sender holds the turn and the sub-phase is action.
func (s *QueensSession) turnGuardLocked(c *Client) (*QueensPlayer, bool) {
	if s.game.phase != phasePlaying {
		s.failLocked(c, "The game is not in progress")
		return nil, false
	}

	player := s.game.player(c.id)
	if player == nil {
		return nil, false
	}

	if s.game.currentPlayer().ID != player.ID {
		s.failLocked(c, "It is not your turn")
		return nil, false
	}
	if s.game.turnPhase != phaseAction {
		s.failLocked(c, "An attack is still being resolved")
		return nil, false
	}

	return player, true
}

// canActLocked reports whether the player holds any card that could
// legally be played against the current board.
func (s *QueensSession) canActLocked(player *QueensPlayer) bool {
	hasKing, hasAttack := false, false
	for _, card := range player.Hand {
		switch card.Type {
		case CardNumber:
			// Numbers can always be discarded.
			return true
		case CardKing:
			hasKing = true
		case CardKnight, CardPotion:
			hasAttack = true
		}
	}

	if hasKing && len(s.game.sleepingQueens) > 0 {
		return true
	}

	if hasAttack {
		for _, other := range s.game.players {
			if other.ID != player.ID && other.Connected && len(other.AwakenedQueens) > 0 {
				return true
			}
		}
	}

	// Dragons and wands are counter-window cards only.
	return false
}

// startTurnLocked begins the current player's turn, auto-advancing past
// players who cannot act. The skip run is bounded by the connected player
// count so a table where nobody can move still makes progress.
func (s *QueensSession) startTurnLocked() {
	for {
		if s.game.phase != phasePlaying {
			return
		}

		current := s.game.currentPlayer()
		s.game.turnPhase = phaseAction
		s.game.pendingAction = nil

		if s.canActLocked(current) {
			s.game.consecutiveSkips = 0
			break
		}

		connected := 0
		for _, p := range s.game.players {
			if p.Connected {
				connected++
			}
		}

		s.game.consecutiveSkips++
		if s.game.consecutiveSkips >= connected {
			// Everyone was skipped in a row; stop forcing and let the
			// turn stand.
			s.game.consecutiveSkips = 0
			break
		}

		s.broadcastLocked(ActionResultMessage{
			Type:    "actionResult",
			Success: true,
			Message: fmt.Sprintf("%s has no playable cards, their turn is skipped", current.Name),
		})
		s.broadcastStateLocked()
		s.game.nextTurn()
	}

	current := s.game.currentPlayer()

	s.broadcastLocked(TurnStartMessage{
		Type:       "turnStart",
		PlayerID:   current.ID,
		PlayerName: current.Name,
		TimeLimit:  s.cfg.turnTimeout.Seconds(),
	})
	s.broadcastStateLocked()

	s.armTurnTimerLocked()
}

// endTurnLocked runs the unconditional end-of-turn sequence: cancel the
// turn timer, advance to the next connected player, resend hands and
// state, and start the next turn.
func (s *QueensSession) endTurnLocked() {
	s.stopTimersLocked()
	s.turnSeq++

	s.game.nextTurn()
	s.sendHandsLocked()
	s.broadcastStateLocked()
	s.startTurnLocked()
}

func (s *QueensSession) endGameLocked(winnerID string) {
	s.game.phase = phaseEnded
	s.stopTimersLocked()
	s.turnSeq++
	s.restartRequests = make(map[string]bool)

	// Hands are revealed for end-of-game review.
	s.broadcastLocked(QueensGameEndMessage{
		Type:     "gameEnd",
		WinnerID: winnerID,
		Scores:   s.game.finalScores(),
	})
	s.broadcastStateLocked()

	winner := s.game.player(winnerID)
	if winner != nil {
		logf(s.cfg, "GAMES: Queens session %s ended, winner %q", s.game.sessionID, winner.Name)
	}

	if s.store != nil && winner != nil {
		entries := make([]ResultEntry, len(s.game.players))
		for i, p := range s.game.players {
			entries[i] = ResultEntry{Name: p.Name, Score: p.Score, Collected: len(p.AwakenedQueens)}
		}
		go s.store.Record(s.cfg, "queens", s.game.sessionID, winner.Name, entries)
	}
}

// Timers. Both callbacks re-take the lock and re-check the guarded
// condition: the action may already have resolved synchronously, in which
// case the bumped sequence number makes the timer a no-op.

func (s *QueensSession) armTurnTimerLocked() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	if s.cfg.turnTimeout <= 0 {
		return
	}

	seq := s.turnSeq
	s.turnTimer = time.AfterFunc(s.cfg.turnTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.game.phase != phasePlaying || s.turnSeq != seq || s.game.turnPhase != phaseAction {
			return
		}

		current := s.game.currentPlayer()
		s.broadcastLocked(ActionResultMessage{
			Type:    "actionResult",
			Success: false,
			Message: fmt.Sprintf("%s ran out of time", current.Name),
		})
		s.endTurnLocked()
	})
}

func (s *QueensSession) armCounterTimerLocked() {
	s.stopCounterTimerLocked()
	if s.cfg.counterTimeout <= 0 {
		return
	}

	seq := s.turnSeq
	s.counterTimer = time.AfterFunc(s.cfg.counterTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.game.phase != phasePlaying || s.turnSeq != seq || s.game.pendingAction == nil {
			return
		}

		// No response in time means the attack resolves as played.
		s.resolvePendingLocked()
	})
}

func (s *QueensSession) stopCounterTimerLocked() {
	if s.counterTimer != nil {
		s.counterTimer.Stop()
		s.counterTimer = nil
	}
}

func (s *QueensSession) stopTimersLocked() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	s.stopCounterTimerLocked()
}

// Broadcast helpers. Sends never block; a client with a full buffer is
// dropped the way the reaper would drop it.

func (s *QueensSession) broadcastLocked(msg any) {
	for c := range s.clients {
		if !c.trySend(msg) {
			delete(s.clients, c)
			c.closeSend()
		}
	}
}

func (s *QueensSession) broadcastStateLocked() {
	s.broadcastLocked(s.game.publicState())
}

func (s *QueensSession) unicastLocked(playerID string, msg any) {
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

func (s *QueensSession) sendHandsLocked() {
	for _, player := range s.game.players {
		s.unicastLocked(player.ID, s.game.handMessage(player))
	}
}

func (s *QueensSession) drawForLocked(player *QueensPlayer, count int) {
	player.Hand = append(player.Hand, s.game.deck.Draw(count)...)
	s.unicastLocked(player.ID, s.game.handMessage(player))
}

func (s *QueensSession) failLocked(c *Client, reason string) {
	c.trySend(ActionResultMessage{Type: "actionResult", Success: false, Message: reason})
}

func findCard(hand []Card, cardID string) (Card, bool) {
	for _, card := range hand {
		if card.ID == cardID {
			return card, true
		}
	}
	return Card{}, false
}
