package main

import (
	"math/rand"
)

const (
	maxPlayers       = 4
	startingHandSize = 5
	abilityCat       = "cat"
	abilityDog       = "dog"
	abilityRose      = "rose"
	phaseWaiting     = "waiting"
	phasePlaying     = "playing"
	phaseEnded       = "ended"
	phaseAction      = "action"
	phaseCounter     = "counter"
)

// Queen is a collectible pool item. Sleeping queens are face down; only
// their position is public until woken.
type Queen struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Points  int    `json:"points"`
	Ability string `json:"ability"`
}

var queensPool = []Queen{
	{ID: "queen_1", Name: "Rose Queen", Points: 5, Ability: "rose"},
	{ID: "queen_2", Name: "Cat Queen", Points: 15, Ability: "cat"},
	{ID: "queen_3", Name: "Dog Queen", Points: 15, Ability: "dog"},
	{ID: "queen_4", Name: "Pancake Queen", Points: 15, Ability: "pancake"},
	{ID: "queen_5", Name: "Sunflower Queen", Points: 10, Ability: "sunflower"},
	{ID: "queen_6", Name: "Rainbow Queen", Points: 10, Ability: "rainbow"},
	{ID: "queen_7", Name: "Moon Queen", Points: 10, Ability: "moon"},
	{ID: "queen_8", Name: "Starfish Queen", Points: 5, Ability: "starfish"},
	{ID: "queen_9", Name: "Heart Queen", Points: 20, Ability: "heart"},
	{ID: "queen_10", Name: "Ladybug Queen", Points: 10, Ability: "ladybug"},
	{ID: "queen_11", Name: "Cake Queen", Points: 5, Ability: "cake"},
	{ID: "queen_12", Name: "Peacock Queen", Points: 15, Ability: "peacock"},
}

// QueensPlayer holds one seat in a queens session. ID is the current
// connection identity and changes on rejoin; Name is the durable key.
type QueensPlayer struct {
	ID             string
	Name           string
	Hand           []Card
	AwakenedQueens []Queen
	Score          int
	Connected      bool
}

// pendingAction is the single in-flight adversarial action awaiting a
// counter response.
type pendingAction struct {
	Type           CardType // knight or potion
	PlayerID       string
	TargetPlayerID string
	TargetQueenID  string
}

// QueensGame is the authoritative state of one queens session. It is
// mutated only by its QueensSession under that session's lock.
type QueensGame struct {
	sessionID          string
	phase              string
	turnPhase          string
	players            []*QueensPlayer
	sleepingQueens     []Queen
	currentPlayerIndex int
	pendingAction      *pendingAction
	deck               *Deck
	allQueens          bool // house rule: play until the pool is empty
	consecutiveSkips   int
}

func newQueensGame(sessionID string) *QueensGame {
	return &QueensGame{
		sessionID: sessionID,
		phase:     phaseWaiting,
	}
}

// addPlayer seats a new player. It returns nil when the roster is full or
// the name is already taken.
func (g *QueensGame) addPlayer(id, name string) *QueensPlayer {
	if len(g.players) >= maxPlayers {
		return nil
	}
	if g.playerByName(name) != nil {
		return nil
	}

	player := &QueensPlayer{
		ID:        id,
		Name:      name,
		Connected: true,
	}
	g.players = append(g.players, player)
	return player
}

func (g *QueensGame) player(id string) *QueensPlayer {
	for _, p := range g.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *QueensGame) playerByName(name string) *QueensPlayer {
	for _, p := range g.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (g *QueensGame) currentPlayer() *QueensPlayer {
	return g.players[g.currentPlayerIndex]
}

func (g *QueensGame) sleepingQueen(queenID string) *Queen {
	for i := range g.sleepingQueens {
		if g.sleepingQueens[i].ID == queenID {
			return &g.sleepingQueens[i]
		}
	}
	return nil
}

// initialize resets hands, collections and scores, shuffles the queen
// pool, deals the starting hands, and moves the game into the playing
// phase with the first seat to act. It is used both for the first start
// and for in-place rematches.
func (g *QueensGame) initialize(deck *Deck) {
	g.deck = deck

	g.sleepingQueens = make([]Queen, len(queensPool))
	copy(g.sleepingQueens, queensPool)
	rand.Shuffle(len(g.sleepingQueens), func(i, j int) {
		g.sleepingQueens[i], g.sleepingQueens[j] = g.sleepingQueens[j], g.sleepingQueens[i]
	})

	for _, player := range g.players {
		player.Hand = g.deck.Draw(startingHandSize)
		player.AwakenedQueens = nil
		player.Score = 0
	}

	g.phase = phasePlaying
	g.turnPhase = phaseAction
	g.currentPlayerIndex = 0
	g.pendingAction = nil
	g.consecutiveSkips = 0
}

// nextTurn advances the turn pointer, skipping disconnected players but
// never removing them from rotation. The scan is bounded by the roster
// size so a fully disconnected table still advances.
func (g *QueensGame) nextTurn() {
	next := (g.currentPlayerIndex + 1) % len(g.players)

	for attempts := 0; !g.players[next].Connected && attempts < len(g.players); attempts++ {
		next = (next + 1) % len(g.players)
	}

	g.currentPlayerIndex = next
	g.turnPhase = phaseAction
}

// removeFromHand takes a card out of a player's hand by id. It reports
// whether the card was present.
func (g *QueensGame) removeFromHand(player *QueensPlayer, cardID string) (Card, bool) {
	for i, card := range player.Hand {
		if card.ID == cardID {
			player.Hand = append(player.Hand[:i], player.Hand[i+1:]...)
			return card, true
		}
	}
	return Card{}, false
}

// wakeQueen moves a queen from the sleeping pool to a player's collection
// and recomputes their score.
func (g *QueensGame) wakeQueen(queenID, playerID string) bool {
	player := g.player(playerID)
	if player == nil {
		return false
	}

	for i, queen := range g.sleepingQueens {
		if queen.ID == queenID {
			g.sleepingQueens = append(g.sleepingQueens[:i], g.sleepingQueens[i+1:]...)
			player.AwakenedQueens = append(player.AwakenedQueens, queen)
			g.recalculateScore(player)
			return true
		}
	}
	return false
}

// sleepQueen returns an awakened queen to the pool, wherever it is held.
func (g *QueensGame) sleepQueen(queenID string) bool {
	for _, player := range g.players {
		for i, queen := range player.AwakenedQueens {
			if queen.ID == queenID {
				player.AwakenedQueens = append(player.AwakenedQueens[:i], player.AwakenedQueens[i+1:]...)
				g.sleepingQueens = append(g.sleepingQueens, queen)
				g.recalculateScore(player)
				return true
			}
		}
	}
	return false
}

// stealQueen transfers a queen between players and recomputes both
// scores.
func (g *QueensGame) stealQueen(queenID, fromPlayerID, toPlayerID string) bool {
	from := g.player(fromPlayerID)
	to := g.player(toPlayerID)
	if from == nil || to == nil {
		return false
	}

	for i, queen := range from.AwakenedQueens {
		if queen.ID == queenID {
			from.AwakenedQueens = append(from.AwakenedQueens[:i], from.AwakenedQueens[i+1:]...)
			to.AwakenedQueens = append(to.AwakenedQueens, queen)
			g.recalculateScore(from)
			g.recalculateScore(to)
			return true
		}
	}
	return false
}

// Score is derived from the collection, never stored independently.
func (g *QueensGame) recalculateScore(player *QueensPlayer) {
	total := 0
	for _, queen := range player.AwakenedQueens {
		total += queen.Points
	}
	player.Score = total
}

// checkWinCondition returns the winning player's id, or "" while the game
// is still undecided. Under the all-queens house rule the game runs until
// the pool is empty and the highest score wins; otherwise the first
// player to reach the count or point threshold wins immediately.
func (g *QueensGame) checkWinCondition() string {
	if g.allQueens {
		if len(g.sleepingQueens) > 0 {
			return ""
		}
		best := g.players[0]
		for _, player := range g.players[1:] {
			if player.Score > best.Score {
				best = player
			}
		}
		return best.ID
	}

	want := WinConditionFor(len(g.players))
	for _, player := range g.players {
		if len(player.AwakenedQueens) >= want.Queens || player.Score >= want.Points {
			return player.ID
		}
	}
	return ""
}

// Public projections. HiddenQueen deliberately omits name, points and
// ability: sleeping queens are face down and only selectable by position.

type HiddenQueen struct {
	ID     string `json:"id"`
	Index  int    `json:"index"`
	Hidden bool   `json:"hidden"`
}

type QueensPlayerSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	QueenCount     int     `json:"queenCount"`
	AwakenedQueens []Queen `json:"awakenedQueens"`
	Score          int     `json:"score"`
	Connected      bool    `json:"connected"`
	HandCount      int     `json:"handCount"`
}

// QueensStateMessage is the spectator-safe broadcast view: hand counts
// instead of hand contents, face-down queens as bare identifiers.
type QueensStateMessage struct {
	Type               string                `json:"type"` // "gameState"
	Phase              string                `json:"phase"`
	TurnPhase          string                `json:"turnPhase,omitempty"`
	CurrentPlayerID    string                `json:"currentPlayerId,omitempty"`
	AllQueens          bool                  `json:"allQueens,omitempty"`
	SleepingQueens     []HiddenQueen         `json:"sleepingQueens"`
	SleepingQueenCount int                   `json:"sleepingQueenCount"`
	DeckCount          int                   `json:"deckCount"`
	DiscardCount       int                   `json:"discardCount"`
	Players            []QueensPlayerSummary `json:"players"`
}

// QueensHandMessage is the owner-private view, unicast to one player.
type QueensHandMessage struct {
	Type  string `json:"type"` // "playerHand"
	Cards []Card `json:"cards"`
}

type QueensScore struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Score          int     `json:"score"`
	QueenCount     int     `json:"queenCount"`
	Hand           []Card  `json:"hand"`
	AwakenedQueens []Queen `json:"awakenedQueens"`
}

// QueensGameEndMessage reveals all hidden information for end-of-game
// review.
type QueensGameEndMessage struct {
	Type     string        `json:"type"` // "gameEnd"
	WinnerID string        `json:"winnerId"`
	Scores   []QueensScore `json:"scores"`
}

func (g *QueensGame) publicState() QueensStateMessage {
	sleeping := make([]HiddenQueen, len(g.sleepingQueens))
	for i, queen := range g.sleepingQueens {
		sleeping[i] = HiddenQueen{ID: queen.ID, Index: i, Hidden: true}
	}

	players := make([]QueensPlayerSummary, len(g.players))
	for i, p := range g.players {
		queens := make([]Queen, len(p.AwakenedQueens))
		copy(queens, p.AwakenedQueens)
		players[i] = QueensPlayerSummary{
			ID:             p.ID,
			Name:           p.Name,
			QueenCount:     len(p.AwakenedQueens),
			AwakenedQueens: queens,
			Score:          p.Score,
			Connected:      p.Connected,
			HandCount:      len(p.Hand),
		}
	}

	state := QueensStateMessage{
		Type:               "gameState",
		Phase:              g.phase,
		TurnPhase:          g.turnPhase,
		AllQueens:          g.allQueens,
		SleepingQueens:     sleeping,
		SleepingQueenCount: len(g.sleepingQueens),
		Players:            players,
	}
	if g.phase == phasePlaying && len(g.players) > 0 {
		state.CurrentPlayerID = g.currentPlayer().ID
	}
	if g.deck != nil {
		state.DeckCount = g.deck.DrawCount()
		state.DiscardCount = g.deck.DiscardCount()
	}
	return state
}

func (g *QueensGame) handMessage(player *QueensPlayer) QueensHandMessage {
	cards := make([]Card, len(player.Hand))
	copy(cards, player.Hand)
	return QueensHandMessage{Type: "playerHand", Cards: cards}
}

func (g *QueensGame) finalScores() []QueensScore {
	scores := make([]QueensScore, len(g.players))
	for i, p := range g.players {
		scores[i] = QueensScore{
			ID:             p.ID,
			Name:           p.Name,
			Score:          p.Score,
			QueenCount:     len(p.AwakenedQueens),
			Hand:           p.Hand,
			AwakenedQueens: p.AwakenedQueens,
		}
	}
	return scores
}
