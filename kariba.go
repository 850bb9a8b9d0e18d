package main

import (
	"fmt"
	"math/rand"
	"sort"
)

const (
	karibaAnimalKinds = 8
	karibaCopiesPer   = 8
	karibaHandSize    = 5
	karibaHuntAt      = 3 // slot size that triggers a hunt
	karibaOpenCards   = 3 // expert mode face-up cards
	karibaMouse       = 1
	karibaElephant    = 8
)

// KaribaCard is one animal card. Type is the animal kind, 1 (mouse)
// through 8 (elephant).
type KaribaCard struct {
	Type int    `json:"type"`
	ID   string `json:"id"`
}

// KaribaDeck is a simple draw pile: no discard pile, no reshuffle. When
// it runs out, it stays out.
type KaribaDeck struct {
	cards []KaribaCard
}

func NewKaribaDeck() *KaribaDeck {
	deck := &KaribaDeck{cards: make([]KaribaCard, 0, karibaAnimalKinds*karibaCopiesPer)}
	for kind := 1; kind <= karibaAnimalKinds; kind++ {
		for i := 0; i < karibaCopiesPer; i++ {
			deck.cards = append(deck.cards, KaribaCard{Type: kind, ID: fmt.Sprintf("%d_%d", kind, i)})
		}
	}
	rand.Shuffle(len(deck.cards), func(i, j int) {
		deck.cards[i], deck.cards[j] = deck.cards[j], deck.cards[i]
	})
	return deck
}

// Draw removes up to count cards from the top of the pile.
func (d *KaribaDeck) Draw(count int) []KaribaCard {
	drawn := make([]KaribaCard, 0, count)
	for i := 0; i < count && len(d.cards) > 0; i++ {
		top := len(d.cards) - 1
		drawn = append(drawn, d.cards[top])
		d.cards = d.cards[:top]
	}
	return drawn
}

func (d *KaribaDeck) Remaining() int {
	return len(d.cards)
}

// huntTarget returns the animal kind the just-played kind now hunts, or 0
// when no hunt triggers. A hunt needs at least three cards of the played
// kind at the watering hole; the prey is the nearest lower occupied slot,
// except the mouse, which hunts only the elephant.
func huntTarget(cardType int, wateringHole map[int][]KaribaCard) int {
	if len(wateringHole[cardType]) < karibaHuntAt {
		return 0
	}

	if cardType == karibaMouse {
		if len(wateringHole[karibaElephant]) > 0 {
			return karibaElephant
		}
		return 0
	}

	for target := cardType - 1; target >= 1; target-- {
		if len(wateringHole[target]) > 0 {
			return target
		}
	}
	return 0
}

// KaribaPlayer is one seat in a kariba session.
type KaribaPlayer struct {
	ID        string
	Name      string
	Hand      []KaribaCard
	Collected []KaribaCard
	Connected bool
}

// HuntResultMessage describes a completed hunt, broadcast for the table
// animation.
type HuntResultMessage struct {
	Type       string `json:"type"` // "huntResult"
	HunterType int    `json:"hunterType"`
	HuntedType int    `json:"huntedType"`
	CardCount  int    `json:"cardCount"`
	HunterName string `json:"hunterName"`
	HunterID   string `json:"hunterId"`
}

// KaribaGame is the authoritative state of one kariba session, owned by
// its KaribaSession.
type KaribaGame struct {
	sessionID          string
	phase              string
	players            []*KaribaPlayer
	deck               *KaribaDeck
	wateringHole       map[int][]KaribaCard
	currentPlayerIndex int
	expertMode         bool
	openCards          []KaribaCard
	lastHunt           *HuntResultMessage
}

func newKaribaGame(sessionID string) *KaribaGame {
	return &KaribaGame{
		sessionID: sessionID,
		phase:     phaseWaiting,
	}
}

func (g *KaribaGame) addPlayer(id, name string) *KaribaPlayer {
	if len(g.players) >= maxPlayers {
		return nil
	}
	if g.playerByName(name) != nil {
		return nil
	}

	player := &KaribaPlayer{ID: id, Name: name, Connected: true}
	g.players = append(g.players, player)
	return player
}

func (g *KaribaGame) player(id string) *KaribaPlayer {
	for _, p := range g.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *KaribaGame) playerByName(name string) *KaribaPlayer {
	for _, p := range g.players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (g *KaribaGame) currentPlayer() *KaribaPlayer {
	return g.players[g.currentPlayerIndex]
}

// initialize deals fresh hands from a new deck and clears the watering
// hole. Used for the first start and for rematches.
func (g *KaribaGame) initialize(deck *KaribaDeck) {
	g.deck = deck
	g.wateringHole = make(map[int][]KaribaCard, karibaAnimalKinds)
	for kind := 1; kind <= karibaAnimalKinds; kind++ {
		g.wateringHole[kind] = []KaribaCard{}
	}

	for _, player := range g.players {
		player.Hand = g.deck.Draw(karibaHandSize)
		player.Collected = nil
	}

	if g.expertMode {
		g.openCards = g.deck.Draw(karibaOpenCards)
	} else {
		g.openCards = nil
	}

	g.currentPlayerIndex = 0
	g.phase = phasePlaying
	g.lastHunt = nil
}

func (g *KaribaGame) nextTurn() {
	next := (g.currentPlayerIndex + 1) % len(g.players)
	for attempts := 0; !g.players[next].Connected && attempts < len(g.players); attempts++ {
		next = (next + 1) % len(g.players)
	}
	g.currentPlayerIndex = next
}

// playCards places count cards of one kind at the watering hole, resolves
// any hunt, and refills the hand back up to five. It validates fully
// before mutating anything.
func (g *KaribaGame) playCards(playerID string, cardType, count int) (*HuntResultMessage, bool, string) {
	player := g.player(playerID)
	if player == nil {
		return nil, false, "Player not found"
	}
	if g.currentPlayer().ID != playerID {
		return nil, false, "It is not your turn"
	}
	if cardType < 1 || cardType > karibaAnimalKinds {
		return nil, false, "Unknown animal"
	}
	if count < 1 {
		return nil, false, "Play at least one card"
	}

	held := 0
	for _, card := range player.Hand {
		if card.Type == cardType {
			held++
		}
	}
	if held < count {
		return nil, false, "You do not have that many cards of that animal"
	}

	removed := 0
	kept := player.Hand[:0]
	for _, card := range player.Hand {
		if card.Type == cardType && removed < count {
			removed++
			g.wateringHole[cardType] = append(g.wateringHole[cardType], card)
			continue
		}
		kept = append(kept, card)
	}
	player.Hand = kept

	var hunt *HuntResultMessage
	if target := huntTarget(cardType, g.wateringHole); target != 0 {
		prey := g.wateringHole[target]
		player.Collected = append(player.Collected, prey...)
		g.wateringHole[target] = []KaribaCard{}
		hunt = &HuntResultMessage{
			Type:       "huntResult",
			HunterType: cardType,
			HuntedType: target,
			CardCount:  len(prey),
			HunterName: player.Name,
			HunterID:   player.ID,
		}
	}
	g.lastHunt = hunt

	if refill := karibaHandSize - len(player.Hand); refill > 0 {
		player.Hand = append(player.Hand, g.deck.Draw(refill)...)
	}

	if g.expertMode && len(g.openCards) < karibaOpenCards {
		g.openCards = append(g.openCards, g.deck.Draw(karibaOpenCards-len(g.openCards))...)
	}

	if g.isOver() {
		g.phase = phaseEnded
		return hunt, true, ""
	}

	g.nextTurn()
	return hunt, false, ""
}

// isOver reports game end: the deck is exhausted and someone's hand is
// empty.
func (g *KaribaGame) isOver() bool {
	if g.deck.Remaining() > 0 {
		return false
	}
	for _, p := range g.players {
		if len(p.Hand) == 0 {
			return true
		}
	}
	return false
}

// winner returns the player with the most collected cards.
func (g *KaribaGame) winner() *KaribaPlayer {
	var best *KaribaPlayer
	max := -1
	for _, p := range g.players {
		if len(p.Collected) > max {
			max = len(p.Collected)
			best = p
		}
	}
	return best
}

type KaribaScore struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// scores returns all players ordered by collected card count, best first.
func (g *KaribaGame) scores() []KaribaScore {
	scores := make([]KaribaScore, len(g.players))
	for i, p := range g.players {
		scores[i] = KaribaScore{ID: p.ID, Name: p.Name, Score: len(p.Collected)}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}

type KaribaPlayerSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	HandCount      int    `json:"handCount"`
	CollectedCount int    `json:"collectedCount"`
	Connected      bool   `json:"connected"`
}

// KaribaStateMessage is the spectator-safe broadcast view.
type KaribaStateMessage struct {
	Type              string                `json:"type"` // "gameState"
	SessionID         string                `json:"sessionId"`
	Phase             string                `json:"phase"`
	ExpertMode        bool                  `json:"expertMode"`
	WateringHole      map[int][]KaribaCard  `json:"wateringHole"`
	DeckRemaining     int                   `json:"deckRemaining"`
	OpenCards         []KaribaCard          `json:"openCards,omitempty"`
	Players           []KaribaPlayerSummary `json:"players"`
	CurrentPlayerID   string                `json:"currentPlayerId,omitempty"`
	CurrentPlayerName string                `json:"currentPlayerName,omitempty"`
	LastHunt          *HuntResultMessage    `json:"lastHunt,omitempty"`
}

// KaribaHandMessage is the owner-private view.
type KaribaHandMessage struct {
	Type  string       `json:"type"` // "playerHand"
	Cards []KaribaCard `json:"cards"`
}

type KaribaGameEndMessage struct {
	Type       string        `json:"type"` // "gameEnd"
	WinnerID   string        `json:"winnerId"`
	WinnerName string        `json:"winnerName"`
	Scores     []KaribaScore `json:"scores"`
}

func (g *KaribaGame) publicState() KaribaStateMessage {
	players := make([]KaribaPlayerSummary, len(g.players))
	for i, p := range g.players {
		players[i] = KaribaPlayerSummary{
			ID:             p.ID,
			Name:           p.Name,
			HandCount:      len(p.Hand),
			CollectedCount: len(p.Collected),
			Connected:      p.Connected,
		}
	}

	state := KaribaStateMessage{
		Type:         "gameState",
		SessionID:    g.sessionID,
		Phase:        g.phase,
		ExpertMode:   g.expertMode,
		WateringHole: g.wateringHole,
		Players:      players,
		OpenCards:    g.openCards,
		LastHunt:     g.lastHunt,
	}
	if g.deck != nil {
		state.DeckRemaining = g.deck.Remaining()
	}
	if g.phase == phasePlaying && len(g.players) > 0 {
		state.CurrentPlayerID = g.currentPlayer().ID
		state.CurrentPlayerName = g.currentPlayer().Name
	}
	return state
}

func (g *KaribaGame) handMessage(player *KaribaPlayer) KaribaHandMessage {
	cards := make([]KaribaCard, len(player.Hand))
	copy(cards, player.Hand)
	return KaribaHandMessage{Type: "playerHand", Cards: cards}
}
