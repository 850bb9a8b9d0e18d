package main

import (
	"fmt"
	"math/rand"
	"strings"
)

// CardType enumerates the kinds of cards in the queens deck.
type CardType string

const (
	CardKing   CardType = "king"
	CardKnight CardType = "knight"
	CardPotion CardType = "potion"
	CardWand   CardType = "wand"
	CardDragon CardType = "dragon"
	CardNumber CardType = "number"
)

// Card is an immutable card identity. A card lives in exactly one
// collection at a time: draw pile, discard pile, or a player's hand.
type Card struct {
	ID      string   `json:"id"`
	Type    CardType `json:"type"`
	Value   int      `json:"value,omitempty"`
	Variant string   `json:"variant,omitempty"`
	Name    string   `json:"name"`
}

// Deck owns the draw and discard piles. The top of the draw pile is the
// last element.
type Deck struct {
	drawPile    []Card
	discardPile []Card
}

// NewQueensDeck builds the shuffled 64-card deck: 8 kings, 4 knights,
// 4 potions, 4 wands, 4 dragons, and 40 number cards (1-10, four each).
func NewQueensDeck() *Deck {
	cards := make([]Card, 0, 64)

	kingVariants := []string{"bubblegum", "chess", "cookie", "fire", "puzzle", "tiedye", "turtle", "hat"}
	for i, variant := range kingVariants {
		cards = append(cards, Card{
			ID:      fmt.Sprintf("king_%d", i+1),
			Type:    CardKing,
			Variant: variant,
			Name:    "King " + titleCase(variant),
		})
	}

	knightVariants := []string{"dark", "jester", "red", "robot"}
	for i, variant := range knightVariants {
		cards = append(cards, Card{
			ID:      fmt.Sprintf("knight_%d", i+1),
			Type:    CardKnight,
			Variant: variant,
			Name:    "Knight " + titleCase(variant),
		})
	}

	for i := 1; i <= 4; i++ {
		cards = append(cards, Card{
			ID:   fmt.Sprintf("potion_%d", i),
			Type: CardPotion,
			Name: "Sleeping Potion",
		})
	}

	for i := 1; i <= 4; i++ {
		cards = append(cards, Card{
			ID:   fmt.Sprintf("wand_%d", i),
			Type: CardWand,
			Name: "Magic Wand",
		})
	}

	for i := 1; i <= 4; i++ {
		cards = append(cards, Card{
			ID:   fmt.Sprintf("dragon_%d", i),
			Type: CardDragon,
			Name: "Dragon",
		})
	}

	for num := 1; num <= 10; num++ {
		for i := 1; i <= 4; i++ {
			cards = append(cards, Card{
				ID:    fmt.Sprintf("number_%d_%d", num, i),
				Type:  CardNumber,
				Value: num,
				Name:  fmt.Sprintf("Number %d", num),
			})
		}
	}

	deck := &Deck{drawPile: cards}
	deck.shuffle()
	return deck
}

func (d *Deck) shuffle() {
	rand.Shuffle(len(d.drawPile), func(i, j int) {
		d.drawPile[i], d.drawPile[j] = d.drawPile[j], d.drawPile[i]
	})
}

// Draw removes up to count cards from the top of the draw pile. An empty
// draw pile pulls the discard pile back in and reshuffles; if both piles
// run out, fewer cards are returned and callers must tolerate the short
// draw.
func (d *Deck) Draw(count int) []Card {
	drawn := make([]Card, 0, count)

	for i := 0; i < count; i++ {
		if len(d.drawPile) == 0 {
			d.reshuffleDiscard()
			if len(d.drawPile) == 0 {
				break
			}
		}
		top := len(d.drawPile) - 1
		drawn = append(drawn, d.drawPile[top])
		d.drawPile = d.drawPile[:top]
	}

	return drawn
}

// Discard appends cards to the discard pile. Discarding never triggers a
// reshuffle; only Draw does.
func (d *Deck) Discard(cards ...Card) {
	d.discardPile = append(d.discardPile, cards...)
}

func (d *Deck) reshuffleDiscard() {
	if len(d.discardPile) == 0 {
		return
	}

	d.drawPile = append(d.drawPile, d.discardPile...)
	d.discardPile = d.discardPile[:0:0]
	d.shuffle()
}

// DrawCount returns the number of cards left in the draw pile.
func (d *Deck) DrawCount() int {
	return len(d.drawPile)
}

// DiscardCount returns the number of cards in the discard pile.
func (d *Deck) DiscardCount() int {
	return len(d.discardPile)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
