package main

import (
	"testing"
)

func TestNewQueensDeckComposition(t *testing.T) {
	deck := NewQueensDeck()

	if deck.DrawCount() != 64 {
		t.Fatalf("expected 64 cards, got %d", deck.DrawCount())
	}

	counts := make(map[CardType]int)
	seen := make(map[string]bool)
	for _, card := range deck.Draw(64) {
		counts[card.Type]++
		if seen[card.ID] {
			t.Fatalf("duplicate card id %q", card.ID)
		}
		seen[card.ID] = true
	}

	want := map[CardType]int{
		CardKing:   8,
		CardKnight: 4,
		CardPotion: 4,
		CardWand:   4,
		CardDragon: 4,
		CardNumber: 40,
	}
	for cardType, count := range want {
		if counts[cardType] != count {
			t.Fatalf("expected %d %s cards, got %d", count, cardType, counts[cardType])
		}
	}
}

func TestDeckDrawReshufflesDiscard(t *testing.T) {
	deck := NewQueensDeck()
	drawn := deck.Draw(64)

	deck.Discard(drawn...)
	if deck.DrawCount() != 0 {
		t.Fatalf("discarding must not refill the draw pile, got %d", deck.DrawCount())
	}
	if deck.DiscardCount() != 64 {
		t.Fatalf("expected 64 discards, got %d", deck.DiscardCount())
	}

	// Drawing from an empty pile pulls the discards back in.
	redrawn := deck.Draw(5)
	if len(redrawn) != 5 {
		t.Fatalf("expected 5 cards after reshuffle, got %d", len(redrawn))
	}
	if deck.DiscardCount() != 0 {
		t.Fatalf("reshuffle should empty the discard pile, got %d", deck.DiscardCount())
	}
	if deck.DrawCount() != 59 {
		t.Fatalf("expected 59 cards left, got %d", deck.DrawCount())
	}
}

func TestDeckShortDraw(t *testing.T) {
	deck := NewQueensDeck()
	deck.Draw(64)

	// Both piles empty: the draw comes back short, not panicking.
	if got := deck.Draw(5); len(got) != 0 {
		t.Fatalf("expected empty draw, got %d cards", len(got))
	}

	deck.Discard(Card{ID: "number_1_1", Type: CardNumber, Value: 1})
	deck.Discard(Card{ID: "number_2_1", Type: CardNumber, Value: 2})

	if got := deck.Draw(5); len(got) != 2 {
		t.Fatalf("expected short draw of 2, got %d", len(got))
	}
}

func TestDeckConservation(t *testing.T) {
	deck := NewQueensDeck()

	var held []Card
	for i := 0; i < 200; i++ {
		switch i % 3 {
		case 0:
			held = append(held, deck.Draw(3)...)
		case 1:
			if len(held) > 2 {
				deck.Discard(held[:2]...)
				held = held[2:]
			}
		case 2:
			held = append(held, deck.Draw(1)...)
		}

		total := deck.DrawCount() + deck.DiscardCount() + len(held)
		if total != 64 {
			t.Fatalf("card conservation violated at step %d: %d cards accounted for", i, total)
		}
	}
}
